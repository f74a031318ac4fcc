package uploader

import (
	"context"
	"time"

	// Packages
	collect "github.com/mutablelogic/go-collect"
	ledger "github.com/mutablelogic/go-collect/ledger"
	quota "github.com/mutablelogic/go-collect/quota"
	schema "github.com/mutablelogic/go-collect/schema"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for uploader configuration.
type Opt func(*opts) error

type opts struct {
	concurrency    int
	maxRetries     int
	retryDelays    []time.Duration
	retryDelay     time.Duration
	taskTimeout    time.Duration
	abandonTimeout time.Duration
	plan           schema.PlanLimits
	sink           collect.Sink
	tracker        *quota.Tracker
	ledger         *ledger.Ledger
	tracer         trace.Tracer
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithConcurrency caps the number of tasks simultaneously in flight.
func WithConcurrency(n int) Opt {
	return func(o *opts) error {
		if n > 0 {
			o.concurrency = n
		}
		return nil
	}
}

// WithRetries sets the maximum number of re-attempts per task and the
// delay schedule between them. When a task retries more times than the
// schedule has entries, the default delay applies.
func WithRetries(maxRetries int, delays ...time.Duration) Opt {
	return func(o *opts) error {
		if maxRetries >= 0 {
			o.maxRetries = maxRetries
		}
		o.retryDelays = delays
		return nil
	}
}

// WithRetryDelay sets the fallback delay used when the retry schedule is
// exhausted.
func WithRetryDelay(d time.Duration) Opt {
	return func(o *opts) error {
		if d > 0 {
			o.retryDelay = d
		}
		return nil
	}
}

// WithTaskTimeout bounds each upload attempt, independent of the
// caller's context. The transport enforces its own request timeout; this
// one also covers abandoned attempts whose terminal callback never fires.
func WithTaskTimeout(d time.Duration) Opt {
	return func(o *opts) error {
		if d > 0 {
			o.taskTimeout = d
		}
		return nil
	}
}

// WithAbandonTimeout sets the age beyond which an incomplete ledger entry
// is treated as abandoned and swept out of the in-flight counters while a
// batch is running.
func WithAbandonTimeout(d time.Duration) Opt {
	return func(o *opts) error {
		if d > 0 {
			o.abandonTimeout = d
		}
		return nil
	}
}

// WithPlan sets the plan limits applied during pre-upload validation.
func WithPlan(plan schema.PlanLimits) Opt {
	return func(o *opts) error {
		o.plan = plan
		return nil
	}
}

// WithSink sets the event sink for pipeline events.
func WithSink(sink collect.Sink) Opt {
	return func(o *opts) error {
		o.sink = sink
		return nil
	}
}

// WithQuota sets the quota tracker consulted during validation and
// refreshed after each batch with at least one success.
func WithQuota(tracker *quota.Tracker) Opt {
	return func(o *opts) error {
		o.tracker = tracker
		return nil
	}
}

// WithLedger sets the progress ledger. Without this option the uploader
// creates a private ledger.
func WithLedger(l *ledger.Ledger) Opt {
	return func(o *opts) error {
		o.ledger = l
		return nil
	}
}

// WithTracer sets the tracer used for tracing batch and task spans.
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt ...Opt) (opts, error) {
	// Set defaults
	retryDelay, _ := time.ParseDuration(schema.DefaultRetryDelay)
	taskTimeout, _ := time.ParseDuration(schema.DefaultRequestTimeout)
	abandonTimeout, _ := time.ParseDuration(schema.DefaultAbandonTimeout)
	o := opts{
		concurrency:    schema.DefaultConcurrency,
		maxRetries:     schema.DefaultMaxRetries,
		retryDelay:     retryDelay,
		taskTimeout:    taskTimeout,
		abandonTimeout: abandonTimeout,
	}

	// Apply options
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}

	// Create a private ledger when none was injected
	if o.ledger == nil {
		l, err := ledger.New()
		if err != nil {
			return opts{}, err
		}
		o.ledger = l
	}

	// Return success
	return o, nil
}

// delayFor returns the backoff before the given 1-based re-attempt.
func (o *opts) delayFor(retry int) time.Duration {
	if retry > 0 && retry <= len(o.retryDelays) {
		return o.retryDelays[retry-1]
	}
	return o.retryDelay
}

func (o *opts) emit(ctx context.Context, name string, payload any) {
	if o.sink != nil {
		o.sink.Emit(ctx, name, payload)
	}
}
