package ledger

import (
	"context"
	"time"

	// Packages
	metric "go.opentelemetry.io/otel/metric"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for ledger configuration.
type Opt func(*opts) error

type opts struct {
	meter metric.Meter
	now   func() time.Time

	metricInflight  metric.Int64UpDownCounter
	metricCompleted metric.Int64Counter
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithMeter sets the meter used to publish ledger counters. Without a
// meter the ledger records no metrics.
func WithMeter(meter metric.Meter) Opt {
	return func(o *opts) error {
		o.meter = meter
		return nil
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Opt {
	return func(o *opts) error {
		o.now = now
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt ...Opt) (opts, error) {
	// Set defaults
	o := opts{now: time.Now}

	// Apply options
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}

	// Return success
	return o, nil
}

func (o *opts) registerMetrics() error {
	if o.meter == nil {
		return nil
	}
	inflight, err := o.meter.Int64UpDownCounter("collect.ledger.inflight_bytes",
		metric.WithDescription("Sum of declared sizes of in-flight uploads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}
	completed, err := o.meter.Int64Counter("collect.ledger.completed_bytes",
		metric.WithDescription("Bytes committed by completed uploads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}
	o.metricInflight = inflight
	o.metricCompleted = completed
	return nil
}

func (o *opts) addInflight(delta int64) {
	if o.metricInflight != nil {
		o.metricInflight.Add(context.Background(), delta)
	}
}

func (o *opts) addCompleted(delta int64) {
	if o.metricCompleted != nil {
		o.metricCompleted.Add(context.Background(), delta)
	}
}
