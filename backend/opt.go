package backend

import (
	"fmt"
	"net/url"

	// Packages
	aws "github.com/aws/aws-sdk-go-v2/aws"
	schema "github.com/mutablelogic/go-collect/schema"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type opt struct {
	url           *url.URL
	awsConfig     *aws.Config
	plan          schema.PlanLimits
	warnThreshold float64
	tracer        trace.Tracer
}

type Opt func(*opt) error

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func apply(url *url.URL, opts ...Opt) (*opt, error) {
	// Set defaults
	o := opt{url: url, warnThreshold: schema.DefaultWarnThreshold}

	// Apply options
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	// Return success
	return &o, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithEndpoint sets the S3 endpoint for S3-compatible services.
// For http:// endpoints, HTTPS is automatically disabled.
func WithEndpoint(endpoint string) Opt {
	return func(o *opt) error {
		if endpoint, err := url.Parse(endpoint); err != nil {
			return err
		} else if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
			return fmt.Errorf("endpoint must be http:// or https://, got %s://", endpoint.Scheme)
		} else {
			o.set("endpoint", endpoint.String())
			o.set("s3ForcePathStyle", "true")
			if endpoint.Scheme == "http" {
				o.set("disable_https", "true")
			}
		}
		return nil
	}
}

// WithAnonymous forces use of anonymous credentials.
// Use this for S3-compatible services that don't require authentication.
func WithAnonymous() Opt {
	return func(o *opt) error {
		o.set("anonymous", "true")
		return nil
	}
}

// WithCreateDir sets create_dir=true for file:// URLs to create the directory
// if it doesn't exist.
func WithCreateDir() Opt {
	return func(o *opt) error {
		o.set("create_dir", "true")
		return nil
	}
}

// WithAWSConfig provides an AWS SDK v2 Config directly.
// When provided for s3:// URLs, this config is used instead of the URL-based
// configuration, allowing full control over credentials, HTTP clients and
// retry settings.
func WithAWSConfig(cfg aws.Config) Opt {
	return func(o *opt) error {
		o.awsConfig = &cfg
		return nil
	}
}

// WithPlan sets the storage plan enforced by the workspace. A zero
// LimitBytes or MaxFileSize disables the corresponding check.
func WithPlan(plan schema.PlanLimits) Opt {
	return func(o *opt) error {
		o.plan = plan
		return nil
	}
}

// WithWarnThreshold sets the fraction of the storage limit above which
// upload responses carry a storage warning. Must be in (0, 1].
func WithWarnThreshold(threshold float64) Opt {
	return func(o *opt) error {
		if threshold <= 0 || threshold > 1 {
			return fmt.Errorf("warn threshold must be in (0, 1], got %v", threshold)
		}
		o.warnThreshold = threshold
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the workspace.
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opt) error {
		o.tracer = tracer
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (o *opt) set(key, value string) {
	if o.url == nil {
		return
	}
	q := o.url.Query()
	if value == "" {
		q.Del(key)
	} else {
		q.Set(key, value)
	}
	o.url.RawQuery = q.Encode()
}
