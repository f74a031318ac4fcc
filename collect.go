package collect

import (
	"context"

	// Packages
	schema "github.com/mutablelogic/go-collect/schema"
)

////////////////////////////////////////////////////////////////////////////////
// INTERFACES

// Transport performs upload attempts and quota queries against a
// collection endpoint. Implementations must support cancellation through
// the context and report byte-level progress where the underlying
// mechanism allows it.
type Transport interface {
	// Upload performs one upload attempt for a single file. The progress
	// callback, when non-nil, receives (written, total) byte counts as
	// data is transferred; when the payload size is unknown the values
	// are a time-based approximation and are display-only. Cancelling the
	// context aborts the request and returns an error matching
	// ErrCancelled.
	Upload(ctx context.Context, req schema.UploadRequest, progress func(written, total int64)) (*schema.UploadResponse, error)

	// Quota returns the server-confirmed usage snapshot for a workspace.
	Quota(ctx context.Context, workspace string) (*schema.QuotaSnapshot, error)
}

// Sink receives named events with structured payloads from the pipeline.
// Implementations must not block; delivery is synchronous with the
// emitting goroutine.
type Sink interface {
	Emit(ctx context.Context, name string, payload any)
}
