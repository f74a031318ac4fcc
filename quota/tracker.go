package quota

import (
	"context"
	"sync"
	"time"

	// Packages
	collect "github.com/mutablelogic/go-collect"
	schema "github.com/mutablelogic/go-collect/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Tracker caches the latest server-confirmed quota snapshot for a
// workspace. The snapshot is replaced wholesale by Refresh; a failed
// refresh keeps the previous snapshot, which is stale but usable.
type Tracker struct {
	transport collect.Transport
	workspace string

	mu       sync.RWMutex
	snapshot schema.QuotaSnapshot
	fetched  time.Time
	lastErr  error
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewTracker creates a tracker for a workspace. The snapshot is zero
// until the first Refresh.
func NewTracker(transport collect.Transport, workspace string) *Tracker {
	return &Tracker{
		transport: transport,
		workspace: workspace,
	}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Refresh fetches the current snapshot from the quota service. On error
// the cached snapshot is retained and the error recorded.
func (t *Tracker) Refresh(ctx context.Context) error {
	snapshot, err := t.transport.Quota(ctx, t.workspace)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.lastErr = err
		return err
	}
	t.snapshot = *snapshot
	t.fetched = time.Now()
	t.lastErr = nil
	return nil
}

// Snapshot returns the cached snapshot and the time it was fetched. The
// zero time means no refresh has succeeded yet.
func (t *Tracker) Snapshot() (schema.QuotaSnapshot, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot, t.fetched
}

// Remaining returns the bytes left before the cached limit.
func (t *Tracker) Remaining() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot.Remaining()
}

// UsagePercent returns the cached usage percentage, clamped to [0,100].
func (t *Tracker) UsagePercent() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot.UsagePercent()
}

// Err returns the error from the most recent refresh, or nil.
func (t *Tracker) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastErr
}
