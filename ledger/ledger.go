package ledger

import (
	"context"
	"sync"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Ledger tracks live, in-flight upload byte counts for quota projection.
// An entry exists iff the corresponding task is mid-flight; on terminal
// resolution its total moves either to the completed counter (success) or
// back out entirely (failure, cancellation, abandonment).
//
// All counters are adjusted only through the defined operations; the
// invariant that the in-flight counter equals the sum of entry totals
// holds at every return.
type Ledger struct {
	opts
	mu        sync.Mutex
	entries   map[string]*entry
	inflight  int64
	completed int64
	base      int64
	resetting bool
}

// Entry is a read-only snapshot of one in-flight upload.
type Entry struct {
	TotalBytes    int64
	UploadedBytes int64
	Percent       float64
	Started       time.Time
}

type entry struct {
	total    int64
	uploaded int64
	started  time.Time
}

////////////////////////////////////////////////////////////////////////////////
// CONSTANTS

// resetGuard is how long the resetting flag may remain set before it
// self-clears. The flag is a reentrancy guard, not a lock: a stuck flag
// must not wedge future resets permanently.
const resetGuard = 500 * time.Millisecond

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates an empty ledger.
func New(opt ...Opt) (*Ledger, error) {
	self := new(Ledger)

	// Apply the options
	if opts, err := applyOpts(opt...); err != nil {
		return nil, err
	} else {
		self.opts = opts
	}
	self.entries = make(map[string]*entry)

	// Register metric instruments
	if err := self.registerMetrics(); err != nil {
		return nil, err
	}

	// Return success
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - MUTATION

// Start inserts an entry for a task and adds its total to the in-flight
// counter. Starting an already-tracked task replaces the entry rather
// than double-counting, so a retry may call Start again safely.
func (l *Ledger) Start(taskID string, totalBytes int64) {
	if totalBytes < 0 {
		totalBytes = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if prev, exists := l.entries[taskID]; exists {
		l.inflight -= prev.total
		l.addInflight(-prev.total)
	}
	l.entries[taskID] = &entry{total: totalBytes, started: l.now()}
	l.inflight += totalBytes
	l.addInflight(totalBytes)
}

// Update records transferred bytes for a task. It is a no-op when the
// entry is absent (the task already resolved, or a late progress tick
// arrived after cancellation). The uploaded count is clamped to
// [0, totalBytes].
func (l *Ledger) Update(taskID string, uploadedBytes int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.entries[taskID]
	if !exists {
		return
	}
	if uploadedBytes < 0 {
		uploadedBytes = 0
	}
	if uploadedBytes > e.total {
		uploadedBytes = e.total
	}
	e.uploaded = uploadedBytes
}

// Complete removes the entry for a task and credits its total to the
// completed counter. No-op when the entry is absent.
func (l *Ledger) Complete(taskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.entries[taskID]
	if !exists {
		return
	}
	delete(l.entries, taskID)
	l.inflight -= e.total
	l.completed += e.total
	l.addInflight(-e.total)
	l.addCompleted(e.total)
}

// Fail removes the entry for a task with no credit to the completed
// counter. No-op when the entry is absent.
func (l *Ledger) Fail(taskID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.entries[taskID]
	if !exists {
		return
	}
	delete(l.entries, taskID)
	l.inflight -= e.total
	l.addInflight(-e.total)
}

// Reset clears all entries and both counters. A reset already in progress
// turns further Reset calls into no-ops until the guard clears; the guard
// self-clears after a short delay so it cannot wedge permanently.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.resetting {
		return
	}
	l.resetting = true
	time.AfterFunc(resetGuard, func() {
		l.mu.Lock()
		l.resetting = false
		l.mu.Unlock()
	})

	l.addInflight(-l.inflight)
	l.entries = make(map[string]*entry)
	l.inflight = 0
	l.completed = 0
}

// Sweep removes entries older than timeout which never reached completion,
// releasing their bytes from the in-flight counter. These are leaked
// entries whose terminal callback never fired. Returns the number of
// entries removed.
func (l *Ledger) Sweep(timeout time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-timeout)
	removed := 0
	for id, e := range l.entries {
		if e.started.After(cutoff) {
			continue
		}
		if e.total > 0 && e.uploaded >= e.total {
			continue
		}
		delete(l.entries, id)
		l.inflight -= e.total
		l.addInflight(-e.total)
		removed++
	}
	return removed
}

// SetBaseUsage records the server-confirmed usage on which projections
// are based. Called after each quota refresh.
func (l *Ledger) SetBaseUsage(usedBytes int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base = usedBytes
}

// Rebase records a server-confirmed usage and drops the completed counter,
// whose bytes the confirmed figure now includes, so CurrentUsage does not
// count them twice. In-flight entries are unaffected, and unlike Reset this
// is never suppressed by the reset guard. The completed-bytes metric is
// cumulative and is left alone.
func (l *Ledger) Rebase(usedBytes int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base = usedBytes
	l.completed = 0
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - VIEWS

// Uploading reports whether any entry is mid-flight.
func (l *Ledger) Uploading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries) > 0
}

// Len returns the number of in-flight entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// InFlightBytes returns the sum of entry totals.
func (l *Ledger) InFlightBytes() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight
}

// CompletedBytes returns the bytes credited by Complete since the last
// reset.
func (l *Ledger) CompletedBytes() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed
}

// CurrentUsage is the base usage plus bytes completed this session.
func (l *Ledger) CurrentUsage() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.base + l.completed
}

// ProjectedUsage is the current usage plus all in-flight totals: what the
// server-confirmed usage becomes if every in-flight upload succeeds.
func (l *Ledger) ProjectedUsage() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.base + l.completed + l.inflight
}

// RealtimeUsage is the base usage plus completed bytes plus bytes actually
// transferred so far for in-flight entries.
func (l *Ledger) RealtimeUsage() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var uploaded int64
	for _, e := range l.entries {
		uploaded += e.uploaded
	}
	return l.base + l.completed + uploaded
}

// Progress returns overall completion of the session as a percentage of
// all bytes admitted (completed plus in-flight), or 0 when nothing has
// been admitted.
func (l *Ledger) Progress() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	denom := l.inflight + l.completed
	if denom <= 0 {
		return 0
	}
	var uploaded int64
	for _, e := range l.entries {
		uploaded += e.uploaded
	}
	return float64(l.completed+uploaded) / float64(denom) * 100
}

// Snapshot returns a copy of the entry for a task.
func (l *Ledger) Snapshot(taskID string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.entries[taskID]
	if !exists {
		return Entry{}, false
	}
	return Entry{
		TotalBytes:    e.total,
		UploadedBytes: e.uploaded,
		Percent:       percent(e.uploaded, e.total),
		Started:       e.started,
	}, true
}

// Run sweeps abandoned entries at the given interval until the context is
// cancelled. A sweep only scans while uploads are active.
func (l *Ledger) Run(ctx context.Context, interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if l.Uploading() {
				l.Sweep(timeout)
			}
		}
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func percent(uploaded, total int64) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(uploaded) / float64(total) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
