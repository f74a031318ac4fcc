package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	otel "github.com/mutablelogic/go-client/pkg/otel"
	collect "github.com/mutablelogic/go-collect"
	ledger "github.com/mutablelogic/go-collect/ledger"
	schema "github.com/mutablelogic/go-collect/schema"
	errgroup "golang.org/x/sync/errgroup"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Uploader drives batches of files through the transport: admission under
// a fixed concurrency window, per-task retry with backoff, progress into
// the ledger, and event emission. Tasks are owned by the uploader for the
// duration of their life; callers read snapshots.
type Uploader struct {
	opts
	transport collect.Transport

	mu      sync.Mutex
	tasks   map[string]*schema.Task
	cancels map[string]context.CancelFunc
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates an uploader over a transport.
func New(transport collect.Transport, opt ...Opt) (*Uploader, error) {
	self := new(Uploader)

	// Apply the options
	if opts, err := applyOpts(opt...); err != nil {
		return nil, err
	} else {
		self.opts = opts
	}
	if transport == nil {
		return nil, errors.New("missing transport")
	}
	self.transport = transport
	self.tasks = make(map[string]*schema.Task)
	self.cancels = make(map[string]context.CancelFunc)

	// Return success
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Ledger returns the progress ledger used by this uploader.
func (u *Uploader) Ledger() *ledger.Ledger {
	return u.ledger
}

// Tasks returns snapshots of all tasks known to the uploader, including
// terminal ones not yet cleared.
func (u *Uploader) Tasks() []schema.Task {
	u.mu.Lock()
	defer u.mu.Unlock()
	result := make([]schema.Task, 0, len(u.tasks))
	for _, t := range u.tasks {
		result = append(result, *t)
	}
	return result
}

// Task returns a snapshot of one task.
func (u *Uploader) Task(taskID string) (schema.Task, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if t, exists := u.tasks[taskID]; exists {
		return *t, true
	}
	return schema.Task{}, false
}

// Cancel aborts the in-flight transport call for a task. The task
// terminates as failed with a cancelled error. No-op when the task is
// unknown or already terminal.
func (u *Uploader) Cancel(taskID string) {
	u.mu.Lock()
	cancel := u.cancels[taskID]
	u.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// CancelAll aborts every active task and resets the ledger.
func (u *Uploader) CancelAll() {
	u.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(u.cancels))
	for _, cancel := range u.cancels {
		cancels = append(cancels, cancel)
	}
	u.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	u.ledger.Reset()
}

// Clear removes terminal tasks from the uploader's active set.
func (u *Uploader) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for id, t := range u.tasks {
		if t.Status.Terminal() {
			delete(u.tasks, id)
		}
	}
}

// Submit validates the candidate files and drives them through the
// transport as one batch. Validation failure blocks the batch from
// starting and returns a *ValidationError; no task is dispatched.
//
// Partial failure is a normal outcome: the result lists succeeded and
// failed tasks, and the returned error is nil. A non-nil error alongside
// a result indicates the dispatch loop itself failed unexpectedly, which
// is also reported as a synthetic batch-error event.
func (u *Uploader) Submit(ctx context.Context, workspace, folder string, files []schema.File) (result *schema.BatchResult, err error) {
	// OTEL span
	child, endFunc := otel.StartSpan(u.tracer, ctx, spanName("Submit"))
	defer func() { endFunc(err) }()
	ctx = child

	// Pre-flight validation blocks the batch before any network call
	var snapshot schema.QuotaSnapshot
	if u.tracker != nil {
		snapshot, _ = u.tracker.Snapshot()
	}
	if v := Validate(files, snapshot, u.plan); !v.Valid {
		if u.plan.MaxFilesPerUpload > 0 && len(files) > u.plan.MaxFilesPerUpload {
			u.emit(ctx, schema.FilesLimitEvent, schema.BatchEvent{Files: len(files), Message: v.Reason})
		}
		return nil, &ValidationError{Result: v}
	}

	// Create the batch and its tasks
	batch := schema.Batch{
		ID:          uuid.NewString(),
		Concurrency: u.concurrency,
	}
	// Every task gets its cancel registered before dispatch, so Cancel
	// and CancelAll reach tasks still queued behind the concurrency
	// window as well as those in flight.
	var totalBytes int64
	tasks := make([]*schema.Task, 0, len(files))
	taskCtxs := make([]context.Context, 0, len(files))
	u.mu.Lock()
	for _, f := range files {
		t := &schema.Task{
			ID:         uuid.NewString(),
			Workspace:  workspace,
			Folder:     folder,
			File:       f,
			Status:     schema.StatusPending,
			TotalBytes: f.Size,
			MaxRetries: u.maxRetries,
			Created:    time.Now(),
		}
		taskCtx, cancel := context.WithCancel(ctx)
		u.tasks[t.ID] = t
		u.cancels[t.ID] = cancel
		tasks = append(tasks, t)
		taskCtxs = append(taskCtxs, taskCtx)
		batch.TaskIDs = append(batch.TaskIDs, t.ID)
		totalBytes += f.Size
	}
	u.mu.Unlock()

	result = &schema.BatchResult{
		BatchID:        batch.ID,
		TotalAttempted: len(tasks),
	}
	u.emit(ctx, schema.BatchStartEvent, schema.BatchEvent{
		BatchID: batch.ID,
		Files:   len(tasks),
		Bytes:   totalBytes,
	})

	// A panic inside the dispatch loop becomes a single synthetic
	// batch-level error rather than crashing the caller.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch dispatch: %v", r)
			u.emit(ctx, schema.BatchErrorEvent, schema.BatchEvent{
				BatchID: batch.ID,
				Files:   len(tasks),
				Message: err.Error(),
			})
		}
	}()

	// Sweep abandoned ledger entries for the duration of the batch
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go u.ledger.Run(sweepCtx, u.abandonTimeout/2, u.abandonTimeout)

	// Dispatch under the concurrency window, in arrival order. Task
	// failures never abort siblings, so the group functions always
	// return nil.
	var resultMu sync.Mutex
	var done, failed int
	g := new(errgroup.Group)
	g.SetLimit(u.concurrency)
	for i, t := range tasks {
		taskCtx := taskCtxs[i]
		g.Go(func() error {
			taskResult := u.runTask(ctx, taskCtx, t)

			resultMu.Lock()
			done++
			if taskResult.Task.Status == schema.StatusSucceeded {
				result.Succeeded = append(result.Succeeded, taskResult)
			} else {
				failed++
				result.Failed = append(result.Failed, taskResult)
			}
			progress := schema.BatchEvent{
				BatchID: batch.ID,
				Files:   len(tasks),
				Bytes:   totalBytes,
				Done:    done,
				Failed:  failed,
			}
			resultMu.Unlock()

			u.emit(ctx, schema.BatchProgressEvent, progress)
			return nil
		})
	}
	_ = g.Wait()

	// One quota refresh per batch, not per file. Rebase folds the batch's
	// completed bytes into the confirmed figure, so usage is not counted
	// twice even when a recent CancelAll left the reset guard armed.
	if len(result.Succeeded) > 0 && u.tracker != nil {
		if err := u.tracker.Refresh(ctx); err == nil {
			snapshot, _ := u.tracker.Snapshot()
			u.ledger.Rebase(snapshot.UsedBytes)
		}
	}

	if len(result.Failed) == 0 {
		u.emit(ctx, schema.BatchSuccessEvent, schema.BatchEvent{
			BatchID: batch.ID,
			Files:   len(tasks),
			Bytes:   totalBytes,
			Done:    len(tasks),
		})
	} else {
		u.emit(ctx, schema.BatchErrorEvent, schema.BatchEvent{
			BatchID: batch.ID,
			Files:   len(tasks),
			Done:    len(tasks),
			Failed:  len(result.Failed),
			Message: fmt.Sprintf("%d of %d files failed", len(result.Failed), len(tasks)),
		})
	}

	// Return success; partial failure is part of the result
	return result, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func spanName(op string) string {
	return schema.SchemaName + "." + op
}

// runTask drives one task through the transport until it reaches a
// terminal state, retrying transient failures per the delay schedule.
// The task context was created at batch admission and outlives individual
// attempts, so Cancel aborts backoff waits and queued tasks as well as
// in-flight requests.
func (u *Uploader) runTask(ctx, taskCtx context.Context, t *schema.Task) schema.TaskResult {
	// OTEL span
	var err error
	child, endFunc := otel.StartSpan(u.tracer, taskCtx, spanName("Upload"))
	defer func() { endFunc(err) }()
	taskCtx = child

	u.mu.Lock()
	cancel := u.cancels[t.ID]
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		delete(u.cancels, t.ID)
		u.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}()

	var record *schema.UploadedFileRecord
	attempts := 0
	for taskCtx.Err() == nil {
		attempts++
		record, err = u.attempt(taskCtx, t)
		if err == nil {
			break
		}

		// Cancellation is terminal regardless of retry budget
		if errors.Is(err, collect.ErrCancelled) || taskCtx.Err() != nil {
			err = collect.ErrCancelled
			break
		}
		if !collect.Retryable(err) {
			break
		}

		retry := u.nextRetry(t)
		if retry < 0 {
			break
		}
		u.emit(ctx, schema.UploadRetryEvent, schema.UploadEvent{
			TaskID:     t.ID,
			Name:       t.File.Name,
			Bytes:      t.TotalBytes,
			Retry:      retry,
			MaxRetries: t.MaxRetries,
			Message:    err.Error(),
		})
		if !sleepCtx(taskCtx, u.delayFor(retry)) {
			err = collect.ErrCancelled
			break
		}
	}

	// Cancelled before the first attempt: terminal without ever touching
	// the transport
	if attempts == 0 {
		err = collect.ErrCancelled
	}

	// Resolve to a terminal state
	u.mu.Lock()
	if err == nil {
		t.Status = schema.StatusSucceeded
		t.BytesSent = t.TotalBytes
	} else {
		t.Status = schema.StatusFailed
		t.LastError = err.Error()
	}
	snapshot := *t
	u.mu.Unlock()

	if err == nil {
		u.ledger.Complete(t.ID)
		u.emit(ctx, schema.UploadSuccessEvent, schema.UploadEvent{
			TaskID:  t.ID,
			Name:    t.File.Name,
			Written: t.TotalBytes,
			Bytes:   t.TotalBytes,
		})
	} else {
		u.ledger.Fail(t.ID)
		u.emit(ctx, schema.UploadErrorEvent, schema.UploadEvent{
			TaskID:  t.ID,
			Name:    t.File.Name,
			Bytes:   t.TotalBytes,
			Message: err.Error(),
		})
	}

	return schema.TaskResult{
		Task:      snapshot,
		Record:    record,
		Cancelled: errors.Is(err, collect.ErrCancelled),
		Attempts:  attempts,
	}
}

// attempt performs one transport call for the task. Each attempt starts
// progress from zero; the ledger's replace-on-start semantics prevent
// double-counting.
func (u *Uploader) attempt(ctx context.Context, t *schema.Task) (*schema.UploadedFileRecord, error) {
	u.mu.Lock()
	t.Status = schema.StatusUploading
	t.BytesSent = 0
	u.mu.Unlock()
	u.ledger.Start(t.ID, t.TotalBytes)

	u.emit(ctx, schema.UploadStartEvent, schema.UploadEvent{
		TaskID: t.ID,
		Name:   t.File.Name,
		Bytes:  t.TotalBytes,
	})

	attemptCtx, cancel := context.WithTimeout(ctx, u.taskTimeout)
	defer cancel()

	response, err := u.transport.Upload(attemptCtx, schema.UploadRequest{
		Workspace: t.Workspace,
		Folder:    t.Folder,
		File:      t.File,
	}, func(written, total int64) {
		u.ledger.Update(t.ID, written)
		u.mu.Lock()
		// BytesSent is monotone within an attempt; late or reordered
		// callbacks must not move it backwards.
		if written > t.BytesSent {
			t.BytesSent = written
		}
		bytesSent := t.BytesSent
		u.mu.Unlock()
		u.emit(ctx, schema.UploadProgressEvent, schema.UploadEvent{
			TaskID:  t.ID,
			Name:    t.File.Name,
			Written: bytesSent,
			Bytes:   total,
		})
	})

	switch {
	case err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		return nil, collect.ErrTimeout
	case err != nil && ctx.Err() != nil:
		return nil, collect.ErrCancelled
	case err != nil:
		return nil, err
	}

	// Forward storage warnings; the orchestrator does not interpret them
	if response.StorageInfo != nil && response.StorageInfo.ShouldShowWarning {
		u.emit(ctx, schema.StorageWarningEvent, *response.StorageInfo)
	}

	return response.Data, nil
}

// nextRetry increments the retry count and returns its new 1-based value,
// or -1 when the budget is exhausted.
func (u *Uploader) nextRetry(t *schema.Task) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	if t.RetryCount >= t.MaxRetries {
		return -1
	}
	t.RetryCount++
	return t.RetryCount
}

// sleepCtx waits for the duration, returning false if the context was
// cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
