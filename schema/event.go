package schema

////////////////////////////////////////////////////////////////////////////////
// CONSTANTS

const (
	// Event names emitted by the upload pipeline. Clients should switch on
	// these names to drive per-file and per-batch progress UIs.

	// UploadStartEvent is sent when a task transitions to uploading.
	// Payload: UploadEvent
	UploadStartEvent = "upload-start"

	// UploadProgressEvent is sent each time the progress reader crosses a
	// chunk boundary (~64 KiB) while a file is being transferred.
	// Payload: UploadEvent
	UploadProgressEvent = "upload-progress"

	// UploadSuccessEvent is sent once a task has been committed.
	// Payload: UploadEvent
	UploadSuccessEvent = "upload-success"

	// UploadErrorEvent is sent when a task reaches terminal failure,
	// after any retries have been exhausted. Payload: UploadEvent
	UploadErrorEvent = "upload-error"

	// UploadRetryEvent is sent before each re-attempt of a task which
	// failed with a retryable error. Payload: UploadEvent
	UploadRetryEvent = "upload-retry"

	// BatchStartEvent is sent once before the dispatch loop begins.
	// Payload: BatchEvent
	BatchStartEvent = "batch-start"

	// BatchProgressEvent is sent each time a task in the batch reaches a
	// terminal state. Payload: BatchEvent
	BatchProgressEvent = "batch-progress"

	// BatchSuccessEvent is sent when every task succeeded.
	// Payload: BatchEvent
	BatchSuccessEvent = "batch-success"

	// BatchErrorEvent is sent when the batch completes with at least one
	// failed task, or when the dispatch loop itself failed unexpectedly.
	// Payload: BatchEvent
	BatchErrorEvent = "batch-error"

	// StorageWarningEvent is sent when an upload response reports usage
	// above the warning threshold. Payload: StorageInfo
	StorageWarningEvent = "storage-threshold-warning"

	// FilesLimitEvent is sent when validation rejects a batch for
	// exceeding the maximum files per upload. Payload: BatchEvent
	FilesLimitEvent = "files-limit-exceeded"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// UploadEvent is the payload for per-task events.
type UploadEvent struct {
	// TaskID identifies the task within its batch.
	TaskID string `json:"task"`

	// Name is the file name being uploaded.
	Name string `json:"name"`

	// Written is the number of bytes transferred so far for this attempt.
	Written int64 `json:"written"`

	// Bytes is the declared size of the file, or 0 if unknown.
	Bytes int64 `json:"bytes,omitempty"`

	// Retry is the 1-based re-attempt number for upload-retry events.
	Retry int `json:"retry,omitempty"`

	// MaxRetries is included with upload-retry events so callers can
	// render "Retrying (2/3)" style messages.
	MaxRetries int `json:"max_retries,omitempty"`

	// Message carries the error description for upload-error events.
	Message string `json:"message,omitempty"`
}

// BatchEvent is the payload for batch-level events.
type BatchEvent struct {
	// BatchID identifies the batch.
	BatchID string `json:"batch"`

	// Files is the number of tasks in the batch.
	Files int `json:"files"`

	// Bytes is the sum of declared file sizes in the batch.
	Bytes int64 `json:"bytes,omitempty"`

	// Done is the number of tasks which have reached a terminal state.
	Done int `json:"done"`

	// Failed is the number of tasks which terminated in failure.
	Failed int `json:"failed"`

	// Message carries the error description for batch-error and
	// files-limit-exceeded events.
	Message string `json:"message,omitempty"`
}
