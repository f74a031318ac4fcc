package schema

import (
	"time"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Status is the lifecycle state of a single upload task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Task is one file's upload lifecycle. A task is owned by the uploader for
// the duration of its life; callers receive copies via Snapshot and the
// batch result, never the live value.
type Task struct {
	ID         string    `json:"id"`
	Workspace  string    `json:"workspace"`
	Folder     string    `json:"folder,omitempty"`
	File       File      `json:"file"`
	Status     Status    `json:"status"`
	BytesSent  int64     `json:"bytes_sent"`
	TotalBytes int64     `json:"total_bytes"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`
	LastError  string    `json:"last_error,omitempty"`
	Created    time.Time `json:"created,omitzero"`
}

// Batch is a set of tasks submitted together.
type Batch struct {
	ID          string   `json:"id"`
	TaskIDs     []string `json:"tasks"`
	Concurrency int      `json:"concurrency"`
}

// TaskResult is the terminal outcome of one task within a batch.
type TaskResult struct {
	Task      Task                `json:"task"`
	Record    *UploadedFileRecord `json:"record,omitempty"`
	Cancelled bool                `json:"cancelled,omitempty"`
	Attempts  int                 `json:"attempts"`
}

// BatchResult aggregates the terminal outcomes of every task in a batch.
// Partial failure is a normal resolved outcome, not an error.
type BatchResult struct {
	BatchID        string       `json:"batch"`
	Succeeded      []TaskResult `json:"succeeded"`
	Failed         []TaskResult `json:"failed"`
	TotalAttempted int          `json:"total_attempted"`
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Terminal reports whether the status is one of the two terminal states.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Complete reports whether every task in the batch reached a terminal state.
func (r BatchResult) Complete() bool {
	return len(r.Succeeded)+len(r.Failed) == r.TotalAttempted
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (t Task) String() string {
	return types.Stringify(t)
}

func (b Batch) String() string {
	return types.Stringify(b)
}

func (r BatchResult) String() string {
	return types.Stringify(r)
}
