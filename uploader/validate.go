package uploader

import (
	"fmt"

	// Packages
	schema "github.com/mutablelogic/go-collect/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// ValidationError wraps a failed validation result so Submit can refuse a
// batch without starting any task.
type ValidationError struct {
	Result schema.ValidationResult
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (e *ValidationError) Error() string {
	return e.Result.Reason
}

// Validate decides which of the candidate files are admissible under the
// plan's per-file ceiling and the workspace quota. It is a pure function
// of its inputs: no side effects, no network calls. The quota snapshot
// may be stale; the server re-checks at commit time.
//
// The aggregate quota check is computed over the files that passed the
// per-file check, so a batch where every file is oversized reports a
// size-limit reason rather than a quota message. A non-positive
// MaxFileSize or LimitBytes disables the corresponding check.
func Validate(files []schema.File, quota schema.QuotaSnapshot, plan schema.PlanLimits) schema.ValidationResult {
	result := schema.ValidationResult{
		MaxFileSize: plan.MaxFileSize,
	}
	if len(files) == 0 {
		result.Reason = "no files to upload"
		return result
	}

	// Batch size ceiling
	if plan.MaxFilesPerUpload > 0 && len(files) > plan.MaxFilesPerUpload {
		result.Reason = fmt.Sprintf("too many files: %d exceeds the limit of %d per upload", len(files), plan.MaxFilesPerUpload)
		return result
	}

	// Per-file ceiling partitions the set; the quota check below only
	// covers the admissible partition.
	var validSize int64
	for _, f := range files {
		result.TotalSize += f.Size
		if plan.MaxFileSize > 0 && f.Size > plan.MaxFileSize {
			result.InvalidFiles = append(result.InvalidFiles, schema.InvalidFile{
				File:   f,
				Reason: fmt.Sprintf("%q exceeds the maximum file size of %d bytes for the %s plan", f.Name, plan.MaxFileSize, plan.Key),
			})
		} else {
			validSize += f.Size
		}
	}

	// Aggregate quota ceiling
	if quota.LimitBytes > 0 && quota.UsedBytes+validSize > quota.LimitBytes {
		result.ExceedsLimit = true
	}

	switch {
	case len(result.InvalidFiles) == len(files):
		result.Reason = "all files exceed the maximum file size for the plan"
	case len(result.InvalidFiles) > 0:
		result.Reason = fmt.Sprintf("%d of %d files exceed the maximum file size for the plan", len(result.InvalidFiles), len(files))
	case result.ExceedsLimit:
		result.Reason = "not enough storage space remaining"
	default:
		result.Valid = true
	}

	return result
}
