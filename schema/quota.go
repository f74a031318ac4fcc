package schema

import (
	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// QuotaSnapshot is the server-confirmed storage usage for a workspace.
// UsedBytes may transiently exceed LimitBytes under eventual consistency;
// derived percentages are clamped rather than trusted.
type QuotaSnapshot struct {
	UsedBytes  int64  `json:"used_bytes"`
	LimitBytes int64  `json:"limit_bytes"`
	PlanKey    string `json:"plan,omitempty"`
	FileCount  int64  `json:"file_count"`
}

// PlanLimits is the per-plan policy applied before any upload starts.
type PlanLimits struct {
	Key               string `json:"key" koanf:"key"`
	MaxFileSize       int64  `json:"max_file_size" koanf:"max_file_size"`
	LimitBytes        int64  `json:"limit_bytes" koanf:"limit_bytes"`
	MaxFilesPerUpload int    `json:"max_files_per_upload,omitempty" koanf:"max_files_per_upload"`
}

// StorageInfo is attached to upload responses so clients can surface
// threshold warnings without a separate quota round-trip.
type StorageInfo struct {
	UsagePercentage   float64 `json:"usage_percentage"`
	RemainingBytes    int64   `json:"remaining_bytes"`
	ShouldShowWarning bool    `json:"should_show_warning"`
}

// InvalidFile pairs a rejected file with the reason it was rejected.
type InvalidFile struct {
	File   File   `json:"file"`
	Reason string `json:"reason"`
}

// ValidationResult is the outcome of pre-upload validation over a candidate
// file set. Valid is false when any file fails the per-file ceiling, when
// the admissible subset would exceed the quota, or when the batch is larger
// than the plan allows.
type ValidationResult struct {
	Valid        bool          `json:"valid"`
	Reason       string        `json:"reason,omitempty"`
	TotalSize    int64         `json:"total_size"`
	ExceedsLimit bool          `json:"exceeds_limit"`
	InvalidFiles []InvalidFile `json:"invalid_files,omitempty"`
	MaxFileSize  int64         `json:"max_file_size"`
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// UsagePercent returns used/limit as a percentage clamped to [0,100].
func (q QuotaSnapshot) UsagePercent() float64 {
	if q.LimitBytes <= 0 {
		return 0
	}
	pct := float64(q.UsedBytes) / float64(q.LimitBytes) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Remaining returns the number of bytes left before the limit, never
// negative.
func (q QuotaSnapshot) Remaining() int64 {
	if remaining := q.LimitBytes - q.UsedBytes; remaining > 0 {
		return remaining
	}
	return 0
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (q QuotaSnapshot) String() string {
	return types.Stringify(q)
}

func (p PlanLimits) String() string {
	return types.Stringify(p)
}

func (v ValidationResult) String() string {
	return types.Stringify(v)
}
