package schema

////////////////////////////////////////////////////////////////////////////////
// TYPES

const (
	SchemaName = "collect"

	// HTTP headers
	WorkspaceHeader   = "X-Collect-Workspace"
	UploadCountHeader = "X-Upload-Count"
)

const (
	// DefaultConcurrency is the number of files uploaded in parallel when
	// no explicit limit is configured.
	DefaultConcurrency = 3

	// DefaultMaxRetries bounds the number of re-attempts for a task which
	// fails with a retryable error.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is used when the configured retry schedule has
	// fewer entries than the current retry count.
	DefaultRetryDelay = "10s"

	// DefaultRequestTimeout is the hard per-request timeout enforced by
	// the transport, independent of the caller's context.
	DefaultRequestTimeout = "5m"

	// DefaultAbandonTimeout is the age beyond which an incomplete ledger
	// entry is treated as leaked and swept.
	DefaultAbandonTimeout = "5m"

	// DefaultWarnThreshold is the fraction of the storage limit above
	// which the server flags ShouldShowWarning in upload responses.
	DefaultWarnThreshold = 0.9
)
