package collect

import (
	"errors"
	"fmt"
	"net/http"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// StatusError is returned by a Transport when the endpoint responds with a
// non-2xx status. Message carries the server-supplied error description
// where the body contained one.
type StatusError struct {
	Code    int
	Message string
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

var (
	// ErrCancelled marks a task aborted by the caller or by shutdown. It
	// is distinguished from other failures so callers can separate user
	// cancellation from genuine errors, although both are terminal.
	ErrCancelled = errors.New("cancelled")

	// ErrTimeout marks a request which exceeded the transport's hard
	// timeout.
	ErrTimeout = errors.New("request timeout")

	// ErrBadResponse marks a response whose body could not be decoded.
	// This is a permanent failure: the server misbehaved and a retry
	// would re-upload the payload for the same outcome.
	ErrBadResponse = errors.New("malformed response")
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v %v: %v", e.Code, http.StatusText(e.Code), e.Message)
	}
	return fmt.Sprintf("%v %v", e.Code, http.StatusText(e.Code))
}

// Retryable classifies an error per the retry policy: network-level
// failures and timeouts are retryable, as are 502, 503 and 504 responses.
// Cancellation and all other statuses are not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrCancelled) || errors.Is(err, ErrBadResponse) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		switch status.Code {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	// Anything else is a network-level or timeout failure.
	return true
}
