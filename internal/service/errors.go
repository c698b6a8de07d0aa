package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound means the external identity has no account.
	ErrUserNotFound = errors.New("user not found")

	// ErrAccessPending means the account exists but is still awaiting review.
	ErrAccessPending = errors.New("access request pending review")

	// ErrAccessDenied means the account is banned or otherwise not active.
	ErrAccessDenied = errors.New("access denied")

	// ErrDeviceNotFound means no account is bound to the device identifier.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceSecret means the supplied device secret did not match.
	ErrDeviceSecret = errors.New("invalid device secret")
)

// FetchError reports a failed image download. A fetch failure is transient
// and is never treated as evidence of abuse.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AnalysisServiceError reports a failed analysis attempt: a remote call error,
// a timeout, or a response that failed schema validation. There is never a
// partial result.
type AnalysisServiceError struct {
	Op  string
	Err error
}

func (e *AnalysisServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("analysis %s failed", e.Op)
}

func (e *AnalysisServiceError) Unwrap() error { return e.Err }
