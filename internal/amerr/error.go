// Package amerr classifies errors of GitHub API operations into retryable
// and permanent ones.
package amerr

import (
	"errors"
	"fmt"
	"time"
)

// Cause describes why an operation failed temporarily.
type Cause string

const (
	// CauseRateLimit is the primary GitHub API rate limit.
	CauseRateLimit Cause = "rate_limit"
	// CauseSecondaryRateLimit is the GitHub abuse detection limit.
	CauseSecondaryRateLimit Cause = "secondary_rate_limit"
	// CauseServerError is a 5xx response.
	CauseServerError Cause = "server_error"
	// CauseHeadChanged means the pull request branch was pushed to while
	// it was updated.
	CauseHeadChanged Cause = "head_changed"
	// CauseIncompleteResponse is a response that misses fields that are
	// expected to be set.
	CauseIncompleteResponse Cause = "incomplete_response"
)

// RetryableError is returned by operations that failed temporarily.
type RetryableError struct {
	Err   error
	Cause Cause
	// After is the earliest time the operation should be retried, the
	// zero value allows an immediate retry.
	After time.Time
}

// Retryable wraps err into a RetryableError that can be retried
// immediately.
func Retryable(cause Cause, err error) *RetryableError {
	return &RetryableError{Err: err, Cause: cause}
}

// RetryableAfter wraps err into a RetryableError that must not be retried
// before after.
func RetryableAfter(cause Cause, err error, after time.Time) *RetryableError {
	return &RetryableError{Err: err, Cause: cause, After: after}
}

// AsRetryable returns the first RetryableError in the chain of err.
func AsRetryable(err error) (*RetryableError, bool) {
	var retryErr *RetryableError
	if errors.As(err, &retryErr) {
		return retryErr, true
	}

	return nil, false
}

// IsRetryable returns true if err wraps a RetryableError.
func IsRetryable(err error) bool {
	_, ok := AsRetryable(err)
	return ok
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func (e *RetryableError) Error() string {
	if e.After.IsZero() {
		return fmt.Sprintf("retryable error (%s): %s", e.Cause, e.Err)
	}

	return fmt.Sprintf("retryable error (%s, not before %s): %s",
		e.Cause, e.After.Format(time.RFC3339), e.Err)
}
