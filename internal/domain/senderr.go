package domain

import (
	"errors"
	"fmt"
	"time"
)

// Send-failure taxonomy for the external messaging API. The dispatcher
// retries RateLimited and Temporary failures; Permanent failures are
// terminal for that recipient within a run.

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

type TemporaryError struct {
	Reason string
}

func (e *TemporaryError) Error() string {
	if e.Reason == "" {
		return "temporary send failure"
	}
	return "temporary send failure: " + e.Reason
}

type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	if e.Reason == "" {
		return "permanent send failure"
	}
	return "permanent send failure: " + e.Reason
}

// Retriable reports whether err may succeed on a later attempt.
func Retriable(err error) bool {
	var rl *RateLimitedError
	var tmp *TemporaryError
	return errors.As(err, &rl) || errors.As(err, &tmp)
}

// RetryAfter extracts the server-suggested pause from a rate-limit error,
// zero when the error carries no hint.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
