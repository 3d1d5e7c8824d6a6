package reporting

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured       = errors.New("reporting: api url or key not configured")
	ErrSendBudgetExhausted = errors.New("reporting: per-minute send budget exhausted")
	ErrBackoffActive       = errors.New("reporting: backoff window active")
	ErrThrottled           = errors.New("reporting: remote throttled the request")
)

// RemoteError is a non-2xx answer from the reporting API.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("reporting: remote returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("reporting: remote returned HTTP %d: %s", e.StatusCode, e.Body)
}

// IsLocalRefusal reports whether err means the client declined to send
// without contacting the remote API.
func IsLocalRefusal(err error) bool {
	return errors.Is(err, ErrSendBudgetExhausted) || errors.Is(err, ErrBackoffActive) || errors.Is(err, ErrNotConfigured)
}
