package checkin

import "errors"

var (
	// ErrInvalidInput indicates a malformed payload, code or activity. Never retried.
	ErrInvalidInput = errors.New("invalid check-in input")
	// ErrInvalidState indicates the call is not allowed in the current state.
	ErrInvalidState = errors.New("invalid check-in state")
	// ErrNotFound indicates the code or activity is unknown to the registry. Terminal.
	ErrNotFound = errors.New("not found")
	// ErrNetwork indicates a transient failure (offline, timeout, 5xx). Retryable.
	ErrNetwork = errors.New("network unavailable")
	// ErrBusy indicates a scan arrived while another one is being handled.
	ErrBusy = errors.New("station busy")
	// ErrNoPendingConfirmation indicates confirm/reject without a resolved identity on screen.
	ErrNoPendingConfirmation = errors.New("no check-in awaiting confirmation")
)

// IsTransient reports whether err should keep a scan queued for a later retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidInput)
}
