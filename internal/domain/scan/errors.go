package scan

import "errors"

var (
	// ErrInvalidPayload indicates the decoded payload does not carry a usable code.
	ErrInvalidPayload = errors.New("invalid scan payload")
	// ErrMissingActivity indicates a scan was submitted without a target activity.
	ErrMissingActivity = errors.New("scan has no activity")
	// ErrSuppressed indicates a repeat delivery inside the suppression window.
	ErrSuppressed = errors.New("duplicate scan suppressed")
)
