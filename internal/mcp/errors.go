package mcp

import (
	"errors"
	"fmt"

	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/domain/scan"
)

// APIError is the error reported by a failed tool call.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
}

// MapError maps domain errors to tool error codes. Unknown errors are
// wrapped as INTERNAL.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, checkin.ErrBusy):
		return &APIError{Code: "BUSY", Message: "another scan is being handled", RecoveryHint: "Wait for the station to return to scanning"}
	case errors.Is(err, checkin.ErrNoPendingConfirmation):
		return &APIError{Code: "NO_PENDING_CONFIRMATION", Message: "no identity is awaiting confirmation", RecoveryHint: "Call submit_scan first"}
	case errors.Is(err, scan.ErrMissingActivity), errors.Is(err, checkin.ErrInvalidState):
		return &APIError{Code: "NO_ACTIVITY", Message: "no activity selected", RecoveryHint: "Pass activity_id or configure station.activity_id"}
	case errors.Is(err, checkin.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return &APIError{Code: "INTERNAL", Message: err.Error()}
	}
}
