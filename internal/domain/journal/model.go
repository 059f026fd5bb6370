package journal

import "time"

// Outcome is what happened to a scan.
type Outcome string

const (
	OutcomeRecorded        Outcome = "recorded"
	OutcomeAlreadyComplete Outcome = "already_complete"
	OutcomeQueued          Outcome = "queued"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeDiscarded       Outcome = "discarded"
	OutcomeRejected        Outcome = "rejected"
	OutcomeInvalid         Outcome = "invalid"
)

// Source tells whether the outcome came from a live scan or a queue drain.
type Source string

const (
	SourceLive Source = "live"
	SourceSync Source = "sync"
)

// Entry is one line of the station's local check-in journal.
type Entry struct {
	ID         int64     `json:"id"`
	ScanID     string    `json:"scan_id,omitempty"`
	Code       string    `json:"code,omitempty"`
	ActivityID string    `json:"activity_id,omitempty"`
	IdentityID string    `json:"identity_id,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Source     Source    `json:"source"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
