package scan

import "time"

// Event is a decoded payload accepted by the debouncer. It is transient: the
// orchestrator either processes it live or turns it into a QueuedScan.
type Event struct {
	Payload    string    `json:"payload"`
	ActivityID string    `json:"activity_id"`
	CapturedAt time.Time `json:"captured_at"`
}

// QueuedScan is a scan waiting in the pending queue. ID is generated on the
// station so it stays stable across retries and restarts.
type QueuedScan struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	ActivityID string    `json:"activity_id"`
	CapturedAt time.Time `json:"captured_at"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
}
