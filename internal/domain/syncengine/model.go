package syncengine

import "time"

// HaltReason explains why a drain stopped before the end of its snapshot.
type HaltReason string

const (
	HaltNone     HaltReason = ""
	HaltOffline  HaltReason = "offline"
	HaltNetwork  HaltReason = "network_error"
	HaltCanceled HaltReason = "canceled"
	HaltStorage  HaltReason = "storage_error"
)

// Result aggregates one drain.
type Result struct {
	Synced          int        `json:"synced"`
	AlreadyComplete int        `json:"already_complete"`
	Discarded       int        `json:"discarded"`
	Remaining       int        `json:"remaining"`
	Halted          HaltReason `json:"halted,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      time.Time  `json:"finished_at"`
}

// Processed is the number of items removed from the queue.
func (r Result) Processed() int {
	return r.Synced + r.AlreadyComplete + r.Discarded
}

// Status is what the UI shows about background syncing.
type Status struct {
	Pending    int     `json:"pending"`
	Syncing    bool    `json:"syncing"`
	Online     bool    `json:"online"`
	LastResult *Result `json:"last_result,omitempty"`
	LastError  string  `json:"last_error,omitempty"`
}
