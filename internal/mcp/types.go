package mcp

import (
	"time"

	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/scan"
	"github.com/ganot/scanpoint/internal/domain/syncengine"
)

// Tool inputs.

type SubmitScanInput struct {
	Payload    string `json:"payload" jsonschema:"decoded barcode or QR payload"`
	ActivityID string `json:"activity_id,omitempty" jsonschema:"activity to record against; defaults to the station activity"`
}

type NoInput struct{}

type RecentCheckinsInput struct {
	ActivityID string `json:"activity_id,omitempty" jsonschema:"only entries for this activity"`
	Outcome    string `json:"outcome,omitempty" jsonschema:"recorded, already_complete, queued, not_found, discarded, rejected or invalid"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum entries to return, default 50"`
}

// Tool outputs. Times are RFC 3339 strings.

type IdentityView struct {
	ID          string            `json:"id"`
	Code        string            `json:"code"`
	DisplayName string            `json:"display_name"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

type StateView struct {
	Seq        uint64        `json:"seq"`
	State      string        `json:"state"`
	Message    string        `json:"message,omitempty"`
	ScanID     string        `json:"scan_id,omitempty"`
	ActivityID string        `json:"activity_id,omitempty"`
	Identity   *IdentityView `json:"identity,omitempty"`
	Progress   string        `json:"progress,omitempty"`
	Complete   bool          `json:"complete,omitempty"`
	UpdatedAt  string        `json:"updated_at"`
}

type SubmitScanOutput struct {
	Suppressed bool      `json:"suppressed"`
	State      StateView `json:"state"`
}

type StateOutput struct {
	State StateView `json:"state"`
}

type SyncView struct {
	Pending         int    `json:"pending"`
	Syncing         bool   `json:"syncing"`
	LastSynced      int    `json:"last_synced"`
	LastDiscarded   int    `json:"last_discarded"`
	LastHalted      string `json:"last_halted,omitempty"`
	LastFinishedAt  string `json:"last_finished_at,omitempty"`
	LastError       string `json:"last_error,omitempty"`
	AlreadyComplete int    `json:"last_already_complete"`
}

type StationStatusOutput struct {
	StationID  string    `json:"station_id"`
	ActivityID string    `json:"activity_id,omitempty"`
	Online     bool      `json:"online"`
	State      StateView `json:"state"`
	Sync       SyncView  `json:"sync"`
}

type PendingScanView struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	ActivityID string `json:"activity_id"`
	CapturedAt string `json:"captured_at"`
	Attempts   int    `json:"attempts"`
	LastError  string `json:"last_error,omitempty"`
}

type ListPendingOutput struct {
	Count int               `json:"count"`
	Items []PendingScanView `json:"items"`
}

type TriggerSyncOutput struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

type JournalEntryView struct {
	ScanID     string `json:"scan_id,omitempty"`
	Code       string `json:"code,omitempty"`
	ActivityID string `json:"activity_id,omitempty"`
	IdentityID string `json:"identity_id,omitempty"`
	Outcome    string `json:"outcome"`
	Source     string `json:"source"`
	Message    string `json:"message,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type RecentCheckinsOutput struct {
	Entries []JournalEntryView `json:"entries"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toStateView(s checkin.Snapshot) StateView {
	v := StateView{
		Seq:        s.Seq,
		State:      string(s.State),
		Message:    s.Message,
		ScanID:     s.ScanID,
		ActivityID: s.ActivityID,
		UpdatedAt:  formatTime(s.UpdatedAt),
	}
	if s.Identity != nil {
		v.Identity = &IdentityView{
			ID:          s.Identity.ID,
			Code:        s.Identity.Code,
			DisplayName: s.Identity.DisplayName,
			Attributes:  s.Identity.Attributes,
		}
	}
	if s.Result != nil {
		v.Progress = s.Result.Progress()
		v.Complete = s.Result.Complete()
	}
	return v
}

func toSyncView(s syncengine.Status) SyncView {
	v := SyncView{Pending: s.Pending, Syncing: s.Syncing, LastError: s.LastError}
	if r := s.LastResult; r != nil {
		v.LastSynced = r.Synced
		v.AlreadyComplete = r.AlreadyComplete
		v.LastDiscarded = r.Discarded
		v.LastHalted = string(r.Halted)
		v.LastFinishedAt = formatTime(r.FinishedAt)
	}
	return v
}

func toPendingView(q scan.QueuedScan) PendingScanView {
	return PendingScanView{
		ID:         q.ID,
		Code:       q.Code,
		ActivityID: q.ActivityID,
		CapturedAt: formatTime(q.CapturedAt),
		Attempts:   q.Attempts,
		LastError:  q.LastError,
	}
}

func toJournalView(e journal.Entry) JournalEntryView {
	return JournalEntryView{
		ScanID:     e.ScanID,
		Code:       e.Code,
		ActivityID: e.ActivityID,
		IdentityID: e.IdentityID,
		Outcome:    string(e.Outcome),
		Source:     string(e.Source),
		Message:    e.Message,
		CreatedAt:  formatTime(e.CreatedAt),
	}
}
