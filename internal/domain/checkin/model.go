package checkin

import (
	"fmt"
	"time"
)

// Identity is the bearer record returned by the identity directory.
type Identity struct {
	ID          string            `json:"id"`
	Code        string            `json:"code"`
	DisplayName string            `json:"display_name"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Activity is the part of an activity the writer needs for cap enforcement.
type Activity struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DurationDays int    `json:"duration_days"`
}

// Required returns the number of check-ins that complete the activity.
func (a Activity) Required() int {
	if a.DurationDays < 1 {
		return 1
	}
	return a.DurationDays
}

// CheckIn is one attendance write. Day is the explicit day bucket
// (YYYY-MM-DD in the station time zone) derived from CapturedAt.
type CheckIn struct {
	ScanID     string    `json:"scan_id"`
	IdentityID string    `json:"identity_id"`
	ActivityID string    `json:"activity_id"`
	CapturedAt time.Time `json:"captured_at"`
	Day        string    `json:"day"`
}

// InsertResult is the attendance store's answer to a write. Created is false
// when the store already held an equivalent record.
type InsertResult struct {
	Created  bool `json:"created"`
	Count    int  `json:"count"`
	Required int  `json:"required"`
}

// WriteStatus discriminates successful writer outcomes.
type WriteStatus string

const (
	StatusRecorded        WriteStatus = "recorded"
	StatusAlreadyComplete WriteStatus = "already_complete"
)

// WriteResult is the outcome of AttendanceWriter.Record.
type WriteResult struct {
	Status   WriteStatus `json:"status"`
	Count    int         `json:"count"`
	Required int         `json:"required"`
}

// Progress renders the result as "3/5".
func (r WriteResult) Progress() string {
	return fmt.Sprintf("%d/%d", r.Count, r.Required)
}

// Complete reports whether the identity holds every required check-in.
func (r WriteResult) Complete() bool {
	return r.Count >= r.Required
}
