package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ganot/scanpoint/internal/logger"
)

// DayLayout is the format of CheckIn.Day.
const DayLayout = "2006-01-02"

// Writer implements AttendanceWriter on top of an AttendanceStore.
//
// The cap is checked with an explicit read before writing: the n-th day of an
// n-day activity is a new record, not a duplicate, so a failed insert cannot
// tell the two apart. The read and the insert are not atomic; a concurrent
// writer that slips past the cap check is stopped by the store, which
// re-checks the cap and uniqueness inside its insert, and that rejection is
// reported as StatusAlreadyComplete.
type Writer struct {
	store  AttendanceStore
	loc    *time.Location
	logger *slog.Logger
}

// NewWriter creates a writer. loc is the time zone used to bucket check-ins by day.
func NewWriter(store AttendanceStore, loc *time.Location, log *slog.Logger) *Writer {
	if loc == nil {
		loc = time.Local
	}
	return &Writer{store: store, loc: loc, logger: logger.OrDiscard(log)}
}

// DayOf returns the day bucket for t in the writer's time zone.
func (w *Writer) DayOf(t time.Time) string {
	return t.In(w.loc).Format(DayLayout)
}

// Record persists one check-in.
func (w *Writer) Record(ctx context.Context, in CheckIn) (WriteResult, error) {
	if strings.TrimSpace(in.IdentityID) == "" || strings.TrimSpace(in.ActivityID) == "" {
		return WriteResult{}, ErrInvalidInput
	}
	if in.CapturedAt.IsZero() {
		in.CapturedAt = time.Now()
	}
	if in.Day == "" {
		in.Day = w.DayOf(in.CapturedAt)
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		Component:  "scanpoint.checkin.writer",
		ScanID:     in.ScanID,
		ActivityID: in.ActivityID,
		IdentityID: in.IdentityID,
	})

	activity, err := w.store.Activity(ctx, in.ActivityID)
	if err != nil {
		return WriteResult{}, fmt.Errorf("loading activity: %w", err)
	}
	required := activity.Required()

	count, err := w.store.CountCheckIns(ctx, in.IdentityID, in.ActivityID)
	if err != nil {
		return WriteResult{}, fmt.Errorf("counting check-ins: %w", err)
	}
	if count >= required {
		w.logger.DebugContext(ctx, "activity already complete", "count", count, "required", required)
		return WriteResult{Status: StatusAlreadyComplete, Count: required, Required: required}, nil
	}

	res, err := w.store.InsertCheckIn(ctx, in)
	if err != nil {
		return WriteResult{}, fmt.Errorf("inserting check-in: %w", err)
	}
	if res.Required > 0 {
		required = res.Required
	}

	if !res.Created {
		// Same identity, activity and day already stored: the check-in happened.
		w.logger.InfoContext(ctx, "duplicate check-in treated as complete", "day", in.Day)
		return WriteResult{
			Status:   StatusAlreadyComplete,
			Count:    clamp(res.Count, count, required),
			Required: required,
		}, nil
	}

	w.logger.InfoContext(ctx, "check-in recorded", "day", in.Day, "count", res.Count, "required", required)
	return WriteResult{
		Status:   StatusRecorded,
		Count:    clamp(res.Count, count+1, required),
		Required: required,
	}, nil
}

// clamp picks the store's count when it reported one, and never exceeds required.
func clamp(reported, fallback, required int) int {
	n := reported
	if n <= 0 {
		n = fallback
	}
	if n > required {
		n = required
	}
	return n
}
