package scan

import (
	"strings"
	"sync"
	"time"
)

// DefaultSuppressionWindow is how long an identical payload is ignored after
// it was last accepted.
const DefaultSuppressionWindow = 2 * time.Second

// Debouncer collapses the burst of decode callbacks produced while a badge is
// held in front of the camera into a single Event. Safe for concurrent use.
type Debouncer struct {
	window time.Duration
	now    func() time.Time

	mu          sync.Mutex
	lastPayload string
	lastAt      time.Time
	prevPayload string
	prevAt      time.Time
}

// NewDebouncer creates a debouncer. A non-positive window disables suppression.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (d *Debouncer) WithClock(now func() time.Time) *Debouncer {
	d.now = now
	return d
}

// Submit returns an Event for a fresh payload, or ErrSuppressed when the same
// payload was accepted less than the window ago. A missing activity fails with
// ErrMissingActivity and leaves the debounce state untouched.
func (d *Debouncer) Submit(payload, activityID string) (Event, error) {
	if strings.TrimSpace(activityID) == "" {
		return Event{}, ErrMissingActivity
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if payload == d.lastPayload && !d.lastAt.IsZero() && now.Sub(d.lastAt) < d.window {
		return Event{}, ErrSuppressed
	}
	d.prevPayload, d.prevAt = d.lastPayload, d.lastAt
	d.lastPayload = payload
	d.lastAt = now

	return Event{
		Payload:    payload,
		ActivityID: activityID,
		CapturedAt: now,
	}, nil
}

// Release undoes the acceptance of ev when the caller could not act on it,
// so repeat frames of that payload are not suppressed. The previously accepted
// payload is restored. It is a no-op once another payload has been accepted.
func (d *Debouncer) Release(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastPayload != ev.Payload || !d.lastAt.Equal(ev.CapturedAt) {
		return
	}
	d.lastPayload, d.lastAt = d.prevPayload, d.prevAt
	d.prevPayload, d.prevAt = "", time.Time{}
}
