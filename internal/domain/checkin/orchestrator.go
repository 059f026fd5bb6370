package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/scan"
	"github.com/ganot/scanpoint/internal/logger"
	"github.com/ganot/scanpoint/internal/notify"
	"github.com/google/uuid"
)

// State is the scanning session state shown to the operator.
type State string

const (
	StateScanning   State = "scanning"
	StateProcessing State = "processing"
	StateConfirming State = "confirming"
	StateVerified   State = "verified"
	StateSaved      State = "saved"
	StateError      State = "error"
)

// Snapshot is the orchestrator state published to the UI.
type Snapshot struct {
	Seq        uint64       `json:"seq"`
	State      State        `json:"state"`
	Message    string       `json:"message,omitempty"`
	ScanID     string       `json:"scan_id,omitempty"`
	ActivityID string       `json:"activity_id,omitempty"`
	Identity   *Identity    `json:"identity,omitempty"`
	Result     *WriteResult `json:"result,omitempty"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Options tunes the orchestrator.
type Options struct {
	// AutoConfirm skips the operator confirmation step (unattended mode).
	AutoConfirm bool
	// FeedbackDelay is how long Verified and Saved stay on screen.
	FeedbackDelay time.Duration
	// ErrorDelay is how long Error stays on screen.
	ErrorDelay time.Duration
	// RequestTimeout bounds each resolver and writer call.
	RequestTimeout time.Duration
	// NewID generates queued scan ids. Defaults to random UUIDs.
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.FeedbackDelay <= 0 {
		o.FeedbackDelay = 2 * time.Second
	}
	if o.ErrorDelay <= 0 {
		o.ErrorDelay = 3 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 8 * time.Second
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.NewString() }
	}
	return o
}

// Dependencies are the collaborators the orchestrator drives.
type Dependencies struct {
	Intake   *scan.Debouncer
	Monitor  ConnectivityStatus
	Resolver IdentityResolver
	Writer   AttendanceWriter
	Queue    PendingQueue
	Journal  Journal
}

type pendingCheckIn struct {
	item     scan.QueuedScan
	identity *Identity
}

// Orchestrator runs one scanning session: Scanning -> Processing ->
// {Confirming ->} Verified | Saved | Error -> Scanning. It handles one scan
// at a time; scans arriving in any state other than Scanning get ErrBusy.
type Orchestrator struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger
	now    func() time.Time
	events *notify.Broadcaster[Snapshot]

	mu      sync.Mutex
	snap    Snapshot
	pending *pendingCheckIn
	timer   *time.Timer
	closed  bool
}

// NewOrchestrator creates an orchestrator in the Scanning state.
func NewOrchestrator(deps Dependencies, opts Options, log *slog.Logger) *Orchestrator {
	if deps.Intake == nil {
		deps.Intake = scan.NewDebouncer(scan.DefaultSuppressionWindow)
	}
	o := &Orchestrator{
		deps:   deps,
		opts:   opts.withDefaults(),
		logger: logger.OrDiscard(log),
		now:    time.Now,
		events: notify.NewBroadcaster[Snapshot](8),
	}
	o.snap = Snapshot{State: StateScanning, UpdatedAt: o.now()}
	return o
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// Subscribe streams state transitions. Call the returned func to stop.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	return o.events.Subscribe()
}

// Close stops pending display timers and releases subscribers.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
	}
	o.mu.Unlock()
	o.events.Close()
}

// Submit feeds one decoded payload into the session. It returns the state the
// scan ended in. Repeat deliveries yield scan.ErrSuppressed, a missing activity
// yields ErrInvalidState, and a scan during another one yields ErrBusy.
func (o *Orchestrator) Submit(ctx context.Context, payload, activityID string) (Snapshot, error) {
	ev, err := o.deps.Intake.Submit(payload, activityID)
	if err != nil {
		if errors.Is(err, scan.ErrMissingActivity) {
			return o.Snapshot(), fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		return o.Snapshot(), err
	}

	item := scan.QueuedScan{
		ID:         o.opts.NewID(),
		ActivityID: ev.ActivityID,
		CapturedAt: ev.CapturedAt,
	}
	if !o.begin(item) {
		// The scan was refused, so its repeat frames must reach the next Scanning state.
		o.deps.Intake.Release(ev)
		return o.Snapshot(), ErrBusy
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		Component:  "scanpoint.checkin.orchestrator",
		ScanID:     item.ID,
		ActivityID: item.ActivityID,
	})

	code, err := scan.ParseCode(ev.Payload)
	if err != nil {
		o.logger.InfoContext(ctx, "rejected unreadable payload", "error", err)
		o.journal(ctx, item, "", journal.OutcomeInvalid, "unreadable code")
		return o.finish(StateError, "Unreadable code", nil, nil), fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	item.Code = code

	if o.deps.Monitor != nil && !o.deps.Monitor.Online() {
		// Resolution would only fail while offline.
		return o.saveLocally(ctx, item, nil), nil
	}

	identity, err := o.resolve(ctx, code)
	switch {
	case errors.Is(err, ErrNotFound):
		o.logger.InfoContext(ctx, "unknown code", "code", code)
		o.journal(ctx, item, "", journal.OutcomeNotFound, "code not registered")
		return o.finish(StateError, "Code not registered", nil, nil), nil
	case errors.Is(err, ErrInvalidInput):
		o.journal(ctx, item, "", journal.OutcomeInvalid, err.Error())
		return o.finish(StateError, "Invalid code", nil, nil), nil
	case err != nil:
		o.logger.WarnContext(ctx, "identity lookup failed, saving locally", "error", err)
		return o.saveLocally(ctx, item, nil), nil
	}

	if !o.opts.AutoConfirm {
		return o.awaitConfirmation(item, identity), nil
	}
	return o.write(ctx, item, identity), nil
}

// Confirm accepts the identity on screen and records the check-in.
func (o *Orchestrator) Confirm(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	if o.snap.State != StateConfirming || o.pending == nil {
		snap := o.snap
		o.mu.Unlock()
		return snap, ErrNoPendingConfirmation
	}
	p := o.pending
	o.pending = nil
	o.setLocked(StateProcessing, "", p.identity, nil)
	snap := o.snap
	o.mu.Unlock()
	o.events.Publish(snap)

	ctx = logger.WithFields(ctx, logger.Fields{
		Component:  "scanpoint.checkin.orchestrator",
		ScanID:     p.item.ID,
		ActivityID: p.item.ActivityID,
		IdentityID: p.identity.ID,
	})
	return o.write(ctx, p.item, p.identity), nil
}

// Reject discards the identity on screen without recording anything.
func (o *Orchestrator) Reject(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	if o.snap.State != StateConfirming || o.pending == nil {
		snap := o.snap
		o.mu.Unlock()
		return snap, ErrNoPendingConfirmation
	}
	p := o.pending
	o.pending = nil
	o.setLocked(StateScanning, "", nil, nil)
	snap := o.snap
	o.mu.Unlock()
	o.events.Publish(snap)

	o.journal(ctx, p.item, p.identity.ID, journal.OutcomeRejected, "operator rejected identity")
	return snap, nil
}

func (o *Orchestrator) resolve(ctx context.Context, code string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()
	identity, err := o.deps.Resolver.Resolve(ctx, code)
	if err == nil && identity == nil {
		return nil, ErrNotFound
	}
	return identity, err
}

func (o *Orchestrator) write(ctx context.Context, item scan.QueuedScan, identity *Identity) Snapshot {
	wctx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	res, err := o.deps.Writer.Record(wctx, CheckIn{
		ScanID:     item.ID,
		IdentityID: identity.ID,
		ActivityID: item.ActivityID,
		CapturedAt: item.CapturedAt,
	})
	cancel()

	switch {
	case errors.Is(err, ErrNotFound):
		o.journal(ctx, item, identity.ID, journal.OutcomeNotFound, "activity not registered")
		return o.finish(StateError, "Activity not registered", identity, nil)
	case errors.Is(err, ErrInvalidInput):
		o.journal(ctx, item, identity.ID, journal.OutcomeInvalid, err.Error())
		return o.finish(StateError, "Check-in rejected", identity, nil)
	case err != nil:
		o.logger.WarnContext(ctx, "attendance write failed, saving locally", "error", err)
		return o.saveLocally(ctx, item, identity)
	}

	var msg string
	outcome := journal.OutcomeRecorded
	if res.Status == StatusAlreadyComplete {
		msg = fmt.Sprintf("%s already registered %s", identity.DisplayName, res.Progress())
		outcome = journal.OutcomeAlreadyComplete
	} else {
		msg = fmt.Sprintf("%s registered %s", identity.DisplayName, res.Progress())
	}
	o.journal(ctx, item, identity.ID, outcome, msg)
	return o.finish(StateVerified, msg, identity, &res)
}

func (o *Orchestrator) saveLocally(ctx context.Context, item scan.QueuedScan, identity *Identity) Snapshot {
	// The scan must survive even if the caller has gone away.
	qctx := context.WithoutCancel(ctx)
	item.EnqueuedAt = o.now()
	if err := o.deps.Queue.Enqueue(qctx, item); err != nil {
		o.logger.ErrorContext(ctx, "failed to save scan locally", "error", err)
		return o.finish(StateError, "Could not save scan", identity, nil)
	}
	var identityID string
	if identity != nil {
		identityID = identity.ID
	}
	o.journal(qctx, item, identityID, journal.OutcomeQueued, "saved locally")
	o.logger.InfoContext(ctx, "scan saved locally")
	return o.finish(StateSaved, "Saved locally, will sync when online", identity, nil)
}

func (o *Orchestrator) journal(ctx context.Context, item scan.QueuedScan, identityID string, outcome journal.Outcome, msg string) {
	if o.deps.Journal == nil {
		return
	}
	err := o.deps.Journal.LogEntry(context.WithoutCancel(ctx), &journal.Entry{
		ScanID:     item.ID,
		Code:       item.Code,
		ActivityID: item.ActivityID,
		IdentityID: identityID,
		Outcome:    outcome,
		Source:     journal.SourceLive,
		Message:    msg,
	})
	if err != nil {
		o.logger.WarnContext(ctx, "failed to journal outcome", "error", err)
	}
}

// begin moves Scanning -> Processing. It reports false when busy.
func (o *Orchestrator) begin(item scan.QueuedScan) bool {
	o.mu.Lock()
	if o.closed || o.snap.State != StateScanning {
		o.mu.Unlock()
		return false
	}
	o.setLocked(StateProcessing, "", nil, nil)
	o.snap.ScanID = item.ID
	o.snap.ActivityID = item.ActivityID
	snap := o.snap
	o.mu.Unlock()
	o.events.Publish(snap)
	return true
}

func (o *Orchestrator) awaitConfirmation(item scan.QueuedScan, identity *Identity) Snapshot {
	o.mu.Lock()
	o.pending = &pendingCheckIn{item: item, identity: identity}
	o.setLocked(StateConfirming, "Confirm "+identity.DisplayName, identity, nil)
	snap := o.snap
	o.mu.Unlock()
	o.events.Publish(snap)
	return snap
}

// finish enters a terminal display state and schedules the return to Scanning.
func (o *Orchestrator) finish(state State, msg string, identity *Identity, res *WriteResult) Snapshot {
	delay := o.opts.FeedbackDelay
	if state == StateError {
		delay = o.opts.ErrorDelay
	}

	o.mu.Lock()
	o.setLocked(state, msg, identity, res)
	snap := o.snap
	if !o.closed {
		if o.timer != nil {
			o.timer.Stop()
		}
		seq := snap.Seq
		o.timer = time.AfterFunc(delay, func() { o.resetIfCurrent(seq) })
	}
	o.mu.Unlock()
	o.events.Publish(snap)
	return snap
}

func (o *Orchestrator) resetIfCurrent(seq uint64) {
	o.mu.Lock()
	if o.closed || o.snap.Seq != seq {
		o.mu.Unlock()
		return
	}
	o.setLocked(StateScanning, "", nil, nil)
	snap := o.snap
	o.mu.Unlock()
	o.events.Publish(snap)
}

func (o *Orchestrator) setLocked(state State, msg string, identity *Identity, res *WriteResult) {
	scanID, activityID := o.snap.ScanID, o.snap.ActivityID
	if state == StateScanning {
		scanID, activityID = "", ""
	}
	o.snap = Snapshot{
		Seq:        o.snap.Seq + 1,
		State:      state,
		Message:    msg,
		ScanID:     scanID,
		ActivityID: activityID,
		Identity:   identity,
		Result:     res,
		UpdatedAt:  o.now(),
	}
}
