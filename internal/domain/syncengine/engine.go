package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ganot/scanpoint/internal/connectivity"
	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/scan"
	"github.com/ganot/scanpoint/internal/logger"
	"github.com/ganot/scanpoint/internal/notify"
)

// Options tunes the engine.
type Options struct {
	// Interval is the backstop timer in case a WentOnline event is missed.
	Interval time.Duration
	// RequestTimeout bounds each resolver and writer call.
	RequestTimeout time.Duration
}

// Engine replays the pending queue through the resolver and writer.
// State machine: Idle -> Draining -> Idle. At most one drain runs at a time.
type Engine struct {
	queue    Queue
	resolver checkin.IdentityResolver
	writer   checkin.AttendanceWriter
	monitor  Monitor
	journal  checkin.Journal
	opts     Options
	logger   *slog.Logger
	events   *notify.Broadcaster[Status]

	draining atomic.Bool
	trigger  chan struct{}

	mu         sync.Mutex
	lastResult *Result
	lastError  string
}

// New creates an engine. journal may be nil.
func New(queue Queue, resolver checkin.IdentityResolver, writer checkin.AttendanceWriter, monitor Monitor, jrnl checkin.Journal, opts Options, log *slog.Logger) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = 45 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 8 * time.Second
	}
	return &Engine{
		queue:    queue,
		resolver: resolver,
		writer:   writer,
		monitor:  monitor,
		journal:  jrnl,
		opts:     opts,
		logger:   logger.OrDiscard(log),
		events:   notify.NewBroadcaster[Status](4),
		trigger:  make(chan struct{}, 1),
	}
}

// Syncing reports whether a drain is running.
func (e *Engine) Syncing() bool {
	return e.draining.Load()
}

// Status returns the current sync status with a fresh pending count.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	pending, err := e.queue.Count(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("counting pending scans: %w", err)
	}
	return e.status(pending), nil
}

// Subscribe streams status changes published at drain start and end.
func (e *Engine) Subscribe() (<-chan Status, func()) {
	return e.events.Subscribe()
}

// Trigger asks Run to drain soon. It is a no-op while a drain is in progress,
// since that drain picks up whatever is still pending.
func (e *Engine) Trigger() bool {
	if e.draining.Load() {
		return false
	}
	select {
	case e.trigger <- struct{}{}:
	default:
	}
	return true
}

// Run drains on start, on every WentOnline transition, on Trigger and on the
// backstop interval, until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	defer e.events.Close()
	ctx = logger.WithFields(ctx, logger.Fields{Component: "scanpoint.syncengine"})

	transitions, unsubscribe := e.monitor.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	e.runOnce(ctx, "startup")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-transitions:
			if !ok {
				transitions = nil
				continue
			}
			if ev.Transition == connectivity.WentOnline {
				e.runOnce(ctx, "went_online")
			}
		case <-e.trigger:
			e.runOnce(ctx, "trigger")
		case <-ticker.C:
			e.runOnce(ctx, "interval")
		}
	}
}

func (e *Engine) runOnce(ctx context.Context, reason string) {
	if !e.monitor.Online() {
		return
	}
	res, err := e.Drain(ctx)
	switch {
	case errors.Is(err, ErrAlreadyDraining):
		return
	case err != nil:
		e.logger.ErrorContext(ctx, "drain failed", "reason", reason, "error", err)
	case res.Processed() > 0 || res.Halted != HaltNone:
		e.logger.InfoContext(ctx, "drain finished",
			"reason", reason,
			"synced", res.Synced,
			"already_complete", res.AlreadyComplete,
			"discarded", res.Discarded,
			"remaining", res.Remaining,
			"halted", res.Halted)
	}
}

// Drain processes a FIFO snapshot of the queue. It stops at the first
// transient failure or as soon as the station goes offline, leaving the rest
// of the queue untouched and in order.
func (e *Engine) Drain(ctx context.Context) (Result, error) {
	if !e.draining.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyDraining
	}
	defer e.draining.Store(false)

	res := Result{StartedAt: time.Now()}
	e.publish(ctx)

	err := e.drain(ctx, &res)

	// Bookkeeping must finish even when ctx was canceled mid-drain.
	ctx = context.WithoutCancel(ctx)
	if remaining, cerr := e.queue.Count(ctx); cerr == nil {
		res.Remaining = remaining
	} else if err == nil {
		err = fmt.Errorf("counting pending scans: %w", cerr)
	}
	res.FinishedAt = time.Now()

	e.mu.Lock()
	e.lastResult = &res
	e.lastError = ""
	if err != nil {
		e.lastError = err.Error()
	}
	e.mu.Unlock()

	e.draining.Store(false)
	e.publish(ctx)
	return res, err
}

func (e *Engine) drain(ctx context.Context, res *Result) error {
	items, err := e.queue.PeekAll(ctx)
	if err != nil {
		res.Halted = HaltStorage
		return fmt.Errorf("reading pending scans: %w", err)
	}

	for _, item := range items {
		if ctx.Err() != nil {
			res.Halted = HaltCanceled
			return nil
		}
		if !e.monitor.Online() {
			res.Halted = HaltOffline
			return nil
		}

		halt, err := e.process(ctx, item, res)
		if err != nil {
			res.Halted = HaltStorage
			return err
		}
		if halt {
			res.Halted = HaltNetwork
			if ctx.Err() != nil {
				res.Halted = HaltCanceled
			}
			return nil
		}
	}
	return nil
}

// process handles one item. It reports halt=true on a transient failure.
func (e *Engine) process(ctx context.Context, item scan.QueuedScan, res *Result) (bool, error) {
	ctx = logger.WithFields(ctx, logger.Fields{ScanID: item.ID, ActivityID: item.ActivityID})

	identity, err := e.resolve(ctx, item.Code)
	if err != nil {
		if checkin.IsTransient(err) {
			return true, e.retain(ctx, item, err)
		}
		res.Discarded++
		e.record(ctx, item, "", journal.OutcomeDiscarded, "code not registered")
		return false, e.remove(ctx, item)
	}

	wctx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	wr, err := e.writer.Record(wctx, checkin.CheckIn{
		ScanID:     item.ID,
		IdentityID: identity.ID,
		ActivityID: item.ActivityID,
		CapturedAt: item.CapturedAt,
	})
	cancel()
	if err != nil {
		if checkin.IsTransient(err) {
			return true, e.retain(ctx, item, err)
		}
		res.Discarded++
		e.record(ctx, item, identity.ID, journal.OutcomeDiscarded, err.Error())
		return false, e.remove(ctx, item)
	}

	if wr.Status == checkin.StatusAlreadyComplete {
		res.AlreadyComplete++
		e.record(ctx, item, identity.ID, journal.OutcomeAlreadyComplete, wr.Progress())
	} else {
		res.Synced++
		e.record(ctx, item, identity.ID, journal.OutcomeRecorded, wr.Progress())
	}
	return false, e.remove(ctx, item)
}

func (e *Engine) resolve(ctx context.Context, code string) (*checkin.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	defer cancel()
	identity, err := e.resolver.Resolve(ctx, code)
	if err == nil && identity == nil {
		return nil, checkin.ErrNotFound
	}
	return identity, err
}

func (e *Engine) retain(ctx context.Context, item scan.QueuedScan, cause error) error {
	e.logger.WarnContext(ctx, "transient failure, keeping scan queued", "error", cause)
	if err := e.queue.MarkAttempt(context.WithoutCancel(ctx), item.ID, cause.Error()); err != nil {
		return fmt.Errorf("marking attempt: %w", err)
	}
	return nil
}

func (e *Engine) remove(ctx context.Context, item scan.QueuedScan) error {
	// A remote write has already happened; removal must not be skipped on shutdown.
	if err := e.queue.Remove(context.WithoutCancel(ctx), item.ID); err != nil {
		return fmt.Errorf("removing scan %s: %w", item.ID, err)
	}
	return nil
}

func (e *Engine) record(ctx context.Context, item scan.QueuedScan, identityID string, outcome journal.Outcome, msg string) {
	if e.journal == nil {
		return
	}
	err := e.journal.LogEntry(context.WithoutCancel(ctx), &journal.Entry{
		ScanID:     item.ID,
		Code:       item.Code,
		ActivityID: item.ActivityID,
		IdentityID: identityID,
		Outcome:    outcome,
		Source:     journal.SourceSync,
		Message:    msg,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "failed to journal sync outcome", "error", err)
	}
}

func (e *Engine) publish(ctx context.Context) {
	pending, err := e.queue.Count(ctx)
	if err != nil {
		return
	}
	e.events.Publish(e.status(pending))
}

func (e *Engine) status(pending int) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Pending:    pending,
		Syncing:    e.draining.Load(),
		Online:     e.monitor.Online(),
		LastResult: e.lastResult,
		LastError:  e.lastError,
	}
}
