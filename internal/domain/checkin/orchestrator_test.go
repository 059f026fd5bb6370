package checkin_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/scan"
	"github.com/ganot/scanpoint/internal/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var ana = &checkin.Identity{ID: "i1", Code: "U1001", DisplayName: "Ana"}

type harness struct {
	resolver *mocks.IdentityResolver
	writer   *mocks.AttendanceWriter
	queue    *mocks.PendingQueue
	monitor  *mocks.ConnectivityStatus
	journal  *mocks.Journal
	orch     *checkin.Orchestrator
}

func newHarness(t *testing.T, online bool, opts checkin.Options) *harness {
	t.Helper()
	h := &harness{
		resolver: &mocks.IdentityResolver{},
		writer:   &mocks.AttendanceWriter{},
		queue:    &mocks.PendingQueue{},
		monitor:  &mocks.ConnectivityStatus{},
		journal:  &mocks.Journal{},
	}
	h.monitor.On("Online").Return(online)
	h.journal.On("LogEntry", mock.Anything, mock.Anything).Return(nil)

	var n atomic.Int64
	opts.NewID = func() string { return fmt.Sprintf("scan-%d", n.Add(1)) }
	if opts.FeedbackDelay == 0 {
		opts.FeedbackDelay = time.Hour
	}
	if opts.ErrorDelay == 0 {
		opts.ErrorDelay = time.Hour
	}

	h.orch = checkin.NewOrchestrator(checkin.Dependencies{
		Intake:   scan.NewDebouncer(scan.DefaultSuppressionWindow),
		Monitor:  h.monitor,
		Resolver: h.resolver,
		Writer:   h.writer,
		Queue:    h.queue,
		Journal:  h.journal,
	}, opts, nil)
	t.Cleanup(h.orch.Close)
	return h
}

func (h *harness) journaled(outcome journal.Outcome) bool {
	for _, call := range h.journal.Calls {
		if e, ok := call.Arguments.Get(1).(*journal.Entry); ok && e.Outcome == outcome {
			return true
		}
	}
	return false
}

func TestOrchestrator_AutoConfirmRecords(t *testing.T) {
	h := newHarness(t, true, checkin.Options{AutoConfirm: true, FeedbackDelay: 20 * time.Millisecond})
	h.resolver.On("Resolve", mock.Anything, "U1001").Return(ana, nil)
	h.writer.On("Record", mock.Anything, mock.MatchedBy(func(in checkin.CheckIn) bool {
		return in.IdentityID == "i1" && in.ActivityID == "A1" && in.ScanID == "scan-1"
	})).Return(checkin.WriteResult{Status: checkin.StatusRecorded, Count: 1, Required: 2}, nil)

	snap, err := h.orch.Submit(context.Background(), "U1001", "A1")
	require.NoError(t, err)
	require.Equal(t, checkin.StateVerified, snap.State)
	require.Equal(t, "Ana registered 1/2", snap.Message)
	require.Equal(t, ana, snap.Identity)
	require.True(t, h.journaled(journal.OutcomeRecorded))

	require.Eventually(t, func() bool {
		return h.orch.Snapshot().State == checkin.StateScanning
	}, time.Second, 5*time.Millisecond)
	h.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestOrchestrator_AlreadyComplete(t *testing.T) {
	h := newHarness(t, true, checkin.Options{AutoConfirm: true})
	h.resolver.On("Resolve", mock.Anything, "U1001").Return(ana, nil)
	h.writer.On("Record", mock.Anything, mock.Anything).
		Return(checkin.WriteResult{Status: checkin.StatusAlreadyComplete, Count: 2, Required: 2}, nil)

	snap, err := h.orch.Submit(context.Background(), "U1001", "A1")
	require.NoError(t, err)
	require.Equal(t, checkin.StateVerified, snap.State)
	require.Equal(t, "Ana already registered 2/2", snap.Message)
	require.True(t, h.journaled(journal.OutcomeAlreadyComplete))
}

func TestOrchestrator_ConfirmFlow(t *testing.T) {
	h := newHarness(t, true, checkin.Options{})
	h.resolver.On("Resolve", mock.Anything, "U1001").Return(ana, nil)
	h.writer.On("Record", mock.Anything, mock.Anything).
		Return(checkin.WriteResult{Status: checkin.StatusRecorded, Count: 1, Required: 1}, nil)
	ctx := context.Background()

	snap, err := h.orch.Submit(ctx, "U1001", "A1")
	require.NoError(t, err)
	require.Equal(t, checkin.StateConfirming, snap.State)
	h.writer.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)

	_, err = h.orch.Submit(ctx, "U2002", "A1")
	require.ErrorIs(t, err, checkin.ErrBusy)

	snap, err = h.orch.Confirm(ctx)
	require.NoError(t, err)
	require.Equal(t, checkin.StateVerified, snap.State)
	require.Equal(t, "Ana registered 1/1", snap.Message)

	_, err = h.orch.Confirm(ctx)
	require.ErrorIs(t, err, checkin.ErrNoPendingConfirmation)
}

func TestOrchestrator_Reject(t *testing.T) {
	h := newHarness(t, true, checkin.Options{})
	h.resolver.On("Resolve", mock.Anything, "U1001").Return(ana, nil)
	ctx := context.Background()

	_, err := h.orch.Submit(ctx, "U1001", "A1")
	require.NoError(t, err)

	snap, err := h.orch.Reject(ctx)
	require.NoError(t, err)
	require.Equal(t, checkin.StateScanning, snap.State)
	require.True(t, h.journaled(journal.OutcomeRejected))
	h.writer.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)

	_, err = h.orch.Reject(ctx)
	require.ErrorIs(t, err, checkin.ErrNoPendingConfirmation)
}

func TestOrchestrator_OfflineSavesLocally(t *testing.T) {
	h := newHarness(t, false, checkin.Options{AutoConfirm: true})
	h.queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(item scan.QueuedScan) bool {
		return item.ID == "scan-1" && item.Code == "U1001" && item.ActivityID == "A1" &&
			!item.CapturedAt.IsZero() && !item.EnqueuedAt.IsZero()
	})).Return(nil)

	snap, err := h.orch.Submit(context.Background(), "U1001", "A1")
	require.NoError(t, err)
	require.Equal(t, checkin.StateSaved, snap.State)
	require.Equal(t, "Saved locally, will sync when online", snap.Message)
	require.True(t, h.journaled(journal.OutcomeQueued))
	h.queue.AssertExpectations(t)
	h.resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestOrchestrator_NetworkFailureSavesLocally(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{
			name: "resolver timeout",
			setup: func(h *harness) {
				h.resolver.On("Resolve", mock.Anything, "U1001").Return(nil, checkin.ErrNetwork)
			},
		},
		{
			name: "writer unreachable",
			setup: func(h *harness) {
				h.resolver.On("Resolve", mock.Anything, "U1001").Return(ana, nil)
				h.writer.On("Record", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("inserting: %w", checkin.ErrNetwork))
			},
		},
		{
			name: "unexpected error",
			setup: func(h *harness) {
				h.resolver.On("Resolve", mock.Anything, "U1001").Return(nil, errors.New("tls handshake"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, true, checkin.Options{AutoConfirm: true})
			tt.setup(h)
			h.queue.On("Enqueue", mock.Anything, mock.Anything).Return(nil)

			snap, err := h.orch.Submit(context.Background(), "U1001", "A1")
			require.NoError(t, err)
			require.Equal(t, checkin.StateSaved, snap.State)
			h.queue.AssertNumberOfCalls(t, "Enqueue", 1)
		})
	}
}

func TestOrchestrator_UnknownCode(t *testing.T) {
	h := newHarness(t, true, checkin.Options{AutoConfirm: true, ErrorDelay: 20 * time.Millisecond})
	h.resolver.On("Resolve", mock.Anything, "U9999").Return(nil, checkin.ErrNotFound)

	snap, err := h.orch.Submit(context.Background(), "U9999", "A1")
	require.NoError(t, err)
	require.Equal(t, checkin.StateError, snap.State)
	require.Equal(t, "Code not registered", snap.Message)
	require.True(t, h.journaled(journal.OutcomeNotFound))
	h.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)

	require.Eventually(t, func() bool {
		return h.orch.Snapshot().State == checkin.StateScanning
	}, time.Second, 5*time.Millisecond)
}

func TestOrchestrator_IntakeErrors(t *testing.T) {
	h := newHarness(t, true, checkin.Options{AutoConfirm: true, ErrorDelay: 10 * time.Millisecond})
	ctx := context.Background()

	_, err := h.orch.Submit(ctx, "U1001", "")
	require.ErrorIs(t, err, checkin.ErrInvalidState)
	require.ErrorIs(t, err, scan.ErrMissingActivity)

	snap, err := h.orch.Submit(ctx, "!!", "A1")
	require.ErrorIs(t, err, checkin.ErrInvalidInput)
	require.Equal(t, checkin.StateError, snap.State)

	// The same unreadable payload is debounced even though it failed.
	_, err = h.orch.Submit(ctx, "!!", "A1")
	require.ErrorIs(t, err, scan.ErrSuppressed)
}

func TestOrchestrator_QueueFailureIsError(t *testing.T) {
	h := newHarness(t, false, checkin.Options{AutoConfirm: true})
	h.queue.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	snap, err := h.orch.Submit(context.Background(), "U1001", "A1")
	require.NoError(t, err)
	require.Equal(t, checkin.StateError, snap.State)
	require.Equal(t, "Could not save scan", snap.Message)
}

func TestOrchestrator_PublishesTransitions(t *testing.T) {
	h := newHarness(t, true, checkin.Options{AutoConfirm: true, FeedbackDelay: 10 * time.Millisecond})
	h.resolver.On("Resolve", mock.Anything, "U1001").Return(ana, nil)
	h.writer.On("Record", mock.Anything, mock.Anything).
		Return(checkin.WriteResult{Status: checkin.StatusRecorded, Count: 1, Required: 1}, nil)

	events, cancel := h.orch.Subscribe()
	defer cancel()

	_, err := h.orch.Submit(context.Background(), "U1001", "A1")
	require.NoError(t, err)

	var states []checkin.State
	var lastSeq uint64
	timeout := time.After(time.Second)
	for len(states) < 3 {
		select {
		case snap := <-events:
			require.Greater(t, snap.Seq, lastSeq)
			lastSeq = snap.Seq
			states = append(states, snap.State)
		case <-timeout:
			t.Fatalf("got states %v", states)
		}
	}
	require.Equal(t, []checkin.State{checkin.StateProcessing, checkin.StateVerified, checkin.StateScanning}, states)
}

func TestOrchestrator_BusyScanIsNotSuppressedLater(t *testing.T) {
	h := newHarness(t, true, checkin.Options{AutoConfirm: true, FeedbackDelay: 20 * time.Millisecond})
	bo := &checkin.Identity{ID: "i2", Code: "U2002", DisplayName: "Bo"}
	h.resolver.On("Resolve", mock.Anything, "U1001").Return(ana, nil)
	h.resolver.On("Resolve", mock.Anything, "U2002").Return(bo, nil)
	h.writer.On("Record", mock.Anything, mock.Anything).
		Return(checkin.WriteResult{Status: checkin.StatusRecorded, Count: 1, Required: 1}, nil)
	ctx := context.Background()

	snap, err := h.orch.Submit(ctx, "U1001", "A1")
	require.NoError(t, err)
	require.Equal(t, checkin.StateVerified, snap.State)

	// Shown while Ana's result is still on screen.
	_, err = h.orch.Submit(ctx, "U2002", "A1")
	require.ErrorIs(t, err, checkin.ErrBusy)

	require.Eventually(t, func() bool {
		return h.orch.Snapshot().State == checkin.StateScanning
	}, time.Second, 5*time.Millisecond)

	snap, err = h.orch.Submit(ctx, "U2002", "A1")
	require.NoError(t, err)
	require.Equal(t, checkin.StateVerified, snap.State)
	require.Equal(t, "i2", snap.Identity.ID)

	// Once acted on, Bo's repeat frames are suppressed again.
	_, err = h.orch.Submit(ctx, "U2002", "A1")
	require.ErrorIs(t, err, scan.ErrSuppressed)
}
