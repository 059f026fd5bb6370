package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/scan"
	"github.com/ganot/scanpoint/internal/domain/syncengine"
)

type stationStub struct {
	snap      checkin.Snapshot
	submitErr error
	decideErr error
	lastScan  [2]string
	triggered bool
	pending   []scan.QueuedScan
	entries   []journal.Entry
	lastOpts  journal.ListOptions
}

func (s *stationStub) ID() string         { return "gate-2" }
func (s *stationStub) ActivityID() string { return "A1" }
func (s *stationStub) Online() bool       { return true }

func (s *stationStub) Submit(_ context.Context, payload, activityID string) (checkin.Snapshot, error) {
	s.lastScan = [2]string{payload, activityID}
	return s.snap, s.submitErr
}

func (s *stationStub) Confirm(context.Context) (checkin.Snapshot, error) { return s.snap, s.decideErr }
func (s *stationStub) Reject(context.Context) (checkin.Snapshot, error)  { return s.snap, s.decideErr }
func (s *stationStub) Snapshot() checkin.Snapshot                        { return s.snap }

func (s *stationStub) SyncStatus(context.Context) (syncengine.Status, error) {
	return syncengine.Status{
		Pending:    len(s.pending),
		LastResult: &syncengine.Result{Synced: 4, Halted: syncengine.HaltOffline, FinishedAt: time.Now()},
	}, nil
}

func (s *stationStub) TriggerSync() bool {
	if s.triggered {
		return false
	}
	s.triggered = true
	return true
}

func (s *stationStub) Pending(context.Context) ([]scan.QueuedScan, error) { return s.pending, nil }

func (s *stationStub) Journal(_ context.Context, opts journal.ListOptions) ([]journal.Entry, error) {
	s.lastOpts = opts
	return s.entries, nil
}

func connect(t *testing.T, st Station) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := NewServer(Config{Station: st, Version: "test"})
	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call[T any](t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any) (T, *sdkmcp.CallToolResult) {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)

	var out T
	if !res.IsError {
		data, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return out, res
}

func TestServer_ListsTools(t *testing.T) {
	cs := connect(t, &stationStub{})

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{
		"submit_scan",
		"confirm_checkin",
		"reject_checkin",
		"station_status",
		"list_pending",
		"trigger_sync",
		"recent_checkins",
	}, names)
}

func TestTool_SubmitScan(t *testing.T) {
	st := &stationStub{snap: checkin.Snapshot{
		Seq:      2,
		State:    checkin.StateVerified,
		Message:  "Ana registered 1/2",
		Identity: &checkin.Identity{ID: "i1", Code: "U1001", DisplayName: "Ana"},
		Result:   &checkin.WriteResult{Status: checkin.StatusRecorded, Count: 1, Required: 2},
	}}
	cs := connect(t, st)

	out, res := call[SubmitScanOutput](t, cs, "submit_scan", map[string]any{"payload": "U1001"})
	require.False(t, res.IsError)
	require.Equal(t, [2]string{"U1001", ""}, st.lastScan)
	require.Equal(t, "verified", out.State.State)
	require.Equal(t, "1/2", out.State.Progress)
	require.False(t, out.State.Complete)
	require.Equal(t, "Ana", out.State.Identity.DisplayName)
}

func TestTool_SubmitScanSuppressed(t *testing.T) {
	st := &stationStub{snap: checkin.Snapshot{State: checkin.StateScanning}, submitErr: scan.ErrSuppressed}
	cs := connect(t, st)

	out, res := call[SubmitScanOutput](t, cs, "submit_scan", map[string]any{"payload": "U1001"})
	require.False(t, res.IsError)
	require.True(t, out.Suppressed)
}

func TestTool_SubmitScanBusy(t *testing.T) {
	st := &stationStub{submitErr: checkin.ErrBusy}
	cs := connect(t, st)

	_, res := call[SubmitScanOutput](t, cs, "submit_scan", map[string]any{"payload": "U1001"})
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	require.Contains(t, text.Text, "BUSY")
}

func TestTool_ConfirmWithoutPending(t *testing.T) {
	st := &stationStub{decideErr: checkin.ErrNoPendingConfirmation}
	cs := connect(t, st)

	_, res := call[StateOutput](t, cs, "confirm_checkin", nil)
	require.True(t, res.IsError)
	_, res = call[StateOutput](t, cs, "reject_checkin", nil)
	require.True(t, res.IsError)
}

func TestTool_StationStatus(t *testing.T) {
	st := &stationStub{
		snap:    checkin.Snapshot{State: checkin.StateSaved},
		pending: []scan.QueuedScan{{ID: "s1"}, {ID: "s2"}},
	}
	cs := connect(t, st)

	out, _ := call[StationStatusOutput](t, cs, "station_status", nil)
	require.Equal(t, "gate-2", out.StationID)
	require.Equal(t, "A1", out.ActivityID)
	require.True(t, out.Online)
	require.Equal(t, "saved", out.State.State)
	require.Equal(t, 2, out.Sync.Pending)
	require.Equal(t, 4, out.Sync.LastSynced)
	require.Equal(t, "offline", out.Sync.LastHalted)
}

func TestTool_ListPendingAndTrigger(t *testing.T) {
	captured := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	st := &stationStub{pending: []scan.QueuedScan{
		{ID: "s1", Code: "U1001", ActivityID: "A1", CapturedAt: captured, Attempts: 2, LastError: "timeout"},
	}}
	cs := connect(t, st)

	pending, _ := call[ListPendingOutput](t, cs, "list_pending", nil)
	require.Equal(t, 1, pending.Count)
	require.Equal(t, "2026-03-01T09:00:00Z", pending.Items[0].CapturedAt)
	require.Equal(t, 2, pending.Items[0].Attempts)

	trig, _ := call[TriggerSyncOutput](t, cs, "trigger_sync", nil)
	require.True(t, trig.Triggered)
	trig, _ = call[TriggerSyncOutput](t, cs, "trigger_sync", nil)
	require.False(t, trig.Triggered)
}

func TestTool_RecentCheckins(t *testing.T) {
	st := &stationStub{entries: []journal.Entry{
		{ScanID: "s1", Outcome: journal.OutcomeRecorded, Source: journal.SourceSync, CreatedAt: time.Now()},
	}}
	cs := connect(t, st)

	out, _ := call[RecentCheckinsOutput](t, cs, "recent_checkins", map[string]any{"activity_id": "A1", "outcome": "recorded", "limit": 5})
	require.Len(t, out.Entries, 1)
	require.Equal(t, "sync", out.Entries[0].Source)
	require.Equal(t, "A1", st.lastOpts.ActivityID)
	require.Equal(t, 5, st.lastOpts.Limit)
	require.Equal(t, journal.OutcomeRecorded, *st.lastOpts.Outcome)
}

func TestServer_ReadsDocs(t *testing.T) {
	cs := connect(t, &stationStub{})

	res, err := cs.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: "scanpoint://docs/states"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Contains(t, res.Contents[0].Text, "confirming")
}

func TestMapError(t *testing.T) {
	require.Nil(t, MapError(nil))
	require.Equal(t, "BUSY", MapError(checkin.ErrBusy).Code)
	require.Equal(t, "NO_ACTIVITY", MapError(scan.ErrMissingActivity).Code)
	require.Equal(t, "INVALID_INPUT", MapError(checkin.ErrInvalidInput).Code)
	require.Equal(t, "INTERNAL", MapError(context.DeadlineExceeded).Code)
}
