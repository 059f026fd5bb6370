package testserver

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/syncengine"
)

func TestEndToEnd_OnlineCheckIn(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(t, DefaultSeed)
	st := NewStation(t, reg, StationOptions{AutoConfirm: true})

	snap, err := st.Submit(ctx, "U1001", "")
	require.NoError(t, err)
	require.Equal(t, checkin.StateVerified, snap.State)
	require.Equal(t, "1/2", snap.Result.Progress())
	require.Equal(t, 1, reg.Count(t, "i1", "A1"))

	st.WaitScanning(t)
	snap, err = st.Submit(ctx, "U1002", "B1")
	require.NoError(t, err)
	require.Equal(t, checkin.StateVerified, snap.State)
	require.True(t, snap.Result.Complete())
	require.Equal(t, 1, reg.Count(t, "i2", "B1"))
}

func TestEndToEnd_ConfirmAndUnknownCode(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(t, DefaultSeed)
	st := NewStation(t, reg, StationOptions{})

	snap, err := st.Submit(ctx, "U1001", "")
	require.NoError(t, err)
	require.Equal(t, checkin.StateConfirming, snap.State)
	require.Equal(t, 0, reg.Count(t, "i1", "A1"))

	snap, err = st.Confirm(ctx)
	require.NoError(t, err)
	require.Equal(t, checkin.StateVerified, snap.State)
	require.Equal(t, 1, reg.Count(t, "i1", "A1"))

	st.WaitScanning(t)
	snap, err = st.Submit(ctx, "U9999", "")
	require.NoError(t, err)
	require.Equal(t, checkin.StateError, snap.State)

	pending, err := st.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestEndToEnd_OfflineScansSyncWhenBack(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(t, DefaultSeed)
	st := NewStation(t, reg, StationOptions{AutoConfirm: true})

	reg.SetDown(true)
	for _, code := range []string{"U1001", "U1002", "U9999"} {
		snap, err := st.Submit(ctx, code, "")
		require.NoError(t, err)
		require.Equal(t, checkin.StateSaved, snap.State)
		st.WaitScanning(t)
	}

	pending, err := st.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	require.Equal(t, "U1001", pending[0].Code)

	// Still down: the drain halts without losing anything.
	res, err := st.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, syncengine.HaltOffline, res.Halted)
	require.Equal(t, 3, res.Remaining)

	reg.SetDown(false)
	res, err = st.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Synced)
	require.Equal(t, 1, res.Discarded)
	require.Equal(t, 0, res.Remaining)

	require.Equal(t, 1, reg.Count(t, "i1", "A1"))
	require.Equal(t, 1, reg.Count(t, "i2", "A1"))

	recorded := journal.OutcomeRecorded
	entries, err := st.Journal(ctx, journal.ListOptions{Outcome: &recorded})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.Equal(t, journal.SourceSync, e.Source)
	}
}

func TestEndToEnd_QueueSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(t, DefaultSeed)
	dbPath := filepath.Join(t.TempDir(), "station.db")
	first := NewStation(t, reg, StationOptions{AutoConfirm: true, DBPath: dbPath})

	reg.SetDown(true)
	_, err := first.Submit(ctx, "U1001", "")
	require.NoError(t, err)
	first.WaitScanning(t)
	_, err = first.Submit(ctx, "U1002", "")
	require.NoError(t, err)

	first.Close()
	require.NoError(t, first.DB.Close())

	reg.SetDown(false)
	second := NewStation(t, reg, StationOptions{AutoConfirm: true, DBPath: dbPath})
	pending, err := second.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	res, err := second.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Synced)
	require.Equal(t, 1, reg.Count(t, "i1", "A1"))
	require.Equal(t, 1, reg.Count(t, "i2", "A1"))
}

func TestEndToEnd_HTTPAPI(t *testing.T) {
	reg := NewRegistry(t, DefaultSeed)
	st := NewStation(t, reg, StationOptions{AutoConfirm: true, APIToken: "station-secret"})

	req, err := http.NewRequest(http.MethodPost, st.Server.URL+"/v1/scans", strings.NewReader(`{"payload":"U1001"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPost, st.Server.URL+"/v1/scans", strings.NewReader(`{"payload":"U1001"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer station-secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		State checkin.Snapshot `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, checkin.StateVerified, body.State.State)
	require.Equal(t, 1, reg.Count(t, "i1", "A1"))
}

func TestEndToEnd_MCPOverHTTP(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(t, DefaultSeed)
	st := NewStation(t, reg, StationOptions{AutoConfirm: true})

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &sdkmcp.StreamableClientTransport{Endpoint: st.Server.URL + "/mcp"}, nil)
	require.NoError(t, err)
	defer session.Close()

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "submit_scan",
		Arguments: map[string]any{"payload": "U1002"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, 1, reg.Count(t, "i2", "A1"))

	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "station_status", Arguments: map[string]any{}})
	require.NoError(t, err)
	require.False(t, res.IsError)

	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var status struct {
		StationID string `json:"station_id"`
		Online    bool   `json:"online"`
	}
	require.NoError(t, json.Unmarshal(data, &status))
	require.Equal(t, "gate-2", status.StationID)
	require.True(t, status.Online)
}
