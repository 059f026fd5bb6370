package mcp

import (
	"context"
	"errors"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/scan"
)

func registerTools(server *sdkmcp.Server, st Station) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "submit_scan",
		Description: "Submit one decoded code to the station, as if it had been scanned",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in SubmitScanInput) (*sdkmcp.CallToolResult, SubmitScanOutput, error) {
		snap, err := st.Submit(ctx, in.Payload, in.ActivityID)
		if errors.Is(err, scan.ErrSuppressed) {
			return nil, SubmitScanOutput{Suppressed: true, State: toStateView(snap)}, nil
		}
		if err != nil {
			return nil, SubmitScanOutput{}, MapError(err)
		}
		return nil, SubmitScanOutput{State: toStateView(snap)}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "confirm_checkin",
		Description: "Confirm the identity awaiting confirmation and record the check-in",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ NoInput) (*sdkmcp.CallToolResult, StateOutput, error) {
		snap, err := st.Confirm(ctx)
		if err != nil {
			return nil, StateOutput{}, MapError(err)
		}
		return nil, StateOutput{State: toStateView(snap)}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "reject_checkin",
		Description: "Reject the identity awaiting confirmation without recording anything",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ NoInput) (*sdkmcp.CallToolResult, StateOutput, error) {
		snap, err := st.Reject(ctx)
		if err != nil {
			return nil, StateOutput{}, MapError(err)
		}
		return nil, StateOutput{State: toStateView(snap)}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "station_status",
		Description: "Current screen state, connectivity and background sync status",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ NoInput) (*sdkmcp.CallToolResult, StationStatusOutput, error) {
		status, err := st.SyncStatus(ctx)
		if err != nil {
			return nil, StationStatusOutput{}, MapError(err)
		}
		return nil, StationStatusOutput{
			StationID:  st.ID(),
			ActivityID: st.ActivityID(),
			Online:     st.Online(),
			State:      toStateView(st.Snapshot()),
			Sync:       toSyncView(status),
		}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_pending",
		Description: "List scans waiting for sync, oldest first",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ NoInput) (*sdkmcp.CallToolResult, ListPendingOutput, error) {
		items, err := st.Pending(ctx)
		if err != nil {
			return nil, ListPendingOutput{}, MapError(err)
		}
		out := ListPendingOutput{Count: len(items), Items: make([]PendingScanView, 0, len(items))}
		for _, item := range items {
			out.Items = append(out.Items, toPendingView(item))
		}
		return nil, out, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "trigger_sync",
		Description: "Ask the background sync to drain the pending queue now",
	}, func(_ context.Context, _ *sdkmcp.CallToolRequest, _ NoInput) (*sdkmcp.CallToolResult, TriggerSyncOutput, error) {
		if st.TriggerSync() {
			return nil, TriggerSyncOutput{Triggered: true, Message: "sync requested"}, nil
		}
		return nil, TriggerSyncOutput{Message: "sync already in progress"}, nil
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "recent_checkins",
		Description: "List the station's check-in journal, newest first",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in RecentCheckinsInput) (*sdkmcp.CallToolResult, RecentCheckinsOutput, error) {
		opts := journal.ListOptions{ActivityID: in.ActivityID, Limit: in.Limit}
		if in.Outcome != "" {
			outcome := journal.Outcome(in.Outcome)
			opts.Outcome = &outcome
		}
		entries, err := st.Journal(ctx, opts)
		if err != nil {
			return nil, RecentCheckinsOutput{}, MapError(err)
		}
		out := RecentCheckinsOutput{Entries: make([]JournalEntryView, 0, len(entries))}
		for _, e := range entries {
			out.Entries = append(out.Entries, toJournalView(e))
		}
		return nil, out, nil
	})
}
