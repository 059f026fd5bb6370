package checkin

import (
	"context"

	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/scan"
)

// IdentityResolver looks a bearer code up in the remote directory.
// It returns ErrNotFound for unknown codes and ErrNetwork for transient failures.
type IdentityResolver interface {
	Resolve(ctx context.Context, code string) (*Identity, error)
}

// AttendanceStore is the remote system of record for check-ins.
type AttendanceStore interface {
	Activity(ctx context.Context, activityID string) (*Activity, error)
	CountCheckIns(ctx context.Context, identityID, activityID string) (int, error)
	InsertCheckIn(ctx context.Context, in CheckIn) (InsertResult, error)
}

// AttendanceWriter records a check-in, applying cap and duplicate rules.
type AttendanceWriter interface {
	Record(ctx context.Context, in CheckIn) (WriteResult, error)
}

// PendingQueue holds scans that could not be processed live.
type PendingQueue interface {
	Enqueue(ctx context.Context, item scan.QueuedScan) error
}

// ConnectivityStatus reports the current online state.
type ConnectivityStatus interface {
	Online() bool
}

// Journal appends check-in outcomes to the local log.
type Journal interface {
	LogEntry(ctx context.Context, entry *journal.Entry) error
}
