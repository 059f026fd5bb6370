package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ganot/scanpoint/internal/domain/scan"
	"github.com/ganot/scanpoint/internal/logger"
)

// PendingQueue is the durable FIFO of scans awaiting sync. Safe for concurrent
// use by the live scanning path and the drain loop.
type PendingQueue struct {
	db        *DB
	highWater int
	logger    *slog.Logger
}

// NewPendingQueue creates a queue. Past highWater items every enqueue logs a
// warning; enqueue is never refused. highWater <= 0 disables the warning.
func NewPendingQueue(db *DB, highWater int, log *slog.Logger) *PendingQueue {
	return &PendingQueue{db: db, highWater: highWater, logger: logger.OrDiscard(log)}
}

// Enqueue appends a scan. It returns ErrConflict if the id is already queued.
func (q *PendingQueue) Enqueue(ctx context.Context, item scan.QueuedScan) error {
	if item.ID == "" || item.Code == "" || item.ActivityID == "" {
		return fmt.Errorf("enqueue: %w", scan.ErrInvalidPayload)
	}
	enqueuedAt := item.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now()
	}

	query := `
		INSERT INTO pending_scans (id, code, activity_id, captured_at, enqueued_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := q.db.ExecContext(ctx, query,
		item.ID,
		item.Code,
		item.ActivityID,
		item.CapturedAt.UTC(),
		enqueuedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to enqueue scan: %w", err)
	}

	if q.highWater > 0 {
		if n, err := q.Count(ctx); err == nil && n > q.highWater {
			ctx = logger.WithFields(ctx, logger.Fields{Component: "scanpoint.queue", ScanID: item.ID})
			q.logger.WarnContext(ctx, "pending queue above high-water mark", "pending", n, "high_water_mark", q.highWater)
		}
	}
	return nil
}

// PeekAll returns every queued scan in capture order without removing any.
func (q *PendingQueue) PeekAll(ctx context.Context) ([]scan.QueuedScan, error) {
	query := `
		SELECT id, code, activity_id, captured_at, enqueued_at, attempts, last_error
		FROM pending_scans
		ORDER BY seq ASC
	`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending scans: %w", err)
	}
	defer rows.Close()

	var items []scan.QueuedScan
	for rows.Next() {
		var item scan.QueuedScan
		if err := rows.Scan(
			&item.ID,
			&item.Code,
			&item.ActivityID,
			&item.CapturedAt,
			&item.EnqueuedAt,
			&item.Attempts,
			&item.LastError,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending scan: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending scans: %w", err)
	}
	return items, nil
}

// Remove deletes a scan. Removing an id that is not queued returns ErrNotFound.
func (q *PendingQueue) Remove(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM pending_scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove pending scan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check remove result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAttempt records a failed sync attempt on a retained scan.
func (q *PendingQueue) MarkAttempt(ctx context.Context, id, lastError string) error {
	result, err := q.db.ExecContext(ctx,
		`UPDATE pending_scans SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		lastError, id)
	if err != nil {
		return fmt.Errorf("failed to mark attempt: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check attempt result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of queued scans.
func (q *PendingQueue) Count(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_scans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending scans: %w", err)
	}
	return n, nil
}
