package syncengine

import (
	"context"

	"github.com/ganot/scanpoint/internal/connectivity"
	"github.com/ganot/scanpoint/internal/domain/scan"
)

// Queue is the part of the pending queue the drain loop needs.
type Queue interface {
	PeekAll(ctx context.Context) ([]scan.QueuedScan, error)
	Remove(ctx context.Context, id string) error
	MarkAttempt(ctx context.Context, id, lastError string) error
	Count(ctx context.Context) (int, error)
}

// Monitor reports connectivity and its transitions.
type Monitor interface {
	Online() bool
	Subscribe() (<-chan connectivity.Event, func())
}
