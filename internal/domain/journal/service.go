package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ganot/scanpoint/internal/logger"
)

const defaultListLimit = 50

// Service handles journal operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new journal service.
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger.OrDiscard(log), now: time.Now}
}

// LogEntry appends an entry, stamping the current time if missing.
func (s *Service) LogEntry(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.Outcome == "" {
		return ErrInvalidInput
	}
	if entry.Source == "" {
		entry.Source = SourceLive
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("appending journal entry: %w", err)
	}
	s.logger.DebugContext(ctx, "journal entry appended", "outcome", entry.Outcome, "source", entry.Source)
	return nil
}

// Recent lists journal entries, newest first.
func (s *Service) Recent(ctx context.Context, opts ListOptions) ([]Entry, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	return s.repo.List(ctx, opts)
}
