package journal_test

import (
	"context"
	"testing"

	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestJournalService_LogAndList(t *testing.T) {
	ctx := context.Background()

	repo := &mocks.JournalRepository{}
	entry := &journal.Entry{
		ScanID:     "scan1",
		ActivityID: "A1",
		Outcome:    journal.OutcomeRecorded,
	}

	repo.On("Append", ctx, entry).Return(nil)
	repo.On("List", ctx, journal.ListOptions{ActivityID: "A1", Limit: 50}).Return([]journal.Entry{*entry}, nil)

	svc := journal.NewService(repo, nil)
	require.NoError(t, svc.LogEntry(ctx, entry))
	require.Equal(t, journal.SourceLive, entry.Source)
	require.False(t, entry.CreatedAt.IsZero())

	entries, err := svc.Recent(ctx, journal.ListOptions{ActivityID: "A1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	repo.AssertExpectations(t)
}

func TestJournalService_RejectsEmptyOutcome(t *testing.T) {
	repo := &mocks.JournalRepository{}
	svc := journal.NewService(repo, nil)

	require.ErrorIs(t, svc.LogEntry(context.Background(), &journal.Entry{}), journal.ErrInvalidInput)
	require.ErrorIs(t, svc.LogEntry(context.Background(), nil), journal.ErrInvalidInput)
	repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}
