package mocks

import (
	"context"

	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/scan"
	"github.com/stretchr/testify/mock"
)

// JournalRepository is a mock for journal.Repository.
type JournalRepository struct {
	mock.Mock
}

func (m *JournalRepository) Append(ctx context.Context, entry *journal.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *JournalRepository) List(ctx context.Context, opts journal.ListOptions) ([]journal.Entry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]journal.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// Journal is a mock for checkin.Journal.
type Journal struct {
	mock.Mock
}

func (m *Journal) LogEntry(ctx context.Context, entry *journal.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// IdentityResolver is a mock for checkin.IdentityResolver.
type IdentityResolver struct {
	mock.Mock
}

func (m *IdentityResolver) Resolve(ctx context.Context, code string) (*checkin.Identity, error) {
	args := m.Called(ctx, code)
	if identity, ok := args.Get(0).(*checkin.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

// AttendanceStore is a mock for checkin.AttendanceStore.
type AttendanceStore struct {
	mock.Mock
}

func (m *AttendanceStore) Activity(ctx context.Context, activityID string) (*checkin.Activity, error) {
	args := m.Called(ctx, activityID)
	if activity, ok := args.Get(0).(*checkin.Activity); ok {
		return activity, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AttendanceStore) CountCheckIns(ctx context.Context, identityID, activityID string) (int, error) {
	args := m.Called(ctx, identityID, activityID)
	return args.Int(0), args.Error(1)
}

func (m *AttendanceStore) InsertCheckIn(ctx context.Context, in checkin.CheckIn) (checkin.InsertResult, error) {
	args := m.Called(ctx, in)
	if res, ok := args.Get(0).(checkin.InsertResult); ok {
		return res, args.Error(1)
	}
	return checkin.InsertResult{}, args.Error(1)
}

// AttendanceWriter is a mock for checkin.AttendanceWriter.
type AttendanceWriter struct {
	mock.Mock
}

func (m *AttendanceWriter) Record(ctx context.Context, in checkin.CheckIn) (checkin.WriteResult, error) {
	args := m.Called(ctx, in)
	if res, ok := args.Get(0).(checkin.WriteResult); ok {
		return res, args.Error(1)
	}
	return checkin.WriteResult{}, args.Error(1)
}

// PendingQueue is a mock for checkin.PendingQueue and syncengine.Queue.
type PendingQueue struct {
	mock.Mock
}

func (m *PendingQueue) Enqueue(ctx context.Context, item scan.QueuedScan) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *PendingQueue) PeekAll(ctx context.Context) ([]scan.QueuedScan, error) {
	args := m.Called(ctx)
	if items, ok := args.Get(0).([]scan.QueuedScan); ok {
		return items, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PendingQueue) Remove(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *PendingQueue) MarkAttempt(ctx context.Context, id, lastError string) error {
	args := m.Called(ctx, id, lastError)
	return args.Error(0)
}

func (m *PendingQueue) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// ConnectivityStatus is a mock for checkin.ConnectivityStatus.
type ConnectivityStatus struct {
	mock.Mock
}

func (m *ConnectivityStatus) Online() bool {
	args := m.Called()
	return args.Bool(0)
}
