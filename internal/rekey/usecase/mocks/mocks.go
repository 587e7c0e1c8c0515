// Package mocks provides testify mocks for the rekey use case interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/rekey/domain"
)

// MockRecordStore is a mock implementation of usecase.RecordStore.
type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) EntityName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockRecordStore) FindRecordsNotUsingKey(
	ctx context.Context,
	key *cryptoDomain.CryptoKey,
	after string,
	limit int,
) (domain.Batch, error) {
	args := m.Called(ctx, key, after, limit)
	return args.Get(0).(domain.Batch), args.Error(1)
}

func (m *MockRecordStore) FindRecordsUsingKey(
	ctx context.Context,
	key *cryptoDomain.CryptoKey,
	after string,
	limit int,
) (domain.Batch, error) {
	args := m.Called(ctx, key, after, limit)
	return args.Get(0).(domain.Batch), args.Error(1)
}

func (m *MockRecordStore) Save(ctx context.Context, records []any) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockRecordStore) Notify(ctx context.Context, event domain.RekeyFinishedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockKeyLifecycleManager is a mock implementation of usecase.KeyLifecycleManager.
type MockKeyLifecycleManager struct {
	mock.Mock
}

func (m *MockKeyLifecycleManager) MarkKeyForDeletion(ctx context.Context, key *cryptoDomain.CryptoKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockUseCase is a mock implementation of usecase.UseCase
type MockUseCase struct {
	mock.Mock
}

func (m *MockUseCase) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUseCase) Tick(ctx context.Context) (domain.TickResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.TickResult), args.Error(1)
}

func (m *MockUseCase) LastTick() (domain.TickResult, bool) {
	args := m.Called()
	return args.Get(0).(domain.TickResult), args.Bool(1)
}
