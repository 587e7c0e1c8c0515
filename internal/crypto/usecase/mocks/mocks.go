// Package mocks provides testify mocks for the crypto use case interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

// MockCryptoKeyRepository is a mock implementation of usecase.CryptoKeyRepository.
type MockCryptoKeyRepository struct {
	mock.Mock
}

func (m *MockCryptoKeyRepository) Create(ctx context.Context, key *cryptoDomain.CryptoKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCryptoKeyRepository) Get(ctx context.Context, id uuid.UUID) (*cryptoDomain.CryptoKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.CryptoKey), args.Error(1)
}

func (m *MockCryptoKeyRepository) List(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cryptoDomain.CryptoKey), args.Error(1)
}

func (m *MockCryptoKeyRepository) UpdateRotationMode(
	ctx context.Context,
	id uuid.UUID,
	mode cryptoDomain.RotationMode,
) error {
	args := m.Called(ctx, id, mode)
	return args.Error(0)
}

func (m *MockCryptoKeyRepository) MarkForDeletion(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	args := m.Called(ctx, id, deletedAt)
	return args.Error(0)
}

// MockKeyProvider is a mock implementation of usecase.KeyProvider.
type MockKeyProvider struct {
	mock.Mock
}

func (m *MockKeyProvider) CurrentEncryptionKey(ctx context.Context) (*cryptoDomain.CryptoKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.CryptoKey), args.Error(1)
}

func (m *MockKeyProvider) CurrentHmacKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cryptoDomain.CryptoKey), args.Error(1)
}

func (m *MockKeyProvider) AllCryptoKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cryptoDomain.CryptoKey), args.Error(1)
}

func (m *MockKeyProvider) KeyByID(ctx context.Context, id uuid.UUID) (*cryptoDomain.CryptoKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.CryptoKey), args.Error(1)
}

func (m *MockKeyProvider) Invalidate() {
	m.Called()
}

// MockKeyUseCase is a mock implementation of usecase.KeyUseCase.
type MockKeyUseCase struct {
	mock.Mock
}

func (m *MockKeyUseCase) Create(
	ctx context.Context,
	input cryptoService.CreateKeyInput,
) (*cryptoDomain.CryptoKey, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.CryptoKey), args.Error(1)
}

func (m *MockKeyUseCase) SetRotationMode(ctx context.Context, id uuid.UUID, mode cryptoDomain.RotationMode) error {
	args := m.Called(ctx, id, mode)
	return args.Error(0)
}

func (m *MockKeyUseCase) MarkKeyForDeletion(ctx context.Context, key *cryptoDomain.CryptoKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockKeyUseCase) List(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cryptoDomain.CryptoKey), args.Error(1)
}
