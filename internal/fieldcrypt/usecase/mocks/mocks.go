// Package mocks provides testify mocks for the entity crypto use case.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/fieldcrypt/internal/entity"
	"github.com/allisson/fieldcrypt/internal/fieldcrypt/usecase"
)

// MockEntityCryptoUseCase is a mock implementation of usecase.EntityCryptoUseCase.
type MockEntityCryptoUseCase struct {
	mock.Mock
}

var _ usecase.EntityCryptoUseCase = (*MockEntityCryptoUseCase)(nil)

func (m *MockEntityCryptoUseCase) Register(descriptors ...entity.Descriptor) error {
	args := m.Called(descriptors)
	return args.Error(0)
}

func (m *MockEntityCryptoUseCase) Metadata(e any) (*entity.Metadata, bool) {
	args := m.Called(e)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*entity.Metadata), args.Bool(1)
}

func (m *MockEntityCryptoUseCase) Encrypt(ctx context.Context, e any) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEntityCryptoUseCase) EncryptWith(
	ctx context.Context,
	e any,
	resolver usecase.KeyResolver,
) error {
	args := m.Called(ctx, e, resolver)
	return args.Error(0)
}

func (m *MockEntityCryptoUseCase) Decrypt(ctx context.Context, e any) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEntityCryptoUseCase) EncryptAndSave(
	ctx context.Context,
	e any,
	save usecase.SaveFunc,
) (any, error) {
	args := m.Called(ctx, e, save)
	return args.Get(0), args.Error(1)
}
