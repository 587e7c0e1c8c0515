// Package mocks provides testify mocks for the customer use case dependencies.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/customer/domain"
	"github.com/allisson/fieldcrypt/internal/customer/usecase"
	outboxDomain "github.com/allisson/fieldcrypt/internal/outbox/domain"
)

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

// MockCustomerRepository is a mock implementation of usecase.CustomerRepository
type MockCustomerRepository struct {
	mock.Mock
}

var _ usecase.CustomerRepository = (*MockCustomerRepository)(nil)

func (m *MockCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *MockCustomerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *MockCustomerRepository) GetByID(
	ctx context.Context,
	tenantID string,
	id uuid.UUID,
) (*domain.Customer, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindIDsByLookupHmac(
	ctx context.Context,
	tenantID, alias string,
	digests []string,
) ([]uuid.UUID, error) {
	args := m.Called(ctx, tenantID, alias, digests)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockCustomerRepository) ListByKey(
	ctx context.Context,
	filter domain.KeyFilter,
) ([]*domain.Customer, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Customer), args.Error(1)
}

// MockOutboxEventRepository is a mock implementation of usecase.OutboxEventRepository
type MockOutboxEventRepository struct {
	mock.Mock
}

func (m *MockOutboxEventRepository) Create(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockHasher fills every digest with a fixed function of its key and value.
type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) Hmac(holders []*cryptoDomain.HmacHolder) error {
	args := m.Called(holders)
	if err := args.Error(0); err != nil {
		return err
	}
	for _, holder := range holders {
		holder.Digest = holder.Key.ID.String() + ":" + holder.Value
	}
	return nil
}

// MockUseCase is a mock implementation of usecase.UseCase
type MockUseCase struct {
	mock.Mock
}

var _ usecase.UseCase = (*MockUseCase)(nil)

func (m *MockUseCase) RegisterCustomer(
	ctx context.Context,
	input usecase.RegisterCustomerInput,
) (*domain.Customer, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockUseCase) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockUseCase) FindCustomersByEmail(ctx context.Context, email string) ([]*domain.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Customer), args.Error(1)
}
