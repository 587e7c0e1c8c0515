// Package usecase implements the customer business logic on top of the entity
// crypto orchestrator.
package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/allisson/fieldcrypt/internal/customer/domain"
	outboxDomain "github.com/allisson/fieldcrypt/internal/outbox/domain"
)

// RegisterCardInput contains the input data of a payment card
type RegisterCardInput struct {
	Pan        string `json:"pan"`
	HolderName string `json:"holder_name"`
}

// RegisterCustomerInput contains the input data for customer registration
type RegisterCustomerInput struct {
	Name            string              `json:"name"`
	Email           string              `json:"email"`
	Phone           string              `json:"phone"`
	DocumentNumber  string              `json:"document_number"`
	DocumentCountry string              `json:"document_country"`
	Cards           []RegisterCardInput `json:"cards"`
}

// UseCase defines the interface for customer business logic operations
type UseCase interface {
	// RegisterCustomer encrypts and stores a new customer of the tenant in ctx.
	RegisterCustomer(ctx context.Context, input RegisterCustomerInput) (*domain.Customer, error)

	// GetCustomer loads and decrypts a customer of the tenant in ctx.
	GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error)

	// FindCustomersByEmail searches customers by email without decrypting the table.
	FindCustomersByEmail(ctx context.Context, email string) ([]*domain.Customer, error)
}

// CustomerRepository interface defines customer repository operations
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	Update(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Customer, error)
	FindIDsByLookupHmac(ctx context.Context, tenantID, alias string, digests []string) ([]uuid.UUID, error)
	ListByKey(ctx context.Context, filter domain.KeyFilter) ([]*domain.Customer, error)
}

// OutboxEventRepository interface defines outbox event repository operations
type OutboxEventRepository interface {
	Create(ctx context.Context, event *outboxDomain.OutboxEvent) error
}
