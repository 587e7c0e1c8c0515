package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/fieldcrypt/internal/customer/domain"
	"github.com/allisson/fieldcrypt/internal/metrics"
)

// customerUseCaseWithMetrics decorates UseCase with metrics instrumentation.
type customerUseCaseWithMetrics struct {
	next    UseCase
	metrics metrics.BusinessMetrics
}

// NewCustomerUseCaseWithMetrics wraps a UseCase with metrics recording.
func NewCustomerUseCaseWithMetrics(useCase UseCase, m metrics.BusinessMetrics) UseCase {
	return &customerUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// RegisterCustomer records metrics for customer registration.
func (c *customerUseCaseWithMetrics) RegisterCustomer(
	ctx context.Context,
	input RegisterCustomerInput,
) (*domain.Customer, error) {
	start := time.Now()
	customer, err := c.next.RegisterCustomer(ctx, input)
	c.record(ctx, "register", start, err)
	return customer, err
}

// GetCustomer records metrics for customer reads.
func (c *customerUseCaseWithMetrics) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	start := time.Now()
	customer, err := c.next.GetCustomer(ctx, id)
	c.record(ctx, "get", start, err)
	return customer, err
}

// FindCustomersByEmail records metrics for email searches.
func (c *customerUseCaseWithMetrics) FindCustomersByEmail(
	ctx context.Context,
	email string,
) ([]*domain.Customer, error) {
	start := time.Now()
	customers, err := c.next.FindCustomersByEmail(ctx, email)
	c.record(ctx, "find_by_email", start, err)
	return customers, err
}

func (c *customerUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	c.metrics.RecordOperation(ctx, "customer", operation, status)
	c.metrics.RecordDuration(ctx, "customer", operation, time.Since(start), status)
}
