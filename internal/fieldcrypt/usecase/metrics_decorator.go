package usecase

import (
	"context"
	"time"

	"github.com/allisson/fieldcrypt/internal/entity"
	"github.com/allisson/fieldcrypt/internal/metrics"
)

// entityCryptoUseCaseWithMetrics decorates EntityCryptoUseCase with metrics instrumentation.
type entityCryptoUseCaseWithMetrics struct {
	next    EntityCryptoUseCase
	metrics metrics.BusinessMetrics
}

// NewEntityCryptoUseCaseWithMetrics wraps an EntityCryptoUseCase with metrics recording.
func NewEntityCryptoUseCaseWithMetrics(
	useCase EntityCryptoUseCase,
	m metrics.BusinessMetrics,
) EntityCryptoUseCase {
	return &entityCryptoUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Register delegates without recording metrics.
func (e *entityCryptoUseCaseWithMetrics) Register(descriptors ...entity.Descriptor) error {
	return e.next.Register(descriptors...)
}

// Metadata delegates without recording metrics.
func (e *entityCryptoUseCaseWithMetrics) Metadata(value any) (*entity.Metadata, bool) {
	return e.next.Metadata(value)
}

// Encrypt records metrics for encrypt operations.
func (e *entityCryptoUseCaseWithMetrics) Encrypt(ctx context.Context, value any) error {
	start := time.Now()
	err := e.next.Encrypt(ctx, value)
	e.record(ctx, "encrypt", start, err)
	return err
}

// EncryptWith records metrics for encrypt operations with an explicit resolver.
func (e *entityCryptoUseCaseWithMetrics) EncryptWith(ctx context.Context, value any, resolver KeyResolver) error {
	start := time.Now()
	err := e.next.EncryptWith(ctx, value, resolver)
	e.record(ctx, "encrypt_with", start, err)
	return err
}

// Decrypt records metrics for decrypt operations.
func (e *entityCryptoUseCaseWithMetrics) Decrypt(ctx context.Context, value any) error {
	start := time.Now()
	err := e.next.Decrypt(ctx, value)
	e.record(ctx, "decrypt", start, err)
	return err
}

// EncryptAndSave records metrics for encrypt-and-save operations.
func (e *entityCryptoUseCaseWithMetrics) EncryptAndSave(
	ctx context.Context,
	value any,
	save SaveFunc,
) (any, error) {
	start := time.Now()
	saved, err := e.next.EncryptAndSave(ctx, value, save)
	e.record(ctx, "encrypt_and_save", start, err)
	return saved, err
}

func (e *entityCryptoUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	e.metrics.RecordOperation(ctx, "fieldcrypt", operation, status)
	e.metrics.RecordDuration(ctx, "fieldcrypt", operation, time.Since(start), status)
}
