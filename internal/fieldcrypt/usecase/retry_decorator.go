package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/entity"
)

// RetryConfig controls the retry decorator.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// entityCryptoUseCaseWithRetry runs every encrypt and decrypt attempt on the
// worker pool and retries transient failures with exponential backoff. The wait
// between attempts happens on the caller's goroutine, leaving the workers free.
type entityCryptoUseCaseWithRetry struct {
	next   EntityCryptoUseCase
	pool   *WorkerPool
	config RetryConfig
	logger *slog.Logger
}

// NewEntityCryptoUseCaseWithRetry wraps an EntityCryptoUseCase with pooled retries.
func NewEntityCryptoUseCaseWithRetry(
	useCase EntityCryptoUseCase,
	pool *WorkerPool,
	config RetryConfig,
	logger *slog.Logger,
) EntityCryptoUseCase {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &entityCryptoUseCaseWithRetry{
		next:   useCase,
		pool:   pool,
		config: config,
		logger: logger,
	}
}

func (r *entityCryptoUseCaseWithRetry) Register(descriptors ...entity.Descriptor) error {
	return r.next.Register(descriptors...)
}

func (r *entityCryptoUseCaseWithRetry) Metadata(e any) (*entity.Metadata, bool) {
	return r.next.Metadata(e)
}

func (r *entityCryptoUseCaseWithRetry) Encrypt(ctx context.Context, e any) error {
	return r.retry(ctx, "encrypt", func() error {
		return r.next.Encrypt(ctx, e)
	})
}

func (r *entityCryptoUseCaseWithRetry) EncryptWith(ctx context.Context, e any, resolver KeyResolver) error {
	return r.retry(ctx, "encrypt", func() error {
		return r.next.EncryptWith(ctx, e, resolver)
	})
}

func (r *entityCryptoUseCaseWithRetry) Decrypt(ctx context.Context, e any) error {
	return r.retry(ctx, "decrypt", func() error {
		return r.next.Decrypt(ctx, e)
	})
}

// EncryptAndSave retries the encryption step only; save runs once.
func (r *entityCryptoUseCaseWithRetry) EncryptAndSave(ctx context.Context, e any, save SaveFunc) (any, error) {
	return encryptAndSave(ctx, r, e, save)
}

func (r *entityCryptoUseCaseWithRetry) newBackOff(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.config.InitialDelay
	policy.Multiplier = r.config.Multiplier
	policy.RandomizationFactor = 0
	policy.MaxInterval = time.Duration(
		float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(r.config.MaxAttempts)),
	)
	policy.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.config.MaxAttempts-1)), ctx)
}

func (r *entityCryptoUseCaseWithRetry) retry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			attempt++
			err := r.pool.Submit(ctx, fn)
			if err == nil {
				return nil
			}
			if !cryptoDomain.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		r.newBackOff(ctx),
		func(err error, wait time.Duration) {
			r.logger.Warn("retrying crypto operation",
				slog.String("operation", operation),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.Any("error", err),
			)
		},
	)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %s interrupted: %v", cryptoDomain.ErrNonTransient, operation, err)
	}
	return err
}
