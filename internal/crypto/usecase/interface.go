package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

// CryptoKeyRepository defines persistence operations for crypto keys.
type CryptoKeyRepository interface {
	// Create stores a new key with its wrapped material.
	Create(ctx context.Context, key *cryptoDomain.CryptoKey) error

	// Get retrieves a key by id, including soft-deleted keys.
	Get(ctx context.Context, id uuid.UUID) (*cryptoDomain.CryptoKey, error)

	// List returns every key that is not marked for deletion, newest first.
	List(ctx context.Context) ([]*cryptoDomain.CryptoKey, error)

	// UpdateRotationMode changes the rotation mode of a live key.
	UpdateRotationMode(ctx context.Context, id uuid.UUID, mode cryptoDomain.RotationMode) error

	// MarkForDeletion soft deletes a live key.
	MarkForDeletion(ctx context.Context, id uuid.UUID, deletedAt time.Time) error
}

// KeyProvider resolves unwrapped keys for the tenant stored in the context.
type KeyProvider interface {
	// CurrentEncryptionKey returns the key new payloads are encrypted with, or nil if none is active.
	CurrentEncryptionKey(ctx context.Context) (*cryptoDomain.CryptoKey, error)

	// CurrentHmacKeys returns every active hmac key of the tenant, newest first.
	CurrentHmacKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error)

	// AllCryptoKeys returns every live key of every tenant, newest first.
	AllCryptoKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error)

	// KeyByID returns a live key regardless of tenant.
	KeyByID(ctx context.Context, id uuid.UUID) (*cryptoDomain.CryptoKey, error)

	// Invalidate drops the cached keys so the next call reloads them.
	Invalidate()
}

// KeyUseCase manages the key lifecycle.
type KeyUseCase interface {
	// Create generates, wraps and stores a new key.
	Create(ctx context.Context, input cryptoService.CreateKeyInput) (*cryptoDomain.CryptoKey, error)

	// SetRotationMode starts or ends a key transition.
	SetRotationMode(ctx context.Context, id uuid.UUID, mode cryptoDomain.RotationMode) error

	// MarkKeyForDeletion retires a key once no record depends on it.
	MarkKeyForDeletion(ctx context.Context, key *cryptoDomain.CryptoKey) error

	// List returns every live key, newest first, without key material.
	List(ctx context.Context) ([]*cryptoDomain.CryptoKey, error)
}
