// Package usecase implements the crypto orchestrator: it walks registered entities,
// computes their digests, encrypts their confidential fields into one payload and
// reverses the process on read.
package usecase

import (
	"context"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/entity"
)

// KeyProvider supplies the current keys of the tenant stored in the context.
type KeyProvider interface {
	CurrentEncryptionKey(ctx context.Context) (*cryptoDomain.CryptoKey, error)
	CurrentHmacKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error)
}

// KeyResolver selects the keys used by one encrypt call. Rekey runs supply their
// own resolver to target a specific key.
type KeyResolver interface {
	// EncryptionKey returns the payload key, or nil when the payload must not be encrypted.
	EncryptionKey(ctx context.Context) (*cryptoDomain.CryptoKey, error)

	// HmacKeys returns the keys digests are computed with.
	HmacKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error)
}

// SaveFunc persists an encrypted entity and returns the stored instance.
type SaveFunc func(ctx context.Context, entity any) (any, error)

// EntityCryptoUseCase encrypts and decrypts registered entities in place.
type EntityCryptoUseCase interface {
	// Register classifies entity types and binds their hmac strategies.
	Register(descriptors ...entity.Descriptor) error

	// Metadata returns the classification of the entity's type.
	Metadata(e any) (*entity.Metadata, bool)

	// Encrypt computes digests and encrypts the payload with the current keys.
	// Slices of entities are processed element by element; nil is a no-op.
	Encrypt(ctx context.Context, e any) error

	// EncryptWith is Encrypt with the keys chosen by resolver.
	EncryptWith(ctx context.Context, e any, resolver KeyResolver) error

	// Decrypt restores the encrypted fields from the payload.
	Decrypt(ctx context.Context, e any) error

	// EncryptAndSave encrypts e, calls save and restores the confidential field
	// values onto the instance save returned.
	EncryptAndSave(ctx context.Context, e any, save SaveFunc) (any, error)
}
