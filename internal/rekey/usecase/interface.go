// Package usecase implements the rekey scheduler that moves records from retired
// keys onto current keys.
package usecase

import (
	"context"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	fieldcryptUsecase "github.com/allisson/fieldcrypt/internal/fieldcrypt/usecase"
	"github.com/allisson/fieldcrypt/internal/rekey/domain"
)

// RecordStore loads and persists the records of one entity type for rekeying.
// Records are returned encrypted and saved encrypted; implementations scope
// every query to the tenant of the key. An empty after starts from the first record.
type RecordStore interface {
	// EntityName identifies the entity type in logs and events.
	EntityName() string

	// FindRecordsNotUsingKey returns up to limit records positioned after the cursor
	// whose key of key.Usage is not key.
	FindRecordsNotUsingKey(
		ctx context.Context,
		key *cryptoDomain.CryptoKey,
		after string,
		limit int,
	) (domain.Batch, error)

	// FindRecordsUsingKey returns up to limit records positioned after the cursor
	// whose key of key.Usage is key.
	FindRecordsUsingKey(
		ctx context.Context,
		key *cryptoDomain.CryptoKey,
		after string,
		limit int,
	) (domain.Batch, error)

	// Save persists a rekeyed batch.
	Save(ctx context.Context, records []any) error

	// Notify publishes the end of a rekey pass.
	Notify(ctx context.Context, event domain.RekeyFinishedEvent) error
}

// KeyProvider resolves keys for rekeying.
type KeyProvider interface {
	fieldcryptUsecase.KeyProvider

	// AllCryptoKeys returns every live key of every tenant.
	AllCryptoKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error)
}

// KeyLifecycleManager retires keys no record depends on anymore.
type KeyLifecycleManager interface {
	MarkKeyForDeletion(ctx context.Context, key *cryptoDomain.CryptoKey) error
}

// UseCase defines the interface for the rekey scheduler.
type UseCase interface {
	// Start runs a tick every interval until ctx is done.
	Start(ctx context.Context) error

	// Tick runs a single rekey pass over every tenant.
	Tick(ctx context.Context) (domain.TickResult, error)

	// LastTick returns the result of the most recent tick.
	LastTick() (domain.TickResult, bool)
}
