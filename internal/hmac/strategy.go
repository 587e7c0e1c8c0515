// Package hmac implements the keyed-digest strategies that make encrypted fields
// searchable under key rotation.
//
// Single stores one digest per field under the newest active key. Double keeps two
// fixed slots so that lookups keep working while two keys are active. List stores
// digests tagged with their key id and alias in two lists, one for lookups (with
// optional tokenized values) and one for uniqueness, including compound unique
// groups.
package hmac

import (
	"context"
	"fmt"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/entity"
)

// Strategy computes the digests of an entity and stores them in its fields.
// Implementations hold only registration-time state and are safe for concurrent use.
type Strategy interface {
	ComputeAndStore(ctx context.Context, entity any, keys KeySource) error
}

// KeySource supplies the hmac keys for one computation.
type KeySource interface {
	HmacKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error)
}

// Hasher fills the Digest of every holder in place.
type Hasher interface {
	Hmac(holders []*cryptoDomain.HmacHolder) error
}

// New builds the strategy bound by meta. It returns nil for entities without
// digest fields. Custom strategies are supplied by the caller and cannot be built here.
func New(meta *entity.Metadata, hasher Hasher) (Strategy, error) {
	switch meta.Strategy {
	case entity.StrategyNone:
		return nil, nil
	case entity.StrategySingle:
		return &singleStrategy{meta: meta, hasher: hasher, now: time.Now}, nil
	case entity.StrategyDouble:
		return &doubleStrategy{meta: meta, hasher: hasher, now: time.Now}, nil
	case entity.StrategyList:
		return &listStrategy{meta: meta, hasher: hasher, now: time.Now}, nil
	case entity.StrategyCustom:
		return nil, fmt.Errorf(
			"%w: %s declares a custom strategy but none was supplied",
			cryptoDomain.ErrInvalidRegistration,
			meta.Name,
		)
	}
	return nil, fmt.Errorf("%w: unknown strategy %s", cryptoDomain.ErrInvalidRegistration, meta.Strategy)
}

// activeKeys loads the keys, fails if there are none and returns the ones already
// active at now, newest first.
func activeKeys(ctx context.Context, source KeySource, now time.Time) ([]*cryptoDomain.CryptoKey, error) {
	keys, err := source.HmacKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, cryptoDomain.ErrNoHmacKeys
	}

	active := make([]*cryptoDomain.CryptoKey, 0, len(keys))
	for _, key := range keys {
		if key != nil && key.IsActive(now) {
			active = append(active, key)
		}
	}
	if len(active) == 0 {
		return nil, cryptoDomain.ErrNoActiveHmacKey
	}
	cryptoDomain.SortNewestFirst(active)
	return active, nil
}

func setHmacKeyID(meta *entity.Metadata, e any, key *cryptoDomain.CryptoKey) error {
	if meta.HmacKeyIDField == nil {
		return nil
	}
	return meta.HmacKeyIDField.Set(e, key.ID.String())
}

func hash(hasher Hasher, holders []*cryptoDomain.HmacHolder) error {
	if len(holders) == 0 {
		return nil
	}
	return hasher.Hmac(holders)
}
