package hmac

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// RekeyDelegate trims digest work during a rekey run, where source values are
// known to be unchanged and only the keys move.
type RekeyDelegate interface {
	// KeysToCompute returns the keys that still need digests for an entity
	// holding the existing entries.
	KeysToCompute(existing []cryptoDomain.HmacEntry, keys []*cryptoDomain.CryptoKey) []*cryptoDomain.CryptoKey

	// StripExisting drops holders whose key id and alias are already present in existing.
	StripExisting(
		existing []cryptoDomain.HmacEntry,
		holders []*cryptoDomain.HmacHolder,
	) []*cryptoDomain.HmacHolder
}

type rekeyContextKey struct{}

type rekeyOptions struct {
	delegate RekeyDelegate
}

// WithRekey marks ctx as a rekey computation. The Double strategy then writes only
// its second slot and the List strategy consults delegate, which may be nil.
func WithRekey(ctx context.Context, delegate RekeyDelegate) context.Context {
	return context.WithValue(ctx, rekeyContextKey{}, rekeyOptions{delegate: delegate})
}

func rekeyFromContext(ctx context.Context) (RekeyDelegate, bool) {
	opts, ok := ctx.Value(rekeyContextKey{}).(rekeyOptions)
	return opts.delegate, ok
}

type entryKey struct {
	keyID uuid.UUID
	alias string
}

// SkipExistingDelegate skips keys that already produced entries and never
// recomputes a present non-tokenized (key id, alias) pair. Tokenized holders are
// always kept since tokenizer logic may have changed.
type SkipExistingDelegate struct{}

// NewSkipExistingDelegate creates a SkipExistingDelegate.
func NewSkipExistingDelegate() *SkipExistingDelegate {
	return &SkipExistingDelegate{}
}

// KeysToCompute returns the keys without any existing entry.
func (d *SkipExistingDelegate) KeysToCompute(
	existing []cryptoDomain.HmacEntry,
	keys []*cryptoDomain.CryptoKey,
) []*cryptoDomain.CryptoKey {
	present := make(map[uuid.UUID]bool, len(existing))
	for _, entry := range existing {
		present[entry.KeyID] = true
	}
	result := make([]*cryptoDomain.CryptoKey, 0, len(keys))
	for _, key := range keys {
		if !present[key.ID] {
			result = append(result, key)
		}
	}
	return result
}

// StripExisting drops non-tokenized holders already present in existing.
func (d *SkipExistingDelegate) StripExisting(
	existing []cryptoDomain.HmacEntry,
	holders []*cryptoDomain.HmacHolder,
) []*cryptoDomain.HmacHolder {
	present := make(map[entryKey]bool, len(existing))
	for _, entry := range existing {
		if !entry.Tokenized {
			present[entryKey{keyID: entry.KeyID, alias: entry.Alias}] = true
		}
	}
	result := make([]*cryptoDomain.HmacHolder, 0, len(holders))
	for _, holder := range holders {
		if holder.Tokenized || !present[entryKey{keyID: holder.Key.ID, alias: holder.Alias}] {
			result = append(result, holder)
		}
	}
	return result
}
