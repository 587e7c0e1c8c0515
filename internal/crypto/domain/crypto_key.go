// Package domain defines the cryptographic domain models for field encryption.
//
// A CryptoKey either encrypts entity payloads or computes searchable digests.
// Keys belong to a tenant (the empty tenant is the single-tenant bucket), carry
// an optional activation time and a rotation mode that drives the rekey scheduler.
package domain

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CryptoKey is a data key as known to this system.
type CryptoKey struct {
	ID             uuid.UUID    // Unique identifier (UUIDv7)
	TenantID       string       // Owning tenant, empty for single-tenant deployments
	Type           KeyType      // Algorithm the key material is used with
	Usage          KeyUsage     // Encryption or HMAC
	RotationMode   RotationMode // Current transition direction
	EncryptedKey   []byte       // Key material wrapped by the KMS keeper
	Key            []byte       // Plaintext key material (populated after unwrapping, never persisted)
	ActivationTime *time.Time   // Optional delayed activation
	CreatedAt      time.Time
	DeletedAt      *time.Time
}

// IsActive reports whether the key may be used for new writes at now.
func (k *CryptoKey) IsActive(now time.Time) bool {
	if k.DeletedAt != nil {
		return false
	}
	return k.ActivationTime == nil || !k.ActivationTime.After(now)
}

// IsKeyOn reports whether the key is being adopted.
func (k *CryptoKey) IsKeyOn() bool {
	return k.RotationMode == RotationKeyOn
}

// IsKeyOff reports whether the key is being retired.
func (k *CryptoKey) IsKeyOff() bool {
	return k.RotationMode == RotationKeyOff
}

// SortNewestFirst orders keys by creation date descending. Keys without a
// creation date sort last; ties keep their relative order.
func SortNewestFirst(keys []*CryptoKey) {
	slices.SortStableFunc(keys, func(a, b *CryptoKey) int {
		switch {
		case a.CreatedAt.IsZero() && b.CreatedAt.IsZero():
			return 0
		case a.CreatedAt.IsZero():
			return 1
		case b.CreatedAt.IsZero():
			return -1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// KeyRing is an immutable snapshot of unwrapped keys with thread-safe lookup by id.
// Keys are ordered newest first.
type KeyRing struct {
	ordered []*CryptoKey
	keys    sync.Map // Thread-safe map of key ID to CryptoKey instances
}

// NewKeyRing creates a KeyRing from keys, sorting a copy newest first.
func NewKeyRing(keys []*CryptoKey) *KeyRing {
	ordered := slices.Clone(keys)
	SortNewestFirst(ordered)

	kr := &KeyRing{ordered: ordered}
	for _, key := range ordered {
		kr.keys.Store(key.ID, key)
	}
	return kr
}

// Get retrieves a key from the ring by its UUID.
func (k *KeyRing) Get(id uuid.UUID) (*CryptoKey, bool) {
	if key, ok := k.keys.Load(id); ok {
		return key.(*CryptoKey), ok
	}

	return nil, false
}

// All returns every key in the ring, newest first.
func (k *KeyRing) All() []*CryptoKey {
	return slices.Clone(k.ordered)
}

// Filter returns the keys accepted by fn, newest first.
func (k *KeyRing) Filter(fn func(key *CryptoKey) bool) []*CryptoKey {
	result := make([]*CryptoKey, 0, len(k.ordered))
	for _, key := range k.ordered {
		if fn(key) {
			result = append(result, key)
		}
	}
	return result
}
