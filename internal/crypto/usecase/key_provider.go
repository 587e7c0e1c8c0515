// Package usecase implements key resolution and key lifecycle operations.
//
// The KeyProvider keeps an in-memory snapshot of all unwrapped keys for a
// configurable TTL. Every application instance holds its own snapshot, so a key
// created in one instance becomes visible to the others only after their TTL
// elapses. The rekey scheduler waits a grace period longer than this TTL before
// moving records onto or off a key.
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

const keyRingCacheKey = "key_ring"

type keyProvider struct {
	repo       CryptoKeyRepository
	keyManager cryptoService.KeyManager
	keeper     cryptoDomain.KMSKeeper
	cache      *cache.Cache
	mu         sync.Mutex
	now        func() time.Time
}

// NewKeyProvider creates a KeyProvider caching unwrapped keys for ttl.
func NewKeyProvider(
	repo CryptoKeyRepository,
	keyManager cryptoService.KeyManager,
	keeper cryptoDomain.KMSKeeper,
	ttl time.Duration,
) KeyProvider {
	return &keyProvider{
		repo:       repo,
		keyManager: keyManager,
		keeper:     keeper,
		cache:      cache.New(ttl, 2*ttl),
		now:        time.Now,
	}
}

// ring returns the cached snapshot, loading it on a miss. Loads are serialized
// so a cold cache produces a single repository call.
func (p *keyProvider) ring(ctx context.Context) (*cryptoDomain.KeyRing, error) {
	if cached, ok := p.cache.Get(keyRingCacheKey); ok {
		return cached.(*cryptoDomain.KeyRing), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.cache.Get(keyRingCacheKey); ok {
		return cached.(*cryptoDomain.KeyRing), nil
	}

	keys, err := p.repo.List(ctx)
	if err != nil {
		return nil, cryptoDomain.NewTransientError(err)
	}

	for _, key := range keys {
		if err := p.keyManager.UnwrapKey(ctx, p.keeper, key); err != nil {
			return nil, err
		}
	}

	ring := cryptoDomain.NewKeyRing(keys)
	p.cache.Set(keyRingCacheKey, ring, cache.DefaultExpiration)
	return ring, nil
}

func (p *keyProvider) CurrentEncryptionKey(ctx context.Context) (*cryptoDomain.CryptoKey, error) {
	ring, err := p.ring(ctx)
	if err != nil {
		return nil, err
	}

	tenantID := cryptoDomain.TenantFromContext(ctx)
	now := p.now()
	keys := ring.Filter(func(key *cryptoDomain.CryptoKey) bool {
		return key.Usage == cryptoDomain.UsageEncryption &&
			key.TenantID == tenantID &&
			key.IsActive(now) &&
			!key.IsKeyOff()
	})
	if len(keys) == 0 {
		return nil, nil
	}
	return keys[0], nil
}

func (p *keyProvider) CurrentHmacKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	ring, err := p.ring(ctx)
	if err != nil {
		return nil, err
	}

	tenantID := cryptoDomain.TenantFromContext(ctx)
	now := p.now()
	return ring.Filter(func(key *cryptoDomain.CryptoKey) bool {
		return key.Usage == cryptoDomain.UsageHmac && key.TenantID == tenantID && key.IsActive(now)
	}), nil
}

func (p *keyProvider) AllCryptoKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	ring, err := p.ring(ctx)
	if err != nil {
		return nil, err
	}
	return ring.All(), nil
}

// KeyByID reloads the snapshot once on a miss, since the key may have been
// created by another instance after the snapshot was taken.
func (p *keyProvider) KeyByID(ctx context.Context, id uuid.UUID) (*cryptoDomain.CryptoKey, error) {
	ring, err := p.ring(ctx)
	if err != nil {
		return nil, err
	}
	if key, ok := ring.Get(id); ok {
		return key, nil
	}

	p.Invalidate()
	ring, err = p.ring(ctx)
	if err != nil {
		return nil, err
	}
	if key, ok := ring.Get(id); ok {
		return key, nil
	}
	return nil, cryptoDomain.ErrKeyNotFound
}

func (p *keyProvider) Invalidate() {
	p.cache.Delete(keyRingCacheKey)
}
