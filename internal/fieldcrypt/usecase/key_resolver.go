package usecase

import (
	"context"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

type defaultKeyResolver struct {
	keyProvider KeyProvider
}

// NewDefaultKeyResolver resolves the current keys of the key provider.
func NewDefaultKeyResolver(keyProvider KeyProvider) KeyResolver {
	return &defaultKeyResolver{keyProvider: keyProvider}
}

func (r *defaultKeyResolver) EncryptionKey(ctx context.Context) (*cryptoDomain.CryptoKey, error) {
	return r.keyProvider.CurrentEncryptionKey(ctx)
}

func (r *defaultKeyResolver) HmacKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	return r.keyProvider.CurrentHmacKeys(ctx)
}

type fixedEncryptionKeyResolver struct {
	key         *cryptoDomain.CryptoKey
	keyProvider KeyProvider
}

// NewFixedEncryptionKeyResolver encrypts payloads with key and computes digests
// with the current hmac keys.
func NewFixedEncryptionKeyResolver(key *cryptoDomain.CryptoKey, keyProvider KeyProvider) KeyResolver {
	return &fixedEncryptionKeyResolver{key: key, keyProvider: keyProvider}
}

func (r *fixedEncryptionKeyResolver) EncryptionKey(ctx context.Context) (*cryptoDomain.CryptoKey, error) {
	return r.key, nil
}

func (r *fixedEncryptionKeyResolver) HmacKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	return r.keyProvider.CurrentHmacKeys(ctx)
}

type hmacOnlyKeyResolver struct {
	key *cryptoDomain.CryptoKey
}

// NewHmacOnlyKeyResolver computes digests with key alone and resolves no
// encryption key, so the payload is left as it is.
func NewHmacOnlyKeyResolver(key *cryptoDomain.CryptoKey) KeyResolver {
	return &hmacOnlyKeyResolver{key: key}
}

func (r *hmacOnlyKeyResolver) EncryptionKey(ctx context.Context) (*cryptoDomain.CryptoKey, error) {
	return nil, nil
}

func (r *hmacOnlyKeyResolver) HmacKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	return []*cryptoDomain.CryptoKey{r.key}, nil
}
