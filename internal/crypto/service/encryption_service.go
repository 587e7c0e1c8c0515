package service

import (
	"context"
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// BackendRegistry implements EncryptionService by dispatching every call to the
// backend registered for the key's type.
type BackendRegistry struct {
	backends  map[cryptoDomain.KeyType]Backend
	formatter CipherFormatter
	keys      KeyLookup
	logger    *slog.Logger
}

// NewBackendRegistry creates a BackendRegistry. A later backend for the same key type
// replaces an earlier one.
func NewBackendRegistry(
	formatter CipherFormatter,
	keys KeyLookup,
	logger *slog.Logger,
	backends ...Backend,
) *BackendRegistry {
	registry := &BackendRegistry{
		backends:  make(map[cryptoDomain.KeyType]Backend, len(backends)),
		formatter: formatter,
		keys:      keys,
		logger:    logger,
	}
	for _, backend := range backends {
		registry.backends[backend.SupportedKeyType()] = backend
	}
	return registry
}

func (r *BackendRegistry) backendFor(keyType cryptoDomain.KeyType) (Backend, error) {
	backend, ok := r.backends[keyType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cryptoDomain.ErrUnsupportedKeyType, keyType)
	}
	return backend, nil
}

// Encrypt encrypts plaintext with key and formats the result.
func (r *BackendRegistry) Encrypt(key *cryptoDomain.CryptoKey, plaintext []byte) (string, error) {
	backend, err := r.backendFor(key.Type)
	if err != nil {
		return "", err
	}

	result, err := backend.Encrypt(key, plaintext)
	if err != nil {
		return "", err
	}
	return r.formatter.Format(result), nil
}

// Decrypt parses cipherText, loads the key it references and decrypts it.
func (r *BackendRegistry) Decrypt(ctx context.Context, cipherText string) ([]byte, error) {
	result, err := r.formatter.Parse(cipherText)
	if err != nil {
		return nil, err
	}

	key, err := r.keys.KeyByID(ctx, result.KeyID)
	if err != nil {
		return nil, err
	}

	backend, err := r.backendFor(key.Type)
	if err != nil {
		return nil, err
	}
	return backend.Decrypt(key, result)
}

// Hmac groups holders by key type and hands each group to its backend.
func (r *BackendRegistry) Hmac(holders []*cryptoDomain.HmacHolder) error {
	groups := make(map[cryptoDomain.KeyType][]*cryptoDomain.HmacHolder)
	order := make([]cryptoDomain.KeyType, 0, 1)
	for _, holder := range holders {
		if _, ok := groups[holder.Key.Type]; !ok {
			order = append(order, holder.Key.Type)
		}
		groups[holder.Key.Type] = append(groups[holder.Key.Type], holder)
	}

	for _, keyType := range order {
		backend, err := r.backendFor(keyType)
		if err != nil {
			return err
		}
		if err := backend.Hmac(groups[keyType]); err != nil {
			return err
		}
		r.logger.Debug("computed digests",
			slog.String("key_type", string(keyType)),
			slog.Int("count", len(groups[keyType])))
	}
	return nil
}
