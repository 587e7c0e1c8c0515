// Package service provides the cryptographic collaborators of the field encryption
// stack: AEAD ciphers, encryption and hash backends dispatched by key type, the
// ciphertext formatter, the payload codec and KMS wrapping of key material.
package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified key type.
	CreateCipher(key []byte, keyType cryptoDomain.KeyType) (AEAD, error)
}

// Backend encrypts, decrypts and hashes with keys of a single type.
type Backend interface {
	// SupportedKeyType returns the key type this backend is dispatched for.
	SupportedKeyType() cryptoDomain.KeyType

	// Encrypt encrypts plaintext with key.
	Encrypt(key *cryptoDomain.CryptoKey, plaintext []byte) (*cryptoDomain.CipherResult, error)

	// Decrypt decrypts a result produced by Encrypt with the same key.
	Decrypt(key *cryptoDomain.CryptoKey, result *cryptoDomain.CipherResult) ([]byte, error)

	// Hmac fills the Digest of every holder in place.
	Hmac(holders []*cryptoDomain.HmacHolder) error
}

// KeyLookup resolves the key referenced by a ciphertext.
type KeyLookup interface {
	KeyByID(ctx context.Context, id uuid.UUID) (*cryptoDomain.CryptoKey, error)
}

// EncryptionService is the single entry point the orchestrator uses for
// ciphertext and digest production.
type EncryptionService interface {
	// Encrypt encrypts plaintext with key and returns the formatted ciphertext.
	Encrypt(key *cryptoDomain.CryptoKey, plaintext []byte) (string, error)

	// Decrypt parses a formatted ciphertext, resolves its key and decrypts it.
	Decrypt(ctx context.Context, cipherText string) ([]byte, error)

	// Hmac computes the digest of every holder in place.
	Hmac(holders []*cryptoDomain.HmacHolder) error
}

// CipherFormatter converts raw cipher results to and from their string form.
type CipherFormatter interface {
	Format(result *cryptoDomain.CipherResult) string
	Parse(cipherText string) (*cryptoDomain.CipherResult, error)
}

// Codec converts field values to and from the serialized payload.
// Field-name keys are preserved exactly.
type Codec interface {
	Serialize(bag map[string]json.RawMessage) (string, error)
	Deserialize(payload string) (map[string]json.RawMessage, error)
	ConvertValue(value any) (json.RawMessage, error)
	TreeToValue(node json.RawMessage, target any) error
}
