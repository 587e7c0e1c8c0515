package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// hmacIndexInfo is the HKDF info for digest keys, versioned for future algorithm changes.
const hmacIndexInfo = "hmac-index-v1"

// aeadBackend encrypts payloads with an AEAD key type. It never hashes.
type aeadBackend struct {
	keyType     cryptoDomain.KeyType
	aeadManager AEADManager
}

// NewAEADBackend creates a Backend for an AEAD key type (AESGCM or ChaCha20).
func NewAEADBackend(keyType cryptoDomain.KeyType, aeadManager AEADManager) Backend {
	return &aeadBackend{keyType: keyType, aeadManager: aeadManager}
}

func (b *aeadBackend) SupportedKeyType() cryptoDomain.KeyType {
	return b.keyType
}

// Encrypt binds the ciphertext to the key id through the AAD.
func (b *aeadBackend) Encrypt(
	key *cryptoDomain.CryptoKey,
	plaintext []byte,
) (*cryptoDomain.CipherResult, error) {
	cipher, err := b.aeadManager.CreateCipher(key.Key, key.Type)
	if err != nil {
		return nil, err
	}

	ciphertext, nonce, err := cipher.Encrypt(plaintext, key.ID[:])
	if err != nil {
		return nil, cryptoDomain.NewTransientError(err)
	}

	return &cryptoDomain.CipherResult{KeyID: key.ID, Nonce: nonce, Ciphertext: ciphertext}, nil
}

func (b *aeadBackend) Decrypt(
	key *cryptoDomain.CryptoKey,
	result *cryptoDomain.CipherResult,
) ([]byte, error) {
	cipher, err := b.aeadManager.CreateCipher(key.Key, key.Type)
	if err != nil {
		return nil, err
	}
	return cipher.Decrypt(result.Ciphertext, result.Nonce, key.ID[:])
}

func (b *aeadBackend) Hmac(holders []*cryptoDomain.HmacHolder) error {
	return fmt.Errorf("%w: %s keys cannot compute digests", cryptoDomain.ErrUnsupportedKeyType, b.keyType)
}

// hmacBackend computes HMAC-SHA256 digests with HKDF-derived sub-keys.
type hmacBackend struct{}

// NewHmacBackend creates a Backend for HmacSHA256 keys.
func NewHmacBackend() Backend {
	return &hmacBackend{}
}

func (b *hmacBackend) SupportedKeyType() cryptoDomain.KeyType {
	return cryptoDomain.HmacSHA256
}

func (b *hmacBackend) Encrypt(*cryptoDomain.CryptoKey, []byte) (*cryptoDomain.CipherResult, error) {
	return nil, fmt.Errorf("%w: hmac keys cannot encrypt", cryptoDomain.ErrUnsupportedKeyType)
}

func (b *hmacBackend) Decrypt(*cryptoDomain.CryptoKey, *cryptoDomain.CipherResult) ([]byte, error) {
	return nil, fmt.Errorf("%w: hmac keys cannot decrypt", cryptoDomain.ErrUnsupportedKeyType)
}

// Hmac derives one sub-key per distinct key and digests every holder with it.
// Digests are standard base64 so they fit string columns.
func (b *hmacBackend) Hmac(holders []*cryptoDomain.HmacHolder) error {
	derived := make(map[*cryptoDomain.CryptoKey][]byte)
	defer func() {
		for _, key := range derived {
			cryptoDomain.Zero(key)
		}
	}()

	for _, holder := range holders {
		subKey, ok := derived[holder.Key]
		if !ok {
			var err error
			subKey, err = deriveIndexKey(holder.Key.Key)
			if err != nil {
				return err
			}
			derived[holder.Key] = subKey
		}

		mac := hmac.New(sha256.New, subKey)
		mac.Write([]byte(holder.Value))
		holder.Digest = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	}
	return nil
}

// deriveIndexKey uses HKDF-SHA256 to derive a 32-byte digest key from key material.
func deriveIndexKey(keyMaterial []byte) ([]byte, error) {
	if len(keyMaterial) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	reader := hkdf.New(sha256.New, keyMaterial, nil, []byte(hmacIndexInfo))
	subKey := make([]byte, cryptoDomain.KeySize)
	if _, err := io.ReadFull(reader, subKey); err != nil {
		return nil, err
	}
	return subKey, nil
}
