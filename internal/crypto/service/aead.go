package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// aeadCipher seals with a fresh random nonce per call. Instances hold no
// mutable state and are safe for concurrent use.
type aeadCipher struct {
	aead cipher.AEAD
}

func (a aeadCipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, a.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return a.aead.Seal(nil, nonce, plaintext, aad), nonce, nil
}

// Decrypt fails with ErrDecryptionFailed for a nonce of the wrong size or a
// tag mismatch.
func (a aeadCipher) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	if len(nonce) != a.aead.NonceSize() {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

var aeadConstructors = map[cryptoDomain.KeyType]func(key []byte) (cipher.AEAD, error){
	cryptoDomain.AESGCM:   newAESGCM,
	cryptoDomain.ChaCha20: chacha20poly1305.New,
}

// AEADManagerService builds the cipher of an encryption key type.
type AEADManagerService struct{}

func NewAEADManager() *AEADManagerService {
	return &AEADManagerService{}
}

// CreateCipher returns ErrInvalidKeySize unless key is KeySize bytes and
// ErrUnsupportedKeyType for key types that are not AEADs.
func (am *AEADManagerService) CreateCipher(key []byte, keyType cryptoDomain.KeyType) (AEAD, error) {
	newAEAD, ok := aeadConstructors[keyType]
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedKeyType
	}
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cipher: %w", keyType, err)
	}
	return aeadCipher{aead: aead}, nil
}
