package domain

import (
	"context"

	"github.com/google/uuid"
)

// CipherResult is the raw output of an encryption backend.
type CipherResult struct {
	KeyID      uuid.UUID
	Nonce      []byte
	Ciphertext []byte
}

// KMSKeeper wraps and unwraps key material. *secrets.Keeper from gocloud.dev implements it.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}
