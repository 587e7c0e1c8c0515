package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// KeyManager generates key material and moves it through the KMS keeper.
type KeyManager interface {
	// CreateKey generates a random key of keyType and wraps it with the keeper.
	CreateKey(
		ctx context.Context,
		keeper cryptoDomain.KMSKeeper,
		input CreateKeyInput,
	) (*cryptoDomain.CryptoKey, error)

	// UnwrapKey fills key.Key from key.EncryptedKey.
	UnwrapKey(ctx context.Context, keeper cryptoDomain.KMSKeeper, key *cryptoDomain.CryptoKey) error
}

// CreateKeyInput holds the attributes of a new key.
type CreateKeyInput struct {
	TenantID       string
	Type           cryptoDomain.KeyType
	Usage          cryptoDomain.KeyUsage
	RotationMode   cryptoDomain.RotationMode
	ActivationTime *time.Time
}

// KeyManagerService implements KeyManager.
type KeyManagerService struct{}

// NewKeyManager creates a new KeyManagerService.
func NewKeyManager() *KeyManagerService {
	return &KeyManagerService{}
}

// CreateKey generates 32 random bytes and wraps them. The plaintext material is
// kept on the returned key so it can be used immediately.
func (km *KeyManagerService) CreateKey(
	ctx context.Context,
	keeper cryptoDomain.KMSKeeper,
	input CreateKeyInput,
) (*cryptoDomain.CryptoKey, error) {
	material := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	encryptedKey, err := keeper.Encrypt(ctx, material)
	if err != nil {
		cryptoDomain.Zero(material)
		return nil, cryptoDomain.NewTransientError(fmt.Errorf("failed to wrap key: %w", err))
	}

	rotationMode := input.RotationMode
	if rotationMode == "" {
		rotationMode = cryptoDomain.RotationNone
	}

	return &cryptoDomain.CryptoKey{
		ID:             uuid.Must(uuid.NewV7()),
		TenantID:       input.TenantID,
		Type:           input.Type,
		Usage:          input.Usage,
		RotationMode:   rotationMode,
		EncryptedKey:   encryptedKey,
		Key:            material,
		ActivationTime: input.ActivationTime,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// UnwrapKey decrypts the wrapped material. KMS failures are transient.
func (km *KeyManagerService) UnwrapKey(
	ctx context.Context,
	keeper cryptoDomain.KMSKeeper,
	key *cryptoDomain.CryptoKey,
) error {
	material, err := keeper.Decrypt(ctx, key.EncryptedKey)
	if err != nil {
		return cryptoDomain.NewTransientError(fmt.Errorf("failed to unwrap key %s: %w", key.ID, err))
	}
	if len(material) != cryptoDomain.KeySize {
		cryptoDomain.Zero(material)
		return fmt.Errorf("%w: key %s", cryptoDomain.ErrInvalidKeySize, key.ID)
	}
	key.Key = material
	return nil
}
