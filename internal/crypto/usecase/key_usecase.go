package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

// keyUseCase implements KeyUseCase.
type keyUseCase struct {
	repo        CryptoKeyRepository
	keyManager  cryptoService.KeyManager
	keeper      cryptoDomain.KMSKeeper
	keyProvider KeyProvider
	logger      *slog.Logger
}

// NewKeyUseCase creates a new KeyUseCase.
func NewKeyUseCase(
	repo CryptoKeyRepository,
	keyManager cryptoService.KeyManager,
	keeper cryptoDomain.KMSKeeper,
	keyProvider KeyProvider,
	logger *slog.Logger,
) KeyUseCase {
	return &keyUseCase{
		repo:        repo,
		keyManager:  keyManager,
		keeper:      keeper,
		keyProvider: keyProvider,
		logger:      logger,
	}
}

var rotationModes = []any{
	cryptoDomain.RotationNone,
	cryptoDomain.RotationKeyOn,
	cryptoDomain.RotationKeyOff,
}

func validateCreateKeyInput(input cryptoService.CreateKeyInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.Usage,
			validation.Required,
			validation.In(cryptoDomain.UsageEncryption, cryptoDomain.UsageHmac),
		),
		validation.Field(&input.Type, validation.Required),
		validation.Field(&input.RotationMode, validation.In(rotationModes...)),
		validation.Field(&input.TenantID, validation.Length(0, 255)),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	switch input.Usage {
	case cryptoDomain.UsageEncryption:
		if input.Type != cryptoDomain.AESGCM && input.Type != cryptoDomain.ChaCha20 {
			return cryptoDomain.ErrUnsupportedAlgorithm
		}
	case cryptoDomain.UsageHmac:
		if input.Type != cryptoDomain.HmacSHA256 {
			return cryptoDomain.ErrUnsupportedAlgorithm
		}
	}
	return nil
}

// Create generates a key and stores it. The local key cache is invalidated so this
// instance sees the key immediately; other instances see it after their cache TTL.
func (k *keyUseCase) Create(
	ctx context.Context,
	input cryptoService.CreateKeyInput,
) (*cryptoDomain.CryptoKey, error) {
	if err := validateCreateKeyInput(input); err != nil {
		return nil, err
	}

	key, err := k.keyManager.CreateKey(ctx, k.keeper, input)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(key.Key)

	if err := k.repo.Create(ctx, key); err != nil {
		return nil, err
	}
	k.keyProvider.Invalidate()

	k.logger.Info("crypto key created",
		slog.String("key_id", key.ID.String()),
		slog.String("tenant_id", key.TenantID),
		slog.String("usage", string(key.Usage)),
		slog.String("type", string(key.Type)),
		slog.String("rotation_mode", string(key.RotationMode)))

	key.Key = nil
	return key, nil
}

func (k *keyUseCase) SetRotationMode(
	ctx context.Context,
	id uuid.UUID,
	mode cryptoDomain.RotationMode,
) error {
	if err := validation.Validate(mode, validation.Required, validation.In(rotationModes...)); err != nil {
		return cryptoDomain.ErrInvalidRotationMode
	}

	if err := k.repo.UpdateRotationMode(ctx, id, mode); err != nil {
		return err
	}
	k.keyProvider.Invalidate()

	k.logger.Info("crypto key rotation mode changed",
		slog.String("key_id", id.String()),
		slog.String("rotation_mode", string(mode)))
	return nil
}

func (k *keyUseCase) MarkKeyForDeletion(ctx context.Context, key *cryptoDomain.CryptoKey) error {
	if err := k.repo.MarkForDeletion(ctx, key.ID, time.Now().UTC()); err != nil {
		return err
	}
	k.keyProvider.Invalidate()

	k.logger.Info("crypto key marked for deletion",
		slog.String("key_id", key.ID.String()),
		slog.String("tenant_id", key.TenantID),
		slog.String("usage", string(key.Usage)))
	return nil
}

func (k *keyUseCase) List(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	keys, err := k.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		key.EncryptedKey = nil
	}
	return keys, nil
}
