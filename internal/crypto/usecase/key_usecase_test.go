package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	"github.com/allisson/fieldcrypt/internal/crypto/usecase/mocks"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKeyUseCase_Create(t *testing.T) {
	ctx := context.Background()
	keeper := openTestKeeper(t)

	t.Run("Success", func(t *testing.T) {
		repo := &mocks.MockCryptoKeyRepository{}
		provider := &mocks.MockKeyProvider{}
		repo.On("Create", ctx, mock.MatchedBy(func(key *cryptoDomain.CryptoKey) bool {
			return key.Usage == cryptoDomain.UsageHmac &&
				key.Type == cryptoDomain.HmacSHA256 &&
				key.RotationMode == cryptoDomain.RotationKeyOn &&
				len(key.EncryptedKey) > 0
		})).Return(nil).Once()
		provider.On("Invalidate").Once()

		uc := NewKeyUseCase(repo, cryptoService.NewKeyManager(), keeper, provider, newTestLogger())
		key, err := uc.Create(ctx, cryptoService.CreateKeyInput{
			Type:         cryptoDomain.HmacSHA256,
			Usage:        cryptoDomain.UsageHmac,
			RotationMode: cryptoDomain.RotationKeyOn,
		})

		require.NoError(t, err)
		assert.Nil(t, key.Key, "plaintext material is not returned")
		repo.AssertExpectations(t)
		provider.AssertExpectations(t)
	})

	t.Run("Error_InvalidInput", func(t *testing.T) {
		tests := []struct {
			name    string
			input   cryptoService.CreateKeyInput
			wantErr error
		}{
			{
				name:    "missing usage",
				input:   cryptoService.CreateKeyInput{Type: cryptoDomain.AESGCM},
				wantErr: apperrors.ErrInvalidInput,
			},
			{
				name:    "unknown rotation mode",
				input:   cryptoService.CreateKeyInput{Type: cryptoDomain.AESGCM, Usage: cryptoDomain.UsageEncryption, RotationMode: "sideways"},
				wantErr: apperrors.ErrInvalidInput,
			},
			{
				name:    "hmac type for encryption",
				input:   cryptoService.CreateKeyInput{Type: cryptoDomain.HmacSHA256, Usage: cryptoDomain.UsageEncryption},
				wantErr: cryptoDomain.ErrUnsupportedAlgorithm,
			},
			{
				name:    "aead type for hmac",
				input:   cryptoService.CreateKeyInput{Type: cryptoDomain.ChaCha20, Usage: cryptoDomain.UsageHmac},
				wantErr: cryptoDomain.ErrUnsupportedAlgorithm,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo := &mocks.MockCryptoKeyRepository{}
				uc := NewKeyUseCase(repo, cryptoService.NewKeyManager(), keeper, &mocks.MockKeyProvider{}, newTestLogger())

				_, err := uc.Create(ctx, tt.input)
				assert.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("Error_Repository", func(t *testing.T) {
		repo := &mocks.MockCryptoKeyRepository{}
		repo.On("Create", ctx, mock.Anything).Return(errors.New("db down")).Once()

		uc := NewKeyUseCase(repo, cryptoService.NewKeyManager(), keeper, &mocks.MockKeyProvider{}, newTestLogger())
		_, err := uc.Create(ctx, cryptoService.CreateKeyInput{Type: cryptoDomain.AESGCM, Usage: cryptoDomain.UsageEncryption})
		assert.EqualError(t, err, "db down")
	})
}

func TestKeyUseCase_SetRotationMode(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		repo := &mocks.MockCryptoKeyRepository{}
		provider := &mocks.MockKeyProvider{}
		repo.On("UpdateRotationMode", ctx, id, cryptoDomain.RotationKeyOff).Return(nil).Once()
		provider.On("Invalidate").Once()

		uc := NewKeyUseCase(repo, cryptoService.NewKeyManager(), nil, provider, newTestLogger())
		require.NoError(t, uc.SetRotationMode(ctx, id, cryptoDomain.RotationKeyOff))
		repo.AssertExpectations(t)
		provider.AssertExpectations(t)
	})

	t.Run("Error_InvalidMode", func(t *testing.T) {
		uc := NewKeyUseCase(&mocks.MockCryptoKeyRepository{}, cryptoService.NewKeyManager(), nil, &mocks.MockKeyProvider{}, newTestLogger())
		err := uc.SetRotationMode(ctx, id, "sideways")
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidRotationMode)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		repo := &mocks.MockCryptoKeyRepository{}
		repo.On("UpdateRotationMode", ctx, id, cryptoDomain.RotationKeyOn).Return(cryptoDomain.ErrKeyNotFound).Once()

		uc := NewKeyUseCase(repo, cryptoService.NewKeyManager(), nil, &mocks.MockKeyProvider{}, newTestLogger())
		assert.ErrorIs(t, uc.SetRotationMode(ctx, id, cryptoDomain.RotationKeyOn), cryptoDomain.ErrKeyNotFound)
	})
}

func TestKeyUseCase_MarkKeyForDeletion(t *testing.T) {
	ctx := context.Background()
	key := &cryptoDomain.CryptoKey{ID: uuid.New(), Usage: cryptoDomain.UsageEncryption}

	repo := &mocks.MockCryptoKeyRepository{}
	provider := &mocks.MockKeyProvider{}
	repo.On("MarkForDeletion", ctx, key.ID, mock.MatchedBy(func(at time.Time) bool {
		return time.Since(at) < time.Minute
	})).Return(nil).Once()
	provider.On("Invalidate").Once()

	uc := NewKeyUseCase(repo, cryptoService.NewKeyManager(), nil, provider, newTestLogger())
	require.NoError(t, uc.MarkKeyForDeletion(ctx, key))
	repo.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestKeyUseCase_List(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.MockCryptoKeyRepository{}
	repo.On("List", ctx).Return([]*cryptoDomain.CryptoKey{{ID: uuid.New(), EncryptedKey: []byte("wrapped")}}, nil)

	uc := NewKeyUseCase(repo, cryptoService.NewKeyManager(), nil, &mocks.MockKeyProvider{}, newTestLogger())
	keys, err := uc.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Nil(t, keys[0].EncryptedKey)
}
