package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoMocks "github.com/allisson/fieldcrypt/internal/crypto/usecase/mocks"
)

func TestRunListCryptoKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	keys := []*cryptoDomain.CryptoKey{
		{
			ID:           uuid.New(),
			TenantID:     "acme",
			Type:         cryptoDomain.AESGCM,
			Usage:        cryptoDomain.UsageEncryption,
			RotationMode: cryptoDomain.RotationKeyOn,
			CreatedAt:    now,
		},
		{
			ID:           uuid.New(),
			TenantID:     "globex",
			Type:         cryptoDomain.HmacSHA256,
			Usage:        cryptoDomain.UsageHmac,
			RotationMode: cryptoDomain.RotationNone,
			CreatedAt:    now.Add(-time.Hour),
		},
	}

	t.Run("text", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockKeyUseCase{}
		mockUseCase.On("List", ctx).Return(keys, nil).Once()

		var out bytes.Buffer
		err := RunListCryptoKeys(ctx, mockUseCase, &out, "", "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "ROTATION")
		assert.Contains(t, out.String(), keys[0].ID.String())
		assert.Contains(t, out.String(), keys[1].ID.String())
		mockUseCase.AssertExpectations(t)
	})

	t.Run("tenant filter", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockKeyUseCase{}
		mockUseCase.On("List", ctx).Return(keys, nil).Once()

		var out bytes.Buffer
		err := RunListCryptoKeys(ctx, mockUseCase, &out, "globex", "json")
		require.NoError(t, err)

		var decoded []map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		require.Len(t, decoded, 1)
		assert.Equal(t, keys[1].ID.String(), decoded[0]["id"])
	})

	t.Run("yaml", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockKeyUseCase{}
		mockUseCase.On("List", ctx).Return(keys, nil).Once()

		var out bytes.Buffer
		err := RunListCryptoKeys(ctx, mockUseCase, &out, "", "yaml")
		require.NoError(t, err)

		var decoded []map[string]any
		require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "key_on", decoded[0]["rotation_mode"])
	})

	t.Run("empty json is an array", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockKeyUseCase{}
		mockUseCase.On("List", ctx).Return([]*cryptoDomain.CryptoKey{}, nil).Once()

		var out bytes.Buffer
		err := RunListCryptoKeys(ctx, mockUseCase, &out, "", "json")

		require.NoError(t, err)
		assert.JSONEq(t, "[]", out.String())
	})

	t.Run("use case error", func(t *testing.T) {
		mockUseCase := &cryptoMocks.MockKeyUseCase{}
		mockUseCase.On("List", ctx).Return(nil, errors.New("db down")).Once()

		err := RunListCryptoKeys(ctx, mockUseCase, io.Discard, "", "text")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to list crypto keys")
	})
}
