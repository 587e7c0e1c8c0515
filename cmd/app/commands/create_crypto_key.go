package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoHTTPDTO "github.com/allisson/fieldcrypt/internal/crypto/http/dto"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
)

// CreateCryptoKeyParams holds the flags of the create-crypto-key command.
type CreateCryptoKeyParams struct {
	TenantID   string
	Usage      string
	KeyType    string
	ActivateIn time.Duration
	KeyOn      bool
	Format     string
}

// RunCreateCryptoKey generates, wraps and stores a new crypto key. With KeyOn the
// key starts in key_on mode so the rekey scheduler moves existing records onto it.
//
// Requirements: Database must be migrated and KMS_KEY_URI must be set.
func RunCreateCryptoKey(
	ctx context.Context,
	keyUseCase cryptoUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	params CreateCryptoKeyParams,
) error {
	usage, err := parseKeyUsage(params.Usage)
	if err != nil {
		return err
	}

	keyType, err := parseKeyType(params.KeyType, usage)
	if err != nil {
		return err
	}

	if params.ActivateIn < 0 {
		return fmt.Errorf("activate-in must not be negative, got: %s", params.ActivateIn)
	}

	logger.Info("creating crypto key",
		slog.String("tenant_id", params.TenantID),
		slog.String("usage", string(usage)),
		slog.String("type", string(keyType)),
	)

	input := cryptoService.CreateKeyInput{
		TenantID: params.TenantID,
		Type:     keyType,
		Usage:    usage,
	}
	if params.KeyOn {
		input.RotationMode = cryptoDomain.RotationKeyOn
	}
	if params.ActivateIn > 0 {
		activation := time.Now().UTC().Add(params.ActivateIn)
		input.ActivationTime = &activation
	}

	key, err := keyUseCase.Create(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create crypto key: %w", err)
	}

	logger.Info("crypto key created successfully",
		slog.String("id", key.ID.String()),
		slog.String("rotation_mode", string(key.RotationMode)),
	)

	response := cryptoHTTPDTO.MapCryptoKeyToResponse(key)
	return writeOutput(writer, params.Format, response, func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "Created %s key %s (%s) for tenant %q\n",
			response.Usage, response.ID, response.Type, response.TenantID)
		if response.ActivationTime != nil {
			_, _ = fmt.Fprintf(w, "Activates at %s\n", response.ActivationTime.Format(time.RFC3339))
		}
	})
}
