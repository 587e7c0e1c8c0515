package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
)

// RunSetKeyRotation changes the rotation mode of a key. key_off starts moving
// records off the key; none cancels a transition.
func RunSetKeyRotation(
	ctx context.Context,
	keyUseCase cryptoUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	keyID string,
	mode string,
) error {
	id, err := uuid.Parse(keyID)
	if err != nil {
		return fmt.Errorf("invalid key id: %w", err)
	}

	rotationMode, err := parseRotationMode(mode)
	if err != nil {
		return err
	}

	if err := keyUseCase.SetRotationMode(ctx, id, rotationMode); err != nil {
		return fmt.Errorf("failed to set rotation mode: %w", err)
	}

	logger.Info("rotation mode updated",
		slog.String("id", id.String()),
		slog.String("rotation_mode", string(rotationMode)),
	)
	_, _ = fmt.Fprintf(writer, "Key %s is now in rotation mode %s\n", id, rotationMode)

	return nil
}
