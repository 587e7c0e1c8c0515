// Package commands contains CLI command implementations for the application.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"gopkg.in/yaml.v3"

	"github.com/allisson/fieldcrypt/internal/app"
	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(migrate *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := migrate.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}

// writeOutput renders v as json or yaml, or calls text for the text format.
func writeOutput(w io.Writer, format string, v any, text func(w io.Writer)) error {
	switch format {
	case "", "text":
		text(w)
		return nil
	case "json":
		jsonBytes, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, _ = fmt.Fprintln(w, string(jsonBytes))
		return nil
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return encoder.Close()
	default:
		return fmt.Errorf("invalid format: %s (valid options: text, json, yaml)", format)
	}
}

// parseKeyUsage converts a usage string to cryptoDomain.KeyUsage.
func parseKeyUsage(usage string) (cryptoDomain.KeyUsage, error) {
	switch usage {
	case "encryption":
		return cryptoDomain.UsageEncryption, nil
	case "hmac":
		return cryptoDomain.UsageHmac, nil
	default:
		return "", fmt.Errorf("invalid key usage: %s (valid options: encryption, hmac)", usage)
	}
}

// parseKeyType converts a key type string to cryptoDomain.KeyType. An empty
// string selects the default type of usage.
func parseKeyType(keyType string, usage cryptoDomain.KeyUsage) (cryptoDomain.KeyType, error) {
	switch keyType {
	case "":
		if usage == cryptoDomain.UsageHmac {
			return cryptoDomain.HmacSHA256, nil
		}
		return cryptoDomain.AESGCM, nil
	case "aes-gcm":
		return cryptoDomain.AESGCM, nil
	case "chacha20-poly1305":
		return cryptoDomain.ChaCha20, nil
	case "hmac-sha256":
		return cryptoDomain.HmacSHA256, nil
	default:
		return "", fmt.Errorf(
			"invalid key type: %s (valid options: aes-gcm, chacha20-poly1305, hmac-sha256)",
			keyType,
		)
	}
}

// parseRotationMode converts a rotation mode string to cryptoDomain.RotationMode.
func parseRotationMode(mode string) (cryptoDomain.RotationMode, error) {
	switch mode {
	case "none":
		return cryptoDomain.RotationNone, nil
	case "key_on":
		return cryptoDomain.RotationKeyOn, nil
	case "key_off":
		return cryptoDomain.RotationKeyOff, nil
	default:
		return "", fmt.Errorf("invalid rotation mode: %s (valid options: none, key_on, key_off)", mode)
	}
}
