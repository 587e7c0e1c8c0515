package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoHTTPDTO "github.com/allisson/fieldcrypt/internal/crypto/http/dto"
	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
)

// RunListCryptoKeys prints the metadata of every live key, newest first. A
// non-empty tenant restricts the output to that tenant.
func RunListCryptoKeys(
	ctx context.Context,
	keyUseCase cryptoUseCase.KeyUseCase,
	writer io.Writer,
	tenantID string,
	format string,
) error {
	keys, err := keyUseCase.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list crypto keys: %w", err)
	}

	filtered := make([]*cryptoDomain.CryptoKey, 0, len(keys))
	for _, key := range keys {
		if tenantID == "" || key.TenantID == tenantID {
			filtered = append(filtered, key)
		}
	}

	response := cryptoHTTPDTO.MapCryptoKeysToListResponse(filtered, 0, len(filtered))
	return writeOutput(writer, format, response.Data, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tTENANT\tUSAGE\tTYPE\tROTATION\tCREATED")
		for _, key := range response.Data {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				key.ID, key.TenantID, key.Usage, key.Type, key.RotationMode,
				key.CreatedAt.Format(time.RFC3339))
		}
		_ = tw.Flush()
	})
}
