package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	rekeyUseCase "github.com/allisson/fieldcrypt/internal/rekey/usecase"
)

// RunRekeyOnce runs a single rekey tick over every tenant and prints its summary.
// Useful to drain a key_off transition without running the server.
func RunRekeyOnce(
	ctx context.Context,
	useCase rekeyUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	logger.Info("running rekey tick")

	result, err := useCase.Tick(ctx)
	if err != nil {
		return fmt.Errorf("failed to run rekey tick: %w", err)
	}

	failedTenants := 0
	for _, tenant := range result.Tenants {
		if tenant.Error != "" {
			failedTenants++
		}
	}

	logger.Info("rekey tick completed",
		slog.Int("tenants", len(result.Tenants)),
		slog.Int("failed_tenants", failedTenants),
		slog.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)

	if err := writeOutput(writer, format, result, func(w io.Writer) {
		_, _ = fmt.Fprintf(w, "Rekey tick processed %d tenant(s)\n", len(result.Tenants))
		for _, tenant := range result.Tenants {
			switch {
			case tenant.Skipped:
				_, _ = fmt.Fprintf(w, "  %q: skipped\n", tenant.TenantID)
			case tenant.Error != "":
				_, _ = fmt.Fprintf(w, "  %q: aborted after %d record(s), %d failure(s): %s\n",
					tenant.TenantID, tenant.Processed, tenant.Failed, tenant.Error)
			default:
				_, _ = fmt.Fprintf(w, "  %q: %d record(s) in %d batch(es), %d failure(s)\n",
					tenant.TenantID, tenant.Processed, tenant.Batches, tenant.Failed)
			}
		}
	}); err != nil {
		return err
	}

	if failedTenants > 0 {
		return fmt.Errorf("rekey aborted for %d tenant(s)", failedTenants)
	}
	return nil
}
