// Package http exposes the state of the rekey scheduler.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
	"github.com/allisson/fieldcrypt/internal/httputil"
	"github.com/allisson/fieldcrypt/internal/rekey/domain"
	rekeyUseCase "github.com/allisson/fieldcrypt/internal/rekey/usecase"
)

// ErrNoTickYet is returned while the scheduler has not completed a tick.
var ErrNoTickYet = apperrors.Wrap(apperrors.ErrNotFound, "no rekey tick has completed yet")

// RekeyHandler serves the summary of the last scheduler tick.
type RekeyHandler struct {
	rekeyUseCase rekeyUseCase.UseCase
	logger       *slog.Logger
}

// NewRekeyHandler creates a new rekey status handler.
func NewRekeyHandler(rekeyUseCase rekeyUseCase.UseCase, logger *slog.Logger) *RekeyHandler {
	return &RekeyHandler{
		rekeyUseCase: rekeyUseCase,
		logger:       logger,
	}
}

// StatusHandler returns the last tick, restricted to the request tenant.
// GET /v1/rekey/status
func (h *RekeyHandler) StatusHandler(c *gin.Context) {
	result, ok := h.rekeyUseCase.LastTick()
	if !ok {
		httputil.HandleErrorGin(c, ErrNoTickYet, h.logger)
		return
	}

	tenantID := cryptoDomain.TenantFromContext(c.Request.Context())
	tenants := make([]domain.TenantResult, 0, 1)
	for _, tenant := range result.Tenants {
		if tenant.TenantID == tenantID {
			tenants = append(tenants, tenant)
		}
	}
	result.Tenants = tenants

	c.JSON(http.StatusOK, result)
}
