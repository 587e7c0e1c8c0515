// Package http provides read-only HTTP handlers for crypto key metadata.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/crypto/http/dto"
	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
	"github.com/allisson/fieldcrypt/internal/httputil"
)

// CryptoKeyHandler handles HTTP requests for crypto key metadata.
type CryptoKeyHandler struct {
	keyUseCase cryptoUseCase.KeyUseCase
	logger     *slog.Logger
}

// NewCryptoKeyHandler creates a new crypto key handler.
func NewCryptoKeyHandler(keyUseCase cryptoUseCase.KeyUseCase, logger *slog.Logger) *CryptoKeyHandler {
	return &CryptoKeyHandler{
		keyUseCase: keyUseCase,
		logger:     logger,
	}
}

// ListHandler lists the live keys of the request tenant, newest first.
// GET /v1/crypto-keys?offset=0&limit=50
func (h *CryptoKeyHandler) ListHandler(c *gin.Context) {
	page, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	ctx := c.Request.Context()
	keys, err := h.keyUseCase.List(ctx)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	tenantID := cryptoDomain.TenantFromContext(ctx)
	tenantKeys := make([]*cryptoDomain.CryptoKey, 0, len(keys))
	for _, key := range keys {
		if key.TenantID == tenantID {
			tenantKeys = append(tenantKeys, key)
		}
	}

	c.JSON(http.StatusOK, dto.MapCryptoKeysToListResponse(httputil.Paginate(tenantKeys, page), page.Offset, page.Limit))
}
