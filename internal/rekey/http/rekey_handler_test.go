package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/rekey/domain"
	"github.com/allisson/fieldcrypt/internal/rekey/usecase/mocks"
)

func TestRekeyHandler_StatusHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Success_FiltersTenant", func(t *testing.T) {
		started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		useCase := &mocks.MockUseCase{}
		useCase.On("LastTick").Return(domain.TickResult{
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			Tenants: []domain.TenantResult{
				{TenantID: "tenant-a", Processed: 10, Batches: 1},
				{TenantID: "tenant-b", Skipped: true},
			},
		}, true).Once()

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		ctx := cryptoDomain.WithTenant(context.Background(), "tenant-a")
		c.Request = httptest.NewRequest(http.MethodGet, "/v1/rekey/status", nil).WithContext(ctx)

		NewRekeyHandler(useCase, logger).StatusHandler(c)

		require.Equal(t, http.StatusOK, w.Code)
		var result domain.TickResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, started, result.StartedAt)
		require.Len(t, result.Tenants, 1)
		assert.Equal(t, "tenant-a", result.Tenants[0].TenantID)
		assert.Equal(t, 10, result.Tenants[0].Processed)
	})

	t.Run("Error_NoTickYet", func(t *testing.T) {
		useCase := &mocks.MockUseCase{}
		useCase.On("LastTick").Return(domain.TickResult{}, false).Once()

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/v1/rekey/status", nil)

		NewRekeyHandler(useCase, logger).StatusHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
