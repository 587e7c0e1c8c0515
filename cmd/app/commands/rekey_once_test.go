package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rekeyDomain "github.com/allisson/fieldcrypt/internal/rekey/domain"
	rekeyMocks "github.com/allisson/fieldcrypt/internal/rekey/usecase/mocks"
)

func TestRunRekeyOnce(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	startedAt := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("text", func(t *testing.T) {
		mockUseCase := &rekeyMocks.MockUseCase{}
		mockUseCase.On("Tick", ctx).Return(rekeyDomain.TickResult{
			StartedAt:  startedAt,
			FinishedAt: startedAt.Add(time.Second),
			Tenants: []rekeyDomain.TenantResult{
				{TenantID: "acme", Processed: 120, Batches: 2},
				{TenantID: "globex", Skipped: true},
			},
		}, nil).Once()

		var out bytes.Buffer
		err := RunRekeyOnce(ctx, mockUseCase, logger, &out, "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "processed 2 tenant(s)")
		assert.Contains(t, out.String(), `"acme": 120 record(s) in 2 batch(es), 0 failure(s)`)
		assert.Contains(t, out.String(), `"globex": skipped`)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("json", func(t *testing.T) {
		mockUseCase := &rekeyMocks.MockUseCase{}
		mockUseCase.On("Tick", ctx).Return(rekeyDomain.TickResult{
			StartedAt:  startedAt,
			FinishedAt: startedAt,
			Tenants:    []rekeyDomain.TenantResult{{TenantID: "acme", Processed: 3, Batches: 1}},
		}, nil).Once()

		var out bytes.Buffer
		err := RunRekeyOnce(ctx, mockUseCase, logger, &out, "json")
		require.NoError(t, err)

		var decoded rekeyDomain.TickResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		require.Len(t, decoded.Tenants, 1)
		assert.Equal(t, 3, decoded.Tenants[0].Processed)
	})

	t.Run("aborted tenant", func(t *testing.T) {
		mockUseCase := &rekeyMocks.MockUseCase{}
		mockUseCase.On("Tick", ctx).Return(rekeyDomain.TickResult{
			Tenants: []rekeyDomain.TenantResult{
				{TenantID: "acme", Processed: 10, Failed: 5, Error: "too many failures"},
			},
		}, nil).Once()

		var out bytes.Buffer
		err := RunRekeyOnce(ctx, mockUseCase, logger, &out, "text")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "rekey aborted for 1 tenant(s)")
		assert.Contains(t, out.String(), "too many failures")
	})

	t.Run("tick error", func(t *testing.T) {
		mockUseCase := &rekeyMocks.MockUseCase{}
		mockUseCase.On("Tick", ctx).Return(rekeyDomain.TickResult{}, errors.New("keys unavailable")).Once()

		err := RunRekeyOnce(ctx, mockUseCase, logger, io.Discard, "text")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to run rekey tick")
	})
}
