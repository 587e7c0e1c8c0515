// Package usecase delivers outbox events written by the customer and rekey
// use cases.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
	"github.com/allisson/fieldcrypt/internal/metrics"
	"github.com/allisson/fieldcrypt/internal/outbox/domain"
)

type Config struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// EventStore is the part of the outbox repository the processor needs.
type EventStore interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	SaveResult(ctx context.Context, event *domain.OutboxEvent) error
}

type EventProcessor interface {
	Process(ctx context.Context, event *domain.OutboxEvent) error
}

type UseCase interface {
	// Start polls every Interval until ctx is done and returns ctx.Err().
	Start(ctx context.Context) error
	// ProcessEvents delivers one batch inside a single transaction.
	ProcessEvents(ctx context.Context) error
}

// OutboxUseCase claims pending events, hands them to the processor and
// records the outcome. Claimed rows stay locked until the batch commits, so
// several instances can poll the same table.
type OutboxUseCase struct {
	config    Config
	txManager database.TxManager
	store     EventStore
	processor EventProcessor
	metrics   metrics.BusinessMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	store EventStore,
	processor EventProcessor,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *OutboxUseCase {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OutboxUseCase{
		config:    config,
		txManager: txManager,
		store:     store,
		processor: processor,
		metrics:   businessMetrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *OutboxUseCase) Start(ctx context.Context) error {
	uc.logger.Info("outbox processor started",
		slog.Duration("interval", uc.config.Interval),
		slog.Int("batch_size", uc.config.BatchSize),
	)

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("outbox processor stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := uc.ProcessEvents(ctx); err != nil {
				level := slog.LevelError
				if apperrors.Retryable(err) {
					level = slog.LevelWarn
				}
				uc.logger.Log(ctx, level, "outbox batch failed", slog.Any("error", err))
			}
		}
	}
}

func (uc *OutboxUseCase) ProcessEvents(ctx context.Context) error {
	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := uc.store.ClaimPending(ctx, uc.config.BatchSize)
		if err != nil {
			return err
		}
		if len(events) > 0 {
			uc.logger.Debug("delivering outbox events", slog.Int("count", len(events)))
		}

		for _, event := range events {
			if err := uc.deliver(ctx, event); err != nil {
				permanent := apperrors.Is(err, apperrors.ErrInvalidInput)
				event.MarkFailed(err, uc.config.MaxRetries, permanent)
				uc.logger.Error("outbox event delivery failed",
					slog.String("event_id", event.ID.String()),
					slog.String("event_type", event.EventType),
					slog.Int("retries", event.Retries),
					slog.String("status", string(event.Status)),
					slog.Any("error", err),
				)
			} else {
				event.MarkProcessed(uc.now())
			}

			if err := uc.store.SaveResult(ctx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

func (uc *OutboxUseCase) deliver(ctx context.Context, event *domain.OutboxEvent) error {
	start := time.Now()
	err := uc.processor.Process(ctx, event)

	status := "success"
	if err != nil {
		status = "error"
	}
	uc.metrics.RecordOperation(ctx, "outbox", event.EventType, status)
	uc.metrics.RecordDuration(ctx, "outbox", event.EventType, time.Since(start), status)
	return err
}
