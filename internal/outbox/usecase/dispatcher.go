package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	apperrors "github.com/allisson/fieldcrypt/internal/errors"
	"github.com/allisson/fieldcrypt/internal/outbox/domain"
	rekeyDomain "github.com/allisson/fieldcrypt/internal/rekey/domain"
)

// Handler delivers one event.
type Handler func(ctx context.Context, event *domain.OutboxEvent) error

// Decode adapts a typed payload handler. A payload that does not decode into T
// is an ErrInvalidInput, which fails the event without further retries.
func Decode[T any](fn func(ctx context.Context, payload T) error) Handler {
	return func(ctx context.Context, event *domain.OutboxEvent) error {
		var payload T
		if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
			return apperrors.Wrap(
				fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err),
				"invalid "+event.EventType+" payload",
			)
		}
		return fn(ctx, payload)
	}
}

// Dispatcher routes events to the handler registered for their type. Events
// of unknown types go to the fallback handler.
type Dispatcher struct {
	handlers map[string]Handler
	fallback Handler
}

func NewDispatcher(fallback Handler) *Dispatcher {
	if fallback == nil {
		fallback = func(context.Context, *domain.OutboxEvent) error { return nil }
	}
	return &Dispatcher{handlers: make(map[string]Handler), fallback: fallback}
}

// Register sets the handler of eventType, replacing any previous one.
func (d *Dispatcher) Register(eventType string, h Handler) *Dispatcher {
	d.handlers[eventType] = h
	return d
}

// Process implements EventProcessor.
func (d *Dispatcher) Process(ctx context.Context, event *domain.OutboxEvent) error {
	if h, ok := d.handlers[event.EventType]; ok {
		return h(ctx, event)
	}
	return d.fallback(ctx, event)
}

// NewLogDispatcher logs every known event. Payloads hold identifiers and
// counters only. Unknown event types are logged as warnings and acknowledged.
func NewLogDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := NewDispatcher(func(ctx context.Context, event *domain.OutboxEvent) error {
		logger.WarnContext(ctx, "unknown event type", slog.String("event_type", event.EventType))
		return nil
	})

	d.Register(domain.EventTypeCustomerRegistered, Decode(
		func(ctx context.Context, p domain.CustomerRegisteredPayload) error {
			logger.InfoContext(ctx, "customer registered",
				slog.String("customer_id", p.CustomerID.String()),
				slog.String("tenant_id", p.TenantID),
				slog.Int("cards", p.Cards),
			)
			return nil
		},
	))

	d.Register(domain.EventTypeRekeyFinished, Decode(
		func(ctx context.Context, p rekeyDomain.RekeyFinishedEvent) error {
			attrs := []any{
				slog.String("entity", p.EntityName),
				slog.String("tenant_id", p.TenantID),
				slog.String("usage", string(p.Usage)),
				slog.String("target_key_id", p.TargetKeyID.String()),
				slog.Int("processed", p.Processed),
			}
			if p.SourceKeyID != nil {
				attrs = append(attrs, slog.String("source_key_id", p.SourceKeyID.String()))
			}
			logger.InfoContext(ctx, "rekey finished", attrs...)
			return nil
		},
	))

	return d
}
