package usecase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/entity"
	"github.com/allisson/fieldcrypt/internal/tracing"
)

// entityCryptoUseCaseWithTracing opens one span per encrypt or decrypt call.
type entityCryptoUseCaseWithTracing struct {
	next   EntityCryptoUseCase
	tracer trace.Tracer
}

// NewEntityCryptoUseCaseWithTracing wraps an EntityCryptoUseCase with spans.
func NewEntityCryptoUseCaseWithTracing(useCase EntityCryptoUseCase, tracer trace.Tracer) EntityCryptoUseCase {
	return &entityCryptoUseCaseWithTracing{
		next:   useCase,
		tracer: tracer,
	}
}

func (e *entityCryptoUseCaseWithTracing) Register(descriptors ...entity.Descriptor) error {
	return e.next.Register(descriptors...)
}

func (e *entityCryptoUseCaseWithTracing) Metadata(value any) (*entity.Metadata, bool) {
	return e.next.Metadata(value)
}

func (e *entityCryptoUseCaseWithTracing) Encrypt(ctx context.Context, value any) (err error) {
	ctx, span := e.start(ctx, "fieldcrypt.encrypt", value)
	defer func() { tracing.EndSpan(span, err) }()
	return e.next.Encrypt(ctx, value)
}

func (e *entityCryptoUseCaseWithTracing) EncryptWith(
	ctx context.Context,
	value any,
	resolver KeyResolver,
) (err error) {
	ctx, span := e.start(ctx, "fieldcrypt.encrypt_with", value)
	defer func() { tracing.EndSpan(span, err) }()
	return e.next.EncryptWith(ctx, value, resolver)
}

func (e *entityCryptoUseCaseWithTracing) Decrypt(ctx context.Context, value any) (err error) {
	ctx, span := e.start(ctx, "fieldcrypt.decrypt", value)
	defer func() { tracing.EndSpan(span, err) }()
	return e.next.Decrypt(ctx, value)
}

func (e *entityCryptoUseCaseWithTracing) EncryptAndSave(
	ctx context.Context,
	value any,
	save SaveFunc,
) (saved any, err error) {
	ctx, span := e.start(ctx, "fieldcrypt.encrypt_and_save", value)
	defer func() { tracing.EndSpan(span, err) }()
	return e.next.EncryptAndSave(ctx, value, save)
}

// start never puts field values on the span, only the Go type and tenant.
func (e *entityCryptoUseCaseWithTracing) start(
	ctx context.Context,
	name string,
	value any,
) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("fieldcrypt.entity_type", fmt.Sprintf("%T", value)),
		attribute.String("fieldcrypt.tenant_id", cryptoDomain.TenantFromContext(ctx)),
	))
}
