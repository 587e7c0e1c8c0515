package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics records what the use cases do, independent of transport.
//
// domain is the bounded context ("customer", "fieldcrypt", "crypto", "rekey",
// "outbox"), operation the use case method ("register", "encrypt", "tick") and
// status either "success" or "error". Labels never carry tenant ids or field
// values.
type BusinessMetrics interface {
	RecordOperation(ctx context.Context, domain, operation, status string)
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)
	// RecordRekeyedRecords adds count records of entity moved onto a key of usage.
	RecordRekeyedRecords(ctx context.Context, entity, usage string, count int)
}

type businessMetrics struct {
	operations metric.Int64Counter
	durations  metric.Float64Histogram
	rekeyed    metric.Int64Counter
}

// NewBusinessMetrics registers <namespace>_operations_total,
// <namespace>_operation_duration_seconds and <namespace>_rekeyed_records_total.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)
	m := &businessMetrics{}
	var err error

	if m.operations, err = meter.Int64Counter(namespace+"_operations_total",
		metric.WithDescription("Business operations by domain, operation and status"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	if m.durations, err = meter.Float64Histogram(namespace+"_operation_duration_seconds",
		metric.WithDescription("Business operation latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	if m.rekeyed, err = meter.Int64Counter(namespace+"_rekeyed_records_total",
		metric.WithDescription("Records rewritten onto a new key by the rekey scheduler"),
		metric.WithUnit("{record}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rekeyed records counter: %w", err)
	}

	return m, nil
}

func operationAttrs(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}

func (m *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.operations.Add(ctx, 1, operationAttrs(domain, operation, status))
}

func (m *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.durations.Record(ctx, duration.Seconds(), operationAttrs(domain, operation, status))
}

func (m *businessMetrics) RecordRekeyedRecords(ctx context.Context, entity, usage string, count int) {
	m.rekeyed.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("usage", usage),
	))
}

// NoOpBusinessMetrics discards every measurement. It is used when METRICS_ENABLED is false.
type NoOpBusinessMetrics struct{}

func NewNoOpBusinessMetrics() BusinessMetrics {
	return NoOpBusinessMetrics{}
}

func (NoOpBusinessMetrics) RecordOperation(context.Context, string, string, string) {}

func (NoOpBusinessMetrics) RecordDuration(context.Context, string, string, time.Duration, string) {}

func (NoOpBusinessMetrics) RecordRekeyedRecords(context.Context, string, string, int) {}
