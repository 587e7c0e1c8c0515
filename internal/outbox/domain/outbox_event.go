// Package domain defines the outbox event and the payloads written to it.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEventStatus is the delivery state of an event.
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
)

// Event types written to the outbox.
const (
	EventTypeCustomerRegistered = "customer.registered"
	EventTypeRekeyFinished      = "rekey.finished"
)

// OutboxEvent is written in the same transaction as the change it announces
// and delivered later by the outbox processor. Payloads never carry
// confidential field values.
type OutboxEvent struct {
	ID          uuid.UUID
	EventType   string
	Payload     string
	Status      OutboxEventStatus
	Retries     int
	LastError   *string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CustomerRegisteredPayload is the payload of EventTypeCustomerRegistered.
type CustomerRegisteredPayload struct {
	CustomerID uuid.UUID `json:"customer_id"`
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	Cards      int       `json:"cards"`
}

// NewPendingEvent encodes payload as JSON into a new pending event.
func NewPendingEvent(eventType string, payload any) (*OutboxEvent, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:        uuid.Must(uuid.NewV7()),
		EventType: eventType,
		Payload:   string(encoded),
		Status:    OutboxEventStatusPending,
	}, nil
}

func (e *OutboxEvent) MarkProcessed(at time.Time) {
	e.Status = OutboxEventStatusProcessed
	e.ProcessedAt = &at
	e.LastError = nil
}

// MarkFailed records a delivery failure. The event stays pending until it
// has failed maxRetries times, or immediately fails when permanent is set.
func (e *OutboxEvent) MarkFailed(cause error, maxRetries int, permanent bool) {
	e.Retries++
	msg := cause.Error()
	e.LastError = &msg
	if permanent || e.Retries >= maxRetries {
		e.Status = OutboxEventStatusFailed
	}
}
