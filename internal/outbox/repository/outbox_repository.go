// Package repository persists outbox events for PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
	"github.com/allisson/fieldcrypt/internal/outbox/domain"
)

// dialect holds the statements of one database driver. The outbox table has
// the same columns on both drivers; only placeholders, the clock function and
// the id encoding differ.
type dialect struct {
	insert     string
	claim      string
	saveResult string
	encodeID   func(uuid.UUID) any
}

var dialects = map[string]dialect{
	database.DriverPostgres: {
		insert: `INSERT INTO outbox_events (id, event_type, payload, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		claim: `SELECT id, event_type, payload, status, retries, last_error, processed_at, created_at, updated_at
			FROM outbox_events WHERE status = $1
			ORDER BY created_at, id LIMIT $2
			FOR UPDATE SKIP LOCKED`,
		saveResult: `UPDATE outbox_events
			SET status = $1, retries = $2, last_error = $3, processed_at = $4, updated_at = NOW()
			WHERE id = $5`,
		encodeID: func(id uuid.UUID) any { return id },
	},
	database.DriverMySQL: {
		insert: `INSERT INTO outbox_events (id, event_type, payload, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, NOW(6), NOW(6))`,
		claim: `SELECT id, event_type, payload, status, retries, last_error, processed_at, created_at, updated_at
			FROM outbox_events WHERE status = ?
			ORDER BY created_at, id LIMIT ?
			FOR UPDATE SKIP LOCKED`,
		saveResult: `UPDATE outbox_events
			SET status = ?, retries = ?, last_error = ?, processed_at = ?, updated_at = NOW(6)
			WHERE id = ?`,
		// BINARY(16) column
		encodeID: func(id uuid.UUID) any { return id[:] },
	},
}

// OutboxEventRepository stores outbox events. Every method joins the
// transaction carried by ctx, if any.
type OutboxEventRepository struct {
	db      *sql.DB
	dialect dialect
}

// NewOutboxEventRepository returns the repository for driver (postgres or mysql).
func NewOutboxEventRepository(db *sql.DB, driver string) (*OutboxEventRepository, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	return &OutboxEventRepository{db: db, dialect: d}, nil
}

// Create inserts a pending event.
func (r *OutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	_, err := database.GetTx(ctx, r.db).ExecContext(ctx, r.dialect.insert,
		r.dialect.encodeID(event.ID), event.EventType, event.Payload, event.Status)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// ClaimPending locks up to limit pending events, oldest first. Rows locked by
// another processor are skipped, so the call must run inside a transaction for
// the claim to hold.
func (r *OutboxEventRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := database.GetTx(ctx, r.db).QueryContext(ctx, r.dialect.claim, domain.OutboxEventStatusPending, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to claim outbox events")
	}
	defer rows.Close() //nolint:errcheck

	events := make([]*domain.OutboxEvent, 0, max(limit, 0))
	for rows.Next() {
		var e domain.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.Status,
			&e.Retries, &e.LastError, &e.ProcessedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox event")
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to claim outbox events")
	}
	return events, nil
}

// SaveResult persists the delivery state of event. Type and payload are immutable.
func (r *OutboxEventRepository) SaveResult(ctx context.Context, event *domain.OutboxEvent) error {
	_, err := database.GetTx(ctx, r.db).ExecContext(ctx, r.dialect.saveResult,
		event.Status, event.Retries, event.LastError, event.ProcessedAt, r.dialect.encodeID(event.ID))
	if err != nil {
		return apperrors.Wrap(err, "failed to save outbox event result")
	}
	return nil
}
