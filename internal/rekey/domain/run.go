package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// Batch is one page of records to rekey. Stores order records by a stable key;
// Cursor is the key of the last record and, passed back as after, selects the
// records behind it.
type Batch struct {
	Records []any
	Cursor  string
}

// RekeyFinishedEvent is emitted once every record of an entity type of a tenant
// stopped depending on the retired key, if at least one record was rewritten.
type RekeyFinishedEvent struct {
	EntityName  string                `json:"entity_name"`
	TenantID    string                `json:"tenant_id"`
	Usage       cryptoDomain.KeyUsage `json:"usage"`
	SourceKeyID *uuid.UUID            `json:"source_key_id,omitempty"`
	TargetKeyID uuid.UUID             `json:"target_key_id"`
	Processed   int                   `json:"processed"`
	FinishedAt  time.Time             `json:"finished_at"`
}

// TenantResult summarizes the run of one tenant within a tick.
type TenantResult struct {
	TenantID  string `json:"tenant_id" yaml:"tenant_id"`
	Skipped   bool   `json:"skipped" yaml:"skipped"`
	Processed int    `json:"processed" yaml:"processed"`
	Failed    int    `json:"failed" yaml:"failed"`
	Batches   int    `json:"batches" yaml:"batches"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// TickResult summarizes one scheduler tick.
type TickResult struct {
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
	Tenants    []TenantResult `json:"tenants" yaml:"tenants"`
}
