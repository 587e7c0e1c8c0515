// Package postgresql implements crypto key persistence for PostgreSQL.
//
// Keys are stored in the crypto_keys table with native UUID ids and BYTEA key
// material wrapped by the KMS keeper. Retired keys are soft deleted through
// deleted_at so ciphertexts produced with them stay attributable.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

const cryptoKeyColumns = `id, tenant_id, key_type, key_usage, rotation_mode, encrypted_key,
	activation_time, created_at, deleted_at`

// PostgreSQLCryptoKeyRepository implements crypto key persistence for PostgreSQL databases.
//
// All methods work both within and outside of transactions via database.GetTx().
type PostgreSQLCryptoKeyRepository struct {
	db *sql.DB
}

// Create inserts a new crypto key.
func (p *PostgreSQLCryptoKeyRepository) Create(ctx context.Context, key *cryptoDomain.CryptoKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO crypto_keys (` + cryptoKeyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.TenantID,
		key.Type,
		key.Usage,
		key.RotationMode,
		key.EncryptedKey,
		key.ActivationTime,
		key.CreatedAt,
		key.DeletedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create crypto key")
	}
	return nil
}

// Get retrieves a key by id, including soft-deleted keys.
func (p *PostgreSQLCryptoKeyRepository) Get(ctx context.Context, id uuid.UUID) (*cryptoDomain.CryptoKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + cryptoKeyColumns + ` FROM crypto_keys WHERE id = $1`

	key, err := scanCryptoKey(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get crypto key")
	}
	return key, nil
}

// List returns every key that is not soft deleted, newest first.
func (p *PostgreSQLCryptoKeyRepository) List(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + cryptoKeyColumns + ` FROM crypto_keys
			  WHERE deleted_at IS NULL
			  ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list crypto keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	var keys []*cryptoDomain.CryptoKey
	for rows.Next() {
		key, err := scanCryptoKey(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan crypto key")
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to list crypto keys")
	}

	return keys, nil
}

// UpdateRotationMode changes the rotation mode of a key.
func (p *PostgreSQLCryptoKeyRepository) UpdateRotationMode(
	ctx context.Context,
	id uuid.UUID,
	mode cryptoDomain.RotationMode,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE crypto_keys SET rotation_mode = $1 WHERE id = $2 AND deleted_at IS NULL`

	result, err := querier.ExecContext(ctx, query, mode, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update crypto key rotation mode")
	}
	return requireAffected(result)
}

// MarkForDeletion soft deletes a key.
func (p *PostgreSQLCryptoKeyRepository) MarkForDeletion(
	ctx context.Context,
	id uuid.UUID,
	deletedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE crypto_keys SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`

	result, err := querier.ExecContext(ctx, query, deletedAt, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark crypto key for deletion")
	}
	return requireAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCryptoKey(row rowScanner) (*cryptoDomain.CryptoKey, error) {
	var key cryptoDomain.CryptoKey
	var activationTime, deletedAt sql.NullTime

	err := row.Scan(
		&key.ID,
		&key.TenantID,
		&key.Type,
		&key.Usage,
		&key.RotationMode,
		&key.EncryptedKey,
		&activationTime,
		&key.CreatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if activationTime.Valid {
		key.ActivationTime = &activationTime.Time
	}
	if deletedAt.Valid {
		key.DeletedAt = &deletedAt.Time
	}
	return &key, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return cryptoDomain.ErrKeyNotFound
	}
	return nil
}

// NewPostgreSQLCryptoKeyRepository creates a new PostgreSQL crypto key repository.
func NewPostgreSQLCryptoKeyRepository(db *sql.DB) *PostgreSQLCryptoKeyRepository {
	return &PostgreSQLCryptoKeyRepository{db: db}
}
