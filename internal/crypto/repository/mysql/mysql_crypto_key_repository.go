// Package mysql implements crypto key persistence for MySQL.
//
// Ids are stored as BINARY(16) and key material as BLOB.
package mysql

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

// MySQLCryptoKeyRepository implements crypto key persistence for MySQL databases.
type MySQLCryptoKeyRepository struct {
	db *sql.DB
}

func (m *MySQLCryptoKeyRepository) Create(ctx context.Context, key *cryptoDomain.CryptoKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO crypto_keys (` + cryptoKeyColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal crypto key id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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

func (m *MySQLCryptoKeyRepository) Get(ctx context.Context, id uuid.UUID) (*cryptoDomain.CryptoKey, error) {
	querier := database.GetTx(ctx, m.db)

	binaryID, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal crypto key id")
	}

	query := `SELECT ` + cryptoKeyColumns + ` FROM crypto_keys WHERE id = ?`

	key, err := scanCryptoKey(querier.QueryRowContext(ctx, query, binaryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get crypto key")
	}
	return key, nil
}

func (m *MySQLCryptoKeyRepository) List(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	querier := database.GetTx(ctx, m.db)

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

func (m *MySQLCryptoKeyRepository) UpdateRotationMode(
	ctx context.Context,
	id uuid.UUID,
	mode cryptoDomain.RotationMode,
) error {
	querier := database.GetTx(ctx, m.db)

	binaryID, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal crypto key id")
	}

	query := `UPDATE crypto_keys SET rotation_mode = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := querier.ExecContext(ctx, query, mode, binaryID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update crypto key rotation mode")
	}
	return requireAffected(result)
}

func (m *MySQLCryptoKeyRepository) MarkForDeletion(ctx context.Context, id uuid.UUID, deletedAt time.Time) error {
	querier := database.GetTx(ctx, m.db)

	binaryID, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal crypto key id")
	}

	query := `UPDATE crypto_keys SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := querier.ExecContext(ctx, query, deletedAt, binaryID)
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
	var id []byte
	var activationTime, deletedAt sql.NullTime

	err := row.Scan(
		&id,
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

	if err := key.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal crypto key id")
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

// NewMySQLCryptoKeyRepository creates a new MySQL crypto key repository.
func NewMySQLCryptoKeyRepository(db *sql.DB) *MySQLCryptoKeyRepository {
	return &MySQLCryptoKeyRepository{db: db}
}
