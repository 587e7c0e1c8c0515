// Package repository provides data persistence implementations for customer entities.
//
// Only ciphertext, digests and non-confidential columns reach the database: the
// customers and customer_cards tables hold the encrypted payloads and key ids,
// customer_lookup_hmacs and customer_unique_hmacs hold the digest lists. The
// unique table carries a UNIQUE constraint on (tenant_id, key_id, alias, value).
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/customer/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

const customerColumns = `id, tenant_id, name, document_country, encrypted_payload, encryption_key_id,
	hmac_key_id, created_at, updated_at`

// PostgreSQLCustomerRepository handles customer persistence for PostgreSQL
type PostgreSQLCustomerRepository struct {
	db *sql.DB
}

// NewPostgreSQLCustomerRepository creates a new PostgreSQLCustomerRepository
func NewPostgreSQLCustomerRepository(db *sql.DB) *PostgreSQLCustomerRepository {
	return &PostgreSQLCustomerRepository{
		db: db,
	}
}

// Create inserts a new customer with its cards and digests
func (r *PostgreSQLCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO customers (` + customerColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query,
		customer.ID,
		customer.TenantID,
		customer.Name,
		customer.DocumentCountry,
		customer.EncryptedPayload,
		nullableKeyID(customer.EncryptionKeyID),
		nullableKeyID(customer.HmacKeyID),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrCustomerAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create customer")
	}

	return r.insertChildren(ctx, querier, customer)
}

// Update rewrites a customer row and replaces its cards and digests
func (r *PostgreSQLCustomerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE customers
			  SET name = $1, document_country = $2, encrypted_payload = $3, encryption_key_id = $4,
			      hmac_key_id = $5, updated_at = NOW()
			  WHERE id = $6 AND tenant_id = $7`

	result, err := querier.ExecContext(ctx, query,
		customer.Name,
		customer.DocumentCountry,
		customer.EncryptedPayload,
		nullableKeyID(customer.EncryptionKeyID),
		nullableKeyID(customer.HmacKeyID),
		customer.ID,
		customer.TenantID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update customer")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return domain.ErrCustomerNotFound
	}

	for _, table := range []string{"customer_cards", "customer_lookup_hmacs", "customer_unique_hmacs"} {
		query := `DELETE FROM ` + table + ` WHERE customer_id = $1`
		if _, err := querier.ExecContext(ctx, query, customer.ID); err != nil {
			return apperrors.Wrap(err, "failed to delete "+table)
		}
	}

	return r.insertChildren(ctx, querier, customer)
}

// GetByID retrieves a customer of a tenant by ID
func (r *PostgreSQLCustomerRepository) GetByID(
	ctx context.Context,
	tenantID string,
	id uuid.UUID,
) (*domain.Customer, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + customerColumns + ` FROM customers WHERE tenant_id = $1 AND id = $2`

	customer, err := scanPostgreSQLCustomer(querier.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get customer by id")
	}

	if err := r.loadChildren(ctx, querier, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// FindIDsByLookupHmac returns the ids of the customers of a tenant holding any of
// the digests under alias
func (r *PostgreSQLCustomerRepository) FindIDsByLookupHmac(
	ctx context.Context,
	tenantID, alias string,
	digests []string,
) ([]uuid.UUID, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT DISTINCT customer_id FROM customer_lookup_hmacs
			  WHERE tenant_id = $1 AND alias = $2 AND value = ANY($3)
			  ORDER BY customer_id`

	rows, err := querier.QueryContext(ctx, query, tenantID, alias, pq.Array(digests))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find customers by lookup hmac")
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan customer id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to find customers by lookup hmac")
	}

	return ids, nil
}

// ListByKey returns customers of a tenant selected by the key they are protected with
func (r *PostgreSQLCustomerRepository) ListByKey(
	ctx context.Context,
	filter domain.KeyFilter,
) ([]*domain.Customer, error) {
	querier := database.GetTx(ctx, r.db)

	column, err := filter.Column()
	if err != nil {
		return nil, err
	}

	condition := fmt.Sprintf("%s = $2", column)
	if !filter.Using {
		condition = fmt.Sprintf("(%s IS NULL OR %s <> $2)", column, column)
	}
	query := `SELECT ` + customerColumns + ` FROM customers
			  WHERE tenant_id = $1 AND ` + condition + ` AND id > $3
			  ORDER BY id
			  LIMIT $4`

	rows, err := querier.QueryContext(ctx, query, filter.TenantID, filter.KeyID, filter.After, filter.Limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list customers by key")
	}
	defer func() {
		_ = rows.Close()
	}()

	var customers []*domain.Customer
	for rows.Next() {
		customer, err := scanPostgreSQLCustomer(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan customer")
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to list customers by key")
	}

	for _, customer := range customers {
		if err := r.loadChildren(ctx, querier, customer); err != nil {
			return nil, err
		}
	}
	return customers, nil
}

func (r *PostgreSQLCustomerRepository) insertChildren(
	ctx context.Context,
	querier database.Querier,
	customer *domain.Customer,
) error {
	cardQuery := `INSERT INTO customer_cards
				  (id, customer_id, position, last4, pan_hmac1, pan_hmac2, encrypted_payload, encryption_key_id)
				  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for i, card := range customer.Cards {
		_, err := querier.ExecContext(ctx, cardQuery,
			card.ID,
			customer.ID,
			i,
			card.Last4,
			card.PanHmac1,
			card.PanHmac2,
			card.EncryptedPayload,
			nullableKeyID(card.EncryptionKeyID),
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to create customer card")
		}
	}

	lookupQuery := `INSERT INTO customer_lookup_hmacs (customer_id, tenant_id, key_id, alias, value, tokenized)
					VALUES ($1, $2, $3, $4, $5, $6)`
	for _, entry := range customer.LookupHmacs() {
		_, err := querier.ExecContext(ctx, lookupQuery,
			customer.ID, customer.TenantID, entry.KeyID, entry.Alias, entry.Value, entry.Tokenized,
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to create customer lookup hmac")
		}
	}

	uniqueQuery := `INSERT INTO customer_unique_hmacs (customer_id, tenant_id, key_id, alias, value)
					VALUES ($1, $2, $3, $4, $5)`
	for _, entry := range customer.UniqueHmacs() {
		_, err := querier.ExecContext(ctx, uniqueQuery,
			customer.ID, customer.TenantID, entry.KeyID, entry.Alias, entry.Value,
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return domain.ErrCustomerAlreadyExists
			}
			return apperrors.Wrap(err, "failed to create customer unique hmac")
		}
	}

	return nil
}

func (r *PostgreSQLCustomerRepository) loadChildren(
	ctx context.Context,
	querier database.Querier,
	customer *domain.Customer,
) error {
	cards, err := queryRows(ctx, querier,
		`SELECT id, last4, pan_hmac1, pan_hmac2, encrypted_payload, encryption_key_id
		 FROM customer_cards WHERE customer_id = $1 ORDER BY position`,
		customer.ID,
		func(rows *sql.Rows) (*domain.PaymentCard, error) {
			var card domain.PaymentCard
			var keyID sql.NullString
			err := rows.Scan(
				&card.ID, &card.Last4, &card.PanHmac1, &card.PanHmac2, &card.EncryptedPayload, &keyID,
			)
			card.EncryptionKeyID = keyID.String
			return &card, err
		},
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to load customer cards")
	}
	customer.Cards = cards

	lookup, err := queryRows(ctx, querier,
		`SELECT key_id, alias, value, tokenized FROM customer_lookup_hmacs
		 WHERE customer_id = $1 ORDER BY key_id, alias, value`,
		customer.ID,
		func(rows *sql.Rows) (cryptoDomain.HmacEntry, error) {
			var entry cryptoDomain.HmacEntry
			err := rows.Scan(&entry.KeyID, &entry.Alias, &entry.Value, &entry.Tokenized)
			return entry, err
		},
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to load customer lookup hmacs")
	}
	customer.SetLookupHmacs(lookup)

	unique, err := queryRows(ctx, querier,
		`SELECT key_id, alias, value FROM customer_unique_hmacs
		 WHERE customer_id = $1 ORDER BY key_id, alias, value`,
		customer.ID,
		func(rows *sql.Rows) (cryptoDomain.HmacEntry, error) {
			var entry cryptoDomain.HmacEntry
			err := rows.Scan(&entry.KeyID, &entry.Alias, &entry.Value)
			return entry, err
		},
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to load customer unique hmacs")
	}
	customer.SetUniqueHmacs(unique)

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgreSQLCustomer(row rowScanner) (*domain.Customer, error) {
	var customer domain.Customer
	var encryptionKeyID, hmacKeyID sql.NullString

	err := row.Scan(
		&customer.ID,
		&customer.TenantID,
		&customer.Name,
		&customer.DocumentCountry,
		&customer.EncryptedPayload,
		&encryptionKeyID,
		&hmacKeyID,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	customer.EncryptionKeyID = encryptionKeyID.String
	customer.HmacKeyID = hmacKeyID.String
	return &customer, nil
}

// queryRows runs query and scans every row with scan.
func queryRows[T any](
	ctx context.Context,
	querier database.Querier,
	query string,
	arg any,
	scan func(rows *sql.Rows) (T, error),
) ([]T, error) {
	rows, err := querier.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// nullableKeyID stores an absent key id as NULL.
func nullableKeyID(keyID string) any {
	if keyID == "" {
		return nil
	}
	return keyID
}
