package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/customer/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

// MySQLCustomerRepository handles customer persistence for MySQL
type MySQLCustomerRepository struct {
	db *sql.DB
}

// NewMySQLCustomerRepository creates a new MySQLCustomerRepository
func NewMySQLCustomerRepository(db *sql.DB) *MySQLCustomerRepository {
	return &MySQLCustomerRepository{
		db: db,
	}
}

// Create inserts a new customer with its cards and digests
func (r *MySQLCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO customers (` + customerColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	// Convert UUID to bytes for MySQL BINARY(16)
	idBytes, err := customer.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	_, err = querier.ExecContext(ctx, query,
		idBytes,
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

	return r.insertChildren(ctx, querier, idBytes, customer)
}

// Update rewrites a customer row and replaces its cards and digests
func (r *MySQLCustomerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := customer.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	// updated_at always changes, so a matched row is always an affected row
	query := `UPDATE customers
			  SET name = ?, document_country = ?, encrypted_payload = ?, encryption_key_id = ?,
			      hmac_key_id = ?, updated_at = NOW(6)
			  WHERE id = ? AND tenant_id = ?`

	result, err := querier.ExecContext(ctx, query,
		customer.Name,
		customer.DocumentCountry,
		customer.EncryptedPayload,
		nullableKeyID(customer.EncryptionKeyID),
		nullableKeyID(customer.HmacKeyID),
		idBytes,
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
		query := `DELETE FROM ` + table + ` WHERE customer_id = ?`
		if _, err := querier.ExecContext(ctx, query, idBytes); err != nil {
			return apperrors.Wrap(err, "failed to delete "+table)
		}
	}

	return r.insertChildren(ctx, querier, idBytes, customer)
}

// GetByID retrieves a customer of a tenant by ID
func (r *MySQLCustomerRepository) GetByID(
	ctx context.Context,
	tenantID string,
	id uuid.UUID,
) (*domain.Customer, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal UUID")
	}

	query := `SELECT ` + customerColumns + ` FROM customers WHERE tenant_id = ? AND id = ?`

	customer, err := scanMySQLCustomer(querier.QueryRowContext(ctx, query, tenantID, idBytes))
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
func (r *MySQLCustomerRepository) FindIDsByLookupHmac(
	ctx context.Context,
	tenantID, alias string,
	digests []string,
) ([]uuid.UUID, error) {
	if len(digests) == 0 {
		return nil, nil
	}
	querier := database.GetTx(ctx, r.db)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(digests)), ", ")
	query := `SELECT DISTINCT customer_id FROM customer_lookup_hmacs
			  WHERE tenant_id = ? AND alias = ? AND value IN (` + placeholders + `)
			  ORDER BY customer_id`

	args := make([]any, 0, len(digests)+2)
	args = append(args, tenantID, alias)
	for _, digest := range digests {
		args = append(args, digest)
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find customers by lookup hmac")
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []uuid.UUID
	for rows.Next() {
		var idBytes []byte
		if err := rows.Scan(&idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan customer id")
		}
		var id uuid.UUID
		if err := id.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to find customers by lookup hmac")
	}

	return ids, nil
}

// ListByKey returns customers of a tenant selected by the key they are protected with
func (r *MySQLCustomerRepository) ListByKey(
	ctx context.Context,
	filter domain.KeyFilter,
) ([]*domain.Customer, error) {
	querier := database.GetTx(ctx, r.db)

	column, err := filter.Column()
	if err != nil {
		return nil, err
	}

	condition := fmt.Sprintf("%s = ?", column)
	if !filter.Using {
		condition = fmt.Sprintf("(%s IS NULL OR %s <> ?)", column, column)
	}
	query := `SELECT ` + customerColumns + ` FROM customers
			  WHERE tenant_id = ? AND ` + condition + ` AND id > ?
			  ORDER BY id
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, filter.TenantID, filter.KeyID, filter.After[:], filter.Limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list customers by key")
	}
	defer func() {
		_ = rows.Close()
	}()

	var customers []*domain.Customer
	for rows.Next() {
		customer, err := scanMySQLCustomer(rows)
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

func (r *MySQLCustomerRepository) insertChildren(
	ctx context.Context,
	querier database.Querier,
	customerID []byte,
	customer *domain.Customer,
) error {
	cardQuery := `INSERT INTO customer_cards
				  (id, customer_id, position, last4, pan_hmac1, pan_hmac2, encrypted_payload, encryption_key_id)
				  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for i, card := range customer.Cards {
		cardID, err := card.ID.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal UUID")
		}
		_, err = querier.ExecContext(ctx, cardQuery,
			cardID,
			customerID,
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
					VALUES (?, ?, ?, ?, ?, ?)`
	for _, entry := range customer.LookupHmacs() {
		_, err := querier.ExecContext(ctx, lookupQuery,
			customerID, customer.TenantID, entry.KeyID.String(), entry.Alias, entry.Value, entry.Tokenized,
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to create customer lookup hmac")
		}
	}

	uniqueQuery := `INSERT INTO customer_unique_hmacs (customer_id, tenant_id, key_id, alias, value)
					VALUES (?, ?, ?, ?, ?)`
	for _, entry := range customer.UniqueHmacs() {
		_, err := querier.ExecContext(ctx, uniqueQuery,
			customerID, customer.TenantID, entry.KeyID.String(), entry.Alias, entry.Value,
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

func (r *MySQLCustomerRepository) loadChildren(
	ctx context.Context,
	querier database.Querier,
	customer *domain.Customer,
) error {
	idBytes, err := customer.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	cards, err := queryRows(ctx, querier,
		`SELECT id, last4, pan_hmac1, pan_hmac2, encrypted_payload, encryption_key_id
		 FROM customer_cards WHERE customer_id = ? ORDER BY position`,
		idBytes,
		func(rows *sql.Rows) (*domain.PaymentCard, error) {
			var card domain.PaymentCard
			var cardID []byte
			var keyID sql.NullString
			if err := rows.Scan(
				&cardID, &card.Last4, &card.PanHmac1, &card.PanHmac2, &card.EncryptedPayload, &keyID,
			); err != nil {
				return nil, err
			}
			card.EncryptionKeyID = keyID.String
			return &card, card.ID.UnmarshalBinary(cardID)
		},
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to load customer cards")
	}
	customer.Cards = cards

	lookup, err := queryRows(ctx, querier,
		`SELECT key_id, alias, value, tokenized FROM customer_lookup_hmacs
		 WHERE customer_id = ? ORDER BY key_id, alias, value`,
		idBytes,
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
		 WHERE customer_id = ? ORDER BY key_id, alias, value`,
		idBytes,
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

func scanMySQLCustomer(row rowScanner) (*domain.Customer, error) {
	var customer domain.Customer
	var idBytes []byte
	var encryptionKeyID, hmacKeyID sql.NullString

	err := row.Scan(
		&idBytes,
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

	// Convert bytes back to UUID
	if err := customer.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	customer.EncryptionKeyID = encryptionKeyID.String
	customer.HmacKeyID = hmacKeyID.String
	return &customer, nil
}
