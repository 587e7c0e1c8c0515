package domain

import (
	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/errors"
)

// ErrInvalidKeyUsage indicates a key filter on an unknown key usage.
var ErrInvalidKeyUsage = errors.Wrap(errors.ErrInvalidInput, "invalid key usage")

// KeyFilter selects the customers of a tenant by the key of one usage they are
// protected with. Using false selects the customers protected by any other key,
// or by none. Customers are ordered by id, starting after After; uuid.Nil
// starts from the first one.
type KeyFilter struct {
	TenantID string
	Usage    cryptoDomain.KeyUsage
	KeyID    string
	Using    bool
	After    uuid.UUID
	Limit    int
}

// Column returns the customers column holding the key id of the filter's usage.
func (f KeyFilter) Column() (string, error) {
	switch f.Usage {
	case cryptoDomain.UsageEncryption:
		return "encryption_key_id", nil
	case cryptoDomain.UsageHmac:
		return "hmac_key_id", nil
	}
	return "", errors.Wrapf(ErrInvalidKeyUsage, "usage %q", f.Usage)
}
