// Package domain defines the customer entities protected by field encryption.
//
// A Customer carries its confidential attributes (email, phone, document number)
// only in memory: they are persisted inside EncryptedPayload and indexed through
// lookup and unique digests. Payment cards are nested entities with their own
// payload and a two-slot digest of the card number.
package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/entity"
	"github.com/allisson/fieldcrypt/internal/errors"
)

// Customer represents a customer of a tenant.
type Customer struct {
	ID               uuid.UUID
	TenantID         string
	Name             string
	Email            string
	Phone            string
	DocumentNumber   string
	DocumentCountry  string
	EncryptedPayload string
	EncryptionKeyID  string
	HmacKeyID        string
	Cards            []*PaymentCard
	CreatedAt        time.Time
	UpdatedAt        time.Time

	lookupHmacs []cryptoDomain.HmacEntry
	uniqueHmacs []cryptoDomain.HmacEntry
}

// LookupHmacs returns the searchable digests.
func (c *Customer) LookupHmacs() []cryptoDomain.HmacEntry {
	return c.lookupHmacs
}

// SetLookupHmacs replaces the searchable digests.
func (c *Customer) SetLookupHmacs(entries []cryptoDomain.HmacEntry) {
	c.lookupHmacs = entries
}

// UniqueHmacs returns the digests backing the uniqueness constraints.
func (c *Customer) UniqueHmacs() []cryptoDomain.HmacEntry {
	return c.uniqueHmacs
}

// SetUniqueHmacs replaces the digests backing the uniqueness constraints.
func (c *Customer) SetUniqueHmacs(entries []cryptoDomain.HmacEntry) {
	c.uniqueHmacs = entries
}

// PaymentCard represents a card owned by a customer.
type PaymentCard struct {
	ID               uuid.UUID
	Pan              string
	HolderName       string
	Last4            string
	PanHmac1         string
	PanHmac2         string
	EncryptedPayload string
	EncryptionKeyID  string
}

// Field names used in digests aliases and payload bags.
const (
	FieldEmail          = "email"
	FieldPhone          = "phone"
	FieldDocumentNumber = "documentNumber"
	UniqueGroupDocument = "document"
)

// CustomerDescriptor declares how customers are encrypted and indexed.
func CustomerDescriptor() entity.Descriptor {
	return entity.Describe[Customer]("customer", entity.StrategyList,
		entity.String("name", func(c *Customer) *string { return &c.Name }),
		entity.String(FieldEmail, func(c *Customer) *string { return &c.Email }).
			Encrypt().
			Transient().
			Lookup(entity.Lowercase(), entity.EmailDomain()).
			Unique(),
		entity.String(FieldPhone, func(c *Customer) *string { return &c.Phone }).
			Encrypt().
			Transient().
			Lookup(entity.Suffix(4)),
		entity.String(FieldDocumentNumber, func(c *Customer) *string { return &c.DocumentNumber }).
			Encrypt().
			Transient().
			UniqueGroup(UniqueGroupDocument, 1, false),
		entity.String("documentCountry", func(c *Customer) *string { return &c.DocumentCountry }).
			UniqueGroup(UniqueGroupDocument, 2, true),
		entity.String("encryptedPayload", func(c *Customer) *string { return &c.EncryptedPayload }).
			EncryptedPayload(),
		entity.String("encryptionKeyId", func(c *Customer) *string { return &c.EncryptionKeyID }).
			EncryptionKeyID(),
		entity.String("hmacKeyId", func(c *Customer) *string { return &c.HmacKeyID }).HmacKeyID(),
		entity.NestedSlice("cards", func(c *Customer) *[]*PaymentCard { return &c.Cards }).Cascade(),
	)
}

// PaymentCardDescriptor declares how payment cards are encrypted and indexed.
func PaymentCardDescriptor() entity.Descriptor {
	return entity.Describe[PaymentCard]("payment_card", entity.StrategyDouble,
		entity.String("pan", func(p *PaymentCard) *string { return &p.Pan }).Encrypt().Transient().Hmac(),
		entity.String("holderName", func(p *PaymentCard) *string { return &p.HolderName }).Encrypt().Transient(),
		entity.String("panHmac1", func(p *PaymentCard) *string { return &p.PanHmac1 }),
		entity.String("panHmac2", func(p *PaymentCard) *string { return &p.PanHmac2 }),
		entity.String("encryptedPayload", func(p *PaymentCard) *string { return &p.EncryptedPayload }).
			EncryptedPayload(),
		entity.String("encryptionKeyId", func(p *PaymentCard) *string { return &p.EncryptionKeyID }).
			EncryptionKeyID(),
	)
}

// Descriptors returns every entity descriptor of the customer context.
func Descriptors() []entity.Descriptor {
	return []entity.Descriptor{PaymentCardDescriptor(), CustomerDescriptor()}
}

// Domain-specific errors for customer operations.
var (
	// ErrCustomerNotFound indicates the requested customer does not exist.
	ErrCustomerNotFound = errors.Wrap(errors.ErrNotFound, "customer not found")

	// ErrCustomerAlreadyExists indicates a customer with the same email or document already exists.
	ErrCustomerAlreadyExists = errors.Wrap(errors.ErrConflict, "customer already exists")
)
