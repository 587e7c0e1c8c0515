package domain

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/entity"
	"github.com/allisson/fieldcrypt/internal/errors"
)

func TestDescriptors_Register(t *testing.T) {
	registry := entity.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))

	metas, err := registry.Register(Descriptors()...)
	require.NoError(t, err)
	require.Len(t, metas, 2)

	card, ok := registry.Lookup(&PaymentCard{})
	require.True(t, ok)
	assert.Equal(t, entity.StrategyDouble, card.Strategy)
	require.Len(t, card.HmacTargets, 1)
	assert.Equal(t, "pan", card.HmacTargets[0].Source.Name())
	assert.Len(t, card.FieldsToEncrypt, 2)

	customer, ok := registry.Lookup(&Customer{})
	require.True(t, ok)
	assert.Equal(t, entity.StrategyList, customer.Strategy)
	assert.True(t, customer.SupportsLookup())
	assert.True(t, customer.SupportsUnique())
	assert.Len(t, customer.FieldsToEncrypt, 3)
	assert.Len(t, customer.LookupFields, 2)
	require.Len(t, customer.UniqueGroups, 1)
	assert.Equal(t, UniqueGroupDocument, customer.UniqueGroups[0].Name)
	assert.Equal(t, FieldDocumentNumber, customer.UniqueGroups[0].Members[0].Field.Name())
	assert.True(t, customer.UniqueGroups[0].Members[1].Optional)
	require.Len(t, customer.CascadeFields, 1)
	assert.Equal(t, "cards", customer.CascadeFields[0].Name())
}

func TestCustomer_HmacCarriers(t *testing.T) {
	c := &Customer{}
	entries := []cryptoDomain.HmacEntry{{Alias: "email_lowercase", Value: "d"}}

	c.SetLookupHmacs(entries)
	c.SetUniqueHmacs(entries[:0])

	assert.Equal(t, entries, c.LookupHmacs())
	assert.Empty(t, c.UniqueHmacs())
}

func TestKeyFilter_Column(t *testing.T) {
	tests := []struct {
		name    string
		usage   cryptoDomain.KeyUsage
		want    string
		wantErr bool
	}{
		{name: "encryption", usage: cryptoDomain.UsageEncryption, want: "encryption_key_id"},
		{name: "hmac", usage: cryptoDomain.UsageHmac, want: "hmac_key_id"},
		{name: "unknown", usage: "signing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			column, err := KeyFilter{Usage: tt.usage}.Column()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKeyUsage)
				assert.True(t, errors.Is(err, errors.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, column)
		})
	}
}

func TestErrors(t *testing.T) {
	assert.True(t, errors.Is(ErrCustomerNotFound, errors.ErrNotFound))
	assert.True(t, errors.Is(ErrCustomerAlreadyExists, errors.ErrConflict))
}
