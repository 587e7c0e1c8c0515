// Package dto provides data transfer objects for the customer HTTP layer.
package dto

import (
	"time"

	"github.com/google/uuid"
)

// CardResponse represents a payment card in API responses. The card number is
// never returned.
type CardResponse struct {
	ID         uuid.UUID `json:"id"`
	HolderName string    `json:"holder_name"`
	Last4      string    `json:"last4"`
}

// CustomerResponse represents the API response for a decrypted customer
type CustomerResponse struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone,omitempty"`
	DocumentNumber  string         `json:"document_number,omitempty"`
	DocumentCountry string         `json:"document_country,omitempty"`
	Cards           []CardResponse `json:"cards"`
	EncryptionKeyID string         `json:"encryption_key_id"`
	HmacKeyID       string         `json:"hmac_key_id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ListCustomersResponse wraps the customers matched by a search
type ListCustomersResponse struct {
	Data []CustomerResponse `json:"data"`
}
