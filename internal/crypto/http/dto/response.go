// Package dto provides data transfer objects for the crypto key HTTP layer.
package dto

import (
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// CryptoKeyResponse exposes key metadata. Key material, wrapped or not, is never returned.
type CryptoKeyResponse struct {
	ID             string     `json:"id" yaml:"id"`
	TenantID       string     `json:"tenant_id" yaml:"tenant_id"`
	Type           string     `json:"type" yaml:"type"`
	Usage          string     `json:"usage" yaml:"usage"`
	RotationMode   string     `json:"rotation_mode" yaml:"rotation_mode"`
	ActivationTime *time.Time `json:"activation_time,omitempty" yaml:"activation_time,omitempty"`
	CreatedAt      time.Time  `json:"created_at" yaml:"created_at"`
}

// ListCryptoKeysResponse represents a page of crypto keys.
type ListCryptoKeysResponse struct {
	Data   []CryptoKeyResponse `json:"data"`
	Offset int                 `json:"offset"`
	Limit  int                 `json:"limit"`
}

// MapCryptoKeyToResponse converts a domain key to its metadata response.
func MapCryptoKeyToResponse(key *cryptoDomain.CryptoKey) CryptoKeyResponse {
	return CryptoKeyResponse{
		ID:             key.ID.String(),
		TenantID:       key.TenantID,
		Type:           string(key.Type),
		Usage:          string(key.Usage),
		RotationMode:   string(key.RotationMode),
		ActivationTime: key.ActivationTime,
		CreatedAt:      key.CreatedAt,
	}
}

// MapCryptoKeysToListResponse converts a page of domain keys to a list response.
func MapCryptoKeysToListResponse(keys []*cryptoDomain.CryptoKey, offset, limit int) ListCryptoKeysResponse {
	data := make([]CryptoKeyResponse, 0, len(keys))
	for _, key := range keys {
		data = append(data, MapCryptoKeyToResponse(key))
	}
	return ListCryptoKeysResponse{Data: data, Offset: offset, Limit: limit}
}
