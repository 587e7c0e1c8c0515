package domain

import "github.com/google/uuid"

// HmacHolder is a single digest computation: a key, the value to hash and the
// alias the digest is stored under. Backends fill Digest in place.
type HmacHolder struct {
	Key       *CryptoKey
	Value     string
	Alias     string
	Tokenized bool
	Digest    string
}

// HmacEntry is a persisted digest tagged with the key that produced it.
type HmacEntry struct {
	KeyID     uuid.UUID `json:"key_id"`
	Alias     string    `json:"alias"`
	Value     string    `json:"value"`
	Tokenized bool      `json:"tokenized,omitempty"`
}

// Entry converts a computed holder into its persisted form.
func (h *HmacHolder) Entry() HmacEntry {
	return HmacEntry{
		KeyID:     h.Key.ID,
		Alias:     h.Alias,
		Value:     h.Digest,
		Tokenized: h.Tokenized,
	}
}
