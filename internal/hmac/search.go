package hmac

import (
	"slices"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// TokenAlias is the alias tokens of field produced by tokenizer are stored under.
func TokenAlias(field, tokenizer string) string {
	return field + "_" + tokenizer
}

// Digests computes the digest of value under every key, in key order. Stores
// match the result against persisted entries of the same alias to search
// across every key still in use.
func Digests(hasher Hasher, keys []*cryptoDomain.CryptoKey, alias, value string) ([]string, error) {
	if len(keys) == 0 {
		return nil, cryptoDomain.ErrNoHmacKeys
	}

	holders := make([]*cryptoDomain.HmacHolder, len(keys))
	for i, key := range keys {
		holders[i] = &cryptoDomain.HmacHolder{Key: key, Value: value, Alias: alias}
	}
	if err := hasher.Hmac(holders); err != nil {
		return nil, err
	}

	digests := make([]string, 0, len(holders))
	for _, holder := range holders {
		if !slices.Contains(digests, holder.Digest) {
			digests = append(digests, holder.Digest)
		}
	}
	return digests, nil
}
