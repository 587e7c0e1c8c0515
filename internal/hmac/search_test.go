package hmac

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

func TestDigests(t *testing.T) {
	now := time.Now()
	k1, k2 := newHmacKey(now), newHmacKey(now.Add(-time.Hour))

	t.Run("one digest per key", func(t *testing.T) {
		hasher := &mockHasher{}
		hasher.On("Hmac", mock.MatchedBy(func(holders []*cryptoDomain.HmacHolder) bool {
			return len(holders) == 2 && holders[0].Alias == "email_lowercase" && !holders[0].Tokenized
		})).Run(fillDigests).Return(nil).Once()

		digests, err := Digests(hasher, []*cryptoDomain.CryptoKey{k1, k2}, "email_lowercase", "alice@example.com")

		require.NoError(t, err)
		assert.Equal(t, []string{digest(k1, "alice@example.com"), digest(k2, "alice@example.com")}, digests)
		hasher.AssertExpectations(t)
	})

	t.Run("no keys", func(t *testing.T) {
		_, err := Digests(&mockHasher{}, nil, "email", "alice@example.com")
		assert.ErrorIs(t, err, cryptoDomain.ErrNoHmacKeys)
	})

	t.Run("hasher failure", func(t *testing.T) {
		expected := errors.New("backend down")
		hasher := &mockHasher{}
		hasher.On("Hmac", mock.Anything).Return(expected).Once()

		_, err := Digests(hasher, []*cryptoDomain.CryptoKey{k1}, "email", "alice@example.com")
		assert.ErrorIs(t, err, expected)
	})
}

func TestTokenAlias(t *testing.T) {
	assert.Equal(t, "phone_suffix4", TokenAlias("phone", "suffix4"))
}
