package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptoKey_IsActive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		key  *CryptoKey
		want bool
	}{
		{name: "no activation time", key: &CryptoKey{}, want: true},
		{name: "activation in the past", key: &CryptoKey{ActivationTime: &past}, want: true},
		{name: "activation now", key: &CryptoKey{ActivationTime: &now}, want: true},
		{name: "activation in the future", key: &CryptoKey{ActivationTime: &future}, want: false},
		{name: "deleted", key: &CryptoKey{DeletedAt: &past}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.IsActive(now))
		})
	}
}

func TestSortNewestFirst(t *testing.T) {
	now := time.Now()
	oldest := &CryptoKey{ID: uuid.New(), CreatedAt: now.Add(-2 * time.Hour)}
	middle := &CryptoKey{ID: uuid.New(), CreatedAt: now.Add(-time.Hour)}
	newest := &CryptoKey{ID: uuid.New(), CreatedAt: now}
	undated := &CryptoKey{ID: uuid.New()}

	keys := []*CryptoKey{undated, oldest, newest, middle}
	SortNewestFirst(keys)

	assert.Equal(t, []*CryptoKey{newest, middle, oldest, undated}, keys)
}

func TestKeyRing(t *testing.T) {
	now := time.Now()
	older := &CryptoKey{ID: uuid.New(), Usage: UsageHmac, CreatedAt: now.Add(-time.Hour), Key: []byte{1, 2}}
	newer := &CryptoKey{ID: uuid.New(), Usage: UsageEncryption, CreatedAt: now, Key: []byte{3, 4}}

	ring := NewKeyRing([]*CryptoKey{older, newer})

	t.Run("get by id", func(t *testing.T) {
		key, ok := ring.Get(older.ID)
		require.True(t, ok)
		assert.Equal(t, older, key)

		_, ok = ring.Get(uuid.New())
		assert.False(t, ok)
	})

	t.Run("all newest first", func(t *testing.T) {
		assert.Equal(t, []*CryptoKey{newer, older}, ring.All())
	})

	t.Run("filter", func(t *testing.T) {
		hmacKeys := ring.Filter(func(key *CryptoKey) bool { return key.Usage == UsageHmac })
		assert.Equal(t, []*CryptoKey{older}, hmacKeys)
	})
}
