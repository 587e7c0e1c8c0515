package hmac

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/entity"
)

type mockHasher struct {
	mock.Mock
}

func (m *mockHasher) Hmac(holders []*cryptoDomain.HmacHolder) error {
	args := m.Called(holders)
	return args.Error(0)
}

// fillDigests makes the digest readable in assertions: "<key id>|<value>".
func fillDigests(args mock.Arguments) {
	for _, holder := range args.Get(0).([]*cryptoDomain.HmacHolder) {
		holder.Digest = holder.Key.ID.String() + "|" + holder.Value
	}
}

func digest(key *cryptoDomain.CryptoKey, value string) string {
	return key.ID.String() + "|" + value
}

type staticKeys []*cryptoDomain.CryptoKey

func (s staticKeys) HmacKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	return s, nil
}

type failingKeys struct{ err error }

func (f failingKeys) HmacKeys(ctx context.Context) ([]*cryptoDomain.CryptoKey, error) {
	return nil, f.err
}

func newHmacKey(createdAt time.Time) *cryptoDomain.CryptoKey {
	return &cryptoDomain.CryptoKey{
		ID:        uuid.Must(uuid.NewV7()),
		Type:      cryptoDomain.HmacSHA256,
		Usage:     cryptoDomain.UsageHmac,
		CreatedAt: createdAt,
	}
}

type payment struct {
	Pan       string
	UserName  string
	PanHmac   string
	HmacKeyID string
}

type card struct {
	Pan      string
	PanHmac1 string
	PanHmac2 string
}

type contact struct {
	Email   string
	Number  string
	Country string
	lookup  []cryptoDomain.HmacEntry
	unique  []cryptoDomain.HmacEntry
}

func (c *contact) LookupHmacs() []cryptoDomain.HmacEntry { return c.lookup }

func (c *contact) SetLookupHmacs(entries []cryptoDomain.HmacEntry) { c.lookup = entries }

func (c *contact) UniqueHmacs() []cryptoDomain.HmacEntry { return c.unique }

func (c *contact) SetUniqueHmacs(entries []cryptoDomain.HmacEntry) { c.unique = entries }

func register(t *testing.T, descriptor entity.Descriptor) *entity.Metadata {
	t.Helper()
	registry := entity.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	metas, err := registry.Register(descriptor)
	require.NoError(t, err)
	return metas[0]
}

func paymentMetadata(t *testing.T) *entity.Metadata {
	return register(t, entity.Describe[payment]("payment", entity.StrategySingle,
		entity.String("pan", func(p *payment) *string { return &p.Pan }).Hmac(),
		entity.String("userName", func(p *payment) *string { return &p.UserName }),
		entity.String("panHmac", func(p *payment) *string { return &p.PanHmac }),
		entity.String("hmacKeyId", func(p *payment) *string { return &p.HmacKeyID }).HmacKeyID(),
	))
}

func cardMetadata(t *testing.T) *entity.Metadata {
	return register(t, entity.Describe[card]("card", entity.StrategyDouble,
		entity.String("pan", func(c *card) *string { return &c.Pan }).Hmac(),
		entity.String("panHmac1", func(c *card) *string { return &c.PanHmac1 }),
		entity.String("panHmac2", func(c *card) *string { return &c.PanHmac2 }),
	))
}

func contactMetadata(t *testing.T) *entity.Metadata {
	return register(t, entity.Describe[contact]("contact", entity.StrategyList,
		entity.String("email", func(c *contact) *string { return &c.Email }).
			Lookup(entity.Lowercase()).
			Unique(),
		entity.String("number", func(c *contact) *string { return &c.Number }).UniqueGroup("document", 1, false),
		entity.String("country", func(c *contact) *string { return &c.Country }).UniqueGroup("document", 2, true),
	))
}

func TestNew(t *testing.T) {
	t.Run("builds the declared strategy", func(t *testing.T) {
		s, err := New(paymentMetadata(t), &mockHasher{})
		require.NoError(t, err)
		assert.IsType(t, &singleStrategy{}, s)

		s, err = New(cardMetadata(t), &mockHasher{})
		require.NoError(t, err)
		assert.IsType(t, &doubleStrategy{}, s)

		s, err = New(contactMetadata(t), &mockHasher{})
		require.NoError(t, err)
		assert.IsType(t, &listStrategy{}, s)
	})

	t.Run("custom strategy must be supplied", func(t *testing.T) {
		meta := register(t, entity.Describe[payment]("payment", entity.StrategyCustom,
			entity.String("pan", func(p *payment) *string { return &p.Pan }),
		))

		s, err := New(meta, &mockHasher{})
		assert.Nil(t, s)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidRegistration)
	})
}

func TestSingleStrategy_ComputeAndStore(t *testing.T) {
	now := time.Now().UTC()

	t.Run("hashes with the newest active key", func(t *testing.T) {
		old := newHmacKey(now.Add(-48 * time.Hour))
		current := newHmacKey(now.Add(-24 * time.Hour))
		future := newHmacKey(now.Add(-time.Hour))
		activation := now.Add(time.Hour)
		future.ActivationTime = &activation

		hasher := &mockHasher{}
		hasher.On("Hmac", mock.MatchedBy(func(holders []*cryptoDomain.HmacHolder) bool {
			return len(holders) == 1 && holders[0].Key == current && holders[0].Value == "4111-1111"
		})).Run(fillDigests).Return(nil).Once()

		s, err := New(paymentMetadata(t), hasher)
		require.NoError(t, err)

		p := &payment{Pan: "4111-1111", UserName: "alice"}
		err = s.ComputeAndStore(context.Background(), p, staticKeys{old, future, current})
		require.NoError(t, err)

		assert.Equal(t, digest(current, "4111-1111"), p.PanHmac)
		assert.Equal(t, current.ID.String(), p.HmacKeyID)
		assert.Equal(t, "alice", p.UserName)
		hasher.AssertExpectations(t)
	})

	t.Run("empty source clears the digest without hashing", func(t *testing.T) {
		key := newHmacKey(now)
		hasher := &mockHasher{}

		s, err := New(paymentMetadata(t), hasher)
		require.NoError(t, err)

		p := &payment{PanHmac: "stale"}
		require.NoError(t, s.ComputeAndStore(context.Background(), p, staticKeys{key}))

		assert.Empty(t, p.PanHmac)
		hasher.AssertNotCalled(t, "Hmac", mock.Anything)
	})

	t.Run("key errors", func(t *testing.T) {
		activation := now.Add(time.Hour)
		pending := newHmacKey(now)
		pending.ActivationTime = &activation
		storeErr := cryptoDomain.NewTransientError(errors.New("connection reset"))

		tests := []struct {
			name        string
			keys        KeySource
			expectedErr error
		}{
			{name: "no keys", keys: staticKeys{}, expectedErr: cryptoDomain.ErrNoHmacKeys},
			{name: "no active key", keys: staticKeys{pending}, expectedErr: cryptoDomain.ErrNoActiveHmacKey},
			{name: "key source failure", keys: failingKeys{err: storeErr}, expectedErr: cryptoDomain.ErrTransient},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s, err := New(paymentMetadata(t), &mockHasher{})
				require.NoError(t, err)

				err = s.ComputeAndStore(context.Background(), &payment{Pan: "4111"}, tt.keys)
				assert.ErrorIs(t, err, tt.expectedErr)
			})
		}
	})

	t.Run("hasher failure", func(t *testing.T) {
		hasher := &mockHasher{}
		hasher.On("Hmac", mock.Anything).Return(cryptoDomain.ErrUnsupportedKeyType)

		s, err := New(paymentMetadata(t), hasher)
		require.NoError(t, err)

		err = s.ComputeAndStore(context.Background(), &payment{Pan: "4111"}, staticKeys{newHmacKey(now)})
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedKeyType)
	})
}

func TestDoubleStrategy_ComputeAndStore(t *testing.T) {
	now := time.Now().UTC()
	k1 := newHmacKey(now.Add(-48 * time.Hour))
	k2 := newHmacKey(now.Add(-24 * time.Hour))
	k3 := newHmacKey(now.Add(-time.Hour))

	tests := []struct {
		name           string
		ctx            context.Context
		keys           staticKeys
		initial        card
		expectedFirst  string
		expectedSecond string
		expectedHolder int
	}{
		{
			name:           "one key fills both slots with the same digest",
			ctx:            context.Background(),
			keys:           staticKeys{k1},
			expectedFirst:  digest(k1, "4111"),
			expectedSecond: digest(k1, "4111"),
			expectedHolder: 1,
		},
		{
			name:           "two keys fill distinct slots",
			ctx:            context.Background(),
			keys:           staticKeys{k2, k1},
			expectedFirst:  digest(k1, "4111"),
			expectedSecond: digest(k2, "4111"),
			expectedHolder: 2,
		},
		{
			name:           "more than two keys use the oldest and newest",
			ctx:            context.Background(),
			keys:           staticKeys{k2, k3, k1},
			expectedFirst:  digest(k1, "4111"),
			expectedSecond: digest(k3, "4111"),
			expectedHolder: 2,
		},
		{
			name:           "rekey mode leaves the first slot untouched",
			ctx:            WithRekey(context.Background(), nil),
			keys:           staticKeys{k2},
			initial:        card{PanHmac1: "previous", PanHmac2: "previous"},
			expectedFirst:  "previous",
			expectedSecond: digest(k2, "4111"),
			expectedHolder: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hasher := &mockHasher{}
			hasher.On("Hmac", mock.MatchedBy(func(holders []*cryptoDomain.HmacHolder) bool {
				return len(holders) == tt.expectedHolder
			})).Run(fillDigests).Return(nil).Once()

			s, err := New(cardMetadata(t), hasher)
			require.NoError(t, err)

			c := tt.initial
			c.Pan = "4111"
			require.NoError(t, s.ComputeAndStore(tt.ctx, &c, tt.keys))

			assert.Equal(t, tt.expectedFirst, c.PanHmac1)
			assert.Equal(t, tt.expectedSecond, c.PanHmac2)
			hasher.AssertExpectations(t)
		})
	}
}

func TestListStrategy_ComputeAndStore(t *testing.T) {
	now := time.Now().UTC()
	k1 := newHmacKey(now.Add(-48 * time.Hour))
	k2 := newHmacKey(now.Add(-24 * time.Hour))

	newStrategy := func(t *testing.T) Strategy {
		hasher := &mockHasher{}
		hasher.On("Hmac", mock.Anything).Run(fillDigests).Return(nil)
		s, err := New(contactMetadata(t), hasher)
		require.NoError(t, err)
		return s
	}

	t.Run("computes lookup, tokenized and unique entries", func(t *testing.T) {
		s := newStrategy(t)
		c := &contact{Email: "Alice@Example.com", Number: "123", Country: "BR"}

		require.NoError(t, s.ComputeAndStore(context.Background(), c, staticKeys{k1}))

		assert.Equal(t, []cryptoDomain.HmacEntry{
			{KeyID: k1.ID, Alias: "email", Value: digest(k1, "Alice@Example.com")},
			{KeyID: k1.ID, Alias: "email_lowercase", Value: digest(k1, "alice@example.com"), Tokenized: true},
		}, c.lookup)
		assert.Equal(t, []cryptoDomain.HmacEntry{
			{KeyID: k1.ID, Alias: "email", Value: digest(k1, "Alice@Example.com")},
			{KeyID: k1.ID, Alias: "document", Value: digest(k1, "123BR")},
		}, c.unique)
	})

	t.Run("is idempotent for the same key", func(t *testing.T) {
		s := newStrategy(t)
		c := &contact{Email: "alice@example.com", Number: "123", Country: "BR"}

		require.NoError(t, s.ComputeAndStore(context.Background(), c, staticKeys{k1}))
		firstLookup, firstUnique := c.lookup, c.unique
		require.NoError(t, s.ComputeAndStore(context.Background(), c, staticKeys{k1}))

		assert.Equal(t, firstLookup, c.lookup)
		assert.Equal(t, firstUnique, c.unique)
	})

	t.Run("merging a second key appends", func(t *testing.T) {
		s := newStrategy(t)
		c := &contact{Email: "alice@example.com", Number: "123"}

		require.NoError(t, s.ComputeAndStore(context.Background(), c, staticKeys{k1}))
		require.NoError(t, s.ComputeAndStore(context.Background(), c, staticKeys{k2}))

		require.Len(t, c.lookup, 4)
		assert.Equal(t, k1.ID, c.lookup[0].KeyID)
		assert.Equal(t, k1.ID, c.lookup[1].KeyID)
		assert.Equal(t, k2.ID, c.lookup[2].KeyID)
		assert.Equal(t, k2.ID, c.lookup[3].KeyID)
		require.Len(t, c.unique, 2)
		assert.Equal(t, k1.ID, c.unique[0].KeyID)
		assert.Equal(t, k2.ID, c.unique[1].KeyID)
	})

	t.Run("changed value replaces entries of the computing key", func(t *testing.T) {
		s := newStrategy(t)
		c := &contact{Email: "alice@example.com"}

		require.NoError(t, s.ComputeAndStore(context.Background(), c, staticKeys{k1}))
		c.Email = ""
		require.NoError(t, s.ComputeAndStore(context.Background(), c, staticKeys{k1}))

		assert.Empty(t, c.lookup)
	})

	t.Run("absent optional member drops the group", func(t *testing.T) {
		s := newStrategy(t)
		c := &contact{Number: "123"}

		require.NoError(t, s.ComputeAndStore(context.Background(), c, staticKeys{k1}))

		assert.Empty(t, c.unique)
	})

	t.Run("absent mandatory member hashes the literal null", func(t *testing.T) {
		s := newStrategy(t)
		c := &contact{Country: "BR"}

		require.NoError(t, s.ComputeAndStore(context.Background(), c, staticKeys{k1}))

		assert.Equal(t, []cryptoDomain.HmacEntry{
			{KeyID: k1.ID, Alias: "document", Value: digest(k1, "nullBR")},
		}, c.unique)
	})

	t.Run("rekey delegate skips keys with entries", func(t *testing.T) {
		hasher := &mockHasher{}
		s, err := New(contactMetadata(t), hasher)
		require.NoError(t, err)

		c := &contact{
			Email:  "alice@example.com",
			lookup: []cryptoDomain.HmacEntry{{KeyID: k2.ID, Alias: "email", Value: "x"}},
		}
		ctx := WithRekey(context.Background(), NewSkipExistingDelegate())

		require.NoError(t, s.ComputeAndStore(ctx, c, staticKeys{k2}))

		hasher.AssertNotCalled(t, "Hmac", mock.Anything)
		assert.Equal(t, []cryptoDomain.HmacEntry{{KeyID: k2.ID, Alias: "email", Value: "x"}}, c.lookup)
	})

	t.Run("rekey delegate adds the target key and keeps old entries", func(t *testing.T) {
		s := newStrategy(t)
		c := &contact{Email: "alice@example.com", Number: "123", Country: "BR"}
		require.NoError(t, s.ComputeAndStore(context.Background(), c, staticKeys{k1}))

		ctx := WithRekey(context.Background(), NewSkipExistingDelegate())
		require.NoError(t, s.ComputeAndStore(ctx, c, staticKeys{k2}))

		require.Len(t, c.lookup, 4)
		assert.Equal(t, k1.ID, c.lookup[0].KeyID)
		assert.Equal(t, k2.ID, c.lookup[3].KeyID)
		require.Len(t, c.unique, 4)
	})
}

func TestMergeEntries(t *testing.T) {
	k1 := newHmacKey(time.Now())
	k2 := newHmacKey(time.Now())

	existing := []cryptoDomain.HmacEntry{
		{KeyID: k1.ID, Alias: "email", Value: "old-k1"},
		{KeyID: k1.ID, Alias: "email_lowercase", Value: "old-k1-token", Tokenized: true},
		{KeyID: k2.ID, Alias: "email", Value: "old-k2"},
	}
	computed := []*cryptoDomain.HmacHolder{
		{Key: k1, Alias: "email_lowercase", Digest: "new-k1-token", Tokenized: true},
	}

	t.Run("regular write replaces every entry of the computing keys", func(t *testing.T) {
		merged := mergeEntries(existing, computed, []*cryptoDomain.CryptoKey{k1}, false)

		assert.Equal(t, []cryptoDomain.HmacEntry{
			{KeyID: k2.ID, Alias: "email", Value: "old-k2"},
			{KeyID: k1.ID, Alias: "email_lowercase", Value: "new-k1-token", Tokenized: true},
		}, merged)
	})

	t.Run("rekey keeps stripped entries and recomputes tokens", func(t *testing.T) {
		merged := mergeEntries(existing, computed, []*cryptoDomain.CryptoKey{k1}, true)

		assert.Equal(t, []cryptoDomain.HmacEntry{
			{KeyID: k1.ID, Alias: "email", Value: "old-k1"},
			{KeyID: k2.ID, Alias: "email", Value: "old-k2"},
			{KeyID: k1.ID, Alias: "email_lowercase", Value: "new-k1-token", Tokenized: true},
		}, merged)
	})
}
