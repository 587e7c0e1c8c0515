package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoMocks "github.com/allisson/fieldcrypt/internal/crypto/usecase/mocks"
	fieldcryptUsecase "github.com/allisson/fieldcrypt/internal/fieldcrypt/usecase"
	fieldcryptMocks "github.com/allisson/fieldcrypt/internal/fieldcrypt/usecase/mocks"
	"github.com/allisson/fieldcrypt/internal/metrics"
	"github.com/allisson/fieldcrypt/internal/rekey/domain"
	"github.com/allisson/fieldcrypt/internal/rekey/usecase/mocks"
)

type record struct {
	ID int
}

type schedulerFixture struct {
	keyProvider  *cryptoMocks.MockKeyProvider
	keyManager   *mocks.MockKeyLifecycleManager
	entityCrypto *fieldcryptMocks.MockEntityCryptoUseCase
	store        *mocks.MockRecordStore
	scheduler    *Scheduler
}

func newSchedulerFixture(t *testing.T, config Config, now time.Time) *schedulerFixture {
	t.Helper()

	f := &schedulerFixture{
		keyProvider:  &cryptoMocks.MockKeyProvider{},
		keyManager:   &mocks.MockKeyLifecycleManager{},
		entityCrypto: &fieldcryptMocks.MockEntityCryptoUseCase{},
		store:        &mocks.MockRecordStore{},
	}
	f.store.On("EntityName").Return("customer").Maybe()

	f.scheduler = NewScheduler(
		config,
		f.keyProvider,
		f.keyManager,
		f.entityCrypto,
		[]RecordStore{f.store},
		metrics.NewNoOpBusinessMetrics(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	f.scheduler.now = func() time.Time { return now }
	return f
}

func (f *schedulerFixture) assertExpectations(t *testing.T) {
	f.keyProvider.AssertExpectations(t)
	f.keyManager.AssertExpectations(t)
	f.entityCrypto.AssertExpectations(t)
	f.store.AssertExpectations(t)
}

func newKey(
	tenantID string,
	usage cryptoDomain.KeyUsage,
	mode cryptoDomain.RotationMode,
	createdAt time.Time,
) *cryptoDomain.CryptoKey {
	keyType := cryptoDomain.AESGCM
	if usage == cryptoDomain.UsageHmac {
		keyType = cryptoDomain.HmacSHA256
	}
	return &cryptoDomain.CryptoKey{
		ID:           uuid.Must(uuid.NewV7()),
		TenantID:     tenantID,
		Type:         keyType,
		Usage:        usage,
		RotationMode: mode,
		Key:          make([]byte, cryptoDomain.KeySize),
		CreatedAt:    createdAt,
	}
}

// page builds a batch whose cursor is the id of its last record.
func page(records ...*record) domain.Batch {
	batch := domain.Batch{Records: make([]any, len(records))}
	for i, r := range records {
		batch.Records[i] = r
	}
	if len(records) > 0 {
		batch.Cursor = strconv.Itoa(records[len(records)-1].ID)
	}
	return batch
}

func encryptsWith(key *cryptoDomain.CryptoKey) any {
	return mock.MatchedBy(func(r fieldcryptUsecase.KeyResolver) bool {
		resolved, err := r.EncryptionKey(context.Background())
		return err == nil && resolved == key
	})
}

func hashesWith(key *cryptoDomain.CryptoKey) any {
	return mock.MatchedBy(func(r fieldcryptUsecase.KeyResolver) bool {
		keys, err := r.HmacKeys(context.Background())
		return err == nil && len(keys) == 1 && keys[0] == key
	})
}

func TestScheduler_Tick_EncryptionKeyOn(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	config := Config{GracePeriod: 3 * time.Minute, BatchSize: 100, MaxFailureCount: 10}

	t.Run("waits for the grace period", func(t *testing.T) {
		newKeyOn := newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationKeyOn, now.Add(-time.Minute))
		oldKey := newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, now.Add(-24*time.Hour))

		f := newSchedulerFixture(t, config, now)
		f.keyProvider.On("AllCryptoKeys", mock.Anything).
			Return([]*cryptoDomain.CryptoKey{oldKey, newKeyOn}, nil).
			Once()

		result, err := f.scheduler.Tick(context.Background())

		require.NoError(t, err)
		require.Len(t, result.Tenants, 1)
		assert.Equal(t, 0, result.Tenants[0].Processed)
		f.store.AssertNotCalled(t, "FindRecordsNotUsingKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.keyManager.AssertNotCalled(t, "MarkKeyForDeletion", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("re-encrypts records once the grace period elapsed", func(t *testing.T) {
		newKeyOn := newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationKeyOn, now.Add(-5*time.Minute))
		oldKey := newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, now.Add(-24*time.Hour))
		r1, r2 := &record{ID: 1}, &record{ID: 2}

		f := newSchedulerFixture(t, config, now)
		f.keyProvider.On("AllCryptoKeys", mock.Anything).
			Return([]*cryptoDomain.CryptoKey{oldKey, newKeyOn}, nil).
			Once()
		f.store.On("FindRecordsNotUsingKey", mock.Anything, newKeyOn, "", 100).Return(page(r1, r2), nil).Once()
		f.store.On("FindRecordsNotUsingKey", mock.Anything, newKeyOn, "2", 100).Return(page(), nil).Once()
		for _, r := range []*record{r1, r2} {
			f.entityCrypto.On("Decrypt", mock.Anything, r).Return(nil).Once()
			f.entityCrypto.On("EncryptWith", mock.Anything, r, encryptsWith(newKeyOn)).Return(nil).Once()
		}
		f.store.On("Save", mock.Anything, []any{r1, r2}).Return(nil).Once()
		f.store.On("Notify", mock.Anything, mock.MatchedBy(func(e domain.RekeyFinishedEvent) bool {
			return e.EntityName == "customer" &&
				e.Usage == cryptoDomain.UsageEncryption &&
				e.TargetKeyID == newKeyOn.ID &&
				e.SourceKeyID == nil &&
				e.Processed == 2
		})).Return(nil).Once()
		f.keyManager.On("MarkKeyForDeletion", mock.Anything, oldKey).Return(nil).Once()

		result, err := f.scheduler.Tick(context.Background())

		require.NoError(t, err)
		require.Len(t, result.Tenants, 1)
		assert.Equal(t, domain.TenantResult{TenantID: "", Processed: 2, Batches: 1}, result.Tenants[0])
		f.assertExpectations(t)
	})
}

func TestScheduler_Tick_EncryptionKeyOff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	config := Config{GracePeriod: 3 * time.Minute, BatchSize: 50, MaxFailureCount: 10}

	t.Run("save failure is counted, the batch loop advances and the key is kept", func(t *testing.T) {
		current := newKey("acme", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, now.Add(-time.Hour))
		retired := newKey("acme", cryptoDomain.UsageEncryption, cryptoDomain.RotationKeyOff, now.Add(-48*time.Hour))
		r1, r2 := &record{ID: 1}, &record{ID: 2}

		f := newSchedulerFixture(t, config, now)
		f.keyProvider.On("AllCryptoKeys", mock.Anything).
			Return([]*cryptoDomain.CryptoKey{current, retired}, nil).
			Once()
		f.store.On("FindRecordsUsingKey", mock.Anything, retired, "", 50).Return(page(r1), nil).Once()
		f.store.On("FindRecordsUsingKey", mock.Anything, retired, "1", 50).Return(page(r2), nil).Once()
		f.store.On("FindRecordsUsingKey", mock.Anything, retired, "2", 50).Return(page(), nil).Once()
		for _, r := range []*record{r1, r2} {
			f.entityCrypto.On("Decrypt", mock.Anything, r).Return(nil).Once()
			f.entityCrypto.On("EncryptWith", mock.Anything, r, encryptsWith(current)).Return(nil).Once()
		}
		f.store.On("Save", mock.Anything, []any{r1}).Return(errors.New("deadlock")).Once()
		f.store.On("Save", mock.Anything, []any{r2}).Return(nil).Once()
		f.store.On("Notify", mock.Anything, mock.MatchedBy(func(e domain.RekeyFinishedEvent) bool {
			return e.TenantID == "acme" &&
				e.SourceKeyID != nil && *e.SourceKeyID == retired.ID &&
				e.TargetKeyID == current.ID &&
				e.Processed == 1
		})).Return(nil).Once()

		result, err := f.scheduler.Tick(context.Background())

		require.NoError(t, err)
		require.Len(t, result.Tenants, 1)
		assert.Equal(t, domain.TenantResult{TenantID: "acme", Processed: 1, Failed: 1, Batches: 2}, result.Tenants[0])
		f.keyManager.AssertNotCalled(t, "MarkKeyForDeletion", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("failed records keep the key for the next tick", func(t *testing.T) {
		current := newKey("acme", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, now.Add(-time.Hour))
		retired := newKey("acme", cryptoDomain.UsageEncryption, cryptoDomain.RotationKeyOff, now.Add(-48*time.Hour))
		r1 := &record{ID: 1}

		f := newSchedulerFixture(t, config, now)
		f.keyProvider.On("AllCryptoKeys", mock.Anything).
			Return([]*cryptoDomain.CryptoKey{current, retired}, nil).
			Once()
		f.store.On("FindRecordsUsingKey", mock.Anything, retired, "", 50).Return(page(r1), nil).Once()
		f.store.On("FindRecordsUsingKey", mock.Anything, retired, "1", 50).Return(page(), nil).Once()
		f.entityCrypto.On("Decrypt", mock.Anything, r1).Return(cryptoDomain.ErrKeyNotFound).Once()

		result, err := f.scheduler.Tick(context.Background())

		require.NoError(t, err)
		assert.Equal(t, domain.TenantResult{TenantID: "acme", Failed: 1, Batches: 1}, result.Tenants[0])
		f.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		f.store.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
		f.keyManager.AssertNotCalled(t, "MarkKeyForDeletion", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})
}

func TestScheduler_Tick_FailedRecordIsNotRefetched(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	config := Config{GracePeriod: time.Minute, BatchSize: 2, MaxFailureCount: 2}

	newKeyOn := newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationKeyOn, now.Add(-time.Hour))
	oldKey := newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, now.Add(-48*time.Hour))
	records := make([]*record, 7)
	for i := range records {
		records[i] = &record{ID: i}
	}
	bad := records[0]

	f := newSchedulerFixture(t, config, now)
	f.keyProvider.On("AllCryptoKeys", mock.Anything).
		Return([]*cryptoDomain.CryptoKey{oldKey, newKeyOn}, nil).
		Once()

	pages := []struct {
		after   string
		records []*record
	}{
		{after: "", records: records[0:2]},
		{after: "1", records: records[2:4]},
		{after: "3", records: records[4:6]},
		{after: "5", records: records[6:7]},
		{after: "6", records: nil},
	}
	for _, p := range pages {
		f.store.On("FindRecordsNotUsingKey", mock.Anything, newKeyOn, p.after, 2).Return(page(p.records...), nil).Once()
	}

	f.entityCrypto.On("Decrypt", mock.Anything, bad).Return(cryptoDomain.ErrDecryptionFailed).Once()
	for _, r := range records[1:] {
		f.entityCrypto.On("Decrypt", mock.Anything, r).Return(nil).Once()
		f.entityCrypto.On("EncryptWith", mock.Anything, r, encryptsWith(newKeyOn)).Return(nil).Once()
	}
	f.store.On("Save", mock.Anything, []any{records[1]}).Return(nil).Once()
	f.store.On("Save", mock.Anything, []any{records[2], records[3]}).Return(nil).Once()
	f.store.On("Save", mock.Anything, []any{records[4], records[5]}).Return(nil).Once()
	f.store.On("Save", mock.Anything, []any{records[6]}).Return(nil).Once()
	f.store.On("Notify", mock.Anything, mock.MatchedBy(func(e domain.RekeyFinishedEvent) bool {
		return e.TargetKeyID == newKeyOn.ID && e.Processed == 6
	})).Return(nil).Once()

	result, err := f.scheduler.Tick(context.Background())

	require.NoError(t, err)
	require.Len(t, result.Tenants, 1)
	assert.Equal(t, domain.TenantResult{TenantID: "", Processed: 6, Failed: 1, Batches: 4}, result.Tenants[0])
	assert.Empty(t, result.Tenants[0].Error)
	f.keyManager.AssertNotCalled(t, "MarkKeyForDeletion", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestScheduler_Tick_MaxFailures(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	config := Config{GracePeriod: time.Minute, BatchSize: 10, MaxFailureCount: 2}

	newKeyOn := newKey("a", cryptoDomain.UsageEncryption, cryptoDomain.RotationKeyOn, now.Add(-time.Hour))
	oldKey := newKey("a", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, now.Add(-48*time.Hour))
	lonely := newKey("b", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, now.Add(-48*time.Hour))
	records := []any{&record{ID: 1}, &record{ID: 2}, &record{ID: 3}, &record{ID: 4}}

	f := newSchedulerFixture(t, config, now)
	f.keyProvider.On("AllCryptoKeys", mock.Anything).
		Return([]*cryptoDomain.CryptoKey{lonely, oldKey, newKeyOn}, nil).
		Once()
	f.store.On("FindRecordsNotUsingKey", mock.Anything, newKeyOn, "", 10).
		Return(domain.Batch{Records: records, Cursor: "4"}, nil).
		Once()
	for _, r := range records[:3] {
		f.entityCrypto.On("Decrypt", mock.Anything, r).Return(cryptoDomain.ErrDecryptionFailed).Once()
	}

	result, err := f.scheduler.Tick(context.Background())

	require.NoError(t, err)
	require.Len(t, result.Tenants, 2)
	assert.Equal(t, "a", result.Tenants[0].TenantID)
	assert.Equal(t, 3, result.Tenants[0].Failed)
	assert.Contains(t, result.Tenants[0].Error, domain.ErrMaxFailuresExceeded.Error())
	assert.Equal(t, domain.TenantResult{TenantID: "b", Skipped: true}, result.Tenants[1])
	f.entityCrypto.AssertNotCalled(t, "Decrypt", mock.Anything, records[3])
	f.store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.keyManager.AssertNotCalled(t, "MarkKeyForDeletion", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestScheduler_Tick_HmacKeyOn(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	config := Config{GracePeriod: 3 * time.Minute, BatchSize: 100, MaxFailureCount: 10}

	t.Run("waits for the grace period", func(t *testing.T) {
		newest := newKey("", cryptoDomain.UsageHmac, cryptoDomain.RotationKeyOn, now.Add(-time.Minute))
		older := newKey("", cryptoDomain.UsageHmac, cryptoDomain.RotationNone, now.Add(-24*time.Hour))

		f := newSchedulerFixture(t, config, now)
		f.keyProvider.On("AllCryptoKeys", mock.Anything).
			Return([]*cryptoDomain.CryptoKey{older, newest}, nil).
			Once()

		result, err := f.scheduler.Tick(context.Background())

		require.NoError(t, err)
		require.Len(t, result.Tenants, 1)
		assert.Equal(t, domain.TenantResult{TenantID: ""}, result.Tenants[0])
		f.store.AssertNotCalled(t, "FindRecordsNotUsingKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.entityCrypto.AssertNotCalled(t, "EncryptWith", mock.Anything, mock.Anything, mock.Anything)
		f.keyManager.AssertNotCalled(t, "MarkKeyForDeletion", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("re-hashes records and retires every older key", func(t *testing.T) {
		newest := newKey("", cryptoDomain.UsageHmac, cryptoDomain.RotationKeyOn, now.Add(-5*time.Minute))
		older := newKey("", cryptoDomain.UsageHmac, cryptoDomain.RotationNone, now.Add(-24*time.Hour))
		oldest := newKey("", cryptoDomain.UsageHmac, cryptoDomain.RotationNone, now.Add(-48*time.Hour))
		r1, r2 := &record{ID: 1}, &record{ID: 2}

		f := newSchedulerFixture(t, config, now)
		f.keyProvider.On("AllCryptoKeys", mock.Anything).
			Return([]*cryptoDomain.CryptoKey{oldest, newest, older}, nil).
			Once()
		f.store.On("FindRecordsNotUsingKey", mock.Anything, newest, "", 100).Return(page(r1, r2), nil).Once()
		f.store.On("FindRecordsNotUsingKey", mock.Anything, newest, "2", 100).Return(page(), nil).Once()
		for _, r := range []*record{r1, r2} {
			f.entityCrypto.On("Decrypt", mock.Anything, r).Return(nil).Once()
			f.entityCrypto.On("EncryptWith", mock.Anything, r, hashesWith(newest)).Return(nil).Once()
		}
		f.store.On("Save", mock.Anything, []any{r1, r2}).Return(nil).Once()
		f.store.On("Notify", mock.Anything, mock.MatchedBy(func(e domain.RekeyFinishedEvent) bool {
			return e.Usage == cryptoDomain.UsageHmac &&
				e.TargetKeyID == newest.ID &&
				e.SourceKeyID == nil &&
				e.Processed == 2
		})).Return(nil).Once()
		f.keyManager.On("MarkKeyForDeletion", mock.Anything, older).Return(nil).Once()
		f.keyManager.On("MarkKeyForDeletion", mock.Anything, oldest).Return(nil).Once()

		result, err := f.scheduler.Tick(context.Background())

		require.NoError(t, err)
		require.Len(t, result.Tenants, 1)
		assert.Equal(t, domain.TenantResult{TenantID: "", Processed: 2, Batches: 1}, result.Tenants[0])
		f.assertExpectations(t)
	})
}

func TestScheduler_Tick_HmacKeyOff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	config := Config{GracePeriod: time.Minute, BatchSize: 10, MaxFailureCount: 5}

	h3 := newKey("", cryptoDomain.UsageHmac, cryptoDomain.RotationNone, now.Add(-48*time.Hour))
	h2 := newKey("", cryptoDomain.UsageHmac, cryptoDomain.RotationKeyOff, now.Add(-72*time.Hour))
	h1 := newKey("", cryptoDomain.UsageHmac, cryptoDomain.RotationKeyOff, now.Add(-96*time.Hour))
	r1, r2 := &record{ID: 1}, &record{ID: 2}

	f := newSchedulerFixture(t, config, now)
	f.keyProvider.On("AllCryptoKeys", mock.Anything).
		Return([]*cryptoDomain.CryptoKey{h1, h3, h2}, nil).
		Once()
	f.store.On("FindRecordsUsingKey", mock.Anything, h2, "", 10).Return(page(r1), nil).Once()
	f.store.On("FindRecordsUsingKey", mock.Anything, h2, "1", 10).Return(page(), nil).Once()
	f.store.On("FindRecordsUsingKey", mock.Anything, h1, "", 10).Return(page(r2), nil).Once()
	f.store.On("FindRecordsUsingKey", mock.Anything, h1, "2", 10).Return(page(), nil).Once()
	for _, r := range []*record{r1, r2} {
		f.entityCrypto.On("Decrypt", mock.Anything, r).Return(nil).Once()
		f.entityCrypto.On("EncryptWith", mock.Anything, r, hashesWith(h3)).Return(nil).Once()
	}
	f.store.On("Save", mock.Anything, []any{r1}).Return(nil).Once()
	f.store.On("Save", mock.Anything, []any{r2}).Return(nil).Once()
	f.store.On("Notify", mock.Anything, mock.MatchedBy(func(e domain.RekeyFinishedEvent) bool {
		return e.Usage == cryptoDomain.UsageHmac && e.TargetKeyID == h3.ID
	})).Return(nil).Twice()
	f.keyManager.On("MarkKeyForDeletion", mock.Anything, h2).Return(nil).Once()
	f.keyManager.On("MarkKeyForDeletion", mock.Anything, h1).Return(nil).Once()

	result, err := f.scheduler.Tick(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.TenantResult{TenantID: "", Processed: 2, Batches: 2}, result.Tenants[0])
	f.assertExpectations(t)
}

func TestScheduler_Tick_SkippedTenants(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	config := Config{GracePeriod: time.Minute, BatchSize: 10, MaxFailureCount: 5}

	tests := []struct {
		name    string
		keys    []*cryptoDomain.CryptoKey
		skipped bool
	}{
		{
			name: "single key",
			keys: []*cryptoDomain.CryptoKey{
				newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationKeyOn, now.Add(-time.Hour)),
			},
			skipped: true,
		},
		{
			name: "key without creation date",
			keys: []*cryptoDomain.CryptoKey{
				newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationKeyOn, now.Add(-time.Hour)),
				newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, time.Time{}),
			},
			skipped: true,
		},
		{
			name: "newest key marked key_off",
			keys: []*cryptoDomain.CryptoKey{
				newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationKeyOff, now.Add(-time.Hour)),
				newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, now.Add(-48*time.Hour)),
			},
		},
		{
			name: "steady state",
			keys: []*cryptoDomain.CryptoKey{
				newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, now.Add(-time.Hour)),
				newKey("", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, now.Add(-48*time.Hour)),
				newKey("", cryptoDomain.UsageHmac, cryptoDomain.RotationNone, now.Add(-48*time.Hour)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSchedulerFixture(t, config, now)
			f.keyProvider.On("AllCryptoKeys", mock.Anything).Return(tt.keys, nil).Once()

			result, err := f.scheduler.Tick(context.Background())

			require.NoError(t, err)
			require.Len(t, result.Tenants, 1)
			assert.Equal(t, tt.skipped, result.Tenants[0].Skipped)
			assert.Empty(t, result.Tenants[0].Error)
			f.store.AssertNotCalled(t, "FindRecordsNotUsingKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.store.AssertNotCalled(t, "FindRecordsUsingKey", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.assertExpectations(t)
		})
	}
}

func TestScheduler_Tick_KeyLoadError(t *testing.T) {
	f := newSchedulerFixture(t, Config{}, time.Now())
	f.keyProvider.On("AllCryptoKeys", mock.Anything).Return(nil, cryptoDomain.ErrTransient).Once()

	_, err := f.scheduler.Tick(context.Background())

	assert.ErrorIs(t, err, cryptoDomain.ErrTransient)
	_, ok := f.scheduler.LastTick()
	assert.False(t, ok)
}

func TestRekeyTarget(t *testing.T) {
	now := time.Now()
	on := newKey("", cryptoDomain.UsageHmac, cryptoDomain.RotationNone, now)
	olderOn := newKey("", cryptoDomain.UsageHmac, cryptoDomain.RotationNone, now.Add(-time.Hour))
	off := newKey("", cryptoDomain.UsageHmac, cryptoDomain.RotationKeyOff, now.Add(-2*time.Hour))

	tests := []struct {
		name     string
		newer    []*cryptoDomain.CryptoKey
		expected *cryptoDomain.CryptoKey
	}{
		{name: "nearest newer key", newer: []*cryptoDomain.CryptoKey{on, olderOn}, expected: olderOn},
		{name: "skips retired keys", newer: []*cryptoDomain.CryptoKey{on, off}, expected: on},
		{name: "no candidate", newer: []*cryptoDomain.CryptoKey{off}, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rekeyTarget(tt.newer))
		})
	}
}

func TestScheduler_Start(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newSchedulerFixture(t, Config{Interval: 5 * time.Millisecond}, time.Now())
	f.keyProvider.On("AllCryptoKeys", mock.Anything).Return([]*cryptoDomain.CryptoKey{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- f.scheduler.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		_, ok := f.scheduler.LastTick()
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestScheduler_Tick_Spans(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	f := newSchedulerFixture(t, Config{GracePeriod: time.Minute, BatchSize: 10, MaxFailureCount: 1}, now)
	f.scheduler.WithTracer(tp.Tracer("test"))
	f.keyProvider.On("AllCryptoKeys", mock.Anything).Return([]*cryptoDomain.CryptoKey{
		newKey("tenant-a", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, now.Add(-time.Hour)),
		newKey("tenant-a", cryptoDomain.UsageEncryption, cryptoDomain.RotationNone, now.Add(-2*time.Hour)),
	}, nil).Once()

	_, err := f.scheduler.Tick(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(recorder.Ended()))
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"rekey.tenant", "rekey.tick"}, names)

	t.Run("failed key load marks the tick span", func(t *testing.T) {
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		f := newSchedulerFixture(t, Config{}, now)
		f.scheduler.WithTracer(tp.Tracer("test"))
		f.keyProvider.On("AllCryptoKeys", mock.Anything).Return(nil, cryptoDomain.ErrTransient).Once()

		_, err := f.scheduler.Tick(context.Background())
		require.Error(t, err)
		require.Len(t, recorder.Ended(), 1)
		assert.Equal(t, codes.Error, recorder.Ended()[0].Status().Code)
	})
}
