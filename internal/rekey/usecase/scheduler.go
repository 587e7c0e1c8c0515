package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	fieldcryptUsecase "github.com/allisson/fieldcrypt/internal/fieldcrypt/usecase"
	"github.com/allisson/fieldcrypt/internal/hmac"
	"github.com/allisson/fieldcrypt/internal/metrics"
	"github.com/allisson/fieldcrypt/internal/rekey/domain"
	"github.com/allisson/fieldcrypt/internal/tracing"
)

// Config holds rekey scheduler configuration
type Config struct {
	Interval         time.Duration
	GracePeriod      time.Duration
	BatchSize        int
	BatchSleep       time.Duration
	MaxFailureCount  int
	RecordsPerSecond float64
}

// pass moves the records of a lineage onto target. A nil source selects every
// record not already using target, otherwise only the records using source.
type pass struct {
	usage  cryptoDomain.KeyUsage
	source *cryptoDomain.CryptoKey
	target *cryptoDomain.CryptoKey
}

func (p pass) find(ctx context.Context, store RecordStore, after string, limit int) (domain.Batch, error) {
	if p.source == nil {
		return store.FindRecordsNotUsingKey(ctx, p.target, after, limit)
	}
	return store.FindRecordsUsingKey(ctx, p.source, after, limit)
}

// Scheduler periodically moves records off retired keys.
type Scheduler struct {
	config       Config
	keyProvider  KeyProvider
	keyManager   KeyLifecycleManager
	entityCrypto fieldcryptUsecase.EntityCryptoUseCase
	stores       []RecordStore
	metrics      metrics.BusinessMetrics
	logger       *slog.Logger
	limiter      *rate.Limiter
	tracer       trace.Tracer
	now          func() time.Time

	mu       sync.RWMutex
	lastTick *domain.TickResult
}

// NewScheduler creates a new Scheduler
func NewScheduler(
	config Config,
	keyProvider KeyProvider,
	keyManager KeyLifecycleManager,
	entityCrypto fieldcryptUsecase.EntityCryptoUseCase,
	stores []RecordStore,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *Scheduler {
	var limiter *rate.Limiter
	if config.RecordsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RecordsPerSecond), 1)
	}

	return &Scheduler{
		config:       config,
		keyProvider:  keyProvider,
		keyManager:   keyManager,
		entityCrypto: entityCrypto,
		stores:       stores,
		metrics:      businessMetrics,
		logger:       logger,
		limiter:      limiter,
		tracer:       noop.NewTracerProvider().Tracer(""),
		now:          time.Now,
	}
}

// WithTracer makes every tick and tenant run emit a span.
func (s *Scheduler) WithTracer(tracer trace.Tracer) *Scheduler {
	s.tracer = tracer
	return s
}

// Start runs the rekey loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("starting rekey scheduler",
		slog.Duration("interval", s.config.Interval),
		slog.Duration("grace_period", s.config.GracePeriod),
		slog.Int("batch_size", s.config.BatchSize),
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping rekey scheduler")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("rekey tick failed", slog.Any("error", err))
			}
		}
	}
}

// Tick runs one rekey pass. Tenants are processed sequentially and a failing
// tenant never stops the others.
func (s *Scheduler) Tick(ctx context.Context) (_ domain.TickResult, err error) {
	ctx, span := s.tracer.Start(ctx, "rekey.tick")
	defer func() { tracing.EndSpan(span, err) }()

	result := domain.TickResult{StartedAt: s.now()}

	keys, err := s.keyProvider.AllCryptoKeys(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load crypto keys: %w", err)
	}
	span.SetAttributes(attribute.Int("rekey.keys", len(keys)))

	byTenant := make(map[string][]*cryptoDomain.CryptoKey)
	for _, key := range keys {
		byTenant[key.TenantID] = append(byTenant[key.TenantID], key)
	}

	for _, tenantID := range slices.Sorted(maps.Keys(byTenant)) {
		result.Tenants = append(result.Tenants, s.rekeyTenant(ctx, tenantID, byTenant[tenantID]))
	}
	result.FinishedAt = s.now()

	s.mu.Lock()
	s.lastTick = &result
	s.mu.Unlock()

	return result, nil
}

// LastTick returns the result of the most recent tick.
func (s *Scheduler) LastTick() (domain.TickResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastTick == nil {
		return domain.TickResult{}, false
	}
	return *s.lastTick, true
}

func (s *Scheduler) rekeyTenant(
	ctx context.Context,
	tenantID string,
	keys []*cryptoDomain.CryptoKey,
) domain.TenantResult {
	result := domain.TenantResult{TenantID: tenantID}
	logger := s.logger.With(slog.String("tenant_id", tenantID))

	if len(keys) < 2 {
		logger.Debug("skipping tenant with fewer than two keys")
		result.Skipped = true
		return result
	}
	for _, key := range keys {
		if key.CreatedAt.IsZero() {
			logger.Warn("skipping tenant with a key lacking creation date",
				slog.String("key_id", key.ID.String()),
			)
			result.Skipped = true
			return result
		}
	}

	ordered := slices.Clone(keys)
	cryptoDomain.SortNewestFirst(ordered)

	start := time.Now()
	ctx = cryptoDomain.WithTenant(ctx, tenantID)
	ctx, span := s.tracer.Start(ctx, "rekey.tenant", trace.WithAttributes(
		attribute.String("fieldcrypt.tenant_id", tenantID),
	))
	tracker := domain.NewProgressTracker(s.config.MaxFailureCount)

	err := s.rekeyLineage(ctx, logger, cryptoDomain.UsageEncryption, ordered, tracker)
	if err == nil {
		err = s.rekeyLineage(ctx, logger, cryptoDomain.UsageHmac, ordered, tracker)
	}

	result.Processed = tracker.Processed()
	result.Failed = tracker.Failed()
	result.Batches = tracker.Batches()
	span.SetAttributes(
		attribute.Int("rekey.processed", result.Processed),
		attribute.Int("rekey.failed", result.Failed),
	)
	tracing.EndSpan(span, err)

	status := "success"
	if err != nil {
		status = "error"
		result.Error = err.Error()
		logger.Error("rekey run aborted",
			slog.Int("processed", result.Processed),
			slog.Int("failed", result.Failed),
			slog.Any("error", err),
		)
	}
	s.metrics.RecordDuration(ctx, "rekey", "tenant_run", time.Since(start), status)

	return result
}

// rekeyLineage handles the keys of one usage, ordered newest first.
func (s *Scheduler) rekeyLineage(
	ctx context.Context,
	logger *slog.Logger,
	usage cryptoDomain.KeyUsage,
	all []*cryptoDomain.CryptoKey,
	tracker *domain.ProgressTracker,
) error {
	keys := make([]*cryptoDomain.CryptoKey, 0, len(all))
	for _, key := range all {
		if key.Usage == usage {
			keys = append(keys, key)
		}
	}
	if len(keys) < 2 {
		return nil
	}

	logger = logger.With(slog.String("usage", string(usage)))
	newest := keys[0]

	if newest.IsKeyOff() {
		logger.Error("newest key is marked key_off, refusing to rekey",
			slog.String("key_id", newest.ID.String()),
		)
		return nil
	}

	if newest.IsKeyOn() {
		if !s.graceElapsed(newest) {
			logger.Info("waiting for key cache propagation",
				slog.String("key_id", newest.ID.String()),
			)
			return nil
		}

		complete, err := s.run(ctx, logger, pass{usage: usage, target: newest}, tracker)
		if err != nil || !complete {
			return err
		}
		return s.retire(ctx, logger, keys[1:]...)
	}

	for i := 1; i < len(keys); i++ {
		key := keys[i]
		if !key.IsKeyOff() {
			continue
		}
		if !s.graceElapsed(key) {
			logger.Info("waiting for key cache propagation", slog.String("key_id", key.ID.String()))
			continue
		}

		target := newest
		if usage == cryptoDomain.UsageHmac {
			target = rekeyTarget(keys[:i])
		}

		complete, err := s.run(ctx, logger, pass{usage: usage, source: key, target: target}, tracker)
		if err != nil {
			return err
		}
		if !complete {
			continue
		}
		if err := s.retire(ctx, logger, key); err != nil {
			return err
		}
	}

	return nil
}

// rekeyTarget returns the oldest key of newer that is not being retired.
func rekeyTarget(newer []*cryptoDomain.CryptoKey) *cryptoDomain.CryptoKey {
	for i := len(newer) - 1; i >= 0; i-- {
		if !newer[i].IsKeyOff() {
			return newer[i]
		}
	}
	return nil
}

func (s *Scheduler) graceElapsed(key *cryptoDomain.CryptoKey) bool {
	return s.now().Sub(key.CreatedAt) >= s.config.GracePeriod
}

// run applies p to every store. It reports whether every store reached an empty batch.
func (s *Scheduler) run(
	ctx context.Context,
	logger *slog.Logger,
	p pass,
	tracker *domain.ProgressTracker,
) (bool, error) {
	complete := true
	for _, store := range s.stores {
		done, err := s.runStore(ctx, logger.With(slog.String("entity", store.EntityName())), store, p, tracker)
		if err != nil {
			return false, err
		}
		complete = complete && done
	}
	return complete, nil
}

// runStore walks the records of p once, in store order. Failed records are left
// behind the cursor so they count once per run; a pass with failures is
// incomplete and its keys are kept until a later tick succeeds.
func (s *Scheduler) runStore(
	ctx context.Context,
	logger *slog.Logger,
	store RecordStore,
	p pass,
	tracker *domain.ProgressTracker,
) (bool, error) {
	processed := 0
	complete := true
	cursor := ""

	for {
		batch, err := p.find(ctx, store, cursor, s.config.BatchSize)
		if err != nil {
			return false, fmt.Errorf("failed to find %s records: %w", store.EntityName(), err)
		}
		if len(batch.Records) == 0 {
			break
		}
		tracker.RecordBatch()
		cursor = batch.Cursor

		rekeyed := make([]any, 0, len(batch.Records))
		for _, record := range batch.Records {
			if err := s.throttle(ctx); err != nil {
				return false, err
			}
			if err := s.rekeyRecord(ctx, p, record); err != nil {
				complete = false
				s.metrics.RecordOperation(ctx, "rekey", string(p.usage), "error")
				logger.Warn("failed to rekey record", slog.Any("error", err))
				if err := tracker.RecordFailure(); err != nil {
					return false, err
				}
				continue
			}
			s.metrics.RecordOperation(ctx, "rekey", string(p.usage), "success")
			rekeyed = append(rekeyed, record)
		}

		if len(rekeyed) > 0 {
			if err := store.Save(ctx, rekeyed); err != nil {
				complete = false
				logger.Error("failed to save rekeyed batch", slog.Int("size", len(rekeyed)), slog.Any("error", err))
				if err := tracker.RecordFailure(); err != nil {
					return false, err
				}
			} else {
				tracker.RecordProcessed(len(rekeyed))
				processed += len(rekeyed)
				s.metrics.RecordRekeyedRecords(ctx, store.EntityName(), string(p.usage), len(rekeyed))
			}
		}

		if err := s.sleep(ctx); err != nil {
			return false, err
		}
	}

	if processed > 0 {
		logger.Info("rekey finished",
			slog.String("key_id", p.target.ID.String()),
			slog.Int("processed", processed),
		)
		s.notify(ctx, logger, store, p, processed)
	}
	if !complete {
		logger.Warn("rekey pass incomplete, retrying failed records next tick")
	}

	return complete, nil
}

func (s *Scheduler) rekeyRecord(ctx context.Context, p pass, record any) error {
	if err := s.entityCrypto.Decrypt(ctx, record); err != nil {
		return err
	}

	if p.usage == cryptoDomain.UsageHmac {
		ctx = hmac.WithRekey(ctx, hmac.NewSkipExistingDelegate())
		return s.entityCrypto.EncryptWith(ctx, record, fieldcryptUsecase.NewHmacOnlyKeyResolver(p.target))
	}

	resolver := fieldcryptUsecase.NewFixedEncryptionKeyResolver(p.target, s.keyProvider)
	return s.entityCrypto.EncryptWith(ctx, record, resolver)
}

func (s *Scheduler) notify(ctx context.Context, logger *slog.Logger, store RecordStore, p pass, processed int) {
	event := domain.RekeyFinishedEvent{
		EntityName:  store.EntityName(),
		TenantID:    p.target.TenantID,
		Usage:       p.usage,
		TargetKeyID: p.target.ID,
		Processed:   processed,
		FinishedAt:  s.now().UTC(),
	}
	if p.source != nil {
		event.SourceKeyID = &p.source.ID
	}

	if err := store.Notify(ctx, event); err != nil {
		logger.Error("failed to notify rekey finished", slog.Any("error", err))
	}
}

func (s *Scheduler) retire(ctx context.Context, logger *slog.Logger, keys ...*cryptoDomain.CryptoKey) error {
	for _, key := range keys {
		if err := s.keyManager.MarkKeyForDeletion(ctx, key); err != nil {
			return fmt.Errorf("failed to mark key %s for deletion: %w", key.ID, err)
		}
		logger.Info("crypto key marked for deletion", slog.String("key_id", key.ID.String()))
	}
	return nil
}

func (s *Scheduler) throttle(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *Scheduler) sleep(ctx context.Context) error {
	if s.config.BatchSleep <= 0 {
		return nil
	}

	timer := time.NewTimer(s.config.BatchSleep)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
