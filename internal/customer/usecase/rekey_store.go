package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/customer/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
	outboxDomain "github.com/allisson/fieldcrypt/internal/outbox/domain"
	rekeyDomain "github.com/allisson/fieldcrypt/internal/rekey/domain"
)

// RekeyStore exposes customers to the rekey scheduler.
type RekeyStore struct {
	txManager    database.TxManager
	customerRepo CustomerRepository
	outboxRepo   OutboxEventRepository
}

// NewRekeyStore creates a new RekeyStore
func NewRekeyStore(
	txManager database.TxManager,
	customerRepo CustomerRepository,
	outboxRepo OutboxEventRepository,
) *RekeyStore {
	return &RekeyStore{
		txManager:    txManager,
		customerRepo: customerRepo,
		outboxRepo:   outboxRepo,
	}
}

// EntityName returns the registered name of customers.
func (s *RekeyStore) EntityName() string {
	return "customer"
}

// FindRecordsNotUsingKey returns customers of the key's tenant not protected by key.
// The cursor is a customer id.
func (s *RekeyStore) FindRecordsNotUsingKey(
	ctx context.Context,
	key *cryptoDomain.CryptoKey,
	after string,
	limit int,
) (rekeyDomain.Batch, error) {
	return s.find(ctx, key, false, after, limit)
}

// FindRecordsUsingKey returns customers of the key's tenant protected by key.
// The cursor is a customer id.
func (s *RekeyStore) FindRecordsUsingKey(
	ctx context.Context,
	key *cryptoDomain.CryptoKey,
	after string,
	limit int,
) (rekeyDomain.Batch, error) {
	return s.find(ctx, key, true, after, limit)
}

func (s *RekeyStore) find(
	ctx context.Context,
	key *cryptoDomain.CryptoKey,
	using bool,
	after string,
	limit int,
) (rekeyDomain.Batch, error) {
	afterID := uuid.Nil
	if after != "" {
		id, err := uuid.Parse(after)
		if err != nil {
			return rekeyDomain.Batch{}, apperrors.Wrap(apperrors.ErrInvalidInput, "invalid customer cursor")
		}
		afterID = id
	}

	customers, err := s.customerRepo.ListByKey(ctx, domain.KeyFilter{
		TenantID: key.TenantID,
		Usage:    key.Usage,
		KeyID:    key.ID.String(),
		Using:    using,
		After:    afterID,
		Limit:    limit,
	})
	if err != nil {
		return rekeyDomain.Batch{}, err
	}

	batch := rekeyDomain.Batch{Records: make([]any, len(customers))}
	for i, customer := range customers {
		batch.Records[i] = customer
	}
	if len(customers) > 0 {
		batch.Cursor = customers[len(customers)-1].ID.String()
	}
	return batch, nil
}

// Save updates a rekeyed batch of customers in one transaction.
func (s *RekeyStore) Save(ctx context.Context, records []any) error {
	return s.txManager.WithTx(ctx, func(ctx context.Context) error {
		for _, record := range records {
			customer, ok := record.(*domain.Customer)
			if !ok {
				return fmt.Errorf("unexpected record type %T", record)
			}
			if err := s.customerRepo.Update(ctx, customer); err != nil {
				return err
			}
		}
		return nil
	})
}

// Notify writes a rekey.finished event to the outbox.
func (s *RekeyStore) Notify(ctx context.Context, event rekeyDomain.RekeyFinishedEvent) error {
	outboxEvent, err := outboxDomain.NewPendingEvent(outboxDomain.EventTypeRekeyFinished, event)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal event payload")
	}
	if err := s.outboxRepo.Create(ctx, outboxEvent); err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}
