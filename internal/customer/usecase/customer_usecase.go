package usecase

import (
	"context"
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/customer/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
	fieldcryptUsecase "github.com/allisson/fieldcrypt/internal/fieldcrypt/usecase"
	"github.com/allisson/fieldcrypt/internal/hmac"
	outboxDomain "github.com/allisson/fieldcrypt/internal/outbox/domain"
	appValidation "github.com/allisson/fieldcrypt/internal/validation"
)

// emailLookupAlias is the alias of the lowercased email lookup digests.
var emailLookupAlias = hmac.TokenAlias(domain.FieldEmail, "lowercase")

// CustomerUseCase handles customer-related business logic
type CustomerUseCase struct {
	txManager    database.TxManager
	customerRepo CustomerRepository
	outboxRepo   OutboxEventRepository
	entityCrypto fieldcryptUsecase.EntityCryptoUseCase
	keyProvider  fieldcryptUsecase.KeyProvider
	hasher       hmac.Hasher
}

// NewCustomerUseCase creates a new CustomerUseCase
func NewCustomerUseCase(
	txManager database.TxManager,
	customerRepo CustomerRepository,
	outboxRepo OutboxEventRepository,
	entityCrypto fieldcryptUsecase.EntityCryptoUseCase,
	keyProvider fieldcryptUsecase.KeyProvider,
	hasher hmac.Hasher,
) *CustomerUseCase {
	return &CustomerUseCase{
		txManager:    txManager,
		customerRepo: customerRepo,
		outboxRepo:   outboxRepo,
		entityCrypto: entityCrypto,
		keyProvider:  keyProvider,
		hasher:       hasher,
	}
}

// Validate validates a card input.
func (c RegisterCardInput) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Pan,
			validation.Required.Error("pan is required"),
			appValidation.CardNumber,
		),
		validation.Field(&c.HolderName,
			validation.Required.Error("holder name is required"),
			appValidation.NotBlank,
			validation.Length(1, 255),
		),
	)
}

func (uc *CustomerUseCase) validateRegisterCustomerInput(input RegisterCustomerInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.Name,
			validation.Required.Error("name is required"),
			appValidation.NotBlank,
			validation.Length(1, 255).Error("name must be between 1 and 255 characters"),
		),
		validation.Field(&input.Email,
			validation.Required.Error("email is required"),
			appValidation.NotBlank,
			appValidation.Email,
			validation.Length(5, 255).Error("email must be between 5 and 255 characters"),
		),
		validation.Field(&input.Phone, appValidation.Phone),
		validation.Field(&input.DocumentNumber,
			appValidation.NoWhitespace,
			validation.Length(1, 64),
		),
		validation.Field(&input.DocumentCountry,
			appValidation.CountryCode,
			validation.When(input.DocumentNumber == "", validation.Empty.Error("requires a document number")),
		),
		validation.Field(&input.Cards, validation.Length(0, 10)),
	)
	return appValidation.WrapValidationError(err)
}

// RegisterCustomer encrypts a new customer, stores it and creates a
// customer.registered event in the same transaction.
func (uc *CustomerUseCase) RegisterCustomer(
	ctx context.Context,
	input RegisterCustomerInput,
) (*domain.Customer, error) {
	if err := uc.validateRegisterCustomerInput(input); err != nil {
		return nil, err
	}

	customer := &domain.Customer{
		ID:              uuid.Must(uuid.NewV7()),
		TenantID:        cryptoDomain.TenantFromContext(ctx),
		Name:            strings.TrimSpace(input.Name),
		Email:           strings.TrimSpace(strings.ToLower(input.Email)),
		Phone:           input.Phone,
		DocumentNumber:  input.DocumentNumber,
		DocumentCountry: input.DocumentCountry,
	}
	for _, card := range input.Cards {
		customer.Cards = append(customer.Cards, &domain.PaymentCard{
			ID:         uuid.Must(uuid.NewV7()),
			Pan:        card.Pan,
			HolderName: strings.TrimSpace(card.HolderName),
			Last4:      card.Pan[len(card.Pan)-4:],
		})
	}

	var saved *domain.Customer
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		saved, err = fieldcryptUsecase.SaveEncrypted(ctx, uc.entityCrypto, customer,
			func(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
				if err := uc.customerRepo.Create(ctx, c); err != nil {
					return nil, err
				}
				return c, nil
			},
		)
		if err != nil {
			return err
		}

		// Only non-confidential attributes leave through the outbox
		event, err := outboxDomain.NewPendingEvent(
			outboxDomain.EventTypeCustomerRegistered,
			outboxDomain.CustomerRegisteredPayload{
				CustomerID: saved.ID,
				TenantID:   saved.TenantID,
				Name:       saved.Name,
				Cards:      len(saved.Cards),
			},
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal event payload")
		}
		if err := uc.outboxRepo.Create(ctx, event); err != nil {
			return apperrors.Wrap(err, "failed to create outbox event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

// GetCustomer retrieves and decrypts a customer by ID
func (uc *CustomerUseCase) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	customer, err := uc.customerRepo.GetByID(ctx, cryptoDomain.TenantFromContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if err := uc.entityCrypto.Decrypt(ctx, customer); err != nil {
		return nil, apperrors.Wrap(err, "failed to decrypt customer")
	}
	return customer, nil
}

// FindCustomersByEmail computes the email digest under every current hmac key
// and loads the matching customers. Customers still indexed under a key that
// is no longer current are not found until rekeyed.
func (uc *CustomerUseCase) FindCustomersByEmail(ctx context.Context, email string) ([]*domain.Customer, error) {
	email = strings.TrimSpace(email)
	if err := appValidation.WrapValidationError(
		validation.Validate(email, validation.Required.Error("email is required"), appValidation.Email),
	); err != nil {
		return nil, err
	}

	keys, err := uc.keyProvider.CurrentHmacKeys(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load hmac keys")
	}
	digests, err := hmac.Digests(uc.hasher, keys, emailLookupAlias, strings.ToLower(email))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to compute email digests")
	}

	tenantID := cryptoDomain.TenantFromContext(ctx)
	ids, err := uc.customerRepo.FindIDsByLookupHmac(ctx, tenantID, emailLookupAlias, digests)
	if err != nil {
		return nil, err
	}

	customers := make([]*domain.Customer, 0, len(ids))
	for _, id := range ids {
		customer, err := uc.customerRepo.GetByID(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	if err := uc.entityCrypto.Decrypt(ctx, customers); err != nil {
		return nil, apperrors.Wrap(err, "failed to decrypt customers")
	}
	return customers, nil
}
