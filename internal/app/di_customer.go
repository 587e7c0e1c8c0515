package app

import (
	"fmt"

	customerDomain "github.com/allisson/fieldcrypt/internal/customer/domain"
	customerHTTP "github.com/allisson/fieldcrypt/internal/customer/http"
	customerRepository "github.com/allisson/fieldcrypt/internal/customer/repository"
	customerUseCase "github.com/allisson/fieldcrypt/internal/customer/usecase"
	"github.com/allisson/fieldcrypt/internal/entity"
)

// entityDescriptors lists every entity type the orchestrator handles.
func entityDescriptors() []entity.Descriptor {
	return customerDomain.Descriptors()
}

// CustomerRepository returns the customer repository based on database driver.
func (c *Container) CustomerRepository() (customerUseCase.CustomerRepository, error) {
	var err error
	c.customerRepositoryInit.Do(func() {
		c.customerRepository, err = c.initCustomerRepository()
		if err != nil {
			c.initErrors["customerRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["customerRepository"]; exists {
		return nil, storedErr
	}
	return c.customerRepository, nil
}

// CustomerUseCase returns the customer use case.
func (c *Container) CustomerUseCase() (customerUseCase.UseCase, error) {
	var err error
	c.customerUseCaseInit.Do(func() {
		c.customerUseCase, err = c.initCustomerUseCase()
		if err != nil {
			c.initErrors["customerUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["customerUseCase"]; exists {
		return nil, storedErr
	}
	return c.customerUseCase, nil
}

// CustomerRekeyStore returns the record store the rekey scheduler moves customers with.
func (c *Container) CustomerRekeyStore() (*customerUseCase.RekeyStore, error) {
	var err error
	c.customerRekeyStoreInit.Do(func() {
		c.customerRekeyStore, err = c.initCustomerRekeyStore()
		if err != nil {
			c.initErrors["customerRekeyStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["customerRekeyStore"]; exists {
		return nil, storedErr
	}
	return c.customerRekeyStore, nil
}

// CustomerHandler returns the HTTP handler for customer operations.
func (c *Container) CustomerHandler() (*customerHTTP.CustomerHandler, error) {
	var err error
	c.customerHandlerInit.Do(func() {
		c.customerHandler, err = c.initCustomerHandler()
		if err != nil {
			c.initErrors["customerHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["customerHandler"]; exists {
		return nil, storedErr
	}
	return c.customerHandler, nil
}

// initCustomerRepository creates the customer repository based on the database driver.
func (c *Container) initCustomerRepository() (customerUseCase.CustomerRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for customer repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return customerRepository.NewPostgreSQLCustomerRepository(db), nil
	case "mysql":
		return customerRepository.NewMySQLCustomerRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initCustomerUseCase creates the customer use case with all its dependencies.
func (c *Container) initCustomerUseCase() (customerUseCase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for customer use case: %w", err)
	}

	customerRepo, err := c.CustomerRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get customer repository for customer use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for customer use case: %w", err)
	}

	entityCrypto, err := c.EntityCryptoUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get entity crypto use case for customer use case: %w", err)
	}

	keyProvider, err := c.KeyProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get key provider for customer use case: %w", err)
	}

	encryptionService, err := c.EncryptionService()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption service for customer use case: %w", err)
	}

	baseUseCase := customerUseCase.NewCustomerUseCase(
		txManager,
		customerRepo,
		outboxRepo,
		entityCrypto,
		keyProvider,
		encryptionService,
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for customer use case: %w", err)
		}
		return customerUseCase.NewCustomerUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initCustomerRekeyStore() (*customerUseCase.RekeyStore, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for customer rekey store: %w", err)
	}

	customerRepo, err := c.CustomerRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get customer repository for customer rekey store: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for customer rekey store: %w", err)
	}

	return customerUseCase.NewRekeyStore(txManager, customerRepo, outboxRepo), nil
}

// initCustomerHandler creates the customer HTTP handler with all its dependencies.
func (c *Container) initCustomerHandler() (*customerHTTP.CustomerHandler, error) {
	useCase, err := c.CustomerUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get customer use case for customer handler: %w", err)
	}
	return customerHTTP.NewCustomerHandler(useCase, c.Logger()), nil
}
