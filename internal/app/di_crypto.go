package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoHTTP "github.com/allisson/fieldcrypt/internal/crypto/http"
	cryptoMySQL "github.com/allisson/fieldcrypt/internal/crypto/repository/mysql"
	cryptoPostgreSQL "github.com/allisson/fieldcrypt/internal/crypto/repository/postgresql"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
	"github.com/allisson/fieldcrypt/internal/entity"
	fieldcryptUseCase "github.com/allisson/fieldcrypt/internal/fieldcrypt/usecase"
)

// KMSKeeper returns the keeper that wraps key material, opened from KMS_KEY_URI.
func (c *Container) KMSKeeper() (cryptoDomain.KMSKeeper, error) {
	var err error
	c.kmsKeeperInit.Do(func() {
		c.kmsKeeper, err = c.initKMSKeeper()
		if err != nil {
			c.initErrors["kmsKeeper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["kmsKeeper"]; exists {
		return nil, storedErr
	}
	return c.kmsKeeper, nil
}

// KeyManager returns the key manager service.
func (c *Container) KeyManager() cryptoService.KeyManager {
	c.keyManagerInit.Do(func() {
		c.keyManager = cryptoService.NewKeyManager()
	})
	return c.keyManager
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// CryptoKeyRepository returns the crypto key repository based on database driver.
func (c *Container) CryptoKeyRepository() (cryptoUseCase.CryptoKeyRepository, error) {
	var err error
	c.cryptoKeyRepositoryInit.Do(func() {
		c.cryptoKeyRepository, err = c.initCryptoKeyRepository()
		if err != nil {
			c.initErrors["cryptoKeyRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cryptoKeyRepository"]; exists {
		return nil, storedErr
	}
	return c.cryptoKeyRepository, nil
}

// KeyProvider returns the caching key provider shared by every component of
// this process.
func (c *Container) KeyProvider() (cryptoUseCase.KeyProvider, error) {
	var err error
	c.keyProviderInit.Do(func() {
		c.keyProvider, err = c.initKeyProvider()
		if err != nil {
			c.initErrors["keyProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyProvider"]; exists {
		return nil, storedErr
	}
	return c.keyProvider, nil
}

// KeyUseCase returns the key lifecycle use case.
func (c *Container) KeyUseCase() (cryptoUseCase.KeyUseCase, error) {
	var err error
	c.keyUseCaseInit.Do(func() {
		c.keyUseCase, err = c.initKeyUseCase()
		if err != nil {
			c.initErrors["keyUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyUseCase"]; exists {
		return nil, storedErr
	}
	return c.keyUseCase, nil
}

// EncryptionService returns the backend registry dispatching by key type.
func (c *Container) EncryptionService() (cryptoService.EncryptionService, error) {
	var err error
	c.encryptionServiceInit.Do(func() {
		c.encryptionService, err = c.initEncryptionService()
		if err != nil {
			c.initErrors["encryptionService"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["encryptionService"]; exists {
		return nil, storedErr
	}
	return c.encryptionService, nil
}

// WorkerPool returns the crypto worker pool.
func (c *Container) WorkerPool() (*fieldcryptUseCase.WorkerPool, error) {
	var err error
	c.workerPoolInit.Do(func() {
		c.workerPool, err = fieldcryptUseCase.NewWorkerPool(c.config.CryptoRetryPoolSize)
		if err != nil {
			c.initErrors["workerPool"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["workerPool"]; exists {
		return nil, storedErr
	}
	return c.workerPool, nil
}

// EntityCryptoUseCase returns the crypto orchestrator with every entity of the
// application registered.
func (c *Container) EntityCryptoUseCase() (fieldcryptUseCase.EntityCryptoUseCase, error) {
	var err error
	c.entityCryptoUseCaseInit.Do(func() {
		c.entityCryptoUseCase, err = c.initEntityCryptoUseCase()
		if err != nil {
			c.initErrors["entityCryptoUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["entityCryptoUseCase"]; exists {
		return nil, storedErr
	}
	return c.entityCryptoUseCase, nil
}

// CryptoKeyHandler returns the HTTP handler listing key metadata.
func (c *Container) CryptoKeyHandler() (*cryptoHTTP.CryptoKeyHandler, error) {
	var err error
	c.cryptoKeyHandlerInit.Do(func() {
		c.cryptoKeyHandler, err = c.initCryptoKeyHandler()
		if err != nil {
			c.initErrors["cryptoKeyHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["cryptoKeyHandler"]; exists {
		return nil, storedErr
	}
	return c.cryptoKeyHandler, nil
}

// initKMSKeeper opens the configured KMS keeper.
func (c *Container) initKMSKeeper() (cryptoDomain.KMSKeeper, error) {
	keeper, err := cryptoService.NewKMSService().OpenKeeper(context.Background(), c.config.KMSKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open kms keeper: %w", err)
	}
	return keeper, nil
}

// initCryptoKeyRepository creates the crypto key repository based on the database driver.
func (c *Container) initCryptoKeyRepository() (cryptoUseCase.CryptoKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for crypto key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return cryptoPostgreSQL.NewPostgreSQLCryptoKeyRepository(db), nil
	case "mysql":
		return cryptoMySQL.NewMySQLCryptoKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initKeyProvider() (cryptoUseCase.KeyProvider, error) {
	repo, err := c.CryptoKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto key repository for key provider: %w", err)
	}

	keeper, err := c.KMSKeeper()
	if err != nil {
		return nil, fmt.Errorf("failed to get kms keeper for key provider: %w", err)
	}

	return cryptoUseCase.NewKeyProvider(repo, c.KeyManager(), keeper, c.config.KeyCacheTTL), nil
}

func (c *Container) initKeyUseCase() (cryptoUseCase.KeyUseCase, error) {
	repo, err := c.CryptoKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto key repository for key use case: %w", err)
	}

	keeper, err := c.KMSKeeper()
	if err != nil {
		return nil, fmt.Errorf("failed to get kms keeper for key use case: %w", err)
	}

	keyProvider, err := c.KeyProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get key provider for key use case: %w", err)
	}

	return cryptoUseCase.NewKeyUseCase(repo, c.KeyManager(), keeper, keyProvider, c.Logger()), nil
}

// initEncryptionService registers one backend per supported key type.
func (c *Container) initEncryptionService() (cryptoService.EncryptionService, error) {
	keyProvider, err := c.KeyProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get key provider for encryption service: %w", err)
	}

	aeadManager := c.AEADManager()

	return cryptoService.NewBackendRegistry(
		cryptoService.NewCipherFormatter(),
		keyProvider,
		c.Logger(),
		cryptoService.NewAEADBackend(cryptoDomain.AESGCM, aeadManager),
		cryptoService.NewAEADBackend(cryptoDomain.ChaCha20, aeadManager),
		cryptoService.NewHmacBackend(),
	), nil
}

// initEntityCryptoUseCase builds the orchestrator and its decorators, innermost
// first: retry, tracing, metrics.
func (c *Container) initEntityCryptoUseCase() (fieldcryptUseCase.EntityCryptoUseCase, error) {
	logger := c.Logger()

	encryptionService, err := c.EncryptionService()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption service for entity crypto use case: %w", err)
	}

	keyProvider, err := c.KeyProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get key provider for entity crypto use case: %w", err)
	}

	useCase := fieldcryptUseCase.NewEntityCryptoUseCase(
		entity.NewRegistry(logger),
		encryptionService,
		cryptoService.NewJSONCodec(),
		keyProvider,
	)

	if c.config.CryptoRetryEnabled {
		pool, err := c.WorkerPool()
		if err != nil {
			return nil, fmt.Errorf("failed to get worker pool for entity crypto use case: %w", err)
		}
		useCase = fieldcryptUseCase.NewEntityCryptoUseCaseWithRetry(
			useCase,
			pool,
			fieldcryptUseCase.RetryConfig{
				MaxAttempts:  c.config.CryptoRetryMaxAttempts,
				InitialDelay: c.config.CryptoRetryInitialDelay,
				Multiplier:   c.config.CryptoRetryMultiplier,
			},
			logger,
		)
	}

	tracingProvider, err := c.TracingProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get tracing provider for entity crypto use case: %w", err)
	}
	if tracingProvider.Enabled() {
		useCase = fieldcryptUseCase.NewEntityCryptoUseCaseWithTracing(
			useCase,
			tracingProvider.Tracer("github.com/allisson/fieldcrypt/internal/fieldcrypt"),
		)
	}

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for entity crypto use case: %w", err)
		}
		useCase = fieldcryptUseCase.NewEntityCryptoUseCaseWithMetrics(useCase, businessMetrics)
	}

	if err := useCase.Register(entityDescriptors()...); err != nil {
		return nil, fmt.Errorf("failed to register entities: %w", err)
	}

	return useCase, nil
}

func (c *Container) initCryptoKeyHandler() (*cryptoHTTP.CryptoKeyHandler, error) {
	keyUseCase, err := c.KeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key use case for crypto key handler: %w", err)
	}
	return cryptoHTTP.NewCryptoKeyHandler(keyUseCase, c.Logger()), nil
}
