package app

import (
	"fmt"

	rekeyHTTP "github.com/allisson/fieldcrypt/internal/rekey/http"
	rekeyUseCase "github.com/allisson/fieldcrypt/internal/rekey/usecase"
)

// RekeyUseCase returns the rekey scheduler.
func (c *Container) RekeyUseCase() (rekeyUseCase.UseCase, error) {
	var err error
	c.rekeyUseCaseInit.Do(func() {
		c.rekeyUseCase, err = c.initRekeyUseCase()
		if err != nil {
			c.initErrors["rekeyUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rekeyUseCase"]; exists {
		return nil, storedErr
	}
	return c.rekeyUseCase, nil
}

// RekeyHandler returns the HTTP handler exposing the last rekey tick.
func (c *Container) RekeyHandler() (*rekeyHTTP.RekeyHandler, error) {
	var err error
	c.rekeyHandlerInit.Do(func() {
		c.rekeyHandler, err = c.initRekeyHandler()
		if err != nil {
			c.initErrors["rekeyHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rekeyHandler"]; exists {
		return nil, storedErr
	}
	return c.rekeyHandler, nil
}

// initRekeyUseCase creates the scheduler over every record store of the application.
func (c *Container) initRekeyUseCase() (rekeyUseCase.UseCase, error) {
	keyProvider, err := c.KeyProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get key provider for rekey use case: %w", err)
	}

	keyUseCase, err := c.KeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key use case for rekey use case: %w", err)
	}

	entityCrypto, err := c.EntityCryptoUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get entity crypto use case for rekey use case: %w", err)
	}

	customerStore, err := c.CustomerRekeyStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get customer rekey store for rekey use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for rekey use case: %w", err)
	}

	tracingProvider, err := c.TracingProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get tracing provider for rekey use case: %w", err)
	}

	scheduler := rekeyUseCase.NewScheduler(
		rekeyUseCase.Config{
			Interval:         c.config.RekeyInterval,
			GracePeriod:      c.config.RekeyCacheGracePeriod,
			BatchSize:        c.config.RekeyBatchSize,
			BatchSleep:       c.config.RekeyBatchSleep,
			MaxFailureCount:  c.config.RekeyMaxFailureCount,
			RecordsPerSecond: c.config.RekeyRecordsPerSecond,
		},
		keyProvider,
		keyUseCase,
		entityCrypto,
		[]rekeyUseCase.RecordStore{customerStore},
		businessMetrics,
		c.Logger(),
	)
	scheduler.WithTracer(tracingProvider.Tracer("github.com/allisson/fieldcrypt/internal/rekey"))

	return scheduler, nil
}

func (c *Container) initRekeyHandler() (*rekeyHTTP.RekeyHandler, error) {
	useCase, err := c.RekeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get rekey use case for rekey handler: %w", err)
	}
	return rekeyHTTP.NewRekeyHandler(useCase, c.Logger()), nil
}
