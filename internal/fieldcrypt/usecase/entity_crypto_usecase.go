package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	"github.com/allisson/fieldcrypt/internal/entity"
	"github.com/allisson/fieldcrypt/internal/hmac"
)

// Option configures the entity crypto use case.
type Option func(*entityCryptoUseCase)

// WithHmacStrategy binds strategy to the type of sample, which must be a pointer to
// an entity registered with entity.StrategyCustom.
func WithHmacStrategy(sample any, strategy hmac.Strategy) Option {
	return func(u *entityCryptoUseCase) {
		u.overrides[reflect.TypeOf(sample)] = strategy
	}
}

type entityCryptoUseCase struct {
	registry          *entity.Registry
	encryptionService cryptoService.EncryptionService
	codec             cryptoService.Codec
	defaultResolver   KeyResolver

	mu         sync.RWMutex
	strategies map[reflect.Type]hmac.Strategy
	overrides  map[reflect.Type]hmac.Strategy
}

// NewEntityCryptoUseCase creates the crypto orchestrator. Encrypt resolves keys
// through keyProvider; EncryptWith accepts any resolver.
func NewEntityCryptoUseCase(
	registry *entity.Registry,
	encryptionService cryptoService.EncryptionService,
	codec cryptoService.Codec,
	keyProvider KeyProvider,
	opts ...Option,
) EntityCryptoUseCase {
	u := &entityCryptoUseCase{
		registry:          registry,
		encryptionService: encryptionService,
		codec:             codec,
		defaultResolver:   NewDefaultKeyResolver(keyProvider),
		strategies:        make(map[reflect.Type]hmac.Strategy),
		overrides:         make(map[reflect.Type]hmac.Strategy),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Register classifies the descriptors and binds one strategy per new entity type.
func (u *entityCryptoUseCase) Register(descriptors ...entity.Descriptor) error {
	for _, d := range descriptors {
		if d.Strategy() != entity.StrategyCustom {
			continue
		}
		if _, ok := u.overrides[d.Type()]; !ok {
			return fmt.Errorf(
				"%w: %s declares a custom strategy but none was supplied",
				cryptoDomain.ErrInvalidRegistration,
				d.Type(),
			)
		}
	}

	metas, err := u.registry.Register(descriptors...)
	if err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	for _, meta := range metas {
		if _, ok := u.strategies[meta.Type]; ok {
			continue
		}
		if override, ok := u.overrides[meta.Type]; ok && meta.Strategy == entity.StrategyCustom {
			u.strategies[meta.Type] = override
			continue
		}
		strategy, err := hmac.New(meta, u.encryptionService)
		if err != nil {
			return err
		}
		u.strategies[meta.Type] = strategy
	}
	return nil
}

// Metadata returns the classification of the entity's type.
func (u *entityCryptoUseCase) Metadata(e any) (*entity.Metadata, bool) {
	return u.registry.Lookup(e)
}

// Encrypt encrypts e with the current keys.
func (u *entityCryptoUseCase) Encrypt(ctx context.Context, e any) error {
	return u.encrypt(ctx, e, u.defaultResolver)
}

// EncryptWith encrypts e with the keys chosen by resolver. A nil resolver selects
// the current keys.
func (u *entityCryptoUseCase) EncryptWith(ctx context.Context, e any, resolver KeyResolver) error {
	if resolver == nil {
		resolver = u.defaultResolver
	}
	return u.encrypt(ctx, e, resolver)
}

// Decrypt restores the encrypted fields of e.
func (u *entityCryptoUseCase) Decrypt(ctx context.Context, e any) error {
	if isNil(e) {
		return nil
	}
	if isCollection(e) {
		return forEachElement(e, func(element any) error {
			return u.Decrypt(ctx, element)
		})
	}

	meta, err := u.metadata(e)
	if err != nil {
		return err
	}

	if meta.EncryptedPayloadField != nil {
		payload, err := meta.EncryptedPayloadField.GetString(e)
		if err != nil {
			return err
		}
		if payload == "" {
			return nil
		}
		if err := u.decryptPayload(ctx, meta, e, payload); err != nil {
			return err
		}
	}

	return u.cascade(meta, e, func(value any) error {
		return u.Decrypt(ctx, value)
	})
}

// EncryptAndSave encrypts e, saves it and restores the confidential values.
func (u *entityCryptoUseCase) EncryptAndSave(ctx context.Context, e any, save SaveFunc) (any, error) {
	return encryptAndSave(ctx, u, e, save)
}

func (u *entityCryptoUseCase) encrypt(ctx context.Context, e any, resolver KeyResolver) error {
	if isNil(e) {
		return nil
	}
	if isCollection(e) {
		return forEachElement(e, func(element any) error {
			return u.encrypt(ctx, element, resolver)
		})
	}

	meta, err := u.metadata(e)
	if err != nil {
		return err
	}

	if strategy := u.strategy(meta.Type); strategy != nil {
		if err := strategy.ComputeAndStore(ctx, e, resolver); err != nil {
			return err
		}
	}

	if len(meta.FieldsToEncrypt) > 0 {
		if err := u.encryptPayload(ctx, meta, e, resolver); err != nil {
			return err
		}
	}

	return u.cascade(meta, e, func(value any) error {
		return u.encrypt(ctx, value, resolver)
	})
}

func (u *entityCryptoUseCase) encryptPayload(
	ctx context.Context,
	meta *entity.Metadata,
	e any,
	resolver KeyResolver,
) error {
	key, err := resolver.EncryptionKey(ctx)
	if err != nil {
		return err
	}
	if key == nil {
		// Rekey resolvers that only move digests resolve no encryption key.
		if resolver != u.defaultResolver {
			return nil
		}
		return fmt.Errorf(
			"%w: tenant %q",
			cryptoDomain.ErrNoActiveEncryptionKey,
			cryptoDomain.TenantFromContext(ctx),
		)
	}

	bag := make(map[string]json.RawMessage, len(meta.FieldsToEncrypt))
	for _, f := range meta.FieldsToEncrypt {
		value, err := f.Get(e)
		if err != nil {
			return err
		}
		node, err := u.codec.ConvertValue(value)
		if err != nil {
			return err
		}
		if node == nil {
			continue
		}
		bag[f.Name()] = node
	}

	payload, err := u.codec.Serialize(bag)
	if err != nil {
		return err
	}

	cipherText, err := u.encryptionService.Encrypt(key, []byte(payload))
	if err != nil {
		return err
	}
	if err := meta.EncryptedPayloadField.Set(e, cipherText); err != nil {
		return err
	}
	if meta.EncryptionKeyIDField != nil {
		return meta.EncryptionKeyIDField.Set(e, key.ID.String())
	}
	return nil
}

func (u *entityCryptoUseCase) decryptPayload(
	ctx context.Context,
	meta *entity.Metadata,
	e any,
	payload string,
) error {
	plaintext, err := u.encryptionService.Decrypt(ctx, payload)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(plaintext)

	bag, err := u.codec.Deserialize(string(plaintext))
	if err != nil {
		return err
	}

	for _, f := range meta.FieldsToEncrypt {
		node, ok := bag[f.Name()]
		if !ok {
			continue
		}
		target := f.NewValue()
		if err := u.codec.TreeToValue(node, target); err != nil {
			return fmt.Errorf("%w: field %q on %s", err, f.Name(), meta.Name)
		}
		if err := f.Set(e, target); err != nil {
			return err
		}
	}
	return nil
}

func (u *entityCryptoUseCase) cascade(meta *entity.Metadata, e any, fn func(value any) error) error {
	for _, f := range meta.CascadeFields {
		value, err := f.Get(e)
		if err != nil {
			return err
		}
		if err := fn(value); err != nil {
			return err
		}
	}
	return nil
}

func (u *entityCryptoUseCase) metadata(e any) (*entity.Metadata, error) {
	meta, ok := u.registry.Lookup(e)
	if !ok {
		return nil, fmt.Errorf("%w: %T", cryptoDomain.ErrEntityNotRegistered, e)
	}
	return meta, nil
}

func (u *entityCryptoUseCase) strategy(t reflect.Type) hmac.Strategy {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.strategies[t]
}

// encryptAndSave snapshots the confidential fields, encrypts through uc, saves and
// restores the snapshot onto the saved instance.
func encryptAndSave(ctx context.Context, uc EntityCryptoUseCase, e any, save SaveFunc) (any, error) {
	if isNil(e) || isCollection(e) {
		return nil, fmt.Errorf("%w: cannot save %T", cryptoDomain.ErrUnsupportedType, e)
	}
	meta, ok := uc.Metadata(e)
	if !ok {
		return nil, fmt.Errorf("%w: %T", cryptoDomain.ErrEntityNotRegistered, e)
	}

	snapshot := make([]any, len(meta.AllConfidentialFields))
	for i, f := range meta.AllConfidentialFields {
		value, err := f.Get(e)
		if err != nil {
			return nil, err
		}
		snapshot[i] = value
	}

	if err := uc.Encrypt(ctx, e); err != nil {
		return nil, err
	}

	saved, err := save(ctx, e)
	if err != nil {
		return nil, err
	}
	if isNil(saved) {
		return nil, fmt.Errorf("%w: save returned nil for %s", cryptoDomain.ErrNonTransient, meta.Name)
	}

	for i, f := range meta.AllConfidentialFields {
		if err := f.Set(saved, snapshot[i]); err != nil {
			return nil, err
		}
	}
	return saved, nil
}

// SaveEncrypted is the typed form of EncryptAndSave.
func SaveEncrypted[T any](
	ctx context.Context,
	uc EntityCryptoUseCase,
	e *T,
	save func(ctx context.Context, e *T) (*T, error),
) (*T, error) {
	saved, err := uc.EncryptAndSave(ctx, e, func(ctx context.Context, value any) (any, error) {
		return save(ctx, value.(*T))
	})
	if err != nil {
		return nil, err
	}
	return saved.(*T), nil
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func isCollection(value any) bool {
	switch reflect.TypeOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

// forEachElement calls fn with every element of a slice or array of entities.
// Elements are passed as pointers so the callee mutates the collection itself.
func forEachElement(collection any, fn func(element any) error) error {
	rv := reflect.ValueOf(collection)
	elemType := rv.Type().Elem()
	switch elemType.Kind() {
	case reflect.Pointer, reflect.Interface:
	case reflect.Struct:
		if rv.Kind() == reflect.Array {
			return fmt.Errorf(
				"%w: array of %s values cannot be modified in place",
				cryptoDomain.ErrUnsupportedType,
				elemType,
			)
		}
	default:
		return fmt.Errorf("%w: cannot encrypt elements of %s", cryptoDomain.ErrUnsupportedType, rv.Type())
	}

	for i := 0; i < rv.Len(); i++ {
		element := rv.Index(i)
		var value any
		if element.Kind() == reflect.Struct {
			value = element.Addr().Interface()
		} else {
			value = element.Interface()
		}
		if err := fn(value); err != nil {
			return err
		}
	}
	return nil
}
