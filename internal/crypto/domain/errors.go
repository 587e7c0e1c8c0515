package domain

import (
	"fmt"

	"github.com/allisson/fieldcrypt/internal/errors"
)

// Crypto error kinds.
//
// Every error produced by the field encryption stack is either transient, meaning
// the same call may succeed when retried, or non-transient. The retry decorator only
// retries transient errors; everything else propagates on the first attempt.
var (
	// ErrTransient marks failures from the key store, KMS or backends that may succeed on retry.
	ErrTransient = errors.Wrap(errors.ErrUnavailable, "transient crypto error")

	// ErrNonTransient marks permanent failures: bad registrations, type mismatches,
	// field access failures, missing keys and malformed ciphertext.
	ErrNonTransient = errors.New("non-transient crypto error")
)

// Permanent error subtypes. All of them match ErrNonTransient with errors.Is.
var (
	// ErrNoActiveEncryptionKey indicates no encryption key is active for the tenant.
	ErrNoActiveEncryptionKey = errors.Wrap(ErrNonTransient, "no active encryption key found")

	// ErrNoActiveHmacKey indicates no hmac key is active for the tenant.
	ErrNoActiveHmacKey = errors.Wrap(ErrNonTransient, "no active hmac key found")

	// ErrNoHmacKeys indicates a digest computation was requested with an empty key list.
	ErrNoHmacKeys = errors.Wrap(ErrNonTransient, "no keys found")

	// ErrUnsupportedKeyType indicates no backend handles the key's type, or the backend
	// does not support the requested operation for it.
	ErrUnsupportedKeyType = errors.Wrap(ErrNonTransient, "unsupported key type")

	// ErrNoHmacFields indicates a strategy was bound to an entity without digest fields.
	ErrNoHmacFields = errors.Wrap(ErrNonTransient, "no hmac fields registered")

	// ErrInvalidUniqueGroupOrder indicates a unique group whose orders are not a dense 1..N sequence.
	ErrInvalidUniqueGroupOrder = errors.Wrap(ErrNonTransient, "invalid unique group ordering")

	// ErrTokenizerConstruction indicates a tokenizer factory failed at registration.
	ErrTokenizerConstruction = errors.Wrap(ErrNonTransient, "tokenizer construction failed")

	// ErrFieldAccess indicates a field value could not be read or written.
	ErrFieldAccess = errors.Wrap(ErrNonTransient, "field access failed")

	// ErrInvalidRegistration indicates an entity descriptor violates a classification rule.
	ErrInvalidRegistration = errors.Wrap(ErrNonTransient, "invalid entity registration")

	// ErrInvalidMigrationDate indicates a migration-support deadline not in YYYY-MM-DD format.
	ErrInvalidMigrationDate = errors.Wrap(ErrNonTransient, "invalid migration completion date")

	// ErrEntityNotRegistered indicates an entity type that was never registered.
	ErrEntityNotRegistered = errors.Wrap(ErrNonTransient, "entity not registered")

	// ErrUnsupportedType indicates a value that cannot be encrypted, such as a primitive array.
	ErrUnsupportedType = errors.Wrap(ErrNonTransient, "unsupported type")

	// ErrKeyNotFound indicates a ciphertext references a key that is unknown or deleted.
	ErrKeyNotFound = errors.Wrap(ErrNonTransient, "crypto key not found")

	// ErrInvalidCipherText indicates a ciphertext string that does not parse.
	ErrInvalidCipherText = errors.Wrap(ErrNonTransient, "invalid ciphertext format")

	// ErrDecryptionFailed indicates authentication of a ciphertext failed.
	//
	// For security reasons, the specific cause is not disclosed.
	ErrDecryptionFailed = errors.Wrap(ErrNonTransient, "decryption failed")

	// ErrInvalidKeySize indicates key material that is not KeySize bytes long.
	ErrInvalidKeySize = errors.Wrap(ErrNonTransient, "invalid key size")
)

// Key management input errors, mapped to 422 by the HTTP layer.
var (
	// ErrUnsupportedAlgorithm indicates the requested key type does not fit the requested usage.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidRotationMode indicates an unknown rotation mode.
	ErrInvalidRotationMode = errors.Wrap(errors.ErrInvalidInput, "invalid rotation mode")
)

// NewTransientError marks err as retryable.
func NewTransientError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient reports whether err may succeed on retry. An error marked both
// transient and non-transient is treated as non-transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) && !errors.Is(err, ErrNonTransient)
}

// FieldAccessError wraps a failure to read or write field on entity.
func FieldAccessError(entity, field string, err error) error {
	return fmt.Errorf("%w: field %q on %s: %v", ErrFieldAccess, field, entity, err)
}
