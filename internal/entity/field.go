// Package entity implements field classification for encryptable entities.
//
// An integrating application describes each entity type once with Describe and a
// list of field builders. Every builder captures a typed reference to the struct
// field, so reads and writes during encryption go through closures built at
// registration instead of runtime introspection. Registry.Register validates the
// descriptors and derives the immutable Metadata the orchestrator dispatches on.
package entity

import (
	"fmt"
	"reflect"
	"time"
)

// ValueKind describes how a field value is handled by the orchestrator.
type ValueKind int

const (
	// KindString is a string field. Only string fields can be hashed or hold ids and payloads.
	KindString ValueKind = iota
	// KindValue is any other value serialized into the encrypted payload.
	KindValue
	// KindEntity is a pointer to a nested entity.
	KindEntity
	// KindCollection is a slice of pointers to nested entities.
	KindCollection
)

// String returns the lowercase name of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindValue:
		return "value"
	case KindEntity:
		return "entity"
	case KindCollection:
		return "collection"
	}
	return "unknown"
}

// GroupMembership places a field in a unique group.
type GroupMembership struct {
	Name     string
	Order    int
	Optional bool
}

// Field describes one field of an entity type and how it takes part in encryption.
// Fields are built with String, Value, Bytes, Nested and NestedSlice and configured
// with the chained flag methods.
type Field struct {
	name      string
	kind      ValueKind
	owner     reflect.Type
	valueType reflect.Type
	target    reflect.Type

	get      func(entity any) (any, error)
	set      func(entity, value any) error
	newValue func() any

	encrypt     bool
	transient   bool
	payload     bool
	keyID       bool
	hmacKeyID   bool
	hmac        bool
	lookup      bool
	unique      bool
	cascade     bool
	completedBy string

	tokenizers []TokenizerFactory
	groups     []GroupMembership
}

// String declares a string field.
func String[T any](name string, ref func(*T) *string) *Field {
	return newField(name, KindString, nil, ref)
}

// Value declares a field of any serializable type.
func Value[T, V any](name string, ref func(*T) *V) *Field {
	return newField(name, KindValue, nil, ref)
}

// Bytes declares a byte slice field.
func Bytes[T any](name string, ref func(*T) *[]byte) *Field {
	return newField(name, KindValue, nil, ref)
}

// Nested declares a field holding a pointer to another entity.
func Nested[T, E any](name string, ref func(*T) **E) *Field {
	return newField(name, KindEntity, reflect.TypeFor[*E](), ref)
}

// NestedSlice declares a field holding a slice of pointers to another entity.
func NestedSlice[T, E any](name string, ref func(*T) *[]*E) *Field {
	return newField(name, KindCollection, reflect.TypeFor[*E](), ref)
}

func newField[T, V any](name string, kind ValueKind, target reflect.Type, ref func(*T) *V) *Field {
	owner := reflect.TypeFor[*T]()
	return &Field{
		name:      name,
		kind:      kind,
		owner:     owner,
		valueType: reflect.TypeFor[V](),
		target:    target,
		get: func(entity any) (any, error) {
			t, ok := entity.(*T)
			if !ok {
				return nil, fmt.Errorf("expected %s, got %T", owner, entity)
			}
			if t == nil {
				return nil, fmt.Errorf("nil %s", owner)
			}
			return *ref(t), nil
		},
		set: func(entity, value any) error {
			t, ok := entity.(*T)
			if !ok {
				return fmt.Errorf("expected %s, got %T", owner, entity)
			}
			if t == nil {
				return fmt.Errorf("nil %s", owner)
			}
			switch v := value.(type) {
			case nil:
				var zero V
				*ref(t) = zero
			case V:
				*ref(t) = v
			case *V:
				if v == nil {
					var zero V
					*ref(t) = zero
					return nil
				}
				*ref(t) = *v
			default:
				return fmt.Errorf("cannot assign %T to %s", value, reflect.TypeFor[V]())
			}
			return nil
		},
		newValue: func() any {
			return new(V)
		},
	}
}

// Encrypt marks the field for inclusion in the encrypted payload.
func (f *Field) Encrypt() *Field {
	f.encrypt = true
	return f
}

// Transient marks the field as excluded from ordinary persistence.
func (f *Field) Transient() *Field {
	f.transient = true
	return f
}

// MigrationSupport allows a persisted encrypt field until completedBy (YYYY-MM-DD).
func (f *Field) MigrationSupport(completedBy string) *Field {
	f.completedBy = completedBy
	return f
}

// EncryptedPayload marks the field that receives the ciphertext.
func (f *Field) EncryptedPayload() *Field {
	f.payload = true
	return f
}

// EncryptionKeyID marks the field that receives the id of the encryption key.
func (f *Field) EncryptionKeyID() *Field {
	f.keyID = true
	return f
}

// HmacKeyID marks the field that receives the id of the hmac key.
func (f *Field) HmacKeyID() *Field {
	f.hmacKeyID = true
	return f
}

// Hmac marks the field as the source of a Single or Double strategy digest.
func (f *Field) Hmac() *Field {
	f.hmac = true
	return f
}

// Lookup marks the field as the source of a List strategy lookup digest,
// optionally with tokenizers deriving extra searchable values.
func (f *Field) Lookup(tokenizers ...TokenizerFactory) *Field {
	f.lookup = true
	f.tokenizers = append(f.tokenizers, tokenizers...)
	return f
}

// Unique marks the field as the source of a List strategy unique digest.
func (f *Field) Unique() *Field {
	f.unique = true
	return f
}

// UniqueGroup adds the field to a compound unique digest at the given 1-based order.
func (f *Field) UniqueGroup(name string, order int, optional bool) *Field {
	f.groups = append(f.groups, GroupMembership{Name: name, Order: order, Optional: optional})
	return f
}

// Cascade marks a nested entity or collection for recursive processing.
func (f *Field) Cascade() *Field {
	f.cascade = true
	return f
}

// Name returns the logical field name.
func (f *Field) Name() string { return f.name }

// Kind returns the value kind.
func (f *Field) Kind() ValueKind { return f.kind }

// ValueType returns the Go type of the field.
func (f *Field) ValueType() reflect.Type { return f.valueType }

// TargetType returns the pointer type of the nested entity for cascade kinds.
func (f *Field) TargetType() reflect.Type { return f.target }

// IsEncrypt reports whether the field is part of the encrypted payload.
func (f *Field) IsEncrypt() bool { return f.encrypt }

// IsTransient reports whether the field is excluded from persistence.
func (f *Field) IsTransient() bool { return f.transient }

// IsCascade reports whether the field is processed recursively.
func (f *Field) IsCascade() bool { return f.cascade }

// CompletedBy returns the migration-support deadline, if any.
func (f *Field) CompletedBy() string { return f.completedBy }

// Groups returns the unique groups the field belongs to.
func (f *Field) Groups() []GroupMembership { return f.groups }

func (f *Field) hashed() bool {
	return f.hmac || f.lookup || f.unique || len(f.groups) > 0
}

// Get reads the field from entity, which must be a pointer to the owning type.
func (f *Field) Get(entity any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = f.accessError(err)
		}
	}()
	return f.get(entity)
}

// GetString reads a string field. Any other kind is a field access error.
func (f *Field) GetString(entity any) (string, error) {
	value, err := f.Get(entity)
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok {
		return "", f.accessError(fmt.Errorf("not a string field: %s", f.valueType))
	}
	return s, nil
}

// Set writes value to the field. A nil value resets the field to its zero value,
// and a pointer to the field type is dereferenced.
func (f *Field) Set(entity, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = f.accessError(err)
		}
	}()
	return f.set(entity, value)
}

// NewValue returns a pointer to a new zero value of the field type.
func (f *Field) NewValue() any {
	return f.newValue()
}

func (f *Field) accessError(err error) error {
	return fieldAccessError(f.owner, f.name, err)
}

func parseCompletedBy(value string) (time.Time, error) {
	return time.Parse(time.DateOnly, value)
}
