package entity

import (
	"reflect"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// StrategyKind selects the hmac strategy bound to an entity type.
type StrategyKind int

const (
	// StrategyNone infers the strategy from the declared fields: Single for Hmac
	// fields, List for Lookup, Unique and UniqueGroup fields.
	StrategyNone StrategyKind = iota
	// StrategySingle stores one digest per source field under the newest active key.
	StrategySingle
	// StrategyDouble stores up to two digests per source field in fixed slots.
	StrategyDouble
	// StrategyList stores tagged digests in the lookup and unique lists.
	StrategyList
	// StrategyCustom binds an application-supplied strategy.
	StrategyCustom
)

// String returns the lowercase name of the strategy kind.
func (k StrategyKind) String() string {
	switch k {
	case StrategyNone:
		return "none"
	case StrategySingle:
		return "single"
	case StrategyDouble:
		return "double"
	case StrategyList:
		return "list"
	case StrategyCustom:
		return "custom"
	}
	return "unknown"
}

// Target field suffixes of the Single and Double strategies.
const (
	SingleHmacSuffix  = "Hmac"
	DoubleHmacSuffix1 = "Hmac1"
	DoubleHmacSuffix2 = "Hmac2"
)

// LookupHmacCarrier is implemented by List strategy entities with lookup fields.
type LookupHmacCarrier interface {
	LookupHmacs() []cryptoDomain.HmacEntry
	SetLookupHmacs(entries []cryptoDomain.HmacEntry)
}

// UniqueHmacCarrier is implemented by List strategy entities with unique fields or groups.
type UniqueHmacCarrier interface {
	UniqueHmacs() []cryptoDomain.HmacEntry
	SetUniqueHmacs(entries []cryptoDomain.HmacEntry)
}

var (
	lookupCarrierType = reflect.TypeFor[LookupHmacCarrier]()
	uniqueCarrierType = reflect.TypeFor[UniqueHmacCarrier]()
)

// Descriptor declares the fields of one entity type.
type Descriptor struct {
	typ      reflect.Type
	name     string
	strategy StrategyKind
	fields   []*Field
}

// Describe declares entity type T. Metadata is keyed by *T, so the orchestrator
// must be given pointers.
func Describe[T any](name string, strategy StrategyKind, fields ...*Field) Descriptor {
	return Descriptor{
		typ:      reflect.TypeFor[*T](),
		name:     name,
		strategy: strategy,
		fields:   fields,
	}
}

// Type returns the pointer type the descriptor registers.
func (d Descriptor) Type() reflect.Type { return d.typ }

// Strategy returns the declared strategy kind.
func (d Descriptor) Strategy() StrategyKind { return d.strategy }

// HmacTarget links a Single or Double source field to its digest fields.
type HmacTarget struct {
	Source  *Field
	Targets []*Field
}

// LookupField is a lookup source with its constructed tokenizers.
type LookupField struct {
	Field      *Field
	Tokenizers []Tokenizer
}

// GroupMember is a field of a unique group.
type GroupMember struct {
	Field    *Field
	Order    int
	Optional bool
}

// UniqueGroup is a compound unique digest over members in ascending order.
type UniqueGroup struct {
	Name    string
	Members []GroupMember
}

// Metadata is the validated classification of an entity type. It is built once
// by Registry.Register and never modified afterwards.
type Metadata struct {
	Type     reflect.Type
	Name     string
	Strategy StrategyKind

	Fields                []*Field
	FieldsToEncrypt       []*Field
	EncryptedPayloadField *Field
	EncryptionKeyIDField  *Field
	HmacKeyIDField        *Field
	HmacTargets           []HmacTarget
	LookupFields          []LookupField
	UniqueFields          []*Field
	UniqueGroups          []UniqueGroup
	CascadeFields         []*Field
	AllConfidentialFields []*Field

	byName map[string]*Field
}

// Field returns the field with the given name.
func (m *Metadata) Field(name string) (*Field, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// HasHmac reports whether the entity has any digest source field.
func (m *Metadata) HasHmac() bool {
	return len(m.HmacTargets) > 0 || len(m.LookupFields) > 0 || len(m.UniqueFields) > 0 ||
		len(m.UniqueGroups) > 0
}

// SupportsLookup reports whether the entity stores lookup digests.
func (m *Metadata) SupportsLookup() bool {
	return m.Type.Implements(lookupCarrierType)
}

// SupportsUnique reports whether the entity stores unique digests.
func (m *Metadata) SupportsUnique() bool {
	return m.Type.Implements(uniqueCarrierType)
}
