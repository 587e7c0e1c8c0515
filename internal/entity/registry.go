package entity

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// Registry holds the metadata of every registered entity type.
type Registry struct {
	mu      sync.RWMutex
	entries map[reflect.Type]*Metadata
	logger  *slog.Logger
	now     func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[reflect.Type]*Metadata),
		logger:  logger,
		now:     time.Now,
	}
}

type migrationWarning struct {
	entity      string
	field       string
	completedBy time.Time
}

// Register validates descriptors and stores their metadata. The batch is all or
// nothing: any violation leaves the registry unchanged. Registering a type that
// is already known is a no-op that returns the existing metadata.
//
// Cascade targets must be part of the same batch or registered earlier.
func (r *Registry) Register(descriptors ...Descriptor) ([]*Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[reflect.Type]*Metadata)
	result := make([]*Metadata, 0, len(descriptors))
	var warnings []migrationWarning

	for _, d := range descriptors {
		if d.typ == nil {
			return nil, fmt.Errorf("%w: empty descriptor", cryptoDomain.ErrInvalidRegistration)
		}
		if existing, ok := r.entries[d.typ]; ok {
			result = append(result, existing)
			continue
		}
		if existing, ok := pending[d.typ]; ok {
			result = append(result, existing)
			continue
		}

		meta, w, err := buildMetadata(d)
		if err != nil {
			return nil, err
		}
		pending[d.typ] = meta
		result = append(result, meta)
		warnings = append(warnings, w...)
	}

	lookup := func(t reflect.Type) (*Metadata, bool) {
		if meta, ok := pending[t]; ok {
			return meta, true
		}
		meta, ok := r.entries[t]
		return meta, ok
	}
	for _, meta := range pending {
		for _, f := range meta.CascadeFields {
			target, ok := lookup(f.target)
			if !ok {
				return nil, registrationError(
					meta, f, fmt.Sprintf("cascade target %s is not registered", f.target),
				)
			}
			if !nonTrivial(target, lookup, make(map[reflect.Type]bool)) {
				return nil, registrationError(
					meta,
					f,
					fmt.Sprintf("cascade target %s has no encrypt, hmac or cascade fields", f.target),
				)
			}
		}
	}

	for t, meta := range pending {
		r.entries[t] = meta
	}
	r.logMigrationWarnings(warnings)

	return result, nil
}

// Lookup returns the metadata registered for the dynamic type of entity.
func (r *Registry) Lookup(entity any) (*Metadata, bool) {
	return r.LookupType(reflect.TypeOf(entity))
}

// LookupType returns the metadata registered for t.
func (r *Registry) LookupType(t reflect.Type) (*Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.entries[t]
	return meta, ok
}

func (r *Registry) logMigrationWarnings(warnings []migrationWarning) {
	now := r.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for _, w := range warnings {
		attrs := []any{
			slog.String("entity", w.entity),
			slog.String("field", w.field),
			slog.String("completed_by", w.completedBy.Format(time.DateOnly)),
		}
		if w.completedBy.Before(today) {
			r.logger.Error("encrypted field is still persisted after its migration deadline", attrs...)
			continue
		}
		r.logger.Warn("encrypted field is persisted during migration", attrs...)
	}
}

// nonTrivial reports whether meta leads to at least one encrypt or hmac field.
func nonTrivial(
	meta *Metadata,
	lookup func(reflect.Type) (*Metadata, bool),
	visited map[reflect.Type]bool,
) bool {
	if len(meta.FieldsToEncrypt) > 0 || meta.HasHmac() || meta.Strategy == StrategyCustom {
		return true
	}
	if visited[meta.Type] {
		return false
	}
	visited[meta.Type] = true
	for _, f := range meta.CascadeFields {
		target, ok := lookup(f.target)
		if ok && nonTrivial(target, lookup, visited) {
			return true
		}
	}
	return false
}

func buildMetadata(d Descriptor) (*Metadata, []migrationWarning, error) {
	meta := &Metadata{
		Type:     d.typ,
		Name:     d.name,
		Strategy: d.strategy,
		Fields:   slices.Clone(d.fields),
		byName:   make(map[string]*Field, len(d.fields)),
	}
	if meta.Name == "" {
		meta.Name = d.typ.Elem().Name()
	}

	var (
		warnings   []migrationWarning
		payloads   []*Field
		keyIDs     []*Field
		hmacKeyIDs []*Field
		hmacs      []*Field
		groups     = make(map[string][]GroupMember)
		groupNames []string
	)

	for _, f := range meta.Fields {
		if f == nil {
			return nil, nil, fmt.Errorf("%w: nil field on %s", cryptoDomain.ErrInvalidRegistration, meta.Name)
		}
		if f.owner != d.typ {
			return nil, nil, registrationError(meta, f, fmt.Sprintf("field belongs to %s", f.owner))
		}
		if _, ok := meta.byName[f.name]; ok {
			return nil, nil, registrationError(meta, f, "duplicate field name")
		}
		meta.byName[f.name] = f

		if f.cascade {
			if f.encrypt || f.hashed() {
				return nil, nil, registrationError(meta, f, "cascade field cannot be encrypted or hashed")
			}
			if f.kind != KindEntity && f.kind != KindCollection {
				return nil, nil, fmt.Errorf(
					"%w: cascade field %q on %s must hold an entity or a collection of entities",
					cryptoDomain.ErrUnsupportedType,
					f.name,
					meta.Name,
				)
			}
			meta.CascadeFields = append(meta.CascadeFields, f)
		}

		if f.completedBy != "" {
			deadline, err := parseCompletedBy(f.completedBy)
			if err != nil {
				return nil, nil, fmt.Errorf(
					"%w: field %q on %s: %q is not YYYY-MM-DD",
					cryptoDomain.ErrInvalidMigrationDate,
					f.name,
					meta.Name,
					f.completedBy,
				)
			}
			if f.encrypt && !f.transient {
				warnings = append(
					warnings,
					migrationWarning{entity: meta.Name, field: f.name, completedBy: deadline},
				)
			}
		}

		if f.encrypt {
			if f.payload || f.keyID || f.hmacKeyID {
				return nil, nil, registrationError(meta, f, "payload and key id fields cannot be encrypted")
			}
			if !f.transient && f.completedBy == "" {
				return nil, nil, registrationError(
					meta, f, "encrypted field must be transient or declare migration support",
				)
			}
			meta.FieldsToEncrypt = append(meta.FieldsToEncrypt, f)
		}

		if f.payload {
			payloads = append(payloads, f)
		}
		if f.keyID {
			keyIDs = append(keyIDs, f)
		}
		if f.hmacKeyID {
			hmacKeyIDs = append(hmacKeyIDs, f)
		}
		if (f.payload || f.keyID || f.hmacKeyID || f.hashed()) && f.kind != KindString {
			return nil, nil, registrationError(meta, f, "field must be string-typed")
		}

		if f.hmac {
			hmacs = append(hmacs, f)
		}
		if f.lookup {
			lf := LookupField{Field: f}
			seen := make(map[string]bool)
			for _, factory := range f.tokenizers {
				tokenizer, err := buildTokenizer(factory)
				if err != nil {
					return nil, nil, fmt.Errorf(
						"%w: field %q on %s: %v",
						cryptoDomain.ErrTokenizerConstruction,
						f.name,
						meta.Name,
						err,
					)
				}
				if seen[tokenizer.Name()] {
					return nil, nil, registrationError(
						meta, f, fmt.Sprintf("duplicate tokenizer %q", tokenizer.Name()),
					)
				}
				seen[tokenizer.Name()] = true
				lf.Tokenizers = append(lf.Tokenizers, tokenizer)
			}
			meta.LookupFields = append(meta.LookupFields, lf)
		}
		if f.unique {
			meta.UniqueFields = append(meta.UniqueFields, f)
		}
		for _, g := range f.groups {
			if _, ok := groups[g.Name]; !ok {
				groupNames = append(groupNames, g.Name)
			}
			for _, m := range groups[g.Name] {
				if m.Field == f {
					return nil, nil, registrationError(meta, f, fmt.Sprintf("field is twice in group %q", g.Name))
				}
			}
			groups[g.Name] = append(groups[g.Name], GroupMember{Field: f, Order: g.Order, Optional: g.Optional})
		}

		if f.encrypt || f.hashed() {
			meta.AllConfidentialFields = append(meta.AllConfidentialFields, f)
		}
	}

	switch {
	case len(payloads) > 1:
		return nil, nil, registrationError(meta, payloads[1], "more than one encrypted payload field")
	case len(payloads) == 1 && len(meta.FieldsToEncrypt) == 0:
		return nil, nil, registrationError(meta, payloads[0], "encrypted payload field without encrypt fields")
	case len(payloads) == 0 && len(meta.FieldsToEncrypt) > 0:
		return nil, nil, fmt.Errorf(
			"%w: %s has encrypt fields but no encrypted payload field",
			cryptoDomain.ErrInvalidRegistration,
			meta.Name,
		)
	case len(payloads) == 1:
		meta.EncryptedPayloadField = payloads[0]
	}
	if len(keyIDs) > 1 {
		return nil, nil, registrationError(meta, keyIDs[1], "more than one encryption key id field")
	}
	if len(keyIDs) == 1 {
		meta.EncryptionKeyIDField = keyIDs[0]
	}
	if len(hmacKeyIDs) > 1 {
		return nil, nil, registrationError(meta, hmacKeyIDs[1], "more than one hmac key id field")
	}
	if len(hmacKeyIDs) == 1 {
		meta.HmacKeyIDField = hmacKeyIDs[0]
	}

	for _, name := range groupNames {
		group, err := buildUniqueGroup(meta, name, groups[name])
		if err != nil {
			return nil, nil, err
		}
		meta.UniqueGroups = append(meta.UniqueGroups, group)
	}

	if err := bindStrategy(meta, hmacs); err != nil {
		return nil, nil, err
	}

	return meta, warnings, nil
}

func buildTokenizer(factory TokenizerFactory) (tokenizer Tokenizer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if factory == nil {
		return nil, fmt.Errorf("nil tokenizer factory")
	}
	tokenizer, err = factory()
	if err == nil && tokenizer == nil {
		err = fmt.Errorf("factory returned nil tokenizer")
	}
	return tokenizer, err
}

func buildUniqueGroup(meta *Metadata, name string, members []GroupMember) (UniqueGroup, error) {
	sorted := slices.Clone(members)
	slices.SortStableFunc(sorted, func(a, b GroupMember) int { return a.Order - b.Order })
	for i, m := range sorted {
		if m.Order != i+1 {
			orders := make([]int, len(members))
			for j, member := range members {
				orders[j] = member.Order
			}
			return UniqueGroup{}, fmt.Errorf(
				"%w: group %q on %s has orders %v, expected 1..%d",
				cryptoDomain.ErrInvalidUniqueGroupOrder,
				name,
				meta.Name,
				orders,
				len(members),
			)
		}
	}
	return UniqueGroup{Name: name, Members: sorted}, nil
}

func bindStrategy(meta *Metadata, hmacs []*Field) error {
	listSources := len(meta.LookupFields) > 0 || len(meta.UniqueFields) > 0 || len(meta.UniqueGroups) > 0

	if meta.Strategy == StrategyCustom {
		return nil
	}
	if len(hmacs) > 0 && listSources {
		return fmt.Errorf(
			"%w: %s mixes hmac fields with lookup or unique fields",
			cryptoDomain.ErrInvalidRegistration,
			meta.Name,
		)
	}
	if meta.Strategy == StrategyNone {
		switch {
		case len(hmacs) > 0:
			meta.Strategy = StrategySingle
		case listSources:
			meta.Strategy = StrategyList
		}
	}

	hasLookup := len(meta.LookupFields) > 0
	hasUnique := len(meta.UniqueFields) > 0 || len(meta.UniqueGroups) > 0
	if meta.SupportsLookup() != hasLookup {
		return fmt.Errorf(
			"%w: %s must implement LookupHmacCarrier if and only if it has lookup fields",
			cryptoDomain.ErrInvalidRegistration,
			meta.Name,
		)
	}
	if meta.SupportsUnique() != hasUnique {
		return fmt.Errorf(
			"%w: %s must implement UniqueHmacCarrier if and only if it has unique fields",
			cryptoDomain.ErrInvalidRegistration,
			meta.Name,
		)
	}

	switch meta.Strategy {
	case StrategySingle, StrategyDouble:
		if len(hmacs) == 0 {
			return fmt.Errorf("%w: %s strategy on %s", cryptoDomain.ErrNoHmacFields, meta.Strategy, meta.Name)
		}
		suffixes := []string{SingleHmacSuffix}
		if meta.Strategy == StrategyDouble {
			suffixes = []string{DoubleHmacSuffix1, DoubleHmacSuffix2}
		}
		for _, source := range hmacs {
			target := HmacTarget{Source: source}
			for _, suffix := range suffixes {
				f, ok := meta.byName[source.name+suffix]
				if !ok {
					return registrationError(meta, source, fmt.Sprintf("missing digest field %q", source.name+suffix))
				}
				if f.kind != KindString || f.encrypt || f.hashed() {
					return registrationError(meta, f, "digest field must be a plain string field")
				}
				target.Targets = append(target.Targets, f)
			}
			meta.HmacTargets = append(meta.HmacTargets, target)
		}
	case StrategyList:
		if !listSources {
			return fmt.Errorf("%w: list strategy on %s", cryptoDomain.ErrNoHmacFields, meta.Name)
		}
	case StrategyNone:
	default:
		return fmt.Errorf("%w: unknown strategy on %s", cryptoDomain.ErrInvalidRegistration, meta.Name)
	}
	return nil
}

func registrationError(meta *Metadata, f *Field, reason string) error {
	return fmt.Errorf("%w: field %q on %s: %s", cryptoDomain.ErrInvalidRegistration, f.name, meta.Name, reason)
}

func fieldAccessError(owner reflect.Type, field string, err error) error {
	return cryptoDomain.FieldAccessError(owner.String(), field, err)
}
