package hmac

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/entity"
)

// absentGroupValue stands in for a missing mandatory unique group member.
const absentGroupValue = "null"

// listStrategy stores digests as tagged entries in the lookup and unique lists.
// New entries are merged with the persisted ones, so digests under keys that are
// not part of the computation survive.
type listStrategy struct {
	meta   *entity.Metadata
	hasher Hasher
	now    func() time.Time
}

func (s *listStrategy) ComputeAndStore(ctx context.Context, e any, keys KeySource) error {
	active, err := activeKeys(ctx, keys, s.now())
	if err != nil {
		return err
	}
	newest := active[0]

	var lookup entity.LookupHmacCarrier
	var unique entity.UniqueHmacCarrier
	var existingLookup, existingUnique []cryptoDomain.HmacEntry
	if len(s.meta.LookupFields) > 0 {
		lookup = e.(entity.LookupHmacCarrier)
		existingLookup = lookup.LookupHmacs()
	}
	if len(s.meta.UniqueFields) > 0 || len(s.meta.UniqueGroups) > 0 {
		unique = e.(entity.UniqueHmacCarrier)
		existingUnique = unique.UniqueHmacs()
	}

	delegate, rekey := rekeyFromContext(ctx)
	computing := active
	if delegate != nil {
		existing := make([]cryptoDomain.HmacEntry, 0, len(existingLookup)+len(existingUnique))
		existing = append(existing, existingLookup...)
		existing = append(existing, existingUnique...)
		computing = delegate.KeysToCompute(existing, active)
		if len(computing) == 0 {
			return setHmacKeyID(s.meta, e, newest)
		}
	}

	lookupHolders, err := s.lookupHolders(e, computing)
	if err != nil {
		return err
	}
	uniqueHolders, err := s.uniqueHolders(e, computing)
	if err != nil {
		return err
	}
	if delegate != nil {
		lookupHolders = delegate.StripExisting(existingLookup, lookupHolders)
		uniqueHolders = delegate.StripExisting(existingUnique, uniqueHolders)
	}

	batch := make([]*cryptoDomain.HmacHolder, 0, len(lookupHolders)+len(uniqueHolders))
	batch = append(batch, lookupHolders...)
	batch = append(batch, uniqueHolders...)
	if err := hash(s.hasher, batch); err != nil {
		return err
	}

	if lookup != nil {
		lookup.SetLookupHmacs(mergeEntries(existingLookup, lookupHolders, computing, rekey))
	}
	if unique != nil {
		unique.SetUniqueHmacs(mergeEntries(existingUnique, uniqueHolders, computing, rekey))
	}
	return setHmacKeyID(s.meta, e, newest)
}

func (s *listStrategy) lookupHolders(
	e any,
	keys []*cryptoDomain.CryptoKey,
) ([]*cryptoDomain.HmacHolder, error) {
	var holders []*cryptoDomain.HmacHolder
	for _, lf := range s.meta.LookupFields {
		value, err := lf.Field.GetString(e)
		if err != nil {
			return nil, err
		}
		if value == "" {
			continue
		}
		name := lf.Field.Name()
		for _, key := range keys {
			holders = append(holders, &cryptoDomain.HmacHolder{Key: key, Value: value, Alias: name})
		}

		for _, tokenizer := range lf.Tokenizers {
			alias := TokenAlias(name, tokenizer.Name())
			seen := make(map[string]bool)
			for _, token := range tokenizer.Tokenize(value) {
				if token == "" || seen[token] {
					continue
				}
				seen[token] = true
				for _, key := range keys {
					holders = append(holders, &cryptoDomain.HmacHolder{
						Key:       key,
						Value:     token,
						Alias:     alias,
						Tokenized: true,
					})
				}
			}
		}
	}
	return holders, nil
}

func (s *listStrategy) uniqueHolders(
	e any,
	keys []*cryptoDomain.CryptoKey,
) ([]*cryptoDomain.HmacHolder, error) {
	var holders []*cryptoDomain.HmacHolder
	add := func(alias, value string) {
		for _, key := range keys {
			holders = append(holders, &cryptoDomain.HmacHolder{Key: key, Value: value, Alias: alias})
		}
	}

	for _, f := range s.meta.UniqueFields {
		value, err := f.GetString(e)
		if err != nil {
			return nil, err
		}
		if value != "" {
			add(f.Name(), value)
		}
	}

	for _, group := range s.meta.UniqueGroups {
		value, ok, err := groupValue(e, group)
		if err != nil {
			return nil, err
		}
		if ok {
			add(group.Name, value)
		}
	}
	return holders, nil
}

// groupValue concatenates the members of group in order. An absent optional member
// drops the whole group, an absent mandatory member contributes "null".
func groupValue(e any, group entity.UniqueGroup) (string, bool, error) {
	var sb strings.Builder
	for _, member := range group.Members {
		value, err := member.Field.GetString(e)
		if err != nil {
			return "", false, err
		}
		if value == "" {
			if member.Optional {
				return "", false, nil
			}
			value = absentGroupValue
		}
		sb.WriteString(value)
	}
	return sb.String(), true, nil
}

// mergeEntries keeps every existing entry produced by a key outside keys and
// appends the computed ones. Entries of the computed keys are replaced, except
// during a rekey where a non-tokenized entry that was not recomputed is kept.
func mergeEntries(
	existing []cryptoDomain.HmacEntry,
	computed []*cryptoDomain.HmacHolder,
	keys []*cryptoDomain.CryptoKey,
	rekey bool,
) []cryptoDomain.HmacEntry {
	computing := make(map[uuid.UUID]bool, len(keys))
	for _, key := range keys {
		computing[key.ID] = true
	}
	recomputed := make(map[entryKey]bool, len(computed))
	for _, holder := range computed {
		recomputed[entryKey{keyID: holder.Key.ID, alias: holder.Alias}] = true
	}

	result := make([]cryptoDomain.HmacEntry, 0, len(existing)+len(computed))
	for _, entry := range existing {
		switch {
		case !computing[entry.KeyID]:
			result = append(result, entry)
		case rekey && !entry.Tokenized && !recomputed[entryKey{keyID: entry.KeyID, alias: entry.Alias}]:
			result = append(result, entry)
		}
	}
	for _, holder := range computed {
		result = append(result, holder.Entry())
	}
	return result
}
