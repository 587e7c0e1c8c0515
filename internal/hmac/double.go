package hmac

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/entity"
)

// doubleStrategy writes the digest under the oldest active key into "<field>Hmac1"
// and under the newest into "<field>Hmac2". With a single active key both slots
// hold the same digest. In rekey mode only the second slot is written.
type doubleStrategy struct {
	meta   *entity.Metadata
	hasher Hasher
	now    func() time.Time
}

func (s *doubleStrategy) ComputeAndStore(ctx context.Context, e any, keys KeySource) error {
	active, err := activeKeys(ctx, keys, s.now())
	if err != nil {
		return err
	}
	newest := active[0]
	oldest := active[len(active)-1]
	_, rekey := rekeyFromContext(ctx)

	type slots struct {
		first  *cryptoDomain.HmacHolder
		second *cryptoDomain.HmacHolder
	}
	computed := make([]slots, len(s.meta.HmacTargets))
	batch := make([]*cryptoDomain.HmacHolder, 0, 2*len(s.meta.HmacTargets))
	for i, target := range s.meta.HmacTargets {
		value, err := target.Source.GetString(e)
		if err != nil {
			return err
		}
		if value == "" {
			continue
		}
		second := &cryptoDomain.HmacHolder{Key: newest, Value: value, Alias: target.Targets[1].Name()}
		computed[i].second = second
		batch = append(batch, second)

		if rekey {
			continue
		}
		if oldest == newest {
			computed[i].first = second
			continue
		}
		first := &cryptoDomain.HmacHolder{Key: oldest, Value: value, Alias: target.Targets[0].Name()}
		computed[i].first = first
		batch = append(batch, first)
	}

	if err := hash(s.hasher, batch); err != nil {
		return err
	}

	for i, target := range s.meta.HmacTargets {
		if !rekey {
			if err := target.Targets[0].Set(e, digestOf(computed[i].first)); err != nil {
				return err
			}
		}
		if err := target.Targets[1].Set(e, digestOf(computed[i].second)); err != nil {
			return err
		}
	}
	return setHmacKeyID(s.meta, e, newest)
}

func digestOf(holder *cryptoDomain.HmacHolder) any {
	if holder == nil {
		return nil
	}
	return holder.Digest
}
