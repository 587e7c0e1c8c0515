package hmac

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/entity"
)

// singleStrategy writes one digest per source field into "<field>Hmac", using the
// newest active key. Search breaks for records written under the previous key
// until they are rekeyed.
type singleStrategy struct {
	meta   *entity.Metadata
	hasher Hasher
	now    func() time.Time
}

func (s *singleStrategy) ComputeAndStore(ctx context.Context, e any, keys KeySource) error {
	active, err := activeKeys(ctx, keys, s.now())
	if err != nil {
		return err
	}
	key := active[0]

	holders := make([]*cryptoDomain.HmacHolder, len(s.meta.HmacTargets))
	batch := make([]*cryptoDomain.HmacHolder, 0, len(s.meta.HmacTargets))
	for i, target := range s.meta.HmacTargets {
		value, err := target.Source.GetString(e)
		if err != nil {
			return err
		}
		if value == "" {
			continue
		}
		holders[i] = &cryptoDomain.HmacHolder{Key: key, Value: value, Alias: target.Source.Name()}
		batch = append(batch, holders[i])
	}

	if err := hash(s.hasher, batch); err != nil {
		return err
	}

	for i, target := range s.meta.HmacTargets {
		var digest any
		if holders[i] != nil {
			digest = holders[i].Digest
		}
		if err := target.Targets[0].Set(e, digest); err != nil {
			return err
		}
	}
	return setHmacKeyID(s.meta, e, key)
}
