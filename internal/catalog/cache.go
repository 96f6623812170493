package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	productKeyPrefix = "catalog:product:"
	// missingMarker is stored in place of a product the source does not know.
	missingMarker = "-"
)

// ProductKey is the Redis key caching product id.
func ProductKey(id string) string {
	return productKeyPrefix + id
}

// CachedSource is a read-through Redis cache in front of another Source.
// Unknown ids are remembered for MissTTL so repeated lookups stay off the
// database. Any Redis failure falls through to Next.
type CachedSource struct {
	Next    Source
	R       redis.Cmdable
	TTL     time.Duration
	MissTTL time.Duration
}

// Product serves id from Redis when cached, otherwise loads and caches it.
func (s CachedSource) Product(ctx context.Context, id string) (Product, error) {
	if s.Next == nil {
		return Product{}, errors.New("catalog source not configured")
	}
	if s.R == nil || s.TTL <= 0 || id == "" {
		return s.Next.Product(ctx, id)
	}

	key := ProductKey(id)
	if raw, err := s.R.Get(ctx, key).Bytes(); err == nil {
		if string(raw) == missingMarker {
			return Product{}, ErrProductNotFound
		}
		var p Product
		if json.Unmarshal(raw, &p) == nil {
			return p, nil
		}
	}

	p, err := s.Next.Product(ctx, id)
	if errors.Is(err, ErrProductNotFound) && s.MissTTL > 0 {
		_ = s.R.Set(ctx, key, missingMarker, s.MissTTL).Err()
	}
	if err != nil {
		return Product{}, err
	}
	if raw, err := json.Marshal(p); err == nil {
		_ = s.R.Set(ctx, key, raw, s.TTL).Err()
	}
	return p, nil
}

// Invalidate drops the cached entries for ids so the next read reaches the source.
func Invalidate(ctx context.Context, r redis.Cmdable, ids ...string) error {
	if r == nil || len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ProductKey(id)
	}
	return r.Del(ctx, keys...).Err()
}

// MemorySource serves products from an in-process map. Used by tools and tests.
type MemorySource map[string]Product

// Product implements Source.
func (m MemorySource) Product(_ context.Context, id string) (Product, error) {
	p, ok := m[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}
