package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlotStore persists one cart snapshot per session.
type SlotStore interface {
	Load(ctx context.Context, sessionID string) (Snapshot, bool, error)
	Save(ctx context.Context, sessionID string, snap Snapshot) error
}

// RedisSlots keeps each session's snapshot as a JSON blob under a single key.
type RedisSlots struct {
	R      *redis.Client
	TTL    time.Duration
	Prefix string
}

func (s RedisSlots) key(sessionID string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "cart:slot:"
	}
	return prefix + sessionID
}

func (s RedisSlots) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

// Load reads the snapshot for sessionID. It reports whether the slot existed.
func (s RedisSlots) Load(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	if s.R == nil {
		return Snapshot{}, false, errors.New("cart slots: redis client not configured")
	}
	data, err := s.R.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// Save writes the snapshot and refreshes the slot expiry.
func (s RedisSlots) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	if s.R == nil {
		return errors.New("cart slots: redis client not configured")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, s.key(sessionID), data, s.ttl()).Err()
}
