package intake

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/support-bot/internal/domain"
)

const keyPrefix = "intake:"

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore backs the buffer with Redis so intake survives a bot
// restart mid-flow. Entries expire after ttl (no expiry when zero).
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) Put(ctx context.Context, requesterID string, data domain.PendingIntake) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+requesterID, payload, s.ttl).Err()
}

func (s *redisStore) Take(ctx context.Context, requesterID string) (domain.PendingIntake, bool, error) {
	payload, err := s.client.GetDel(ctx, keyPrefix+requesterID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PendingIntake{}, false, nil
		}
		return domain.PendingIntake{}, false, err
	}
	var data domain.PendingIntake
	if err := json.Unmarshal(payload, &data); err != nil {
		return domain.PendingIntake{}, false, err
	}
	return data, true, nil
}
