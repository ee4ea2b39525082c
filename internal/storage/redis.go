package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	linksKeyFormat = "vehicle_sync:links:%s"
	idsKeyFormat   = "vehicle_sync:ids:%s"
)

// RedisSessionStore keeps the per-run link list and processed-id set in
// Redis under TTL-bounded keys, so successive batch calls can come from
// different processes.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(addr string) *RedisSessionStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisSessionStore{client: rdb}
}

func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetLinks returns the cached link list for a session. The second return
// value reports whether the session has a list at all; an expired or unknown
// session is not an error.
func (s *RedisSessionStore) GetLinks(ctx context.Context, token string) ([]string, bool, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf(linksKeyFormat, token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var links []string
	if err := json.Unmarshal([]byte(raw), &links); err != nil {
		return nil, false, fmt.Errorf("decode cached links: %w", err)
	}
	return links, true, nil
}

func (s *RedisSessionStore) SaveLinks(ctx context.Context, token string, links []string, ttl time.Duration) error {
	raw, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("encode links: %w", err)
	}
	return s.client.Set(ctx, fmt.Sprintf(linksKeyFormat, token), raw, ttl).Err()
}

// GetProcessedIDs returns the ids accumulated so far; an absent key yields
// an empty set.
func (s *RedisSessionStore) GetProcessedIDs(ctx context.Context, token string) ([]int64, error) {
	raw, err := s.client.Get(ctx, fmt.Sprintf(idsKeyFormat, token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode processed ids: %w", err)
	}
	return ids, nil
}

func (s *RedisSessionStore) SaveProcessedIDs(ctx context.Context, token string, ids []int64, ttl time.Duration) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode processed ids: %w", err)
	}
	return s.client.Set(ctx, fmt.Sprintf(idsKeyFormat, token), raw, ttl).Err()
}

// DeleteSession drops both keys once the final batch has reported.
func (s *RedisSessionStore) DeleteSession(ctx context.Context, token string) error {
	return s.client.Del(ctx,
		fmt.Sprintf(linksKeyFormat, token),
		fmt.Sprintf(idsKeyFormat, token),
	).Err()
}
