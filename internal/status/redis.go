package status

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps lesson indices in a Redis hash, one field per parameter.
// The hash key is scoped by run ID so concurrent runs sharing a Redis
// instance do not clobber each other.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to Redis at url (redis:// form) and scopes all
// state under the given run ID.
func NewRedisStore(url, runID string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		key:    "curricula:status:" + runID,
	}, nil
}

func (s *RedisStore) GetLessonNum(parameter string) (int, bool, error) {
	val, err := s.client.HGet(context.Background(), s.key, parameter).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get for parameter %q: %w", parameter, err)
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt lesson index %q for parameter %q: %w", val, parameter, err)
	}
	return num, true, nil
}

func (s *RedisStore) SetLessonNum(parameter string, lessonNum int) error {
	if err := s.client.HSet(context.Background(), s.key, parameter, lessonNum).Err(); err != nil {
		return fmt.Errorf("redis set for parameter %q: %w", parameter, err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
