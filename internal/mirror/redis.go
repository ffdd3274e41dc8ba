package mirror

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"leadboard/internal/apperr"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each mirror document in a hash with "body" and "version" fields.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "leadboard:mirror:",
	}
}

func (s *RedisStore) key(path string) string {
	return s.prefix + path
}

func (s *RedisStore) Get(ctx context.Context, path string) (Document, error) {
	fields, err := s.client.HGetAll(ctx, s.key(path)).Result()
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	if len(fields) == 0 {
		return Document{}, nil
	}
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return Document{}, fmt.Errorf("get %s: bad version %q: %w", path, fields["version"], err)
	}
	return Document{Body: []byte(fields["body"]), Version: version, Exists: true}, nil
}

func (s *RedisStore) Put(ctx context.Context, path string, body []byte) error {
	key := s.key(path)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "body", body)
		pipe.HIncrBy(ctx, key, "version", 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, path string, version int64, body []byte) error {
	key := s.key(path)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "version").Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return err
		}
		if current != version {
			return apperr.ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "body", body, "version", version+1)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, apperr.ErrVersionConflict):
		return fmt.Errorf("swap %s at version %d: %w", path, version, apperr.ErrVersionConflict)
	default:
		return fmt.Errorf("swap %s: %w", path, err)
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
