package store

import (
	"context"

	"github.com/redis/go-redis/v9"
)

var redisDocPrefix string = "modbot/doc/"

// RedisStore keeps each document as a single string key, for deployments
// where several bot replicas share state.
type RedisStore struct {
	Client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisStore{Client: rdb}, nil
}

func (s *RedisStore) Load(ctx context.Context, name string) ([]byte, error) {
	raw, err := s.Client.Get(ctx, redisDocPrefix+name).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *RedisStore) Save(ctx context.Context, name string, data []byte) error {
	// no expiration; documents live until overwritten
	return s.Client.Set(ctx, redisDocPrefix+name, data, 0).Err()
}
