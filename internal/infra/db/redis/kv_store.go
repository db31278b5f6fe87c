package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bryanwahyu/leafdoctor/internal/domain/kv"
)

type KVStore struct {
	client *goredis.Client
}

// Connect opens a client and verifies the server answers PING.
func Connect(ctx context.Context, addr, password string, db int) (*KVStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &KVStore{client: client}, nil
}

func NewKVStore(client *goredis.Client) *KVStore {
	return &KVStore{client: client}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, kv.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// Put writes without expiry; SET replaces the value atomically.
func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *KVStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *KVStore) Close() error {
	return s.client.Close()
}
