// Package cursor provides a Redis-backed replication cursor store for
// deployments where device state lives in a shared cache tier instead of
// the local database.
package cursor

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	repo "github.com/amirasaad/ledgersync/pkg/repository"
	"github.com/redis/go-redis/v9"
)

// RedisCursorStore implements repository.CursorStore on Redis. Cursors are
// stored as plain integer strings under prefix+key with no expiry, since a
// lost cursor forces a full re-pull.
type RedisCursorStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisCursorStore creates a cursor store from redis options.
func NewRedisCursorStore(
	opt *redis.Options,
	prefix string,
	logger *slog.Logger,
) *RedisCursorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCursorStore{
		client: redis.NewClient(opt),
		prefix: prefix,
		logger: logger,
	}
}

var _ repo.CursorStore = (*RedisCursorStore)(nil)

func (s *RedisCursorStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisCursorStore) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		s.logger.Error("cursor get error", "key", key, "error", err)
		return 0, err
	}
	seq, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		s.logger.Error("cursor parse error", "key", key, "value", val, "error", err)
		return 0, err
	}
	return seq, nil
}

func (s *RedisCursorStore) Set(ctx context.Context, key string, seq int64) error {
	err := s.client.Set(ctx, s.key(key), strconv.FormatInt(seq, 10), 0).Err()
	if err != nil {
		s.logger.Error("cursor set error", "key", key, "error", err)
		return err
	}
	return nil
}

func (s *RedisCursorStore) Delete(ctx context.Context, key string) error {
	err := s.client.Del(ctx, s.key(key)).Err()
	if err != nil {
		s.logger.Error("cursor delete error", "key", key, "error", err)
		return err
	}
	return nil
}

// List scans prefix+p* and returns matching cursors with the store prefix
// stripped back off.
func (s *RedisCursorStore) List(ctx context.Context, p string) (map[string]int64, error) {
	out := make(map[string]int64)
	iter := s.client.Scan(ctx, 0, s.key(p)+"*", 0).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		val, err := s.client.Get(ctx, full).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		seq, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			s.logger.Error("cursor parse error", "key", full, "value", val, "error", err)
			return nil, err
		}
		out[full[len(s.prefix):]] = seq
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
