package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/domain/repository"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

const DefaultSnapshotKey = "shorts-planner:trends"

// NewCache connects to Redis and pings it.
func NewCache(ctx context.Context, addr, username, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisSnapshotStore keeps the snapshot under a single key. A zero TTL keeps it forever.
type RedisSnapshotStore struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

func NewRedisSnapshotStore(client redis.Cmdable, key string, ttl time.Duration) *RedisSnapshotStore {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &RedisSnapshotStore{client: client, key: key, ttl: ttl}
}

func (s *RedisSnapshotStore) Name() string { return "redis" }

func (s *RedisSnapshotStore) Read(ctx context.Context) (*model.CacheSnapshot, error) {
	if s.client == nil {
		return model.EmptySnapshot(), repository.ErrSnapshotNotFound
	}
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.EmptySnapshot(), repository.ErrSnapshotNotFound
		}
		return model.EmptySnapshot(), fmt.Errorf("failed to get snapshot from redis: %w", err)
	}
	snap, err := repository.DecodeSnapshot(data)
	if errors.Is(err, repository.ErrSnapshotCorrupt) {
		logger.GetLogger().WithField("key", s.key).WithField("error", err).Warn("Redis snapshot is corrupt")
	}
	return snap, err
}

// Write uses a single SET, which replaces the value atomically.
func (s *RedisSnapshotStore) Write(ctx context.Context, snapshot *model.CacheSnapshot) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := repository.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot in redis: %w", err)
	}
	return nil
}
