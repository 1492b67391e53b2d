package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/scoring"
)

// ErrMiss is returned when no snapshot is cached for a match.
var ErrMiss = errors.New("snapshot not cached")

// DefaultSnapshotTTL bounds how long a last-good snapshot is served.
const DefaultSnapshotTTL = 10 * time.Minute

// RedisCache handles caching and fast state storage
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisCacheFromClient(client, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[cache] ", log.LstdFlags),
	}
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// SnapshotKey is where the last applied snapshot of a match lives.
func SnapshotKey(sport matchscore.Sport, matchID string) string {
	return fmt.Sprintf("scoredesk:snapshot:%s:%s", sport, matchID)
}

// StoreSnapshot caches snap under its match key, refreshing the TTL.
func (rc *RedisCache) StoreSnapshot(ctx context.Context, snap scoring.Snapshot) error {
	if snap.Match == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := SnapshotKey(snap.Match.Sport, snap.Match.ID)
	if err := rc.client.Set(ctx, key, data, rc.ttl).Err(); err != nil {
		return fmt.Errorf("cache snapshot %s: %w", snap.Match.ID, err)
	}
	return nil
}

// LoadSnapshot returns the cached snapshot, or ErrMiss.
func (rc *RedisCache) LoadSnapshot(ctx context.Context, sport matchscore.Sport, matchID string) (*scoring.Snapshot, error) {
	data, err := rc.client.Get(ctx, SnapshotKey(sport, matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", matchID, err)
	}

	var snap scoring.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode cached snapshot %s: %w", matchID, err)
	}
	return &snap, nil
}

// DeleteSnapshot drops the cached snapshot of a match.
func (rc *RedisCache) DeleteSnapshot(ctx context.Context, sport matchscore.Sport, matchID string) error {
	return rc.client.Del(ctx, SnapshotKey(sport, matchID)).Err()
}

// SnapshotHook returns a listener that caches every applied snapshot.
func (rc *RedisCache) SnapshotHook() func(scoring.Snapshot) {
	return func(snap scoring.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.StoreSnapshot(ctx, snap); err != nil {
			rc.logger.Printf("⚠️  %v", err)
		}
	}
}
