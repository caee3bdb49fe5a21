package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vinialveslopesanjos/sentimenta/internal/logger"
)

const (
	summaryKeyPrefix = "cache:dashboard_summary"
	trendsKeyPrefix  = "cache:dashboard_trends"

	// DefaultTTL bounds staleness of memoized dashboard reads between runs.
	DefaultTTL = 10 * time.Minute
)

// DashboardCache memoizes expensive dashboard aggregations in Redis and drops
// them whenever a pipeline run lands new data for a user.
type DashboardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// New creates a dashboard cache on an existing Redis client.
// Parameters:
//   - client: connected Redis client.
//   - ttl: cache entry lifetime, <=0 uses DefaultTTL.
//   - log: base logger.
//
// Returns:
//   - *DashboardCache: initialized cache.
func New(client *redis.Client, ttl time.Duration, log *logger.Logger) *DashboardCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DashboardCache{client: client, ttl: ttl, logger: log}
}

// Connect dials Redis and verifies the connection.
// Parameters:
//   - ctx: context for the ping.
//   - addr: host:port of the Redis server.
//   - password: server password, empty for none.
//   - db: database number.
//
// Returns:
//   - *redis.Client: connected client.
//   - error: non-nil if the server is unreachable.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// SummaryKey builds the cache key for a user's dashboard summary.
func SummaryKey(userID string) string {
	return fmt.Sprintf("%s:%s", summaryKeyPrefix, userID)
}

// Get retrieves a cached payload.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - key: cache key.
//
// Returns:
//   - string: cached payload, empty on miss.
//   - bool: true on a cache hit.
//   - error: non-nil on Redis failure, never on a plain miss.
func (c *DashboardCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores a payload under the configured TTL.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - key: cache key.
//   - payload: serialized value to store.
//
// Returns:
//   - error: non-nil on Redis failure.
func (c *DashboardCache) Set(ctx context.Context, key, payload string) error {
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// InvalidateDashboard removes every memoized dashboard entry for a user. The
// scan covers summary and trend keys so any derived view rebuilds on next
// read.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owner whose entries are dropped.
//
// Returns:
//   - error: non-nil on Redis failure.
func (c *DashboardCache) InvalidateDashboard(ctx context.Context, userID string) error {
	patterns := []string{
		fmt.Sprintf("%s:%s*", summaryKeyPrefix, userID),
		fmt.Sprintf("%s:%s*", trendsKeyPrefix, userID),
	}

	deleted := 0
	for _, pattern := range patterns {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to drop cache key %s: %w", iter.Val(), err)
			}
			deleted++
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
	}

	if deleted > 0 {
		c.logger.WithFields(logger.Fields{
			logger.FieldUserID: userID,
			logger.FieldCount:  deleted,
		}).Debug("Dashboard cache invalidated")
	}
	return nil
}
