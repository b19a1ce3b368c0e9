// internal/fraud/redis_counter.go
package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// RedisVelocityCounter implements VelocityCounter with INCR and EXPIRE on a
// per-window key, so counts are shared by every ledger instance.
type RedisVelocityCounter struct {
	client    rueidis.Client
	keyPrefix string
}

// NewRedisClient connects to addr and verifies the connection with PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
		SelectDB:    db,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// NewRedisVelocityCounter creates a counter storing keys under keyPrefix.
func NewRedisVelocityCounter(client rueidis.Client, keyPrefix string) *RedisVelocityCounter {
	return &RedisVelocityCounter{client: client, keyPrefix: keyPrefix}
}

func (c *RedisVelocityCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	bucket := time.Now().UnixNano() / int64(window)
	fullKey := fmt.Sprintf("%s%s:%d", c.keyPrefix, key, bucket)

	count, err := c.client.Do(ctx, c.client.B().Incr().Key(fullKey).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", fullKey, err)
	}
	if count == 1 {
		// keep the key for two windows
		seconds := int64((2 * window).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		if err := c.client.Do(ctx, c.client.B().Expire().Key(fullKey).Seconds(seconds).Build()).Error(); err != nil {
			return 0, fmt.Errorf("redis expire %s: %w", fullKey, err)
		}
	}
	return count, nil
}
