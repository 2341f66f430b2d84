package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix is the list key prefix batches are pushed under.
const DefaultRedisKeyPrefix = "courier:batches"

// DefaultRedisTimeout is the default per-push timeout.
const DefaultRedisTimeout = 5 * time.Second

// RedisConfig configures the Redis batch transport.
type RedisConfig struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// KeyPrefix is the list key prefix; batches for a feature land on
	// "<prefix>:<feature>" (default: courier:batches).
	KeyPrefix string
	// Timeout is the per-push timeout (default 5s).
	Timeout time.Duration
}

// RedisTransport delivers batches with RPUSH onto a per-feature Redis list,
// for deployments where a local agent drains the list toward the collector.
type RedisTransport struct {
	config RedisConfig
	client *goredis.Client
}

// NewRedisTransport creates the Redis transport from the given config.
// Returns an error if the URL is empty or invalid.
func NewRedisTransport(cfg RedisConfig) (*RedisTransport, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis transport requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis transport: invalid URL: %w", err)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRedisTimeout
	}
	return &RedisTransport{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Send implements Transport. Push failures return an error, which the
// worker treats as retryable.
func (t *RedisTransport) Send(ctx context.Context, p Payload) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	key := fmt.Sprintf("%s:%s", t.config.KeyPrefix, p.Feature)
	if err := t.client.RPush(ctx, key, p.Body).Err(); err != nil {
		return 0, fmt.Errorf("rpush %s: %w", key, err)
	}
	return http.StatusOK, nil
}

// Close releases the underlying Redis connection.
func (t *RedisTransport) Close() error {
	return t.client.Close()
}

// Verify RedisTransport implements Transport.
var _ Transport = (*RedisTransport)(nil)
