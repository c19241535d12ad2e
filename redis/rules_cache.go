package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRulesKey = "rulesign:rules"
	DefaultRulesTTL = 5 * time.Minute
)

// RulesCache keeps the last fetched rules document under a single key with
// a TTL. It satisfies rules.Cache.
type RulesCache struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

// NewRulesCache wraps rdb. Empty key and non-positive ttl fall back to the
// defaults.
func NewRulesCache(rdb redis.Cmdable, key string, ttl time.Duration) *RulesCache {
	if key == "" {
		key = DefaultRulesKey
	}
	if ttl <= 0 {
		ttl = DefaultRulesTTL
	}
	return &RulesCache{rdb: rdb, key: key, ttl: ttl}
}

func (c *RulesCache) Get(ctx context.Context) ([]byte, error) {
	data, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis: get %s", c.key)
	}
	return data, nil
}

func (c *RulesCache) Set(ctx context.Context, data []byte) error {
	if err := c.rdb.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis: set %s", c.key)
	}
	return nil
}
