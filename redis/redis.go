// Package redis backs the optional shared rules cache.
package redis

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultHost        = "localhost"
	DefaultPort        = "6379"
	DefaultDialTimeout = 2 * time.Second
	DefaultIOTimeout   = time.Second
)

// Config locates the cache server. Zero fields take the defaults above.
type Config struct {
	Host         string        `mapstructure:"host" structs:"host"`
	Port         string        `mapstructure:"port" structs:"port"`
	Username     string        `mapstructure:"username" structs:"username"`
	Password     string        `mapstructure:"password" structs:"password"`
	DB           int           `mapstructure:"db" structs:"db"`
	TLS          bool          `mapstructure:"tls" structs:"tls"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" structs:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" structs:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" structs:"write_timeout"`
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultIOTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultIOTimeout
	}
	return c
}

// Addr is host:port after defaults.
func (c Config) Addr() string {
	d := c.withDefaults()
	return net.JoinHostPort(d.Host, d.Port)
}

func (c Config) options() *redis.Options {
	d := c.withDefaults()
	opts := &redis.Options{
		Addr:         d.Addr(),
		Username:     d.Username,
		Password:     d.Password,
		DB:           d.DB,
		DialTimeout:  d.DialTimeout,
		ReadTimeout:  d.ReadTimeout,
		WriteTimeout: d.WriteTimeout,
		// One cache read and one write per command run.
		PoolSize: 2,
	}
	if d.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewClient connects to the cache and pings it. The ping is bounded by the
// dial timeout so an unreachable cache fails fast; callers treat that as
// running without a cache.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts := cfg.options()
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "redis: ping %s", opts.Addr)
	}
	return rdb, nil
}
