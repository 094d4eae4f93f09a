package cache

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
)

// Type names a cache backend.
type Type string

const (
	TypeMemory Type = "memory"
	TypeRedis  Type = "redis"
	TypeNATS   Type = "nats"
	TypeNone   Type = "none"
)

var (
	ErrUnsupportedType   = errors.New("cache: unsupported backend type")
	ErrRedisConfigNeeded = errors.New("cache: redis address required")
)

// Config selects and configures a backend.
type Config struct {
	Type     Type        `mapstructure:"type" yaml:"type"`
	Capacity int         `mapstructure:"capacity" yaml:"capacity"`
	Redis    RedisConfig `mapstructure:"redis" yaml:"redis"`
	NATS     NATSConfig  `mapstructure:"nats" yaml:"nats"`
}

// RedisConfig configures a Redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

// NewFromConfig builds the configured backend. The returned closer releases
// any connection the backend opened; it is never nil. A TypeNone (or empty)
// config returns a nil Backend, which disables caching.
func NewFromConfig(ctx context.Context, cfg Config) (Backend, io.Closer, error) {
	switch cfg.Type {
	case "", TypeNone:
		return nil, nopCloser{}, nil

	case TypeMemory:
		return NewLRU(cfg.Capacity), nopCloser{}, nil

	case TypeRedis:
		if cfg.Redis.Addr == "" {
			return nil, nil, ErrRedisConfigNeeded
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c, err := NewRedisCache(client, cfg.Redis.Prefix)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return c, c, nil

	case TypeNATS:
		c, err := NewNATSCache(ctx, cfg.NATS)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
