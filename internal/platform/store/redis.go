package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

func openRedis(ctx context.Context, cfg Config, log logger.Logger) (*redisKV, error) {
	opts := &redis.Options{Addr: cfg.RDS.Addr, Password: cfg.RDS.Password, DB: cfg.RDS.DB}
	if cfg.RDS.URL != "" {
		o, err := redis.ParseURL(cfg.RDS.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		opts = o
	}
	opts.ClientName = cfg.AppName

	c := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("redis connected")
	return &redisKV{c: c}, nil
}

// redisKV narrows a go-redis client to the Redis seam
type redisKV struct{ c redis.UniversalClient }

func (r *redisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

// Get returns perr.ErrNotFound for a missing key
func (r *redisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, perr.ErrNotFound
	}
	return b, err
}

func (r *redisKV) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }
func (r *redisKV) Close() error                   { return r.c.Close() }
