// Package archive keeps raw provider responses for offline replay and debugging
// Writes are a side effect: callers log failures and move on
package archive

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"seochecker/internal/platform/config"
	"seochecker/internal/platform/logger"
	"seochecker/internal/platform/metrics"
)

const stampLayout = "20060102_150405"

// Archive stores one raw response body under an endpoint name
type Archive interface {
	Save(ctx context.Context, endpoint string, payload []byte) error
}

// Nop discards everything
type Nop struct{}

// Save implements Archive
func (Nop) Save(context.Context, string, []byte) error { return nil }

// seq disambiguates saves landing in the same second
var seq atomic.Uint64

func nextSeq() uint64 { return seq.Add(1) }

// endpointName turns an endpoint path into a flat key segment
func endpointName(endpoint string) string {
	name := strings.Trim(endpoint, "/")
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" {
		return "root"
	}
	return name
}

// Best saves through a and only logs and counts failures
func Best(ctx context.Context, a Archive, backend, endpoint string, payload []byte) {
	if a == nil {
		return
	}
	if err := a.Save(ctx, endpoint, payload); err != nil {
		metrics.ArchiveFailure(backend)
		logger.C(ctx).Warn().Err(err).Str("backend", backend).Str("endpoint", endpoint).Msg("archive write failed")
	}
}

// Config selects and tunes a backend
type Config struct {
	Backend  string
	Dir      string
	TTL      time.Duration
	MaxAge   time.Duration
	MaxBytes int64
}

// ConfigFromEnv reads ARCHIVE_*
func ConfigFromEnv() Config {
	c := config.New().Prefix("ARCHIVE_")
	return Config{
		Backend:  strings.ToLower(c.MayEnum("BACKEND", "file", "file", "redis", "off")),
		Dir:      c.MayString("DIR", "cache"),
		TTL:      c.MayDuration("TTL", 7*24*time.Hour),
		MaxAge:   c.MayDuration("MAX_AGE", 0),
		MaxBytes: int64(c.MayInt("MAX_BYTES", 0)),
	}
}

// New builds the configured backend and returns its metric label
// redis needs a non nil client
func New(cfg Config, name string, rds Setter) (Archive, string, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFile(cfg.Dir, WithRetention(cfg.MaxAge, cfg.MaxBytes)), "file", nil
	case "redis":
		if rds == nil {
			return nil, "", fmt.Errorf("archive: redis backend needs SERVICE_REDIS_URL")
		}
		return NewRedis(rds, name, cfg.TTL), "redis", nil
	case "off", "none":
		return Nop{}, "off", nil
	default:
		return nil, "", fmt.Errorf("archive: unknown backend %q", cfg.Backend)
	}
}
