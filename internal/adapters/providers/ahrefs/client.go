// Package ahrefs is a typed client for the Ahrefs v3 API endpoints the
// extraction pipeline consumes
package ahrefs

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"seochecker/internal/adapters/providers/archive"
	"seochecker/internal/adapters/providers/rest"
	"seochecker/internal/platform/config"
	"seochecker/internal/platform/logger"
)

const (
	baseURLDefault   = "https://api.ahrefs.com/v3"
	defaultChunkSize = 10
	historyFromDef   = "2022-01-01"
)

// Endpoints
const (
	EndpointBatchAnalysis   = "/batch-analysis/batch-analysis"
	EndpointMetricsHistory  = "/site-explorer/metrics-history"
	EndpointTopPages        = "/site-explorer/top-pages"
	EndpointBacklinks       = "/site-explorer/all-backlinks"
	EndpointOutgoingAnchors = "/site-explorer/linked-anchors-external"
	EndpointOrganicKeywords = "/site-explorer/organic-keywords"
)

// ProviderError is the non retried upstream failure
type ProviderError = rest.ProviderError

// Options configures the Client
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	RPS   float64
	Burst int

	MaxAttempts int
	RetryBase   time.Duration
	RetryCap    time.Duration

	// ChunkSize bounds targets per batch analysis call
	ChunkSize int
	// HistoryFrom is the first date of the metrics history, YYYY-MM-DD
	HistoryFrom string
}

// OptionsFromEnv reads AHREFS_*
func OptionsFromEnv() Options {
	c := config.New().Prefix("AHREFS_")
	return Options{
		BaseURL:     c.MayString("BASE_URL", baseURLDefault),
		Token:       c.MayString("API_TOKEN", ""),
		Timeout:     c.MayDuration("TIMEOUT", 90*time.Second),
		RPS:         c.MayFloat64("RPS", 5),
		Burst:       c.MayInt("BURST", 5),
		MaxAttempts: c.MayInt("MAX_ATTEMPTS", 3),
		RetryBase:   c.MayDuration("RETRY_BASE", time.Second),
		RetryCap:    c.MayDuration("RETRY_CAP", 10*time.Second),
		ChunkSize:   c.MayInt("CHUNK_SIZE", defaultChunkSize),
		HistoryFrom: c.MayString("HISTORY_FROM", historyFromDef),
	}
}

// Caller is the transport seam; rest.Client satisfies it
type Caller interface {
	Call(ctx context.Context, method, endpoint string, params any) (json.RawMessage, error)
}

// Client wraps the transport with typed endpoints
type Client struct {
	rc   Caller
	opts Options
	log  *logger.Logger
}

// NewClient creates a Client; arch may be nil to disable archiving
func NewClient(o Options, arch archive.Archive, archLabel string) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	hdr := http.Header{}
	if o.Token != "" {
		hdr.Set("Authorization", "Bearer "+o.Token)
	}
	rc := rest.New(rest.Options{
		Provider:     "ahrefs",
		BaseURL:      o.BaseURL,
		Timeout:      o.Timeout,
		Header:       hdr,
		RPS:          o.RPS,
		Burst:        o.Burst,
		MaxAttempts:  o.MaxAttempts,
		RetryBase:    o.RetryBase,
		RetryCap:     o.RetryCap,
		Archive:      arch,
		ArchiveLabel: archLabel,
	})
	return NewWithCaller(rc, o)
}

// NewWithCaller builds a Client over any transport
func NewWithCaller(rc Caller, o Options) *Client {
	if o.ChunkSize <= 0 {
		o.ChunkSize = defaultChunkSize
	}
	if o.HistoryFrom == "" {
		o.HistoryFrom = historyFromDef
	}
	return &Client{rc: rc, opts: o, log: logger.Named("ahrefs")}
}

// HistoryFrom is the configured first history date
func (c *Client) HistoryFrom() string { return c.opts.HistoryFrom }

// Call exposes the raw transport
func (c *Client) Call(ctx context.Context, method, endpoint string, params any) (json.RawMessage, error) {
	return c.rc.Call(ctx, method, endpoint, params)
}
