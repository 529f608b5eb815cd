// Package logger owns the process zerolog logger and the context fields it picks up
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"seochecker/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger is the project logging type
type Logger = zerolog.Logger

// Options configures the root logger
type Options struct {
	Level   string // trace debug info warn error; unknown means debug
	Format  string // console or json
	Service string
	Caller  bool
	Writer  io.Writer // stdout when nil
}

// FromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_SERVICE and LOG_CALLER
func FromEnv() Options {
	c := raw.New().Prefix("LOG_")
	return Options{
		Level:   c.Get("LEVEL", "debug"),
		Format:  strings.ToLower(c.Get("FORMAT", "console")),
		Service: c.Get("SERVICE", ""),
		Caller:  c.GetBool("CALLER", false),
	}
}

var (
	once sync.Once
	root Logger
)

// Init builds the root logger; only the first call, explicit or via Get, has effect
func Init(o Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		w := o.Writer
		if w == nil {
			w = os.Stdout
		}
		if o.Format == "console" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}
		lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(o.Level)))
		if err != nil || lvl == zerolog.NoLevel {
			lvl = zerolog.DebugLevel
		}

		b := zerolog.New(w).Level(lvl).With().Timestamp()
		if o.Service != "" {
			b = b.Str("service", o.Service)
		}
		if o.Caller {
			b = b.Caller()
		}
		root = b.Logger()
	})
}

// Get returns the root logger, initializing it from the environment on first use
func Get() *Logger {
	Init(FromEnv())
	return &root
}

// Named returns a child of the root tagged with component
func Named(component string) *Logger {
	l := Get().With().Str("component", component).Logger()
	return &l
}

type ctxKey uint8

const (
	requestKey ctxKey = iota
	analysisKey
)

// WithRequest tags ctx with the request id
func WithRequest(ctx context.Context, id string) context.Context {
	return tag(ctx, requestKey, id)
}

// WithAnalysis tags ctx with the analysis id
func WithAnalysis(ctx context.Context, id string) context.Context {
	return tag(ctx, analysisKey, id)
}

// AnalysisID returns the id set by WithAnalysis
func AnalysisID(ctx context.Context) string {
	s, _ := ctx.Value(analysisKey).(string)
	return s
}

func tag(ctx context.Context, k ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

// C returns a child of the root carrying request_id and analysis_id from ctx
func C(ctx context.Context) *Logger {
	b := Get().With()
	if s, _ := ctx.Value(requestKey).(string); s != "" {
		b = b.Str("request_id", s)
	}
	if s := AnalysisID(ctx); s != "" {
		b = b.Str("analysis_id", s)
	}
	l := b.Logger()
	return &l
}
