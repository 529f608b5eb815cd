package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	sleep   = time.Sleep
	newPool = pgxpool.NewWithConfig
)

// postgres is the pgxpool backed TxRunner
type postgres struct {
	pool     *pgxpool.Pool
	attempts int
}

func openPG(ctx context.Context, cfg Config, log logger.Logger) (*postgres, error) {
	pc, err := pgxpool.ParseConfig(cfg.PG.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres url: %w", err)
	}
	if cfg.PG.MaxConns > 0 {
		pc.MaxConns = cfg.PG.MaxConns
	}
	if cfg.AppName != "" {
		pc.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	}
	if cfg.PG.LogSQL || cfg.PG.SlowQueryMs > 0 {
		pc.ConnConfig.Tracer = &queryLog{
			log:  log.With().Str("component", "pg").Logger(),
			all:  cfg.PG.LogSQL,
			slow: time.Duration(cfg.PG.SlowQueryMs) * time.Millisecond,
		}
	}

	pool, err := newPool(ctx, pc)
	if err != nil {
		return nil, err
	}

	retries := cfg.PG.ConnectRetries
	if retries <= 0 {
		retries = 20
	}
	timeout := cfg.PG.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	backoff := 150 * time.Millisecond
	var last error
	for range retries {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		last = pool.Ping(pctx)
		cancel()
		if last == nil {
			attempts := cfg.PG.TxAttempts
			if attempts <= 0 {
				attempts = 3
			}
			return &postgres{pool: pool, attempts: attempts}, nil
		}
		if ctx.Err() != nil {
			pool.Close()
			return nil, ctx.Err()
		}
		sleep(backoff)
		backoff = min(backoff*2, 2*time.Second)
	}
	pool.Close()
	return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", retries, last)
}

func (p *postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }
func (p *postgres) Close()                         { p.pool.Close() }

func (p *postgres) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

func (p *postgres) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

func (p *postgres) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// Tx reruns fn on deadlock or serialization failure up to p.attempts times
func (p *postgres) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	var err error
	for i := range p.attempts {
		err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error { return fn(txQuerier{tx}) })
		if !perr.IsRetryable(err) {
			return err
		}
		logger.C(ctx).Warn().Err(err).Int("attempt", i+1).Msg("pg: retrying transaction")
	}
	return err
}

type txQuerier struct{ tx pgx.Tx }

func (t txQuerier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t txQuerier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t txQuerier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

// queryLog is a pgx.QueryTracer writing statements to zerolog
type queryLog struct {
	log  logger.Logger
	all  bool
	slow time.Duration
}

type queryStart struct{}

type startedQuery struct {
	sql  string
	args []any
	at   time.Time
}

func (q *queryLog) TraceQueryStart(ctx context.Context, _ *pgx.Conn, d pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStart{}, startedQuery{sql: d.SQL, args: d.Args, at: time.Now()})
}

func (q *queryLog) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, d pgx.TraceQueryEndData) {
	st, ok := ctx.Value(queryStart{}).(startedQuery)
	if !ok {
		return
	}
	took := time.Since(st.at)
	slow := q.slow > 0 && took >= q.slow
	if !q.all && !slow {
		return
	}
	evt := q.log.Info()
	if slow {
		evt = q.log.Warn()
	}
	evt.Dur("elapsed", took).
		Bool("slow", slow).
		Str("sql", strings.Join(strings.Fields(st.sql), " ")).
		Interface("args", st.args).
		Int64("rows", d.CommandTag.RowsAffected()).
		Err(d.Err).
		Msg("pg query")
}
