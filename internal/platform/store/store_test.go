package store

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	kit "seochecker/internal/platform/testkit"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// 127.0.0.1:1 refuses connections everywhere, so pings fail fast
const deadPG = "postgres://u:p@127.0.0.1:1/db?sslmode=disable"

type fakeRedis struct {
	pingErr, closeErr error
	closed            int
}

func (f *fakeRedis) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (f *fakeRedis) Get(context.Context, string) ([]byte, error)              { return nil, nil }
func (f *fakeRedis) Ping(context.Context) error                               { return f.pingErr }
func (f *fakeRedis) Close() error {
	f.closed++
	return f.closeErr
}

func TestOpen_NothingEnabled(t *testing.T) {
	t.Parallel()
	s, err := Open(context.Background(), Config{}, WithLogger(zerolog.Nop()))
	if err != nil || s == nil {
		t.Fatalf("Open = %v, %v", s, err)
	}
	if s.PG != nil || s.RDS != nil {
		t.Fatalf("unexpected backends PG=%T RDS=%T", s.PG, s.RDS)
	}
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("Guard on empty store: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close on empty store: %v", err)
	}
}

func TestOpen_BadURLs(t *testing.T) {
	t.Parallel()
	cases := map[string]Config{
		"pg":                {PG: PGConfig{Enabled: true, URL: "://bad"}},
		"redis":             {RDS: RedisConfig{Enabled: true, URL: "notredis://x"}},
		"redis unreachable": {RDS: RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if s, err := Open(context.Background(), cfg); err == nil || s != nil {
				t.Fatalf("Open = %v, %v; want error", s, err)
			}
		})
	}
}

func TestOpenPG_CanceledContext(t *testing.T) {
	kit.Serial(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	p, err := openPG(ctx, Config{PG: PGConfig{URL: deadPG}}, zerolog.Nop())
	if err == nil || p != nil {
		t.Fatalf("openPG = %v, %v; want error", p, err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("canceled context did not short circuit the ping loop")
	}
}

func TestOpenPG_BacksOffThenGivesUp(t *testing.T) {
	kit.Serial(t)
	var slept []time.Duration
	kit.Swap(t, &sleep, func(d time.Duration) { slept = append(slept, d) })

	_, err := openPG(context.Background(), Config{PG: PGConfig{
		URL:            deadPG,
		ConnectRetries: 5,
		PingTimeout:    200 * time.Millisecond,
	}}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected failure")
	}
	kit.MustContain(t, err.Error(), "after 5 attempts")

	want := []time.Duration{150, 300, 600, 1200, 2000}
	if len(slept) != len(want) {
		t.Fatalf("slept %v", slept)
	}
	for i, d := range want {
		if slept[i] != d*time.Millisecond {
			t.Fatalf("sleep %d = %v, want %v", i, slept[i], d*time.Millisecond)
		}
	}
}

func TestGuardAndClose_JoinRedisErrors(t *testing.T) {
	t.Parallel()
	r := &fakeRedis{pingErr: errors.New("down"), closeErr: errors.New("boom")}
	s := &Store{RDS: r}

	err := s.Guard(context.Background())
	if err == nil {
		t.Fatal("Guard swallowed the ping error")
	}
	kit.MustContain(t, err.Error(), "redis: down")

	if err := s.Close(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("Close = %v", err)
	}
	if r.closed != 1 {
		t.Fatalf("redis closed %d times", r.closed)
	}
}

func TestQueryLog(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		all       bool
		slow      time.Duration
		wait      time.Duration
		wantLevel string
	}{
		{name: "quiet", slow: time.Hour},
		{name: "all", all: true, wantLevel: `"level":"info"`},
		{name: "slow only", slow: time.Millisecond, wait: 5 * time.Millisecond, wantLevel: `"level":"warn"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			q := &queryLog{log: zerolog.New(&buf), all: tc.all, slow: tc.slow}

			ctx := q.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{
				SQL:  "SELECT  id\n\tFROM analyses WHERE id = $1",
				Args: []any{"a1"},
			})
			time.Sleep(tc.wait)
			q.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})

			if tc.wantLevel == "" {
				if buf.Len() != 0 {
					t.Fatalf("unexpected log: %s", buf.String())
				}
				return
			}
			out := buf.String()
			kit.MustContain(t, out, tc.wantLevel)
			kit.MustContain(t, out, `"sql":"SELECT id FROM analyses WHERE id = $1"`)
			kit.MustContain(t, out, `"rows":1`)
		})
	}
}
