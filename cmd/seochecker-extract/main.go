// Command seochecker-extract runs analyses synchronously from the shell
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seochecker/internal/modkit"
	"seochecker/internal/platform/config"
	"seochecker/internal/platform/logger"
	"seochecker/internal/platform/store"

	"seochecker/internal/services/analysis/domain"
	analysismod "seochecker/internal/services/analysis/module"
	"seochecker/internal/services/analysis/repo"
	"seochecker/internal/services/analysis/service"
)

func main() {
	var (
		fMode  = flag.String("mode", "", "migrate | submit | run | evaluate | sweep")
		fName  = flag.String("name", "", "analysis name (submit)")
		fFile  = flag.String("file", "", "CSV of domain,price,notes (submit)")
		fID    = flag.String("id", "", "analysis id (run, evaluate)")
		fStale = flag.Duration("stale", 6*time.Hour, "fail non-terminal analyses idle this long (sweep)")
	)
	flag.Parse()

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	rdsURL := root.Prefix("SERVICE_REDIS_").MayString("URL", "")
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		AppName: "seochecker-extract",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 8)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
			TxAttempts:  pgCfg.MayInt("TX_ATTEMPTS", 3),
		},
		RDS: store.RedisConfig{Enabled: rdsURL != "", URL: rdsURL},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if *fMode == "migrate" {
		if err := repo.Migrate(ctx, st.PG); err != nil {
			l.Panic().Err(err).Msg("migrate failed")
		}
		l.Info().Msg("migrations applied")
		return
	}

	deps := modkit.Deps{Cfg: root, PG: st.PG, RDS: st.RDS, Log: *l}
	svc, err := analysismod.NewService(deps, analysismod.FromConfig(root), service.Inline{})
	if err != nil {
		l.Panic().Err(err).Msg("analysis wiring failed")
	}

	var out any
	switch *fMode {
	case "submit":
		if *fName == "" || *fFile == "" {
			l.Fatal().Msg("submit needs -name and -file")
		}
		f, err := os.Open(*fFile)
		if err != nil {
			l.Fatal().Err(err).Msg("open domains file")
		}
		domains, err := readDomains(f)
		_ = f.Close()
		if err != nil {
			l.Fatal().Err(err).Str("file", *fFile).Msg("read domains file")
		}
		v, err := svc.Submit(ctx, domain.SubmitInput{Name: *fName, Domains: domains})
		if err != nil {
			l.Fatal().Err(err).Msg("submit failed")
		}
		// Inline runner: the analysis is terminal by now
		if out, err = svc.Status(ctx, v.ID); err != nil {
			l.Fatal().Err(err).Msg("status")
		}

	case "run":
		mustID(l, *fID)
		if err := svc.Run(ctx, *fID); err != nil {
			l.Fatal().Err(err).Str("id", *fID).Msg("run failed")
		}
		if out, err = svc.Status(ctx, *fID); err != nil {
			l.Fatal().Err(err).Msg("status")
		}

	case "evaluate":
		mustID(l, *fID)
		if out, err = svc.Evaluate(ctx, *fID); err != nil {
			l.Fatal().Err(err).Str("id", *fID).Msg("evaluate failed")
		}

	case "sweep":
		if out, err = svc.Sweep(ctx, *fStale); err != nil {
			l.Fatal().Err(err).Msg("sweep failed")
		}

	default:
		flag.Usage()
		l.Fatal().Str("mode", *fMode).Msg("unknown -mode")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		l.Error().Err(err).Msg("write output")
	}
}

func mustID(l *logger.Logger, id string) {
	if id == "" {
		l.Fatal().Msg("-id is required")
	}
}
