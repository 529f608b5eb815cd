// @title         seochecker API
// @version       0.1.0
// @description   Submit domain batches and read their scored SEO results

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seochecker/internal/modkit/repokit"
	"seochecker/internal/platform/config"
	"seochecker/internal/platform/logger"
	phttp "seochecker/internal/platform/net/http"
	"seochecker/internal/platform/store"

	"seochecker/internal/services/analysis/repo"
	"seochecker/internal/services/api"

	analysismod "seochecker/internal/services/analysis/module"
)

func main() {
	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	pgCfg := root.Prefix("SERVICE_PGSQL_")  // pgCfg lives under SERVICE_PGSQL_*
	rdsCfg := root.Prefix("SERVICE_REDIS_") // optional archive backend
	opts := analysismod.FromConfig(root)    // ANALYSIS_*
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdsURL := rdsCfg.MayString("URL", "")
	st, err := store.Open(
		ctx,
		store.Config{
			AppName: "seochecker-api",
			PG: store.PGConfig{
				Enabled:     true,
				URL:         pgCfg.MustString("DBURL"),
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 8)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", false),
				TxAttempts:  pgCfg.MayInt("TX_ATTEMPTS", 3),
			},
			RDS: store.RedisConfig{
				Enabled: rdsURL != "",
				URL:     rdsURL,
			},
		},
		store.WithLogger(*l),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	repokit.MustGuard(ctx, st, 5*time.Second)

	if pgCfg.MayBool("AUTO_MIGRATE", true) {
		if err := repo.Migrate(ctx, st.PG); err != nil {
			l.Panic().Err(err).Msg("migrate failed")
		}
	}

	// http server (reads CORE_API_API_PORT)
	srv := phttp.NewServer(apiCfg)

	ports := api.Mount(
		srv.Router(),
		api.Options{
			Config:         root,
			Store:          st,
			Logger:         l,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", false),
			EnableMetrics:  apiCfg.MayBool("METRICS", true),
		},
	)

	// nothing is running yet, so every non-terminal row older than the window is orphaned
	if opts.StaleAfter > 0 {
		if ids, err := ports.Service.Sweep(ctx, opts.StaleAfter); err != nil {
			l.Error().Err(err).Msg("boot sweep failed")
		} else if len(ids) > 0 {
			l.Warn().Strs("ids", ids).Msg("boot sweep failed stale analyses")
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()

	select {
	case err := <-errc:
		if err != nil {
			l.Error().Err(err).Msg("http server stopped")
		}
	case <-ctx.Done():
		l.Info().Msg("shutting down")
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		l.Error().Err(err).Msg("http shutdown")
	}

	drainCtx := context.Background()
	if opts.DrainTimeout > 0 {
		var dcancel context.CancelFunc
		drainCtx, dcancel = context.WithTimeout(drainCtx, opts.DrainTimeout)
		defer dcancel()
	}
	if err := ports.Runner.Shutdown(drainCtx); err != nil {
		l.Warn().Err(err).Msg("runner drain incomplete")
	}
}
