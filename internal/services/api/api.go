// Package api provides the HTTP API for the application
package api

import (
	"seochecker/internal/platform/config"
	"seochecker/internal/platform/logger"
	"seochecker/internal/platform/metrics"
	phttp "seochecker/internal/platform/net/http"
	"seochecker/internal/platform/store"

	"seochecker/internal/modkit"
	"seochecker/internal/modkit/httpkit"
	"seochecker/internal/modkit/module"
	"seochecker/internal/modkit/swaggerkit"

	analysismod "seochecker/internal/services/analysis/module"
	metamod "seochecker/internal/services/api/meta/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
	EnableMetrics  bool

	// Analysis overrides the analysis ports; zero value builds the real stack
	Analysis analysismod.Ports
}

// Mount builds the meta and analysis modules, mounts them under /api/v1 and
// returns the analysis ports so main can drain the runner on shutdown
func Mount(r phttp.Router, opt Options) analysismod.Ports {
	log := logger.Get()
	if opt.Logger != nil {
		log = opt.Logger
	}
	deps := modkit.Deps{Log: *log, Cfg: opt.Config}
	if opt.Store != nil {
		deps.PG, deps.RDS = opt.Store.PG, opt.Store.RDS
	}

	var injected []modkit.Option
	if opt.Analysis.Service != nil || opt.Analysis.Runner != nil {
		injected = append(injected, modkit.WithPorts(opt.Analysis))
	}
	analysis := analysismod.New(deps, injected...)
	mods := []module.Module{metamod.New(deps), analysis}

	if opt.EnableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}
	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	prefix := httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		for _, m := range mods {
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})
	log.Info().Str("prefix", prefix).Int("modules", len(mods)).Bool("swagger", opt.EnableSwagger).Msg("api: mounted")
	return module.MustPortsOf[analysismod.Ports](analysis)
}
