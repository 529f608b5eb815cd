// Package module wires the analysis service into the API using modkit
package module

import (
	"fmt"

	"seochecker/internal/adapters/providers/ahrefs"
	"seochecker/internal/adapters/providers/archive"
	"seochecker/internal/adapters/providers/similarweb"
	"seochecker/internal/core/langresolve"
	"seochecker/internal/core/rules"
	"seochecker/internal/core/wordlist"
	modkit "seochecker/internal/modkit"
	"seochecker/internal/modkit/httpkit"
	"seochecker/internal/platform/logger"
	str "seochecker/internal/platform/strings"

	"seochecker/internal/services/analysis/domain"
	"seochecker/internal/services/analysis/extract"
	ahttp "seochecker/internal/services/analysis/http"
	"seochecker/internal/services/analysis/repo"
	"seochecker/internal/services/analysis/service"
)

// Ports are the analysis module ports; both may be injected for tests
type Ports struct {
	Service service.Service
	Runner  domain.RunnerPort
}

// Module implements the analysis API module
type Module struct {
	b     modkit.Built
	ports Ports
}

// NewService builds the full analysis stack: providers, archive,
// language resolver, extractor and service. runner nil means Inline.
func NewService(deps modkit.Deps, o Options, runner domain.RunnerPort) (*service.Svc, error) {
	if deps.PG == nil {
		return nil, fmt.Errorf("analysis: postgres is required")
	}
	log := logger.Named("analysis")

	arch, label, err := archive.New(archive.ConfigFromEnv(), "ahrefs", deps.RDS)
	if err != nil {
		return nil, err
	}
	api := ahrefs.NewClient(ahrefs.OptionsFromEnv(), arch, label)

	var cats domain.CategoryPort
	if swo := similarweb.OptionsFromEnv(); swo.Enabled {
		swArch, swLabel, err := archive.New(archive.ConfigFromEnv(), "similarweb", deps.RDS)
		if err != nil {
			return nil, err
		}
		cats = similarweb.NewClient(swo, swArch, swLabel)
	}

	pack, err := wordlist.Load()
	if err != nil {
		return nil, err
	}
	langs := langresolve.New(nil, pack, langresolve.Options{
		Workers:     o.LangWorkers,
		Timeout:     o.HomepageTimeout,
		DefaultLang: o.DefaultLang,
	})

	binder := repo.NewPG()
	x := extract.New(extract.Deps{
		DB:         deps.PG,
		Binder:     binder,
		API:        api,
		Langs:      langs,
		Categories: cats,
		Words:      pack,
	}, extract.Options{Workers: o.Workers, ProgressEvery: o.ProgressEvery})

	log.Info().
		Str("archive", label).
		Bool("categories", cats != nil).
		Int("workers", o.Workers).
		Msg("analysis: service wired")

	return service.New(deps.PG, binder, service.Options{
		Extractor:   x,
		Engine:      rules.NewEngine(),
		Runner:      runner,
		EvalWorkers: o.EvalWorkers,
		ListLimit:   o.ListLimit,
	}), nil
}

// New constructs the analysis module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("analysis"),
		modkit.WithPrefix("/analyses"),
	}, opts...)...)

	var ports Ports
	if p, ok := b.Ports.(Ports); ok {
		ports = p
	}
	if ports.Runner == nil {
		ports.Runner = service.NewRunner()
	}
	if ports.Service == nil {
		svc, err := NewService(deps, FromConfig(deps.Cfg), ports.Runner)
		if err != nil {
			panic(fmt.Sprintf("analysis module: %v", err))
		}
		ports.Service = svc
	}

	return &Module{b: b, ports: ports}
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(rr httpkit.Router) { ahttp.Register(rr, m.ports.Service) })
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.b.Name, "analysis") }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
