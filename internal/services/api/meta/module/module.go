// Package module wires meta endpoints into the API using a tiny module
package module

import (
	"time"

	"seochecker/internal/core/rules"
	modkit "seochecker/internal/modkit"
	"seochecker/internal/modkit/httpkit"
	str "seochecker/internal/platform/strings"

	metahttp "seochecker/internal/services/api/meta/http"
)

// Module serves liveness, readiness, build info and the rule catalogue
type Module struct {
	b    modkit.Built
	deps metahttp.Deps
}

// New constructs the meta module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)

	return &Module{b: b, deps: metahttp.Deps{
		StartedAt: time.Now(),
		PG:        deps.PG,
		RDS:       deps.RDS,
		Rules:     rules.Default(),
	}}
}

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	m.b.Mount(r, func(rr httpkit.Router) { metahttp.Register(rr, m.deps) })
}

// Name implements modkit.Module
func (m *Module) Name() string { return str.MustString(m.b.Name, "meta") }

// Ports implements modkit.Module; meta exposes none
func (m *Module) Ports() any { return nil }
