// Package http serves the meta endpoints: liveness, readiness and the rule catalogue
package http

import (
	"context"
	"net/http"
	"time"

	"seochecker/internal/core/rules"
	"seochecker/internal/core/version"
	"seochecker/internal/modkit/httpkit"
)

// Deps are what the meta handlers report on; nil backends are skipped
type Deps struct {
	StartedAt time.Time
	PG        any
	RDS       any
	Rules     []rules.Rule
}

// Register mounts /health, /ready and /rules
func Register(r httpkit.Router, d Deps) {
	httpkit.Get(r, "/health", d.health)
	httpkit.Get(r, "/ready", d.ready)
	httpkit.Get(r, "/rules", d.rules)
}

// Health is the liveness payload
type Health struct {
	OK      bool              `json:"ok"`
	Build   version.BuildInfo `json:"build"`
	Started time.Time         `json:"started"`
	Uptime  int64             `json:"uptime_seconds"`
}

// Check is one backend probe; Status is ok, fail or skipped
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Ready is the readiness payload; Status is ok, degraded or fail
type Ready struct {
	Status string  `json:"status"`
	Checks []Check `json:"checks"`
}

// RuleInfo describes one rule of the catalogue
type RuleInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Area        string  `json:"area"`
	Weight      float64 `json:"weight"`
	DealBreaker bool    `json:"deal_breaker"`
}

// @Summary Liveness and build info
// @Tags meta
// @Success 200 {object} Health
// @Router /meta/health [get]
func (d Deps) health(*http.Request) (any, error) {
	return Health{
		OK:      true,
		Build:   version.Info(),
		Started: d.StartedAt.UTC(),
		Uptime:  int64(time.Since(d.StartedAt) / time.Second),
	}, nil
}

// @Summary Readiness of postgres and redis
// @Tags meta
// @Success 200 {object} Ready
// @Failure 503 {object} Ready
// @Router /meta/ready [get]
func (d Deps) ready(r *http.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	pg, rds := probe(ctx, "pg", d.PG), probe(ctx, "redis", d.RDS)
	out := Ready{Status: "ok", Checks: []Check{pg, rds}}
	switch {
	case pg.Status == "fail":
		out.Status = "fail"
		return httpkit.Response{Status: http.StatusServiceUnavailable, Body: out}, nil
	case pg.Status != "ok", rds.Status == "fail":
		// redis only backs the response archive
		out.Status = "degraded"
	}
	return out, nil
}

func probe(ctx context.Context, name string, backend any) Check {
	p, ok := backend.(interface{ Ping(context.Context) error })
	if !ok {
		return Check{Name: name, Status: "skipped"}
	}
	if err := p.Ping(ctx); err != nil {
		return Check{Name: name, Status: "fail", Error: err.Error()}
	}
	return Check{Name: name, Status: "ok"}
}

// @Summary Rules applied to every domain
// @Tags meta
// @Success 200 {array} RuleInfo
// @Router /meta/rules [get]
func (d Deps) rules(*http.Request) (any, error) {
	out := make([]RuleInfo, 0, len(d.Rules))
	for _, rl := range d.Rules {
		out = append(out, RuleInfo{
			ID:          rl.ID(),
			Title:       rl.Title(),
			Area:        string(rl.Area()),
			Weight:      rl.Weight(),
			DealBreaker: rl.DealBreaker(),
		})
	}
	return out, nil
}
