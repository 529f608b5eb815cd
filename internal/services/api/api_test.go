package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"seochecker/internal/platform/config"
	perr "seochecker/internal/platform/errors"
	phttp "seochecker/internal/platform/net/http"
	kit "seochecker/internal/platform/testkit"

	"seochecker/internal/services/analysis/domain"
	analysismod "seochecker/internal/services/analysis/module"
	"seochecker/internal/services/analysis/service"

	"github.com/go-chi/chi/v5"
)

type stubSvc struct{}

func (stubSvc) Submit(context.Context, domain.SubmitInput) (domain.StatusView, error) {
	return domain.StatusView{}, perr.Unavailablef("stub")
}
func (stubSvc) Status(_ context.Context, id string) (domain.StatusView, error) {
	return domain.StatusView{}, perr.NotFoundf("analysis %s not found", id)
}
func (stubSvc) Results(_ context.Context, id string) ([]domain.DomainResult, error) {
	return nil, perr.NotFoundf("analysis %s not found", id)
}
func (stubSvc) List(context.Context) ([]domain.StatusView, error) { return []domain.StatusView{}, nil }
func (stubSvc) Run(context.Context, string) error                 { return nil }
func (stubSvc) Evaluate(_ context.Context, id string) ([]domain.DomainResult, error) {
	return nil, perr.NotFoundf("analysis %s not found", id)
}
func (stubSvc) Sweep(context.Context, time.Duration) ([]string, error) { return nil, nil }

func mount(t *testing.T, metrics bool) (http.Handler, analysismod.Ports) {
	t.Helper()
	r := phttp.AdaptChi(chi.NewMux())
	ports := Mount(r, Options{
		Config:        config.New().Prefix("CORE_API_"),
		EnableMetrics: metrics,
		Analysis:      analysismod.Ports{Service: stubSvc{}, Runner: service.Inline{}},
	})
	return r.Mux(), ports
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestMount_RoutesAndPorts(t *testing.T) {
	kit.Serial(t)
	h, ports := mount(t, true)

	if _, ok := ports.Service.(stubSvc); !ok {
		t.Fatalf("injected service not returned: %T", ports.Service)
	}
	if _, ok := ports.Runner.(service.Inline); !ok {
		t.Fatalf("injected runner not returned: %T", ports.Runner)
	}

	if rr := get(h, "/api/v1/analyses/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("GET analysis code = %d", rr.Code)
	}
	if rr := get(h, "/api/v1/analyses"); rr.Code != http.StatusOK {
		t.Fatalf("GET analyses code = %d", rr.Code)
	}
	rr := get(h, "/api/v1/meta/rules")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET rules code = %d", rr.Code)
	}
	kit.MustContain(t, rr.Body.String(), "DomainRatingRule")

	rr = get(h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /metrics code = %d", rr.Code)
	}
	kit.MustContain(t, rr.Body.String(), "go_goroutines")
}

func TestMount_MetricsOff(t *testing.T) {
	kit.Serial(t)
	h, _ := mount(t, false)
	if rr := get(h, "/metrics"); rr.Code != http.StatusNotFound {
		t.Fatalf("GET /metrics code = %d, want 404", rr.Code)
	}
}
