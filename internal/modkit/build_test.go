package modkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"seochecker/internal/modkit/httpkit"
	phttp "seochecker/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

func TestBuild_LaterOptionsWin(t *testing.T) {
	t.Parallel()
	b := Build(WithName("analysis"), WithPrefix("/analyses"), WithName("batches"), WithPorts(42))
	if b.Name != "batches" || b.Prefix != "/analyses" || b.Ports != 42 {
		t.Fatalf("built = %+v", b)
	}
}

func TestBuilt_MountAppliesMiddlewareUnderPrefix(t *testing.T) {
	t.Parallel()
	tag := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Module", "analysis")
			next.ServeHTTP(w, r)
		})
	}
	b := Build(WithPrefix("/analyses"), WithMiddlewares(tag))

	r := phttp.AdaptChi(chi.NewMux())
	b.Mount(r, func(rr httpkit.Router) {
		httpkit.Get(rr, "/{id}", func(r *http.Request) (any, error) { return httpkit.Param(r, "id"), nil })
	})

	rr := httptest.NewRecorder()
	r.Mux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/analyses/a1", nil))
	if rr.Code != http.StatusOK || rr.Header().Get("X-Module") != "analysis" {
		t.Fatalf("code = %d, headers = %v", rr.Code, rr.Header())
	}

	rr = httptest.NewRecorder()
	r.Mux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/a1", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unprefixed code = %d", rr.Code)
	}
}
