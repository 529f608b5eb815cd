package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/metrics"
	phttp "seochecker/internal/platform/net/http"
	kit "seochecker/internal/platform/testkit"

	"github.com/go-chi/chi/v5"
)

func TestRecover_WritesPanicEnvelope(t *testing.T) {
	t.Parallel()
	m := chi.NewMux()
	m.Use(RequestID, Recover)
	m.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("kaboom") })

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", rr.Code)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != perr.ErrorCodePanic || env.RequestID == "" || env.Error != "internal error" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestRecover_RepanicsAbort(t *testing.T) {
	t.Parallel()
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) }))
	kit.MustPanic(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestAccessLog_RecordsRoutePattern(t *testing.T) {
	t.Parallel()
	m := chi.NewMux()
	m.Use(RequestID, AccessLog(time.Second))
	m.Get("/analyses/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/analyses/a1", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("code = %d", rr.Code)
	}
	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	kit.MustContain(t, scrape.Body.String(), `seochecker_http_requests_total{code="418",method="GET",route="/analyses/{id}"}`)
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()
	h := CORS(CORSOptions{AllowedOrigins: []string{"https://app.example"}})(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyses", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allow origin = %q", got)
	}
	kit.MustContain(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
