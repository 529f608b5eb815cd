package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	perr "seochecker/internal/platform/errors"
	phttp "seochecker/internal/platform/net/http"
	"seochecker/internal/services/analysis/domain"

	"github.com/go-chi/chi/v5"
)

type fakeSvc struct {
	submitted []domain.SubmitInput
	views     map[string]domain.StatusView
	evaluated []string
	err       error
}

func (f *fakeSvc) Submit(_ context.Context, in domain.SubmitInput) (domain.StatusView, error) {
	if f.err != nil {
		return domain.StatusView{}, f.err
	}
	f.submitted = append(f.submitted, in)
	return domain.StatusView{ID: "a1", Name: in.Name, Status: domain.StatusPending, TotalDomains: len(in.Domains)}, nil
}

func (f *fakeSvc) Status(_ context.Context, id string) (domain.StatusView, error) {
	v, ok := f.views[id]
	if !ok {
		return v, perr.NotFoundf("analysis %s not found", id)
	}
	return v, nil
}

func (f *fakeSvc) Results(_ context.Context, id string) ([]domain.DomainResult, error) {
	if _, ok := f.views[id]; !ok {
		return nil, perr.NotFoundf("analysis %s not found", id)
	}
	return []domain.DomainResult{{Domain: "a.example"}}, nil
}

func (f *fakeSvc) List(context.Context) ([]domain.StatusView, error) {
	out := make([]domain.StatusView, 0, len(f.views))
	for _, v := range f.views {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeSvc) Run(context.Context, string) error { return nil }

func (f *fakeSvc) Evaluate(_ context.Context, id string) ([]domain.DomainResult, error) {
	v, ok := f.views[id]
	if !ok {
		return nil, perr.NotFoundf("analysis %s not found", id)
	}
	if !v.Status.Terminal() {
		return nil, perr.Conflictf("analysis %s is %s", id, v.Status)
	}
	f.evaluated = append(f.evaluated, id)
	return []domain.DomainResult{{Domain: "a.example"}}, nil
}

func (f *fakeSvc) Sweep(context.Context, time.Duration) ([]string, error) { return nil, nil }

type envelope struct {
	StatusCode int             `json:"status_code"`
	Code       perr.ErrorCode  `json:"code"`
	Data       json.RawMessage `json:"data"`
}

func newRouter(t *testing.T, s *fakeSvc) stdhttp.Handler {
	t.Helper()
	r := phttp.AdaptChi(chi.NewMux())
	Register(r, s)
	return r.Mux()
}

func do(t *testing.T, h stdhttp.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rr.Body.String(), err)
	}
	return rr.Code, env
}

func TestSubmit_Created(t *testing.T) {
	t.Parallel()
	s := &fakeSvc{}
	h := newRouter(t, s)

	code, env := do(t, h, stdhttp.MethodPost, "/",
		`{"name":"q3 outreach","domains":[{"domain":"a.example","price":12.5},{"domain":"b.example"}]}`)
	if code != stdhttp.StatusCreated || env.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("code = %d / %d, want 201", code, env.StatusCode)
	}
	var v domain.StatusView
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if v.ID != "a1" || v.Status != domain.StatusPending || v.TotalDomains != 2 {
		t.Fatalf("view = %+v", v)
	}
	if len(s.submitted) != 1 || *s.submitted[0].Domains[0].Price != 12.5 {
		t.Fatalf("submitted = %+v", s.submitted)
	}
}

func TestSubmit_RejectsInvalidBodies(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"no domains":     `{"name":"x","domains":[]}`,
		"missing name":   `{"domains":[{"domain":"a.example"}]}`,
		"negative price": `{"name":"x","domains":[{"domain":"a.example","price":-1}]}`,
		"bad json":       `{"name":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := &fakeSvc{}
			code, _ := do(t, newRouter(t, s), stdhttp.MethodPost, "/", body)
			if code != stdhttp.StatusBadRequest {
				t.Fatalf("code = %d, want 400", code)
			}
			if len(s.submitted) != 0 {
				t.Fatal("service reached with an invalid body")
			}
		})
	}
}

func TestSubmit_ServiceErrorsMapToStatus(t *testing.T) {
	t.Parallel()
	s := &fakeSvc{err: perr.Unavailablef("runner is shutting down")}
	code, env := do(t, newRouter(t, s), stdhttp.MethodPost, "/", `{"name":"x","domains":[{"domain":"a.example"}]}`)
	if code != stdhttp.StatusServiceUnavailable || env.Code != perr.ErrorCodeUnavailable {
		t.Fatalf("code = %d, env = %+v", code, env)
	}
}

func TestStatusAndResults(t *testing.T) {
	t.Parallel()
	s := &fakeSvc{views: map[string]domain.StatusView{
		"a1": {ID: "a1", Status: domain.StatusRunning, TotalDomains: 3, ProcessedDomains: 1},
	}}
	h := newRouter(t, s)

	code, env := do(t, h, stdhttp.MethodGet, "/a1", "")
	if code != stdhttp.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	var v domain.StatusView
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.ProcessedDomains != 1 || v.Status != domain.StatusRunning {
		t.Fatalf("view = %+v", v)
	}

	if code, _ := do(t, h, stdhttp.MethodGet, "/missing", ""); code != stdhttp.StatusNotFound {
		t.Fatalf("unknown id code = %d, want 404", code)
	}

	code, env = do(t, h, stdhttp.MethodGet, "/a1/results", "")
	if code != stdhttp.StatusOK {
		t.Fatalf("results code = %d", code)
	}
	var rs []domain.DomainResult
	if err := json.Unmarshal(env.Data, &rs); err != nil || len(rs) != 1 {
		t.Fatalf("results = %v (%v)", rs, err)
	}

	code, env = do(t, h, stdhttp.MethodGet, "/", "")
	var all []domain.StatusView
	if err := json.Unmarshal(env.Data, &all); err != nil || code != stdhttp.StatusOK || len(all) != 1 {
		t.Fatalf("list code = %d, items = %v (%v)", code, all, err)
	}
}

func TestEvaluate_ConflictWhileRunning(t *testing.T) {
	t.Parallel()
	s := &fakeSvc{views: map[string]domain.StatusView{
		"run":  {ID: "run", Status: domain.StatusRunning},
		"done": {ID: "done", Status: domain.StatusCompleted},
	}}
	h := newRouter(t, s)

	if code, _ := do(t, h, stdhttp.MethodPost, "/run/evaluate", ""); code != stdhttp.StatusConflict {
		t.Fatalf("running evaluate code = %d, want 409", code)
	}
	if code, _ := do(t, h, stdhttp.MethodPost, "/done/evaluate", ""); code != stdhttp.StatusOK {
		t.Fatalf("finished evaluate code = %d", code)
	}
	if len(s.evaluated) != 1 || s.evaluated[0] != "done" {
		t.Fatalf("evaluated = %v", s.evaluated)
	}
}
