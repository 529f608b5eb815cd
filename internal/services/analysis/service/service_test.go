package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"seochecker/internal/core/rules"
	perr "seochecker/internal/platform/errors"
	"seochecker/internal/services/analysis/analysistest"
	"seochecker/internal/services/analysis/domain"
)

type fakeExtractor struct {
	st     *analysistest.Store
	err    error
	panics bool
	calls  atomic.Int32
}

func (f *fakeExtractor) Run(ctx context.Context, a domain.Analysis) (domain.Report, error) {
	f.calls.Add(1)
	if f.panics {
		panic("extractor exploded")
	}
	if f.err != nil {
		return domain.Report{Domains: len(a.Domains)}, f.err
	}
	for _, d := range a.Domains {
		_ = f.st.UpsertBatchMetrics(ctx, a.ID, []domain.BatchMetrics{{
			Domain:                d.Domain,
			DomainRating:          50,
			RefDomainsDofollow:    4,
			LinkedDomainsDofollow: 8,
			Lang:                  "en",
			TopByCountry:          []rules.CountryTraffic{{Country: "us", Traffic: 10}},
		}})
		_ = f.st.UpsertTopPages(ctx, a.ID, d.Domain, []rules.TopPage{
			{Position: 1, Title: "home", Traffic: 75},
			{Position: 2, Title: "blog", Traffic: 25},
		})
		for _, api := range domain.SubQueries {
			_ = f.st.RecordOutcome(ctx, a.ID, domain.Outcome{Domain: d.Domain, API: api, OK: api != domain.APIBacklinks, Error: "boom"})
		}
	}
	_ = f.st.SetProcessed(ctx, a.ID, len(a.Domains))
	return domain.Report{Domains: len(a.Domains), Processed: len(a.Domains), FailedQueries: len(a.Domains)}, nil
}

type refusingRunner struct{ err error }

func (r refusingRunner) Start(string, func(context.Context)) error { return r.err }
func (refusingRunner) Active() []string                             { return nil }
func (refusingRunner) Shutdown(context.Context) error               { return nil }

type parkedRunner struct{ ids []string }

func (p *parkedRunner) Start(id string, _ func(context.Context)) error {
	p.ids = append(p.ids, id)
	return nil
}
func (p *parkedRunner) Active() []string               { return p.ids }
func (p *parkedRunner) Shutdown(context.Context) error { return nil }

func newSvc(t *testing.T, runner domain.RunnerPort) (*Svc, *analysistest.Store, *fakeExtractor) {
	t.Helper()
	st := analysistest.NewStore()
	x := &fakeExtractor{st: st}
	return New(&analysistest.Tx{}, st.Binder(), Options{Extractor: x, Runner: runner}), st, x
}

func submit(t *testing.T, s *Svc, domains ...string) domain.StatusView {
	t.Helper()
	in := domain.SubmitInput{Name: " batch "}
	for _, d := range domains {
		in.Domains = append(in.Domains, domain.AnalysisDomain{Domain: d})
	}
	v, err := s.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return v
}

func TestNew_PanicsWithoutRequiredDeps(t *testing.T) {
	t.Parallel()
	st := analysistest.NewStore()
	cases := map[string]func(){
		"nil db":        func() { New(nil, st.Binder(), Options{Extractor: &fakeExtractor{}}) },
		"nil binder":    func() { New(&analysistest.Tx{}, nil, Options{Extractor: &fakeExtractor{}}) },
		"nil extractor": func() { New(&analysistest.Tx{}, st.Binder(), Options{}) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("%s: expected panic", name)
				}
			}()
			fn()
		})
	}
}

func TestSubmit_NormalizesAndRunsInline(t *testing.T) {
	t.Parallel()
	s, _, x := newSvc(t, nil)

	v := submit(t, s, "https://Example.COM/path", "www.example.com", "other.org")
	if v.Status != domain.StatusPending || v.Name != "batch" || v.TotalDomains != 2 {
		t.Fatalf("submit view = %+v", v)
	}
	if x.calls.Load() != 1 {
		t.Fatalf("extractor calls = %d, want 1", x.calls.Load())
	}

	got, err := s.Status(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.Status != domain.StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("status = %+v, want completed", got)
	}
	if got.ProcessedDomains != 2 || got.FailedQueries != 2 || got.FailureReason != "" {
		t.Fatalf("status = %+v", got)
	}

	res, err := s.Results(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(res) != 2 || res[0].Domain != "example.com" || res[1].Domain != "other.org" {
		t.Fatalf("results domains = %+v", res)
	}
	r := res[0]
	if r.DomainRating == nil || *r.DomainRating != 50 {
		t.Fatalf("domain rating = %v", r.DomainRating)
	}
	if r.TopPageShare == nil || *r.TopPageShare != 0.75 {
		t.Fatalf("top page share = %v", r.TopPageShare)
	}
	if r.LinkRatio == nil || *r.LinkRatio != 2 {
		t.Fatalf("link ratio = %v", r.LinkRatio)
	}
	if want := len(rules.Default()) + 1; len(r.Evaluations) != want {
		t.Fatalf("evaluations = %d, want %d", len(r.Evaluations), want)
	}
	if last := r.Evaluations[len(r.Evaluations)-1]; last.Rule != rules.OverallRule {
		t.Fatalf("last evaluation = %q, want overall", last.Rule)
	}
	if len(r.Failures) != 1 || r.Failures[0].API != domain.APIBacklinks {
		t.Fatalf("failures = %+v", r.Failures)
	}
	if r.Lang != "en" {
		t.Fatalf("lang = %q", r.Lang)
	}
	if _, ok := r.AnchorHits[rules.DirectionOut]; !ok {
		t.Fatalf("anchor hits missing out direction: %+v", r.AnchorHits)
	}
}

func TestSubmit_RejectsBadInput(t *testing.T) {
	t.Parallel()
	s, _, x := newSvc(t, nil)
	neg := -1.0

	cases := map[string]domain.SubmitInput{
		"blank name":     {Name: "  ", Domains: []domain.AnalysisDomain{{Domain: "a.com"}}},
		"no domains":     {Name: "n"},
		"empty domain":   {Name: "n", Domains: []domain.AnalysisDomain{{Domain: " "}}},
		"ip address":     {Name: "n", Domains: []domain.AnalysisDomain{{Domain: "10.0.0.1"}}},
		"negative price": {Name: "n", Domains: []domain.AnalysisDomain{{Domain: "a.com", Price: &neg}}},
	}
	for name, in := range cases {
		_, err := s.Submit(context.Background(), in)
		if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			t.Fatalf("%s: err = %v, want invalid argument", name, err)
		}
	}
	if x.calls.Load() != 0 {
		t.Fatalf("extractor ran for rejected input")
	}
}

func TestSubmit_RefusedStartMarksFailed(t *testing.T) {
	t.Parallel()
	st := analysistest.NewStore()
	s := New(&analysistest.Tx{}, st.Binder(), Options{
		Extractor: &fakeExtractor{st: st},
		Runner:    refusingRunner{err: perr.Unavailablef("runner is shutting down")},
	})

	_, err := s.Submit(context.Background(), domain.SubmitInput{
		Name:    "n",
		Domains: []domain.AnalysisDomain{{Domain: "a.com"}},
	})
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
	list, _ := s.List(context.Background())
	if len(list) != 1 || list[0].Status != domain.StatusFailed || list[0].FailureReason != "shutting down" {
		t.Fatalf("list = %+v", list)
	}
}

func TestRun_ExtractorErrorFailsAnalysis(t *testing.T) {
	t.Parallel()
	p := &parkedRunner{}
	s, _, x := newSvc(t, p)
	v := submit(t, s, "a.com")
	x.err = errors.New("bulk snapshot: quota exceeded")

	err := s.Run(context.Background(), v.ID)
	if err == nil {
		t.Fatal("expected error")
	}
	got, _ := s.Status(context.Background(), v.ID)
	if got.Status != domain.StatusFailed || !strings.Contains(got.FailureReason, "quota exceeded") {
		t.Fatalf("status = %+v", got)
	}
}

func TestRun_PanicFailsAnalysis(t *testing.T) {
	t.Parallel()
	p := &parkedRunner{}
	s, _, x := newSvc(t, p)
	v := submit(t, s, "a.com")
	x.panics = true

	err := s.Run(context.Background(), v.ID)
	if !perr.IsCode(err, perr.ErrorCodePanic) {
		t.Fatalf("err = %v, want panic code", err)
	}
	got, _ := s.Status(context.Background(), v.ID)
	if got.Status != domain.StatusFailed || got.FailureReason == "" {
		t.Fatalf("status = %+v", got)
	}
}

func TestRun_TerminalAnalysisIsImmutable(t *testing.T) {
	t.Parallel()
	s, _, x := newSvc(t, nil)
	v := submit(t, s, "a.com")

	err := s.Run(context.Background(), v.ID)
	if !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if x.calls.Load() != 1 {
		t.Fatalf("extractor ran again on a completed analysis")
	}
}

func TestRun_CancelledContextStillWritesTerminalState(t *testing.T) {
	t.Parallel()
	p := &parkedRunner{}
	s, _, x := newSvc(t, p)
	v := submit(t, s, "a.com")
	x.err = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = s.Run(ctx, v.ID)

	got, _ := s.Status(context.Background(), v.ID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
}

func TestStatus_UnknownAndMalformedIDs(t *testing.T) {
	t.Parallel()
	s, _, _ := newSvc(t, nil)
	for _, id := range []string{"not-a-uuid", "4b1c9f0e-3a57-4d6e-9b0a-2f1f7f0f4e11"} {
		if _, err := s.Status(context.Background(), id); !perr.IsCode(err, perr.ErrorCodeNotFound) {
			t.Fatalf("%s: err = %v, want not found", id, err)
		}
		if _, err := s.Results(context.Background(), id); !perr.IsCode(err, perr.ErrorCodeNotFound) {
			t.Fatalf("%s: results err = %v, want not found", id, err)
		}
	}
}

func TestEvaluate_OnlyFinishedAnalyses(t *testing.T) {
	t.Parallel()
	p := &parkedRunner{}
	s, _, _ := newSvc(t, p)
	v := submit(t, s, "a.com")

	if _, err := s.Evaluate(context.Background(), v.ID); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("err = %v, want conflict for pending analysis", err)
	}
	if err := s.Run(context.Background(), v.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res, err := s.Evaluate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// re-scoring upserts, it never duplicates
	if want := len(rules.Default()) + 1; len(res) != 1 || len(res[0].Evaluations) != want {
		t.Fatalf("results = %+v", res)
	}
}

func TestSweep_SkipsActiveRuns(t *testing.T) {
	t.Parallel()
	p := &parkedRunner{}
	s, st, _ := newSvc(t, p)
	owned := submit(t, s, "a.com")
	orphan := submit(t, s, "b.com")
	p.ids = []string{owned.ID}

	old := time.Now().Add(-2 * time.Hour)
	st.Touch(owned.ID, old)
	st.Touch(orphan.ID, old)

	ids, err := s.Sweep(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(ids) != 1 || ids[0] != orphan.ID {
		t.Fatalf("swept = %v, want only %s", ids, orphan.ID)
	}
	got, _ := s.Status(context.Background(), orphan.ID)
	if got.Status != domain.StatusFailed || got.FailureReason != domain.ReasonStale {
		t.Fatalf("orphan = %+v", got)
	}
	if _, err := s.Sweep(context.Background(), 0); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("zero window err = %v", err)
	}
}

func TestList_NewestFirst(t *testing.T) {
	t.Parallel()
	p := &parkedRunner{}
	s, _, _ := newSvc(t, p)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Minute) }

	first := submit(t, s, "a.com")
	second := submit(t, s, "b.com")
	list, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("list order = %+v", list)
	}
}
