// Package analysistest provides an in-memory analysis store for tests
package analysistest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"seochecker/internal/core/rules"
	"seochecker/internal/core/wordlist"
	"seochecker/internal/modkit/repokit"
	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/store"
	ptime "seochecker/internal/platform/time"
	"seochecker/internal/services/analysis/domain"
)

type key struct{ id, domain string }

type record struct {
	a         domain.Analysis
	updatedAt time.Time
}

type anchorKey struct {
	dir            rules.Direction
	anchor, source string
}

type keywordKey struct{ keyword, country string }

// Store is a mutex guarded domain.StoragePort with the same transition
// rules as the postgres repo
type Store struct {
	mu  sync.Mutex
	Now func() time.Time

	analyses map[string]*record
	batch    map[key]domain.BatchMetrics
	history  map[key]map[time.Time]domain.HistoryPoint
	pages    map[key]map[int]rules.TopPage
	anchors  map[key]map[anchorKey]domain.AnchorHit
	keywords map[key]map[keywordKey]domain.KeywordHit
	outcomes map[key]map[string]domain.Outcome
	evals    map[key][]rules.Evaluation

	fail      map[string]error
	failOnce  map[string]int
	processed []int
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{
		Now:      time.Now,
		analyses: map[string]*record{},
		batch:    map[key]domain.BatchMetrics{},
		history:  map[key]map[time.Time]domain.HistoryPoint{},
		pages:    map[key]map[int]rules.TopPage{},
		anchors:  map[key]map[anchorKey]domain.AnchorHit{},
		keywords: map[key]map[keywordKey]domain.KeywordHit{},
		outcomes: map[key]map[string]domain.Outcome{},
		evals:    map[key][]rules.Evaluation{},
		fail:     map[string]error{},
		failOnce: map[string]int{},
	}
}

// FailOn makes the named method return err until cleared with a nil err
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failOnce, method)
	if err == nil {
		delete(s.fail, method)
		return
	}
	s.fail[method] = err
}

// FailTimes makes the next n calls of method fail with err, then clears it
func (s *Store) FailTimes(method string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = err
	s.failOnce[method] = n
}

// ProcessedWrites returns every value passed to SetProcessed
func (s *Store) ProcessedWrites() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.processed)
}

// Touch moves updated_at of id, for sweep tests
func (s *Store) Touch(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.analyses[id]; ok {
		r.updatedAt = at
	}
}

// Binder binds every Queryer to s
func (s *Store) Binder() repokit.Binder[domain.StoragePort] {
	return repokit.BindFunc[domain.StoragePort](func(repokit.Queryer) domain.StoragePort { return s })
}

// must be called with mu held
func (s *Store) failed(method string) error {
	err := s.fail[method]
	if n, ok := s.failOnce[method]; ok && err != nil {
		if n <= 1 {
			delete(s.failOnce, method)
			delete(s.fail, method)
		} else {
			s.failOnce[method] = n - 1
		}
	}
	return err
}

// must be called with mu held
func (s *Store) known(id, dom string) error {
	r, ok := s.analyses[id]
	if !ok {
		return fmt.Errorf("analysistest: unknown analysis %s", id)
	}
	for _, d := range r.a.Domains {
		if d.Domain == dom {
			return nil
		}
	}
	return fmt.Errorf("analysistest: %s is not part of analysis %s", dom, id)
}

// CreateAnalysis implements domain.StoragePort
func (s *Store) CreateAnalysis(_ context.Context, a domain.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("CreateAnalysis"); err != nil {
		return err
	}
	if _, ok := s.analyses[a.ID]; ok {
		return perr.Conflictf("analysis %s exists", a.ID)
	}
	a.Domains = slices.Clone(a.Domains)
	s.analyses[a.ID] = &record{a: a, updatedAt: s.Now()}
	return nil
}

// GetAnalysis implements domain.StoragePort
func (s *Store) GetAnalysis(_ context.Context, id string) (domain.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("GetAnalysis"); err != nil {
		return domain.Analysis{}, err
	}
	r, ok := s.analyses[id]
	if !ok {
		return domain.Analysis{}, perr.NotFoundf("analysis %s not found", id)
	}
	a := r.a
	a.Domains = slices.Clone(r.a.Domains)
	return a, nil
}

// must be called with mu held
func (s *Store) view(r *record) domain.StatusView {
	failed := 0
	for _, d := range r.a.Domains {
		for _, o := range s.outcomes[key{r.a.ID, d.Domain}] {
			if !o.OK {
				failed++
			}
		}
	}
	return domain.StatusView{
		ID:               r.a.ID,
		Name:             r.a.Name,
		Status:           r.a.Status,
		CreatedAt:        r.a.CreatedAt,
		CompletedAt:      r.a.CompletedAt,
		TotalDomains:     len(r.a.Domains),
		ProcessedDomains: r.a.ProcessedCount,
		FailedQueries:    failed,
		FailureReason:    r.a.FailureReason,
	}
}

// StatusOf implements domain.StoragePort
func (s *Store) StatusOf(_ context.Context, id string) (domain.StatusView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("StatusOf"); err != nil {
		return domain.StatusView{}, err
	}
	r, ok := s.analyses[id]
	if !ok {
		return domain.StatusView{}, perr.NotFoundf("analysis %s not found", id)
	}
	return s.view(r), nil
}

// ListAnalyses implements domain.StoragePort
func (s *Store) ListAnalyses(_ context.Context, limit int) ([]domain.StatusView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("ListAnalyses"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	out := make([]domain.StatusView, 0, len(s.analyses))
	for _, r := range s.analyses {
		out = append(out, s.view(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// must be called with mu held
func (s *Store) open(id string) (*record, bool) {
	r, ok := s.analyses[id]
	if !ok || r.a.Status.Terminal() {
		return nil, false
	}
	return r, true
}

// MarkRunning implements domain.StoragePort
func (s *Store) MarkRunning(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("MarkRunning"); err != nil {
		return false, err
	}
	r, ok := s.open(id)
	if !ok {
		return false, nil
	}
	r.a.Status, r.updatedAt = domain.StatusRunning, s.Now()
	return true, nil
}

// SetProcessed implements domain.StoragePort
func (s *Store) SetProcessed(_ context.Context, id string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("SetProcessed"); err != nil {
		return err
	}
	s.processed = append(s.processed, n)
	r, ok := s.analyses[id]
	if !ok || r.a.Status != domain.StatusRunning {
		return nil
	}
	n = min(max(r.a.ProcessedCount, n), len(r.a.Domains))
	r.a.ProcessedCount, r.updatedAt = n, s.Now()
	return nil
}

// MarkCompleted implements domain.StoragePort
func (s *Store) MarkCompleted(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("MarkCompleted"); err != nil {
		return false, err
	}
	r, ok := s.open(id)
	if !ok {
		return false, nil
	}
	now := s.Now()
	r.a.Status, r.a.CompletedAt, r.a.FailureReason, r.updatedAt = domain.StatusCompleted, ptime.Ptr(now), "", now
	return true, nil
}

// MarkFailed implements domain.StoragePort
func (s *Store) MarkFailed(_ context.Context, id, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("MarkFailed"); err != nil {
		return false, err
	}
	r, ok := s.open(id)
	if !ok {
		return false, nil
	}
	if reason == "" {
		reason = "unknown failure"
	}
	now := s.Now()
	r.a.Status, r.a.CompletedAt, r.a.FailureReason, r.updatedAt = domain.StatusFailed, ptime.Ptr(now), reason, now
	return true, nil
}

// SweepStale implements domain.StoragePort
func (s *Store) SweepStale(_ context.Context, olderThan time.Duration, exclude []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("SweepStale"); err != nil {
		return nil, err
	}
	now := s.Now()
	cutoff := now.Add(-olderThan)
	var ids []string
	for id, r := range s.analyses {
		if r.a.Status.Terminal() || !r.updatedAt.Before(cutoff) || slices.Contains(exclude, id) {
			continue
		}
		r.a.Status, r.a.CompletedAt, r.a.FailureReason, r.updatedAt = domain.StatusFailed, ptime.Ptr(now), domain.ReasonStale, now
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// UpsertBatchMetrics implements domain.StoragePort
func (s *Store) UpsertBatchMetrics(_ context.Context, id string, rows []domain.BatchMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("UpsertBatchMetrics"); err != nil {
		return err
	}
	for _, m := range rows {
		if err := s.known(id, m.Domain); err != nil {
			return err
		}
	}
	for _, m := range rows {
		s.batch[key{id, m.Domain}] = m
	}
	return nil
}

// BatchMetrics implements domain.StoragePort
func (s *Store) BatchMetrics(_ context.Context, id string) ([]domain.BatchMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("BatchMetrics"); err != nil {
		return nil, err
	}
	var out []domain.BatchMetrics
	for k, m := range s.batch {
		if k.id == id {
			m.Raw = nil
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

// UpsertHistory implements domain.StoragePort
func (s *Store) UpsertHistory(_ context.Context, id, dom string, pts []domain.HistoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("UpsertHistory"); err != nil {
		return err
	}
	if err := s.known(id, dom); err != nil {
		return err
	}
	k := key{id, dom}
	if s.history[k] == nil {
		s.history[k] = map[time.Time]domain.HistoryPoint{}
	}
	for _, p := range pts {
		s.history[k][p.Date] = p
	}
	return nil
}

// UpsertTopPages implements domain.StoragePort
func (s *Store) UpsertTopPages(_ context.Context, id, dom string, pages []rules.TopPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("UpsertTopPages"); err != nil {
		return err
	}
	if err := s.known(id, dom); err != nil {
		return err
	}
	k := key{id, dom}
	if s.pages[k] == nil {
		s.pages[k] = map[int]rules.TopPage{}
	}
	for _, p := range pages {
		s.pages[k][p.Position] = p
	}
	return nil
}

// UpsertAnchorHits implements domain.StoragePort
func (s *Store) UpsertAnchorHits(_ context.Context, id, dom string, hits []domain.AnchorHit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("UpsertAnchorHits"); err != nil {
		return err
	}
	if err := s.known(id, dom); err != nil {
		return err
	}
	k := key{id, dom}
	if s.anchors[k] == nil {
		s.anchors[k] = map[anchorKey]domain.AnchorHit{}
	}
	for _, h := range hits {
		s.anchors[k][anchorKey{h.Direction, h.Anchor, h.SourceURL}] = h
	}
	return nil
}

// UpsertKeywordHits implements domain.StoragePort
func (s *Store) UpsertKeywordHits(_ context.Context, id, dom string, hits []domain.KeywordHit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("UpsertKeywordHits"); err != nil {
		return err
	}
	if err := s.known(id, dom); err != nil {
		return err
	}
	k := key{id, dom}
	if s.keywords[k] == nil {
		s.keywords[k] = map[keywordKey]domain.KeywordHit{}
	}
	for _, h := range hits {
		s.keywords[k][keywordKey{h.Keyword, h.Country}] = h
	}
	return nil
}

// RecordOutcome implements domain.StoragePort
func (s *Store) RecordOutcome(_ context.Context, id string, o domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("RecordOutcome"); err != nil {
		return err
	}
	if err := s.known(id, o.Domain); err != nil {
		return err
	}
	k := key{id, o.Domain}
	if s.outcomes[k] == nil {
		s.outcomes[k] = map[string]domain.Outcome{}
	}
	s.outcomes[k][o.API] = o
	if r, ok := s.analyses[id]; ok {
		r.updatedAt = s.Now()
	}
	return nil
}

// Outcomes implements domain.StoragePort
func (s *Store) Outcomes(_ context.Context, id string) ([]domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("Outcomes"); err != nil {
		return nil, err
	}
	var out []domain.Outcome
	for k, m := range s.outcomes {
		if k.id != id {
			continue
		}
		for _, o := range m {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].API < out[j].API
	})
	return out, nil
}

// UpsertEvaluations implements domain.StoragePort
func (s *Store) UpsertEvaluations(_ context.Context, id string, evals []rules.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("UpsertEvaluations"); err != nil {
		return err
	}
	for _, e := range evals {
		if err := s.known(id, e.Domain); err != nil {
			return err
		}
	}
	for _, e := range evals {
		k := key{id, e.Domain}
		i := slices.IndexFunc(s.evals[k], func(x rules.Evaluation) bool { return x.Rule == e.Rule })
		if i >= 0 {
			s.evals[k][i] = e
			continue
		}
		s.evals[k] = append(s.evals[k], e)
	}
	return nil
}

// Evaluations implements domain.StoragePort
func (s *Store) Evaluations(_ context.Context, id string) ([]rules.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("Evaluations"); err != nil {
		return nil, err
	}
	var doms []string
	for k := range s.evals {
		if k.id == id {
			doms = append(doms, k.domain)
		}
	}
	sort.Strings(doms)
	var out []rules.Evaluation
	for _, d := range doms {
		out = append(out, s.evals[key{id, d}]...)
	}
	return out, nil
}

// DomainRating implements rules.Metrics
func (s *Store) DomainRating(_ context.Context, sub rules.Subject) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.batch[key{sub.AnalysisID, sub.Domain}]
	if !ok {
		return 0, perr.NotFoundf("no snapshot for %s", sub.Domain)
	}
	return m.DomainRating, nil
}

// TrafficByCountry implements rules.Metrics
func (s *Store) TrafficByCountry(_ context.Context, sub rules.Subject) ([]rules.CountryTraffic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.batch[key{sub.AnalysisID, sub.Domain}].TopByCountry)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Traffic != out[j].Traffic {
			return out[i].Traffic > out[j].Traffic
		}
		return out[i].Country < out[j].Country
	})
	return out, nil
}

// TrafficByDate implements rules.Metrics
func (s *Store) TrafficByDate(_ context.Context, sub rules.Subject) ([]rules.DatePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rules.DatePoint
	for _, p := range s.history[key{sub.AnalysisID, sub.Domain}] {
		out = append(out, rules.DatePoint{Date: p.Date, Traffic: p.OrgTraffic})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// LinkCounts implements rules.Metrics
func (s *Store) LinkCounts(_ context.Context, sub rules.Subject) (rules.LinkCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.batch[key{sub.AnalysisID, sub.Domain}]
	return rules.LinkCounts{In: m.LinkedDomainsDofollow, Out: m.RefDomainsDofollow}, nil
}

// TopPages implements rules.Metrics
func (s *Store) TopPages(_ context.Context, sub rules.Subject) ([]rules.TopPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rules.TopPage
	for _, p := range s.pages[key{sub.AnalysisID, sub.Domain}] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// AnchorHits implements rules.Metrics
func (s *Store) AnchorHits(_ context.Context, sub rules.Subject, dir rules.Direction, cat wordlist.Category) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.anchors[key{sub.AnalysisID, sub.Domain}] {
		if h.Direction == dir && h.Category == cat {
			n++
		}
	}
	return n, nil
}

// KeywordHits implements rules.Metrics
func (s *Store) KeywordHits(_ context.Context, sub rules.Subject, cat wordlist.Category) (rules.KeywordBuckets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b rules.KeywordBuckets
	for _, h := range s.keywords[key{sub.AnalysisID, sub.Domain}] {
		if h.Category != cat {
			continue
		}
		if h.Top3 {
			b.Top3++
		}
		if h.Top4To10 {
			b.Top4To10++
		}
		if h.Top11To50 {
			b.Top11To50++
		}
	}
	return b, nil
}

// Tx is a TxRunner whose queries go nowhere; pair it with Store.Binder
// a failing fn leaves whatever it already wrote, unlike a real rollback
type Tx struct {
	mu    sync.Mutex
	Err   error
	calls int
}

// Calls returns how many transactions ran
func (t *Tx) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Tx implements repokit.TxRunner
func (t *Tx) Tx(_ context.Context, fn func(q store.RowQuerier) error) error {
	t.mu.Lock()
	t.calls++
	err := t.Err
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(t)
}

// Exec implements store.RowQuerier
func (t *Tx) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	return nil, fmt.Errorf("analysistest: raw sql is not supported")
}

// Query implements store.RowQuerier
func (t *Tx) Query(context.Context, string, ...any) (store.Rows, error) {
	return nil, fmt.Errorf("analysistest: raw sql is not supported")
}

// QueryRow implements store.RowQuerier
func (t *Tx) QueryRow(context.Context, string, ...any) store.Row { return nil }

var (
	_ domain.StoragePort = (*Store)(nil)
	_ repokit.TxRunner   = (*Tx)(nil)
)
