// Package service provides the analysis lifecycle: submission, background
// runs, scoring and the progress and results views
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"seochecker/internal/core/domainname"
	"seochecker/internal/core/rules"
	"seochecker/internal/modkit/repokit"
	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/logger"
	"seochecker/internal/platform/metrics"
	"seochecker/internal/services/analysis/domain"

	"github.com/google/uuid"
)

// Service is the public service port
type Service interface{ domain.ServicePort }

// Options wire the collaborators of the service
type Options struct {
	// Extractor is required
	Extractor domain.ExtractorPort

	// Engine defaults to the default rule battery
	Engine *rules.Engine

	// Runner defaults to Inline, which runs synchronously
	Runner domain.RunnerPort

	// EvalWorkers bounds concurrent domain scoring
	EvalWorkers int

	// ListLimit caps List; 0 means 100
	ListLimit int
}

// Svc implements the service port
type Svc struct {
	db        repokit.TxRunner
	binder    repokit.Binder[domain.StoragePort]
	extractor domain.ExtractorPort
	engine    *rules.Engine
	runner    domain.RunnerPort
	evalN     int
	listN     int
	now       func() time.Time
}

// New constructs the service
func New(db repokit.TxRunner, binder repokit.Binder[domain.StoragePort], opt Options) *Svc {
	if db == nil {
		panic("analysis.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("analysis.Service requires a non nil Repo binder")
	}
	if opt.Extractor == nil {
		panic("analysis.Service requires a non nil Extractor")
	}
	if opt.Engine == nil {
		opt.Engine = rules.NewEngine()
	}
	if opt.Runner == nil {
		opt.Runner = Inline{}
	}
	if opt.EvalWorkers <= 0 {
		opt.EvalWorkers = 8
	}
	if opt.ListLimit <= 0 {
		opt.ListLimit = 100
	}
	return &Svc{
		db:        db,
		binder:    binder,
		extractor: opt.Extractor,
		engine:    opt.Engine,
		runner:    opt.Runner,
		evalN:     opt.EvalWorkers,
		listN:     opt.ListLimit,
		now:       time.Now,
	}
}

func (s *Svc) store() domain.StoragePort { return s.binder.Bind(s.db) }

// checkID maps malformed ids to not found; ids are uuids
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return perr.NotFoundf("analysis %s not found", id)
	}
	return nil
}

// normalize trims the name, canonicalizes every domain and drops repeats,
// keeping the first occurrence with its price and notes
func normalize(in domain.SubmitInput) (domain.SubmitInput, error) {
	out := domain.SubmitInput{Name: strings.TrimSpace(in.Name)}
	if out.Name == "" {
		return out, perr.WithField(perr.InvalidArgf("name is required"), "name")
	}
	if len(in.Domains) == 0 {
		return out, perr.WithField(perr.InvalidArgf("at least one domain is required"), "domains")
	}
	seen := make(map[string]struct{}, len(in.Domains))
	for i, d := range in.Domains {
		host, err := domainname.Normalize(d.Domain)
		if err != nil {
			return out, perr.WithField(err, fmt.Sprintf("domains[%d].domain", i))
		}
		if d.Price != nil && *d.Price < 0 {
			return out, perr.WithField(perr.InvalidArgf("price must not be negative"), fmt.Sprintf("domains[%d].price", i))
		}
		if _, dup := seen[host]; dup {
			continue
		}
		seen[host] = struct{}{}
		d.Domain, d.Notes = host, strings.TrimSpace(d.Notes)
		out.Domains = append(out.Domains, d)
	}
	return out, nil
}

// Submit stores a pending analysis and hands it to the runner; it never
// waits for the extraction unless the runner is Inline
func (s *Svc) Submit(ctx context.Context, in domain.SubmitInput) (domain.StatusView, error) {
	in, err := normalize(in)
	if err != nil {
		return domain.StatusView{}, err
	}

	a := domain.Analysis{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Status:    domain.StatusPending,
		CreatedAt: s.now().UTC(),
		Domains:   in.Domains,
	}
	if err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		return s.binder.Bind(q).CreateAnalysis(ctx, a)
	}); err != nil {
		return domain.StatusView{}, err
	}
	metrics.AnalysisStatus(string(domain.StatusPending))

	log := logger.C(ctx).With().Str("mod", "analysis").Str("analysis_id", a.ID).Logger()
	log.Info().Str("name", a.Name).Int("domains", len(a.Domains)).Msg("analysis: submitted")

	view := domain.StatusView{
		ID:           a.ID,
		Name:         a.Name,
		Status:       a.Status,
		CreatedAt:    a.CreatedAt,
		TotalDomains: len(a.Domains),
	}

	id := a.ID
	if err := s.runner.Start(id, func(rctx context.Context) {
		if err := s.Run(rctx, id); err != nil {
			logger.C(rctx).Warn().Err(err).Str("analysis_id", id).Msg("analysis: run ended with error")
		}
	}); err != nil {
		reason := "shutting down"
		if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
			reason = err.Error()
		}
		if _, ferr := s.store().MarkFailed(context.WithoutCancel(ctx), id, reason); ferr != nil {
			log.Error().Err(ferr).Msg("analysis: mark failed after refused start")
		} else {
			metrics.AnalysisStatus(string(domain.StatusFailed))
		}
		return domain.StatusView{}, perr.Unavailablef("analysis %s was not started: %v", id, err)
	}
	return view, nil
}

// Status returns the progress summary
func (s *Svc) Status(ctx context.Context, id string) (domain.StatusView, error) {
	if err := checkID(id); err != nil {
		return domain.StatusView{}, err
	}
	return s.store().StatusOf(ctx, id)
}

// List returns the newest analyses first
func (s *Svc) List(ctx context.Context) ([]domain.StatusView, error) {
	out, err := s.store().ListAnalyses(ctx, s.listN)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.StatusView{}
	}
	return out, nil
}

// Sweep fails pending or running analyses untouched for olderThan,
// skipping the ones this process is still running
func (s *Svc) Sweep(ctx context.Context, olderThan time.Duration) ([]string, error) {
	if olderThan <= 0 {
		return nil, perr.InvalidArgf("stale window must be positive, got %s", olderThan)
	}
	ids, err := s.store().SweepStale(ctx, olderThan, s.runner.Active())
	if err != nil {
		return nil, err
	}
	for range ids {
		metrics.AnalysisStatus(string(domain.StatusFailed))
	}
	if len(ids) > 0 {
		logger.C(ctx).Warn().Strs("ids", ids).Dur("older_than", olderThan).Msg("analysis: swept stale runs")
	}
	return ids, nil
}
