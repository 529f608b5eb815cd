package service

import (
	"context"
	"time"

	"seochecker/internal/core/rules"
	"seochecker/internal/modkit/repokit"
	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/logger"
	"seochecker/internal/platform/metrics"
	"seochecker/internal/services/analysis/domain"

	"golang.org/x/sync/errgroup"
)

// Run extracts and scores a pending or running analysis, then writes its
// terminal state. Terminal analyses are refused so they never change.
func (s *Svc) Run(ctx context.Context, id string) (err error) {
	if err := checkID(id); err != nil {
		return err
	}
	ctx = logger.WithAnalysis(ctx, id)
	log := logger.C(ctx).With().Str("mod", "analysis").Logger()

	a, err := s.store().GetAnalysis(ctx, id)
	if err != nil {
		return err
	}
	if a.Status.Terminal() {
		return perr.Conflictf("analysis %s is already %s", id, a.Status)
	}
	ok, err := s.store().MarkRunning(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return perr.Conflictf("analysis %s is no longer open", id)
	}
	metrics.AnalysisStatus(string(domain.StatusRunning))

	start := time.Now()
	log.Info().Int("domains", len(a.Domains)).Msg("analysis: run start")

	defer func() {
		if rec := recover(); rec != nil {
			err = perr.PanicErrf("analysis run panicked: %v", rec)
		}
		if ferr := s.finish(ctx, id, err); ferr != nil && err == nil {
			err = ferr
		}
		ev := log.Info()
		if err != nil {
			ev = log.Error().Err(err)
		}
		ev.Dur("took", time.Since(start)).Msg("analysis: run end")
	}()

	rep, err := s.extractor.Run(ctx, a)
	if err != nil {
		return err
	}
	log.Info().Int("processed", rep.Processed).Int("failed_queries", rep.FailedQueries).
		Int("unrecorded_outcomes", rep.UnrecordedOutcomes).Msg("analysis: extracted")

	if _, err := s.score(ctx, a); err != nil {
		return err
	}
	return nil
}

// finish writes the terminal state on a context that outlives ctx
func (s *Svc) finish(ctx context.Context, id string, runErr error) error {
	dctx := context.WithoutCancel(ctx)
	if runErr == nil {
		if _, err := s.store().MarkCompleted(dctx, id); err != nil {
			return err
		}
		metrics.AnalysisStatus(string(domain.StatusCompleted))
		return nil
	}
	if _, err := s.store().MarkFailed(dctx, id, runErr.Error()); err != nil {
		logger.C(ctx).Error().Err(err).Str("analysis_id", id).Msg("analysis: terminal write failed")
		return err
	}
	metrics.AnalysisStatus(string(domain.StatusFailed))
	return nil
}

// score runs the rule battery over every domain and upserts the result
// domains are scored concurrently; rule failures never fail the batch
func (s *Svc) score(ctx context.Context, a domain.Analysis) ([]rules.Evaluation, error) {
	st := s.store()
	per := make([][]rules.Evaluation, len(a.Domains))

	var g errgroup.Group
	g.SetLimit(s.evalN)
	for i, d := range a.Domains {
		g.Go(func() error {
			per[i] = s.engine.Evaluate(ctx, st, rules.Subject{AnalysisID: a.ID, Domain: d.Domain})
			return nil
		})
	}
	_ = g.Wait()

	var all []rules.Evaluation
	for _, evs := range per {
		all = append(all, evs...)
	}
	if err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		return s.binder.Bind(q).UpsertEvaluations(ctx, a.ID, all)
	}); err != nil {
		return nil, err
	}
	return all, nil
}

// Evaluate re-scores a finished analysis from its stored metrics
func (s *Svc) Evaluate(ctx context.Context, id string) ([]domain.DomainResult, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	a, err := s.store().GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.Terminal() {
		return nil, perr.Conflictf("analysis %s is still %s", id, a.Status)
	}
	if _, err := s.score(ctx, a); err != nil {
		return nil, err
	}
	logger.C(ctx).Info().Str("analysis_id", id).Int("domains", len(a.Domains)).Msg("analysis: re-scored")
	return s.results(ctx, a)
}
