package service

import (
	"context"

	"seochecker/internal/core/rules"
	"seochecker/internal/core/wordlist"
	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/logger"
	"seochecker/internal/services/analysis/domain"
)

var (
	directions = []rules.Direction{rules.DirectionIn, rules.DirectionOut}
	categories = []wordlist.Category{wordlist.Forbidden, wordlist.Spam}
)

// Results returns the scored view of every domain in submission order
func (s *Svc) Results(ctx context.Context, id string) ([]domain.DomainResult, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	a, err := s.store().GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.results(ctx, a)
}

func (s *Svc) results(ctx context.Context, a domain.Analysis) ([]domain.DomainResult, error) {
	st := s.store()

	snaps, err := st.BatchMetrics(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	evals, err := st.Evaluations(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	outcomes, err := st.Outcomes(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	snapBy := make(map[string]domain.BatchMetrics, len(snaps))
	for _, m := range snaps {
		snapBy[m.Domain] = m
	}
	evalBy := map[string][]rules.Evaluation{}
	for _, e := range evals {
		evalBy[e.Domain] = append(evalBy[e.Domain], e)
	}
	failBy := map[string][]domain.Outcome{}
	for _, o := range outcomes {
		if !o.OK {
			failBy[o.Domain] = append(failBy[o.Domain], o)
		}
	}

	out := make([]domain.DomainResult, 0, len(a.Domains))
	for _, d := range a.Domains {
		r, err := s.domainResult(ctx, st, rules.Subject{AnalysisID: a.ID, Domain: d.Domain})
		if err != nil {
			return nil, err
		}
		m := snapBy[d.Domain]
		r.Lang, r.Category = m.Lang, m.Category
		r.Evaluations = evalBy[d.Domain]
		if r.Evaluations == nil {
			r.Evaluations = []rules.Evaluation{}
		}
		r.Failures = failBy[d.Domain]
		out = append(out, r)
	}
	return out, nil
}

// domainResult reads the derived metrics of one domain
// a domain without a snapshot row leaves DomainRating nil
func (s *Svc) domainResult(ctx context.Context, st domain.StoragePort, sub rules.Subject) (domain.DomainResult, error) {
	r := domain.DomainResult{Domain: sub.Domain}

	switch dr, err := st.DomainRating(ctx, sub); {
	case err == nil:
		r.DomainRating = &dr
	case perr.IsCode(err, perr.ErrorCodeNotFound):
	default:
		logger.C(ctx).Debug().Err(err).Str("domain", sub.Domain).Msg("analysis: no domain rating")
	}

	var err error
	if r.TrafficByCountry, err = st.TrafficByCountry(ctx, sub); err != nil {
		return r, err
	}
	if r.TrafficByCountry == nil {
		r.TrafficByCountry = []rules.CountryTraffic{}
	}
	if r.History, err = st.TrafficByDate(ctx, sub); err != nil {
		return r, err
	}
	if r.History == nil {
		r.History = []rules.DatePoint{}
	}

	pages, err := st.TopPages(ctx, sub)
	if err != nil {
		return r, err
	}
	if share, err := rules.TopPageShare(pages); err == nil {
		r.TopPageShare = &share
	}

	lc, err := st.LinkCounts(ctx, sub)
	if err != nil {
		return r, err
	}
	if lc.In > 0 && lc.Out > 0 {
		ratio := float64(lc.In) / float64(lc.Out)
		r.LinkRatio = &ratio
	}

	r.AnchorHits = make(map[rules.Direction]map[wordlist.Category]int, len(directions))
	for _, dir := range directions {
		r.AnchorHits[dir] = make(map[wordlist.Category]int, len(categories))
		for _, cat := range categories {
			n, err := st.AnchorHits(ctx, sub, dir, cat)
			if err != nil {
				return r, err
			}
			r.AnchorHits[dir][cat] = n
		}
	}

	r.KeywordHits = make(map[wordlist.Category]rules.KeywordBuckets, len(categories))
	for _, cat := range categories {
		b, err := st.KeywordHits(ctx, sub, cat)
		if err != nil {
			return r, err
		}
		r.KeywordHits[cat] = b
	}
	return r, nil
}
