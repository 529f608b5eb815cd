package extract

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"seochecker/internal/adapters/providers/ahrefs"
	"seochecker/internal/core/multiresult"
	"seochecker/internal/core/rules"
	"seochecker/internal/core/wordlist"
	"seochecker/internal/platform/metrics"
	ptime "seochecker/internal/platform/time"
	"seochecker/internal/services/analysis/domain"
)

type subQuery struct {
	api string
	fn  func() (int, error)
}

// domain runs the five sub-queries of one target and returns how many failed
// a panic anywhere in here counts the remaining sub-queries as failed
func (x *Extractor) domain(ctx context.Context, id string, t ahrefs.Target, results map[string]*multiresult.Result[int], unrecorded *atomic.Int64) (failed int) {
	set := x.words.Words(t.Lang)
	steps := []subQuery{
		{domain.APIHistory, func() (int, error) { return x.history(ctx, id, t) }},
		{domain.APITopPages, func() (int, error) { return x.topPages(ctx, id, t) }},
		{domain.APIBacklinks, func() (int, error) { return x.backlinks(ctx, id, t, set) }},
		{domain.APIOutgoingAnchors, func() (int, error) { return x.outgoingAnchors(ctx, id, t, set) }},
		{domain.APIOrganicKeywords, func() (int, error) { return x.organicKeywords(ctx, id, t, set) }},
	}

	ran := 0
	defer func() {
		if rec := recover(); rec != nil {
			x.log.Error().Str("analysis_id", id).Str("domain", t.Domain).Interface("panic", rec).
				Msg("extract: domain worker panicked")
			failed += len(steps) - ran
		}
	}()

	for _, s := range steps {
		if !x.run(ctx, id, t.Domain, results[s.api], s.fn, unrecorded) {
			failed++
		}
		ran++
	}
	return failed
}

// run executes one sub-query and records its outcome row
func (x *Extractor) run(ctx context.Context, id, dom string, res *multiresult.Result[int], fn func() (int, error), unrecorded *atomic.Int64) bool {
	err := multiresult.Query(res, dom, fn)
	o := domain.Outcome{Domain: dom, API: res.API, OK: err == nil}
	if err != nil {
		o.Error = err.Error()
		x.log.Warn().Err(err).Str("analysis_id", id).Str("domain", dom).Str("api", res.API).
			Msg("extract: sub-query failed")
	} else {
		o.Items, _ = res.Success(dom)
	}
	metrics.SubQuery(res.API, err == nil)

	if !x.record(ctx, id, o) {
		unrecorded.Add(1)
	}
	return err == nil
}

// record writes the outcome row, retrying once
func (x *Extractor) record(ctx context.Context, id string, o domain.Outcome) bool {
	ctx = context.WithoutCancel(ctx)
	err := x.repo().RecordOutcome(ctx, id, o)
	if err == nil {
		return true
	}
	x.log.Warn().Err(err).Str("analysis_id", id).Str("domain", o.Domain).Str("api", o.API).
		Msg("extract: record outcome failed, retrying")
	if err = x.repo().RecordOutcome(ctx, id, o); err == nil {
		return true
	}
	x.log.Error().Err(err).Str("analysis_id", id).Str("domain", o.Domain).Str("api", o.API).
		Msg("extract: outcome row lost")
	return false
}

func (x *Extractor) today() string { return ptime.Day(x.now()) }

func (x *Extractor) history(ctx context.Context, id string, t ahrefs.Target) (int, error) {
	pts, err := x.api.MetricsHistory(ctx, t, x.api.HistoryFrom())
	if err != nil {
		return 0, err
	}
	out := make([]domain.HistoryPoint, 0, len(pts))
	for _, p := range pts {
		day, err := p.Day()
		if err != nil {
			return 0, err
		}
		out = append(out, domain.HistoryPoint{
			Date:        day,
			OrgTraffic:  p.OrgTraffic.Int(),
			OrgCost:     p.OrgCost.Float(),
			PaidTraffic: p.PaidTraffic.Int(),
			PaidCost:    p.PaidCost.Float(),
		})
	}
	if err := x.persist(ctx, func(r domain.StoragePort) error {
		return r.UpsertHistory(ctx, id, t.Domain, out)
	}); err != nil {
		return 0, err
	}
	return len(out), nil
}

// topPages keeps the API order as position 1..n
func (x *Extractor) topPages(ctx context.Context, id string, t ahrefs.Target) (int, error) {
	pages, err := x.api.TopPages(ctx, t, x.today())
	if err != nil {
		return 0, err
	}
	out := make([]rules.TopPage, 0, len(pages))
	for i, p := range pages {
		out = append(out, rules.TopPage{Position: i + 1, Title: p.Title, Traffic: p.Traffic.Int()})
	}
	if err := x.persist(ctx, func(r domain.StoragePort) error {
		return r.UpsertTopPages(ctx, id, t.Domain, out)
	}); err != nil {
		return 0, err
	}
	return len(out), nil
}

func (x *Extractor) backlinks(ctx context.Context, id string, t ahrefs.Target, set *wordlist.Set) (int, error) {
	links, err := x.api.Backlinks(ctx, t, wordlist.PhraseFilter("anchor", set.Words()))
	if err != nil {
		return 0, err
	}
	hits := make([]domain.AnchorHit, 0, len(links))
	for _, l := range links {
		cat, ok := set.Categorize(l.Anchor)
		if !ok {
			continue
		}
		hits = append(hits, domain.AnchorHit{
			Direction: rules.DirectionIn,
			Category:  cat,
			Anchor:    l.Anchor,
			SourceURL: l.URLFrom,
			Snippet:   snippet(l),
		})
	}
	if err := x.persist(ctx, func(r domain.StoragePort) error {
		return r.UpsertAnchorHits(ctx, id, t.Domain, hits)
	}); err != nil {
		return 0, err
	}
	return len(hits), nil
}

func (x *Extractor) outgoingAnchors(ctx context.Context, id string, t ahrefs.Target, set *wordlist.Set) (int, error) {
	anchors, err := x.api.OutgoingAnchors(ctx, t, wordlist.PhraseFilter("anchor", set.Words()))
	if err != nil {
		return 0, err
	}
	hits := make([]domain.AnchorHit, 0, len(anchors))
	for _, a := range anchors {
		cat, ok := set.Categorize(a.Anchor)
		if !ok {
			continue
		}
		hits = append(hits, domain.AnchorHit{
			Direction: rules.DirectionOut,
			Category:  cat,
			Anchor:    a.Anchor,
			Links:     a.DofollowLinks.Int(),
		})
	}
	if err := x.persist(ctx, func(r domain.StoragePort) error {
		return r.UpsertAnchorHits(ctx, id, t.Domain, hits)
	}); err != nil {
		return 0, err
	}
	return len(hits), nil
}

func (x *Extractor) organicKeywords(ctx context.Context, id string, t ahrefs.Target, set *wordlist.Set) (int, error) {
	kws, err := x.api.OrganicKeywords(ctx, t, x.today(), wordlist.PhraseFilter("keyword", set.Words()))
	if err != nil {
		return 0, err
	}
	hits := make([]domain.KeywordHit, 0, len(kws))
	for _, k := range kws {
		cat, ok := set.Categorize(k.Keyword)
		if !ok {
			continue
		}
		hits = append(hits, domain.KeywordHit{
			Category:  cat,
			Keyword:   k.Keyword,
			Country:   k.KeywordCountry,
			Top3:      bool(k.Top3),
			Top4To10:  bool(k.Top4To10),
			Top11To50: bool(k.Top11To50),
			BestURL:   k.BestURL,
		})
	}
	if err := x.persist(ctx, func(r domain.StoragePort) error {
		return r.UpsertKeywordHits(ctx, id, t.Domain, hits)
	}); err != nil {
		return 0, fmt.Errorf("persist keywords: %w", err)
	}
	return len(hits), nil
}

func snippet(l ahrefs.Backlink) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.SnippetLeft, l.Anchor, l.SnippetRight} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
