package repo

import (
	"context"

	"seochecker/internal/core/rules"
	"seochecker/internal/core/wordlist"
	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/store"
	"seochecker/internal/services/analysis/domain"
)

// DomainRating reads the authority rating of the snapshot; a null rating reads as 0
func (r *queries) DomainRating(ctx context.Context, s rules.Subject) (float64, error) {
	var dr *float64
	err := r.q.QueryRow(ctx, `
		SELECT domain_rating FROM batch_metrics WHERE analysis_id = $1 AND domain = $2
	`, s.AnalysisID, s.Domain).Scan(&dr)
	if err != nil {
		if noRows(err) {
			return 0, perr.NotFoundf("no snapshot for %s", s.Domain)
		}
		return 0, perr.FromPostgres(err, "read domain rating")
	}
	if dr == nil {
		return 0, nil
	}
	return *dr, nil
}

// TrafficByCountry reads traffic per country, largest first
func (r *queries) TrafficByCountry(ctx context.Context, s rules.Subject) ([]rules.CountryTraffic, error) {
	out, err := store.Many(ctx, r.q, func(row store.Row) (rules.CountryTraffic, error) {
		var c rules.CountryTraffic
		err := row.Scan(&c.Country, &c.Traffic)
		return c, err
	}, `
		SELECT country, traffic FROM traffic_by_country
		WHERE analysis_id = $1 AND domain = $2
		ORDER BY traffic DESC, country
	`, s.AnalysisID, s.Domain)
	if err != nil {
		return nil, perr.FromPostgres(err, "read traffic by country")
	}
	return out, nil
}

// TrafficByDate reads the organic traffic history, oldest first
func (r *queries) TrafficByDate(ctx context.Context, s rules.Subject) ([]rules.DatePoint, error) {
	out, err := store.Many(ctx, r.q, func(row store.Row) (rules.DatePoint, error) {
		var p rules.DatePoint
		var traffic *int64
		err := row.Scan(&p.Date, &traffic)
		if traffic != nil {
			p.Traffic = *traffic
		}
		return p, err
	}, `
		SELECT day, org_traffic FROM metrics_history
		WHERE analysis_id = $1 AND domain = $2
		ORDER BY day
	`, s.AnalysisID, s.Domain)
	if err != nil {
		return nil, perr.FromPostgres(err, "read traffic history")
	}
	return out, nil
}

// LinkCounts reads dofollow linked domains (in) and referring domains (out)
func (r *queries) LinkCounts(ctx context.Context, s rules.Subject) (rules.LinkCounts, error) {
	var in, out *int64
	err := r.q.QueryRow(ctx, `
		SELECT linked_domains_dofollow, refdomains_dofollow
		FROM batch_metrics WHERE analysis_id = $1 AND domain = $2
	`, s.AnalysisID, s.Domain).Scan(&in, &out)
	if err != nil {
		if noRows(err) {
			return rules.LinkCounts{}, nil
		}
		return rules.LinkCounts{}, perr.FromPostgres(err, "read link counts")
	}
	var lc rules.LinkCounts
	if in != nil {
		lc.In = *in
	}
	if out != nil {
		lc.Out = *out
	}
	return lc, nil
}

// TopPages reads the top pages by position
func (r *queries) TopPages(ctx context.Context, s rules.Subject) ([]rules.TopPage, error) {
	out, err := store.Many(ctx, r.q, func(row store.Row) (rules.TopPage, error) {
		var p rules.TopPage
		var title *string
		err := row.Scan(&p.Position, &title, &p.Traffic)
		if title != nil {
			p.Title = *title
		}
		return p, err
	}, `
		SELECT position, title, traffic FROM top_pages
		WHERE analysis_id = $1 AND domain = $2
		ORDER BY position
	`, s.AnalysisID, s.Domain)
	if err != nil {
		return nil, perr.FromPostgres(err, "read top pages")
	}
	return out, nil
}

// AnchorHits counts categorized anchors for a direction
func (r *queries) AnchorHits(ctx context.Context, s rules.Subject, dir rules.Direction, cat wordlist.Category) (int, error) {
	n, err := store.Scalar[int](ctx, r.q, `
		SELECT count(*)::int FROM anchor_hits
		WHERE analysis_id = $1 AND domain = $2 AND direction = $3 AND category = $4
	`, s.AnalysisID, s.Domain, string(dir), string(cat))
	if err != nil {
		return 0, perr.FromPostgres(err, "count anchor hits")
	}
	return n, nil
}

// KeywordHits counts categorized keywords per best position bucket
func (r *queries) KeywordHits(ctx context.Context, s rules.Subject, cat wordlist.Category) (rules.KeywordBuckets, error) {
	var b rules.KeywordBuckets
	err := r.q.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE top3)::int,
		       count(*) FILTER (WHERE top4_10)::int,
		       count(*) FILTER (WHERE top11_50)::int
		FROM organic_keyword_hits
		WHERE analysis_id = $1 AND domain = $2 AND category = $3
	`, s.AnalysisID, s.Domain, string(cat)).Scan(&b.Top3, &b.Top4To10, &b.Top11To50)
	if err != nil {
		return rules.KeywordBuckets{}, perr.FromPostgres(err, "count keyword hits")
	}
	return b, nil
}

// BatchMetrics reads the snapshot rows of an analysis, without raw payloads
func (r *queries) BatchMetrics(ctx context.Context, id string) ([]domain.BatchMetrics, error) {
	out, err := store.Many(ctx, r.q, func(row store.Row) (domain.BatchMetrics, error) {
		var m domain.BatchMetrics
		var dr, ur, cost *float64
		var rank, bl, rd, rdf, ld, ldf, ol, ot, ok, pt *int64
		err := row.Scan(&m.Domain, &dr, &rank, &ur, &bl, &rd, &rdf, &ld, &ldf, &ol, &ot, &ok, &cost, &pt,
			&m.LangByTopTraffic, &m.DetectedLang, &m.Lang, &m.Category)
		m.DomainRating, m.URLRating, m.OrgCost = f64(dr), f64(ur), f64(cost)
		m.AhrefsRank, m.Backlinks, m.RefDomains, m.RefDomainsDofollow = i64(rank), i64(bl), i64(rd), i64(rdf)
		m.LinkedDomains, m.LinkedDomainsDofollow, m.OutgoingLinks = i64(ld), i64(ldf), i64(ol)
		m.OrgTraffic, m.OrgKeywords, m.PaidTraffic = i64(ot), i64(ok), i64(pt)
		return m, err
	}, `
		SELECT domain, domain_rating, ahrefs_rank, url_rating, backlinks,
		       refdomains, refdomains_dofollow, linked_domains, linked_domains_dofollow,
		       outgoing_links, org_traffic, org_keywords, org_cost, paid_traffic,
		       COALESCE(lang_by_top_traffic, ''), COALESCE(detected_lang, ''),
		       COALESCE(lang, ''), COALESCE(domain_category, '')
		FROM batch_metrics
		WHERE analysis_id = $1
		ORDER BY domain
	`, id)
	if err != nil {
		return nil, perr.FromPostgres(err, "read batch metrics")
	}
	return out, nil
}

// Outcomes reads every sub-query outcome of an analysis
func (r *queries) Outcomes(ctx context.Context, id string) ([]domain.Outcome, error) {
	out, err := store.Many(ctx, r.q, func(row store.Row) (domain.Outcome, error) {
		var o domain.Outcome
		err := row.Scan(&o.Domain, &o.API, &o.OK, &o.Error, &o.Items)
		return o, err
	}, `
		SELECT domain, api, ok, COALESCE(error, ''), items
		FROM query_outcomes
		WHERE analysis_id = $1
		ORDER BY domain, api
	`, id)
	if err != nil {
		return nil, perr.FromPostgres(err, "read query outcomes")
	}
	return out, nil
}

// Evaluations reads the stored rule evaluations of an analysis
func (r *queries) Evaluations(ctx context.Context, id string) ([]rules.Evaluation, error) {
	out, err := store.Many(ctx, r.q, func(row store.Row) (rules.Evaluation, error) {
		var e rules.Evaluation
		err := row.Scan(&e.Domain, &e.Rule, &e.Score, &e.Critical, &e.Details)
		return e, err
	}, `
		SELECT domain, rule_name, score, critical_violation, details
		FROM rule_evaluations
		WHERE analysis_id = $1
		ORDER BY domain, ord, rule_name
	`, id)
	if err != nil {
		return nil, perr.FromPostgres(err, "read rule evaluations")
	}
	return out, nil
}

func f64(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func i64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
