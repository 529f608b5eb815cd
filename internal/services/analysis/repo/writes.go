package repo

import (
	"context"

	"seochecker/internal/core/rules"
	perr "seochecker/internal/platform/errors"
	"seochecker/internal/services/analysis/domain"
)

// UpsertBatchMetrics writes the bulk snapshot and traffic by country
// callers run it inside one tx with every row of the batch
func (r *queries) UpsertBatchMetrics(ctx context.Context, id string, rows []domain.BatchMetrics) error {
	const upsert = `
		INSERT INTO batch_metrics (
			analysis_id, domain, domain_rating, ahrefs_rank, url_rating, backlinks,
			refdomains, refdomains_dofollow, linked_domains, linked_domains_dofollow,
			outgoing_links, org_traffic, org_keywords, org_cost, paid_traffic,
			lang_by_top_traffic, detected_lang, lang, domain_category, raw, fetched_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			NULLIF($16, ''), NULLIF($17, ''), NULLIF($18, ''), NULLIF($19, ''),
			NULLIF($20, '')::jsonb, now()
		)
		ON CONFLICT (analysis_id, domain) DO UPDATE
		SET domain_rating           = EXCLUDED.domain_rating,
		    ahrefs_rank             = EXCLUDED.ahrefs_rank,
		    url_rating              = EXCLUDED.url_rating,
		    backlinks               = EXCLUDED.backlinks,
		    refdomains              = EXCLUDED.refdomains,
		    refdomains_dofollow     = EXCLUDED.refdomains_dofollow,
		    linked_domains          = EXCLUDED.linked_domains,
		    linked_domains_dofollow = EXCLUDED.linked_domains_dofollow,
		    outgoing_links          = EXCLUDED.outgoing_links,
		    org_traffic             = EXCLUDED.org_traffic,
		    org_keywords            = EXCLUDED.org_keywords,
		    org_cost                = EXCLUDED.org_cost,
		    paid_traffic            = EXCLUDED.paid_traffic,
		    lang_by_top_traffic     = EXCLUDED.lang_by_top_traffic,
		    detected_lang           = EXCLUDED.detected_lang,
		    lang                    = EXCLUDED.lang,
		    domain_category         = EXCLUDED.domain_category,
		    raw                     = EXCLUDED.raw,
		    fetched_at              = EXCLUDED.fetched_at
	`
	const country = `
		INSERT INTO traffic_by_country (analysis_id, domain, country, traffic)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (analysis_id, domain, country) DO UPDATE
		SET traffic = EXCLUDED.traffic
	`
	for _, m := range rows {
		if _, err := r.q.Exec(ctx, upsert,
			id, m.Domain, m.DomainRating, m.AhrefsRank, m.URLRating, m.Backlinks,
			m.RefDomains, m.RefDomainsDofollow, m.LinkedDomains, m.LinkedDomainsDofollow,
			m.OutgoingLinks, m.OrgTraffic, m.OrgKeywords, m.OrgCost, m.PaidTraffic,
			m.LangByTopTraffic, m.DetectedLang, m.Lang, m.Category, string(m.Raw),
		); err != nil {
			return perr.FromPostgresf(err, "upsert batch metrics %s", m.Domain)
		}
		for _, c := range m.TopByCountry {
			if c.Country == "" {
				continue
			}
			if _, err := r.q.Exec(ctx, country, id, m.Domain, c.Country, c.Traffic); err != nil {
				return perr.FromPostgresf(err, "upsert traffic by country %s/%s", m.Domain, c.Country)
			}
		}
	}
	return nil
}

// UpsertHistory writes the metrics history keyed by day
func (r *queries) UpsertHistory(ctx context.Context, id, dom string, pts []domain.HistoryPoint) error {
	const sql = `
		INSERT INTO metrics_history (analysis_id, domain, day, org_traffic, org_cost, paid_traffic, paid_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (analysis_id, domain, day) DO UPDATE
		SET org_traffic  = EXCLUDED.org_traffic,
		    org_cost     = EXCLUDED.org_cost,
		    paid_traffic = EXCLUDED.paid_traffic,
		    paid_cost    = EXCLUDED.paid_cost
	`
	for _, p := range pts {
		if _, err := r.q.Exec(ctx, sql, id, dom, p.Date, p.OrgTraffic, p.OrgCost, p.PaidTraffic, p.PaidCost); err != nil {
			return perr.FromPostgresf(err, "upsert metrics history %s", dom)
		}
	}
	return nil
}

// UpsertTopPages writes the top pages keyed by position
func (r *queries) UpsertTopPages(ctx context.Context, id, dom string, pages []rules.TopPage) error {
	const sql = `
		INSERT INTO top_pages (analysis_id, domain, position, title, traffic)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (analysis_id, domain, position) DO UPDATE
		SET title   = EXCLUDED.title,
		    traffic = EXCLUDED.traffic
	`
	for _, p := range pages {
		if _, err := r.q.Exec(ctx, sql, id, dom, p.Position, p.Title, p.Traffic); err != nil {
			return perr.FromPostgresf(err, "upsert top pages %s", dom)
		}
	}
	return nil
}

// UpsertAnchorHits writes categorized anchors keyed by direction, anchor and source
func (r *queries) UpsertAnchorHits(ctx context.Context, id, dom string, hits []domain.AnchorHit) error {
	const sql = `
		INSERT INTO anchor_hits (analysis_id, domain, direction, anchor, source_url, category, snippet, links)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		ON CONFLICT (analysis_id, domain, direction, anchor, source_url) DO UPDATE
		SET category = EXCLUDED.category,
		    snippet  = EXCLUDED.snippet,
		    links    = EXCLUDED.links
	`
	for _, h := range hits {
		if _, err := r.q.Exec(ctx, sql,
			id, dom, string(h.Direction), h.Anchor, h.SourceURL, string(h.Category), h.Snippet, h.Links,
		); err != nil {
			return perr.FromPostgresf(err, "upsert anchor hits %s", dom)
		}
	}
	return nil
}

// UpsertKeywordHits writes categorized organic keywords keyed by keyword and country
func (r *queries) UpsertKeywordHits(ctx context.Context, id, dom string, hits []domain.KeywordHit) error {
	const sql = `
		INSERT INTO organic_keyword_hits (
			analysis_id, domain, keyword, country, category, top3, top4_10, top11_50, best_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
		ON CONFLICT (analysis_id, domain, keyword, country) DO UPDATE
		SET category = EXCLUDED.category,
		    top3     = EXCLUDED.top3,
		    top4_10  = EXCLUDED.top4_10,
		    top11_50 = EXCLUDED.top11_50,
		    best_url = EXCLUDED.best_url
	`
	for _, h := range hits {
		if _, err := r.q.Exec(ctx, sql,
			id, dom, h.Keyword, h.Country, string(h.Category), h.Top3, h.Top4To10, h.Top11To50, h.BestURL,
		); err != nil {
			return perr.FromPostgresf(err, "upsert keyword hits %s", dom)
		}
	}
	return nil
}

// RecordOutcome writes the success or failure row of one sub-query
// a later outcome for the same (domain, api) replaces the earlier one
func (r *queries) RecordOutcome(ctx context.Context, id string, o domain.Outcome) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO query_outcomes (analysis_id, domain, api, ok, error, items, recorded_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, now())
		ON CONFLICT (analysis_id, domain, api) DO UPDATE
		SET ok          = EXCLUDED.ok,
		    error       = EXCLUDED.error,
		    items       = EXCLUDED.items,
		    recorded_at = EXCLUDED.recorded_at
	`, id, o.Domain, o.API, o.OK, o.Error, o.Items)
	return perr.FromPostgresf(err, "record outcome %s/%s", o.Domain, o.API)
}

// UpsertEvaluations writes rule evaluations keyed by rule name
// ord keeps the evaluation order of each domain's slice
func (r *queries) UpsertEvaluations(ctx context.Context, id string, evals []rules.Evaluation) error {
	const sql = `
		INSERT INTO rule_evaluations (analysis_id, domain, rule_name, ord, score, critical_violation, details, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (analysis_id, domain, rule_name) DO UPDATE
		SET ord                = EXCLUDED.ord,
		    score              = EXCLUDED.score,
		    critical_violation = EXCLUDED.critical_violation,
		    details            = EXCLUDED.details,
		    evaluated_at       = EXCLUDED.evaluated_at
	`
	ord := map[string]int{}
	for _, e := range evals {
		i := ord[e.Domain]
		ord[e.Domain] = i + 1
		if _, err := r.q.Exec(ctx, sql, id, e.Domain, e.Rule, i, e.Score, e.Critical, e.Details); err != nil {
			return perr.FromPostgresf(err, "upsert evaluation %s/%s", e.Domain, e.Rule)
		}
	}
	return nil
}
