// Package repo provides the postgres implementation of the analysis storage port
package repo

import (
	"context"
	stdsql "database/sql"
	"errors"
	"time"

	"seochecker/internal/modkit/repokit"
	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/store"
	"seochecker/internal/services/analysis/domain"

	"github.com/jackc/pgx/v5"
)

type (
	// PG is a Postgres binder for domain.StoragePort
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.StoragePort
func NewPG() repokit.Binder[domain.StoragePort] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) domain.StoragePort { return &queries{q: q} }

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, stdsql.ErrNoRows)
}

// CreateAnalysis stores a pending analysis and its domains
// callers run it inside a tx so the header and domains land together
func (r *queries) CreateAnalysis(ctx context.Context, a domain.Analysis) error {
	const insertAnalysis = `
		INSERT INTO analysis (id, name, status, created_at, updated_at, total_domains)
		VALUES ($1, $2, $3, $4, $4, $5)
	`
	if _, err := r.q.Exec(ctx, insertAnalysis, a.ID, a.Name, string(a.Status), a.CreatedAt.UTC(), len(a.Domains)); err != nil {
		return perr.FromPostgres(err, "insert analysis")
	}

	const insertDomain = `
		INSERT INTO analysis_domains (analysis_id, domain, ord, price, notes)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT (analysis_id, domain) DO UPDATE
		SET ord   = EXCLUDED.ord,
		    price = EXCLUDED.price,
		    notes = EXCLUDED.notes
	`
	for i, d := range a.Domains {
		if _, err := r.q.Exec(ctx, insertDomain, a.ID, d.Domain, i, d.Price, d.Notes); err != nil {
			return perr.FromPostgresf(err, "insert analysis domain %s", d.Domain)
		}
	}
	return nil
}

// GetAnalysis loads the analysis header and its domains in submission order
func (r *queries) GetAnalysis(ctx context.Context, id string) (domain.Analysis, error) {
	const head = `
		SELECT id::text, name, status, created_at, completed_at, processed_count, COALESCE(failure_reason, '')
		FROM analysis
		WHERE id = $1
	`
	a, err := store.One(ctx, r.q, func(row store.Row) (domain.Analysis, error) {
		var a domain.Analysis
		var status string
		err := row.Scan(&a.ID, &a.Name, &status, &a.CreatedAt, &a.CompletedAt, &a.ProcessedCount, &a.FailureReason)
		a.Status = domain.Status(status)
		return a, err
	}, head, id)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Analysis{}, perr.NotFoundf("analysis %s not found", id)
		}
		return domain.Analysis{}, perr.FromPostgres(err, "load analysis")
	}

	const doms = `
		SELECT domain, price::float8, COALESCE(notes, '')
		FROM analysis_domains
		WHERE analysis_id = $1
		ORDER BY ord, domain
	`
	a.Domains, err = store.Many(ctx, r.q, func(row store.Row) (domain.AnalysisDomain, error) {
		var d domain.AnalysisDomain
		err := row.Scan(&d.Domain, &d.Price, &d.Notes)
		return d, err
	}, doms, id)
	if err != nil {
		return domain.Analysis{}, perr.FromPostgres(err, "load analysis domains")
	}
	return a, nil
}

const statusSelect = `
	SELECT a.id::text, a.name, a.status, a.created_at, a.completed_at,
	       a.total_domains, a.processed_count,
	       (SELECT count(*) FROM query_outcomes o WHERE o.analysis_id = a.id AND NOT o.ok)::int,
	       COALESCE(a.failure_reason, '')
	FROM analysis a
`

func scanStatus(row store.Row) (domain.StatusView, error) {
	var v domain.StatusView
	var status string
	err := row.Scan(&v.ID, &v.Name, &status, &v.CreatedAt, &v.CompletedAt,
		&v.TotalDomains, &v.ProcessedDomains, &v.FailedQueries, &v.FailureReason)
	v.Status = domain.Status(status)
	return v, err
}

// StatusOf returns the progress summary of one analysis
func (r *queries) StatusOf(ctx context.Context, id string) (domain.StatusView, error) {
	v, err := store.One(ctx, r.q, scanStatus, statusSelect+` WHERE a.id = $1`, id)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.StatusView{}, perr.NotFoundf("analysis %s not found", id)
		}
		return domain.StatusView{}, perr.FromPostgres(err, "load analysis status")
	}
	return v, nil
}

// ListAnalyses returns the newest analyses first
func (r *queries) ListAnalyses(ctx context.Context, limit int) ([]domain.StatusView, error) {
	if limit <= 0 {
		limit = 100
	}
	out, err := store.Many(ctx, r.q, scanStatus, statusSelect+` ORDER BY a.created_at DESC, a.id LIMIT $1`, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "list analyses")
	}
	return out, nil
}

// MarkRunning moves a non terminal analysis to running
func (r *queries) MarkRunning(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE analysis
		SET status = 'running', started_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'running')
	`, id)
	if err != nil {
		return false, perr.FromPostgres(err, "mark analysis running")
	}
	return tag.RowsAffected() == 1, nil
}

// SetProcessed raises processed_count to n, capped by the domain count
func (r *queries) SetProcessed(ctx context.Context, id string, n int) error {
	_, err := r.q.Exec(ctx, `
		UPDATE analysis
		SET processed_count = LEAST(GREATEST(processed_count, $2), total_domains),
		    updated_at = now()
		WHERE id = $1 AND status = 'running'
	`, id, n)
	return perr.FromPostgres(err, "set processed count")
}

// MarkCompleted is the successful terminal transition
func (r *queries) MarkCompleted(ctx context.Context, id string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE analysis
		SET status = 'completed', completed_at = now(), updated_at = now(), failure_reason = NULL
		WHERE id = $1 AND status IN ('pending', 'running')
	`, id)
	if err != nil {
		return false, perr.FromPostgres(err, "mark analysis completed")
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed is the failed terminal transition; reason is required
func (r *queries) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	if reason == "" {
		reason = "unknown failure"
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE analysis
		SET status = 'failed', completed_at = now(), updated_at = now(), failure_reason = $2
		WHERE id = $1 AND status IN ('pending', 'running')
	`, id, reason)
	if err != nil {
		return false, perr.FromPostgres(err, "mark analysis failed")
	}
	return tag.RowsAffected() == 1, nil
}

// SweepStale fails pending or running analyses untouched for olderThan
// ids in exclude are skipped (runs still owned by this process)
func (r *queries) SweepStale(ctx context.Context, olderThan time.Duration, exclude []string) ([]string, error) {
	if exclude == nil {
		exclude = []string{}
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := r.q.Query(ctx, `
		UPDATE analysis
		SET status = 'failed', completed_at = now(), updated_at = now(), failure_reason = $2
		WHERE status IN ('pending', 'running')
		  AND updated_at < $1
		  AND NOT (id::text = ANY($3::text[]))
		RETURNING id::text
	`, cutoff, domain.ReasonStale, exclude)
	if err != nil {
		return nil, perr.FromPostgres(err, "sweep stale analyses")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
