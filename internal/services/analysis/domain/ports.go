// Package domain holds the analysis types and the ports its service depends on
package domain

import (
	"context"
	"time"

	"seochecker/internal/adapters/providers/ahrefs"
	"seochecker/internal/core/langresolve"
	"seochecker/internal/core/rules"
)

// ServicePort is the interface implemented by the analysis service
type ServicePort interface {
	Submit(ctx context.Context, in SubmitInput) (StatusView, error)
	Status(ctx context.Context, id string) (StatusView, error)
	Results(ctx context.Context, id string) ([]DomainResult, error)
	List(ctx context.Context) ([]StatusView, error)
	Run(ctx context.Context, id string) error
	Evaluate(ctx context.Context, id string) ([]DomainResult, error)
	Sweep(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// RunnerPort starts and supervises background runs
type RunnerPort interface {
	Start(id string, fn func(context.Context)) error
	Active() []string
	Shutdown(ctx context.Context) error
}

// StoragePort is the persistence surface; every write is an upsert
// it also serves the persisted metrics to the rule engine
type StoragePort interface {
	rules.Metrics

	CreateAnalysis(ctx context.Context, a Analysis) error
	GetAnalysis(ctx context.Context, id string) (Analysis, error)
	StatusOf(ctx context.Context, id string) (StatusView, error)
	ListAnalyses(ctx context.Context, limit int) ([]StatusView, error)

	// MarkRunning moves pending or running to running; false when terminal
	MarkRunning(ctx context.Context, id string) (bool, error)
	// SetProcessed never lowers the count nor exceeds the domain count
	SetProcessed(ctx context.Context, id string, n int) error
	MarkCompleted(ctx context.Context, id string) (bool, error)
	MarkFailed(ctx context.Context, id, reason string) (bool, error)
	SweepStale(ctx context.Context, olderThan time.Duration, exclude []string) ([]string, error)

	UpsertBatchMetrics(ctx context.Context, id string, rows []BatchMetrics) error
	BatchMetrics(ctx context.Context, id string) ([]BatchMetrics, error)

	UpsertHistory(ctx context.Context, id, domain string, pts []HistoryPoint) error
	UpsertTopPages(ctx context.Context, id, domain string, pages []rules.TopPage) error
	UpsertAnchorHits(ctx context.Context, id, domain string, hits []AnchorHit) error
	UpsertKeywordHits(ctx context.Context, id, domain string, hits []KeywordHit) error

	RecordOutcome(ctx context.Context, id string, o Outcome) error
	Outcomes(ctx context.Context, id string) ([]Outcome, error)

	UpsertEvaluations(ctx context.Context, id string, evals []rules.Evaluation) error
	Evaluations(ctx context.Context, id string) ([]rules.Evaluation, error)
}

// ProviderPort is the metrics provider used by the extractor
type ProviderPort interface {
	BulkMetrics(ctx context.Context, targets []ahrefs.Target) ([]ahrefs.BulkRecord, error)
	MetricsHistory(ctx context.Context, t ahrefs.Target, from string) ([]ahrefs.HistoryPoint, error)
	TopPages(ctx context.Context, t ahrefs.Target, date string) ([]ahrefs.TopPage, error)
	Backlinks(ctx context.Context, t ahrefs.Target, where string) ([]ahrefs.Backlink, error)
	OutgoingAnchors(ctx context.Context, t ahrefs.Target, where string) ([]ahrefs.LinkedAnchor, error)
	OrganicKeywords(ctx context.Context, t ahrefs.Target, date, where string) ([]ahrefs.OrganicKeyword, error)
	HistoryFrom() string
}

// CategoryPort resolves a site category per domain; optional
type CategoryPort interface {
	Categories(ctx context.Context, domains []string) (map[string]string, error)
}

// LangPort resolves the working language of a batch of domains
type LangPort interface {
	ResolveAll(ctx context.Context, in []langresolve.Input) map[string]langresolve.Resolution
}

// ExtractorPort runs the extraction of one analysis
type ExtractorPort interface {
	Run(ctx context.Context, a Analysis) (Report, error)
}
