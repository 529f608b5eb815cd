// Package extract runs the provider extraction of one analysis: a bulk
// snapshot, language resolution, then a bounded pool of per domain sub-queries
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"seochecker/internal/adapters/providers/ahrefs"
	"seochecker/internal/core/langresolve"
	"seochecker/internal/core/multiresult"
	"seochecker/internal/core/rules"
	"seochecker/internal/core/wordlist"
	"seochecker/internal/modkit/repokit"
	"seochecker/internal/platform/logger"
	"seochecker/internal/platform/metrics"
	"seochecker/internal/services/analysis/domain"
)

// Options tunes the pool and the progress monitor
type Options struct {
	Workers       int
	ProgressEvery time.Duration
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 50
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = 2 * time.Second
	}
}

// Deps are the collaborators of an Extractor; Categories is optional
type Deps struct {
	DB         repokit.TxRunner
	Binder     repokit.Binder[domain.StoragePort]
	API        domain.ProviderPort
	Langs      domain.LangPort
	Categories domain.CategoryPort
	Words      *wordlist.Pack
}

// Extractor implements domain.ExtractorPort
type Extractor struct {
	db     repokit.TxRunner
	binder repokit.Binder[domain.StoragePort]
	api    domain.ProviderPort
	langs  domain.LangPort
	cats   domain.CategoryPort
	words  *wordlist.Pack
	opts   Options
	now    func() time.Time
	log    *logger.Logger
}

// New constructs an Extractor and panics on missing required deps
func New(d Deps, o Options) *Extractor {
	if d.DB == nil {
		panic("extract.Extractor requires a non nil TxRunner")
	}
	if d.Binder == nil {
		panic("extract.Extractor requires a non nil Repo binder")
	}
	if d.API == nil {
		panic("extract.Extractor requires a provider")
	}
	if d.Langs == nil {
		panic("extract.Extractor requires a language resolver")
	}
	if d.Words == nil {
		panic("extract.Extractor requires a word pack")
	}
	o.defaults()
	return &Extractor{
		db:     d.DB,
		binder: d.Binder,
		api:    d.API,
		langs:  d.Langs,
		cats:   d.Categories,
		words:  d.Words,
		opts:   o,
		now:    time.Now,
		log:    logger.Named("extract"),
	}
}

func (x *Extractor) repo() domain.StoragePort { return x.binder.Bind(x.db) }

// persist runs fn in one transaction so a sub-query lands whole or not at all
func (x *Extractor) persist(ctx context.Context, fn func(domain.StoragePort) error) error {
	return x.db.Tx(ctx, func(q repokit.Queryer) error { return fn(x.binder.Bind(q)) })
}

// Run extracts every domain of a. An error means a batch level failure:
// the snapshot could not be fetched or stored, or the final progress
// flush failed. Per domain failures only show up in the report.
func (x *Extractor) Run(ctx context.Context, a domain.Analysis) (domain.Report, error) {
	log := x.log.With().Str("analysis_id", a.ID).Logger()
	rep := domain.Report{Domains: len(a.Domains)}
	if len(a.Domains) == 0 {
		return rep, nil
	}

	targets := make([]ahrefs.Target, 0, len(a.Domains))
	for _, d := range a.Domains {
		targets = append(targets, ahrefs.NewTarget(d.Domain))
	}

	t0 := time.Now()
	records, err := x.api.BulkMetrics(ctx, targets)
	if err != nil {
		return rep, fmt.Errorf("bulk snapshot: %w", err)
	}
	log.Info().Int("domains", len(targets)).Int("records", len(records)).Dur("took", time.Since(t0)).
		Msg("extract: bulk snapshot fetched")

	rows, langs := x.snapshot(ctx, targets, records)
	if err := x.persist(ctx, func(r domain.StoragePort) error {
		return r.UpsertBatchMetrics(ctx, a.ID, rows)
	}); err != nil {
		return rep, fmt.Errorf("persist snapshot: %w", err)
	}

	for i := range targets {
		targets[i].Lang = langs[targets[i].Domain]
	}

	rep, err = x.pool(ctx, a.ID, targets, rep)
	if err != nil {
		return rep, fmt.Errorf("final progress flush: %w", err)
	}
	if rep.UnrecordedOutcomes > 0 {
		log.Error().Int("unrecorded_outcomes", rep.UnrecordedOutcomes).Msg("extract: outcome rows missing")
	}
	log.Info().Int("processed", rep.Processed).Int("failed_queries", rep.FailedQueries).Dur("took", time.Since(t0)).
		Msg("extract: done")
	return rep, nil
}

// snapshot resolves languages and categories and builds the rows to persist
// domains without a bulk record get a language but no snapshot row
func (x *Extractor) snapshot(ctx context.Context, targets []ahrefs.Target, records []ahrefs.BulkRecord) ([]domain.BatchMetrics, map[string]string) {
	byDomain := make(map[string]ahrefs.BulkRecord, len(records))
	for _, rec := range records {
		if rec.Domain != "" {
			byDomain[rec.Domain] = rec
		}
	}

	inputs := make([]langresolve.Input, 0, len(targets))
	domains := make([]string, 0, len(targets))
	for _, t := range targets {
		inputs = append(inputs, langresolve.Input{Domain: t.Domain, Countries: countries(byDomain[t.Domain].TopByCountry)})
		domains = append(domains, t.Domain)
	}
	resolved := x.langs.ResolveAll(ctx, inputs)

	var cats map[string]string
	if x.cats != nil {
		m, err := x.cats.Categories(ctx, domains)
		if err != nil {
			x.log.Warn().Err(err).Int("domains", len(domains)).Msg("extract: categories unavailable")
		}
		cats = m
	}

	langs := make(map[string]string, len(targets))
	rows := make([]domain.BatchMetrics, 0, len(records))
	for _, t := range targets {
		res := resolved[t.Domain]
		lang := res.Lang
		if lang == "" {
			lang = wordlist.FallbackLang
		}
		langs[t.Domain] = lang

		rec, ok := byDomain[t.Domain]
		if !ok {
			x.log.Warn().Str("domain", t.Domain).Msg("extract: no bulk record")
			continue
		}
		raw, _ := json.Marshal(rec)
		rows = append(rows, domain.BatchMetrics{
			Domain:                t.Domain,
			DomainRating:          rec.DomainRating.Float(),
			AhrefsRank:            rec.AhrefsRank.Int(),
			URLRating:             rec.URLRating.Float(),
			Backlinks:             rec.Backlinks.Int(),
			RefDomains:            rec.Refdomains.Int(),
			RefDomainsDofollow:    rec.RefdomainsDofollow.Int(),
			LinkedDomains:         rec.LinkedDomains.Int(),
			LinkedDomainsDofollow: rec.LinkedDomainsDofollow.Int(),
			OutgoingLinks:         rec.OutgoingLinks.Int(),
			OrgTraffic:            rec.OrgTraffic.Int(),
			OrgKeywords:           rec.OrgKeywords.Int(),
			OrgCost:               rec.OrgCost.Float(),
			PaidTraffic:           rec.PaidTraffic.Int(),
			TopByCountry:          countries(rec.TopByCountry),
			LangByTopTraffic:      res.TopTraffic,
			DetectedLang:          res.Detected,
			Lang:                  lang,
			Category:              cats[t.Domain],
			Raw:                   raw,
		})
	}
	return rows, langs
}

func countries(in []ahrefs.CountryTraffic) []rules.CountryTraffic {
	if len(in) == 0 {
		return nil
	}
	out := make([]rules.CountryTraffic, 0, len(in))
	for _, c := range in {
		out = append(out, rules.CountryTraffic{Country: c.Country, Traffic: c.Traffic})
	}
	return out
}

// pool fans the targets out to Workers goroutines while the monitor
// flushes progress; it returns once every domain is accounted for
func (x *Extractor) pool(ctx context.Context, id string, targets []ahrefs.Target, rep domain.Report) (domain.Report, error) {
	results := make(map[string]*multiresult.Result[int], len(domain.SubQueries))
	for _, api := range domain.SubQueries {
		results[api] = multiresult.New[int](api)
	}

	var done, failures, unrecorded atomic.Int64
	jobs := make(chan ahrefs.Target)
	var wg sync.WaitGroup
	for i := 0; i < min(x.opts.Workers, len(targets)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				failures.Add(int64(x.domain(ctx, id, t, results, &unrecorded)))
				done.Add(1)
				metrics.DomainDone()
			}
		}()
	}

	stop := make(chan struct{})
	flushed := make(chan error, 1)
	go func() { flushed <- x.monitor(ctx, id, &done, stop) }()

	for _, t := range targets {
		jobs <- t
	}
	close(jobs)
	wg.Wait()
	close(stop)
	err := <-flushed

	for _, api := range domain.SubQueries {
		if bad := results[api].FailedDomains(); len(bad) > 0 {
			x.log.Warn().Str("analysis_id", id).Str("api", api).Int("failed", len(bad)).
				Strs("domains", bad).Msg("extract: sub-query failures")
		}
	}
	rep.Processed = int(done.Load())
	rep.FailedQueries = int(failures.Load())
	rep.UnrecordedOutcomes = int(unrecorded.Load())
	return rep, err
}

// monitor is the single writer of processed_count; it flushes on every tick
// and once more after stop closes
func (x *Extractor) monitor(ctx context.Context, id string, done *atomic.Int64, stop <-chan struct{}) error {
	ctx = context.WithoutCancel(ctx)
	tick := time.NewTicker(x.opts.ProgressEvery)
	defer tick.Stop()

	last := int64(-1)
	flush := func() error {
		n := done.Load()
		if n == last {
			return nil
		}
		if err := x.repo().SetProcessed(ctx, id, int(n)); err != nil {
			return err
		}
		last = n
		return nil
	}

	for {
		select {
		case <-tick.C:
			if err := flush(); err != nil {
				x.log.Warn().Err(err).Str("analysis_id", id).Msg("extract: progress flush failed")
			}
		case <-stop:
			return flush()
		}
	}
}
