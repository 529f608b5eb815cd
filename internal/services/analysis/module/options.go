package module

import (
	"time"

	"seochecker/internal/core/wordlist"
	"seochecker/internal/platform/config"
)

// Options controls extraction, scoring and the background runner
type Options struct {
	Workers         int           // concurrent domains in the extraction pool
	LangWorkers     int           // concurrent homepage fetches
	ProgressEvery   time.Duration // progress flush interval
	HomepageTimeout time.Duration
	DefaultLang     string
	EvalWorkers     int
	ListLimit       int

	StaleAfter   time.Duration // sweep window used by the API process at boot
	DrainTimeout time.Duration // how long shutdown waits for active runs
}

// FromConfig reads ANALYSIS_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	ac := cfg.Prefix("ANALYSIS_")
	return Options{
		Workers:         ac.MayInt("WORKERS", 50),
		LangWorkers:     ac.MayInt("LANG_WORKERS", 50),
		ProgressEvery:   ac.MayDuration("PROGRESS_EVERY", 2*time.Second),
		HomepageTimeout: ac.MayDuration("HOMEPAGE_TIMEOUT", 10*time.Second),
		DefaultLang:     ac.MayString("DEFAULT_LANG", wordlist.FallbackLang),
		EvalWorkers:     ac.MayInt("EVAL_WORKERS", 8),
		ListLimit:       ac.MayInt("LIST_LIMIT", 100),
		StaleAfter:      ac.MayDuration("STALE_AFTER", 6*time.Hour),
		DrainTimeout:    ac.MayDuration("DRAIN_TIMEOUT", 30*time.Second),
	}
}
