package service

import (
	"context"
	"sort"
	"sync"

	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/logger"
)

// Runner supervises background runs for the API process
// runs are detached from request contexts and are not cancelled on
// shutdown; whatever is still active when Shutdown gives up is left to the sweep
type Runner struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	active map[string]struct{}
	closed bool
	log    *logger.Logger
}

// NewRunner returns an open runner
func NewRunner() *Runner {
	return &Runner{active: map[string]struct{}{}, log: logger.Named("analysis-runner")}
}

// Start runs fn in its own goroutine under id
func (r *Runner) Start(id string, fn func(context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return perr.Unavailablef("runner is shutting down")
	}
	if _, ok := r.active[id]; ok {
		return perr.Conflictf("analysis %s is already running", id)
	}
	r.active[id] = struct{}{}
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.active, id)
			r.mu.Unlock()
		}()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().Str("analysis_id", id).Interface("panic", rec).Msg("runner: run panicked")
			}
		}()
		fn(logger.WithAnalysis(context.Background(), id))
	}()
	return nil
}

// Active returns the ids currently running, sorted
func (r *Runner) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.active))
	for id := range r.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Shutdown refuses new runs and waits for the active ones until ctx ends
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info().Msg("runner: drained")
		return nil
	case <-ctx.Done():
		left := r.Active()
		r.log.Warn().Strs("ids", left).Msg("runner: drain timed out; leaving runs for the sweep")
		return ctx.Err()
	}
}

// Inline runs every analysis synchronously in the caller; used by the CLI
type Inline struct{}

// Start runs fn before returning
func (Inline) Start(id string, fn func(context.Context)) error {
	fn(logger.WithAnalysis(context.Background(), id))
	return nil
}

// Active implements domain.RunnerPort
func (Inline) Active() []string { return nil }

// Shutdown implements domain.RunnerPort
func (Inline) Shutdown(context.Context) error { return nil }
