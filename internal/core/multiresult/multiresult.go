// Package multiresult accumulates the per domain outcome of one provider call
package multiresult

import (
	"fmt"
	"sort"
	"sync"
)

// Result keeps, per domain, either a payload or an error, never both
type Result[T any] struct {
	API string

	mu        sync.RWMutex
	successes map[string]T
	failures  map[string]error
}

// New starts an empty accumulator for api
func New[T any](api string) *Result[T] {
	return &Result[T]{
		API:       api,
		successes: map[string]T{},
		failures:  map[string]error{},
	}
}

// RecordSuccess stores v for domain, replacing any earlier outcome
func (r *Result[T]) RecordSuccess(domain string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failures, domain)
	r.successes[domain] = v
}

// RecordFailure stores err for domain, replacing any earlier outcome
func (r *Result[T]) RecordFailure(domain string, err error) {
	if err == nil {
		err = fmt.Errorf("%s: unknown failure", r.API)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.successes, domain)
	r.failures[domain] = err
}

// Success returns the payload recorded for domain
func (r *Result[T]) Success(domain string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.successes[domain]
	return v, ok
}

// Failure returns the error recorded for domain
func (r *Result[T]) Failure(domain string) (error, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	err, ok := r.failures[domain]
	return err, ok
}

// Successes returns a copy of the success map
func (r *Result[T]) Successes() map[string]T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]T, len(r.successes))
	for k, v := range r.successes {
		out[k] = v
	}
	return out
}

// Failures returns a copy of the failure map
func (r *Result[T]) Failures() map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]error, len(r.failures))
	for k, v := range r.failures {
		out[k] = v
	}
	return out
}

// FailedDomains lists failed domains sorted
func (r *Result[T]) FailedDomains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.failures))
	for d := range r.failures {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Len is the number of domains with an outcome
func (r *Result[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.successes) + len(r.failures)
}

// Query runs fn and records its outcome for domain; a panic in fn is
// recorded as a failure. The recorded error is returned.
func Query[T any](r *Result[T], domain string, fn func() (T, error)) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s: panic: %v", r.API, p)
			r.RecordFailure(domain, err)
		}
	}()
	v, err := fn()
	if err != nil {
		r.RecordFailure(domain, err)
		return err
	}
	r.RecordSuccess(domain, v)
	return nil
}
