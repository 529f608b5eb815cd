package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	perr "seochecker/internal/platform/errors"
	kit "seochecker/internal/platform/testkit"
)

type memArchive struct {
	mu    sync.Mutex
	saved map[string]int
}

func (m *memArchive) Save(_ context.Context, endpoint string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string]int{}
	}
	m.saved[endpoint]++
	return nil
}

func newTestClient(t *testing.T, h http.Handler, arch *memArchive) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer tok")
	o := Options{Provider: "testprov", BaseURL: srv.URL + "/", Header: hdr}
	if arch != nil {
		o.Archive, o.ArchiveLabel = arch, "mem"
	}
	c := New(o)
	var sleeps []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, &sleeps
}

// hangUp closes the connection without answering
func hangUp(w http.ResponseWriter) {
	conn, _, err := w.(http.Hijacker).Hijack()
	if err == nil {
		_ = conn.Close()
	}
}

func TestCall_GETQueryAuthAndArchive(t *testing.T) {
	arch := &memArchive{}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/site/top" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing auth header")
		}
		if r.URL.Query().Get("target") != "example.com" || r.URL.Query().Get("limit") != "10" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"pages":[]}`))
	}), arch)

	body, err := c.Call(context.Background(), http.MethodGet, "/site/top", url.Values{"target": {"example.com"}, "limit": {"10"}})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(body) != `{"pages":[]}` {
		t.Fatalf("body = %s", body)
	}
	if arch.saved["/site/top"] != 1 {
		t.Fatalf("archive = %v", arch.saved)
	}
}

func TestCall_POSTSendsJSONBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		var in map[string]any
		b, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(b, &in); err != nil || in["select"] != "a,b" {
			t.Errorf("body = %s", b)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}), nil)

	if _, err := c.Call(context.Background(), http.MethodPost, "/batch", map[string]any{"select": "a,b"}); err != nil {
		t.Fatalf("Call: %v", err)
	}
}

func TestCall_StatusErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	arch := &memArchive{}
	c, sleeps := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"quota"}`))
	}), arch)

	_, err := c.Call(context.Background(), http.MethodGet, "/x", nil)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Status != http.StatusForbidden || pe.Endpoint != "/x" {
		t.Fatalf("err = %v", err)
	}
	kit.MustContain(t, pe.Error(), "quota")
	if perr.CodeOf(err) != perr.ErrorCodeProvider || !IsProviderError(err) {
		t.Fatalf("code = %v", perr.CodeOf(err))
	}
	if hits.Load() != 1 || len(*sleeps) != 0 || len(arch.saved) != 0 {
		t.Fatalf("hits=%d sleeps=%v archive=%v", hits.Load(), *sleeps, arch.saved)
	}
}

func TestCall_MalformedJSON(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>oops`))
	}), nil)
	_, err := c.Call(context.Background(), http.MethodGet, "/x", nil)
	if !IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
	kit.MustContain(t, err.Error(), "malformed")
}

func TestCall_RetriesTransientThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	c, sleeps := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			hangUp(w)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}), nil)

	if _, err := c.Call(context.Background(), http.MethodGet, "/x", nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits = %d", hits.Load())
	}
	if len(*sleeps) != 2 || (*sleeps)[0] != time.Second || (*sleeps)[1] != 2*time.Second {
		t.Fatalf("sleeps = %v", *sleeps)
	}
}

func TestCall_GivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		hangUp(w)
	}), nil)

	_, err := c.Call(context.Background(), http.MethodGet, "/x", nil)
	if err == nil || IsProviderError(err) {
		t.Fatalf("expected a transport error, got %v", err)
	}
	kit.MustContain(t, err.Error(), "after 3 attempts")
	if hits.Load() != 3 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestCall_RejectsBadParams(t *testing.T) {
	c := New(Options{Provider: "p", BaseURL: "http://127.0.0.1:1"})
	if _, err := c.Call(context.Background(), http.MethodGet, "/x", map[string]string{"a": "b"}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("GET with struct params err = %v", err)
	}
	if _, err := c.Call(context.Background(), http.MethodPost, "/x", url.Values{}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("POST with query params err = %v", err)
	}
}

func TestCall_CanceledContextStopsBeforeSending(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Call(ctx, http.MethodGet, "/x", nil); err == nil {
		t.Fatalf("expected error")
	}
	if hits.Load() != 0 {
		t.Fatalf("request should not be sent")
	}
}

func TestBackoff_Capped(t *testing.T) {
	c := New(Options{Provider: "p"})
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, w := range want {
		if got := c.backoff(i); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", i, got, w)
		}
	}
	if got := c.backoff(80); got != 10*time.Second {
		t.Fatalf("overflow backoff = %v", got)
	}
}

func TestFetch_NoProviderHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("download should not carry auth")
		}
		_, _ = w.Write([]byte("line1\nline2\n"))
	}))
	defer srv.Close()
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer tok")
	c := New(Options{Provider: "p", Header: hdr})
	b, err := c.Fetch(context.Background(), srv.URL+"/file")
	if err != nil || string(b) != "line1\nline2\n" {
		t.Fatalf("Fetch = %q,%v", b, err)
	}
}
