package similarweb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	perr "seochecker/internal/platform/errors"
)

func newFake(t *testing.T, readyAfter int32) (*Client, *atomic.Int32, *[]time.Duration) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("POST "+EndpointRequestReport, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req reportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.ReportQuery.Tables) != 1 ||
			req.ReportQuery.Tables[0].Metrics[0] != "main_category" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"report_id":"r-1","status":"pending"}`))
	})
	mux.HandleFunc("GET "+EndpointRequestStatus+"r-1", func(w http.ResponseWriter, _ *http.Request) {
		if polls.Add(1) < readyAfter {
			_, _ = w.Write([]byte(`{"status":"pending"}`))
			return
		}
		fmt.Fprintf(w, `{"status":"completed","download_url":%q}`, srvURL+"/files/r-1.ndjson")
	})
	mux.HandleFunc("GET /files/r-1.ndjson", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{\"domain\":\"www.a.com\",\"main_category\":\"Gambling\"}\n\n{\"domain\":\"b.com\",\"main_category\":\"News\"}\n"))
	})
	srv := httptest.NewServer(mux)
	srvURL = srv.URL
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k", PollMax: 3, PollEvery: time.Second}, nil, "")
	var sleeps []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, &polls, &sleeps
}

func TestCategories_PollsThenDownloads(t *testing.T) {
	c, polls, sleeps := newFake(t, 3)
	cats, err := c.Categories(context.Background(), []string{"a.com", "b.com"})
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if cats["a.com"] != "Gambling" || cats["b.com"] != "News" || len(cats) != 2 {
		t.Fatalf("cats = %v", cats)
	}
	if polls.Load() != 3 || len(*sleeps) != 2 {
		t.Fatalf("polls = %d sleeps = %v", polls.Load(), *sleeps)
	}
}

func TestAwaitCategories_GivesUp(t *testing.T) {
	c, polls, _ := newFake(t, 100)
	_, err := c.AwaitCategories(context.Background(), "r-1")
	if !perr.IsCode(err, perr.ErrorCodeTimeout) {
		t.Fatalf("err = %v", err)
	}
	if polls.Load() != 4 {
		t.Fatalf("expected first poll plus 3 retries, got %d", polls.Load())
	}
}

func TestAwaitCategories_SleepCanceled(t *testing.T) {
	c, _, _ := newFake(t, 100)
	c.sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }
	_, err := c.AwaitCategories(context.Background(), "r-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseCategories_BadLine(t *testing.T) {
	if _, err := parseCategories([]byte("{not json}\n")); err == nil {
		t.Fatalf("expected error")
	}
}
