// Package similarweb fetches main website categories through the batch
// report API
package similarweb

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"seochecker/internal/adapters/providers/archive"
	"seochecker/internal/adapters/providers/rest"
	"seochecker/internal/core/domainname"
	"seochecker/internal/platform/config"
	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/logger"
)

const baseURLDefault = "https://api.similarweb.com"

// Endpoints
const (
	EndpointRequestReport = "/batch/v4/request-report"
	EndpointRequestStatus = "/v3/batch/request-status/"
)

// Options configures the Client
type Options struct {
	Enabled   bool
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	PollEvery time.Duration
	PollMax   int
}

// OptionsFromEnv reads SIMILARWEB_*
func OptionsFromEnv() Options {
	c := config.New().Prefix("SIMILARWEB_")
	return Options{
		Enabled:   c.MayBool("ENABLED", false),
		BaseURL:   c.MayString("BASE_URL", baseURLDefault),
		APIKey:    c.MayString("API_KEY", ""),
		Timeout:   c.MayDuration("TIMEOUT", 90*time.Second),
		PollEvery: c.MayDuration("POLL_EVERY", 10*time.Second),
		PollMax:   c.MayInt("POLL_MAX", 10),
	}
}

// Transport is the slice of rest.Client the category client needs
type Transport interface {
	Call(ctx context.Context, method, endpoint string, params any) (json.RawMessage, error)
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Client requests and downloads category reports
type Client struct {
	rc    Transport
	opts  Options
	log   *logger.Logger
	sleep func(context.Context, time.Duration) error
}

// NewClient builds a Client on the shared provider transport
func NewClient(o Options, arch archive.Archive, archLabel string) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	hdr := http.Header{}
	hdr.Set("api-key", o.APIKey)
	rc := rest.New(rest.Options{
		Provider:     "similarweb",
		BaseURL:      o.BaseURL,
		Timeout:      o.Timeout,
		Header:       hdr,
		Archive:      arch,
		ArchiveLabel: archLabel,
	})
	return NewWithTransport(rc, o)
}

// NewWithTransport builds a Client over any transport
func NewWithTransport(rc Transport, o Options) *Client {
	if o.PollEvery <= 0 {
		o.PollEvery = 10 * time.Second
	}
	if o.PollMax <= 0 {
		o.PollMax = 10
	}
	return &Client{rc: rc, opts: o, log: logger.Named("similarweb"), sleep: sleepCtx}
}

type reportTable struct {
	VTable      string         `json:"vtable"`
	Granularity string         `json:"granularity"`
	Latest      bool           `json:"latest"`
	Filters     map[string]any `json:"filters"`
	Metrics     []string       `json:"metrics"`
}

type reportRequest struct {
	ReportName          string            `json:"report_name"`
	DeliveryInformation map[string]string `json:"delivery_information"`
	ReportQuery         struct {
		Tables []reportTable `json:"tables"`
	} `json:"report_query"`
}

// SubmitCategoryReport asks for main_category of every domain
func (c *Client) SubmitCategoryReport(ctx context.Context, domains []string) (string, error) {
	var req reportRequest
	req.ReportName = "domain categories"
	req.DeliveryInformation = map[string]string{"response_format": "json"}
	req.ReportQuery.Tables = []reportTable{{
		VTable:      "website",
		Granularity: "monthly",
		Latest:      true,
		Filters:     map[string]any{"domains": domains, "include_subdomains": true},
		Metrics:     []string{"main_category"},
	}}

	raw, err := c.rc.Call(ctx, http.MethodPost, EndpointRequestReport, req)
	if err != nil {
		return "", err
	}
	var resp struct {
		ReportID string `json:"report_id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.ReportID == "" {
		return "", &rest.ProviderError{Provider: "similarweb", Endpoint: EndpointRequestReport, Status: http.StatusOK,
			Err: fmt.Errorf("no report id"), Body: string(raw)}
	}
	return resp.ReportID, nil
}

type reportStatus struct {
	Status      string `json:"status"`
	DownloadURL string `json:"download_url"`
}

// AwaitCategories polls the report until completed then downloads it
func (c *Client) AwaitCategories(ctx context.Context, reportID string) (map[string]string, error) {
	endpoint := EndpointRequestStatus + url.PathEscape(reportID)
	st, err := c.status(ctx, endpoint)
	for n := 0; err == nil && st.Status != "completed" && n < c.opts.PollMax; n++ {
		if serr := c.sleep(ctx, c.opts.PollEvery); serr != nil {
			return nil, perr.Wrapf(serr, perr.ErrorCodeTimeout, "similarweb report %s", reportID)
		}
		st, err = c.status(ctx, endpoint)
	}
	if err != nil {
		return nil, err
	}
	if st.Status != "completed" || st.DownloadURL == "" {
		return nil, perr.Timeoutf("similarweb report %s not completed after %d polls, last status %q",
			reportID, c.opts.PollMax, st.Status)
	}

	body, err := c.rc.Fetch(ctx, st.DownloadURL)
	if err != nil {
		return nil, err
	}
	return parseCategories(body)
}

func (c *Client) status(ctx context.Context, endpoint string) (reportStatus, error) {
	var st reportStatus
	raw, err := c.rc.Call(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return st, &rest.ProviderError{Provider: "similarweb", Endpoint: endpoint, Status: http.StatusOK, Err: err}
	}
	c.log.Debug().Str("status", st.Status).Msg("similarweb report status")
	return st, nil
}

// parseCategories reads the NDJSON report; domains are normalized
func parseCategories(body []byte) (map[string]string, error) {
	out := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var row struct {
			Domain       string `json:"domain"`
			MainCategory string `json:"main_category"`
		}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, &rest.ProviderError{Provider: "similarweb", Endpoint: "download", Status: http.StatusOK, Err: err}
		}
		if row.Domain == "" {
			continue
		}
		out[domainname.FromURL(row.Domain)] = row.MainCategory
	}
	return out, sc.Err()
}

// Categories submits and awaits in one go
func (c *Client) Categories(ctx context.Context, domains []string) (map[string]string, error) {
	id, err := c.SubmitCategoryReport(ctx, domains)
	if err != nil {
		return nil, err
	}
	return c.AwaitCategories(ctx, id)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
