package ahrefs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"seochecker/internal/core/domainname"
	"seochecker/internal/platform/logger"
)

type bulkTarget struct {
	URL      string `json:"url"`
	Mode     string `json:"mode"`
	Protocol string `json:"protocol"`
}

type bulkRequest struct {
	Targets []bulkTarget `json:"targets"`
	Select  []string     `json:"select"`
}

// BulkMetrics runs the batch analysis snapshot in chunks of ChunkSize
// Results keep chunk order; any chunk failure aborts with that error
func (c *Client) BulkMetrics(ctx context.Context, targets []Target) ([]BulkRecord, error) {
	out := make([]BulkRecord, 0, len(targets))
	size := c.opts.ChunkSize
	for start := 0; start < len(targets); start += size {
		end := min(start+size, len(targets))
		recs, err := c.bulkChunk(ctx, targets[start:end])
		if err != nil {
			return nil, err
		}
		logger.C(ctx).Debug().Int("chunk_start", start).Int("records", len(recs)).Msg("ahrefs batch chunk done")
		out = append(out, recs...)
	}
	return out, nil
}

func (c *Client) bulkChunk(ctx context.Context, chunk []Target) ([]BulkRecord, error) {
	req := bulkRequest{Select: bulkSelect, Targets: make([]bulkTarget, 0, len(chunk))}
	for _, t := range chunk {
		t = t.withDefaults()
		req.Targets = append(req.Targets, bulkTarget{URL: t.Domain, Mode: t.Mode, Protocol: t.Protocol})
	}
	raw, err := c.rc.Call(ctx, http.MethodPost, EndpointBatchAnalysis, req)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Targets []BulkRecord `json:"targets"`
	}
	if err := decode(EndpointBatchAnalysis, raw, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Targets {
		resp.Targets[i].Domain = domainname.FromURL(resp.Targets[i].URL)
	}
	return resp.Targets, nil
}

// targetParams carries the addressing fields every site explorer call needs
func targetParams(t Target, sel ...string) url.Values {
	t = t.withDefaults()
	return url.Values{
		"target":   {t.Domain},
		"mode":     {t.Mode},
		"protocol": {t.Protocol},
		"select":   {strings.Join(sel, ",")},
	}
}

// MetricsHistory returns the monthly organic and paid history from date
func (c *Client) MetricsHistory(ctx context.Context, t Target, from string) ([]HistoryPoint, error) {
	q := targetParams(t, "date", "org_cost", "org_traffic", "paid_cost", "paid_traffic")
	q.Set("date_from", from)
	var resp struct {
		Metrics []HistoryPoint `json:"metrics"`
	}
	if err := c.get(ctx, EndpointMetricsHistory, q, &resp); err != nil {
		return nil, err
	}
	return resp.Metrics, nil
}

// TopPages returns up to ten pages by traffic for date
func (c *Client) TopPages(ctx context.Context, t Target, date string) ([]TopPage, error) {
	q := targetParams(t, "top_keyword_best_position_title", "sum_traffic")
	q.Set("date", date)
	q.Set("order_by", "sum_traffic")
	q.Set("limit", strconv.Itoa(10))
	var resp struct {
		Pages []TopPage `json:"pages"`
	}
	if err := c.get(ctx, EndpointTopPages, q, &resp); err != nil {
		return nil, err
	}
	return resp.Pages, nil
}

// Backlinks returns up to fifty inbound backlinks matching where
func (c *Client) Backlinks(ctx context.Context, t Target, where string) ([]Backlink, error) {
	q := targetParams(t, "anchor", "title", "url_from", "snippet_left", "snippet_right")
	q.Set("limit", "50")
	q.Set("where", where)
	var resp struct {
		Backlinks []Backlink `json:"backlinks"`
	}
	if err := c.get(ctx, EndpointBacklinks, q, &resp); err != nil {
		return nil, err
	}
	return resp.Backlinks, nil
}

// OutgoingAnchors returns external anchors matching where
func (c *Client) OutgoingAnchors(ctx context.Context, t Target, where string) ([]LinkedAnchor, error) {
	q := targetParams(t, "anchor", "dofollow_links")
	q.Set("where", where)
	var resp struct {
		Anchors []LinkedAnchor `json:"linkedanchors"`
	}
	if err := c.get(ctx, EndpointOutgoingAnchors, q, &resp); err != nil {
		return nil, err
	}
	return resp.Anchors, nil
}

// OrganicKeywords returns up to fifty ranking keywords matching where for date
func (c *Client) OrganicKeywords(ctx context.Context, t Target, date, where string) ([]OrganicKeyword, error) {
	q := targetParams(t, "keyword", "keyword_country", "is_best_position_set_top_3",
		"is_best_position_set_top_4_10", "is_best_position_set_top_11_50", "best_position_url")
	q.Set("date", date)
	q.Set("limit", "50")
	q.Set("where", where)
	var resp struct {
		Keywords []OrganicKeyword `json:"keywords"`
	}
	if err := c.get(ctx, EndpointOrganicKeywords, q, &resp); err != nil {
		return nil, err
	}
	return resp.Keywords, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, into any) error {
	raw, err := c.rc.Call(ctx, http.MethodGet, endpoint, q)
	if err != nil {
		return err
	}
	return decode(endpoint, raw, into)
}

// decode turns a shape mismatch into a ProviderError
func decode(endpoint string, raw json.RawMessage, into any) error {
	if err := json.Unmarshal(raw, into); err != nil {
		return &ProviderError{Provider: "ahrefs", Endpoint: endpoint, Status: http.StatusOK, Err: err}
	}
	return nil
}
