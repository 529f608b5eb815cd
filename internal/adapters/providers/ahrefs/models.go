package ahrefs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	ptime "seochecker/internal/platform/time"
)

// Num decodes numbers that may arrive as numbers, numeric strings or null
// null and empty strings decode as 0
type Num float64

// UnmarshalJSON implements json.Unmarshaler
func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("ahrefs: numeric string %q: %w", s, err)
		}
		*n = Num(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Num(f)
	return nil
}

// Float returns the value as float64
func (n Num) Float() float64 { return float64(n) }

// Int truncates toward zero
func (n Num) Int() int64 { return int64(n) }

// Flag decodes booleans sent as bools, 0/1, strings or null
type Flag bool

// UnmarshalJSON implements json.Unmarshaler
func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch strings.ToLower(s) {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("ahrefs: bad flag %s", b)
	}
	return nil
}

// CountryTraffic is one entry of org_traffic_top_by_country
// the API sends [country, traffic] pairs; objects are accepted too
type CountryTraffic struct {
	Country string
	Traffic int64
}

// UnmarshalJSON implements json.Unmarshaler
func (c *CountryTraffic) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var pair []json.RawMessage
		if err := json.Unmarshal(b, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("ahrefs: country pair has %d elements", len(pair))
		}
		var n Num
		if err := json.Unmarshal(pair[0], &c.Country); err != nil {
			return err
		}
		if err := json.Unmarshal(pair[1], &n); err != nil {
			return err
		}
		c.Traffic = n.Int()
		return nil
	}
	var obj struct {
		Country string `json:"country"`
		Traffic Num    `json:"traffic"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	c.Country, c.Traffic = obj.Country, obj.Traffic.Int()
	return nil
}

// BulkRecord is one target of the batch analysis snapshot
type BulkRecord struct {
	// Domain is URL normalized; URL is what the API echoed
	Domain string `json:"-"`
	URL    string `json:"url"`
	IP     string `json:"ip"`
	Mode   string `json:"mode"`

	Protocol string `json:"protocol"`
	Index    Num    `json:"index"`

	AhrefsRank   Num `json:"ahrefs_rank"`
	DomainRating Num `json:"domain_rating"`
	URLRating    Num `json:"url_rating"`

	Backlinks         Num `json:"backlinks"`
	BacklinksDofollow Num `json:"backlinks_dofollow"`
	BacklinksInternal Num `json:"backlinks_internal"`
	BacklinksNofollow Num `json:"backlinks_nofollow"`
	BacklinksRedirect Num `json:"backlinks_redirect"`

	Refdomains         Num `json:"refdomains"`
	RefdomainsDofollow Num `json:"refdomains_dofollow"`
	RefdomainsNofollow Num `json:"refdomains_nofollow"`
	Refips             Num `json:"refips"`
	RefipsSubnets      Num `json:"refips_subnets"`

	LinkedDomains         Num `json:"linked_domains"`
	LinkedDomainsDofollow Num `json:"linked_domains_dofollow"`
	OutgoingLinks         Num `json:"outgoing_links"`
	OutgoingLinksDofollow Num `json:"outgoing_links_dofollow"`

	OrgCost           Num              `json:"org_cost"`
	OrgTraffic        Num              `json:"org_traffic"`
	OrgKeywords       Num              `json:"org_keywords"`
	OrgKeywords1To3   Num              `json:"org_keywords_1_3"`
	OrgKeywords4To10  Num              `json:"org_keywords_4_10"`
	OrgKeywords11To20 Num              `json:"org_keywords_11_20"`
	OrgKeywords21To50 Num              `json:"org_keywords_21_50"`
	OrgKeywords51Plus Num              `json:"org_keywords_51_plus"`
	TopByCountry      []CountryTraffic `json:"org_traffic_top_by_country"`

	PaidAds      Num `json:"paid_ads"`
	PaidCost     Num `json:"paid_cost"`
	PaidKeywords Num `json:"paid_keywords"`
	PaidTraffic  Num `json:"paid_traffic"`
}

// bulkSelect is every field the snapshot persists
var bulkSelect = []string{
	"ahrefs_rank", "backlinks", "backlinks_dofollow", "backlinks_internal", "backlinks_nofollow",
	"backlinks_redirect", "domain_rating", "index", "ip", "linked_domains", "linked_domains_dofollow",
	"mode", "org_cost", "org_keywords", "org_keywords_11_20", "org_keywords_1_3", "org_keywords_21_50",
	"org_keywords_4_10", "org_keywords_51_plus", "org_traffic", "org_traffic_top_by_country",
	"outgoing_links", "outgoing_links_dofollow", "paid_ads", "paid_cost", "paid_keywords", "paid_traffic",
	"protocol", "refdomains", "refdomains_dofollow", "refdomains_nofollow", "refips", "refips_subnets",
	"url", "url_rating",
}

// HistoryPoint is one month of metrics history
type HistoryPoint struct {
	Date        string `json:"date"`
	OrgCost     Num    `json:"org_cost"`
	OrgTraffic  Num    `json:"org_traffic"`
	PaidCost    Num    `json:"paid_cost"`
	PaidTraffic Num    `json:"paid_traffic"`
}

// Day parses Date as YYYY-MM-DD or RFC 3339
func (p HistoryPoint) Day() (time.Time, error) { return ParseDay(p.Date) }

// ParseDay parses YYYY-MM-DD or RFC 3339 into a UTC day
func ParseDay(s string) (time.Time, error) {
	t, err := ptime.ParseDay(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("ahrefs: %w", err)
	}
	return t, nil
}

// TopPage is one page of the top pages report, in API order
type TopPage struct {
	Title   string `json:"top_keyword_best_position_title"`
	Traffic Num    `json:"sum_traffic"`
}

// Backlink is one inbound backlink with its anchor text
type Backlink struct {
	Anchor       string `json:"anchor"`
	Title        string `json:"title"`
	URLFrom      string `json:"url_from"`
	SnippetLeft  string `json:"snippet_left"`
	SnippetRight string `json:"snippet_right"`
}

// LinkedAnchor is one outbound anchor
type LinkedAnchor struct {
	Anchor        string `json:"anchor"`
	DofollowLinks Num    `json:"dofollow_links"`
}

// OrganicKeyword is one ranking keyword with its best position bucket
type OrganicKeyword struct {
	Keyword        string `json:"keyword"`
	KeywordCountry string `json:"keyword_country"`
	Top3           Flag   `json:"is_best_position_set_top_3"`
	Top4To10       Flag   `json:"is_best_position_set_top_4_10"`
	Top11To50      Flag   `json:"is_best_position_set_top_11_50"`
	BestURL        string `json:"best_position_url"`
}
