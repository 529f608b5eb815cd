package domain

import (
	"time"

	"seochecker/internal/core/rules"
	"seochecker/internal/core/wordlist"
)

// Status is the lifecycle state of an analysis
type Status string

// Analysis states; completed and failed are terminal
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Sub-query API names, in the order a domain runs them
const (
	APIHistory         = "metrics_history"
	APITopPages        = "top_pages"
	APIBacklinks       = "backlinks"
	APIOutgoingAnchors = "outgoing_anchors"
	APIOrganicKeywords = "organic_keywords"
)

// SubQueries lists the per domain sub-queries in execution order
var SubQueries = []string{APIHistory, APITopPages, APIBacklinks, APIOutgoingAnchors, APIOrganicKeywords}

// ReasonStale is the failure reason written by the sweep
const ReasonStale = "stale"

// AnalysisDomain is one submitted domain; immutable once stored
type AnalysisDomain struct {
	Domain string   `json:"domain" validate:"required"`
	Price  *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Notes  string   `json:"notes,omitempty" validate:"max=2000"`
}

// Analysis is one batch job
type Analysis struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Status         Status           `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	ProcessedCount int              `json:"processed_count"`
	FailureReason  string           `json:"failure_reason,omitempty"`
	Domains        []AnalysisDomain `json:"domains"`
}

// SubmitInput is the payload that creates an analysis
type SubmitInput struct {
	Name    string           `json:"name" validate:"required,max=200"`
	Domains []AnalysisDomain `json:"domains" validate:"required,min=1,max=5000,dive"`
}

// StatusView is the progress summary of an analysis
type StatusView struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	TotalDomains     int        `json:"total_domains"`
	ProcessedDomains int        `json:"processed_domains"`
	FailedQueries    int        `json:"failed_queries"`
	FailureReason    string     `json:"failure_reason,omitempty"`
}

// Outcome is the success or failure row of one (domain, api) sub-query
type Outcome struct {
	Domain string `json:"domain"`
	API    string `json:"api"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Items  int    `json:"items"`
}

// BatchMetrics is the bulk snapshot of one domain
type BatchMetrics struct {
	Domain string

	DomainRating          float64
	AhrefsRank            int64
	URLRating             float64
	Backlinks             int64
	RefDomains            int64
	RefDomainsDofollow    int64
	LinkedDomains         int64
	LinkedDomainsDofollow int64
	OutgoingLinks         int64
	OrgTraffic            int64
	OrgKeywords           int64
	OrgCost               float64
	PaidTraffic           int64

	TopByCountry []rules.CountryTraffic

	LangByTopTraffic string
	DetectedLang     string
	Lang             string
	Category         string

	// Raw is the provider record as received
	Raw []byte
}

// HistoryPoint is one sample of the metrics history
type HistoryPoint struct {
	Date        time.Time
	OrgTraffic  int64
	OrgCost     float64
	PaidTraffic int64
	PaidCost    float64
}

// AnchorHit is one categorized anchor text
type AnchorHit struct {
	Direction rules.Direction
	Category  wordlist.Category
	Anchor    string
	// SourceURL is the linking page for inbound anchors, empty outbound
	SourceURL string
	Snippet   string
	Links     int64
}

// KeywordHit is one categorized organic keyword
type KeywordHit struct {
	Category  wordlist.Category
	Keyword   string
	Country   string
	Top3      bool
	Top4To10  bool
	Top11To50 bool
	BestURL   string
}

// DomainResult is the scored view of one domain
type DomainResult struct {
	Domain           string                 `json:"domain"`
	Lang             string                 `json:"lang,omitempty"`
	Category         string                 `json:"category,omitempty"`
	DomainRating     *float64               `json:"domain_rating,omitempty"`
	TrafficByCountry []rules.CountryTraffic `json:"traffic_by_country"`
	History          []rules.DatePoint      `json:"history"`
	TopPageShare     *float64               `json:"top_page_share,omitempty"`
	LinkRatio        *float64               `json:"link_ratio,omitempty"`

	// AnchorHits is direction -> category -> count
	AnchorHits  map[rules.Direction]map[wordlist.Category]int `json:"anchor_hits"`
	KeywordHits map[wordlist.Category]rules.KeywordBuckets    `json:"keyword_hits"`
	Evaluations []rules.Evaluation                            `json:"evaluations"`
	Failures    []Outcome                                     `json:"failures,omitempty"`
}

// Report summarizes one extraction pass. UnrecordedOutcomes counts
// outcome rows that could not be written even after a retry.
type Report struct {
	Domains            int `json:"domains"`
	Processed          int `json:"processed"`
	FailedQueries      int `json:"failed_queries"`
	UnrecordedOutcomes int `json:"unrecorded_outcomes"`
}
