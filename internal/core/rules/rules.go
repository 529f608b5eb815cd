// Package rules scores one domain of an analysis against a fixed battery of
// SEO rules and folds the results into an overall evaluation
package rules

import (
	"context"
	"time"

	"seochecker/internal/core/wordlist"
)

// OverallRule is the rule name of the synthetic aggregate evaluation
const OverallRule = "overall"

// Area groups rules by the concern they score
type Area string

// Rule areas
const (
	AreaSafety    Area = "safety"
	AreaAuthority Area = "authority"
	AreaRelevance Area = "relevance"
	AreaTraffic   Area = "traffic"
)

// Direction is the side of a link an anchor was seen on
type Direction string

// Link directions
const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Subject identifies the domain under evaluation
type Subject struct {
	AnalysisID string
	Domain     string
}

// Evaluation is one rule outcome for one domain
type Evaluation struct {
	Domain   string  `json:"domain"`
	Rule     string  `json:"rule_name"`
	Score    float64 `json:"score"`
	Critical bool    `json:"critical_violation"`
	Details  string  `json:"details"`
}

// CountryTraffic is organic traffic attributed to one country
type CountryTraffic struct {
	Country string `json:"country"`
	Traffic int64  `json:"traffic"`
}

// DatePoint is one sample of the organic traffic history
type DatePoint struct {
	Date    time.Time `json:"date"`
	Traffic int64     `json:"traffic"`
}

// TopPage is one entry of the top pages distribution
type TopPage struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Traffic  int64  `json:"traffic"`
}

// LinkCounts holds dofollow linked domains (In) and referring domains (Out)
// a zero value means the provider had no number
type LinkCounts struct {
	In  int64 `json:"in"`
	Out int64 `json:"out"`
}

// KeywordBuckets counts categorized keyword hits by best SERP position
type KeywordBuckets struct {
	Top3      int `json:"top3"`
	Top4To10  int `json:"top4_10"`
	Top11To50 int `json:"top11_50"`
}

// Metrics is the read port over persisted per domain metrics
type Metrics interface {
	DomainRating(ctx context.Context, s Subject) (float64, error)
	TrafficByCountry(ctx context.Context, s Subject) ([]CountryTraffic, error)
	TrafficByDate(ctx context.Context, s Subject) ([]DatePoint, error)
	LinkCounts(ctx context.Context, s Subject) (LinkCounts, error)
	TopPages(ctx context.Context, s Subject) ([]TopPage, error)
	AnchorHits(ctx context.Context, s Subject, dir Direction, cat wordlist.Category) (int, error)
	KeywordHits(ctx context.Context, s Subject, cat wordlist.Category) (KeywordBuckets, error)
}

// Rule scores one aspect of a domain
type Rule interface {
	// ID is the stable name stored as rule_name
	ID() string
	Title() string
	// Weight is advisory; Aggregate ignores it
	Weight() float64
	Area() Area
	DealBreaker() bool
	Eval(ctx context.Context, s Subject, m Metrics) (Evaluation, error)
}

// base carries the descriptive fields every rule shares
type base struct {
	id          string
	title       string
	weight      float64
	area        Area
	dealBreaker bool
}

func (b base) ID() string        { return b.id }
func (b base) Title() string     { return b.title }
func (b base) Weight() float64   { return b.weight }
func (b base) Area() Area        { return b.area }
func (b base) DealBreaker() bool { return b.dealBreaker }

func (b base) result(s Subject, score float64, critical bool, details string) Evaluation {
	return Evaluation{Domain: s.Domain, Rule: b.id, Score: score, Critical: critical, Details: details}
}
