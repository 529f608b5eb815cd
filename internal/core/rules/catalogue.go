package rules

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"seochecker/internal/core/wordlist"
)

// Default returns the rule battery in evaluation order
func Default() []Rule {
	return []Rule{
		NewDomainRating(),
		NewOrganicTraffic(),
		NewHistoricalOrganicTraffic(),
		NewGeography(),
		NewInOutRatio(),
		NewSingleTopPageTraffic(),
		newAnchorWords("ForbiddenWordsBacklinksRule", "Forbidden Words in Backlinks", DirectionIn, wordlist.Forbidden),
		newAnchorWords("SpamWordsAnchorsRule", "Spam Words in Anchors", DirectionOut, wordlist.Spam),
		newAnchorWords("ForbiddenWordsAnchorRule", "Forbidden Words in Anchors", DirectionOut, wordlist.Forbidden),
		newKeywordWords("ForbiddenWordsOrganicKeywordsRule", "Forbidden Words in Organic Keywords", wordlist.Forbidden),
		newKeywordWords("SpamWordsOrganicKeywordsRule", "Spam Words in Organic Keywords", wordlist.Spam),
	}
}

// DomainRating scores authority on a 0-100 scale
type DomainRating struct {
	base
	MinRating float64
}

// NewDomainRating builds the rule with a critical floor of 30
func NewDomainRating() *DomainRating {
	return &DomainRating{
		base:      base{id: "DomainRatingRule", title: "Domain Rating", weight: 1, area: AreaAuthority},
		MinRating: 30,
	}
}

// Eval implements Rule
func (r *DomainRating) Eval(ctx context.Context, s Subject, m Metrics) (Evaluation, error) {
	dr, err := m.DomainRating(ctx, s)
	if err != nil {
		return Evaluation{}, err
	}
	dr = math.Trunc(dr)
	score := math.Min(dr/100, 1)
	return r.result(s, score, dr < r.MinRating, fmt.Sprintf("dr=%.0f", dr)), nil
}

// OrganicTraffic fails closed unless every country clears MinTraffic and
// penalizes a top country holding less than TopShare of the total
type OrganicTraffic struct {
	base
	MinTraffic int64
	TopShare   float64
}

// NewOrganicTraffic builds the rule with a 10000 per country floor and a 0.4 share
func NewOrganicTraffic() *OrganicTraffic {
	return &OrganicTraffic{
		base:       base{id: "OrganicTrafficRule", title: "Organic Traffic", weight: 1, area: AreaTraffic},
		MinTraffic: 10000,
		TopShare:   0.4,
	}
}

// Eval implements Rule
func (r *OrganicTraffic) Eval(ctx context.Context, s Subject, m Metrics) (Evaluation, error) {
	byCountry, err := m.TrafficByCountry(ctx, s)
	if err != nil {
		return Evaluation{}, err
	}
	if len(byCountry) == 0 {
		return r.result(s, 0, true, "no traffic by country"), nil
	}
	var total, top int64
	for _, c := range byCountry {
		if c.Traffic <= r.MinTraffic {
			return r.result(s, 0, true, fmt.Sprintf("%s traffic %d <= %d", c.Country, c.Traffic, r.MinTraffic)), nil
		}
		total += c.Traffic
		if c.Traffic > top {
			top = c.Traffic
		}
	}
	share := float64(top) / float64(total)
	diff := (r.TopShare - share) / r.TopShare
	score := 1.0
	if diff >= 0 {
		score = 1 - diff
	}
	return r.result(s, score, false, fmt.Sprintf("top_share=%.3f", share)), nil
}

// HistoricalOrganicTraffic looks for a steady decline and traffic spikes
type HistoricalOrganicTraffic struct {
	base
	DeclineR2 float64
}

// NewHistoricalOrganicTraffic builds the rule with an R² floor of 0.7
func NewHistoricalOrganicTraffic() *HistoricalOrganicTraffic {
	return &HistoricalOrganicTraffic{
		base:      base{id: "HistoricalOrganicTrafficRule", title: "Historical Organic Traffic", weight: 0.8, area: AreaTraffic},
		DeclineR2: 0.7,
	}
}

// Eval implements Rule
func (r *HistoricalOrganicTraffic) Eval(ctx context.Context, s Subject, m Metrics) (Evaluation, error) {
	points, err := m.TrafficByDate(ctx, s)
	if err != nil {
		return Evaluation{}, err
	}
	series := sortedSeries(points)
	if len(series) < 2 {
		return Evaluation{}, fmt.Errorf("traffic history needs at least 2 points, got %d", len(series))
	}

	spike := HasSpike(series)
	slope, r2 := trend(series)
	decline := slope < 0 && r2 > r.DeclineR2

	score := 1.0
	switch {
	case decline && spike:
		score = 0
	case decline:
		score = 0.5
	}
	return r.result(s, score, decline, fmt.Sprintf("slope=%.2f r2=%.3f spike=%t", slope, r2, spike)), nil
}

func sortedSeries(points []DatePoint) []float64 {
	ps := append([]DatePoint(nil), points...)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Date.Before(ps[j].Date) })
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = float64(p.Traffic)
	}
	return out
}

// tierByCountry maps lowercase country codes to a market tier
var tierByCountry = map[string]int{
	"us": 1, "gb": 1, "nz": 1, "ca": 1, "au": 1, "it": 1, "fr": 1, "es": 1, "de": 1, "jp": 1,
	"pt": 2,
	"cl": 3, "co": 3, "qa": 3, "pa": 3, "py": 3, "pe": 3, "sa": 3, "kw": 3, "id": 3,
}

// Tier returns the market tier of a country, 0 when untiered
func Tier(country string) int { return tierByCountry[strings.ToLower(country)] }

// Geography requires the top traffic country to be a tiered market
type Geography struct{ base }

// NewGeography builds the rule
func NewGeography() *Geography {
	return &Geography{base: base{id: "GeographyRule", title: "Geography", weight: 1, area: AreaRelevance}}
}

// TopCountry returns the country with the most traffic, first one wins ties
func TopCountry(byCountry []CountryTraffic) (string, bool) {
	best, found := CountryTraffic{}, false
	for _, c := range byCountry {
		if !found || c.Traffic > best.Traffic {
			best, found = c, true
		}
	}
	return strings.ToLower(best.Country), found
}

// Eval implements Rule
func (r *Geography) Eval(ctx context.Context, s Subject, m Metrics) (Evaluation, error) {
	byCountry, err := m.TrafficByCountry(ctx, s)
	if err != nil {
		return Evaluation{}, err
	}
	country, ok := TopCountry(byCountry)
	if !ok {
		return r.result(s, 0, true, "no top country"), nil
	}
	if t := Tier(country); t > 0 {
		return r.result(s, 1, false, fmt.Sprintf("%s tier %d", country, t)), nil
	}
	return r.result(s, 0, true, fmt.Sprintf("%s untiered", country)), nil
}

// InOutRatio compares linked domains against referring domains
// the score is max(ratio, 1) and so is never below 1 once both counts exist
type InOutRatio struct {
	base
	MaxRatio float64
}

// NewInOutRatio builds the rule with a critical ratio above 5
func NewInOutRatio() *InOutRatio {
	return &InOutRatio{
		base:     base{id: "DomainsInOutLinksRatioRule", title: "Domains In/Out Links Ratio", weight: 0.5, area: AreaAuthority},
		MaxRatio: 5,
	}
}

// Eval implements Rule
func (r *InOutRatio) Eval(ctx context.Context, s Subject, m Metrics) (Evaluation, error) {
	lc, err := m.LinkCounts(ctx, s)
	if err != nil {
		return Evaluation{}, err
	}
	if lc.In <= 0 || lc.Out <= 0 {
		return r.result(s, 0, false, fmt.Sprintf("in=%d out=%d", lc.In, lc.Out)), nil
	}
	ratio := float64(lc.In) / float64(lc.Out)
	return r.result(s, math.Max(ratio, 1), ratio > r.MaxRatio, fmt.Sprintf("ratio=%.3f", ratio)), nil
}

// SingleTopPageTraffic penalizes traffic concentrated on one page
type SingleTopPageTraffic struct {
	base
	MaxShare float64
}

// NewSingleTopPageTraffic builds the rule with a 0.6 share ceiling
func NewSingleTopPageTraffic() *SingleTopPageTraffic {
	return &SingleTopPageTraffic{
		base:     base{id: "SingleTopPageTrafficRule", title: "Single Top Page Traffic", weight: 1, area: AreaRelevance},
		MaxShare: 0.6,
	}
}

// ErrNoTopPages is returned when the distribution is empty or sums to zero
var ErrNoTopPages = errors.New("no top pages traffic")

// TopPageShare returns the share of the largest page in the distribution
func TopPageShare(pages []TopPage) (float64, error) {
	var total, top int64
	for _, p := range pages {
		total += p.Traffic
		if p.Traffic > top {
			top = p.Traffic
		}
	}
	if total <= 0 {
		return 0, ErrNoTopPages
	}
	return float64(top) / float64(total), nil
}

// Eval implements Rule
func (r *SingleTopPageTraffic) Eval(ctx context.Context, s Subject, m Metrics) (Evaluation, error) {
	pages, err := m.TopPages(ctx, s)
	if err != nil {
		return Evaluation{}, err
	}
	share, err := TopPageShare(pages)
	if err != nil {
		return Evaluation{}, err
	}
	score := 0.0
	if share <= r.MaxShare {
		score = (r.MaxShare - share) / r.MaxShare
	}
	return r.result(s, score, false, fmt.Sprintf("share=%.3f", share)), nil
}

// AnchorWords counts categorized anchor hits in one link direction
type AnchorWords struct {
	base
	Direction Direction
	Category  wordlist.Category
	MaxCount  int
}

func newAnchorWords(id, title string, dir Direction, cat wordlist.Category) *AnchorWords {
	return &AnchorWords{
		base:      base{id: id, title: title, weight: 1, area: AreaSafety, dealBreaker: true},
		Direction: dir,
		Category:  cat,
		MaxCount:  50,
	}
}

// Eval implements Rule
func (r *AnchorWords) Eval(ctx context.Context, s Subject, m Metrics) (Evaluation, error) {
	n, err := m.AnchorHits(ctx, s, r.Direction, r.Category)
	if err != nil {
		return Evaluation{}, err
	}
	score := math.Max(0, 1-float64(n)/float64(r.MaxCount))
	return r.result(s, score, n >= r.MaxCount, fmt.Sprintf("%s %s hits=%d", r.Direction, r.Category, n)), nil
}

// KeywordWords scores categorized organic keyword hits by SERP bucket
// the formula adds top 11-50 hits back, so the score can exceed 1
type KeywordWords struct {
	base
	Category wordlist.Category
}

func newKeywordWords(id, title string, cat wordlist.Category) *KeywordWords {
	return &KeywordWords{
		base:     base{id: id, title: title, weight: 1, area: AreaSafety, dealBreaker: true},
		Category: cat,
	}
}

// Eval implements Rule
func (r *KeywordWords) Eval(ctx context.Context, s Subject, m Metrics) (Evaluation, error) {
	b, err := m.KeywordHits(ctx, s, r.Category)
	if err != nil {
		return Evaluation{}, err
	}
	details := fmt.Sprintf("%s top3=%d top10=%d top50=%d", r.Category, b.Top3, b.Top4To10, b.Top11To50)
	if b.Top3 > 0 {
		return r.result(s, 0, true, details), nil
	}
	score := math.Max(0, 1-float64(b.Top4To10)/10+float64(b.Top11To50)/40)
	return r.result(s, score, false, details), nil
}
