package rules

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"seochecker/internal/core/wordlist"
	kit "seochecker/internal/platform/testkit"
)

type anchorKey struct {
	dir Direction
	cat wordlist.Category
}

type fakeMetrics struct {
	dr       float64
	country  []CountryTraffic
	history  []DatePoint
	links    LinkCounts
	pages    []TopPage
	anchors  map[anchorKey]int
	keywords map[wordlist.Category]KeywordBuckets
	err      error
}

func (f *fakeMetrics) DomainRating(context.Context, Subject) (float64, error) { return f.dr, f.err }
func (f *fakeMetrics) TrafficByCountry(context.Context, Subject) ([]CountryTraffic, error) {
	return f.country, f.err
}
func (f *fakeMetrics) TrafficByDate(context.Context, Subject) ([]DatePoint, error) {
	return f.history, f.err
}
func (f *fakeMetrics) LinkCounts(context.Context, Subject) (LinkCounts, error) { return f.links, f.err }
func (f *fakeMetrics) TopPages(context.Context, Subject) ([]TopPage, error)    { return f.pages, f.err }
func (f *fakeMetrics) AnchorHits(_ context.Context, _ Subject, dir Direction, cat wordlist.Category) (int, error) {
	return f.anchors[anchorKey{dir, cat}], f.err
}
func (f *fakeMetrics) KeywordHits(_ context.Context, _ Subject, cat wordlist.Category) (KeywordBuckets, error) {
	return f.keywords[cat], f.err
}

var subj = Subject{AnalysisID: "a1", Domain: "example.com"}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func eval(t *testing.T, r Rule, m Metrics) Evaluation {
	t.Helper()
	ev, err := r.Eval(context.Background(), subj, m)
	if err != nil {
		t.Fatalf("%s: unexpected error %v", r.ID(), err)
	}
	if ev.Rule != r.ID() || ev.Domain != subj.Domain {
		t.Fatalf("evaluation not tagged: %+v", ev)
	}
	return ev
}

func series(vals ...int64) []DatePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]DatePoint, len(vals))
	for i, v := range vals {
		out[i] = DatePoint{Date: start.AddDate(0, i, 0), Traffic: v}
	}
	return out
}

func TestDomainRating(t *testing.T) {
	cases := []struct {
		dr       float64
		score    float64
		critical bool
	}{
		{25, 0.25, true},
		{50, 0.5, false},
		{30, 0.3, false},
		{29.9, 0.29, true},
		{0, 0, true},
		{120, 1, false},
	}
	for _, c := range cases {
		ev := eval(t, NewDomainRating(), &fakeMetrics{dr: c.dr})
		if !near(ev.Score, c.score) || ev.Critical != c.critical {
			t.Fatalf("dr=%v got score=%v critical=%v", c.dr, ev.Score, ev.Critical)
		}
	}
}

func TestDomainRating_UnratedDomainIsCritical(t *testing.T) {
	ev := eval(t, NewDomainRating(), &fakeMetrics{})
	if ev.Score != 0 || !ev.Critical {
		t.Fatalf("unrated domain = %+v, want score 0 and critical", ev)
	}
}

func TestOrganicTraffic(t *testing.T) {
	cases := []struct {
		name     string
		country  []CountryTraffic
		score    float64
		critical bool
	}{
		{"empty", nil, 0, true},
		{"low country", []CountryTraffic{{"us", 50000}, {"gb", 10000}}, 0, true},
		{"dominant top", []CountryTraffic{{"us", 50000}, {"gb", 30000}, {"de", 20000}}, 1, false},
		{"spread", []CountryTraffic{{"us", 20000}, {"gb", 20000}, {"de", 20000}, {"fr", 20000}, {"it", 20000}}, 0.5, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ev := eval(t, NewOrganicTraffic(), &fakeMetrics{country: c.country})
			if !near(ev.Score, c.score) || ev.Critical != c.critical {
				t.Fatalf("got score=%v critical=%v", ev.Score, ev.Critical)
			}
		})
	}
}

func TestHasSpike(t *testing.T) {
	cases := []struct {
		x    []float64
		want bool
	}{
		{[]float64{0, 10, 0}, true},
		{[]float64{0, 5, 5, 0}, false},
		{[]float64{1, 2}, false},
		{[]float64{3, 2, 1}, false},
		{[]float64{10, 11, 10, 11, 10}, false},
		{[]float64{1000, 400, 800, 200, 100, 0}, true},
	}
	for _, c := range cases {
		if got := HasSpike(c.x); got != c.want {
			t.Fatalf("HasSpike(%v) = %v, want %v", c.x, got, c.want)
		}
	}
}

func TestHistoricalOrganicTraffic(t *testing.T) {
	cases := []struct {
		name     string
		history  []DatePoint
		score    float64
		critical bool
	}{
		{"growing", series(100, 200, 300, 400), 1, false},
		{"flat", series(5, 5, 5), 1, false},
		{"steady decline", series(100, 90, 80, 70, 60), 0.5, true},
		{"decline with spike", series(1000, 400, 800, 200, 100, 0), 0, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ev := eval(t, NewHistoricalOrganicTraffic(), &fakeMetrics{history: c.history})
			if !near(ev.Score, c.score) || ev.Critical != c.critical {
				t.Fatalf("got score=%v critical=%v (%s)", ev.Score, ev.Critical, ev.Details)
			}
		})
	}
}

func TestHistoricalOrganicTraffic_SortsByDate(t *testing.T) {
	h := series(100, 90, 80, 70, 60)
	h[0], h[4] = h[4], h[0]
	h[1], h[3] = h[3], h[1]
	ev := eval(t, NewHistoricalOrganicTraffic(), &fakeMetrics{history: h})
	if !ev.Critical || !near(ev.Score, 0.5) {
		t.Fatalf("shuffled decline not detected: %+v", ev)
	}
}

func TestHistoricalOrganicTraffic_TooShort(t *testing.T) {
	_, err := NewHistoricalOrganicTraffic().Eval(context.Background(), subj, &fakeMetrics{history: series(1)})
	if err == nil {
		t.Fatalf("expected error for a single point")
	}
}

func TestGeography(t *testing.T) {
	cases := []struct {
		name     string
		country  []CountryTraffic
		score    float64
		critical bool
	}{
		{"tier one", []CountryTraffic{{"ca", 10}, {"US", 90}}, 1, false},
		{"tier three", []CountryTraffic{{"pe", 90}}, 1, false},
		{"untiered", []CountryTraffic{{"br", 90}, {"us", 10}}, 0, true},
		{"tie keeps first", []CountryTraffic{{"fr", 50}, {"br", 50}}, 1, false},
		{"none", nil, 0, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ev := eval(t, NewGeography(), &fakeMetrics{country: c.country})
			if ev.Score != c.score || ev.Critical != c.critical {
				t.Fatalf("got score=%v critical=%v (%s)", ev.Score, ev.Critical, ev.Details)
			}
		})
	}
	if Tier("PT") != 2 || Tier("zz") != 0 {
		t.Fatalf("Tier lookup broken")
	}
}

func TestInOutRatio(t *testing.T) {
	cases := []struct {
		links    LinkCounts
		score    float64
		critical bool
	}{
		{LinkCounts{In: 10, Out: 5}, 2, false},
		{LinkCounts{In: 60, Out: 10}, 6, true},
		{LinkCounts{In: 1, Out: 4}, 1, false},
		{LinkCounts{In: 10, Out: 0}, 0, false},
		{LinkCounts{}, 0, false},
	}
	for _, c := range cases {
		ev := eval(t, NewInOutRatio(), &fakeMetrics{links: c.links})
		if !near(ev.Score, c.score) || ev.Critical != c.critical {
			t.Fatalf("%+v got score=%v critical=%v", c.links, ev.Score, ev.Critical)
		}
	}
}

func TestSingleTopPageTraffic(t *testing.T) {
	ev := eval(t, NewSingleTopPageTraffic(), &fakeMetrics{pages: []TopPage{{Traffic: 70}, {Traffic: 30}}})
	if ev.Score != 0 || ev.Critical {
		t.Fatalf("concentrated: %+v", ev)
	}
	ev = eval(t, NewSingleTopPageTraffic(), &fakeMetrics{pages: []TopPage{{Traffic: 30}, {Traffic: 30}, {Traffic: 40}}})
	if !near(ev.Score, 1.0/3) {
		t.Fatalf("spread: %+v", ev)
	}
	if _, err := NewSingleTopPageTraffic().Eval(context.Background(), subj, &fakeMetrics{}); !errors.Is(err, ErrNoTopPages) {
		t.Fatalf("empty pages err = %v", err)
	}
}

func TestAnchorWordRules(t *testing.T) {
	m := &fakeMetrics{anchors: map[anchorKey]int{
		{DirectionIn, wordlist.Forbidden}: 50,
		{DirectionOut, wordlist.Spam}:     25,
	}}
	rs := Default()
	byID := map[string]Rule{}
	for _, r := range rs {
		byID[r.ID()] = r
	}

	ev := eval(t, byID["ForbiddenWordsBacklinksRule"], m)
	if ev.Score != 0 || !ev.Critical {
		t.Fatalf("backlinks 50: %+v", ev)
	}
	ev = eval(t, byID["SpamWordsAnchorsRule"], m)
	if !near(ev.Score, 0.5) || ev.Critical {
		t.Fatalf("spam anchors 25: %+v", ev)
	}
	ev = eval(t, byID["ForbiddenWordsAnchorRule"], m)
	if ev.Score != 1 || ev.Critical {
		t.Fatalf("forbidden anchors 0: %+v", ev)
	}
}

func TestKeywordWordRules(t *testing.T) {
	r := newKeywordWords("k", "K", wordlist.Spam)
	cases := []struct {
		b        KeywordBuckets
		score    float64
		critical bool
	}{
		{KeywordBuckets{Top3: 1, Top4To10: 0}, 0, true},
		{KeywordBuckets{Top4To10: 5}, 0.5, false},
		{KeywordBuckets{Top11To50: 20}, 1.5, false},
		{KeywordBuckets{Top4To10: 20}, 0, false},
		{KeywordBuckets{}, 1, false},
	}
	for _, c := range cases {
		m := &fakeMetrics{keywords: map[wordlist.Category]KeywordBuckets{wordlist.Spam: c.b}}
		ev := eval(t, r, m)
		if !near(ev.Score, c.score) || ev.Critical != c.critical {
			t.Fatalf("%+v got score=%v critical=%v", c.b, ev.Score, ev.Critical)
		}
	}
}

func TestDefault_OrderAndDescriptors(t *testing.T) {
	want := []string{
		"DomainRatingRule", "OrganicTrafficRule", "HistoricalOrganicTrafficRule", "GeographyRule",
		"DomainsInOutLinksRatioRule", "SingleTopPageTrafficRule", "ForbiddenWordsBacklinksRule",
		"SpamWordsAnchorsRule", "ForbiddenWordsAnchorRule", "ForbiddenWordsOrganicKeywordsRule",
		"SpamWordsOrganicKeywordsRule",
	}
	rs := Default()
	if len(rs) != len(want) {
		t.Fatalf("len = %d", len(rs))
	}
	for i, r := range rs {
		if r.ID() != want[i] {
			t.Fatalf("rule %d = %s, want %s", i, r.ID(), want[i])
		}
		if r.Title() == "" || r.Weight() <= 0 {
			t.Fatalf("%s missing descriptors", r.ID())
		}
		if (r.Area() == AreaSafety) != r.DealBreaker() {
			t.Fatalf("%s: only safety rules are deal breakers", r.ID())
		}
	}
}

func TestAggregate(t *testing.T) {
	evals := []Evaluation{
		{Rule: "a", Score: 1},
		{Rule: "b", Score: 0.5, Critical: true},
		{Rule: "c", Score: 0},
		{Rule: OverallRule, Score: 42},
	}
	ov := Aggregate("x.com", evals)
	if ov.Rule != OverallRule || ov.Domain != "x.com" || !near(ov.Score, 0.5) || !ov.Critical {
		t.Fatalf("overall = %+v", ov)
	}
	if ov := Aggregate("x.com", nil); ov.Score != 0 || ov.Critical {
		t.Fatalf("empty overall = %+v", ov)
	}
}

type stubRule struct {
	base
	fn func() (Evaluation, error)
}

func (s stubRule) Eval(context.Context, Subject, Metrics) (Evaluation, error) { return s.fn() }

func TestEngine_IsolatesFailures(t *testing.T) {
	ok := stubRule{base: base{id: "ok"}, fn: func() (Evaluation, error) {
		return Evaluation{Score: 1, Critical: true}, nil
	}}
	failing := stubRule{base: base{id: "failing"}, fn: func() (Evaluation, error) {
		return Evaluation{Score: 1, Critical: true}, errors.New("no data")
	}}
	panicking := stubRule{base: base{id: "panicking"}, fn: func() (Evaluation, error) { panic("boom") }}
	nan := stubRule{base: base{id: "nan"}, fn: func() (Evaluation, error) {
		return Evaluation{Score: math.NaN()}, nil
	}}

	var out []Evaluation
	kit.MustNotPanic(t, func() {
		out = NewEngine(ok, failing, panicking, nan).Evaluate(context.Background(), &fakeMetrics{}, subj)
	})
	if len(out) != 5 {
		t.Fatalf("len = %d", len(out))
	}
	if out[0].Rule != "ok" || out[0].Domain != subj.Domain || out[0].Score != 1 {
		t.Fatalf("ok rule = %+v", out[0])
	}
	for _, ev := range out[1:4] {
		if ev.Score != 0 || ev.Critical || ev.Details == "" {
			t.Fatalf("failed rule should be neutral: %+v", ev)
		}
	}
	kit.MustContain(t, out[1].Details, "no data")
	kit.MustContain(t, out[2].Details, "boom")

	ov := out[4]
	if ov.Rule != OverallRule || !near(ov.Score, 0.25) || !ov.Critical {
		t.Fatalf("overall = %+v", ov)
	}
}

func TestEngine_DefaultBatteryWithProviderErrors(t *testing.T) {
	e := NewEngine()
	out := e.Evaluate(context.Background(), &fakeMetrics{err: errors.New("db down")}, subj)
	if len(out) != len(e.Rules())+1 {
		t.Fatalf("len = %d", len(out))
	}
	for _, ev := range out[:len(out)-1] {
		if ev.Score != 0 || ev.Critical {
			t.Fatalf("%s should be neutral on error: %+v", ev.Rule, ev)
		}
	}
}
