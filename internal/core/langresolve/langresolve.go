// Package langresolve picks a working language per domain from its homepage
// and its traffic geography
package langresolve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"seochecker/internal/core/rules"
	"seochecker/internal/core/wordlist"
	"seochecker/internal/platform/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/pemistahl/lingua-go"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
)

const maxBody = 2 << 20

// Options tunes the resolver
type Options struct {
	// Workers bounds concurrent homepage fetches in ResolveAll
	Workers int
	// Timeout applies to each homepage attempt
	Timeout     time.Duration
	DefaultLang string
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 50
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.DefaultLang == "" {
		o.DefaultLang = wordlist.FallbackLang
	}
}

// Input is one domain with its traffic by country from the bulk snapshot
type Input struct {
	Domain    string
	Countries []rules.CountryTraffic
}

// Resolution records where a domain's language came from
type Resolution struct {
	TopTraffic string `json:"top_traffic,omitempty"`
	Detected   string `json:"detected,omitempty"`
	Lang       string `json:"lang"`
}

// Resolver resolves domain languages; safe for concurrent use
type Resolver struct {
	http *http.Client
	pack *wordlist.Pack
	opts Options
	log  *logger.Logger

	detectorOnce sync.Once
	detector     lingua.LanguageDetector
}

// New builds a resolver; a nil client gets a plain one with redirects enabled
func New(hc *http.Client, pack *wordlist.Pack, opts Options) *Resolver {
	opts.defaults()
	if hc == nil {
		hc = &http.Client{}
	}
	return &Resolver{http: hc, pack: pack, opts: opts, log: logger.Named("langresolve")}
}

// ByTopTraffic maps the top traffic country to a language, "" without a mapping
func (r *Resolver) ByTopTraffic(countries []rules.CountryTraffic) string {
	cc, ok := rules.TopCountry(countries)
	if !ok {
		return ""
	}
	lang, _ := r.pack.LangForCountry(cc)
	return lang
}

// Detect reads the homepage over https, falling back to http once, and
// returns the language it declares or is written in
func (r *Resolver) Detect(ctx context.Context, domain string) (string, error) {
	lang, err := r.detectURL(ctx, "https://"+domain)
	if err != nil {
		r.log.Debug().Err(err).Str("domain", domain).Msg("https homepage failed, trying http")
		lang, err = r.detectURL(ctx, "http://"+domain)
	}
	return lang, err
}

func (r *Resolver) detectURL(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	setBrowserHeaders(req)

	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	lang, derr := r.describedLang(url, resp)
	if derr == nil {
		return lang, nil
	}
	// the declared language only stands in when the description says nothing
	if declared := headerLang(resp.Header.Get("Content-Language")); declared != "" {
		return declared, nil
	}
	return "", derr
}

// describedLang detects the language of the meta description
func (r *Resolver) describedLang(url string, resp *http.Response) (string, error) {
	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBody), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", url, err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", url, err)
	}
	desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content")
	desc = strings.TrimSpace(desc)
	if !ok || desc == "" {
		return "", fmt.Errorf("%s: no meta description", url)
	}
	if lang := r.textLang(desc); lang != "" {
		return lang, nil
	}
	return "", fmt.Errorf("%s: language not detected", url)
}

// textLang tries the script shortcut before the statistical detector
func (r *Resolver) textLang(s string) string {
	if lang := scriptLang(s); lang != "" {
		return lang
	}
	r.detectorOnce.Do(func() {
		r.detector = lingua.NewLanguageDetectorBuilder().FromAllLanguages().Build()
	})
	l, ok := r.detector.DetectLanguageOf(s)
	if !ok {
		return ""
	}
	return strings.ToLower(l.IsoCode639_1().String())
}

// headerLang returns the primary language of the first Content-Language tag
func headerLang(v string) string {
	first, _, _ := strings.Cut(v, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return ""
	}
	tag, err := language.Parse(first)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) "+
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
}

// Resolve never fails: detection, then fallback, then the default language
func (r *Resolver) Resolve(ctx context.Context, domain, fallback string) string {
	return r.resolve(ctx, domain, fallback).Lang
}

func (r *Resolver) resolve(ctx context.Context, domain, fallback string) Resolution {
	res := Resolution{TopTraffic: fallback}
	detected, err := r.Detect(ctx, domain)
	switch {
	case err == nil && detected != "":
		res.Detected, res.Lang = detected, detected
	case fallback != "":
		r.log.Debug().Err(err).Str("domain", domain).Str("lang", fallback).Msg("homepage language unavailable, using top traffic country")
		res.Lang = fallback
	default:
		r.log.Debug().Err(err).Str("domain", domain).Str("lang", r.opts.DefaultLang).Msg("no language found, using default")
		res.Lang = r.opts.DefaultLang
	}
	return res
}

// ResolveAll resolves every input concurrently, bounded by Workers
func (r *Resolver) ResolveAll(ctx context.Context, in []Input) map[string]Resolution {
	out := make(map[string]Resolution, len(in))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, it := range in {
		g.Go(func() error {
			res := r.resolve(gctx, it.Domain, r.ByTopTraffic(it.Countries))
			mu.Lock()
			out[it.Domain] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
