// Package wordlist loads the per language forbidden and spam word lists and
// the country to language table, and tags free text with a word category
package wordlist

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed words.yaml langs.yaml
var files embed.FS

// FallbackLang is used when a language has no word list of its own
const FallbackLang = "en"

// Category tags a matched word
type Category string

const (
	// Forbidden marks words that must never be associated with a placement
	Forbidden Category = "forbidden"
	// Spam marks words typical of link farms and spam pages
	Spam Category = "spam"
)

// categories is the merge order; a later category overrides an earlier one
var categories = []Category{Forbidden, Spam}

type langWords struct {
	Forbidden []string `yaml:"forbidden"`
	Spam      []string `yaml:"spam"`
}

func (l langWords) of(c Category) []string {
	if c == Spam {
		return l.Spam
	}
	return l.Forbidden
}

// Pack is the read-only set of word lists and the country table
// Sets are built lazily per language and shared afterwards
type Pack struct {
	words map[string]langWords
	langs map[string]string

	mu   sync.Mutex
	sets map[string]*Set
}

// Load parses the embedded word lists and language table
func Load() (*Pack, error) {
	w, err := files.ReadFile("words.yaml")
	if err != nil {
		return nil, err
	}
	l, err := files.ReadFile("langs.yaml")
	if err != nil {
		return nil, err
	}
	return Parse(w, l)
}

// MustLoad is Load for process bootstrap
func MustLoad() *Pack {
	p, err := Load()
	if err != nil {
		panic(err)
	}
	return p
}

// Parse builds a Pack from raw yaml documents
func Parse(wordsYAML, langsYAML []byte) (*Pack, error) {
	var words map[string]langWords
	if err := yaml.Unmarshal(wordsYAML, &words); err != nil {
		return nil, fmt.Errorf("wordlist: words: %w", err)
	}
	var langs map[string]string
	if err := yaml.Unmarshal(langsYAML, &langs); err != nil {
		return nil, fmt.Errorf("wordlist: langs: %w", err)
	}

	p := &Pack{
		words: make(map[string]langWords, len(words)),
		langs: make(map[string]string, len(langs)),
		sets:  map[string]*Set{},
	}
	for lang, lw := range words {
		p.words[strings.ToLower(strings.TrimSpace(lang))] = lw
	}
	for cc, lang := range langs {
		p.langs[strings.ToLower(strings.TrimSpace(cc))] = strings.ToLower(strings.TrimSpace(lang))
	}
	if _, ok := p.words[FallbackLang]; !ok {
		return nil, fmt.Errorf("wordlist: no %q word list", FallbackLang)
	}
	return p, nil
}

// LangForCountry maps an ISO 3166 alpha-2 code to a language, case-insensitive
func (p *Pack) LangForCountry(cc string) (string, bool) {
	l, ok := p.langs[strings.ToLower(strings.TrimSpace(cc))]
	return l, ok && l != ""
}

// Langs lists the languages that have a word list
func (p *Pack) Langs() []string {
	out := make([]string, 0, len(p.words))
	for l := range p.words {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Words returns the merged set for lang, falling back to FallbackLang
func (p *Pack) Words(lang string) *Set {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if _, ok := p.words[lang]; !ok {
		lang = FallbackLang
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sets[lang]; ok {
		return s
	}
	s := newSet(lang, p.words[lang])
	p.sets[lang] = s
	return s
}
