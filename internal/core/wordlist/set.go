package wordlist

import "seochecker/internal/core/textfold"

type entry struct {
	word     string
	folded   string
	category Category
}

// Set is one language's merged word table plus its matcher
type Set struct {
	lang    string
	entries []entry
	ac      *acAutomaton
}

// newSet merges categories in order; a word listed twice keeps its first
// position and takes the category of its last listing
func newSet(lang string, lw langWords) *Set {
	s := &Set{lang: lang, ac: newAutomaton()}
	pos := map[string]int{}
	for _, c := range categories {
		for _, w := range lw.of(c) {
			f := textfold.Fold(w)
			if f == "" {
				continue
			}
			if i, ok := pos[f]; ok {
				s.entries[i].category = c
				continue
			}
			pos[f] = len(s.entries)
			s.entries = append(s.entries, entry{word: w, folded: f, category: c})
		}
	}
	for i, e := range s.entries {
		s.ac.AddPattern([]byte(e.folded), i)
	}
	s.ac.Build()
	return s
}

// Lang is the language the set was built for
func (s *Set) Lang() string { return s.lang }

// Len is the number of distinct words
func (s *Set) Len() int { return len(s.entries) }

// Words returns the words in table order
func (s *Set) Words() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.word
	}
	return out
}

// Categorize tags text with the category of the matching word latest in table order
func (s *Set) Categorize(text string) (Category, bool) {
	if len(s.entries) == 0 {
		return "", false
	}
	f := textfold.Fold(text)
	if f == "" {
		return "", false
	}
	best := -1
	s.ac.FindAll([]byte(f), func(_ int, id int) bool {
		if id > best {
			best = id
		}
		return best < len(s.entries)-1
	})
	if best < 0 {
		return "", false
	}
	return s.entries[best].category, true
}
