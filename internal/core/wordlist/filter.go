package wordlist

import "encoding/json"

type phraseCond struct {
	Field    string   `json:"field"`
	Modifier string   `json:"modifier"`
	Is       []string `json:"is"`
}

// PhraseFilter builds a provider where expression OR-ing a lowercase
// phrase_match on field for every word; an empty list yields "{}"
func PhraseFilter(field string, words []string) string {
	if len(words) == 0 {
		return "{}"
	}
	conds := make([]phraseCond, 0, len(words))
	for _, w := range words {
		conds = append(conds, phraseCond{Field: field, Modifier: "lowercase", Is: []string{"phrase_match", w}})
	}
	b, err := json.Marshal(map[string][]phraseCond{"or": conds})
	if err != nil {
		return "{}"
	}
	return string(b)
}
