// Package textfold folds free text into the comparable form used for word matching
// Pipeline order
// 1 UTF-8 repair drop invalid bytes
// 2 controls become spaces
// 3 NFKD decomposition so accents split from their base letter
// 4 Case folding
// 5 Remove combining marks and format chars (ZWJ, ZWNJ, BOM)
// 6 Width fold fullwidth to ASCII, then NFC
// 7 Collapse whitespace to single spaces and trim
package textfold

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// transformer chains carry state, so each goroutine takes its own from the pool
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			runes.Map(func(r rune) rune {
				if unicode.IsControl(r) {
					return ' '
				}
				return r
			}),
			norm.NFKD,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Mn)),
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
			norm.NFC,
		)
	},
}

// Fold returns the folded form of s
func Fold(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		// only reachable on a broken chain; fall back to a plain lower
		out = strings.ToLower(s)
	}
	return collapseSpaces(out)
}

// Contains reports whether folded needle occurs in folded haystack
func Contains(haystack, needle string) bool {
	n := Fold(needle)
	if n == "" {
		return false
	}
	return strings.Contains(Fold(haystack), n)
}

// collapseSpaces turns every whitespace run into one ASCII space and trims the edges
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}
