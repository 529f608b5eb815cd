package langresolve

import "unicode"

// minScriptLetters is the letter count below which the script is not trusted
const minScriptLetters = 8

// scriptLang maps text written in a low ambiguity script straight to a
// language, skipping statistical detection. Latin and Cyrillic text returns ""
func scriptLang(s string) string {
	var (
		latin, cyrillic, greek, han, kana, hangul int
		arabic, hebrew, thai, total               int
	)
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		switch {
		case unicode.In(r, unicode.Hangul):
			hangul++
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			kana++
		case unicode.In(r, unicode.Han):
			han++
		case unicode.In(r, unicode.Arabic):
			arabic++
		case unicode.In(r, unicode.Hebrew):
			hebrew++
		case unicode.In(r, unicode.Thai):
			thai++
		case unicode.In(r, unicode.Greek):
			greek++
		case unicode.In(r, unicode.Cyrillic):
			cyrillic++
		case unicode.In(r, unicode.Latin):
			latin++
		}
	}
	if total < minScriptLetters {
		return ""
	}

	switch {
	// kana decides Japanese even when kanji dominate
	case kana > 0:
		return "ja"
	case hangul > 0:
		return "ko"
	case han > latin+cyrillic:
		return "zh"
	case thai > 0:
		return "th"
	case greek > latin:
		return "el"
	case hebrew > 0:
		return "he"
	case arabic > 0:
		return "ar"
	default:
		return ""
	}
}
