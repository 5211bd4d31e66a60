package search

import "unicode"

// DefaultMinQueryLength is the minimum query length, in runes, below which
// language detection is not attempted and the fallback is used instead.
const DefaultMinQueryLength = 10

// DefaultLanguage is the fallback when detection is skipped or inconclusive.
const DefaultLanguage = "en"

// normalizeLang collapses script/dialect variants onto the three document
// languages the collections are organized by.
func normalizeLang(code string) string {
	switch code {
	case "zho", "cmn", "lzh", "zh":
		return "zh"
	case "eng", "en":
		return "en"
	case "jpn", "ja":
		return "ja"
	default:
		return code
	}
}

// detectLanguage classifies query by which scripts it contains, in priority
// order rather than by majority: any hiragana/katakana reads as Japanese,
// otherwise any Han character reads as Chinese, otherwise any Latin-1 letter
// reads as English. Below DefaultMinQueryLength runes, or when none of these
// scripts occurs, the caller's fallback applies.
func detectLanguage(query, fallback string) string {
	runes := []rune(query)
	if len(runes) < DefaultMinQueryLength {
		return normalizeLang(fallback)
	}

	var han, kana, latin int
	for _, r := range runes {
		switch {
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.IsLetter(r) && r < unicode.MaxLatin1:
			latin++
		}
	}

	switch {
	case kana > 0:
		return "ja"
	case han > 0:
		return "zh"
	case latin > 0:
		return "en"
	default:
		return normalizeLang(fallback)
	}
}
