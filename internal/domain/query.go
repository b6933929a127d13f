package domain

import "strings"

// Query is a normalized retrieval query. It is immutable once constructed;
// the agentic loop builds a fresh Query per rewrite instead of mutating.
type Query struct {
	// Text is the whitespace-normalized query text.
	Text string
	// Language is a best-effort script detection ("ja" or "en").
	Language string
	// ExpansionTerms are optional additional keywords attached by callers.
	ExpansionTerms []string
}

// NewQuery normalizes raw text and detects its script.
func NewQuery(raw string) Query {
	text := NormalizeQueryText(raw)
	lang := "en"
	if ContainsJapanese(text) {
		lang = "ja"
	}
	return Query{Text: text, Language: lang}
}

// NormalizeQueryText collapses internal whitespace and trims the ends.
func NormalizeQueryText(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// ContainsJapanese checks if a string contains Japanese characters.
func ContainsJapanese(s string) bool {
	for _, r := range s {
		if (r >= '぀' && r <= 'ゟ') || // Hiragana
			(r >= '゠' && r <= 'ヿ') || // Katakana
			(r >= '一' && r <= '龯') { // Kanji
			return true
		}
	}
	return false
}
