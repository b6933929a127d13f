package retrieval

import (
	"strings"
	"unicode"
)

// PrefilterScore assigns a cheap lexical relevance score in [0,1] to a
// document: the fraction of distinct query terms that occur in the document.
// It is deliberately crude; its only job is to spare the cross-encoder from
// candidates with no lexical contact with the query at all.
func PrefilterScore(query, documentText string) float64 {
	queryTerms := tokenizeTerms(query)
	if len(queryTerms) == 0 {
		return 0
	}

	docTerms := make(map[string]bool)
	for _, t := range tokenizeTerms(documentText) {
		docTerms[t] = true
	}

	seen := make(map[string]bool, len(queryTerms))
	matched := 0
	total := 0
	for _, t := range queryTerms {
		if seen[t] {
			continue
		}
		seen[t] = true
		total++
		if docTerms[t] {
			matched++
		}
	}

	return float64(matched) / float64(total)
}

func tokenizeTerms(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
