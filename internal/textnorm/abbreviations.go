package textnorm

import "strings"

// ReplaceAbbreviations expands abbreviated words of a multi-word search.
// The search is stripped of diacritics, lower-cased, stripped of double
// quotes, and hyphens become spaces. A search of at most one word is
// returned unchanged.
func ReplaceAbbreviations(search string, abbreviations map[string]string) string {
	cleaned := strings.ToLower(RemoveDiacritics(search))
	cleaned = strings.ReplaceAll(cleaned, `"`, "")
	cleaned = strings.ReplaceAll(cleaned, "-", " ")
	words := strings.Split(cleaned, " ")
	if len(words) <= 1 {
		return search
	}
	for i, w := range words {
		if full, ok := abbreviations[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}
