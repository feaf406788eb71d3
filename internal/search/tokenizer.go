package search

import "strings"

var tokenStripper = strings.NewReplacer("(", "", ")", "", `"`, "")

// Tokenize splits a free-text query into normalized search tokens.
// Grouping characters and quotes are removed, and a field:value piece keeps
// only its value. Pieces left empty by this are dropped.
func Tokenize(query string) []string {
	fields := strings.Fields(query)
	tokens := make([]string, 0, len(fields))

	for _, f := range fields {
		f = tokenStripper.Replace(f)
		if i := strings.Index(f, ":"); i != -1 {
			f = f[i+1:]
		}
		if f == "" {
			continue
		}
		tokens = append(tokens, f)
	}

	return tokens
}

// TokenMatches returns how many tokens occur in s, ignoring case.
func TokenMatches(tokens []string, s string) int {
	lower := strings.ToLower(s)
	n := 0
	for _, tok := range tokens {
		if strings.Contains(lower, strings.ToLower(tok)) {
			n++
		}
	}
	return n
}
