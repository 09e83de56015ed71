package aggregator

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// similarityRatio returns a string-similarity ratio in [0,1] between two
// normalized strings, defined as 1 - editDistance/maxRuneLength. Two empty
// strings are identical; one empty string matches nothing.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	maxLen := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > maxLen {
		maxLen = l
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}
