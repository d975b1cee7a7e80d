package errors

import (
	"fmt"
	"strings"
)

// maxSuggestDistance bounds how far a typo may be from a valid name.
const maxSuggestDistance = 3

// Suggest proposes the closest valid name for an unknown one, or lists the
// valid names when nothing is close.
func Suggest(unknown string, valid []string) string {
	if len(valid) == 0 {
		return ""
	}
	best, dist := closest(unknown, valid)
	if dist <= maxSuggestDistance {
		return fmt.Sprintf("Did you mean '%s'?", best)
	}
	if len(valid) > 8 {
		return fmt.Sprintf("Valid values include: %s, ...", strings.Join(valid[:8], ", "))
	}
	return fmt.Sprintf("Valid values: %s", strings.Join(valid, ", "))
}

// SuggestMissingField suggests adding a required field.
func SuggestMissingField(fieldName, example string) string {
	if example != "" {
		return fmt.Sprintf("Add '%s: %s'", fieldName, example)
	}
	return fmt.Sprintf("Add the '%s' field", fieldName)
}

func closest(unknown string, valid []string) (string, int) {
	best := ""
	bestDist := -1
	lower := strings.ToLower(unknown)
	for _, v := range valid {
		d := levenshtein(lower, strings.ToLower(v))
		if bestDist < 0 || d < bestDist {
			best, bestDist = v, d
		}
	}
	return best, bestDist
}

// levenshtein computes the edit distance between two strings using two rows.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
