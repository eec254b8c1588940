// Package similarity provides the word-overlap repetition signal used by the
// chat engine to detect when a candidate reply restates a prior turn.
package similarity

import "strings"

// RepetitionThreshold is the overlap ratio above which two strings are
// considered repetitive. Chosen to tolerate short acknowledgements while
// catching near-verbatim restatements.
const RepetitionThreshold = 0.6

// IsRepetitive reports whether candidate shares more than RepetitionThreshold
// of its words with reference.
//
// Both strings are lower-cased and whitespace-tokenized. The overlap is the
// sum over shared tokens of the smaller per-string occurrence count, divided
// by the larger token count of the two strings. An empty candidate is never
// repetitive.
func IsRepetitive(candidate, reference string) bool {
	candidateTokens := tokenize(candidate)
	if len(candidateTokens) == 0 {
		return false
	}
	referenceTokens := tokenize(reference)
	if len(referenceTokens) == 0 {
		return false
	}

	candidateCounts := countTokens(candidateTokens)
	referenceCounts := countTokens(referenceTokens)

	common := 0
	for token, n := range candidateCounts {
		if m, ok := referenceCounts[token]; ok {
			common += min(n, m)
		}
	}

	longest := max(len(candidateTokens), len(referenceTokens))
	return float64(common)/float64(longest) > RepetitionThreshold
}

// tokenize splits s into lower-cased words, discarding empty tokens.
func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func countTokens(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}
