// Package budget estimates how many encoder tokens a description costs.
// Encoders use different tokenizers, so this package uses a character
// heuristic: 1 token per 3 characters. Descriptions are Bosnian prose with
// diacritics and numbers, which tokenizes denser than English, so the
// estimate errs high.
package budget

import "unicode/utf8"

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 3

	// DefaultMaxInputTokens is the input window of the default encoders
	// (nomic-embed-text and text-embedding-3-small both accept 8192).
	DefaultMaxInputTokens = 8192
)

// Estimate returns a rough token count for s. Characters are counted as
// runes, not bytes.
func Estimate(s string) int {
	chars := utf8.RuneCountInString(s)
	n := chars / charsPerToken
	if n == 0 && chars > 0 {
		return 1
	}
	return n
}

// EstimateAll returns the summed estimate of texts.
func EstimateAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += Estimate(t)
	}
	return total
}

// Oversized returns the indexes of texts whose estimate exceeds maxTokens.
// Encoders truncate such inputs silently, so the tail of the description is
// lost from the vector. maxTokens <= 0 disables the check.
func Oversized(texts []string, maxTokens int) []int {
	if maxTokens <= 0 {
		return nil
	}
	var over []int
	for i, t := range texts {
		if Estimate(t) > maxTokens {
			over = append(over, i)
		}
	}
	return over
}
