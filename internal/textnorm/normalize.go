// Package textnorm canonicalizes noisy Korean/English product text for
// comparison. Normalize and Tokenize are pure and deterministic; every
// derived field in the catalog and every comparison in the resolution
// engine goes through them.
package textnorm

import (
	"regexp"
	"strings"
)

// Package-level compiled regex patterns for performance
var (
	parentheticalRegex = regexp.MustCompile(`\([^)]*\)`)
	bracketedRegex     = regexp.MustCompile(`\[[^\]]*\]`)
	nonWordRegex       = regexp.MustCompile(`[^\w\s가-힣]`)
	multiSpaceRegex    = regexp.MustCompile(`\s+`)
	// Quantity/unit tokens such as "370g", "500ml", "5개". Applied after
	// character stripping so decimals like "1.5l" arrive as "15l"; the
	// alternation order matters for two-letter units.
	quantityRegex = regexp.MustCompile(`\d+(?:g|ml|kg|l|mg|개|입|ea)`)
)

// Normalize canonicalizes a raw product or manufacturer string.
// Idempotent: Normalize(Normalize(x)) == Normalize(x). Parenthetical and
// bracketed asides are dropped, quantity/unit tokens stripped, casing and
// punctuation flattened, whitespace collapsed. Empty input normalizes to
// the empty string.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := parentheticalRegex.ReplaceAllString(text, "")
	s = bracketedRegex.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	s = nonWordRegex.ReplaceAllString(s, "")
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	s = quantityRegex.ReplaceAllString(s, "")
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var (
	hangulTokenRegex = regexp.MustCompile(`[가-힣]{2,}`)
	latinTokenRegex  = regexp.MustCompile(`[a-z]{3,}`)
)

// Tokenize extracts the discriminative word-tokens from a raw string:
// Hangul runs of at least two syllables and Latin runs of at least three
// letters, over the normalized text. Single syllables and short runs are
// too common to narrow a catalog of hundreds of thousands of entries;
// numeric runs never qualify. Duplicates are collapsed; first-seen order
// is kept so results are deterministic.
func Tokenize(text string) []string {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}

	var tokens []string
	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{hangulTokenRegex, latinTokenRegex} {
		for _, tok := range re.FindAllString(norm, -1) {
			if !seen[tok] {
				seen[tok] = true
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}
