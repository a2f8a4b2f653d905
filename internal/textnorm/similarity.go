package textnorm

// Trigrams returns the set of character trigrams of s, padded with two
// leading and one trailing space so short strings still produce
// boundary-anchored grams. Works on runes, not bytes, so Hangul text
// grams correctly.
func Trigrams(s string) []string {
	if s == "" {
		return nil
	}
	padded := []rune("  " + s + " ")

	var grams []string
	seen := make(map[string]bool)
	for i := 0; i+3 <= len(padded); i++ {
		g := string(padded[i : i+3])
		if !seen[g] {
			seen[g] = true
			grams = append(grams, g)
		}
	}
	return grams
}

// TrigramSimilarity is the Jaccard index of the two trigram sets:
// symmetric, 1.0 for identical non-empty strings, 0 when either operand
// is empty.
func TrigramSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	gramsA := Trigrams(a)
	setA := make(map[string]bool, len(gramsA))
	for _, g := range gramsA {
		setA[g] = true
	}

	intersection := 0
	union := len(setA)
	for _, g := range Trigrams(b) {
		if setA[g] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
