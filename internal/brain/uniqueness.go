package brain

import (
	"sort"
	"strings"
	"unicode"
)

// stopWords are excluded from keyword sets so similarity reflects content
// words, not connective tissue.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(
		"the a an is are was were be been being have has had do does did " +
			"will would could should may might shall can to of in for on with " +
			"at by from as into through during before after above below between " +
			"out off over under again further then once and but or nor not so " +
			"yet both each few more most other some such no only own same than " +
			"too very just because if when where how all any every this that " +
			"these those i me my we our you your he him his she her it its " +
			"they them their what which who whom about up down") {
		stopWords[w] = struct{}{}
	}
}

// ExtractKeywords lowercases, strips punctuation, and returns the set of
// content words longer than 2 characters.
func ExtractKeywords(text string) map[string]struct{} {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	words := make(map[string]struct{})
	for _, w := range strings.Fields(b.String()) {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}

// JaccardSimilarity is |a∩b| / |a∪b|, with 0 for two empty sets.
func JaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// UniquenessResult reports how close a candidate came to recent output.
type UniquenessResult struct {
	IsUnique     bool
	Similarity   float64  // max similarity over all recent texts
	OverlapTerms []string // terms shared with any text above the threshold
}

// DefaultUniquenessThreshold: similarity at or above this is a duplicate.
const DefaultUniquenessThreshold = 0.4

// CheckUniqueness compares candidate against the recent texts. The overlap
// terms are sorted so retry instructions are stable.
func CheckUniqueness(candidate string, recent []string, threshold float64) UniquenessResult {
	candidateWords := ExtractKeywords(candidate)
	maxSim := 0.0
	overlap := make(map[string]struct{})

	for _, existing := range recent {
		existingWords := ExtractKeywords(existing)
		sim := JaccardSimilarity(candidateWords, existingWords)
		if sim > maxSim {
			maxSim = sim
		}
		if sim >= threshold {
			for w := range candidateWords {
				if _, ok := existingWords[w]; ok {
					overlap[w] = struct{}{}
				}
			}
		}
	}

	terms := make([]string, 0, len(overlap))
	for w := range overlap {
		terms = append(terms, w)
	}
	sort.Strings(terms)

	return UniquenessResult{
		IsUnique:     maxSim < threshold,
		Similarity:   maxSim,
		OverlapTerms: terms,
	}
}
