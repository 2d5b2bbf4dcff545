// Package similarity provides a deterministic, local estimate of semantic
// similarity between two KPT bodies. LLMGateway.Reflect's merge groups
// carry an LLM-reported similarity; per the design note on Open Question
// 3, implementers who want deterministic merging may substitute a local
// embedding-free estimate without violating any invariant — the Reflector
// uses this package to cross-check (never to override) LLM-reported
// merges when an Estimator is configured.
package similarity

// Estimator computes a similarity score in [0,1] between two strings.
type Estimator interface {
	Similarity(a, b string) float64
}

// Jaccard is the default Estimator: token-set Jaccard index over the two
// bodies. It requires no embedding model, so it is always available as a
// fallback cross-check even when no vector index is configured.
type Jaccard struct{}

// Similarity returns the Jaccard index between the tokens of a and b.
// Two empty strings are considered identical (1.0); one empty and one
// non-empty are considered disjoint (0.0).
func (Jaccard) Similarity(a, b string) float64 {
	wordsA := Tokenize(a)
	wordsB := Tokenize(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1.0
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(wordsA))
	for _, w := range wordsA {
		setA[normalizeToken(w)] = true
	}
	setB := make(map[string]bool, len(wordsB))
	for _, w := range wordsB {
		setB[normalizeToken(w)] = true
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}
