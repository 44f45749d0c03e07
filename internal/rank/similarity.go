package rank

import "github.com/deusflow/pacwatch/internal/textnorm"

// Similarity compares two folded titles and returns a score in 0..1.
type Similarity interface {
	Similarity(a, b string) float64
}

// SimilarityFunc adapts a plain function to Similarity.
type SimilarityFunc func(a, b string) float64

func (f SimilarityFunc) Similarity(a, b string) float64 { return f(a, b) }

// Jaccard is token-set overlap: |A ∩ B| / |A ∪ B|. Two empty titles are
// not considered similar.
var Jaccard = SimilarityFunc(func(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
})

func tokenSet(folded string) map[string]bool {
	tokens := textnorm.Tokens(folded)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
