package lexical

import "math"

// Jaccard returns |A∩B| / |A∪B| over the word sets of two normalized
// strings. Either side being empty yields 0.
func Jaccard(a, b string) float64 {
	sa, sb := TokenSet(a), TokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// TFIDFCosine computes the cosine similarity of the TF-IDF vectors of a and
// b, treating the pair as a two-document corpus. IDF is smoothed as
// ln((1+N)/(1+df)) + 1 so shared terms keep a non-zero weight.
func TFIDFCosine(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	tfA := termCounts(ta)
	tfB := termCounts(tb)

	const docs = 2.0
	idf := func(term string) float64 {
		df := 0.0
		if _, ok := tfA[term]; ok {
			df++
		}
		if _, ok := tfB[term]; ok {
			df++
		}
		return math.Log((1+docs)/(1+df)) + 1
	}

	var dot, normA, normB float64
	for term, ca := range tfA {
		w := ca * idf(term)
		normA += w * w
		if cb, ok := tfB[term]; ok {
			dot += w * cb * idf(term)
		}
	}
	for term, cb := range tfB {
		w := cb * idf(term)
		normB += w * w
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func termCounts(tokens []string) map[string]float64 {
	counts := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}
