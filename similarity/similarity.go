// Package similarity provides cosine-similarity kernels for embedding vectors.
//
// The package is stateless: every function is pure and safe to call from any
// number of goroutines. Batch ranking switches to a goroutine fan-out for
// large document sets and uses a partial selection step so that ranking N
// documents for the top k costs O(N) on average instead of O(N log N).
package similarity

import (
	"math"
	"runtime"
	"sort"
	"sync"
)

// minNorm is the norm floor below which a vector is treated as zero.
// Dividing by anything smaller would produce NaN/Inf garbage scores.
const minNorm = 1e-8

// parallelThreshold is the document count at which BatchCosine fans out
// across goroutines. Below it, dispatch overhead dominates the work.
const parallelThreshold = 32

// Match is a single ranked document from BatchCosine.
type Match struct {
	// Index is the document's position in the input slice.
	Index int

	// Score is the cosine similarity against the query.
	Score float32
}

// Cosine returns the cosine similarity of two vectors.
//
// It is a total function: mismatched lengths, empty vectors, and near-zero
// norms all yield 0.0 rather than an error. Accumulation happens in float64
// even though inputs are float32, to keep floating-point error under control
// on long vectors; the final ratio is cast back to float32. The result is
// conceptually in [-1, 1] but is not clamped.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom < minNorm {
		return 0.0
	}
	return float32(dot / denom)
}

// BatchCosine ranks documents against a query vector and returns the top k
// matches sorted by similarity descending.
//
// Documents whose length differs from the query's, or whose norm is below
// the zero floor, are silently excluded rather than failing the batch: a
// partially malformed corpus degrades gracefully. The result length is
// min(topK, number of valid documents). An empty query, an empty document
// list, or a near-zero query norm yields an empty result.
//
// Ties in score are broken arbitrarily: the selection step is unstable, so
// equal-score documents may appear in any relative order.
func BatchCosine(query []float32, documents [][]float32, topK int) []Match {
	if len(query) == 0 || len(documents) == 0 || topK <= 0 {
		return nil
	}

	// The query norm is shared by every comparison; compute it once.
	var qSquared float64
	for _, x := range query {
		qSquared += float64(x) * float64(x)
	}
	qNorm := math.Sqrt(qSquared)
	if qNorm < minNorm {
		return nil
	}

	// Each document computes into its own slot, so the parallel and the
	// sequential paths share one kernel and identical numeric behavior.
	slots := make([]Match, len(documents))
	valid := make([]bool, len(documents))
	score := func(i int) {
		doc := documents[i]
		if len(doc) != len(query) {
			return
		}
		var dot, dSquared float64
		for j := range query {
			q := float64(query[j])
			d := float64(doc[j])
			dot += q * d
			dSquared += d * d
		}
		dNorm := math.Sqrt(dSquared)
		if dNorm < minNorm {
			return
		}
		slots[i] = Match{Index: i, Score: float32(dot / (qNorm * dNorm))}
		valid[i] = true
	}

	if len(documents) >= parallelThreshold {
		workers := runtime.GOMAXPROCS(0)
		if workers > len(documents) {
			workers = len(documents)
		}
		var wg sync.WaitGroup
		chunk := (len(documents) + workers - 1) / workers
		for w := 0; w < workers; w++ {
			lo := w * chunk
			hi := lo + chunk
			if hi > len(documents) {
				hi = len(documents)
			}
			if lo >= hi {
				break
			}
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					score(i)
				}
			}(lo, hi)
		}
		wg.Wait()
	} else {
		for i := range documents {
			score(i)
		}
	}

	results := make([]Match, 0, len(documents))
	for i, ok := range valid {
		if ok {
			results = append(results, slots[i])
		}
	}

	if len(results) > topK {
		selectTopK(results, topK)
		results = results[:topK]
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// selectTopK partitions matches so that the k highest scores occupy the
// prefix, in arbitrary order. Average O(n) quickselect; not stable.
func selectTopK(matches []Match, k int) {
	lo, hi := 0, len(matches)-1
	for lo < hi {
		p := partitionDesc(matches, lo, hi)
		switch {
		case p == k:
			return
		case p < k:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
}

// partitionDesc partitions matches[lo:hi+1] around a pivot under a
// descending-score order and returns the pivot's final position.
func partitionDesc(matches []Match, lo, hi int) int {
	// Median-ish pivot choice guards against adversarial orderings.
	mid := lo + (hi-lo)/2
	matches[mid], matches[hi] = matches[hi], matches[mid]
	pivot := matches[hi].Score

	i := lo
	for j := lo; j < hi; j++ {
		if matches[j].Score > pivot {
			matches[i], matches[j] = matches[j], matches[i]
			i++
		}
	}
	matches[i], matches[hi] = matches[hi], matches[i]
	return i
}
