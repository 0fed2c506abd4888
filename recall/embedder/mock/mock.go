// Package mock provides a deterministic embedder for tests and examples.
package mock

import (
	"context"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Embedder produces deterministic pseudo-random unit vectors seeded by the
// text's hash. Identical text always embeds identically, so cache and store
// behavior can be tested without a model, but there is no real semantic
// similarity between different texts.
type Embedder struct {
	dims int
}

// New creates a mock embedder with the given dimensionality.
// Zero or negative means 384, matching all-MiniLM-L6-v2.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = 384
	}
	return &Embedder{dims: dims}
}

// Embed derives a unit vector from the text's xxhash.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	state := xxhash.Sum64String(text)

	vec := make([]float32, e.dims)
	var norm float64
	for i := range vec {
		// Cheap LCG step over the hash seed keeps components independent.
		state = state*6364136223846793005 + 1442695040888963407
		v := float64(int64(state)) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dims
}
