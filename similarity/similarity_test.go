package similarity_test

import (
	"math"
	"testing"

	"github.com/kristina-ai/memcore/similarity"
)

func TestCosine_IdenticalVectors(t *testing.T) {
	v := []float32{1.0, 2.0, 3.0}
	sim := similarity.Cosine(v, v)
	if math.Abs(float64(sim)-1.0) > 1e-6 {
		t.Errorf("Cosine(v, v) = %v, want ~1.0", sim)
	}
}

func TestCosine_OrthogonalVectors(t *testing.T) {
	a := []float32{1.0, 0.0}
	b := []float32{0.0, 1.0}
	sim := similarity.Cosine(a, b)
	if math.Abs(float64(sim)) > 1e-6 {
		t.Errorf("Cosine(a, b) = %v, want ~0.0", sim)
	}
}

func TestCosine_OppositeVectors(t *testing.T) {
	a := []float32{1.0, 2.0}
	b := []float32{-1.0, -2.0}
	sim := similarity.Cosine(a, b)
	if math.Abs(float64(sim)+1.0) > 1e-6 {
		t.Errorf("Cosine(a, -a) = %v, want ~-1.0", sim)
	}
}

func TestCosine_DegenerateInputs(t *testing.T) {
	long := []float32{1.0, 2.0, 3.0}
	short := []float32{1.0, 2.0}
	zero := []float32{0.0, 0.0, 0.0}

	cases := []struct {
		name string
		a, b []float32
	}{
		{"mismatched lengths", long, short},
		{"both empty", nil, nil},
		{"one empty", long, nil},
		{"zero vector", long, zero},
		{"both zero", zero, zero},
	}
	for _, tc := range cases {
		if sim := similarity.Cosine(tc.a, tc.b); sim != 0.0 {
			t.Errorf("%s: Cosine = %v, want exactly 0.0", tc.name, sim)
		}
	}
}

func TestBatchCosine_TopK(t *testing.T) {
	query := []float32{1.0, 0.0, 0.0}
	docs := [][]float32{
		{1.0, 0.0, 0.0}, // sim = 1.0
		{0.0, 1.0, 0.0}, // sim = 0.0
		{0.5, 0.5, 0.0}, // sim ~= 0.707
	}

	results := similarity.BatchCosine(query, docs, 2)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Index != 0 {
		t.Errorf("top match index = %d, want 0", results[0].Index)
	}
	if math.Abs(float64(results[0].Score)-1.0) > 1e-6 {
		t.Errorf("top score = %v, want ~1.0", results[0].Score)
	}
	if results[1].Index != 2 {
		t.Errorf("second match index = %d, want 2", results[1].Index)
	}
	if math.Abs(float64(results[1].Score)-0.7071) > 1e-3 {
		t.Errorf("second score = %v, want ~0.707", results[1].Score)
	}
}

func TestBatchCosine_SortedDescending(t *testing.T) {
	query := []float32{1.0, 1.0}
	docs := [][]float32{
		{0.1, 1.0},
		{1.0, 1.0},
		{1.0, 0.0},
		{-1.0, -1.0},
		{0.9, 1.0},
	}

	results := similarity.BatchCosine(query, docs, len(docs))
	if len(results) != len(docs) {
		t.Fatalf("got %d results, want %d", len(results), len(docs))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not descending at %d: %v > %v", i, results[i].Score, results[i-1].Score)
		}
	}
	if results[0].Index != 1 {
		t.Errorf("best match index = %d, want 1", results[0].Index)
	}
}

func TestBatchCosine_ExcludesMalformedDocuments(t *testing.T) {
	query := []float32{1.0, 0.0}
	docs := [][]float32{
		{1.0, 0.0},
		{1.0, 0.0, 0.0}, // wrong dimensionality
		{0.0, 0.0},      // zero norm
		{0.0, 1.0},
	}

	results := similarity.BatchCosine(query, docs, 10)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (malformed docs excluded)", len(results))
	}
	for _, m := range results {
		if m.Index == 1 || m.Index == 2 {
			t.Errorf("malformed document %d present in results", m.Index)
		}
	}
}

func TestBatchCosine_EmptyInputs(t *testing.T) {
	if got := similarity.BatchCosine(nil, [][]float32{{1, 2}}, 3); len(got) != 0 {
		t.Errorf("empty query: got %d results, want 0", len(got))
	}
	if got := similarity.BatchCosine([]float32{1, 2}, nil, 3); len(got) != 0 {
		t.Errorf("empty documents: got %d results, want 0", len(got))
	}
	if got := similarity.BatchCosine([]float32{0, 0}, [][]float32{{1, 2}}, 3); len(got) != 0 {
		t.Errorf("zero-norm query: got %d results, want 0", len(got))
	}
}

// Exercises the goroutine fan-out path (document count above the parallel
// threshold) and checks it agrees with the expected full ordering.
func TestBatchCosine_LargeBatchParallelPath(t *testing.T) {
	const n = 200
	query := []float32{1.0, 0.0}
	docs := make([][]float32, n)
	for i := range docs {
		// Angle shrinks with the index, so similarity grows with it.
		angle := float64(n-i) / float64(n) * math.Pi / 2
		docs[i] = []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
	}

	results := similarity.BatchCosine(query, docs, 5)
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	// The five most aligned documents are the last five, best first.
	for i, m := range results {
		want := n - 1 - i
		if m.Index != want {
			t.Errorf("result %d: index = %d, want %d", i, m.Index, want)
		}
	}
}

func TestBatchCosine_TopKLargerThanCorpus(t *testing.T) {
	query := []float32{1.0, 0.0}
	docs := [][]float32{{1.0, 0.0}, {0.0, 1.0}}

	results := similarity.BatchCosine(query, docs, 50)
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}
