// Package recall defines the vector-recall boundary around the memory core.
//
// The core engine retrieves by keyword overlap; recall retrieves by
// embedding proximity. The host composes both: it embeds text (through an
// Embedder, ideally fronted by the embedding cache) and stores the vectors
// in a Store for later nearest-neighbor lookup.
//
// Implementations:
//   - chromem: embedded, optionally persistent vector database
//   - embedder/mock: deterministic hash-seeded embedder for tests
//   - embedder/onnx: local MiniLM embedder (build tag "onnx")
package recall

import (
	"context"
	"time"
)

// Record is a single memory committed to vector storage.
type Record struct {
	// ID uniquely identifies the record. Left empty, the store assigns one.
	ID string

	// AgentID namespaces records; queries never cross agents.
	AgentID string

	// Kind labels what the record is ("episode", "fact", ...).
	Kind string

	// Text is the raw content the embedding was computed from.
	Text string

	// Emotion and Importance carry the episodic metadata along so recall
	// results can be re-ranked without a second lookup.
	Emotion    string
	Importance int

	CreatedAt time.Time

	// Embedding must be set before the record is stored.
	Embedding []float32
}

// Result is a Record returned from a similarity query.
type Result struct {
	Record

	// Similarity is the cosine similarity against the query embedding.
	Similarity float32
}

// Store is the durable vector storage backend.
type Store interface {
	// Store persists a record. The record's embedding must be set.
	Store(ctx context.Context, rec Record) error

	// Query returns up to limit records for the agent, most similar first.
	Query(ctx context.Context, agentID string, embedding []float32, limit int) ([]Result, error)

	// Delete removes a record permanently.
	Delete(ctx context.Context, agentID, id string) error

	// Close releases resources.
	Close() error
}

// Embedder converts text to embedding vectors.
//
// Hosts should front an Embedder with embcache.Cache so repeated text is
// never re-embedded.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
