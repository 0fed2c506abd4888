// Package chromem implements recall.Store on top of chromem-go, a pure Go
// embedded vector database.
package chromem

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/kristina-ai/memcore/recall"
)

// queryTTL bounds how long a cached query result may be served.
const queryTTL = time.Minute

// Config configures a chromem-backed store.
type Config struct {
	// Dir is the persistence directory. Empty means a purely in-memory DB.
	Dir string

	// QueryCacheSize bounds the hot-query cache in bytes. Default: 16 MiB.
	QueryCacheSize int64
}

// ChromemStore stores records in per-agent chromem collections.
//
// Repeated identical queries within a session are served from a ristretto
// result cache; any write to an agent's collection invalidates that agent's
// cached queries by bumping a per-agent generation counter.
type ChromemStore struct {
	db *chromem.DB

	mu          sync.RWMutex
	collections map[string]*chromem.Collection

	queryCache *ristretto.Cache
	gens       sync.Map // agentID -> *atomic.Uint64
}

// New creates a chromem-backed store. With cfg.Dir set, records survive
// restarts; otherwise everything lives in memory.
func New(cfg Config) (*ChromemStore, error) {
	var db *chromem.DB
	if cfg.Dir != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Dir, false)
		if err != nil {
			return nil, fmt.Errorf("open persistent db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	maxCost := cfg.QueryCacheSize
	if maxCost <= 0 {
		maxCost = 16 << 20
	}
	queryCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 14,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}

	return &ChromemStore{
		db:          db,
		collections: make(map[string]*chromem.Collection),
		queryCache:  queryCache,
	}, nil
}

// collection returns the agent's collection, creating it on first use.
func (s *ChromemStore) collection(agentID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[agentID]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[agentID]; ok {
		return col, nil
	}

	name := "agent_" + agentID
	if agentID == "" {
		name = "shared"
	}
	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", name, err)
	}
	s.collections[agentID] = col
	return col, nil
}

// Store persists a record, assigning an ID if the caller left it empty.
func (s *ChromemStore) Store(ctx context.Context, rec recall.Record) error {
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("store record: embedding not set")
	}

	col, err := s.collection(rec.AgentID)
	if err != nil {
		return err
	}

	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	doc := chromem.Document{
		ID:        id,
		Content:   rec.Text,
		Embedding: rec.Embedding,
		Metadata: map[string]string{
			"agent_id":   rec.AgentID,
			"kind":       rec.Kind,
			"emotion":    rec.Emotion,
			"importance": strconv.Itoa(rec.Importance),
			"created_at": createdAt.Format(time.RFC3339),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	s.generation(rec.AgentID).Add(1)
	log.Printf("[RECALL] stored %s record %s for agent %q", rec.Kind, id, rec.AgentID)
	return nil
}

// Query returns up to limit records most similar to the embedding.
// The limit is clamped to the collection size; an empty collection yields
// an empty result, not an error.
func (s *ChromemStore) Query(ctx context.Context, agentID string, embedding []float32, limit int) ([]recall.Result, error) {
	col, err := s.collection(agentID)
	if err != nil {
		return nil, err
	}

	if n := col.Count(); limit > n {
		limit = n
	}
	if limit <= 0 {
		return nil, nil
	}

	key := s.queryKey(agentID, embedding, limit)
	if cached, ok := s.queryCache.Get(key); ok {
		return cached.([]recall.Result), nil
	}

	raw, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	results := make([]recall.Result, 0, len(raw))
	for _, r := range raw {
		importance, _ := strconv.Atoi(r.Metadata["importance"])
		createdAt, _ := time.Parse(time.RFC3339, r.Metadata["created_at"])
		results = append(results, recall.Result{
			Record: recall.Record{
				ID:         r.ID,
				AgentID:    r.Metadata["agent_id"],
				Kind:       r.Metadata["kind"],
				Text:       r.Content,
				Emotion:    r.Metadata["emotion"],
				Importance: importance,
				CreatedAt:  createdAt,
				Embedding:  r.Embedding,
			},
			Similarity: r.Similarity,
		})
	}

	cost := int64(len(results)*64 + 1)
	s.queryCache.SetWithTTL(key, results, cost, queryTTL)
	return results, nil
}

// Delete removes a record from the agent's collection.
func (s *ChromemStore) Delete(ctx context.Context, agentID, id string) error {
	col, err := s.collection(agentID)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	s.generation(agentID).Add(1)
	return nil
}

// Close releases the query cache. The chromem DB needs no teardown.
func (s *ChromemStore) Close() error {
	s.queryCache.Close()
	return nil
}

var _ recall.Store = (*ChromemStore)(nil)

// generation returns the agent's write-generation counter. The counter is
// folded into every query-cache key, so a write instantly orphans all of
// that agent's cached queries.
func (s *ChromemStore) generation(agentID string) *atomic.Uint64 {
	g, _ := s.gens.LoadOrStore(agentID, &atomic.Uint64{})
	return g.(*atomic.Uint64)
}

// queryKey builds the result-cache key from the agent, its current write
// generation, the query embedding, and the limit.
func (s *ChromemStore) queryKey(agentID string, embedding []float32, limit int) string {
	d := xxhash.New()
	var buf [4]byte
	for _, x := range embedding {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(x))
		d.Write(buf[:])
	}
	return fmt.Sprintf("%s:%d:%d:%016x", agentID, s.generation(agentID).Load(), limit, d.Sum64())
}
