package chromem_test

import (
	"context"
	"testing"
	"time"

	"github.com/kristina-ai/memcore/recall"
	"github.com/kristina-ai/memcore/recall/chromem"
	"github.com/kristina-ai/memcore/recall/embedder/mock"
)

func newStore(t *testing.T) *chromem.ChromemStore {
	t.Helper()
	s, err := chromem.New(chromem.Config{})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func embed(t *testing.T, e recall.Embedder, text string) []float32 {
	t.Helper()
	vec, err := e.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("embed %q: %v", text, err)
	}
	return vec
}

func TestStoreAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	e := mock.New(64)

	texts := []string{
		"the deploy failed on friday",
		"lunch order for the team",
		"database migration notes",
	}
	for _, text := range texts {
		err := s.Store(ctx, recall.Record{
			AgentID:    "agent1",
			Kind:       "episode",
			Text:       text,
			Importance: 2,
			Embedding:  embed(t, e, text),
		})
		if err != nil {
			t.Fatalf("store %q: %v", text, err)
		}
	}

	// Querying with a stored text's own embedding must return it first.
	results, err := s.Query(ctx, "agent1", embed(t, e, "database migration notes"), 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Text != "database migration notes" {
		t.Errorf("top result = %q, want the identical text", results[0].Text)
	}
	if results[0].Similarity < 0.999 {
		t.Errorf("self-similarity = %v, want ~1.0", results[0].Similarity)
	}
	if results[0].Kind != "episode" || results[0].Importance != 2 {
		t.Errorf("metadata lost: kind=%q importance=%d", results[0].Kind, results[0].Importance)
	}
	if results[0].ID == "" {
		t.Error("store did not assign an ID")
	}
}

func TestQuery_AgentIsolation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	e := mock.New(64)

	err := s.Store(ctx, recall.Record{
		AgentID:   "alice",
		Kind:      "fact",
		Text:      "alice's secret",
		Embedding: embed(t, e, "alice's secret"),
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := s.Query(ctx, "bob", embed(t, e, "alice's secret"), 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("bob sees %d of alice's records, want 0", len(results))
	}
}

func TestQuery_EmptyCollection(t *testing.T) {
	s := newStore(t)
	e := mock.New(64)

	results, err := s.Query(context.Background(), "nobody", embed(t, e, "anything"), 10)
	if err != nil {
		t.Fatalf("query on empty collection: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty collection", len(results))
	}
}

func TestQuery_LimitClampedToCollectionSize(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	e := mock.New(64)

	if err := s.Store(ctx, recall.Record{
		AgentID:   "a",
		Text:      "only record",
		Embedding: embed(t, e, "only record"),
	}); err != nil {
		t.Fatal(err)
	}

	results, err := s.Query(ctx, "a", embed(t, e, "only record"), 50)
	if err != nil {
		t.Fatalf("query with oversized limit: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestStore_RejectsMissingEmbedding(t *testing.T) {
	s := newStore(t)

	err := s.Store(context.Background(), recall.Record{AgentID: "a", Text: "no vector"})
	if err == nil {
		t.Error("expected error for record without embedding")
	}
}

func TestQuery_SeesWritesAfterCachedQuery(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	e := mock.New(64)

	probe := embed(t, e, "some probe text")

	if err := s.Store(ctx, recall.Record{
		AgentID: "a", Text: "first", Embedding: embed(t, e, "first"),
	}); err != nil {
		t.Fatal(err)
	}

	// Prime the query cache.
	if _, err := s.Query(ctx, "a", probe, 10); err != nil {
		t.Fatal(err)
	}

	if err := s.Store(ctx, recall.Record{
		AgentID: "a", Text: "second", Embedding: embed(t, e, "second"),
	}); err != nil {
		t.Fatal(err)
	}

	// The write bumps the agent's generation, so the cached result for the
	// identical query must not be served.
	results, err := s.Query(ctx, "a", probe, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results after second write, want 2", len(results))
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	e := mock.New(64)

	rec := recall.Record{
		ID:        "fixed-id",
		AgentID:   "a",
		Text:      "to be deleted",
		CreatedAt: time.Now().UTC(),
		Embedding: embed(t, e, "to be deleted"),
	}
	if err := s.Store(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "a", "fixed-id"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	results, err := s.Query(ctx, "a", embed(t, e, "to be deleted"), 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.ID == "fixed-id" {
			t.Error("deleted record still returned")
		}
	}
}
