package memory

import (
	"strings"
	"testing"
)

func TestExtractKeywords_FiltersAndOrder(t *testing.T) {
	got := extractKeywords("The weather in Lisbon is lovely for walking")

	// "the"/"is"/"in"/"for" are stop words; "the" is also too short anyway.
	want := []string{"weather", "lisbon", "lovely", "walking"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword %d = %q, want %q (first-occurrence order)", i, got[i], want[i])
		}
	}
}

func TestExtractKeywords_MinimumLengthIsFourRunes(t *testing.T) {
	// "кот" is three runes (six bytes) and must be dropped; "мороз" stays.
	got := extractKeywords("кот мороз joy tree")
	want := []string{"мороз", "tree"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractKeywords_CapAtTen(t *testing.T) {
	words := make([]string, 25)
	for i := range words {
		words[i] = "keyword" + string(rune('a'+i))
	}
	got := extractKeywords(strings.Join(words, " "))
	if len(got) != 10 {
		t.Errorf("got %d keywords, want 10", len(got))
	}
}

func TestExtractKeywords_Lowercases(t *testing.T) {
	got := extractKeywords("URGENT Deployment")
	if len(got) != 2 || got[0] != "urgent" || got[1] != "deployment" {
		t.Errorf("got %v, want [urgent deployment]", got)
	}
}

func TestIndexText_ThresholdLowerThanKeywords(t *testing.T) {
	index := make(map[uint64][]int)

	// "dog" is three runes: too short for a stored keyword, long enough
	// for the index.
	indexText(index, 0, "dog ran far")
	if got := index[wordHash("dog")]; len(got) != 1 || got[0] != 0 {
		t.Errorf("index[dog] = %v, want [0]", got)
	}
	if got := index[wordHash("ran")]; len(got) != 1 {
		t.Errorf("index[ran] = %v, want one entry", got)
	}
	if got := index[wordHash("up")]; len(got) != 0 {
		t.Errorf("two-rune token indexed: %v", got)
	}
	if kw := extractKeywords("dog ran far"); len(kw) != 0 {
		t.Errorf("three-rune words stored as keywords: %v", kw)
	}
}

func TestRebuildIndex_PositionsMatchSurvivors(t *testing.T) {
	index := make(map[uint64][]int)
	indexText(index, 0, "alpha topic")
	indexText(index, 1, "beta topic")
	indexText(index, 2, "gamma topic")

	// Episode at position 1 removed; positions shift.
	episodes := []Episode{
		{UserInput: "alpha topic", Response: "ok"},
		{UserInput: "gamma topic", Response: "ok"},
	}
	rebuildIndex(index, episodes)

	if got := index[wordHash("gamma")]; len(got) != 1 || got[0] != 1 {
		t.Errorf("index[gamma] = %v, want [1] after rebuild", got)
	}
	if got := index[wordHash("beta")]; len(got) != 0 {
		t.Errorf("index[beta] = %v, want empty after rebuild", got)
	}
	if got := index[wordHash("topic")]; len(got) != 2 {
		t.Errorf("index[topic] = %v, want two positions", got)
	}
}
