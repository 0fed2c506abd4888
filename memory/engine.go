package memory

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

const (
	episodicFile = "episodic.json"
	semanticFile = "semantic.json"

	defaultWorkingSize = 10
	defaultMaxEpisodic = 1000

	previewRunes = 80
)

// MemoryEngine is the concrete Engine implementation.
//
// The episodic slice and the keyword index share one RWMutex: index entries
// are positional, so a reader must never observe episodes and an index that
// disagree on positions. The semantic tier is a fine-grained concurrent map
// and never contends with the other tiers.
type MemoryEngine struct {
	dir         string
	workingSize int
	maxEpisodic int

	workingMu sync.RWMutex
	working   []WorkingEntry

	epMu     sync.RWMutex
	episodic []Episode
	index    map[uint64][]int

	semantic      sync.Map // string -> string
	semanticCount atomic.Int64
}

var _ Engine = (*MemoryEngine)(nil)

// NewEngine creates a MemoryEngine and loads any prior snapshot from
// cfg.Dir. The engine is always constructible: directory-creation and
// snapshot failures degrade to an empty in-memory state.
func NewEngine(cfg Config) *MemoryEngine {
	if cfg.WorkingSize <= 0 {
		cfg.WorkingSize = defaultWorkingSize
	}
	if cfg.MaxEpisodic <= 0 {
		cfg.MaxEpisodic = defaultMaxEpisodic
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		log.Printf("[MEMORY] create dir %s: %v (in-memory only)", cfg.Dir, err)
	}

	e := &MemoryEngine{
		dir:         cfg.Dir,
		workingSize: cfg.WorkingSize,
		maxEpisodic: cfg.MaxEpisodic,
		index:       make(map[uint64][]int),
	}
	e.Load()
	return e
}

// AddToWorking appends a turn with a generated timestamp, then trims the
// oldest entries until the tier is back within its bound.
func (e *MemoryEngine) AddToWorking(role, content string) {
	e.workingMu.Lock()
	defer e.workingMu.Unlock()

	e.working = append(e.working, WorkingEntry{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	for len(e.working) > e.workingSize {
		e.working = e.working[1:]
	}
}

// WorkingMemory returns the working tier oldest-to-newest.
func (e *MemoryEngine) WorkingMemory() []WorkingEntry {
	e.workingMu.RLock()
	defer e.workingMu.RUnlock()

	out := make([]WorkingEntry, len(e.working))
	copy(out, e.working)
	return out
}

// ClearWorking empties the working tier.
func (e *MemoryEngine) ClearWorking() {
	e.workingMu.Lock()
	defer e.workingMu.Unlock()
	e.working = nil
}

// AddEpisode stores an interaction in the episodic tier.
//
// Stored keywords come from the user input only; the inverted index covers
// the combined user input and response, so recall casts a wider net than
// the keyword list. If the tier overflows, eviction runs synchronously
// before AddEpisode returns.
func (e *MemoryEngine) AddEpisode(userInput, response, emotion string, importance int) {
	ep := Episode{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		UserInput:  userInput,
		Response:   response,
		Emotion:    emotion,
		Importance: importance,
		Keywords:   extractKeywords(userInput),
	}

	e.epMu.Lock()
	defer e.epMu.Unlock()

	pos := len(e.episodic)
	e.episodic = append(e.episodic, ep)
	indexText(e.index, pos, userInput+" "+response)

	if len(e.episodic) > e.maxEpisodic {
		e.evictEpisodes()
	}
}

// RelevantContext scores episodes by query-keyword overlap and returns the
// top maxItems matches, best first. The score of a match is its keyword-hit
// count multiplied by the episode's importance: importance amplifies
// relevance but never gates it, and an episode with zero overlap is never
// returned regardless of importance.
func (e *MemoryEngine) RelevantContext(query string, maxItems int) []ContextMatch {
	e.epMu.RLock()
	defer e.epMu.RUnlock()

	hits := make(map[int]int)
	for _, w := range splitQuery(query) {
		for _, pos := range e.index[wordHash(w)] {
			hits[pos]++
		}
	}

	results := make([]ContextMatch, 0, len(hits))
	for pos, count := range hits {
		if pos >= len(e.episodic) {
			continue
		}
		ep := e.episodic[pos]
		results = append(results, ContextMatch{
			Timestamp: ep.Timestamp,
			Preview:   runePrefix(ep.UserInput, previewRunes),
			Score:     count * ep.Importance,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxItems {
		results = results[:maxItems]
	}
	return results
}

// AddSemantic stores a fact. Last write wins.
func (e *MemoryEngine) AddSemantic(key, value string) {
	if _, replaced := e.semantic.Swap(key, value); !replaced {
		e.semanticCount.Add(1)
	}
}

// Semantic looks up a fact by key.
func (e *MemoryEngine) Semantic(key string) (string, bool) {
	v, ok := e.semantic.Load(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Save writes both durable tiers as pretty-printed JSON snapshots,
// overwriting any previous files. Best-effort: failures are logged and
// swallowed.
func (e *MemoryEngine) Save() {
	e.epMu.RLock()
	episodes := make([]Episode, len(e.episodic))
	copy(episodes, e.episodic)
	e.epMu.RUnlock()

	if data, err := json.MarshalIndent(episodes, "", "  "); err == nil {
		if err := os.WriteFile(filepath.Join(e.dir, episodicFile), data, 0o644); err != nil {
			log.Printf("[MEMORY] write %s: %v", episodicFile, err)
		}
	}

	facts := make(map[string]string)
	e.semantic.Range(func(k, v any) bool {
		facts[k.(string)] = v.(string)
		return true
	})
	if data, err := json.MarshalIndent(facts, "", "  "); err == nil {
		if err := os.WriteFile(filepath.Join(e.dir, semanticFile), data, 0o644); err != nil {
			log.Printf("[MEMORY] write %s: %v", semanticFile, err)
		}
	}
}

// Load reloads both durable tiers from disk. A successful parse replaces
// the in-memory state wholesale (and rebuilds the keyword index); a missing
// or corrupt file leaves the corresponding tier untouched.
func (e *MemoryEngine) Load() {
	if data, err := os.ReadFile(filepath.Join(e.dir, episodicFile)); err == nil {
		var episodes []Episode
		if err := json.Unmarshal(data, &episodes); err == nil {
			e.epMu.Lock()
			e.episodic = episodes
			rebuildIndex(e.index, e.episodic)
			e.epMu.Unlock()
		} else {
			log.Printf("[MEMORY] %s unreadable, starting empty: %v", episodicFile, err)
		}
	}

	if data, err := os.ReadFile(filepath.Join(e.dir, semanticFile)); err == nil {
		var facts map[string]string
		if err := json.Unmarshal(data, &facts); err == nil {
			e.semantic.Range(func(k, _ any) bool {
				e.semantic.Delete(k)
				return true
			})
			for k, v := range facts {
				e.semantic.Store(k, v)
			}
			e.semanticCount.Store(int64(len(facts)))
		} else {
			log.Printf("[MEMORY] %s unreadable, starting empty: %v", semanticFile, err)
		}
	}
}

// Stats returns per-tier entry counts.
func (e *MemoryEngine) Stats() Stats {
	e.workingMu.RLock()
	working := len(e.working)
	e.workingMu.RUnlock()

	e.epMu.RLock()
	episodic := len(e.episodic)
	e.epMu.RUnlock()

	return Stats{
		Working:  working,
		Episodic: episodic,
		Semantic: int(e.semanticCount.Load()),
	}
}

// evictEpisodes removes the max(1, maxEpisodic/10) lowest-value episodes.
// Caller must hold epMu for writing.
//
// Value density is importance divided by age in hours (floored at one hour);
// an episode whose timestamp no longer parses gets age = 1h, the maximal
// density for its importance, so damaged-but-possibly-recent entries are the
// last to look stale. Removal walks victim positions in descending order so
// earlier removals cannot shift not-yet-removed victims, and the keyword
// index is rebuilt afterwards because its entries are positional.
func (e *MemoryEngine) evictEpisodes() {
	removeCount := e.maxEpisodic / 10
	if removeCount < 1 {
		removeCount = 1
	}
	now := time.Now().UTC()

	type candidate struct {
		pos     int
		density float64
	}
	scored := make([]candidate, len(e.episodic))
	for i, ep := range e.episodic {
		ageHours := 1.0
		if ts, err := time.Parse(time.RFC3339, ep.Timestamp); err == nil {
			ageHours = now.Sub(ts).Hours()
			if ageHours < 1.0 {
				ageHours = 1.0
			}
		}
		scored[i] = candidate{pos: i, density: float64(ep.Importance) / ageHours}
	}
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].density < scored[j].density
	})

	if removeCount > len(scored) {
		removeCount = len(scored)
	}
	victims := make([]int, removeCount)
	for i := 0; i < removeCount; i++ {
		victims[i] = scored[i].pos
	}
	sort.Sort(sort.Reverse(sort.IntSlice(victims)))

	for _, pos := range victims {
		e.episodic = append(e.episodic[:pos], e.episodic[pos+1:]...)
	}
	rebuildIndex(e.index, e.episodic)
}

// splitQuery tokenizes a recall query: whitespace-split, lowercased, tokens
// of two runes or fewer dropped.
func splitQuery(query string) []string {
	var tokens []string
	for _, w := range strings.Fields(query) {
		lower := strings.ToLower(w)
		if utf8.RuneCountInString(lower) > 2 {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

func runePrefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
