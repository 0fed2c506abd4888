package memory

// WorkingEntry is a single turn held in working memory.
// Ephemeral: working memory is never persisted and resets on restart.
type WorkingEntry struct {
	Role      string
	Content   string
	Timestamp string // RFC 3339
}

// Episode is one stored interaction in the episodic tier.
//
// Episodes are immutable once created except for removal during eviction.
// Keywords are derived from the user input at creation time (stop-word
// filtered, minimum four runes, first-occurrence order, at most ten) and
// exist for display and summaries; recall goes through the broader inverted
// index instead.
type Episode struct {
	Timestamp  string   `json:"timestamp"`
	UserInput  string   `json:"user_input"`
	Response   string   `json:"response"`
	Emotion    string   `json:"emotion"`
	Importance int      `json:"importance"`
	Keywords   []string `json:"keywords"`
}

// ContextMatch is one recall result from RelevantContext.
type ContextMatch struct {
	// Timestamp is the matched episode's creation time.
	Timestamp string

	// Preview is the first 80 characters of the episode's user input,
	// measured in runes so multi-byte text is not split.
	Preview string

	// Score is keyword-hit count multiplied by the episode's importance.
	Score int
}

// Stats reports per-tier entry counts.
type Stats struct {
	Working  int
	Episodic int
	Semantic int
}

// Engine is the tiered memory surface the host composes against.
//
// The host is opinionated about WHEN memory is read and written (record a
// turn, fetch context for a query); the Engine is unopinionated about HOW —
// it owns scoring, eviction, indexing, and persistence. All methods are safe
// for concurrent use; none blocks on IO except Save and Load.
type Engine interface {
	// Working tier.
	AddToWorking(role, content string)
	WorkingMemory() []WorkingEntry
	ClearWorking()

	// Episodic tier. AddEpisode may run eviction synchronously before
	// returning when the tier overflows.
	AddEpisode(userInput, response, emotion string, importance int)
	RelevantContext(query string, maxItems int) []ContextMatch

	// Semantic tier. Last write wins on duplicate keys.
	AddSemantic(key, value string)
	Semantic(key string) (string, bool)

	// Persistence: full-snapshot overwrite / wholesale reload. Best-effort,
	// failures degrade to "no persisted state".
	Save()
	Load()

	Stats() Stats
}

// Config configures a MemoryEngine.
type Config struct {
	// Dir is the snapshot directory. Created if absent; creation failure
	// degrades to in-memory-only operation.
	Dir string

	// WorkingSize bounds the working tier. Default: 10.
	WorkingSize int

	// MaxEpisodic bounds the episodic tier. Default: 1000.
	MaxEpisodic int
}
