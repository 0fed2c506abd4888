// Package memory provides the tiered memory engine for a conversational agent.
//
// Three tiers, each independently safe for concurrent use:
//   - Working memory: FIFO-bounded buffer of the most recent turns (in-memory only)
//   - Episodic memory: importance/age-scored interaction log with keyword recall
//   - Semantic memory: durable key→value fact store
//
// Recall over the episodic tier goes through an inverted index mapping the
// xxhash of each lowercased token to the positions of the episodes containing
// it. Index entries are positional, so any removal that shifts positions
// triggers a full rebuild.
//
// Persistence is a best-effort JSON snapshot (episodic.json, semantic.json)
// under the configured memory directory. A missing or corrupt snapshot is
// treated as a fresh start, never as an error.
package memory
