// Command memcore is a small operator CLI over a memory directory.
// It reads and writes the same JSON snapshots the engine uses, so it can
// inspect or patch an agent's memory while the agent is stopped.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kristina-ai/memcore/embcache"
	"github.com/kristina-ai/memcore/memory"
)

var (
	memoryDir string
	cacheDir  string
)

var rootCmd = &cobra.Command{
	Use:   "memcore",
	Short: "Inspect and edit an agent's memory directory",
	Long: `memcore operates on the JSON snapshot files of a memory directory
(episodic.json, semantic.json, embedding_cache.json). Snapshots are assumed
single-writer: stop the agent before editing.`,
	SilenceUsage: true,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-tier entry counts and cache counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := openEngine()
		stats := engine.Stats()

		out := map[string]any{
			"working":  stats.Working,
			"episodic": stats.Episodic,
			"semantic": stats.Semantic,
		}
		if cacheDir != "" {
			size, hits, misses := embcache.New(cacheDir, 0).Stats()
			out["cache_entries"] = size
			out["cache_hits"] = hits
			out["cache_misses"] = misses
		}

		b, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(b))
		return nil
	},
}

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Find episodes relevant to a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxItems, _ := cmd.Flags().GetInt("limit")

		results := openEngine().RelevantContext(args[0], maxItems)
		if len(results) == 0 {
			fmt.Println("no matching episodes")
			return nil
		}
		for _, m := range results {
			fmt.Printf("%3d  %s  %s\n", m.Score, m.Timestamp, m.Preview)
		}
		return nil
	},
}

var rememberCmd = &cobra.Command{
	Use:   "remember <user-input> <response>",
	Short: "Append an episode and save the snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		emotion, _ := cmd.Flags().GetString("emotion")
		importance, _ := cmd.Flags().GetInt("importance")

		engine := openEngine()
		engine.AddEpisode(args[0], args[1], emotion, importance)
		engine.Save()

		fmt.Printf("remembered (%d episodes total)\n", engine.Stats().Episodic)
		return nil
	},
}

var factCmd = &cobra.Command{
	Use:   "fact",
	Short: "Read and write semantic facts",
}

var factGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a fact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, ok := openEngine().Semantic(args[0])
		if !ok {
			return fmt.Errorf("no fact stored under %q", args[0])
		}
		fmt.Println(v)
		return nil
	},
}

var factSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a fact and save the snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := openEngine()
		engine.AddSemantic(args[0], args[1])
		engine.Save()
		return nil
	},
}

func openEngine() *memory.MemoryEngine {
	return memory.NewEngine(memory.Config{Dir: memoryDir})
}

func defaultMemoryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memcore"
	}
	return filepath.Join(home, ".memcore")
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&memoryDir, "dir", "d", defaultMemoryDir(), "Memory directory")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Embedding cache directory (stats only)")

	recallCmd.Flags().Int("limit", 3, "Maximum results")
	rememberCmd.Flags().String("emotion", "neutral", "Emotion label for the episode")
	rememberCmd.Flags().Int("importance", 1, "Importance weight for eviction and scoring")

	factCmd.AddCommand(factGetCmd, factSetCmd)
	rootCmd.AddCommand(statsCmd, recallCmd, rememberCmd, factCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
