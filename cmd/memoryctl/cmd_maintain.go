package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	maintainDryRun bool

	consolidateSessionFile string
	consolidateProject     string
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run the daily maintenance pass (decay, archival, stats, health)",
	Run: func(cmd *cobra.Command, args []string) {
		runMaintain()
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote eligible memories from project scope to global scope",
	Run: func(cmd *cobra.Command, args []string) {
		runPromote()
	},
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Rebuild topic clusters over the current corpus",
	Run: func(cmd *cobra.Command, args []string) {
		runCluster()
	},
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Extract and save memories from a Claude Code session transcript",
	Long: `Reads a JSONL session transcript, extracts candidate memories (learning
statements, corrections, problem/solution pairs, assistant insights),
deduplicates them against the existing corpus, and saves what survives.

Examples:
  memoryctl consolidate --file ~/.claude/projects/myapp/session.jsonl --project myapp`,
	Run: func(cmd *cobra.Command, args []string) {
		runConsolidate()
	},
}

var dedupStatsCmd = &cobra.Command{
	Use:   "dedup-stats",
	Short: "Show dedup engine volume (registered memories, matches per hash tier)",
	Run: func(cmd *cobra.Command, args []string) {
		runDedupStats()
	},
}

func init() {
	rootCmd.AddCommand(maintainCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(dedupStatsCmd)

	maintainCmd.Flags().BoolVar(&maintainDryRun, "dry_run", false, "report what would change without mutating the corpus")

	consolidateCmd.Flags().StringVar(&consolidateSessionFile, "file", "", "path to a session JSONL transcript (required)")
	consolidateCmd.Flags().StringVarP(&consolidateProject, "project", "p", "", "project id to save extracted memories under (required)")
	_ = consolidateCmd.MarkFlagRequired("file")
	_ = consolidateCmd.MarkFlagRequired("project")
}

func runMaintain() {
	a, err := buildApp()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	result, err := a.facade.RunMaintenance(maintainDryRun)
	if err != nil {
		fmt.Printf("Error running maintenance: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Maintenance complete")
	fmt.Printf("  decayed:  %d\n", result.DecayCount)
	fmt.Printf("  archived: %d\n", result.ArchivedCount)
	fmt.Printf("  duration: %.1fms\n", result.DurationMS)
	fmt.Printf("  health:   accessible=%v files=%d corrupted=%d\n",
		result.Health.Accessible, result.Health.MemoryFileCount, result.Health.CorruptedFiles)
}

func runPromote() {
	a, err := buildApp()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	results, err := a.facade.ExecutePromotions()
	if err != nil {
		fmt.Printf("Error running promotions: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Promoted %d memory(ies) to global scope\n", len(results))
	for _, r := range results {
		fmt.Printf("  %s: %s -> %s (stability %.2f, %d reviews across %d projects)\n",
			r.MemoryID, r.OldScope, r.NewScope, r.Stability, r.ReviewCount, len(r.ProjectsValidated))
	}
}

func runCluster() {
	a, err := buildApp()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	clusters, err := a.facade.RebuildClusters()
	if err != nil {
		fmt.Printf("Error rebuilding clusters: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Rebuilt %d cluster(s)\n", len(clusters))
	for _, c := range clusters {
		fmt.Printf("  %s (%d members): %v\n", c.Name, len(c.MemberIDs), c.Keywords)
	}
}

func runConsolidate() {
	a, err := buildApp()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	report, err := a.facade.ConsolidateSession(context.Background(), consolidateSessionFile, consolidateProject)
	if err != nil {
		fmt.Printf("Error consolidating session: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Session consolidated")
	fmt.Printf("  extracted:     %d\n", report.MemoriesExtracted)
	fmt.Printf("  saved:         %d\n", report.MemoriesSaved)
	fmt.Printf("  deduplicated:  %d\n", report.MemoriesDeduplicated)
	fmt.Printf("  contradictions resolved: %d\n", report.ContradictionsResolved)
	fmt.Printf("  session quality: %.2f\n", report.SessionQuality)
}

func runDedupStats() {
	a, err := buildApp()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	stats, err := a.facade.DedupStats()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Dedup stats")
	fmt.Printf("  registered:           %d\n", stats.TotalRegistered)
	fmt.Printf("  exact duplicates:     %d\n", stats.ExactDupesFound)
	fmt.Printf("  normalized duplicates: %d\n", stats.NormalizedDupesFound)
	fmt.Printf("  semantic duplicates:  %d\n", stats.SemanticDupesFound)
}
