package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memoryctl/memoryctl/internal/facade"
)

var (
	rememberProject    string
	rememberTags       []string
	rememberImportance float64
	rememberSession    string

	searchLimit int

	recentLimit int
)

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Store a memory",
	Long: `Store a new memory with the given content.

Examples:
  memoryctl remember "Go channels are like pipes between goroutines" --project myapp
  memoryctl remember "the retry backoff must stay below the client timeout" --project myapp --tags networking,retries`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRemember(strings.Join(args, " "))
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search memories",
	Long: `Search stored memories with a BM25-ranked keyword query.

Examples:
  memoryctl search "retry backoff"
  memoryctl search "deployment" --limit 5`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSearch(strings.Join(args, " "))
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recently saved memories",
	Run: func(cmd *cobra.Command, args []string) {
		runRecent()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus-wide statistics",
	Run: func(cmd *cobra.Command, args []string) {
		runStats()
	},
}

func init() {
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(statsCmd)

	rememberCmd.Flags().StringVarP(&rememberProject, "project", "p", "", "project id this memory belongs to (required)")
	rememberCmd.Flags().StringSliceVarP(&rememberTags, "tags", "t", nil, "tags (comma-separated)")
	rememberCmd.Flags().Float64VarP(&rememberImportance, "importance", "i", 0, "importance override in [0,1], defaults to a computed score")
	rememberCmd.Flags().StringVar(&rememberSession, "session", "", "source session id")
	_ = rememberCmd.MarkFlagRequired("project")

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 10, "maximum results to return")

	recentCmd.Flags().IntVarP(&recentLimit, "limit", "l", 10, "maximum results to return")
}

func runRemember(content string) {
	a, err := buildApp()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	req := facade.SaveRequest{
		Content:             content,
		ProjectID:           rememberProject,
		Tags:                rememberTags,
		SessionID:           rememberSession,
		CheckContradictions: true,
	}
	if rememberImportance > 0 {
		req.Importance = &rememberImportance
	}
	record, err := a.facade.Save(context.Background(), req)
	if err != nil {
		fmt.Printf("Error storing memory: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Memory stored")
	fmt.Printf("  id:         %s\n", record.ID)
	fmt.Printf("  project:    %s\n", record.ProjectID)
	fmt.Printf("  importance: %.2f\n", record.Importance)
	if len(record.Tags) > 0 {
		fmt.Printf("  tags:       %s\n", strings.Join(record.Tags, ", "))
	}
}

func runSearch(query string) {
	a, err := buildApp()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	hits, err := a.facade.Search(query, searchLimit)
	if err != nil {
		fmt.Printf("Error searching: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Search results for %q (%d hit(s)):\n\n", query, len(hits))
	for i, h := range hits {
		fmt.Printf("%d. %s\n", i+1, h.Memory.Content)
		fmt.Printf("   id: %s | score: %.3f | %s\n\n", h.Memory.ID, h.Score, h.Explanation)
	}
}

func runRecent() {
	a, err := buildApp()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	records, err := a.facade.GetRecent(recentLimit)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	for i, r := range records {
		fmt.Printf("%d. [%s] %s\n", i+1, r.Created.Format("2006-01-02 15:04"), r.Content)
	}
}

func runStats() {
	a, err := buildApp()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	stats, err := a.facade.GetStats()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Memory stats")
	fmt.Printf("  total memories:       %d\n", stats.TotalMemories)
	fmt.Printf("  high importance:      %d\n", stats.HighImportanceCount)
	fmt.Printf("  average importance:   %.3f\n", stats.AvgImportance)
	fmt.Println("  by project:")
	for project, count := range stats.ProjectBreakdown {
		fmt.Printf("    %s: %d\n", project, count)
	}
}
