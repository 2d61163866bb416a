package consolidate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/memoryctl/memoryctl/internal/claude"
	"github.com/memoryctl/memoryctl/internal/dedup"
	"github.com/memoryctl/memoryctl/internal/recordstore"
	"github.com/memoryctl/memoryctl/internal/reinforcement"
	"github.com/memoryctl/memoryctl/internal/scheduler"
	"github.com/memoryctl/memoryctl/internal/testutil"
)

func writeSessionFile(t *testing.T, dir, name string, lines []map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create session file: %v", err)
	}
	defer f.Close()
	for _, line := range lines {
		b, err := json.Marshal(line)
		if err != nil {
			t.Fatalf("marshal line: %v", err)
		}
		if _, err := f.Write(append(b, '\n')); err != nil {
			t.Fatalf("write line: %v", err)
		}
	}
	return path
}

func userLine(text string) map[string]any {
	return map[string]any{
		"type": "user",
		"message": map[string]any{
			"role":    "user",
			"content": text,
		},
	}
}

func assistantLine(text string) map[string]any {
	return map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"role":    "assistant",
			"content": text,
		},
	}
}

func newTestConsolidator(t *testing.T) (*Consolidator, string) {
	t.Helper()
	dir := t.TempDir()
	corpus, err := recordstore.OpenCorpus(filepath.Join(dir, "memories"))
	if err != nil {
		t.Fatalf("OpenCorpus failed: %v", err)
	}
	reader := claude.NewReader(dir)
	return New(reader, corpus, nil, nil, nil, nil), dir
}

func TestConsolidateExtractsLearningStatement(t *testing.T) {
	c, dir := newTestConsolidator(t)

	content := userLine("We learned that the retry backoff must be capped below the client timeout or every request eventually fails under load.")
	transcript := []map[string]any{
		content,
		assistantLine("Understood, I will account for that in the retry logic going forward."),
	}
	path := writeSessionFile(t, dir, "session-test.jsonl", transcript)

	report, err := c.ConsolidateFile(context.Background(), path, "proj-a")
	if err != nil {
		t.Fatalf("ConsolidateFile failed: %v", err)
	}
	if report.MemoriesExtracted == 0 {
		t.Fatalf("expected at least one extracted memory, got report %+v", report)
	}
	if report.MemoriesSaved == 0 {
		t.Fatalf("expected at least one saved memory, got report %+v", report)
	}
}

func TestConsolidateShortConversationSkipped(t *testing.T) {
	c, dir := newTestConsolidator(t)
	path := writeSessionFile(t, dir, "session-test.jsonl", []map[string]any{userLine("hi"), assistantLine("hello")})

	report, err := c.ConsolidateFile(context.Background(), path, "proj-a")
	if err != nil {
		t.Fatalf("ConsolidateFile failed: %v", err)
	}
	if report.MemoriesExtracted != 0 || report.MemoriesSaved != 0 {
		t.Errorf("expected no memories from a short conversation, got %+v", report)
	}
}

func TestConsolidateDeduplicatesRepeatedLearning(t *testing.T) {
	c, dir := newTestConsolidator(t)
	learning := "We discovered that the cache eviction policy silently drops entries when memory pressure spikes above the configured threshold."

	path1 := writeSessionFile(t, dir, "session-test-1.jsonl", []map[string]any{userLine(learning), assistantLine("Noted, thanks for flagging that for the team.")})
	if _, err := c.ConsolidateFile(context.Background(), path1, "proj-a"); err != nil {
		t.Fatalf("first ConsolidateFile failed: %v", err)
	}

	path2 := writeSessionFile(t, dir, "session-test-2.jsonl", []map[string]any{userLine(learning), assistantLine("Noted, thanks for flagging that for the team.")})

	report, err := c.ConsolidateFile(context.Background(), path2, "proj-a")
	if err != nil {
		t.Fatalf("second ConsolidateFile failed: %v", err)
	}
	if report.MemoriesDeduplicated == 0 {
		t.Errorf("expected the repeated learning to be deduplicated, got %+v", report)
	}
}

func TestIsGarbageContentFiltersToolArtifacts(t *testing.T) {
	if !isGarbageContent("short") {
		t.Error("expected short text to be garbage")
	}
	if !isGarbageContent("this line references toolu_01abc234 as the tool call id in the transcript dump") {
		t.Error("expected tool-call marker text to be garbage")
	}
	if isGarbageContent("We learned that retry backoff must stay below the client timeout to avoid cascading failures.") {
		t.Error("expected plain learning sentence to not be garbage")
	}
}

func TestConsolidateRegistersSchedulerAndDedup(t *testing.T) {
	dir := t.TempDir()
	corpus, err := recordstore.OpenCorpus(filepath.Join(dir, "memories"))
	if err != nil {
		t.Fatalf("OpenCorpus failed: %v", err)
	}

	sched := scheduler.New(testutil.NewSchedulerDB(t))
	reinforcer := reinforcement.New(corpus, sched, 0)
	deduper := dedup.New(testutil.NewDedupDB(t), 0)

	reader := claude.NewReader(dir)
	c := New(reader, corpus, nil, sched, reinforcer, deduper)

	content := userLine("We learned that the retry backoff must be capped below the client timeout or every request eventually fails under load.")
	transcript := []map[string]any{
		content,
		assistantLine("Understood, I will account for that in the retry logic going forward."),
	}
	path := writeSessionFile(t, dir, "session-test.jsonl", transcript)

	report, err := c.ConsolidateFile(context.Background(), path, "proj-a")
	if err != nil {
		t.Fatalf("ConsolidateFile failed: %v", err)
	}
	if len(report.SavedMemories) == 0 {
		t.Fatalf("expected at least one saved memory, got report %+v", report)
	}

	for _, m := range report.SavedMemories {
		state, err := sched.GetState(m.ID)
		if err != nil {
			t.Fatalf("GetState failed: %v", err)
		}
		if state == nil {
			t.Errorf("expected memory %s to be registered with the scheduler", m.ID)
		}
	}

	stats, err := deduper.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalRegistered != len(report.SavedMemories) {
		t.Errorf("expected %d registered hashes, got %d", len(report.SavedMemories), stats.TotalRegistered)
	}
}

func TestConsolidateReinforcesMatchingMemoryAcrossProjects(t *testing.T) {
	dir := t.TempDir()
	corpus, err := recordstore.OpenCorpus(filepath.Join(dir, "memories"))
	if err != nil {
		t.Fatalf("OpenCorpus failed: %v", err)
	}

	sched := scheduler.New(testutil.NewSchedulerDB(t))
	reinforcer := reinforcement.New(corpus, sched, 0.1)

	learning := "the retry backoff must be capped below the client timeout or every request eventually fails under load"

	storeA, err := corpus.Project("proj-a")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	existing, err := storeA.Create(&recordstore.Record{
		Content:   learning,
		ProjectID: "proj-a",
		Scope:     recordstore.ScopeProject,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := sched.Register(existing.ID, "proj-a"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	reader := claude.NewReader(dir)
	c := New(reader, corpus, nil, sched, reinforcer, nil)

	// Paraphrased rather than verbatim: sharing only a few key words with
	// the existing memory keeps this below the consolidator's own
	// near-duplicate threshold (dedup.go, >=0.9 word-overlap) while still
	// clearing the reinforcement detector's 0.1 threshold set above, so
	// the save succeeds and the cross-project reinforcement match fires.
	transcript := []map[string]any{
		userLine("We learned that exponential backoff retries should never exceed the configured timeout, otherwise clients repeatedly disconnect before the server finishes work."),
		assistantLine("Understood, I will account for that in the retry logic going forward."),
	}
	path := writeSessionFile(t, dir, "session-test.jsonl", transcript)

	if _, err := c.ConsolidateFile(context.Background(), path, "proj-b"); err != nil {
		t.Fatalf("ConsolidateFile failed: %v", err)
	}

	state, err := sched.GetState(existing.ID)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state == nil || state.ReviewCount == 0 {
		t.Errorf("expected the matching cross-project memory to have been reviewed, got %+v", state)
	}
}

func TestSessionQualityComputation(t *testing.T) {
	saved := []*recordstore.Record{
		{Importance: 0.9},
		{Importance: 0.3},
	}
	q := sessionQuality(saved)
	// fraction = 1/2, mean = 0.6 => 0.3
	if q < 0.29 || q > 0.31 {
		t.Errorf("expected session quality ~0.3, got %v", q)
	}
}
