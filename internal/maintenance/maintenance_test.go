package maintenance

import (
	"testing"
	"time"

	"github.com/memoryctl/memoryctl/internal/recordstore"
)

func newTestCorpus(t *testing.T) *recordstore.Corpus {
	t.Helper()
	corpus, err := recordstore.OpenCorpus(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCorpus failed: %v", err)
	}
	return corpus
}

func TestRunArchivesLowImportance(t *testing.T) {
	corpus := newTestCorpus(t)
	store, err := corpus.Project("LFI")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}

	low, err := store.Create(&recordstore.Record{Content: "rarely useful detail", ProjectID: "LFI", Importance: 0.1})
	if err != nil {
		t.Fatalf("Create low failed: %v", err)
	}
	high, err := store.Create(&recordstore.Record{Content: "critical architectural decision", ProjectID: "LFI", Importance: 0.9})
	if err != nil {
		t.Fatalf("Create high failed: %v", err)
	}

	runner := New(corpus)
	result, err := runner.Run(false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ArchivedCount != 1 {
		t.Fatalf("expected 1 archived, got %d: %+v", result.ArchivedCount, result.Archived)
	}
	if result.Archived[0].MemoryID != low.ID {
		t.Errorf("expected %s archived, got %s", low.ID, result.Archived[0].MemoryID)
	}

	updatedHigh, err := corpus.Get(high.ID)
	if err != nil {
		t.Fatalf("Get high failed: %v", err)
	}
	if updatedHigh.Scope == recordstore.ScopeArchived {
		t.Error("expected high-importance memory to remain active")
	}
}

func TestRunDryRunSkipsMutations(t *testing.T) {
	corpus := newTestCorpus(t)
	store, err := corpus.Project("LFI")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if _, err := store.Create(&recordstore.Record{Content: "low importance note", ProjectID: "LFI", Importance: 0.05}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	runner := New(corpus)
	result, err := runner.Run(true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ArchivedCount != 0 || result.DecayCount != 0 {
		t.Errorf("expected no mutations in dry run, got %+v", result)
	}
	if result.Stats.TotalMemories != 1 {
		t.Errorf("expected stats still computed, got %+v", result.Stats)
	}
}

func TestCollectStatsAggregatesTagsAndProjects(t *testing.T) {
	corpus := newTestCorpus(t)
	store, err := corpus.Project("LFI")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if _, err := store.Create(&recordstore.Record{Content: "a", ProjectID: "LFI", Importance: 0.9, Tags: []string{"infra"}}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(&recordstore.Record{Content: "b", ProjectID: "LFI", Importance: 0.5, Tags: []string{"infra", "review"}}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	runner := New(corpus)
	result, err := runner.Run(true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Stats.TotalMemories != 2 {
		t.Errorf("expected 2 total, got %d", result.Stats.TotalMemories)
	}
	if result.Stats.HighImportanceCount != 1 {
		t.Errorf("expected 1 high-importance, got %d", result.Stats.HighImportanceCount)
	}
	if result.Stats.TagDistribution["infra"] != 2 {
		t.Errorf("expected tag infra count 2, got %d", result.Stats.TagDistribution["infra"])
	}
	if result.Stats.ProjectBreakdown["LFI"] != 2 {
		t.Errorf("expected project LFI count 2, got %d", result.Stats.ProjectBreakdown["LFI"])
	}
}

func TestHealthCheckReportsAccessible(t *testing.T) {
	corpus := newTestCorpus(t)
	store, err := corpus.Project("LFI")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if _, err := store.Create(&recordstore.Record{Content: "fine", ProjectID: "LFI", Importance: 0.5}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	runner := New(corpus)
	result, err := runner.Run(true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Health.Accessible {
		t.Error("expected healthy corpus to be accessible")
	}
	if result.Health.MemoryFileCount != 1 {
		t.Errorf("expected 1 memory file, got %d", result.Health.MemoryFileCount)
	}
	if result.Health.CorruptedFiles != 0 {
		t.Errorf("expected 0 corrupted, got %d", result.Health.CorruptedFiles)
	}
}

func TestEmptyCorpusNoCrash(t *testing.T) {
	corpus := newTestCorpus(t)
	runner := New(corpus)
	result, err := runner.Run(false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Stats.TotalMemories != 0 {
		t.Errorf("expected 0 total, got %d", result.Stats.TotalMemories)
	}
	_ = time.Now()
}
