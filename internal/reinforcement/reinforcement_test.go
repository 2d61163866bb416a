package reinforcement

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/memoryctl/memoryctl/internal/metadb"
	"github.com/memoryctl/memoryctl/internal/recordstore"
	"github.com/memoryctl/memoryctl/internal/scheduler"
)

func newTestDetector(t *testing.T) (*Detector, *recordstore.Corpus, *scheduler.Scheduler) {
	t.Helper()
	corpus, err := recordstore.OpenCorpus(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCorpus failed: %v", err)
	}
	dbPath := filepath.Join(t.TempDir(), "scheduler.db")
	db, err := metadb.OpenScheduler(dbPath, 5*time.Second)
	if err != nil {
		t.Fatalf("OpenScheduler failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sched := scheduler.New(db)
	return New(corpus, sched, 0.35), corpus, sched
}

func TestProcessCrossProjectGradesEasy(t *testing.T) {
	d, corpus, sched := newTestDetector(t)

	storeA, err := corpus.Project("ClientA")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	existing, err := storeA.Create(&recordstore.Record{
		Content:   "the deployment pipeline uses blue green releases",
		ProjectID: "ClientA",
	})
	if err != nil {
		t.Fatalf("Create existing failed: %v", err)
	}

	storeB, err := corpus.Project("ClientB")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	newMem, err := storeB.Create(&recordstore.Record{
		Content:   "the deployment pipeline uses blue green releases",
		ProjectID: "ClientB",
	})
	if err != nil {
		t.Fatalf("Create new failed: %v", err)
	}

	matches, err := d.Process([]*recordstore.Record{newMem})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].MatchedMemoryID != existing.ID {
		t.Errorf("expected match against %s, got %s", existing.ID, matches[0].MatchedMemoryID)
	}
	if matches[0].Grade != scheduler.GradeEasy {
		t.Errorf("expected EASY grade for cross-project match, got %d", matches[0].Grade)
	}

	state, err := sched.GetState(existing.ID)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.ReviewCount != 1 {
		t.Errorf("expected review count 1, got %d", state.ReviewCount)
	}
}

func TestProcessSameProjectGradesGood(t *testing.T) {
	d, corpus, _ := newTestDetector(t)

	store, err := corpus.Project("LFI")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	existing, err := store.Create(&recordstore.Record{
		Content:   "use structured logging with slog everywhere",
		ProjectID: "LFI",
	})
	if err != nil {
		t.Fatalf("Create existing failed: %v", err)
	}
	newMem, err := store.Create(&recordstore.Record{
		Content:   "use structured logging with slog everywhere",
		ProjectID: "LFI",
	})
	if err != nil {
		t.Fatalf("Create new failed: %v", err)
	}

	matches, err := d.Process([]*recordstore.Record{newMem})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Grade != scheduler.GradeGood {
		t.Fatalf("expected 1 GOOD match, got %+v", matches)
	}
	if matches[0].MatchedMemoryID != existing.ID {
		t.Errorf("expected match against %s, got %s", existing.ID, matches[0].MatchedMemoryID)
	}
}

func TestProcessBelowThresholdNoMatch(t *testing.T) {
	d, corpus, _ := newTestDetector(t)
	store, err := corpus.Project("LFI")
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if _, err := store.Create(&recordstore.Record{Content: "completely unrelated database migration notes", ProjectID: "LFI"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	newMem, err := store.Create(&recordstore.Record{Content: "weather forecast for the weekend picnic", ProjectID: "LFI"})
	if err != nil {
		t.Fatalf("Create new failed: %v", err)
	}

	matches, err := d.Process([]*recordstore.Record{newMem})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches below threshold, got %+v", matches)
	}
}

func TestProcessEmptyCorpusReturnsEmpty(t *testing.T) {
	d, _, _ := newTestDetector(t)
	matches, err := d.Process(nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if matches != nil {
		t.Errorf("expected nil matches for empty input, got %+v", matches)
	}
}
