package recordstore

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), "LFI")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

// TestCreateAndGet mirrors scenario S1: first save.
func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	r, err := s.Create(&Record{
		ProjectID:  "LFI",
		Content:    "Always validate user input at system boundaries",
		Tags:       []string{"#learning"},
		Importance: 0.8,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if r.Scope != ScopeProject {
		t.Errorf("expected scope=project, got %s", r.Scope)
	}
	if !r.HasTag("#learning") {
		t.Errorf("expected #learning tag, got %v", r.Tags)
	}

	if _, err := os.Stat(filepath.Join(s.Root(), r.ID+".md")); err != nil {
		t.Errorf("record file not found on disk: %v", err)
	}

	got, err := s.Get(r.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != r.Content {
		t.Errorf("content mismatch: got %q want %q", got.Content, r.Content)
	}

	records, err := s.List(false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func TestCreateIDCollision(t *testing.T) {
	s := newTestStore(t)
	r, _ := s.Create(&Record{ProjectID: "LFI", Content: "first", Importance: 0.5})

	_, err := s.Create(&Record{ID: r.ID, ProjectID: "LFI", Content: "dup", Importance: 0.5})
	if err == nil {
		t.Fatal("expected id collision error")
	}
}

func TestArchiveIdempotent(t *testing.T) {
	s := newTestStore(t)
	r, _ := s.Create(&Record{ProjectID: "LFI", Content: "stale fact", Importance: 0.1})

	ok, err := s.Archive(r.ID, "low_importance")
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first archive to return true")
	}

	got, err := s.Get(r.ID)
	if err != nil {
		t.Fatalf("Get after archive failed: %v", err)
	}
	if got.Scope != ScopeArchived {
		t.Errorf("expected scope=archived, got %s", got.Scope)
	}
	if !got.HasTag("#archived") {
		t.Errorf("expected #archived tag, got %v", got.Tags)
	}

	again, err := s.Archive(r.ID, "low_importance")
	if err != nil {
		t.Fatalf("second Archive failed: %v", err)
	}
	if again {
		t.Error("expected second archive call to return false (idempotent)")
	}

	day := filepath.Join(s.Root(), "archived")
	entries, err := os.ReadDir(day)
	if err != nil {
		t.Fatalf("failed to read archived dir: %v", err)
	}
	foundManifest := false
	for _, e := range entries {
		if filepathHasSuffix(e.Name(), "-archive.md") {
			foundManifest = true
		}
	}
	if !foundManifest {
		t.Error("expected an archive manifest file")
	}
}

func TestPathSafetyRejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("../../etc/passwd"); err == nil {
		t.Fatal("expected path traversal to be rejected")
	}
}

func TestUpdateRecomputesInvariants(t *testing.T) {
	s := newTestStore(t)
	r, _ := s.Create(&Record{ProjectID: "LFI", Content: "v1", Importance: 0.5})

	confirmations := 2
	updated, err := s.Update(r.ID, Patch{Confirmations: &confirmations}, func(confirmations, contradictions int) float64 {
		base := 0.5 + 0.1*float64(confirmations)
		if base > 0.9 {
			base = 0.9
		}
		return base
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.ConfidenceScore != 0.7 {
		t.Errorf("expected confidence_score=0.7, got %v", updated.ConfidenceScore)
	}
}

func filepathHasSuffix(name, suffix string) bool {
	if len(name) < len(suffix) {
		return false
	}
	return name[len(name)-len(suffix):] == suffix
}
