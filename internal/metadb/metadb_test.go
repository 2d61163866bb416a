package metadb

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenSchedulerCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.db")
	db, err := OpenScheduler(path, 30*time.Second)
	if err != nil {
		t.Fatalf("OpenScheduler failed: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"scheduler_state", "review_log"} {
		exists, err := db.TableExists(table)
		if err != nil {
			t.Fatalf("TableExists(%s) failed: %v", table, err)
		}
		if !exists {
			t.Errorf("expected table %s to exist", table)
		}
	}
}

func TestOpenDedupCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.db")
	db, err := OpenDedup(path, 30*time.Second)
	if err != nil {
		t.Fatalf("OpenDedup failed: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"content_hashes", "dedup_events"} {
		exists, _ := db.TableExists(table)
		if !exists {
			t.Errorf("expected table %s to exist", table)
		}
	}
}

func TestOpenClustersCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusters.db")
	db, err := OpenClusters(path, 30*time.Second)
	if err != nil {
		t.Fatalf("OpenClusters failed: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"clusters", "cluster_memberships"} {
		exists, _ := db.TableExists(table)
		if !exists {
			t.Errorf("expected table %s to exist", table)
		}
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.db")
	db, err := OpenScheduler(path, 30*time.Second)
	if err != nil {
		t.Fatalf("OpenScheduler failed: %v", err)
	}
	defer db.Close()

	sentinel := errors.New("boom")
	err = db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO scheduler_state (memory_id, project_id, due_date) VALUES (?, ?, ?)`, "m1", "LFI", "2026-01-01"); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	count, err := db.CountRows("scheduler_state")
	if err != nil {
		t.Fatalf("CountRows failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected rollback to leave 0 rows, got %d", count)
	}
}
