package metadb

import "time"

// SchedulerSchema holds scheduler rows and the append-only review log
// (spec §3 "Scheduler state" / "Review log").
const SchedulerSchema = `
CREATE TABLE IF NOT EXISTS scheduler_state (
	memory_id          TEXT PRIMARY KEY,
	project_id         TEXT NOT NULL,
	stability          REAL NOT NULL DEFAULT 1.0,
	difficulty         REAL NOT NULL DEFAULT 0.5,
	due_date           TEXT NOT NULL,
	review_count       INTEGER NOT NULL DEFAULT 0,
	last_review        TEXT,
	projects_validated TEXT NOT NULL DEFAULT '[]',
	promoted           INTEGER NOT NULL DEFAULT 0,
	promoted_date      TEXT
);

CREATE INDEX IF NOT EXISTS idx_scheduler_due ON scheduler_state(due_date, promoted);
CREATE INDEX IF NOT EXISTS idx_scheduler_promotion ON scheduler_state(promoted, stability, review_count);

CREATE TABLE IF NOT EXISTS review_log (
	review_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id         TEXT NOT NULL,
	review_date       TEXT NOT NULL,
	grade             INTEGER NOT NULL,
	new_stability     REAL NOT NULL,
	new_interval_days REAL NOT NULL,
	source_session    TEXT,
	source_project    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_log_memory ON review_log(memory_id, review_date);
`

// DedupSchema holds the content-hash index and dedup events log (spec §3
// "Dedup index"), grounded directly on content_dedup.py's DDL.
const DedupSchema = `
CREATE TABLE IF NOT EXISTS content_hashes (
	memory_id       TEXT PRIMARY KEY,
	exact_hash      TEXT NOT NULL,
	normalized_hash TEXT NOT NULL,
	semantic_hash   TEXT,
	registered_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exact_hash ON content_hashes(exact_hash);
CREATE INDEX IF NOT EXISTS idx_normalized_hash ON content_hashes(normalized_hash);
CREATE INDEX IF NOT EXISTS idx_semantic_hash ON content_hashes(semantic_hash);

CREATE TABLE IF NOT EXISTS dedup_events (
	event_id          INTEGER PRIMARY KEY AUTOINCREMENT,
	new_content_hash  TEXT NOT NULL,
	matched_memory_id TEXT NOT NULL,
	match_level       TEXT NOT NULL,
	timestamp         TEXT NOT NULL
);
`

// ClusterSchema holds cluster rows and memberships (spec §3 "Cluster
// index"). The clusterer rebuilds both tables from scratch each run.
const ClusterSchema = `
CREATE TABLE IF NOT EXISTS clusters (
	cluster_id TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	keywords   TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cluster_memberships (
	cluster_id TEXT NOT NULL,
	memory_id  TEXT NOT NULL,
	PRIMARY KEY (cluster_id, memory_id)
);

CREATE INDEX IF NOT EXISTS idx_cluster_memberships_memory ON cluster_memberships(memory_id);
`

// OpenScheduler opens the scheduler+review-log logical database.
func OpenScheduler(path string, writeTimeout time.Duration) (*Database, error) {
	db, err := Open(path, writeTimeout)
	if err != nil {
		return nil, err
	}
	if err := db.initSchema(SchedulerSchema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenDedup opens the dedup+events logical database.
func OpenDedup(path string, writeTimeout time.Duration) (*Database, error) {
	db, err := Open(path, writeTimeout)
	if err != nil {
		return nil, err
	}
	if err := db.initSchema(DedupSchema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenClusters opens the clusters+memberships logical database.
func OpenClusters(path string, writeTimeout time.Duration) (*Database, error) {
	db, err := Open(path, writeTimeout)
	if err != nil {
		return nil, err
	}
	if err := db.initSchema(ClusterSchema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
