// Package dedup implements the three-level content-addressed
// deduplication engine (component D): exact, normalized, and
// quantized-semantic hashing. Grounded on
// original_source/src/content_dedup.py, with the SQLite persistence
// shape carried from schema.DedupSchema.
package dedup

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/memoryctl/memoryctl/internal/logging"
	"github.com/memoryctl/memoryctl/internal/metadb"
)

var log = logging.GetLogger("dedup")

// MatchLevel identifies which hash tier produced a duplicate match.
type MatchLevel string

const (
	MatchNone       MatchLevel = ""
	MatchExact      MatchLevel = "exact"
	MatchNormalized MatchLevel = "normalized"
	MatchSemantic   MatchLevel = "semantic"
)

// confidenceFor maps a match level to its documented confidence.
func confidenceFor(level MatchLevel) float64 {
	switch level {
	case MatchExact:
		return 1.0
	case MatchNormalized:
		return 0.9
	case MatchSemantic:
		return 0.6
	default:
		return 0.0
	}
}

// Result is the outcome of a duplicate check.
type Result struct {
	IsDuplicate     bool
	MatchLevel      MatchLevel
	MatchedMemoryID string
	Confidence      float64
}

// Engine is the dedup engine, backed by one metadata database.
type Engine struct {
	db       *metadb.Database
	nBuckets int
}

// New returns an Engine over db, quantizing semantic hashes into nBuckets
// buckets (default 64 per spec).
func New(db *metadb.Database, nBuckets int) *Engine {
	if nBuckets <= 0 {
		nBuckets = 64
	}
	return &Engine{db: db, nBuckets: nBuckets}
}

// ComputeExactHash hashes content's raw bytes.
func ComputeExactHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

var punctuation = regexp.MustCompile(`[[:punct:]]`)
var whitespace = regexp.MustCompile(`\s+`)

// ComputeNormalizedHash hashes content after lowercasing, stripping
// punctuation, and collapsing whitespace.
func ComputeNormalizedHash(content string) string {
	normalized := strings.ToLower(content)
	normalized = punctuation.ReplaceAllString(normalized, "")
	normalized = whitespace.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// ComputeSemanticHash min-max scales embedding to [0,1], quantizes each
// dimension into nBuckets integer buckets, and hashes the bucket bytes.
// Returns "" if embedding is empty (callers must skip level 3 entirely
// rather than fabricate a hash from text alone).
func ComputeSemanticHash(embedding []float64, nBuckets int) string {
	if len(embedding) == 0 {
		return ""
	}
	min, max := embedding[0], embedding[0]
	for _, v := range embedding {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	buckets := make([]byte, len(embedding))
	if max-min < 1e-12 {
		// All values identical: everything falls in bucket 0.
		for i := range buckets {
			buckets[i] = 0
		}
	} else {
		for i, v := range embedding {
			scaled := (v - min) / (max - min)
			b := int(scaled * float64(nBuckets))
			if b < 0 {
				b = 0
			}
			if b > nBuckets-1 {
				b = nBuckets - 1
			}
			buckets[i] = byte(b)
		}
	}

	sum := sha256.Sum256(buckets)
	return hex.EncodeToString(sum[:])
}

// Register upserts all three hashes for a memory.
func (e *Engine) Register(memoryID, content string, embedding []float64) error {
	exact := ComputeExactHash(content)
	normalized := ComputeNormalizedHash(content)
	semantic := ComputeSemanticHash(embedding, e.nBuckets)

	var semanticVal interface{}
	if semantic != "" {
		semanticVal = semantic
	}

	_, err := e.db.Exec(`
		INSERT OR REPLACE INTO content_hashes
			(memory_id, exact_hash, normalized_hash, semantic_hash, registered_at)
		VALUES (?, ?, ?, ?, ?)
	`, memoryID, exact, normalized, semanticVal, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("register memory %s: %w", memoryID, err)
	}
	return nil
}

// Check probes exact -> normalized -> semantic, in order, returning the
// first hit, and appends a dedup event row on any match.
func (e *Engine) Check(content string, embedding []float64) (Result, error) {
	exact := ComputeExactHash(content)
	if id, ok, err := e.lookup("exact_hash", exact); err != nil {
		return Result{}, err
	} else if ok {
		if err := e.logEvent(exact, id, MatchExact); err != nil {
			log.Warn("failed to log dedup event", "error", err)
		}
		return Result{IsDuplicate: true, MatchLevel: MatchExact, MatchedMemoryID: id, Confidence: confidenceFor(MatchExact)}, nil
	}

	normalized := ComputeNormalizedHash(content)
	if id, ok, err := e.lookup("normalized_hash", normalized); err != nil {
		return Result{}, err
	} else if ok {
		if err := e.logEvent(normalized, id, MatchNormalized); err != nil {
			log.Warn("failed to log dedup event", "error", err)
		}
		return Result{IsDuplicate: true, MatchLevel: MatchNormalized, MatchedMemoryID: id, Confidence: confidenceFor(MatchNormalized)}, nil
	}

	if semantic := ComputeSemanticHash(embedding, e.nBuckets); semantic != "" {
		if id, ok, err := e.lookup("semantic_hash", semantic); err != nil {
			return Result{}, err
		} else if ok {
			if err := e.logEvent(semantic, id, MatchSemantic); err != nil {
				log.Warn("failed to log dedup event", "error", err)
			}
			return Result{IsDuplicate: true, MatchLevel: MatchSemantic, MatchedMemoryID: id, Confidence: confidenceFor(MatchSemantic)}, nil
		}
	}

	return Result{IsDuplicate: false}, nil
}

func (e *Engine) lookup(column, hash string) (memoryID string, ok bool, err error) {
	row := e.db.QueryRow(fmt.Sprintf("SELECT memory_id FROM content_hashes WHERE %s = ? LIMIT 1", column), hash) //nolint:gosec
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return id, true, nil
}

func (e *Engine) logEvent(hash, matchedMemoryID string, level MatchLevel) error {
	_, err := e.db.Exec(`
		INSERT INTO dedup_events (new_content_hash, matched_memory_id, match_level, timestamp)
		VALUES (?, ?, ?, ?)
	`, hash, matchedMemoryID, string(level), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Groups returns sets of memory ids sharing the same normalized hash
// (only groups with 2+ members).
func (e *Engine) Groups() ([][]string, error) {
	rows, err := e.db.Query(`
		SELECT normalized_hash, GROUP_CONCAT(memory_id)
		FROM content_hashes
		GROUP BY normalized_hash
		HAVING COUNT(*) > 1
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups [][]string
	for rows.Next() {
		var hash, ids string
		if err := rows.Scan(&hash, &ids); err != nil {
			return nil, err
		}
		groups = append(groups, strings.Split(ids, ","))
	}
	return groups, rows.Err()
}

// Stats reports dedup volume: total registered memories and match counts
// per level, supplementing spec.md per original_source's get_dedup_stats.
type Stats struct {
	TotalRegistered      int `json:"total_registered"`
	ExactDupesFound      int `json:"exact_dupes_found"`
	NormalizedDupesFound int `json:"normalized_dupes_found"`
	SemanticDupesFound   int `json:"semantic_dupes_found"`
}

// GetStats returns deduplication statistics.
func (e *Engine) GetStats() (Stats, error) {
	var stats Stats
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM content_hashes`).Scan(&stats.TotalRegistered); err != nil {
		return stats, err
	}
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM dedup_events WHERE match_level = 'exact'`).Scan(&stats.ExactDupesFound); err != nil {
		return stats, err
	}
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM dedup_events WHERE match_level = 'normalized'`).Scan(&stats.NormalizedDupesFound); err != nil {
		return stats, err
	}
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM dedup_events WHERE match_level = 'semantic'`).Scan(&stats.SemanticDupesFound); err != nil {
		return stats, err
	}
	return stats, nil
}

// MarshalGroups is a small helper used by the facade's stats endpoint to
// render groups as JSON without leaking SQL rows.
func MarshalGroups(groups [][]string) ([]byte, error) {
	return json.Marshal(groups)
}
