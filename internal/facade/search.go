package facade

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/memoryctl/memoryctl/internal/recordstore"
)

// bm25Schema is an in-process, rebuild-on-demand FTS5 index over the
// cached record set. Grounded on the teacher's
// internal/database/schema.go FTS5Schema / operations.go SearchFTS: a
// standalone (non-external-content) FTS5 virtual table queried with the
// built-in bm25() ranking function. Unlike the teacher, this index isn't
// persisted alongside the corpus (the record store is the source of
// truth); it is rebuilt from the read cache each search, which the
// cache's TTL keeps cheap under bursty traffic.
const bm25Schema = `
CREATE VIRTUAL TABLE memories_fts USING fts5(id UNINDEXED, content, tags);
`

// SemanticScorer is an optional hook supplying pre-computed cosine
// similarity scores for a query against a memory's embedding. No
// concrete implementation ships by default (the vector/embedding
// pipeline is out of scope); when nil, search runs BM25-only with
// weight 1.0, matching the documented fallback.
type SemanticScorer interface {
	Score(query string, record *recordstore.Record) (float64, bool)
}

const (
	bm25WeightWithSemantic     = 0.3
	semanticWeightWithSemantic = 0.7
)

// SearchHit is one ranked result.
type SearchHit struct {
	Memory      *recordstore.Record
	Score       float64
	Explanation string
}

func bm25Search(records []*recordstore.Record, query string, semantic SemanticScorer, topK int) ([]SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if len(records) == 0 {
		return nil, nil
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open fts index: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(bm25Schema); err != nil {
		return nil, fmt.Errorf("create fts schema: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO memories_fts (id, content, tags) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare fts insert: %w", err)
	}
	byID := make(map[string]*recordstore.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
		if _, err := stmt.Exec(r.ID, r.Content, strings.Join(r.Tags, " ")); err != nil {
			stmt.Close()
			return nil, fmt.Errorf("index record %s: %w", r.ID, err)
		}
	}
	stmt.Close()

	rows, err := db.Query(
		`SELECT id, bm25(memories_fts) AS score FROM memories_fts WHERE memories_fts MATCH ? ORDER BY score`,
		escapeFTS5Query(query),
	)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	type scored struct {
		id   string
		bm25 float64 // sqlite bm25: lower is better
	}
	var raw []scored
	maxInverted := 0.0
	for rows.Next() {
		var s scored
		if err := rows.Scan(&s.id, &s.bm25); err != nil {
			return nil, fmt.Errorf("scan fts row: %w", err)
		}
		raw = append(raw, s)
		if inverted := -s.bm25; inverted > maxInverted {
			maxInverted = inverted
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(raw))
	for _, s := range raw {
		record, ok := byID[s.id]
		if !ok {
			continue
		}
		normalizedBM25 := 0.0
		if maxInverted > 0 {
			normalizedBM25 = (-s.bm25) / maxInverted
		}

		score := normalizedBM25
		explanation := "keyword match"
		if semantic != nil {
			if semScore, ok := semantic.Score(query, record); ok {
				score = bm25WeightWithSemantic*normalizedBM25 + semanticWeightWithSemantic*semScore
				explanation = "keyword + semantic match"
			}
		}

		hits = append(hits, SearchHit{Memory: record, Score: score, Explanation: explanation})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func escapeFTS5Query(query string) string {
	replacer := strings.NewReplacer(`"`, `""`)
	return replacer.Replace(query)
}
