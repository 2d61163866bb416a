// Package clustering implements component J: keyword-overlap greedy
// agglomeration of the memory corpus into topic clusters, rebuilt from
// scratch on every run. original_source/src/memory_clustering.py uses
// sklearn KMeans over embeddings, which has no idiomatic Go analogue in
// the example pack; this package follows spec §4.J's keyword-Jaccard
// algorithm instead, persisted through metadb's clusters database.
package clustering

import (
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memoryctl/memoryctl/internal/logging"
	"github.com/memoryctl/memoryctl/internal/metadb"
	"github.com/memoryctl/memoryctl/internal/recordstore"
)

var log = logging.GetLogger("clustering")

const (
	defaultMinWordLen  = 4
	defaultTopKeywords = 3
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "with": {}, "this": {},
	"from": {}, "have": {}, "are": {}, "was": {}, "were": {}, "been": {},
	"will": {}, "would": {}, "should": {}, "could": {}, "about": {},
	"into": {}, "than": {}, "then": {}, "them": {}, "they": {}, "their": {},
	"there": {}, "when": {}, "what": {}, "which": {}, "while": {}, "your": {},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// keywordSet extracts the lowercase, stopword-filtered, min-length
// keyword set from content.
func keywordSet(content string, minLen int) map[string]struct{} {
	clean := nonAlnum.ReplaceAllString(strings.ToLower(content), " ")
	set := make(map[string]struct{})
	for _, w := range strings.Fields(clean) {
		if len(w) < minLen {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for w := range a {
		union[w] = struct{}{}
	}
	overlap := 0
	for w := range b {
		if _, ok := a[w]; ok {
			overlap++
		}
		union[w] = struct{}{}
	}
	return float64(overlap) / float64(len(union))
}

// Cluster is one rebuilt topic cluster.
type Cluster struct {
	ID        string
	Name      string
	Keywords  []string
	MemberIDs []string
}

type buildingCluster struct {
	id        string
	centroid  map[string]struct{}
	counts    map[string]int
	memberIDs []string
}

// Clusterer rebuilds the corpus's topic clusters.
type Clusterer struct {
	db        *metadb.Database
	threshold float64
	minWordLen int
	topK      int
}

// New returns a Clusterer. threshold defaults to 0.1 when non-positive.
func New(db *metadb.Database, threshold float64) *Clusterer {
	if threshold <= 0 {
		threshold = 0.1
	}
	return &Clusterer{db: db, threshold: threshold, minWordLen: defaultMinWordLen, topK: defaultTopKeywords}
}

// Rebuild clusters records (iterated in ascending-id order for
// determinism) via greedy agglomeration and persists the result,
// replacing any prior cluster/membership rows in one transaction.
func (c *Clusterer) Rebuild(records []*recordstore.Record) ([]Cluster, error) {
	sorted := append([]*recordstore.Record{}, records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var building []*buildingCluster
	for _, r := range sorted {
		keywords := keywordSet(r.Content, c.minWordLen)
		if len(keywords) == 0 {
			continue
		}

		var best *buildingCluster
		bestSim := 0.0
		for _, cl := range building {
			sim := jaccard(keywords, cl.centroid)
			if sim > bestSim {
				bestSim = sim
				best = cl
			}
		}

		if best != nil && bestSim >= c.threshold {
			best.memberIDs = append(best.memberIDs, r.ID)
			for w := range keywords {
				best.centroid[w] = struct{}{}
				best.counts[w]++
			}
			continue
		}

		counts := make(map[string]int, len(keywords))
		centroid := make(map[string]struct{}, len(keywords))
		for w := range keywords {
			centroid[w] = struct{}{}
			counts[w] = 1
		}
		building = append(building, &buildingCluster{
			id:        uuid.NewString(),
			centroid:  centroid,
			counts:    counts,
			memberIDs: []string{r.ID},
		})
	}

	clusters := make([]Cluster, 0, len(building))
	for _, cl := range building {
		clusters = append(clusters, Cluster{
			ID:        cl.id,
			Name:      topKeywords(cl.counts, c.topK),
			Keywords:  sortedKeys(cl.centroid),
			MemberIDs: cl.memberIDs,
		})
	}

	if err := c.persist(clusters); err != nil {
		return nil, err
	}
	log.Info("clusters rebuilt", "cluster_count", len(clusters), "record_count", len(sorted))
	return clusters, nil
}

func topKeywords(counts map[string]int, topK int) string {
	type kv struct {
		word  string
		count int
	}
	ordered := make([]kv, 0, len(counts))
	for w, n := range counts {
		ordered = append(ordered, kv{w, n})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].word < ordered[j].word
	})
	if len(ordered) > topK {
		ordered = ordered[:topK]
	}
	words := make([]string, len(ordered))
	for i, kv := range ordered {
		words[i] = kv.word
	}
	return strings.Join(words, " ")
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func (c *Clusterer) persist(clusters []Cluster) error {
	return c.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM cluster_memberships`); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM clusters`); err != nil {
			return err
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		for _, cl := range clusters {
			keywordsJSON := strings.Join(cl.Keywords, ",")
			if _, err := tx.Exec(`
				INSERT INTO clusters (cluster_id, name, keywords, created_at)
				VALUES (?, ?, ?, ?)
			`, cl.ID, cl.Name, fmt.Sprintf("[%s]", keywordsJSON), now); err != nil {
				return err
			}
			for _, memberID := range cl.MemberIDs {
				if _, err := tx.Exec(`
					INSERT INTO cluster_memberships (cluster_id, memory_id) VALUES (?, ?)
				`, cl.ID, memberID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Clusters returns the persisted clusters and their memberships.
func (c *Clusterer) Clusters() ([]Cluster, error) {
	rows, err := c.db.Query(`SELECT cluster_id, name, keywords FROM clusters`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []Cluster
	for rows.Next() {
		var cl Cluster
		var keywordsRaw string
		if err := rows.Scan(&cl.ID, &cl.Name, &keywordsRaw); err != nil {
			return nil, err
		}
		keywordsRaw = strings.Trim(keywordsRaw, "[]")
		if keywordsRaw != "" {
			cl.Keywords = strings.Split(keywordsRaw, ",")
		}
		clusters = append(clusters, cl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range clusters {
		memberRows, err := c.db.Query(`SELECT memory_id FROM cluster_memberships WHERE cluster_id = ?`, clusters[i].ID)
		if err != nil {
			return nil, err
		}
		for memberRows.Next() {
			var id string
			if err := memberRows.Scan(&id); err != nil {
				memberRows.Close()
				return nil, err
			}
			clusters[i].MemberIDs = append(clusters[i].MemberIDs, id)
		}
		memberRows.Close()
	}
	return clusters, nil
}
