// Package facade implements component L: the orchestration facade, the
// engine's only public surface. It composes the record store,
// contradiction detector, scheduler, promotion executor, maintenance
// runner, clusterer, and consolidator behind five operations: save,
// search, get_recent, get_stats, run_maintenance — plus thin
// pass-throughs to the component-boundary background jobs. Grounded on
// the teacher's internal/search/engine.go (hybrid search composition)
// and internal/memory/service.go (facade shape: one struct wrapping the
// storage layer and exposing a small operation surface).
package facade

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/memoryctl/memoryctl/internal/clustering"
	"github.com/memoryctl/memoryctl/internal/consolidate"
	"github.com/memoryctl/memoryctl/internal/contradiction"
	"github.com/memoryctl/memoryctl/internal/dedup"
	"github.com/memoryctl/memoryctl/internal/logging"
	"github.com/memoryctl/memoryctl/internal/maintenance"
	"github.com/memoryctl/memoryctl/internal/oracle"
	"github.com/memoryctl/memoryctl/internal/promotion"
	"github.com/memoryctl/memoryctl/internal/recordstore"
	"github.com/memoryctl/memoryctl/internal/reinforcement"
	"github.com/memoryctl/memoryctl/internal/scheduler"
	"github.com/memoryctl/memoryctl/internal/scoring"
)

var log = logging.GetLogger("facade")

// SaveRequest is the input to Save.
type SaveRequest struct {
	Content             string
	ProjectID           string
	Tags                []string
	Importance          *float64
	SessionID           string
	CheckContradictions bool
	SkipDedup           bool
}

// ErrDuplicate is returned by Save when the dedup engine finds an
// existing memory with the same (or byte-identical/normalized) content.
// It carries the matched memory id and match level; callers can recover
// it with errors.As. Save does not log the rejection.
type ErrDuplicate struct {
	MatchedMemoryID string
	MatchLevel      dedup.MatchLevel
}

func (e ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate of memory %s (%s match)", e.MatchedMemoryID, e.MatchLevel)
}

// Facade is the engine's single public entry point.
type Facade struct {
	corpus         *recordstore.Corpus
	scheduler      *scheduler.Scheduler
	detector       *contradiction.Detector
	promoter       *promotion.Executor
	reinforcer     *reinforcement.Detector
	maintainer     *maintenance.Runner
	clusterer      *clustering.Clusterer
	consolidator   *consolidate.Consolidator
	deduper        *dedup.Engine
	oracle         oracle.Oracle
	cache          *readCache
	semanticScorer SemanticScorer
}

// Deps bundles the already-constructed components a Facade composes.
// Any component may be nil if that feature isn't wired (e.g. no
// clusterer configured yet); Facade methods that need it return an
// error in that case rather than panicking.
type Deps struct {
	Corpus       *recordstore.Corpus
	Scheduler    *scheduler.Scheduler
	Oracle       oracle.Oracle
	Promoter     *promotion.Executor
	Reinforcer   *reinforcement.Detector
	Maintainer   *maintenance.Runner
	Clusterer    *clustering.Clusterer
	Consolidator *consolidate.Consolidator
	Deduper      *dedup.Engine
	CacheTTL     time.Duration
	Semantic     SemanticScorer
}

// New assembles a Facade from Deps, defaulting the contradiction
// detector and read cache.
func New(d Deps) *Facade {
	o := d.Oracle
	if o == nil {
		o = oracle.NewNullOracle()
	}
	return &Facade{
		corpus:         d.Corpus,
		scheduler:      d.Scheduler,
		detector:       contradiction.New(o, 0, 0),
		promoter:       d.Promoter,
		reinforcer:     d.Reinforcer,
		maintainer:     d.Maintainer,
		clusterer:      d.Clusterer,
		consolidator:   d.Consolidator,
		deduper:        d.Deduper,
		oracle:         o,
		cache:          newReadCache(d.CacheTTL),
		semanticScorer: d.Semantic,
	}
}

func (f *Facade) allRecords() ([]*recordstore.Record, error) {
	return f.cache.get(func() ([]*recordstore.Record, error) {
		return f.corpus.List("", false)
	})
}

// Save persists content as a new memory, optionally checking it for
// contradictions against the existing corpus first (archiving the
// contradicted memory before the new one is written, per the documented
// single-session ordering guarantee).
func (f *Facade) Save(ctx context.Context, req SaveRequest) (*recordstore.Record, error) {
	if req.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}

	importance := scoring.Importance(req.Content)
	if req.Importance != nil {
		importance = recordstore.Clamp01(*req.Importance)
	}

	if f.deduper != nil && !req.SkipDedup {
		result, err := f.deduper.Check(req.Content, nil)
		if err != nil {
			log.Warn("dedup check failed, saving anyway", "error", err)
		} else if result.IsDuplicate {
			return nil, ErrDuplicate{MatchedMemoryID: result.MatchedMemoryID, MatchLevel: result.MatchLevel}
		}
	}

	existing, err := f.allRecords()
	if err != nil {
		return nil, fmt.Errorf("list existing memories: %w", err)
	}

	if req.CheckContradictions {
		result := f.detector.Check(ctx, req.Content, existing)
		if result.Action == contradiction.ActionReplace && result.ContradictedMemory != nil {
			if _, err := f.corpus.Archive(result.ContradictedMemory.ID, "superseded"); err != nil {
				log.Warn("failed to archive contradicted memory, saving new memory anyway",
					"memory_id", result.ContradictedMemory.ID, "error", err)
			}
		}
	}

	store, err := f.corpus.Project(req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("open project store: %w", err)
	}
	record, err := store.Create(&recordstore.Record{
		Content:         req.Content,
		ProjectID:       req.ProjectID,
		Scope:           recordstore.ScopeProject,
		Tags:            req.Tags,
		Importance:      importance,
		SourceSessionID: req.SessionID,
	})
	if err != nil {
		return nil, err
	}

	f.cache.invalidate()

	if f.deduper != nil {
		if err := f.deduper.Register(record.ID, record.Content, nil); err != nil {
			log.Warn("failed to register memory with dedup engine", "memory_id", record.ID, "error", err)
		}
	}
	if f.scheduler != nil {
		if err := f.scheduler.Register(record.ID, req.ProjectID); err != nil {
			log.Warn("failed to register memory with scheduler", "memory_id", record.ID, "error", err)
		}
	}
	if f.reinforcer != nil {
		if _, err := f.reinforcer.Process([]*recordstore.Record{record}); err != nil {
			log.Warn("reinforcement pass failed for new memory", "memory_id", record.ID, "error", err)
		}
	}

	return record, nil
}

// Search runs BM25 search over the cached corpus, folding in an optional
// pre-computed semantic score (weights 0.3/0.7 when available, else pure
// BM25), per spec's documented combination rule.
func (f *Facade) Search(query string, topK int) ([]SearchHit, error) {
	records, err := f.allRecords()
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	return bm25Search(records, query, f.semanticScorer, topK)
}

// GetRecent returns the n most recently created memories.
func (f *Facade) GetRecent(n int) ([]*recordstore.Record, error) {
	if n <= 0 {
		n = 10
	}
	records, err := f.allRecords()
	if err != nil {
		return nil, err
	}
	sorted := make([]*recordstore.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Created.After(sorted[j].Created) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted, nil
}

// GetStats returns the dashboard-facing aggregate stats.
func (f *Facade) GetStats() (maintenance.Stats, error) {
	records, err := f.allRecords()
	if err != nil {
		return maintenance.Stats{}, err
	}
	return maintenance.CollectStats(records), nil
}

// RunMaintenance delegates to the maintenance runner and invalidates the
// read cache (decay/archival may have mutated records).
func (f *Facade) RunMaintenance(dryRun bool) (maintenance.Result, error) {
	if f.maintainer == nil {
		return maintenance.Result{}, fmt.Errorf("maintenance runner not configured")
	}
	result, err := f.maintainer.Run(dryRun)
	if !dryRun {
		f.cache.invalidate()
	}
	return result, err
}

// ExecutePromotions runs the promotion executor over all eligible
// memories and invalidates the read cache.
func (f *Facade) ExecutePromotions() ([]promotion.Result, error) {
	if f.promoter == nil {
		return nil, fmt.Errorf("promotion executor not configured")
	}
	results, err := f.promoter.ExecutePromotions()
	f.cache.invalidate()
	return results, err
}

// RebuildClusters reruns the clusterer over the current corpus.
func (f *Facade) RebuildClusters() ([]clustering.Cluster, error) {
	if f.clusterer == nil {
		return nil, fmt.Errorf("clusterer not configured")
	}
	records, err := f.allRecords()
	if err != nil {
		return nil, err
	}
	return f.clusterer.Rebuild(records)
}

// DedupStats reports dedup engine volume: total registered memories and
// match counts per hash tier.
func (f *Facade) DedupStats() (dedup.Stats, error) {
	if f.deduper == nil {
		return dedup.Stats{}, fmt.Errorf("dedup engine not configured")
	}
	return f.deduper.GetStats()
}

// DedupGroups returns sets of memory ids sharing the same normalized
// content hash, for surfacing near-duplicate clusters a user may want
// to merge by hand.
func (f *Facade) DedupGroups() ([][]string, error) {
	if f.deduper == nil {
		return nil, fmt.Errorf("dedup engine not configured")
	}
	return f.deduper.Groups()
}

// ConsolidateSession runs the session consolidator over one transcript
// file and invalidates the read cache.
func (f *Facade) ConsolidateSession(ctx context.Context, sessionFile, projectID string) (consolidate.Report, error) {
	if f.consolidator == nil {
		return consolidate.Report{}, fmt.Errorf("consolidator not configured")
	}
	report, err := f.consolidator.ConsolidateFile(ctx, sessionFile, projectID)
	f.cache.invalidate()
	return report, err
}
