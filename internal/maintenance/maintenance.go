// Package maintenance implements component K: the daily maintenance
// pass over the corpus — decay, low-importance archival, stats
// aggregation, and a health check. Grounded on
// original_source/src/daily_memory_maintenance.py.
package maintenance

import (
	"fmt"
	"time"

	"github.com/memoryctl/memoryctl/internal/logging"
	"github.com/memoryctl/memoryctl/internal/recordstore"
	"github.com/memoryctl/memoryctl/internal/scoring"
)

var log = logging.GetLogger("maintenance")

const defaultArchiveThreshold = 0.2
const defaultDecayRate = 0.99

// StalePrediction names a memory judged likely to go stale, and why.
// Implementations of DecayPredictor are optional; a nil predictor
// simply means the maintenance pass only considers importance.
type StalePrediction struct {
	MemoryID string
	Reason   string
}

// DecayPredictor is an optional hook that supplements importance-based
// archival with a model-driven staleness signal. No concrete
// implementation ships by default; spec's Non-goals exclude a full
// predictive model, but the hook point is preserved so one can be
// plugged in later without reshaping the runner.
type DecayPredictor interface {
	MemoriesBecomingStale(daysAhead int) ([]StalePrediction, error)
}

// ArchivedEntry records one archived memory for the manifest/report.
type ArchivedEntry struct {
	MemoryID   string
	Reason     recordstore.ArchiveReason
	Importance float64
}

// Stats is the dashboard-facing aggregate (spec §4.K "stats aggregation").
type Stats struct {
	TotalMemories       int                     `json:"total_memories"`
	HighImportanceCount int                     `json:"high_importance_count"`
	AvgImportance       float64                 `json:"avg_importance"`
	ProjectBreakdown    map[string]int          `json:"project_breakdown"`
	TagDistribution     map[string]int          `json:"tag_distribution"`
	Confidence          scoring.ConfidenceStats `json:"confidence"`
}

// Health is the corpus health-check result.
type Health struct {
	Accessible      bool   `json:"accessible"`
	MemoryRoot      string `json:"memory_root"`
	MemoryFileCount int    `json:"memory_file_count"`
	CorruptedFiles  int    `json:"corrupted_files"`
}

// Result is the full report of one maintenance run.
type Result struct {
	Timestamp     time.Time
	DurationMS    float64
	DecayCount    int
	ArchivedCount int
	Archived      []ArchivedEntry
	Stats         Stats
	Health        Health
}

// Runner executes the maintenance pipeline over a corpus.
type Runner struct {
	corpus           *recordstore.Corpus
	decayRate        float64
	archiveThreshold float64
	decayPredictor   DecayPredictor
}

// Option configures a Runner.
type Option func(*Runner)

// WithDecayPredictor attaches an optional staleness predictor.
func WithDecayPredictor(p DecayPredictor) Option {
	return func(r *Runner) { r.decayPredictor = p }
}

// WithThresholds overrides the decay rate and archive-importance
// threshold (defaults 0.99 and 0.2).
func WithThresholds(decayRate, archiveThreshold float64) Option {
	return func(r *Runner) {
		if decayRate > 0 {
			r.decayRate = decayRate
		}
		if archiveThreshold > 0 {
			r.archiveThreshold = archiveThreshold
		}
	}
}

// New returns a Runner over corpus.
func New(corpus *recordstore.Corpus, opts ...Option) *Runner {
	r := &Runner{corpus: corpus, decayRate: defaultDecayRate, archiveThreshold: defaultArchiveThreshold}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the full pipeline: decay, archival, stats, health. When
// dryRun is true, decay and archival are skipped (matching the
// documented dry-run contract) but stats/health still run against
// current state.
func (r *Runner) Run(dryRun bool) (Result, error) {
	start := time.Now()

	decayCount := 0
	var archived []ArchivedEntry
	if !dryRun {
		var err error
		decayCount, err = r.applyDecay()
		if err != nil {
			return Result{}, fmt.Errorf("apply decay: %w", err)
		}
		archived, err = r.archiveLowImportance()
		if err != nil {
			return Result{}, fmt.Errorf("archive low importance: %w", err)
		}
	}

	stats, err := r.collectStats()
	if err != nil {
		return Result{}, fmt.Errorf("collect stats: %w", err)
	}

	health, err := r.healthCheck()
	if err != nil {
		return Result{}, fmt.Errorf("health check: %w", err)
	}

	result := Result{
		Timestamp:     time.Now().UTC(),
		DurationMS:    float64(time.Since(start).Microseconds()) / 1000.0,
		DecayCount:    decayCount,
		ArchivedCount: len(archived),
		Archived:      archived,
		Stats:         stats,
		Health:        health,
	}
	log.Info("maintenance run complete", "decay_count", decayCount, "archived_count", len(archived), "duration_ms", result.DurationMS)
	return result, nil
}

func (r *Runner) applyDecay() (int, error) {
	records, err := r.corpus.List("", false)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	decayed := 0
	for _, record := range records {
		touched := record.Updated
		if touched.IsZero() {
			touched = record.Created
		}
		if touched.IsZero() {
			continue
		}
		// Decay counts whole days since the record was last touched (its
		// updated timestamp). Writing the decayed importance back touches
		// the record, so a rerun with no elapsed time changes nothing.
		daysSince := int(now.Sub(touched).Hours() / 24)
		if daysSince <= 0 {
			continue
		}
		newImportance := scoring.Decay(record.Importance, r.decayRate, daysSince)
		if newImportance == record.Importance {
			continue
		}
		if _, err := r.corpus.Update(record.ID, recordstore.Patch{Importance: &newImportance}, nil); err != nil {
			log.Warn("failed to apply decay", "memory_id", record.ID, "error", err)
			continue
		}
		decayed++
	}
	return decayed, nil
}

func (r *Runner) archiveLowImportance() ([]ArchivedEntry, error) {
	records, err := r.corpus.List("", false)
	if err != nil {
		return nil, err
	}

	toArchive := make(map[string]ArchivedEntry)
	for _, record := range records {
		if record.Scope == recordstore.ScopeArchived {
			continue
		}
		if record.Importance < r.archiveThreshold {
			toArchive[record.ID] = ArchivedEntry{MemoryID: record.ID, Reason: "low_importance", Importance: record.Importance}
		}
	}

	if r.decayPredictor != nil {
		predictions, err := r.decayPredictor.MemoriesBecomingStale(0)
		if err != nil {
			log.Warn("decay predictor failed, continuing without it", "error", err)
		} else {
			for _, p := range predictions {
				if _, already := toArchive[p.MemoryID]; already {
					continue
				}
				record, err := r.corpus.Get(p.MemoryID)
				if err != nil || record.Scope == recordstore.ScopeArchived {
					continue
				}
				toArchive[p.MemoryID] = ArchivedEntry{MemoryID: p.MemoryID, Reason: recordstore.ArchiveReason(p.Reason), Importance: record.Importance}
			}
		}
	}

	var archived []ArchivedEntry
	for id, entry := range toArchive {
		ok, err := r.corpus.Archive(id, entry.Reason)
		if err != nil {
			log.Warn("failed to archive memory", "memory_id", id, "error", err)
			continue
		}
		if ok {
			archived = append(archived, entry)
		}
	}
	return archived, nil
}

func (r *Runner) collectStats() (Stats, error) {
	records, err := r.corpus.List("", false)
	if err != nil {
		return Stats{}, err
	}
	return CollectStats(records), nil
}

// CollectStats aggregates the dashboard-facing stats over an arbitrary
// record set. Exported so other components (the orchestration facade's
// get_stats operation) can reuse the same aggregation without re-running
// the rest of the maintenance pipeline.
func CollectStats(records []*recordstore.Record) Stats {
	if len(records) == 0 {
		return Stats{ProjectBreakdown: map[string]int{}, TagDistribution: map[string]int{}}
	}

	high := 0
	var importanceSum float64
	projectBreakdown := make(map[string]int)
	tagDistribution := make(map[string]int)
	var confidences []float64

	for _, record := range records {
		if record.Importance >= 0.8 {
			high++
		}
		importanceSum += record.Importance
		projectBreakdown[record.ProjectID]++
		for _, tag := range record.Tags {
			tagDistribution[tag]++
		}
		confidences = append(confidences, record.ConfidenceScore)
	}

	return Stats{
		TotalMemories:       len(records),
		HighImportanceCount: high,
		AvgImportance:       importanceSum / float64(len(records)),
		ProjectBreakdown:    projectBreakdown,
		TagDistribution:     tagDistribution,
		Confidence:          scoring.ComputeConfidenceStats(confidences),
	}
}

func (r *Runner) healthCheck() (Health, error) {
	root := r.corpus.Root()
	records, err := r.corpus.List("", true)
	if err != nil {
		return Health{Accessible: false, MemoryRoot: root}, nil //nolint:nilerr
	}

	corrupted := 0
	for _, record := range records {
		if record.ID == "" || record.Content == "" || record.ProjectID == "" {
			corrupted++
		}
	}

	return Health{
		Accessible:      true,
		MemoryRoot:      root,
		MemoryFileCount: len(records),
		CorruptedFiles:  corrupted,
	}, nil
}
