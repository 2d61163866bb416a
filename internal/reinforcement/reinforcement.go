// Package reinforcement implements component G: after a batch of new
// memories is persisted, compare it against the existing corpus for
// cross-session matches and feed the scheduler. Grounded on spec §4.G
// (no standalone original_source file; the closest analogue is the
// word-overlap scoring in contradiction_detector.py, reused here for
// candidate similarity).
package reinforcement

import (
	"regexp"
	"strings"

	"github.com/memoryctl/memoryctl/internal/logging"
	"github.com/memoryctl/memoryctl/internal/recordstore"
	"github.com/memoryctl/memoryctl/internal/scheduler"
)

var log = logging.GetLogger("reinforcement")

const defaultThreshold = 0.35

// Match pairs a new memory with the existing one it reinforces.
type Match struct {
	NewMemoryID      string
	MatchedMemoryID  string
	MatchedProjectID string
	Similarity       float64
	Grade            scheduler.Grade
}

// Detector compares new memories against the corpus for reinforcement.
type Detector struct {
	corpus    *recordstore.Corpus
	scheduler *scheduler.Scheduler
	threshold float64
}

// New returns a Detector. threshold defaults to 0.35 when non-positive.
func New(corpus *recordstore.Corpus, sched *scheduler.Scheduler, threshold float64) *Detector {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Detector{corpus: corpus, scheduler: sched, threshold: threshold}
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

func wordSet(text string) map[string]struct{} {
	clean := nonWord.ReplaceAllString(strings.ToLower(text), " ")
	words := make(map[string]struct{})
	for _, w := range strings.Fields(clean) {
		words[w] = struct{}{}
	}
	return words
}

func similarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for w := range a {
		if _, ok := b[w]; ok {
			overlap++
		}
	}
	s1 := float64(overlap) / float64(len(a))
	s2 := float64(overlap) / float64(len(b))
	if s1 > s2 {
		return s1
	}
	return s2
}

// Process compares each of newMemories against the full corpus
// (cross-project, per spec §9), registers and reviews the single best
// match above threshold for each, and returns the matches found.
// Promoted memories are excluded from candidacy (they no longer need
// reinforcement signal) using one batch-loaded promoted-id set.
func (d *Detector) Process(newMemories []*recordstore.Record) ([]Match, error) {
	if len(newMemories) == 0 {
		return nil, nil
	}

	existing, err := d.corpus.List("", false)
	if err != nil {
		return nil, err
	}

	promoted, err := d.scheduler.PromotedIDs()
	if err != nil {
		return nil, err
	}

	newIDs := make(map[string]struct{}, len(newMemories))
	for _, m := range newMemories {
		newIDs[m.ID] = struct{}{}
	}

	var matches []Match
	for _, newMem := range newMemories {
		newWords := wordSet(newMem.Content)

		var best *recordstore.Record
		bestSim := 0.0
		for _, candidate := range existing {
			if candidate.ID == newMem.ID {
				continue
			}
			if _, isNew := newIDs[candidate.ID]; isNew {
				continue
			}
			if _, isPromoted := promoted[candidate.ID]; isPromoted {
				continue
			}
			sim := similarity(newWords, wordSet(candidate.Content))
			if sim > bestSim {
				bestSim = sim
				best = candidate
			}
		}

		if best == nil || bestSim < d.threshold {
			continue
		}

		grade := scheduler.GradeGood
		if best.ProjectID != newMem.ProjectID {
			grade = scheduler.GradeEasy
		}

		if err := d.scheduler.Register(best.ID, best.ProjectID); err != nil {
			log.Warn("failed to register reinforcement candidate", "memory_id", best.ID, "error", err)
			continue
		}
		if err := d.scheduler.RecordReview(best.ID, grade, newMem.ProjectID, newMem.SourceSessionID); err != nil {
			log.Warn("failed to record reinforcement review", "memory_id", best.ID, "error", err)
			continue
		}

		matches = append(matches, Match{
			NewMemoryID:      newMem.ID,
			MatchedMemoryID:  best.ID,
			MatchedProjectID: best.ProjectID,
			Similarity:       bestSim,
			Grade:            grade,
		})
	}

	return matches, nil
}
