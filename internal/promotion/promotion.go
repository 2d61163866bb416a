// Package promotion implements component I: promoting a validated
// memory from project scope to global scope once the scheduler judges
// it eligible. Grounded on original_source/src/promotion_executor.py.
//
// Ordering invariant (I5): the record's scope/tag update is persisted
// BEFORE the scheduler's promoted flag is set, so a crash between the
// two leaves a recoverable state — the record already reads as
// globally promoted, and a retry only needs to mark the scheduler flag
// (MarkPromoted is idempotent).
package promotion

import (
	"time"

	"github.com/memoryctl/memoryctl/internal/logging"
	"github.com/memoryctl/memoryctl/internal/recordstore"
	"github.com/memoryctl/memoryctl/internal/scheduler"
)

var log = logging.GetLogger("promotion")

const promotedTag = "#promoted"

// Result describes one executed promotion.
type Result struct {
	MemoryID          string
	OldScope          recordstore.Scope
	NewScope          recordstore.Scope
	Stability         float64
	ReviewCount       int
	ProjectsValidated []string
	PromotedDate      time.Time
}

// Executor promotes eligible memories from project to global scope.
type Executor struct {
	corpus    *recordstore.Corpus
	scheduler *scheduler.Scheduler
}

// New returns an Executor over corpus and scheduler.
func New(corpus *recordstore.Corpus, sched *scheduler.Scheduler) *Executor {
	return &Executor{corpus: corpus, scheduler: sched}
}

// ExecutePromotions finds and promotes every eligible memory.
func (e *Executor) ExecutePromotions() ([]Result, error) {
	candidates, err := e.scheduler.PromotionCandidates()
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, candidate := range candidates {
		result, err := e.promoteMemory(candidate)
		if err != nil {
			log.Warn("skipping promotion candidate", "memory_id", candidate.MemoryID, "error", err)
			continue
		}
		if result != nil {
			results = append(results, *result)
		}
	}
	return results, nil
}

// PromoteSingle promotes one memory if it meets criteria, returning nil
// (no error) if it does not.
func (e *Executor) PromoteSingle(memoryID string) (*Result, error) {
	ready, err := e.scheduler.IsPromotionReady(memoryID)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, nil
	}

	state, err := e.scheduler.GetState(memoryID)
	if err != nil {
		return nil, err
	}
	return e.promoteMemory(state)
}

func (e *Executor) promoteMemory(state *scheduler.State) (*Result, error) {
	record, err := e.corpus.Get(state.MemoryID)
	if err != nil {
		return nil, err
	}

	oldScope := record.Scope
	newTags := append([]string{}, record.Tags...)
	if !containsTag(newTags, promotedTag) {
		newTags = append(newTags, promotedTag)
	}

	newScope := recordstore.ScopeGlobal
	if _, err := e.corpus.Update(state.MemoryID, recordstore.Patch{
		Scope: &newScope,
		Tags:  newTags,
	}, nil); err != nil {
		return nil, err
	}

	// Scope/tag transition is durable before the scheduler flag is
	// touched; see package doc for the recovery argument.
	if err := e.scheduler.MarkPromoted(state.MemoryID); err != nil {
		return nil, err
	}

	log.LogPromotion(state.MemoryID, string(oldScope), string(newScope))

	return &Result{
		MemoryID:          state.MemoryID,
		OldScope:          oldScope,
		NewScope:          newScope,
		Stability:         state.Stability,
		ReviewCount:       state.ReviewCount,
		ProjectsValidated: state.ProjectsValidated,
		PromotedDate:      time.Now().UTC(),
	}, nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
