// Package consolidate implements component F: the session consolidation
// pipeline that mines a Claude Code transcript for durable memories.
// Grounded on original_source/src/session_consolidator.py, reusing
// internal/claude for transcript parsing and internal/contradiction,
// internal/oracle, internal/recordstore, internal/scoring for the rest
// of the pipeline.
package consolidate

import (
	"context"
	"fmt"

	"github.com/memoryctl/memoryctl/internal/claude"
	"github.com/memoryctl/memoryctl/internal/contradiction"
	"github.com/memoryctl/memoryctl/internal/dedup"
	"github.com/memoryctl/memoryctl/internal/logging"
	"github.com/memoryctl/memoryctl/internal/oracle"
	"github.com/memoryctl/memoryctl/internal/recordstore"
	"github.com/memoryctl/memoryctl/internal/reinforcement"
	"github.com/memoryctl/memoryctl/internal/scheduler"
)

var log = logging.GetLogger("consolidate")

const minConversationLen = 50

// Report summarizes one consolidation run, mirroring
// session_consolidator.py's ConsolidationResult.
type Report struct {
	SessionID              string
	ProjectID              string
	MemoriesExtracted      int
	MemoriesSaved          int
	MemoriesDeduplicated   int
	ContradictionsResolved int
	SavedMemories          []*recordstore.Record
	SessionQuality         float64
}

// Consolidator runs the consolidation pipeline over one project's corpus.
// After F persists a session's memories, it drives the rest of the data
// flow documented in spec §2 itself: (D) register each saved memory's
// hashes with the dedup index, then (G) run the reinforcement detector
// over the saved batch, registering each with the scheduler first so it
// has an FSRS row to reinforce/review/promote from (H, then I downstream
// via the facade's own promotion op).
type Consolidator struct {
	reader     *claude.Reader
	corpus     *recordstore.Corpus
	oracle     oracle.Oracle
	detector   *contradiction.Detector
	scheduler  *scheduler.Scheduler
	reinforcer *reinforcement.Detector
	deduper    *dedup.Engine
	similarity float64
}

// New returns a Consolidator. o may be nil, in which case oracle-assisted
// extraction and gray-zone dedup both fall back to their documented
// non-blocking defaults. sched, reinforcer, and deduper may each be nil,
// in which case the corresponding post-save step (scheduler registration,
// reinforcement, dedup-index registration) is skipped.
func New(reader *claude.Reader, corpus *recordstore.Corpus, o oracle.Oracle, sched *scheduler.Scheduler, reinforcer *reinforcement.Detector, deduper *dedup.Engine) *Consolidator {
	detectorOracle := o
	if detectorOracle == nil {
		detectorOracle = oracle.NewNullOracle()
	}
	return &Consolidator{
		reader:     reader,
		corpus:     corpus,
		oracle:     o,
		detector:   contradiction.New(detectorOracle, 0, 0),
		scheduler:  sched,
		reinforcer: reinforcer,
		deduper:    deduper,
	}
}

// ConsolidateFile runs the full pipeline over one conversation file,
// persisting resulting memories into projectID's store.
func (c *Consolidator) ConsolidateFile(ctx context.Context, filePath, projectID string) (Report, error) {
	conv, err := c.reader.ReadConversation(filePath)
	if err != nil {
		return Report{}, fmt.Errorf("read conversation: %w", err)
	}
	return c.consolidate(ctx, conv, projectID)
}

func (c *Consolidator) consolidate(ctx context.Context, conv *claude.ConversationFile, projectID string) (Report, error) {
	report := Report{SessionID: conv.SessionID, ProjectID: projectID}

	conversation := flattenConversation(conv)
	if len(conversation) < minConversationLen {
		return report, nil
	}

	patternCandidates := extractPatterns(conversation)
	llmCandidates := extractWithOracle(ctx, c.oracle, conversation)
	candidates := mergeCandidates(patternCandidates, llmCandidates)
	report.MemoriesExtracted = len(candidates)
	if len(candidates) == 0 {
		return report, nil
	}

	existing, err := c.corpus.List("", false)
	if err != nil {
		return report, fmt.Errorf("list existing memories: %w", err)
	}

	kept, dedupedCount := deduplicate(ctx, c.oracle, candidates, existing)
	report.MemoriesDeduplicated = dedupedCount

	store, err := c.corpus.Project(projectID)
	if err != nil {
		return report, fmt.Errorf("open project store: %w", err)
	}

	for _, cand := range kept {
		result := c.detector.Check(ctx, cand.Content, existing)
		if result.Action == contradiction.ActionReplace && result.ContradictedMemory != nil {
			if _, err := c.corpus.Archive(result.ContradictedMemory.ID, "superseded"); err != nil {
				log.Warn("failed to archive contradicted memory, saving new memory anyway",
					"memory_id", result.ContradictedMemory.ID, "error", err)
			} else {
				report.ContradictionsResolved++
			}
		}

		record, err := store.Create(&recordstore.Record{
			Content:         cand.Content,
			ProjectID:       projectID,
			Scope:           recordstore.ScopeProject,
			Tags:            cand.Tags,
			Importance:      recordstore.Clamp01(cand.Importance),
			SourceSessionID: conv.SessionID,
		})
		if err != nil {
			log.Warn("failed to persist extracted memory", "error", err)
			continue
		}
		report.MemoriesSaved++
		report.SavedMemories = append(report.SavedMemories, record)
		existing = append(existing, record)

		if c.deduper != nil {
			if err := c.deduper.Register(record.ID, record.Content, nil); err != nil {
				log.Warn("failed to register memory with dedup engine", "memory_id", record.ID, "error", err)
			}
		}
		if c.scheduler != nil {
			if err := c.scheduler.Register(record.ID, projectID); err != nil {
				log.Warn("failed to register memory with scheduler", "memory_id", record.ID, "error", err)
			}
		}
	}

	if c.reinforcer != nil && len(report.SavedMemories) > 0 {
		if _, err := c.reinforcer.Process(report.SavedMemories); err != nil {
			log.Warn("reinforcement pass failed for consolidated session", "session_id", conv.SessionID, "error", err)
		}
	}

	report.SessionQuality = sessionQuality(report.SavedMemories)
	log.Info("session consolidated",
		"session_id", conv.SessionID, "extracted", report.MemoriesExtracted,
		"saved", report.MemoriesSaved, "deduplicated", report.MemoriesDeduplicated,
		"contradictions_resolved", report.ContradictionsResolved)
	return report, nil
}

// sessionQuality is the fraction of saved memories with importance>=0.7,
// multiplied by their mean importance.
func sessionQuality(saved []*recordstore.Record) float64 {
	if len(saved) == 0 {
		return 0
	}
	highValue := 0
	var sum float64
	for _, r := range saved {
		if r.Importance >= 0.7 {
			highValue++
		}
		sum += r.Importance
	}
	fraction := float64(highValue) / float64(len(saved))
	mean := sum / float64(len(saved))
	return fraction * mean
}
