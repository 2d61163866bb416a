// Package contradiction implements component E: before a new memory is
// saved, check whether it contradicts an existing one. Candidate
// selection is pure word-overlap similarity (no embeddings required);
// the actual contradiction verdict is delegated to an oracle.
// Grounded on original_source/src/contradiction_detector.py.
package contradiction

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/memoryctl/memoryctl/internal/oracle"
	"github.com/memoryctl/memoryctl/internal/recordstore"
)

// Action is what the caller should do with the new memory.
type Action string

const (
	ActionSave    Action = "save"
	ActionReplace Action = "replace"
	ActionSkip    Action = "skip"
)

// Result is the outcome of a contradiction check.
type Result struct {
	Contradicts        bool
	ContradictedMemory *recordstore.Record
	Action             Action
}

// Detector finds candidate memories by word overlap and consults an
// oracle for the final verdict.
type Detector struct {
	oracle              oracle.Oracle
	similarityThreshold float64
	topN                int
}

// New returns a Detector. threshold and topN default to 0.3 and 5 (the
// documented candidate-selection parameters) when non-positive.
func New(o oracle.Oracle, threshold float64, topN int) *Detector {
	if threshold <= 0 {
		threshold = 0.3
	}
	if topN <= 0 {
		topN = 5
	}
	return &Detector{oracle: o, similarityThreshold: threshold, topN: topN}
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

func normalize(text string) map[string]struct{} {
	clean := nonWord.ReplaceAllString(strings.ToLower(text), " ")
	words := make(map[string]struct{})
	for _, w := range strings.Fields(clean) {
		if len(w) > 2 {
			words[w] = struct{}{}
		}
	}
	return words
}

type scored struct {
	similarity float64
	record     *recordstore.Record
}

// findSimilar ranks existing by word-overlap similarity to newContent,
// keeping only those above the similarity threshold, returning the top
// topN in descending-similarity order.
func (d *Detector) findSimilar(newContent string, existing []*recordstore.Record) []*recordstore.Record {
	newWords := normalize(newContent)
	if len(newWords) == 0 {
		return nil
	}

	var candidates []scored
	for _, mem := range existing {
		memWords := normalize(mem.Content)
		if len(memWords) == 0 {
			continue
		}

		overlap := 0
		for w := range newWords {
			if _, ok := memWords[w]; ok {
				overlap++
			}
		}

		minLen := len(newWords)
		if len(memWords) < minLen {
			minLen = len(memWords)
		}
		similarity := float64(overlap) / float64(minLen)

		if similarity > d.similarityThreshold {
			candidates = append(candidates, scored{similarity: similarity, record: mem})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})

	if len(candidates) > d.topN {
		candidates = candidates[:d.topN]
	}

	out := make([]*recordstore.Record, len(candidates))
	for i, c := range candidates {
		out[i] = c.record
	}
	return out
}

// Check finds the most similar existing memories to newContent and
// asks the oracle, in similarity order, whether any contradicts it.
// The first CONTRADICTS verdict wins (action=replace). Oracle failures
// for a given candidate are treated as COMPATIBLE for that candidate
// and checking continues down the candidate list; if no candidate
// contradicts, the default action is save.
func (d *Detector) Check(ctx context.Context, newContent string, existing []*recordstore.Record) Result {
	similar := d.findSimilar(newContent, existing)
	if len(similar) == 0 {
		return Result{Contradicts: false, Action: ActionSave}
	}

	for _, candidate := range similar {
		verdict, err := d.oracle.CheckContradiction(ctx, candidate.Content, newContent)
		if err != nil {
			// Default to save on oracle failure; keep checking remaining candidates.
			continue
		}
		if verdict == oracle.VerdictContradicts {
			return Result{Contradicts: true, ContradictedMemory: candidate, Action: ActionReplace}
		}
	}

	return Result{Contradicts: false, Action: ActionSave}
}
