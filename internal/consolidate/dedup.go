package consolidate

import (
	"context"

	"github.com/memoryctl/memoryctl/internal/oracle"
	"github.com/memoryctl/memoryctl/internal/recordstore"
)

const (
	definiteDuplicateThreshold = 0.9
	grayZoneFloor              = 0.5
	oracleFallbackThreshold    = 0.75
)

type dedupDecision string

const (
	decisionNew       dedupDecision = "new"
	decisionDuplicate dedupDecision = "duplicate"
)

// deduplicate filters candidates against the existing corpus, grounded on
// original_source/src/session_consolidator.py's deduplicate/
// _smart_dedup_decision: >=0.9 word-overlap similarity is a definite
// duplicate, 0.5-0.9 asks the oracle with a similarity>0.75 fallback to
// "duplicate" if the oracle call fails, and <0.5 is always new.
func deduplicate(ctx context.Context, o oracle.Oracle, candidates []Candidate, existing []*recordstore.Record) (kept []Candidate, dedupedCount int) {
	existingWords := make([]map[string]struct{}, len(existing))
	for i, r := range existing {
		existingWords[i] = wordSet(r.Content)
	}

	existingContent := make([]string, len(existing))
	for i, r := range existing {
		existingContent[i] = r.Content
	}

	for _, cand := range candidates {
		candWords := wordSet(cand.Content)
		bestSim := 0.0
		bestMatch := ""
		for i, ew := range existingWords {
			if sim := wordSimilarity(candWords, ew); sim > bestSim {
				bestSim = sim
				bestMatch = existingContent[i]
			}
		}

		decision := decideDedup(ctx, o, bestSim, cand.Content, bestMatch)
		if decision == decisionDuplicate {
			dedupedCount++
			continue
		}
		kept = append(kept, cand)
		existingWords = append(existingWords, candWords)
		existingContent = append(existingContent, cand.Content)
	}
	return kept, dedupedCount
}

func decideDedup(ctx context.Context, o oracle.Oracle, similarity float64, content, matched string) dedupDecision {
	if similarity >= definiteDuplicateThreshold {
		return decisionDuplicate
	}
	if similarity < grayZoneFloor {
		return decisionNew
	}
	if o == nil {
		if similarity > oracleFallbackThreshold {
			return decisionDuplicate
		}
		return decisionNew
	}

	isDup, err := o.CheckDuplicate(ctx, content, matched)
	if err != nil {
		log.Warn("oracle duplicate check failed, falling back to similarity heuristic", "error", err, "similarity", similarity)
		if similarity > oracleFallbackThreshold {
			return decisionDuplicate
		}
		return decisionNew
	}
	if isDup {
		return decisionDuplicate
	}
	return decisionNew
}
