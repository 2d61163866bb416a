package consolidate

import (
	"context"
	"sort"
	"strings"

	"github.com/memoryctl/memoryctl/internal/oracle"
	"github.com/memoryctl/memoryctl/internal/scoring"
)

// Candidate is an extracted-but-not-yet-persisted memory.
type Candidate struct {
	Content    string
	Importance float64
	Tags       []string
}

const (
	minLearningLen = 50
	maxLearningLen = 2000
	minProblemLen  = 20
	maxInsights    = 3
	mergeThreshold = 0.7
)

var insightIndicators = []string{
	"better to", "key is", "important", "pattern", "approach", "should",
	"need to", "instead of", "rather than", "the trick",
}

var insightExclusions = []string{
	"let me", "i'll", "here's", "sure", "okay", "got it",
}

// extractPatterns runs the four regex-driven extraction types over a
// flattened conversation, grounded on
// original_source/src/session_consolidator.py's _extract_memories_patterns.
func extractPatterns(conversation string) []Candidate {
	var out []Candidate

	for _, re := range learningPatterns {
		for _, m := range re.FindAllStringSubmatch(conversation, -1) {
			content := strings.TrimSpace(m[1])
			if len(content) < minLearningLen || len(content) > maxLearningLen {
				continue
			}
			importance := scoring.Importance(content)
			if importance < 0.5 {
				continue
			}
			out = append(out, Candidate{Content: content, Importance: importance, Tags: []string{"#learning"}})
		}
	}

	for _, re := range correctionPatterns {
		for _, m := range re.FindAllStringSubmatch(conversation, -1) {
			content := strings.TrimSpace(m[1])
			if len(content) < minLearningLen || len(content) > maxLearningLen {
				continue
			}
			importance := scoring.Importance(content)
			if importance < 0.5 {
				continue
			}
			boosted := importance * 1.2
			if boosted > 0.95 {
				boosted = 0.95
			}
			out = append(out, Candidate{Content: content, Importance: boosted, Tags: []string{"#learning", "#correction"}})
		}
	}

	for _, m := range problemSolutionPattern.FindAllStringSubmatch(conversation, -1) {
		problem := strings.TrimSpace(m[1])
		solution := strings.TrimSpace(m[2])
		if len(problem) <= minProblemLen || len(solution) <= minProblemLen {
			continue
		}
		content := "Problem: " + problem + " Solution: " + solution
		importance := scoring.Importance(content)
		if importance < 0.6 {
			continue
		}
		out = append(out, Candidate{Content: content, Importance: importance, Tags: []string{"#learning", "#problem-solution"}})
	}

	insightCount := 0
	for _, m := range assistantInsightPattern.FindAllStringSubmatch(conversation, -1) {
		if insightCount >= maxInsights {
			break
		}
		content := strings.TrimSpace(m[1])
		lower := strings.ToLower(content)
		excluded := false
		for _, ex := range insightExclusions {
			if strings.HasPrefix(lower, ex) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		hasIndicator := false
		for _, ind := range insightIndicators {
			if strings.Contains(lower, ind) {
				hasIndicator = true
				break
			}
		}
		if !hasIndicator {
			continue
		}
		importance := scoring.Importance(content)
		if importance < 0.5 {
			continue
		}
		out = append(out, Candidate{Content: content, Importance: importance, Tags: []string{"#learning", "#insight"}})
		insightCount++
	}

	return out
}

// extractWithOracle asks the oracle to supplement pattern extraction with
// an LLM pass, returning an empty slice (never an error) on failure so
// callers always have a documented non-blocking fallback.
func extractWithOracle(ctx context.Context, o oracle.Oracle, conversation string) []Candidate {
	if o == nil {
		return nil
	}
	found, err := o.Extract(ctx, conversation)
	if err != nil {
		log.Warn("oracle extraction failed, continuing with pattern candidates only", "error", err)
		return nil
	}
	out := make([]Candidate, 0, len(found))
	for _, c := range found {
		content := strings.TrimSpace(c.Content)
		if content == "" {
			continue
		}
		importance := c.Confidence
		if importance <= 0 {
			importance = scoring.Importance(content)
		}
		tags := []string{"#learning"}
		if c.Category != "" {
			tags = append(tags, "#"+c.Category)
		}
		out = append(out, Candidate{Content: content, Importance: importance, Tags: tags})
	}
	return out
}

// mergeCandidates combines pattern- and oracle-derived candidates,
// collapsing any pair whose word-set similarity is >= mergeThreshold into
// a single candidate (the higher-importance one wins).
func mergeCandidates(groups ...[]Candidate) []Candidate {
	var all []Candidate
	for _, g := range groups {
		all = append(all, g...)
	}

	var merged []Candidate
	for _, cand := range all {
		candWords := wordSet(cand.Content)
		dupeIdx := -1
		for i, existing := range merged {
			if wordSimilarity(candWords, wordSet(existing.Content)) >= mergeThreshold {
				dupeIdx = i
				break
			}
		}
		if dupeIdx == -1 {
			merged = append(merged, cand)
			continue
		}
		if cand.Importance > merged[dupeIdx].Importance {
			merged[dupeIdx] = cand
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Importance > merged[j].Importance })
	return merged
}

// wordSet tokenizes text into the set of its distinct words. Matches
// session_consolidator.py's dedup comparison, which keeps every non-empty
// token rather than filtering out short ones.
func wordSet(text string) map[string]struct{} {
	words := strings.Fields(normalizePattern.ReplaceAllString(strings.ToLower(text), " "))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func wordSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for w := range a {
		if _, ok := b[w]; ok {
			overlap++
		}
	}
	best := float64(overlap) / float64(len(a))
	if alt := float64(overlap) / float64(len(b)); alt > best {
		best = alt
	}
	return best
}
