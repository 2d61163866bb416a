// Package scoring implements importance, decay, and confidence scoring
// (component C): the pluggable importance function, the daily decay
// curve, and the confirmation/contradiction-driven confidence formula.
// Grounded on original_source/src/confidence_scoring.py, carried into Go
// arithmetic unchanged.
package scoring

import "math"

// Importance computes importance(body) -> [0,1]. The default
// implementation is signal-based: presence of emphasis words and length
// bands, matching the pluggable contract in the component design. Callers
// may substitute their own function entirely.
func Importance(body string) float64 {
	return defaultImportance(body)
}

// Decay applies the daily decay curve: new_importance = importance *
// rate^days. A record is "touched" when its updated timestamp changes;
// callers only invoke this for days > 0.
func Decay(importance, rate float64, days int) float64 {
	if days <= 0 {
		return importance
	}
	return importance * math.Pow(rate, float64(days))
}

// Confidence calculates a memory's confidence score from its confirmation
// and contradiction counts and the number of independent sources.
//
//   - Initial (no confirmations, no contradictions): 0.5.
//   - Confirmation boost: base = min(0.9, 0.5 + 0.1*confirmations).
//   - Contradiction penalty: base = max(0.1, base - 0.3*contradictions).
//   - Independent-source boost: base = min(1.0, base + min(0.1, 0.05*(sources-1))).
func Confidence(confirmations, contradictions, sources int) float64 {
	var base float64
	switch {
	case confirmations == 0 && contradictions == 0:
		base = 0.5
	case confirmations > 0:
		base = math.Min(0.9, 0.5+float64(confirmations)*0.1)
	default:
		base = 0.5
	}

	if contradictions > 0 {
		penalty := float64(contradictions) * 0.3
		base = math.Max(0.1, base-penalty)
	}

	if sources > 1 {
		boost := math.Min(0.1, float64(sources-1)*0.05)
		base = math.Min(1.0, base+boost)
	}

	return base
}

// ShouldArchiveLowConfidence reports whether a memory's confidence has
// fallen low enough, or it has accumulated enough contradictions, to be
// archived on confidence grounds alone.
func ShouldArchiveLowConfidence(confidence float64, contradictions int, threshold float64) bool {
	return confidence < threshold || contradictions >= 2
}

// ImportanceGrade classifies importance into the documented grade bands:
// A >= 0.8, B >= 0.6, C >= 0.4, else D.
func ImportanceGrade(importance float64) string {
	switch {
	case importance >= 0.8:
		return "A"
	case importance >= 0.6:
		return "B"
	case importance >= 0.4:
		return "C"
	default:
		return "D"
	}
}

// ConfidenceLevel classifies a confidence score into a human-readable
// level, supplementing spec.md per original_source's
// classify_confidence_level.
func ConfidenceLevel(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "very_high"
	case confidence >= 0.7:
		return "high"
	case confidence >= 0.5:
		return "medium"
	case confidence >= 0.3:
		return "low"
	default:
		return "very_low"
	}
}

// ConfidenceStats summarizes confidence distribution across a corpus,
// supplementing spec.md per original_source's get_confidence_stats.
type ConfidenceStats struct {
	Total              int
	AvgConfidence      float64
	ByLevel            map[string]int
	LowConfidenceCount int
}

// ComputeConfidenceStats aggregates ConfidenceStats over a set of
// confidence scores.
func ComputeConfidenceStats(confidences []float64) ConfidenceStats {
	if len(confidences) == 0 {
		return ConfidenceStats{ByLevel: map[string]int{}}
	}

	stats := ConfidenceStats{Total: len(confidences), ByLevel: map[string]int{}}
	var sum float64
	for _, c := range confidences {
		sum += c
		stats.ByLevel[ConfidenceLevel(c)]++
		if c < 0.3 {
			stats.LowConfidenceCount++
		}
	}
	stats.AvgConfidence = sum / float64(len(confidences))
	return stats
}

func defaultImportance(body string) float64 {
	score := 0.5

	lower := len(body)
	switch {
	case lower > 500:
		score += 0.15
	case lower > 150:
		score += 0.1
	case lower < 20:
		score -= 0.15
	}

	for _, word := range emphasisWords {
		if containsFold(body, word) {
			score += 0.05
		}
	}

	return clamp01(score)
}

var emphasisWords = []string{
	"always", "never", "critical", "important", "must", "remember",
	"crucial", "key insight", "learned", "mistake",
}

func containsFold(s, substr string) bool {
	return indexFold(s, substr) >= 0
}

// indexFold is a tiny ASCII-case-insensitive substring search, avoiding a
// strings.ToLower allocation of the whole body per emphasis word.
func indexFold(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if equalFold(s[i:i+m], substr) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
