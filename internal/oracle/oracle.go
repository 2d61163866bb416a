// Package oracle abstracts the external-judgment calls the engine makes
// during contradiction detection, gray-zone dedup resolution, and
// candidate extraction: one interface, two implementations (a real
// Anthropic-backed oracle and a null fallback), both cancellable and
// both with a documented non-blocking default.
package oracle

import (
	"context"
	"time"
)

// Verdict is the outcome of a contradiction check.
type Verdict string

const (
	VerdictContradicts Verdict = "CONTRADICTS"
	VerdictCompatible  Verdict = "COMPATIBLE"
	VerdictUnknown     Verdict = "UNKNOWN"
)

// Candidate is an extracted memory candidate, as produced by Extract.
type Candidate struct {
	Content    string
	Category   string
	Confidence float64
}

// Oracle is the external-judgment surface used by the contradiction
// detector, the consolidator's gray-zone dedup step, and the
// consolidator's candidate extraction stage. Every method must respect ctx's deadline
// and return promptly on cancellation.
type Oracle interface {
	// CheckContradiction judges whether candidate contradicts existing.
	// Falls back to VerdictUnknown (treated by callers as "no
	// contradiction found", i.e. default-to-save) on failure.
	CheckContradiction(ctx context.Context, existing, candidate string) (Verdict, error)

	// CheckDuplicate judges whether a and b describe the same fact,
	// for dedup's gray-zone (0.5-0.9 similarity) resolution path.
	CheckDuplicate(ctx context.Context, a, b string) (bool, error)

	// Extract pulls structured memory candidates out of free text
	// (a session transcript chunk), supplementing pattern-based
	// extraction in the consolidator.
	Extract(ctx context.Context, text string) ([]Candidate, error)
}

// Config controls retry/timeout behavior shared by oracle implementations.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig matches spec's documented oracle defaults: 30s
// deadline, 3 retries, 1s initial backoff doubling per attempt.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
	}
}
