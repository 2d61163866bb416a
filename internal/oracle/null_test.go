package oracle

import (
	"context"
	"testing"
)

func TestNullOracleDefaultsToSafeFallbacks(t *testing.T) {
	o := NewNullOracle()
	ctx := context.Background()

	verdict, err := o.CheckContradiction(ctx, "a", "b")
	if err != nil || verdict != VerdictUnknown {
		t.Errorf("expected VerdictUnknown/nil, got %v/%v", verdict, err)
	}

	dup, err := o.CheckDuplicate(ctx, "a", "b")
	if err != nil || dup {
		t.Errorf("expected false/nil, got %v/%v", dup, err)
	}

	candidates, err := o.Extract(ctx, "some text")
	if err != nil || candidates != nil {
		t.Errorf("expected nil/nil, got %v/%v", candidates, err)
	}
}

func TestDefaultConfigMatchesDocumentedValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.MaxRetries)
	}
	if cfg.Timeout.Seconds() != 30 {
		t.Errorf("expected 30s timeout, got %v", cfg.Timeout)
	}
}
