package oracle

import "context"

// NullOracle is the non-blocking fallback used when no provider is
// configured (config Oracle.Provider == "null") or when the caller
// wants deterministic, network-free behavior in tests. It always
// reports "no contradiction, no duplicate, nothing extracted" rather
// than erroring. For contradiction checks and extraction that leads
// callers down the same path as an unreachable oracle; for the
// consolidator's gray-zone dedup it does not: a "not a duplicate"
// answer keeps the candidate, while a failed call falls back to the
// similarity>0.75 heuristic.
type NullOracle struct{}

// NewNullOracle returns a NullOracle.
func NewNullOracle() *NullOracle { return &NullOracle{} }

func (NullOracle) CheckContradiction(_ context.Context, _, _ string) (Verdict, error) {
	return VerdictUnknown, nil
}

func (NullOracle) CheckDuplicate(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (NullOracle) Extract(_ context.Context, _ string) ([]Candidate, error) {
	return nil, nil
}
