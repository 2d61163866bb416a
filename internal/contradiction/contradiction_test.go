package contradiction

import (
	"context"
	"testing"

	"github.com/memoryctl/memoryctl/internal/oracle"
	"github.com/memoryctl/memoryctl/internal/recordstore"
)

type stubOracle struct {
	verdicts map[string]oracle.Verdict
	err      error
}

func (s *stubOracle) CheckContradiction(_ context.Context, existing, _ string) (oracle.Verdict, error) {
	if s.err != nil {
		return oracle.VerdictUnknown, s.err
	}
	if v, ok := s.verdicts[existing]; ok {
		return v, nil
	}
	return oracle.VerdictCompatible, nil
}

func (s *stubOracle) CheckDuplicate(_ context.Context, _, _ string) (bool, error) { return false, nil }
func (s *stubOracle) Extract(_ context.Context, _ string) ([]oracle.Candidate, error) {
	return nil, nil
}

func TestCheckNoSimilarMemoriesDefaultsToSave(t *testing.T) {
	d := New(&stubOracle{}, 0.3, 5)
	result := d.Check(context.Background(), "completely unrelated new content here", nil)
	if result.Contradicts || result.Action != ActionSave {
		t.Errorf("expected save action with no contradiction, got %+v", result)
	}
}

func TestCheckFindsContradictionAndReplaces(t *testing.T) {
	existing := &recordstore.Record{ID: "m1", Content: "I prefer morning meetings for the team"}
	stub := &stubOracle{verdicts: map[string]oracle.Verdict{
		existing.Content: oracle.VerdictContradicts,
	}}
	d := New(stub, 0.3, 5)

	result := d.Check(context.Background(), "I prefer afternoon meetings for the team", []*recordstore.Record{existing})
	if !result.Contradicts {
		t.Fatal("expected contradiction")
	}
	if result.Action != ActionReplace {
		t.Errorf("expected replace action, got %s", result.Action)
	}
	if result.ContradictedMemory.ID != "m1" {
		t.Errorf("expected contradicted memory m1, got %s", result.ContradictedMemory.ID)
	}
}

func TestCheckLowOverlapSkipsCandidate(t *testing.T) {
	existing := &recordstore.Record{ID: "m1", Content: "completely different topic about databases"}
	stub := &stubOracle{verdicts: map[string]oracle.Verdict{existing.Content: oracle.VerdictContradicts}}
	d := New(stub, 0.3, 5)

	result := d.Check(context.Background(), "a totally unrelated sentence about weather", []*recordstore.Record{existing})
	if result.Contradicts {
		t.Errorf("expected no contradiction for low word overlap, got %+v", result)
	}
}

func TestCheckOracleFailureDefaultsToSave(t *testing.T) {
	existing := &recordstore.Record{ID: "m1", Content: "I prefer morning meetings for the team"}
	stub := &stubOracle{err: context.DeadlineExceeded}
	d := New(stub, 0.3, 5)

	result := d.Check(context.Background(), "I prefer afternoon meetings for the team", []*recordstore.Record{existing})
	if result.Contradicts {
		t.Errorf("expected default-to-save on oracle failure, got %+v", result)
	}
	if result.Action != ActionSave {
		t.Errorf("expected save action, got %s", result.Action)
	}
}
