package scoring

import "testing"

func TestConfidenceInitial(t *testing.T) {
	if got := Confidence(0, 0, 1); got != 0.5 {
		t.Errorf("expected initial confidence 0.5, got %v", got)
	}
}

func TestConfidenceConfirmations(t *testing.T) {
	if got := Confidence(3, 0, 1); got != 0.8 {
		t.Errorf("expected confidence 0.8 after 3 confirmations, got %v", got)
	}
	// min(0.9, 0.5+0.1*8)=0.9 caps out
	if got := Confidence(8, 0, 1); got != 0.9 {
		t.Errorf("expected confidence capped at 0.9, got %v", got)
	}
}

func TestConfidenceContradictionPenalty(t *testing.T) {
	// base=0.5 (no confirmations), 1 contradiction -> 0.5-0.3=0.2
	if got := Confidence(0, 1, 1); got != 0.2 {
		t.Errorf("expected 0.2, got %v", got)
	}
	// floor at 0.1
	if got := Confidence(0, 3, 1); got != 0.1 {
		t.Errorf("expected floor 0.1, got %v", got)
	}
}

func TestConfidenceSourceBoost(t *testing.T) {
	// base=0.5, 3 sources -> boost min(0.1, 0.05*2)=0.1 -> 0.6
	if got := Confidence(0, 0, 3); got != 0.6 {
		t.Errorf("expected 0.6, got %v", got)
	}
}

func TestDecayMatchesScenarioS5(t *testing.T) {
	tests := []struct {
		importance float64
		want       float64
	}{
		{0.9, 0.666}, // 0.9*0.99^30 = 0.66573
		{0.3, 0.222},
		{0.15, 0.111},
	}
	for _, tt := range tests {
		got := Decay(tt.importance, 0.99, 30)
		if diff := got - tt.want; diff > 0.001 || diff < -0.001 {
			t.Errorf("Decay(%v, 0.99, 30) = %v, want ~%v", tt.importance, got, tt.want)
		}
	}
}

func TestDecayZeroDaysIsNoOp(t *testing.T) {
	if got := Decay(0.5, 0.99, 0); got != 0.5 {
		t.Errorf("expected no-op decay, got %v", got)
	}
}

func TestImportanceGradeBands(t *testing.T) {
	cases := map[float64]string{0.9: "A", 0.8: "A", 0.7: "B", 0.6: "B", 0.5: "C", 0.4: "C", 0.1: "D"}
	for importance, want := range cases {
		if got := ImportanceGrade(importance); got != want {
			t.Errorf("ImportanceGrade(%v) = %s, want %s", importance, got, want)
		}
	}
}

func TestConfidenceStatsEmptyCorpus(t *testing.T) {
	stats := ComputeConfidenceStats(nil)
	if stats.Total != 0 || stats.AvgConfidence != 0 {
		t.Errorf("expected zero-value stats, got %+v", stats)
	}
}
