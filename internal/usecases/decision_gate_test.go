package usecases

import (
	"testing"

	"intakehub/internal/entities"
)

func TestRoute(t *testing.T) {
	thresholds := entities.Thresholds{AutoExecute: 0.85, RequireApproval: 0.5}

	tests := []struct {
		name       string
		confidence float64
		force      bool
		want       entities.Verdict
	}{
		{"high confidence auto-executes", 0.92, false, entities.VerdictAutoExecute},
		{"exact auto threshold auto-executes", 0.85, false, entities.VerdictAutoExecute},
		{"forced approval overrides high confidence", 0.92, true, entities.VerdictRequiresApproval},
		{"mid confidence requires approval", 0.7, false, entities.VerdictRequiresApproval},
		{"exact approval threshold requires approval", 0.5, false, entities.VerdictRequiresApproval},
		{"low confidence rejected", 0.3, false, entities.VerdictReject},
		{"forced low confidence still rejected", 0.3, true, entities.VerdictReject},
		{"zero confidence rejected", 0, false, entities.VerdictReject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Route(tt.confidence, thresholds, tt.force)
			if got != tt.want {
				t.Errorf("Route(%v, force=%v) = %v, want %v", tt.confidence, tt.force, got, tt.want)
			}
		})
	}
}

func TestDetectPriority(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"URGENT: need to reschedule tomorrow's meeting ASAP", 5},
		{"please handle today", 5},
		{"deadline is tomorrow", 4},
		{"can we schedule a call next week", 3},
		{"monthly newsletter, no rush", 2},
		{"hello there", 3},
		{"", 3},
	}

	for _, tt := range tests {
		got := DetectPriority(tt.text)
		if got != tt.want {
			t.Errorf("DetectPriority(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestDetectPriorityDeterministic(t *testing.T) {
	text := "urgent meeting about the newsletter deadline"
	first := DetectPriority(text)
	for i := 0; i < 10; i++ {
		if got := DetectPriority(text); got != first {
			t.Fatalf("DetectPriority not deterministic: %d then %d", first, got)
		}
	}
	if first != 5 {
		t.Errorf("urgent bucket should dominate, got %d", first)
	}
}

func TestLaneFor(t *testing.T) {
	tests := []struct {
		priority int
		want     string
	}{
		{5, entities.LaneUrgent},
		{4, entities.LaneUrgent},
		{3, entities.LaneStandard},
		{1, entities.LaneStandard},
	}
	for _, tt := range tests {
		if got := LaneFor(tt.priority); got != tt.want {
			t.Errorf("LaneFor(%d) = %q, want %q", tt.priority, got, tt.want)
		}
	}
}
