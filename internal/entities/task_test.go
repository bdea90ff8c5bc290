package entities

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusAwaitingInput, false},

		{StatusProcessing, StatusAwaitingInput, true},
		{StatusProcessing, StatusScheduled, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusPending, false},

		{StatusAwaitingInput, StatusProcessing, true},
		{StatusAwaitingInput, StatusCancelled, true},
		{StatusAwaitingInput, StatusCompleted, false},

		{StatusScheduled, StatusProcessing, true},
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusAwaitingInput, false},

		{StatusCompleted, StatusProcessing, false},
		{StatusFailed, StatusPending, false},
		{StatusCancelled, StatusProcessing, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTerminalStatesAreFrozen(t *testing.T) {
	all := []TaskStatus{StatusPending, StatusProcessing, StatusAwaitingInput,
		StatusScheduled, StatusCompleted, StatusFailed, StatusCancelled}
	for _, from := range []TaskStatus{StatusCompleted, StatusFailed, StatusCancelled} {
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("terminal %s permits transition to %s", from, to)
			}
		}
	}
}

func TestClampPriority(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 1}, {-3, 1}, {1, 1}, {3, 3}, {5, 5}, {6, 5}, {100, 5},
	}
	for _, c := range cases {
		if got := ClampPriority(c.in); got != c.want {
			t.Errorf("ClampPriority(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
