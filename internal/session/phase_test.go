package session

import (
	"testing"
	"time"
)

func TestDerivePhase(t *testing.T) {
	tests := []struct {
		name     string
		snap     Snapshot
		expected Phase
	}{
		{
			name:     "server phase wins",
			snap:     Snapshot{Status: StatusActive, Phase: PhaseWaiting, Cards: []Card{{ID: "a"}}},
			expected: PhaseWaiting,
		},
		{
			name:     "complete status without phase",
			snap:     Snapshot{Status: StatusComplete},
			expected: PhaseComplete,
		},
		{
			name:     "candidates imply swiping",
			snap:     Snapshot{Status: StatusActive, Cards: []Card{{ID: "a"}}},
			expected: PhaseSwiping,
		},
		{
			name:     "empty active session is collecting",
			snap:     Snapshot{Status: StatusActive},
			expected: PhaseCollecting,
		},
		{
			name:     "tie break flag overrides server phase",
			snap:     Snapshot{Status: StatusActive, Phase: PhaseSwiping, TieBreakRequired: true, Cards: []Card{{ID: "a"}}},
			expected: PhaseTieBreak,
		},
		{
			name:     "leader ended completion is terminal",
			snap:     Snapshot{Status: StatusComplete, Phase: PhaseComplete, EndedByLeader: true},
			expected: PhaseEndedByLeader,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DerivePhase(tc.snap); got != tc.expected {
				t.Fatalf("expected phase %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestPollIntervalCadence(t *testing.T) {
	tests := []struct {
		name     string
		snap     Snapshot
		expected time.Duration
		polling  bool
	}{
		{
			name:     "collecting polls fast",
			snap:     Snapshot{Status: StatusActive},
			expected: 1000 * time.Millisecond,
			polling:  true,
		},
		{
			name:     "waiting polls fast",
			snap:     Snapshot{Status: StatusActive, Phase: PhaseWaiting},
			expected: 1000 * time.Millisecond,
			polling:  true,
		},
		{
			name:     "swiping polls at the active cadence",
			snap:     Snapshot{Status: StatusActive, Cards: []Card{{ID: "a"}}},
			expected: 1500 * time.Millisecond,
			polling:  true,
		},
		{
			name:     "tie break polls at the active cadence",
			snap:     Snapshot{Status: StatusActive, TieBreakRequired: true, Cards: []Card{{ID: "a"}}},
			expected: 1500 * time.Millisecond,
			polling:  true,
		},
		{
			name:    "complete with link stops",
			snap:    Snapshot{Status: StatusComplete, WinnerID: "a", WatchPartyURL: "https://example.com/party"},
			polling: false,
		},
		{
			name:     "complete awaiting link polls slowly",
			snap:     Snapshot{Status: StatusComplete, WinnerID: "a"},
			expected: 2000 * time.Millisecond,
			polling:  true,
		},
		{
			name:    "complete without winner stops",
			snap:    Snapshot{Status: StatusComplete},
			polling: false,
		},
		{
			name:    "leader ended never keeps polling",
			snap:    Snapshot{Status: StatusComplete, WinnerID: "a", EndedByLeader: true},
			polling: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			interval, polling := PollInterval(tc.snap)
			if polling != tc.polling {
				t.Fatalf("expected polling=%v, got %v", tc.polling, polling)
			}
			if polling && interval != tc.expected {
				t.Fatalf("expected interval %v, got %v", tc.expected, interval)
			}
		})
	}
}
