package session

import "time"

const (
	intervalCollecting = 1000 * time.Millisecond
	intervalActive     = 1500 * time.Millisecond
	intervalAwaitLink  = 2000 * time.Millisecond
)

// DerivePhase reduces a snapshot to its logical phase. The server-supplied
// phase wins when present, except that a leader-ended completion is terminal
// and an active session flagged for tie-break is in tie-break regardless of
// what phase string accompanied the flag.
func DerivePhase(snap Snapshot) Phase {
	if snap.Status == StatusComplete && snap.EndedByLeader {
		return PhaseEndedByLeader
	}
	if snap.Status == StatusActive && snap.TieBreakRequired {
		return PhaseTieBreak
	}
	if snap.Phase != "" {
		return snap.Phase
	}
	if snap.Status == StatusComplete {
		return PhaseComplete
	}
	if len(snap.Cards) > 0 {
		return PhaseSwiping
	}
	return PhaseCollecting
}

// PollInterval is the pure cadence policy: given the latest snapshot it
// returns the delay before the next poll, or ok=false when polling should
// stop. A completed session keeps polling slowly only while a winner exists,
// no watch-party link has been set, and the session was not ended by the
// leader, so a leader's later link is still picked up.
func PollInterval(snap Snapshot) (time.Duration, bool) {
	if snap.Status == StatusComplete {
		if snap.WinnerID != "" && snap.WatchPartyURL == "" && !snap.EndedByLeader {
			return intervalAwaitLink, true
		}
		return 0, false
	}
	switch DerivePhase(snap) {
	case PhaseCollecting, PhaseWaiting:
		return intervalCollecting, true
	default:
		return intervalActive, true
	}
}
