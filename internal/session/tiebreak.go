package session

import (
	"context"
	"errors"
)

// ErrTieBreakUnavailable rejects a resolution attempt outside the tie-break
// window: only the leader, only while the session is active in tie-break
// with candidates on the table.
var ErrTieBreakUnavailable = errors.New("session: tie-break resolution unavailable")

// ResolveTieBreak asks the server for a shuffle resolution, adopts the
// returned state exactly as a poll would, plays the winner-reveal sequence
// to completion, and settles the session as complete with the cursor on the
// winner. A request failure changes nothing; the next poll cycle is the
// recovery path.
func (s *Synchronizer) ResolveTieBreak(ctx context.Context) error {
	s.mu.Lock()
	allowed := s.isLeader &&
		!s.terminated &&
		s.snap.Status == StatusActive &&
		s.phase == PhaseTieBreak &&
		len(s.snap.Cards) > 0
	s.mu.Unlock()
	if !allowed {
		return newEngineError(opTieBreak, "unavailable", ErrTieBreakUnavailable)
	}

	state, err := s.apiClient.Shuffle(ctx, s.sessionID)
	if err != nil {
		return newEngineError(opTieBreak, "shuffle_failed", err)
	}
	s.Apply(state)

	winnerID := state.WinnerID
	if winnerID == "" {
		winnerID = s.WinnerID()
	}

	// The reveal preempts whatever ambient sequence is still playing.
	s.sequencer.Reset()
	done, err := s.sequencer.RevealWinner(ctx, winnerID)
	if err != nil {
		return newEngineError(opTieBreak, "reveal_rejected", err)
	}
	if revealErr := <-done; revealErr != nil {
		return newEngineError(opTieBreak, "reveal_interrupted", revealErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return nil
	}
	s.snap.Status = StatusComplete
	s.snap.Phase = PhaseComplete
	s.snap.TieBreakRequired = false
	s.phase = PhaseComplete
	winnerIndex := s.snap.CardIndex(winnerID)
	if winnerIndex < 0 {
		winnerIndex = cursorExhausted
	}
	s.cursor = s.cursors.Save(s.snap.SessionID, s.round, winnerIndex, len(s.snap.Cards))
	return nil
}
