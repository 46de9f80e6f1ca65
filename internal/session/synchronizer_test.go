package session

import (
	"context"
	"errors"
	"testing"

	"github.com/noelys215/deckparty/internal/api"
	"github.com/noelys215/deckparty/internal/deck"
	"github.com/noelys215/deckparty/internal/storage"
)

func activeState(round int, ids ...string) api.SessionState {
	return api.SessionState{
		SessionID:  "session-1",
		Status:     api.StatusActive,
		Round:      round,
		Candidates: testCandidates(ids...),
	}
}

func TestApplyDerivesPhaseAndRestoresCursor(t *testing.T) {
	fake := &fakeSessionAPI{}
	synchronizer := mustSynchronizer(t, fake, nil, false)

	synchronizer.Apply(activeState(0, "a", "b", "c"))

	if phase := synchronizer.Phase(); phase != PhaseSwiping {
		t.Fatalf("expected swiping phase, got %q", phase)
	}
	if cursor := synchronizer.Cursor(); cursor != 2 {
		t.Fatalf("expected cursor at top of a 3 card stack, got %d", cursor)
	}
	card, ok := synchronizer.CurrentCard()
	if !ok || card.ID != "a" {
		t.Fatalf("expected first dealt card a, got %+v ok=%v", card, ok)
	}
}

func TestApplyIgnoresForeignSession(t *testing.T) {
	fake := &fakeSessionAPI{}
	synchronizer := mustSynchronizer(t, fake, nil, false)
	synchronizer.Apply(activeState(0, "a"))

	foreign := activeState(7, "x")
	foreign.SessionID = "session-other"
	synchronizer.Apply(foreign)

	if round := synchronizer.Round(); round != 0 {
		t.Fatalf("foreign session snapshot must not apply, round=%d", round)
	}
}

func TestRoundTransitionResetsVotesAndCursor(t *testing.T) {
	fake := &fakeSessionAPI{}
	synchronizer := mustSynchronizer(t, fake, nil, false)
	synchronizer.Apply(activeState(0, "a", "b"))

	if submitted, err := synchronizer.SubmitVote(context.Background(), "a", VoteYes); err != nil || !submitted {
		t.Fatalf("expected vote to submit, submitted=%v err=%v", submitted, err)
	}
	if votes := synchronizer.Votes(); len(votes) != 1 {
		t.Fatalf("expected one recorded vote, got %d", len(votes))
	}

	synchronizer.Apply(activeState(1, "c", "d", "e"))

	if votes := synchronizer.Votes(); len(votes) != 0 {
		t.Fatalf("expected votes cleared on round change, got %d", len(votes))
	}
	if cursor := synchronizer.Cursor(); cursor != 2 {
		t.Fatalf("expected cursor reset to top of new stack, got %d", cursor)
	}
	// The same candidate id votes independently in the new round.
	if submitted, err := synchronizer.SubmitVote(context.Background(), "a", VoteNo); err != nil || !submitted {
		t.Fatalf("expected same card to vote in the new round, submitted=%v err=%v", submitted, err)
	}
}

func TestLeaderEndedTerminationIsOneWay(t *testing.T) {
	fake := &fakeSessionAPI{}
	store := storage.NewMemory()
	synchronizer := mustSynchronizer(t, fake, store, false)
	if err := synchronizer.Contexts().SetActiveSession("group-1", "session-1"); err != nil {
		t.Fatalf("unexpected pointer error: %v", err)
	}
	synchronizer.Apply(activeState(0, "a", "b"))

	synchronizer.Apply(api.SessionState{
		SessionID:     "session-1",
		Status:        api.StatusComplete,
		Round:         0,
		EndedByLeader: true,
	})

	if phase := synchronizer.Phase(); phase != PhaseEndedByLeader {
		t.Fatalf("expected ended_by_leader phase, got %q", phase)
	}
	if !synchronizer.Terminated() {
		t.Fatalf("expected terminated flag")
	}
	if _, found := synchronizer.Contexts().ActiveSession("group-1"); found {
		t.Fatalf("expected active session pointer cleared")
	}
	snap, _ := synchronizer.Snapshot()
	if len(snap.Cards) != 0 {
		t.Fatalf("expected deck emptied, got %d cards", len(snap.Cards))
	}
	if interval, polling := synchronizer.nextInterval(); polling {
		t.Fatalf("expected polling stopped, got interval %v", interval)
	}

	// A stale in-flight response for the same session arrives later and must
	// not resurrect it.
	synchronizer.Apply(activeState(3, "x", "y"))
	if phase := synchronizer.Phase(); phase != PhaseEndedByLeader {
		t.Fatalf("stale response reverted terminal phase to %q", phase)
	}
	if synchronizer.Round() != 0 {
		t.Fatalf("stale response applied after termination")
	}
}

func TestPollFailureKeepsStaleSnapshot(t *testing.T) {
	fake := &fakeSessionAPI{}
	synchronizer := mustSynchronizer(t, fake, nil, false)
	fake.setState(activeState(2, "a", "b"))
	synchronizer.pollOnce(context.Background())
	if synchronizer.Round() != 2 {
		t.Fatalf("expected round 2 applied, got %d", synchronizer.Round())
	}

	fake.mu.Lock()
	fake.stateErr = errors.New("gateway timeout")
	fake.mu.Unlock()
	synchronizer.pollOnce(context.Background())

	if synchronizer.Round() != 2 {
		t.Fatalf("poll failure must keep the previous snapshot, got round %d", synchronizer.Round())
	}
	if phase := synchronizer.Phase(); phase != PhaseSwiping {
		t.Fatalf("expected phase unchanged after failed poll, got %q", phase)
	}
}

func TestSwipeScenarioRecordsVotesAndShortlist(t *testing.T) {
	fake := &fakeSessionAPI{}
	synchronizer := mustSynchronizer(t, fake, nil, false)
	synchronizer.Apply(activeState(0, "a", "b", "c", "d", "e"))

	if cursor := synchronizer.Cursor(); cursor != 4 {
		t.Fatalf("expected cursor 4 on a 5 card deck, got %d", cursor)
	}

	if direction := mustSwipe(t, synchronizer, deck.Offset{X: 200}); direction != deck.DirectionRight {
		t.Fatalf("expected right swipe, got %q", direction)
	}
	if direction := mustSwipe(t, synchronizer, deck.Offset{X: -200}); direction != deck.DirectionLeft {
		t.Fatalf("expected left swipe, got %q", direction)
	}
	if direction := mustSwipe(t, synchronizer, deck.Offset{Y: -200}); direction != deck.DirectionUp {
		t.Fatalf("expected up swipe, got %q", direction)
	}

	if cursor := synchronizer.Cursor(); cursor != 1 {
		t.Fatalf("expected cursor 1 after three swipes, got %d", cursor)
	}
	if calls := fake.submittedVotes(); len(calls) != 3 {
		t.Fatalf("expected three distinct submissions, got %d", len(calls))
	}

	votes := synchronizer.Votes()
	if votes["a"] != VoteYes || votes["b"] != VoteNo || votes["c"] != VoteMaybe {
		t.Fatalf("unexpected recorded votes: %v", votes)
	}

	shortlist := synchronizer.ShortlistCards()
	if len(shortlist) != 2 {
		t.Fatalf("expected yes and maybe cards shortlisted, got %d", len(shortlist))
	}
	shortlisted := map[string]bool{}
	for _, card := range shortlist {
		shortlisted[card.ID] = true
	}
	if !shortlisted["a"] || !shortlisted["c"] {
		t.Fatalf("expected cards a and c in shortlist, got %v", shortlisted)
	}
}

func TestIndecisiveReleaseLeavesDeckUntouched(t *testing.T) {
	fake := &fakeSessionAPI{}
	synchronizer := mustSynchronizer(t, fake, nil, false)
	synchronizer.Apply(activeState(0, "a", "b"))

	if direction := mustSwipe(t, synchronizer, deck.Offset{X: 50, Y: 50}); direction != deck.DirectionNone {
		t.Fatalf("expected no decision, got %q", direction)
	}
	if cursor := synchronizer.Cursor(); cursor != 1 {
		t.Fatalf("expected cursor unchanged, got %d", cursor)
	}
	if calls := fake.submittedVotes(); len(calls) != 0 {
		t.Fatalf("expected no submission, got %d", len(calls))
	}
}

func TestFailedVoteTriggersRefetchSignal(t *testing.T) {
	fake := &fakeSessionAPI{voteErr: errors.New("service unavailable")}
	synchronizer := mustSynchronizer(t, fake, nil, false)
	synchronizer.Apply(activeState(0, "a"))

	if _, err := synchronizer.SubmitVote(context.Background(), "a", VoteYes); err == nil {
		t.Fatalf("expected submit error to surface")
	}
	select {
	case <-synchronizer.pollNow:
	default:
		t.Fatalf("expected an immediate re-fetch to be requested")
	}
	// The optimistic vote stands.
	if votes := synchronizer.Votes(); votes["a"] != VoteYes {
		t.Fatalf("expected optimistic vote retained, got %v", votes)
	}
}

func TestCursorSurvivesRestart(t *testing.T) {
	fake := &fakeSessionAPI{}
	store := storage.NewMemory()
	synchronizer := mustSynchronizer(t, fake, store, false)
	synchronizer.Apply(activeState(0, "a", "b", "c", "d", "e"))
	mustSwipe(t, synchronizer, deck.Offset{X: 200})
	mustSwipe(t, synchronizer, deck.Offset{X: -200})

	// A fresh synchronizer over the same store models a page reload.
	restarted := mustSynchronizer(t, fake, store, false)
	restarted.Apply(activeState(0, "a", "b", "c", "d", "e"))
	if cursor := restarted.Cursor(); cursor != 2 {
		t.Fatalf("expected restored cursor 2 after reload, got %d", cursor)
	}
	card, ok := restarted.CurrentCard()
	if !ok || card.ID != "c" {
		t.Fatalf("expected to resume at card c, got %+v ok=%v", card, ok)
	}
}

func TestWinnerArrivalIsCached(t *testing.T) {
	fake := &fakeSessionAPI{}
	synchronizer := mustSynchronizer(t, fake, nil, false)
	synchronizer.Apply(activeState(0, "a", "b"))

	state := activeState(0, "a", "b")
	state.Status = api.StatusComplete
	state.WinnerID = "b"
	synchronizer.Apply(state)

	if winner := synchronizer.WinnerID(); winner != "b" {
		t.Fatalf("expected cached winner b, got %q", winner)
	}
	if phase := synchronizer.Phase(); phase != PhaseComplete {
		t.Fatalf("expected complete phase, got %q", phase)
	}
}
