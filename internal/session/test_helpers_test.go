package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/noelys215/deckparty/internal/api"
	"github.com/noelys215/deckparty/internal/deck"
	"github.com/noelys215/deckparty/internal/storage"
)

type submittedVote struct {
	sessionID   string
	candidateID string
	vote        string
}

type fakeSessionAPI struct {
	mu           sync.Mutex
	state        api.SessionState
	stateErr     error
	voteErr      error
	votes        []submittedVote
	shuffleState api.SessionState
	shuffleErr   error
	endErr       error
	endedCount   int
	watchState   api.SessionState
	watchErr     error
}

func (f *fakeSessionAPI) State(_ context.Context, _ string) (api.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return api.SessionState{}, f.stateErr
	}
	return f.state, nil
}

func (f *fakeSessionAPI) SubmitVote(_ context.Context, sessionID, candidateID, vote string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.voteErr != nil {
		return f.voteErr
	}
	f.votes = append(f.votes, submittedVote{sessionID: sessionID, candidateID: candidateID, vote: vote})
	return nil
}

func (f *fakeSessionAPI) Shuffle(_ context.Context, _ string) (api.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shuffleErr != nil {
		return api.SessionState{}, f.shuffleErr
	}
	return f.shuffleState, nil
}

func (f *fakeSessionAPI) SetWatchPartyLink(_ context.Context, _ string, _ *string) (api.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watchErr != nil {
		return api.SessionState{}, f.watchErr
	}
	return f.watchState, nil
}

func (f *fakeSessionAPI) End(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.endErr != nil {
		return f.endErr
	}
	f.endedCount++
	return nil
}

func (f *fakeSessionAPI) submittedVotes() []submittedVote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submittedVote(nil), f.votes...)
}

func (f *fakeSessionAPI) setState(state api.SessionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
	f.stateErr = nil
}

func testCandidates(ids ...string) []api.Candidate {
	candidates := make([]api.Candidate, 0, len(ids))
	// Ascending positions: sorted descending, the first id lands at the top
	// of the stack (highest index) and is the first card reviewed.
	for index, id := range ids {
		candidates = append(candidates, api.Candidate{
			WatchlistItemID: id,
			Position:        index + 1,
			Name:            "Title " + id,
		})
	}
	return candidates
}

func mustSynchronizer(t *testing.T, fake *fakeSessionAPI, store storage.Store, leader bool) *Synchronizer {
	t.Helper()
	if store == nil {
		store = storage.NewMemory()
	}
	synchronizer, err := NewSynchronizer(SynchronizerConfig{
		API:       fake,
		Store:     store,
		GroupID:   "group-1",
		SessionID: "session-1",
		IsLeader:  leader,
		Sequencer: deck.NewSequencer(deck.SequencerConfig{
			BeatInterval:    time.Millisecond,
			ShuffleDuration: 3 * time.Millisecond,
		}),
	})
	if err != nil {
		t.Fatalf("unexpected synchronizer error: %v", err)
	}
	return synchronizer
}

func mustSwipe(t *testing.T, synchronizer *Synchronizer, offset deck.Offset) deck.Direction {
	t.Helper()
	direction, err := synchronizer.Swipe(context.Background(), offset)
	if err != nil {
		t.Fatalf("unexpected swipe error: %v", err)
	}
	return direction
}
