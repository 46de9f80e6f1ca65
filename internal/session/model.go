package session

import (
	"sort"
	"time"

	"github.com/noelys215/deckparty/internal/api"
)

// Status mirrors the server-owned session status.
type Status string

const (
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

// Phase is the logical session phase derived from the latest snapshot.
type Phase string

const (
	PhaseCollecting    Phase = "collecting"
	PhaseWaiting       Phase = "waiting"
	PhaseSwiping       Phase = "swiping"
	PhaseTieBreak      Phase = "tiebreak"
	PhaseComplete      Phase = "complete"
	PhaseEndedByLeader Phase = "ended_by_leader"
)

// Card is one candidate dealt into a round. Immutable once dealt; a new
// round replaces the whole set.
type Card struct {
	ID        string
	Position  int
	Name      string
	Year      int
	PosterURL string
	MediaType string
	Reason    string
}

// Snapshot is the client's cached copy of the authoritative session state.
// Cards are ordered by descending position so the first card to review sits
// at the top of the stack (highest index).
type Snapshot struct {
	SessionID            string
	Status               Status
	Phase                Phase
	Round                int
	EndsAt               time.Time
	Cards                []Card
	UserLocked           bool
	UserSecondsLeft      int
	TieBreakRequired     bool
	TieBreakCandidateIDs []string
	WinnerID             string
	EndedByLeader        bool
	WatchPartyURL        string
	Shortlist            []string
}

// NewSnapshot converts a wire session state into a domain snapshot.
func NewSnapshot(state api.SessionState) Snapshot {
	cards := make([]Card, 0, len(state.Candidates))
	for _, candidate := range state.Candidates {
		cards = append(cards, Card{
			ID:        candidate.WatchlistItemID,
			Position:  candidate.Position,
			Name:      candidate.Name,
			Year:      candidate.Year,
			PosterURL: candidate.PosterURL,
			MediaType: candidate.MediaType,
			Reason:    candidate.Reason,
		})
	}
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Position > cards[j].Position
	})

	var endsAt time.Time
	if state.EndsAtSeconds > 0 {
		endsAt = time.Unix(state.EndsAtSeconds, 0).UTC()
	}

	return Snapshot{
		SessionID:            state.SessionID,
		Status:               Status(state.Status),
		Phase:                Phase(state.Phase),
		Round:                state.Round,
		EndsAt:               endsAt,
		Cards:                cards,
		UserLocked:           state.UserLocked,
		UserSecondsLeft:      state.UserSecondsLeft,
		TieBreakRequired:     state.TieBreakRequired,
		TieBreakCandidateIDs: append([]string(nil), state.TieBreakCandidateIDs...),
		WinnerID:             state.WinnerID,
		EndedByLeader:        state.EndedByLeader,
		WatchPartyURL:        state.WatchPartyURL,
		Shortlist:            append([]string(nil), state.Shortlist...),
	}
}

// CardIndex returns the position of the card with the given id within the
// descending-position stack, or -1 when absent.
func (s Snapshot) CardIndex(cardID string) int {
	for index, card := range s.Cards {
		if card.ID == cardID {
			return index
		}
	}
	return -1
}
