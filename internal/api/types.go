package api

// SessionStatus values reported by the session server.
const (
	StatusActive   = "active"
	StatusComplete = "complete"
)

// Session phase values reported by the session server.
const (
	PhaseCollecting    = "collecting"
	PhaseWaiting       = "waiting"
	PhaseSwiping       = "swiping"
	PhaseTieBreak      = "tiebreak"
	PhaseComplete      = "complete"
	PhaseEndedByLeader = "ended_by_leader"
)

// Wire vote values accepted by the session server.
const (
	WireVoteYes = "yes"
	WireVoteNo  = "no"
)

// Candidate is one title dealt into a round. Immutable once dealt.
type Candidate struct {
	WatchlistItemID string `json:"watchlist_item_id"`
	Position        int    `json:"position"`
	Name            string `json:"name"`
	Year            int    `json:"year,omitempty"`
	PosterURL       string `json:"poster_url,omitempty"`
	MediaType       string `json:"media_type,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// SessionState is the authoritative session snapshot owned by the server. The
// client holds a cached, possibly stale, copy of it between polls.
type SessionState struct {
	SessionID            string      `json:"session_id"`
	Status               string      `json:"status"`
	Phase                string      `json:"phase,omitempty"`
	Round                int         `json:"round"`
	EndsAtSeconds        int64       `json:"ends_at_s,omitempty"`
	Candidates           []Candidate `json:"candidates"`
	UserLocked           bool        `json:"user_locked,omitempty"`
	UserSecondsLeft      int         `json:"user_seconds_left,omitempty"`
	TieBreakRequired     bool        `json:"tie_break_required,omitempty"`
	TieBreakCandidateIDs []string    `json:"tie_break_candidate_ids,omitempty"`
	WinnerID             string      `json:"result_watchlist_item_id,omitempty"`
	EndedByLeader        bool        `json:"ended_by_leader,omitempty"`
	WatchPartyURL        string      `json:"watch_party_url,omitempty"`
	Shortlist            []string    `json:"shortlist,omitempty"`
	AIWhy                string      `json:"ai_why,omitempty"`
}

// JoinRequest creates a session for the group or joins the active one.
type JoinRequest struct {
	GroupID     string      `json:"group_id"`
	MemberName  string      `json:"member_name,omitempty"`
	Constraints Constraints `json:"constraints"`
}

// Constraints narrows the candidate pool for a new session.
type Constraints struct {
	VibeTags    []string `json:"vibe_tags,omitempty"`
	MoodSummary string   `json:"mood_summary,omitempty"`
	MediaTypes  []string `json:"media_types,omitempty"`
}

// JoinResult carries the joined session plus the bearer token for
// session-bound calls.
type JoinResult struct {
	AccessToken string       `json:"access_token"`
	MemberID    string       `json:"member_id"`
	IsLeader    bool         `json:"is_leader"`
	State       SessionState `json:"state"`
}

type votePayload struct {
	CandidateID string `json:"watchlist_item_id"`
	Vote        string `json:"vote"`
}

type watchPartyPayload struct {
	URL *string `json:"url"`
}

type errorPayload struct {
	Error string `json:"error"`
}
