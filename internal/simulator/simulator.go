package simulator

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/noelys215/deckparty/internal/api"
	"go.uber.org/zap"
)

const defaultDeckSize = 5

var (
	ErrSessionNotFound  = errors.New("simulator: session not found")
	ErrNotMember        = errors.New("simulator: not a member of this session")
	ErrNotLeader        = errors.New("simulator: leader authority required")
	ErrSessionComplete  = errors.New("simulator: session already complete")
	ErrNoTieBreak       = errors.New("simulator: no tie-break pending")
	ErrUnknownCandidate = errors.New("simulator: candidate not in the current round")

	noOpLogger = zap.NewNop()
)

// poolTitle is one entry of the built-in candidate pool the simulator deals
// from.
type poolTitle struct {
	name      string
	year      int
	mediaType string
}

var builtinPool = []poolTitle{
	{name: "The Long Rain", year: 2019, mediaType: "movie"},
	{name: "Harbor Lights", year: 2021, mediaType: "movie"},
	{name: "Second Orbit", year: 2017, mediaType: "movie"},
	{name: "Paper Planets", year: 2022, mediaType: "show"},
	{name: "The Quiet Floor", year: 2016, mediaType: "movie"},
	{name: "Glass Meridian", year: 2020, mediaType: "show"},
	{name: "Northbound", year: 2015, mediaType: "movie"},
	{name: "A Minor Forecast", year: 2023, mediaType: "movie"},
	{name: "Half Remembered", year: 2018, mediaType: "show"},
	{name: "The Salt Road", year: 2014, mediaType: "movie"},
	{name: "Low Tide Hotel", year: 2024, mediaType: "movie"},
	{name: "Winter Arithmetic", year: 2013, mediaType: "movie"},
}

type member struct {
	id     string
	name   string
	leader bool
	votes  map[string]string
}

func (m *member) lockedFor(candidates []api.Candidate) bool {
	for _, candidate := range candidates {
		if _, voted := m.votes[candidate.WatchlistItemID]; !voted {
			return false
		}
	}
	return len(candidates) > 0
}

type sessionRecord struct {
	id            string
	groupID       string
	status        string
	phase         string
	round         int
	endsAt        time.Time
	candidates    []api.Candidate
	members       map[string]*member
	memberOrder   []string
	winnerID      string
	tieBreak      bool
	tieBreakIDs   []string
	endedByLeader bool
	watchPartyURL string
	aiWhy         string
}

// Config tunes the reference session server.
type Config struct {
	SigningSecret []byte
	DeckSize      int
	Seed          int64
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Simulator is an in-memory reference implementation of the session server
// boundary: it deals candidate decks, tallies votes, advances rounds,
// resolves tie-breaks, and tracks watch-party links. It backs the `simulate`
// command and the end-to-end tests.
type Simulator struct {
	mu       sync.Mutex
	sessions map[string]*sessionRecord
	byGroup  map[string]string
	tokens   *TokenIssuer
	rng      *rand.Rand
	deckSize int
	clock    func() time.Time
	logger   *zap.Logger
}

// New constructs a Simulator.
func New(cfg Config) (*Simulator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	deckSize := cfg.DeckSize
	if deckSize <= 0 {
		deckSize = defaultDeckSize
	}
	if deckSize > len(builtinPool) {
		deckSize = len(builtinPool)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = clock().UnixNano()
	}
	return &Simulator{
		sessions: make(map[string]*sessionRecord),
		byGroup:  make(map[string]string),
		tokens: NewTokenIssuer(TokenIssuerConfig{
			SigningSecret: cfg.SigningSecret,
			Clock:         clock,
		}),
		rng:      rand.New(rand.NewSource(seed)),
		deckSize: deckSize,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Join creates a session for the group or joins its active one. The first
// member to join becomes the leader.
func (s *Simulator) Join(request api.JoinRequest) (api.JoinResult, error) {
	groupID := strings.TrimSpace(request.GroupID)
	if groupID == "" {
		return api.JoinResult{}, fmt.Errorf("group id is required")
	}

	s.mu.Lock()
	record, ok := s.lookupGroupLocked(groupID)
	if !ok {
		record = s.createSessionLocked(groupID, request.Constraints)
	}

	memberID := uuid.NewString()
	joining := &member{
		id:     memberID,
		name:   strings.TrimSpace(request.MemberName),
		leader: len(record.members) == 0,
		votes:  make(map[string]string),
	}
	record.members[memberID] = joining
	record.memberOrder = append(record.memberOrder, memberID)
	state := s.stateLocked(record, memberID)
	s.mu.Unlock()

	token, err := s.tokens.IssueMemberToken(memberID, record.id)
	if err != nil {
		return api.JoinResult{}, err
	}

	s.logger.Info("member joined session",
		zap.String("session_id", record.id),
		zap.String("group_id", groupID),
		zap.Bool("leader", joining.leader))

	return api.JoinResult{
		AccessToken: token,
		MemberID:    memberID,
		IsLeader:    joining.leader,
		State:       state,
	}, nil
}

// State returns the member-specific view of the session.
func (s *Simulator) State(sessionID, memberID string) (api.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.memberSessionLocked(sessionID, memberID)
	if err != nil {
		return api.SessionState{}, err
	}
	return s.stateLocked(record, memberID), nil
}

// Vote records a member's vote for the current round. Repeat votes for the
// same candidate are no-ops, so client retries are safe.
func (s *Simulator) Vote(sessionID, memberID, candidateID, vote string) (api.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.memberSessionLocked(sessionID, memberID)
	if err != nil {
		return api.SessionState{}, err
	}
	if record.status == api.StatusComplete {
		return api.SessionState{}, ErrSessionComplete
	}
	if !s.candidateDealtLocked(record, candidateID) {
		return api.SessionState{}, ErrUnknownCandidate
	}

	voter := record.members[memberID]
	if _, voted := voter.votes[candidateID]; !voted {
		voter.votes[candidateID] = vote
	}
	s.settleRoundLocked(record)
	return s.stateLocked(record, memberID), nil
}

// Shuffle resolves a pending tie-break with a random pick among the tied
// candidates. Leader only.
func (s *Simulator) Shuffle(sessionID, memberID string) (api.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.memberSessionLocked(sessionID, memberID)
	if err != nil {
		return api.SessionState{}, err
	}
	if !record.members[memberID].leader {
		return api.SessionState{}, ErrNotLeader
	}
	if !record.tieBreak || len(record.tieBreakIDs) == 0 {
		return api.SessionState{}, ErrNoTieBreak
	}

	record.winnerID = record.tieBreakIDs[s.rng.Intn(len(record.tieBreakIDs))]
	record.tieBreak = false
	record.status = api.StatusComplete
	record.phase = api.PhaseComplete
	s.logger.Info("tie-break shuffled",
		zap.String("session_id", record.id),
		zap.String("winner_id", record.winnerID))
	return s.stateLocked(record, memberID), nil
}

// End terminates the session on the leader's authority.
func (s *Simulator) End(sessionID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.memberSessionLocked(sessionID, memberID)
	if err != nil {
		return err
	}
	if !record.members[memberID].leader {
		return ErrNotLeader
	}

	record.status = api.StatusComplete
	record.phase = api.PhaseEndedByLeader
	record.endedByLeader = true
	delete(s.byGroup, record.groupID)
	s.logger.Info("session ended by leader", zap.String("session_id", record.id))
	return nil
}

// SetWatchPartyLink stores or clears the shared link. Leader only.
func (s *Simulator) SetWatchPartyLink(sessionID, memberID string, link *string) (api.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := s.memberSessionLocked(sessionID, memberID)
	if err != nil {
		return api.SessionState{}, err
	}
	if !record.members[memberID].leader {
		return api.SessionState{}, ErrNotLeader
	}

	if link == nil {
		record.watchPartyURL = ""
	} else {
		record.watchPartyURL = strings.TrimSpace(*link)
	}
	return s.stateLocked(record, memberID), nil
}

// Tokens exposes the issuer for the router's auth middleware.
func (s *Simulator) Tokens() *TokenIssuer {
	return s.tokens
}

func (s *Simulator) lookupGroupLocked(groupID string) (*sessionRecord, bool) {
	sessionID, ok := s.byGroup[groupID]
	if !ok {
		return nil, false
	}
	record, ok := s.sessions[sessionID]
	if !ok || record.status == api.StatusComplete {
		return nil, false
	}
	return record, true
}

func (s *Simulator) createSessionLocked(groupID string, constraints api.Constraints) *sessionRecord {
	record := &sessionRecord{
		id:      uuid.NewString(),
		groupID: groupID,
		status:  api.StatusActive,
		phase:   api.PhaseSwiping,
		endsAt:  s.clock().Add(30 * time.Minute),
		members: make(map[string]*member),
	}
	if constraints.MoodSummary != "" {
		record.aiWhy = "dealt to match the mood: " + constraints.MoodSummary
	} else if len(constraints.VibeTags) > 0 {
		record.aiWhy = "dealt to match the vibe: " + strings.Join(constraints.VibeTags, ", ")
	}
	record.candidates = s.dealLocked()
	s.sessions[record.id] = record
	s.byGroup[groupID] = record.id
	s.logger.Info("session created",
		zap.String("session_id", record.id),
		zap.String("group_id", groupID),
		zap.Int("deck_size", len(record.candidates)))
	return record
}

func (s *Simulator) dealLocked() []api.Candidate {
	order := s.rng.Perm(len(builtinPool))
	candidates := make([]api.Candidate, 0, s.deckSize)
	for position, poolIndex := range order[:s.deckSize] {
		title := builtinPool[poolIndex]
		candidates = append(candidates, api.Candidate{
			WatchlistItemID: uuid.NewString(),
			Position:        position + 1,
			Name:            title.name,
			Year:            title.year,
			MediaType:       title.mediaType,
		})
	}
	return candidates
}

func (s *Simulator) memberSessionLocked(sessionID, memberID string) (*sessionRecord, error) {
	record, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if _, isMember := record.members[memberID]; !isMember {
		return nil, ErrNotMember
	}
	return record, nil
}

func (s *Simulator) candidateDealtLocked(record *sessionRecord, candidateID string) bool {
	for _, candidate := range record.candidates {
		if candidate.WatchlistItemID == candidateID {
			return true
		}
	}
	return false
}

// settleRoundLocked tallies the round once every member has voted every
// card: a unique top yes-count wins, a tied top forces a tie-break, and a
// round with no yes votes at all re-deals.
func (s *Simulator) settleRoundLocked(record *sessionRecord) {
	for _, participant := range record.members {
		if !participant.lockedFor(record.candidates) {
			return
		}
	}

	yesCounts := make(map[string]int, len(record.candidates))
	for _, candidate := range record.candidates {
		yesCounts[candidate.WatchlistItemID] = 0
	}
	for _, participant := range record.members {
		for candidateID, vote := range participant.votes {
			if vote == api.WireVoteYes {
				yesCounts[candidateID]++
			}
		}
	}

	best := 0
	var leaders []string
	for _, candidate := range record.candidates {
		count := yesCounts[candidate.WatchlistItemID]
		if count > best {
			best = count
			leaders = []string{candidate.WatchlistItemID}
		} else if count == best && best > 0 {
			leaders = append(leaders, candidate.WatchlistItemID)
		}
	}

	switch {
	case best == 0:
		record.round++
		record.candidates = s.dealLocked()
		record.phase = api.PhaseSwiping
		for _, participant := range record.members {
			participant.votes = make(map[string]string)
		}
		s.logger.Info("round re-dealt, no candidate drew a yes",
			zap.String("session_id", record.id),
			zap.Int("round", record.round))
	case len(leaders) == 1:
		record.winnerID = leaders[0]
		record.status = api.StatusComplete
		record.phase = api.PhaseComplete
		s.logger.Info("session settled",
			zap.String("session_id", record.id),
			zap.String("winner_id", record.winnerID))
	default:
		record.tieBreak = true
		record.tieBreakIDs = leaders
		record.phase = api.PhaseTieBreak
		s.logger.Info("tie-break required",
			zap.String("session_id", record.id),
			zap.Int("tied", len(leaders)))
	}
}

func (s *Simulator) stateLocked(record *sessionRecord, memberID string) api.SessionState {
	viewer := record.members[memberID]
	candidates := make([]api.Candidate, len(record.candidates))
	copy(candidates, record.candidates)

	secondsLeft := 0
	if remaining := record.endsAt.Sub(s.clock()); remaining > 0 {
		secondsLeft = int(remaining.Seconds())
	}

	return api.SessionState{
		SessionID:            record.id,
		Status:               record.status,
		Phase:                record.phase,
		Round:                record.round,
		EndsAtSeconds:        record.endsAt.Unix(),
		Candidates:           candidates,
		UserLocked:           viewer != nil && viewer.lockedFor(record.candidates),
		UserSecondsLeft:      secondsLeft,
		TieBreakRequired:     record.tieBreak,
		TieBreakCandidateIDs: append([]string(nil), record.tieBreakIDs...),
		WinnerID:             record.winnerID,
		EndedByLeader:        record.endedByLeader,
		WatchPartyURL:        record.watchPartyURL,
		Shortlist:            s.mutualShortlistLocked(record),
		AIWhy:                record.aiWhy,
	}
}

// mutualShortlistLocked returns candidates every member voted yes on.
func (s *Simulator) mutualShortlistLocked(record *sessionRecord) []string {
	if len(record.members) == 0 {
		return nil
	}
	var shortlist []string
	for _, candidate := range record.candidates {
		mutual := true
		for _, participant := range record.members {
			if participant.votes[candidate.WatchlistItemID] != api.WireVoteYes {
				mutual = false
				break
			}
		}
		if mutual {
			shortlist = append(shortlist, candidate.WatchlistItemID)
		}
	}
	return shortlist
}
