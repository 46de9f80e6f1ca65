package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/noelys215/deckparty/internal/api"
	"github.com/noelys215/deckparty/internal/deck"
	"github.com/noelys215/deckparty/internal/storage"
	"go.uber.org/zap"
)

const defaultSwipeThreshold = 120

var (
	errMissingAPI       = errors.New("session api client is required")
	errMissingStore     = errors.New("persistence store is required")
	errMissingSessionID = errors.New("session identifier is required")
	syncNoOpLogger      = zap.NewNop()
)

// SessionAPI is the server boundary consumed by the synchronizer.
type SessionAPI interface {
	State(ctx context.Context, sessionID string) (api.SessionState, error)
	SubmitVote(ctx context.Context, sessionID, candidateID, vote string) error
	Shuffle(ctx context.Context, sessionID string) (api.SessionState, error)
	SetWatchPartyLink(ctx context.Context, sessionID string, link *string) (api.SessionState, error)
	End(ctx context.Context, sessionID string) error
}

// SynchronizerConfig wires the synchronizer's collaborators.
type SynchronizerConfig struct {
	API            SessionAPI
	Store          storage.Store
	GroupID        string
	SessionID      string
	IsLeader       bool
	SwipeThreshold float64
	Sequencer      *deck.Sequencer
	Clock          func() time.Time
	Logger         *zap.Logger
	// AuthSignal carries cross-tab "authentication succeeded" broadcasts.
	// The loop drains it as background noise; it never affects polling.
	AuthSignal <-chan struct{}
}

// Synchronizer tracks the authoritative server session: it polls at an
// adaptive cadence, reconciles each snapshot against local optimistic state,
// and exposes the deck cursor, vote ledger, and animation sequencer to the
// swipe surface. Snapshot application is last-writer-wins keyed strictly off
// server-reported round and status, so out-of-order poll arrivals cannot
// desynchronize the phase.
type Synchronizer struct {
	mu        sync.Mutex
	apiClient SessionAPI
	sessionID string
	groupID   string
	isLeader  bool
	threshold float64

	ledger    *Ledger
	cursors   *CursorStore
	contexts  *ContextStore
	sequencer *deck.Sequencer

	snap        Snapshot
	hasSnapshot bool
	syncedAt    time.Time
	phase       Phase
	round       int
	cursor      int
	winnerID    string
	terminated  bool

	pollNow    chan struct{}
	authSignal <-chan struct{}
	clock      func() time.Time
	logger     *zap.Logger
}

// NewSynchronizer validates the configuration and builds a synchronizer
// bound to one session id. It performs no network calls; Run starts the
// polling loop.
func NewSynchronizer(cfg SynchronizerConfig) (*Synchronizer, error) {
	if cfg.API == nil {
		return nil, newEngineError(opSynchronizerNew, "missing_api", errMissingAPI)
	}
	if cfg.Store == nil {
		return nil, newEngineError(opSynchronizerNew, "missing_store", errMissingStore)
	}
	if strings.TrimSpace(cfg.SessionID) == "" {
		return nil, newEngineError(opSynchronizerNew, "missing_session_id", errMissingSessionID)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = syncNoOpLogger
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	threshold := cfg.SwipeThreshold
	if threshold <= 0 {
		threshold = defaultSwipeThreshold
	}
	sequencer := cfg.Sequencer
	if sequencer == nil {
		sequencer = deck.NewSequencer(deck.SequencerConfig{Logger: logger})
	}

	ledger, err := NewLedger(LedgerConfig{
		SessionID: cfg.SessionID,
		Submitter: cfg.API,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	cursors, err := NewCursorStore(cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	contexts, err := NewContextStore(cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	return &Synchronizer{
		apiClient:  cfg.API,
		sessionID:  cfg.SessionID,
		groupID:    cfg.GroupID,
		isLeader:   cfg.IsLeader,
		threshold:  threshold,
		ledger:     ledger,
		cursors:    cursors,
		contexts:   contexts,
		sequencer:  sequencer,
		cursor:     cursorExhausted,
		pollNow:    make(chan struct{}, 1),
		authSignal: cfg.AuthSignal,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Run polls until the cadence policy stops or the context is cancelled.
// Teardown resets the sequencer so no timed beat outlives the loop.
func (s *Synchronizer) Run(ctx context.Context) error {
	if s.authSignal != nil {
		go s.drainAuthSignal(ctx)
	}

	for {
		s.pollOnce(ctx)

		interval, keepPolling := s.nextInterval()
		if !keepPolling {
			s.logger.Info("session polling stopped",
				zap.String("session_id", s.sessionID),
				zap.String("phase", string(s.Phase())))
			return nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.sequencer.Reset()
			return ctx.Err()
		case <-timer.C:
		case <-s.pollNow:
			timer.Stop()
		}
	}
}

// pollOnce fetches and applies one snapshot. Failures leave the previous
// snapshot in place; the loop re-polls on the same cadence.
func (s *Synchronizer) pollOnce(ctx context.Context) {
	state, err := s.apiClient.State(ctx, s.sessionID)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Debug("session poll failed, keeping stale snapshot",
				zap.String("operation", opSync),
				zap.String("session_id", s.sessionID),
				zap.Error(err))
		}
		return
	}
	s.Apply(state)
}

// Apply reconciles a server snapshot against local state. It is the single
// entry point for poll responses and adopted shuffle results. Responses for
// other sessions and anything arriving after the leader-ended terminal
// transition are ignored.
func (s *Synchronizer) Apply(state api.SessionState) {
	snap := NewSnapshot(state)
	if snap.SessionID == "" {
		snap.SessionID = s.sessionID
	}

	s.mu.Lock()
	if s.terminated || snap.SessionID != s.sessionID {
		s.mu.Unlock()
		return
	}

	if snap.Status == StatusComplete && snap.EndedByLeader {
		s.terminateLocked()
		s.mu.Unlock()
		return
	}

	roundChanged := s.hasSnapshot && snap.Round != s.round
	firstObservation := !s.hasSnapshot
	if roundChanged {
		s.ledger.Reset()
	}

	if snap.WinnerID != "" {
		s.winnerID = snap.WinnerID
	}

	phase := DerivePhase(snap)
	s.phase = phase
	s.round = snap.Round
	s.snap = snap
	s.hasSnapshot = true
	s.syncedAt = s.clock()

	if roundChanged {
		// A new round starts at the top of its stack; whatever the store
		// holds for this (session, round) key predates the deal.
		s.cursor = s.cursors.Save(snap.SessionID, snap.Round, len(snap.Cards)-1, len(snap.Cards))
		s.sequencer.Reset()
	} else {
		s.cursor = s.cursors.Resolve(snap, phase)
	}
	s.mu.Unlock()

	if (roundChanged || firstObservation) && len(snap.Cards) > 0 && s.sequencer.Phase() == deck.PhaseIdle {
		if done, err := s.sequencer.Deal(context.Background()); err == nil {
			go func() { <-done }()
		}
	}

	s.logger.Debug("session snapshot applied",
		zap.String("session_id", snap.SessionID),
		zap.Int("round", snap.Round),
		zap.String("phase", string(phase)),
		zap.Bool("round_changed", roundChanged))
}

// terminateLocked performs the one-way leader-ended transition: the active
// session pointer is cleared, the deck is emptied, and no further
// session-bound requests are made.
func (s *Synchronizer) terminateLocked() {
	if s.groupID != "" {
		if err := s.contexts.ClearActiveSession(s.groupID); err != nil {
			s.logger.Warn("failed to clear active session pointer",
				zap.String("group_id", s.groupID),
				zap.Error(err))
		}
	}
	s.terminated = true
	s.phase = PhaseEndedByLeader
	s.snap.Status = StatusComplete
	s.snap.EndedByLeader = true
	s.snap.Cards = nil
	s.cursor = cursorExhausted
	s.hasSnapshot = true
	s.sequencer.Reset()
	s.logger.Info("session ended by leader",
		zap.String("session_id", s.sessionID))
}

func (s *Synchronizer) nextInterval() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return 0, false
	}
	if !s.hasSnapshot {
		return intervalCollecting, true
	}
	return PollInterval(s.snap)
}

// requestPoll schedules an immediate re-fetch without blocking.
func (s *Synchronizer) requestPoll() {
	select {
	case s.pollNow <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) drainAuthSignal(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, open := <-s.authSignal:
			if !open {
				return
			}
		}
	}
}

// Snapshot returns the latest applied snapshot.
func (s *Synchronizer) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.hasSnapshot
}

// LastSyncedAt reports when the latest snapshot was applied; zero until the
// first one lands.
func (s *Synchronizer) LastSyncedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncedAt
}

// Phase returns the derived logical session phase.
func (s *Synchronizer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Round returns the last observed round number.
func (s *Synchronizer) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// Cursor returns the current deck cursor, -1 when the deck is exhausted.
func (s *Synchronizer) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// WinnerID returns the cached winner, empty until one arrives.
func (s *Synchronizer) WinnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winnerID
}

// Terminated reports whether the leader-ended terminal transition fired.
func (s *Synchronizer) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Sequencer exposes the deck animation driver for the presentation layer.
func (s *Synchronizer) Sequencer() *deck.Sequencer {
	return s.sequencer
}

// CurrentCard returns the card under the cursor, if the deck has one left.
func (s *Synchronizer) CurrentCard() (Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor < 0 || s.cursor >= len(s.snap.Cards) {
		return Card{}, false
	}
	return s.snap.Cards[s.cursor], true
}

// SubmitVote records and forwards a vote for the candidate in the current
// round. The local vote stands even when the network call fails; a failure
// triggers an immediate re-fetch so authoritative state overrides stale
// assumptions.
func (s *Synchronizer) SubmitVote(ctx context.Context, candidateID string, vote Vote) (bool, error) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return false, nil
	}
	round := s.round
	s.mu.Unlock()

	submitted, err := s.ledger.Submit(ctx, round, candidateID, vote)
	if err != nil {
		s.requestPoll()
	}
	return submitted, err
}

// Swipe interprets a release gesture against the current card: right is yes,
// left is no, up is maybe. A decisive swipe advances the cursor so the card
// is never re-presented, even when it was already voted on.
func (s *Synchronizer) Swipe(ctx context.Context, offset deck.Offset) (deck.Direction, error) {
	direction := deck.Interpret(offset, s.threshold)
	if direction == deck.DirectionNone {
		return direction, nil
	}

	card, ok := s.CurrentCard()
	if !ok {
		return deck.DirectionNone, nil
	}

	var vote Vote
	switch direction {
	case deck.DirectionRight:
		vote = VoteYes
	case deck.DirectionLeft:
		vote = VoteNo
	case deck.DirectionUp:
		vote = VoteMaybe
	}

	_, err := s.SubmitVote(ctx, card.ID, vote)
	s.advanceCursor()
	return direction, err
}

func (s *Synchronizer) advanceCursor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor <= cursorExhausted {
		return
	}
	s.cursor = s.cursors.Save(s.snap.SessionID, s.round, s.cursor-1, len(s.snap.Cards))
}

// ShortlistCards derives the cards still in contention for the winner.
func (s *Synchronizer) ShortlistCards() []Card {
	s.mu.Lock()
	snap := s.snap
	round := s.round
	s.mu.Unlock()
	return ComputeShortlist(snap, s.ledger.VotesForRound(round))
}

// Votes returns the local three-valued votes for the current round.
func (s *Synchronizer) Votes() map[string]Vote {
	s.mu.Lock()
	round := s.round
	s.mu.Unlock()
	return s.ledger.VotesForRound(round)
}

// Contexts exposes the session context store for the vibe-selection surface.
func (s *Synchronizer) Contexts() *ContextStore {
	return s.contexts
}

// SetWatchPartyLink stores or clears the shared link and applies the
// resulting state. Failures surface as inline errors; the deck state machine
// is not interrupted.
func (s *Synchronizer) SetWatchPartyLink(ctx context.Context, link *string) error {
	if s.Terminated() {
		return nil
	}
	state, err := s.apiClient.SetWatchPartyLink(ctx, s.sessionID, link)
	if err != nil {
		return newEngineError(opWatchParty, "request_failed", err)
	}
	s.Apply(state)
	return nil
}

// EndSession terminates the session on behalf of the leader and re-fetches
// so the terminal transition is observed through the normal path.
func (s *Synchronizer) EndSession(ctx context.Context) error {
	if !s.isLeader || s.Terminated() {
		return nil
	}
	if err := s.apiClient.End(ctx, s.sessionID); err != nil {
		return newEngineError(opEnd, "request_failed", err)
	}
	s.requestPoll()
	return nil
}
