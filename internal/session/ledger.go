package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/noelys215/deckparty/internal/api"
	"go.uber.org/zap"
)

// Vote is the three-valued local vote. It is reduced to the two-valued wire
// form only at submission; the full form is retained for shortlisting.
type Vote string

const (
	VoteYes   Vote = "yes"
	VoteMaybe Vote = "maybe"
	VoteNo    Vote = "no"
)

// Wire reduces the local vote to the backend form: no stays no, everything
// else counts as yes.
func (v Vote) Wire() string {
	if v == VoteNo {
		return api.WireVoteNo
	}
	return api.WireVoteYes
}

var (
	errMissingSubmitter       = errors.New("vote submitter is required")
	errMissingLedgerSessionID = errors.New("session identifier is required")
	ledgerNoOpLogger          = zap.NewNop()
)

// VoteSubmitter forwards a reduced vote to the session server.
type VoteSubmitter interface {
	SubmitVote(ctx context.Context, sessionID, candidateID, vote string) error
}

// LedgerConfig configures a vote ledger bound to one session.
type LedgerConfig struct {
	SessionID string
	Submitter VoteSubmitter
	Logger    *zap.Logger
}

// Ledger records the local member's per-card votes and guarantees at most
// one network submission per (round, candidate) pair. Votes are optimistic:
// a failed submission keeps the local vote, and recovery is the next state
// refetch, not a rollback.
type Ledger struct {
	mu        sync.Mutex
	sessionID string
	submitter VoteSubmitter
	votes     map[string]Vote
	submitted map[string]struct{}
	logger    *zap.Logger
}

// NewLedger validates the configuration and constructs an empty Ledger.
func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if strings.TrimSpace(cfg.SessionID) == "" {
		return nil, newEngineError(opLedgerNew, "missing_session_id", errMissingLedgerSessionID)
	}
	if cfg.Submitter == nil {
		return nil, newEngineError(opLedgerNew, "missing_submitter", errMissingSubmitter)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = ledgerNoOpLogger
	}
	return &Ledger{
		sessionID: cfg.SessionID,
		submitter: cfg.Submitter,
		votes:     make(map[string]Vote),
		submitted: make(map[string]struct{}),
		logger:    logger,
	}, nil
}

func voteKey(round int, candidateID string) string {
	return fmt.Sprintf("%d:%s", round, candidateID)
}

// Submit records the vote and forwards it once. Repeat submissions for the
// same (round, candidate) pair are no-ops reported via submitted=false. The
// dedup marker is placed before the network call so a burst of gesture
// events cannot issue duplicates.
func (l *Ledger) Submit(ctx context.Context, round int, candidateID string, vote Vote) (bool, error) {
	key := voteKey(round, candidateID)

	l.mu.Lock()
	if _, alreadySubmitted := l.submitted[key]; alreadySubmitted {
		l.mu.Unlock()
		return false, nil
	}
	l.submitted[key] = struct{}{}
	l.votes[key] = vote
	l.mu.Unlock()

	if err := l.submitter.SubmitVote(ctx, l.sessionID, candidateID, vote.Wire()); err != nil {
		l.logger.Warn("vote submission failed, keeping optimistic local vote",
			zap.String("operation", opVoteSubmit),
			zap.String("session_id", l.sessionID),
			zap.Int("round", round),
			zap.String("candidate_id", candidateID),
			zap.Error(err))
		return true, newEngineError(opVoteSubmit, "submit_failed", err)
	}
	return true, nil
}

// Vote returns the recorded local vote for the pair, if any.
func (l *Ledger) Vote(round int, candidateID string) (Vote, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	vote, ok := l.votes[voteKey(round, candidateID)]
	return vote, ok
}

// VotesForRound returns candidate id to vote for the given round.
func (l *Ledger) VotesForRound(round int) map[string]Vote {
	prefix := fmt.Sprintf("%d:", round)
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make(map[string]Vote)
	for key, vote := range l.votes {
		if strings.HasPrefix(key, prefix) {
			result[strings.TrimPrefix(key, prefix)] = vote
		}
	}
	return result
}

// Reset clears all votes and the processed set. Called when the round
// advances.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.votes = make(map[string]Vote)
	l.submitted = make(map[string]struct{})
}
