package session

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/noelys215/deckparty/internal/storage"
	"go.uber.org/zap"
)

// cursorExhausted marks a deck with no card left to present.
const cursorExhausted = -1

var (
	errMissingCursorStore = errors.New("persistence store is required")
	cursorNoOpLogger      = zap.NewNop()
)

// CursorStore persists the deck cursor per (session, round) so swiping
// progress survives process restarts. Keying on the round, not just the
// session, prevents a superseded round from resurrecting its cursor.
type CursorStore struct {
	store  storage.Store
	logger *zap.Logger
}

// NewCursorStore constructs a CursorStore over the persistence port.
func NewCursorStore(store storage.Store, logger *zap.Logger) (*CursorStore, error) {
	if store == nil {
		return nil, newEngineError(opCursorStoreNew, "missing_store", errMissingCursorStore)
	}
	if logger == nil {
		logger = cursorNoOpLogger
	}
	return &CursorStore{store: store, logger: logger}, nil
}

func cursorKey(sessionID string, round int) string {
	return fmt.Sprintf("deck_cursor:%s:%d", sessionID, round)
}

// Load returns the persisted cursor for the pair. Malformed or foreign
// values are treated as unset, never as failure.
func (c *CursorStore) Load(sessionID string, round int) (int, bool) {
	raw, err := c.store.Get(cursorKey(sessionID, round))
	if err != nil {
		return 0, false
	}
	value, parseErr := strconv.Atoi(raw)
	if parseErr != nil {
		c.logger.Warn("discarding malformed persisted cursor",
			zap.String("session_id", sessionID),
			zap.Int("round", round),
			zap.String("value", raw))
		return 0, false
	}
	return value, true
}

// Save writes the cursor back immediately, clamped to the deck bounds.
func (c *CursorStore) Save(sessionID string, round, value, deckLength int) int {
	clamped := clampCursor(value, deckLength)
	if err := c.store.Set(cursorKey(sessionID, round), strconv.Itoa(clamped)); err != nil {
		c.logger.Warn("cursor write failed",
			zap.String("session_id", sessionID),
			zap.Int("round", round),
			zap.Error(err))
	}
	return clamped
}

// Resolve restores the cursor for the snapshot's round, applying the stale
// value policy, and persists the resolved position.
func (c *CursorStore) Resolve(snap Snapshot, phase Phase) int {
	persisted, found := c.Load(snap.SessionID, snap.Round)
	var persistedPtr *int
	if found {
		persistedPtr = &persisted
	}
	resolved := ResolveCursor(persistedPtr, len(snap.Cards), snap.Status, phase, snap.UserLocked, snap.CardIndex(snap.WinnerID))
	return c.Save(snap.SessionID, snap.Round, resolved, len(snap.Cards))
}

// ResolveCursor is the pure resolution policy for a restored cursor:
//   - no persisted value: start at the top of the stack;
//   - persisted -1 on a completed session with a known winner: jump to the
//     winner's index when it is in the deck, otherwise clamp;
//   - persisted -1 on an active swiping session where the user is not locked:
//     the -1 predates the current deal, restart at the top;
//   - anything else: clamp into [-1, length-1].
//
// An empty deck always resolves to -1.
func ResolveCursor(persisted *int, deckLength int, status Status, phase Phase, userLocked bool, winnerIndex int) int {
	if deckLength == 0 {
		return cursorExhausted
	}
	if persisted == nil {
		return deckLength - 1
	}
	if *persisted == cursorExhausted {
		if status == StatusComplete && winnerIndex >= 0 {
			return clampCursor(winnerIndex, deckLength)
		}
		if status == StatusActive && phase == PhaseSwiping && !userLocked {
			return deckLength - 1
		}
	}
	return clampCursor(*persisted, deckLength)
}

func clampCursor(value, deckLength int) int {
	if deckLength == 0 {
		return cursorExhausted
	}
	if value < cursorExhausted {
		return cursorExhausted
	}
	if value > deckLength-1 {
		return deckLength - 1
	}
	return value
}
