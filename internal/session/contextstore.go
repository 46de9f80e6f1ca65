package session

import (
	"encoding/json"
	"errors"

	"github.com/noelys215/deckparty/internal/storage"
	"go.uber.org/zap"
)

// SessionContext is the cached "why was this dealt" metadata for a session:
// the vibe tags the group picked, the free-text mood summary, and the
// server-supplied rationale.
type SessionContext struct {
	VibeTags    []string `json:"vibe_tags,omitempty"`
	MoodSummary string   `json:"mood_summary,omitempty"`
	Rationale   string   `json:"rationale,omitempty"`
}

var (
	errMissingContextStore = errors.New("persistence store is required")
	contextNoOpLogger      = zap.NewNop()
)

// ContextStore persists per-session explanation metadata, the deal-submitted
// flag, and the per-group active session pointer.
type ContextStore struct {
	store  storage.Store
	logger *zap.Logger
}

// NewContextStore constructs a ContextStore over the persistence port.
func NewContextStore(store storage.Store, logger *zap.Logger) (*ContextStore, error) {
	if store == nil {
		return nil, newEngineError(opContextStoreNew, "missing_store", errMissingContextStore)
	}
	if logger == nil {
		logger = contextNoOpLogger
	}
	return &ContextStore{store: store, logger: logger}, nil
}

func contextKey(sessionID string) string {
	return "session_context:" + sessionID
}

func dealSubmittedKey(sessionID string) string {
	return "deal_submitted:" + sessionID
}

func activeSessionKey(groupID string) string {
	return "active_session:" + groupID
}

// SaveContext persists the session context as JSON.
func (c *ContextStore) SaveContext(sessionID string, sessionContext SessionContext) error {
	encoded, err := json.Marshal(sessionContext)
	if err != nil {
		return newEngineError(opContextSave, "encode_failed", err)
	}
	if err := c.store.Set(contextKey(sessionID), string(encoded)); err != nil {
		return newEngineError(opContextSave, "write_failed", err)
	}
	return nil
}

// LoadContext restores the session context. Corrupt entries are discarded
// and reported as absent.
func (c *ContextStore) LoadContext(sessionID string) (SessionContext, bool) {
	raw, err := c.store.Get(contextKey(sessionID))
	if err != nil {
		return SessionContext{}, false
	}
	var sessionContext SessionContext
	if err := json.Unmarshal([]byte(raw), &sessionContext); err != nil {
		c.logger.Warn("discarding corrupt persisted session context",
			zap.String("session_id", sessionID),
			zap.Error(err))
		if removeErr := c.store.Remove(contextKey(sessionID)); removeErr != nil {
			c.logger.Warn("failed to remove corrupt session context", zap.Error(removeErr))
		}
		return SessionContext{}, false
	}
	return sessionContext, true
}

// MarkDealSubmitted records that the vibe-selection step finished for the
// session, gating the UI to the deck from then on.
func (c *ContextStore) MarkDealSubmitted(sessionID string) error {
	return c.store.Set(dealSubmittedKey(sessionID), "1")
}

// DealSubmitted reports whether the vibe-selection step already ran.
func (c *ContextStore) DealSubmitted(sessionID string) bool {
	value, err := c.store.Get(dealSubmittedKey(sessionID))
	return err == nil && value == "1"
}

// SetActiveSession records the group's active session pointer.
func (c *ContextStore) SetActiveSession(groupID, sessionID string) error {
	return c.store.Set(activeSessionKey(groupID), sessionID)
}

// ActiveSession returns the persisted active session pointer for the group.
func (c *ContextStore) ActiveSession(groupID string) (string, bool) {
	value, err := c.store.Get(activeSessionKey(groupID))
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}

// ClearActiveSession drops the pointer. Called on the leader-ended terminal
// transition.
func (c *ContextStore) ClearActiveSession(groupID string) error {
	return c.store.Remove(activeSessionKey(groupID))
}
