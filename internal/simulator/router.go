package simulator

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/noelys215/deckparty/internal/api"
	"go.uber.org/zap"
)

const (
	memberIDContextKey  = "deckparty_member_id"
	sessionIDContextKey = "deckparty_session_id"
)

var errMissingSimulator = errors.New("simulator dependency required")

// Dependencies wires the HTTP surface of the reference server.
type Dependencies struct {
	Simulator *Simulator
	Logger    *zap.Logger
}

// NewHTTPHandler builds the gin router serving the session API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Simulator == nil {
		return nil, errMissingSimulator
	}
	logger := deps.Logger
	if logger == nil {
		logger = noOpLogger
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{simulator: deps.Simulator, logger: logger}

	router.POST("/sessions", handler.handleJoin)

	protected := router.Group("/sessions/:id")
	protected.Use(handler.authorizeRequest)
	protected.GET("", handler.handleState)
	protected.POST("/votes", handler.handleVote)
	protected.POST("/shuffle", handler.handleShuffle)
	protected.POST("/end", handler.handleEnd)
	protected.PUT("/watch-party", handler.handleWatchParty)

	return router, nil
}

type httpHandler struct {
	simulator *Simulator
	logger    *zap.Logger
}

func (h *httpHandler) handleJoin(c *gin.Context) {
	var request api.JoinRequest
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.GroupID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result, err := h.simulator.Join(request)
	if err != nil {
		h.logger.Warn("join failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "join_failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	memberID, sessionID, err := h.simulator.Tokens().ValidateMemberToken(strings.TrimSpace(token))
	if err != nil {
		h.logger.Warn("member token rejected", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if c.Param("id") != sessionID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "session_mismatch"})
		return
	}

	c.Set(memberIDContextKey, memberID)
	c.Set(sessionIDContextKey, sessionID)
	c.Next()
}

func (h *httpHandler) identity(c *gin.Context) (memberID, sessionID string) {
	return c.GetString(memberIDContextKey), c.GetString(sessionIDContextKey)
}

func (h *httpHandler) handleState(c *gin.Context) {
	memberID, sessionID := h.identity(c)
	state, err := h.simulator.State(sessionID, memberID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type votePayload struct {
	CandidateID string `json:"watchlist_item_id"`
	Vote        string `json:"vote"`
}

func (h *httpHandler) handleVote(c *gin.Context) {
	var payload votePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if payload.Vote != api.WireVoteYes && payload.Vote != api.WireVoteNo {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_vote"})
		return
	}

	memberID, sessionID := h.identity(c)
	state, err := h.simulator.Vote(sessionID, memberID, payload.CandidateID, payload.Vote)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *httpHandler) handleShuffle(c *gin.Context) {
	memberID, sessionID := h.identity(c)
	state, err := h.simulator.Shuffle(sessionID, memberID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *httpHandler) handleEnd(c *gin.Context) {
	memberID, sessionID := h.identity(c)
	if err := h.simulator.End(sessionID, memberID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type watchPartyPayload struct {
	URL *string `json:"url"`
}

func (h *httpHandler) handleWatchParty(c *gin.Context) {
	var payload watchPartyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	memberID, sessionID := h.identity(c)
	state, err := h.simulator.SetWatchPartyLink(sessionID, memberID, payload.URL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
	case errors.Is(err, ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not_a_member"})
	case errors.Is(err, ErrNotLeader):
		c.JSON(http.StatusForbidden, gin.H{"error": "leader_required"})
	case errors.Is(err, ErrSessionComplete):
		c.JSON(http.StatusConflict, gin.H{"error": "session_complete"})
	case errors.Is(err, ErrNoTieBreak):
		c.JSON(http.StatusConflict, gin.H{"error": "no_tie_break"})
	case errors.Is(err, ErrUnknownCandidate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_candidate"})
	default:
		h.logger.Error("simulator request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
