package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultRequestTimeout = 10 * time.Second

var (
	errMissingBaseURL   = errors.New("server base url is required")
	errMissingSessionID = errors.New("session identifier is required")
	noOpLogger          = zap.NewNop()
)

// ClientError wraps a failed session API call with a dotted operation code.
type ClientError struct {
	code       string
	statusCode int
	err        error
}

func (e *ClientError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ClientError) Unwrap() error {
	return e.err
}

func (e *ClientError) Code() string {
	return e.code
}

// StatusCode returns the HTTP status of the failed call, or zero when the
// request never produced a response.
func (e *ClientError) StatusCode() int {
	return e.statusCode
}

const (
	opClientNew     = "api.client.new"
	opJoin          = "api.join"
	opState         = "api.state"
	opVote          = "api.vote"
	opShuffle       = "api.shuffle"
	opEnd           = "api.end"
	opSetWatchParty = "api.set_watch_party"
)

func newClientError(operation, reason string, statusCode int, cause error) error {
	return &ClientError{
		code:       fmt.Sprintf("%s.%s", operation, reason),
		statusCode: statusCode,
		err:        cause,
	}
}

// ClientConfig configures the session API client.
type ClientConfig struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a typed HTTP client for the session server. All mutating calls
// are idempotent from the caller's perspective; retries after failure are
// safe because vote deduplication and cursor clamping happen client-side.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient validates the configuration and constructs a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, newClientError(opClientNew, "missing_base_url", 0, errMissingBaseURL)
	}
	if _, err := url.Parse(base); err != nil {
		return nil, newClientError(opClientNew, "invalid_base_url", 0, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Client{
		baseURL:    base,
		authToken:  strings.TrimSpace(cfg.AuthToken),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// SetAuthToken replaces the bearer token attached to session-bound calls.
// Join returns the token, so a zero-token client can bootstrap itself.
func (c *Client) SetAuthToken(token string) {
	c.authToken = strings.TrimSpace(token)
}

// Join creates a session for the group or joins the group's active one.
func (c *Client) Join(ctx context.Context, request JoinRequest) (JoinResult, error) {
	var result JoinResult
	if strings.TrimSpace(request.GroupID) == "" {
		return JoinResult{}, newClientError(opJoin, "missing_group_id", 0, nil)
	}
	if err := c.do(ctx, opJoin, http.MethodPost, "/sessions", request, &result); err != nil {
		return JoinResult{}, err
	}
	return result, nil
}

// State fetches the authoritative session snapshot.
func (c *Client) State(ctx context.Context, sessionID string) (SessionState, error) {
	var state SessionState
	if strings.TrimSpace(sessionID) == "" {
		return SessionState{}, newClientError(opState, "missing_session_id", 0, errMissingSessionID)
	}
	path := fmt.Sprintf("/sessions/%s", url.PathEscape(sessionID))
	if err := c.do(ctx, opState, http.MethodGet, path, nil, &state); err != nil {
		return SessionState{}, err
	}
	return state, nil
}

// SubmitVote records a two-valued vote for one candidate in the session.
func (c *Client) SubmitVote(ctx context.Context, sessionID, candidateID, vote string) error {
	if strings.TrimSpace(sessionID) == "" {
		return newClientError(opVote, "missing_session_id", 0, errMissingSessionID)
	}
	if vote != WireVoteYes && vote != WireVoteNo {
		return newClientError(opVote, "invalid_vote", 0, fmt.Errorf("unsupported wire vote %q", vote))
	}
	path := fmt.Sprintf("/sessions/%s/votes", url.PathEscape(sessionID))
	payload := votePayload{CandidateID: candidateID, Vote: vote}
	return c.do(ctx, opVote, http.MethodPost, path, payload, nil)
}

// Shuffle requests a server-side tie-break resolution and returns the
// post-resolution session state.
func (c *Client) Shuffle(ctx context.Context, sessionID string) (SessionState, error) {
	var state SessionState
	if strings.TrimSpace(sessionID) == "" {
		return SessionState{}, newClientError(opShuffle, "missing_session_id", 0, errMissingSessionID)
	}
	path := fmt.Sprintf("/sessions/%s/shuffle", url.PathEscape(sessionID))
	if err := c.do(ctx, opShuffle, http.MethodPost, path, nil, &state); err != nil {
		return SessionState{}, err
	}
	return state, nil
}

// End terminates the session on behalf of the group leader.
func (c *Client) End(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return newClientError(opEnd, "missing_session_id", 0, errMissingSessionID)
	}
	path := fmt.Sprintf("/sessions/%s/end", url.PathEscape(sessionID))
	return c.do(ctx, opEnd, http.MethodPost, path, nil, nil)
}

// SetWatchPartyLink stores or clears the shared watch-together link and
// returns the resulting session state.
func (c *Client) SetWatchPartyLink(ctx context.Context, sessionID string, link *string) (SessionState, error) {
	var state SessionState
	if strings.TrimSpace(sessionID) == "" {
		return SessionState{}, newClientError(opSetWatchParty, "missing_session_id", 0, errMissingSessionID)
	}
	path := fmt.Sprintf("/sessions/%s/watch-party", url.PathEscape(sessionID))
	payload := watchPartyPayload{URL: link}
	if err := c.do(ctx, opSetWatchParty, http.MethodPut, path, payload, &state); err != nil {
		return SessionState{}, err
	}
	return state, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return newClientError(operation, "encode_failed", 0, err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return newClientError(operation, "request_build_failed", 0, err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		request.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Debug("session api request failed",
			zap.String("operation", operation),
			zap.String("path", path),
			zap.Error(err))
		return newClientError(operation, "request_failed", 0, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		var serverError errorPayload
		message := response.Status
		if decodeErr := json.NewDecoder(response.Body).Decode(&serverError); decodeErr == nil && serverError.Error != "" {
			message = serverError.Error
		}
		c.logger.Debug("session api rejected request",
			zap.String("operation", operation),
			zap.String("path", path),
			zap.Int("status", response.StatusCode),
			zap.String("message", message))
		return newClientError(operation, "unexpected_status", response.StatusCode, errors.New(message))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return newClientError(operation, "decode_failed", response.StatusCode, err)
	}
	return nil
}
