package simulator

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 12 * time.Hour

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingMemberID      = errors.New("member identifier must be provided")
	errMissingTokenSession  = errors.New("session identifier must be provided")
	errInvalidMemberToken   = errors.New("member token is invalid")
)

// memberClaims binds a bearer token to one member of one session.
type memberClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures the simulator's HS256 token issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer issues and validates the bearer tokens handed out on join.
type TokenIssuer struct {
	config TokenIssuerConfig
	clock  func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with sane defaults.
func NewTokenIssuer(cfg TokenIssuerConfig) *TokenIssuer {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "deckparty-simulator"
	}
	return &TokenIssuer{
		config: TokenIssuerConfig{
			SigningSecret: cfg.SigningSecret,
			Issuer:        issuer,
			TokenTTL:      ttl,
			Clock:         clock,
		},
		clock: clock,
	}
}

// IssueMemberToken produces a signed token for the member within the session.
func (i *TokenIssuer) IssueMemberToken(memberID, sessionID string) (string, error) {
	if len(i.config.SigningSecret) == 0 {
		return "", errMissingSigningSecret
	}
	if memberID == "" {
		return "", errMissingMemberID
	}
	if sessionID == "" {
		return "", errMissingTokenSession
	}

	now := i.clock().UTC()
	claims := memberClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			Issuer:    i.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.config.SigningSecret)
}

// ValidateMemberToken checks the token and returns the member and session it
// was issued for.
func (i *TokenIssuer) ValidateMemberToken(tokenString string) (memberID, sessionID string, err error) {
	if len(i.config.SigningSecret) == 0 {
		return "", "", errMissingSigningSecret
	}

	claims := &memberClaims{}
	_, err = jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return i.config.SigningSecret, nil
		},
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		return "", "", err
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return "", "", errInvalidMemberToken
	}
	return claims.Subject, claims.SessionID, nil
}
