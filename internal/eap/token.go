package eap

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/agent-orchestrator/internal/apperrors"
)

// AgentClaims are the registered JWT claims issued to an external agent at
// registration, carried back on every X-Agent-Token header the
// orchestrator receives. golang-jwt/jwt/v5 replaces the teacher's
// deprecated dgrijalva/jwt-go dependency with a maintained fork of the same
// ecosystem concern.
type AgentClaims struct {
	jwt.RegisteredClaims
	AgentID  string `json:"agent_id"`
	TenantID string `json:"tenant_id"`
}

// TokenIssuer signs and verifies agent auth tokens with a single HMAC
// secret. One TokenIssuer is typically constructed per process from
// configuration.
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer builds a TokenIssuer over the given HMAC signing secret.
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// Issue signs a token carrying agentID and tenantID, valid for ttl.
func (t *TokenIssuer) Issue(agentID, tenantID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := AgentClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   agentID,
		},
		AgentID:  agentID,
		TenantID: tenantID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", apperrors.Internal("sign agent token", err)
	}
	return signed, nil
}

// Verify parses and validates tokenString, returning its claims. Expired,
// malformed, or mis-signed tokens return apperrors.Unauthorized.
func (t *TokenIssuer) Verify(tokenString string) (*AgentClaims, error) {
	claims := &AgentClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.Unauthorized("unexpected agent token signing method")
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthorized("invalid or expired agent token")
	}
	if claims.AgentID == "" || claims.TenantID == "" {
		return nil, apperrors.Unauthorized("agent token missing required claims")
	}
	return claims, nil
}
