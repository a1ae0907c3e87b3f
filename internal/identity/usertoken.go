package identity

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/civicworks/fixline/internal/reports/model"
)

// SessionClaims are the JWT claims for a user session token. Role and
// Department are embedded so request handling never needs a user lookup to
// build the acting identity.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

// Actor converts the claims into the actor identity consumed by the report
// lifecycle engine.
func (c *SessionClaims) Actor() (model.Actor, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return model.Actor{}, fmt.Errorf("invalid user id in token: %w", err)
	}
	return model.Actor{
		ID:         id,
		Name:       c.Name,
		Role:       model.Role(c.Role),
		Department: model.Department(c.Department),
	}, nil
}

// SessionIssuer issues and verifies user session JWTs using the server's RSA
// signing key.
type SessionIssuer struct {
	key    *rsa.PrivateKey
	pub    *rsa.PublicKey
	issuer string
	ttl    time.Duration
}

// NewSessionIssuer creates a SessionIssuer.
//
//	issuerURL — The "iss" claim value; matches the server's base URL.
//	ttl       — Token lifetime (default: 24 hours).
func NewSessionIssuer(key *rsa.PrivateKey, issuerURL string, ttl time.Duration) *SessionIssuer {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &SessionIssuer{
		key:    key,
		pub:    &key.PublicKey,
		issuer: issuerURL,
		ttl:    ttl,
	}
}

// Issue creates a signed session token for the given account.
func (s *SessionIssuer) Issue(userID uuid.UUID, email, name string, role model.Role, dept model.Department) (string, error) {
	now := time.Now().UTC()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.New().String(),
		},
		UserID:     userID.String(),
		Email:      email,
		Name:       name,
		Role:       string(role),
		Department: string(dept),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (s *SessionIssuer) Verify(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&SessionClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return s.pub, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify session token: %w", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token claims")
	}
	if !model.Role(claims.Role).Valid() {
		return nil, fmt.Errorf("session token carries unknown role %q", claims.Role)
	}
	return claims, nil
}
