package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ActorClaims are the JWT claims carried by an actor token.
type ActorClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Role Role   `json:"role"`
}

// TokenManager signs and validates actor tokens with a registry-held
// Ed25519 key. This authenticates callers to the core; it is unrelated to
// the per-event signing keys used for sealing records.
type TokenManager struct {
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
	issuer string
}

// NewTokenManager creates a manager with a freshly generated signing key.
func NewTokenManager(issuer string) (*TokenManager, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: token key generation failed: %w", err)
	}
	return &TokenManager{priv: priv, pub: pub, issuer: issuer}, nil
}

// GenerateToken creates a signed token for an actor.
func (tm *TokenManager) GenerateToken(actor Actor, ttl time.Duration) (string, error) {
	if err := actor.Validate(); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: actor.Name,
		Role: actor.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(tm.priv)
	if err != nil {
		return "", fmt.Errorf("identity: token signing failed: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a token string back into an Actor.
func (tm *TokenManager) ValidateToken(tokenString string) (Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("identity: unexpected signing method %s", t.Method.Alg())
		}
		return tm.pub, nil
	}, jwt.WithIssuer(tm.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Actor{}, fmt.Errorf("identity: token validation failed: %w", err)
	}
	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid {
		return Actor{}, jwt.ErrTokenSignatureInvalid
	}
	actor := Actor{ID: claims.Subject, Name: claims.Name, Role: claims.Role}
	if err := actor.Validate(); err != nil {
		return Actor{}, err
	}
	return actor, nil
}
