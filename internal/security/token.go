package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/deploykit/manager/internal/config"
	"github.com/deploykit/manager/internal/model"
)

// DefaultTokenTTL is used when expires_in_seconds is not configured.
const DefaultTokenTTL = 600 * time.Second

// Token is an issued session token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenGenerator issues and verifies HS256 session tokens. It keeps no
// state beyond its secret: a token is valid iff its signature verifies and
// the current time is before issued-at plus the configured lifetime.
type TokenGenerator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenGenerator creates a generator. A nil clock means time.Now.
func NewTokenGenerator(secret string, ttl time.Duration, now func() time.Time) (*TokenGenerator, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: token secret_key is required", ErrMissingCredential)
	}
	if config.HasEnvRef(secret) {
		return nil, fmt.Errorf("%w: token secret_key references an unset variable", ErrMissingCredential)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenGenerator{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// TTL returns the lifetime of issued tokens.
func (g *TokenGenerator) TTL() time.Duration {
	return g.ttl
}

// Issue creates a signed token for the identity.
func (g *TokenGenerator) Issue(identity *model.Identity) (Token, error) {
	if identity == nil || identity.Username == "" {
		return Token{}, errors.New("issue token: identity has no username")
	}
	now := g.now()
	claims := tokenClaims{
		Username: identity.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	value, err := token.SignedString(g.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: value, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks a token and returns the username it was issued for.
func (g *TokenGenerator) Verify(value string) (string, error) {
	claims := &tokenClaims{}

	token, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}

	if !token.Valid || claims.Username == "" {
		return "", ErrTokenInvalid
	}
	return claims.Username, nil
}

type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}
