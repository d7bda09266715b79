// Package auth resolves bearer tokens issued by the identity service to local users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"keeper/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenParser validates HMAC-signed tokens whose subject is the username.
type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret)}
}

// Username validates the token and returns its subject. A "Bearer " prefix is tolerated.
func (p *TokenParser) Username(token string) (string, error) {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = token[7:]
	}
	if token == "" {
		return "", ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Issue signs a token for username. Used by tooling and tests; production tokens come from the identity service.
func (p *TokenParser) Issue(username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (models.User, error)
}

// Resolver turns a token into the acting user.
type Resolver struct {
	tokens *TokenParser
	users  UserLookup
}

func NewResolver(tokens *TokenParser, users UserLookup) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

func (r *Resolver) Resolve(ctx context.Context, token string) (models.User, error) {
	username, err := r.tokens.Username(token)
	if err != nil {
		return models.User{}, err
	}
	user, err := r.users.GetByUsername(ctx, username)
	if err != nil {
		return models.User{}, fmt.Errorf("resolve %s: %w", username, err)
	}
	return user, nil
}
