// Package auth supplies the reference Authenticator: JWT session
// tokens resolved to store users at connect time, plus password
// hashing and registration validation for account creation.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"privchat/contract"
	"privchat/domain"
	priverr "privchat/errors"
)

// Claims carried inside a session token.
type Claims struct {
	UserPK string `json:"user_pk"`
	jwt.RegisteredClaims
}

// TokenAuthenticator mints and verifies HS256 session tokens and
// resolves the embedded user pk against the store.
type TokenAuthenticator struct {
	secret []byte
	ttl    time.Duration
	store  contract.Store
}

func NewTokenAuthenticator(secret []byte, ttl time.Duration, store contract.Store) *TokenAuthenticator {
	return &TokenAuthenticator{secret: secret, ttl: ttl, store: store}
}

// Mint creates a signed session token for a user.
func (a *TokenAuthenticator) Mint(user *domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserPK: user.PK,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "privchat",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate verifies the token signature and expiry, then resolves
// the user. Any failure means the connection is rejected with the
// distinguished close code; the caller decides that part.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", priverr.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, priverr.ErrInvalidToken
	}
	return a.store.FindUser(ctx, claims.UserPK)
}
