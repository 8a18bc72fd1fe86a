// Package auth issues and validates the bearer tokens that identify uploaders.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	issuer          = "claims-intake-platform"
	minSecretLength = 32
	revokedPrefix   = "revoked:"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token revoked")
)

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs access tokens with an HMAC secret. When a Redis client is set,
// revoked token ids are kept there until the token would have expired.
type Tokens struct {
	secret []byte
	rdb    redis.Cmdable
	now    func() time.Time
}

func NewTokens(secret string, rdb redis.Cmdable) (*Tokens, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("ACCESS_SECRET must be at least %d characters", minSecretLength)
	}
	return &Tokens{secret: []byte(secret), rdb: rdb, now: time.Now}, nil
}

// Issue signs a token for userID valid for ttl
func (t *Tokens) Issue(userID, role string, ttl time.Duration) (string, *Claims, error) {
	now := t.now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Validate parses tokenString and checks its signature, expiry and revocation
func (t *Tokens) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if t.rdb != nil && claims.ID != "" {
		exists, err := t.rdb.Exists(ctx, revokedPrefix+claims.ID).Result()
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if exists == 1 {
			return nil, ErrRevokedToken
		}
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

// Revoke marks the token id as revoked until expiresAt
func (t *Tokens) Revoke(ctx context.Context, claims *Claims) error {
	if t.rdb == nil {
		return errors.New("token revocation requires redis")
	}
	ttl := time.Hour
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return t.rdb.Set(ctx, revokedPrefix+claims.ID, claims.UserID, ttl).Err()
}
