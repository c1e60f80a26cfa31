package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/itiky/synclist/model"
	"github.com/itiky/synclist/session"
)

// ErrInvalidToken is returned for missing, malformed, forged or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer issues and verifies HS256 bearer tokens carrying the userId claim.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Issue creates a signed token for userId.
func (i *TokenIssuer) Issue(userId model.UserId) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		session.UserIdClaim: string(userId),
		"iat":               now.Unix(),
		"exp":               now.Add(i.ttl).Unix(),
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("JWT sign: %w", err)
	}

	return signed, nil
}

// Verify checks the token signature / expiration and returns the userId claim.
func (i *TokenIssuer) Verify(tokenStr string) (model.UserId, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userId, _ := claims[session.UserIdClaim].(string)
	if userId == "" {
		return "", fmt.Errorf("%w: %s claim: empty", ErrInvalidToken, session.UserIdClaim)
	}

	return model.UserId(userId), nil
}

// VerifyRequest verifies the request "Authorization: Bearer" header.
func (i *TokenIssuer) VerifyRequest(r *http.Request) (model.UserId, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", fmt.Errorf("%w: no bearer token", ErrInvalidToken)
	}

	return i.Verify(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
}

// NewTokenIssuer creates a new TokenIssuer object.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%s: empty", "secret")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%s: must be GT 0", "ttl")
	}

	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}
