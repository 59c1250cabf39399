package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const tokenTTL = 24 * time.Hour

// Tokens issues and verifies HS256 operator tokens.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// NewTokens uses secret, or an ephemeral random secret when it is empty.
// Tokens signed with an ephemeral secret do not survive a restart.
func NewTokens(secret string, log *zap.Logger) (*Tokens, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		generated, err := RandomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT fallback secret: %w", err)
		}
		if log != nil {
			log.Warn("jwt secret is not set; using ephemeral in-memory fallback secret")
		}
		secret = generated
	}
	return &Tokens{secret: []byte(secret), now: time.Now}, nil
}

// RandomSecret returns 48 random bytes, URL-safe encoded.
func RandomSecret() (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (t *Tokens) Issue(operatorID uuid.UUID) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   operatorID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies the token and returns the operator ID it was issued for.
func (t *Tokens) Parse(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
