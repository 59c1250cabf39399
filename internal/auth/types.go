package auth

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operator is a staff account that manages client portfolios.
type Operator struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token    string   `json:"token"`
	Operator Operator `json:"operator"`
}

const minPasswordLen = 8

var ErrInvalidRequest = errors.New("invalid email or password")

// Normalize trims and lowercases the email and checks minimal shape.
func (r *SignupRequest) Normalize() error {
	r.Email = normalizeEmail(r.Email)
	if _, err := mail.ParseAddress(r.Email); err != nil || len(r.Password) < minPasswordLen {
		return ErrInvalidRequest
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
