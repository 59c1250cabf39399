package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const OperatorIDKey contextKey = "operator_id"

// Middleware validates the bearer token and stores the operator ID in the
// echo context.
func Middleware(tokens *Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
			}

			operatorID, err := tokens.Parse(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(string(OperatorIDKey), operatorID)
			return next(c)
		}
	}
}

// GetOperatorIDFromContext returns the ID stored by Middleware.
func GetOperatorIDFromContext(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(string(OperatorIDKey)).(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("operator ID not found in context")
	}
	return id, nil
}

// AdminSecret accepts requests carrying secret in X-Admin-Secret or as a
// bearer token.
func AdminSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret != "" {
				if equalSecret(c.Request().Header.Get("X-Admin-Secret"), secret) {
					return next(c)
				}
				authHeader := c.Request().Header.Get("Authorization")
				if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") && equalSecret(authHeader[7:], secret) {
					return next(c)
				}
			}
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
		}
	}
}

func equalSecret(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
