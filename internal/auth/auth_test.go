package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens, err := NewTokens("test-secret", nil)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	id := uuid.New()
	token, err := tokens.Issue(id)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := tokens.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != id {
		t.Fatalf("subject = %s, want %s", got, id)
	}
}

func TestTokensRejects(t *testing.T) {
	tokens, _ := NewTokens("test-secret", nil)
	other, _ := NewTokens("other-secret", nil)
	id := uuid.New()

	foreign, _ := other.Issue(id)
	if _, err := tokens.Parse(foreign); err != ErrInvalidToken {
		t.Fatalf("foreign signature accepted: %v", err)
	}

	tokens.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, _ := tokens.Issue(id)
	tokens.now = time.Now
	if _, err := tokens.Parse(expired); err != ErrInvalidToken {
		t.Fatalf("expired token accepted: %v", err)
	}

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: id.String()}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := tokens.Parse(none); err != ErrInvalidToken {
		t.Fatalf("unsigned token accepted: %v", err)
	}

	notUUID, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "admin"}).SignedString([]byte("test-secret"))
	if _, err := tokens.Parse(notUUID); err != ErrInvalidToken {
		t.Fatalf("non-uuid subject accepted: %v", err)
	}
}

func TestEphemeralSecret(t *testing.T) {
	a, err := NewTokens("  ", nil)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	b, _ := NewTokens("", nil)
	token, _ := a.Issue(uuid.New())
	if _, err := b.Parse(token); err == nil {
		t.Fatal("two ephemeral secrets should differ")
	}
}

func TestMiddleware(t *testing.T) {
	tokens, _ := NewTokens("test-secret", nil)
	id := uuid.New()
	valid, _ := tokens.Issue(id)

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{name: "missing", header: "", code: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", code: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc", code: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + valid, code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/", func(c echo.Context) error {
				got, err := GetOperatorIDFromContext(c)
				if err != nil || got != id {
					t.Errorf("operator id = %s, %v", got, err)
				}
				return c.NoContent(http.StatusOK)
			}, Middleware(tokens))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
		})
	}
}

func TestAdminSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		headers map[string]string
		code    int
	}{
		{name: "header", secret: "s3cret", headers: map[string]string{"X-Admin-Secret": "s3cret"}, code: http.StatusOK},
		{name: "bearer", secret: "s3cret", headers: map[string]string{"Authorization": "bearer s3cret"}, code: http.StatusOK},
		{name: "wrong", secret: "s3cret", headers: map[string]string{"X-Admin-Secret": "nope"}, code: http.StatusUnauthorized},
		{name: "unset secret rejects empty header", secret: "", headers: map[string]string{"X-Admin-Secret": ""}, code: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.POST("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, AdminSecret(tt.secret))
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
		})
	}
}

func TestSignupRequestNormalize(t *testing.T) {
	req := SignupRequest{Email: "  Ops@Example.COM ", Password: "longenough"}
	if err := req.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if req.Email != "ops@example.com" {
		t.Fatalf("email = %q", req.Email)
	}
	for _, bad := range []SignupRequest{{Email: "not-an-email", Password: "longenough"}, {Email: "a@b.co", Password: "short"}} {
		if err := bad.Normalize(); err != ErrInvalidRequest {
			t.Errorf("Normalize(%+v) = %v, want ErrInvalidRequest", bad, err)
		}
	}
}
