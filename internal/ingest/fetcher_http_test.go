package ingest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestIsPrivateIP(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1":       true,
		"10.1.2.3":        true,
		"192.168.0.10":    true,
		"169.254.169.254": true,
		"::1":             true,
		"0.0.0.0":         true,
		"8.8.8.8":         false,
		"211.234.100.1":   false,
	}
	for in, want := range tests {
		if got := isPrivateIP(net.ParseIP(in)); got != want {
			t.Errorf("isPrivateIP(%s) = %v, want %v", in, got, want)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "timeout" }
func (timeoutErr) Timeout() bool { return true }

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   bool
	}{
		{"timeout", timeoutErr{}, 0, true},
		{"other error", errors.New("boom"), 0, false},
		{"rate limited", nil, http.StatusTooManyRequests, true},
		{"unavailable", nil, http.StatusServiceUnavailable, true},
		{"not found", nil, http.StatusNotFound, false},
		{"ok", nil, http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.err, tt.status); got != tt.want {
				t.Fatalf("shouldRetry = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFetcherRefusesLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secret"))
	}))
	defer srv.Close()

	f := NewRateLimitedFetcher(FetchConfig{RateLimitRPS: 50, MaxRetries: 1, TimeoutSeconds: 2}, zap.NewNop())
	defer f.Close()

	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected loopback fetch to be refused")
	}
	if _, err := f.Fetch(context.Background(), "ftp://example.com/file"); err == nil {
		t.Fatal("expected unsupported scheme to be refused")
	}
}

func TestMergeFetchConfig(t *testing.T) {
	f := NewRateLimitedFetcher(FetchConfig{RateLimitRPS: 2}, nil)
	defer f.Close()
	if f.defaults.TimeoutSeconds != 30 || f.defaults.MaxRetries != 3 || f.defaults.RateLimitRPS != 2 {
		t.Fatalf("defaults = %+v", f.defaults)
	}

	f.Configure("https://apis.data.go.kr/B552735/kisedKstartupService", FetchConfig{RateLimitRPS: 0.5, TimeoutSeconds: 60})
	got := f.overrides["apis.data.go.kr"]
	if got.RateLimitRPS != 0.5 || got.TimeoutSeconds != 60 || got.MaxRetries != 3 || got.AcceptLanguage == "" {
		t.Fatalf("override = %+v", got)
	}

	f.Configure("::not a url", FetchConfig{})
	if len(f.overrides) != 1 {
		t.Fatalf("bad url registered: %v", f.overrides)
	}
}

func TestBackoffGrows(t *testing.T) {
	for attempt, floor := range map[int]time.Duration{1: 500 * time.Millisecond, 2: time.Second, 3: 2 * time.Second} {
		got := backoff(attempt)
		if got < floor || got >= floor+100*time.Millisecond {
			t.Errorf("backoff(%d) = %v, want [%v, %v)", attempt, got, floor, floor+100*time.Millisecond)
		}
	}
}
