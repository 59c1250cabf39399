package ingest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8"

// Ranges not covered by net.IP's own classification helpers.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// lane is the per-host state: one client, one request ticker.
type lane struct {
	cfg    FetchConfig
	client *http.Client
	tick   *time.Ticker
}

// RateLimitedFetcher serves public government portals politely: requests to
// one host are spaced by the host's rate limit and transient failures are
// retried with backoff. Hosts resolving to private addresses are refused.
type RateLimitedFetcher struct {
	defaults FetchConfig
	log      *zap.Logger

	mu        sync.Mutex
	overrides map[string]FetchConfig
	lanes     map[string]*lane
}

// NewRateLimitedFetcher fills unset fields of defaults with a 30s timeout,
// 3 retries, 1 request per second and a Korean Accept-Language.
func NewRateLimitedFetcher(defaults FetchConfig, log *zap.Logger) *RateLimitedFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimitedFetcher{
		defaults: mergeFetchConfig(defaults, FetchConfig{
			TimeoutSeconds: 30,
			MaxRetries:     3,
			RateLimitRPS:   1,
			AcceptLanguage: "ko-KR,ko;q=0.9,en;q=0.6",
		}),
		log:       log,
		overrides: make(map[string]FetchConfig),
		lanes:     make(map[string]*lane),
	}
}

// mergeFetchConfig returns cfg with zero fields taken from fallback.
func mergeFetchConfig(cfg, fallback FetchConfig) FetchConfig {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = fallback.TimeoutSeconds
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = fallback.MaxRetries
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = fallback.RateLimitRPS
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = fallback.AcceptLanguage
	}
	if cfg.ProxyURL == "" {
		cfg.ProxyURL = fallback.ProxyURL
	}
	return cfg
}

// Configure registers the registry's fetch settings for the host of baseURL.
// It must be called before the first request to that host.
func (f *RateLimitedFetcher) Configure(baseURL string, cfg FetchConfig) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return
	}
	f.mu.Lock()
	f.overrides[u.Host] = mergeFetchConfig(cfg, f.defaults)
	f.mu.Unlock()
}

// Close stops every host ticker.
func (f *RateLimitedFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for host, l := range f.lanes {
		l.tick.Stop()
		delete(f.lanes, host)
	}
}

func (f *RateLimitedFetcher) laneFor(host string) *lane {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.lanes[host]; ok {
		return l
	}

	cfg, ok := f.overrides[host]
	if !ok {
		cfg = f.defaults
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           publicDialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if cfg.ProxyURL != "" {
		if proxy, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxy)
		}
	}

	interval := time.Duration(float64(time.Second) / cfg.RateLimitRPS)
	if interval <= 0 {
		interval = time.Second
	}
	l := &lane{
		cfg: cfg,
		client: &http.Client{
			Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
		tick: time.NewTicker(interval),
	}
	f.lanes[host] = l
	return l
}

func publicDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	if err := requirePublicHost(ctx, host); err != nil {
		return nil, err
	}
	d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return d.DialContext(ctx, network, addr)
}

// requirePublicHost resolves host and fails if any address is internal.
func requirePublicHost(ctx context.Context, host string) error {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".local") {
		return fmt.Errorf("internal host blocked: %s", host)
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return err
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("blocked private IP: %s", ip)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsMulticast() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return true
	}
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("redirect scheme blocked: %s", req.URL.Scheme)
	}
	if req.URL.Hostname() == "" {
		return errors.New("redirect host missing")
	}
	return requirePublicHost(req.Context(), req.URL.Hostname())
}

func shouldRetry(err error, statusCode int) bool {
	if err != nil {
		var timeout interface{ Timeout() bool }
		return errors.As(err, &timeout) && timeout.Timeout()
	}
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoff is 0.5s doubling per attempt plus up to 100ms of jitter.
func backoff(attempt int) time.Duration {
	base := 500 * time.Millisecond << (attempt - 1)
	return base + time.Duration(rand.Intn(100))*time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fetch implements Fetcher. The caller owns the returned body.
func (f *RateLimitedFetcher) Fetch(ctx context.Context, rawURL string) (*FetchedDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	l := f.laneFor(u.Host)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.tick.C:
	}

	var lastErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.log.Debug("retrying fetch", zap.String("url", rawURL), zap.Int("attempt", attempt), zap.Error(lastErr))
			if err := sleepCtx(ctx, backoff(attempt)); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", acceptHeader)
		req.Header.Set("Accept-Language", l.cfg.AcceptLanguage)
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := l.client.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetry(err, 0) {
				continue
			}
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		if resp.StatusCode == http.StatusOK {
			return &FetchedDocument{
				URL:         rawURL,
				StatusCode:  resp.StatusCode,
				ContentType: resp.Header.Get("Content-Type"),
				Body:        resp.Body,
				FetchedAt:   time.Now(),
				Headers:     resp.Header,
			}, nil
		}
		resp.Body.Close()

		lastErr = fmt.Errorf("status code %d", resp.StatusCode)
		if !shouldRetry(nil, resp.StatusCode) {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, lastErr)
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
