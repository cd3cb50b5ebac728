// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-envelope.
//
// go-envelope is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package ratelimit throttles envelope operations per client with token
// buckets from golang.org/x/time/rate. Envelope endpoints are cheap to
// call and expensive to brute force, so the server keys buckets by the
// caller's address and rejects requests once the bucket is empty.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	DefaultRequestsPerMinute = 600
	DefaultCleanupInterval   = 10 * time.Minute
	DefaultMaxIdle           = 30 * time.Minute

	unknownClient = "unknown"
)

var (
	ErrInvalidRate  = errors.New("ratelimit: requests per minute must be positive")
	ErrInvalidBurst = errors.New("ratelimit: burst must not be negative")
	ErrLimited      = errors.New("ratelimit: rate limit exceeded")
	ErrInvalidProxy = errors.New("ratelimit: invalid trusted proxy")
)

// Config holds rate limiter configuration.
type Config struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Burst             int           `yaml:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	MaxIdle           time.Duration `yaml:"max_idle"`

	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Other peers are keyed by their
	// socket address.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// Stats is a point-in-time view of the limiter.
type Stats struct {
	Enabled       bool    `json:"enabled"`
	ActiveClients int     `json:"active_clients"`
	RatePerMinute float64 `json:"rate_per_minute"`
	Burst         int     `json:"burst"`
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	enabled bool
	maxIdle time.Duration
	trusted TrustedProxies
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New validates cfg and returns a limiter. A disabled limiter allows
// everything and starts no background worker.
func New(cfg Config) (*Limiter, error) {
	trusted, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	l := &Limiter{
		trusted: trusted,
		buckets: make(map[string]*bucket),
		enabled: cfg.Enabled,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if !cfg.Enabled {
		return l, nil
	}
	if cfg.RequestsPerMinute <= 0 {
		return nil, ErrInvalidRate
	}
	if cfg.Burst < 0 {
		return nil, ErrInvalidBurst
	}
	l.limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	l.burst = cfg.Burst
	if l.burst == 0 {
		l.burst = cfg.RequestsPerMinute
	}
	l.maxIdle = cfg.MaxIdle
	if l.maxIdle <= 0 {
		l.maxIdle = DefaultMaxIdle
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	go l.sweep(interval)
	return l, nil
}

func (l *Limiter) bucketFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = l.now()
	return b.limiter
}

// Allow reports whether key may proceed now, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	if !l.enabled {
		return true
	}
	return l.bucketFor(key).Allow()
}

// Reserve returns how long key has to wait for its next token without
// consuming one when the answer is non-zero.
func (l *Limiter) Reserve(key string) time.Duration {
	if !l.enabled {
		return 0
	}
	r := l.bucketFor(key).Reserve()
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
	}
	return delay
}

// Wait blocks until key has a token or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if !l.enabled {
		return nil
	}
	if err := l.bucketFor(key).Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLimited, err)
	}
	return nil
}

func (l *Limiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.maxIdle)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Stop terminates the idle sweeper. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Stats returns current limiter statistics.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Enabled:       l.enabled,
		ActiveClients: len(l.buckets),
		RatePerMinute: float64(l.limit) * 60,
		Burst:         l.burst,
	}
}

// Enabled reports whether requests are being limited.
func (l *Limiter) Enabled() bool {
	return l.enabled
}

// Middleware rejects HTTP requests over the limit with 429 and a JSON
// body shaped like the rest of the API's errors.
func Middleware(l *Limiter, log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientIP(r, l.trusted)
			if l.Allow(client) {
				next.ServeHTTP(w, r)
				return
			}
			log.WarnContext(r.Context(), "rate limit exceeded",
				logger.String("client", client),
				logger.String("path", r.URL.Path))
			if wait := l.Reserve(client); wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)+1))
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too Many Requests","reason":"rate_limited"}`))
		})
	}
}

// TrustedProxies is a set of proxy networks allowed to report the
// client address in forwarding headers.
type TrustedProxies []*net.IPNet

// ParseTrustedProxies accepts plain IPs and CIDRs.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var proxies TrustedProxies
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
			}
			bits := 8 * net.IPv6len
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 8*net.IPv4len
			}
			proxies = append(proxies, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
		}
		proxies = append(proxies, network)
	}
	return proxies, nil
}

// Contains reports whether addr is a trusted proxy.
func (t TrustedProxies) Contains(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, network := range t {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the socket peer of r. Forwarding headers are only
// consulted when the peer is a trusted proxy; X-Forwarded-For is then
// walked from the right and the first untrusted hop is the client.
func ClientIP(r *http.Request, trusted TrustedProxies) string {
	remote := hostOnly(r.RemoteAddr)
	if !trusted.Contains(remote) {
		return remote
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		client := remote
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			client = hop
			if !trusted.Contains(hop) {
				break
			}
		}
		return client
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return remote
}

// UnaryServerInterceptor enforces the limit on gRPC calls keyed by peer
// address.
func UnaryServerInterceptor(l *Limiter) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if !l.Allow(peerIP(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return unknownClient
	}
	return hostOnly(p.Addr.String())
}

func hostOnly(addr string) string {
	if addr == "" {
		return unknownClient
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
