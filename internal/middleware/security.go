package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/repohub/repohub-backend/pkg/clientip"
)

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerXXSSProtection          = "X-XSS-Protection"
	headerContentSecurityPolicy   = "Content-Security-Policy"
	headerStrictTransportSecurity = "Strict-Transport-Security"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerXContentTypeOptions, "nosniff")
		w.Header().Set(headerXFrameOptions, "DENY")
		w.Header().Set(headerXXSSProtection, "1; mode=block")
		w.Header().Set(headerContentSecurityPolicy, "default-src 'self'")
		w.Header().Set(headerStrictTransportSecurity, "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// HostCheck returns 403 when r.Host does not match allowedHost (e.g. api.repohub.app).
// allowedHost should be the bare hostname without scheme or port.
func HostCheck(allowedHost string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowedHost == "" {
				next.ServeHTTP(w, r)
				return
			}
			reqHost := r.Host
			if host, _, err := net.SplitHostPort(reqHost); err == nil {
				reqHost = host
			}
			if !strings.EqualFold(strings.TrimSpace(reqHost), strings.TrimSpace(allowedHost)) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte("Forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPLimiters keeps one token bucket per client IP and forgets idle ones.
type IPLimiters struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]*limiterEntry
	now     func() time.Time
}

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

func NewIPLimiters(limit rate.Limit, burst int, ttl time.Duration) *IPLimiters {
	return &IPLimiters{
		limit:   limit,
		burst:   burst,
		ttl:     ttl,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

func (l *IPLimiters) Allow(ip string) bool {
	l.mu.Lock()
	e, ok := l.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.lastUse = l.now()
	l.mu.Unlock()
	return e.limiter.Allow()
}

// StartJanitor drops idle buckets until ctx is done.
func (l *IPLimiters) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

func (l *IPLimiters) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for ip, e := range l.entries {
		if now.Sub(e.lastUse) > l.ttl {
			delete(l.entries, ip)
		}
	}
}

// Limit answers 429 with message once the caller's bucket is empty. A nil
// paths set applies the limit to every route.
func (l *IPLimiters) Limit(paths map[string]bool, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if paths != nil && !paths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(clientip.RealClientIP(r)) {
				writeError(w, http.StatusTooManyRequests, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

const (
	limiterTTL      = 30 * time.Minute
	cleanupInterval = 5 * time.Minute
)

// Credential routes get a 1 req/5s, burst 2 bucket on top of the global one.
var credentialPaths = map[string]bool{
	"/api/auth/login":          true,
	"/api/auth/verify-code":    true,
	"/api/auth/request-reset":  true,
	"/api/auth/forgot":         true,
	"/api/auth/reset-password": true,
	"/api/auth/reset":          true,
}

// Resend has its own per-identity limiter; this only blunts floods per IP.
var resendPaths = map[string]bool{
	"/api/auth/verifyCode/resend": true,
}

// ProductionSecurity returns middlewares for production: SecurityHeaders → HostCheck →
// global → credential routes → resend route. Janitors stop with ctx.
func ProductionSecurity(ctx context.Context, allowedHost string) []func(http.Handler) http.Handler {
	global := NewIPLimiters(rate.Limit(1), 10, limiterTTL)
	credentials := NewIPLimiters(rate.Every(5*time.Second), 2, limiterTTL)
	resend := NewIPLimiters(rate.Every(10*time.Second), 3, limiterTTL)
	for _, l := range []*IPLimiters{global, credentials, resend} {
		l.StartJanitor(ctx, cleanupInterval)
	}
	return []func(http.Handler) http.Handler{
		SecurityHeaders,
		HostCheck(allowedHost),
		global.Limit(nil, "Demasiadas solicitudes. Intenta más despacio."),
		credentials.Limit(credentialPaths, "Demasiados intentos. Intenta de nuevo más tarde."),
		resend.Limit(resendPaths, "Demasiados reenvíos desde esta IP."),
	}
}
