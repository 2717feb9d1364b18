package server

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"pulseops/src/auth"
	"pulseops/src/helpers"
	"pulseops/src/metrics"
)

// Gin context key under which the verified caller identity is stored.
const identityContextKey = "identity"

// -----------------------------------------------------------------------------
// CORS
// -----------------------------------------------------------------------------

// corsMiddleware mirrors the dashboard development setup: only loopback
// origins are reflected back.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Authentication and Role Gating
// -----------------------------------------------------------------------------

// requireRole verifies the bearer token and checks the caller holds one of
// the roles configured for the permission. With auth disabled every caller
// runs as the configured anonymous identity.
func (s *PulseOpsServer) requireRole(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.Config.Auth.Enabled {
			c.Set(identityContextKey, auth.AnonymousIdentity(s.Config))
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			// Browser websocket clients cannot set headers on the dial, so
			// the RFC 6750 query form is accepted as a fallback.
			token = c.Query("access_token")
		}
		if token == "" {
			metrics.AuthFailures.WithLabelValues("missing_token").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		identity, err := s.Verifier.VerifyToken(c.Request.Context(), token)
		if err != nil {
			var netErr *helpers.NetworkError
			if errors.As(err, &netErr) {
				metrics.AuthFailures.WithLabelValues("unavailable").Inc()
				s.Logger.Error("Token verification unavailable: %v", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "identity provider unavailable"})
				return
			}
			metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		accepted := auth.RolesForPermission(s.Config, permission)
		if !auth.HasAnyRole(identity, accepted) {
			metrics.AuthFailures.WithLabelValues("forbidden").Inc()
			s.Logger.Warning("Subject %s lacks %s permission", identity.Subject, permission)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}

		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// -----------------------------------------------------------------------------

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// -----------------------------------------------------------------------------
// Per-IP Rate Limiting
// -----------------------------------------------------------------------------

const (
	limiterStaleAfter    = 3 * time.Minute
	limiterSweepInterval = time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per caller IP. Entries idle past
// limiterStaleAfter are swept on the next lookup.
type ipRateLimiter struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

// -----------------------------------------------------------------------------

func newIPRateLimiter(requestsPerSecond float64, burst int) *ipRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		entries:   make(map[string]*limiterEntry),
		limit:     rate.Limit(requestsPerSecond),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// -----------------------------------------------------------------------------

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > limiterSweepInterval {
		for key, entry := range l.entries {
			if now.Sub(entry.lastSeen) > limiterStaleAfter {
				delete(l.entries, key)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.entries[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = entry
	}
	entry.lastSeen = now

	return entry.limiter.Allow()
}

// -----------------------------------------------------------------------------

// rateLimitMiddleware rejects callers that exceed the configured per-IP
// ingestion rate.
func (s *PulseOpsServer) rateLimitMiddleware() gin.HandlerFunc {
	limiter := newIPRateLimiter(s.Config.RateLimit.RequestsPerSecond, s.Config.RateLimit.Burst)

	return func(c *gin.Context) {
		if !s.Config.RateLimit.Enabled {
			c.Next()
			return
		}

		if !limiter.allow(c.ClientIP()) {
			metrics.EventsRejected.WithLabelValues("rate_limited").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}
