package auth

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"pulseops/src/helpers"
	"pulseops/src/interfaces"
	"pulseops/src/logger"
	"pulseops/src/metrics"
	"pulseops/src/models"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

// Cache never grows past this many distinct tokens; hitting the cap resets it.
const maxCacheEntries = 10000

// -----------------------------------------------------------------------------

// introspectionResponse is the provider reply (RFC 7662 fields plus the
// roles claim the identity provider attaches for this backend).
type introspectionResponse struct {
	Active   bool     `json:"active"`
	Subject  string   `json:"sub"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type cachedIdentity struct {
	identity models.MIdentity
	expires  time.Time
}

// -----------------------------------------------------------------------------

// IntrospectionVerifier resolves bearer tokens against the configured
// identity provider. Lookups go through a TTL cache and a circuit breaker,
// so a provider outage degrades to fast failures instead of hung requests.
type IntrospectionVerifier struct {
	config  *models.MConfig
	network interfaces.INetworkManager
	logger  *logger.Logger
	clock   clockwork.Clock
	breaker *gobreaker.CircuitBreaker

	mu    sync.RWMutex
	cache map[string]cachedIdentity
}

// -----------------------------------------------------------------------------

// NewIntrospectionVerifier creates a verifier. A nil clock selects the real
// clock.
func NewIntrospectionVerifier(cfg *models.MConfig, nm interfaces.INetworkManager, clock clockwork.Clock, log *logger.Logger) *IntrospectionVerifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	v := &IntrospectionVerifier{
		config:  cfg,
		network: nm,
		logger:  log,
		clock:   clock,
		cache:   make(map[string]cachedIdentity),
	}

	v.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "introspection",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warning("Circuit breaker '%s' changed state: %s -> %s", name, from.String(), to.String())
		},
	})

	return v
}

// -----------------------------------------------------------------------------

// VerifyToken resolves a bearer token to an identity. AuthError means the
// provider rejected the token; NetworkError means the provider could not
// answer (callers map these to 401 vs 503).
func (v *IntrospectionVerifier) VerifyToken(ctx context.Context, token string) (*models.MIdentity, error) {
	if token == "" {
		return nil, helpers.NewAuthError("empty bearer token", nil)
	}

	if identity, ok := v.cached(token); ok {
		return identity, nil
	}

	start := time.Now()
	res, err := v.breaker.Execute(func() (interface{}, error) {
		form := url.Values{}
		form.Set("token", token)
		form.Set("token_type_hint", "access_token")
		return v.network.PostForm(ctx, v.config.Auth.IntrospectionURL, form, v.config.Auth.ClientID, v.config.Auth.ClientSecret)
	})
	metrics.IntrospectionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, helpers.NewNetworkError("identity provider unavailable", err)
	}

	var reply introspectionResponse
	if err := json.Unmarshal(res.([]byte), &reply); err != nil {
		return nil, helpers.NewNetworkError("malformed introspection response", err)
	}

	if !reply.Active {
		return nil, helpers.NewAuthError("token is not active", nil)
	}

	subject := reply.Subject
	if subject == "" {
		subject = reply.Username
	}

	identity := &models.MIdentity{Subject: subject, Roles: reply.Roles, Active: true}
	v.store(token, *identity)

	return identity, nil
}

// -----------------------------------------------------------------------------

func (v *IntrospectionVerifier) cached(token string) (*models.MIdentity, bool) {
	if v.config.Auth.CacheTTLSeconds <= 0 {
		return nil, false
	}

	v.mu.RLock()
	entry, ok := v.cache[token]
	v.mu.RUnlock()

	if !ok || v.clock.Now().After(entry.expires) {
		return nil, false
	}

	identity := entry.identity
	return &identity, true
}

// -----------------------------------------------------------------------------

func (v *IntrospectionVerifier) store(token string, identity models.MIdentity) {
	ttl := v.config.Auth.CacheTTLSeconds
	if ttl <= 0 {
		return
	}

	v.mu.Lock()
	if len(v.cache) >= maxCacheEntries {
		v.cache = make(map[string]cachedIdentity)
	}
	v.cache[token] = cachedIdentity{
		identity: identity,
		expires:  v.clock.Now().Add(time.Duration(ttl) * time.Second),
	}
	v.mu.Unlock()
}
