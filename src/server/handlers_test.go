package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulseops/src/helpers"
	"pulseops/src/interfaces"
	"pulseops/src/kpi"
	"pulseops/src/logger"
	"pulseops/src/models"
	"pulseops/src/storage"
	"pulseops/src/utils"
	"pulseops/src/wallet"
)

// stubVerifier resolves tokens from a fixed table.
type stubVerifier struct {
	identities map[string]*models.MIdentity
	err        error
}

func (v *stubVerifier) VerifyToken(_ context.Context, token string) (*models.MIdentity, error) {
	if v.err != nil {
		return nil, v.err
	}
	if identity, ok := v.identities[token]; ok {
		return identity, nil
	}
	return nil, helpers.NewAuthError("token rejected by provider", nil)
}

// -----------------------------------------------------------------------------

type testServerOpts struct {
	authEnabled bool
	verifier    *stubVerifier
	rateLimit   models.MRateLimitConfig
	maxClients  int
}

func newTestServer(t *testing.T, opts testServerOpts) *PulseOpsServer {
	t.Helper()

	cfg := &models.MConfig{
		Name: "pulse-ops-test",
		Host: "127.0.0.1",
	}
	cfg.KPI.MaxSamples = 100
	cfg.Hub.WebsocketPath = "/ws/pulse"
	cfg.Hub.MaxClients = opts.maxClients
	cfg.Auth.Enabled = opts.authEnabled
	cfg.Auth.AnonymousSubject = "anonymous"
	cfg.Auth.Roles = models.MRoleLists{
		Read:  []string{"viewer"},
		Write: []string{"producer"},
		Admin: []string{"operator"},
	}
	cfg.RateLimit = opts.rateLimit
	cfg.Storage.DBType = "sqlite"
	cfg.Storage.DBPath = ":memory:"
	cfg.Storage.DataRetentionDays = 7
	cfg.Wallet.ConfigPath = filepath.Join(t.TempDir(), "wallet.json")

	log := logger.NewLogger(nil, "server-test")
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC))

	db, err := storage.NewAsyncSQLiteDB(cfg, log)
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { _ = db.Close() })

	wm := wallet.NewManager(cfg.Wallet.ConfigPath, clock, log)
	require.NoError(t, wm.Ensure())

	hub := NewPulseHub(cfg, kpi.NewAggregator(cfg.KPI.MaxSamples, clock, log), log)
	t.Cleanup(hub.Close)

	var verifier interfaces.IIdentityVerifier
	if opts.verifier != nil {
		verifier = opts.verifier
	}
	sched := utils.NewMarketScheduler(nil, log)

	return NewPulseOpsServer(cfg, log, hub, verifier, db, wm, sched, clock)
}

// -----------------------------------------------------------------------------

func doRequest(s *PulseOpsServer, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// -----------------------------------------------------------------------------
// Ingestion
// -----------------------------------------------------------------------------

func TestPostPulseIngestsAndStampsEvent(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodPost, "/api/pulse",
		`{"composites":{"hope":0.8,"sorrow":0.2}}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "2025-06-02T09:30:00Z", body["timestamp"])

	composites := body["composites"].(map[string]interface{})
	assert.InDelta(t, 0.8, composites["hope"].(float64), 1e-9)
	assert.InDelta(t, 0.2, composites["sorrow"].(float64), 1e-9)

	stats := s.Hub.Aggregator.Stats()
	assert.Equal(t, 1, stats.SampleCount)
	assert.InDelta(t, 0.8, stats.HopeRatio, 1e-9)
}

// -----------------------------------------------------------------------------

func TestPostPulseRejectsInvalidBodies(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing hope", `{"composites":{"sorrow":0.2}}`},
		{"missing sorrow", `{"composites":{"hope":0.8}}`},
		{"hope below range", `{"composites":{"hope":-0.1,"sorrow":0.2}}`},
		{"hope above range", `{"composites":{"hope":1.1,"sorrow":0.2}}`},
		{"sorrow above range", `{"composites":{"hope":0.5,"sorrow":2}}`},
		{"non numeric composite", `{"composites":{"hope":"high","sorrow":0.2}}`},
		{"not json", `hope=0.5`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, http.MethodPost, "/api/pulse", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	assert.Equal(t, 0, s.Hub.Aggregator.Stats().SampleCount)
}

// -----------------------------------------------------------------------------

func TestPostPulseScoresMetadataNote(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodPost, "/api/pulse",
		`{"composites":{"hope":0.6,"sorrow":0.4},"metadata":{"note":"we care for growth","desk":"emea-rates"}}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	metadata := body["metadata"].(map[string]interface{})
	assert.Equal(t, "emea-rates", metadata["desk"])

	score, ok := metadata["softsense_score"].(float64)
	require.True(t, ok, "expected a softsense score on the note")
	assert.Greater(t, score, 0.5)
}

// -----------------------------------------------------------------------------
// Read Surface
// -----------------------------------------------------------------------------

func TestGetKPIReturnsEnvelopeWithWindowAverages(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	for _, body := range []string{
		`{"composites":{"hope":0.8,"sorrow":0.2}}`,
		`{"composites":{"hope":0.4,"sorrow":0.6}}`,
	} {
		w := doRequest(s, http.MethodPost, "/api/pulse", body, nil)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doRequest(s, http.MethodGet, "/api/kpi", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "anonymous", body["caller"])
	assert.Equal(t, "2025-06-02T09:30:00Z", body["generated_at"])

	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["sample_count"])
	assert.InDelta(t, 0.6, stats["avg_hope"].(float64), 1e-9)
	assert.InDelta(t, 0.4, stats["avg_sorrow"].(float64), 1e-9)
	assert.InDelta(t, 0.6, stats["hope_ratio"].(float64), 1e-9)
}

// -----------------------------------------------------------------------------

func TestGetWalletReturnsGuardrails(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodGet, "/api/wallet", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "USD", body["base_currency"])
	assert.Equal(t, float64(1), body["version"])
	assert.InDelta(t, 0.35, body["sentiment_floor"].(float64), 1e-9)
}

// -----------------------------------------------------------------------------

func TestGetMarketsWithoutConfiguredMICs(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodGet, "/api/markets", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, false, body["any_open"])
}

// -----------------------------------------------------------------------------

func TestGetInsightsHoldsOnEmptyWindow(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodGet, "/api/insights", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	suggestion := body["suggestion"].(map[string]interface{})
	assert.Equal(t, "hold", suggestion["action"])
}

// -----------------------------------------------------------------------------

func TestPostSenseEvaluatesText(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodPost, "/api/sense",
		`{"text":"handle with compassion and respect so the team can thrive"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	composite, ok := body["composite"].(float64)
	require.True(t, ok)
	assert.Greater(t, composite, 0.5)

	w = doRequest(s, http.MethodPost, "/api/sense", `{"text":"  "}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// -----------------------------------------------------------------------------
// Allocations
// -----------------------------------------------------------------------------

func TestAllocationLifecycle(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodPost, "/api/allocations",
		`{"portfolio":"growth","asset_class":"equities","side":"increase","amount_usd":1000,"note":"prosper with care"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "anonymous", body["created_by"])
	assert.Equal(t, false, body["sentiment_flagged"])
	assert.Equal(t, false, body["market_open"])
	require.Contains(t, body, "sentiment_score")
	assert.Greater(t, body["sentiment_score"].(float64), 0.0)

	w = doRequest(s, http.MethodGet, "/api/allocations", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	listing := decodeBody(t, w)
	assert.Equal(t, float64(1), listing["count"])
	allocations := listing["allocations"].([]interface{})
	require.Len(t, allocations, 1)
	first := allocations[0].(map[string]interface{})
	assert.Equal(t, body["id"], first["id"])
}

// -----------------------------------------------------------------------------

func TestPostAllocationValidation(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	tests := []struct {
		name string
		body string
	}{
		{"missing portfolio", `{"asset_class":"equities","side":"increase","amount_usd":100}`},
		{"missing asset class", `{"portfolio":"growth","side":"increase","amount_usd":100}`},
		{"bad side", `{"portfolio":"growth","asset_class":"equities","side":"hold","amount_usd":100}`},
		{"zero amount", `{"portfolio":"growth","asset_class":"equities","side":"increase","amount_usd":0}`},
		{"negative amount", `{"portfolio":"growth","asset_class":"equities","side":"reduce","amount_usd":-5}`},
		{"above single allocation cap", `{"portfolio":"growth","asset_class":"equities","side":"increase","amount_usd":250001}`},
		{"asset class outside guardrails", `{"portfolio":"growth","asset_class":"crypto","side":"increase","amount_usd":100}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, http.MethodPost, "/api/allocations", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	w := doRequest(s, http.MethodGet, "/api/allocations", "", nil)
	assert.Equal(t, float64(0), decodeBody(t, w)["count"])
}

// -----------------------------------------------------------------------------

func TestPostAllocationFlagsBookingBelowSentimentFloor(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	// Hope ratio 0.1 sits under the default 0.35 floor.
	w := doRequest(s, http.MethodPost, "/api/pulse",
		`{"composites":{"hope":0.1,"sorrow":0.9}}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(s, http.MethodPost, "/api/allocations",
		`{"portfolio":"growth","asset_class":"equities","side":"increase","amount_usd":500}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["sentiment_flagged"])
	assert.Nil(t, body["sentiment_score"]) // no note, no score
}

// -----------------------------------------------------------------------------
// Admin Surface
// -----------------------------------------------------------------------------

func TestAdminKPIWindowResizeEvictsOldest(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodPost, "/api/admin/kpi/window", `{"max_samples":2}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["max_samples"])

	for _, hope := range []float64{0.1, 0.2, 0.3} {
		body := fmt.Sprintf(`{"composites":{"hope":%.1f,"sorrow":0.5}}`, hope)
		resp := doRequest(s, http.MethodPost, "/api/pulse", body, nil)
		require.Equal(t, http.StatusCreated, resp.Code)
	}

	stats := s.Hub.Aggregator.Stats()
	assert.Equal(t, 2, stats.SampleCount)
	assert.InDelta(t, 0.25, stats.AvgHope, 1e-9) // only the newest two remain

	for _, body := range []string{`{}`, `{"max_samples":0}`, `{"max_samples":-3}`} {
		w := doRequest(s, http.MethodPost, "/api/admin/kpi/window", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

// -----------------------------------------------------------------------------

func TestAdminWalletUpdatePersistsAndValidates(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodPost, "/api/admin/wallet",
		`{"sentiment_floor":0.6,"note":"raise the floor"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["version"])
	assert.InDelta(t, 0.6, body["sentiment_floor"].(float64), 1e-9)

	history := body["growth_history"].([]interface{})
	require.Len(t, history, 2)
	last := history[1].(map[string]interface{})
	assert.Equal(t, "anonymous", last["changed_by"])
	assert.Equal(t, "raise the floor", last["note"])

	w = doRequest(s, http.MethodPost, "/api/admin/wallet", `{"sentiment_floor":1.5}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The rejected update must not stick.
	w = doRequest(s, http.MethodGet, "/api/wallet", "", nil)
	assert.InDelta(t, 0.6, decodeBody(t, w)["sentiment_floor"].(float64), 1e-9)
}

// -----------------------------------------------------------------------------

func TestAdminHubStats(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodGet, "/api/admin/hub", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["connected_clients"])
	assert.Equal(t, float64(0), body["messages_sent"])
}

// -----------------------------------------------------------------------------

func TestAdminSystemStatus(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodGet, "/api/admin/system", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Greater(t, body["goroutines"].(float64), float64(0))
	assert.Greater(t, body["num_cpu"].(float64), float64(0))
}

// -----------------------------------------------------------------------------
// Health and Metrics
// -----------------------------------------------------------------------------

func TestHealthReportsOK(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "pulse-ops-test", body["name"])
	assert.Equal(t, true, body["db_ok"])
	assert.Equal(t, float64(0), body["kpi_samples"])
}

// -----------------------------------------------------------------------------

func TestMetricsExposition(t *testing.T) {
	s := newTestServer(t, testServerOpts{})

	w := doRequest(s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pulseops_")
}

// -----------------------------------------------------------------------------
// AuthN/AuthZ
// -----------------------------------------------------------------------------

func TestAuthGatesEndpointsWhenEnabled(t *testing.T) {
	verifier := &stubVerifier{identities: map[string]*models.MIdentity{
		"viewer-token":   {Subject: "alice", Roles: []string{"viewer"}, Active: true},
		"producer-token": {Subject: "feeder", Roles: []string{"producer"}, Active: true},
	}}
	s := newTestServer(t, testServerOpts{authEnabled: true, verifier: verifier})

	// Missing token.
	w := doRequest(s, http.MethodGet, "/api/kpi", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Unknown token.
	w = doRequest(s, http.MethodGet, "/api/kpi", "", map[string]string{
		"Authorization": "Bearer bogus",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Accepted token with the right role.
	w = doRequest(s, http.MethodGet, "/api/kpi", "", map[string]string{
		"Authorization": "Bearer viewer-token",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decodeBody(t, w)["caller"])

	// Token accepted via the query form too.
	w = doRequest(s, http.MethodGet, "/api/kpi?access_token=viewer-token", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Right token, wrong permission.
	w = doRequest(s, http.MethodPost, "/api/pulse",
		`{"composites":{"hope":0.5,"sorrow":0.5}}`, map[string]string{
			"Authorization": "Bearer viewer-token",
		})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Write role can ingest.
	w = doRequest(s, http.MethodPost, "/api/pulse",
		`{"composites":{"hope":0.5,"sorrow":0.5}}`, map[string]string{
			"Authorization": "Bearer producer-token",
		})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Health stays public.
	w = doRequest(s, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// -----------------------------------------------------------------------------

func TestAuthReturns503WhenProviderUnreachable(t *testing.T) {
	verifier := &stubVerifier{err: helpers.NewNetworkError("introspection endpoint unreachable", nil)}
	s := newTestServer(t, testServerOpts{authEnabled: true, verifier: verifier})

	w := doRequest(s, http.MethodGet, "/api/kpi", "", map[string]string{
		"Authorization": "Bearer any",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// -----------------------------------------------------------------------------
// Rate Limiting
// -----------------------------------------------------------------------------

func TestRateLimitRejectsBurstsPerIP(t *testing.T) {
	s := newTestServer(t, testServerOpts{rateLimit: models.MRateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.001,
		Burst:             2,
	}})

	body := `{"composites":{"hope":0.5,"sorrow":0.5}}`
	for i := 0; i < 2; i++ {
		w := doRequest(s, http.MethodPost, "/api/pulse", body, nil)
		require.Equal(t, http.StatusCreated, w.Code, "request %d within burst", i+1)
	}

	w := doRequest(s, http.MethodPost, "/api/pulse", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Read endpoints are not throttled.
	w = doRequest(s, http.MethodGet, "/api/kpi", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
