package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pulseops/src/auth"
	"pulseops/src/insights"
	"pulseops/src/interfaces"
	"pulseops/src/kpi"
	"pulseops/src/logger"
	"pulseops/src/metrics"
	"pulseops/src/models"
	"pulseops/src/softsense"
	"pulseops/src/utils"
	"pulseops/src/wallet"
)

// -----------------------------------------------------------------------------
// PulseOpsServer
// -----------------------------------------------------------------------------

type PulseOpsServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	Clock  clockwork.Clock

	engine     *gin.Engine
	httpServer *http.Server

	Hub       *PulseHub
	Verifier  interfaces.IIdentityVerifier
	Database  interfaces.IDatabase
	Wallet    *wallet.Manager
	Scheduler *utils.MarketScheduler
	Insights  *insights.Service
	Softsense *softsense.Evaluator

	started time.Time
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewPulseOpsServer(cfg *models.MConfig, log *logger.Logger, hub *PulseHub,
	verifier interfaces.IIdentityVerifier, db interfaces.IDatabase,
	wm *wallet.Manager, sched *utils.MarketScheduler, clock clockwork.Clock) *PulseOpsServer {

	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &PulseOpsServer{
		Config:    cfg,
		Logger:    log,
		Clock:     clock,
		engine:    gin.Default(),
		Hub:       hub,
		Verifier:  verifier,
		Database:  db,
		Wallet:    wm,
		Scheduler: sched,
		Insights:  insights.NewService(hub.Aggregator, sched, wm, clock, log),
		Softsense: softsense.NewEvaluator(),
		started:   time.Now(),
	}

	s.engine.Use(corsMiddleware())
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *PulseOpsServer) setupRoutes() {
	api := s.engine.Group("/api")

	// Ingestion. Rate limiting runs before token verification so a noisy
	// producer cannot hammer the identity provider either.
	api.POST("/pulse", s.rateLimitMiddleware(), s.requireRole(auth.PermissionWrite), s.postPulse)

	// Read surface
	api.GET("/kpi", s.requireRole(auth.PermissionRead), s.getKPI)
	api.GET("/wallet", s.requireRole(auth.PermissionRead), s.getWallet)
	api.GET("/allocations", s.requireRole(auth.PermissionRead), s.listAllocations)
	api.GET("/markets", s.requireRole(auth.PermissionRead), s.getMarkets)
	api.GET("/insights", s.requireRole(auth.PermissionRead), s.getInsights)
	api.POST("/sense", s.requireRole(auth.PermissionRead), s.postSense)

	// Write surface
	api.POST("/allocations", s.requireRole(auth.PermissionWrite), s.postAllocation)

	// Admin surface
	admin := api.Group("/admin", s.requireRole(auth.PermissionAdmin))
	admin.POST("/kpi/window", s.postKPIWindow)
	admin.POST("/wallet", s.postWalletUpdate)
	admin.GET("/hub", s.getHubStats)
	admin.GET("/system", s.getSystemStatus)

	// Unauthenticated probes
	api.GET("/health", s.getHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Live subscription endpoint. The hub is reachable only at this path;
	// any other path never creates a subscriber.
	s.engine.GET(s.Config.Hub.WebsocketPath, s.requireRole(auth.PermissionRead), s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *PulseOpsServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// -----------------------------------------------------------------------------

// Stop closes the hub (which sends close frames to live subscribers) and
// then drains in-flight HTTP requests.
func (s *PulseOpsServer) Stop(ctx context.Context) error {
	s.Logger.Info("Stopping server...")

	s.Hub.Close()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Handler exposes the router for tests driving the server through
// httptest.
func (s *PulseOpsServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// WebSocket Upgrade
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *PulseOpsServer) handleWebSocket(c *gin.Context) {
	if s.Config.Hub.MaxClients > 0 && s.Hub.ClientCount() >= s.Config.Hub.MaxClients {
		metrics.HubConnectionsRejected.WithLabelValues("capacity").Inc()
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "subscriber capacity reached"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		metrics.HubConnectionsRejected.WithLabelValues("upgrade_error").Inc()
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s.Hub, conn)
	if err := s.Hub.Attach(client); err != nil {
		metrics.HubConnectionsRejected.WithLabelValues("closed").Inc()
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}
