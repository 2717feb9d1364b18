package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"pulseops/src/helpers"
	"pulseops/src/metrics"
	"pulseops/src/models"
)

// -----------------------------------------------------------------------------
// Request Payloads
// -----------------------------------------------------------------------------

// pulseRequest is the single accepted ingestion contract. Composites are
// pointers so a missing field can be told apart from an explicit zero.
type pulseRequest struct {
	Composites struct {
		Hope   *float64 `json:"hope"`
		Sorrow *float64 `json:"sorrow"`
	} `json:"composites"`
	Metadata map[string]interface{} `json:"metadata"`
}

type allocationRequest struct {
	Portfolio  string   `json:"portfolio"`
	AssetClass string   `json:"asset_class"`
	Side       string   `json:"side"`
	AmountUSD  *float64 `json:"amount_usd"`
	Note       string   `json:"note"`
}

type senseRequest struct {
	Text string `json:"text"`
}

type kpiWindowRequest struct {
	MaxSamples *int `json:"max_samples"`
}

// walletUpdateRequest is a partial update: only non-nil fields are applied,
// weight caps merge per asset class.
type walletUpdateRequest struct {
	Note                   string             `json:"note"`
	BaseCurrency           *string            `json:"base_currency"`
	RiskPosture            *string            `json:"risk_posture"`
	MaxSingleAllocationUSD *float64           `json:"max_single_allocation_usd"`
	SentimentFloor         *float64           `json:"sentiment_floor"`
	AssetClassWeightCaps   map[string]float64 `json:"asset_class_weight_caps"`
}

// -----------------------------------------------------------------------------
// Ingestion
// -----------------------------------------------------------------------------

func (s *PulseOpsServer) postPulse(c *gin.Context) {
	var req pulseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.EventsRejected.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Composites.Hope == nil || req.Composites.Sorrow == nil {
		metrics.EventsRejected.WithLabelValues("missing_composite").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "composites.hope and composites.sorrow are required"})
		return
	}
	hope, sorrow := *req.Composites.Hope, *req.Composites.Sorrow
	if !isUnitScore(hope) || !isUnitScore(sorrow) {
		metrics.EventsRejected.WithLabelValues("out_of_range").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "composites must be finite values in [0,1]"})
		return
	}

	event := &models.MPulseEvent{
		Composites: models.MComposites{Hope: hope, Sorrow: sorrow},
		Timestamp:  s.Clock.Now().UTC().Format(time.RFC3339Nano),
		Metadata:   req.Metadata,
	}
	if note, ok := event.Metadata["note"].(string); ok && note != "" {
		event.Metadata["softsense_score"] = s.Softsense.Score(note)
	}

	// Aggregation and fan-out happen before the journal write: subscribers
	// must never observe an event the KPI window has not absorbed.
	s.Hub.Broadcast(event)
	metrics.EventsIngested.Inc()

	if s.Database != nil {
		go func() {
			if err := s.Database.SavePulseEvent(event); err != nil {
				metrics.StorageErrors.WithLabelValues("save_pulse_event").Inc()
				s.Logger.Error("Failed to journal pulse event: %v", err)
			}
		}()
	}

	c.JSON(http.StatusCreated, event)
}

// -----------------------------------------------------------------------------
// Read Surface
// -----------------------------------------------------------------------------

func (s *PulseOpsServer) getKPI(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"caller":       currentIdentity(c).Subject,
		"generated_at": s.Clock.Now().UTC().Format(time.RFC3339),
		"stats":        s.Hub.Aggregator.Stats(),
	})
}

// -----------------------------------------------------------------------------

func (s *PulseOpsServer) getWallet(c *gin.Context) {
	c.JSON(http.StatusOK, s.Wallet.Config())
}

// -----------------------------------------------------------------------------

func (s *PulseOpsServer) getMarkets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"markets":  s.Scheduler.Status(),
		"any_open": s.Scheduler.AnyMarketOpen(),
	})
}

// -----------------------------------------------------------------------------

func (s *PulseOpsServer) getInsights(c *gin.Context) {
	c.JSON(http.StatusOK, s.Insights.Generate())
}

// -----------------------------------------------------------------------------

func (s *PulseOpsServer) postSense(c *gin.Context) {
	var req senseRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	c.JSON(http.StatusOK, s.Softsense.Evaluate(req.Text))
}

// -----------------------------------------------------------------------------
// Allocations
// -----------------------------------------------------------------------------

func (s *PulseOpsServer) postAllocation(c *gin.Context) {
	if s.Database == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}

	var req allocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Portfolio == "" || req.AssetClass == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "portfolio and asset_class are required"})
		return
	}
	if req.Side != models.AllocationSideIncrease && req.Side != models.AllocationSideReduce {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be increase or reduce"})
		return
	}
	if req.AmountUSD == nil || !isFinite(*req.AmountUSD) || *req.AmountUSD <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount_usd must be a positive number"})
		return
	}

	guardrails := s.Wallet.Config()
	if *req.AmountUSD > guardrails.MaxSingleAllocationUSD {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("amount_usd exceeds the single allocation cap of %.2f", guardrails.MaxSingleAllocationUSD),
		})
		return
	}
	if _, ok := guardrails.AssetClassWeightCaps[req.AssetClass]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset_class is not covered by the wallet guardrails"})
		return
	}

	var score *float64
	if req.Note != "" {
		v := s.Softsense.Score(req.Note)
		score = &v
	}

	// A booking below the sentiment floor is flagged, not blocked.
	stats := s.Hub.Aggregator.Stats()
	flagged := stats.SampleCount > 0 && stats.HopeRatio < guardrails.SentimentFloor

	alloc := &models.MAllocation{
		ID:               uuid.NewString(),
		Portfolio:        req.Portfolio,
		AssetClass:       req.AssetClass,
		Side:             req.Side,
		AmountUSD:        *req.AmountUSD,
		Note:             req.Note,
		SentimentScore:   score,
		SentimentFlagged: flagged,
		MarketOpen:       s.Scheduler.AnyMarketOpen(),
		CreatedBy:        currentIdentity(c).Subject,
		CreatedAt:        s.Clock.Now().UTC(),
	}

	if err := s.Database.SaveAllocation(alloc); err != nil {
		metrics.StorageErrors.WithLabelValues("save_allocation").Inc()
		s.Logger.Error("Failed to persist allocation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist allocation"})
		return
	}

	metrics.AllocationsCreated.Inc()
	s.Logger.Info("Allocation booked: %s %s %.2f USD on %s by %s",
		alloc.Side, alloc.AssetClass, alloc.AmountUSD, alloc.Portfolio, alloc.CreatedBy)
	c.JSON(http.StatusCreated, alloc)
}

// -----------------------------------------------------------------------------

func (s *PulseOpsServer) listAllocations(c *gin.Context) {
	if s.Database == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}

	limit := queryInt(c, "limit", 50, 1, 500)
	allocations, err := s.Database.ListAllocations(limit)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("list_allocations").Inc()
		s.Logger.Error("Failed to list allocations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list allocations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"allocations": allocations,
		"count":       len(allocations),
	})
}

// -----------------------------------------------------------------------------
// Admin Surface
// -----------------------------------------------------------------------------

func (s *PulseOpsServer) postKPIWindow(c *gin.Context) {
	var req kpiWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MaxSamples == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_samples is required"})
		return
	}
	if *req.MaxSamples < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_samples must be at least 1"})
		return
	}

	s.Hub.Aggregator.Resize(*req.MaxSamples)
	metrics.KPIWindowSize.Set(float64(s.Hub.Aggregator.Size()))
	s.Logger.Info("KPI window resized to %d samples by %s", *req.MaxSamples, currentIdentity(c).Subject)

	c.JSON(http.StatusOK, gin.H{
		"max_samples":  s.Hub.Aggregator.Window(),
		"sample_count": s.Hub.Aggregator.Size(),
	})
}

// -----------------------------------------------------------------------------

func (s *PulseOpsServer) postWalletUpdate(c *gin.Context) {
	var req walletUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	note := req.Note
	if note == "" {
		note = "updated via admin api"
	}

	updated, err := s.Wallet.Update(currentIdentity(c).Subject, note, func(cfg *models.MWalletConfig) {
		if req.BaseCurrency != nil {
			cfg.BaseCurrency = *req.BaseCurrency
		}
		if req.RiskPosture != nil {
			cfg.RiskPosture = *req.RiskPosture
		}
		if req.MaxSingleAllocationUSD != nil {
			cfg.MaxSingleAllocationUSD = *req.MaxSingleAllocationUSD
		}
		if req.SentimentFloor != nil {
			cfg.SentimentFloor = *req.SentimentFloor
		}
		for class, weight := range req.AssetClassWeightCaps {
			cfg.AssetClassWeightCaps[class] = weight
		}
	})
	if err != nil {
		var validationErr *helpers.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
			return
		}
		s.Logger.Error("Failed to update wallet config: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update wallet config"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// -----------------------------------------------------------------------------

func (s *PulseOpsServer) getHubStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Hub.Stats())
}

// -----------------------------------------------------------------------------

func (s *PulseOpsServer) getSystemStatus(c *gin.Context) {
	status := models.MSystemStatus{
		Goroutines:    runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}

	// Sample over a short interval to keep the endpoint responsive.
	if pcts, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pcts) > 0 {
		status.CPUPercent = pcts[0]
	} else if err != nil {
		s.Logger.Warning("Failed to read CPU usage: %v", err)
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if memInfo, err := proc.MemoryInfo(); err == nil {
			status.MemoryRSSMB = float64(memInfo.RSS) / 1024 / 1024
		}
		if memPct, err := proc.MemoryPercent(); err == nil {
			status.MemoryPercent = memPct
		}
	} else {
		s.Logger.Warning("Failed to inspect own process: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		status.HostMemoryUsed = vm.UsedPercent
	} else {
		s.Logger.Warning("Failed to read host memory: %v", err)
	}

	c.JSON(http.StatusOK, status)
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

func (s *PulseOpsServer) getHealth(c *gin.Context) {
	dbOK := true
	if s.Database != nil {
		if err := s.Database.Ping(); err != nil {
			dbOK = false
		}
	}

	status := "ok"
	if !dbOK {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"name":           s.Config.Name,
		"uptime_seconds": time.Since(s.started).Seconds(),
		"hub":            s.Hub.Stats(),
		"kpi_samples":    s.Hub.Aggregator.Size(),
		"db_ok":          dbOK,
		"market_open":    s.Scheduler.AnyMarketOpen(),
	})
}
