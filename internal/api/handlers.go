package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/advisor"
	"github.com/finsphere/finsphere/internal/audit"
	"github.com/finsphere/finsphere/internal/llm"
	"github.com/finsphere/finsphere/internal/market"
)

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "FinSphere API",
		"version": s.version,
		"status":  "running",
		"time":    s.now().UTC(),
	})
}

// handleGetHealth is the load balancer probe
func (s *Server) handleGetHealth(c *gin.Context) {
	if s.store != nil {
		if err := s.store.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   s.now().UTC(),
	})
}

// handleGetStatus reports component health and runtime stats
func (s *Server) handleGetStatus(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbStatus := "not_configured"
	if s.store != nil {
		dbStatus = "healthy"
		if err := s.store.Health(c.Request.Context()); err != nil {
			dbStatus = "unhealthy"
			log.Warn().Err(err).Msg("Database health check failed")
		}
	}

	marketStatus := "not_configured"
	if s.market != nil {
		marketStatus = "configured"
	}

	systemStatus := "healthy"
	if dbStatus != "healthy" {
		systemStatus = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    systemStatus,
		"timestamp": s.now().UTC(),
		"uptime":    time.Since(s.startTime).Seconds(),
		"version":   s.version,
		"components": gin.H{
			"database": gin.H{"status": dbStatus},
			"market":   gin.H{"status": marketStatus},
			"events":   gin.H{"status": configured(s.events != nil)},
		},
		"system": gin.H{
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb": toMB(memStats.Alloc),
				"sys_mb":   toMB(memStats.Sys),
				"num_gc":   memStats.NumGC,
			},
			"go_version": runtime.Version(),
		},
	})
}

// handleGetMarketSnapshot returns the snapshot the engine currently sees.
// A provider failure degrades to the documented default snapshot.
// With explain=true a market commentary is attached.
func (s *Server) handleGetMarketSnapshot(c *gin.Context) {
	ctx := c.Request.Context()

	explain, err := parseBoolQuery(c, "explain")
	if err != nil {
		s.badRequest(c, err, "Invalid explain parameter")
		return
	}

	var snap market.Snapshot
	if s.market != nil {
		snap, err = s.market.Snapshot(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Market provider failed, serving default snapshot")
			snap = market.Default(s.now().UTC())
		}
	} else {
		snap = market.Default(s.now().UTC())
	}

	if snap.Source == market.FallbackSource {
		_ = s.audit.Log(ctx, &audit.Event{
			EventType: audit.EventTypeMarketSnapshotDegraded,
			Severity:  audit.SeverityWarning,
			IPAddress: c.ClientIP(),
			Resource:  c.FullPath(),
			Action:    "Served default market snapshot",
			Success:   true,
		})
	}

	body := gin.H{
		"snapshot":  snap,
		"condition": snap.Condition(),
		"degraded":  snap.Source == market.FallbackSource,
	}
	if explain {
		body["explanation"] = s.explainer.ExplainMarket(ctx, llm.MarketContext{
			Market:  snap,
			Summary: advisor.MarketContext(snap),
		})
	}
	c.JSON(http.StatusOK, body)
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not_configured"
}

func toMB(bytes uint64) float64 {
	return float64(bytes) / 1024 / 1024
}
