// Package api exposes the coaching engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/advisor"
	"github.com/finsphere/finsphere/internal/audit"
	"github.com/finsphere/finsphere/internal/db"
	"github.com/finsphere/finsphere/internal/intervention"
	"github.com/finsphere/finsphere/internal/llm"
	"github.com/finsphere/finsphere/internal/market"
	"github.com/finsphere/finsphere/internal/metrics"
	"github.com/finsphere/finsphere/internal/profile"
)

// Store is the persistence the handlers need
type Store interface {
	UpsertUser(ctx context.Context, u *db.User) error
	GetUser(ctx context.Context, id string) (*db.User, error)
	InsertBiometric(ctx context.Context, r *profile.BiometricReading) error
	LatestBiometric(ctx context.Context, userID string) (*profile.BiometricReading, error)
	InsertTransaction(ctx context.Context, t *profile.Transaction) error
	InsertIntervention(ctx context.Context, r *profile.InterventionRecord) error
	RecordOutcome(ctx context.Context, userID, interventionID, action, effectiveness string) error
	LoadHistory(ctx context.Context, userID string) (profile.History, error)
	Health(ctx context.Context) error
}

// Advisor produces risk assessments and recommendations
type Advisor interface {
	Assess(ctx context.Context, userID string, explain bool) (*advisor.Assessment, error)
	Recommend(ctx context.Context, userID string) (*advisor.Recommendation, error)
}

// AuditLog records advice and security events
type AuditLog interface {
	Log(ctx context.Context, event *audit.Event) error
	LogIntervention(ctx context.Context, userID, interventionID, severity, contextURL string, delayMinutes int) error
	LogOutcome(ctx context.Context, userID, interventionID, action, effectiveness string, success bool, errorMsg string) error
	LogSecurityEvent(ctx context.Context, eventType audit.EventType, userID, ipAddress, resource, action string, metadata map[string]any) error
	Evaluations(ctx context.Context, userID string, limit int) ([]audit.EvaluationRecord, error)
}

// MarketExplainer writes plain-language market commentary
type MarketExplainer interface {
	ExplainMarket(ctx context.Context, c llm.MarketContext) llm.Explanation
}

// EventPublisher announces interventions to other services
type EventPublisher interface {
	PublishIntervention(ctx context.Context, userID, interventionID, contextURL string, d intervention.Decision) error
	PublishOutcome(ctx context.Context, userID, interventionID, action, effectiveness string) error
}

// Config contains server configuration and collaborators.
// Audit, Events and Explainer are optional.
type Config struct {
	Host        string
	Port        int
	Version     string
	CORSOrigins []string
	RateLimit   float64 // requests per second per client
	RateBurst   int

	Store         Store
	Advisor       Advisor
	Interventions *intervention.Engine
	Market        market.Provider
	Explainer     MarketExplainer
	Audit         AuditLog
	Events        EventPublisher
}

// Server represents the REST API server
type Server struct {
	router        *gin.Engine
	store         Store
	advisor       Advisor
	interventions *intervention.Engine
	market        market.Provider
	explainer     MarketExplainer
	audit         AuditLog
	events        EventPublisher
	limiter       *RateLimiter
	version       string
	addr          string
	server        *http.Server
	now           func() time.Time
	startTime     time.Time
}

// NewServer creates a new API server
func NewServer(config Config) *Server {
	if config.Audit == nil {
		config.Audit = audit.NewLogger(nil, false)
	}
	if config.Interventions == nil {
		config.Interventions = intervention.NewEngine()
	}
	if config.Explainer == nil {
		config.Explainer = llm.NewExplainer(nil, 0)
	}
	if config.Version == "" {
		config.Version = "dev"
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	router.Use(metrics.GinMiddleware())
	router.Use(cors.New(corsConfig(config.CORSOrigins)))

	s := &Server{
		router:        router,
		store:         config.Store,
		advisor:       config.Advisor,
		interventions: config.Interventions,
		market:        config.Market,
		explainer:     config.Explainer,
		audit:         config.Audit,
		events:        config.Events,
		limiter:       NewRateLimiter(config.RateLimit, config.RateBurst, config.Audit),
		version:       config.Version,
		addr:          fmt.Sprintf("%s:%d", config.Host, config.Port),
		now:           time.Now,
		startTime:     time.Now(),
	}

	s.setupRoutes()

	return s
}

func corsConfig(origins []string) cors.Config {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           12 * time.Hour,
	}
}

// Router exposes the gin engine, mainly for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// StartCleanup periodically evicts idle rate limiter entries until ctx is done
func (s *Server) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := s.limiter.Cleanup(interval)
				log.Debug().Int("removed", removed).Msg("Rate limiter cleanup completed")
			}
		}
	}()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}

	return nil
}

// LoggerMiddleware is a custom logging middleware for Gin
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logEvent := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			logEvent = log.Error()
		}
		logEvent = logEvent.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP())

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}

		logEvent.Msg("API request")
	}
}
