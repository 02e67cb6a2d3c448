package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded label values
const (
	ResultOK            = "ok"
	ResultInvalidInput  = "invalid_input"
	ResultDegenerate    = "degenerate"
	ResultInternalError = "internal_error"

	DecisionIntervene = "intervene"
	DecisionSkip      = "skip"

	CacheHit  = "hit"
	CacheMiss = "miss"

	// Upstream error categories
	ErrorTimeout     = "timeout"
	ErrorRateLimit   = "rate_limit"
	ErrorAuth        = "authentication"
	ErrorNetwork     = "network"
	ErrorInvalidReq  = "invalid_request"
	ErrorServerError = "server_error"
	ErrorOther       = "other"
)

// NormalizeUpstreamError maps arbitrary collaborator errors to a bounded set
func NormalizeUpstreamError(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return ErrorTimeout
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "429"):
		return ErrorRateLimit
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "401") || strings.Contains(errStr, "403"):
		return ErrorAuth
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection"):
		return ErrorNetwork
	case strings.Contains(errStr, "400") || strings.Contains(errStr, "invalid"):
		return ErrorInvalidReq
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503"):
		return ErrorServerError
	default:
		return ErrorOther
	}
}

// Risk engine metrics
var (
	RiskEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_risk_evaluations_total",
		Help: "Risk evaluations by result",
	}, []string{"result"})

	RiskEventsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_risk_events_total",
		Help: "Risk events fired by category and severity",
	}, []string{"category", "severity"})

	OverallRiskScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finsphere_overall_risk_score",
		Help:    "Distribution of overall risk scores (0-10)",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})

	Recommendations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_recommendations_total",
		Help: "Investment recommendations produced by risk tier",
	}, []string{"risk_level"})
)

// Intervention metrics
var (
	InterventionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_intervention_decisions_total",
		Help: "Intervention checks by decision and severity",
	}, []string{"decision", "severity"})

	InterventionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_intervention_outcomes_total",
		Help: "Recorded user responses to interventions",
	}, []string{"action"})
)

// Collaborator metrics
var (
	MarketSnapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_market_snapshots_total",
		Help: "Market snapshots served by source",
	}, []string{"source"})

	MarketFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_market_fetch_errors_total",
		Help: "Upstream market fetch failures by category",
	}, []string{"category"})

	RedisOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_redis_operations_total",
		Help: "Redis cache operations by result",
	}, []string{"operation", "result"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finsphere_llm_request_duration_ms",
		Help:    "LLM request duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	}, []string{"model", "outcome"})

	NATSMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_nats_messages_published_total",
		Help: "Messages published to NATS by subject",
	}, []string{"subject"})

	AlertsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_alerts_delivered_total",
		Help: "Alerts handed to delivery channels by severity and result",
	}, []string{"severity", "result"})

	VaultRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_vault_requests_total",
		Help: "Vault secret reads by result",
	}, []string{"result"})

	VaultRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finsphere_vault_request_duration_ms",
		Help:    "Vault request duration in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
	})
)

// Infrastructure metrics
var (
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finsphere_database_connections_active",
		Help: "Number of active database connections",
	})

	DatabaseConnectionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finsphere_database_connections_idle",
		Help: "Number of idle database connections",
	})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finsphere_database_query_duration_ms",
		Help:    "Database query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query_type"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finsphere_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_errors_total",
		Help: "Errors by type and component",
	}, []string{"type", "component"})

	AuditLogOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_audit_log_operations_total",
		Help: "Audit log writes by event type",
	}, []string{"event_type"})

	AuditLogFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finsphere_audit_log_failures_total",
		Help: "Failed audit log writes by event type",
	}, []string{"event_type"})
)

// RecordRiskEvaluation records an evaluation outcome; score is ignored
// unless result is ok
func RecordRiskEvaluation(result string, score float64) {
	RiskEvaluations.WithLabelValues(result).Inc()
	if result == ResultOK {
		OverallRiskScore.Observe(score)
	}
}

// RecordRecommendation records a produced recommendation by risk tier
func RecordRecommendation(riskLevel string) {
	Recommendations.WithLabelValues(riskLevel).Inc()
}

// RecordRiskEvent records one fired rule
func RecordRiskEvent(category, severity string) {
	RiskEventsFired.WithLabelValues(category, severity).Inc()
}

// RecordIntervention records one decision
func RecordIntervention(intervene bool, severity string) {
	decision := DecisionSkip
	if intervene {
		decision = DecisionIntervene
	}
	InterventionDecisions.WithLabelValues(decision, severity).Inc()
}

// RecordMarketSnapshot records which source served a snapshot
func RecordMarketSnapshot(source string) {
	MarketSnapshots.WithLabelValues(source).Inc()
}

// RecordMarketFetchError records an upstream failure
func RecordMarketFetchError(err error) {
	MarketFetchErrors.WithLabelValues(NormalizeUpstreamError(err)).Inc()
}

// RecordRedisOperation records a cache operation
func RecordRedisOperation(operation, result string) {
	RedisOperations.WithLabelValues(operation, result).Inc()
}

// RecordLLMRequest records an LLM call
func RecordLLMRequest(model string, success bool, durationMs float64) {
	outcome := ResultOK
	if !success {
		outcome = ErrorOther
	}
	LLMRequestDuration.WithLabelValues(model, outcome).Observe(durationMs)
}

// RecordAPIRequest records an API request
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordDatabaseQuery records a database query
func RecordDatabaseQuery(queryType string, durationMs float64) {
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(durationMs)
}

// UpdateDatabaseConnections updates pool gauges
func UpdateDatabaseConnections(active, idle int32) {
	DatabaseConnectionsActive.Set(float64(active))
	DatabaseConnectionsIdle.Set(float64(idle))
}

// RecordAudit records an audit write
func RecordAudit(eventType string, success bool) {
	AuditLogOperations.WithLabelValues(eventType).Inc()
	if !success {
		AuditLogFailures.WithLabelValues(eventType).Inc()
	}
}

// RecordAlert records an alert delivery attempt
func RecordAlert(severity string, success bool) {
	result := ResultOK
	if !success {
		result = ErrorOther
	}
	AlertsDelivered.WithLabelValues(severity, result).Inc()
}

// RecordVaultRequest records a Vault read. Cache hits carry no duration.
func RecordVaultRequest(result string, durationMs float64) {
	VaultRequests.WithLabelValues(result).Inc()
	if result != CacheHit {
		VaultRequestDuration.Observe(durationMs)
	}
}
