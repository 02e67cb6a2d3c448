// Package breaker wraps calls to flaky collaborators (market data feed,
// language model, database) in circuit breakers with Prometheus metrics.
package breaker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Service names used as metric labels
const (
	ServiceMarket   = "market"
	ServiceLLM      = "llm"
	ServiceDatabase = "database"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Default thresholds per collaborator
const (
	// Market feed: snapshots are cheap to replace with last-known-good
	MarketMinRequests     = 3
	MarketFailureRatio    = 0.5
	MarketOpenTimeout     = 30 * time.Second
	MarketHalfOpenMaxReqs = 1
	MarketCountInterval   = 60 * time.Second

	// LLM calls are slow, give the provider longer to recover
	LLMMinRequests     = 3
	LLMFailureRatio    = 0.6
	LLMOpenTimeout     = 60 * time.Second
	LLMHalfOpenMaxReqs = 2
	LLMCountInterval   = 10 * time.Second

	DBMinRequests     = 10
	DBFailureRatio    = 0.6
	DBOpenTimeout     = 15 * time.Second
	DBHalfOpenMaxReqs = 5
	DBCountInterval   = 10 * time.Second
)

// Manager owns one circuit breaker per collaborator
type Manager struct {
	market   *gobreaker.CircuitBreaker
	llm      *gobreaker.CircuitBreaker
	database *gobreaker.CircuitBreaker
	metrics  *Metrics
}

// Metrics holds Prometheus metrics for circuit breakers
type Metrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			state: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "finsphere_circuit_breaker_state",
					Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
				},
				[]string{"service"},
			),
			requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "finsphere_circuit_breaker_requests_total",
					Help: "Total number of requests through circuit breaker",
				},
				[]string{"service", "result"},
			),
			failures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "finsphere_circuit_breaker_failures_total",
					Help: "Total number of failures tracked by circuit breaker",
				},
				[]string{"service"},
			),
		}
	})
}

// Settings holds circuit breaker configuration for a single service
type Settings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// MarketDefaults returns the default market feed settings
func MarketDefaults() Settings {
	return Settings{
		MinRequests:     MarketMinRequests,
		FailureRatio:    MarketFailureRatio,
		OpenTimeout:     MarketOpenTimeout,
		HalfOpenMaxReqs: MarketHalfOpenMaxReqs,
		CountInterval:   MarketCountInterval,
	}
}

// LLMDefaults returns the default language model settings
func LLMDefaults() Settings {
	return Settings{
		MinRequests:     LLMMinRequests,
		FailureRatio:    LLMFailureRatio,
		OpenTimeout:     LLMOpenTimeout,
		HalfOpenMaxReqs: LLMHalfOpenMaxReqs,
		CountInterval:   LLMCountInterval,
	}
}

// DatabaseDefaults returns the default database settings
func DatabaseDefaults() Settings {
	return Settings{
		MinRequests:     DBMinRequests,
		FailureRatio:    DBFailureRatio,
		OpenTimeout:     DBOpenTimeout,
		HalfOpenMaxReqs: DBHalfOpenMaxReqs,
		CountInterval:   DBCountInterval,
	}
}

// NewManager creates a manager with default settings
func NewManager() *Manager {
	return NewManagerWithSettings(nil, nil, nil)
}

// NewManagerWithSettings creates a manager; nil settings fall back to defaults
func NewManagerWithSettings(marketSettings, llmSettings, dbSettings *Settings) *Manager {
	initMetrics()

	m := &Manager{metrics: globalMetrics}

	if marketSettings == nil {
		s := MarketDefaults()
		marketSettings = &s
	}
	if llmSettings == nil {
		s := LLMDefaults()
		llmSettings = &s
	}
	if dbSettings == nil {
		s := DatabaseDefaults()
		dbSettings = &s
	}

	m.market = m.newBreaker(ServiceMarket, *marketSettings)
	m.llm = m.newBreaker(ServiceLLM, *llmSettings)
	m.database = m.newBreaker(ServiceDatabase, *dbSettings)

	m.updateMetrics(ServiceMarket, m.market.State())
	m.updateMetrics(ServiceLLM, m.llm.State())
	m.updateMetrics(ServiceDatabase, m.database.State())

	return m
}

// NewPassthroughManager creates breakers that never trip, for tests
func NewPassthroughManager() *Manager {
	initMetrics()

	neverTrip := func(counts gobreaker.Counts) bool {
		return false
	}
	passthrough := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name + "_passthrough",
			MaxRequests: 1000,
			Timeout:     time.Millisecond,
			ReadyToTrip: neverTrip,
		})
	}

	return &Manager{
		market:   passthrough(ServiceMarket),
		llm:      passthrough(ServiceLLM),
		database: passthrough(ServiceDatabase),
		metrics:  globalMetrics,
	}
}

func (m *Manager) newBreaker(service string, s Settings) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: s.HalfOpenMaxReqs,
		Interval:    s.CountInterval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			m.updateMetrics(service, to)
		},
	})
}

// Market returns the market feed circuit breaker
func (m *Manager) Market() *gobreaker.CircuitBreaker {
	return m.market
}

// LLM returns the language model circuit breaker
func (m *Manager) LLM() *gobreaker.CircuitBreaker {
	return m.llm
}

// Database returns the database circuit breaker
func (m *Manager) Database() *gobreaker.CircuitBreaker {
	return m.database
}

// Metrics returns the metrics instance for manual recording
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

func (m *Manager) updateMetrics(service string, state gobreaker.State) {
	var stateValue float64
	switch state {
	case gobreaker.StateClosed:
		stateValue = 0
	case gobreaker.StateOpen:
		stateValue = 1
	case gobreaker.StateHalfOpen:
		stateValue = 2
	}
	m.metrics.state.WithLabelValues(service).Set(stateValue)
}

// RecordRequest records a request result for metrics
func (m *Metrics) RecordRequest(service string, success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
		m.failures.WithLabelValues(service).Inc()
	}
	m.requests.WithLabelValues(service, result).Inc()
}

// Execute runs fn through cb and records the outcome under service
func Execute[T any](m *Manager, cb *gobreaker.CircuitBreaker, service string, fn func() (T, error)) (T, error) {
	var zero T

	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	m.metrics.RecordRequest(service, err == nil)
	if err != nil {
		return zero, err
	}

	v, ok := out.(T)
	if !ok {
		return zero, nil
	}
	return v, nil
}
