package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsphere/finsphere/internal/advisor"
	"github.com/finsphere/finsphere/internal/allocation"
	"github.com/finsphere/finsphere/internal/market"
	"github.com/finsphere/finsphere/internal/risk"
)

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func TestEvent_Defaults(t *testing.T) {
	event := &Event{
		EventType: EventTypeInterventionTriggered,
		Severity:  SeverityInfo,
		Action:    "Intervention shown",
		Success:   true,
	}

	// ID and timestamp are set by the logger
	assert.Equal(t, uuid.Nil, event.ID)
	assert.True(t, event.Timestamp.IsZero())
}

func TestLogger_LogWithoutDatabase(t *testing.T) {
	logger := NewLogger(nil, true)

	event := &Event{
		EventType: EventTypeBiometricIngested,
		Severity:  SeverityInfo,
		UserID:    "user123",
		Action:    "Biometric reading stored",
		Success:   true,
	}

	err := logger.Log(context.Background(), event)
	assert.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestLogger_Disabled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	logger := NewLogger(mock, false)

	event := &Event{EventType: EventTypeInvalidInput, Action: "bad request"}
	require.NoError(t, logger.Log(context.Background(), event))
	assert.Equal(t, uuid.Nil, event.ID)

	// No statements expected
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogger_PersistsEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	logger := NewLogger(mock, true)
	logger.now = func() time.Time { return fixedNow }

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(
			pgxmock.AnyArg(), fixedNow, "INTERVENTION_TRIGGERED", "WARNING", "user-1", "",
			"", "int-1", "Intervention shown", true, "",
			pgxmock.AnyArg(), "", int64(0),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = logger.LogIntervention(context.Background(), "user-1", "int-1", "high", "https://www.amazon.in/cart", 2)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogger_PersistFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	logger := NewLogger(mock, true)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("disk full"))

	err = logger.LogOutcome(context.Background(), "user-1", "int-1", "snoozed", "prevented_purchase", true, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogger_LogSecurityEvent(t *testing.T) {
	logger := NewLogger(nil, true)

	err := logger.LogSecurityEvent(
		context.Background(),
		EventTypeRateLimitExceeded,
		"user123",
		"192.168.1.1",
		"/api/v1/recommendations",
		"Rate limit exceeded",
		map[string]any{"limit": 20},
	)
	assert.NoError(t, err)
}

func TestQueryBuildsPlaceholdersInOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	logger := NewLogger(mock, true)
	success := false
	start := fixedNow.Add(-24 * time.Hour)

	cols := []string{
		"id", "timestamp", "event_type", "severity", "user_id", "ip_address",
		"user_agent", "resource", "action", "success", "error_message",
		"metadata", "request_id", "duration_ms",
	}
	id := uuid.New()
	rows := pgxmock.NewRows(cols).AddRow(
		id, fixedNow, "INTERVENTION_OUTCOME", "WARNING", "user-1", "",
		"", "int-1", "Intervention outcome recorded", false, "not found",
		[]byte(`{"user_action":"snoozed"}`), "", int64(0),
	)

	mock.ExpectQuery(`WHERE event_type = \$1 AND user_id = \$2 AND timestamp >= \$3 AND success = \$4\s+ORDER BY timestamp DESC\s+LIMIT \$5`).
		WithArgs("INTERVENTION_OUTCOME", "user-1", start, false, 10).
		WillReturnRows(rows)

	events, err := logger.Query(context.Background(), &QueryFilters{
		EventType: EventTypeInterventionOutcome,
		UserID:    "user-1",
		StartTime: start,
		Success:   &success,
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.Equal(t, EventTypeInterventionOutcome, events[0].EventType)
	assert.Equal(t, "snoozed", events[0].Metadata["user_action"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryWithoutDatabase(t *testing.T) {
	logger := NewLogger(nil, true)
	events, err := logger.Query(context.Background(), &QueryFilters{})
	assert.NoError(t, err)
	assert.Nil(t, events)
}

func sampleAssessment() *advisor.Assessment {
	snap, _ := market.NewSnapshot(market.Quote{
		Timestamp:    fixedNow,
		NiftyChange:  -3.5,
		SensexChange: -3.2,
		VIXLevel:     28,
		GoldPrice:    62000,
		USDINR:       83.1,
		BondYield10Y: 7.1,
	})

	return &advisor.Assessment{
		UserID: "user-1",
		Market: snap,
		Metrics: &risk.Metrics{
			OverallRiskScore: 1.25,
			CategoryRisks: map[risk.Category]float64{
				risk.CategoryMarket: 6.25, risk.CategoryUserBehavioral: 0,
				risk.CategoryLiquidity: 0, risk.CategorySystemic: 0, risk.CategoryRegulatory: 0,
			},
			ActiveRiskEvents: []risk.Event{{
				Rule:              "market_crash",
				Category:          risk.CategoryMarket,
				Severity:          risk.SeverityHigh,
				Action:            risk.ActionCrash,
				Description:       "Market crash detected",
				Confidence:        0.9,
				AffectedAssets:    []allocation.AssetClass{allocation.Equity},
				TriggerConditions: map[string]any{"nifty_change": -3.5, "sensex_change": -3.2},
			}},
			RiskAdjustedAllocation: allocation.New(0.45, 0.34, 0.16, 0.05),
			ConfidenceAdjustment:   1.0,
			MonitoringAlerts:       []string{"1 high-risk events detected"},
		},
		Summary:     "Overall risk level: Low (1.2/10)",
		EvaluatedAt: fixedNow,
	}
}

func TestRecordEvaluationPersistsTriggerConditions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	logger := NewLogger(mock, true)
	a := sampleAssessment()

	var captured []byte
	mock.ExpectExec("INSERT INTO risk_evaluations").
		WithArgs(
			pgxmock.AnyArg(), "user-1", 1.25, 1.0,
			pgxmock.AnyArg(), captureArg{dst: &captured}, pgxmock.AnyArg(), pgxmock.AnyArg(),
			"Overall risk level: Low (1.2/10)", fixedNow,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, logger.RecordEvaluation(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())

	var events []map[string]any
	require.NoError(t, json.Unmarshal(captured, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "market_crash", events[0]["rule"])
	assert.Equal(t, "high", events[0]["severity"])
	conditions := events[0]["trigger_conditions"].(map[string]any)
	assert.InDelta(t, -3.5, conditions["nifty_change"], 1e-9)
}

func TestRecordEvaluationRejectsIncomplete(t *testing.T) {
	logger := NewLogger(nil, true)
	assert.ErrorIs(t, logger.RecordEvaluation(context.Background(), &advisor.Assessment{UserID: "u"}), ErrIncompleteAssessment)
	assert.ErrorIs(t, logger.RecordEvaluation(context.Background(), nil), ErrIncompleteAssessment)
}

func TestRecordEvaluationPersistFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	logger := NewLogger(mock, true)

	mock.ExpectExec("INSERT INTO risk_evaluations").WillReturnError(errors.New("timeout"))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = logger.RecordEvaluation(context.Background(), sampleAssessment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist risk evaluation")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	logger := NewLogger(mock, true)

	cols := []string{
		"id", "user_id", "overall_risk_score", "confidence_adjustment",
		"category_risks", "events", "allocation", "market", "summary", "evaluated_at",
	}
	id := uuid.New()
	rows := pgxmock.NewRows(cols).AddRow(
		id, "user-1", 1.25, 1.0,
		[]byte(`{"market":6.25}`),
		[]byte(`[{"rule":"market_crash","category":"market","severity":"high","trigger_conditions":{"nifty_change":-3.5}}]`),
		[]byte(`{"equity":0.45,"debt":0.34,"liquid":0.16,"gold":0.05}`),
		[]byte(`{"vix_level":28}`),
		"summary", fixedNow,
	)
	mock.ExpectQuery("FROM risk_evaluations").WithArgs("user-1", 20).WillReturnRows(rows)

	records, err := logger.Evaluations(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, risk.SeverityHigh, records[0].Events[0].Severity)
	assert.InDelta(t, 6.25, records[0].CategoryRisks[risk.CategoryMarket], 1e-9)
	assert.InDelta(t, 0.45, records[0].Allocation["equity"], 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, evaluationSeverity(&risk.Metrics{OverallRiskScore: 8.5}))
	assert.Equal(t, SeverityWarning, evaluationSeverity(&risk.Metrics{OverallRiskScore: 6.5}))
	assert.Equal(t, SeverityInfo, evaluationSeverity(&risk.Metrics{OverallRiskScore: 2}))
}

// captureArg matches any []byte argument and keeps a copy
type captureArg struct {
	dst *[]byte
}

func (c captureArg) Match(v any) bool {
	b, ok := v.([]byte)
	if !ok {
		return false
	}
	*c.dst = append([]byte(nil), b...)
	return true
}
