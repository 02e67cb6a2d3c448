package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/audit"
	"github.com/finsphere/finsphere/internal/db"
	"github.com/finsphere/finsphere/internal/profile"
	"github.com/finsphere/finsphere/internal/stress"
	"github.com/finsphere/finsphere/internal/validation"
)

// MaxClockSkew is how far past server time a client timestamp may be
const MaxClockSkew = 5 * time.Minute

// eventTime resolves a client timestamp, defaulting to now. A timestamp
// beyond MaxClockSkew is reported on v.
func (s *Server) eventTime(v *validation.Validator, ts *time.Time) time.Time {
	now := s.now().UTC()
	if ts == nil || ts.IsZero() {
		return now
	}
	if ts.After(now.Add(MaxClockSkew)) {
		v.AddError("timestamp", "must not be in the future")
	}
	return ts.UTC()
}

// biometricRequest is one wearable sample
type biometricRequest struct {
	HeartRate float64    `json:"heart_rate" validate:"gt=0,lte=250"`
	HRV       float64    `json:"hrv_ms" validate:"gte=0,lte=500"`
	Source    string     `json:"source"`
	Timestamp *time.Time `json:"timestamp"`
}

// StressAssessment is the immediate answer to a biometric sample
type StressAssessment struct {
	UserID       string    `json:"user_id"`
	ReadingID    string    `json:"reading_id"`
	Timestamp    time.Time `json:"timestamp"`
	IsStressed   bool      `json:"is_stressed"`
	StressScore  float64   `json:"stress_score"`
	StressLevel  string    `json:"stress_level"`
	TriggerEvent string    `json:"trigger_event,omitempty"`
}

// handleIngestBiometrics scores and stores a wearable sample
func (s *Server) handleIngestBiometrics(c *gin.Context) {
	userID := c.Param("user_id")

	var req biometricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err, "Invalid request body")
		return
	}

	v := validation.NewValidator()
	v.Struct(req)
	v.Finite("heart_rate", req.HeartRate)
	v.Finite("hrv_ms", req.HRV)
	ts := s.eventTime(v, req.Timestamp)
	if err := v.Err(); err != nil {
		s.respondError(c, err, "Invalid biometric reading")
		return
	}

	reading := &profile.BiometricReading{
		UserID:      userID,
		HeartRate:   req.HeartRate,
		HRV:         req.HRV,
		StressScore: stress.Score(req.HeartRate, req.HRV),
		Timestamp:   ts,
	}
	if err := s.store.InsertBiometric(c.Request.Context(), reading); err != nil {
		s.respondError(c, err, "Failed to store biometric reading")
		return
	}

	acute := stress.Acute(req.HeartRate, req.HRV)
	resp := StressAssessment{
		UserID:      userID,
		ReadingID:   reading.ID,
		Timestamp:   reading.Timestamp,
		IsStressed:  acute,
		StressScore: reading.StressScore,
		StressLevel: stress.Level(reading.StressScore),
	}
	if acute {
		resp.TriggerEvent = "Physiological Stress Detected"
	}

	_ = s.audit.Log(c.Request.Context(), &audit.Event{
		EventType: audit.EventTypeBiometricIngested,
		Severity:  audit.SeverityInfo,
		UserID:    userID,
		IPAddress: c.ClientIP(),
		Resource:  reading.ID,
		Action:    "Biometric reading stored",
		Success:   true,
		Metadata: map[string]any{
			"stress_score": reading.StressScore,
			"is_stressed":  acute,
			"source":       req.Source,
		},
	})

	c.JSON(http.StatusCreated, resp)
}

// transactionRequest is one purchase
type transactionRequest struct {
	Amount    float64    `json:"amount" validate:"gt=0"`
	Currency  string     `json:"currency" validate:"omitempty,len=3"`
	Merchant  string     `json:"merchant" validate:"required,max=200"`
	Category  string     `json:"category" validate:"max=64"`
	Timestamp *time.Time `json:"timestamp"`
}

// handleIngestTransaction stores a purchase together with the stress level
// the user was under when making it
func (s *Server) handleIngestTransaction(c *gin.Context) {
	userID := c.Param("user_id")
	ctx := c.Request.Context()

	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err, "Invalid request body")
		return
	}

	v := validation.NewValidator()
	v.Struct(req)
	v.Finite("amount", req.Amount)
	ts := s.eventTime(v, req.Timestamp)
	if err := v.Err(); err != nil {
		s.respondError(c, err, "Invalid transaction")
		return
	}

	var stressAtTime float64
	latest, err := s.store.LatestBiometric(ctx, userID)
	switch {
	case err == nil:
		stressAtTime = latest.StressScore
	case errors.Is(err, db.ErrNotFound):
	default:
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load latest biometric, recording stress as 0")
	}

	txn := &profile.Transaction{
		UserID:       userID,
		Amount:       req.Amount,
		Category:     validation.SanitizeInput(req.Category),
		Merchant:     validation.SanitizeInput(req.Merchant),
		StressAtTime: stressAtTime,
		Timestamp:    ts,
	}
	if err := s.store.InsertTransaction(ctx, txn); err != nil {
		s.respondError(c, err, "Failed to store transaction")
		return
	}

	_ = s.audit.Log(ctx, &audit.Event{
		EventType: audit.EventTypeTransactionIngested,
		Severity:  audit.SeverityInfo,
		UserID:    userID,
		IPAddress: c.ClientIP(),
		Resource:  txn.ID,
		Action:    "Transaction stored",
		Success:   true,
		Metadata: map[string]any{
			"amount":         txn.Amount,
			"category":       txn.Category,
			"stress_at_time": stressAtTime,
		},
	})

	c.JSON(http.StatusCreated, gin.H{
		"status":         "recorded",
		"id":             txn.ID,
		"stress_at_time": stressAtTime,
	})
}
