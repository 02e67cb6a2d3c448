package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/db"
	"github.com/finsphere/finsphere/internal/intervention"
	"github.com/finsphere/finsphere/internal/metrics"
	"github.com/finsphere/finsphere/internal/profile"
	"github.com/finsphere/finsphere/internal/validation"
)

// interventionCheckRequest is sent by the browser extension on navigation
type interventionCheckRequest struct {
	ContextURL      string `json:"context_url" validate:"max=2048"`
	CurrentActivity string `json:"current_activity" validate:"max=200"`
}

// InterventionResponse is the extension's instruction
type InterventionResponse struct {
	intervention.Decision
	InterventionID   string `json:"intervention_id,omitempty"`
	InterventionType string `json:"intervention_type,omitempty"`
}

// handleCheckIntervention decides whether to interrupt the user on the
// page they are visiting. Delivered interventions are stored so the user's
// response can be recorded against them.
func (s *Server) handleCheckIntervention(c *gin.Context) {
	userID := c.Param("user_id")
	ctx := c.Request.Context()

	var req interventionCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err, "Invalid request body")
		return
	}
	v := validation.NewValidator()
	v.Struct(req)
	if err := v.Err(); err != nil {
		s.respondError(c, err, "Invalid intervention check")
		return
	}

	h, err := s.store.LoadHistory(ctx, userID)
	if err != nil {
		s.respondError(c, err, "Failed to load user history")
		return
	}

	now := s.now()
	score := intervention.CurrentStress(h.Biometrics, baselineStress(h), now)
	d := s.interventions.Decide(score, req.ContextURL, intervention.History{
		Interventions: h.Interventions,
		Transactions:  h.Transactions,
	})
	metrics.RecordIntervention(d.ShouldIntervene, string(d.Severity))

	resp := InterventionResponse{Decision: d}
	if !d.ShouldIntervene {
		c.JSON(http.StatusOK, resp)
		return
	}

	record := &profile.InterventionRecord{
		UserID:       userID,
		Severity:     string(d.Severity),
		ContextURL:   req.ContextURL,
		Message:      d.Message,
		DelayMinutes: d.DelayMinutes,
		Timestamp:    now.UTC(),
	}
	if err := s.store.InsertIntervention(ctx, record); err != nil {
		s.respondError(c, err, "Failed to store intervention")
		return
	}
	resp.InterventionID = record.ID
	resp.InterventionType = "overlay"

	_ = s.audit.LogIntervention(ctx, userID, record.ID, record.Severity, record.ContextURL, record.DelayMinutes)

	if s.events != nil {
		if err := s.events.PublishIntervention(ctx, userID, record.ID, record.ContextURL, d); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to publish intervention")
		}
	}

	c.JSON(http.StatusOK, resp)
}

// outcomeRequest records how the user responded to an intervention
type outcomeRequest struct {
	UserAction    string `json:"user_action" validate:"required,oneof=proceeded snoozed cancelled"`
	Effectiveness string `json:"effectiveness" validate:"required,oneof=prevented_purchase ignored unknown"`
}

// handleRecordOutcome stores the user's response, which feeds the
// intervention success rate
func (s *Server) handleRecordOutcome(c *gin.Context) {
	userID := c.Param("user_id")
	interventionID := c.Param("intervention_id")
	ctx := c.Request.Context()

	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err, "Invalid request body")
		return
	}
	v := validation.NewValidator()
	v.Struct(req)
	v.UUID("intervention_id", interventionID)
	if err := v.Err(); err != nil {
		s.respondError(c, err, "Invalid intervention outcome")
		return
	}

	err := s.store.RecordOutcome(ctx, userID, interventionID, req.UserAction, req.Effectiveness)
	if err != nil {
		errMsg := err.Error()
		_ = s.audit.LogOutcome(ctx, userID, interventionID, req.UserAction, req.Effectiveness, false, errMsg)
		s.respondError(c, err, "Failed to record outcome")
		return
	}

	_ = s.audit.LogOutcome(ctx, userID, interventionID, req.UserAction, req.Effectiveness, true, "")

	if s.events != nil {
		if err := s.events.PublishOutcome(ctx, userID, interventionID, req.UserAction, req.Effectiveness); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to publish intervention outcome")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "recorded",
		"intervention_id": interventionID,
		"user_action":     req.UserAction,
		"effectiveness":   req.Effectiveness,
	})
}

// handleGetDashboard returns the user's at-a-glance state
func (s *Server) handleGetDashboard(c *gin.Context) {
	userID := c.Param("user_id")

	h, err := s.store.LoadHistory(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		s.respondError(c, err, "Failed to load user history")
		return
	}

	c.JSON(http.StatusOK, intervention.BuildDashboard(intervention.DashboardInput{
		Biometrics:     h.Biometrics,
		Transactions:   h.Transactions,
		Interventions:  h.Interventions,
		Financials:     h.Financials,
		BaselineStress: baselineStress(h),
	}, s.now()))
}

// baselineStress is the user's mean reading on the 0-1 scale, or zero when
// they have no readings
func baselineStress(h profile.History) float64 {
	if len(h.Biometrics) == 0 {
		return 0
	}
	return profile.Build(h).StressBaseline / 10
}
