package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/finsphere/finsphere/internal/audit"
)

const maxEvaluationsLimit = 100

// handleGetRecommendation builds a full recommendation from stored history
// and the current market
func (s *Server) handleGetRecommendation(c *gin.Context) {
	userID := c.Param("user_id")

	rec, err := s.advisor.Recommend(c.Request.Context(), userID)
	if err != nil {
		s.respondError(c, err, "Failed to generate recommendation")
		return
	}

	_ = s.audit.Log(c.Request.Context(), &audit.Event{
		EventType: audit.EventTypeRecommendationIssued,
		Severity:  audit.SeverityInfo,
		UserID:    userID,
		IPAddress: c.ClientIP(),
		Action:    "Recommendation issued",
		Success:   true,
		Metadata: map[string]any{
			"risk_level":         string(rec.RiskLevel),
			"monthly_sip_amount": rec.MonthlySIPAmount,
			"confidence_score":   rec.ConfidenceScore,
			"llm_fallback":       rec.Insights.Fallback,
		},
	})

	c.JSON(http.StatusOK, rec)
}

// handleGetRiskAssessment evaluates risk without sizing a recommendation.
// ?explain=true attaches a natural-language explanation.
func (s *Server) handleGetRiskAssessment(c *gin.Context) {
	explain, err := parseBoolQuery(c, "explain")
	if err != nil {
		s.badRequest(c, err, "Invalid explain parameter")
		return
	}

	a, err := s.advisor.Assess(c.Request.Context(), c.Param("user_id"), explain)
	if err != nil {
		s.respondError(c, err, "Failed to evaluate risk")
		return
	}

	c.JSON(http.StatusOK, a)
}

// handleListRiskEvaluations returns persisted evaluations, newest first
func (s *Server) handleListRiskEvaluations(c *gin.Context) {
	userID := c.Param("user_id")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxEvaluationsLimit {
			s.badRequest(c, fmt.Errorf("limit must be between 1 and %d", maxEvaluationsLimit), "Invalid limit parameter")
			return
		}
		limit = n
	}

	records, err := s.audit.Evaluations(c.Request.Context(), userID, limit)
	if err != nil {
		s.respondError(c, err, "Failed to load risk evaluations")
		return
	}
	if records == nil {
		records = []audit.EvaluationRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":     userID,
		"evaluations": records,
		"count":       len(records),
	})
}

func parseBoolQuery(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return v, nil
}
