package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finsphere/finsphere/internal/audit"
	"github.com/finsphere/finsphere/internal/db"
	"github.com/finsphere/finsphere/internal/profile"
	"github.com/finsphere/finsphere/internal/validation"
)

// profileRequest is the body of PUT /users/:user_id/profile
type profileRequest struct {
	Name            string   `json:"name" validate:"max=200"`
	Email           string   `json:"email" validate:"omitempty,email"`
	MonthlyIncome   float64  `json:"monthly_income" validate:"gte=0"`
	MonthlyExpenses float64  `json:"monthly_expenses" validate:"gt=0"`
	Savings         float64  `json:"savings" validate:"gte=0"`
	Horizon         string   `json:"investment_horizon" validate:"omitempty,oneof=short medium long"`
	Goals           []string `json:"investment_goals" validate:"max=10,dive,min=1,max=64"`
}

// handleGetProfile returns the stored user record
func (s *Server) handleGetProfile(c *gin.Context) {
	u, err := s.store.GetUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		s.respondError(c, err, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, u)
}

// handlePutProfile creates or replaces the user's self-declared financials
func (s *Server) handlePutProfile(c *gin.Context) {
	userID := c.Param("user_id")

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err, "Invalid request body")
		return
	}

	v := validation.NewValidator()
	v.Struct(req)
	if err := v.Err(); err != nil {
		s.respondError(c, err, "Invalid profile")
		return
	}

	u := &db.User{
		ID:              userID,
		Name:            validation.SanitizeInput(req.Name),
		Email:           req.Email,
		MonthlyIncome:   req.MonthlyIncome,
		MonthlyExpenses: req.MonthlyExpenses,
		Savings:         req.Savings,
		Horizon:         profile.Horizon(req.Horizon),
		Goals:           req.Goals,
	}
	if err := s.store.UpsertUser(c.Request.Context(), u); err != nil {
		s.respondError(c, err, "Failed to save profile")
		return
	}

	_ = s.audit.Log(c.Request.Context(), &audit.Event{
		EventType: audit.EventTypeProfileUpdated,
		Severity:  audit.SeverityInfo,
		UserID:    userID,
		IPAddress: c.ClientIP(),
		Resource:  userID,
		Action:    "Profile updated",
		Success:   true,
	})

	c.JSON(http.StatusOK, u)
}
