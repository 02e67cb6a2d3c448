package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/audit"
	"github.com/finsphere/finsphere/internal/db"
	"github.com/finsphere/finsphere/internal/metrics"
	"github.com/finsphere/finsphere/internal/profile"
	"github.com/finsphere/finsphere/internal/risk"
	"github.com/finsphere/finsphere/internal/validation"
)

// statusFor maps domain failures to HTTP status codes
func statusFor(err error) int {
	var verrs validation.ValidationErrors
	switch {
	case errors.Is(err, db.ErrNotFound), errors.Is(err, profile.ErrNoFinancials):
		return http.StatusNotFound
	case risk.IsInputError(err), errors.Is(err, profile.ErrInvalidProfile), errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Internal errors are logged and hidden
// from the client.
func (s *Server) respondError(c *gin.Context, err error, message string) {
	status := statusFor(err)

	body := gin.H{"error": message}
	switch status {
	case http.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		metrics.RecordError("internal", "api")
	case http.StatusUnprocessableEntity:
		body["details"] = err.Error()
		s.logInvalidInput(c, err)
	default:
		body["details"] = err.Error()
	}

	_ = c.Error(err)
	c.JSON(status, body)
}

// badRequest rejects a malformed request body or parameter
func (s *Server) badRequest(c *gin.Context, err error, message string) {
	s.logInvalidInput(c, err)
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func (s *Server) logInvalidInput(c *gin.Context, err error) {
	_ = s.audit.LogSecurityEvent(c.Request.Context(), audit.EventTypeInvalidInput,
		c.Param("user_id"), c.ClientIP(), c.FullPath(), "Invalid input",
		map[string]any{"error": err.Error()})
}
