package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ewilliams-labs/cadence/internal/adapters/auth"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/metronome"
	"github.com/ewilliams-labs/cadence/internal/workout"
)

const (
	errCodeAuthRequired  = "AUTH_REQUIRED"
	errCodeSessionActive = "SESSION_ACTIVE"
	errCodeNoMatch       = "NO_MATCH"
)

// statusFor maps a service or catalog error onto an HTTP status and an
// optional machine-readable code.
func statusFor(err error) (int, string) {
	var cbErr *auth.CallbackError
	switch {
	case errors.Is(err, ports.ErrAuthenticationRequired):
		return http.StatusUnauthorized, errCodeAuthRequired
	case errors.Is(err, ports.ErrInvalidRequest):
		return http.StatusBadRequest, ""
	case errors.Is(err, ports.ErrNoData):
		return http.StatusNotFound, ""
	case errors.Is(err, ports.ErrNetwork):
		return http.StatusServiceUnavailable, ""
	case errors.Is(err, ports.ErrDecoding), errors.Is(err, ports.ErrApplication):
		return http.StatusBadGateway, ""
	case errors.Is(err, workout.ErrSessionActive):
		return http.StatusConflict, errCodeSessionActive
	case errors.Is(err, workout.ErrDurationRequired),
		errors.Is(err, workout.ErrInvalidBPM),
		errors.Is(err, workout.ErrInvalidSessionType),
		errors.Is(err, metronome.ErrInvalidBPM):
		return http.StatusBadRequest, ""
	case errors.Is(err, services.ErrNoMatch):
		return http.StatusNotFound, errCodeNoMatch
	case errors.As(err, &cbErr),
		errors.Is(err, auth.ErrStateMismatch),
		errors.Is(err, auth.ErrNoPendingAuthorization):
		return http.StatusBadRequest, ""
	default:
		return http.StatusInternalServerError, ""
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorf("rest: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}
