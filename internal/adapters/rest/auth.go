package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ewilliams-labs/cadence/internal/goroutine"
)

var errAuthDisabled = errors.New("sign-in is not configured")

// Login redirects the browser to the catalog consent page.
func (h *Handler) Login(c *gin.Context) {
	if h.auth == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, errorResponse{Error: errAuthDisabled.Error()})
		return
	}
	u, err := h.auth.AuthorizationURL()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}

// Callback completes sign-in and starts the default song load.
func (h *Handler) Callback(c *gin.Context) {
	if h.auth == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, errorResponse{Error: errAuthDisabled.Error()})
		return
	}
	if err := h.auth.HandleCallback(c.Request.Context(), c.Request.URL.String()); err != nil {
		h.logger.Warnf("rest: sign-in callback rejected: %v", err)
		h.writeError(c, err)
		return
	}

	goroutine.SafeGo(h.logger, "default-songs", func() {
		h.orch.LoadDefaultSongs(h.background)
	})
	c.JSON(http.StatusOK, gin.H{"status": "authenticated"})
}

// Logout forgets every token.
func (h *Handler) Logout(c *gin.Context) {
	if h.auth != nil {
		h.auth.Logout()
	}
	c.Status(http.StatusNoContent)
}
