package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type metronomeBPMRequest struct {
	BPM int `json:"bpm" binding:"required,gt=0"`
}

type metronomeEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *Handler) metronomeStatus() metronomeDTO {
	return metronomeDTO{BPM: h.metronome.BPM(), Running: h.metronome.Running(), Enabled: h.metronome.Enabled()}
}

// MetronomeStatus reports rate and run state.
func (h *Handler) MetronomeStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.metronomeStatus())
}

// StartMetronome starts clicking. An empty body keeps the current rate.
func (h *Handler) StartMetronome(c *gin.Context) {
	bpm := h.metronome.BPM()
	if c.Request.ContentLength > 0 {
		var req metronomeBPMRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		bpm = req.BPM
	}
	if err := h.metronome.Start(bpm); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.metronomeStatus())
}

// StopMetronome silences the clicks.
func (h *Handler) StopMetronome(c *gin.Context) {
	h.metronome.Stop()
	c.JSON(http.StatusOK, h.metronomeStatus())
}

// SetMetronomeBPM retunes the clicks, live if running.
func (h *Handler) SetMetronomeBPM(c *gin.Context) {
	var req metronomeBPMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.orch.SetBPM(req.BPM); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.metronomeStatus())
}

// SetMetronomeEnabled toggles the metronome; disabling stops it.
func (h *Handler) SetMetronomeEnabled(c *gin.Context) {
	var req metronomeEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.metronome.SetEnabled(*req.Enabled)
	c.JSON(http.StatusOK, h.metronomeStatus())
}
