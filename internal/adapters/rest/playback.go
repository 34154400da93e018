package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// playRequest plays either a specific song or, with only bpm set, a random
// one near that rate.
type playRequest struct {
	URI    string `json:"uri" binding:"required_without=BPM"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	BPM    int    `json:"bpm" binding:"omitempty,gt=0"`
}

// Playback returns what the player reports, or 204 when nothing is playing.
func (h *Handler) Playback(c *gin.Context) {
	var (
		state  *domain.PlaybackState
		polled bool
	)
	if h.playback != nil {
		state, polled = h.playback.Latest()
	}
	if !polled {
		fresh, err := h.catalog.CurrentPlayback(c.Request.Context())
		if err != nil {
			h.writeError(c, err)
			return
		}
		state = fresh
	}
	if state == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, toPlaybackDTO(*state))
}

// Play starts a song and logs it to the open session.
func (h *Handler) Play(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if req.URI == "" {
		song, err := h.orch.PlayRandom(c.Request.Context(), req.BPM)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toSongDTO(song))
		return
	}

	song := domain.Song{URI: req.URI, Title: req.Title, Artist: req.Artist, BPM: req.BPM}
	if song.Title == "" {
		song.Title = req.URI
	}
	if err := h.orch.PlaySong(c.Request.Context(), song); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSongDTO(song))
}

// Pause pauses the player.
func (h *Handler) Pause(c *gin.Context) {
	if err := h.orch.Pause(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Resume resumes the player.
func (h *Handler) Resume(c *gin.Context) {
	if err := h.orch.Resume(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Devices lists the user's playback targets.
func (h *Handler) Devices(c *gin.Context) {
	devices, err := h.catalog.Devices(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]deviceDTO, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceDTO(d))
	}
	c.JSON(http.StatusOK, out)
}

// Profile returns the signed-in user.
func (h *Handler) Profile(c *gin.Context) {
	p, err := h.catalog.CurrentUser(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileDTO{ID: p.ID, DisplayName: p.DisplayName, Email: p.Email, Country: p.Country, Product: p.Product})
}
