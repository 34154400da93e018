package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// bpmQuery reads ?bpm=, defaulting to the standard cadence.
func bpmQuery(c *gin.Context) (int, bool) {
	raw := c.Query("bpm")
	if raw == "" {
		return domain.DefaultBPM, true
	}
	bpm, err := strconv.Atoi(raw)
	if err != nil || bpm <= 0 {
		badRequest(c, "bpm must be a positive integer")
		return 0, false
	}
	return bpm, true
}

// Songs matches songs to ?bpm=. A catalog failure still answers 200 with
// the built-in list and fallback set.
func (h *Handler) Songs(c *gin.Context) {
	bpm, ok := bpmQuery(c)
	if !ok {
		return
	}
	res := h.orch.LoadSongs(c.Request.Context(), bpm)
	c.JSON(http.StatusOK, toSongsResponse(res))
}

// RandomSong picks one song near ?bpm= from the last matched pool.
func (h *Handler) RandomSong(c *gin.Context) {
	bpm, ok := bpmQuery(c)
	if !ok {
		return
	}
	song, err := h.orch.RandomSong(bpm)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSongDTO(song))
}
