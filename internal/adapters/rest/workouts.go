package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

type startWorkoutRequest struct {
	TargetBPM       int    `json:"target_bpm" binding:"required,gt=0,lte=300"`
	Type            string `json:"type" binding:"required,oneof=timed free_run"`
	DurationSeconds int    `json:"duration_seconds" binding:"min=0"`
}

type logSongRequest struct {
	Title string `json:"title" binding:"required"`
}

var errNoActiveWorkout = errorResponse{Error: "no workout is active", Code: "NO_SESSION"}

// StartWorkout opens a session and starts the metronome and song load.
func (h *Handler) StartWorkout(c *gin.Context) {
	var req startWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	session, err := h.orch.StartRun(c.Request.Context(), req.TargetBPM, domain.SessionType(req.Type), time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionDTO(session))
}

// StopWorkout finalizes the open session.
func (h *Handler) StopWorkout(c *gin.Context) {
	session, ok := h.orch.StopRun(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, errNoActiveWorkout)
		return
	}
	c.JSON(http.StatusOK, toSessionDTO(session))
}

// LogSong records a song played outside the app against the open session.
func (h *Handler) LogSong(c *gin.Context) {
	var req logSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if _, ok := h.workouts.Current(); !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, errNoActiveWorkout)
		return
	}
	h.workouts.AddSongToSession(req.Title)

	session, _ := h.workouts.Current()
	c.JSON(http.StatusOK, toSessionDTO(session))
}

// CurrentWorkout returns the live state, idle included.
func (h *Handler) CurrentWorkout(c *gin.Context) {
	c.JSON(http.StatusOK, toStateDTO(h.workouts.State()))
}

// WorkoutHistory lists finalized sessions, oldest first.
func (h *Handler) WorkoutHistory(c *gin.Context) {
	history := h.workouts.History()
	out := make([]sessionDTO, 0, len(history))
	for _, s := range history {
		out = append(out, toSessionDTO(s))
	}
	c.JSON(http.StatusOK, out)
}

// WorkoutStats summarizes the history.
func (h *Handler) WorkoutStats(c *gin.Context) {
	c.JSON(http.StatusOK, toStatsDTO(h.workouts.Stats()))
}
