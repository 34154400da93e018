package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/workout"
)

// Workouts is the read side of the workout manager plus manual song logging.
type Workouts interface {
	State() workout.State
	Current() (domain.WorkoutSession, bool)
	History() []domain.WorkoutSession
	Stats() domain.WorkoutStats
	AddSongToSession(title string)
}

// MetronomeControl is the click scheduler as exposed over HTTP.
type MetronomeControl interface {
	Start(bpm int) error
	Stop()
	SetBPM(bpm int) error
	SetEnabled(enabled bool)
	BPM() int
	Running() bool
	Enabled() bool
}

// Authenticator runs the catalog sign-in flow.
type Authenticator interface {
	AuthorizationURL() (string, error)
	HandleCallback(ctx context.Context, callbackURL string) error
	Logout()
}

// Pinger probes catalog reachability for /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the handler. Auth, Pinger and Playback are optional.
type Deps struct {
	Orchestrator *services.Orchestrator
	Workouts     Workouts
	Metronome    MetronomeControl
	Catalog      ports.CatalogClient
	Auth         Authenticator
	Pinger       Pinger
	Playback     *services.PlaybackMonitor
	CORSOrigins  []string
	Logger       logrus.FieldLogger
}

// Handler manages the HTTP interface for the runner's companion app.
type Handler struct {
	orch      *services.Orchestrator
	workouts  Workouts
	metronome MetronomeControl
	catalog   ports.CatalogClient
	auth      Authenticator
	pinger    Pinger
	playback  *services.PlaybackMonitor
	logger    logrus.FieldLogger

	router *gin.Engine
	// background carries work that outlives a request, such as the song
	// load after sign-in.
	background context.Context
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(ctx context.Context, deps Deps) *Handler {
	h := &Handler{
		orch:       deps.Orchestrator,
		workouts:   deps.Workouts,
		metronome:  deps.Metronome,
		catalog:    deps.Catalog,
		auth:       deps.Auth,
		pinger:     deps.Pinger,
		playback:   deps.Playback,
		logger:     deps.Logger,
		router:     gin.New(),
		background: ctx,
	}
	if h.logger == nil {
		h.logger = logrus.StandardLogger()
	}

	h.router.Use(gin.Recovery(), h.requestLogger())
	h.router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.router.GET("/health", h.Health)
	h.router.GET("/ready", h.Ready)

	auth := h.router.Group("/auth")
	auth.GET("/login", h.Login)
	auth.GET("/callback", h.Callback)
	auth.POST("/logout", h.Logout)

	h.router.GET("/presets", h.Presets)
	h.router.GET("/songs", h.Songs)
	h.router.GET("/songs/random", h.RandomSong)

	workouts := h.router.Group("/workouts")
	workouts.POST("", h.StartWorkout)
	workouts.POST("/stop", h.StopWorkout)
	workouts.POST("/songs", h.LogSong)
	workouts.GET("/current", h.CurrentWorkout)
	workouts.GET("/history", h.WorkoutHistory)
	workouts.GET("/stats", h.WorkoutStats)

	metronome := h.router.Group("/metronome")
	metronome.GET("", h.MetronomeStatus)
	metronome.POST("/start", h.StartMetronome)
	metronome.POST("/stop", h.StopMetronome)
	metronome.PUT("/bpm", h.SetMetronomeBPM)
	metronome.PUT("/enabled", h.SetMetronomeEnabled)

	playback := h.router.Group("/playback")
	playback.GET("", h.Playback)
	playback.POST("/play", h.Play)
	playback.POST("/pause", h.Pause)
	playback.POST("/resume", h.Resume)

	h.router.GET("/me", h.Profile)
	h.router.GET("/me/player/devices", h.Devices)
	h.router.GET("/notice", h.Notice)
}

// Health is a liveness check.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Cadence is live"})
}

// Ready reports whether the catalog API is reachable.
func (h *Handler) Ready(c *gin.Context) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warnf("rest: readiness probe failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Presets lists the cadence presets, run lengths and session types.
func (h *Handler) Presets(c *gin.Context) {
	out := presetsResponse{
		BPM:          make([]presetDTO, 0, len(domain.BPMPresets)),
		SessionTypes: []string{string(domain.SessionTimed), string(domain.SessionFreeRun)},
		DefaultBPM:   domain.DefaultBPM,
	}
	for _, p := range domain.BPMPresets {
		out.BPM = append(out.BPM, presetDTO{BPM: p.BPM, Label: p.Label, Description: p.Description})
	}
	for _, d := range domain.RunningDurations {
		out.DurationMinutes = append(out.DurationMinutes, int(d/time.Minute))
	}
	c.JSON(http.StatusOK, out)
}

// Notice returns the current transient message, or 204 when there is none.
func (h *Handler) Notice(c *gin.Context) {
	n, ok := h.orch.Notices().Current()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("rest: request")
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
