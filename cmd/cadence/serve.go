package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/adapters/rest"
	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/goroutine"
	"github.com/ewilliams-labs/cadence/internal/worker"
	"github.com/ewilliams-labs/cadence/internal/workout"
)

const (
	shutdownTimeout = 10 * time.Second
	refreshMargin   = time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the metronome, workout clock and matcher",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().Int("bpm", domain.DefaultBPM, "Initial metronome BPM")
	serveCmd.Flags().String("sink", "bell", "Click sink: bell, pcm or none")
	serveCmd.Flags().String("click-file", "", "MP3 click sample (default: synthesized 800 Hz beep)")
	serveCmd.Flags().String("history-driver", "memory", "Workout history store: memory, sqlite or postgres")
	serveCmd.Flags().String("sqlite-path", "cadence.db", "SQLite history file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Driven adapters: history store, catalog, click output
	store, err := openHistory(ctx, cfg.History)
	if err != nil {
		return err
	}
	defer store.Close()

	catalog := newCatalog(ctx, cfg, log)
	if cfg.Spotify.ClientID == "" {
		log.Warn("startup: spotify.client_id is empty, sign-in is disabled and songs come from the built-in list")
	}

	scheduler, err := newMetronome(cfg, os.Stdout, log)
	if err != nil {
		return err
	}

	// 2. Background persistence, fed by the workout manager
	pool := worker.NewPool(store, cfg.History.QueueSize, log)
	pool.Start(cfg.History.Workers)

	workouts := workout.NewManager(workout.Options{
		Persister:    pool,
		TickInterval: cfg.Workout.TickInterval,
		Logger:       log,
	})
	history, err := store.LoadSessions(ctx)
	if err != nil {
		log.Warnf("startup: could not load workout history: %v", err)
	} else {
		workouts.Restore(history)
		log.Infof("startup: restored %d workouts", len(history))
	}
	workouts.OnFinished.Subscribe(func(s domain.WorkoutSession) {
		log.WithFields(logrus.Fields{
			"session":  s.ID,
			"duration": domain.FormatDuration(s.Duration),
			"songs":    len(s.Songs),
		}).Info("workout: finished")
	})

	// 3. Core services
	orch := services.NewOrchestrator(services.OrchestratorOptions{
		Catalog:   catalog.client,
		Matcher:   newMatcher(cfg, catalog.client, log),
		Workouts:  workouts,
		Metronome: scheduler,
		Notices:   services.NewNotices(services.NoticeTTL),
		Logger:    log,
	})
	monitor := services.NewPlaybackMonitor(catalog.client, services.PlaybackPollInterval, log)

	goroutine.SafeGo(log, "playback-monitor", func() { monitor.Run(ctx) })
	goroutine.SafeGo(log, "token-refresh", func() { catalog.flow.KeepFresh(ctx, catalog.tokens.ExpiresAt, refreshMargin) })
	if catalog.client.Authenticated() {
		goroutine.SafeGo(log, "default-songs", func() { orch.LoadDefaultSongs(ctx) })
	}

	// 4. Driving adapter
	deps := rest.Deps{
		Orchestrator: orch,
		Workouts:     workouts,
		Metronome:    scheduler,
		Catalog:      catalog.client,
		Pinger:       catalog.client,
		Playback:     monitor,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Logger:       log,
	}
	if cfg.Spotify.ClientID != "" {
		deps.Auth = catalog.flow
	}
	handler := rest.NewHandler(ctx, deps)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Cadence API is running on %s", cfg.Server.Addr)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown error: %v", err)
		}
	}

	// Stopping the run persists the open session before the pool drains.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	scheduler.Stop()
	orch.Shutdown(shutdownCtx)
	pool.Stop()

	return runErr
}
