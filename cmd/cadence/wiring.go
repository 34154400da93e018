package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/cadence/internal/adapters/audio"
	"github.com/ewilliams-labs/cadence/internal/adapters/auth"
	"github.com/ewilliams-labs/cadence/internal/adapters/memory"
	"github.com/ewilliams-labs/cadence/internal/adapters/postgres"
	"github.com/ewilliams-labs/cadence/internal/adapters/spotify"
	"github.com/ewilliams-labs/cadence/internal/adapters/sqlite"
	"github.com/ewilliams-labs/cadence/internal/config"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/metronome"
)

type catalogStack struct {
	tokens *spotify.TokenStore
	client *spotify.Client
	flow   *auth.Flow
}

// catalogRetries maps max_retries onto spotify.Options, where zero means
// the default. A configured 0 turns retries off.
func catalogRetries(configured int) int {
	if configured == 0 {
		return -1
	}
	return configured
}

// newCatalog builds the token store, the API client and the sign-in flow.
// A configured refresh token is exchanged right away.
func newCatalog(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) catalogStack {
	tokens := spotify.NewTokenStore()
	client := spotify.NewClient(tokens, spotify.Options{
		BaseURL:         cfg.Spotify.APIBaseURL,
		Logger:          log,
		MaxRetries:      catalogRetries(cfg.Catalog.MaxRetries),
		BaseBackoff:     cfg.Catalog.BaseBackoff,
		MaxBackoff:      cfg.Catalog.MaxBackoff,
		RequestTimeout:  cfg.Catalog.RequestTimeout,
		ResourceTimeout: cfg.Catalog.ResourceTimeout,
		Tracing:         cfg.Catalog.Tracing,
	})
	flow := auth.NewFlow(auth.Config{
		ClientID:    cfg.Spotify.ClientID,
		RedirectURL: cfg.Spotify.RedirectURI,
		AccountsURL: cfg.Spotify.AccountsBaseURL,
		Scopes:      cfg.Spotify.Scopes,
	}, tokens, log)

	if cfg.Spotify.RefreshToken != "" {
		flow.SetRefreshToken(cfg.Spotify.RefreshToken)
		if err := flow.Refresh(ctx); err != nil {
			log.Warnf("startup: refresh with configured token failed, sign in again: %v", err)
		} else {
			log.Info("startup: signed in with configured refresh token")
		}
	}
	return catalogStack{tokens: tokens, client: client, flow: flow}
}

func newMatcher(cfg *config.Config, catalog ports.CatalogClient, log logrus.FieldLogger) *services.Matcher {
	return services.NewMatcher(catalog, services.MatcherOptions{
		PerQueryLimit: cfg.Matching.PerQueryLimit,
		BatchLimit:    cfg.Matching.BatchLimit,
		MaxResults:    cfg.Matching.MaxResults,
		Logger:        log,
	})
}

// loadSample decodes the configured mp3 or synthesizes the default beep.
func loadSample(cfg *config.Config) (audio.Sample, error) {
	if cfg.Metronome.ClickFile != "" {
		return audio.LoadMP3File(cfg.Metronome.ClickFile)
	}
	return audio.Synthesize(audio.DefaultClick)
}

func newMetronome(cfg *config.Config, out io.Writer, log logrus.FieldLogger) (*metronome.Scheduler, error) {
	sample, err := loadSample(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load click sample: %w", err)
	}
	clicker, err := audio.NewClicker(cfg.Metronome.Sink, out, sample)
	if err != nil {
		return nil, err
	}
	return metronome.New(metronome.Options{
		Clicker:  clicker,
		BPM:      cfg.Metronome.BPM,
		Disabled: !cfg.Metronome.Enabled,
		Logger:   log,
	}), nil
}

type historyStore interface {
	ports.HistoryRepository
	io.Closer
}

func openHistory(ctx context.Context, cfg config.HistoryConfig) (historyStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.NewHistory(), nil
	case "sqlite":
		store, err := sqlite.NewAdapter(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite history: %w", err)
		}
		return store, nil
	case "postgres":
		store, err := postgres.NewAdapter(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres history: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown history driver: %s", cfg.Driver)
	}
}
