package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/events"
)

// PlaybackPollInterval matches how often the player view refreshes.
const PlaybackPollInterval = 5 * time.Second

// PlaybackMonitor polls the catalog for what is playing while a user is
// signed in.
type PlaybackMonitor struct {
	catalog  ports.CatalogClient
	interval time.Duration
	logger   logrus.FieldLogger

	// OnPlayback publishes every successful poll. A nil state means nothing
	// is playing.
	OnPlayback *events.Feed[*domain.PlaybackState]
}

func NewPlaybackMonitor(catalog ports.CatalogClient, interval time.Duration, logger logrus.FieldLogger) *PlaybackMonitor {
	if interval <= 0 {
		interval = PlaybackPollInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PlaybackMonitor{
		catalog:    catalog,
		interval:   interval,
		logger:     logger,
		OnPlayback: events.NewFeed[*domain.PlaybackState](true),
	}
}

// Run polls until ctx is cancelled.
func (m *PlaybackMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// Latest returns the most recent poll result.
func (m *PlaybackMonitor) Latest() (*domain.PlaybackState, bool) {
	return m.OnPlayback.Last()
}

func (m *PlaybackMonitor) poll(ctx context.Context) {
	if !m.catalog.Authenticated() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	state, err := m.catalog.CurrentPlayback(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Debugf("playback monitor: poll failed: %v", err)
		}
		return
	}
	m.OnPlayback.Publish(state)
}
