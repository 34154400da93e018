package spotify

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

type devicesResponse struct {
	Devices []spotifyDevice `json:"devices"`
}

// CurrentPlayback returns the active playback, or nil when nothing is playing.
func (c *Client) CurrentPlayback(ctx context.Context) (*domain.PlaybackState, error) {
	var pb spotifyPlayback
	status, err := c.call(ctx, http.MethodGet, "/me/player", nil, nil, &pb)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return mapPlaybackToDomain(pb), nil
}

// Play starts the given track URI on deviceID, or on the active device when
// deviceID is empty.
func (c *Client) Play(ctx context.Context, uri, deviceID string) error {
	if !strings.HasPrefix(uri, "spotify:") {
		return invalidRequest("play: unsupported uri %q", uri)
	}
	_, err := c.call(ctx, http.MethodPut, "/me/player/play", deviceQuery(deviceID), playRequest{URIs: []string{uri}}, nil)
	return err
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context, deviceID string) error {
	_, err := c.call(ctx, http.MethodPut, "/me/player/pause", deviceQuery(deviceID), nil, nil)
	return err
}

// Resume continues playback of whatever was paused.
func (c *Client) Resume(ctx context.Context, deviceID string) error {
	_, err := c.call(ctx, http.MethodPut, "/me/player/play", deviceQuery(deviceID), nil, nil)
	return err
}

// Devices lists the playback targets available to the user.
func (c *Client) Devices(ctx context.Context) ([]domain.Device, error) {
	var dr devicesResponse
	if _, err := c.call(ctx, http.MethodGet, "/me/player/devices", nil, nil, &dr); err != nil {
		return nil, err
	}
	devices := make([]domain.Device, 0, len(dr.Devices))
	for _, d := range dr.Devices {
		devices = append(devices, mapDeviceToDomain(d))
	}
	return devices, nil
}

func deviceQuery(deviceID string) url.Values {
	if deviceID == "" {
		return nil
	}
	q := url.Values{}
	q.Set("device_id", deviceID)
	return q
}
