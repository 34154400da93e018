package spotify

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const maxFeatureBatch = 100

type audioFeaturesResponse struct {
	AudioFeatures []*spotifyAudioFeatures `json:"audio_features"`
}

// AudioFeatures fetches features for up to 100 track ids in one call.
// Tracks the API has no features for are omitted from the result.
func (c *Client) AudioFeatures(ctx context.Context, ids []string) ([]domain.AudioFeatures, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}
	if len(cleaned) > maxFeatureBatch {
		return nil, invalidRequest("feature batch of %d exceeds %d ids", len(cleaned), maxFeatureBatch)
	}

	q := url.Values{}
	q.Set("ids", strings.Join(cleaned, ","))

	var fr audioFeaturesResponse
	if _, err := c.call(ctx, http.MethodGet, "/audio-features", q, nil, &fr); err != nil {
		return nil, err
	}

	features := make([]domain.AudioFeatures, 0, len(fr.AudioFeatures))
	for _, f := range fr.AudioFeatures {
		if f == nil || f.ID == "" {
			continue
		}
		features = append(features, mapFeaturesToDomain(*f))
	}
	return features, nil
}
