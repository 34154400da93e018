package spotify

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const maxSearchLimit = 50

type searchResponse struct {
	Tracks struct {
		Items []*spotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SearchTracks runs a free-text track search returning at most limit tracks.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]domain.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalidRequest("empty search query")
	}
	if limit < 1 || limit > maxSearchLimit {
		return nil, invalidRequest("search limit %d outside 1..%d", limit, maxSearchLimit)
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "track")
	q.Set("limit", strconv.Itoa(limit))

	var sr searchResponse
	if _, err := c.call(ctx, http.MethodGet, "/search", q, nil, &sr); err != nil {
		return nil, err
	}

	tracks := make([]domain.Track, 0, len(sr.Tracks.Items))
	for _, item := range sr.Tracks.Items {
		// null items and items without an id cannot be joined with features
		if item == nil || item.ID == "" {
			continue
		}
		tracks = append(tracks, mapTrackToDomain(*item))
	}
	return tracks, nil
}
