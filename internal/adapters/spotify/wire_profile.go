package spotify

import (
	"context"
	"net/http"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// CurrentUser returns the profile of the token owner.
func (c *Client) CurrentUser(ctx context.Context) (domain.UserProfile, error) {
	var u spotifyUser
	if _, err := c.call(ctx, http.MethodGet, "/me", nil, nil, &u); err != nil {
		return domain.UserProfile{}, err
	}
	return mapUserToDomain(u), nil
}
