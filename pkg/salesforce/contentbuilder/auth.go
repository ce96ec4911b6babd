package contentbuilder

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RefreshToken asks the backend to refresh the SFMC access token cookie. On
// success another refresh is scheduled after TokenRefreshInterval; on failure
// the schedule stops.
func (c *Client) RefreshToken(ctx context.Context) error {
	return c.scheduler.Refresh(ctx)
}

func (c *Client) refreshToken(ctx context.Context) error {
	c.logger.Info("Refreshing SFMC access token")

	if _, err := c.httpClient.Post(ctx, c.settings.RefreshTokenPath, nil, nil); err != nil {
		c.logger.Error("SFMC token refresh failed", zap.Error(err))
		return fmt.Errorf("sfmc token refresh failed: %w", err)
	}

	c.logger.Info("Successfully refreshed SFMC access token")
	return nil
}
