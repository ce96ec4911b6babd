package contentbuilder

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// GetUserInfo returns the user and organization behind the current SFMC token.
func (c *Client) GetUserInfo(ctx context.Context) (*UserInfo, error) {
	resp, err := c.httpClient.Get(ctx, c.apiPath("/userinfo"), nil)
	if err != nil {
		c.logger.Error("Get user info request failed", zap.Error(err))
		return nil, fmt.Errorf("get user info request failed: %w", err)
	}

	var info UserInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		c.logger.Error("Failed to parse user info response", zap.Error(err))
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	c.logger.Debug("Retrieved user info",
		zap.Int("member_id", info.Organization.MemberID),
		zap.String("rest_instance_url", info.Rest.RestInstanceURL))

	return &info, nil
}
