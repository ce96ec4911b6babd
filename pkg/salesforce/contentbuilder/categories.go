package contentbuilder

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

const categoriesPath = "/asset/v1/content/categories"

// ListCategories returns the first page of Content Builder categories.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	c.logger.Info("Listing categories")

	resp, err := c.httpClient.Get(ctx, c.apiPath(categoriesPath), nil)
	if err != nil {
		c.logger.Error("List categories request failed", zap.Error(err))
		return nil, fmt.Errorf("list categories request failed: %w", err)
	}

	var categories SfmcResponse[Category]
	if err := json.Unmarshal(resp.Body, &categories); err != nil {
		c.logger.Error("Failed to parse categories response", zap.Error(err))
		return nil, fmt.Errorf("failed to parse categories response: %w", err)
	}

	c.logger.Info("Successfully listed categories",
		zap.Int("count", categories.Count),
		zap.Int("items_count", len(categories.Items)))

	return categories.Items, nil
}

// CreateDefaultCategory creates the DefaultCategoryName category under
// parentID, shared with the whole enterprise.
func (c *Client) CreateDefaultCategory(ctx context.Context, parentID int) (*Category, error) {
	c.logger.Info("Creating default category",
		zap.String("name", DefaultCategoryName),
		zap.Int("parent_id", parentID))

	body := CreateCategoryRequest{
		ParentID:          parentID,
		Name:              DefaultCategoryName,
		CategoryType:      CategoryTypeAssetShared,
		SharingProperties: EnterpriseSharing(),
	}

	headers := map[string]string{"Content-Type": "application/json"}
	resp, err := c.httpClient.Post(ctx, c.apiPath(categoriesPath), headers, body)
	if err != nil {
		c.logger.Error("Create category request failed", zap.Error(err))
		return nil, fmt.Errorf("create category request failed: %w", err)
	}

	var category Category
	if err := json.Unmarshal(resp.Body, &category); err != nil {
		c.logger.Error("Failed to parse category response", zap.Error(err))
		return nil, fmt.Errorf("failed to parse category response: %w", err)
	}

	c.logger.Info("Successfully created default category", zap.Int("category_id", category.ID))
	return &category, nil
}
