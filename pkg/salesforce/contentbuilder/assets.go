package contentbuilder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	httpclient "github.com/natserract/sfmc-contentblock/pkg/http"
)

const (
	assetsPath      = "/asset/v1/content/assets"
	assetsQueryPath = "/asset/v1/content/assets/query"

	htmlBlockPageSize = 50
	thumbnailPrefix   = "data:image/png;base64,"
)

// ErrCreateAsset and ErrUpdateAsset replace the underlying HTTP error so that
// callers can show them to the user as is.
var (
	ErrCreateAsset = errors.New("failed to create the asset in Content Builder")
	ErrUpdateAsset = errors.New("failed to update the asset")
)

// GetAssetByCustomerKey returns the first asset whose customer key equals key,
// or nil when there is none.
func (c *Client) GetAssetByCustomerKey(ctx context.Context, key string) (*Asset, error) {
	c.logger.Info("Getting asset by customer key", zap.String("customer_key", key))

	endpoint, err := httpclient.BuildURL("", c.apiPath(assetsPath), map[string]string{
		"$filter": fmt.Sprintf("customerKey eq '%s'", key),
	})
	if err != nil {
		c.logger.Error("Failed to build URL", zap.Error(err))
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	resp, err := c.httpClient.Get(ctx, endpoint, nil)
	if err != nil {
		c.logger.Error("Failed to fetch asset by customer key", zap.Error(err), zap.String("customer_key", key))
		return nil, fmt.Errorf("failed to fetch asset by customer key %q: %w", key, err)
	}

	var assets SfmcResponse[Asset]
	if err := json.Unmarshal(resp.Body, &assets); err != nil {
		c.logger.Error("Failed to parse assets response", zap.Error(err))
		return nil, fmt.Errorf("failed to parse assets response: %w", err)
	}

	if assets.Count == 0 || len(assets.Items) == 0 {
		c.logger.Debug("No asset found", zap.String("customer_key", key))
		return nil, nil
	}

	return &assets.Items[0], nil
}

// ListExistingHTMLBlocks returns the first page of HTML blocks kept in the
// DefaultCategoryName category.
func (c *Client) ListExistingHTMLBlocks(ctx context.Context) ([]Asset, error) {
	c.logger.Info("Listing existing HTML blocks", zap.String("category", DefaultCategoryName))

	body := AssetQueryRequest{
		Page: Page{Page: 1, PageSize: htmlBlockPageSize},
		Query: MultiQuery{
			LeftOperand: Query{
				Property:       "assetType.name",
				SimpleOperator: OperatorEqual,
				Value:          HTMLBlockAssetType.Name,
			},
			LogicalOperator: LogicalAnd,
			RightOperand: Query{
				Property:       "category.name",
				SimpleOperator: OperatorEqual,
				Value:          DefaultCategoryName,
			},
		},
	}

	resp, err := c.httpClient.Post(ctx, c.apiPath(assetsQueryPath), nil, body)
	if err != nil {
		c.logger.Error("Failed to list HTML blocks", zap.Error(err))
		return nil, fmt.Errorf("failed to list HTML blocks: %w", err)
	}

	var blocks SfmcResponse[Asset]
	if err := json.Unmarshal(resp.Body, &blocks); err != nil {
		c.logger.Error("Failed to parse HTML blocks response", zap.Error(err))
		return nil, fmt.Errorf("failed to parse HTML blocks response: %w", err)
	}

	c.logger.Info("Successfully listed HTML blocks", zap.Int("count", len(blocks.Items)))
	return blocks.Items, nil
}

// CreateAsset creates an HTML block shared with the whole enterprise. A zero
// categoryID leaves the category to SFMC.
func (c *Client) CreateAsset(ctx context.Context, key, name, html string, categoryID int) error {
	c.logger.Info("Creating asset", zap.String("customer_key", key), zap.String("name", name))

	body := CreateAssetRequest{
		CustomerKey:       key,
		Name:              name,
		AssetType:         HTMLBlockAssetType,
		Channels:          AssetChannels{Email: true, Web: false},
		Content:           html,
		SharingProperties: EnterpriseSharing(),
	}
	if categoryID != 0 {
		body.Category = &CategoryRef{ID: categoryID}
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if _, err := c.httpClient.Post(ctx, c.apiPath(assetsPath), headers, body); err != nil {
		c.logger.Error(ErrCreateAsset.Error(), zap.Error(err), zap.String("customer_key", key))
		return ErrCreateAsset
	}

	c.logger.Info("Successfully created asset", zap.String("customer_key", key))
	return nil
}

// UpdateAsset replaces the content of an existing asset.
func (c *Client) UpdateAsset(ctx context.Context, assetID int, html string) error {
	c.logger.Info("Updating asset", zap.Int("asset_id", assetID))

	headers := map[string]string{"Content-Type": "application/json"}
	endpoint := c.apiPath(assetsPath + "/" + strconv.Itoa(assetID))
	if _, err := c.httpClient.Patch(ctx, endpoint, headers, PatchAssetRequest{Content: html}); err != nil {
		c.logger.Error(ErrUpdateAsset.Error(), zap.Error(err), zap.Int("asset_id", assetID))
		return ErrUpdateAsset
	}

	c.logger.Info("Successfully updated asset", zap.Int("asset_id", assetID))
	return nil
}

// UpsertAsset updates the asset with customer key key, or creates it.
func (c *Client) UpsertAsset(ctx context.Context, key, name, html string) error {
	existing, err := c.GetAssetByCustomerKey(ctx, key)
	if err != nil {
		return err
	}

	if existing == nil {
		return c.CreateAsset(ctx, key, name, html, 0)
	}
	return c.UpdateAsset(ctx, existing.ID, html)
}

// GetThumbnailBase64 fetches an asset thumbnail and returns it as a PNG data
// URL. thumbnailURL is the path from Asset.Thumbnail, relative to the asset
// API. Failures are logged and yield "".
func (c *Client) GetThumbnailBase64(ctx context.Context, thumbnailURL string) string {
	resp, err := c.httpClient.Get(ctx, c.apiPath("/asset"+thumbnailURL), nil)
	if err != nil {
		c.logger.Error("Failed to fetch the thumbnail base64 string",
			zap.Error(err),
			zap.String("thumbnail_url", thumbnailURL))
		return ""
	}

	data := string(resp.Body)
	// The endpoint answers with the base64 string as a JSON string.
	var quoted string
	if err := json.Unmarshal(resp.Body, &quoted); err == nil {
		data = quoted
	}

	return thumbnailPrefix + data
}
