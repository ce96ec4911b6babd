package contentbuilder

import "context"

// ContentBuilderClient defines the interface for Content Builder operations
type ContentBuilderClient interface {
	// RefreshToken refreshes the SFMC access token cookie and schedules the next refresh
	RefreshToken(ctx context.Context) error

	// GetAssetByCustomerKey returns the asset with the given customer key, or nil
	GetAssetByCustomerKey(ctx context.Context, key string) (*Asset, error)

	// ListExistingHTMLBlocks lists the HTML blocks of the default category
	ListExistingHTMLBlocks(ctx context.Context) ([]Asset, error)

	// CreateAsset creates an HTML block asset
	CreateAsset(ctx context.Context, key, name, html string, categoryID int) error

	// UpdateAsset replaces the content of an HTML block asset
	UpdateAsset(ctx context.Context, assetID int, html string) error

	// UpsertAsset creates the asset or updates the one with the same customer key
	UpsertAsset(ctx context.Context, key, name, html string) error

	// ListCategories lists the Content Builder categories
	ListCategories(ctx context.Context) ([]Category, error)

	// CreateDefaultCategory creates the template category under parentID
	CreateDefaultCategory(ctx context.Context, parentID int) (*Category, error)

	// GetThumbnailBase64 returns a data URL of an asset thumbnail, or "" on failure
	GetThumbnailBase64(ctx context.Context, thumbnailURL string) string

	// GetUserInfo returns the logged-in user's info
	GetUserInfo(ctx context.Context) (*UserInfo, error)
}

var _ ContentBuilderClient = (*Client)(nil)
