// Package contentblock implements the workflows of the custom content block:
// keeping the template category, listing templates with their thumbnails,
// saving the generated HTML block and registering the SFMC server-to-server
// credentials with the partner API.
package contentblock

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/natserract/sfmc-contentblock/pkg/laasie"
	"github.com/natserract/sfmc-contentblock/pkg/salesforce/contentbuilder"
)

const thumbnailConcurrency = 5

// ErrNoRootCategory is returned when Content Builder reports no category
// without a parent.
var ErrNoRootCategory = errors.New("no root category found in Content Builder")

// Template is an HTML block from the template category.
type Template struct {
	Asset contentbuilder.Asset
	// Thumbnail is a PNG data URL, or "" when none could be fetched.
	Thumbnail string
}

// TemplateMetrics tracks thumbnail fetches of a ListTemplates call
type TemplateMetrics struct {
	ThumbnailsSucceeded int
	ThumbnailsFailed    int
	ThumbnailsSkipped   int
	mu                  sync.Mutex
}

func (m *TemplateMetrics) add(thumbnail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if thumbnail == "" {
		m.ThumbnailsFailed++
		return
	}
	m.ThumbnailsSucceeded++
}

func (m *TemplateMetrics) skip() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ThumbnailsSkipped++
}

// Service runs the content block workflows against SFMC and the partner API.
type Service struct {
	sfmc   contentbuilder.ContentBuilderClient
	laasie laasie.LaasieClient
	logger *zap.Logger

	mu                sync.Mutex
	defaultCategoryID int
}

// NewService creates a new content block service
func NewService(sfmc contentbuilder.ContentBuilderClient, partner laasie.LaasieClient, logger *zap.Logger) *Service {
	return &Service{
		sfmc:   sfmc,
		laasie: partner,
		logger: logger,
	}
}

// DefaultCategoryID returns the id remembered by EnsureDefaultCategory, or 0.
func (s *Service) DefaultCategoryID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultCategoryID
}

// EnsureDefaultCategory returns the id of the template category, creating it
// under the root category when it does not exist yet.
func (s *Service) EnsureDefaultCategory(ctx context.Context) (int, error) {
	if id := s.DefaultCategoryID(); id != 0 {
		return id, nil
	}

	categories, err := s.sfmc.ListCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list categories: %w", err)
	}

	var root *contentbuilder.Category
	for i, category := range categories {
		if category.Name == contentbuilder.DefaultCategoryName {
			s.logger.Info("Found template category", zap.Int("category_id", category.ID))
			s.remember(category.ID)
			return category.ID, nil
		}
		if category.ParentID == 0 && root == nil {
			root = &categories[i]
		}
	}

	if root == nil {
		return 0, ErrNoRootCategory
	}

	s.logger.Info("Template category missing, creating it", zap.Int("parent_id", root.ID))
	created, err := s.sfmc.CreateDefaultCategory(ctx, root.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create template category: %w", err)
	}

	s.remember(created.ID)
	return created.ID, nil
}

func (s *Service) remember(categoryID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultCategoryID = categoryID
}

// ListTemplates returns the HTML blocks of the template category with their
// thumbnails, in the order Content Builder returned them.
func (s *Service) ListTemplates(ctx context.Context) ([]Template, *TemplateMetrics, error) {
	startTime := time.Now()

	blocks, err := s.sfmc.ListExistingHTMLBlocks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list templates: %w", err)
	}

	metrics := &TemplateMetrics{}
	templates := make([]Template, len(blocks))

	thumbnailPool := pool.New().WithMaxGoroutines(thumbnailConcurrency)
	for i, block := range blocks {
		templates[i].Asset = block
		if block.Thumbnail == nil || block.Thumbnail.ThumbnailURL == "" {
			metrics.skip()
			continue
		}

		thumbnailPool.Go(func() {
			thumbnail := s.sfmc.GetThumbnailBase64(ctx, block.Thumbnail.ThumbnailURL)
			metrics.add(thumbnail)
			templates[i].Thumbnail = thumbnail
		})
	}
	thumbnailPool.Wait()

	s.logger.Info("Listed templates",
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("templates", len(templates)),
		zap.Int("thumbnails_succeeded", metrics.ThumbnailsSucceeded),
		zap.Int("thumbnails_failed", metrics.ThumbnailsFailed),
		zap.Int("thumbnails_skipped", metrics.ThumbnailsSkipped))

	return templates, metrics, nil
}

// SaveBlock creates or updates the HTML block with customer key key and
// returns the key used. An empty key gets a new random one.
func (s *Service) SaveBlock(ctx context.Context, key, name, html string) (string, error) {
	if key == "" {
		key = uuid.NewString()
	}

	if err := s.sfmc.UpsertAsset(ctx, key, name, html); err != nil {
		return "", err
	}

	s.logger.Info("Saved HTML block", zap.String("customer_key", key), zap.String("name", name))
	return key, nil
}

// RegisterS2S sends the installed package credentials to the partner API,
// together with the user's email, MID and tenant subdomain.
func (s *Service) RegisterS2S(ctx context.Context, clientID, clientSecret string) (*laasie.SfmcS2SPayload, error) {
	info, err := s.sfmc.GetUserInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}

	subdomain, err := TenantSubdomain(info.Rest.RestInstanceURL)
	if err != nil {
		return nil, err
	}

	payload := laasie.SfmcS2SPayload{
		CID:       clientID,
		CSecret:   clientSecret,
		Email:     info.User.Email,
		MID:       info.Organization.MemberID,
		SubDomain: subdomain,
	}

	if err := s.laasie.SaveSfmcS2SCredentials(ctx, payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// TenantSubdomain extracts the tenant subdomain from a tenant REST URL such
// as https://mc563885gzs27c5t9-63k636ttgm.rest.marketingcloudapis.com/.
func TenantSubdomain(restInstanceURL string) (string, error) {
	u, err := url.Parse(restInstanceURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse REST instance URL: %w", err)
	}

	subdomain, _, found := strings.Cut(u.Hostname(), ".")
	if !found || subdomain == "" {
		return "", fmt.Errorf("no tenant subdomain in REST instance URL %q", restInstanceURL)
	}
	return subdomain, nil
}
