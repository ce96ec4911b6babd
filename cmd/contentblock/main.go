package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/natserract/sfmc-contentblock/pkg/config"
	"github.com/natserract/sfmc-contentblock/pkg/contentblock"
	httpclient "github.com/natserract/sfmc-contentblock/pkg/http"
	"github.com/natserract/sfmc-contentblock/pkg/laasie"
	"github.com/natserract/sfmc-contentblock/pkg/salesforce/contentbuilder"
	"github.com/natserract/sfmc-contentblock/pkg/session"
	"github.com/natserract/sfmc-contentblock/pkg/session/postgres"
)

const usage = `Usage: contentblock <command> [arguments]

Commands:
  categories                          ensure the template category and list categories
  templates                           list the HTML block templates
  save <key|-> <name> <html-file>     create or update an HTML block
  register-s2s <client-id> <secret>   register installed package credentials
  userinfo                            show the logged-in SFMC user
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	clock, closeClock, err := openClock(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open session store", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Failed to open session store: %v\n", err)
		os.Exit(1)
	}
	defer closeClock()

	jar, err := openSession(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open session", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Failed to open session: %v\n", err)
		os.Exit(1)
	}

	// Create Content Builder client
	sfmc, err := contentbuilder.NewClientWithLogger(contentbuilder.Options{
		AppBaseURL: cfg.AppBaseURL,
		Jar:        jar,
		Clock:      clock,
		Navigate: func(loginURL string) {
			fmt.Fprintf(os.Stderr, "Session expired, log in again at %s%s\n", cfg.AppBaseURL, loginURL)
		},
	}, logger)
	if err != nil {
		logger.Error("Failed to create Content Builder client", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sfmc.Close()

	// Create partner client
	partner, err := laasie.NewClientWithLogger(laasie.Options{
		AppBaseURL: cfg.AppBaseURL,
		Jar:        jar,
		Clock:      clock,
	}, logger)
	if err != nil {
		logger.Error("Failed to create Laasie client", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer partner.Close()

	svc := contentblock.NewService(sfmc, partner, logger)

	if err := run(ctx, svc, sfmc, partner, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("Command failed", zap.String("command", os.Args[1]), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *contentblock.Service, sfmc *contentbuilder.Client, partner *laasie.Client, command string, args []string) error {
	switch command {
	case "categories":
		categoryID, err := svc.EnsureDefaultCategory(ctx)
		if err != nil {
			return err
		}
		categories, err := sfmc.ListCategories(ctx)
		if err != nil {
			return err
		}
		for _, category := range categories {
			marker := " "
			if category.ID == categoryID {
				marker = "*"
			}
			fmt.Printf("%s %d\t%d\t%s\n", marker, category.ID, category.ParentID, category.Name)
		}

	case "templates":
		templates, metrics, err := svc.ListTemplates(ctx)
		if err != nil {
			return err
		}
		for _, template := range templates {
			thumbnail := "no thumbnail"
			if template.Thumbnail != "" {
				thumbnail = fmt.Sprintf("thumbnail %d bytes", len(template.Thumbnail))
			}
			fmt.Printf("%d\t%s\t%s\t%s\n", template.Asset.ID, template.Asset.CustomerKey, template.Asset.Name, thumbnail)
		}
		fmt.Printf("Thumbnails: %d succeeded, %d failed, %d skipped\n",
			metrics.ThumbnailsSucceeded, metrics.ThumbnailsFailed, metrics.ThumbnailsSkipped)

	case "save":
		if len(args) != 3 {
			return fmt.Errorf("save needs <key|-> <name> <html-file>")
		}
		html, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[2], err)
		}
		key := args[0]
		if key == "-" {
			key = ""
		}
		key, err = svc.SaveBlock(ctx, key, args[1], string(html))
		if err != nil {
			return err
		}
		fmt.Printf("Saved HTML block with customer key %s\n", key)

	case "register-s2s":
		if len(args) != 2 {
			return fmt.Errorf("register-s2s needs <client-id> <secret>")
		}
		if err := partner.InitAccessToken(ctx); err != nil {
			return err
		}
		payload, err := svc.RegisterS2S(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Registered credentials for %s (MID %d, tenant %s)\n", payload.Email, payload.MID, payload.SubDomain)

	case "userinfo":
		info, err := sfmc.GetUserInfo(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Email: %s\nMID: %d\nREST: %s\n", info.User.Email, info.Organization.MemberID, info.Rest.RestInstanceURL)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

// openClock returns the session clock store selected in cfg.
func openClock(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.ClockStore, func(), error) {
	if cfg.SessionStore != config.SessionStorePostgres {
		return session.NewMemoryStore(), func() {}, nil
	}

	db, err := postgres.New(ctx, postgres.NewConfig(), logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("Database connection established")

	sessionID := uuid.New()
	if cfg.SessionID != "" {
		sessionID, err = uuid.Parse(cfg.SessionID)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("invalid SESSION_ID: %w", err)
		}
	} else {
		fmt.Printf("Session id: %s\n", sessionID)
	}

	return postgres.NewStore(db, sessionID, logger), db.Close, nil
}

// openSession seeds a cookie jar with the browser's cookies and fetches a
// CSRF cookie from the backend.
func openSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (http.CookieJar, error) {
	jar, err := session.NewCookieJar()
	if err != nil {
		return nil, err
	}

	origin, err := url.Parse(cfg.AppBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse APP_BASE_URL: %w", err)
	}

	if cfg.SessionCookies != "" {
		cookies, err := http.ParseCookie(cfg.SessionCookies)
		if err != nil {
			return nil, fmt.Errorf("failed to parse SESSION_COOKIES: %w", err)
		}
		for _, c := range cookies {
			c.Path = "/"
		}
		jar.SetCookies(origin, cookies)
	}

	client, err := httpclient.NewClientWithOptions(httpclient.Options{BaseURL: cfg.AppBaseURL, Jar: jar}, logger)
	if err != nil {
		return nil, err
	}
	if _, err := client.Get(ctx, "/healthcheck", nil); err != nil {
		return nil, fmt.Errorf("backend is not reachable: %w", err)
	}
	return jar, nil
}
