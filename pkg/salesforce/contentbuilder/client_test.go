package contentbuilder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/natserract/sfmc-contentblock/pkg/session"
)

type testEnv struct {
	client    *Client
	jar       http.CookieJar
	serverURL *url.URL
	navigated atomic.Value
}

// newTestEnv starts handler behind a client whose session is fresh: the access
// token cookie is set and the session clock was just reset.
func newTestEnv(t *testing.T, handler http.Handler) *testEnv {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	serverURL, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}

	jar, err := session.NewCookieJar()
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	jar.SetCookies(serverURL, []*http.Cookie{
		{Name: "sfmc_access_token", Value: "signed-token", Path: "/"},
		{Name: session.CSRFCookieName, Value: "csrf-123", Path: "/"},
	})

	clock := session.NewMemoryStore()
	if err := session.SetSessionStart(context.Background(), clock, time.Now()); err != nil {
		t.Fatalf("failed to set session start: %v", err)
	}

	env := &testEnv{jar: jar, serverURL: serverURL}
	client, err := NewClientWithLogger(Options{
		AppBaseURL: server.URL,
		Jar:        jar,
		Clock:      clock,
		Navigate:   func(loginURL string) { env.navigated.Store(loginURL) },
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(client.Close)

	env.client = client
	return env
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func TestGetAssetByCustomerKey(t *testing.T) {
	t.Parallel()

	var gotFilter, gotCSRF string
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sfmc/asset/v1/content/assets" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotFilter = r.URL.Query().Get("$filter")
		gotCSRF = r.Header.Get(session.CSRFHeaderName)
		writeJSON(t, w, SfmcResponse[Asset]{
			Count: 1,
			Items: []Asset{{ID: 42, CustomerKey: "abc", Name: "Block"}},
		})
	}))

	asset, err := env.client.GetAssetByCustomerKey(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset == nil || asset.ID != 42 {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if gotFilter != "customerKey eq 'abc'" {
		t.Errorf("unexpected filter %q", gotFilter)
	}
	if gotCSRF != "csrf-123" {
		t.Errorf("unexpected CSRF header %q", gotCSRF)
	}
}

func TestGetAssetByCustomerKeyNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, SfmcResponse[Asset]{Count: 0})
	}))

	asset, err := env.client.GetAssetByCustomerKey(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset != nil {
		t.Fatalf("expected no asset, got %+v", asset)
	}
}

func TestListExistingHTMLBlocksQuery(t *testing.T) {
	t.Parallel()

	var got map[string]any
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/sfmc/asset/v1/content/assets/query" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		writeJSON(t, w, SfmcResponse[Asset]{
			Count: 2,
			Items: []Asset{{ID: 1, Name: "One"}, {ID: 2, Name: "Two"}},
		})
	}))

	blocks, err := env.client.ListExistingHTMLBlocks(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}

	want := map[string]any{
		"page": map[string]any{"page": float64(1), "pageSize": float64(50)},
		"query": map[string]any{
			"leftOperand": map[string]any{
				"property":       "assetType.name",
				"simpleOperator": "equal",
				"value":          "htmlblock",
			},
			"logicalOperator": "AND",
			"rightOperand": map[string]any{
				"property":       "category.name",
				"simpleOperator": "equal",
				"value":          DefaultCategoryName,
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("query body mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsertAsset(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		existing   []Asset
		wantMethod string
		wantPath   string
		wantBody   map[string]any
	}{
		{
			name:       "creates missing asset",
			wantMethod: http.MethodPost,
			wantPath:   "/api/sfmc/asset/v1/content/assets",
			wantBody: map[string]any{
				"customerKey": "key-1",
				"name":        "Block",
				"assetType":   map[string]any{"id": float64(197), "name": "htmlblock"},
				"channels":    map[string]any{"email": true, "web": false},
				"content":     "<p>hi</p>",
				"sharingProperties": map[string]any{
					"sharedWith":  []any{float64(0)},
					"sharingType": "edit",
				},
			},
		},
		{
			name:       "updates existing asset",
			existing:   []Asset{{ID: 7, CustomerKey: "key-1"}},
			wantMethod: http.MethodPatch,
			wantPath:   "/api/sfmc/asset/v1/content/assets/7",
			wantBody:   map[string]any{"content": "<p>hi</p>"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			var gotMethod, gotPath string
			var gotBody map[string]any
			env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodGet {
					writeJSON(t, w, SfmcResponse[Asset]{Count: len(testCase.existing), Items: testCase.existing})
					return
				}
				gotMethod, gotPath = r.Method, r.URL.Path
				if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
					t.Errorf("failed to decode body: %v", err)
				}
				writeJSON(t, w, Asset{ID: 7})
			}))

			if err := env.client.UpsertAsset(context.Background(), "key-1", "Block", "<p>hi</p>"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotMethod != testCase.wantMethod || gotPath != testCase.wantPath {
				t.Errorf("expected %s %s, got %s %s", testCase.wantMethod, testCase.wantPath, gotMethod, gotPath)
			}
			if diff := cmp.Diff(testCase.wantBody, gotBody); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCreateAssetFailureIsGeneric(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "duplicate customer key", http.StatusBadRequest)
	}))

	err := env.client.CreateAsset(context.Background(), "key", "name", "<p/>", 12)
	if !errors.Is(err, ErrCreateAsset) {
		t.Fatalf("expected ErrCreateAsset, got %v", err)
	}
	if err.Error() != "failed to create the asset in Content Builder" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestUpdateAssetFailureIsGeneric(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if err := env.client.UpdateAsset(context.Background(), 3, "<p/>"); !errors.Is(err, ErrUpdateAsset) {
		t.Fatalf("expected ErrUpdateAsset, got %v", err)
	}
}

func TestUnauthorizedRequiresReauthentication(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := env.client.ListCategories(context.Background())
	if !errors.Is(err, session.ErrReauthenticationRequired) {
		t.Fatalf("expected re-authentication error, got %v", err)
	}

	var reauth *session.ReauthenticationError
	if !errors.As(err, &reauth) || reauth.LoginURL != "/oauth2/sfmc/authorize" {
		t.Errorf("unexpected login URL in %v", err)
	}
	if got, _ := env.navigated.Load().(string); got != "/oauth2/sfmc/authorize" {
		t.Errorf("expected navigation to login, got %q", got)
	}
}

func TestMissingTokenRefreshesBeforeRequest(t *testing.T) {
	t.Parallel()

	var refreshes atomic.Int32
	var sawToken atomic.Bool
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/sfmc/refresh_token":
			refreshes.Add(1)
			http.SetCookie(w, &http.Cookie{Name: "sfmc_access_token", Value: "fresh", Path: "/"})
			w.WriteHeader(http.StatusNoContent)
		case "/api/sfmc/userinfo":
			if c, err := r.Cookie("sfmc_access_token"); err == nil && c.Value == "fresh" {
				sawToken.Store(true)
			}
			writeJSON(t, w, UserInfo{Organization: Organization{MemberID: 100}})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	env.jar.SetCookies(env.serverURL, []*http.Cookie{{Name: "sfmc_access_token", Value: "", Path: "/", MaxAge: -1}})

	info, err := env.client.GetUserInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Organization.MemberID != 100 {
		t.Errorf("unexpected member id %d", info.Organization.MemberID)
	}
	if got := refreshes.Load(); got != 1 {
		t.Errorf("expected 1 refresh, got %d", got)
	}
	if !sawToken.Load() {
		t.Error("request did not carry the refreshed cookie")
	}
}

func TestListCategoriesAndCreateDefault(t *testing.T) {
	t.Parallel()

	var created map[string]any
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sfmc/asset/v1/content/categories" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Method == http.MethodGet {
			writeJSON(t, w, SfmcResponse[Category]{Count: 1, Items: []Category{{ID: 1, Name: "Content Builder"}}})
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		writeJSON(t, w, Category{ID: 9, ParentID: 1, Name: DefaultCategoryName})
	}))

	categories, err := env.client.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(categories) != 1 || categories[0].ParentID != 0 {
		t.Fatalf("unexpected categories: %+v", categories)
	}

	category, err := env.client.CreateDefaultCategory(context.Background(), categories[0].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if category.ID != 9 {
		t.Errorf("unexpected category id %d", category.ID)
	}

	want := map[string]any{
		"parentId":     float64(1),
		"name":         DefaultCategoryName,
		"categoryType": "asset-shared",
		"sharingProperties": map[string]any{
			"sharedWith":  []any{float64(0)},
			"sharingType": "edit",
		},
	}
	if diff := cmp.Diff(want, created); diff != "" {
		t.Errorf("create category body mismatch (-want +got):\n%s", diff)
	}
}

func TestGetThumbnailBase64(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "raw body", status: http.StatusOK, body: "iVBORw0KGgo=", want: "data:image/png;base64,iVBORw0KGgo="},
		{name: "json string", status: http.StatusOK, body: `"iVBORw0KGgo="`, want: "data:image/png;base64,iVBORw0KGgo="},
		{name: "failure", status: http.StatusNotFound, body: "not found", want: ""},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/sfmc/asset/v1/assets/5/thumbnail" {
					t.Errorf("unexpected path %q", r.URL.Path)
				}
				w.WriteHeader(testCase.status)
				_, _ = io.WriteString(w, testCase.body)
			}))

			got := env.client.GetThumbnailBase64(context.Background(), "/v1/assets/5/thumbnail")
			if got != testCase.want {
				t.Errorf("expected %q, got %q", testCase.want, got)
			}
		})
	}
}
