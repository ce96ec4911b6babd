package laasie

import (
	"context"
	"encoding/json"
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

func newTestClient(t *testing.T, handler http.Handler, cookies ...*http.Cookie) *Client {
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
	jar.SetCookies(serverURL, cookies)

	clock := session.NewMemoryStore()
	if err := session.SetSessionStart(context.Background(), clock, time.Now()); err != nil {
		t.Fatalf("failed to set session start: %v", err)
	}

	client, err := NewClientWithLogger(Options{
		AppBaseURL: server.URL,
		Jar:        jar,
		Clock:      clock,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(client.Close)

	return client
}

func TestSaveSfmcS2SCredentials(t *testing.T) {
	t.Parallel()

	var gotAuth, gotTenant string
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/laasie/sfmc" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotTenant = r.Header.Get(session.TenantHeaderName)
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}), &http.Cookie{Name: "external_access_token", Value: "partner-token", Path: "/"})

	err := client.SaveSfmcS2SCredentials(context.Background(), SfmcS2SPayload{
		CID:       "client-id",
		CSecret:   "secret",
		Email:     "user@example.com",
		MID:       514000123,
		SubDomain: "mc563885gzs27c5t9-63k636ttgm",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer partner-token" {
		t.Errorf("unexpected Authorization header %q", gotAuth)
	}
	if gotTenant != "" {
		t.Errorf("expected empty tenant header, got %q", gotTenant)
	}

	want := map[string]any{
		"CID":       "client-id",
		"CSecret":   "secret",
		"Email":     "user@example.com",
		"MID":       float64(514000123),
		"SubDomain": "mc563885gzs27c5t9-63k636ttgm",
	}
	if diff := cmp.Diff(want, gotBody); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingTokenRefreshesThenSendsBearer(t *testing.T) {
	t.Parallel()

	var refreshes atomic.Int32
	var gotAuth atomic.Value
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/laasie/token":
			refreshes.Add(1)
			if r.Header.Get("Authorization") != "" {
				t.Error("token endpoint must not receive a bearer header")
			}
			http.SetCookie(w, &http.Cookie{Name: "external_access_token", Value: "new-token", Path: "/"})
			w.WriteHeader(http.StatusNoContent)
		case "/api/laasie/sfmc":
			gotAuth.Store(r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusNoContent)
		}
	}))

	if err := client.SaveSfmcS2SCredentials(context.Background(), SfmcS2SPayload{CID: "id"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := refreshes.Load(); got != 1 {
		t.Errorf("expected 1 refresh, got %d", got)
	}
	if got, _ := gotAuth.Load().(string); got != "Bearer new-token" {
		t.Errorf("unexpected Authorization header %q", got)
	}
}

func TestInitAccessTokenDoesNotSchedule(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.InitAccessToken(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
	if client.scheduler.Scheduled() {
		t.Error("InitAccessToken must not schedule refreshes")
	}
}

func TestRefreshTokenSchedules(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.RefreshToken(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !client.scheduler.Scheduled() {
		t.Error("expected the next refresh to be scheduled")
	}
}

func TestRefreshTokenFailureStopsSchedule(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	if err := client.RefreshToken(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if client.scheduler.Scheduled() {
		t.Error("a failed refresh must not schedule another")
	}
}
