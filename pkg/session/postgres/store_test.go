package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/natserract/sfmc-contentblock/pkg/session"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := NewFromDSN(context.Background(), dsn, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return db
}

func TestStoreSessionClock(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	store := NewStore(db, uuid.New(), zap.NewNop())
	t.Cleanup(func() { _ = store.Clear(context.Background()) })

	if _, ok, err := store.Get(ctx, session.SessionStartKey); err != nil || ok {
		t.Fatalf("expected no value, got ok=%v err=%v", ok, err)
	}

	first := time.UnixMilli(1700000000000)
	if err := session.SetSessionStart(ctx, store, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := first.Add(20 * time.Minute)
	if err := session.SetSessionStart(ctx, store, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := session.SessionStart(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(second) {
		t.Fatalf("expected the overwritten clock %v, got %v", second, got)
	}
}

func TestStoresAreScopedBySession(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := NewStore(db, uuid.New(), zap.NewNop())
	b := NewStore(db, uuid.New(), zap.NewNop())
	t.Cleanup(func() {
		_ = a.Clear(context.Background())
		_ = b.Clear(context.Background())
	})

	if err := a.Set(ctx, session.SessionStartKey, "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := b.Get(ctx, session.SessionStartKey); ok {
		t.Fatal("sessions must not see each other's values")
	}
}

func TestConfigDSN(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "blocks")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("DB_SSLMODE", "")

	cfg := NewConfig()
	expected := "host=db.internal port=6543 user=postgres password= dbname=blocks sslmode=disable"
	if got := cfg.DSN(); got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}
