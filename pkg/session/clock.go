package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SessionStartKey is the storage key of the session clock.
const SessionStartKey = "sessionStart"

// ErrNoSessionStart is returned when the session clock was never set.
var ErrNoSessionStart = errors.New("session start time not set")

// ClockStore persists the session clock. It mirrors per-session browser
// storage: string values under string keys.
type ClockStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// SessionStart reads the session clock. An absent value yields
// ErrNoSessionStart; a value that is not Unix milliseconds yields a parse error.
func SessionStart(ctx context.Context, store ClockStore) (time.Time, error) {
	value, ok, err := store.Get(ctx, SessionStartKey)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read session start: %w", err)
	}
	if !ok || strings.TrimSpace(value) == "" {
		return time.Time{}, ErrNoSessionStart
	}

	millis, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse session start %q: %w", value, err)
	}

	return time.UnixMilli(millis), nil
}

// SetSessionStart writes t to the session clock as Unix milliseconds.
func SetSessionStart(ctx context.Context, store ClockStore, t time.Time) error {
	if err := store.Set(ctx, SessionStartKey, strconv.FormatInt(t.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("failed to write session start: %w", err)
	}
	return nil
}

// MemoryStore is a process-local ClockStore. Its lifetime is the session.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
