// Package postgres stores session clocks in PostgreSQL so several processes
// acting for the same user share one clock.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/natserract/sfmc-contentblock/pkg/session"
)

// Store is a session.ClockStore scoped to one session id.
type Store struct {
	db        *DB
	sessionID uuid.UUID
	logger    *zap.Logger
}

var _ session.ClockStore = (*Store)(nil)

func NewStore(db *DB, sessionID uuid.UUID, logger *zap.Logger) *Store {
	return &Store{db: db, sessionID: sessionID, logger: logger}
}

// SessionID returns the id the store is scoped to.
func (s *Store) SessionID() uuid.UUID {
	return s.sessionID
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.Pool().QueryRow(ctx,
		`SELECT value FROM session_storage WHERE session_id = $1 AND key = $2`,
		s.sessionID, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Error("Failed to read session storage",
			zap.String("session_id", s.sessionID.String()),
			zap.String("key", key),
			zap.Error(err))
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Pool().Exec(ctx,
		`INSERT INTO session_storage (session_id, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (session_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		s.sessionID, key, value,
	)
	if err != nil {
		s.logger.Error("Failed to write session storage",
			zap.String("session_id", s.sessionID.String()),
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Clear deletes every value of the session, like closing a browser tab.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.Pool().Exec(ctx, `DELETE FROM session_storage WHERE session_id = $1`, s.sessionID); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", s.sessionID, err)
	}
	return nil
}
