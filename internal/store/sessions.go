package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wardenhq/warden/internal/model"
)

// CreateSession inserts a new session row. The ID and CreatedAt fields are
// populated after a successful insert.
func (s *Store) CreateSession(ctx context.Context, session *model.Session) error {
	session.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO sessions
		(admin_id, token, ip_address, user_agent, expires_at, created_at)
		VALUES
		(:admin_id, :token, :ip_address, :user_agent, :expires_at, :created_at)`

	if s.driver == DriverPostgres {
		rows, err := s.db.NamedQueryContext(ctx, q+" RETURNING id", session)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		defer rows.Close()
		if rows.Next() {
			if err := rows.Scan(&session.ID); err != nil {
				return fmt.Errorf("scan session id: %w", err)
			}
		}
		return rows.Err()
	}

	result, err := s.db.NamedExecContext(ctx, q, session)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get session id: %w", err)
	}
	session.ID = id
	return nil
}

// GetSessionByToken returns the session for a token if its expiry is after
// now. Expired rows are never returned even if they still physically exist;
// they are removed lazily by Compact.
func (s *Store) GetSessionByToken(ctx context.Context, token string, now time.Time) (*model.Session, error) {
	var session model.Session
	q := s.rebind("SELECT * FROM sessions WHERE token = ? AND expires_at > ?")
	if err := s.db.GetContext(ctx, &session, q, token, now.UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return &session, nil
}

// DeleteSessionByToken removes a session row. Deleting an absent token is not
// an error; logout must be idempotent.
func (s *Store) DeleteSessionByToken(ctx context.Context, token string) error {
	q := s.rebind("DELETE FROM sessions WHERE token = ?")
	if _, err := s.db.ExecContext(ctx, q, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes rows whose expiry has passed and returns the
// number deleted. Correctness never depends on this; reads filter on expiry.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	q := s.rebind("DELETE FROM sessions WHERE expires_at <= ?")
	result, err := s.db.ExecContext(ctx, q, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions rows affected: %w", err)
	}
	return n, nil
}

// CountActiveSessions returns the number of unexpired sessions.
func (s *Store) CountActiveSessions(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	q := s.rebind("SELECT COUNT(*) FROM sessions WHERE expires_at > ?")
	if err := s.db.GetContext(ctx, &count, q, now.UTC()); err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}
