package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wardenhq/warden/internal/model"
)

// ---------------------------------------------------------------------------
// Login-attempt ledger
// ---------------------------------------------------------------------------

// RecordAttempt appends one row to the login-attempt ledger. Callers treat
// failures as log-and-continue: a lost ledger row degrades abuse detection,
// never the auth decision itself.
func (s *Store) RecordAttempt(ctx context.Context, attempt *model.LoginAttempt) error {
	attempt.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO login_attempts
		(ip_address, username, success, user_agent, created_at)
		VALUES
		(:ip_address, :username, :success, :user_agent, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, attempt); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}
	return nil
}

// CountFailedAttemptsSince returns the number of failed attempts from an
// address after the given instant. The abuse detector's threshold input.
func (s *Store) CountFailedAttemptsSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	q := s.rebind("SELECT COUNT(*) FROM login_attempts WHERE ip_address = ? AND success = ? AND created_at > ?")
	if err := s.db.GetContext(ctx, &count, q, ip, false, since.UTC()); err != nil {
		return 0, fmt.Errorf("count failed attempts: %w", err)
	}
	return count, nil
}

// CountFailedAttemptsTotalSince returns the number of failed attempts across
// all addresses after the given instant, for the dashboard counters.
func (s *Store) CountFailedAttemptsTotalSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	q := s.rebind("SELECT COUNT(*) FROM login_attempts WHERE success = ? AND created_at > ?")
	if err := s.db.GetContext(ctx, &count, q, false, since.UTC()); err != nil {
		return 0, fmt.Errorf("count failed attempts total: %w", err)
	}
	return count, nil
}

// CountAttemptsSince returns the number of attempts, successful or not, from
// an address after the given instant. The security gate's throttle input.
func (s *Store) CountAttemptsSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	q := s.rebind("SELECT COUNT(*) FROM login_attempts WHERE ip_address = ? AND created_at > ?")
	if err := s.db.GetContext(ctx, &count, q, ip, since.UTC()); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

// ListAttempts returns recent ledger rows, newest first.
func (s *Store) ListAttempts(ctx context.Context, limit, offset int) ([]model.LoginAttempt, error) {
	var attempts []model.LoginAttempt
	q := s.rebind("SELECT * FROM login_attempts ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")
	if err := s.db.SelectContext(ctx, &attempts, q, limit, offset); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// CountAttempts returns the total size of the ledger.
func (s *Store) CountAttempts(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM login_attempts"); err != nil {
		return 0, fmt.Errorf("count all attempts: %w", err)
	}
	return count, nil
}

// DeleteAttemptsBefore prunes ledger rows older than the cutoff.
func (s *Store) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q := s.rebind("DELETE FROM login_attempts WHERE created_at < ?")
	result, err := s.db.ExecContext(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old attempts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old attempts rows affected: %w", err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Ban list
// ---------------------------------------------------------------------------

// UpsertBan writes or replaces the ban for an address in a single conditional
// write. Last write wins: re-banning replaces reason and expiry, it never
// accumulates rows. A nil bannedUntil is an indefinite ban.
func (s *Store) UpsertBan(ctx context.Context, ip, reason string, bannedUntil *time.Time) error {
	now := time.Now().UTC()
	q := s.rebind(`INSERT INTO banned_ips (ip_address, reason, banned_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (ip_address) DO UPDATE SET
			reason = excluded.reason,
			banned_until = excluded.banned_until,
			updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, ip, reason, bannedUntil, now, now); err != nil {
		return fmt.Errorf("upsert ban: %w", err)
	}
	return nil
}

// GetActiveBan returns the ban for an address if it is still in force at now.
// Expired bans are simply absent from this query; there is no unban call.
func (s *Store) GetActiveBan(ctx context.Context, ip string, now time.Time) (*model.BanRecord, error) {
	var ban model.BanRecord
	q := s.rebind("SELECT * FROM banned_ips WHERE ip_address = ? AND (banned_until IS NULL OR banned_until > ?)")
	if err := s.db.GetContext(ctx, &ban, q, ip, now.UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get active ban: %w", err)
	}
	return &ban, nil
}

// ListActiveBans returns all bans still in force at now, newest first.
func (s *Store) ListActiveBans(ctx context.Context, now time.Time) ([]model.BanRecord, error) {
	var bans []model.BanRecord
	q := s.rebind("SELECT * FROM banned_ips WHERE banned_until IS NULL OR banned_until > ? ORDER BY updated_at DESC")
	if err := s.db.SelectContext(ctx, &bans, q, now.UTC()); err != nil {
		return nil, fmt.Errorf("list active bans: %w", err)
	}
	return bans, nil
}

// CountActiveBans returns the number of bans still in force at now.
func (s *Store) CountActiveBans(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	q := s.rebind("SELECT COUNT(*) FROM banned_ips WHERE banned_until IS NULL OR banned_until > ?")
	if err := s.db.GetContext(ctx, &count, q, now.UTC()); err != nil {
		return 0, fmt.Errorf("count active bans: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Activity log
// ---------------------------------------------------------------------------

// RecordActivity appends an audit-trail row. Best-effort only.
func (s *Store) RecordActivity(ctx context.Context, entry *model.ActivityEntry) error {
	entry.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO activity_log
		(admin_id, action, ip_address, user_agent, created_at)
		VALUES
		(:admin_id, :action, :ip_address, :user_agent, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, entry); err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}

// Compact removes expired sessions and ledger rows older than the retention
// window. Called periodically by the server; purely an optimization since all
// reads filter on timestamps.
func (s *Store) Compact(ctx context.Context, attemptRetention time.Duration) error {
	now := time.Now().UTC()
	if _, err := s.DeleteExpiredSessions(ctx, now); err != nil {
		return err
	}
	if _, err := s.DeleteAttemptsBefore(ctx, now.Add(-attemptRetention)); err != nil {
		return err
	}
	return nil
}
