package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wardenhq/warden/internal/model"
)

// CreateAdmin inserts a new admin account. The ID, CreatedAt, and UpdatedAt
// fields on admin are populated after a successful insert.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const q = `INSERT INTO admins
		(username, email, password_hash, access_key, avatar_url, is_active, is_base_admin, created_at, updated_at)
		VALUES
		(:username, :email, :password_hash, :access_key, :avatar_url, :is_active, :is_base_admin, :created_at, :updated_at)`

	if s.driver == DriverPostgres {
		rows, err := s.db.NamedQueryContext(ctx, q+" RETURNING id", admin)
		if err != nil {
			return fmt.Errorf("insert admin: %w", err)
		}
		defer rows.Close()
		if rows.Next() {
			if err := rows.Scan(&admin.ID); err != nil {
				return fmt.Errorf("scan admin id: %w", err)
			}
		}
		return rows.Err()
	}

	result, err := s.db.NamedExecContext(ctx, q, admin)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get admin id: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdminByUsername returns an admin by its unique username.
func (s *Store) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	var admin model.Admin
	q := s.rebind("SELECT * FROM admins WHERE username = ?")
	if err := s.db.GetContext(ctx, &admin, q, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by username: %w", err)
	}
	return &admin, nil
}

// GetAdminByID returns an admin by ID.
func (s *Store) GetAdminByID(ctx context.Context, id int64) (*model.Admin, error) {
	var admin model.Admin
	q := s.rebind("SELECT * FROM admins WHERE id = ?")
	if err := s.db.GetContext(ctx, &admin, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, "SELECT * FROM admins ORDER BY username"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// CountAdmins returns the number of admin accounts.
func (s *Store) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

// SetAdminActive toggles the active flag. Deactivated admins cannot log in
// and their existing sessions stop resolving immediately.
func (s *Store) SetAdminActive(ctx context.Context, id int64, active bool) error {
	q := s.rebind("UPDATE admins SET is_active = ?, updated_at = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set admin active: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set admin active rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAdminLastLogin sets the last_login_at timestamp for an admin.
func (s *Store) UpdateAdminLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	q := s.rebind("UPDATE admins SET last_login_at = ?, updated_at = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, q, now, now, id)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin last login rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
