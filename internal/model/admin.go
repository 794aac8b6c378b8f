package model

import "time"

// Admin represents an administrator account for the dashboard. Passwords are
// stored as bcrypt hashes. Accounts are provisioned via the CLI or the
// bootstrap config and are deactivated rather than deleted.
type Admin struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // bcrypt hash, never expose
	AccessKey    *string    `json:"-" db:"access_key"`    // optional second factor, never expose
	AvatarURL    *string    `json:"avatar_url,omitempty" db:"avatar_url"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	IsBaseAdmin  bool       `json:"is_base_admin" db:"is_base_admin"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// PublicAdmin is the subset of Admin returned to the dashboard after login
// and from the session-info endpoint.
type PublicAdmin struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	IsBaseAdmin bool    `json:"is_base_admin"`
}

// Public returns the externally visible view of the admin.
func (a *Admin) Public() PublicAdmin {
	return PublicAdmin{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		AvatarURL:   a.AvatarURL,
		IsBaseAdmin: a.IsBaseAdmin,
	}
}
