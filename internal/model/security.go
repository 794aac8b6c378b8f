package model

import "time"

// LoginAttempt is one row of the append-only authentication ledger. Every
// login attempt, successful or not, is recorded with its terminal outcome.
// Username is nullable: the gate may record attempts before a body is parsed.
type LoginAttempt struct {
	ID        int64     `json:"id" db:"id"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	Username  *string   `json:"username,omitempty" db:"username"`
	Success   bool      `json:"success" db:"success"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BanRecord denies all dashboard access to a source address. At most one row
// exists per address; re-banning replaces reason and expiry. A nil BannedUntil
// means the ban is indefinite. Bans expire lazily: there is no unban
// operation, an expired row is simply ignored by the active-ban query.
type BanRecord struct {
	IPAddress   string     `json:"ip_address" db:"ip_address"`
	Reason      string     `json:"reason" db:"reason"`
	BannedUntil *time.Time `json:"banned_until,omitempty" db:"banned_until"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Active reports whether the ban still applies at the given instant.
func (b *BanRecord) Active(now time.Time) bool {
	return b.BannedUntil == nil || b.BannedUntil.After(now)
}

// ActivityEntry records an administrative action for the audit trail shown on
// the dashboard. Writes are best-effort and never fail the triggering request.
type ActivityEntry struct {
	ID        int64     `json:"id" db:"id"`
	AdminID   *int64    `json:"admin_id,omitempty" db:"admin_id"`
	Action    string    `json:"action" db:"action"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
