package model

import "time"

// Session is a durable login session row. The token column is the lookup key
// and doubles as the signed bearer credential handed to the browser. A session
// grants access only while expires_at is in the future and the owning admin is
// still active; both are re-checked on every lookup.
type Session struct {
	ID        int64     `json:"id" db:"id"`
	AdminID   int64     `json:"admin_id" db:"admin_id"`
	Token     string    `json:"-" db:"token"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
