package handler

import (
	"net/http"
	"time"

	"github.com/wardenhq/warden/internal/store"
)

// DashboardHandler serves the aggregate counters shown on the dashboard
// landing page.
type DashboardHandler struct {
	store *store.Store
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(st *store.Store) *DashboardHandler {
	return &DashboardHandler{store: st}
}

type dashboardStats struct {
	Admins           int64 `json:"admins"`
	ActiveSessions   int64 `json:"active_sessions"`
	ActiveBans       int64 `json:"active_bans"`
	FailedAttempts24 int64 `json:"failed_attempts_24h"`
}

// Stats returns account, session, and abuse counters.
// GET /api/v1/dashboard/stats
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()

	var stats dashboardStats
	var err error

	if stats.Admins, err = h.store.CountAdmins(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	if stats.ActiveSessions, err = h.store.CountActiveSessions(ctx, now); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	if stats.ActiveBans, err = h.store.CountActiveBans(ctx, now); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	if stats.FailedAttempts24, err = h.store.CountFailedAttemptsTotalSince(ctx, now.Add(-24*time.Hour)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
