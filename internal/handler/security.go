package handler

import (
	"net/http"
	"time"

	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/store"
)

// SecurityHandler serves the dashboard's abuse-mitigation views: the active
// ban list and the login-attempt ledger.
type SecurityHandler struct {
	store *store.Store
}

// NewSecurityHandler creates a SecurityHandler.
func NewSecurityHandler(st *store.Store) *SecurityHandler {
	return &SecurityHandler{store: st}
}

// ListBans returns all bans currently in force. Expired bans never appear;
// they expire lazily at read time.
// GET /api/v1/security/bans
func (h *SecurityHandler) ListBans(w http.ResponseWriter, r *http.Request) {
	bans, err := h.store.ListActiveBans(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bans")
		return
	}
	if bans == nil {
		bans = []model.BanRecord{}
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: bans,
		Meta:     &model.ResponseMeta{Count: len(bans)},
	})
}

// ListAttempts returns ledger rows, newest first, paginated.
// GET /api/v1/security/attempts?limit=50&offset=0
func (h *SecurityHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryInt(r, "limit", 50), 1, 500)
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	attempts, err := h.store.ListAttempts(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list attempts")
		return
	}
	if attempts == nil {
		attempts = []model.LoginAttempt{}
	}

	total, err := h.store.CountAttempts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count attempts")
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: attempts,
		Meta: &model.ResponseMeta{
			Count:  len(attempts),
			Total:  &total,
			Limit:  limit,
			Offset: offset,
		},
	})
}
