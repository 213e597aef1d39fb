package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aldergrove/carecircle/internal/auth"
	"github.com/aldergrove/carecircle/internal/store"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// AccountHandler exposes the provisioning endpoints the identity provider
// calls and the session endpoints the app calls for itself.
type AccountHandler struct {
	users    *store.UserStore
	sessions *store.SessionStore
	logger   *slog.Logger
}

func NewAccountHandler(users *store.UserStore, sessions *store.SessionStore, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{users: users, sessions: sessions, logger: logger}
}

// ProvisionUser creates an account for an authenticated identity, or
// returns the existing one for the email.
func (h *AccountHandler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		writeErrorMsg(w, http.StatusBadRequest, "email is required")
		return
	}

	existing, err := h.users.GetByEmail(email)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusOK, existing)
		return
	}

	u, err := h.users.Create(email, req.Name, req.Phone)
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	h.logger.Info("user provisioned", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, u)
}

// ProvisionSession issues a session token for a user the identity provider
// has just authenticated.
func (h *AccountHandler) ProvisionSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   int64 `json:"user_id"`
		TTLHours int   `json:"ttl_hours"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	u, err := h.users.GetByID(req.UserID)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if u == nil {
		writeErrorMsg(w, http.StatusNotFound, "user not found")
		return
	}

	ttl := defaultSessionTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}
	sess, err := h.sessions.Create(u.ID, ttl)
	if err != nil {
		h.logger.Error("create session", "user_id", u.ID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// Me returns the authenticated user's own record.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil || u == nil {
		writeErrorMsg(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Logout deletes the session presented in the Authorization header.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if token != "" {
		if err := h.sessions.Delete(token); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
