package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aldergrove/carecircle/internal/auth"
	"github.com/aldergrove/carecircle/internal/family"
	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/store"
)

type SeniorHandler struct {
	seniors     *store.SeniorStore
	memberships *store.MembershipStore
	registry    *family.Registry
	logger      *slog.Logger
}

func NewSeniorHandler(seniors *store.SeniorStore, memberships *store.MembershipStore, registry *family.Registry, logger *slog.Logger) *SeniorHandler {
	return &SeniorHandler{seniors: seniors, memberships: memberships, registry: registry, logger: logger}
}

// List returns the seniors whose care circles the user belongs to.
func (h *SeniorHandler) List(w http.ResponseWriter, r *http.Request) {
	seniors, err := h.seniors.ListForUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list seniors", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to list seniors")
		return
	}
	if seniors == nil {
		seniors = []model.Senior{}
	}
	writeJSON(w, http.StatusOK, seniors)
}

// Get returns one senior the user is a member for.
func (h *SeniorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid senior id")
		return
	}

	m, err := h.memberships.GetByUserAndSenior(auth.UserID(r.Context()), id)
	if err != nil {
		h.logger.Error("load membership", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if m == nil {
		writeErrorMsg(w, http.StatusForbidden, "you are not a member of this care circle")
		return
	}

	senior, err := h.seniors.GetByID(id)
	if err != nil {
		h.logger.Error("get senior", "senior_id", id, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to load senior")
		return
	}
	if senior == nil {
		writeErrorMsg(w, http.StatusNotFound, "senior not found")
		return
	}
	writeJSON(w, http.StatusOK, senior)
}

// Create registers a senior and makes the creator the primary contact of
// the new care circle.
func (h *SeniorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string        `json:"name"`
		Phone        string        `json:"phone"`
		Address      model.Address `json:"address"`
		Relationship string        `json:"relationship"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "name is required")
		return
	}

	senior, err := h.seniors.Create(strings.TrimSpace(req.Name), req.Phone, req.Address)
	if err != nil {
		h.logger.Error("create senior", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to create senior")
		return
	}

	m, err := h.registry.Create(auth.UserID(r.Context()), senior.ID, req.Relationship, model.AccessFull, true)
	if err != nil {
		// A senior without a care circle is unreachable; undo the first
		// write rather than leave the orphan row behind.
		if delErr := h.seniors.Delete(senior.ID); delErr != nil {
			h.logger.Error("remove orphaned senior", "senior_id", senior.ID, "error", delErr)
		}
		h.logger.Error("create founding membership", "senior_id", senior.ID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to create membership")
		return
	}

	h.logger.Info("senior registered", "senior_id", senior.ID, "primary_membership_id", m.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"senior":     senior,
		"membership": m,
	})
}

// Update edits a senior's contact details. Any member may correct them.
func (h *SeniorHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid senior id")
		return
	}

	m, err := h.memberships.GetByUserAndSenior(auth.UserID(r.Context()), id)
	if err != nil {
		h.logger.Error("load membership", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if m == nil {
		writeErrorMsg(w, http.StatusForbidden, "you are not a member of this care circle")
		return
	}

	var req struct {
		Name    string        `json:"name"`
		Phone   string        `json:"phone"`
		Address model.Address `json:"address"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "name is required")
		return
	}

	senior, err := h.seniors.Update(id, strings.TrimSpace(req.Name), req.Phone, req.Address)
	if err != nil {
		h.logger.Error("update senior", "senior_id", id, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to update senior")
		return
	}
	writeJSON(w, http.StatusOK, senior)
}
