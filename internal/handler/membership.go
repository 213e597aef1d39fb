package handler

import (
	"log/slog"
	"net/http"

	"github.com/aldergrove/carecircle/internal/access"
	"github.com/aldergrove/carecircle/internal/auth"
	"github.com/aldergrove/carecircle/internal/family"
	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/store"
	ws "github.com/aldergrove/carecircle/internal/websocket"
)

type MembershipHandler struct {
	registry    *family.Registry
	memberships *store.MembershipStore
	hub         *ws.Hub
	logger      *slog.Logger
}

func NewMembershipHandler(registry *family.Registry, memberships *store.MembershipStore, hub *ws.Hub, logger *slog.Logger) *MembershipHandler {
	return &MembershipHandler{
		registry:    registry,
		memberships: memberships,
		hub:         hub,
		logger:      logger,
	}
}

func (h *MembershipHandler) actorMembership(w http.ResponseWriter, r *http.Request, seniorID int64) *model.FamilyMembership {
	m, err := h.memberships.GetByUserAndSenior(auth.UserID(r.Context()), seniorID)
	if err != nil {
		h.logger.Error("load membership", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to check membership")
		return nil
	}
	if m == nil {
		writeErrorMsg(w, http.StatusForbidden, "you are not a member of this care circle")
		return nil
	}
	return m
}

// lookup resolves the target membership from the path and the actor's own
// membership for the same senior, handling the error responses.
func (h *MembershipHandler) lookup(w http.ResponseWriter, r *http.Request) (target, actor *model.FamilyMembership) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid membership id")
		return nil, nil
	}
	target, err = h.memberships.GetByID(id)
	if err != nil {
		h.logger.Error("load membership", "membership_id", id, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to load membership")
		return nil, nil
	}
	if target == nil {
		writeDomainError(w, family.ErrMembershipNotFound)
		return nil, nil
	}
	actor = h.actorMembership(w, r, target.SeniorID)
	if actor == nil {
		return nil, nil
	}
	return target, actor
}

// List returns the full care circle for a senior.
func (h *MembershipHandler) List(w http.ResponseWriter, r *http.Request) {
	seniorID, err := parseIDParam(r, "id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid senior id")
		return
	}
	if m := h.actorMembership(w, r, seniorID); m == nil {
		return
	}

	members, err := h.memberships.ListBySenior(seniorID)
	if err != nil {
		h.logger.Error("list memberships", "senior_id", seniorID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.FamilyMembership{}
	}
	writeJSON(w, http.StatusOK, members)
}

// Create adds a member directly, without an invite code. Used by full-access
// members to add, say, a professional caregiver whose account already exists.
func (h *MembershipHandler) Create(w http.ResponseWriter, r *http.Request) {
	seniorID, err := parseIDParam(r, "id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid senior id")
		return
	}
	actor := h.actorMembership(w, r, seniorID)
	if actor == nil {
		return
	}
	if !access.CanAct(actor, access.OpCreateMembership, "") {
		writeDomainError(w, access.ErrUnauthorized)
		return
	}

	var req struct {
		UserID       int64  `json:"user_id"`
		Relationship string `json:"relationship"`
		AccessLevel  string `json:"access_level"`
		IsPrimary    bool   `json:"is_primary_contact"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == 0 {
		writeErrorMsg(w, http.StatusBadRequest, "user_id is required")
		return
	}
	level := model.AccessLevel(req.AccessLevel)
	if req.AccessLevel == "" {
		level = model.AccessStandard
	} else if !model.ValidAccessLevel(req.AccessLevel) {
		writeErrorMsg(w, http.StatusBadRequest, "access_level must be minimal, standard, or full")
		return
	}

	m, err := h.registry.Create(req.UserID, seniorID, req.Relationship, level, req.IsPrimary)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("create membership", "senior_id", seniorID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to create membership")
		return
	}

	h.hub.Broadcast(ws.NewMessage("membership", "created", seniorID, nil))
	writeJSON(w, http.StatusCreated, m)
}

// Remove deletes a membership. Removing the primary contact requires a
// replacement_id in the body; members may always remove themselves, subject
// to the same replacement rule.
func (h *MembershipHandler) Remove(w http.ResponseWriter, r *http.Request) {
	target, actor := h.lookup(w, r)
	if target == nil {
		return
	}

	selfRemoval := target.UserID == auth.UserID(r.Context())
	if !selfRemoval && !access.CanAct(actor, access.OpRemoveMembership, "") {
		writeDomainError(w, access.ErrUnauthorized)
		return
	}

	var req struct {
		ReplacementID int64 `json:"replacement_id"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.registry.Remove(target.ID, req.ReplacementID); err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("remove membership", "membership_id", target.ID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to remove membership")
		return
	}

	h.hub.Broadcast(ws.NewMessage("membership", "removed", target.SeniorID, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ChangeAccessLevel sets a member's level and records who changed it.
func (h *MembershipHandler) ChangeAccessLevel(w http.ResponseWriter, r *http.Request) {
	target, actor := h.lookup(w, r)
	if target == nil {
		return
	}
	if !access.CanAct(actor, access.OpChangeAccessLevel, "") {
		writeDomainError(w, access.ErrUnauthorized)
		return
	}

	var req struct {
		AccessLevel string `json:"access_level"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !model.ValidAccessLevel(req.AccessLevel) {
		writeErrorMsg(w, http.StatusBadRequest, "access_level must be minimal, standard, or full")
		return
	}

	m, err := h.registry.ChangeAccessLevel(target.ID, auth.UserID(r.Context()), model.AccessLevel(req.AccessLevel))
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("change access level", "membership_id", target.ID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to change access level")
		return
	}

	h.hub.Broadcast(ws.NewMessage("membership", "access_changed", target.SeniorID, nil))
	writeJSON(w, http.StatusOK, m)
}

// AccessHistory returns the audit log of level changes, oldest first.
func (h *MembershipHandler) AccessHistory(w http.ResponseWriter, r *http.Request) {
	target, actor := h.lookup(w, r)
	if target == nil {
		return
	}
	if !access.CanAct(actor, access.OpChangeAccessLevel, "") {
		writeDomainError(w, access.ErrUnauthorized)
		return
	}

	changes, err := h.memberships.AccessLevelHistory(target.ID)
	if err != nil {
		h.logger.Error("access history", "membership_id", target.ID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to load access history")
		return
	}
	if changes == nil {
		changes = []model.AccessLevelChange{}
	}
	writeJSON(w, http.StatusOK, changes)
}

// TransferPrimary moves the primary-contact role from the path membership
// to the membership named in the body.
func (h *MembershipHandler) TransferPrimary(w http.ResponseWriter, r *http.Request) {
	target, actor := h.lookup(w, r)
	if target == nil {
		return
	}
	if !access.CanAct(actor, access.OpTransferPrimary, "") {
		writeDomainError(w, access.ErrUnauthorized)
		return
	}

	var req struct {
		ToMembershipID int64 `json:"to_membership_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ToMembershipID == 0 {
		writeErrorMsg(w, http.StatusBadRequest, "to_membership_id is required")
		return
	}

	if err := h.registry.TransferPrimary(target.ID, req.ToMembershipID); err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("transfer primary", "from", target.ID, "to", req.ToMembershipID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to transfer primary contact")
		return
	}

	h.hub.Broadcast(ws.NewMessage("membership", "primary_transferred", target.SeniorID, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

// UpdateNotifications replaces the member's own delivery preferences.
// Members can only edit their own; no access level gates this.
func (h *MembershipHandler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	target, _ := h.lookup(w, r)
	if target == nil {
		return
	}
	if target.UserID != auth.UserID(r.Context()) {
		writeErrorMsg(w, http.StatusForbidden, "you can only change your own notification preferences")
		return
	}

	var prefs model.NotificationPreferences
	if err := decodeJSON(r, &prefs); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	m, err := h.memberships.UpdateNotificationPreferences(target.ID, prefs)
	if err != nil {
		h.logger.Error("update notification preferences", "membership_id", target.ID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to update preferences")
		return
	}
	writeJSON(w, http.StatusOK, m)
}
