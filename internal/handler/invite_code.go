package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aldergrove/carecircle/internal/access"
	"github.com/aldergrove/carecircle/internal/auth"
	"github.com/aldergrove/carecircle/internal/email"
	"github.com/aldergrove/carecircle/internal/family"
	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/store"
	ws "github.com/aldergrove/carecircle/internal/websocket"
)

const defaultCodeTTL = 7 * 24 * time.Hour

type InviteCodeHandler struct {
	svc         *family.Service
	codes       *store.InviteCodeStore
	memberships *store.MembershipStore
	seniors     *store.SeniorStore
	mailer      *email.Client
	hub         *ws.Hub
	logger      *slog.Logger
}

func NewInviteCodeHandler(svc *family.Service, codes *store.InviteCodeStore, memberships *store.MembershipStore, seniors *store.SeniorStore, mailer *email.Client, hub *ws.Hub, logger *slog.Logger) *InviteCodeHandler {
	return &InviteCodeHandler{
		svc:         svc,
		codes:       codes,
		memberships: memberships,
		seniors:     seniors,
		mailer:      mailer,
		hub:         hub,
		logger:      logger,
	}
}

// membershipFor loads the acting user's membership for a senior, writing
// the unauthorized response when there is none.
func (h *InviteCodeHandler) membershipFor(w http.ResponseWriter, r *http.Request, seniorID int64) *model.FamilyMembership {
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

// Generate issues a fresh invite code for a senior, superseding any
// previously active one, and optionally emails it to a caregiver.
func (h *InviteCodeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	seniorID, err := parseIDParam(r, "id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid senior id")
		return
	}

	m := h.membershipFor(w, r, seniorID)
	if m == nil {
		return
	}
	if !access.CanAct(m, access.OpIssueCode, "") {
		writeDomainError(w, access.ErrUnauthorized)
		return
	}

	var req struct {
		MaxUses  int    `json:"max_uses"`
		TTLHours int    `json:"ttl_hours"`
		Email    string `json:"email"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ttl := defaultCodeTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}

	ic, err := h.svc.IssueCode(r.Context(), seniorID, m.ID, req.MaxUses, ttl)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("issue code", "senior_id", seniorID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to issue invite code")
		return
	}

	if req.Email != "" && h.mailer.Configured() {
		senior, err := h.seniors.GetByID(seniorID)
		if err == nil && senior != nil {
			if err := h.mailer.SendInviteCode(req.Email, ic.Code, senior.Name); err != nil {
				h.logger.Warn("send invite email", "error", err)
			}
		}
	}

	h.hub.Broadcast(ws.NewMessage("invite_code", "issued", seniorID, nil))
	writeJSON(w, http.StatusCreated, ic)
}

// List returns all codes for a senior, active and superseded, with their
// usage history.
func (h *InviteCodeHandler) List(w http.ResponseWriter, r *http.Request) {
	seniorID, err := parseIDParam(r, "id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid senior id")
		return
	}

	m := h.membershipFor(w, r, seniorID)
	if m == nil {
		return
	}
	if !access.CanAct(m, access.OpIssueCode, "") {
		writeDomainError(w, access.ErrUnauthorized)
		return
	}

	codes, err := h.codes.ListBySenior(seniorID)
	if err != nil {
		h.logger.Error("list codes", "senior_id", seniorID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to list invite codes")
		return
	}

	type codeWithHistory struct {
		model.InviteCode
		UsageHistory []model.CodeUse `json:"usage_history"`
	}
	out := make([]codeWithHistory, 0, len(codes))
	for _, c := range codes {
		uses, err := h.codes.UsageHistory(c.ID)
		if err != nil {
			h.logger.Error("load usage history", "code_id", c.ID, "error", err)
			writeErrorMsg(w, http.StatusInternalServerError, "failed to load usage history")
			return
		}
		if uses == nil {
			uses = []model.CodeUse{}
		}
		out = append(out, codeWithHistory{InviteCode: c, UsageHistory: uses})
	}
	writeJSON(w, http.StatusOK, out)
}

// Revoke deactivates a single code without touching its history.
func (h *InviteCodeHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("code")
	ic, err := h.codes.GetByCode(family.Normalize(raw))
	if err != nil {
		h.logger.Error("lookup code", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to look up code")
		return
	}
	if ic == nil {
		writeDomainError(w, family.ErrCodeNotFound)
		return
	}

	m := h.membershipFor(w, r, ic.SeniorID)
	if m == nil {
		return
	}
	if !access.CanAct(m, access.OpRevokeCode, "") {
		writeDomainError(w, access.ErrUnauthorized)
		return
	}

	if err := h.svc.RevokeCode(raw); err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("revoke code", "code_id", ic.ID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to revoke code")
		return
	}

	h.hub.Broadcast(ws.NewMessage("invite_code", "revoked", ic.SeniorID, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// Redeem consumes a code for the acting user and returns the new
// membership. Each typed failure maps to its own response.
func (h *InviteCodeHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code         string `json:"code"`
		Relationship string `json:"relationship"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "code is required")
		return
	}

	m, err := h.svc.Redeem(r.Context(), req.Code, auth.UserID(r.Context()), strings.TrimSpace(req.Relationship))
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("redeem code", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to redeem code")
		return
	}

	h.hub.Broadcast(ws.NewMessage("membership", "created", m.SeniorID, nil))
	writeJSON(w, http.StatusCreated, map[string]any{
		"senior_id":  m.SeniorID,
		"membership": m,
	})
}
