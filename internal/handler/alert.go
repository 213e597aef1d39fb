package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aldergrove/carecircle/internal/access"
	"github.com/aldergrove/carecircle/internal/alert"
	"github.com/aldergrove/carecircle/internal/auth"
	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/store"
	ws "github.com/aldergrove/carecircle/internal/websocket"
)

type AlertHandler struct {
	alerts      *store.AlertStore
	seniors     *store.SeniorStore
	memberships *store.MembershipStore
	lifecycle   *alert.Manager
	notifier    *alert.Notifier
	hub         *ws.Hub
	logger      *slog.Logger
}

func NewAlertHandler(alerts *store.AlertStore, seniors *store.SeniorStore, memberships *store.MembershipStore, lifecycle *alert.Manager, notifier *alert.Notifier, hub *ws.Hub, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		alerts:      alerts,
		seniors:     seniors,
		memberships: memberships,
		lifecycle:   lifecycle,
		notifier:    notifier,
		hub:         hub,
		logger:      logger,
	}
}

// Ingest accepts a detected alert from the detection process. The route is
// guarded by the detector token, not a user session.
func (h *AlertHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SeniorID   int64                    `json:"senior_id"`
		AlertType  string                   `json:"alert_type"`
		Severity   string                   `json:"severity"`
		Indicators model.DetectedIndicators `json:"indicators"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SeniorID == 0 || strings.TrimSpace(req.AlertType) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "senior_id and alert_type are required")
		return
	}
	if !model.ValidSeverity(req.Severity) {
		writeErrorMsg(w, http.StatusBadRequest, "severity must be low, medium, high, or critical")
		return
	}

	senior, err := h.seniors.GetByID(req.SeniorID)
	if err != nil {
		h.logger.Error("load senior for ingest", "senior_id", req.SeniorID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to load senior")
		return
	}
	if senior == nil {
		writeErrorMsg(w, http.StatusNotFound, "senior not found")
		return
	}

	a, err := h.alerts.Create(uuid.NewString(), req.SeniorID, req.AlertType, model.AlertSeverity(req.Severity), req.Indicators)
	if err != nil {
		h.logger.Error("create alert", "senior_id", req.SeniorID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to create alert")
		return
	}

	h.logger.Info("alert ingested", "alert_id", a.ID, "senior_id", a.SeniorID, "severity", a.Severity)
	h.broadcast(a, "created")
	h.notifier.NotifyNew(a, senior.Name)
	writeJSON(w, http.StatusCreated, a)
}

// List returns the alert history for a senior, newest first.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	seniorID, err := parseIDParam(r, "id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid senior id")
		return
	}

	m, err := h.memberships.GetByUserAndSenior(auth.UserID(r.Context()), seniorID)
	if err != nil {
		h.logger.Error("load membership", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if !access.CanAct(m, access.OpViewAlerts, "") {
		writeDomainError(w, access.ErrUnauthorized)
		return
	}

	alerts, err := h.alerts.ListBySenior(seniorID)
	if err != nil {
		h.logger.Error("list alerts", "senior_id", seniorID, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// Get returns a single alert.
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.authorize(w, r, access.OpViewAlerts)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// authorize loads the alert and the actor's membership for its senior, and
// checks the policy for op against the alert's severity.
func (h *AlertHandler) authorize(w http.ResponseWriter, r *http.Request, op access.Operation) (*model.Alert, *model.FamilyMembership, bool) {
	id := r.PathValue("id")
	a, err := h.alerts.GetByID(id)
	if err != nil {
		h.logger.Error("load alert", "alert_id", id, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to load alert")
		return nil, nil, false
	}
	if a == nil {
		writeDomainError(w, alert.ErrAlertNotFound)
		return nil, nil, false
	}

	m, err := h.memberships.GetByUserAndSenior(auth.UserID(r.Context()), a.SeniorID)
	if err != nil {
		h.logger.Error("load membership", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to check membership")
		return nil, nil, false
	}
	if !access.CanAct(m, op, a.Severity) {
		writeDomainError(w, access.ErrUnauthorized)
		return nil, nil, false
	}
	return a, m, true
}

// Acknowledge claims a new alert for the acting caregiver.
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, access.OpAcknowledgeAlert, func(id string, actorID int64, _ string) (*model.Alert, error) {
		return h.lifecycle.Acknowledge(id, actorID)
	})
}

// StartProgress marks an acknowledged alert as actively being handled.
func (h *AlertHandler) StartProgress(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, access.OpStartAlertProgress, func(id string, actorID int64, _ string) (*model.Alert, error) {
		return h.lifecycle.StartProgress(id, actorID)
	})
}

// Resolve closes an alert as handled.
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, access.OpResolveAlert, h.lifecycle.Resolve)
}

// MarkFalsePositive closes an alert as spurious.
func (h *AlertHandler) MarkFalsePositive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, access.OpMarkFalsePositive, h.lifecycle.MarkFalsePositive)
}

func (h *AlertHandler) transition(w http.ResponseWriter, r *http.Request, op access.Operation, apply func(id string, actorID int64, notes string) (*model.Alert, error)) {
	a, _, ok := h.authorize(w, r, op)
	if !ok {
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	updated, err := apply(a.ID, auth.UserID(r.Context()), strings.TrimSpace(req.Notes))
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		h.logger.Error("alert transition", "alert_id", a.ID, "op", op, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to update alert")
		return
	}

	h.broadcast(updated, "status_changed")
	if senior, err := h.seniors.GetByID(updated.SeniorID); err == nil && senior != nil {
		h.notifier.NotifyStatus(updated, senior.Name)
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AlertHandler) broadcast(a *model.Alert, action string) {
	h.hub.Broadcast(ws.NewMessage("alert", action, a.SeniorID, map[string]any{
		"alert_id": a.ID,
		"status":   string(a.Status),
		"severity": string(a.Severity),
	}))
}
