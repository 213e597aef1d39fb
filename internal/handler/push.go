package handler

import (
	"log/slog"
	"net/http"

	"github.com/aldergrove/carecircle/internal/auth"
	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/push"
	"github.com/aldergrove/carecircle/internal/store"
)

type PushHandler struct {
	subs    *store.PushStore
	pushSvc *push.Service
	logger  *slog.Logger
}

func NewPushHandler(subs *store.PushStore, pushSvc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: subs, pushSvc: pushSvc, logger: logger}
}

// VAPIDKey returns the public key the app needs to subscribe. Public route.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.pushSvc == nil {
		writeErrorMsg(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.pushSvc.VAPIDPublicKey()})
}

// Subscribe registers or refreshes a browser push endpoint for the user.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeErrorMsg(w, http.StatusBadRequest, "endpoint and keys are required")
		return
	}

	sub, err := h.subs.Subscribe(auth.UserID(r.Context()), req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		h.logger.Error("subscribe push", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe removes one of the user's own subscriptions.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid subscription id")
		return
	}
	if err := h.subs.Unsubscribe(id, auth.UserID(r.Context())); err != nil {
		h.logger.Error("unsubscribe push", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

// List returns the user's registered push endpoints.
func (h *PushHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}
