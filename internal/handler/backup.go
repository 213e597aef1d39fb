package handler

import (
	"log/slog"
	"net/http"

	"github.com/aldergrove/carecircle/internal/backup"
	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/store"
)

// BackupHandler is the operator surface for the backup manager, reachable
// only with the service token.
type BackupHandler struct {
	manager *backup.Manager
	backups *store.BackupStore
	logger  *slog.Logger
}

func NewBackupHandler(manager *backup.Manager, backups *store.BackupStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: manager, backups: backups, logger: logger}
}

// Status returns the manager state and the most recent snapshot records.
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	recent, err := h.backups.List(20)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if recent == nil {
		recent = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": h.manager.Status(),
		"recent": recent,
	})
}

// Run triggers an immediate snapshot.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"backup_id": id})
}
