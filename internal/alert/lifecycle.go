package alert

import (
	"errors"
	"log/slog"
	"time"

	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/store"
)

var (
	ErrAlertNotFound       = errors.New("alert not found")
	ErrInvalidTransition   = errors.New("invalid alert status transition")
	ErrAlreadyAcknowledged = errors.New("alert has already been acknowledged")
	ErrNotesRequired       = errors.New("resolution notes are required for this severity")
)

// Allowed source states per operation. resolve deliberately excludes
// "new": a closure must at least be acknowledged first.
var (
	startProgressFrom = []model.AlertStatus{model.AlertAcknowledged}
	resolveFrom       = []model.AlertStatus{model.AlertAcknowledged, model.AlertInProgress}
	falsePositiveFrom = []model.AlertStatus{model.AlertNew, model.AlertAcknowledged, model.AlertInProgress}
)

// Manager owns the alert state machine. Every transition is a conditional
// store update keyed on the allowed source states, so an illegal
// transition performs no write even under concurrent calls. Severity never
// changes after creation; only status and its actor/timestamp fields do.
type Manager struct {
	alerts *store.AlertStore
	logger *slog.Logger
}

func NewManager(alerts *store.AlertStore, logger *slog.Logger) *Manager {
	return &Manager{alerts: alerts, logger: logger}
}

// Acknowledge moves a new alert to acknowledged and stamps the actor.
// Re-acknowledgment is rejected rather than overwritten so the audit
// record keeps the first responder.
func (m *Manager) Acknowledge(id string, actorID int64) (*model.Alert, error) {
	a, err := m.alerts.GetByID(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAlertNotFound
	}

	ok, err := m.alerts.Acknowledge(id, actorID, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := m.alerts.GetByID(id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrAlertNotFound
		}
		// Terminal alerts stay invalid transitions even though they carry
		// an acknowledger; already-acknowledged only applies while open.
		switch current.Status {
		case model.AlertResolved, model.AlertFalsePositive:
			return nil, ErrInvalidTransition
		}
		if current.AcknowledgedBy != nil {
			return nil, ErrAlreadyAcknowledged
		}
		return nil, ErrInvalidTransition
	}

	m.logger.Info("alert acknowledged", "alert_id", id, "actor_id", actorID)
	return m.alerts.GetByID(id)
}

// StartProgress moves an acknowledged alert to in_progress.
func (m *Manager) StartProgress(id string, actorID int64) (*model.Alert, error) {
	a, err := m.alerts.GetByID(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAlertNotFound
	}

	ok, err := m.alerts.Transition(id, startProgressFrom, model.AlertInProgress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	m.logger.Info("alert in progress", "alert_id", id, "actor_id", actorID)
	return m.alerts.GetByID(id)
}

// Resolve closes an alert as handled. High and critical closures must be
// explained; empty notes are accepted for low and medium severity.
func (m *Manager) Resolve(id string, actorID int64, notes string) (*model.Alert, error) {
	return m.close(id, actorID, notes, model.AlertResolved, resolveFrom)
}

// MarkFalsePositive closes an alert as spurious, from any non-terminal
// state. The same notes policy as Resolve applies.
func (m *Manager) MarkFalsePositive(id string, actorID int64, notes string) (*model.Alert, error) {
	return m.close(id, actorID, notes, model.AlertFalsePositive, falsePositiveFrom)
}

func (m *Manager) close(id string, actorID int64, notes string, to model.AlertStatus, from []model.AlertStatus) (*model.Alert, error) {
	a, err := m.alerts.GetByID(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAlertNotFound
	}

	if notes == "" && (a.Severity == model.SeverityHigh || a.Severity == model.SeverityCritical) {
		return nil, ErrNotesRequired
	}

	ok, err := m.alerts.Close(id, from, to, notes, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	m.logger.Info("alert closed", "alert_id", id, "actor_id", actorID, "status", to)
	return m.alerts.GetByID(id)
}
