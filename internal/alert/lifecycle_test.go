package alert

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/aldergrove/carecircle/internal/database"
	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/store"
)

func newManager(t *testing.T) (*Manager, *store.AlertStore, int64) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	seniorID := seedSenior(t, db)
	alerts := store.NewAlertStore(db)
	return NewManager(alerts, slog.New(slog.NewTextHandler(io.Discard, nil))), alerts, seniorID
}

func seedSenior(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	sr, err := store.NewSeniorStore(db).Create("Dorothy", "", model.Address{})
	if err != nil {
		t.Fatalf("create senior: %v", err)
	}
	return sr.ID
}

func mustCreate(t *testing.T, alerts *store.AlertStore, id string, seniorID int64, severity model.AlertSeverity) {
	t.Helper()
	if _, err := alerts.Create(id, seniorID, "no_motion", severity, model.DetectedIndicators{}); err != nil {
		t.Fatalf("create alert: %v", err)
	}
}

func TestFullLifecycle(t *testing.T) {
	m, alerts, seniorID := newManager(t)
	mustCreate(t, alerts, "a1", seniorID, model.SeverityMedium)

	a, err := m.Acknowledge("a1", 7)
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if a.Status != model.AlertAcknowledged || a.AcknowledgedBy == nil || *a.AcknowledgedBy != 7 {
		t.Errorf("after acknowledge: %+v", a)
	}

	a, err = m.StartProgress("a1", 7)
	if err != nil {
		t.Fatalf("start progress: %v", err)
	}
	if a.Status != model.AlertInProgress {
		t.Errorf("status = %s, want in_progress", a.Status)
	}

	a, err = m.Resolve("a1", 7, "all fine")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.Status != model.AlertResolved || a.ResolvedAt == nil || a.ResolutionNotes != "all fine" {
		t.Errorf("after resolve: %+v", a)
	}
}

// Resolving straight from new is not allowed: a closure must at least be
// acknowledged first.
func TestResolveFromNewRejected(t *testing.T) {
	m, alerts, seniorID := newManager(t)
	mustCreate(t, alerts, "a1", seniorID, model.SeverityMedium)

	_, err := m.Resolve("a1", 7, "notes")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	a, _ := alerts.GetByID("a1")
	if a.Status != model.AlertNew {
		t.Errorf("status = %s, want new (unchanged)", a.Status)
	}
}

func TestResolveFromAcknowledgedSkippingProgress(t *testing.T) {
	m, alerts, seniorID := newManager(t)
	mustCreate(t, alerts, "a1", seniorID, model.SeverityLow)

	if _, err := m.Acknowledge("a1", 7); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if _, err := m.Resolve("a1", 7, ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}

func TestFalsePositiveFromNew(t *testing.T) {
	m, alerts, seniorID := newManager(t)
	mustCreate(t, alerts, "a1", seniorID, model.SeverityMedium)

	a, err := m.MarkFalsePositive("a1", 7, "")
	if err != nil {
		t.Fatalf("false positive: %v", err)
	}
	if a.Status != model.AlertFalsePositive {
		t.Errorf("status = %s, want false_positive", a.Status)
	}
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	m, alerts, seniorID := newManager(t)
	mustCreate(t, alerts, "a1", seniorID, model.SeverityMedium)

	if _, err := m.MarkFalsePositive("a1", 7, ""); err != nil {
		t.Fatalf("false positive: %v", err)
	}

	if _, err := m.Acknowledge("a1", 8); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("acknowledge terminal: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := m.StartProgress("a1", 8); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("start progress terminal: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := m.Resolve("a1", 8, "n"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resolve terminal: err = %v, want ErrInvalidTransition", err)
	}
}

// A resolved alert has an acknowledger on record, but re-acknowledging it
// is an invalid transition, not a duplicate acknowledgment.
func TestAcknowledgeResolvedIsInvalidTransition(t *testing.T) {
	m, alerts, seniorID := newManager(t)
	mustCreate(t, alerts, "a1", seniorID, model.SeverityMedium)

	if _, err := m.Acknowledge("a1", 7); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if _, err := m.Resolve("a1", 7, "all fine"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err := m.Acknowledge("a1", 8)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestSecondAcknowledgeTyped(t *testing.T) {
	m, alerts, seniorID := newManager(t)
	mustCreate(t, alerts, "a1", seniorID, model.SeverityCritical)

	if _, err := m.Acknowledge("a1", 7); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	_, err := m.Acknowledge("a1", 8)
	if !errors.Is(err, ErrAlreadyAcknowledged) {
		t.Fatalf("err = %v, want ErrAlreadyAcknowledged", err)
	}

	a, _ := alerts.GetByID("a1")
	if a.AcknowledgedBy == nil || *a.AcknowledgedBy != 7 {
		t.Errorf("acknowledged_by = %v, want first responder 7", a.AcknowledgedBy)
	}
}

func TestNotesRequiredForHighSeverity(t *testing.T) {
	m, alerts, seniorID := newManager(t)

	for _, tc := range []struct {
		id       string
		severity model.AlertSeverity
		required bool
	}{
		{"low", model.SeverityLow, false},
		{"medium", model.SeverityMedium, false},
		{"high", model.SeverityHigh, true},
		{"critical", model.SeverityCritical, true},
	} {
		mustCreate(t, alerts, tc.id, seniorID, tc.severity)
		if _, err := m.Acknowledge(tc.id, 7); err != nil {
			t.Fatalf("acknowledge %s: %v", tc.id, err)
		}

		_, err := m.Resolve(tc.id, 7, "")
		if tc.required {
			if !errors.Is(err, ErrNotesRequired) {
				t.Errorf("%s: err = %v, want ErrNotesRequired", tc.id, err)
			}
			if _, err := m.Resolve(tc.id, 7, "checked in person"); err != nil {
				t.Errorf("%s: resolve with notes: %v", tc.id, err)
			}
		} else if err != nil {
			t.Errorf("%s: resolve without notes: %v", tc.id, err)
		}
	}
}

func TestNotesRequiredForFalsePositiveToo(t *testing.T) {
	m, alerts, seniorID := newManager(t)
	mustCreate(t, alerts, "a1", seniorID, model.SeverityCritical)

	_, err := m.MarkFalsePositive("a1", 7, "")
	if !errors.Is(err, ErrNotesRequired) {
		t.Fatalf("err = %v, want ErrNotesRequired", err)
	}
	if _, err := m.MarkFalsePositive("a1", 7, "sensor glitch confirmed"); err != nil {
		t.Fatalf("false positive with notes: %v", err)
	}
}

func TestUnknownAlert(t *testing.T) {
	m, _, _ := newManager(t)
	if _, err := m.Acknowledge("nope", 7); !errors.Is(err, ErrAlertNotFound) {
		t.Fatalf("err = %v, want ErrAlertNotFound", err)
	}
}
