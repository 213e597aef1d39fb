package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aldergrove/carecircle/internal/model"
)

type AlertStore struct {
	db *sql.DB
}

func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

func scanAlert(scanner interface{ Scan(...any) error }) (*model.Alert, error) {
	var a model.Alert
	var indicators string
	var ackBy sql.NullInt64
	var ackAt, resolvedAt sql.NullTime

	err := scanner.Scan(
		&a.ID, &a.SeniorID, &a.AlertType, &a.Severity, &a.Status, &indicators,
		&ackBy, &ackAt, &resolvedAt, &a.ResolutionNotes, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if indicators != "" {
		if err := json.Unmarshal([]byte(indicators), &a.Indicators); err != nil {
			return nil, fmt.Errorf("decode indicators: %w", err)
		}
	}
	if ackBy.Valid {
		a.AcknowledgedBy = &ackBy.Int64
	}
	if ackAt.Valid {
		a.AcknowledgedAt = &ackAt.Time
	}
	if resolvedAt.Valid {
		a.ResolvedAt = &resolvedAt.Time
	}
	return &a, nil
}

const alertCols = `id, senior_id, alert_type, severity, status, indicators,
	acknowledged_by, acknowledged_at, resolved_at, resolution_notes, created_at`

// Create inserts a new alert in state "new". Only the external detection
// process writes alerts; everything else transitions them.
func (s *AlertStore) Create(id string, seniorID int64, alertType string, severity model.AlertSeverity, indicators model.DetectedIndicators) (*model.Alert, error) {
	encoded, err := json.Marshal(indicators)
	if err != nil {
		return nil, fmt.Errorf("encode indicators: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO alerts (id, senior_id, alert_type, severity, status, indicators) VALUES (?, ?, ?, ?, ?, ?)`,
		id, seniorID, alertType, severity, model.AlertNew, string(encoded),
	)
	if err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}
	return s.GetByID(id)
}

func (s *AlertStore) GetByID(id string) (*model.Alert, error) {
	row := s.db.QueryRow(`SELECT `+alertCols+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *AlertStore) ListBySenior(seniorID int64) ([]model.Alert, error) {
	rows, err := s.db.Query(
		`SELECT `+alertCols+` FROM alerts WHERE senior_id = ? ORDER BY created_at DESC`,
		seniorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// Acknowledge conditionally moves a "new" alert to "acknowledged" and
// stamps the actor. The WHERE clause is the whole legality check; zero
// rows affected means the alert was not in an acknowledgeable state.
func (s *AlertStore) Acknowledge(id string, actorID int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE alerts SET status = ?, acknowledged_by = ?, acknowledged_at = ?
		 WHERE id = ? AND status = ? AND acknowledged_by IS NULL`,
		model.AlertAcknowledged, actorID, at.UTC(), id, model.AlertNew,
	)
	if err != nil {
		return false, fmt.Errorf("acknowledge alert: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Transition conditionally moves an alert from any of the allowed source
// states to the target state. Zero rows affected means the alert was not
// in an allowed source state at write time.
func (s *AlertStore) Transition(id string, from []model.AlertStatus, to model.AlertStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	query := `UPDATE alerts SET status = ? WHERE id = ? AND status IN (?`
	args := []any{to, id, from[0]}
	for _, f := range from[1:] {
		query += `, ?`
		args = append(args, f)
	}
	query += `)`

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("transition alert: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Close is Transition plus the resolution stamp, for the two terminal
// states. Notes are recorded verbatim; validation happens above the store.
func (s *AlertStore) Close(id string, from []model.AlertStatus, to model.AlertStatus, notes string, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	query := `UPDATE alerts SET status = ?, resolved_at = ?, resolution_notes = ? WHERE id = ? AND status IN (?`
	args := []any{to, at.UTC(), notes, id, from[0]}
	for _, f := range from[1:] {
		query += `, ?`
		args = append(args, f)
	}
	query += `)`

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("close alert: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
