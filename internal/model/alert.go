package model

import "time"

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// ValidSeverity reports whether s is a recognized severity.
func ValidSeverity(s string) bool {
	switch AlertSeverity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type AlertStatus string

const (
	AlertNew           AlertStatus = "new"
	AlertAcknowledged  AlertStatus = "acknowledged"
	AlertInProgress    AlertStatus = "in_progress"
	AlertResolved      AlertStatus = "resolved"
	AlertFalsePositive AlertStatus = "false_positive"
)

// DetectedIndicators are the known signals the detection process reports
// with an alert. Extra carries open-ended detector output verbatim.
type DetectedIndicators struct {
	MissedCheckIn   bool              `json:"missed_check_in,omitempty"`
	NoMotionMinutes int               `json:"no_motion_minutes,omitempty"`
	FallDetected    bool              `json:"fall_detected,omitempty"`
	WellBeingScore  *float64          `json:"well_being_score,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Alert is a detected well-being event. Rows are created by the external
// detection process in state "new" and only ever transitioned, never
// deleted; terminal rows are retained for audit.
type Alert struct {
	ID              string             `json:"id"`
	SeniorID        int64              `json:"senior_id"`
	AlertType       string             `json:"alert_type"`
	Severity        AlertSeverity      `json:"severity"`
	Status          AlertStatus        `json:"status"`
	Indicators      DetectedIndicators `json:"indicators"`
	AcknowledgedBy  *int64             `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time         `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time         `json:"resolved_at,omitempty"`
	ResolutionNotes string             `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}
