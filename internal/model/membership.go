package model

import "time"

// AccessLevel orders what a caregiver may see and do, from least to most.
type AccessLevel string

const (
	AccessMinimal  AccessLevel = "minimal"
	AccessStandard AccessLevel = "standard"
	AccessFull     AccessLevel = "full"
)

// ValidAccessLevel reports whether s is a recognized access level.
func ValidAccessLevel(s string) bool {
	switch AccessLevel(s) {
	case AccessMinimal, AccessStandard, AccessFull:
		return true
	}
	return false
}

// NotificationPreferences are per-membership delivery flags. The core
// treats them as opaque routing hints for the notifier.
type NotificationPreferences struct {
	PushEnabled    bool `json:"push_enabled"`
	EmailEnabled   bool `json:"email_enabled"`
	CriticalOnly   bool `json:"critical_only"`
	DailySummary   bool `json:"daily_summary"`
	QuietHoursFrom int  `json:"quiet_hours_from"`
	QuietHoursTo   int  `json:"quiet_hours_to"`
}

// FamilyMembership attaches a caregiver account to a senior's care circle.
// Identity is the (UserID, SeniorID) pair; the row id exists for the API.
type FamilyMembership struct {
	ID               int64                   `json:"id"`
	UserID           int64                   `json:"user_id"`
	SeniorID         int64                   `json:"senior_id"`
	Relationship     string                  `json:"relationship"`
	IsPrimaryContact bool                    `json:"is_primary_contact"`
	AccessLevel      AccessLevel             `json:"access_level"`
	Notifications    NotificationPreferences `json:"notifications"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// AccessLevelChange is one audit-log entry for an access-level mutation.
type AccessLevelChange struct {
	ID           int64       `json:"id"`
	MembershipID int64       `json:"membership_id"`
	ActorID      int64       `json:"actor_id"`
	OldLevel     AccessLevel `json:"old_level"`
	NewLevel     AccessLevel `json:"new_level"`
	CreatedAt    time.Time   `json:"created_at"`
}
