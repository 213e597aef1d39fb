package model

import "time"

// InviteCode is a short shareable code that attaches a new caregiver to a
// senior's care circle. Codes are never deleted; regeneration deactivates
// the old code and issues a new one.
type InviteCode struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	SeniorID    int64     `json:"senior_id"`
	CreatedBy   int64     `json:"created_by"` // issuing membership id
	MaxUses     int       `json:"max_uses"`
	CurrentUses int       `json:"current_uses"`
	ExpiresAt   time.Time `json:"expires_at"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// CodeUse is one append-only usage-history entry for an invite code.
type CodeUse struct {
	ID           int64     `json:"id"`
	CodeID       int64     `json:"code_id"`
	RedeemedBy   int64     `json:"redeemed_by"`
	Relationship string    `json:"relationship"`
	CreatedAt    time.Time `json:"created_at"`
}
