package model

import "time"

// Session is an opaque bearer token issued by the identity provider.
// This service only validates tokens; it never authenticates credentials.
type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
