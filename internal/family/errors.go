package family

import "errors"

// Typed redemption and membership errors. Every one of these is a
// recoverable condition the API maps to a distinct response; none is
// treated as fatal.
var (
	ErrCodeNotFound           = errors.New("invite code not found")
	ErrCodeRevoked            = errors.New("invite code has been revoked")
	ErrCodeExpired            = errors.New("invite code has expired")
	ErrCodeExhausted          = errors.New("invite code has no remaining uses")
	ErrAlreadyMember          = errors.New("user is already a member of this care circle")
	ErrPrimaryAlreadyAssigned = errors.New("senior already has a primary contact")
	ErrCannotRemovePrimary    = errors.New("cannot remove the primary contact without a replacement")
	ErrMembershipNotFound     = errors.New("membership not found")
	ErrNotPrimaryContact      = errors.New("membership is not the primary contact")
)
