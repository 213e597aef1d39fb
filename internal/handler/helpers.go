package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aldergrove/carecircle/internal/access"
	"github.com/aldergrove/carecircle/internal/alert"
	"github.com/aldergrove/carecircle/internal/code"
	"github.com/aldergrove/carecircle/internal/family"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// decodeOptionalJSON decodes the body if one was sent; an empty body
// leaves v at its zero value.
func decodeOptionalJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}

// domainStatus maps each typed domain error to a distinct status code and
// message. "expired" and "exhausted" must never collapse into one generic
// failure.
var domainStatus = []struct {
	err    error
	status int
	msg    string
}{
	{family.ErrCodeNotFound, http.StatusNotFound, "invite code not found"},
	{family.ErrCodeRevoked, http.StatusGone, "invite code has been revoked"},
	{family.ErrCodeExpired, http.StatusGone, "invite code has expired"},
	{family.ErrCodeExhausted, http.StatusConflict, "invite code has no remaining uses"},
	{family.ErrAlreadyMember, http.StatusConflict, "you are already a member of this care circle"},
	{family.ErrPrimaryAlreadyAssigned, http.StatusConflict, "this senior already has a primary contact"},
	{family.ErrCannotRemovePrimary, http.StatusConflict, "nominate a replacement primary contact first"},
	{family.ErrNotPrimaryContact, http.StatusConflict, "membership is not the primary contact"},
	{family.ErrMembershipNotFound, http.StatusNotFound, "membership not found"},
	{code.ErrGenerationExhausted, http.StatusServiceUnavailable, "could not generate a unique code, try again"},
	{alert.ErrAlertNotFound, http.StatusNotFound, "alert not found"},
	{alert.ErrInvalidTransition, http.StatusConflict, "alert cannot change to that status from its current status"},
	{alert.ErrAlreadyAcknowledged, http.StatusConflict, "alert has already been acknowledged by someone else"},
	{alert.ErrNotesRequired, http.StatusBadRequest, "resolution notes are required for high and critical alerts"},
	{access.ErrUnauthorized, http.StatusForbidden, "your access level does not permit this operation"},
}

// writeDomainError writes the mapped response for a typed domain error
// and reports whether err matched one. Unmatched errors are the caller's
// problem and should get a 500.
func writeDomainError(w http.ResponseWriter, err error) bool {
	for _, d := range domainStatus {
		if errors.Is(err, d.err) {
			writeErrorMsg(w, d.status, d.msg)
			return true
		}
	}
	return false
}
