// Package access derives what a membership may do from its access level.
// The policy is pure and is consulted by API handlers before they invoke
// the registry or lifecycle manager, which stay open to trusted internal
// callers such as migrations.
package access

import (
	"errors"

	"github.com/aldergrove/carecircle/internal/model"
)

var ErrUnauthorized = errors.New("membership does not permit this operation")

type Operation string

const (
	OpAcknowledgeAlert   Operation = "acknowledge_alert"
	OpStartAlertProgress Operation = "start_alert_progress"
	OpResolveAlert       Operation = "resolve_alert"
	OpMarkFalsePositive  Operation = "mark_false_positive"
	OpViewAlerts         Operation = "view_alerts"
	OpCreateMembership   Operation = "create_membership"
	OpRemoveMembership   Operation = "remove_membership"
	OpChangeAccessLevel  Operation = "change_access_level"
	OpTransferPrimary    Operation = "transfer_primary"
	OpIssueCode          Operation = "issue_code"
	OpRevokeCode         Operation = "revoke_code"
)

func isAlertTransition(op Operation) bool {
	switch op {
	case OpAcknowledgeAlert, OpStartAlertProgress, OpResolveAlert, OpMarkFalsePositive:
		return true
	}
	return false
}

// CanAct reports whether the membership may perform op. Severity matters
// only for alert transitions; pass the alert's severity there and zero
// otherwise. A nil membership (non-member) may do nothing.
//
//	minimal:  acknowledge/escalate critical alerts only
//	standard: any alert transition
//	full:     everything, including membership changes and code issuance
func CanAct(m *model.FamilyMembership, op Operation, severity model.AlertSeverity) bool {
	if m == nil {
		return false
	}

	switch m.AccessLevel {
	case model.AccessFull:
		return true
	case model.AccessStandard:
		return op == OpViewAlerts || isAlertTransition(op)
	case model.AccessMinimal:
		if op == OpViewAlerts {
			return true
		}
		if op == OpAcknowledgeAlert || op == OpStartAlertProgress {
			return severity == model.SeverityCritical
		}
		return false
	}
	return false
}
