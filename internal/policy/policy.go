// Package policy evaluates whether a caller may perform an action on a
// resource. All role checks live here instead of per-endpoint comparisons so
// the rules stay auditable in one place.
package policy

import (
	pkgerrors "govbook/pkg/domain-errors"
	"govbook/pkg/requestcontext"
)

// Role values match the users.role column.
const (
	RoleCitizen = "citizen"
	RoleOfficer = "government_officer"
	RoleAdmin   = "admin"
	RoleSystem  = "system"
)

// Action names an operation subject to permission evaluation.
type Action string

const (
	ActionBook       Action = "book"
	ActionReschedule Action = "reschedule"
	ActionCancel     Action = "cancel"
	ActionTransition Action = "transition"
	ActionCascade    Action = "cascade"
	ActionVerifyDoc  Action = "verify_document"
	ActionAuditRead  Action = "audit_read"
)

// Allow decides whether actor may perform action on a resource owned by
// ownerID. Rules:
//
//   - Reschedule and cancel are owner-only. Admins do NOT bypass ownership
//     here: an admin who needs to clear an appointment uses a transition,
//     which leaves an audit trail under the admin's own identity.
//   - Transitions, cascades, and document verification require officer or
//     admin role.
//   - Booking requires the actor to book for themselves.
//   - The system actor (background workers) may do anything; it only ever
//     runs pre-vetted maintenance.
func Allow(actor requestcontext.ActorInfo, ownerID int64, action Action) error {
	if actor.Role == RoleSystem {
		return nil
	}

	switch action {
	case ActionBook:
		if actor.UserID != ownerID {
			return pkgerrors.New(pkgerrors.CodePermissionDenied, "appointments can only be booked for yourself")
		}
		return nil

	case ActionReschedule, ActionCancel:
		if actor.UserID != ownerID {
			return pkgerrors.New(pkgerrors.CodePermissionDenied, "only the booking owner may do this")
		}
		return nil

	case ActionTransition, ActionVerifyDoc:
		if actor.Role != RoleOfficer && actor.Role != RoleAdmin {
			return pkgerrors.New(pkgerrors.CodePermissionDenied, "officer or admin role required")
		}
		return nil

	case ActionCascade, ActionAuditRead:
		if actor.Role != RoleAdmin {
			return pkgerrors.New(pkgerrors.CodePermissionDenied, "admin role required")
		}
		return nil
	}

	return pkgerrors.Newf(pkgerrors.CodePermissionDenied, "unknown action %q", action)
}
