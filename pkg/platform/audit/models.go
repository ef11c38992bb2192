package audit

import (
	"encoding/json"
	"time"
)

// Action names a logical state change recorded in the audit trail. The string
// values are a compatibility surface with the existing audit_logs consumers.
type Action string

const (
	// Booking actions
	ActionAppointmentCreated     Action = "APPOINTMENT_CREATED"
	ActionAppointmentStatus      Action = "APPOINTMENT_STATUS_CHANGED"
	ActionAppointmentRescheduled Action = "APPOINTMENT_RESCHEDULED"

	// Cascade parent actions
	ActionUserDeactivated       Action = "USER_DEACTIVATED"
	ActionUserReactivated       Action = "USER_REACTIVATED"
	ActionDepartmentDeactivated Action = "DEPARTMENT_DEACTIVATED"
	ActionDepartmentReactivated Action = "DEPARTMENT_REACTIVATED"
	ActionServiceDeactivated    Action = "SERVICE_DEACTIVATED"
	ActionServiceReactivated    Action = "SERVICE_REACTIVATED"

	// Cascade dependent actions
	ActionOfficerDeactivated Action = "OFFICER_DEACTIVATED"
	ActionOfficerReactivated Action = "OFFICER_REACTIVATED"
	ActionTimeSlotReset      Action = "TIMESLOT_RESET"
	ActionNotificationRead   Action = "NOTIFICATION_READ"

	// Document actions
	ActionDocumentVerification Action = "DOCUMENT_VERIFICATION_CHANGED"

	// User lifecycle
	ActionUserCreated Action = "USER_CREATED"
	ActionUserUpdated Action = "USER_UPDATED"
)

// Entry is one immutable audit record. Before and After hold JSON snapshots of
// the touched columns, matching the old_values/new_values audit_logs columns.
type Entry struct {
	ActorID   int64 // 0 means the system acted without a human caller
	Action    Action
	Table     string
	RecordID  int64
	Before    json.RawMessage
	After     json.RawMessage
	IP        string
	UserAgent string
	RequestID string
	CreatedAt time.Time
}

// Snapshot marshals a set of column values for Before/After fields. A nil map
// yields a nil snapshot, not "null".
func Snapshot(values map[string]any) json.RawMessage {
	if values == nil {
		return nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		// Map keys are strings and values are scalars everywhere this is
		// called; an error here means a programming mistake upstream.
		return json.RawMessage(`{}`)
	}
	return raw
}
