package event

// Type identifies the type of domain event
type Type string

const (
	TypeTripCreated              Type = "trip.created"
	TypeStatusChanged            Type = "trip.status_changed"
	TypeApprovalRequested        Type = "approval.requested"
	TypeApprovalDecided          Type = "approval.decided"
	TypeCancellationRequested    Type = "cancellation.requested"
	TypeBookingFinalizeRequested Type = "booking.finalize_requested"
)

// AllTypes returns every defined event type
func AllTypes() []Type {
	return []Type{
		TypeTripCreated,
		TypeStatusChanged,
		TypeApprovalRequested,
		TypeApprovalDecided,
		TypeCancellationRequested,
		TypeBookingFinalizeRequested,
	}
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeTripCreated,
		TypeStatusChanged,
		TypeApprovalRequested,
		TypeApprovalDecided,
		TypeCancellationRequested,
		TypeBookingFinalizeRequested:
		return true
	default:
		return false
	}
}

// Payload keys shared by publishers and handlers
const (
	KeyApprovalID = "approval_id"
	KeyApproverID = "approver_id"
	KeyRole       = "role"
	KeyDecision   = "decision"
	KeyComments   = "comments"
	KeyFromStatus = "from_status"
	KeyToStatus   = "to_status"
	KeyReason     = "reason"

	KeyOptionText     = "option_text"
	KeyTotalCost      = "total_cost"
	KeyBookingPayload = "booking_payload"
)
