package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerRouteToManager      Trigger = "ROUTE_TO_MANAGER"
	TriggerRouteToAdmin        Trigger = "ROUTE_TO_ADMIN"
	TriggerSelfApprove         Trigger = "SELF_APPROVE"
	TriggerAccept              Trigger = "ACCEPT"
	TriggerReject              Trigger = "REJECT"
	TriggerSendBack            Trigger = "SEND_BACK"
	TriggerMarkOptionsUploaded Trigger = "MARK_OPTIONS_UPLOADED"
	TriggerChooseOption        Trigger = "CHOOSE_OPTION"
	TriggerRecordBooking       Trigger = "RECORD_BOOKING"
	TriggerRecordVisa          Trigger = "RECORD_VISA"
	TriggerClose               Trigger = "CLOSE"
	TriggerRequestCancel       Trigger = "REQUEST_CANCEL"
	TriggerConfirmCancel       Trigger = "CONFIRM_CANCEL"
	TriggerReschedule          Trigger = "RESCHEDULE"
	TriggerAutoClose           Trigger = "AUTO_CLOSE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// RouteTrigger maps a resolved routing status to the trigger that reaches it
// from SELECT_OPTION.
func RouteTrigger(resolved State) (Trigger, bool) {
	switch resolved {
	case StateRMPending:
		return TriggerRouteToManager, true
	case StateTravelAdminPending:
		return TriggerRouteToAdmin, true
	case StateApproved:
		return TriggerSelfApprove, true
	default:
		return "", false
	}
}
