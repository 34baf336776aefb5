package workflow

// tripTable is the fixed trip lifecycle
var tripTable = newTripTable()

func newTripTable() *Table {
	b := NewBuilder()

	b.Configure(StateSelectOption).
		Permit(TriggerRouteToManager, StateRMPending).
		Permit(TriggerRouteToAdmin, StateTravelAdminPending).
		Permit(TriggerSelfApprove, StateApproved).
		PermitIf(TriggerChooseOption, StateOptionSelected, "options uploaded", optionsUploaded)

	b.Configure(StateRMPending).
		PermitIf(TriggerAccept, StateTravelAdminPending, "travel admin exists", hasTravelAdmin).
		Permit(TriggerAccept, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerSendBack, StateEdit)

	b.Configure(StateTravelAdminPending).
		PermitIf(TriggerAccept, StateBooked, "option selected", optionSelected).
		PermitIf(TriggerAccept, StateVisaPending, "visa request", visaRequest).
		Permit(TriggerAccept, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerSendBack, StateEdit)

	b.Configure(StateApproved).
		Permit(TriggerMarkOptionsUploaded, StateSelectOption)

	b.Configure(StateOptionSelected).
		Permit(TriggerRecordBooking, StateBooked)

	b.Configure(StateVisaPending).
		Permit(TriggerRecordVisa, StateVisaUploaded)

	b.Configure(StateBooked).
		Permit(TriggerRequestCancel, StateCancellationPending).
		Permit(TriggerReschedule, StateApproved).
		Permit(TriggerAutoClose, StateClosed)

	b.Configure(StateCancellationPending).
		Permit(TriggerConfirmCancel, StateCancelled)

	for _, s := range []State{
		StateSelectOption,
		StateRMPending,
		StateTravelAdminPending,
		StateApproved,
		StateVisaPending,
		StateVisaUploaded,
		StateOptionSelected,
		StateEdit,
	} {
		b.Configure(s).Permit(TriggerRequestCancel, StateCancelled)
	}

	// Close is owner-gated only, so every status may be closed.
	for _, s := range AllStates() {
		b.Configure(s).Permit(TriggerClose, StateClosed)
	}

	return b.Build()
}


// Next computes the status reached by firing trigger from current with the
// given guard facts, without mutating anything.
func Next(current State, trigger Trigger, facts Facts) (State, error) {
	return tripTable.Next(current, trigger, facts)
}

// Permitted lists the triggers that can fire from current given the facts,
// sorted by name
func Permitted(current State, facts Facts) []Trigger {
	return tripTable.Permitted(current, facts)
}
