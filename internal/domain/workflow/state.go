package workflow

// State represents a trip status in the travel request lifecycle
type State string

const (
	StateSelectOption        State = "SELECT_OPTION"
	StateRMPending           State = "RM_PENDING"
	StateTravelAdminPending  State = "TRAVEL_ADMIN_PENDING"
	StateApproved            State = "APPROVED"
	StateVisaPending         State = "VISA_PENDING"
	StateVisaUploaded        State = "VISA_UPLOADED"
	StateOptionSelected      State = "OPTION_SELECTED"
	StateBooked              State = "BOOKED"
	StateRejected            State = "REJECTED"
	StateEdit                State = "EDIT"
	StateClosed              State = "CLOSED"
	StateCancellationPending State = "CANCELLATION_PENDING"
	StateCancelled           State = "CANCELLED"
)

var validStates = map[State]bool{
	StateSelectOption:        true,
	StateRMPending:           true,
	StateTravelAdminPending:  true,
	StateApproved:            true,
	StateVisaPending:         true,
	StateVisaUploaded:        true,
	StateOptionSelected:      true,
	StateBooked:              true,
	StateRejected:            true,
	StateEdit:                true,
	StateClosed:              true,
	StateCancellationPending: true,
	StateCancelled:           true,
}

var terminalStates = map[State]bool{
	StateRejected:  true,
	StateClosed:    true,
	StateCancelled: true,
}

// initialStates are the statuses a trip may be created in
var initialStates = map[State]bool{
	StateSelectOption:       true,
	StateRMPending:          true,
	StateTravelAdminPending: true,
	StateApproved:           true,
	StateVisaPending:        true,
}

// AllStates returns every trip status in declaration order
func AllStates() []State {
	return []State{
		StateSelectOption,
		StateRMPending,
		StateTravelAdminPending,
		StateApproved,
		StateVisaPending,
		StateVisaUploaded,
		StateOptionSelected,
		StateBooked,
		StateRejected,
		StateEdit,
		StateClosed,
		StateCancellationPending,
		StateCancelled,
	}
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsPendingApproval returns true if the state waits on an approval decision
func (s State) IsPendingApproval() bool {
	return s == StateRMPending || s == StateTravelAdminPending
}

// IsInitial returns true if a trip may start its life in this state
func (s State) IsInitial() bool {
	return initialStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid trip status
func (s State) IsValid() bool {
	return validStates[s]
}

// ParseState converts a raw status string into a State
func ParseState(raw string) (State, error) {
	s := State(raw)
	if !s.IsValid() {
		return "", ErrInvalidState
	}
	return s, nil
}
