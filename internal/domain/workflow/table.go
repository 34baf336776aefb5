package workflow

import "sort"

// Table is an immutable transition table, safe for concurrent use
type Table struct {
	edges map[State]map[Trigger][]edge
	order []Transition
}

// Next returns the state reached by firing trigger from `from` with the given
// facts. The first edge whose guard passes wins. When the trigger exists but
// every guard rejects, the error wraps ErrGuardFailed.
func (t *Table) Next(from State, trigger Trigger, facts Facts) (State, error) {
	if !from.IsValid() {
		return "", &TransitionError{From: from, Trigger: trigger, Err: ErrInvalidState}
	}

	list := t.edges[from][trigger]
	if len(list) == 0 {
		return "", &TransitionError{From: from, Trigger: trigger, Err: ErrInvalidTransition}
	}

	for _, e := range list {
		if e.guard == nil || e.guard(facts) {
			return e.to, nil
		}
	}
	return "", &TransitionError{From: from, Trigger: trigger, Err: ErrGuardFailed}
}

// CanFire reports whether trigger leads anywhere from `from` under facts
func (t *Table) CanFire(from State, trigger Trigger, facts Facts) bool {
	_, err := t.Next(from, trigger, facts)
	return err == nil
}

// Permitted returns the triggers that can fire from `from` under facts, sorted
func (t *Table) Permitted(from State, facts Facts) []Trigger {
	triggers := make([]Trigger, 0, len(t.edges[from]))
	for trigger := range t.edges[from] {
		if t.CanFire(from, trigger, facts) {
			triggers = append(triggers, trigger)
		}
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}

// transitions lists every configured edge in configuration order
func (t *Table) transitions() []Transition {
	return append([]Transition(nil), t.order...)
}
