package workflow

import (
	"fmt"
)

// GuardFunc decides whether a guarded transition applies to the given facts
type GuardFunc func(f Facts) bool

// Transition is one edge of a transition table. Guard is empty for
// unconditional edges.
type Transition struct {
	From    State
	Trigger Trigger
	To      State
	Guard   string
}

// edge is a configured target with its optional guard
type edge struct {
	to        State
	guard     GuardFunc
	guardName string
}

// Builder accumulates transitions and freezes them into a Table
type Builder struct {
	edges map[State]map[Trigger][]edge
	order []Transition
}

// StateConfig configures the outgoing transitions of one state
type StateConfig struct {
	b    *Builder
	from State
}

// NewBuilder creates an empty transition table builder
func NewBuilder() *Builder {
	return &Builder{edges: make(map[State]map[Trigger][]edge)}
}

// Configure returns the configuration for state. It panics on an unknown
// state because tables are built at init time.
func (b *Builder) Configure(state State) *StateConfig {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if b.edges[state] == nil {
		b.edges[state] = make(map[Trigger][]edge)
	}
	return &StateConfig{b: b, from: state}
}

// Permit adds an unconditional transition
func (c *StateConfig) Permit(trigger Trigger, to State) *StateConfig {
	return c.add(trigger, to, "", nil)
}

// PermitIf adds a transition taken only when guard accepts the facts.
// Edges for the same trigger are tried in the order they were added.
func (c *StateConfig) PermitIf(trigger Trigger, to State, name string, guard GuardFunc) *StateConfig {
	if guard == nil {
		panic(fmt.Sprintf("nil guard for %s from %s", trigger, c.from))
	}
	return c.add(trigger, to, name, guard)
}

func (c *StateConfig) add(trigger Trigger, to State, name string, guard GuardFunc) *StateConfig {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	c.b.edges[c.from][trigger] = append(c.b.edges[c.from][trigger], edge{to: to, guard: guard, guardName: name})
	c.b.order = append(c.b.order, Transition{From: c.from, Trigger: trigger, To: to, Guard: name})
	return c
}

// Build freezes the configured transitions. Later changes to the builder do
// not affect the returned table.
func (b *Builder) Build() *Table {
	edges := make(map[State]map[Trigger][]edge, len(b.edges))
	for state, byTrigger := range b.edges {
		copied := make(map[Trigger][]edge, len(byTrigger))
		for trigger, list := range byTrigger {
			copied[trigger] = append([]edge(nil), list...)
		}
		edges[state] = copied
	}
	return &Table{
		edges: edges,
		order: append([]Transition(nil), b.order...),
	}
}
