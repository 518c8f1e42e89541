package transition

import "github.com/campusgrid/campusgrid/pkg/gamestate"

type State int

const (
	StateIdle State = iota
	StatePendingTransition
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingTransition:
		return "pending"
	}
	return "unknown"
}

// Machine tracks whether the local player stands on a transition point
// and holds the pending target until it is confirmed or superseded.
// It is owned by the session goroutine and is not safe for concurrent use.
type Machine struct {
	table     Table
	hubMap    string
	returnMap string

	state     State
	targetMap string
	anchor    gamestate.Position
}

// NewMachine creates a machine in the idle state. hubMap is the map id
// whose transitions commit to returnMap instead of the hub id itself
// (leaving a building returns the player to where they came from, not to
// a literal "hub" coordinate space).
func NewMachine(table Table, hubMap, returnMap string) *Machine {
	return &Machine{
		table:     table,
		hubMap:    hubMap,
		returnMap: returnMap,
		state:     StateIdle,
	}
}

// Observe recomputes the pending transition for a local position change.
// It returns the pending target map and whether the pending target is
// newly entered. Landing on the same transition point again is a no-op.
// Moving off a transition point, or onto one with a different target,
// discards the previous pending target without side effects.
func (m *Machine) Observe(mapID string, pos gamestate.Position) (targetMap string, entered bool) {
	target, found := m.table.LookupTransitionPoint(mapID, pos)
	if !found {
		m.state = StateIdle
		m.targetMap = ""
		m.anchor = gamestate.Position{}
		return "", false
	}

	if m.state == StatePendingTransition && m.targetMap == target {
		m.anchor = pos
		return target, false
	}

	m.state = StatePendingTransition
	m.targetMap = target
	m.anchor = pos
	return target, true
}

// Confirm commits the pending transition and returns the map the local
// player moves to. A target equal to the hub map commits the designated
// return value. Confirm with no pending transition reports ok=false.
func (m *Machine) Confirm() (newMap string, ok bool) {
	if m.state != StatePendingTransition {
		return "", false
	}

	newMap = m.targetMap
	if newMap == m.hubMap {
		newMap = m.returnMap
	}

	m.state = StateIdle
	m.targetMap = ""
	m.anchor = gamestate.Position{}
	return newMap, true
}

func (m *Machine) State() State {
	return m.state
}

// Pending returns the pending target and its anchor position.
func (m *Machine) Pending() (targetMap string, anchor gamestate.Position, ok bool) {
	if m.state != StatePendingTransition {
		return "", gamestate.Position{}, false
	}
	return m.targetMap, m.anchor, true
}
