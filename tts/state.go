package tts

import "sync"

// SessionState is the lifecycle state of the single playback session.
type SessionState int

const (
	// StateIdle means no session is active.
	StateIdle SessionState = iota
	// StatePreparing means synthesis is in flight.
	StatePreparing
	// StatePlaying means audio output is running.
	StatePlaying
	// StateStopping means a stop command is being honored.
	StateStopping
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StatePlaying:
		return "playing"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// StateMachine guards session state transitions. Only the transitions in
// the table are legal; everything else is rejected so a bug cannot leave
// the session dangling in Preparing or Playing.
type StateMachine struct {
	mu          sync.Mutex
	current     SessionState
	transitions map[SessionState][]SessionState
	onEnter     map[SessionState]func()
}

// NewStateMachine creates a machine in StateIdle with the legal session
// transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[SessionState][]SessionState{
			StateIdle:      {StatePreparing},
			StatePreparing: {StatePlaying, StateStopping, StateIdle},
			StatePlaying:   {StateStopping, StateIdle},
			StateStopping:  {StateIdle},
		},
		onEnter: make(map[SessionState]func()),
	}
}

// Transition moves to the target state if the move is legal and reports
// whether it happened. Enter callbacks run while the machine lock is held,
// so they must not call back into the machine.
func (m *StateMachine) Transition(to SessionState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	legal := false
	for _, s := range m.transitions[m.current] {
		if s == to {
			legal = true
			break
		}
	}
	if !legal {
		return false
	}

	m.current = to
	if fn := m.onEnter[to]; fn != nil {
		fn()
	}
	return true
}

// Current returns the current state.
func (m *StateMachine) Current() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// OnEnter registers a callback invoked whenever the machine enters state.
func (m *StateMachine) OnEnter(state SessionState, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnter[state] = fn
}
