package tts

import "testing"

// TestSessionStateString tests the state names.
func TestSessionStateString(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
	}{
		{StateIdle, "idle"},
		{StatePreparing, "preparing"},
		{StatePlaying, "playing"},
		{StateStopping, "stopping"},
		{SessionState(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestStateMachineTransitions walks the legal and illegal transitions.
func TestStateMachineTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []SessionState
		ok   []bool
	}{
		{
			name: "full successful playback",
			path: []SessionState{StatePreparing, StatePlaying, StateIdle},
			ok:   []bool{true, true, true},
		},
		{
			name: "user stop during playback",
			path: []SessionState{StatePreparing, StatePlaying, StateStopping, StateIdle},
			ok:   []bool{true, true, true, true},
		},
		{
			name: "cancel during preparing",
			path: []SessionState{StatePreparing, StateStopping, StateIdle},
			ok:   []bool{true, true, true},
		},
		{
			name: "synthesis failure returns to idle",
			path: []SessionState{StatePreparing, StateIdle},
			ok:   []bool{true, true},
		},
		{
			name: "cannot play from idle",
			path: []SessionState{StatePlaying},
			ok:   []bool{false},
		},
		{
			name: "cannot re-prepare while preparing",
			path: []SessionState{StatePreparing, StatePreparing},
			ok:   []bool{true, false},
		},
		{
			name: "stopping only goes idle",
			path: []SessionState{StatePreparing, StateStopping, StatePlaying},
			ok:   []bool{true, true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewStateMachine()
			for i, to := range tt.path {
				got := m.Transition(to)
				if got != tt.ok[i] {
					t.Fatalf("step %d: Transition(%s) = %v, want %v (current %s)",
						i, to, got, tt.ok[i], m.Current())
				}
			}
		})
	}
}

// TestStateMachineOnEnter tests enter callbacks fire on every entry.
func TestStateMachineOnEnter(t *testing.T) {
	m := NewStateMachine()

	entered := 0
	m.OnEnter(StateIdle, func() { entered++ })

	m.Transition(StatePreparing)
	m.Transition(StateIdle)
	m.Transition(StatePreparing)
	m.Transition(StatePlaying)
	m.Transition(StateIdle)

	if entered != 2 {
		t.Errorf("idle entered %d times, want 2", entered)
	}
}

// TestStateMachineInitial tests the machine starts idle.
func TestStateMachineInitial(t *testing.T) {
	if got := NewStateMachine().Current(); got != StateIdle {
		t.Errorf("initial state = %s, want idle", got)
	}
}
