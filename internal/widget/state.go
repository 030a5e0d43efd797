package widget

// State is the lifecycle state of a player widget.
type State int

const (
	// StatePaused is the resting state: mounted, not playing.
	StatePaused State = iota
	// StatePlaying means the widget holds the playback token and its
	// audio is running.
	StatePlaying
	// StateUnmounted is terminal.
	StateUnmounted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateUnmounted:
		return "unmounted"
	default:
		return "unknown"
	}
}

// stateMachine guards widget transitions. It is not safe for concurrent
// use; the widget serializes access with its own mutex.
type stateMachine struct {
	current     State
	transitions map[State][]State
	onEnter     map[State]func()
	onExit      map[State]func()
}

func newStateMachine() *stateMachine {
	return &stateMachine{
		current: StatePaused,
		transitions: map[State][]State{
			StatePaused:  {StatePlaying, StateUnmounted},
			StatePlaying: {StatePaused, StateUnmounted},
		},
		onEnter: make(map[State]func()),
		onExit:  make(map[State]func()),
	}
}

// transition moves to the given state and reports whether the move was
// allowed.
func (sm *stateMachine) transition(to State) bool {
	valid := false
	for _, s := range sm.transitions[sm.current] {
		if s == to {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	if fn := sm.onExit[sm.current]; fn != nil {
		fn()
	}
	sm.current = to
	if fn := sm.onEnter[to]; fn != nil {
		fn()
	}
	return true
}
