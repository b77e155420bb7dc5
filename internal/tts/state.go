package tts

import "slices"

// StateMachine tracks the session phase and rejects invalid transitions.
type StateMachine struct {
	current     Phase
	transitions map[Phase][]Phase
	onEnter     map[Phase]func()
}

// NewStateMachine creates a state machine in PhaseIdle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: PhaseIdle,
		transitions: map[Phase][]Phase{
			PhaseIdle:       {PhaseGenerating},
			PhaseGenerating: {PhasePlaying, PhaseCompleted, PhaseStopped, PhaseErrored},
			PhasePlaying:    {PhasePaused, PhaseCompleted, PhaseStopped, PhaseErrored},
			PhasePaused:     {PhasePlaying, PhaseCompleted, PhaseStopped, PhaseErrored},
			PhaseCompleted:  {PhaseGenerating, PhaseIdle},
			PhaseStopped:    {PhaseGenerating, PhaseIdle},
			PhaseErrored:    {PhaseGenerating, PhaseIdle},
		},
		onEnter: make(map[Phase]func()),
	}
}

// Transition moves to the given phase if the move is valid.
func (sm *StateMachine) Transition(to Phase) bool {
	if !slices.Contains(sm.transitions[sm.current], to) {
		return false
	}
	sm.current = to
	if fn := sm.onEnter[to]; fn != nil {
		fn()
	}
	return true
}

// Can reports whether a transition to the given phase is valid.
func (sm *StateMachine) Can(to Phase) bool {
	return slices.Contains(sm.transitions[sm.current], to)
}

// Current returns the current phase.
func (sm *StateMachine) Current() Phase {
	return sm.current
}

// OnEnter registers a callback for entering a phase.
func (sm *StateMachine) OnEnter(p Phase, fn func()) {
	sm.onEnter[p] = fn
}
