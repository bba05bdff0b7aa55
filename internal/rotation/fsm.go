package rotation

import (
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/apperr"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/types"
)

// transitions is the closed move table for the rotation lifecycle. Anything
// absent here is rejected, never coerced.
var transitions = map[types.LifecycleState][]types.LifecycleState{
	types.LifecycleInitializing:     {types.LifecyclePatternActive},
	types.LifecyclePatternActive:    {types.LifecycleRotationPending},
	types.LifecycleRotationPending:  {types.LifecycleRotating},
	types.LifecycleRotating:         {types.LifecyclePatternActive, types.LifecyclePatternExhausted},
	types.LifecyclePatternExhausted: {types.LifecycleInitializing},
	types.LifecycleError:            {types.LifecycleInitializing},
}

// transition mutates state.Lifecycle after checking the move table. Every
// state may additionally move to Error.
func transition(state *types.RotationState, to types.LifecycleState) error {
	if to == types.LifecycleError {
		state.Lifecycle = types.LifecycleError
		return nil
	}
	for _, allowed := range transitions[state.Lifecycle] {
		if allowed == to {
			state.Lifecycle = to
			return nil
		}
	}
	return &apperr.StateTransitionError{From: string(state.Lifecycle), To: string(to)}
}
