package reducer

import "github.com/composable-features/runtime/identity"

// Combine merges reducers into one that runs each against the shared parent
// state in declared order, concatenating emitted effects. A reducer
// returning StopPropagation halts the merge for that action; reducers
// declared after it do not run.
func Combine[S, A any](reducers ...ReduceFunc[S, A]) ReduceFunc[S, A] {
	return func(state S, action A) (S, []Effect[A]) {
		var all []Effect[A]
		for _, reduce := range reducers {
			var effects []Effect[A]
			state, effects = reduce(state, action)

			stopped := false
			for _, e := range effects {
				if e.IsStop() {
					stopped = true
					continue
				}
				all = append(all, e)
			}
			if stopped {
				break
			}
		}
		return state, all
	}
}

// Child embeds a child feature at a key path of the parent state. The
// lens (get, set) reads and writes the child's slice of parent state with
// value semantics; toChild extracts the child's action from the parent
// envelope (conventionally a type assertion, so matching stays O(1)) and
// fromChild wraps actions emitted by the child's effects back into the
// envelope. Actions not addressed to the child leave the parent untouched.
func Child[PS, PA, CS, CA any](
	child ReduceFunc[CS, CA],
	get func(PS) CS,
	set func(PS, CS) PS,
	toChild func(PA) (CA, bool),
	fromChild func(CA) PA,
) ReduceFunc[PS, PA] {
	return func(state PS, action PA) (PS, []Effect[PA]) {
		childAction, ok := toChild(action)
		if !ok {
			return state, nil
		}

		childState, effects := child(get(state), childAction)
		return set(state, childState), mapEffects(effects, fromChild, ownerOf(state))
	}
}

// ownerOf resolves the identity effects emitted at this level should be
// owned by: the parent instance's identity when it carries one, Nil
// otherwise (the store stamps its root identity onto anything left Nil).
func ownerOf(state any) identity.ID {
	if owner, ok := identity.Of(state); ok {
		return owner
	}
	return identity.Nil
}
