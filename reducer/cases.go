package reducer

import (
	"fmt"

	"github.com/composable-features/runtime/enum"
	"github.com/composable-features/runtime/identity"
	"github.com/composable-features/runtime/observability"
)

// CaseClassification is assigned per case at composition-definition time.
type CaseClassification int

const (
	// ClassComposed cases fully participate in action routing and effect
	// lifecycle.
	ClassComposed CaseClassification = iota
	// ClassEphemeral cases hold only passive display state. No reducer
	// runs for them, but presence/absence still flows through the
	// standard create/retire lifecycle.
	ClassEphemeral
	// ClassIgnored cases carry opaque payload data that never enters
	// action routing at all.
	ClassIgnored
)

func (c CaseClassification) String() string {
	switch c {
	case ClassComposed:
		return "composed"
	case ClassEphemeral:
		return "ephemeral"
	case ClassIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("classification(%d)", int(c))
	}
}

// CaseAction is implemented by action envelopes addressed to one case of
// an enum composite. The engine extracts the tag with a single interface
// assertion, so routing stays O(1).
type CaseAction[Tag comparable] interface {
	CaseTag() Tag
}

// CaseDef declares one case of an enum composite for routing. Build
// definitions with Composed, Ephemeral, or Ignored.
type CaseDef[Tag comparable, PA any] struct {
	tag            Tag
	classification CaseClassification
	invalid        error
	// reduce runs the case's child transition against payload. It reports
	// false when the action is not addressed to this child or the payload
	// shape does not match.
	reduce func(payload any, action PA) (any, []Effect[PA], bool)
}

// Tag returns the case's discriminant.
func (d CaseDef[Tag, PA]) Tag() Tag {
	return d.tag
}

// Classification returns the case's routing classification.
func (d CaseDef[Tag, PA]) Classification() CaseClassification {
	return d.classification
}

// Composed declares a case whose payload is driven by a child feature.
// toChild extracts the child action from the parent envelope; fromChild
// wraps child actions emitted by effects back into the envelope.
func Composed[Tag comparable, PA, CS, CA any](
	tag Tag,
	child ReduceFunc[CS, CA],
	toChild func(PA) (CA, bool),
	fromChild func(CA) PA,
) CaseDef[Tag, PA] {
	def := CaseDef[Tag, PA]{tag: tag, classification: ClassComposed}
	if child == nil {
		def.invalid = fmt.Errorf("%w: case %v", ErrNilReducer, tag)
		return def
	}

	def.reduce = func(payload any, action PA) (any, []Effect[PA], bool) {
		childAction, ok := toChild(action)
		if !ok {
			return nil, nil, false
		}
		childState, ok := payload.(CS)
		if !ok {
			return nil, nil, false
		}
		newState, effects := child(childState, childAction)
		// Owner stamping happens in the engine, where the live case
		// identity is known.
		return newState, mapEffects(effects, fromChild, identity.Nil), true
	}
	return def
}

// Ephemeral declares a display-only case: the runtime manages its
// presence, absence, and dismissal, but never routes actions into it.
func Ephemeral[Tag comparable, PA any](tag Tag) CaseDef[Tag, PA] {
	return CaseDef[Tag, PA]{tag: tag, classification: ClassEphemeral}
}

// Ignored declares a pass-through case: its payload is readable but the
// engine neither matches actions for it nor mutates it.
func Ignored[Tag comparable, PA any](tag Tag) CaseDef[Tag, PA] {
	return CaseDef[Tag, PA]{tag: tag, classification: ClassIgnored}
}

// Cases builds a reducer routing case-addressed actions through the
// composite returned by access. Structural misuse (duplicate tags, a
// Composed case without a reducer) is rejected here, at definition time.
//
// Routing policy at runtime: an action addressed to an inactive, unknown,
// ephemeral, or ignored case is dropped silently; a diagnostics event is
// the only trace. A write-back through a scope that went stale during the
// child reduce is likewise discarded.
func Cases[Tag comparable, PS, PA any](
	access func(PS) *enum.Composite[Tag],
	observer observability.Observer,
	defs ...CaseDef[Tag, PA],
) (ReduceFunc[PS, PA], error) {
	if access == nil {
		return nil, ErrNilAccessor
	}
	if len(defs) == 0 {
		return nil, ErrNoCases
	}
	if observer == nil {
		observer = observability.NoOpObserver{}
	}

	table := make(map[Tag]CaseDef[Tag, PA], len(defs))
	for _, def := range defs {
		if def.invalid != nil {
			return nil, def.invalid
		}
		if _, exists := table[def.tag]; exists {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateCase, def.tag)
		}
		table[def.tag] = def
	}

	return func(state PS, action PA) (PS, []Effect[PA]) {
		addressed, ok := any(action).(CaseAction[Tag])
		if !ok {
			return state, nil
		}
		tag := addressed.CaseTag()

		def, known := table[tag]
		switch {
		case !known:
			dropAction(observer, tag, observability.DropReasonUnknown)
			return state, nil
		case def.classification == ClassIgnored:
			dropAction(observer, tag, observability.DropReasonIgnored)
			return state, nil
		case def.classification == ClassEphemeral:
			dropAction(observer, tag, observability.DropReasonEphemeral)
			return state, nil
		}

		composite := access(state)
		if composite == nil {
			dropAction(observer, tag, observability.DropReasonInactive)
			return state, nil
		}

		scope, active := composite.Scope(tag)
		if !active {
			// Stale action arriving after dismissal: drop, mutate nothing.
			dropAction(observer, tag, observability.DropReasonInactive)
			return state, nil
		}

		newPayload, effects, handled := def.reduce(scope.State(), action)
		if !handled {
			dropAction(observer, tag, observability.DropReasonUnhandled)
			return state, nil
		}

		if !scope.WriteBack(newPayload) {
			observability.Emit(observer, observability.EventStaleWriteback, observability.LevelWarning,
				"reducer.Cases", map[string]any{
					"case":     fmt.Sprintf("%v", tag),
					"identity": scope.ID().String(),
				})
			return state, nil
		}

		for i := range effects {
			effects[i] = effects[i].WithOwner(scope.ID())
		}
		return state, effects
	}, nil
}

// MustCases is Cases for static composition wiring, panicking on
// definition-time misuse.
func MustCases[Tag comparable, PS, PA any](
	access func(PS) *enum.Composite[Tag],
	observer observability.Observer,
	defs ...CaseDef[Tag, PA],
) ReduceFunc[PS, PA] {
	reduce, err := Cases(access, observer, defs...)
	if err != nil {
		panic(err)
	}
	return reduce
}

func dropAction[Tag comparable](observer observability.Observer, tag Tag, reason string) {
	observability.Emit(observer, observability.EventActionDrop, observability.LevelVerbose,
		"reducer.Cases", map[string]any{
			"case":   fmt.Sprintf("%v", tag),
			"reason": reason,
		})
}
