package reducer

import "errors"

// Sentinel errors for definition-time composition validation. These are
// structural misuses of the composition, not data-dependent failures, so
// they surface when the composition is built rather than during routing.
var (
	ErrDuplicateCase = errors.New("case tag declared twice")
	ErrNilReducer    = errors.New("composed case has nil reducer")
	ErrNilAccessor   = errors.New("case routing needs a composite accessor")
	ErrNoCases       = errors.New("case routing needs at least one case")
)
