package observability

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// FilterObserver forwards only the events matching a boolean rule expression
// to the wrapped observer. Rules are compiled once at construction, so a bad
// rule is a definition-time error rather than a per-event one.
//
// The rule evaluates against an environment with these variables:
//
//	type   string   event type, e.g. "action.drop"
//	level  int      OTel severity number
//	source string   emitting layer, e.g. "store.Send"
//	data   map      event attributes
//
// Example rule: `type == "action.drop" && data.reason == "case_inactive"`.
type FilterObserver struct {
	next    Observer
	program *vm.Program
}

// NewFilterObserver compiles rule and wraps next with it. Returns an error
// if the rule does not compile to a boolean expression.
func NewFilterObserver(next Observer, rule string) (*FilterObserver, error) {
	if rule == "" {
		return nil, fmt.Errorf("filter rule must not be empty")
	}
	if next == nil {
		next = NoOpObserver{}
	}

	program, err := expr.Compile(rule, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter rule %q: %w", rule, err)
	}

	return &FilterObserver{next: next, program: program}, nil
}

func (f *FilterObserver) OnEvent(ctx context.Context, event Event) {
	env := map[string]any{
		"type":   string(event.Type),
		"level":  int(event.Level),
		"source": event.Source,
		"data":   event.Data,
	}

	out, err := expr.Run(f.program, env)
	if err != nil {
		// A rule that fails at runtime (e.g. missing data key) matches nothing.
		return
	}

	if match, ok := out.(bool); ok && match {
		f.next.OnEvent(ctx, event)
	}
}
