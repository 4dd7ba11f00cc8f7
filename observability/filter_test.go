package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/composable-features/runtime/observability"
)

func TestFilterObserver_Matching(t *testing.T) {
	tests := []struct {
		name  string
		rule  string
		event observability.Event
		want  bool
	}{
		{
			name:  "type match forwards",
			rule:  `type == "action.drop"`,
			event: observability.Event{Type: observability.EventActionDrop},
			want:  true,
		},
		{
			name:  "type mismatch filters",
			rule:  `type == "action.drop"`,
			event: observability.Event{Type: observability.EventStoreSend},
			want:  false,
		},
		{
			name:  "level threshold",
			rule:  `level >= 13`,
			event: observability.Event{Type: "x", Level: observability.LevelWarning},
			want:  true,
		},
		{
			name: "data attribute match",
			rule: `type == "action.drop" && data.reason == "case_inactive"`,
			event: observability.Event{
				Type: observability.EventActionDrop,
				Data: map[string]any{"reason": observability.DropReasonInactive},
			},
			want: true,
		},
		{
			name:  "runtime evaluation failure matches nothing",
			rule:  `data.reason == "case_inactive"`,
			event: observability.Event{Type: "x"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []observability.Event
			capture := &captureObserver{events: &events}

			filter, err := observability.NewFilterObserver(capture, tt.rule)
			if err != nil {
				t.Fatalf("NewFilterObserver(%q) failed: %v", tt.rule, err)
			}

			tt.event.Timestamp = time.Now()
			filter.OnEvent(context.Background(), tt.event)

			if got := len(events) == 1; got != tt.want {
				t.Errorf("rule %q forwarded = %v, want %v", tt.rule, got, tt.want)
			}
		})
	}
}

func TestFilterObserver_CompileErrors(t *testing.T) {
	tests := []struct {
		name string
		rule string
	}{
		{name: "empty rule", rule: ""},
		{name: "syntax error", rule: `type ==`},
		{name: "non-boolean result", rule: `1 + 2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := observability.NewFilterObserver(observability.NoOpObserver{}, tt.rule); err == nil {
				t.Errorf("NewFilterObserver(%q) succeeded, want compile error", tt.rule)
			}
		})
	}
}
