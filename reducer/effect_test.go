package reducer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/composable-features/runtime/identity"
	"github.com/composable-features/runtime/reducer"
)

func TestEffect_EmitDeliversImmediately(t *testing.T) {
	var got []string
	reducer.Emit("hello").Execute(context.Background(), func(a string) {
		got = append(got, a)
	})

	assert.Equal(t, []string{"hello"}, got)
}

func TestEffect_CancelIsDirectiveOnly(t *testing.T) {
	cancel := reducer.Cancel[string]("load")

	assert.True(t, cancel.IsCancel())
	assert.Equal(t, "load", cancel.Key().Label)

	// Executing a directive is a no-op.
	cancel.Execute(context.Background(), func(string) {
		t.Fatal("cancel directive must not deliver actions")
	})
}

func TestEffect_WithOwnerKeepsExistingStamp(t *testing.T) {
	registry := identity.NewRegistry()
	inner := registry.Allocate()
	outer := registry.Allocate()

	e := reducer.Run("load", func(ctx context.Context, send func(string)) {}).
		WithOwner(inner).
		WithOwner(outer)

	assert.Equal(t, inner, e.Key().Owner, "an inner routing layer's stamp must win")
}
