package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepRequest struct {
	Phase string   `validate:"omitempty,scan_phase"`
	Scope string   `validate:"omitempty,scan_scope"`
	Items []string `validate:"omitempty,min=1,dive,min=1"`
}

func TestValidator_ScanPhase(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(stepRequest{Phase: "selecting"}))
	assert.NoError(t, v.Validate(stepRequest{Phase: "scanning"}))
	assert.NoError(t, v.Validate(stepRequest{}))

	err := v.Validate(stepRequest{Phase: "paused"})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "phase", verrs[0].Field)
	assert.Contains(t, verrs[0].Message, "selecting")
}

func TestValidator_ScanScope(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(stepRequest{Scope: "all"}))
	assert.NoError(t, v.Validate(stepRequest{Scope: "specific"}))
	assert.Error(t, v.Validate(stepRequest{Scope: "everything"}))
}

func TestValidator_Complexity(t *testing.T) {
	v := New()

	type record struct {
		Complexity string `validate:"required,complexity"`
	}

	assert.NoError(t, v.Validate(record{Complexity: "basic"}))
	assert.NoError(t, v.Validate(record{Complexity: "advanced"}))
	assert.Error(t, v.Validate(record{Complexity: "guru"}))
	assert.Error(t, v.Validate(record{}))
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "session_token", toSnakeCase("SessionToken"))
	assert.Equal(t, "phase", toSnakeCase("Phase"))
	assert.Equal(t, "items", toSnakeCase("Items"))
}
