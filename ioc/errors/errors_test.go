package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUnknownPassSuggestsClosestKnownName(t *testing.T) {
	t.Parallel()

	err := NewUnknownPass("dead_code_eliminatio", []string{"dead_code_elimination", "filter_fusion"})
	assert.Equal(t, "dead_code_eliminatio", err.Name)
	assert.Equal(t, "dead_code_elimination", err.Suggestion)
	assert.Contains(t, err.Error(), `did you mean "dead_code_elimination"?`)
}

func TestNewUnknownPassOmitsSuggestionWhenNoneIsClose(t *testing.T) {
	t.Parallel()

	err := NewUnknownPass("zzz", nil)
	assert.Empty(t, err.Suggestion)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestInvalidProgramErrorReportsFirstReason(t *testing.T) {
	t.Parallel()

	err := &InvalidProgram{Reasons: []string{"missing output reference", "cycle detected"}}
	assert.Contains(t, err.Error(), "2 reason(s)")
	assert.Contains(t, err.Error(), "missing output reference")
}

func TestExecutionErrorUnwrapsCause(t *testing.T) {
	t.Parallel()

	cause := &CompilationError{Detail: "boom"}
	err := &ExecutionError{NodeID: "n", Cause: cause}
	assert.Equal(t, cause, err.Unwrap())
}

func TestEachKindReturnsItsOwnTag(t *testing.T) {
	t.Parallel()

	var errs []Error = []Error{
		&UnsafeValue{Reason: "x"},
		&InvalidProgram{},
		&UnknownPass{Name: "x"},
		&BackendUnavailable{Backend: "x"},
		&CompilationError{Detail: "x"},
		&EmptyReduction{Reduction: "sum"},
		&BudgetExceeded{BudgetKind: BudgetIteration},
		&ExecutionError{Cause: assert.AnError},
	}
	want := []string{
		"UnsafeValue", "InvalidProgram", "UnknownPass", "BackendUnavailable",
		"CompilationError", "EmptyReduction", "BudgetExceeded", "ExecutionError",
	}
	for i, e := range errs {
		assert.Equal(t, want[i], e.Kind())
	}
}
