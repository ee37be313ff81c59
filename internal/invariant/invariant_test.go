package invariant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreconditionPassesSilently(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		Precondition(true, "unused")
	})
}

func TestPreconditionPanicsOnFailure(t *testing.T) {
	t.Parallel()

	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.Contains(t, r.(string), "PRECONDITION VIOLATION: x must be 1")
	}()
	Precondition(false, "x must be 1")
}

func TestNotNilPanicsOnLiteralNil(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NotNil(nil, "thing")
	})
}

func TestNotNilPanicsOnTypedNilPointer(t *testing.T) {
	t.Parallel()

	var p *int
	assert.Panics(t, func() {
		NotNil(p, "thing")
	})
}

func TestNotNilAcceptsNonNilValue(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		NotNil(42, "thing")
	})
}

func TestInRangeRejectsOutOfBounds(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { InRange(5, 0, 10, "x") })
	assert.Panics(t, func() { InRange(-1, 0, 10, "x") })
	assert.Panics(t, func() { InRange(11, 0, 10, "x") })
}

func TestPositiveRejectsZeroAndNegative(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { Positive(1, "x") })
	assert.Panics(t, func() { Positive(0, "x") })
	assert.Panics(t, func() { Positive(-1, "x") })
}

func TestExpectNoErrorPanicsOnNonNilError(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { ExpectNoError(nil, "op") })
	assert.Panics(t, func() { ExpectNoError(errors.New("boom"), "op") })
}
