package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ioc-lang/ioc/ioc/capability"
	iocerrors "github.com/ioc-lang/ioc/ioc/errors"
)

func TestNewEnforcerIsNoopForO1(t *testing.T) {
	t.Parallel()

	e := NewEnforcer("n1", capability.O1)
	for i := 0; i < 1_000_000; i++ {
		assert.NoError(t, e.Tick())
	}
}

func TestTickRejectsExceedingIterationCap(t *testing.T) {
	t.Parallel()

	e := &Enforcer{}
	*e = *NewEnforcer("n1", capability.ON)
	e.limits.MaxIterations = 2

	assert.NoError(t, e.Tick())
	assert.NoError(t, e.Tick())
	err := e.Tick()
	require := assert.New(t)
	require.Error(err)
	be, ok := err.(*iocerrors.BudgetExceeded)
	require.True(ok)
	require.Equal(iocerrors.BudgetIteration, be.BudgetKind)
}

func TestCheckStackDepthRejectsOverCap(t *testing.T) {
	t.Parallel()

	e := NewEnforcer("n1", capability.ON)
	assert.NoError(t, e.CheckStackDepth(1))
	err := e.CheckStackDepth(1 << 20)
	assert.Error(t, err)
}

func TestSanitizeIdentifier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "foo_bar", SanitizeIdentifier("foo bar"))
	assert.Equal(t, "_123abc", SanitizeIdentifier("123abc"))
	assert.Equal(t, "_", SanitizeIdentifier(""))
	assert.Equal(t, "_drop_table_users_", SanitizeIdentifier("; drop table users;"))
}

func TestEscapeStringLiteral(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `a\"b\\c\n`, EscapeStringLiteral("a\"b\\c\n"))
}

func TestEscapeCommentStripsTerminator(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "foo * / bar", EscapeComment("foo */ bar"))
}

func TestShouldCheckIterations(t *testing.T) {
	t.Parallel()

	assert.False(t, ShouldCheckIterations(capability.O1))
	assert.False(t, ShouldCheckIterations(capability.OLogN))
	assert.False(t, ShouldCheckIterations(capability.ON))
	assert.True(t, ShouldCheckIterations(capability.ONLogN))
	assert.True(t, ShouldCheckIterations(capability.ON2))
}
