package expreval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ioc-lang/ioc/ioc/dsl"
	"github.com/ioc-lang/ioc/ioc/value"
)

func TestEvalPredicateCompare(t *testing.T) {
	t.Parallel()

	ok, err := EvalPredicate(dsl.Compare(dsl.OpGt, value.Number(5)), value.Number(10))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvalPredicate(dsl.Compare(dsl.OpGt, value.Number(50)), value.Number(10))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalPredicateCompareProperty(t *testing.T) {
	t.Parallel()

	obj := value.NewObject(map[string]value.Value{"age": value.Number(30)})
	ok, err := EvalPredicate(dsl.CompareProperty(dsl.OpGte, "age", value.Number(18)), obj)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalPredicateLogicalCombinators(t *testing.T) {
	t.Parallel()

	p := dsl.And(dsl.Always(true), dsl.Or(dsl.Always(false), dsl.Not(dsl.Always(false))))
	ok, err := EvalPredicate(p, value.Null())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalPredicateTypeCheck(t *testing.T) {
	t.Parallel()

	ok, err := EvalPredicate(dsl.TypeCheck(value.KindString), value.String("x"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvalPredicate(dsl.TypeCheck(value.KindString), value.Number(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalTransformProperty(t *testing.T) {
	t.Parallel()

	obj := value.NewObject(map[string]value.Value{"name": value.String("alice")})
	v, err := EvalTransform(dsl.Property("name"), obj)
	require.NoError(t, err)
	assert.Equal(t, "alice", v.Str)
}

func TestEvalTransformPropertyMissingYieldsNull(t *testing.T) {
	t.Parallel()

	obj := value.NewObject(map[string]value.Value{})
	v, err := EvalTransform(dsl.Property("missing"), obj)
	require.NoError(t, err)
	assert.Equal(t, value.KindNull, v.Kind)
}

func TestEvalTransformArithmetic(t *testing.T) {
	t.Parallel()

	operand := dsl.Constant(value.Number(3))
	v, err := EvalTransform(dsl.Arithmetic(dsl.ArithAdd, &operand), value.Number(4))
	require.NoError(t, err)
	assert.Equal(t, float64(7), v.Number)
}

func TestEvalTransformArithmeticNegateHasNoOperand(t *testing.T) {
	t.Parallel()

	v, err := EvalTransform(dsl.Arithmetic(dsl.ArithNegate, nil), value.Number(5))
	require.NoError(t, err)
	assert.Equal(t, float64(-5), v.Number)
}

func TestEvalTransformArithmeticPowerHandlesFractionalExponent(t *testing.T) {
	t.Parallel()

	operand := dsl.Constant(value.Number(0.5))
	v, err := EvalTransform(dsl.Arithmetic(dsl.ArithPower, &operand), value.Number(4))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v.Number, 1e-9)
}

func TestEvalTransformConditional(t *testing.T) {
	t.Parallel()

	cond := dsl.Compare(dsl.OpGt, value.Number(0))
	ifTrue := dsl.Constant(value.String("positive"))
	ifFalse := dsl.Constant(value.String("non-positive"))
	tr := dsl.Conditional(cond, ifTrue, ifFalse)

	v, err := EvalTransform(tr, value.Number(5))
	require.NoError(t, err)
	assert.Equal(t, "positive", v.Str)

	v, err = EvalTransform(tr, value.Number(-5))
	require.NoError(t, err)
	assert.Equal(t, "non-positive", v.Str)
}

func TestEvalTransformComposeChainsSteps(t *testing.T) {
	t.Parallel()

	upper := dsl.StringOpT(dsl.StrUppercase)
	trimmed := dsl.StringOpT(dsl.StrTrim)
	composed := dsl.Compose(trimmed, upper)

	v, err := EvalTransform(composed, value.String("  hello  "))
	require.NoError(t, err)
	assert.Equal(t, "HELLO", v.Str)
}

func TestEvalTransformConstruct(t *testing.T) {
	t.Parallel()

	construct := dsl.Construct(map[string]dsl.Transform{
		"doubled": dsl.Arithmetic(dsl.ArithMultiply, func() *dsl.Transform { c := dsl.Constant(value.Number(2)); return &c }()),
	})
	v, err := EvalTransform(construct, value.Number(21))
	require.NoError(t, err)
	assert.Equal(t, float64(42), v.Object["doubled"].Number)
}

func TestEvalTransformStringOps(t *testing.T) {
	t.Parallel()

	v, err := EvalTransform(dsl.StringOpT(dsl.StrSplit, value.String(",")), value.String("a,b,c"))
	require.NoError(t, err)
	assert.Len(t, v.Array, 3)
	assert.Equal(t, "b", v.Array[1].Str)
}

func TestEvalTransformArrayOps(t *testing.T) {
	t.Parallel()

	arr := value.NewArray(value.Number(1), value.Number(2), value.Number(3))

	v, err := EvalTransform(dsl.ArrayOpT(dsl.ArrReverse), arr)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v.Array[0].Number)

	v, err = EvalTransform(dsl.ArrayOpT(dsl.ArrAt, value.Number(5)), arr)
	require.NoError(t, err)
	assert.Equal(t, value.KindNull, v.Kind, "out-of-range index yields null, not an error")
}

func TestEvalReductionSumAndEmptyIdentities(t *testing.T) {
	t.Parallel()

	items := []value.Value{value.Number(1), value.Number(2), value.Number(3)}

	v, err := EvalReduction(dsl.Reduce(dsl.ReductionSum), items, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(6), v.Number)

	v, err = EvalReduction(dsl.Reduce(dsl.ReductionCount), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(0), v.Number)
}

func TestEvalReductionMinOnEmptyInputIsAnError(t *testing.T) {
	t.Parallel()

	_, err := EvalReduction(dsl.Reduce(dsl.ReductionMin), nil, nil)
	require.Error(t, err)
	var emptyErr *EmptyReductionKindError
	assert.ErrorAs(t, err, &emptyErr)
}

func TestEvalReductionInitialSeedsAccumulator(t *testing.T) {
	t.Parallel()

	items := []value.Value{value.Number(1), value.Number(2), value.Number(3)}

	seedSum := value.Number(10)
	v, err := EvalReduction(dsl.Reduce(dsl.ReductionSum), items, &seedSum)
	require.NoError(t, err)
	assert.Equal(t, float64(16), v.Number)

	seedProduct := value.Number(2)
	v, err = EvalReduction(dsl.Reduce(dsl.ReductionProduct), items, &seedProduct)
	require.NoError(t, err)
	assert.Equal(t, float64(12), v.Number)

	seedCount := value.Number(5)
	v, err = EvalReduction(dsl.Reduce(dsl.ReductionCount), items, &seedCount)
	require.NoError(t, err)
	assert.Equal(t, float64(8), v.Number)
}

func TestEvalReductionInitialIsReturnedInsteadOfErrorWhenEmpty(t *testing.T) {
	t.Parallel()

	seed := value.Number(42)
	v, err := EvalReduction(dsl.Reduce(dsl.ReductionMin), nil, &seed)
	require.NoError(t, err)
	assert.Equal(t, float64(42), v.Number)

	v, err = EvalReduction(dsl.Reduce(dsl.ReductionAverage), nil, &seed)
	require.NoError(t, err)
	assert.Equal(t, float64(42), v.Number)

	v, err = EvalReduction(dsl.Reduce(dsl.ReductionFirst), nil, &seed)
	require.NoError(t, err)
	assert.Equal(t, float64(42), v.Number)
}

func TestEvalReductionAnyAll(t *testing.T) {
	t.Parallel()

	items := []value.Value{value.Number(1), value.Number(2), value.Number(3)}
	pred := dsl.Compare(dsl.OpGt, value.Number(2))

	v, err := EvalReduction(dsl.Any(pred), items, nil)
	require.NoError(t, err)
	assert.True(t, v.Boolean)

	v, err = EvalReduction(dsl.All(pred), items, nil)
	require.NoError(t, err)
	assert.False(t, v.Boolean)
}

func TestEvalReductionJoin(t *testing.T) {
	t.Parallel()

	items := []value.Value{value.String("a"), value.String("b")}
	v, err := EvalReduction(dsl.Join("-"), items, nil)
	require.NoError(t, err)
	assert.Equal(t, "a-b", v.Str)
}

func TestCompareOpIn(t *testing.T) {
	t.Parallel()

	set := value.NewArray(value.Number(1), value.Number(2), value.Number(3))
	ok, err := EvalPredicate(dsl.Compare(dsl.OpIn, set), value.Number(2))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompareOpMatches(t *testing.T) {
	t.Parallel()

	ok, err := EvalPredicate(dsl.Compare(dsl.OpMatches, value.String("^[a-z]+$")), value.String("hello"))
	require.NoError(t, err)
	assert.True(t, ok)
}
