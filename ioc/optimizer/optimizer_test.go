package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ioc-lang/ioc/ioc/dsl"
	"github.com/ioc-lang/ioc/ioc/ir"
	"github.com/ioc-lang/ioc/ioc/provenance"
	"github.com/ioc-lang/ioc/ioc/value"
)

func withCapability(n *ir.Node) *ir.Node {
	n.Capability = ir.DeriveCapability(n)
	return n
}

func TestOptimizeRejectsUnknownPass(t *testing.T) {
	t.Parallel()

	p := ir.New()
	_, err := Optimize(p, []string{"not_a_real_pass"}, provenance.New())
	assert.Error(t, err)
}

func TestOptimizeDoesNotMutateOriginalProgram(t *testing.T) {
	t.Parallel()

	p := ir.New()
	p.AddNode(withCapability(&ir.Node{ID: "in", Kind: ir.KindInput, Params: ir.Params{InputName: "x"}}))
	p.AddNode(withCapability(&ir.Node{ID: "dead", Kind: ir.KindConstant, Params: ir.Params{ConstantValue: value.Number(1)}}))
	p.Outputs = []string{"in"}

	_, err := Optimize(p, DefaultPasses, provenance.New())
	require.NoError(t, err)

	_, stillThere := p.Nodes["dead"]
	assert.True(t, stillThere, "original program must be untouched")
}

func TestDeadCodeEliminationRemovesUnreachableNodes(t *testing.T) {
	t.Parallel()

	p := ir.New()
	p.AddNode(withCapability(&ir.Node{ID: "in", Kind: ir.KindInput, Params: ir.Params{InputName: "x"}}))
	p.AddNode(withCapability(&ir.Node{ID: "dead", Kind: ir.KindConstant, Params: ir.Params{ConstantValue: value.Number(1)}}))
	p.Outputs = []string{"in"}

	result, err := Optimize(p, []string{PassDeadCodeElimination}, provenance.New())
	require.NoError(t, err)

	_, stillThere := result.Nodes["dead"]
	assert.False(t, stillThere)
	_, kept := result.Nodes["in"]
	assert.True(t, kept)
}

func TestCommonSubexpressionEliminationMergesDuplicates(t *testing.T) {
	t.Parallel()

	p := ir.New()
	p.AddNode(withCapability(&ir.Node{ID: "c1", Kind: ir.KindConstant, Params: ir.Params{ConstantValue: value.Number(42)}}))
	p.AddNode(withCapability(&ir.Node{ID: "c2", Kind: ir.KindConstant, Params: ir.Params{ConstantValue: value.Number(42)}}))
	p.AddNode(withCapability(&ir.Node{ID: "out1", Kind: ir.KindOutput, Inputs: []string{"c1"}}))
	p.AddNode(withCapability(&ir.Node{ID: "out2", Kind: ir.KindOutput, Inputs: []string{"c2"}}))
	p.Outputs = []string{"out1", "out2"}

	result, err := Optimize(p, []string{PassCommonSubexpressionElimination}, provenance.New())
	require.NoError(t, err)

	_, c1 := result.Nodes["c1"]
	_, c2 := result.Nodes["c2"]
	assert.True(t, c1 != c2, "exactly one of the duplicate constants should survive")
	assert.Equal(t, result.Nodes[result.Outputs[0]].Inputs[0], result.Nodes[result.Outputs[1]].Inputs[0])
}

func TestFilterFusionCollapsesSingleConsumerChain(t *testing.T) {
	t.Parallel()

	pred1 := dsl.Compare(dsl.OpGt, value.Number(0))
	pred2 := dsl.Compare(dsl.OpLt, value.Number(100))

	p := ir.New()
	p.AddNode(withCapability(&ir.Node{ID: "in", Kind: ir.KindInput, Params: ir.Params{InputName: "x"}}))
	p.AddNode(withCapability(&ir.Node{ID: "f1", Kind: ir.KindFilter, Inputs: []string{"in"}, Params: ir.Params{Predicate: &pred1}}))
	p.AddNode(withCapability(&ir.Node{ID: "f2", Kind: ir.KindFilter, Inputs: []string{"f1"}, Params: ir.Params{Predicate: &pred2}}))
	p.Outputs = []string{"f2"}

	result, err := Optimize(p, []string{PassFilterFusion}, provenance.New())
	require.NoError(t, err)

	_, f1 := result.Nodes["f1"]
	assert.False(t, f1, "inner filter should be fused away")
	fused := result.Nodes["f2"]
	require.NotNil(t, fused.Params.Predicate)
	assert.Equal(t, dsl.PredicateAnd, fused.Params.Predicate.Kind)
}

func TestMapFusionCollapsesSingleConsumerChain(t *testing.T) {
	t.Parallel()

	t1 := dsl.Property("value")
	t2 := dsl.Arithmetic(dsl.ArithAdd, func() *dsl.Transform { c := dsl.Constant(value.Number(1)); return &c }())

	p := ir.New()
	p.AddNode(withCapability(&ir.Node{ID: "in", Kind: ir.KindInput, Params: ir.Params{InputName: "x"}}))
	p.AddNode(withCapability(&ir.Node{ID: "m1", Kind: ir.KindMap, Inputs: []string{"in"}, Params: ir.Params{Transform: &t1}}))
	p.AddNode(withCapability(&ir.Node{ID: "m2", Kind: ir.KindMap, Inputs: []string{"m1"}, Params: ir.Params{Transform: &t2}}))
	p.Outputs = []string{"m2"}

	result, err := Optimize(p, []string{PassMapFusion}, provenance.New())
	require.NoError(t, err)

	_, m1 := result.Nodes["m1"]
	assert.False(t, m1)
	fused := result.Nodes["m2"]
	require.NotNil(t, fused.Params.Transform)
	assert.Equal(t, dsl.TransformCompose, fused.Params.Transform.Kind)
}

func TestFilterBeforeMapReordersWhenSemanticsPreserved(t *testing.T) {
	t.Parallel()

	addOne := dsl.Arithmetic(dsl.ArithAdd, func() *dsl.Transform { c := dsl.Constant(value.Number(1)); return &c }())
	pred := dsl.And(dsl.TypeCheck(value.KindNumber), dsl.Compare(dsl.OpGt, value.Number(10)))

	p := ir.New()
	p.AddNode(withCapability(&ir.Node{ID: "in", Kind: ir.KindInput, Params: ir.Params{InputName: "x"}}))
	p.AddNode(withCapability(&ir.Node{ID: "m", Kind: ir.KindMap, Inputs: []string{"in"}, Params: ir.Params{Transform: &addOne}}))
	p.AddNode(withCapability(&ir.Node{ID: "f", Kind: ir.KindFilter, Inputs: []string{"m"}, Params: ir.Params{Predicate: &pred}}))
	p.Outputs = []string{"f"}

	result, err := Optimize(p, []string{PassFilterBeforeMap}, provenance.New())
	require.NoError(t, err)

	assert.Equal(t, ir.KindFilter, result.Nodes["f"].Kind)
	assert.Equal(t, []string{"in"}, result.Nodes["f"].Inputs)
	assert.Equal(t, []string{"f"}, result.Nodes["m"].Inputs)
}

func TestFilterBeforeMapDeclinesWhenNotInvertible(t *testing.T) {
	t.Parallel()

	upper := dsl.StringOpT(dsl.StrUppercase)
	pred := dsl.CompareProperty(dsl.OpEq, "name", value.String("X"))

	p := ir.New()
	p.AddNode(withCapability(&ir.Node{ID: "in", Kind: ir.KindInput, Params: ir.Params{InputName: "x"}}))
	p.AddNode(withCapability(&ir.Node{ID: "m", Kind: ir.KindMap, Inputs: []string{"in"}, Params: ir.Params{Transform: &upper}}))
	p.AddNode(withCapability(&ir.Node{ID: "f", Kind: ir.KindFilter, Inputs: []string{"m"}, Params: ir.Params{Predicate: &pred}}))
	p.Outputs = []string{"f"}

	result, err := Optimize(p, []string{PassFilterBeforeMap}, provenance.New())
	require.NoError(t, err)

	assert.Equal(t, []string{"m"}, result.Nodes["f"].Inputs)
}

func TestOptimizeRederivesCapabilitiesAfterStructuralRewrite(t *testing.T) {
	t.Parallel()

	t1 := dsl.Identity()
	t2 := dsl.Identity()

	p := ir.New()
	p.AddNode(withCapability(&ir.Node{ID: "in", Kind: ir.KindInput, Params: ir.Params{InputName: "x"}}))
	p.AddNode(withCapability(&ir.Node{ID: "m1", Kind: ir.KindMap, Inputs: []string{"in"}, Params: ir.Params{Transform: &t1}}))
	p.AddNode(withCapability(&ir.Node{ID: "m2", Kind: ir.KindMap, Inputs: []string{"m1"}, Params: ir.Params{Transform: &t2}}))
	p.Outputs = []string{"m2"}

	result, err := Optimize(p, []string{PassMapFusion}, provenance.New())
	require.NoError(t, err)

	for _, n := range result.Nodes {
		assert.Equal(t, ir.DeriveCapability(n), n.Capability)
	}
}

func TestDefaultPassesProduceValidProgram(t *testing.T) {
	t.Parallel()

	pred := dsl.Compare(dsl.OpGt, value.Number(0))
	p := ir.New()
	p.AddNode(withCapability(&ir.Node{ID: "in", Kind: ir.KindInput, Params: ir.Params{InputName: "x"}}))
	p.AddNode(withCapability(&ir.Node{ID: "f", Kind: ir.KindFilter, Inputs: []string{"in"}, Params: ir.Params{Predicate: &pred}}))
	p.AddNode(withCapability(&ir.Node{ID: "out", Kind: ir.KindOutput, Inputs: []string{"f"}}))
	p.Outputs = []string{"out"}

	result, err := Optimize(p, DefaultPasses, provenance.New())
	require.NoError(t, err)

	validation := ir.Validate(result)
	assert.True(t, validation.Valid, "%v", validation.Errors)
}
