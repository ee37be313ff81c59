package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ioc-lang/ioc/ioc/value"
)

func linearProgram() *Program {
	p := New()
	p.AddNode(&Node{ID: "in", Kind: KindInput, Params: Params{InputName: "items"}})
	p.AddNode(&Node{ID: "f", Kind: KindFilter, Inputs: []string{"in"}})
	p.AddNode(&Node{ID: "out", Kind: KindOutput, Inputs: []string{"f"}})
	p.Outputs = []string{"out"}
	for _, n := range p.Nodes {
		n.Capability = DeriveCapability(n)
	}
	return p
}

func TestValidateAcceptsWellFormedProgram(t *testing.T) {
	t.Parallel()

	result := Validate(linearProgram())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateRejectsMissingOutputReference(t *testing.T) {
	t.Parallel()

	p := linearProgram()
	p.Outputs = []string{"nonexistent"}

	result := Validate(p)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateRejectsMissingInputReference(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddNode(&Node{ID: "f", Kind: KindFilter, Inputs: []string{"ghost"}, Capability: DeriveCapability(&Node{Kind: KindFilter})})

	result := Validate(p)
	assert.False(t, result.Valid)
}

func TestValidateRejectsCapabilityMismatch(t *testing.T) {
	t.Parallel()

	p := New()
	n := &Node{ID: "in", Kind: KindInput, Params: Params{InputName: "x"}}
	n.Capability = DeriveCapability(&Node{Kind: KindSort}) // deliberately wrong
	p.AddNode(n)

	result := Validate(p)
	assert.False(t, result.Valid)
}

func TestDetectCycleFindsDirectCycle(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddNode(&Node{ID: "a", Kind: KindFilter, Inputs: []string{"b"}})
	p.AddNode(&Node{ID: "b", Kind: KindFilter, Inputs: []string{"a"}})

	cyc := DetectCycle(p)
	require.NotNil(t, cyc)
	assert.Contains(t, cyc.Error(), "cycle detected")
}

func TestDetectCycleAcceptsAcyclicProgram(t *testing.T) {
	t.Parallel()

	assert.Nil(t, DetectCycle(linearProgram()))
}

func TestGetExecutionOrderRespectsDependencies(t *testing.T) {
	t.Parallel()

	p := linearProgram()
	order, err := GetExecutionOrder(p)
	require.NoError(t, err)

	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["in"], pos["f"])
	assert.Less(t, pos["f"], pos["out"])
}

func TestGetExecutionOrderIsDeterministic(t *testing.T) {
	t.Parallel()

	p := linearProgram()
	o1, err := GetExecutionOrder(p)
	require.NoError(t, err)
	o2, err := GetExecutionOrder(p)
	require.NoError(t, err)
	assert.Equal(t, o1, o2)
}

func TestReachableFromOutputsExcludesDeadNodes(t *testing.T) {
	t.Parallel()

	p := linearProgram()
	p.AddNode(&Node{ID: "dead", Kind: KindConstant, Params: Params{ConstantValue: value.Bool(true)}})
	reachable := ReachableFromOutputs(p)
	assert.True(t, reachable["in"])
	assert.True(t, reachable["f"])
	assert.True(t, reachable["out"])
	assert.False(t, reachable["dead"])
}

func TestDeriveCapabilityForInputIsPureAndParallelizable(t *testing.T) {
	t.Parallel()

	c := DeriveCapability(&Node{Kind: KindInput})
	assert.True(t, c.Pure)
	assert.True(t, c.Parallelizable)
}

func TestCloneIsDeepCopy(t *testing.T) {
	t.Parallel()

	p := linearProgram()
	clone := p.Clone()
	clone.Nodes["f"].Inputs[0] = "changed"

	assert.Equal(t, "in", p.Nodes["f"].Inputs[0])
	assert.Equal(t, "changed", clone.Nodes["f"].Inputs[0])
}

func TestValidateRejectsUnknownNodeKind(t *testing.T) {
	t.Parallel()

	p := linearProgram()
	p.Nodes["f"].Kind = Kind("not-a-real-kind")

	result := Validate(p)
	assert.False(t, result.Valid)
	found := false
	for _, e := range result.Errors {
		if e == `node "f": unknown kind "not-a-real-kind"` {
			found = true
		}
	}
	assert.True(t, found, "expected an unknown-kind error, got: %v", result.Errors)
}
