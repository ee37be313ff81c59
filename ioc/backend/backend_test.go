package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ioc-lang/ioc/ioc/dsl"
	iocerrors "github.com/ioc-lang/ioc/ioc/errors"
	"github.com/ioc-lang/ioc/ioc/ir"
	"github.com/ioc-lang/ioc/ioc/value"
)

func samplePassthroughProgram() *ir.Program {
	p := ir.New()
	in := &ir.Node{ID: "in", Kind: ir.KindInput, Params: ir.Params{InputName: "items"}}
	in.Capability = ir.DeriveCapability(in)
	p.AddNode(in)
	out := &ir.Node{ID: "out", Kind: ir.KindOutput, Inputs: []string{"in"}}
	out.Capability = ir.DeriveCapability(out)
	p.AddNode(out)
	p.Outputs = []string{"out"}
	return p
}

func TestDefaultRegistryHasBothBackendsAvailable(t *testing.T) {
	t.Parallel()

	r := Default()
	available := r.Available()
	require.Len(t, available, 2)

	types := map[Type]bool{}
	for _, b := range available {
		types[b.Type()] = true
	}
	assert.True(t, types[TypeInterpreter])
	assert.True(t, types[TypeGoSource])
}

func TestExplicitStrategySelectsRequestedBackend(t *testing.T) {
	t.Parallel()

	r := Default()
	artifact, err := r.Select(Explicit{Want: TypeGoSource}, samplePassthroughProgram(), nil)
	require.NoError(t, err)
	assert.Equal(t, TypeGoSource, artifact.Backend)
	assert.NotEmpty(t, artifact.Metadata.GeneratedSource)
}

func TestExplicitStrategyRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	r := Default()
	_, err := r.Select(Explicit{Want: Type("nonexistent")}, samplePassthroughProgram(), nil)
	require.Error(t, err)
	var unavailable *iocerrors.BackendUnavailable
	assert.ErrorAs(t, err, &unavailable)
}

func TestMostPortablePrefersInterpreter(t *testing.T) {
	t.Parallel()

	r := Default()
	b, err := MostPortable{}.Select(r.Available())
	require.NoError(t, err)
	assert.Equal(t, TypeInterpreter, b.Type())
}

func TestMostPortableRejectsEmptyAvailableSet(t *testing.T) {
	t.Parallel()

	_, err := MostPortable{}.Select(nil)
	require.Error(t, err)
	var unavailable *iocerrors.BackendUnavailable
	assert.ErrorAs(t, err, &unavailable)
}

func TestFastestCompilePicksLowerEstimate(t *testing.T) {
	t.Parallel()

	p := samplePassthroughProgram()
	b, err := FastestCompile{Program: p}.Select([]Backend{interpreterBackend{}, goSourceBackend{}})
	require.NoError(t, err)
	assert.Equal(t, TypeInterpreter, b.Type())
}

func TestFastestRuntimePicksHigherScore(t *testing.T) {
	t.Parallel()

	b, err := FastestRuntime{}.Select([]Backend{interpreterBackend{}, goSourceBackend{}})
	require.NoError(t, err)
	assert.Equal(t, TypeInterpreter, b.Type())
}

func TestBalancedRejectsEmptyAvailableSet(t *testing.T) {
	t.Parallel()

	_, err := Balanced{Program: samplePassthroughProgram()}.Select(nil)
	assert.Error(t, err)
}

func TestBalancedWeighsCompileSpeedAndPerformance(t *testing.T) {
	t.Parallel()

	p := samplePassthroughProgram()
	b, err := Balanced{Program: p}.Select([]Backend{interpreterBackend{}, goSourceBackend{}})
	require.NoError(t, err)
	assert.Equal(t, TypeInterpreter, b.Type())
}

func TestInterpreterAndGoSourceBackendsShareExecutionSemantics(t *testing.T) {
	t.Parallel()

	pred := dsl.Compare(dsl.OpGt, value.Number(0))
	p := ir.New()
	in := &ir.Node{ID: "in", Kind: ir.KindInput, Params: ir.Params{InputName: "items"}}
	in.Capability = ir.DeriveCapability(in)
	p.AddNode(in)
	f := &ir.Node{ID: "f", Kind: ir.KindFilter, Inputs: []string{"in"}, Params: ir.Params{Predicate: &pred}}
	f.Capability = ir.DeriveCapability(f)
	p.AddNode(f)
	out := &ir.Node{ID: "out", Kind: ir.KindOutput, Inputs: []string{"f"}}
	out.Capability = ir.DeriveCapability(out)
	p.AddNode(out)
	p.Outputs = []string{"out"}

	items := value.NewArray(value.Number(-1), value.Number(2), value.Number(3))

	interp, err := interpreterBackend{}.Compile(p, nil)
	require.NoError(t, err)
	goSrc, err := goSourceBackend{}.Compile(p, nil)
	require.NoError(t, err)

	interpOut, err := interp.Execute([]value.Value{items})
	require.NoError(t, err)
	goOut, err := goSrc.Execute([]value.Value{items})
	require.NoError(t, err)

	assert.Equal(t, interpOut, goOut)
	assert.Contains(t, goSrc.Metadata.Optimizations, "shared-evaluator")
}
