package serialize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ioc-lang/ioc/ioc/dsl"
	"github.com/ioc-lang/ioc/ioc/ir"
	"github.com/ioc-lang/ioc/ioc/value"
)

func samplePipeline() *ir.Program {
	p := ir.New()
	p.Metadata["author"] = "test"
	p.AddNode(&ir.Node{ID: "in", Kind: ir.KindInput, Params: ir.Params{InputName: "items"}})
	p.AddNode(&ir.Node{
		ID:     "f",
		Kind:   ir.KindFilter,
		Inputs: []string{"in"},
		Params: ir.Params{Predicate: func() *dsl.Predicate {
			pr := dsl.CompareProperty(dsl.OpGt, "value", value.Number(10))
			return &pr
		}()},
	})
	p.AddNode(&ir.Node{
		ID:     "m",
		Kind:   ir.KindMap,
		Inputs: []string{"f"},
		Params: ir.Params{Transform: func() *dsl.Transform {
			t := dsl.Property("value")
			return &t
		}()},
	})
	p.AddNode(&ir.Node{ID: "out", Kind: ir.KindOutput, Inputs: []string{"m"}})
	p.Outputs = []string{"out"}
	for _, n := range p.Nodes {
		n.Capability = ir.DeriveCapability(n)
	}
	return p
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	t.Parallel()

	p := samplePipeline()
	data, err := Serialize(p)
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, p.Version, got.Version)
	assert.Equal(t, p.Outputs, got.Outputs)
	assert.Len(t, got.Nodes, len(p.Nodes))
	assert.Equal(t, p.Nodes["f"].Params.Predicate.Op, got.Nodes["f"].Params.Predicate.Op)
	assert.Equal(t, p.Nodes["m"].Params.Transform.Path, got.Nodes["m"].Params.Transform.Path)
}

func TestDeserializePreservesUnknownFields(t *testing.T) {
	t.Parallel()

	raw := `{
		"version": "1.0",
		"nodes": [{"id":"in","type":"input","inputs":[],"params":{"inputName":"items"},"extraNodeField":"keepme"}],
		"outputs": [],
		"extraTopField": 42
	}`
	p, err := Deserialize([]byte(raw))
	require.NoError(t, err)

	out, err := Serialize(p)
	require.NoError(t, err)

	var roundtripped map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &roundtripped))
	assert.Equal(t, float64(42), roundtripped["extraTopField"])

	nodes := roundtripped["nodes"].([]interface{})
	node0 := nodes[0].(map[string]interface{})
	assert.Equal(t, "keepme", node0["extraNodeField"])
}

func TestDeserializeRejectsNonArrayNodes(t *testing.T) {
	t.Parallel()

	_, err := Deserialize([]byte(`{"version":"1.0","nodes":{},"outputs":[]}`))
	assert.Error(t, err)
}

func TestDeserializeRejectsBadVersion(t *testing.T) {
	t.Parallel()

	_, err := Deserialize([]byte(`{"version":"2.0","nodes":[],"outputs":[]}`))
	assert.Error(t, err)
}

func TestDeserializeRejectsExcessiveNodeCount(t *testing.T) {
	t.Parallel()

	var b []byte
	b = append(b, []byte(`{"version":"1.0","nodes":[`)...)
	for i := 0; i < 10001; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, []byte(`{"id":"n","type":"input","inputs":[],"params":{}}`)...)
	}
	b = append(b, []byte(`],"outputs":[]}`)...)

	_, err := Deserialize(b)
	assert.Error(t, err)
}

func TestCapabilityIsAlwaysRederivedOnDeserialize(t *testing.T) {
	t.Parallel()

	raw := `{
		"version": "1.0",
		"nodes": [{"id":"in","type":"input","inputs":[],"params":{"inputName":"x"},"capability":"not-a-real-capability"}],
		"outputs": []
	}`
	p, err := Deserialize([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, ir.DeriveCapability(p.Nodes["in"]), p.Nodes["in"].Capability)
}

func TestDigestIsOrderIndependent(t *testing.T) {
	t.Parallel()

	p1 := ir.New()
	p1.Metadata["a"] = "1"
	p1.Metadata["b"] = "2"
	p1.AddNode(&ir.Node{ID: "x", Kind: ir.KindInput, Params: ir.Params{InputName: "x"}})
	p1.AddNode(&ir.Node{ID: "y", Kind: ir.KindInput, Params: ir.Params{InputName: "y"}})

	p2 := ir.New()
	p2.Metadata["b"] = "2"
	p2.Metadata["a"] = "1"
	p2.AddNode(&ir.Node{ID: "y", Kind: ir.KindInput, Params: ir.Params{InputName: "y"}})
	p2.AddNode(&ir.Node{ID: "x", Kind: ir.KindInput, Params: ir.Params{InputName: "x"}})

	d1, err := Digest(p1)
	require.NoError(t, err)
	d2, err := Digest(p2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestDigestDiffersOnStructuralChange(t *testing.T) {
	t.Parallel()

	p1 := samplePipeline()
	p2 := samplePipeline()
	p2.Outputs = nil

	d1, err := Digest(p1)
	require.NoError(t, err)
	d2, err := Digest(p2)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestNormalizeVersion(t *testing.T) {
	t.Parallel()

	norm, err := NormalizeVersion("1.0")
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", norm)

	_, err = NormalizeVersion("2.0")
	assert.Error(t, err)
}

func TestCompareVersions(t *testing.T) {
	t.Parallel()

	cmp, err := CompareVersions("1.0", "1.2")
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	cmp, err = CompareVersions("1.2", "1.0")
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	cmp, err = CompareVersions("1.0", "1.0")
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)
}

func TestConstantValueRoundTripsFalsyLiterals(t *testing.T) {
	t.Parallel()

	p := ir.New()
	p.AddNode(&ir.Node{ID: "c", Kind: ir.KindConstant, Params: ir.Params{ConstantValue: value.Bool(false)}})
	for _, n := range p.Nodes {
		n.Capability = ir.DeriveCapability(n)
	}

	data, err := Serialize(p)
	require.NoError(t, err)
	got, err := Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, value.KindBoolean, got.Nodes["c"].Params.ConstantValue.Kind)
	assert.False(t, got.Nodes["c"].Params.ConstantValue.Boolean)
}
