// Package serialize implements the wire format (§6): JSON (de)serialization
// of a Program with unknown-field round-tripping, plus a canonical CBOR
// encoding and content hash used to fingerprint a program independent of
// key ordering or whitespace.
//
// Grounded on the teacher's core/planfmt/plan.go (JSON-facing Plan struct)
// and core/planfmt/canonical.go (CanonicalPlan.MarshalBinary/Hash: a
// CBOR-canonical encode-then-hash pipeline), generalized from a shell
// execution plan to the intent-graph wire format this spec requires. The
// teacher hashes with sha256; this package uses x/crypto/blake2b instead,
// matching the rest of the pack's preference for blake2b over the
// standard library's sha256 wherever a content digest is needed outside a
// TLS/crypto-protocol context.
package serialize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/mod/semver"

	"github.com/ioc-lang/ioc/ioc/capability"
	"github.com/ioc-lang/ioc/ioc/dsl"
	iocerrors "github.com/ioc-lang/ioc/ioc/errors"
	"github.com/ioc-lang/ioc/ioc/ir"
	"github.com/ioc-lang/ioc/ioc/security"
	"github.com/ioc-lang/ioc/ioc/value"
)

// ---- Value <-> JSON -------------------------------------------------------

func valueToAny(v value.Value) interface{} {
	switch v.Kind {
	case value.KindNumber:
		return v.Number
	case value.KindString:
		return v.Str
	case value.KindBoolean:
		return v.Boolean
	case value.KindNull:
		return nil
	case value.KindArray:
		out := make([]interface{}, len(v.Array))
		for i, e := range v.Array {
			out[i] = valueToAny(e)
		}
		return out
	case value.KindObject:
		out := make(map[string]interface{}, len(v.Object))
		for k, e := range v.Object {
			out[k] = valueToAny(e)
		}
		return out
	default:
		return nil
	}
}

func anyToValue(raw interface{}) (value.Value, error) {
	return value.FromInterface(raw)
}

// ---- Predicate/Transform/Reduction <-> JSON -------------------------------

type jsonPredicate struct {
	Kind       string          `json:"kind"`
	Op         string          `json:"op,omitempty"`
	Identifier string          `json:"identifier,omitempty"`
	Literal    interface{}     `json:"literal,omitempty"`
	TypeKind   string          `json:"typeKind,omitempty"`
	List       []jsonPredicate `json:"list,omitempty"`
	Inner      *jsonPredicate  `json:"inner,omitempty"`
	Always     bool            `json:"always,omitempty"`
}

func predicateToJSON(p dsl.Predicate) jsonPredicate {
	jp := jsonPredicate{Kind: string(p.Kind), Op: string(p.Op), Identifier: p.Identifier, Always: p.AlwaysValue}
	if p.Kind == dsl.PredicateCompare || p.Kind == dsl.PredicateCompareProperty {
		jp.Literal = valueToAny(p.Literal)
	}
	if p.Kind == dsl.PredicateTypeCheck {
		jp.TypeKind = p.TypeKind.String()
	}
	for _, sub := range p.List {
		jp.List = append(jp.List, predicateToJSON(sub))
	}
	if p.Inner != nil {
		inner := predicateToJSON(*p.Inner)
		jp.Inner = &inner
	}
	return jp
}

func predicateFromJSON(jp jsonPredicate) (dsl.Predicate, error) {
	p := dsl.Predicate{Kind: dsl.PredicateKind(jp.Kind), Op: dsl.CompareOp(jp.Op), Identifier: jp.Identifier, AlwaysValue: jp.Always}
	if jp.Literal != nil {
		lit, err := anyToValue(jp.Literal)
		if err != nil {
			return dsl.Predicate{}, err
		}
		p.Literal = lit
	}
	if jp.TypeKind != "" {
		k, err := kindFromString(jp.TypeKind)
		if err != nil {
			return dsl.Predicate{}, err
		}
		p.TypeKind = k
	}
	for _, sub := range jp.List {
		cp, err := predicateFromJSON(sub)
		if err != nil {
			return dsl.Predicate{}, err
		}
		p.List = append(p.List, cp)
	}
	if jp.Inner != nil {
		inner, err := predicateFromJSON(*jp.Inner)
		if err != nil {
			return dsl.Predicate{}, err
		}
		p.Inner = &inner
	}
	return p, nil
}

func kindFromString(s string) (value.Kind, error) {
	switch s {
	case "number":
		return value.KindNumber, nil
	case "string":
		return value.KindString, nil
	case "boolean":
		return value.KindBoolean, nil
	case "null":
		return value.KindNull, nil
	case "array":
		return value.KindArray, nil
	case "object":
		return value.KindObject, nil
	default:
		return 0, fmt.Errorf("unknown value kind %q", s)
	}
}

type jsonTransform struct {
	Kind    string                   `json:"kind"`
	Value   interface{}              `json:"value,omitempty"`
	Path    []string                 `json:"path,omitempty"`
	Op      string                   `json:"op,omitempty"`
	Operand *jsonTransform           `json:"operand,omitempty"`
	Args    []interface{}            `json:"args,omitempty"`
	Cond    *jsonPredicate           `json:"cond,omitempty"`
	IfTrue  *jsonTransform           `json:"ifTrue,omitempty"`
	IfFalse *jsonTransform           `json:"ifFalse,omitempty"`
	Steps   []jsonTransform          `json:"steps,omitempty"`
	Fields  map[string]jsonTransform `json:"fields,omitempty"`
}

func transformToJSON(t dsl.Transform) jsonTransform {
	jt := jsonTransform{Kind: string(t.Kind), Path: t.Path}
	switch t.Kind {
	case dsl.TransformConstant:
		jt.Value = valueToAny(t.ConstantValue)
	case dsl.TransformArithmetic:
		jt.Op = string(t.ArithOp)
		if t.Operand != nil {
			op := transformToJSON(*t.Operand)
			jt.Operand = &op
		}
	case dsl.TransformString:
		jt.Op = string(t.StrOp)
		for _, a := range t.Args {
			jt.Args = append(jt.Args, valueToAny(a))
		}
	case dsl.TransformArray:
		jt.Op = string(t.ArrOp)
		for _, a := range t.Args {
			jt.Args = append(jt.Args, valueToAny(a))
		}
	case dsl.TransformConditional:
		if t.Cond != nil {
			c := predicateToJSON(*t.Cond)
			jt.Cond = &c
		}
		if t.IfTrue != nil {
			it := transformToJSON(*t.IfTrue)
			jt.IfTrue = &it
		}
		if t.IfFalse != nil {
			ifFalse := transformToJSON(*t.IfFalse)
			jt.IfFalse = &ifFalse
		}
	case dsl.TransformCompose:
		for _, step := range t.Steps {
			jt.Steps = append(jt.Steps, transformToJSON(step))
		}
	case dsl.TransformConstruct:
		jt.Fields = make(map[string]jsonTransform, len(t.Fields))
		for k, field := range t.Fields {
			jt.Fields[k] = transformToJSON(field)
		}
	}
	return jt
}

func transformFromJSON(jt jsonTransform) (dsl.Transform, error) {
	t := dsl.Transform{Kind: dsl.TransformKind(jt.Kind), Path: jt.Path, ArithOp: dsl.ArithmeticOp(jt.Op), StrOp: dsl.StringOp(jt.Op), ArrOp: dsl.ArrayOp(jt.Op)}
	switch t.Kind {
	case dsl.TransformConstant:
		v, err := anyToValue(jt.Value)
		if err != nil {
			return dsl.Transform{}, err
		}
		t.ConstantValue = v
	case dsl.TransformArithmetic:
		if jt.Operand != nil {
			op, err := transformFromJSON(*jt.Operand)
			if err != nil {
				return dsl.Transform{}, err
			}
			t.Operand = &op
		}
	case dsl.TransformString, dsl.TransformArray:
		for _, a := range jt.Args {
			v, err := anyToValue(a)
			if err != nil {
				return dsl.Transform{}, err
			}
			t.Args = append(t.Args, v)
		}
	case dsl.TransformConditional:
		if jt.Cond != nil {
			c, err := predicateFromJSON(*jt.Cond)
			if err != nil {
				return dsl.Transform{}, err
			}
			t.Cond = &c
		}
		if jt.IfTrue != nil {
			it, err := transformFromJSON(*jt.IfTrue)
			if err != nil {
				return dsl.Transform{}, err
			}
			t.IfTrue = &it
		}
		if jt.IfFalse != nil {
			iff, err := transformFromJSON(*jt.IfFalse)
			if err != nil {
				return dsl.Transform{}, err
			}
			t.IfFalse = &iff
		}
	case dsl.TransformCompose:
		for _, step := range jt.Steps {
			s, err := transformFromJSON(step)
			if err != nil {
				return dsl.Transform{}, err
			}
			t.Steps = append(t.Steps, s)
		}
	case dsl.TransformConstruct:
		t.Fields = make(map[string]dsl.Transform, len(jt.Fields))
		for k, field := range jt.Fields {
			f, err := transformFromJSON(field)
			if err != nil {
				return dsl.Transform{}, err
			}
			t.Fields[k] = f
		}
	}
	return t, nil
}

// ---- Reduction <-> JSON ----------------------------------------------------

type jsonReduction struct {
	Kind      string         `json:"kind"`
	Predicate *jsonPredicate `json:"predicate,omitempty"`
	Separator string         `json:"separator,omitempty"`
}

func reductionToJSON(r dsl.Reduction) jsonReduction {
	jr := jsonReduction{Kind: string(r.Kind), Separator: r.Separator}
	if r.Predicate != nil {
		p := predicateToJSON(*r.Predicate)
		jr.Predicate = &p
	}
	return jr
}

func reductionFromJSON(jr jsonReduction) (dsl.Reduction, error) {
	r := dsl.Reduction{Kind: dsl.ReductionKind(jr.Kind), Separator: jr.Separator}
	if jr.Predicate != nil {
		p, err := predicateFromJSON(*jr.Predicate)
		if err != nil {
			return dsl.Reduction{}, err
		}
		r.Predicate = &p
	}
	return r, nil
}

// ---- Params <-> JSON --------------------------------------------------------

// jsonParams mirrors ir.Params: only the fields relevant to a node's Type are
// ever populated, the rest stay zero/omitted. intent echoes the node's type
// tag for disambiguation when a params object is inspected out of context.
type jsonParams struct {
	Intent        string          `json:"intent,omitempty"`
	InputName     string          `json:"inputName,omitempty"`
	TypeHint      string          `json:"typeHint,omitempty"`
	ConstantValue interface{}     `json:"constantValue,omitempty"`
	Predicate     *jsonPredicate  `json:"predicate,omitempty"`
	Transform     *jsonTransform  `json:"transform,omitempty"`
	Reduction     *jsonReduction  `json:"reduction,omitempty"`
	Initial       interface{}     `json:"initial,omitempty"`
	SortKey       *jsonTransform  `json:"sortKey,omitempty"`
	Descending    bool            `json:"descending,omitempty"`
	KeyTransform  *jsonTransform  `json:"keyTransform,omitempty"`
	Depth         int             `json:"depth,omitempty"`
	LeftKey       *jsonTransform  `json:"leftKey,omitempty"`
	RightKey      *jsonTransform  `json:"rightKey,omitempty"`
	JoinType      string          `json:"joinType,omitempty"`
	Start         *int            `json:"start,omitempty"`
	End           *int            `json:"end,omitempty"`
}

func paramsToJSON(kind ir.Kind, p ir.Params) jsonParams {
	jp := jsonParams{
		Intent:     string(kind),
		InputName:  p.InputName,
		Descending: p.Descending,
		Depth:      p.Depth,
		JoinType:   p.JoinType,
		Start:      p.Start,
		End:        p.End,
	}
	if p.TypeHint != nil {
		jp.TypeHint = p.TypeHint.String()
	}
	if kind == ir.KindConstant {
		jp.ConstantValue = valueToAny(p.ConstantValue)
	}
	if p.Predicate != nil {
		pr := predicateToJSON(*p.Predicate)
		jp.Predicate = &pr
	}
	if p.Transform != nil {
		t := transformToJSON(*p.Transform)
		jp.Transform = &t
	}
	if p.Reduction != nil {
		r := reductionToJSON(*p.Reduction)
		jp.Reduction = &r
	}
	if p.Initial != nil {
		jp.Initial = valueToAny(*p.Initial)
	}
	if p.SortKey != nil {
		t := transformToJSON(*p.SortKey)
		jp.SortKey = &t
	}
	if p.KeyTransform != nil {
		t := transformToJSON(*p.KeyTransform)
		jp.KeyTransform = &t
	}
	if p.LeftKey != nil {
		t := transformToJSON(*p.LeftKey)
		jp.LeftKey = &t
	}
	if p.RightKey != nil {
		t := transformToJSON(*p.RightKey)
		jp.RightKey = &t
	}
	return jp
}

func paramsFromJSON(kind ir.Kind, jp jsonParams) (ir.Params, error) {
	var p ir.Params
	p.InputName = jp.InputName
	p.Descending = jp.Descending
	p.Depth = jp.Depth
	p.JoinType = jp.JoinType
	p.Start = jp.Start
	p.End = jp.End

	if jp.TypeHint != "" {
		k, err := kindFromString(jp.TypeHint)
		if err != nil {
			return ir.Params{}, err
		}
		p.TypeHint = &k
	}
	if kind == ir.KindConstant {
		v, err := anyToValue(jp.ConstantValue)
		if err != nil {
			return ir.Params{}, err
		}
		p.ConstantValue = v
	}
	if jp.Predicate != nil {
		pr, err := predicateFromJSON(*jp.Predicate)
		if err != nil {
			return ir.Params{}, err
		}
		p.Predicate = &pr
	}
	if jp.Transform != nil {
		t, err := transformFromJSON(*jp.Transform)
		if err != nil {
			return ir.Params{}, err
		}
		p.Transform = &t
	}
	if jp.Reduction != nil {
		r, err := reductionFromJSON(*jp.Reduction)
		if err != nil {
			return ir.Params{}, err
		}
		p.Reduction = &r
	}
	if jp.Initial != nil {
		v, err := anyToValue(jp.Initial)
		if err != nil {
			return ir.Params{}, err
		}
		p.Initial = &v
	}
	if jp.SortKey != nil {
		t, err := transformFromJSON(*jp.SortKey)
		if err != nil {
			return ir.Params{}, err
		}
		p.SortKey = &t
	}
	if jp.KeyTransform != nil {
		t, err := transformFromJSON(*jp.KeyTransform)
		if err != nil {
			return ir.Params{}, err
		}
		p.KeyTransform = &t
	}
	if jp.LeftKey != nil {
		t, err := transformFromJSON(*jp.LeftKey)
		if err != nil {
			return ir.Params{}, err
		}
		p.LeftKey = &t
	}
	if jp.RightKey != nil {
		t, err := transformFromJSON(*jp.RightKey)
		if err != nil {
			return ir.Params{}, err
		}
		p.RightKey = &t
	}
	return p, nil
}

// ---- WireNode / WireProgram -------------------------------------------------

// wireNodeKnownFields lists the JSON keys WireNode understands; anything else
// present in a node object is preserved verbatim in Extra so a
// deserialize-then-serialize round trip reproduces it (Testable Property 4,
// "up to key ordering").
var wireNodeKnownFields = map[string]bool{"id": true, "type": true, "inputs": true, "params": true, "capability": true}

type WireNode struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Inputs     []string    `json:"inputs"`
	Params     jsonParams  `json:"params"`
	Capability interface{} `json:"capability,omitempty"`
	Extra      map[string]json.RawMessage `json:"-"`
}

func (n WireNode) MarshalJSON() ([]byte, error) {
	type alias WireNode
	base, err := json.Marshal(alias(n))
	if err != nil {
		return nil, err
	}
	if len(n.Extra) == 0 {
		return base, nil
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range n.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func (n *WireNode) UnmarshalJSON(data []byte) error {
	type alias WireNode
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*n = WireNode(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := map[string]json.RawMessage{}
	for k, v := range raw {
		if !wireNodeKnownFields[k] {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		n.Extra = extra
	}
	return nil
}

var wireProgramKnownFields = map[string]bool{"version": true, "metadata": true, "nodes": true, "outputs": true, "options": true}

// WireOptions mirrors ir.Options on the wire. The schema allows
// additionalProperties (security.ValidateOptions), so unrecognized option
// keys are preserved in Extra rather than silently dropped.
type WireOptions struct {
	OptimizationLevel string                     `json:"optimizationLevel,omitempty"`
	TargetRuntime     string                     `json:"targetRuntime,omitempty"`
	MaxMemory         int64                      `json:"maxMemory,omitempty"`
	Timeout           int64                      `json:"timeout,omitempty"`
	Extra             map[string]json.RawMessage `json:"-"`
}

var wireOptionsKnownFields = map[string]bool{"optimizationLevel": true, "targetRuntime": true, "maxMemory": true, "timeout": true}

func (o WireOptions) MarshalJSON() ([]byte, error) {
	type alias WireOptions
	base, err := json.Marshal(alias(o))
	if err != nil {
		return nil, err
	}
	if len(o.Extra) == 0 {
		return base, nil
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range o.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func (o *WireOptions) UnmarshalJSON(data []byte) error {
	type alias WireOptions
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*o = WireOptions(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := map[string]json.RawMessage{}
	for k, v := range raw {
		if !wireOptionsKnownFields[k] {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		o.Extra = extra
	}
	return nil
}

// WireProgram is the top-level wire format document (§6).
type WireProgram struct {
	Version  string            `json:"version"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Nodes    []WireNode        `json:"nodes"`
	Outputs  []string          `json:"outputs"`
	Options  *WireOptions      `json:"options,omitempty"`
	Extra    map[string]json.RawMessage `json:"-"`
}

func (wp WireProgram) MarshalJSON() ([]byte, error) {
	type alias WireProgram
	base, err := json.Marshal(alias(wp))
	if err != nil {
		return nil, err
	}
	if len(wp.Extra) == 0 {
		return base, nil
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range wp.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func (wp *WireProgram) UnmarshalJSON(data []byte) error {
	type alias WireProgram
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*wp = WireProgram(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := map[string]json.RawMessage{}
	for k, v := range raw {
		if !wireProgramKnownFields[k] {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		wp.Extra = extra
	}
	return nil
}

// ---- Program <-> WireProgram -------------------------------------------------

// ToWire renders p into its wire-format document. Capability is recomputed
// fresh from each node rather than trusted from the in-memory value, since
// capability derivation must be a pure function of the node (invariant 3) —
// the wire form is a faithful snapshot, not a second source of truth.
func ToWire(p *ir.Program) *WireProgram {
	wp := &WireProgram{Version: p.Version, Metadata: p.Metadata, Outputs: append([]string(nil), p.Outputs...)}
	if p.Options != nil {
		wp.Options = &WireOptions{
			OptimizationLevel: p.Options.OptimizationLevel,
			TargetRuntime:     p.Options.TargetRuntime,
			MaxMemory:         p.Options.MaxMemory,
			Timeout:           p.Options.Timeout,
		}
	}
	for _, id := range p.SortedNodeIDs() {
		n := p.Nodes[id]
		wp.Nodes = append(wp.Nodes, WireNode{
			ID:         n.ID,
			Type:       string(n.Kind),
			Inputs:     append([]string(nil), n.Inputs...),
			Params:     paramsToJSON(n.Kind, n.Params),
			Capability: capabilitySummary(ir.DeriveCapability(n)),
		})
	}
	return wp
}

func capabilitySummary(c capability.Capability) map[string]interface{} {
	return map[string]interface{}{
		"maxComplexity":  c.MaxComplexity.String(),
		"termination":    string(c.Termination),
		"pure":           c.Pure,
		"parallelizable": c.Parallelizable,
		"memoryBound":    c.MemoryBound.String(),
	}
}

// FromWire builds a Program from a decoded WireProgram. Capability is never
// trusted from the wire — it is rederived for every node once the program is
// fully assembled, exactly as the optimizer does after a structural rewrite.
func FromWire(wp *WireProgram) (*ir.Program, error) {
	p := ir.New()
	p.Version = wp.Version
	if wp.Metadata != nil {
		p.Metadata = wp.Metadata
	}
	p.Outputs = append([]string(nil), wp.Outputs...)
	if wp.Options != nil {
		p.Options = &ir.Options{
			OptimizationLevel: wp.Options.OptimizationLevel,
			TargetRuntime:     wp.Options.TargetRuntime,
			MaxMemory:         wp.Options.MaxMemory,
			Timeout:           wp.Options.Timeout,
		}
	}
	for _, wn := range wp.Nodes {
		kind := ir.Kind(wn.Type)
		params, err := paramsFromJSON(kind, wn.Params)
		if err != nil {
			return nil, &iocerrors.InvalidProgram{Reasons: []string{fmt.Sprintf("node %q: %v", wn.ID, err)}}
		}
		n := &ir.Node{ID: wn.ID, Kind: kind, Inputs: append([]string(nil), wn.Inputs...), Params: params}
		p.AddNode(n)
	}
	for _, id := range p.SortedNodeIDs() {
		n := p.Nodes[id]
		n.Capability = ir.DeriveCapability(n)
	}
	return p, nil
}

// ---- Serialize / Deserialize -------------------------------------------------

// Serialize renders p as wire-format JSON.
func Serialize(p *ir.Program) ([]byte, error) {
	return json.Marshal(ToWire(p))
}

// Deserialize parses wire-format JSON into a Program, applying every
// rejection rule §6 states: size > 10 MiB, version missing or not "1.*",
// nodes/outputs not arrays, node count > 10 000.
func Deserialize(data []byte) (*ir.Program, error) {
	if err := security.ValidateSize(data); err != nil {
		return nil, err
	}

	var shape struct {
		Version string          `json:"version"`
		Nodes   json.RawMessage `json:"nodes"`
		Outputs json.RawMessage `json:"outputs"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, &iocerrors.InvalidProgram{Reasons: []string{fmt.Sprintf("malformed JSON: %v", err)}}
	}
	if err := security.ValidateVersionPrefix(shape.Version); err != nil {
		return nil, err
	}
	if !isJSONArray(shape.Nodes) {
		return nil, &iocerrors.InvalidProgram{Reasons: []string{"\"nodes\" must be an array"}}
	}
	if !isJSONArray(shape.Outputs) {
		return nil, &iocerrors.InvalidProgram{Reasons: []string{"\"outputs\" must be an array"}}
	}

	var nodeCount []json.RawMessage
	if err := json.Unmarshal(shape.Nodes, &nodeCount); err != nil {
		return nil, &iocerrors.InvalidProgram{Reasons: []string{fmt.Sprintf("malformed \"nodes\": %v", err)}}
	}
	if err := security.ValidateNodeCount(len(nodeCount)); err != nil {
		return nil, err
	}

	var wp WireProgram
	if err := json.Unmarshal(data, &wp); err != nil {
		return nil, &iocerrors.InvalidProgram{Reasons: []string{fmt.Sprintf("malformed program: %v", err)}}
	}
	return FromWire(&wp)
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "[")
}

// ---- Canonical CBOR + content hash -------------------------------------------

// canonicalProgram is the CBOR-facing mirror of WireProgram. Grounded on the
// teacher's CanonicalPlan (core/planfmt/canonical.go): fields are sorted into
// a deterministic order before encoding so two structurally-equal programs
// always produce byte-identical CBOR, independent of map iteration order or
// the order nodes were added.
type canonicalProgram struct {
	Version  string
	Metadata []canonicalKV
	Nodes    []canonicalNode
	Outputs  []string
}

type canonicalKV struct {
	Key   string
	Value string
}

type canonicalNode struct {
	ID     string
	Type   string
	Inputs []string
	Params []byte // pre-serialized canonical JSON of jsonParams, itself key-sorted by encoding/json
}

func toCanonicalProgram(p *ir.Program) (*canonicalProgram, error) {
	cp := &canonicalProgram{Version: p.Version, Outputs: append([]string(nil), p.Outputs...)}

	metaKeys := make([]string, 0, len(p.Metadata))
	for k := range p.Metadata {
		metaKeys = append(metaKeys, k)
	}
	sort.Strings(metaKeys)
	for _, k := range metaKeys {
		cp.Metadata = append(cp.Metadata, canonicalKV{Key: k, Value: p.Metadata[k]})
	}

	for _, id := range p.SortedNodeIDs() {
		n := p.Nodes[id]
		paramsJSON, err := json.Marshal(paramsToJSON(n.Kind, n.Params))
		if err != nil {
			return nil, err
		}
		inputs := append([]string(nil), n.Inputs...)
		cp.Nodes = append(cp.Nodes, canonicalNode{ID: n.ID, Type: string(n.Kind), Inputs: inputs, Params: paramsJSON})
	}
	return cp, nil
}

// MarshalBinary encodes cp as canonical CBOR (RFC 8949 §4.2.1 core
// deterministic encoding via fxamacker/cbor's CanonicalEncOptions). The
// type-alias trick avoids infinite recursion: without it, cbor would invoke
// this same MarshalBinary method on cp itself forever.
func (cp *canonicalProgram) MarshalBinary() ([]byte, error) {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	type canonicalProgramAlias canonicalProgram
	alias := (*canonicalProgramAlias)(cp)
	return mode.Marshal(alias)
}

// Canonical renders p's canonical CBOR encoding, independent of node
// insertion order, metadata key order, or JSON object key order.
func Canonical(p *ir.Program) ([]byte, error) {
	cp, err := toCanonicalProgram(p)
	if err != nil {
		return nil, err
	}
	return cp.MarshalBinary()
}

// Digest returns p's content fingerprint: blake2b-256 of its canonical CBOR
// encoding. Two programs that differ only in node insertion order, metadata
// key order, or incidental JSON formatting hash identically.
func Digest(p *ir.Program) ([32]byte, error) {
	data, err := Canonical(p)
	if err != nil {
		return [32]byte{}, err
	}
	return blake2b.Sum256(data), nil
}

// NormalizeVersion validates and canonicalizes a version string beyond the
// simple "1.*" prefix check, using golang.org/x/mod/semver for ordering
// comparisons between two supported program versions (e.g. a future
// migration tool diffing "1.0" against "1.2").
func NormalizeVersion(version string) (string, error) {
	if err := security.ValidateVersionPrefix(version); err != nil {
		return "", err
	}
	full := "v" + version
	if !strings.Contains(version, ".") {
		full += ".0"
	}
	if !semver.IsValid(full) {
		return "", &iocerrors.InvalidProgram{Reasons: []string{fmt.Sprintf("version %q is not a valid major.minor", version)}}
	}
	// Wire versions are "major.minor", not full semver; canonicalize by
	// padding a patch component ("v1.0" -> "v1.0.0").
	return semver.Canonical(full), nil
}

// CompareVersions orders two wire-format version strings, delegating to
// semver.Compare once both are normalized to a full semver form.
func CompareVersions(a, b string) (int, error) {
	na, err := NormalizeVersion(a)
	if err != nil {
		return 0, err
	}
	nb, err := NormalizeVersion(b)
	if err != nil {
		return 0, err
	}
	return semver.Compare(na, nb), nil
}
