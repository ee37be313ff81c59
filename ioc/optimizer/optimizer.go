// Package optimizer implements the rewrite-pass manager (C6): dead code
// elimination, common subexpression elimination, filter/map fusion, and the
// filter-before-map reorder, run in a fixed default order with a
// correctness-guarded semantics-preservation check on the riskiest rewrite.
//
// Grounded on the teacher's pass-oriented IR lowering in
// runtime/planner/ir_builder.go and runtime/planner/resolver.go (a sequence
// of named transformation stages over an immutable IR, each producing a new
// graph) generalized from shell-command scope resolution to the DCE/CSE/
// fusion passes this spec requires.
package optimizer

import (
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ioc-lang/ioc/ioc/dsl"
	iocerrors "github.com/ioc-lang/ioc/ioc/errors"
	"github.com/ioc-lang/ioc/ioc/ir"
	"github.com/ioc-lang/ioc/ioc/provenance"
	"github.com/ioc-lang/ioc/ioc/value"
	"github.com/ioc-lang/ioc/internal/invariant"
)

func canonPredicate(p dsl.Predicate) string { return dsl.CanonicalPredicate(p) }
func canonTransform(t dsl.Transform) string { return dsl.CanonicalTransform(t) }
func canonReduction(r dsl.Reduction) string { return dsl.CanonicalReduction(r) }
func valueStringify(v value.Value) string   { return value.Stringify(v) }

const (
	PassDeadCodeElimination             = "dead_code_elimination"
	PassCommonSubexpressionElimination  = "common_subexpression_elimination"
	PassFilterFusion                    = "filter_fusion"
	PassMapFusion                       = "map_fusion"
	PassFilterBeforeMap                 = "filter_before_map"
)

// DefaultPasses is the order §4.5 mandates.
var DefaultPasses = []string{
	PassDeadCodeElimination,
	PassCommonSubexpressionElimination,
	PassFilterFusion,
	PassMapFusion,
	PassFilterBeforeMap,
}

// pass is a single rewrite pass: it mutates p in place and reports whether it
// changed anything. Structural rewrite passes (every pass but DCE itself)
// trigger a DCE re-run and a capability re-derivation afterward.
type pass struct {
	name       string
	run        func(p *ir.Program, prov *provenance.Tracker, clock *int64) bool
	structural bool
}

var registry = map[string]pass{
	PassDeadCodeElimination:             {name: PassDeadCodeElimination, run: runDCE, structural: false},
	PassCommonSubexpressionElimination:  {name: PassCommonSubexpressionElimination, run: runCSE, structural: true},
	PassFilterFusion:                    {name: PassFilterFusion, run: runFilterFusion, structural: true},
	PassMapFusion:                       {name: PassMapFusion, run: runMapFusion, structural: true},
	PassFilterBeforeMap:                 {name: PassFilterBeforeMap, run: runFilterBeforeMap, structural: true},
}

func knownPassNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Optimize runs passNames in order against p, returning a new program (the
// original is never mutated — §3 Lifecycle). Unknown names fail with
// UnknownPass. After any structural rewrite, dead code elimination is
// re-run and every node's capability is re-derived, re-establishing
// invariant 3.
func Optimize(p *ir.Program, passNames []string, prov *provenance.Tracker) (*ir.Program, error) {
	for _, name := range passNames {
		if _, ok := registry[name]; !ok {
			return nil, iocerrors.NewUnknownPass(name, knownPassNames())
		}
	}

	before := p.Clone()
	result := p.Clone()
	var clock int64

	for _, name := range passNames {
		pc := registry[name]
		changed := pc.run(result, prov, &clock)
		if changed && pc.structural {
			runDCE(result, prov, &clock)
			rederiveCapabilities(result)
		}
	}

	invariant.Invariant(cmp.Equal(before, p, cmpopts.IgnoreUnexported(ir.Program{})), "Optimize must not mutate its input program")

	return result, nil
}

func rederiveCapabilities(p *ir.Program) {
	for _, id := range p.SortedNodeIDs() {
		n := p.Nodes[id]
		n.Capability = ir.DeriveCapability(n)
	}
}

func nextTimestamp(clock *int64) int64 {
	*clock++
	return *clock
}

// runDCE computes the reachable set from outputs and deletes every node
// outside it.
func runDCE(p *ir.Program, prov *provenance.Tracker, clock *int64) bool {
	reachable := ir.ReachableFromOutputs(p)
	changed := false
	for _, id := range p.SortedNodeIDs() {
		if !reachable[id] {
			p.DeleteNode(id)
			changed = true
		}
	}
	return changed
}

// canonicalSignature builds the (kind, sorted(inputs), canonicalized(params))
// tuple §4.5 specifies as a single comparable string.
func canonicalSignature(n *ir.Node) string {
	inputs := append([]string(nil), n.Inputs...)
	sort.Strings(inputs)

	var b strings.Builder
	b.WriteString(string(n.Kind))
	b.WriteString("|")
	b.WriteString(strings.Join(inputs, ","))
	b.WriteString("|")
	b.WriteString(canonicalParams(n))
	return b.String()
}

func canonicalParams(n *ir.Node) string {
	switch n.Kind {
	case ir.KindInput:
		return n.Params.InputName
	case ir.KindConstant:
		return valueStringify(n.Params.ConstantValue)
	case ir.KindFilter:
		if n.Params.Predicate == nil {
			return ""
		}
		return canonPredicate(*n.Params.Predicate)
	case ir.KindMap:
		if n.Params.Transform == nil {
			return ""
		}
		return canonTransform(*n.Params.Transform)
	case ir.KindReduce:
		s := ""
		if n.Params.Reduction != nil {
			s = canonReduction(*n.Params.Reduction)
		}
		if n.Params.Initial != nil {
			s += "|init=" + valueStringify(*n.Params.Initial)
		}
		return s
	case ir.KindSort:
		key := ""
		if n.Params.SortKey != nil {
			key = canonTransform(*n.Params.SortKey)
		}
		return boolStr(n.Params.Descending) + "|" + key
	case ir.KindDistinct, ir.KindGroupBy:
		if n.Params.KeyTransform == nil {
			return ""
		}
		return canonTransform(*n.Params.KeyTransform)
	case ir.KindFlatten:
		return intStr(n.Params.Depth)
	case ir.KindJoin:
		left, right := "", ""
		if n.Params.LeftKey != nil {
			left = canonTransform(*n.Params.LeftKey)
		}
		if n.Params.RightKey != nil {
			right = canonTransform(*n.Params.RightKey)
		}
		return n.Params.JoinType + "|" + left + "|" + right
	case ir.KindSlice:
		return intPtrStr(n.Params.Start) + "," + intPtrStr(n.Params.End)
	default:
		return ""
	}
}

func boolStr(b bool) string {
	if b {
		return "desc"
	}
	return "asc"
}
func intStr(i int) string { return sprintInt(i) }
func intPtrStr(i *int) string {
	if i == nil {
		return "_"
	}
	return sprintInt(*i)
}

func sprintInt(i int) string {
	neg := i < 0
	if i == 0 {
		return "0"
	}
	if neg {
		i = -i
	}
	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// replaceNodeID rewrites every occurrence of oldID with newID across every
// node's Inputs and across the program's Outputs list.
func replaceNodeID(p *ir.Program, oldID, newID string) {
	for _, id := range p.SortedNodeIDs() {
		n := p.Nodes[id]
		for i, in := range n.Inputs {
			if in == oldID {
				n.Inputs[i] = newID
			}
		}
	}
	for i, out := range p.Outputs {
		if out == oldID {
			p.Outputs[i] = newID
		}
	}
}

// consumerCount counts how many node Inputs entries and Outputs entries
// reference id — used by fusion passes' single-consumer constraint.
func consumerCount(p *ir.Program, id string) int {
	count := 0
	for _, nid := range p.SortedNodeIDs() {
		for _, in := range p.Nodes[nid].Inputs {
			if in == id {
				count++
			}
		}
	}
	for _, out := range p.Outputs {
		if out == id {
			count++
		}
	}
	return count
}

// runCSE groups nodes by canonical signature and redirects consumers of
// every duplicate to the first-encountered representative.
func runCSE(p *ir.Program, prov *provenance.Tracker, clock *int64) bool {
	changed := false
	seen := map[string]string{} // signature -> representative id

	for _, id := range p.InsertionOrder() {
		n, ok := p.Nodes[id]
		if !ok {
			continue
		}
		sig := canonicalSignature(n)
		rep, exists := seen[sig]
		if !exists {
			seen[sig] = id
			continue
		}
		if rep == id {
			continue
		}
		if n.Kind == ir.KindConstant && !value.Equal(n.Params.ConstantValue, p.Nodes[rep].Params.ConstantValue) {
			continue
		}
		replaceNodeID(p, id, rep)
		p.DeleteNode(id)
		if prov != nil {
			prov.RecordRewrite(rep, "common_subexpression_elimination", []string{id, rep},
				"duplicate node redirected to canonical representative", nextTimestamp(clock))
		}
		changed = true
	}
	return changed
}
