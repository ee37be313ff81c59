package security

import (
	"fmt"

	"github.com/ioc-lang/ioc/ioc/dsl"
	iocerrors "github.com/ioc-lang/ioc/ioc/errors"
	"github.com/ioc-lang/ioc/ioc/ir"
	"github.com/ioc-lang/ioc/ioc/value"
)

// ValidateProgram applies invariants 4–7 of §3 across every node in p:
// every literal is a legal Value (4), no forbidden/malformed property
// segment appears anywhere (5), every regex literal is safe (6), and the
// program as a whole respects the node-count cap (7) and carries a "1."
// version; the serialized-size cap is checked on raw bytes by ValidateSize,
// not here. Called before
// the program is handed to the optimizer or code generator — the structural
// invariants 1–3 are ir.Validate's responsibility.
func ValidateProgram(p *ir.Program) error {
	var reasons []string

	reasons = append(reasons, reasonsOf(ValidateNodeCount(len(p.Nodes)))...)
	reasons = append(reasons, reasonsOf(ValidateVersionPrefix(p.Version))...)

	for _, id := range p.SortedNodeIDs() {
		reasons = append(reasons, checkNode(id, p.Nodes[id])...)
	}

	if len(reasons) > 0 {
		return &iocerrors.InvalidProgram{Reasons: reasons}
	}
	return nil
}

// reasonsOf extracts the reason list from an *iocerrors.InvalidProgram, or
// wraps any other error as a single reason.
func reasonsOf(err error) []string {
	if err == nil {
		return nil
	}
	if ip, ok := err.(*iocerrors.InvalidProgram); ok {
		return ip.Reasons
	}
	return []string{err.Error()}
}

func prefixed(nodeID string, err error) []string {
	reasons := reasonsOf(err)
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = fmt.Sprintf("node %q: %s", nodeID, r)
	}
	return out
}

func checkNode(id string, n *ir.Node) []string {
	var out []string

	switch n.Kind {
	case ir.KindConstant:
		out = append(out, prefixed(id, value.Validate(n.Params.ConstantValue))...)
	case ir.KindFilter:
		if n.Params.Predicate != nil {
			out = append(out, checkPredicate(id, *n.Params.Predicate)...)
		}
	case ir.KindMap:
		if n.Params.Transform != nil {
			out = append(out, checkTransform(id, *n.Params.Transform)...)
		}
	case ir.KindReduce:
		if n.Params.Reduction != nil && n.Params.Reduction.Predicate != nil {
			out = append(out, checkPredicate(id, *n.Params.Reduction.Predicate)...)
		}
		if n.Params.Initial != nil {
			out = append(out, prefixed(id, value.Validate(*n.Params.Initial))...)
		}
	case ir.KindSort:
		if n.Params.SortKey != nil {
			out = append(out, checkTransform(id, *n.Params.SortKey)...)
		}
	case ir.KindDistinct, ir.KindGroupBy:
		if n.Params.KeyTransform != nil {
			out = append(out, checkTransform(id, *n.Params.KeyTransform)...)
		}
	case ir.KindJoin:
		if n.Params.LeftKey != nil {
			out = append(out, checkTransform(id, *n.Params.LeftKey)...)
		}
		if n.Params.RightKey != nil {
			out = append(out, checkTransform(id, *n.Params.RightKey)...)
		}
	}
	return out
}

func checkPredicate(nodeID string, p dsl.Predicate) []string {
	var out []string
	switch p.Kind {
	case dsl.PredicateCompare, dsl.PredicateCompareProperty:
		out = append(out, prefixed(nodeID, value.Validate(p.Literal))...)
		if p.Kind == dsl.PredicateCompareProperty {
			out = append(out, prefixed(nodeID, ValidatePropertyPath([]string{p.Identifier}))...)
		}
		if p.Op == dsl.OpMatches && p.Literal.Kind == value.KindString {
			out = append(out, prefixed(nodeID, ValidateRegex(p.Literal.Str))...)
		}
	case dsl.PredicateAnd, dsl.PredicateOr:
		for _, sub := range p.List {
			out = append(out, checkPredicate(nodeID, sub)...)
		}
	case dsl.PredicateNot:
		if p.Inner != nil {
			out = append(out, checkPredicate(nodeID, *p.Inner)...)
		}
	}
	return out
}

func checkTransform(nodeID string, t dsl.Transform) []string {
	var out []string
	switch t.Kind {
	case dsl.TransformConstant:
		out = append(out, prefixed(nodeID, value.Validate(t.ConstantValue))...)
	case dsl.TransformProperty:
		out = append(out, prefixed(nodeID, ValidatePropertyPath(t.Path))...)
	case dsl.TransformArithmetic:
		if t.Operand != nil {
			out = append(out, checkTransform(nodeID, *t.Operand)...)
		}
	case dsl.TransformString, dsl.TransformArray:
		for _, a := range t.Args {
			out = append(out, prefixed(nodeID, value.Validate(a))...)
		}
	case dsl.TransformConditional:
		if t.Cond != nil {
			out = append(out, checkPredicate(nodeID, *t.Cond)...)
		}
		if t.IfTrue != nil {
			out = append(out, checkTransform(nodeID, *t.IfTrue)...)
		}
		if t.IfFalse != nil {
			out = append(out, checkTransform(nodeID, *t.IfFalse)...)
		}
	case dsl.TransformCompose:
		for _, step := range t.Steps {
			out = append(out, checkTransform(nodeID, step)...)
		}
	case dsl.TransformConstruct:
		for _, field := range t.Fields {
			out = append(out, checkTransform(nodeID, field)...)
		}
	}
	return out
}
