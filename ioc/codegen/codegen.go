// Package codegen implements the code generator (C7): it lowers a validated,
// optimized program into a single callable artifact by walking the
// execution order and compiling each intent to a host-level closure over
// the expression evaluator (ioc/expreval), enforcing per-node budgets
// (ioc/budget) and emitting a deterministic textual rendering of the
// program for diagnostics and the gosource backend's metadata.
//
// Grounded on the teacher's lowering pass in runtime/planner/ir_builder.go
// (a single forward walk over an already-validated IR, each statement kind
// dispatched to its own lowering function, accumulating into one artifact)
// generalized from shell-command lowering to the intent-by-intent lowering
// this spec requires.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ioc-lang/ioc/ioc/budget"
	"github.com/ioc-lang/ioc/ioc/dsl"
	iocerrors "github.com/ioc-lang/ioc/ioc/errors"
	"github.com/ioc-lang/ioc/ioc/expreval"
	"github.com/ioc-lang/ioc/ioc/ir"
	"github.com/ioc-lang/ioc/ioc/security"
	"github.com/ioc-lang/ioc/ioc/value"
)

// Program is the compiled artifact's core: a closure over the source
// program's execution order, ready to run against bound inputs.
type Program struct {
	InputIDs        []string // Input-node ids, in declaration (insertion) order
	InputNames      []string // matching Params.InputName, for a human-readable signature
	OutputIDs       []string
	GeneratedSource string
	source          *ir.Program
	order           []string
}

// Compile lowers p into a Program. p must already have passed ir.Validate
// and security.ValidateProgram — Compile re-derives nothing and assumes the
// structural and safety invariants already hold, consistent with §4.6's
// "Lowering proceeds in topological order" over an already-validated graph.
func Compile(p *ir.Program) (*Program, error) {
	order, err := ir.GetExecutionOrder(p)
	if err != nil {
		return nil, &iocerrors.CompilationError{Detail: err.Error()}
	}

	var inputIDs, inputNames []string
	for _, id := range p.InsertionOrder() {
		n := p.Nodes[id]
		if n.Kind == ir.KindInput {
			inputIDs = append(inputIDs, id)
			inputNames = append(inputNames, n.Params.InputName)
		}
	}

	source, err := renderSource(p, order)
	if err != nil {
		return nil, err
	}
	if err := security.ValidateGeneratedCode(source); err != nil {
		return nil, err
	}

	return &Program{
		InputIDs:        inputIDs,
		InputNames:      inputNames,
		OutputIDs:       append([]string(nil), p.Outputs...),
		GeneratedSource: source,
		source:          p,
		order:           order,
	}, nil
}

// Execute runs the compiled program against inputs, which must be in
// Program.InputIDs order, and returns one Value per output id in declared
// order.
func (cp *Program) Execute(inputs []value.Value) ([]value.Value, error) {
	if len(inputs) != len(cp.InputIDs) {
		return nil, &iocerrors.ExecutionError{Cause: fmt.Errorf("expected %d input(s), got %d", len(cp.InputIDs), len(inputs))}
	}

	values := make(map[string]value.Value, len(cp.order))
	for i, id := range cp.InputIDs {
		values[id] = inputs[i]
	}

	for _, id := range cp.order {
		if _, bound := values[id]; bound {
			continue // Input nodes are already bound above
		}
		n := cp.source.Nodes[id]
		v, err := evalNode(n, values)
		if err != nil {
			return nil, attributeError(id, err)
		}
		values[id] = v
	}

	out := make([]value.Value, len(cp.OutputIDs))
	for i, id := range cp.OutputIDs {
		v, ok := values[id]
		if !ok {
			return nil, &iocerrors.ExecutionError{NodeID: id, Cause: fmt.Errorf("output node %q produced no value", id)}
		}
		out[i] = v
	}
	return out, nil
}

func attributeError(nodeID string, err error) error {
	if _, ok := err.(iocerrors.Error); ok {
		return err
	}
	return &iocerrors.ExecutionError{NodeID: nodeID, Cause: err}
}

func evalNode(n *ir.Node, values map[string]value.Value) (value.Value, error) {
	switch n.Kind {
	case ir.KindConstant:
		return n.Params.ConstantValue, nil
	case ir.KindOutput:
		return inputValue(n, values, 0)
	case ir.KindFilter:
		return evalFilter(n, values)
	case ir.KindMap:
		return evalMap(n, values)
	case ir.KindReduce:
		return evalReduce(n, values)
	case ir.KindSort:
		return evalSort(n, values)
	case ir.KindDistinct:
		return evalDistinct(n, values)
	case ir.KindFlatten:
		return evalFlatten(n, values)
	case ir.KindGroupBy:
		return evalGroupBy(n, values)
	case ir.KindJoin:
		return evalJoin(n, values)
	case ir.KindSlice:
		return evalSlice(n, values)
	case ir.KindConcat:
		return evalConcat(n, values)
	default:
		return value.Value{}, &iocerrors.CompilationError{NodeID: n.ID, Detail: fmt.Sprintf("unsupported node kind %q", n.Kind)}
	}
}

func inputValue(n *ir.Node, values map[string]value.Value, idx int) (value.Value, error) {
	if idx >= len(n.Inputs) {
		return value.Value{}, fmt.Errorf("node %q has no input at position %d", n.ID, idx)
	}
	v, ok := values[n.Inputs[idx]]
	if !ok {
		return value.Value{}, fmt.Errorf("node %q: input %q has no computed value", n.ID, n.Inputs[idx])
	}
	return v, nil
}

func elements(n *ir.Node, values map[string]value.Value, idx int) ([]value.Value, error) {
	v, err := inputValue(n, values, idx)
	if err != nil {
		return nil, err
	}
	if v.Kind != value.KindArray {
		return nil, fmt.Errorf("node %q: expected an array input, got %s", n.ID, v.Kind)
	}
	return v.Array, nil
}

func evalFilter(n *ir.Node, values map[string]value.Value) (value.Value, error) {
	items, err := elements(n, values, 0)
	if err != nil {
		return value.Value{}, err
	}
	pred := dsl.Always(true)
	if n.Params.Predicate != nil {
		pred = *n.Params.Predicate
	}
	enforcer := budget.NewEnforcer(n.ID, n.Capability.MaxComplexity)
	check := budget.ShouldCheckIterations(n.Capability.MaxComplexity)

	out := make([]value.Value, 0, len(items))
	for _, item := range items {
		if check {
			if err := enforcer.Tick(); err != nil {
				return value.Value{}, err
			}
		}
		keep, err := expreval.EvalPredicate(pred, item)
		if err != nil {
			return value.Value{}, err
		}
		if keep {
			out = append(out, item)
		}
	}
	return value.NewArray(out...), nil
}

func evalMap(n *ir.Node, values map[string]value.Value) (value.Value, error) {
	items, err := elements(n, values, 0)
	if err != nil {
		return value.Value{}, err
	}
	t := dsl.Identity()
	if n.Params.Transform != nil {
		t = *n.Params.Transform
	}
	enforcer := budget.NewEnforcer(n.ID, n.Capability.MaxComplexity)
	check := budget.ShouldCheckIterations(n.Capability.MaxComplexity)

	out := make([]value.Value, len(items))
	for i, item := range items {
		if check {
			if err := enforcer.Tick(); err != nil {
				return value.Value{}, err
			}
		}
		mapped, err := expreval.EvalTransform(t, item)
		if err != nil {
			return value.Value{}, err
		}
		out[i] = mapped
	}
	return value.NewArray(out...), nil
}

func evalReduce(n *ir.Node, values map[string]value.Value) (value.Value, error) {
	items, err := elements(n, values, 0)
	if err != nil {
		return value.Value{}, err
	}
	red := dsl.Reduce(dsl.ReductionSum)
	if n.Params.Reduction != nil {
		red = *n.Params.Reduction
	}
	out, err := expreval.EvalReduction(red, items, n.Params.Initial)
	if err != nil {
		if ek, ok := err.(*expreval.EmptyReductionKindError); ok {
			return value.Value{}, &iocerrors.EmptyReduction{NodeID: n.ID, Reduction: ek.Reduction}
		}
		return value.Value{}, err
	}
	return out, nil
}

func evalSort(n *ir.Node, values map[string]value.Value) (value.Value, error) {
	items, err := elements(n, values, 0)
	if err != nil {
		return value.Value{}, err
	}
	out := append([]value.Value(nil), items...)

	keys := make([]string, len(out))
	for i, item := range out {
		if n.Params.SortKey != nil {
			k, err := expreval.EvalTransform(*n.Params.SortKey, item)
			if err != nil {
				return value.Value{}, err
			}
			keys[i] = value.Stringify(k)
		} else {
			keys[i] = value.Stringify(item)
		}
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if n.Params.Descending {
			return keys[idx[a]] > keys[idx[b]]
		}
		return keys[idx[a]] < keys[idx[b]]
	})

	sorted := make([]value.Value, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return value.NewArray(sorted...), nil
}

func evalDistinct(n *ir.Node, values map[string]value.Value) (value.Value, error) {
	items, err := elements(n, values, 0)
	if err != nil {
		return value.Value{}, err
	}
	seen := map[string]bool{}
	out := make([]value.Value, 0, len(items))
	for _, item := range items {
		key := value.Stringify(item)
		if n.Params.KeyTransform != nil {
			k, err := expreval.EvalTransform(*n.Params.KeyTransform, item)
			if err != nil {
				return value.Value{}, err
			}
			key = value.Stringify(k)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return value.NewArray(out...), nil
}

func evalFlatten(n *ir.Node, values map[string]value.Value) (value.Value, error) {
	items, err := elements(n, values, 0)
	if err != nil {
		return value.Value{}, err
	}
	depth := n.Params.Depth
	if depth <= 0 {
		depth = 1
	}
	return value.NewArray(flatten(items, depth)...), nil
}

func flatten(items []value.Value, depth int) []value.Value {
	if depth == 0 {
		return items
	}
	out := make([]value.Value, 0, len(items))
	for _, item := range items {
		if item.Kind == value.KindArray {
			out = append(out, flatten(item.Array, depth-1)...)
		} else {
			out = append(out, item)
		}
	}
	return out
}

func evalGroupBy(n *ir.Node, values map[string]value.Value) (value.Value, error) {
	items, err := elements(n, values, 0)
	if err != nil {
		return value.Value{}, err
	}
	if n.Params.KeyTransform == nil {
		return value.Value{}, &iocerrors.CompilationError{NodeID: n.ID, Detail: "group_by requires a key transform"}
	}

	var order []string
	groups := map[string][]value.Value{}
	for _, item := range items {
		k, err := expreval.EvalTransform(*n.Params.KeyTransform, item)
		if err != nil {
			return value.Value{}, err
		}
		key := value.Stringify(k)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], item)
	}

	obj := make(map[string]value.Value, len(order))
	for _, key := range order {
		obj[key] = value.NewArray(groups[key]...)
	}
	return value.NewObject(obj), nil
}

// evalJoin performs a nested-loop hash-join on the elements of the two
// input arrays, keyed by Params.LeftKey / Params.RightKey and shaped by
// Params.JoinType ("inner" | "left" | "right" | "full"); unmatched sides are
// paired with value.Null() for outer join types.
func evalJoin(n *ir.Node, values map[string]value.Value) (value.Value, error) {
	if len(n.Inputs) != 2 {
		return value.Value{}, &iocerrors.CompilationError{NodeID: n.ID, Detail: "join requires exactly two inputs"}
	}
	left, err := elements(n, values, 0)
	if err != nil {
		return value.Value{}, err
	}
	right, err := elements(n, values, 1)
	if err != nil {
		return value.Value{}, err
	}
	if n.Params.LeftKey == nil || n.Params.RightKey == nil {
		return value.Value{}, &iocerrors.CompilationError{NodeID: n.ID, Detail: "join requires a leftKey and rightKey"}
	}

	rightByKey := map[string][]value.Value{}
	var rightOrder []string
	for _, r := range right {
		k, err := expreval.EvalTransform(*n.Params.RightKey, r)
		if err != nil {
			return value.Value{}, err
		}
		key := value.Stringify(k)
		if _, ok := rightByKey[key]; !ok {
			rightOrder = append(rightOrder, key)
		}
		rightByKey[key] = append(rightByKey[key], r)
	}
	matchedRightKeys := map[string]bool{}

	var out []value.Value
	for _, l := range left {
		k, err := expreval.EvalTransform(*n.Params.LeftKey, l)
		if err != nil {
			return value.Value{}, err
		}
		key := value.Stringify(k)
		if matches, ok := rightByKey[key]; ok {
			matchedRightKeys[key] = true
			for _, r := range matches {
				out = append(out, value.NewObject(map[string]value.Value{"left": l, "right": r}))
			}
			continue
		}
		if n.Params.JoinType == "left" || n.Params.JoinType == "full" {
			out = append(out, value.NewObject(map[string]value.Value{"left": l, "right": value.Null()}))
		}
	}
	if n.Params.JoinType == "right" || n.Params.JoinType == "full" {
		for _, key := range rightOrder {
			if matchedRightKeys[key] {
				continue
			}
			for _, r := range rightByKey[key] {
				out = append(out, value.NewObject(map[string]value.Value{"left": value.Null(), "right": r}))
			}
		}
	}
	return value.NewArray(out...), nil
}

func evalSlice(n *ir.Node, values map[string]value.Value) (value.Value, error) {
	items, err := elements(n, values, 0)
	if err != nil {
		return value.Value{}, err
	}
	start, end := 0, len(items)
	if n.Params.Start != nil {
		start = *n.Params.Start
	}
	if n.Params.End != nil {
		end = *n.Params.End
	}
	if start < 0 {
		start = 0
	}
	if end > len(items) {
		end = len(items)
	}
	if start > end {
		start = end
	}
	return value.NewArray(append([]value.Value(nil), items[start:end]...)...), nil
}

func evalConcat(n *ir.Node, values map[string]value.Value) (value.Value, error) {
	var out []value.Value
	for i := range n.Inputs {
		items, err := elements(n, values, i)
		if err != nil {
			return value.Value{}, err
		}
		out = append(out, items...)
	}
	return value.NewArray(out...), nil
}

// renderSource builds a deterministic, human-readable rendering of p in
// execution order — used as the generated-source metadata surfaced by the
// gosource backend and as the text security.ValidateGeneratedCode scans.
func renderSource(p *ir.Program, order []string) (string, error) {
	var b strings.Builder
	b.WriteString("// compiled intent program\n")
	for _, id := range order {
		n := p.Nodes[id]
		fmt.Fprintf(&b, "let %s = %s\n", budget.SanitizeIdentifier(id), renderNode(n))
	}
	fmt.Fprintf(&b, "return %s\n", strings.Join(sanitizeAll(p.Outputs), ", "))
	return b.String(), nil
}

func sanitizeAll(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = budget.SanitizeIdentifier(id)
	}
	return out
}

func renderNode(n *ir.Node) string {
	ins := sanitizeAll(n.Inputs)
	switch n.Kind {
	case ir.KindInput:
		return fmt.Sprintf("input(%s)", budget.SanitizeIdentifier(n.Params.InputName))
	case ir.KindConstant:
		return fmt.Sprintf("constant(%s)", value.Stringify(n.Params.ConstantValue))
	case ir.KindFilter:
		pred := dsl.Always(true)
		if n.Params.Predicate != nil {
			pred = *n.Params.Predicate
		}
		return fmt.Sprintf("filter(%s, %s)", strings.Join(ins, ","), dsl.CanonicalPredicate(pred))
	case ir.KindMap:
		t := dsl.Identity()
		if n.Params.Transform != nil {
			t = *n.Params.Transform
		}
		return fmt.Sprintf("map(%s, %s)", strings.Join(ins, ","), dsl.CanonicalTransform(t))
	case ir.KindReduce:
		r := dsl.Reduce(dsl.ReductionSum)
		if n.Params.Reduction != nil {
			r = *n.Params.Reduction
		}
		return fmt.Sprintf("reduce(%s, %s)", strings.Join(ins, ","), dsl.CanonicalReduction(r))
	case ir.KindOutput:
		return fmt.Sprintf("output(%s)", strings.Join(ins, ","))
	default:
		return fmt.Sprintf("%s(%s)", n.Kind, strings.Join(ins, ","))
	}
}
