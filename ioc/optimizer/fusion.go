package optimizer

import (
	"github.com/ioc-lang/ioc/ioc/dsl"
	"github.com/ioc-lang/ioc/ioc/expreval"
	"github.com/ioc-lang/ioc/ioc/ir"
	"github.com/ioc-lang/ioc/ioc/provenance"
	"github.com/ioc-lang/ioc/ioc/value"
)

// runFilterFusion repeatedly collapses Filter(p2) <- Filter(p1) chains where
// the inner filter has exactly one consumer, to a fixed point within this
// pass (§4.5 Tie-breaking and determinism: "no implicit cross-pass
// iteration").
func runFilterFusion(p *ir.Program, prov *provenance.Tracker, clock *int64) bool {
	changed := false
	for {
		did := false
		for _, id := range p.InsertionOrder() {
			outer, ok := p.Nodes[id]
			if !ok || outer.Kind != ir.KindFilter || len(outer.Inputs) != 1 {
				continue
			}
			innerID := outer.Inputs[0]
			inner, ok := p.Nodes[innerID]
			if !ok || inner.Kind != ir.KindFilter {
				continue
			}
			if consumerCount(p, innerID) != 1 {
				continue
			}
			innerPred := dsl.Always(true)
			if inner.Params.Predicate != nil {
				innerPred = *inner.Params.Predicate
			}
			outerPred := dsl.Always(true)
			if outer.Params.Predicate != nil {
				outerPred = *outer.Params.Predicate
			}
			fused := dsl.And(innerPred, outerPred)
			outer.Params.Predicate = &fused
			outer.Inputs = append([]string(nil), inner.Inputs...)
			p.DeleteNode(innerID)
			if prov != nil {
				prov.RecordRewrite(outer.ID, PassFilterFusion, []string{innerID, outer.ID},
					"collapsed single-consumer Filter->Filter chain into Filter(And(p1,p2))", nextTimestamp(clock))
			}
			did = true
			changed = true
			break
		}
		if !did {
			break
		}
	}
	return changed
}

// runMapFusion repeatedly collapses Map(t2) <- Map(t1) chains where the
// inner map has exactly one consumer, to a fixed point within this pass.
func runMapFusion(p *ir.Program, prov *provenance.Tracker, clock *int64) bool {
	changed := false
	for {
		did := false
		for _, id := range p.InsertionOrder() {
			outer, ok := p.Nodes[id]
			if !ok || outer.Kind != ir.KindMap || len(outer.Inputs) != 1 {
				continue
			}
			innerID := outer.Inputs[0]
			inner, ok := p.Nodes[innerID]
			if !ok || inner.Kind != ir.KindMap {
				continue
			}
			if consumerCount(p, innerID) != 1 {
				continue
			}
			innerT := dsl.Identity()
			if inner.Params.Transform != nil {
				innerT = *inner.Params.Transform
			}
			outerT := dsl.Identity()
			if outer.Params.Transform != nil {
				outerT = *outer.Params.Transform
			}
			fused := dsl.Compose(innerT, outerT)
			outer.Params.Transform = &fused
			outer.Inputs = append([]string(nil), inner.Inputs...)
			p.DeleteNode(innerID)
			if prov != nil {
				prov.RecordRewrite(outer.ID, PassMapFusion, []string{innerID, outer.ID},
					"collapsed single-consumer Map->Map chain into Map(Compose(t1,t2))", nextTimestamp(clock))
			}
			did = true
			changed = true
			break
		}
		if !did {
			break
		}
	}
	return changed
}

// syntheticBank is the fixed bank of representative inputs §4.5 requires for
// the filter-before-map semantics-preservation check: mixed numeric, string,
// boolean, and nested-array shapes.
func syntheticBank() []value.Value {
	return []value.Value{
		value.Number(0), value.Number(1), value.Number(-1), value.Number(3.5), value.Number(100), value.Number(-100),
		value.String(""), value.String("a"), value.String("hello"), value.String("ABC"),
		value.Bool(true), value.Bool(false),
		value.NewArray(value.Number(1), value.Number(2), value.Number(3)),
		value.NewArray(),
		value.NewArray(value.String("a"), value.String("b")),
		value.Null(),
	}
}

// runFilterBeforeMap finds Map(t) -> Filter(p) chains where the map has
// exactly one consumer (the filter) and attempts to rewrite them to
// Filter(p') -> Map(t), p' chosen so that p'(x) ≡ p(t(x)). The algebraic
// derivation in derivePrimePredicate only covers a tractable subset of the
// algebra (transforms built from Identity/Compose/Arithmetic(add, subtract,
// multiply, negate) with a Constant operand, against predicates that don't
// dereference properties); every candidate is still required to pass the
// empirical bank check before it is applied, exactly as §4.5 and §9
// describe — the algebraic derivation is a heuristic, the bank check is the
// correctness guard.
func runFilterBeforeMap(p *ir.Program, prov *provenance.Tracker, clock *int64) bool {
	changed := false
	for {
		did := false
		for _, id := range p.InsertionOrder() {
			mapNode, ok := p.Nodes[id]
			if !ok || mapNode.Kind != ir.KindMap || mapNode.Params.Transform == nil {
				continue
			}
			if consumerCount(p, id) != 1 {
				continue
			}
			filterID, filterNode := findSoleConsumerFilter(p, id)
			if filterNode == nil || filterNode.Params.Predicate == nil {
				continue
			}

			t := *mapNode.Params.Transform
			origPred := *filterNode.Params.Predicate

			primed, ok := derivePrimePredicate(origPred, t)
			if !ok {
				continue
			}
			if !semanticsPreserved(origPred, t, primed) {
				continue
			}

			filterNode.Params.Predicate = &primed
			filterNode.Inputs = append([]string(nil), mapNode.Inputs...)
			mapNode.Inputs = []string{filterID}
			redirectConsumersExcept(p, filterID, mapNode.ID, mapNode.ID)

			if prov != nil {
				prov.RecordRewrite(mapNode.ID, PassFilterBeforeMap, []string{filterID, mapNode.ID},
					"reordered Map->Filter to Filter->Map after a passing semantics-preservation check", nextTimestamp(clock))
			}
			did = true
			changed = true
			break
		}
		if !did {
			break
		}
	}
	return changed
}

func findSoleConsumerFilter(p *ir.Program, mapID string) (string, *ir.Node) {
	for _, id := range p.InsertionOrder() {
		n := p.Nodes[id]
		if n.Kind != ir.KindFilter || len(n.Inputs) != 1 || n.Inputs[0] != mapID {
			continue
		}
		return id, n
	}
	return "", nil
}

// redirectConsumersExcept replaces every reference to oldID with newID,
// except it leaves skipID's own Inputs untouched (skipID is the node that
// was just deliberately wired to point at oldID as part of the reorder).
func redirectConsumersExcept(p *ir.Program, oldID, newID, skipID string) {
	for _, id := range p.SortedNodeIDs() {
		if id == skipID {
			continue
		}
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

// derivePrimePredicate attempts to build p' such that p'(x) ≡ p(t(x)) for a
// tractable subset of transforms, declining (ok=false) whenever t touches a
// property or field the predicate might be sensitive to in a way this
// heuristic cannot safely invert — per §9's sanctioned conservative rule.
func derivePrimePredicate(p dsl.Predicate, t dsl.Transform) (dsl.Predicate, bool) {
	switch t.Kind {
	case dsl.TransformIdentity:
		return p, true
	case dsl.TransformCompose:
		cur := p
		for i := len(t.Steps) - 1; i >= 0; i-- {
			next, ok := derivePrimePredicate(cur, t.Steps[i])
			if !ok {
				return dsl.Predicate{}, false
			}
			cur = next
		}
		return cur, true
	case dsl.TransformArithmetic:
		return deriveOverArithmetic(p, t)
	default:
		return dsl.Predicate{}, false
	}
}

func deriveOverArithmetic(p dsl.Predicate, t dsl.Transform) (dsl.Predicate, bool) {
	switch p.Kind {
	case dsl.PredicateAlways, dsl.PredicateTypeCheck:
		return p, true
	case dsl.PredicateNot:
		if p.Inner == nil {
			return p, true
		}
		inner, ok := deriveOverArithmetic(*p.Inner, t)
		if !ok {
			return dsl.Predicate{}, false
		}
		return dsl.Not(inner), true
	case dsl.PredicateAnd, dsl.PredicateOr:
		out := make([]dsl.Predicate, 0, len(p.List))
		for _, sub := range p.List {
			derived, ok := deriveOverArithmetic(sub, t)
			if !ok {
				return dsl.Predicate{}, false
			}
			out = append(out, derived)
		}
		if p.Kind == dsl.PredicateAnd {
			return dsl.And(out...), true
		}
		return dsl.Or(out...), true
	case dsl.PredicateCompare:
		if p.Literal.Kind != value.KindNumber {
			return dsl.Predicate{}, false
		}
		return invertArithmeticCompare(p, t)
	default:
		// CompareProperty and anything else: the heuristic can't safely
		// invert a property dereference across an arbitrary transform.
		return dsl.Predicate{}, false
	}
}

// invertArithmeticCompare rewrites Compare(op, lit) against t = Arithmetic(…)
// into an equivalent Compare over x directly, for the invertible operator
// subset {add, subtract, multiply(nonzero), negate}.
func invertArithmeticCompare(p dsl.Predicate, t dsl.Transform) (dsl.Predicate, bool) {
	lit := p.Literal.Number
	op := p.Op

	operandConst := func() (float64, bool) {
		if t.Operand == nil || t.Operand.Kind != dsl.TransformConstant || t.Operand.ConstantValue.Kind != value.KindNumber {
			return 0, false
		}
		return t.Operand.ConstantValue.Number, true
	}

	switch t.ArithOp {
	case dsl.ArithAdd:
		k, ok := operandConst()
		if !ok {
			return dsl.Predicate{}, false
		}
		return dsl.Compare(op, value.Number(lit-k)), true
	case dsl.ArithSubtract:
		k, ok := operandConst()
		if !ok {
			return dsl.Predicate{}, false
		}
		return dsl.Compare(op, value.Number(lit+k)), true
	case dsl.ArithNegate:
		return dsl.Compare(flipOp(op), value.Number(-lit)), true
	case dsl.ArithMultiply:
		k, ok := operandConst()
		if !ok || k == 0 {
			return dsl.Predicate{}, false
		}
		newLit := lit / k
		if k < 0 {
			return dsl.Compare(flipOp(op), value.Number(newLit)), true
		}
		return dsl.Compare(op, value.Number(newLit)), true
	default:
		return dsl.Predicate{}, false
	}
}

func flipOp(op dsl.CompareOp) dsl.CompareOp {
	switch op {
	case dsl.OpGt:
		return dsl.OpLt
	case dsl.OpGte:
		return dsl.OpLte
	case dsl.OpLt:
		return dsl.OpGt
	case dsl.OpLte:
		return dsl.OpGte
	default:
		return op
	}
}

// semanticsPreserved runs the bank check: for every sample x, the keep/skip
// decision under Filter(p')->Map(t) (p' applied directly to x) must match
// the decision under Map(t)->Filter(p) (p applied to t(x)).
func semanticsPreserved(p dsl.Predicate, t dsl.Transform, primed dsl.Predicate) bool {
	for _, x := range syntheticBank() {
		mapped, err := expreval.EvalTransform(t, x)
		if err != nil {
			// t is undefined on this sample; both orders would fail
			// identically, so this sample doesn't distinguish them.
			continue
		}
		origKeep, err := expreval.EvalPredicate(p, mapped)
		if err != nil {
			continue
		}
		primedKeep, err := expreval.EvalPredicate(primed, x)
		if err != nil {
			return false
		}
		if origKeep != primedKeep {
			return false
		}
	}
	return true
}
