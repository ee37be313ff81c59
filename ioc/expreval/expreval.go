// Package expreval evaluates the closed Predicate/Transform/Reduction
// algebra (C2) against a single Value, with no budget enforcement of its
// own. It is the shared core of two higher-level consumers: the code
// generator (C7), which wraps these evaluations with iteration/time budgets
// (C9) while lowering a whole program, and the optimizer (C6), which uses it
// bare to run the filter-before-map semantics-preservation check (§4.5)
// against a fixed synthetic input bank at compile time.
//
// Grounded on the teacher's expression-transform dispatch in
// core/transform/transform.go (transformExpression's type-switch over
// ast.Expression variants), generalized from an AST-to-IR lowering pass to a
// direct tree-walking evaluator over the IOC value algebra.
package expreval

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/ioc-lang/ioc/ioc/dsl"
	"github.com/ioc-lang/ioc/ioc/value"
)

// EvalPredicate evaluates p against x.
func EvalPredicate(p dsl.Predicate, x value.Value) (bool, error) {
	switch p.Kind {
	case dsl.PredicateAlways:
		return p.AlwaysValue, nil
	case dsl.PredicateCompare:
		return compare(p.Op, x, p.Literal)
	case dsl.PredicateCompareProperty:
		target := property(x, []string{p.Identifier})
		return compare(p.Op, target, p.Literal)
	case dsl.PredicateTypeCheck:
		return x.Kind == p.TypeKind, nil
	case dsl.PredicateNot:
		if p.Inner == nil {
			return true, nil
		}
		inner, err := EvalPredicate(*p.Inner, x)
		if err != nil {
			return false, err
		}
		return !inner, nil
	case dsl.PredicateAnd:
		for _, sub := range p.List {
			ok, err := EvalPredicate(sub, x)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case dsl.PredicateOr:
		for _, sub := range p.List {
			ok, err := EvalPredicate(sub, x)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
}

// EvalTransform evaluates t against x.
func EvalTransform(t dsl.Transform, x value.Value) (value.Value, error) {
	switch t.Kind {
	case dsl.TransformIdentity:
		return x, nil
	case dsl.TransformConstant:
		return t.ConstantValue, nil
	case dsl.TransformProperty:
		return property(x, t.Path), nil
	case dsl.TransformArithmetic:
		return evalArithmetic(t, x)
	case dsl.TransformString:
		return evalString(t, x)
	case dsl.TransformArray:
		return evalArray(t, x)
	case dsl.TransformConditional:
		if t.Cond == nil {
			return value.Null(), fmt.Errorf("conditional missing predicate")
		}
		ok, err := EvalPredicate(*t.Cond, x)
		if err != nil {
			return value.Value{}, err
		}
		if ok {
			if t.IfTrue == nil {
				return value.Null(), nil
			}
			return EvalTransform(*t.IfTrue, x)
		}
		if t.IfFalse == nil {
			return value.Null(), nil
		}
		return EvalTransform(*t.IfFalse, x)
	case dsl.TransformCompose:
		cur := x
		for _, step := range t.Steps {
			v, err := EvalTransform(step, cur)
			if err != nil {
				return value.Value{}, err
			}
			cur = v
		}
		return cur, nil
	case dsl.TransformConstruct:
		out := map[string]value.Value{}
		for field, sub := range t.Fields {
			v, err := EvalTransform(sub, x)
			if err != nil {
				return value.Value{}, err
			}
			out[field] = v
		}
		return value.NewObject(out), nil
	default:
		return value.Value{}, fmt.Errorf("unknown transform kind %q", t.Kind)
	}
}

// EvalReduction applies r to the ordered sequence items, raising
// EmptyReduction-shaped errors (returned, not yet wrapped with a node id —
// the caller in ioc/codegen attaches that) for reductions without a natural
// identity over an empty input.
func EvalReduction(r dsl.Reduction, items []value.Value, initial *value.Value) (value.Value, error) {
	switch r.Kind {
	case dsl.ReductionSum:
		sum := 0.0
		if initial != nil {
			sum = asNumber(*initial)
		}
		for _, it := range items {
			sum += asNumber(it)
		}
		return value.Number(sum), nil
	case dsl.ReductionProduct:
		prod := 1.0
		if initial != nil {
			prod = asNumber(*initial)
		}
		for _, it := range items {
			prod *= asNumber(it)
		}
		return value.Number(prod), nil
	case dsl.ReductionCount:
		count := 0.0
		if initial != nil {
			count = asNumber(*initial)
		}
		return value.Number(count + float64(len(items))), nil
	case dsl.ReductionAny:
		seed := false
		if initial != nil {
			seed = initial.Boolean
		}
		if seed {
			return value.Bool(true), nil
		}
		if r.Predicate == nil {
			return value.Bool(false), nil
		}
		for _, it := range items {
			ok, err := EvalPredicate(*r.Predicate, it)
			if err != nil {
				return value.Value{}, err
			}
			if ok {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case dsl.ReductionAll:
		seed := true
		if initial != nil {
			seed = initial.Boolean
		}
		if !seed {
			return value.Bool(false), nil
		}
		if r.Predicate == nil {
			return value.Bool(true), nil
		}
		for _, it := range items {
			ok, err := EvalPredicate(*r.Predicate, it)
			if err != nil {
				return value.Value{}, err
			}
			if !ok {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil
	case dsl.ReductionJoin:
		seed := ""
		if initial != nil {
			seed = asString(*initial)
		}
		if len(items) == 0 {
			return value.String(seed), nil
		}
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = value.Stringify(it)
		}
		joined := strings.Join(parts, r.Separator)
		if seed != "" {
			joined = seed + r.Separator + joined
		}
		return value.String(joined), nil
	case dsl.ReductionMin, dsl.ReductionMax, dsl.ReductionAverage, dsl.ReductionFirst, dsl.ReductionLast:
		if len(items) == 0 {
			if initial != nil {
				return *initial, nil
			}
			return value.Value{}, emptyReductionError(r.Kind)
		}
		switch r.Kind {
		case dsl.ReductionFirst:
			return items[0], nil
		case dsl.ReductionLast:
			return items[len(items)-1], nil
		case dsl.ReductionMin:
			min := asNumber(items[0])
			for _, it := range items[1:] {
				if n := asNumber(it); n < min {
					min = n
				}
			}
			return value.Number(min), nil
		case dsl.ReductionMax:
			max := asNumber(items[0])
			for _, it := range items[1:] {
				if n := asNumber(it); n > max {
					max = n
				}
			}
			return value.Number(max), nil
		case dsl.ReductionAverage:
			sum := 0.0
			for _, it := range items {
				sum += asNumber(it)
			}
			return value.Number(sum / float64(len(items))), nil
		}
	}
	return value.Value{}, fmt.Errorf("unknown reduction kind %q", r.Kind)
}

// EmptyReductionKindError is a sentinel used so ioc/codegen can attach a node
// id without this package needing to import ioc/errors (which would risk a
// future import cycle back through the code generator).
type EmptyReductionKindError struct{ Reduction string }

func (e *EmptyReductionKindError) Error() string {
	return fmt.Sprintf("reduction %q has no natural identity for empty input", e.Reduction)
}

func emptyReductionError(kind dsl.ReductionKind) error {
	return &EmptyReductionKindError{Reduction: string(kind)}
}

func property(x value.Value, path []string) value.Value {
	cur := x
	for _, seg := range path {
		if cur.Kind != value.KindObject {
			return value.Null()
		}
		next, ok := cur.Object[seg]
		if !ok {
			return value.Null()
		}
		cur = next
	}
	return cur
}

func asNumber(v value.Value) float64 {
	if v.Kind == value.KindNumber {
		return v.Number
	}
	return 0
}

func asString(v value.Value) string {
	if v.Kind == value.KindString {
		return v.Str
	}
	return value.Stringify(v)
}

func evalArithmetic(t dsl.Transform, x value.Value) (value.Value, error) {
	xn := asNumber(x)
	if t.ArithOp == dsl.ArithNegate {
		return value.Number(-xn), nil
	}
	if t.Operand == nil {
		return value.Value{}, fmt.Errorf("arithmetic op %q requires an operand", t.ArithOp)
	}
	opVal, err := EvalTransform(*t.Operand, x)
	if err != nil {
		return value.Value{}, err
	}
	on := asNumber(opVal)
	switch t.ArithOp {
	case dsl.ArithAdd:
		return value.Number(xn + on), nil
	case dsl.ArithSubtract:
		return value.Number(xn - on), nil
	case dsl.ArithMultiply:
		return value.Number(xn * on), nil
	case dsl.ArithDivide:
		return value.Number(xn / on), nil // non-finite on division by zero, per §4.6
	case dsl.ArithModulo:
		if on == 0 {
			return value.Number(xn / on), nil
		}
		return value.Number(float64(int64(xn) % int64(on))), nil
	case dsl.ArithPower:
		return value.Number(math.Pow(xn, on)), nil
	default:
		return value.Value{}, fmt.Errorf("unknown arithmetic op %q", t.ArithOp)
	}
}

func evalString(t dsl.Transform, x value.Value) (value.Value, error) {
	s := asString(x)
	switch t.StrOp {
	case dsl.StrUppercase:
		return value.String(strings.ToUpper(s)), nil
	case dsl.StrLowercase:
		return value.String(strings.ToLower(s)), nil
	case dsl.StrTrim:
		return value.String(strings.TrimSpace(s)), nil
	case dsl.StrConcat:
		var b strings.Builder
		b.WriteString(s)
		for _, a := range t.Args {
			b.WriteString(asString(a))
		}
		return value.String(b.String()), nil
	case dsl.StrSubstring:
		start, end := 0, len(s)
		if len(t.Args) > 0 {
			start = int(asNumber(t.Args[0]))
		}
		if len(t.Args) > 1 {
			end = int(asNumber(t.Args[1]))
		}
		if start < 0 {
			start = 0
		}
		if end > len(s) {
			end = len(s)
		}
		if start > end {
			start = end
		}
		return value.String(s[start:end]), nil
	case dsl.StrSplit:
		sep := ""
		if len(t.Args) > 0 {
			sep = asString(t.Args[0])
		}
		parts := strings.Split(s, sep)
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.String(p)
		}
		return value.NewArray(out...), nil
	case dsl.StrReplace:
		old, new := "", ""
		if len(t.Args) > 0 {
			old = asString(t.Args[0])
		}
		if len(t.Args) > 1 {
			new = asString(t.Args[1])
		}
		return value.String(strings.ReplaceAll(s, old, new)), nil
	default:
		return value.Value{}, fmt.Errorf("unknown string op %q", t.StrOp)
	}
}

func evalArray(t dsl.Transform, x value.Value) (value.Value, error) {
	arr := x.Array
	switch t.ArrOp {
	case dsl.ArrLength:
		return value.Number(float64(len(arr))), nil
	case dsl.ArrReverse:
		out := make([]value.Value, len(arr))
		for i, v := range arr {
			out[len(arr)-1-i] = v
		}
		return value.NewArray(out...), nil
	case dsl.ArrSlice:
		start, end := 0, len(arr)
		if len(t.Args) > 0 {
			start = int(asNumber(t.Args[0]))
		}
		if len(t.Args) > 1 {
			end = int(asNumber(t.Args[1]))
		}
		if start < 0 {
			start = 0
		}
		if end > len(arr) {
			end = len(arr)
		}
		if start > end {
			start = end
		}
		return value.NewArray(append([]value.Value(nil), arr[start:end]...)...), nil
	case dsl.ArrConcat:
		out := append([]value.Value(nil), arr...)
		for _, a := range t.Args {
			out = append(out, a.Array...)
		}
		return value.NewArray(out...), nil
	case dsl.ArrAt:
		idx := 0
		if len(t.Args) > 0 {
			idx = int(asNumber(t.Args[0]))
		}
		if idx < 0 || idx >= len(arr) {
			return value.Null(), nil
		}
		return arr[idx], nil
	default:
		return value.Value{}, fmt.Errorf("unknown array op %q", t.ArrOp)
	}
}

func compare(op dsl.CompareOp, a, b value.Value) (bool, error) {
	switch op {
	case dsl.OpEq:
		return value.Equal(a, b), nil
	case dsl.OpNe:
		return !value.Equal(a, b), nil
	case dsl.OpGt, dsl.OpGte, dsl.OpLt, dsl.OpLte:
		return compareOrdered(op, a, b), nil
	case dsl.OpIn:
		for _, elem := range b.Array {
			if value.Equal(a, elem) {
				return true, nil
			}
		}
		return false, nil
	case dsl.OpContains:
		if a.Kind == value.KindString {
			return strings.Contains(a.Str, asString(b)), nil
		}
		for _, elem := range a.Array {
			if value.Equal(elem, b) {
				return true, nil
			}
		}
		return false, nil
	case dsl.OpMatches:
		re, err := regexp.Compile(asString(b))
		if err != nil {
			return false, err
		}
		return re.MatchString(asString(a)), nil
	default:
		return false, fmt.Errorf("unknown compare op %q", op)
	}
}

func compareOrdered(op dsl.CompareOp, a, b value.Value) bool {
	var lt, eq bool
	if a.Kind == value.KindNumber && b.Kind == value.KindNumber {
		lt = a.Number < b.Number
		eq = a.Number == b.Number
	} else {
		as, bs := value.Stringify(a), value.Stringify(b)
		lt = as < bs
		eq = as == bs
	}
	switch op {
	case dsl.OpGt:
		return !lt && !eq
	case dsl.OpGte:
		return !lt
	case dsl.OpLt:
		return lt
	case dsl.OpLte:
		return lt || eq
	default:
		return false
	}
}
