// Package dsl implements the closed algebra of Predicates, Transforms, and
// Reductions (C2): tagged definitions plus ergonomic helper constructors.
// Helpers are not part of the data contract — a deserializer may accept bare
// tagged records directly (see ioc/serialize).
//
// Grounded on the teacher's tagged-union expression nodes (core/ir/types.go's
// ContentPart/PartKind, core/transform/transform.go's type-switch dispatch
// over ast.Expression variants) generalized to a data-pipeline algebra.
package dsl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ioc-lang/ioc/ioc/value"
)

// CompareOp enumerates the comparison operators available to Compare and
// CompareProperty predicates.
type CompareOp string

const (
	OpEq       CompareOp = "eq"
	OpNe       CompareOp = "ne"
	OpGt       CompareOp = "gt"
	OpGte      CompareOp = "gte"
	OpLt       CompareOp = "lt"
	OpLte      CompareOp = "lte"
	OpIn       CompareOp = "in"
	OpContains CompareOp = "contains"
	OpMatches  CompareOp = "matches"
)

// PredicateKind discriminates the Predicate sum.
type PredicateKind string

const (
	PredicateCompare         PredicateKind = "compare"
	PredicateCompareProperty PredicateKind = "compare_property"
	PredicateTypeCheck       PredicateKind = "type_check"
	PredicateAnd             PredicateKind = "and"
	PredicateOr              PredicateKind = "or"
	PredicateNot             PredicateKind = "not"
	PredicateAlways          PredicateKind = "always"
)

// Predicate is a boolean-valued expression over a single implicit argument x.
type Predicate struct {
	Kind PredicateKind

	// Compare / CompareProperty
	Op         CompareOp
	Identifier string // CompareProperty only: x.Identifier
	Literal    value.Value

	// TypeCheck
	TypeKind value.Kind

	// And / Or
	List []Predicate

	// Not
	Inner *Predicate

	// Always
	AlwaysValue bool
}

func Compare(op CompareOp, literal value.Value) Predicate {
	return Predicate{Kind: PredicateCompare, Op: op, Literal: literal}
}

func CompareProperty(op CompareOp, identifier string, literal value.Value) Predicate {
	return Predicate{Kind: PredicateCompareProperty, Op: op, Identifier: identifier, Literal: literal}
}

func TypeCheck(kind value.Kind) Predicate {
	return Predicate{Kind: PredicateTypeCheck, TypeKind: kind}
}

func And(ps ...Predicate) Predicate { return Predicate{Kind: PredicateAnd, List: ps} }
func Or(ps ...Predicate) Predicate  { return Predicate{Kind: PredicateOr, List: ps} }
func Not(p Predicate) Predicate     { return Predicate{Kind: PredicateNot, Inner: &p} }
func Always(b bool) Predicate       { return Predicate{Kind: PredicateAlways, AlwaysValue: b} }

// ArithmeticOp enumerates the Arithmetic transform's operators.
type ArithmeticOp string

const (
	ArithAdd      ArithmeticOp = "add"
	ArithSubtract ArithmeticOp = "subtract"
	ArithMultiply ArithmeticOp = "multiply"
	ArithDivide   ArithmeticOp = "divide"
	ArithModulo   ArithmeticOp = "modulo"
	ArithPower    ArithmeticOp = "power"
	ArithNegate   ArithmeticOp = "negate"
)

// StringOp enumerates the String transform's operators.
type StringOp string

const (
	StrUppercase StringOp = "uppercase"
	StrLowercase StringOp = "lowercase"
	StrTrim      StringOp = "trim"
	StrConcat    StringOp = "concat"
	StrSubstring StringOp = "substring"
	StrSplit     StringOp = "split"
	StrReplace   StringOp = "replace"
)

// ArrayOp enumerates the Array transform's operators.
type ArrayOp string

const (
	ArrLength  ArrayOp = "length"
	ArrReverse ArrayOp = "reverse"
	ArrSlice   ArrayOp = "slice"
	ArrConcat  ArrayOp = "concat"
	ArrAt      ArrayOp = "at"
)

// TransformKind discriminates the Transform sum.
type TransformKind string

const (
	TransformIdentity    TransformKind = "identity"
	TransformConstant    TransformKind = "constant"
	TransformProperty    TransformKind = "property"
	TransformArithmetic  TransformKind = "arithmetic"
	TransformString      TransformKind = "string"
	TransformArray       TransformKind = "array"
	TransformConditional TransformKind = "conditional"
	TransformCompose     TransformKind = "compose"
	TransformConstruct   TransformKind = "construct"
)

// Transform is a pure function of x.
type Transform struct {
	Kind TransformKind

	// Constant
	ConstantValue value.Value

	// Property — path is a non-empty list of identifiers
	Path []string

	// Arithmetic
	ArithOp ArithmeticOp
	Operand *Transform // optional second operand (absent for unary negate)

	// String / Array — args are literal Values (separators, indices, needles)
	StrOp   StringOp
	ArrOp   ArrayOp
	Args    []value.Value

	// Conditional
	Cond    *Predicate
	IfTrue  *Transform
	IfFalse *Transform

	// Compose
	Steps []Transform

	// Construct
	Fields map[string]Transform
}

func Identity() Transform { return Transform{Kind: TransformIdentity} }
func Constant(v value.Value) Transform {
	return Transform{Kind: TransformConstant, ConstantValue: v}
}
func Property(path ...string) Transform { return Transform{Kind: TransformProperty, Path: path} }

func Arithmetic(op ArithmeticOp, operand *Transform) Transform {
	return Transform{Kind: TransformArithmetic, ArithOp: op, Operand: operand}
}

func StringOpT(op StringOp, args ...value.Value) Transform {
	return Transform{Kind: TransformString, StrOp: op, Args: args}
}

func ArrayOpT(op ArrayOp, args ...value.Value) Transform {
	return Transform{Kind: TransformArray, ArrOp: op, Args: args}
}

func Conditional(cond Predicate, ifTrue, ifFalse Transform) Transform {
	return Transform{Kind: TransformConditional, Cond: &cond, IfTrue: &ifTrue, IfFalse: &ifFalse}
}

func Compose(steps ...Transform) Transform {
	return Transform{Kind: TransformCompose, Steps: steps}
}

func Construct(fields map[string]Transform) Transform {
	return Transform{Kind: TransformConstruct, Fields: fields}
}

// ReductionKind discriminates the Reduction sum.
type ReductionKind string

const (
	ReductionSum     ReductionKind = "sum"
	ReductionProduct ReductionKind = "product"
	ReductionMin     ReductionKind = "min"
	ReductionMax     ReductionKind = "max"
	ReductionCount   ReductionKind = "count"
	ReductionAverage ReductionKind = "average"
	ReductionAny     ReductionKind = "any"
	ReductionAll     ReductionKind = "all"
	ReductionJoin    ReductionKind = "join"
	ReductionFirst   ReductionKind = "first"
	ReductionLast    ReductionKind = "last"
)

// Reduction folds a sequence down to a single Value.
type Reduction struct {
	Kind      ReductionKind
	Predicate *Predicate // Any / All
	Separator string     // Join
}

func Reduce(kind ReductionKind) Reduction     { return Reduction{Kind: kind} }
func Any(p Predicate) Reduction               { return Reduction{Kind: ReductionAny, Predicate: &p} }
func All(p Predicate) Reduction               { return Reduction{Kind: ReductionAll, Predicate: &p} }
func Join(separator string) Reduction         { return Reduction{Kind: ReductionJoin, Separator: separator} }

// CanonicalPredicate renders a deterministic, order-stable textual form of p,
// used both by CSE's canonical node signature and by the code generator's
// rendered source text. Grounded on the teacher's canonical-form pattern in
// core/planfmt/canonical.go, adapted from a CBOR struct union to a
// pretty-printed string since predicates/transforms nest recursively through
// pointers that CBOR's canonical mode cannot address as cleanly as a
// recursive string builder can.
func CanonicalPredicate(p Predicate) string {
	var b strings.Builder
	writePredicate(&b, p)
	return b.String()
}

func writePredicate(b *strings.Builder, p Predicate) {
	switch p.Kind {
	case PredicateCompare:
		fmt.Fprintf(b, "compare(%s,%s)", p.Op, value.Stringify(p.Literal))
	case PredicateCompareProperty:
		fmt.Fprintf(b, "compare_property(%s,%s,%s)", p.Identifier, p.Op, value.Stringify(p.Literal))
	case PredicateTypeCheck:
		fmt.Fprintf(b, "type_check(%s)", p.TypeKind)
	case PredicateAnd:
		b.WriteString("and(")
		writePredicateList(b, p.List)
		b.WriteString(")")
	case PredicateOr:
		b.WriteString("or(")
		writePredicateList(b, p.List)
		b.WriteString(")")
	case PredicateNot:
		b.WriteString("not(")
		if p.Inner != nil {
			writePredicate(b, *p.Inner)
		}
		b.WriteString(")")
	case PredicateAlways:
		fmt.Fprintf(b, "always(%v)", p.AlwaysValue)
	default:
		b.WriteString("unknown")
	}
}

func writePredicateList(b *strings.Builder, ps []Predicate) {
	for i, p := range ps {
		if i > 0 {
			b.WriteString(",")
		}
		writePredicate(b, p)
	}
}

// CanonicalTransform renders a deterministic textual form of t.
func CanonicalTransform(t Transform) string {
	var b strings.Builder
	writeTransform(&b, t)
	return b.String()
}

func writeTransform(b *strings.Builder, t Transform) {
	switch t.Kind {
	case TransformIdentity:
		b.WriteString("identity()")
	case TransformConstant:
		fmt.Fprintf(b, "constant(%s)", value.Stringify(t.ConstantValue))
	case TransformProperty:
		fmt.Fprintf(b, "property(%s)", strings.Join(t.Path, "."))
	case TransformArithmetic:
		b.WriteString("arithmetic(")
		b.WriteString(string(t.ArithOp))
		if t.Operand != nil {
			b.WriteString(",")
			writeTransform(b, *t.Operand)
		}
		b.WriteString(")")
	case TransformString:
		fmt.Fprintf(b, "string(%s,%s)", t.StrOp, stringifyArgs(t.Args))
	case TransformArray:
		fmt.Fprintf(b, "array(%s,%s)", t.ArrOp, stringifyArgs(t.Args))
	case TransformConditional:
		b.WriteString("conditional(")
		if t.Cond != nil {
			writePredicate(b, *t.Cond)
		}
		b.WriteString(",")
		if t.IfTrue != nil {
			writeTransform(b, *t.IfTrue)
		}
		b.WriteString(",")
		if t.IfFalse != nil {
			writeTransform(b, *t.IfFalse)
		}
		b.WriteString(")")
	case TransformCompose:
		b.WriteString("compose(")
		for i, step := range t.Steps {
			if i > 0 {
				b.WriteString(",")
			}
			writeTransform(b, step)
		}
		b.WriteString(")")
	case TransformConstruct:
		b.WriteString("construct(")
		keys := make([]string, 0, len(t.Fields))
		for k := range t.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(b, "%s=", k)
			writeTransform(b, t.Fields[k])
		}
		b.WriteString(")")
	default:
		b.WriteString("unknown")
	}
}

func stringifyArgs(args []value.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = value.Stringify(a)
	}
	return strings.Join(parts, ",")
}

// CanonicalReduction renders a deterministic textual form of r.
func CanonicalReduction(r Reduction) string {
	switch r.Kind {
	case ReductionAny:
		if r.Predicate != nil {
			return fmt.Sprintf("any(%s)", CanonicalPredicate(*r.Predicate))
		}
		return "any()"
	case ReductionAll:
		if r.Predicate != nil {
			return fmt.Sprintf("all(%s)", CanonicalPredicate(*r.Predicate))
		}
		return "all()"
	case ReductionJoin:
		return fmt.Sprintf("join(%q)", r.Separator)
	default:
		return string(r.Kind) + "()"
	}
}
