// Package capability implements the capability calculus (C3): a
// deterministic, compositional derivation of complexity class, termination
// guarantee, purity, parallelizability, and memory bound for every node and
// sub-expression in the algebra.
//
// Grounded on the teacher's compositional capability-style derivation in
// runtime/planner/ir.go (where statement kinds compose into block-level
// properties) generalized from a shell-execution IR to the complexity
// calculus this spec requires.
package capability

import "github.com/ioc-lang/ioc/ioc/dsl"

// Complexity is an ordering-aware complexity class.
type Complexity int

const (
	O1 Complexity = iota
	OLogN
	ON
	ONLogN
	ON2
	ON3
	O2N
	ONFactorial
)

func (c Complexity) String() string {
	switch c {
	case O1:
		return "O(1)"
	case OLogN:
		return "O(log n)"
	case ON:
		return "O(n)"
	case ONLogN:
		return "O(n log n)"
	case ON2:
		return "O(n²)"
	case ON3:
		return "O(n³)"
	case O2N:
		return "O(2ⁿ)"
	case ONFactorial:
		return "O(n!)"
	default:
		return "O(?)"
	}
}

// Max returns the larger (slower) of two complexity classes, per the
// enumeration ordering {constant < log < linear < linearithmic < quadratic <
// cubic < exponential < factorial}.
func Max(a, b Complexity) Complexity {
	if a > b {
		return a
	}
	return b
}

// Termination enumerates termination guarantees.
type Termination string

const (
	TerminationStructural Termination = "structural"
	TerminationBounded    Termination = "bounded"
	TerminationEmpirical  Termination = "empirical"
)

// Capability is the safety/performance tuple attached to every node.
type Capability struct {
	MaxComplexity Complexity
	Termination   Termination
	Pure          bool // sideEffects = pure is the only value the SIR can express
	Parallelizable bool
	MemoryBound   Complexity
}

// Equal reports structural equality — capability derivation must be a
// function, so two structurally equal nodes receive Capabilities that compare
// Equal (Testable Property 5).
func (c Capability) Equal(o Capability) bool {
	return c.MaxComplexity == o.MaxComplexity &&
		c.Termination == o.Termination &&
		c.Pure == o.Pure &&
		c.Parallelizable == o.Parallelizable &&
		c.MemoryBound == o.MemoryBound
}

// PredicateComplexity derives the complexity class of a predicate per §4.2:
// Compare, CompareProperty, TypeCheck, Always → O(1); Not(p) → complexity(p);
// And/Or → max over the list, base O(1).
func PredicateComplexity(p dsl.Predicate) Complexity {
	switch p.Kind {
	case dsl.PredicateCompare, dsl.PredicateCompareProperty, dsl.PredicateTypeCheck, dsl.PredicateAlways:
		return O1
	case dsl.PredicateNot:
		if p.Inner == nil {
			return O1
		}
		return PredicateComplexity(*p.Inner)
	case dsl.PredicateAnd, dsl.PredicateOr:
		c := O1
		for _, sub := range p.List {
			c = Max(c, PredicateComplexity(sub))
		}
		return c
	default:
		return O1
	}
}

// TransformComplexity derives the complexity class of a transform per §4.2.
func TransformComplexity(t dsl.Transform) Complexity {
	switch t.Kind {
	case dsl.TransformIdentity, dsl.TransformConstant, dsl.TransformProperty, dsl.TransformArithmetic:
		return O1
	case dsl.TransformString:
		return ON
	case dsl.TransformArray:
		if t.ArrOp == dsl.ArrLength {
			return O1
		}
		return ON
	case dsl.TransformConditional:
		c := O1
		if t.Cond != nil {
			c = Max(c, PredicateComplexity(*t.Cond))
		}
		if t.IfTrue != nil {
			c = Max(c, TransformComplexity(*t.IfTrue))
		}
		if t.IfFalse != nil {
			c = Max(c, TransformComplexity(*t.IfFalse))
		}
		return c
	case dsl.TransformCompose:
		c := O1
		for _, step := range t.Steps {
			c = Max(c, TransformComplexity(step))
		}
		return c
	case dsl.TransformConstruct:
		c := O1
		for _, field := range t.Fields {
			c = Max(c, TransformComplexity(field))
		}
		return c
	default:
		return O1
	}
}

// leaf builds the (O(1), structural, pure, parallelizable, O(1)) tuple shared
// by Input/Constant/Output.
func leaf() Capability {
	return Capability{MaxComplexity: O1, Termination: TerminationStructural, Pure: true, Parallelizable: true, MemoryBound: O1}
}

// ForInput derives the capability of an Input node.
func ForInput() Capability { return leaf() }

// ForConstant derives the capability of a Constant node.
func ForConstant() Capability { return leaf() }

// ForOutput derives the capability of an Output node.
func ForOutput() Capability { return leaf() }

// ForFilter derives the capability of a Filter(p) node.
func ForFilter(p dsl.Predicate) Capability {
	return Capability{MaxComplexity: PredicateComplexity(p), Termination: TerminationStructural, Pure: true, Parallelizable: true, MemoryBound: ON}
}

// ForMap derives the capability of a Map(t) node.
func ForMap(t dsl.Transform) Capability {
	return Capability{MaxComplexity: TransformComplexity(t), Termination: TerminationStructural, Pure: true, Parallelizable: true, MemoryBound: ON}
}

// ForReduce derives the capability of a Reduce node.
func ForReduce() Capability {
	return Capability{MaxComplexity: ON, Termination: TerminationStructural, Pure: true, Parallelizable: false, MemoryBound: O1}
}

// ForSort derives the capability of a Sort node.
func ForSort() Capability {
	return Capability{MaxComplexity: ONLogN, Termination: TerminationBounded, Pure: true, Parallelizable: false, MemoryBound: ON}
}

// ForLinearStructural derives the capability shared by Distinct, Flatten,
// Slice, and Concat: (O(n), structural, pure, parallelizable, O(n)).
func ForLinearStructural() Capability {
	return Capability{MaxComplexity: ON, Termination: TerminationStructural, Pure: true, Parallelizable: true, MemoryBound: ON}
}

// ForGroupBy derives the capability of a GroupBy node.
func ForGroupBy() Capability {
	return Capability{MaxComplexity: ON, Termination: TerminationStructural, Pure: true, Parallelizable: false, MemoryBound: ON}
}

// ForJoin derives the capability of a Join node.
func ForJoin() Capability {
	return Capability{MaxComplexity: ON2, Termination: TerminationStructural, Pure: true, Parallelizable: false, MemoryBound: ON2}
}
