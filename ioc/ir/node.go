// Package ir implements the IR program (C4): a DAG of intent nodes with
// topological ordering, cycle detection, and structural validation.
//
// Grounded on the teacher's DAG-shaped execution IR (runtime/planner/ir.go's
// ExecutionGraph/FunctionIR/StatementIR and core/planfmt/plan.go's Plan/Step
// tree) generalized from a shell-command execution plan to the data-pipeline
// intent graph this spec requires.
package ir

import (
	"github.com/ioc-lang/ioc/ioc/capability"
	"github.com/ioc-lang/ioc/ioc/dsl"
	"github.com/ioc-lang/ioc/ioc/value"
)

// Kind discriminates an intent node.
type Kind string

const (
	KindInput     Kind = "input"
	KindConstant  Kind = "constant"
	KindFilter    Kind = "filter"
	KindMap       Kind = "map"
	KindReduce    Kind = "reduce"
	KindSort      Kind = "sort"
	KindDistinct  Kind = "distinct"
	KindFlatten   Kind = "flatten"
	KindGroupBy   Kind = "group_by"
	KindJoin      Kind = "join"
	KindSlice     Kind = "slice"
	KindConcat    Kind = "concat"
	KindOutput    Kind = "output"
)

// Params holds the kind-specific parameters of a node. Exactly the fields
// relevant to Kind are meaningful; the rest are zero.
type Params struct {
	// Input
	InputName string
	TypeHint  *value.Kind

	// Constant
	ConstantValue value.Value

	// Filter
	Predicate *dsl.Predicate

	// Map
	Transform *dsl.Transform

	// Reduce
	Reduction *dsl.Reduction
	Initial   *value.Value

	// Sort
	SortKey    *dsl.Transform
	Descending bool

	// Distinct / GroupBy key
	KeyTransform *dsl.Transform

	// Flatten
	Depth int

	// Join
	LeftKey   *dsl.Transform
	RightKey  *dsl.Transform
	JoinType  string

	// Slice
	Start *int
	End   *int
}

// Node is one intent in the program DAG.
type Node struct {
	ID         string
	Kind       Kind
	Inputs     []string // ordered list of ids
	Params     Params
	Capability capability.Capability
}

// Clone copies n, the way the teacher's runtime/planner/ir.go copies
// statement nodes before an immutable rewrite (optimizer passes must never
// mutate the program they were given). Inputs and each Params pointee are
// fresh copies; sub-expressions nested inside a predicate, transform, or
// reduction (List, Inner, Operand, Steps, Fields, ...) stay shared with n.
func (n *Node) Clone() *Node {
	clone := *n
	clone.Inputs = append([]string(nil), n.Inputs...)
	clone.Params = n.Params.clone()
	return &clone
}

func (p Params) clone() Params {
	out := p
	if p.TypeHint != nil {
		k := *p.TypeHint
		out.TypeHint = &k
	}
	if p.Predicate != nil {
		pr := *p.Predicate
		out.Predicate = &pr
	}
	if p.Transform != nil {
		t := *p.Transform
		out.Transform = &t
	}
	if p.Reduction != nil {
		r := *p.Reduction
		out.Reduction = &r
	}
	if p.Initial != nil {
		v := *p.Initial
		out.Initial = &v
	}
	if p.SortKey != nil {
		t := *p.SortKey
		out.SortKey = &t
	}
	if p.KeyTransform != nil {
		t := *p.KeyTransform
		out.KeyTransform = &t
	}
	if p.LeftKey != nil {
		t := *p.LeftKey
		out.LeftKey = &t
	}
	if p.RightKey != nil {
		t := *p.RightKey
		out.RightKey = &t
	}
	if p.Start != nil {
		v := *p.Start
		out.Start = &v
	}
	if p.End != nil {
		v := *p.End
		out.End = &v
	}
	return out
}

// DeriveCapability computes the capability record for n's Kind and Params,
// per the capability calculus (C3, §4.2).
func DeriveCapability(n *Node) capability.Capability {
	switch n.Kind {
	case KindInput:
		return capability.ForInput()
	case KindConstant:
		return capability.ForConstant()
	case KindOutput:
		return capability.ForOutput()
	case KindFilter:
		if n.Params.Predicate == nil {
			return capability.ForFilter(dsl.Always(true))
		}
		return capability.ForFilter(*n.Params.Predicate)
	case KindMap:
		if n.Params.Transform == nil {
			return capability.ForMap(dsl.Identity())
		}
		return capability.ForMap(*n.Params.Transform)
	case KindReduce:
		return capability.ForReduce()
	case KindSort:
		return capability.ForSort()
	case KindDistinct, KindFlatten, KindSlice, KindConcat:
		return capability.ForLinearStructural()
	case KindGroupBy:
		return capability.ForGroupBy()
	case KindJoin:
		return capability.ForJoin()
	default:
		return capability.ForLinearStructural()
	}
}
