package ir

import "sort"

// Options mirrors the wire format's optional `options` object (§6).
type Options struct {
	OptimizationLevel string // "none" | "basic" | "aggressive"
	TargetRuntime     string
	MaxMemory         int64
	Timeout           int64 // milliseconds
}

// Program is an immutable-once-constructed DAG of intent nodes.
//
// Grounded on core/planfmt/plan.go's Plan{PlanHeader, Steps, ...} and
// runtime/planner/ir.go's ExecutionGraph, which play the analogous role for
// the teacher's shell-execution IR.
type Program struct {
	Version  string
	Metadata map[string]string
	Nodes    map[string]*Node // keyed by id
	Outputs  []string         // ordered list of ids
	Options  *Options

	// insertOrder records node ids in the order first added, since Go maps do
	// not preserve one. The optimizer's pass manager and CSE rely on visiting
	// nodes "in insertion order" (§4.5 Tie-breaking and determinism).
	insertOrder []string
}

// New builds an empty Program at the current wire-format major version.
func New() *Program {
	return &Program{
		Version:  "1.0",
		Metadata: map[string]string{},
		Nodes:    map[string]*Node{},
		Outputs:  nil,
	}
}

// AddNode inserts or replaces a node. Programs are conceptually immutable
// once handed to the optimizer/validator; callers assembling a program via
// AddNode own it exclusively until it is passed onward.
func (p *Program) AddNode(n *Node) {
	if _, exists := p.Nodes[n.ID]; !exists {
		p.insertOrder = append(p.insertOrder, n.ID)
	}
	p.Nodes[n.ID] = n
}

// InsertionOrder returns node ids in the order they were first added to the
// program, filtered to ids still present (a rewrite may have deleted some).
func (p *Program) InsertionOrder() []string {
	out := make([]string, 0, len(p.insertOrder))
	for _, id := range p.insertOrder {
		if _, ok := p.Nodes[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Clone copies the program: every node (as Node.Clone does), the metadata,
// options, and outputs list. Used by
// the optimizer, which must never mutate the program it was given (§3
// Lifecycle: "The optimizer produces a new program; the original is retained
// for provenance").
func (p *Program) Clone() *Program {
	clone := &Program{
		Version:  p.Version,
		Metadata: make(map[string]string, len(p.Metadata)),
		Nodes:       make(map[string]*Node, len(p.Nodes)),
		Outputs:     append([]string(nil), p.Outputs...),
		insertOrder: append([]string(nil), p.insertOrder...),
	}
	for k, v := range p.Metadata {
		clone.Metadata[k] = v
	}
	for id, n := range p.Nodes {
		clone.Nodes[id] = n.Clone()
	}
	if p.Options != nil {
		opts := *p.Options
		clone.Options = &opts
	}
	return clone
}

// DeleteNode removes a node from the program (used by DCE).
func (p *Program) DeleteNode(id string) {
	delete(p.Nodes, id)
}

// SortedNodeIDs returns node ids in insertion-independent, deterministic
// iteration order keyed by id — used wherever a pass must visit nodes in a
// stable order without relying on Go's randomized map iteration.
func (p *Program) SortedNodeIDs() []string {
	ids := make([]string, 0, len(p.Nodes))
	for id := range p.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
