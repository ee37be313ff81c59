package ir

import "fmt"

// knownKinds bounds the legal node vocabulary. A kind outside this set would
// otherwise fall through DeriveCapability's permissive default case, so
// Validate rejects it here rather than letting it reach capability
// derivation with a guessed-at structural capability.
var knownKinds = map[Kind]bool{
	KindInput:    true,
	KindConstant: true,
	KindFilter:   true,
	KindMap:      true,
	KindReduce:   true,
	KindSort:     true,
	KindDistinct: true,
	KindFlatten:  true,
	KindGroupBy:  true,
	KindJoin:     true,
	KindSlice:    true,
	KindConcat:   true,
	KindOutput:   true,
}

// ValidationResult is the outcome of Validate: either valid, or a non-empty,
// fully-enumerated list of reasons (validation errors are collected and
// reported together, never surfaced one at a time — §7 propagation policy).
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks invariants 1–3 of §3: all referenced ids exist, the inputs
// relation is acyclic, and every node's declared capability structurally
// matches the value C3 derives from its params. Invariants 4–6 (legal
// values, forbidden property segments, regex safety) and 7 (size caps) are
// the security validator's responsibility (C5) since they apply at every
// boundary where bytes enter, not only at structural-validation time.
func Validate(p *Program) ValidationResult {
	var errs []string

	ids := map[string]bool{}
	for id := range p.Nodes {
		ids[id] = true
	}

	for _, out := range p.Outputs {
		if !ids[out] {
			errs = append(errs, fmt.Sprintf("missing output reference: %q", out))
		}
	}

	for _, id := range p.SortedNodeIDs() {
		node := p.Nodes[id]
		if !knownKinds[node.Kind] {
			errs = append(errs, fmt.Sprintf("node %q: unknown kind %q", id, node.Kind))
		}
		for _, in := range node.Inputs {
			if !ids[in] {
				errs = append(errs, fmt.Sprintf("node %q: missing input reference: %q", id, in))
			}
		}
	}

	if cyc := DetectCycle(p); cyc != nil {
		errs = append(errs, cyc.Error())
	}

	for _, id := range p.SortedNodeIDs() {
		node := p.Nodes[id]
		derived := DeriveCapability(node)
		if !derived.Equal(node.Capability) {
			errs = append(errs, fmt.Sprintf("node %q: declared capability %+v does not match derived capability %+v", id, node.Capability, derived))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
