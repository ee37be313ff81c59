package ir

// CycleError reports a cycle found in the inputs relation, carrying the back
// edge's path for diagnostics.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	s := "cycle detected: "
	for i, id := range e.Path {
		if i > 0 {
			s += " -> "
		}
		s += id
	}
	return s
}

// DetectCycle performs a DFS with a recursion stack over the inputs relation
// and returns the cycle path if one exists, or nil otherwise.
//
// Grounded on the teacher's runtime/validation/recursion.go detectRecursion:
// a visiting set plus an explicit path slice, marking entry on the way down
// and deleting on the way back up (backtracking) so siblings don't falsely
// inherit an ancestor's "visiting" state.
func DetectCycle(p *Program) *CycleError {
	visiting := map[string]bool{}
	done := map[string]bool{}

	var path []string
	var visit func(id string) *CycleError
	visit = func(id string) *CycleError {
		if done[id] {
			return nil
		}
		if visiting[id] {
			cycleStart := -1
			for i, p := range path {
				if p == id {
					cycleStart = i
					break
				}
			}
			if cycleStart < 0 {
				cycleStart = 0
			}
			cyclePath := append(append([]string(nil), path[cycleStart:]...), id)
			return &CycleError{Path: cyclePath}
		}

		node, exists := p.Nodes[id]
		if !exists {
			// Missing references are reported by Validate, not here.
			return nil
		}

		visiting[id] = true
		path = append(path, id)

		for _, inputID := range node.Inputs {
			if err := visit(inputID); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		delete(visiting, id)
		done[id] = true
		return nil
	}

	for _, id := range p.SortedNodeIDs() {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// GetExecutionOrder returns a deterministic topological order over the
// reachable node set: a DFS post-order traversal from outputs, visiting
// dependencies before the node itself. Two identical programs yield
// identical orders because outputs and each node's Inputs are traversed in
// their declared (not map-iteration) order.
func GetExecutionOrder(p *Program) ([]string, error) {
	if cyc := DetectCycle(p); cyc != nil {
		return nil, cyc
	}

	visited := map[string]bool{}
	var order []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		node, exists := p.Nodes[id]
		if !exists {
			return
		}
		visited[id] = true
		for _, inputID := range node.Inputs {
			visit(inputID)
		}
		order = append(order, id)
	}

	for _, id := range p.Outputs {
		visit(id)
	}

	return order, nil
}

// ReachableFromOutputs computes the set of node ids reachable from p.Outputs
// by DFS through Inputs — the basis for dead code elimination (C6).
func ReachableFromOutputs(p *Program) map[string]bool {
	reachable := map[string]bool{}
	var visit func(id string)
	visit = func(id string) {
		if reachable[id] {
			return
		}
		node, exists := p.Nodes[id]
		if !exists {
			return
		}
		reachable[id] = true
		for _, inputID := range node.Inputs {
			visit(inputID)
		}
	}
	for _, id := range p.Outputs {
		visit(id)
	}
	return reachable
}
