// Package provenance implements the provenance tracker (C10): an
// append-only record of node origin and rewrite history, used only for
// diagnostics and never consulted by the optimizer or code generator.
//
// Grounded on the teacher's append-only debug-event trail in
// runtime/planner/planner.go (recordDebugEvent, gated by a DebugLevel) and
// the parent-tracking idiom of runtime/validation/recursion.go's visited-set
// cycle guard, generalized from execution tracing to rewrite provenance.
package provenance

// CreatedBy enumerates how a node entered the program.
type CreatedBy string

const (
	CreatedBySource    CreatedBy = "source"
	CreatedByOptimizer CreatedBy = "optimizer"
)

// Transformation records a single rewrite step that produced a node.
type Transformation struct {
	RewriteName   string
	OriginalNodes []string
	Description   string
	TimestampMS   int64
}

// Entry is the provenance record for one node id.
type Entry struct {
	NodeID          string
	CreatedBy       CreatedBy
	SourceLocation  string
	ParentNodes     []string
	Transformations []Transformation
}

// Tracker is an append-only map from node id to provenance Entry.
type Tracker struct {
	entries map[string]*Entry
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{entries: map[string]*Entry{}}
}

// RecordSource registers a node that entered the program directly from the
// source program (as opposed to being introduced by a rewrite).
func (t *Tracker) RecordSource(nodeID string, sourceLocation string, parents []string) {
	if _, exists := t.entries[nodeID]; exists {
		return
	}
	t.entries[nodeID] = &Entry{
		NodeID:         nodeID,
		CreatedBy:      CreatedBySource,
		SourceLocation: sourceLocation,
		ParentNodes:    append([]string(nil), parents...),
	}
}

// RecordRewrite registers (or appends to) the provenance of a node produced
// by an optimizer rewrite.
func (t *Tracker) RecordRewrite(nodeID, rewriteName string, originalNodes []string, description string, timestampMS int64) {
	entry, exists := t.entries[nodeID]
	if !exists {
		entry = &Entry{NodeID: nodeID, CreatedBy: CreatedByOptimizer, ParentNodes: append([]string(nil), originalNodes...)}
		t.entries[nodeID] = entry
	}
	entry.Transformations = append(entry.Transformations, Transformation{
		RewriteName:   rewriteName,
		OriginalNodes: append([]string(nil), originalNodes...),
		Description:   description,
		TimestampMS:   timestampMS,
	})
}

// Get returns the provenance entry for nodeID, if any.
func (t *Tracker) Get(nodeID string) (*Entry, bool) {
	e, ok := t.entries[nodeID]
	return e, ok
}

// TraceBackToSource walks parent links from nodeID back to every source node
// it descends from, breaking cycles (which should never occur in a valid
// program, but provenance is diagnostic-only and must not panic on
// malformed state) via a visited set.
func (t *Tracker) TraceBackToSource(nodeID string) []string {
	visited := map[string]bool{}
	var sources []string

	var walk func(id string)
	walk = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		entry, ok := t.entries[id]
		if !ok {
			return
		}
		if entry.CreatedBy == CreatedBySource {
			sources = append(sources, id)
		}
		for _, parent := range entry.ParentNodes {
			walk(parent)
		}
	}
	walk(nodeID)
	return sources
}

// Report is a diagnostic summary of a node's lineage, suitable for
// attaching to a CompilationError or ExecutionError.
type Report struct {
	NodeID     string
	CreatedBy  CreatedBy
	Rewrites   []Transformation
	SourceIDs  []string
}

// Diagnose builds a Report for nodeID.
func (t *Tracker) Diagnose(nodeID string) Report {
	entry, ok := t.entries[nodeID]
	if !ok {
		return Report{NodeID: nodeID}
	}
	return Report{
		NodeID:    nodeID,
		CreatedBy: entry.CreatedBy,
		Rewrites:  entry.Transformations,
		SourceIDs: t.TraceBackToSource(nodeID),
	}
}
