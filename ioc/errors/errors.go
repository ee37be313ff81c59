// Package errors defines the IOC error taxonomy: named kinds carried as
// ordinary Go error values, never panics. A panic from internal/invariant
// means a bug in this repository; a value from this package means the input
// program (or a requested operation on it) was rejected.
package errors

import (
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Error is satisfied by every error kind in this package.
type Error interface {
	error
	Kind() string
}

// UnsafeValue reports a value outside the legal Value sum reaching a boundary.
type UnsafeValue struct {
	Path   string // dotted path to the offending value, when known
	Reason string
}

func (e *UnsafeValue) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("unsafe value: %s", e.Reason)
	}
	return fmt.Sprintf("unsafe value at %s: %s", e.Path, e.Reason)
}
func (e *UnsafeValue) Kind() string { return "UnsafeValue" }

// InvalidProgram reports one or more structural invariants that failed.
type InvalidProgram struct {
	Reasons []string
}

func (e *InvalidProgram) Error() string {
	return fmt.Sprintf("invalid program: %d reason(s), first: %s", len(e.Reasons), firstOr(e.Reasons, "unknown"))
}
func (e *InvalidProgram) Kind() string { return "InvalidProgram" }

func firstOr(xs []string, fallback string) string {
	if len(xs) == 0 {
		return fallback
	}
	return xs[0]
}

// UnknownPass reports an optimizer pass name that isn't registered.
type UnknownPass struct {
	Name       string
	Known      []string
	Suggestion string
}

// NewUnknownPass builds an UnknownPass error, populating Suggestion with the
// closest registered pass name via fuzzy ranking (grounded in the teacher's
// use of fuzzy.RankFindFold to suggest decorator names).
func NewUnknownPass(name string, known []string) *UnknownPass {
	suggestion := ""
	if ranks := fuzzy.RankFindFold(name, known); len(ranks) > 0 {
		sort.Sort(ranks)
		suggestion = ranks[0].Target
	}
	return &UnknownPass{Name: name, Known: known, Suggestion: suggestion}
}

func (e *UnknownPass) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown optimizer pass %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown optimizer pass %q", e.Name)
}
func (e *UnknownPass) Kind() string { return "UnknownPass" }

// BackendUnavailable reports an explicit backend request the registry cannot satisfy.
type BackendUnavailable struct {
	Backend string
}

func (e *BackendUnavailable) Error() string {
	return fmt.Sprintf("backend %q is not available", e.Backend)
}
func (e *BackendUnavailable) Kind() string { return "BackendUnavailable" }

// CompilationError reports a code-generation failure attributed to a node.
type CompilationError struct {
	NodeID string
	Detail string
}

func (e *CompilationError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("compilation error: %s", e.Detail)
	}
	return fmt.Sprintf("compilation error at node %q: %s", e.NodeID, e.Detail)
}
func (e *CompilationError) Kind() string { return "CompilationError" }

// EmptyReduction reports a reduction without a natural identity applied to an empty input.
type EmptyReduction struct {
	NodeID    string
	Reduction string
}

func (e *EmptyReduction) Error() string {
	return fmt.Sprintf("reduction %q at node %q has no natural identity for empty input", e.Reduction, e.NodeID)
}
func (e *EmptyReduction) Kind() string { return "EmptyReduction" }

// BudgetKind enumerates the resource dimension a budget breach occurred in.
type BudgetKind string

const (
	BudgetIteration BudgetKind = "iteration"
	BudgetTime      BudgetKind = "time"
	BudgetStack     BudgetKind = "stack"
)

// BudgetExceeded reports a runtime cap hit during execution.
type BudgetExceeded struct {
	BudgetKind BudgetKind
	NodeID     string
}

func (e *BudgetExceeded) Error() string {
	return fmt.Sprintf("budget exceeded (%s) at node %q", e.BudgetKind, e.NodeID)
}
func (e *BudgetExceeded) Kind() string { return "BudgetExceeded" }

// ExecutionError reports any other runtime failure attributed to a node.
type ExecutionError struct {
	NodeID string
	Cause  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error at node %q: %v", e.NodeID, e.Cause)
}
func (e *ExecutionError) Unwrap() error { return e.Cause }
func (e *ExecutionError) Kind() string  { return "ExecutionError" }
