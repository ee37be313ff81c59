// Package budget implements the budget enforcer (C9): a per-complexity-class
// table of iteration/time/stack-depth caps, plus the identifier sanitizer
// the code generator uses when weaving user-controlled names into generated
// code.
//
// Grounded on the teacher's invariant/precondition style in
// core/invariant/invariant.go (small composable checks that fail fast with
// context attached), generalized here from a programmer-facing assertion
// library to a runtime resource governor. Wall-clock tracking itself has no
// analog in the teacher's stack and no third-party alternative in the
// example pack — time.Now/time.Since is the standard (and only sane)
// instrument for it, so it is used directly rather than forced through a
// library with no wiring home.
package budget

import (
	"strings"
	"time"

	"github.com/ioc-lang/ioc/ioc/capability"
	iocerrors "github.com/ioc-lang/ioc/ioc/errors"
)

// Limits bounds a single enforcer's lifetime.
type Limits struct {
	MaxIterations int64
	MaxTime       time.Duration
	MaxStackDepth int
}

// DefaultTable maps each declared complexity class to its default Limits.
// Higher complexity classes get looser caps because a legally-admitted O(n²)
// Join over the node-count-capped input space still needs room to run;
// O(1) nodes get the tightest cap since any iteration at all is already a
// capability mismatch.
var DefaultTable = map[capability.Complexity]Limits{
	capability.O1:          {MaxIterations: 1, MaxTime: 10 * time.Millisecond, MaxStackDepth: 64},
	capability.OLogN:       {MaxIterations: 1 << 20, MaxTime: 50 * time.Millisecond, MaxStackDepth: 64},
	capability.ON:          {MaxIterations: 10_000_000, MaxTime: 500 * time.Millisecond, MaxStackDepth: 128},
	capability.ONLogN:      {MaxIterations: 50_000_000, MaxTime: 1 * time.Second, MaxStackDepth: 128},
	capability.ON2:         {MaxIterations: 100_000_000, MaxTime: 5 * time.Second, MaxStackDepth: 256},
	capability.ON3:         {MaxIterations: 500_000_000, MaxTime: 15 * time.Second, MaxStackDepth: 256},
	capability.O2N:         {MaxIterations: 1_000_000_000, MaxTime: 30 * time.Second, MaxStackDepth: 512},
	capability.ONFactorial: {MaxIterations: 1_000_000_000, MaxTime: 30 * time.Second, MaxStackDepth: 512},
}

// limitsFor resolves c's Limits, falling back to the O(n) row for an
// unrecognized class rather than leaving a zero-value Limits that would
// reject on the very first Tick.
func limitsFor(c capability.Complexity) Limits {
	if l, ok := DefaultTable[c]; ok {
		return l
	}
	return DefaultTable[capability.ON]
}

// Enforcer tracks a single node's execution against its complexity-class
// budget. Per §4.8, a node proved O(1) by the capability calculus gets a
// no-op enforcer — there is nothing to iterate-check.
type Enforcer struct {
	nodeID     string
	limits     Limits
	noop       bool
	start      time.Time
	iterations int64
}

// NewEnforcer builds an Enforcer for nodeID at complexity class c. Per the
// Open Question 1 resolution (§9, SPEC_FULL §9): callers should only wrap
// iteration loops with Tick for nodes whose declared complexity is ≥
// O(n log n); the code generator decides that, not the enforcer itself.
func NewEnforcer(nodeID string, c capability.Complexity) *Enforcer {
	return &Enforcer{
		nodeID: nodeID,
		limits: limitsFor(c),
		noop:   c == capability.O1,
		start:  time.Now(),
	}
}

// Tick registers one iteration and checks both the iteration and elapsed-time
// caps, returning a *iocerrors.BudgetExceeded on the first breach.
func (e *Enforcer) Tick() error {
	if e.noop {
		return nil
	}
	e.iterations++
	if e.iterations > e.limits.MaxIterations {
		return &iocerrors.BudgetExceeded{BudgetKind: iocerrors.BudgetIteration, NodeID: e.nodeID}
	}
	if time.Since(e.start) > e.limits.MaxTime {
		return &iocerrors.BudgetExceeded{BudgetKind: iocerrors.BudgetTime, NodeID: e.nodeID}
	}
	return nil
}

// CheckStackDepth reports a BudgetExceeded{stack} when depth exceeds the
// enforcer's cap. The code generator does not call it: Flatten and nested
// Conditional/Compose evaluation recurse without a depth check.
func (e *Enforcer) CheckStackDepth(depth int) error {
	if depth > e.limits.MaxStackDepth {
		return &iocerrors.BudgetExceeded{BudgetKind: iocerrors.BudgetStack, NodeID: e.nodeID}
	}
	return nil
}

// SanitizeIdentifier coerces raw (a property name, input name, or other
// user-controlled token flowing into generated code) into a safe Go
// identifier: non-alphanumerics become underscores, and a result starting
// with a digit is prefixed with an underscore.
func SanitizeIdentifier(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	if out[0] >= '0' && out[0] <= '9' {
		return "_" + out
	}
	return out
}

// EscapeStringLiteral escapes raw for embedding inside a Go double-quoted
// string literal in generated code.
func EscapeStringLiteral(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EscapeComment rewrites every `*/` sequence in raw as `* /` before it is
// embedded in a generated block comment, preventing early-terminator injection.
func EscapeComment(raw string) string {
	return strings.ReplaceAll(raw, "*/", "* /")
}

// ShouldCheckIterations reports whether the code generator should insert a
// per-iteration budget check for a node of complexity c — Open Question 1's
// resolution: only for nodes whose declared complexity is ≥ O(n log n).
func ShouldCheckIterations(c capability.Complexity) bool {
	return c >= capability.ONLogN
}
