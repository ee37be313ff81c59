// Package backend implements the backend registry (C8): a process-wide,
// lazily-initialized list of code-generation backends, availability
// probing, and strategy-driven selection.
//
// Grounded on the teacher's backend/capability probing in
// runtime/planner/resolver.go (a memoized, lazily-populated registry of
// resolvable targets probed once and cached) generalized from shell-builtin
// resolution to IOC's compilation backends. §9's Open Question 3 resolves
// the source's "one backend returns placeholder results" ambiguity by
// requiring every registered backend to execute faithfully via the shared
// ioc/codegen evaluator — "interpreter" executes it directly, and
// "gosource" reuses the exact same evaluator while additionally exposing
// the rendered source text as metadata, rather than shipping a second,
// divergent execution path.
package backend

import (
	"sync"
	"time"

	"github.com/ioc-lang/ioc/ioc/codegen"
	iocerrors "github.com/ioc-lang/ioc/ioc/errors"
	"github.com/ioc-lang/ioc/ioc/ir"
	"github.com/ioc-lang/ioc/ioc/value"
)

// Type discriminates a registered backend.
type Type string

const (
	TypeInterpreter Type = "interpreter"
	TypeGoSource    Type = "gosource"
)

// Artifact is the compiled program handed back to a caller (§6 "Compilation
// artifact").
type Artifact struct {
	Backend         Type
	Execute         func(inputs []value.Value) ([]value.Value, error)
	CodeSize        int
	CompilationTime time.Duration
	Metadata        Metadata
}

// Metadata carries backend-specific diagnostic payloads. LLVMIR is always
// empty in this implementation — no backend in this registry lowers through
// LLVM — but the field is part of the wire-level artifact shape (§6) and is
// kept for forward compatibility with a backend that does.
type Metadata struct {
	GeneratedSource string
	Optimizations   []string
	LLVMIR          string
}

// Backend is the interface every code-generation backend implements.
type Backend interface {
	Type() Type
	Name() string
	IsAvailable() bool
	Compile(p *ir.Program, opts *ir.Options) (*Artifact, error)
	EstimateCompilationTime(p *ir.Program) time.Duration
	EstimatePerformanceScore() float64
}

// interpreterBackend executes the compiled program directly against
// ioc/codegen's tree-walking evaluator. It is always available — the "at
// least one backend must always be available" requirement (§4.7) is
// satisfied by this backend unconditionally.
type interpreterBackend struct{}

func (interpreterBackend) Type() Type        { return TypeInterpreter }
func (interpreterBackend) Name() string      { return "interpreter" }
func (interpreterBackend) IsAvailable() bool { return true }

func (interpreterBackend) Compile(p *ir.Program, opts *ir.Options) (*Artifact, error) {
	start := time.Now()
	cp, err := codegen.Compile(p)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	return &Artifact{
		Backend:         TypeInterpreter,
		Execute:         cp.Execute,
		CodeSize:        len(cp.GeneratedSource),
		CompilationTime: elapsed,
		Metadata:        Metadata{GeneratedSource: cp.GeneratedSource, Optimizations: nil},
	}, nil
}

func (interpreterBackend) EstimateCompilationTime(p *ir.Program) time.Duration {
	return time.Duration(len(p.Nodes)) * time.Microsecond
}

func (interpreterBackend) EstimatePerformanceScore() float64 { return 0.5 }

// goSourceBackend shares the interpreter's execution path exactly (per the
// package doc's Open Question 3 resolution) but advertises itself as a
// distinct, portable target and surfaces the rendered source prominently in
// its metadata, as if it had emitted a standalone Go file.
type goSourceBackend struct{}

func (goSourceBackend) Type() Type        { return TypeGoSource }
func (goSourceBackend) Name() string      { return "gosource" }
func (goSourceBackend) IsAvailable() bool { return true }

func (goSourceBackend) Compile(p *ir.Program, opts *ir.Options) (*Artifact, error) {
	start := time.Now()
	cp, err := codegen.Compile(p)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	return &Artifact{
		Backend:         TypeGoSource,
		Execute:         cp.Execute,
		CodeSize:        len(cp.GeneratedSource),
		CompilationTime: elapsed,
		Metadata:        Metadata{GeneratedSource: cp.GeneratedSource, Optimizations: []string{"shared-evaluator"}},
	}, nil
}

func (goSourceBackend) EstimateCompilationTime(p *ir.Program) time.Duration {
	return time.Duration(len(p.Nodes)) * 2 * time.Microsecond
}

func (goSourceBackend) EstimatePerformanceScore() float64 { return 0.4 }

// Registry is the process-wide singleton (§5 "the backend registry is the
// sole process-wide singleton"): initialized lazily on first use, read-only
// thereafter.
type Registry struct {
	mu       sync.RWMutex
	backends []Backend
	probed   bool
}

var (
	singleton     *Registry
	singletonOnce sync.Once
)

// Default returns the process-wide Registry, constructing it (and probing
// every backend's availability once) on first call.
func Default() *Registry {
	singletonOnce.Do(func() {
		singleton = &Registry{backends: []Backend{interpreterBackend{}, goSourceBackend{}}}
		singleton.probe()
	})
	return singleton
}

func (r *Registry) probe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probed = true
}

// Available returns every backend whose IsAvailable() reports true.
func (r *Registry) Available() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Backend, 0, len(r.backends))
	for _, b := range r.backends {
		if b.IsAvailable() {
			out = append(out, b)
		}
	}
	return out
}

// Strategy selects a backend from the available set.
type Strategy interface {
	Select(available []Backend) (Backend, error)
}

// Explicit selects a specific backend by type, failing with
// BackendUnavailable when it is not registered or not available.
type Explicit struct{ Want Type }

func (s Explicit) Select(available []Backend) (Backend, error) {
	for _, b := range available {
		if b.Type() == s.Want {
			return b, nil
		}
	}
	return nil, &iocerrors.BackendUnavailable{Backend: string(s.Want)}
}

// FastestCompile selects the backend with the smallest EstimateCompilationTime.
type FastestCompile struct{ Program *ir.Program }

func (s FastestCompile) Select(available []Backend) (Backend, error) {
	return pickBest(available, func(b Backend) float64 {
		return -float64(b.EstimateCompilationTime(s.Program))
	})
}

// FastestRuntime selects the backend with the highest EstimatePerformanceScore.
type FastestRuntime struct{}

func (s FastestRuntime) Select(available []Backend) (Backend, error) {
	return pickBest(available, func(b Backend) float64 { return b.EstimatePerformanceScore() })
}

// MostPortable prefers a fixed ordering of portable targets (§4.7): the
// interpreter is maximally portable (no emitted artifact to carry around),
// followed by gosource.
var portableOrder = []Type{TypeInterpreter, TypeGoSource}

type MostPortable struct{}

func (s MostPortable) Select(available []Backend) (Backend, error) {
	for _, want := range portableOrder {
		for _, b := range available {
			if b.Type() == want {
				return b, nil
			}
		}
	}
	if len(available) == 0 {
		return nil, &iocerrors.BackendUnavailable{Backend: "(any)"}
	}
	return available[0], nil
}

// Balanced weighs normalized compile speed and performance score 0.4/0.6
// (§4.7).
type Balanced struct{ Program *ir.Program }

func (s Balanced) Select(available []Backend) (Backend, error) {
	if len(available) == 0 {
		return nil, &iocerrors.BackendUnavailable{Backend: "(any)"}
	}
	var maxCompile time.Duration
	for _, b := range available {
		if t := b.EstimateCompilationTime(s.Program); t > maxCompile {
			maxCompile = t
		}
	}
	return pickBest(available, func(b Backend) float64 {
		normalizedCompile := 1.0
		if maxCompile > 0 {
			normalizedCompile = 1.0 - float64(b.EstimateCompilationTime(s.Program))/float64(maxCompile)
		}
		return 0.4*normalizedCompile + 0.6*b.EstimatePerformanceScore()
	})
}

func pickBest(available []Backend, score func(Backend) float64) (Backend, error) {
	if len(available) == 0 {
		return nil, &iocerrors.BackendUnavailable{Backend: "(any)"}
	}
	best := available[0]
	bestScore := score(best)
	for _, b := range available[1:] {
		if s := score(b); s > bestScore {
			best, bestScore = b, s
		}
	}
	return best, nil
}

// Select runs strategy against r's available backends and compiles p with
// the chosen one.
func (r *Registry) Select(strategy Strategy, p *ir.Program, opts *ir.Options) (*Artifact, error) {
	b, err := strategy.Select(r.Available())
	if err != nil {
		return nil, err
	}
	return b.Compile(p, opts)
}
