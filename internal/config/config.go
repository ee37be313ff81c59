// Package config bridges the wire format's loosely-typed `options` object
// (§6) to the typed ir.Options the compilation pipeline consumes, and maps
// an optimizationLevel string onto the concrete optimizer pass list to run.
//
// Grounded on the teacher's planner.Config (runtime/planner/resolver.go's
// Config{Target, IDFactory, Vault, Debug, Telemetry}): a small typed options
// struct threaded from the CLI entry point down through the pipeline,
// generalized here from execution-mode flags to compilation knobs.
package config

import (
	"github.com/ioc-lang/ioc/ioc/ir"
	"github.com/ioc-lang/ioc/ioc/optimizer"
	"github.com/ioc-lang/ioc/ioc/security"
)

// FromRaw validates raw against security.ValidateOptions's schema and builds
// a typed *ir.Options. A nil raw is valid and yields nil options (the
// pipeline's defaults apply).
func FromRaw(raw map[string]interface{}) (*ir.Options, error) {
	if raw == nil {
		return nil, nil
	}
	if err := security.ValidateOptions(raw); err != nil {
		return nil, err
	}
	opts := &ir.Options{}
	if v, ok := raw["optimizationLevel"].(string); ok {
		opts.OptimizationLevel = v
	}
	if v, ok := raw["targetRuntime"].(string); ok {
		opts.TargetRuntime = v
	}
	if v, ok := raw["maxMemory"].(float64); ok {
		opts.MaxMemory = int64(v)
	}
	if v, ok := raw["timeout"].(float64); ok {
		opts.Timeout = int64(v)
	}
	return opts, nil
}

// PassesForLevel resolves an optimizationLevel string to the optimizer pass
// list to run (§4.5/§4.7): "none" skips optimization, "basic" runs only the
// two always-safe passes (dead code elimination, common subexpression
// elimination), and "aggressive" (and the unset default) runs the full
// DefaultPasses order, including the fusion and filter-before-map rewrites.
func PassesForLevel(level string) []string {
	switch level {
	case "none":
		return nil
	case "basic":
		return []string{optimizer.PassDeadCodeElimination, optimizer.PassCommonSubexpressionElimination}
	default:
		return optimizer.DefaultPasses
	}
}
