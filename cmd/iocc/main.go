// Command iocc is the command-line entry point for the IOC compilation
// pipeline: validate, compile, run, and inspect available backends.
//
// Grounded on the teacher's cli/main.go (a single cobra root command with
// persistent flags, RunE handlers that return an error for cobra to print,
// and an exit code threaded back from the pipeline rather than os.Exit
// inside a handler) and cli/errors.go's FormatError dispatch, generalized
// from a shell-command executor to a compiler CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ioc-lang/ioc/internal/config"
	"github.com/ioc-lang/ioc/ioc/backend"
	iocerrors "github.com/ioc-lang/ioc/ioc/errors"
	"github.com/ioc-lang/ioc/ioc/ir"
	"github.com/ioc-lang/ioc/ioc/optimizer"
	"github.com/ioc-lang/ioc/ioc/provenance"
	"github.com/ioc-lang/ioc/ioc/security"
	"github.com/ioc-lang/ioc/ioc/serialize"
	"github.com/ioc-lang/ioc/ioc/value"
)

// Exit codes, grounded on the teacher's cmd/devcmd/main.go exit-constant
// scheme (distinct codes per failure class rather than a single generic 1).
const (
	exitSuccess        = 0
	exitInvalidProgram = 1
	exitIOError        = 2
	exitCompileError   = 3
	exitExecutionError = 4
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "iocc",
		Short:         "Compile and execute IOC intent programs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newCompileCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newBackendsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error taxonomy kind (§7) to a process exit code.
func exitCodeFor(err error) int {
	if ie, ok := err.(*exitError); ok {
		return ie.code
	}
	ie, ok := err.(iocerrors.Error)
	if !ok {
		return exitInvalidProgram
	}
	switch ie.Kind() {
	case "CompilationError", "UnknownPass", "BackendUnavailable":
		return exitCompileError
	case "BudgetExceeded", "ExecutionError":
		return exitExecutionError
	default:
		return exitInvalidProgram
	}
}

// exitError wraps an error with an explicit exit code, used for failures
// (file I/O) that don't originate from the error taxonomy itself.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func readProgramFile(path string) (*ir.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &exitError{code: exitIOError, err: fmt.Errorf("reading %s: %w", path, err)}
	}
	p, err := serialize.Deserialize(data)
	if err != nil {
		return nil, err
	}
	if result := ir.Validate(p); !result.Valid {
		return nil, &iocerrors.InvalidProgram{Reasons: result.Errors}
	}
	if err := security.ValidateProgram(p); err != nil {
		return nil, err
	}
	return p, nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <program.json>",
		Short: "Check a program against structural and security invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := readProgramFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
}

func newCompileCmd() *cobra.Command {
	var optLevel string
	var backendName string
	var showSource bool

	cmd := &cobra.Command{
		Use:   "compile <program.json>",
		Short: "Optimize and compile a program, printing the selected backend's artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readProgramFile(args[0])
			if err != nil {
				return err
			}
			if optLevel != "" {
				if p.Options == nil {
					p.Options = &ir.Options{}
				}
				p.Options.OptimizationLevel = optLevel
			}

			optimized, artifact, err := compileProgramWithBackend(p, backendName)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "backend: %s\n", artifact.Backend)
			fmt.Fprintf(cmd.OutOrStdout(), "nodes after optimization: %d\n", len(optimized.Nodes))
			fmt.Fprintf(cmd.OutOrStdout(), "code size: %d bytes\n", artifact.CodeSize)
			fmt.Fprintf(cmd.OutOrStdout(), "compilation time: %s\n", artifact.CompilationTime)
			if showSource {
				fmt.Fprintln(cmd.OutOrStdout(), "---")
				fmt.Fprintln(cmd.OutOrStdout(), artifact.Metadata.GeneratedSource)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&optLevel, "optimization-level", "", "override options.optimizationLevel (none|basic|aggressive)")
	cmd.Flags().StringVar(&backendName, "backend", "", "explicit backend selection (interpreter|gosource)")
	cmd.Flags().BoolVar(&showSource, "show-source", false, "print the generated source artifact")
	return cmd
}

func newRunCmd() *cobra.Command {
	var inputsPath string
	var optLevel string
	var backendName string

	cmd := &cobra.Command{
		Use:   "run <program.json>",
		Short: "Compile a program and execute it against JSON-array inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readProgramFile(args[0])
			if err != nil {
				return err
			}
			if optLevel != "" {
				if p.Options == nil {
					p.Options = &ir.Options{}
				}
				p.Options.OptimizationLevel = optLevel
			}

			inputs, err := readInputs(inputsPath)
			if err != nil {
				return err
			}

			_, artifact, err := compileProgramWithBackend(p, backendName)
			if err != nil {
				return err
			}

			outputs, err := artifact.Execute(inputs)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(outputsToJSON(outputs))
		},
	}
	cmd.Flags().StringVar(&inputsPath, "inputs", "", "path to a JSON array of input values (default: empty)")
	cmd.Flags().StringVar(&optLevel, "optimization-level", "", "override options.optimizationLevel (none|basic|aggressive)")
	cmd.Flags().StringVar(&backendName, "backend", "", "explicit backend selection (interpreter|gosource)")
	return cmd
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List available compilation backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, b := range backend.Default().Available() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", b.Type(), b.Name())
			}
			return nil
		},
	}
}

func compileProgramWithBackend(p *ir.Program, backendName string) (*ir.Program, *backend.Artifact, error) {
	level := ""
	if p.Options != nil {
		level = p.Options.OptimizationLevel
	}
	passes := config.PassesForLevel(level)

	prov := provenance.New()
	optimized, err := optimizer.Optimize(p, passes, prov)
	if err != nil {
		return nil, nil, err
	}

	var strategy backend.Strategy
	if backendName != "" {
		strategy = backend.Explicit{Want: backend.Type(backendName)}
	} else {
		strategy = backend.Balanced{Program: optimized}
	}

	artifact, err := backend.Default().Select(strategy, optimized, optimized.Options)
	if err != nil {
		return nil, nil, err
	}
	return optimized, artifact, nil
}

func readInputs(path string) ([]value.Value, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &exitError{code: exitIOError, err: fmt.Errorf("reading %s: %w", path, err)}
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &exitError{code: exitIOError, err: fmt.Errorf("parsing %s: %w", path, err)}
	}
	inputs := make([]value.Value, 0, len(raw))
	for _, r := range raw {
		v, err := value.FromInterface(r)
		if err != nil {
			return nil, &iocerrors.UnsafeValue{Reason: err.Error()}
		}
		inputs = append(inputs, v)
	}
	return inputs, nil
}

func outputsToJSON(outputs []value.Value) []interface{} {
	out := make([]interface{}, len(outputs))
	for i, v := range outputs {
		out[i] = jsonOf(v)
	}
	return out
}

func jsonOf(v value.Value) interface{} {
	switch v.Kind {
	case value.KindNumber:
		return v.Number
	case value.KindString:
		return v.Str
	case value.KindBoolean:
		return v.Boolean
	case value.KindNull:
		return nil
	case value.KindArray:
		out := make([]interface{}, len(v.Array))
		for i, e := range v.Array {
			out[i] = jsonOf(e)
		}
		return out
	case value.KindObject:
		out := make(map[string]interface{}, len(v.Object))
		for k, e := range v.Object {
			out[k] = jsonOf(e)
		}
		return out
	default:
		return nil
	}
}
