package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/irkit/internal/asm"
	"github.com/roach88/irkit/internal/ir"
	"github.com/roach88/irkit/internal/pass"
	"github.com/roach88/irkit/internal/pipeline"
	"github.com/roach88/irkit/internal/verify"
)

// LowerOptions holds flags for the lower command.
type LowerOptions struct {
	*RootOptions
	Pipeline string // CUE pipeline file; empty means the standard pipeline
	Output   string // output file; empty means stdout
	Generic  bool
}

// LowerResult is the JSON payload of the lower command.
type LowerResult struct {
	Passes []string `json:"passes"`
	Module string   `json:"module,omitempty"`
	Output string   `json:"output,omitempty"`
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LowerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lower <file>",
		Short: "Lower a module to the llvm dialect",
		Long: `Verify a module, run a pass pipeline over it and print the result.

Without --pipeline the standard pipeline runs:
  convert-func-to-llvm, convert-arith-to-llvm, convert-cf-to-llvm,
  reconcile-unrealized-casts

Exit codes:
  0 - Module lowered
  1 - Verification or a pass failed
  2 - Command error (unreadable file, parse error, bad pipeline)

Examples:
  irkit lower add.mlir
  irkit lower add.mlir --pipeline lower.cue -o add.llvm.mlir`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", "", "CUE pipeline file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the lowered module to a file")
	cmd.Flags().BoolVar(&opts.Generic, "generic", false, "print operations in generic form")

	return cmd
}

func runLower(opts *LowerOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, f.GetErrWriter())

	lw, err := lowerFile(commandContext(cmd), f, logger, path, opts.Pipeline)
	if err != nil {
		return err
	}

	text := asm.Print(lw.module.Operation(), asm.WithPrettyFunctions(!opts.Generic))
	result := LowerResult{Passes: lw.spec.Names()}
	if opts.Output == "" {
		result.Module = text
	} else {
		result.Output = opts.Output
	}
	return writeOutput(f, opts.Output, text, result)
}

// lowered is a verified module after its pipeline ran.
type lowered struct {
	module *ir.Module
	source string
	spec   *pipeline.Spec
}

// lowerFile loads, verifies and lowers the module at path. Failures are
// reported through f; the returned error is the command's ExitError.
func lowerFile(ctx context.Context, f *OutputFormatter, logger *slog.Logger, path, pipelinePath string) (*lowered, error) {
	diags := diagnosticHandler(logger, f.GetErrWriter())

	m, src, err := LoadModule(path, asm.WithLogger(logger), asm.WithDiagnostics(diags))
	if err != nil {
		return nil, failLoad(f, err)
	}
	spec, err := LoadPipeline(pipelinePath)
	if err != nil {
		return nil, failLoad(f, err)
	}

	if errs := verify.Verify(m, verify.WithLogger(logger)); len(errs) > 0 {
		msg := fmt.Sprintf("%s: %d verification error(s): %s",
			path, len(errs), strings.Join(verify.Codes(errs), ", "))
		return nil, f.Fail(ExitFailure, ErrCodeVerification, msg, errs)
	}

	pm, err := spec.Build(m.Context(), pass.WithLogger(logger))
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodePipeline, err.Error(), nil)
	}
	f.VerboseLog("Pipeline: %s", strings.Join(pm.Passes(), ", "))
	if err := pm.Run(ctx, m); err != nil {
		return nil, f.Fail(ExitFailure, ErrCodeLowering, err.Error(), nil)
	}
	return &lowered{module: m, source: src, spec: spec}, nil
}

func printLowered(lw *lowered) string {
	return asm.Print(lw.module.Operation())
}
