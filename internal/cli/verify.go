package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/irkit/internal/asm"
	"github.com/roach88/irkit/internal/callgraph"
	"github.com/roach88/irkit/internal/verify"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Parallelism int
}

// VerifyResult is the JSON payload of a successful verification.
type VerifyResult struct {
	File       string            `json:"file"`
	Operations int               `json:"operations"`
	Cycles     []callgraph.Cycle `json:"cycles"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a module",
		Long: `Parse a module and check every structural and type invariant.

All violations are reported, not just the first.

Exit codes:
  0 - Module verified
  1 - Verification failed
  2 - Command error (unreadable file, parse error)

Examples:
  irkit verify add.mlir
  irkit verify add.mlir --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Parallelism, "parallelism", 1, "verify up to N functions concurrently")

	return cmd
}

func runVerify(opts *VerifyOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, f.GetErrWriter())
	diags := diagnosticHandler(logger, f.GetErrWriter())

	m, _, err := LoadModule(path, asm.WithLogger(logger), asm.WithDiagnostics(diags))
	if err != nil {
		return failLoad(f, err)
	}

	vopts := []verify.Option{
		verify.WithParallelism(opts.Parallelism),
		verify.WithLogger(logger),
	}
	if opts.Format != "json" {
		vopts = append(vopts, verify.WithDiagnostics(diags))
	}
	errs := verify.Verify(m, vopts...)
	if len(errs) > 0 {
		msg := fmt.Sprintf("%s: %d verification error(s): %s",
			path, len(errs), strings.Join(verify.Codes(errs), ", "))
		return f.Fail(ExitFailure, ErrCodeVerification, msg, errs)
	}

	graph := callgraph.Build(m)
	if opts.Format != "json" {
		graph.Diagnose(diags)
	}

	ops := len(m.Body().Operations())
	return f.Success(fmt.Sprintf("✓ %s verified (%d top-level operation(s))\n", path, ops),
		VerifyResult{File: path, Operations: ops, Cycles: graph.Cycles()})
}
