package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/irkit/internal/engine"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Pipeline string
	Output   string
}

// TranslateResult is the JSON payload of the translate command.
type TranslateResult struct {
	LLVMIR string `json:"llvm_ir,omitempty"`
	Output string `json:"output,omitempty"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate <file>",
		Short: "Lower a module and emit LLVM IR",
		Long: `Lower a module to the llvm dialect and translate it to textual LLVM IR.

Functions marked llvm.emit_c_interface also get a _mlir_ciface_ wrapper.

Examples:
  irkit translate add.mlir
  irkit translate add.mlir -o add.ll`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", "", "CUE pipeline file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write LLVM IR to a file")

	return cmd
}

func runTranslate(opts *TranslateOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, f.GetErrWriter())

	lw, err := lowerFile(commandContext(cmd), f, logger, path, opts.Pipeline)
	if err != nil {
		return err
	}

	mod, err := engine.TranslateToLLVM(lw.module)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCompile, err.Error(), nil)
	}
	text := mod.String()

	result := TranslateResult{Output: opts.Output}
	if opts.Output == "" {
		result.LLVMIR = text
	}
	return writeOutput(f, opts.Output, text, result)
}
