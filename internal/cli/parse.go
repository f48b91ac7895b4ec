package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/irkit/internal/asm"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Generic   bool // print every op in generic form
	Locations bool // append loc(...) trailers
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a module and print it back",
		Long: `Parse a module in textual form and print it.

Parsing does not verify the module; use "irkit verify" for that.

Examples:
  irkit parse add.mlir
  irkit parse add.mlir --generic --locations`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Generic, "generic", false, "print operations in generic form")
	cmd.Flags().BoolVar(&opts.Locations, "locations", false, "print source locations")

	return cmd
}

func runParse(opts *ParseOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, f.GetErrWriter())

	m, _, err := LoadModule(path,
		asm.WithLogger(logger),
		asm.WithDiagnostics(diagnosticHandler(logger, f.GetErrWriter())))
	if err != nil {
		return failLoad(f, err)
	}

	text := asm.Print(m.Operation(),
		asm.WithPrettyFunctions(!opts.Generic),
		asm.WithLocations(opts.Locations))
	return f.Success(text, map[string]string{"module": text})
}
