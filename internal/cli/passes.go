package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/irkit/internal/pass"
	"github.com/roach88/irkit/internal/pipeline"
)

// PassesResult is the JSON payload of the passes command.
type PassesResult struct {
	Passes   []string `json:"passes"`
	Standard []string `json:"standard"`
}

// NewPassesCommand creates the passes command.
func NewPassesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "passes",
		Short:         "List registered passes and the standard pipeline",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			result := PassesResult{
				Passes:   pass.Names(),
				Standard: pipeline.Default().Names(),
			}

			var text strings.Builder
			for _, name := range result.Passes {
				text.WriteString(name + "\n")
			}
			text.WriteString("\nstandard pipeline: " + strings.Join(result.Standard, ", ") + "\n")
			return f.Success(text.String(), result)
		},
	}
}
