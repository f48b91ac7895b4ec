package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/irkit/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Database string
	RunID    string // show one run instead of listing runs
	Function string // show every call of a function in an artifact
	Artifact string // fingerprint, required with --function
}

// LogResult is the JSON payload of the log command.
type LogResult struct {
	Runs        []string           `json:"runs,omitempty"`
	Invocations []store.Invocation `json:"invocations,omitempty"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Query a run log",
		Long: `Query the SQLite run log written by "irkit run --db" and "irkit test --db".

Without --run, lists run IDs in the order they started.

Examples:
  irkit log --db runs.db
  irkit log --db runs.db --run 0192d3a4-...
  irkit log --db runs.db --artifact <fingerprint> --function add`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run log (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the invocations of one run")
	cmd.Flags().StringVar(&opts.Function, "function", "", "show the call history of a function")
	cmd.Flags().StringVar(&opts.Artifact, "artifact", "", "artifact fingerprint for --function")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	if _, err := os.Stat(opts.Database); errors.Is(err, os.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run log not found: %s", opts.Database), nil)
	}
	if (opts.Function == "") != (opts.Artifact == "") {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--function and --artifact must be given together", nil)
	}

	st, err := store.Open(opts.Database, store.WithLogger(newLogger(opts.RootOptions, f.GetErrWriter())))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	var result LogResult
	switch {
	case opts.RunID != "":
		result.Invocations, err = st.ReadRun(ctx, opts.RunID)
	case opts.Function != "":
		result.Invocations, err = st.ReadFunctionHistory(ctx, opts.Artifact, opts.Function)
	default:
		result.Runs, err = st.ListRuns(ctx)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	var text strings.Builder
	for _, run := range result.Runs {
		text.WriteString(run + "\n")
	}
	for _, inv := range result.Invocations {
		fmt.Fprintf(&text, "%4d  @%s(%s)", inv.Seq, inv.Function, joinInts(inv.Args))
		if inv.Failed() {
			fmt.Fprintf(&text, "  error: %s\n", inv.Error)
		} else {
			fmt.Fprintf(&text, " = %s\n", joinInts(inv.Results))
		}
	}
	return f.Success(text.String(), result)
}
