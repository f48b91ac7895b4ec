package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/irkit/internal/engine"
	"github.com/roach88/irkit/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Args     []int64
	Pipeline string
	DB       string // record the run in this SQLite database
	OptLevel int
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Function    string  `json:"function"`
	Args        []int64 `json:"args"`
	Results     []int64 `json:"results"`
	Fingerprint string  `json:"fingerprint"`
	RunID       string  `json:"run_id,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file> <function>",
		Short: "Lower, compile and invoke a function",
		Long: `Lower a module, compile it with the execution engine and invoke one
function with integer arguments.

Results are sign-extended from the declared result width. With --db the
compiled artifact and the invocation are recorded in a run log.

Exit codes:
  0 - Invocation returned
  1 - Verification, lowering or the invocation failed (including traps)
  2 - Command error (unreadable file, unknown function, wrong arity)

Examples:
  irkit run add.mlir add --arg 42
  irkit run fact.mlir fact --arg 5 --db runs.db -v`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().Int64SliceVar(&opts.Args, "arg", nil, "integer argument (repeatable)")
	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", "", "CUE pipeline file")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record the run in a SQLite run log")
	cmd.Flags().IntVar(&opts.OptLevel, "opt", 0, "engine optimization level (0-3)")

	return cmd
}

func runRun(opts *RunOptions, path, function string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, f.GetErrWriter())

	if opts.OptLevel < 0 || opts.OptLevel > 3 {
		return f.Fail(ExitCommandError, ErrCodeGeneric,
			fmt.Sprintf("--opt must be between 0 and 3, got %d", opts.OptLevel), nil)
	}

	lw, err := lowerFile(commandContext(cmd), f, logger, path, opts.Pipeline)
	if err != nil {
		return err
	}

	art, err := engine.Compile(lw.module,
		engine.WithOptLevel(max(opts.OptLevel, lw.spec.OptLevel)),
		engine.WithLogger(logger))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCompile, err.Error(), nil)
	}

	args := opts.Args
	if args == nil {
		args = []int64{}
	}
	start := time.Now()
	results, invErr := art.Invoke(function, args...)
	f.VerboseLog("invoke_packed @%s: %s", function, time.Since(start))

	var runID string
	if opts.DB != "" {
		runID, err = recordRun(cmd, opts.DB, logger, lw, art, function, args, results, invErr)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		f.VerboseLog("Recorded run %s in %s", runID, opts.DB)
	}

	if invErr != nil {
		exit := ExitCommandError
		if engine.IsTrap(invErr) {
			exit = ExitFailure
		}
		return f.Fail(exit, ErrCodeInvocation, invErr.Error(), nil)
	}

	text := fmt.Sprintf("@%s(%s) = %s\n", function, joinInts(args), joinInts(results))
	return f.Success(text, RunResult{
		Function:    function,
		Args:        args,
		Results:     results,
		Fingerprint: art.Fingerprint(),
		RunID:       runID,
	})
}

// recordRun writes the artifact and a single invocation to the run log at
// path and returns the new run ID.
func recordRun(cmd *cobra.Command, path string, logger *slog.Logger, lw *lowered, art *engine.Artifact, function string, args, results []int64, invErr error) (string, error) {
	ctx := commandContext(cmd)
	st, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return "", fmt.Errorf("open run log: %w", err)
	}
	defer st.Close()

	if _, err := st.WriteArtifact(ctx, store.Artifact{
		Fingerprint: art.Fingerprint(),
		Source:      lw.source,
		Lowered:     printLowered(lw),
		LLVMIR:      art.LLVMIR(),
	}); err != nil {
		return "", err
	}

	runID := st.NewRunID()
	if _, err := st.RecordInvocation(ctx, runID, art.Fingerprint(), function, args, results, invErr); err != nil {
		return "", err
	}
	return runID, nil
}

func joinInts(vals []int64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
