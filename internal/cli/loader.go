package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/irkit/internal/asm"
	"github.com/roach88/irkit/internal/dialect"
	"github.com/roach88/irkit/internal/ir"
	"github.com/roach88/irkit/internal/pipeline"
)

// Error codes for CLI output.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeParse        = "E008" // Module text does not parse
	ErrCodePipeline     = "E009" // Pipeline file invalid
	ErrCodeLowering     = "E010" // A pass or the post-pass verifier failed
	ErrCodeCompile      = "E011" // Execution engine refused the module
	ErrCodeInvocation   = "E012" // Invocation failed or trapped
	ErrCodeTestFailed   = "E013" // Scenario failures
	ErrCodeStore        = "E014" // Run log error
	ErrCodeVerification = "E200" // Verification failed; details carry E2xx codes
)

// LoadError represents an error that occurred while loading an input.
type LoadError struct {
	Code     string
	Message  string
	Location ir.Location
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.positioned())
}

func (e *LoadError) positioned() string {
	if e.Location.IsFileLineCol() {
		return fmt.Sprintf("%s: %s", e.Location.Short(), e.Message)
	}
	return e.Message
}

// newLogger builds the stderr logger commands pass to library packages.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// diagnosticHandler prints every diagnostic to w and logs it.
func diagnosticHandler(logger *slog.Logger, w io.Writer) ir.DiagnosticHandler {
	return func(d ir.Diagnostic) {
		fmt.Fprintln(w, d.String())
		level := slog.LevelInfo
		switch d.Severity {
		case ir.SeverityError:
			level = slog.LevelError
		case ir.SeverityWarning:
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "diagnostic",
			"severity", d.Severity.String(),
			"location", d.Location.Short(),
			"message", d.Message)
	}
}

// LoadModule parses the module text file at path into a fresh context.
func LoadModule(path string, opts ...asm.Option) (*ir.Module, string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("module file not found: %s", path)}
	}
	if err != nil {
		return nil, "", &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	src := string(data)
	m, err := asm.Parse(dialect.NewContext(), src, path, opts...)
	if err != nil {
		loadErr := &LoadError{Code: ErrCodeParse, Message: err.Error()}
		var pe *asm.ParseError
		if errors.As(err, &pe) {
			loadErr.Message = pe.Message
			loadErr.Location = pe.Location()
		}
		return nil, "", loadErr
	}
	return m, src, nil
}

// LoadPipeline reads a CUE pipeline file, or returns the default pipeline
// when path is empty.
func LoadPipeline(path string) (*pipeline.Spec, error) {
	if path == "" {
		return pipeline.Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("pipeline file not found: %s", path)}
	}
	spec, err := pipeline.LoadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodePipeline, Message: err.Error()}
	}
	return spec, nil
}

// failLoad reports a load error through f.
func failLoad(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return f.Fail(ExitCommandError, le.Code, le.positioned(), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// writeOutput writes text to path, or to the formatter when path is empty.
func writeOutput(f *OutputFormatter, path, text string, data any) error {
	if path == "" {
		return f.Success(text, data)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing %s: %v", path, err), nil)
	}
	f.VerboseLog("Wrote %s", path)
	return f.Success("", data)
}
