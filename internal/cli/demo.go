package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/irkit/internal/asm"
	"github.com/roach88/irkit/internal/dialect"
	"github.com/roach88/irkit/internal/dialect/arith"
	"github.com/roach88/irkit/internal/dialect/fn"
	"github.com/roach88/irkit/internal/engine"
	"github.com/roach88/irkit/internal/ir"
	"github.com/roach88/irkit/internal/pass"
	"github.com/roach88/irkit/internal/verify"
)

// DemoResult is the JSON payload of the demo command.
type DemoResult struct {
	IndexModule string `json:"index_module"`
	Verified    bool   `json:"verified"`
	I32Lowered  string `json:"i32_lowered"`
	Argument    int32  `json:"argument"`
	Result      int32  `json:"result"`
	InvokeNanos int64  `json:"invoke_nanos"`
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Build, verify, lower and run two sample functions",
		Long: `Build @add(index, index) -> index with the builder API, print and
verify it. Then build @add(i32) -> i32 returning x + x, lower it to the llvm
dialect, compile it and invoke it through the packed interface with 42.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(rootOpts, cmd)
		},
	}
	return cmd
}

func runDemo(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	logger := newLogger(opts, f.GetErrWriter())
	irctx := dialect.NewContext()
	var text strings.Builder

	idx := irctx.IndexType()
	indexMod, err := buildAdd(irctx, idx, idx, false)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	result := DemoResult{IndexModule: asm.Print(indexMod.Operation(), asm.WithPrettyFunctions(true))}
	text.WriteString(result.IndexModule)

	if err := verify.Check(indexMod,
		verify.WithLogger(logger),
		verify.WithDiagnostics(diagnosticHandler(logger, f.GetErrWriter()))); err != nil {
		return f.Fail(ExitFailure, ErrCodeVerification, err.Error(), nil)
	}
	result.Verified = true
	text.WriteString("verified\n\n")

	i32 := irctx.IntegerType(32)
	i32Mod, err := buildAdd(irctx, i32, ir.Type{}, true)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	if err := pass.Standard(irctx, pass.WithLogger(logger)).Run(commandContext(cmd), i32Mod); err != nil {
		return f.Fail(ExitFailure, ErrCodeLowering, err.Error(), nil)
	}
	result.I32Lowered = asm.Print(i32Mod.Operation())
	text.WriteString(result.I32Lowered)

	art, err := engine.Compile(i32Mod, engine.WithOptLevel(2), engine.WithLogger(logger))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCompile, err.Error(), nil)
	}

	slots := []engine.Slot{engine.I32(42), 0}
	start := time.Now()
	if err := art.InvokePacked("add", slots); err != nil {
		return f.Fail(ExitFailure, ErrCodeInvocation, err.Error(), nil)
	}
	elapsed := time.Since(start)

	result.Argument = slots[0].Int32()
	result.Result = slots[1].Int32()
	result.InvokeNanos = elapsed.Nanoseconds()
	fmt.Fprintf(&text, "\n@add(%d) = %d\n", result.Argument, result.Result)
	fmt.Fprintf(&text, "invoke_packed took %s\n", elapsed)

	return f.Success(text.String(), result)
}

// buildAdd builds a module with one function @add. With rhs the zero Type the
// function takes a single argument and returns x + x; otherwise it returns
// the sum of its two arguments.
func buildAdd(irctx *ir.Context, lhs, rhs ir.Type, cInterface bool) (*ir.Module, error) {
	loc := ir.NameLoc("demo")
	m := ir.NewModule(irctx, loc)

	inputs := []ir.Type{lhs}
	if !rhs.IsNull() {
		inputs = append(inputs, rhs)
	}
	ft, err := irctx.FunctionType(inputs, []ir.Type{lhs})
	if err != nil {
		return nil, err
	}
	var fopts []fn.Option
	if cInterface {
		fopts = append(fopts, fn.WithEmitCInterface())
	}
	f, entry, err := fn.NewFunc(irctx, "add", ft, loc, fopts...)
	if err != nil {
		return nil, err
	}
	if err := f.AppendTo(m.Body()); err != nil {
		return nil, err
	}

	x := entry.MustArgument(0)
	y := x
	if !rhs.IsNull() {
		y = entry.MustArgument(1)
	}
	sum, err := arith.AddI(x, y, loc)
	if err != nil {
		return nil, err
	}
	if err := sum.AppendTo(entry); err != nil {
		return nil, err
	}
	ret, err := fn.Return(irctx, []*ir.Value{sum.MustResult(0)}, loc)
	if err != nil {
		return nil, err
	}
	if err := ret.AppendTo(entry); err != nil {
		return nil, err
	}
	return m, nil
}
