package engine

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/irkit/internal/asm"
	"github.com/roach88/irkit/internal/dialect"
	"github.com/roach88/irkit/internal/dialect/llvm"
	"github.com/roach88/irkit/internal/ir"
	"github.com/roach88/irkit/internal/pass"
	"github.com/roach88/irkit/internal/testutil"
)

// lowered builds a canned module and lowers it to the llvm dialect.
func lowered(t testing.TB, build func(*ir.Context) (*ir.Module, error)) *ir.Module {
	t.Helper()
	m, err := build(dialect.NewContext())
	require.NoError(t, err)
	require.NoError(t, pass.Standard(m.Context(), pass.WithVerifier(true)).Run(context.Background(), m))
	return m
}

func compiled(t testing.TB, build func(*ir.Context) (*ir.Module, error), opts ...Option) *Artifact {
	t.Helper()
	a, err := Compile(lowered(t, build), opts...)
	require.NoError(t, err)
	return a
}

func TestAddI32Packed(t *testing.T) {
	a := compiled(t, testutil.AddI32Module)

	slots := []Slot{I32(42), I32(0)}
	require.NoError(t, a.InvokePacked("add", slots))
	assert.Equal(t, int32(84), slots[1].Int32())
	assert.Equal(t, int32(42), slots[0].Int32(), "argument slot must not be written")
}

func TestAddI32Wraps(t *testing.T) {
	a := compiled(t, testutil.AddI32Module)

	got, err := a.Invoke("add", math.MaxInt32)
	require.NoError(t, err)
	assert.Equal(t, []int64{-2}, got)
}

func TestAddIndex(t *testing.T) {
	a := compiled(t, testutil.AddIndexModule)

	slots := []Slot{Index(40), Index(2), 0}
	require.NoError(t, a.InvokePacked("add", slots))
	assert.Equal(t, int64(42), slots[2].Int64())
}

func TestMax(t *testing.T) {
	a := compiled(t, testutil.MaxModule)

	for _, tc := range []struct{ x, y, want int64 }{
		{3, 7, 7},
		{7, 3, 7},
		{-5, -9, -5},
		{4, 4, 4},
	} {
		got, err := a.Invoke("max", tc.x, tc.y)
		require.NoError(t, err)
		assert.Equal(t, []int64{tc.want}, got, "max(%d, %d)", tc.x, tc.y)
	}
}

func TestFactorial(t *testing.T) {
	a := compiled(t, testutil.FactorialModule)

	for n, want := range map[int64]int64{0: 1, 1: 1, 5: 120, 10: 3628800, 20: 2432902008176640000} {
		got, err := a.Invoke("fact", n)
		require.NoError(t, err)
		assert.Equal(t, []int64{want}, got, "fact(%d)", n)
	}
}

func TestSumLoop(t *testing.T) {
	a := compiled(t, testutil.SumToModule)

	for n, want := range map[int64]int64{0: 0, 1: 0, 10: 45, 1000: 499500} {
		slots := []Slot{Index(n), 0}
		require.NoError(t, a.InvokePacked("sum", slots))
		assert.Equal(t, want, slots[1].Int64(), "sum(%d)", n)
	}
}

func TestDivision(t *testing.T) {
	a := compiled(t, testutil.DivModule)

	got, err := a.Invoke("div", -7, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{-3}, got)
}

func TestDivisionByZeroTraps(t *testing.T) {
	a := compiled(t, testutil.DivModule)

	slots := []Slot{I32(7), I32(0), I32(99)}
	err := a.InvokePacked("div", slots)
	require.Error(t, err)
	assert.True(t, IsTrap(err))

	var ie *InvocationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, Trap, ie.Kind)
	assert.Equal(t, "div", ie.Function)
	assert.Contains(t, ie.Message, "division by zero")
	assert.Equal(t, int32(99), slots[2].Int32(), "result slot untouched on trap")
}

func TestSignedDivisionOverflowTraps(t *testing.T) {
	a := compiled(t, testutil.DivModule)

	_, err := a.Invoke("div", math.MinInt32, -1)
	require.Error(t, err)
	assert.True(t, IsTrap(err))
}

func TestCallDepthTraps(t *testing.T) {
	a := compiled(t, testutil.FactorialModule, WithMaxCallDepth(5))

	got, err := a.Invoke("fact", 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{24}, got)

	_, err = a.Invoke("fact", 10)
	require.Error(t, err)
	assert.True(t, IsTrap(err))
	assert.Contains(t, err.Error(), "call depth")
}

func TestNotFound(t *testing.T) {
	a := compiled(t, testutil.AddI32Module)

	err := a.InvokePacked("sub", []Slot{0, 0})
	var ie *InvocationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, NotFound, ie.Kind)
	assert.True(t, IsNotFound(err))

	_, err = a.Invoke("sub", 1)
	assert.True(t, IsNotFound(err))
}

func TestArityMismatch(t *testing.T) {
	a := compiled(t, testutil.AddI32Module)

	for _, slots := range [][]Slot{nil, {I32(1)}, {I32(1), I32(2), I32(3)}} {
		err := a.InvokePacked("add", slots)
		var ie *InvocationError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, ArityMismatch, ie.Kind)
	}

	_, err := a.Invoke("add", 1, 2)
	var ie *InvocationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ArityMismatch, ie.Kind)
}

func TestCompileRejectsUnloweredModule(t *testing.T) {
	m, err := testutil.AddIndexModule(dialect.NewContext())
	require.NoError(t, err)

	_, err = Compile(m)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeUnsupportedOperation, ce.Code)
	assert.Equal(t, "func.func", ce.Op)
}

func TestCompileRejectsInvalidModule(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	i32 := ctx.IntegerType(32)
	body := ir.NewRegion()
	require.NoError(t, body.AppendBlock(ir.NewBlock(i32)))
	f, err := llvm.Func(ctx, "f", ctx.MustFunctionType([]ir.Type{i32}, []ir.Type{i32}), body, false, ir.UnknownLoc())
	require.NoError(t, err)
	require.NoError(t, f.AppendTo(m.Body()))

	_, err = Compile(m)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeVerification, ce.Code)
	assert.NotNil(t, ce.Unwrap())
}

func TestDeclarationsCannotBeInvoked(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	i64 := ctx.IntegerType(64)
	f, err := llvm.Func(ctx, "ext", ctx.MustFunctionType([]ir.Type{i64}, []ir.Type{i64}), ir.NewRegion(), false, ir.UnknownLoc())
	require.NoError(t, err)
	require.NoError(t, f.AppendTo(m.Body()))

	a, err := Compile(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"ext"}, a.Functions())
	assert.True(t, IsNotFound(a.InvokePacked("ext", []Slot{0, 0})))
}

func TestArtifactMetadata(t *testing.T) {
	m := lowered(t, testutil.MaxModule)
	a, err := Compile(m)
	require.NoError(t, err)

	fp, err := ir.Fingerprint(m)
	require.NoError(t, err)
	assert.Equal(t, fp, a.Fingerprint())
	assert.Equal(t, []string{"max"}, a.Functions())

	params, results, ok := a.Signature("max")
	require.True(t, ok)
	assert.Len(t, params, 2)
	assert.Len(t, results, 1)
	_, _, ok = a.Signature("min")
	assert.False(t, ok)
}

func TestConcurrentInvocations(t *testing.T) {
	a := compiled(t, testutil.FactorialModule)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := int64(i % 15)
			got, err := a.Invoke("fact", n)
			if err != nil {
				errs <- err
				return
			}
			want := int64(1)
			for k := int64(2); k <= n; k++ {
				want *= k
			}
			if got[0] != want {
				errs <- assert.AnError
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestOptLevelPreservesResults(t *testing.T) {
	modules := []struct {
		name  string
		fn    string
		arity int
		build func(*ir.Context) (*ir.Module, error)
	}{
		{"add_i32", "add", 1, testutil.AddI32Module},
		{"max", "max", 2, testutil.MaxModule},
		{"div", "div", 2, testutil.DivModule},
		{"sum_to", "sum", 1, testutil.SumToModule},
	}
	plain := make([]*Artifact, len(modules))
	optimized := make([]*Artifact, len(modules))
	for i, mod := range modules {
		plain[i] = compiled(t, mod.build)
		optimized[i] = compiled(t, mod.build, WithOptLevel(2))
	}

	rapid.Check(t, func(t *rapid.T) {
		i := rapid.IntRange(0, len(modules)-1).Draw(t, "module")
		args := make([]int64, modules[i].arity)
		for j := range args {
			args[j] = int64(rapid.Int32Range(-500, 500).Draw(t, "arg"))
		}

		want, werr := plain[i].Invoke(modules[i].fn, args...)
		got, gerr := optimized[i].Invoke(modules[i].fn, args...)
		if (werr == nil) != (gerr == nil) {
			t.Fatalf("%s%v: errors differ: %v vs %v", modules[i].fn, args, werr, gerr)
		}
		if werr == nil && want[0] != got[0] {
			t.Fatalf("%s%v: %d at opt 0, %d at opt 2", modules[i].fn, args, want[0], got[0])
		}
	})
}

func TestLLVMIR(t *testing.T) {
	add := compiled(t, testutil.AddI32Module)
	text := add.LLVMIR()
	assert.Contains(t, text, `source_filename = "testutil.mlir"`)
	assert.Contains(t, text, "define i32 @add(i32 %arg0)")
	assert.Contains(t, text, "add i32 %arg0, %arg0")
	assert.Contains(t, text, "@_mlir_ciface_add(i32 %arg0)")

	max := compiled(t, testutil.MaxModule)
	text = max.LLVMIR()
	assert.Contains(t, text, "icmp sgt i32 %arg0, %arg1")
	assert.Contains(t, text, "phi i32 [ %arg0, %bb1 ], [ %arg1, %bb2 ]")
	assert.NotContains(t, text, "_mlir_ciface_")
}

// sameTargetSrc branches to one block from both edges of a cond_br, each
// edge passing a different argument.
const sameTargetSrc = `module {
  "llvm.func"() ({
  ^bb0(%arg0: i1, %arg1: i32):
    %0 = "llvm.mlir.constant"() {value = 7 : i32} : () -> i32
    "llvm.cond_br"(%arg0)[^bb1(%arg1 : i32), ^bb1(%0 : i32)] : (i1) -> ()
  ^bb1(%1: i32):
    "llvm.return"(%1) : (i32) -> ()
  }) {function_type = (i1, i32) -> i32, sym_name = "pick"} : () -> ()
}
`

func TestCondBrToSameBlockWithArguments(t *testing.T) {
	m, err := asm.Parse(dialect.NewContext(), sameTargetSrc, "pick.mlir")
	require.NoError(t, err)

	for _, opt := range []int{0, 2} {
		a, err := Compile(m, WithOptLevel(opt))
		require.NoError(t, err)

		got, err := a.Invoke("pick", 1, 5)
		require.NoError(t, err)
		assert.Equal(t, []int64{5}, got)

		got, err = a.Invoke("pick", 0, 5)
		require.NoError(t, err)
		assert.Equal(t, []int64{7}, got)

		text := a.LLVMIR()
		assert.Contains(t, text, "br i1 %arg0, label %bb1, label %split1")
		assert.Contains(t, text, "phi i32 [ %arg1, %bb0 ], [ 7, %split1 ]")
	}
}

func TestTranslateRejectsUnlowered(t *testing.T) {
	m, err := testutil.AddI32Module(dialect.NewContext())
	require.NoError(t, err)

	_, err = TranslateToLLVM(m)
	var ce *CompileError
	assert.ErrorAs(t, err, &ce)
}

func TestSlotHelpers(t *testing.T) {
	assert.Equal(t, int32(-1), I32(-1).Int32())
	assert.Equal(t, Slot(0xffffffff), I32(-1))
	assert.Equal(t, int64(-5), I64(-5).Int64())
	assert.Equal(t, int64(7), Index(7).Int64())
	assert.True(t, Bool(true).Bool())
	assert.False(t, Bool(false).Bool())
}

func TestBinaryOpsWrapAtWidth(t *testing.T) {
	tests := []struct {
		op   string
		a, b uint64
		w    uint
		want uint64
	}{
		{llvm.AddOp, 200, 100, 8, 44},
		{llvm.SubOp, 0, 1, 8, 0xff},
		{llvm.MulOp, 16, 16, 8, 0},
		{llvm.SDivOp, 0xf9, 2, 8, 0xfd}, // -7 / 2 = -3
		{llvm.SRemOp, 0xf9, 2, 8, 0xff}, // -7 % 2 = -1
		{llvm.UDivOp, 0xf9, 2, 8, 0x7c},
		{llvm.AShrOp, 0x80, 7, 8, 0xff},
		{llvm.LShrOp, 0x80, 7, 8, 1},
		{llvm.ShlOp, 1, 8, 8, 0},
		{llvm.XOrOp, 0xf0, 0xff, 8, 0x0f},
		{llvm.AddOp, math.MaxUint64, 1, 64, 0},
	}
	for _, tc := range tests {
		got, err := binaryOps[tc.op](tc.a, tc.b, tc.w)
		require.NoError(t, err, tc.op)
		assert.Equal(t, tc.want, got, "%s(%#x, %#x) at i%d", tc.op, tc.a, tc.b, tc.w)
	}

	_, err := binaryOps[llvm.SDivOp](0x80, 0xff, 8)
	assert.Equal(t, errSignedOverflow, err)
	_, err = binaryOps[llvm.URemOp](1, 0, 8)
	assert.Equal(t, errDivideByZero, err)
}

func TestComparisonsAreSignAware(t *testing.T) {
	assert.True(t, comparisons["slt"](0xff, 0, 8))
	assert.False(t, comparisons["ult"](0xff, 0, 8))
	assert.True(t, comparisons["sge"](1, 0x80, 8))
	assert.True(t, comparisons["eq"](5, 5, 32))
}
