package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/irkit/internal/dialect"
	"github.com/roach88/irkit/internal/dialect/arith"
	"github.com/roach88/irkit/internal/dialect/cf"
	"github.com/roach88/irkit/internal/dialect/fn"
	"github.com/roach88/irkit/internal/ir"
	"github.com/roach88/irkit/internal/testutil"
)

// newFunc appends an empty-bodied func.func to m and returns its entry block.
func newFunc(t *testing.T, m *ir.Module, name string, inputs, results []ir.Type) (*ir.Operation, *ir.Block) {
	t.Helper()
	ctx := m.Context()
	ft, err := ctx.FunctionType(inputs, results)
	require.NoError(t, err)
	f, entry, err := fn.NewFunc(ctx, name, ft, ir.FileLineColLoc("t.mlir", 1, 1))
	require.NoError(t, err)
	require.NoError(t, f.AppendTo(m.Body()))
	return f, entry
}

type blockBuilder struct {
	t     *testing.T
	block *ir.Block
}

func at(t *testing.T, b *ir.Block) *blockBuilder {
	return &blockBuilder{t: t, block: b}
}

func (b *blockBuilder) add(op *ir.Operation, err error) *ir.Operation {
	b.t.Helper()
	require.NoError(b.t, err)
	require.NoError(b.t, op.AppendTo(b.block))
	return op
}

func codesOf(errs []Error) []string {
	return Codes(errs)
}

func TestValidModules(t *testing.T) {
	builders := map[string]func(*ir.Context) (*ir.Module, error){
		"add_i32":   testutil.AddI32Module,
		"add_index": testutil.AddIndexModule,
		"max":       testutil.MaxModule,
		"factorial": testutil.FactorialModule,
		"div":       testutil.DivModule,
		"sum_to":    testutil.SumToModule,
	}

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			m, err := build(dialect.NewContext())
			require.NoError(t, err)
			assert.Empty(t, Verify(m))
			assert.NoError(t, Check(m))
		})
	}
}

func TestEmptyModuleIsValid(t *testing.T) {
	m := ir.NewModule(dialect.NewContext(), ir.UnknownLoc())
	assert.Nil(t, Verify(m))
}

func TestMissingTerminator(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	i32 := ctx.IntegerType(32)

	_, entry := newFunc(t, m, "f", []ir.Type{i32}, []ir.Type{i32})
	x := entry.MustArgument(0)
	at(t, entry).add(arith.AddI(x, x, ir.UnknownLoc()))

	errs := Verify(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMissingTerminator, errs[0].Code)
	assert.Contains(t, errs[0].Message, "^bb0")
	assert.Equal(t, "builtin.module/^bb0/func.func@f[0]/^bb0", errs[0].Path)
}

func TestEmptyBlockNeedsTerminator(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	newFunc(t, m, "f", nil, nil)

	errs := Verify(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMissingTerminator, errs[0].Code)
}

func TestReportsEveryViolation(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	i32 := ctx.IntegerType(32)

	_, entry := newFunc(t, m, "f", []ir.Type{i32}, []ir.Type{i32})
	x := entry.MustArgument(0)

	// %0 uses %1, which is defined after it.
	first := at(t, entry).add(arith.Constant(ctx, i32, 1, ir.UnknownLoc()))
	second := at(t, entry).add(arith.AddI(x, x, ir.UnknownLoc()))
	user := at(t, entry).add(arith.AddI(x, x, ir.UnknownLoc()))
	user.Remove()
	require.NoError(t, user.InsertBefore(first))
	require.NoError(t, user.SetOperand(0, second.MustResult(0)))

	at(t, entry).add(fn.Return(ctx, []*ir.Value{x}, ir.UnknownLoc()))
	at(t, entry).add(fn.Return(ctx, []*ir.Value{x}, ir.UnknownLoc()))

	errs := Verify(m)
	codes := codesOf(errs)
	assert.Contains(t, codes, ErrNotDominated)
	assert.Contains(t, codes, ErrAfterTerminator)
}

func TestIdempotent(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	newFunc(t, m, "f", nil, nil)
	newFunc(t, m, "f", nil, nil)

	first := Verify(m)
	second := Verify(m)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestArityAfterLateRegistration(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.IntegerType(32)
	m := ir.NewModule(ctx, ir.UnknownLoc())

	block := ir.NewBlock(i32)
	region := ir.NewRegion()
	require.NoError(t, region.AppendBlock(block))

	// Created while arith is not loaded, so construction cannot check arity.
	bad, err := ir.NewOperation(ctx, ir.OperationState{
		Name:        arith.AddIOp,
		Operands:    []*ir.Value{block.MustArgument(0)},
		ResultTypes: []ir.Type{i32},
	})
	require.NoError(t, err)
	require.NoError(t, bad.AppendTo(block))

	require.NoError(t, dialect.RegisterAll(ctx))

	ft := ctx.MustFunctionType([]ir.Type{i32}, []ir.Type{i32})
	f, err := fn.Func(ctx, "f", ft, region, ir.UnknownLoc())
	require.NoError(t, err)
	require.NoError(t, f.AppendTo(m.Body()))
	at(t, block).add(fn.Return(ctx, []*ir.Value{bad.MustResult(0)}, ir.UnknownLoc()))

	errs := Verify(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrArity, errs[0].Code)
	assert.Equal(t, arith.AddIOp, errs[0].Op)
}

func TestTypeMismatch(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	i32, i64 := ctx.IntegerType(32), ctx.IntegerType(64)

	_, entry := newFunc(t, m, "f", []ir.Type{i32, i64}, []ir.Type{i32})
	sum := at(t, entry).add(arith.AddI(entry.MustArgument(0), entry.MustArgument(1), ir.UnknownLoc()))
	at(t, entry).add(fn.Return(ctx, []*ir.Value{sum.MustResult(0)}, ir.UnknownLoc()))

	errs := Verify(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrTypeMismatch, errs[0].Code)
}

func TestUnknownOperation(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())

	_, entry := newFunc(t, m, "f", nil, nil)
	at(t, entry).add(ir.NewOperation(ctx, ir.OperationState{Name: "custom.op"}))
	at(t, entry).add(fn.Return(ctx, nil, ir.UnknownLoc()))

	errs := Verify(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownOperation, errs[0].Code)

	ctx.SetAllowUnregistered(true)
	assert.Empty(t, Verify(m))
}

func TestSuccessorMismatch(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	i32 := ctx.IntegerType(32)

	f, entry := newFunc(t, m, "f", []ir.Type{i32}, []ir.Type{i32})
	exit := ir.NewBlock(i32)
	require.NoError(t, f.Region(0).AppendBlock(exit))

	at(t, entry).add(cf.Br(ctx, exit, nil, ir.UnknownLoc()))
	at(t, exit).add(fn.Return(ctx, []*ir.Value{exit.MustArgument(0)}, ir.UnknownLoc()))

	errs := Verify(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrSuccessor, errs[0].Code)
}

func TestBranchToOtherRegion(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())

	_, a := newFunc(t, m, "a", nil, nil)
	g, b := newFunc(t, m, "b", nil, nil)
	other := ir.NewBlock()
	require.NoError(t, g.Region(0).AppendBlock(other))
	at(t, other).add(fn.Return(ctx, nil, ir.UnknownLoc()))

	at(t, a).add(cf.Br(ctx, other, nil, ir.UnknownLoc()))
	at(t, b).add(fn.Return(ctx, nil, ir.UnknownLoc()))

	assert.Equal(t, []string{ErrSuccessor}, codesOf(Verify(m)))
}

func TestSymbols(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	i32 := ctx.IntegerType(32)

	_, a := newFunc(t, m, "dup", nil, nil)
	at(t, a).add(fn.Return(ctx, nil, ir.UnknownLoc()))
	_, b := newFunc(t, m, "dup", nil, nil)
	at(t, b).add(fn.Call(ctx, "missing", nil, nil, ir.UnknownLoc()))
	at(t, b).add(fn.Call(ctx, "dup", nil, []ir.Type{i32}, ir.UnknownLoc()))
	at(t, b).add(fn.Return(ctx, nil, ir.UnknownLoc()))

	errs := Verify(m)
	require.Len(t, errs, 3)
	assert.Equal(t, ErrSymbol, errs[0].Code)
	assert.Contains(t, errs[0].Message, "redefinition")
	assert.Equal(t, ErrSymbol, errs[1].Code)
	assert.Contains(t, errs[1].Message, "@missing")
	assert.Equal(t, ErrTypeMismatch, errs[2].Code)
}

func TestIsolatedFromAbove(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	i32 := ctx.IntegerType(32)

	c := at(t, m.Body()).add(arith.Constant(ctx, i32, 3, ir.UnknownLoc()))
	_, entry := newFunc(t, m, "f", nil, []ir.Type{i32})
	at(t, entry).add(fn.Return(ctx, []*ir.Value{c.MustResult(0)}, ir.UnknownLoc()))

	errs := Verify(m)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrIsolatedFromAbove, errs[0].Code)
}

func TestValueFromSiblingFunction(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	i32 := ctx.IntegerType(32)

	_, a := newFunc(t, m, "a", []ir.Type{i32}, nil)
	at(t, a).add(fn.Return(ctx, nil, ir.UnknownLoc()))
	_, b := newFunc(t, m, "b", nil, []ir.Type{i32})
	at(t, b).add(fn.Return(ctx, []*ir.Value{a.MustArgument(0)}, ir.UnknownLoc()))

	assert.Equal(t, []string{ErrNotDominated}, codesOf(Verify(m)))
}

func TestBlockArgumentDominance(t *testing.T) {
	ctx := dialect.NewContext()
	m, err := testutil.MaxModule(ctx)
	require.NoError(t, err)

	// Make ^bb1 (left) return the join block's argument, which it does not
	// dominate.
	f := m.Lookup("max")
	blocks := f.Region(0).Blocks()
	left, join := blocks[1], blocks[3]
	br := left.Terminator()
	require.NoError(t, br.Erase())
	at(t, left).add(fn.Return(ctx, []*ir.Value{join.MustArgument(0)}, ir.UnknownLoc()))

	assert.Equal(t, []string{ErrNotDominated}, codesOf(Verify(m)))
}

func TestParallelMatchesSequential(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	i32 := ctx.IntegerType(32)

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		_, entry := newFunc(t, m, name, []ir.Type{i32}, []ir.Type{i32})
		x := entry.MustArgument(0)
		at(t, entry).add(arith.AddI(x, x, ir.UnknownLoc()))
	}

	sequential := Verify(m)
	parallel := Verify(m, WithParallelism(4))
	require.Len(t, sequential, 5)
	assert.Equal(t, sequential, parallel)
}

func TestDiagnosticsEmitted(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	newFunc(t, m, "f", nil, nil)

	var diags []ir.Diagnostic
	errs := Verify(m, WithDiagnostics(func(d ir.Diagnostic) { diags = append(diags, d) }))

	require.Len(t, diags, len(errs))
	assert.Equal(t, ir.SeverityError, diags[0].Severity)
	assert.Contains(t, diags[0].Message, ErrMissingTerminator)
}

func TestCheckFailure(t *testing.T) {
	ctx := dialect.NewContext()
	m := ir.NewModule(ctx, ir.UnknownLoc())
	newFunc(t, m, "f", nil, nil)

	err := Check(m)
	require.Error(t, err)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, []string{ErrMissingTerminator}, f.Codes())
	assert.Contains(t, err.Error(), "verification failed")
}

func TestSingleOperationModulesVerify(t *testing.T) {
	ctx := dialect.NewContext()

	rapid.Check(t, func(t *rapid.T) {
		width := rapid.SampledFrom([]uint{1, 8, 16, 32, 64}).Draw(t, "width")
		useIndex := rapid.Bool().Draw(t, "index")
		kind := rapid.SampledFrom(arith.BinaryOps).Draw(t, "kind")

		ty := ctx.IntegerType(width)
		if useIndex {
			ty = ctx.IndexType()
		}

		m := ir.NewModule(ctx, ir.UnknownLoc())
		ft := ctx.MustFunctionType([]ir.Type{ty, ty}, []ir.Type{ty})
		f, entry, err := fn.NewFunc(ctx, "f", ft, ir.UnknownLoc())
		if err != nil {
			t.Fatal(err)
		}
		if err := f.AppendTo(m.Body()); err != nil {
			t.Fatal(err)
		}
		op, err := arith.Binary(kind, entry.MustArgument(0), entry.MustArgument(1), ir.UnknownLoc())
		if err != nil {
			t.Fatal(err)
		}
		if err := op.AppendTo(entry); err != nil {
			t.Fatal(err)
		}
		ret, err := fn.Return(ctx, []*ir.Value{op.MustResult(0)}, ir.UnknownLoc())
		if err != nil {
			t.Fatal(err)
		}
		if err := ret.AppendTo(entry); err != nil {
			t.Fatal(err)
		}

		if errs := Verify(m); len(errs) != 0 {
			t.Fatalf("%s on %s: %v", kind, ty, errs)
		}
	})
}
