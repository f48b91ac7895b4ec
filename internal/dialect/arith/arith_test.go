package arith

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/irkit/internal/ir"
)

func newContext(t *testing.T) *ir.Context {
	t.Helper()
	ctx := ir.NewContext()
	require.NoError(t, ctx.LoadDialect(Dialect()))
	return ctx
}

func verifyOp(t *testing.T, op *ir.Operation) error {
	t.Helper()
	def := op.Definition()
	require.NotNil(t, def)
	if def.Verify == nil {
		return nil
	}
	return def.Verify(op)
}

func TestBinaryBuilders(t *testing.T) {
	ctx := newContext(t)
	idx := ctx.IndexType()
	b := ir.NewBlock(idx, idx)
	lhs, rhs := b.MustArgument(0), b.MustArgument(1)

	for _, name := range BinaryOps {
		t.Run(name, func(t *testing.T) {
			op, err := Binary(name, lhs, rhs, ir.UnknownLoc())
			require.NoError(t, err)
			assert.Equal(t, []ir.Type{idx}, op.ResultTypes())
			assert.NoError(t, verifyOp(t, op))
		})
	}
}

func TestAddIArity(t *testing.T) {
	ctx := newContext(t)
	i32 := ctx.IntegerType(32)
	arg := ir.NewBlock(i32).MustArgument(0)

	_, err := ir.NewOperation(ctx, ir.OperationState{
		Name:        AddIOp,
		Operands:    []*ir.Value{arg},
		ResultTypes: []ir.Type{i32},
	})
	assert.True(t, ir.IsArityError(err))
}

func TestBinaryTypeMismatch(t *testing.T) {
	ctx := newContext(t)
	b := ir.NewBlock(ctx.IntegerType(32), ctx.IntegerType(64))

	op, err := AddI(b.MustArgument(0), b.MustArgument(1), ir.UnknownLoc())
	require.NoError(t, err)

	err = verifyOp(t, op)
	require.Error(t, err)
	assert.True(t, ir.IsTypeMismatchError(err))
}

func TestBinaryRejectsNonInteger(t *testing.T) {
	ctx := newContext(t)
	ft := ctx.MustFunctionType(nil, nil)
	b := ir.NewBlock(ft, ft)

	op, err := MulI(b.MustArgument(0), b.MustArgument(1), ir.UnknownLoc())
	require.NoError(t, err)
	assert.True(t, ir.IsTypeMismatchError(verifyOp(t, op)))
}

func TestConstant(t *testing.T) {
	ctx := newContext(t)
	i32 := ctx.IntegerType(32)

	op, err := Constant(ctx, i32, 7, ir.UnknownLoc())
	require.NoError(t, err)
	assert.NoError(t, verifyOp(t, op))

	v, ok := op.Attr("value")
	require.True(t, ok)
	assert.Equal(t, int64(7), v.Int())

	// A value typed differently from the result is rejected.
	i64Attr, err := ctx.IntegerAttr(ctx.IntegerType(64), 7)
	require.NoError(t, err)
	bad, err := ir.NewOperation(ctx, ir.OperationState{
		Name:        ConstantOp,
		ResultTypes: []ir.Type{i32},
		Attributes:  []ir.NamedAttribute{{Name: "value", Value: i64Attr}},
	})
	require.NoError(t, err)
	assert.True(t, ir.IsTypeMismatchError(verifyOp(t, bad)))

	missing, err := ir.NewOperation(ctx, ir.OperationState{Name: ConstantOp, ResultTypes: []ir.Type{i32}})
	require.NoError(t, err)
	assert.Error(t, verifyOp(t, missing))
}

func TestCmpIAndSelect(t *testing.T) {
	ctx := newContext(t)
	i32 := ctx.IntegerType(32)
	b := ir.NewBlock(i32, i32)
	x, y := b.MustArgument(0), b.MustArgument(1)

	cmp, err := CmpI("slt", x, y, ir.UnknownLoc())
	require.NoError(t, err)
	assert.NoError(t, verifyOp(t, cmp))
	assert.True(t, cmp.MustResult(0).Type().IsBool())

	sel, err := Select(cmp.MustResult(0), x, y, ir.UnknownLoc())
	require.NoError(t, err)
	assert.NoError(t, verifyOp(t, sel))

	badSel, err := Select(x, x, y, ir.UnknownLoc())
	require.NoError(t, err)
	assert.True(t, ir.IsTypeMismatchError(verifyOp(t, badSel)))

	_, err = CmpI("less", x, y, ir.UnknownLoc())
	assert.Error(t, err)
}
