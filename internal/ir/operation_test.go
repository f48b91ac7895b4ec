package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOperationArityMismatch(t *testing.T) {
	ctx := newTestContext(t)
	i32 := ctx.IntegerType(32)

	block := NewBlock(i32)
	arg := block.MustArgument(0)

	_, err := NewOperation(ctx, OperationState{
		Name:        "test.add",
		Operands:    []*Value{arg},
		ResultTypes: []Type{i32},
	})
	require.Error(t, err)

	var ae *ArityError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "test.add", ae.Op)
	assert.Equal(t, "operand", ae.What)
	assert.Equal(t, 2, ae.Expected)
	assert.Equal(t, 1, ae.Actual)
}

func TestNewOperationUnregisteredKindIsAccepted(t *testing.T) {
	ctx := NewContext()

	op, err := NewOperation(ctx, OperationState{Name: "custom.thing", ResultTypes: []Type{ctx.IndexType()}})
	require.NoError(t, err)
	assert.False(t, op.IsRegistered())
	assert.Equal(t, "custom", op.Dialect())
	assert.Equal(t, 1, op.NumResults())
}

func TestNewOperationContextMismatch(t *testing.T) {
	ctx := newTestContext(t)
	other := NewContext()

	_, err := NewOperation(ctx, OperationState{Name: "test.const", ResultTypes: []Type{other.IntegerType(32)}})
	var ce *ContextError
	require.ErrorAs(t, err, &ce)

	_, err = NewOperation(ctx, OperationState{
		Name:        "test.const",
		ResultTypes: []Type{ctx.IntegerType(32)},
		Attributes:  []NamedAttribute{{Name: "value", Value: other.UnitAttr()}},
	})
	require.ErrorAs(t, err, &ce)

	foreign := NewBlock(other.IntegerType(32)).MustArgument(0)
	_, err = NewOperation(ctx, OperationState{Name: "test.ret", Operands: []*Value{foreign}})
	require.ErrorAs(t, err, &ce)
}

func TestResultIndexError(t *testing.T) {
	ctx := newTestContext(t)
	op := mustOp(t, ctx, OperationState{Name: "test.const", ResultTypes: []Type{ctx.IntegerType(8)}})

	v, err := op.Result(0)
	require.NoError(t, err)
	assert.Equal(t, op, v.DefiningOp())
	assert.Equal(t, 0, v.Index())

	_, err = op.Result(1)
	var ie *IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Index)
	assert.Equal(t, 1, ie.Len)

	assert.Panics(t, func() { op.MustResult(3) })
}

func TestAppendToTransfersOwnership(t *testing.T) {
	ctx := newTestContext(t)
	op := mustOp(t, ctx, OperationState{Name: "test.const", ResultTypes: []Type{ctx.IntegerType(8)}})

	first := NewBlock()
	second := NewBlock()

	require.NoError(t, op.AppendTo(first))
	assert.Equal(t, first, op.Block())
	assert.Equal(t, 1, first.NumOperations())

	err := op.AppendTo(second)
	require.Error(t, err)
	assert.True(t, IsOwnershipError(err))
	assert.Equal(t, 0, second.NumOperations())
}

func TestUseListTracking(t *testing.T) {
	ctx := newTestContext(t)
	i32 := ctx.IntegerType(32)
	block := NewBlock(i32)
	arg := block.MustArgument(0)

	add := mustOp(t, ctx, OperationState{Name: "test.add", Operands: []*Value{arg, arg}, ResultTypes: []Type{i32}})
	require.NoError(t, add.AppendTo(block))

	assert.Equal(t, 2, arg.NumUses())
	assert.True(t, arg.IsBlockArgument())
	assert.Equal(t, block, arg.ParentBlock())

	c := mustOp(t, ctx, OperationState{Name: "test.const", ResultTypes: []Type{i32}})
	require.NoError(t, c.InsertBefore(add))
	assert.Equal(t, c, block.First())

	arg.ReplaceAllUsesWith(c.MustResult(0))
	assert.False(t, arg.HasUses())
	assert.Equal(t, 2, c.MustResult(0).NumUses())

	lhs, err := add.Operand(0)
	require.NoError(t, err)
	assert.Equal(t, c.MustResult(0), lhs)

	require.NoError(t, add.SetOperand(1, arg))
	assert.Equal(t, 1, arg.NumUses())
	assert.Equal(t, 1, c.MustResult(0).NumUses())
}

func TestEraseFailsWhileUsed(t *testing.T) {
	ctx := newTestContext(t)
	i32 := ctx.IntegerType(32)
	block := NewBlock()

	c := mustOp(t, ctx, OperationState{Name: "test.const", ResultTypes: []Type{i32}})
	require.NoError(t, c.AppendTo(block))
	ret := mustOp(t, ctx, OperationState{Name: "test.ret", Operands: []*Value{c.MustResult(0)}})
	require.NoError(t, ret.AppendTo(block))

	err := c.Erase()
	require.Error(t, err)
	assert.True(t, IsOwnershipError(err))
	assert.Equal(t, 2, block.NumOperations())

	require.NoError(t, ret.Erase())
	assert.False(t, c.MustResult(0).HasUses())
	require.NoError(t, c.Erase())
	assert.True(t, block.Empty())
}

func TestAttributeDictionary(t *testing.T) {
	ctx := newTestContext(t)
	op := mustOp(t, ctx, OperationState{
		Name: "test.func",
		Attributes: []NamedAttribute{
			{Name: "sym_name", Value: ctx.StringAttr("f")},
			{Name: "b", Value: ctx.UnitAttr()},
		},
		Regions: []*Region{NewRegion()},
	})

	names := []string{}
	for _, a := range op.Attributes() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"b", "sym_name"}, names)

	require.NoError(t, op.SetAttr("a", ctx.BoolAttr(true)))
	require.NoError(t, op.SetAttr("sym_name", ctx.StringAttr("g")))
	assert.Equal(t, "g", SymbolName(op))
	assert.Equal(t, "a", op.Attributes()[0].Name)

	op.RemoveAttr("b")
	assert.False(t, op.HasAttr("b"))

	err := op.SetAttr("x", NewContext().UnitAttr())
	var ce *ContextError
	assert.ErrorAs(t, err, &ce)
}

func TestSuccessorOperands(t *testing.T) {
	ctx := newTestContext(t)
	i32 := ctx.IntegerType(32)

	region := NewRegion()
	entry := NewBlock(i32)
	target := NewBlock(i32)
	require.NoError(t, region.AppendBlock(entry))
	require.NoError(t, region.AppendBlock(target))

	br := mustOp(t, ctx, OperationState{
		Name:       "test.br",
		Successors: []Successor{{Block: target, Operands: []*Value{entry.MustArgument(0)}}},
	})
	require.NoError(t, br.AppendTo(entry))

	assert.Equal(t, 0, br.NumOperands())
	assert.Equal(t, target, br.Successor(0))
	assert.Equal(t, []*Value{entry.MustArgument(0)}, br.SuccessorOperands(0))
	assert.Len(t, br.AllOperands(), 1)
	assert.Equal(t, []*Block{target}, entry.Successors())
	assert.Equal(t, br, entry.Terminator())

	uses := entry.MustArgument(0).Uses()
	require.Len(t, uses, 1)
	assert.Equal(t, br, uses[0].Owner)
}

func TestRegionOwnership(t *testing.T) {
	ctx := newTestContext(t)
	region := NewRegion()

	mustOp(t, ctx, OperationState{Name: "test.func", Regions: []*Region{region}})
	_, err := NewOperation(ctx, OperationState{Name: "test.func", Regions: []*Region{region}})
	assert.True(t, IsOwnershipError(err))

	block := NewBlock()
	require.NoError(t, region.AppendBlock(block))
	assert.True(t, IsOwnershipError(NewRegion().AppendBlock(block)))
}
