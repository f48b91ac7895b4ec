package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testDialect registers a few kinds for exercising the core without the
// real dialects.
func testDialect() Dialect {
	return Dialect{
		Name: "test",
		Operations: []OpDefinition{
			{Name: "test.add", Operands: 2, Results: 1},
			{Name: "test.const", Results: 1},
			{Name: "test.ret", Operands: Variadic, Terminator: true},
			{Name: "test.br", Successors: 1, Terminator: true},
			{Name: "test.func", Regions: 1, IsolatedFromAbove: true, Symbol: true},
		},
	}
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx := NewContext()
	require.NoError(t, ctx.LoadDialect(testDialect()))
	return ctx
}

func mustOp(t *testing.T, ctx *Context, st OperationState) *Operation {
	t.Helper()
	op, err := NewOperation(ctx, st)
	require.NoError(t, err)
	return op
}

// buildAddFunc builds test.func @name(i32) { %0 = test.add %a, %a; test.ret %0 }
// inside a fresh module.
func buildAddFunc(t *testing.T, ctx *Context, name string) *Module {
	t.Helper()

	i32 := ctx.IntegerType(32)
	m := NewModule(ctx, FileLineColLoc("test.mlir", 1, 1))

	entry := NewBlock(i32)
	body := NewRegion()
	require.NoError(t, body.AppendBlock(entry))

	arg := entry.MustArgument(0)
	add := mustOp(t, ctx, OperationState{
		Name:        "test.add",
		Operands:    []*Value{arg, arg},
		ResultTypes: []Type{i32},
	})
	require.NoError(t, add.AppendTo(entry))

	ret := mustOp(t, ctx, OperationState{Name: "test.ret", Operands: []*Value{add.MustResult(0)}})
	require.NoError(t, ret.AppendTo(entry))

	fn := mustOp(t, ctx, OperationState{
		Name:       "test.func",
		Regions:    []*Region{body},
		Attributes: []NamedAttribute{{Name: SymNameAttr, Value: ctx.StringAttr(name)}},
	})
	require.NoError(t, fn.AppendTo(m.Body()))

	return m
}
