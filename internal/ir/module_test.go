package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModule(t *testing.T) {
	ctx := NewContext()
	m := NewModule(ctx, UnknownLoc())

	assert.Equal(t, ModuleOp, m.Operation().Name())
	assert.True(t, m.Body().Empty())
	assert.Equal(t, ctx, m.Context())
	assert.Equal(t, m.Operation(), m.Body().ParentOp())
	assert.True(t, m.Body().IsEntry())
}

func TestModuleLookup(t *testing.T) {
	ctx := newTestContext(t)
	m := buildAddFunc(t, ctx, "add")

	fn := m.Lookup("add")
	require.NotNil(t, fn)
	assert.Equal(t, "test.func", fn.Name())
	assert.Nil(t, m.Lookup("missing"))
}

func TestModuleLockIsExclusive(t *testing.T) {
	m := NewModule(NewContext(), UnknownLoc())

	unlock, err := m.Lock()
	require.NoError(t, err)

	_, err = m.Lock()
	assert.ErrorIs(t, err, ErrModuleBusy)

	unlock()
	unlock()

	again, err := m.Lock()
	require.NoError(t, err)
	again()
}

func TestModuleFromOperation(t *testing.T) {
	ctx := NewContext()
	m := NewModule(ctx, UnknownLoc())

	wrapped, err := ModuleFromOperation(m.Operation())
	require.NoError(t, err)
	assert.Equal(t, m.Body(), wrapped.Body())

	other, err := NewOperation(ctx, OperationState{Name: UnrealizedCastOp, Operands: []*Value{NewBlock(ctx.IndexType()).MustArgument(0)}, ResultTypes: []Type{ctx.IntegerType(64)}})
	require.NoError(t, err)
	_, err = ModuleFromOperation(other)
	assert.Error(t, err)
}

func TestWalkOrders(t *testing.T) {
	ctx := newTestContext(t)
	m := buildAddFunc(t, ctx, "add")

	var pre []string
	for _, op := range PreOrder(m.Operation()) {
		pre = append(pre, op.Name())
	}
	assert.Equal(t, []string{ModuleOp, "test.func", "test.add", "test.ret"}, pre)

	var post []string
	for _, op := range PostOrder(m.Operation()) {
		post = append(post, op.Name())
	}
	assert.Equal(t, []string{"test.add", "test.ret", "test.func", ModuleOp}, post)
}

func TestWalkSkipAndInterrupt(t *testing.T) {
	ctx := newTestContext(t)
	m := buildAddFunc(t, ctx, "add")

	var visited []string
	Walk(m.Operation(), func(op *Operation) WalkResult {
		visited = append(visited, op.Name())
		if op.Name() == "test.func" {
			return WalkSkip
		}
		return WalkAdvance
	})
	assert.Equal(t, []string{ModuleOp, "test.func"}, visited)

	count := 0
	res := Walk(m.Operation(), func(op *Operation) WalkResult {
		count++
		if op.Name() == "test.add" {
			return WalkInterrupt
		}
		return WalkAdvance
	})
	assert.Equal(t, WalkInterrupt, res)
	assert.Equal(t, 3, count)
}

func TestParentNavigation(t *testing.T) {
	ctx := newTestContext(t)
	m := buildAddFunc(t, ctx, "add")

	fn := m.Lookup("add")
	add := fn.Region(0).Front().First()

	assert.Equal(t, fn, add.ParentOp())
	assert.Equal(t, fn, add.ParentOfKind("test.func"))
	assert.Equal(t, m.Operation(), add.ParentOfKind(ModuleOp))
	assert.True(t, m.Operation().IsProperAncestor(add))
	assert.False(t, add.IsProperAncestor(fn))
	assert.True(t, m.Operation().Region(0).IsAncestor(add.Block()))
}

func TestBlockArguments(t *testing.T) {
	ctx := NewContext()
	i32 := ctx.IntegerType(32)
	idx := ctx.IndexType()

	b := NewBlock(i32)
	v, err := b.InsertArgument(0, idx)
	require.NoError(t, err)

	assert.Equal(t, []Type{idx, i32}, b.ArgumentTypes())
	assert.Equal(t, 0, v.Index())
	assert.Equal(t, 1, b.MustArgument(1).Index())

	require.NoError(t, b.EraseArgument(0))
	assert.Equal(t, []Type{i32}, b.ArgumentTypes())
	assert.Equal(t, 0, b.MustArgument(0).Index())

	_, err = b.Argument(5)
	var ie *IndexError
	assert.ErrorAs(t, err, &ie)
}

func TestDiagnosticHandler(t *testing.T) {
	var got []Diagnostic
	h := DiagnosticHandler(func(d Diagnostic) { got = append(got, d) })

	h.Errorf(FileLineColLoc("a.mlir", 3, 4), "bad %s", "thing")
	require.Len(t, got, 1)
	assert.Equal(t, "a.mlir:3:4: error: bad thing", got[0].String())

	var none DiagnosticHandler
	assert.NotPanics(t, func() { none.Errorf(UnknownLoc(), "dropped") })
}
