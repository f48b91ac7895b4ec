package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeInterning(t *testing.T) {
	ctx := NewContext()
	i32 := ctx.IntegerType(32)

	assert.Equal(t, ctx.StringAttr("add"), ctx.StringAttr("add"))
	assert.NotEqual(t, ctx.StringAttr("add"), ctx.SymbolRefAttr("add"))
	assert.Equal(t, ctx.UnitAttr(), ctx.UnitAttr())
	assert.Equal(t, ctx.BoolAttr(true), ctx.BoolAttr(true))

	a, err := ctx.IntegerAttr(i32, 42)
	require.NoError(t, err)
	b, err := ctx.IntegerAttr(i32, 42)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	ta, err := ctx.TypeAttr(i32)
	require.NoError(t, err)
	assert.Equal(t, i32, ta.Type())
}

func TestAttributeString(t *testing.T) {
	ctx := NewContext()
	i32 := ctx.IntegerType(32)
	ft := ctx.MustFunctionType([]Type{i32}, []Type{i32})

	intAttr, err := ctx.IntegerAttr(i32, -7)
	require.NoError(t, err)
	typeAttr, err := ctx.TypeAttr(ft)
	require.NoError(t, err)

	tests := []struct {
		name     string
		attr     Attribute
		expected string
	}{
		{"string", ctx.StringAttr("add"), `"add"`},
		{"string escapes", ctx.StringAttr("a\"b"), `"a\"b"`},
		{"integer", intAttr, "-7 : i32"},
		{"bool", ctx.BoolAttr(false), "false"},
		{"type", typeAttr, "(i32) -> i32"},
		{"unit", ctx.UnitAttr(), "unit"},
		{"symbol", ctx.SymbolRefAttr("callee"), "@callee"},
		{"null", Attribute{}, "<<null attribute>>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.attr.String())
		})
	}
}

func TestIntegerAttrTruncatesToWidth(t *testing.T) {
	ctx := NewContext()
	i8 := ctx.IntegerType(8)

	a, err := ctx.IntegerAttr(i8, 255)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), a.Int())

	b, err := ctx.IntegerAttr(i8, -1)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	one, err := ctx.IntegerAttr(ctx.IntegerType(1), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), one.Int())
}

func TestIntegerAttrRequiresIntegerType(t *testing.T) {
	ctx := NewContext()

	_, err := ctx.IntegerAttr(ctx.NoneType(), 1)
	require.Error(t, err)
	assert.True(t, IsTypeMismatchError(err))
}

func TestSignExtendAndTruncate(t *testing.T) {
	assert.Equal(t, int64(-128), SignExtend(0x80, 8))
	assert.Equal(t, int64(127), SignExtend(0x7f, 8))
	assert.Equal(t, int64(-1), SignExtend(^uint64(0), 64))
	assert.Equal(t, uint64(0xff), Truncate(^uint64(0), 8))
	assert.Equal(t, uint64(1), Truncate(3, 1))
}

func TestSortAttributes(t *testing.T) {
	ctx := NewContext()

	sorted := sortAttributes([]NamedAttribute{
		{Name: "sym_name", Value: ctx.StringAttr("f")},
		{Name: "function_type", Value: ctx.UnitAttr()},
		{Name: "sym_name", Value: ctx.StringAttr("g")},
	})

	require.Len(t, sorted, 2)
	assert.Equal(t, "function_type", sorted[0].Name)
	assert.Equal(t, "sym_name", sorted[1].Name)
	assert.Equal(t, "g", sorted[1].Value.Str())
}
