package asm

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/irkit/internal/dialect"
	"github.com/roach88/irkit/internal/dialect/arith"
	"github.com/roach88/irkit/internal/dialect/fn"
	"github.com/roach88/irkit/internal/dialect/traits"
	"github.com/roach88/irkit/internal/ir"
	"github.com/roach88/irkit/internal/testutil"
	"github.com/roach88/irkit/internal/verify"
)

// driverInput is the textual module used by the add(i32) demo.
const driverInput = `
module {
    func.func @add(%arg0 : i32) -> i32 attributes { llvm.emit_c_interface } {
        %res = arith.addi %arg0, %arg0 : i32
        return %res : i32
    }
}
`

var cannedModules = map[string]func(*ir.Context) (*ir.Module, error){
	"add_i32":   testutil.AddI32Module,
	"add_index": testutil.AddIndexModule,
	"max":       testutil.MaxModule,
	"factorial": testutil.FactorialModule,
	"div":       testutil.DivModule,
	"sum_to":    testutil.SumToModule,
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestPrintGolden(t *testing.T) {
	tests := []struct {
		golden string
		build  func(*ir.Context) (*ir.Module, error)
		opts   []Option
	}{
		{"add_i32_generic", testutil.AddI32Module, nil},
		{"add_i32_pretty", testutil.AddI32Module, []Option{WithPrettyFunctions(true)}},
		{"max_pretty", testutil.MaxModule, []Option{WithPrettyFunctions(true)}},
		{"factorial_pretty", testutil.FactorialModule, []Option{WithPrettyFunctions(true)}},
	}

	for _, tt := range tests {
		t.Run(tt.golden, func(t *testing.T) {
			m, err := tt.build(dialect.NewContext())
			require.NoError(t, err)

			g := newGoldie(t)
			g.Assert(t, tt.golden, []byte(Print(m.Operation(), tt.opts...)))
		})
	}
}

func TestFprintMatchesPrint(t *testing.T) {
	m, err := testutil.MaxModule(dialect.NewContext())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, m.Operation(), WithPrettyFunctions(true)))
	assert.Equal(t, Print(m.Operation(), WithPrettyFunctions(true)), buf.String())
}

func TestParseDriverInput(t *testing.T) {
	ctx := dialect.NewContext()
	m, err := Parse(ctx, driverInput, "driver.mlir")
	require.NoError(t, err)
	require.Empty(t, verify.Verify(m))

	f := m.Lookup("add")
	require.NotNil(t, f)
	assert.Equal(t, fn.FuncOp, f.Name())
	assert.True(t, f.HasAttr(traits.EmitCInterfaceAttr))

	ft, err := traits.FunctionType(f)
	require.NoError(t, err)
	assert.Equal(t, "(i32) -> i32", ft.String())

	ops := f.Region(0).Front().Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, arith.AddIOp, ops[0].Name())
	assert.Equal(t, ir.FileLineColLoc("driver.mlir", 4, 16), ops[0].Location())
	assert.Equal(t, ops[0].MustResult(0), ops[1].Operands()[0])

	want, err := testutil.AddI32Module(ctx)
	require.NoError(t, err)
	assert.Equal(t, ir.MustFingerprint(want), ir.MustFingerprint(m))
}

func TestRoundTrip(t *testing.T) {
	variants := map[string][]Option{
		"generic":   nil,
		"pretty":    {WithPrettyFunctions(true)},
		"locations": {WithPrettyFunctions(true), WithLocations(true)},
	}

	for name, build := range cannedModules {
		for variant, opts := range variants {
			t.Run(name+"/"+variant, func(t *testing.T) {
				ctx := dialect.NewContext()
				m, err := build(ctx)
				require.NoError(t, err)

				text := Print(m.Operation(), opts...)
				parsed, err := Parse(ctx, text, name+".mlir")
				require.NoError(t, err, text)

				assert.Equal(t, ir.MustFingerprint(m), ir.MustFingerprint(parsed))
				assert.Equal(t, text, Print(parsed.Operation(), opts...))
				assert.Empty(t, verify.Verify(parsed))
			})
		}
	}
}

func TestLocationsRoundTrip(t *testing.T) {
	ctx := dialect.NewContext()
	m, err := testutil.AddI32Module(ctx)
	require.NoError(t, err)

	text := Print(m.Operation(), WithLocations(true))
	assert.Contains(t, text, `loc("testutil.mlir":2:1)`)

	parsed, err := Parse(ctx, text, "other.mlir")
	require.NoError(t, err)

	orig := ir.PreOrder(m.Operation())
	got := ir.PreOrder(parsed.Operation())
	require.Len(t, got, len(orig))
	for i := range orig {
		assert.Equal(t, orig[i].Location(), got[i].Location(), orig[i].Name())
	}
}

func TestParseAttachesSourceLocations(t *testing.T) {
	src := "func.func @f() {\n  return\n}\n"
	m, err := Parse(dialect.NewContext(), src, "f.mlir")
	require.NoError(t, err)

	f := m.Lookup("f")
	require.NotNil(t, f)
	assert.Equal(t, ir.FileLineColLoc("f.mlir", 1, 1), f.Location())
	assert.Equal(t, ir.FileLineColLoc("f.mlir", 2, 3), f.Region(0).Front().Last().Location())
}

func TestForwardReferences(t *testing.T) {
	src := `
func.func @f(%arg0: i32) -> i32 {
  "cf.br"()[^bb2] : () -> ()
^bb1:
  return %v : i32
^bb2:
  %v = arith.addi %arg0, %arg0 : i32
  "cf.br"()[^bb1] : () -> ()
}
`
	m, err := Parse(dialect.NewContext(), src, "fwd.mlir")
	require.NoError(t, err)
	assert.Empty(t, verify.Verify(m))

	blocks := m.Lookup("f").Region(0).Blocks()
	require.Len(t, blocks, 3)
	ret := blocks[1].Terminator()
	def := blocks[2].First()
	assert.Equal(t, def.MustResult(0), ret.Operands()[0])
	assert.Equal(t, 1, def.MustResult(0).NumUses())
}

func TestAttributeSyntax(t *testing.T) {
	ctx := dialect.NewContext()
	ctx.SetAllowUnregistered(true)

	src := `"test.op"() {a = "line\nbreak", b = 42 : i16, c = true, d = @callee, e = index, f, g = (i32) -> (), h = -1} : () -> ()`
	m, err := Parse(ctx, src, "attrs.mlir")
	require.NoError(t, err)

	op := m.Body().First()
	require.NotNil(t, op)

	get := func(name string) ir.Attribute {
		a, ok := op.Attr(name)
		require.True(t, ok, name)
		return a
	}
	assert.Equal(t, "line\nbreak", get("a").Str())
	assert.Equal(t, int64(42), get("b").Int())
	assert.Equal(t, ctx.IntegerType(16), get("b").Type())
	assert.True(t, get("c").Bool())
	assert.Equal(t, ir.SymbolRefAttrKind, get("d").Kind())
	assert.Equal(t, ctx.IndexType(), get("e").Type())
	assert.Equal(t, ir.UnitAttrKind, get("f").Kind())
	assert.Equal(t, "(i32) -> ()", get("g").Type().String())
	assert.Equal(t, ctx.IntegerType(64), get("h").Type())

	again, err := Parse(ctx, Print(m.Operation()), "attrs.mlir")
	require.NoError(t, err)
	assert.Equal(t, ir.MustFingerprint(m), ir.MustFingerprint(again))
}

func TestQuotedNames(t *testing.T) {
	ctx := dialect.NewContext()
	ctx.SetAllowUnregistered(true)

	src := `"test.op"() {"odd key" = @"odd symbol"} : () -> ()`
	m, err := Parse(ctx, src, "q.mlir")
	require.NoError(t, err)

	out := Print(m.Operation())
	assert.Contains(t, out, `{"odd key" = @"odd symbol"}`)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		line    int
		column  int
		message string
	}{
		{
			name:    "undefined value",
			src:     "func.func @f() -> i32 {\n  return %x : i32\n}",
			line:    2,
			column:  10,
			message: "use of undefined value %x",
		},
		{
			name:    "bad type",
			src:     "func.func @f(%a: f32) {\n  return\n}",
			line:    1,
			column:  18,
			message: "expected type",
		},
		{
			name:    "integer width",
			src:     "func.func @f(%a: i128) {\n  return\n}",
			line:    1,
			column:  18,
			message: "integer width 128",
		},
		{
			name:    "unclosed module",
			src:     "module {\n",
			line:    2,
			column:  1,
			message: "expected '}' to close module body",
		},
		{
			name:    "redefined value",
			src:     "func.func @f(%a: i32) {\n  %a = arith.constant 1 : i32\n  return\n}",
			line:    2,
			column:  3,
			message: "redefinition of value %a",
		},
		{
			name:    "undefined block",
			src:     "func.func @f() {\n  \"cf.br\"()[^nowhere] : () -> ()\n}",
			line:    2,
			column:  13,
			message: "reference to undefined block ^nowhere",
		},
		{
			name:    "type mismatch on use",
			src:     "func.func @f(%a: i32) {\n  %b = arith.addi %a, %a : i64\n  return\n}",
			line:    2,
			column:  19,
			message: "expects type i64, but it has type i32",
		},
		{
			name:    "unterminated string",
			src:     "\"test.op\"() {a = \"oops} : () -> ()",
			line:    1,
			column:  18,
			message: "unterminated string literal",
		},
		{
			name:    "result count",
			src:     "func.func @f() {\n  %a, %b = arith.constant 1 : i32\n  return\n}",
			line:    2,
			column:  3,
			message: "defines 1 result(s) but 2 name(s) were given",
		},
		{
			name:    "zero result count",
			src:     "func.func @f() {\n  %a:0 = arith.constant 1 : i32\n  return\n}",
			line:    2,
			column:  6,
			message: "result count must be a positive integer",
		},
		{
			name:    "result group count",
			src:     "func.func @f() {\n  %a:2 = arith.constant 1 : i32\n  return\n}",
			line:    2,
			column:  3,
			message: "defines 1 result(s) but 2 name(s) were given",
		},
		{
			name:    "unknown custom syntax",
			src:     "func.func @f() {\n  cf.br ^bb1\n}",
			line:    2,
			column:  3,
			message: "custom syntax for 'cf.br' is not supported",
		},
		{
			name:    "arity at construction",
			src:     "func.func @f(%a: i32) {\n  %b = \"arith.addi\"(%a) : (i32) -> i32\n  return\n}",
			line:    2,
			column:  8,
			message: "expected 2 operand(s), got 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(dialect.NewContext(), tt.src, "bad.mlir")
			require.Error(t, err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "got %T: %v", err, err)
			assert.Equal(t, "bad.mlir", pe.Filename)
			assert.Equal(t, tt.line, pe.Line, pe.Error())
			assert.Equal(t, tt.column, pe.Column, pe.Error())
			assert.Contains(t, pe.Message, tt.message)
			assert.True(t, strings.HasPrefix(pe.Error(), fmt.Sprintf("bad.mlir:%d:%d: ", tt.line, tt.column)))
		})
	}
}

func TestParseErrorDiagnostic(t *testing.T) {
	var diags []ir.Diagnostic
	_, err := Parse(dialect.NewContext(), "module {\n  return %x : i32\n}", "d.mlir",
		WithDiagnostics(func(d ir.Diagnostic) { diags = append(diags, d) }))
	require.Error(t, err)

	require.Len(t, diags, 1)
	assert.Equal(t, ir.SeverityError, diags[0].Severity)
	assert.Equal(t, ir.FileLineColLoc("d.mlir", 2, 10), diags[0].Location)
}

func TestUnregisteredOperationsParse(t *testing.T) {
	ctx := dialect.NewContext()
	m, err := Parse(ctx, `"custom.thing"() : () -> ()`, "u.mlir")
	require.NoError(t, err)

	errs := verify.Verify(m)
	require.Len(t, errs, 1)
	assert.Equal(t, verify.ErrUnknownOperation, errs[0].Code)
}

func TestHandWrittenPrettySyntax(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		check func(t *testing.T, m *ir.Module)
	}{
		{
			name: "multi-result definition",
			src: `func.func @f() -> i32 {
  %p:2 = "test.pair"() : () -> (i32, i32)
  %s = arith.addi %p#1, %p#0 : i32
  return %s : i32
}`,
			check: func(t *testing.T, m *ir.Module) {
				body := m.Body().Operations()[0].Region(0).Front().Operations()
				require.Len(t, body, 3)
				pair, add := body[0], body[1]
				require.Equal(t, 2, pair.NumResults())
				assert.Equal(t, []*ir.Value{pair.MustResult(1), pair.MustResult(0)}, add.Operands())
			},
		},
		{
			name: "result selected before definition",
			src: `func.func @f() -> i32 {
  "cf.br"()[^bb1] : () -> ()
^bb2:
  %s = arith.addi %q#0, %q#1 : i32
  return %s : i32
^bb1:
  %q:2 = "test.pair"() : () -> (i32, i32)
  "cf.br"()[^bb2] : () -> ()
}`,
			check: func(t *testing.T, m *ir.Module) {
				blocks := m.Body().Operations()[0].Region(0).Blocks()
				require.Len(t, blocks, 3)
				pair := blocks[2].Operations()[0]
				add := blocks[1].Operations()[0]
				assert.Equal(t, []*ir.Value{pair.MustResult(0), pair.MustResult(1)}, add.Operands())
			},
		},
		{
			name: "nested module",
			src: `module {
  module @inner {
    func.func @g() {
      return
    }
  }
  func.func @f() {
    return
  }
}`,
			check: func(t *testing.T, m *ir.Module) {
				ops := m.Body().Operations()
				require.Len(t, ops, 2)
				inner := ops[0]
				assert.Equal(t, ir.ModuleOp, inner.Name())
				assert.Equal(t, "inner", ir.SymbolName(inner))
				nested := inner.Region(0).Front().Operations()
				require.Len(t, nested, 1)
				assert.Equal(t, "g", ir.SymbolName(nested[0]))
				assert.Equal(t, "f", ir.SymbolName(ops[1]))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := dialect.NewContext()
			ctx.SetAllowUnregistered(true)
			m, err := Parse(ctx, tt.src, "hand.mlir")
			require.NoError(t, err)
			tt.check(t, m)

			for _, pretty := range []bool{false, true} {
				text := Print(m.Operation(), WithPrettyFunctions(pretty))
				again, err := Parse(ctx, text, "hand.mlir")
				require.NoError(t, err, text)
				assert.Equal(t, ir.MustFingerprint(m), ir.MustFingerprint(again), text)
			}
		})
	}
}

func TestPrettyNestedModule(t *testing.T) {
	ctx := dialect.NewContext()
	m, err := Parse(ctx, `module {
  module @inner {
  }
}`, "n.mlir")
	require.NoError(t, err)
	assert.Equal(t, "module {\n  module @inner {\n  }\n}\n", Print(m.Operation(), WithPrettyFunctions(true)))
	assert.Contains(t, Print(m.Operation()), `"builtin.module"() ({`)
}

func TestSelectingAllResultsOfAGroupOnly(t *testing.T) {
	ctx := dialect.NewContext()
	ctx.SetAllowUnregistered(true)
	_, err := Parse(ctx, `func.func @f() -> i32 {
  %p:2 = "test.pair"() : () -> (i32, i32)
  return %p : i32
}`, "g.mlir")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use of undefined value %p")
}

func TestGenericModuleInput(t *testing.T) {
	ctx := dialect.NewContext()
	m, err := testutil.MaxModule(ctx)
	require.NoError(t, err)

	// Print the module operation itself in generic form.
	text := Print(m.Operation())
	generic := strings.Replace(text, "module {", `"builtin.module"() ({`, 1)
	generic = strings.TrimSuffix(generic, "}\n") + "}) : () -> ()\n"

	parsed, err := Parse(ctx, generic, "g.mlir")
	require.NoError(t, err, generic)
	assert.Equal(t, ir.MustFingerprint(m), ir.MustFingerprint(parsed))
}

func TestRoundTripProperty(t *testing.T) {
	ctx := dialect.NewContext()

	rapid.Check(t, func(t *rapid.T) {
		ty := rapid.SampledFrom([]ir.Type{ctx.IntegerType(8), ctx.IntegerType(32), ctx.IndexType()}).Draw(t, "type")
		nargs := rapid.IntRange(1, 3).Draw(t, "args")
		nops := rapid.IntRange(0, 12).Draw(t, "ops")
		pretty := rapid.Bool().Draw(t, "pretty")

		inputs := make([]ir.Type, nargs)
		for i := range inputs {
			inputs[i] = ty
		}
		m := ir.NewModule(ctx, ir.UnknownLoc())
		f, entry, err := fn.NewFunc(ctx, "f", ctx.MustFunctionType(inputs, []ir.Type{ty}), ir.UnknownLoc())
		if err != nil {
			t.Fatal(err)
		}
		if err := f.AppendTo(m.Body()); err != nil {
			t.Fatal(err)
		}

		values := entry.Arguments()
		for i := 0; i < nops; i++ {
			var op *ir.Operation
			if rapid.Bool().Draw(t, fmt.Sprintf("const%d", i)) {
				op, err = arith.Constant(ctx, ty, rapid.Int64().Draw(t, fmt.Sprintf("v%d", i)), ir.UnknownLoc())
			} else {
				kind := rapid.SampledFrom(arith.BinaryOps).Draw(t, fmt.Sprintf("kind%d", i))
				lhs := rapid.SampledFrom(values).Draw(t, fmt.Sprintf("lhs%d", i))
				rhs := rapid.SampledFrom(values).Draw(t, fmt.Sprintf("rhs%d", i))
				op, err = arith.Binary(kind, lhs, rhs, ir.UnknownLoc())
			}
			if err != nil {
				t.Fatal(err)
			}
			if err := op.AppendTo(entry); err != nil {
				t.Fatal(err)
			}
			values = append(values, op.MustResult(0))
		}
		ret, err := fn.Return(ctx, []*ir.Value{values[len(values)-1]}, ir.UnknownLoc())
		if err != nil {
			t.Fatal(err)
		}
		if err := ret.AppendTo(entry); err != nil {
			t.Fatal(err)
		}

		text := Print(m.Operation(), WithPrettyFunctions(pretty))
		parsed, err := Parse(ctx, text, "prop.mlir")
		if err != nil {
			t.Fatalf("parse failed: %v\n%s", err, text)
		}
		if ir.MustFingerprint(m) != ir.MustFingerprint(parsed) {
			t.Fatalf("fingerprint changed after round trip:\n%s", text)
		}
	})
}
