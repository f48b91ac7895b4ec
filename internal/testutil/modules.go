package testutil

import (
	"github.com/roach88/irkit/internal/dialect/arith"
	"github.com/roach88/irkit/internal/dialect/cf"
	"github.com/roach88/irkit/internal/dialect/fn"
	"github.com/roach88/irkit/internal/ir"
)

// builder appends operations to a block and remembers the first error, so
// canned modules read as straight-line code.
type builder struct {
	ctx   *ir.Context
	block *ir.Block
	err   error
}

func (b *builder) at(block *ir.Block) *builder {
	b.block = block
	return b
}

func (b *builder) add(op *ir.Operation, err error) *ir.Operation {
	if b.err != nil {
		return nil
	}
	if err != nil {
		b.err = err
		return nil
	}
	if err := op.AppendTo(b.block); err != nil {
		b.err = err
		return nil
	}
	return op
}

func (b *builder) value(op *ir.Operation, err error) *ir.Value {
	op = b.add(op, err)
	if op == nil {
		return nil
	}
	return op.MustResult(0)
}

func (b *builder) loc(line int) ir.Location {
	return ir.FileLineColLoc("testutil.mlir", line, 1)
}

func (b *builder) function(m *ir.Module, name string, inputs, results []ir.Type, opts ...fn.Option) (*ir.Operation, *ir.Block) {
	if b.err != nil {
		return nil, nil
	}
	ft, err := b.ctx.FunctionType(inputs, results)
	if err != nil {
		b.err = err
		return nil, nil
	}
	f, entry, err := fn.NewFunc(b.ctx, name, ft, b.loc(1), opts...)
	if err != nil {
		b.err = err
		return nil, nil
	}
	if err := f.AppendTo(m.Body()); err != nil {
		b.err = err
		return nil, nil
	}
	return f, entry
}

func newBlockIn(f *ir.Operation, types ...ir.Type) *ir.Block {
	blk := ir.NewBlock(types...)
	if err := f.Region(0).AppendBlock(blk); err != nil {
		panic(err)
	}
	return blk
}

// AddI32Module builds
//
//	func.func @add(%x: i32) -> i32 attributes {llvm.emit_c_interface} {
//	  %0 = arith.addi %x, %x : i32
//	  return %0 : i32
//	}
func AddI32Module(ctx *ir.Context) (*ir.Module, error) {
	m := ir.NewModule(ctx, ir.FileLineColLoc("testutil.mlir", 1, 1))
	b := &builder{ctx: ctx}
	i32 := ctx.IntegerType(32)

	_, entry := b.function(m, "add", []ir.Type{i32}, []ir.Type{i32}, fn.WithEmitCInterface())
	if b.err != nil {
		return nil, b.err
	}
	x := entry.MustArgument(0)
	sum := b.at(entry).value(arith.AddI(x, x, b.loc(2)))
	if b.err != nil {
		return nil, b.err
	}
	b.add(fn.Return(ctx, []*ir.Value{sum}, b.loc(3)))
	return m, b.err
}

// AddIndexModule builds @add(index, index) -> index returning the sum.
func AddIndexModule(ctx *ir.Context) (*ir.Module, error) {
	m := ir.NewModule(ctx, ir.FileLineColLoc("testutil.mlir", 1, 1))
	b := &builder{ctx: ctx}
	idx := ctx.IndexType()

	_, entry := b.function(m, "add", []ir.Type{idx, idx}, []ir.Type{idx})
	if b.err != nil {
		return nil, b.err
	}
	sum := b.at(entry).value(arith.AddI(entry.MustArgument(0), entry.MustArgument(1), b.loc(2)))
	if b.err != nil {
		return nil, b.err
	}
	b.add(fn.Return(ctx, []*ir.Value{sum}, b.loc(3)))
	return m, b.err
}

// MaxModule builds @max(i32, i32) -> i32 with a diamond of blocks joined
// through a block argument.
func MaxModule(ctx *ir.Context) (*ir.Module, error) {
	m := ir.NewModule(ctx, ir.FileLineColLoc("testutil.mlir", 1, 1))
	b := &builder{ctx: ctx}
	i32 := ctx.IntegerType(32)

	f, entry := b.function(m, "max", []ir.Type{i32, i32}, []ir.Type{i32})
	if b.err != nil {
		return nil, b.err
	}
	x, y := entry.MustArgument(0), entry.MustArgument(1)
	left := newBlockIn(f)
	right := newBlockIn(f)
	join := newBlockIn(f, i32)

	cond := b.at(entry).value(arith.CmpI("sgt", x, y, b.loc(2)))
	if b.err != nil {
		return nil, b.err
	}
	b.add(cf.CondBr(cond, left, nil, right, nil, b.loc(3)))
	b.at(left).add(cf.Br(ctx, join, []*ir.Value{x}, b.loc(4)))
	b.at(right).add(cf.Br(ctx, join, []*ir.Value{y}, b.loc(5)))
	b.at(join).add(fn.Return(ctx, []*ir.Value{join.MustArgument(0)}, b.loc(6)))
	return m, b.err
}

// FactorialModule builds a recursive @fact(i64) -> i64.
func FactorialModule(ctx *ir.Context) (*ir.Module, error) {
	m := ir.NewModule(ctx, ir.FileLineColLoc("testutil.mlir", 1, 1))
	b := &builder{ctx: ctx}
	i64 := ctx.IntegerType(64)

	f, entry := b.function(m, "fact", []ir.Type{i64}, []ir.Type{i64})
	if b.err != nil {
		return nil, b.err
	}
	n := entry.MustArgument(0)
	base := newBlockIn(f)
	rec := newBlockIn(f)

	one := b.at(entry).value(arith.Constant(ctx, i64, 1, b.loc(2)))
	if b.err != nil {
		return nil, b.err
	}
	cond := b.value(arith.CmpI("sle", n, one, b.loc(3)))
	if b.err != nil {
		return nil, b.err
	}
	b.add(cf.CondBr(cond, base, nil, rec, nil, b.loc(4)))

	b.at(base).add(fn.Return(ctx, []*ir.Value{one}, b.loc(5)))

	nm1 := b.at(rec).value(arith.SubI(n, one, b.loc(6)))
	if b.err != nil {
		return nil, b.err
	}
	r := b.value(fn.Call(ctx, "fact", []*ir.Value{nm1}, []ir.Type{i64}, b.loc(7)))
	if b.err != nil {
		return nil, b.err
	}
	prod := b.value(arith.MulI(n, r, b.loc(8)))
	if b.err != nil {
		return nil, b.err
	}
	b.add(fn.Return(ctx, []*ir.Value{prod}, b.loc(9)))
	return m, b.err
}

// DivModule builds @div(i32, i32) -> i32 using signed division.
func DivModule(ctx *ir.Context) (*ir.Module, error) {
	m := ir.NewModule(ctx, ir.FileLineColLoc("testutil.mlir", 1, 1))
	b := &builder{ctx: ctx}
	i32 := ctx.IntegerType(32)

	_, entry := b.function(m, "div", []ir.Type{i32, i32}, []ir.Type{i32})
	if b.err != nil {
		return nil, b.err
	}
	q := b.at(entry).value(arith.Binary(arith.DivSIOp, entry.MustArgument(0), entry.MustArgument(1), b.loc(2)))
	if b.err != nil {
		return nil, b.err
	}
	b.add(fn.Return(ctx, []*ir.Value{q}, b.loc(3)))
	return m, b.err
}

// SumToModule builds @sum(%n: index) -> index computing 0 + 1 + ... + n-1
// with a loop carried through block arguments.
func SumToModule(ctx *ir.Context) (*ir.Module, error) {
	m := ir.NewModule(ctx, ir.FileLineColLoc("testutil.mlir", 1, 1))
	b := &builder{ctx: ctx}
	idx := ctx.IndexType()

	f, entry := b.function(m, "sum", []ir.Type{idx}, []ir.Type{idx})
	if b.err != nil {
		return nil, b.err
	}
	n := entry.MustArgument(0)
	header := newBlockIn(f, idx, idx)
	body := newBlockIn(f)
	exit := newBlockIn(f)

	zero := b.at(entry).value(arith.Constant(ctx, idx, 0, b.loc(2)))
	one := b.value(arith.Constant(ctx, idx, 1, b.loc(3)))
	if b.err != nil {
		return nil, b.err
	}
	b.add(cf.Br(ctx, header, []*ir.Value{zero, zero}, b.loc(4)))

	i, acc := header.MustArgument(0), header.MustArgument(1)
	more := b.at(header).value(arith.CmpI("slt", i, n, b.loc(5)))
	if b.err != nil {
		return nil, b.err
	}
	b.add(cf.CondBr(more, body, nil, exit, nil, b.loc(6)))

	next := b.at(body).value(arith.AddI(acc, i, b.loc(7)))
	inc := b.value(arith.AddI(i, one, b.loc(8)))
	if b.err != nil {
		return nil, b.err
	}
	b.add(cf.Br(ctx, header, []*ir.Value{inc, next}, b.loc(9)))

	b.at(exit).add(fn.Return(ctx, []*ir.Value{acc}, b.loc(10)))
	return m, b.err
}
