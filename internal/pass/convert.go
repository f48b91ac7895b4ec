package pass

import (
	"fmt"

	"github.com/roach88/irkit/internal/dialect/arith"
	"github.com/roach88/irkit/internal/dialect/cf"
	"github.com/roach88/irkit/internal/dialect/fn"
	"github.com/roach88/irkit/internal/dialect/llvm"
	"github.com/roach88/irkit/internal/dialect/traits"
	"github.com/roach88/irkit/internal/ir"
)

// llvmType maps a high-level type to its llvm dialect form: index becomes
// i64 and integers stay as they are. Other types have no conversion and
// map to the zero Type.
func llvmType(t ir.Type) ir.Type {
	switch {
	case t.IsIndex():
		return t.Context().IntegerType(ir.IndexWidth)
	case t.IsInteger():
		return t
	default:
		return ir.Type{}
	}
}

func llvmTypes(types []ir.Type) ([]ir.Type, error) {
	out := make([]ir.Type, len(types))
	for i, t := range types {
		if out[i] = llvmType(t); out[i].IsNull() {
			return nil, fmt.Errorf("type %s has no llvm equivalent", t)
		}
	}
	return out, nil
}

var arithBinaryToLLVM = map[string]string{
	arith.AddIOp:  llvm.AddOp,
	arith.SubIOp:  llvm.SubOp,
	arith.MulIOp:  llvm.MulOp,
	arith.DivSIOp: llvm.SDivOp,
	arith.DivUIOp: llvm.UDivOp,
	arith.RemSIOp: llvm.SRemOp,
	arith.RemUIOp: llvm.URemOp,
	arith.AndIOp:  llvm.AndOp,
	arith.OrIOp:   llvm.OrOp,
	arith.XOrIOp:  llvm.XOrOp,
	arith.ShLIOp:  llvm.ShlOp,
	arith.ShRSIOp: llvm.AShrOp,
	arith.ShRUIOp: llvm.LShrOp,
}

// converter holds the rewrite patterns shared by the conversion passes.
type converter struct {
	ctx *ir.Context
	r   *Rewriter
}

func newConverter(ctx *ir.Context) *converter {
	return &converter{ctx: ctx, r: NewRewriter(ctx)}
}

// value returns v in its llvm type for use by anchor. A cast of an already
// converted value is read through; anything else gets a cast before anchor.
func (c *converter) value(v *ir.Value, anchor *ir.Operation) (*ir.Value, error) {
	if v == nil {
		return nil, fmt.Errorf("%s: operand refers to an erased value", anchor.Name())
	}
	t := llvmType(v.Type())
	if t.IsNull() {
		return nil, fmt.Errorf("%s: type %s has no llvm equivalent", anchor.Name(), v.Type())
	}
	if t == v.Type() {
		return v, nil
	}
	if def := v.DefiningOp(); def != nil && def.Name() == ir.UnrealizedCastOp {
		if in := def.Operands()[0]; in != nil && in.Type() == t {
			return in, nil
		}
	}
	return c.r.Cast(v, t, anchor, nil)
}

func (c *converter) values(vs []*ir.Value, anchor *ir.Operation) ([]*ir.Value, error) {
	out := make([]*ir.Value, len(vs))
	for i, v := range vs {
		lv, err := c.value(v, anchor)
		if err != nil {
			return nil, err
		}
		out[i] = lv
	}
	return out, nil
}

// replace puts the detached repl in place of op. Results whose type
// changed reach the remaining users of op through a cast back to the old
// type.
func (c *converter) replace(op, repl *ir.Operation) error {
	if err := c.r.InsertBefore(op, repl); err != nil {
		return err
	}
	values := make([]*ir.Value, op.NumResults())
	for i, old := range op.Results() {
		v := repl.MustResult(i)
		if v.Type() != old.Type() && old.HasUses() {
			cast, err := ir.UnrealizedCast(v, old.Type(), op.Location())
			if err != nil {
				return err
			}
			if err := c.r.InsertAfter(repl, cast); err != nil {
				return err
			}
			v = cast.MustResult(0)
		}
		values[i] = v
	}
	return c.r.ReplaceOp(op, values)
}

// arith reports whether op is an arith operation and converts it.
func (c *converter) arith(op *ir.Operation) (bool, error) {
	var (
		repl *ir.Operation
		err  error
	)
	loc := op.Location()

	switch name := op.Name(); name {
	case arith.ConstantOp:
		a, ok := op.Attr(traits.ValueAttr)
		if !ok || a.Kind() != ir.IntegerAttrKind || op.NumResults() != 1 {
			return true, fmt.Errorf("%s: malformed constant", name)
		}
		t := llvmType(op.ResultTypes()[0])
		if t.IsNull() {
			return true, fmt.Errorf("%s: type %s has no llvm equivalent", name, op.ResultTypes()[0])
		}
		repl, err = llvm.Constant(c.ctx, t, a.Int(), loc)

	case arith.CmpIOp:
		a, ok := op.Attr(traits.PredicateAttr)
		if !ok || a.Kind() != ir.StringAttrKind {
			return true, fmt.Errorf("%s: missing predicate", name)
		}
		operands, verr := c.values(op.Operands(), op)
		if verr != nil {
			return true, verr
		}
		repl, err = llvm.ICmp(a.Str(), operands[0], operands[1], loc)

	case arith.SelectOp:
		operands, verr := c.values(op.Operands(), op)
		if verr != nil {
			return true, verr
		}
		repl, err = llvm.Select(operands[0], operands[1], operands[2], loc)

	default:
		target, ok := arithBinaryToLLVM[name]
		if !ok {
			return false, nil
		}
		operands, verr := c.values(op.Operands(), op)
		if verr != nil {
			return true, verr
		}
		repl, err = llvm.Binary(target, operands[0], operands[1], loc)
	}

	if err != nil {
		return true, err
	}
	return true, c.replace(op, repl)
}

// cf reports whether op is a cf branch and converts it. Destination blocks
// get their signatures converted first.
func (c *converter) cf(op *ir.Operation) (bool, error) {
	if op.Name() != cf.BrOp && op.Name() != cf.CondBrOp {
		return false, nil
	}
	for _, succ := range op.Successors() {
		if err := c.r.ConvertBlockSignature(succ, llvmType); err != nil {
			return true, err
		}
	}

	operands := make([][]*ir.Value, op.NumSuccessors())
	for i := range operands {
		vs, err := c.values(op.SuccessorOperands(i), op)
		if err != nil {
			return true, err
		}
		operands[i] = vs
	}

	var (
		repl *ir.Operation
		err  error
	)
	if op.Name() == cf.BrOp {
		repl, err = llvm.Br(c.ctx, op.Successor(0), operands[0], op.Location())
	} else {
		repl, err = llvm.CondBr(op.Operands()[0], op.Successor(0), operands[0], op.Successor(1), operands[1], op.Location())
	}
	if err != nil {
		return true, err
	}
	return true, c.replace(op, repl)
}

// function replaces func.func f with an llvm.func that takes over its body,
// then converts returns, calls, branches and, when enabled, arith
// operations in the body.
func (c *converter) function(f *ir.Operation, withArith bool) error {
	name := ir.SymbolName(f)
	ft, err := traits.FunctionType(f)
	if err != nil {
		return fmt.Errorf("@%s: %w", name, err)
	}
	inputs, err := llvmTypes(ft.Inputs())
	if err != nil {
		return fmt.Errorf("@%s: %w", name, err)
	}
	results, err := llvmTypes(ft.Results())
	if err != nil {
		return fmt.Errorf("@%s: %w", name, err)
	}
	if len(results) > 1 {
		return fmt.Errorf("@%s: functions with %d results cannot be lowered", name, len(results))
	}
	lowered, err := c.ctx.FunctionType(inputs, results)
	if err != nil {
		return err
	}

	old := f.Region(0)
	for _, b := range old.Blocks() {
		if err := c.r.ConvertBlockSignature(b, llvmType); err != nil {
			return fmt.Errorf("@%s: %w", name, err)
		}
	}
	body := ir.NewRegion()
	body.TakeBody(old)

	repl, err := llvm.Func(c.ctx, name, lowered, body, f.HasAttr(traits.EmitCInterfaceAttr), f.Location())
	if err != nil {
		return err
	}
	if err := c.r.InsertBefore(f, repl); err != nil {
		return err
	}
	if err := c.r.EraseOp(f); err != nil {
		return err
	}

	for _, op := range ir.PreOrder(repl) {
		if op == repl || op.Block() == nil {
			continue
		}
		if err := c.functionBodyOp(op, withArith); err != nil {
			return fmt.Errorf("@%s: %w", name, err)
		}
	}
	return nil
}

func (c *converter) functionBodyOp(op *ir.Operation, withArith bool) error {
	switch op.Name() {
	case fn.ReturnOp:
		operands, err := c.values(op.Operands(), op)
		if err != nil {
			return err
		}
		repl, err := llvm.Return(c.ctx, operands, op.Location())
		if err != nil {
			return err
		}
		return c.replace(op, repl)

	case fn.CallOp:
		callee, err := traits.Callee(op)
		if err != nil {
			return err
		}
		args, err := c.values(op.Operands(), op)
		if err != nil {
			return err
		}
		results, err := llvmTypes(op.ResultTypes())
		if err != nil {
			return err
		}
		repl, err := llvm.Call(c.ctx, callee, args, results, op.Location())
		if err != nil {
			return err
		}
		return c.replace(op, repl)
	}

	if withArith {
		if done, err := c.arith(op); done || err != nil {
			return err
		}
	}
	_, err := c.cf(op)
	return err
}
