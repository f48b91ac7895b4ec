// Package llvm defines the low-level target dialect that conversion passes
// lower into and the execution engine consumes.
//
// The dialect mirrors LLVM IR instructions one to one. It has no index
// type: every value is a fixed-width integer.
package llvm

import (
	"fmt"

	"github.com/roach88/irkit/internal/dialect/traits"
	"github.com/roach88/irkit/internal/ir"
)

// Operation kinds.
const (
	FuncOp     = "llvm.func"
	ReturnOp   = "llvm.return"
	CallOp     = "llvm.call"
	ConstantOp = "llvm.mlir.constant"
	AddOp      = "llvm.add"
	SubOp      = "llvm.sub"
	MulOp      = "llvm.mul"
	SDivOp     = "llvm.sdiv"
	UDivOp     = "llvm.udiv"
	SRemOp     = "llvm.srem"
	URemOp     = "llvm.urem"
	AndOp      = "llvm.and"
	OrOp       = "llvm.or"
	XOrOp      = "llvm.xor"
	ShlOp      = "llvm.shl"
	AShrOp     = "llvm.ashr"
	LShrOp     = "llvm.lshr"
	ICmpOp     = "llvm.icmp"
	SelectOp   = "llvm.select"
	BrOp       = "llvm.br"
	CondBrOp   = "llvm.cond_br"
)

// BinaryOps lists the two-operand integer instructions.
var BinaryOps = []string{
	AddOp, SubOp, MulOp,
	SDivOp, UDivOp, SRemOp, URemOp,
	AndOp, OrOp, XOrOp,
	ShlOp, AShrOp, LShrOp,
}

// Dialect returns the llvm operation definitions.
func Dialect() ir.Dialect {
	ops := []ir.OpDefinition{
		{
			Name:              FuncOp,
			Summary:           "LLVM function",
			Regions:           1,
			IsolatedFromAbove: true,
			Symbol:            true,
			Verify:            verifyFunc,
		},
		{
			Name:       ReturnOp,
			Summary:    "return from an LLVM function",
			Operands:   ir.Variadic,
			Terminator: true,
			Verify: lowered(func(op *ir.Operation) error {
				if op.NumOperands() > 1 {
					return &ir.ArityError{Op: op.Name(), What: "operand", Expected: 1, Actual: op.NumOperands()}
				}
				return traits.Return(op, FuncOp)
			}),
		},
		{
			Name:     CallOp,
			Summary:  "direct call",
			Operands: ir.Variadic,
			Results:  ir.Variadic,
			Verify: lowered(func(op *ir.Operation) error {
				if op.NumResults() > 1 {
					return &ir.ArityError{Op: op.Name(), What: "result", Expected: 1, Actual: op.NumResults()}
				}
				return traits.Call(op)
			}),
		},
		{
			Name:    ConstantOp,
			Summary: "integer constant",
			Results: 1,
			Verify:  lowered(traits.Constant),
		},
		{
			Name:     ICmpOp,
			Summary:  "integer comparison",
			Operands: 2,
			Results:  1,
			Verify: lowered(func(op *ir.Operation) error {
				return traits.Comparison(op, traits.IntegerOperands)
			}),
		},
		{
			Name:     SelectOp,
			Summary:  "choose between two values",
			Operands: 3,
			Results:  1,
			Verify:   lowered(traits.Select),
		},
		{
			Name:       BrOp,
			Summary:    "unconditional branch",
			Successors: 1,
			Terminator: true,
			Verify:     lowered(nil),
		},
		{
			Name:       CondBrOp,
			Summary:    "conditional branch",
			Operands:   1,
			Successors: 2,
			Terminator: true,
			Verify: lowered(func(op *ir.Operation) error {
				return traits.BoolOperand(op, 0)
			}),
		},
	}
	for _, name := range BinaryOps {
		ops = append(ops, ir.OpDefinition{
			Name:     name,
			Summary:  "binary integer instruction",
			Operands: 2,
			Results:  1,
			Verify: lowered(func(op *ir.Operation) error {
				if err := traits.IntegerOperands(op); err != nil {
					return err
				}
				return traits.SameOperandsAndResultType(op)
			}),
		})
	}
	return ir.Dialect{Name: "llvm", Operations: ops}
}

// lowered wraps a verifier with the no-index rule every llvm op obeys.
func lowered(verify func(*ir.Operation) error) func(*ir.Operation) error {
	return func(op *ir.Operation) error {
		for _, v := range op.AllOperands() {
			if v != nil && v.Type().IsIndex() {
				return &ir.TypeMismatchError{Op: op.Name(), Message: "index operands are not allowed in the llvm dialect"}
			}
		}
		if err := traits.NoIndexTypes(op); err != nil {
			return err
		}
		if verify == nil {
			return nil
		}
		return verify(op)
	}
}

func verifyFunc(op *ir.Operation) error {
	if err := traits.Function(op); err != nil {
		return err
	}
	ft, err := traits.FunctionType(op)
	if err != nil {
		return err
	}
	for _, t := range append(ft.Inputs(), ft.Results()...) {
		if !t.IsInteger() {
			return &ir.TypeMismatchError{Op: op.Name(), Message: fmt.Sprintf("signature type %s is not a fixed-width integer", t)}
		}
	}
	if len(ft.Results()) > 1 {
		return &ir.TypeMismatchError{Op: op.Name(), Message: "functions return at most one value"}
	}
	return traits.NoIndexTypes(op)
}

// Func creates llvm.func. The emitCInterface flag carries the attribute
// over from the converted func.func.
func Func(ctx *ir.Context, name string, fnType ir.Type, body *ir.Region, emitCInterface bool, loc ir.Location) (*ir.Operation, error) {
	var extra []ir.NamedAttribute
	if emitCInterface {
		extra = append(extra, ir.NamedAttribute{Name: traits.EmitCInterfaceAttr, Value: ctx.UnitAttr()})
	}
	attrs, err := traits.FuncAttributes(ctx, name, fnType, extra...)
	if err != nil {
		return nil, err
	}
	return ir.NewOperation(ctx, ir.OperationState{
		Name:       FuncOp,
		Location:   loc,
		Regions:    []*ir.Region{body},
		Attributes: attrs,
	})
}

// Return creates llvm.return.
func Return(ctx *ir.Context, values []*ir.Value, loc ir.Location) (*ir.Operation, error) {
	return ir.NewOperation(ctx, ir.OperationState{Name: ReturnOp, Location: loc, Operands: values})
}

// Call creates llvm.call.
func Call(ctx *ir.Context, callee string, args []*ir.Value, results []ir.Type, loc ir.Location) (*ir.Operation, error) {
	return ir.NewOperation(ctx, ir.OperationState{
		Name:        CallOp,
		Location:    loc,
		Operands:    args,
		ResultTypes: results,
		Attributes:  []ir.NamedAttribute{{Name: traits.CalleeAttr, Value: ctx.SymbolRefAttr(callee)}},
	})
}

// Constant creates llvm.mlir.constant.
func Constant(ctx *ir.Context, t ir.Type, v int64, loc ir.Location) (*ir.Operation, error) {
	a, err := ctx.IntegerAttr(t, v)
	if err != nil {
		return nil, err
	}
	return ir.NewOperation(ctx, ir.OperationState{
		Name:        ConstantOp,
		Location:    loc,
		ResultTypes: []ir.Type{t},
		Attributes:  []ir.NamedAttribute{{Name: traits.ValueAttr, Value: a}},
	})
}

// Binary creates the binary instruction name.
func Binary(name string, lhs, rhs *ir.Value, loc ir.Location) (*ir.Operation, error) {
	return ir.NewOperation(lhs.Type().Context(), ir.OperationState{
		Name:        name,
		Location:    loc,
		Operands:    []*ir.Value{lhs, rhs},
		ResultTypes: []ir.Type{lhs.Type()},
	})
}

// ICmp creates llvm.icmp.
func ICmp(predicate string, lhs, rhs *ir.Value, loc ir.Location) (*ir.Operation, error) {
	ctx := lhs.Type().Context()
	return ir.NewOperation(ctx, ir.OperationState{
		Name:        ICmpOp,
		Location:    loc,
		Operands:    []*ir.Value{lhs, rhs},
		ResultTypes: []ir.Type{ctx.IntegerType(1)},
		Attributes:  []ir.NamedAttribute{{Name: traits.PredicateAttr, Value: ctx.StringAttr(predicate)}},
	})
}

// Select creates llvm.select.
func Select(cond, trueValue, falseValue *ir.Value, loc ir.Location) (*ir.Operation, error) {
	return ir.NewOperation(cond.Type().Context(), ir.OperationState{
		Name:        SelectOp,
		Location:    loc,
		Operands:    []*ir.Value{cond, trueValue, falseValue},
		ResultTypes: []ir.Type{trueValue.Type()},
	})
}

// Br creates llvm.br.
func Br(ctx *ir.Context, dest *ir.Block, args []*ir.Value, loc ir.Location) (*ir.Operation, error) {
	return ir.NewOperation(ctx, ir.OperationState{
		Name:       BrOp,
		Location:   loc,
		Successors: []ir.Successor{{Block: dest, Operands: args}},
	})
}

// CondBr creates llvm.cond_br.
func CondBr(cond *ir.Value, trueDest *ir.Block, trueArgs []*ir.Value, falseDest *ir.Block, falseArgs []*ir.Value, loc ir.Location) (*ir.Operation, error) {
	return ir.NewOperation(cond.Type().Context(), ir.OperationState{
		Name:     CondBrOp,
		Location: loc,
		Operands: []*ir.Value{cond},
		Successors: []ir.Successor{
			{Block: trueDest, Operands: trueArgs},
			{Block: falseDest, Operands: falseArgs},
		},
	})
}
