// Package arith defines the high-level integer arithmetic dialect.
//
// Arithmetic operations accept integer and index operands. Binary operations
// require both operands and the result to share a type.
package arith

import (
	"fmt"

	"github.com/roach88/irkit/internal/dialect/traits"
	"github.com/roach88/irkit/internal/ir"
)

// Operation kinds.
const (
	ConstantOp = "arith.constant"
	AddIOp     = "arith.addi"
	SubIOp     = "arith.subi"
	MulIOp     = "arith.muli"
	DivSIOp    = "arith.divsi"
	DivUIOp    = "arith.divui"
	RemSIOp    = "arith.remsi"
	RemUIOp    = "arith.remui"
	AndIOp     = "arith.andi"
	OrIOp      = "arith.ori"
	XOrIOp     = "arith.xori"
	ShLIOp     = "arith.shli"
	ShRSIOp    = "arith.shrsi"
	ShRUIOp    = "arith.shrui"
	CmpIOp     = "arith.cmpi"
	SelectOp   = "arith.select"
)

// BinaryOps lists the two-operand integer operations.
var BinaryOps = []string{
	AddIOp, SubIOp, MulIOp,
	DivSIOp, DivUIOp, RemSIOp, RemUIOp,
	AndIOp, OrIOp, XOrIOp,
	ShLIOp, ShRSIOp, ShRUIOp,
}

// Dialect returns the arith operation definitions.
func Dialect() ir.Dialect {
	ops := []ir.OpDefinition{
		{
			Name:    ConstantOp,
			Summary: "integer constant",
			Results: 1,
			Verify:  verifyConstant,
		},
		{
			Name:     CmpIOp,
			Summary:  "integer comparison",
			Operands: 2,
			Results:  1,
			Verify: func(op *ir.Operation) error {
				return traits.Comparison(op, traits.IntegerLikeOperands)
			},
		},
		{
			Name:     SelectOp,
			Summary:  "choose between two values",
			Operands: 3,
			Results:  1,
			Verify:   traits.Select,
		},
	}
	for _, name := range BinaryOps {
		ops = append(ops, ir.OpDefinition{
			Name:     name,
			Summary:  "binary integer operation",
			Operands: 2,
			Results:  1,
			Verify:   verifyBinary,
		})
	}
	return ir.Dialect{Name: "arith", Operations: ops}
}

func verifyConstant(op *ir.Operation) error {
	if !op.ResultTypes()[0].IsIntegerLike() {
		return &ir.TypeMismatchError{Op: op.Name(), Message: fmt.Sprintf("result must be integer-like, got %s", op.ResultTypes()[0])}
	}
	return traits.Constant(op)
}

func verifyBinary(op *ir.Operation) error {
	if err := traits.IntegerLikeOperands(op); err != nil {
		return err
	}
	return traits.SameOperandsAndResultType(op)
}

// Constant creates arith.constant of type t holding v.
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

// Binary creates the binary operation name with the type of lhs as result.
func Binary(name string, lhs, rhs *ir.Value, loc ir.Location) (*ir.Operation, error) {
	return ir.NewOperation(lhs.Type().Context(), ir.OperationState{
		Name:        name,
		Location:    loc,
		Operands:    []*ir.Value{lhs, rhs},
		ResultTypes: []ir.Type{lhs.Type()},
	})
}

// AddI creates arith.addi.
func AddI(lhs, rhs *ir.Value, loc ir.Location) (*ir.Operation, error) {
	return Binary(AddIOp, lhs, rhs, loc)
}

// SubI creates arith.subi.
func SubI(lhs, rhs *ir.Value, loc ir.Location) (*ir.Operation, error) {
	return Binary(SubIOp, lhs, rhs, loc)
}

// MulI creates arith.muli.
func MulI(lhs, rhs *ir.Value, loc ir.Location) (*ir.Operation, error) {
	return Binary(MulIOp, lhs, rhs, loc)
}

// CmpI creates arith.cmpi with the given predicate.
func CmpI(predicate string, lhs, rhs *ir.Value, loc ir.Location) (*ir.Operation, error) {
	ctx := lhs.Type().Context()
	if !traits.IsPredicate(predicate) {
		return nil, fmt.Errorf("arith.cmpi: unknown predicate %q", predicate)
	}
	return ir.NewOperation(ctx, ir.OperationState{
		Name:        CmpIOp,
		Location:    loc,
		Operands:    []*ir.Value{lhs, rhs},
		ResultTypes: []ir.Type{ctx.IntegerType(1)},
		Attributes:  []ir.NamedAttribute{{Name: traits.PredicateAttr, Value: ctx.StringAttr(predicate)}},
	})
}

// Select creates arith.select.
func Select(cond, trueValue, falseValue *ir.Value, loc ir.Location) (*ir.Operation, error) {
	return ir.NewOperation(cond.Type().Context(), ir.OperationState{
		Name:        SelectOp,
		Location:    loc,
		Operands:    []*ir.Value{cond, trueValue, falseValue},
		ResultTypes: []ir.Type{trueValue.Type()},
	})
}
