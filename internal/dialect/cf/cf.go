// Package cf defines the unstructured control-flow dialect: branches
// between blocks of one region.
package cf

import (
	"github.com/roach88/irkit/internal/dialect/traits"
	"github.com/roach88/irkit/internal/ir"
)

// Operation kinds.
const (
	BrOp     = "cf.br"
	CondBrOp = "cf.cond_br"
)

// Dialect returns the cf operation definitions.
func Dialect() ir.Dialect {
	return ir.Dialect{
		Name: "cf",
		Operations: []ir.OpDefinition{
			{
				Name:       BrOp,
				Summary:    "unconditional branch",
				Successors: 1,
				Terminator: true,
			},
			{
				Name:       CondBrOp,
				Summary:    "conditional branch",
				Operands:   1,
				Successors: 2,
				Terminator: true,
				Verify: func(op *ir.Operation) error {
					return traits.BoolOperand(op, 0)
				},
			},
		},
	}
}

// Br creates cf.br to dest passing args.
func Br(ctx *ir.Context, dest *ir.Block, args []*ir.Value, loc ir.Location) (*ir.Operation, error) {
	return ir.NewOperation(ctx, ir.OperationState{
		Name:       BrOp,
		Location:   loc,
		Successors: []ir.Successor{{Block: dest, Operands: args}},
	})
}

// CondBr creates cf.cond_br branching on cond.
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
