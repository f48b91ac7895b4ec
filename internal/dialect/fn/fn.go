// Package fn defines the func dialect: function definitions, calls and
// returns.
package fn

import (
	"github.com/roach88/irkit/internal/dialect/traits"
	"github.com/roach88/irkit/internal/ir"
)

// Operation kinds.
const (
	FuncOp   = "func.func"
	ReturnOp = "func.return"
	CallOp   = "func.call"
)

// Dialect returns the func operation definitions.
func Dialect() ir.Dialect {
	return ir.Dialect{
		Name: "func",
		Operations: []ir.OpDefinition{
			{
				Name:              FuncOp,
				Summary:           "function definition",
				Regions:           1,
				IsolatedFromAbove: true,
				Symbol:            true,
				Verify:            traits.Function,
			},
			{
				Name:       ReturnOp,
				Summary:    "return from a function",
				Operands:   ir.Variadic,
				Terminator: true,
				Verify: func(op *ir.Operation) error {
					return traits.Return(op, FuncOp)
				},
			},
			{
				Name:     CallOp,
				Summary:  "direct call",
				Operands: ir.Variadic,
				Results:  ir.Variadic,
				Verify:   traits.Call,
			},
		},
	}
}

// Option adjusts a function created by Func or NewFunc.
type Option func(*funcConfig)

type funcConfig struct {
	emitCInterface bool
}

// WithEmitCInterface marks the function with llvm.emit_c_interface.
func WithEmitCInterface() Option {
	return func(c *funcConfig) { c.emitCInterface = true }
}

// Func creates func.func named name with the given type and body.
func Func(ctx *ir.Context, name string, fnType ir.Type, body *ir.Region, loc ir.Location, opts ...Option) (*ir.Operation, error) {
	var cfg funcConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var extra []ir.NamedAttribute
	if cfg.emitCInterface {
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

// NewFunc creates func.func with an entry block whose arguments match the
// function inputs and returns both.
func NewFunc(ctx *ir.Context, name string, fnType ir.Type, loc ir.Location, opts ...Option) (*ir.Operation, *ir.Block, error) {
	body, entry := traits.NewBody(fnType)
	op, err := Func(ctx, name, fnType, body, loc, opts...)
	if err != nil {
		return nil, nil, err
	}
	return op, entry, nil
}

// Return creates func.return of values.
func Return(ctx *ir.Context, values []*ir.Value, loc ir.Location) (*ir.Operation, error) {
	return ir.NewOperation(ctx, ir.OperationState{
		Name:     ReturnOp,
		Location: loc,
		Operands: values,
	})
}

// Call creates func.call of callee.
func Call(ctx *ir.Context, callee string, args []*ir.Value, results []ir.Type, loc ir.Location) (*ir.Operation, error) {
	return ir.NewOperation(ctx, ir.OperationState{
		Name:        CallOp,
		Location:    loc,
		Operands:    args,
		ResultTypes: results,
		Attributes:  []ir.NamedAttribute{{Name: traits.CalleeAttr, Value: ctx.SymbolRefAttr(callee)}},
	})
}
