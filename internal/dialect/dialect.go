// Package dialect loads the operation kinds irkit understands into an
// ir.Context.
//
// The builtin dialect is always present. The arith, cf and func dialects
// form the high-level input language; the llvm dialect is the lowered form
// accepted by the execution engine.
package dialect

import (
	"fmt"

	"github.com/roach88/irkit/internal/dialect/arith"
	"github.com/roach88/irkit/internal/dialect/cf"
	"github.com/roach88/irkit/internal/dialect/fn"
	"github.com/roach88/irkit/internal/dialect/llvm"
	"github.com/roach88/irkit/internal/ir"
)

// All returns every dialect in load order.
func All() []ir.Dialect {
	return []ir.Dialect{
		arith.Dialect(),
		cf.Dialect(),
		fn.Dialect(),
		llvm.Dialect(),
	}
}

// RegisterAll loads every dialect into ctx.
func RegisterAll(ctx *ir.Context) error {
	for _, d := range All() {
		if err := ctx.LoadDialect(d); err != nil {
			return fmt.Errorf("register dialects: %w", err)
		}
	}
	return nil
}

// NewContext returns a Context with every dialect loaded.
func NewContext() *ir.Context {
	ctx := ir.NewContext()
	if err := RegisterAll(ctx); err != nil {
		panic(err)
	}
	return ctx
}
