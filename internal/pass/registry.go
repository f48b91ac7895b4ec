package pass

import (
	"maps"
	"slices"

	"github.com/roach88/irkit/internal/ir"
)

var registry = map[string]func() Pass{
	ArithToLLVMName:    ConvertArithToLLVM,
	CFToLLVMName:       ConvertCFToLLVM,
	FuncToLLVMName:     func() Pass { return ConvertFuncToLLVM() },
	ReconcileCastsName: ReconcileUnrealizedCasts,
}

// Lookup returns a fresh instance of the pass registered under name.
func Lookup(name string) (Pass, bool) {
	newPass, ok := registry[name]
	if !ok {
		return nil, false
	}
	return newPass(), true
}

// Names lists the registered pass names in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

// Standard returns the manager that lowers a module built from the func,
// arith and cf dialects to the llvm dialect.
func Standard(irctx *ir.Context, opts ...Option) *Manager {
	m := NewManager(irctx, opts...)
	m.AddPass(ConvertFuncToLLVM())
	m.AddPass(ConvertArithToLLVM())
	m.AddPass(ConvertCFToLLVM())
	m.AddPass(ReconcileUnrealizedCasts())
	return m
}
