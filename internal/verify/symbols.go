package verify

import (
	"fmt"
	"slices"

	"github.com/roach88/irkit/internal/dialect/traits"
	"github.com/roach88/irkit/internal/ir"
)

// checkSymbols verifies the module symbol table: unique names for
// symbol-defining operations and resolvable, signature-compatible callees.
func checkSymbols(m *ir.Module, rootPath string) []Error {
	var errs []Error
	report := func(op *ir.Operation, path, code, format string, args ...any) {
		errs = append(errs, Error{
			Code:     code,
			Op:       op.Name(),
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Location: op.Location(),
		})
	}

	symbols := make(map[string]*ir.Operation)
	for i, op := range m.Body().Operations() {
		name := ir.SymbolName(op)
		if name == "" {
			continue
		}
		if _, dup := symbols[name]; dup {
			report(op, rootPath+"/^bb0/"+segment(op, i), ErrSymbol, "redefinition of symbol @%s", name)
			continue
		}
		symbols[name] = op
	}

	for _, op := range ir.PreOrder(m.Operation()) {
		if !op.HasAttr(traits.CalleeAttr) {
			continue
		}
		callee, err := traits.Callee(op)
		if err != nil {
			continue
		}
		path := callPath(op)

		target, ok := symbols[callee]
		if !ok {
			report(op, path, ErrSymbol, "call to unknown symbol @%s", callee)
			continue
		}
		ft, err := traits.FunctionType(target)
		if err != nil {
			report(op, path, ErrSymbol, "@%s is not a function", callee)
			continue
		}
		if !slices.Equal(op.OperandTypes(), ft.Inputs()) || !slices.Equal(op.ResultTypes(), ft.Results()) {
			report(op, path, ErrTypeMismatch, "call signature %s -> %s does not match @%s of type %s",
				ir.FormatTypes(op.OperandTypes()), ir.FormatTypes(op.ResultTypes()), callee, ft)
		}
	}

	return errs
}

// callPath names a call by its enclosing symbol, which is enough to find it.
func callPath(op *ir.Operation) string {
	path := op.Name()
	for p := op.ParentOp(); p != nil; p = p.ParentOp() {
		path = segment(p, -1) + "/" + path
	}
	return path
}
