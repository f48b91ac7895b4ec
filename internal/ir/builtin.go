package ir

import "fmt"

// Builtin operation kinds, loaded into every Context.
const (
	ModuleOp         = "builtin.module"
	UnrealizedCastOp = "builtin.unrealized_conversion_cast"
)

// SymNameAttr is the attribute holding the name of a symbol-defining
// operation.
const SymNameAttr = "sym_name"

func builtinDialect() Dialect {
	return Dialect{
		Name: "builtin",
		Operations: []OpDefinition{
			{
				Name:              ModuleOp,
				Summary:           "top-level container",
				Regions:           1,
				NoTerminator:      true,
				IsolatedFromAbove: true,
				Verify:            verifyModuleOp,
			},
			{
				Name:     UnrealizedCastOp,
				Summary:  "type materialization during conversion",
				Operands: 1,
				Results:  1,
			},
		},
	}
}

func verifyModuleOp(op *Operation) error {
	r := op.Region(0)
	if r.NumBlocks() != 1 {
		return fmt.Errorf("expected a single block in the body, got %d", r.NumBlocks())
	}
	if n := r.Front().NumArguments(); n != 0 {
		return fmt.Errorf("body block must not have arguments, got %d", n)
	}
	return nil
}

// UnrealizedCast creates a cast of v to type to. Conversion passes insert
// these where converted and unconverted values meet.
func UnrealizedCast(v *Value, to Type, loc Location) (*Operation, error) {
	return NewOperation(v.Type().Context(), OperationState{
		Name:        UnrealizedCastOp,
		Location:    loc,
		Operands:    []*Value{v},
		ResultTypes: []Type{to},
	})
}

// SymbolName returns the sym_name of op, or "" when op defines no symbol.
func SymbolName(op *Operation) string {
	a, ok := op.Attr(SymNameAttr)
	if !ok || a.Kind() != StringAttrKind {
		return ""
	}
	return a.Str()
}
