// Package traits holds verification helpers shared by the dialects.
package traits

import (
	"fmt"
	"slices"

	"github.com/roach88/irkit/internal/ir"
)

// Attribute names shared across dialects.
const (
	FunctionTypeAttr   = "function_type"
	CalleeAttr         = "callee"
	ValueAttr          = "value"
	PredicateAttr      = "predicate"
	EmitCInterfaceAttr = "llvm.emit_c_interface"
)

// Predicates lists the integer comparison predicates in encoding order.
var Predicates = []string{"eq", "ne", "slt", "sle", "sgt", "sge", "ult", "ule", "ugt", "uge"}

// IsPredicate reports whether name is a known comparison predicate.
func IsPredicate(name string) bool {
	return slices.Contains(Predicates, name)
}

func mismatch(op *ir.Operation, format string, args ...any) error {
	return &ir.TypeMismatchError{Op: op.Name(), Message: fmt.Sprintf(format, args...)}
}

// SameOperandsAndResultType requires every operand and result to share one
// type.
func SameOperandsAndResultType(op *ir.Operation) error {
	var want ir.Type
	types := append(op.OperandTypes(), op.ResultTypes()...)
	for i, t := range types {
		if i == 0 {
			want = t
			continue
		}
		if t != want {
			return mismatch(op, "expected all operands and results to have type %s, got %s", want, t)
		}
	}
	return nil
}

// IntegerLikeOperands requires integer or index operands.
func IntegerLikeOperands(op *ir.Operation) error {
	for i, t := range op.OperandTypes() {
		if !t.IsIntegerLike() {
			return mismatch(op, "operand #%d must be integer-like, got %s", i, t)
		}
	}
	return nil
}

// IntegerOperands requires fixed-width integer operands.
func IntegerOperands(op *ir.Operation) error {
	for i, t := range op.OperandTypes() {
		if !t.IsInteger() {
			return mismatch(op, "operand #%d must be an integer, got %s", i, t)
		}
	}
	return nil
}

// NoIndexTypes rejects index-typed operands, results and block arguments of
// op's regions' entry blocks.
func NoIndexTypes(op *ir.Operation) error {
	for i, t := range op.OperandTypes() {
		if t.IsIndex() {
			return mismatch(op, "operand #%d has index type", i)
		}
	}
	for i, t := range op.ResultTypes() {
		if t.IsIndex() {
			return mismatch(op, "result #%d has index type", i)
		}
	}
	for _, r := range op.Regions() {
		for _, b := range r.Blocks() {
			for i, t := range b.ArgumentTypes() {
				if t.IsIndex() {
					return mismatch(op, "block argument #%d has index type", i)
				}
			}
		}
	}
	return nil
}

// BoolOperand requires operand i to be i1.
func BoolOperand(op *ir.Operation, i int) error {
	v, err := op.Operand(i)
	if err != nil {
		return err
	}
	if !v.Type().IsBool() {
		return mismatch(op, "operand #%d must be i1, got %s", i, v.Type())
	}
	return nil
}

// BoolResult requires a single i1 result.
func BoolResult(op *ir.Operation) error {
	r, err := op.Result(0)
	if err != nil {
		return err
	}
	if !r.Type().IsBool() {
		return mismatch(op, "result must be i1, got %s", r.Type())
	}
	return nil
}

// Comparison verifies cmpi/icmp style operations: a known predicate,
// operands of one type, i1 result.
func Comparison(op *ir.Operation, operandCheck func(*ir.Operation) error) error {
	a, ok := op.Attr(PredicateAttr)
	if !ok || a.Kind() != ir.StringAttrKind {
		return fmt.Errorf("requires a string %q attribute", PredicateAttr)
	}
	if !IsPredicate(a.Str()) {
		return fmt.Errorf("unknown predicate %q", a.Str())
	}
	if err := operandCheck(op); err != nil {
		return err
	}
	types := op.OperandTypes()
	if types[0] != types[1] {
		return mismatch(op, "operands must have the same type, got %s and %s", types[0], types[1])
	}
	return BoolResult(op)
}

// Select verifies select operations: i1 condition, both arms and the
// result of one type.
func Select(op *ir.Operation) error {
	if err := BoolOperand(op, 0); err != nil {
		return err
	}
	types := op.OperandTypes()
	res := op.ResultTypes()[0]
	if types[1] != types[2] || types[1] != res {
		return mismatch(op, "arms and result must share a type, got %s, %s and %s", types[1], types[2], res)
	}
	return nil
}

// Constant verifies constant operations: an integer value attribute whose
// type is the result type.
func Constant(op *ir.Operation) error {
	a, ok := op.Attr(ValueAttr)
	if !ok || a.Kind() != ir.IntegerAttrKind {
		return fmt.Errorf("requires an integer %q attribute", ValueAttr)
	}
	res := op.ResultTypes()[0]
	if a.Type() != res {
		return mismatch(op, "value type %s does not match result type %s", a.Type(), res)
	}
	return nil
}

// FunctionType returns the function_type attribute of a function op.
func FunctionType(op *ir.Operation) (ir.Type, error) {
	a, ok := op.Attr(FunctionTypeAttr)
	if !ok || a.Kind() != ir.TypeAttrKind || !a.Type().IsFunction() {
		return ir.Type{}, fmt.Errorf("requires a function type %q attribute", FunctionTypeAttr)
	}
	return a.Type(), nil
}

// Function verifies function-like operations: a symbol name, a function
// type, and an entry block whose arguments match the inputs. An empty body
// declares an external function.
func Function(op *ir.Operation) error {
	if ir.SymbolName(op) == "" {
		return fmt.Errorf("requires a non-empty string %q attribute", ir.SymNameAttr)
	}
	ft, err := FunctionType(op)
	if err != nil {
		return err
	}
	if a, ok := op.Attr(EmitCInterfaceAttr); ok && a.Kind() != ir.UnitAttrKind {
		return fmt.Errorf("%q must be a unit attribute", EmitCInterfaceAttr)
	}

	body := op.Region(0)
	if body.Empty() {
		return nil
	}
	got := body.Front().ArgumentTypes()
	want := ft.Inputs()
	if !slices.Equal(got, want) {
		return mismatch(op, "entry block arguments %s do not match function inputs %s", ir.FormatTypes(got), ir.FormatTypes(want))
	}
	return nil
}

// Return verifies a return against the signature of the enclosing function
// of kind funcKind.
func Return(op *ir.Operation, funcKind string) error {
	parent := op.ParentOp()
	if parent == nil || parent.Name() != funcKind {
		return fmt.Errorf("expects parent op %s", funcKind)
	}
	ft, err := FunctionType(parent)
	if err != nil {
		return err
	}
	results := ft.Results()
	got := op.OperandTypes()
	if len(got) != len(results) {
		return &ir.ArityError{Op: op.Name(), What: "operand", Expected: len(results), Actual: len(got)}
	}
	for i := range got {
		if got[i] != results[i] {
			return mismatch(op, "operand #%d has type %s but the function returns %s", i, got[i], results[i])
		}
	}
	return nil
}

// Callee returns the symbol referenced by a call operation.
func Callee(op *ir.Operation) (string, error) {
	a, ok := op.Attr(CalleeAttr)
	if !ok || a.Kind() != ir.SymbolRefAttrKind {
		return "", fmt.Errorf("requires a symbol reference %q attribute", CalleeAttr)
	}
	return a.Str(), nil
}

// Call verifies the local part of call operations.
func Call(op *ir.Operation) error {
	_, err := Callee(op)
	return err
}

// FuncAttributes builds the attribute dictionary of a function operation.
func FuncAttributes(ctx *ir.Context, name string, fnType ir.Type, extra ...ir.NamedAttribute) ([]ir.NamedAttribute, error) {
	if !fnType.IsFunction() {
		return nil, &ir.TypeMismatchError{Message: fmt.Sprintf("function %s: expected a function type, got %s", name, fnType)}
	}
	ta, err := ctx.TypeAttr(fnType)
	if err != nil {
		return nil, err
	}
	attrs := []ir.NamedAttribute{
		{Name: ir.SymNameAttr, Value: ctx.StringAttr(name)},
		{Name: FunctionTypeAttr, Value: ta},
	}
	return append(attrs, extra...), nil
}

// NewBody creates a region with an entry block whose arguments match the
// inputs of fnType.
func NewBody(fnType ir.Type) (*ir.Region, *ir.Block) {
	region := ir.NewRegion()
	entry := ir.NewBlock(fnType.Inputs()...)
	if err := region.AppendBlock(entry); err != nil {
		panic(err)
	}
	return region, entry
}
