package asm

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/irkit/internal/dialect/arith"
	"github.com/roach88/irkit/internal/dialect/fn"
	"github.com/roach88/irkit/internal/dialect/llvm"
	"github.com/roach88/irkit/internal/dialect/traits"
	"github.com/roach88/irkit/internal/ir"
)

const indentWidth = 2

// Print renders op, usually a module, in textual form.
func Print(op *ir.Operation, opts ...Option) string {
	p := newPrinter(opts)
	p.printTop(op)
	return p.b.String()
}

// Fprint writes the textual form of op to w.
func Fprint(w io.Writer, op *ir.Operation, opts ...Option) error {
	_, err := io.WriteString(w, Print(op, opts...))
	return err
}

// nameFrame numbers the values of one isolated-from-above operation.
type nameFrame struct {
	nextValue int
	nextArg   int
}

type printer struct {
	cfg    config
	b      strings.Builder
	names  map[*ir.Value]string
	frames []*nameFrame
}

func newPrinter(opts []Option) *printer {
	return &printer{cfg: newConfig(opts), names: make(map[*ir.Value]string)}
}

func isolated(op *ir.Operation) bool {
	def := op.Definition()
	return def != nil && def.IsolatedFromAbove
}

// enter opens a new numbering frame for the regions of op.
func (p *printer) enter(op *ir.Operation) {
	p.frames = append(p.frames, &nameFrame{})
	p.numberRegions(op, true)
}

func (p *printer) leave() {
	p.frames = p.frames[:len(p.frames)-1]
}

// numberRegions names every value defined in the regions of op, descending
// into nested operations that share the current frame. Entry block
// arguments of the frame owner are named %argN.
func (p *printer) numberRegions(op *ir.Operation, owner bool) {
	f := p.frames[len(p.frames)-1]
	for _, r := range op.Regions() {
		for bi, b := range r.Blocks() {
			for _, a := range b.Arguments() {
				if owner && bi == 0 {
					p.names[a] = "%arg" + strconv.Itoa(f.nextArg)
					f.nextArg++
				} else {
					p.names[a] = "%" + strconv.Itoa(f.nextValue)
					f.nextValue++
				}
			}
			for _, nested := range b.Operations() {
				p.numberResults(nested)
				if !isolated(nested) {
					p.numberRegions(nested, false)
				}
			}
		}
	}
}

func (p *printer) numberResults(op *ir.Operation) {
	f := p.frames[len(p.frames)-1]
	for _, r := range op.Results() {
		p.names[r] = "%" + strconv.Itoa(f.nextValue)
		f.nextValue++
	}
}

func (p *printer) valueName(v *ir.Value) string {
	if name, ok := p.names[v]; ok {
		return name
	}
	return "<<UNKNOWN SSA VALUE>>"
}

func (p *printer) indent(n int) {
	p.b.WriteString(strings.Repeat(" ", n))
}

func (p *printer) printTop(op *ir.Operation) {
	p.frames = append(p.frames, &nameFrame{})
	p.numberResults(op)
	if !isolated(op) {
		p.numberRegions(op, false)
	}
	if isModule(op) {
		p.printModule(op, 0)
		p.printLoc(op)
	} else {
		p.printOperation(op, 0)
	}
	p.b.WriteByte('\n')
}

func isModule(op *ir.Operation) bool {
	if op.Name() != ir.ModuleOp || op.NumOperands() != 0 || op.NumResults() != 0 || op.NumRegions() != 1 {
		return false
	}
	r := op.Region(0)
	return r.NumBlocks() == 1 && r.Front().NumArguments() == 0
}

// module [@name] [attributes {...}] {
func (p *printer) printModule(op *ir.Operation, indent int) {
	p.b.WriteString("module")
	var attrs []ir.NamedAttribute
	for _, a := range op.Attributes() {
		if a.Name == ir.SymNameAttr && a.Value.Kind() == ir.StringAttrKind {
			p.b.WriteString(" " + symbol(a.Value.Str()))
			continue
		}
		attrs = append(attrs, a)
	}
	if len(attrs) > 0 {
		p.b.WriteString(" attributes ")
		p.printAttrDict(attrs)
	}
	p.b.WriteString(" {\n")

	p.enter(op)
	for _, nested := range op.Region(0).Front().Operations() {
		p.printOperation(nested, indent+indentWidth)
		p.b.WriteByte('\n')
	}
	p.leave()

	p.indent(indent)
	p.b.WriteByte('}')
}

func (p *printer) printOperation(op *ir.Operation, indent int) {
	p.indent(indent)
	if results := op.Results(); len(results) > 0 {
		for i, r := range results {
			if i > 0 {
				p.b.WriteString(", ")
			}
			p.b.WriteString(p.valueName(r))
		}
		p.b.WriteString(" = ")
	}

	if p.cfg.pretty && p.printCustom(op, indent) {
		p.printLoc(op)
		return
	}
	p.printGeneric(op, indent)
	p.printLoc(op)
}

func (p *printer) printLoc(op *ir.Operation) {
	if p.cfg.locations {
		p.b.WriteString(" " + op.Location().String())
	}
}

// "name"(operands)[successors] (regions) {attrs} : (inputs) -> results
func (p *printer) printGeneric(op *ir.Operation, indent int) {
	p.b.WriteString(strconv.Quote(op.Name()))
	p.b.WriteByte('(')
	p.printValues(op.Operands())
	p.b.WriteByte(')')

	if n := op.NumSuccessors(); n > 0 {
		p.b.WriteByte('[')
		for i := range n {
			if i > 0 {
				p.b.WriteString(", ")
			}
			p.printSuccessor(op, i)
		}
		p.b.WriteByte(']')
	}

	if op.NumRegions() > 0 {
		if isolated(op) {
			p.enter(op)
			defer p.leave()
		}
		p.b.WriteString(" (")
		for i, r := range op.Regions() {
			if i > 0 {
				p.b.WriteString(", ")
			}
			p.printRegion(r, indent, true)
		}
		p.b.WriteByte(')')
	}

	if attrs := op.Attributes(); len(attrs) > 0 {
		p.b.WriteByte(' ')
		p.printAttrDict(attrs)
	}

	p.b.WriteString(" : ")
	p.printTypeList(op.OperandTypes(), true)
	p.b.WriteString(" -> ")
	results := op.ResultTypes()
	p.printTypeList(results, len(results) != 1 || results[0].IsFunction())
}

func (p *printer) printSuccessor(op *ir.Operation, i int) {
	succ := op.Successor(i)
	p.b.WriteString(p.blockName(succ))
	operands := op.SuccessorOperands(i)
	if len(operands) == 0 {
		return
	}
	p.b.WriteByte('(')
	p.printValues(operands)
	p.b.WriteString(" : ")
	types := make([]ir.Type, len(operands))
	for j, v := range operands {
		if v != nil {
			types[j] = v.Type()
		}
	}
	p.printTypeList(types, false)
	p.b.WriteByte(')')
}

func (p *printer) blockName(b *ir.Block) string {
	if b == nil || b.Parent() == nil {
		return "^<<DETACHED BLOCK>>"
	}
	return "^bb" + strconv.Itoa(b.Parent().BlockIndex(b))
}

// printRegion writes {...}. The entry label is omitted when the entry block
// has no arguments and is not empty, or when the caller prints the
// arguments itself (printEntry false).
func (p *printer) printRegion(r *ir.Region, indent int, printEntry bool) {
	p.b.WriteString("{\n")
	for bi, b := range r.Blocks() {
		if bi > 0 || printEntry && (b.NumArguments() > 0 || b.Empty()) {
			p.printBlockLabel(b, indent)
		}
		for _, op := range b.Operations() {
			p.printOperation(op, indent+indentWidth)
			p.b.WriteByte('\n')
		}
	}
	p.indent(indent)
	p.b.WriteByte('}')
}

func (p *printer) printBlockLabel(b *ir.Block, indent int) {
	p.indent(indent)
	p.b.WriteString(p.blockName(b))
	if args := b.Arguments(); len(args) > 0 {
		p.b.WriteByte('(')
		for i, a := range args {
			if i > 0 {
				p.b.WriteString(", ")
			}
			p.b.WriteString(p.valueName(a) + ": " + a.Type().String())
		}
		p.b.WriteByte(')')
	}
	p.b.WriteString(":\n")
}

func (p *printer) printValues(values []*ir.Value) {
	for i, v := range values {
		if i > 0 {
			p.b.WriteString(", ")
		}
		if v == nil {
			p.b.WriteString("<<NULL VALUE>>")
			continue
		}
		p.b.WriteString(p.valueName(v))
	}
}

func (p *printer) printTypeList(types []ir.Type, paren bool) {
	if paren {
		p.b.WriteByte('(')
	}
	for i, t := range types {
		if i > 0 {
			p.b.WriteString(", ")
		}
		p.b.WriteString(t.String())
	}
	if paren {
		p.b.WriteByte(')')
	}
}

func (p *printer) printAttrDict(attrs []ir.NamedAttribute) {
	p.b.WriteByte('{')
	for i, a := range attrs {
		if i > 0 {
			p.b.WriteString(", ")
		}
		if isBareIdent(a.Name) {
			p.b.WriteString(a.Name)
		} else {
			p.b.WriteString(strconv.Quote(a.Name))
		}
		if a.Value.Kind() == ir.UnitAttrKind {
			continue
		}
		p.b.WriteString(" = ")
		p.b.WriteString(attrValue(a.Value))
	}
	p.b.WriteByte('}')
}

func attrValue(a ir.Attribute) string {
	if a.Kind() == ir.SymbolRefAttrKind {
		return symbol(a.Str())
	}
	return a.String()
}

func symbol(name string) string {
	if isSuffixID(name) {
		return "@" + name
	}
	return "@" + strconv.Quote(name)
}

// -----------------------------------------------------------------------------

// printCustom writes the custom form of op after its result names and
// reports whether op has one.
func (p *printer) printCustom(op *ir.Operation, indent int) bool {
	switch name := op.Name(); {
	case isModule(op):
		p.printModule(op, indent)
		return true
	case name == fn.FuncOp:
		return p.printFunc(op, indent)
	case name == fn.ReturnOp:
		return p.printReturn(op, "return")
	case name == llvm.ReturnOp:
		return p.printReturn(op, llvm.ReturnOp)
	case name == fn.CallOp:
		return p.printCall(op)
	case name == arith.ConstantOp:
		return p.printConstant(op)
	case name == arith.CmpIOp:
		return p.printCmpI(op)
	case slices.Contains(arith.BinaryOps, name) || slices.Contains(llvm.BinaryOps, name):
		return p.printBinary(op)
	}
	return false
}

func plain(op *ir.Operation) bool {
	return op.NumSuccessors() == 0 && op.NumRegions() == 0
}

func (p *printer) printFunc(op *ir.Operation, indent int) bool {
	if op.NumOperands() != 0 || op.NumResults() != 0 || op.NumSuccessors() != 0 || op.NumRegions() != 1 {
		return false
	}
	nameAttr, ok := op.Attr(ir.SymNameAttr)
	if !ok || nameAttr.Kind() != ir.StringAttrKind {
		return false
	}
	fnType, err := traits.FunctionType(op)
	if err != nil {
		return false
	}
	body := op.Region(0)
	if !body.Empty() && !slices.Equal(body.Front().ArgumentTypes(), fnType.Inputs()) {
		return false
	}

	p.enter(op)
	defer p.leave()

	p.b.WriteString(fn.FuncOp + " " + symbol(nameAttr.Str()) + "(")
	if body.Empty() {
		p.printTypeList(fnType.Inputs(), false)
	} else {
		for i, a := range body.Front().Arguments() {
			if i > 0 {
				p.b.WriteString(", ")
			}
			p.b.WriteString(p.valueName(a) + ": " + a.Type().String())
		}
	}
	p.b.WriteByte(')')

	if results := fnType.Results(); len(results) > 0 {
		p.b.WriteString(" -> ")
		p.printTypeList(results, len(results) != 1 || results[0].IsFunction())
	}

	var extra []ir.NamedAttribute
	for _, a := range op.Attributes() {
		if a.Name != ir.SymNameAttr && a.Name != traits.FunctionTypeAttr {
			extra = append(extra, a)
		}
	}
	if len(extra) > 0 {
		p.b.WriteString(" attributes ")
		p.printAttrDict(extra)
	}

	if !body.Empty() {
		p.b.WriteByte(' ')
		p.printRegion(body, indent, false)
	}
	return true
}

func (p *printer) printReturn(op *ir.Operation, keyword string) bool {
	if op.NumResults() != 0 || !plain(op) || len(op.Attributes()) != 0 || slices.Contains(op.Operands(), nil) {
		return false
	}
	p.b.WriteString(keyword)
	if op.NumOperands() > 0 {
		p.b.WriteByte(' ')
		p.printValues(op.Operands())
		p.b.WriteString(" : ")
		p.printTypeList(op.OperandTypes(), false)
	}
	return true
}

func (p *printer) printCall(op *ir.Operation) bool {
	attrs := op.Attributes()
	if !plain(op) || len(attrs) != 1 || slices.Contains(op.Operands(), nil) {
		return false
	}
	callee, err := traits.Callee(op)
	if err != nil {
		return false
	}
	p.b.WriteString("call " + symbol(callee) + "(")
	p.printValues(op.Operands())
	p.b.WriteString(") : ")
	p.printTypeList(op.OperandTypes(), true)
	p.b.WriteString(" -> ")
	results := op.ResultTypes()
	p.printTypeList(results, len(results) != 1 || results[0].IsFunction())
	return true
}

func (p *printer) printConstant(op *ir.Operation) bool {
	attrs := op.Attributes()
	if !plain(op) || op.NumOperands() != 0 || op.NumResults() != 1 || len(attrs) != 1 || attrs[0].Name != traits.ValueAttr {
		return false
	}
	v := attrs[0].Value
	if v.Kind() != ir.IntegerAttrKind || v.Type() != op.ResultTypes()[0] {
		return false
	}
	p.b.WriteString(fmt.Sprintf("%s %d : %s", arith.ConstantOp, v.Int(), v.Type()))
	return true
}

func (p *printer) printCmpI(op *ir.Operation) bool {
	attrs := op.Attributes()
	if !plain(op) || op.NumOperands() != 2 || op.NumResults() != 1 || len(attrs) != 1 || attrs[0].Name != traits.PredicateAttr {
		return false
	}
	pred := attrs[0].Value
	if pred.Kind() != ir.StringAttrKind || !traits.IsPredicate(pred.Str()) {
		return false
	}
	operands := op.Operands()
	if slices.Contains(operands, nil) || operands[0].Type() != operands[1].Type() || !op.ResultTypes()[0].IsBool() {
		return false
	}
	p.b.WriteString(arith.CmpIOp + " " + pred.Str() + ", ")
	p.printValues(operands)
	p.b.WriteString(" : " + operands[0].Type().String())
	return true
}

func (p *printer) printBinary(op *ir.Operation) bool {
	if !plain(op) || op.NumOperands() != 2 || op.NumResults() != 1 || len(op.Attributes()) != 0 {
		return false
	}
	operands := op.Operands()
	if slices.Contains(operands, nil) {
		return false
	}
	t := op.ResultTypes()[0]
	if operands[0].Type() != t || operands[1].Type() != t {
		return false
	}
	p.b.WriteString(op.Name() + " ")
	p.printValues(operands)
	p.b.WriteString(" : " + t.String())
	return true
}
