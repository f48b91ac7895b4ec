package engine

import (
	"fmt"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/roach88/irkit/internal/dialect/llvm"
	"github.com/roach88/irkit/internal/dialect/traits"
	"github.com/roach88/irkit/internal/ir"
)

// CInterfacePrefix names the wrappers emitted for functions carrying
// llvm.emit_c_interface.
const CInterfacePrefix = "_mlir_ciface_"

var predicates = map[string]enum.IPred{
	"eq":  enum.IPredEQ,
	"ne":  enum.IPredNE,
	"slt": enum.IPredSLT,
	"sle": enum.IPredSLE,
	"sgt": enum.IPredSGT,
	"sge": enum.IPredSGE,
	"ult": enum.IPredULT,
	"ule": enum.IPredULE,
	"ugt": enum.IPredUGT,
	"uge": enum.IPredUGE,
}

// TranslateToLLVM converts a module in the llvm dialect into an LLVM IR
// module. Block arguments become phi instructions in their block.
func TranslateToLLVM(m *ir.Module) (*llir.Module, error) {
	t := &translator{
		mod:   llir.NewModule(),
		funcs: make(map[string]*llir.Func),
	}
	t.mod.SourceFilename = sourceName(m.Location())

	var defs []*ir.Operation
	for _, op := range m.Body().Operations() {
		if op.Name() != llvm.FuncOp {
			return nil, unsupported(op, "cannot translate top-level operation")
		}
		if err := t.declare(op); err != nil {
			return nil, err
		}
		defs = append(defs, op)
	}
	for _, op := range defs {
		if err := t.define(op); err != nil {
			return nil, err
		}
	}
	for _, op := range defs {
		if op.HasAttr(traits.EmitCInterfaceAttr) && !op.Region(0).Empty() {
			t.cInterface(t.funcs[ir.SymbolName(op)])
		}
	}
	return t.mod, nil
}

func sourceName(loc ir.Location) string {
	if loc.IsFileLineCol() {
		return loc.File
	}
	return "irkit"
}

type translator struct {
	mod   *llir.Module
	funcs map[string]*llir.Func

	// Per function state.
	fn     *llir.Func
	splits int
	values map[*ir.Value]value.Value
	blocks map[*ir.Block]*llir.Block
	phis   map[*ir.Value]*llir.InstPhi
}

func llvmIntType(t ir.Type) *types.IntType {
	return types.NewInt(uint64(widthOf(t)))
}

func (t *translator) declare(op *ir.Operation) error {
	ft, err := traits.FunctionType(op)
	if err != nil {
		return &CompileError{Code: CodeInvalidModule, Op: op.Name(), Message: err.Error(), Location: op.Location(), Err: err}
	}
	var ret types.Type = types.Void
	if res := ft.Results(); len(res) == 1 {
		ret = llvmIntType(res[0])
	}
	params := make([]*llir.Param, len(ft.Inputs()))
	for i, in := range ft.Inputs() {
		params[i] = llir.NewParam(fmt.Sprintf("arg%d", i), llvmIntType(in))
	}
	name := ir.SymbolName(op)
	t.funcs[name] = t.mod.NewFunc(name, ret, params...)
	return nil
}

func (t *translator) define(op *ir.Operation) error {
	f := t.funcs[ir.SymbolName(op)]
	body := op.Region(0)
	if body.Empty() {
		return nil
	}
	t.fn, t.splits = f, 0
	t.values = make(map[*ir.Value]value.Value)
	t.blocks = make(map[*ir.Block]*llir.Block)
	t.phis = make(map[*ir.Value]*llir.InstPhi)

	blocks := body.Blocks()
	for i, b := range blocks {
		lb := f.NewBlock(fmt.Sprintf("bb%d", i))
		t.blocks[b] = lb
		if i == 0 {
			for j, arg := range b.Arguments() {
				t.values[arg] = f.Params[j]
			}
			continue
		}
		// Incoming edges are filled in once every block is emitted; the
		// placeholder only fixes the phi type.
		for _, arg := range b.Arguments() {
			typ := llvmIntType(arg.Type())
			phi := lb.NewPhi(llir.NewIncoming(constant.NewInt(typ, 0), lb))
			phi.Incs = nil
			t.phis[arg] = phi
			t.values[arg] = phi
		}
	}

	for _, b := range reversePostOrder(blocks) {
		lb := t.blocks[b]
		for _, o := range b.Operations() {
			if err := t.operation(lb, o); err != nil {
				return err
			}
		}
	}
	return nil
}

// reversePostOrder orders blocks so that every block comes after its
// dominators. Unreachable blocks follow in region order.
func reversePostOrder(blocks []*ir.Block) []*ir.Block {
	seen := make(map[*ir.Block]bool, len(blocks))
	var post []*ir.Block
	var visit func(b *ir.Block)
	visit = func(b *ir.Block) {
		seen[b] = true
		succs := b.Successors()
		for i := len(succs) - 1; i >= 0; i-- {
			if !seen[succs[i]] {
				visit(succs[i])
			}
		}
		post = append(post, b)
	}
	visit(blocks[0])

	order := make([]*ir.Block, 0, len(blocks))
	for i := len(post) - 1; i >= 0; i-- {
		order = append(order, post[i])
	}
	for _, b := range blocks {
		if !seen[b] {
			order = append(order, b)
		}
	}
	return order
}

func (t *translator) value(v *ir.Value) value.Value {
	return t.values[v]
}

func (t *translator) operands(op *ir.Operation) []value.Value {
	vals := make([]value.Value, op.NumOperands())
	for i, v := range op.Operands() {
		vals[i] = t.value(v)
	}
	return vals
}

func (t *translator) operation(b *llir.Block, op *ir.Operation) error {
	args := t.operands(op)
	var result value.Value

	switch op.Name() {
	case llvm.ConstantOp:
		a, _ := op.Attr(traits.ValueAttr)
		result = constant.NewInt(llvmIntType(op.MustResult(0).Type()), a.Int())
	case llvm.AddOp:
		result = b.NewAdd(args[0], args[1])
	case llvm.SubOp:
		result = b.NewSub(args[0], args[1])
	case llvm.MulOp:
		result = b.NewMul(args[0], args[1])
	case llvm.SDivOp:
		result = b.NewSDiv(args[0], args[1])
	case llvm.UDivOp:
		result = b.NewUDiv(args[0], args[1])
	case llvm.SRemOp:
		result = b.NewSRem(args[0], args[1])
	case llvm.URemOp:
		result = b.NewURem(args[0], args[1])
	case llvm.AndOp:
		result = b.NewAnd(args[0], args[1])
	case llvm.OrOp:
		result = b.NewOr(args[0], args[1])
	case llvm.XOrOp:
		result = b.NewXor(args[0], args[1])
	case llvm.ShlOp:
		result = b.NewShl(args[0], args[1])
	case llvm.AShrOp:
		result = b.NewAShr(args[0], args[1])
	case llvm.LShrOp:
		result = b.NewLShr(args[0], args[1])
	case llvm.ICmpOp:
		a, _ := op.Attr(traits.PredicateAttr)
		pred, ok := predicates[a.Str()]
		if !ok {
			return unsupported(op, "unknown predicate %q", a.Str())
		}
		result = b.NewICmp(pred, args[0], args[1])
	case llvm.SelectOp:
		result = b.NewSelect(args[0], args[1], args[2])
	case llvm.CallOp:
		name, err := traits.Callee(op)
		if err != nil {
			return unsupported(op, "%v", err)
		}
		callee, ok := t.funcs[name]
		if !ok {
			return &CompileError{Code: CodeInvalidModule, Op: op.Name(), Message: "call to unknown function @" + name, Location: op.Location()}
		}
		call := b.NewCall(callee, args...)
		if op.NumResults() == 1 {
			result = call
		}
	case llvm.ReturnOp:
		if len(args) == 0 {
			b.NewRet(nil)
		} else {
			b.NewRet(args[0])
		}
	case llvm.BrOp:
		t.incoming(b, op, 0)
		b.NewBr(t.blocks[op.Successor(0)])
	case llvm.CondBrOp:
		onTrue, onFalse := t.blocks[op.Successor(0)], t.blocks[op.Successor(1)]
		t.incoming(b, op, 0)
		if op.Successor(0) == op.Successor(1) && len(op.SuccessorOperands(1)) > 0 {
			// A phi takes one value per predecessor block.
			onFalse = t.splitEdge(op, 1)
		} else {
			t.incoming(b, op, 1)
		}
		b.NewCondBr(args[0], onTrue, onFalse)
	default:
		return unsupported(op, "no LLVM IR translation")
	}

	if result != nil {
		t.values[op.MustResult(0)] = result
	}
	return nil
}

// splitEdge emits a block that forwards branch i of op to its destination,
// so that the destination's phis see the block as the predecessor.
func (t *translator) splitEdge(op *ir.Operation, i int) *llir.Block {
	t.splits++
	eb := t.fn.NewBlock(fmt.Sprintf("split%d", t.splits))
	t.incoming(eb, op, i)
	eb.NewBr(t.blocks[op.Successor(i)])
	return eb
}

// incoming records the values branch i of op passes to its destination's
// phis.
func (t *translator) incoming(from *llir.Block, op *ir.Operation, i int) {
	dest := op.Successor(i)
	for j, v := range op.SuccessorOperands(i) {
		phi := t.phis[dest.MustArgument(j)]
		phi.Incs = append(phi.Incs, llir.NewIncoming(t.value(v), from))
	}
}

// cInterface emits a wrapper with the C interface name forwarding to f.
func (t *translator) cInterface(f *llir.Func) {
	params := make([]*llir.Param, len(f.Params))
	args := make([]value.Value, len(f.Params))
	for i, p := range f.Params {
		params[i] = llir.NewParam(p.Name(), p.Typ)
		args[i] = params[i]
	}
	w := t.mod.NewFunc(CInterfacePrefix+f.Name(), f.Sig.RetType, params...)
	entry := w.NewBlock("entry")
	call := entry.NewCall(f, args...)
	if f.Sig.RetType == types.Void {
		entry.NewRet(nil)
	} else {
		entry.NewRet(call)
	}
}
