package engine

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/irkit/internal/dialect/llvm"
	"github.com/roach88/irkit/internal/dialect/traits"
	"github.com/roach88/irkit/internal/ir"
	"github.com/roach88/irkit/internal/verify"
)

// DefaultMaxCallDepth bounds recursion of a single invocation.
const DefaultMaxCallDepth = 1024

// Option configures Compile.
type Option func(*config)

type config struct {
	optLevel     int
	maxCallDepth int
	logger       *slog.Logger
}

// WithOptLevel sets the optimization level. Above zero, constants are
// materialized once per frame and operations on constant operands are
// folded at compile time.
func WithOptLevel(n int) Option {
	return func(c *config) { c.optLevel = n }
}

// WithMaxCallDepth sets how deep calls may nest before the invocation
// traps.
func WithMaxCallDepth(n int) Option {
	return func(c *config) { c.maxCallDepth = n }
}

// WithLogger sets the logger for compile and invocation debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Artifact is a compiled module. It is immutable and safe for concurrent
// use.
type Artifact struct {
	funcs       map[string]*function
	order       []string
	fingerprint string
	llvmIR      string
	cfg         config
}

// function is the closure program of one llvm.func.
type function struct {
	name     string
	params   []uint // bit width per parameter
	results  []uint // bit width per result
	inputs   []ir.Type
	outputs  []ir.Type
	external bool

	numSlots int
	template []uint64 // initial frame, holding folded constants
	blocks   []*block
}

type block struct {
	instrs []instr
	term   terminator
}

// instr executes one operation against the frame registers.
type instr func(x *execution, regs []uint64) error

// terminator transfers control. It returns the next block index, or -1
// when the function returns.
type terminator func(x *execution, regs []uint64) (int, error)

// Compile verifies m and compiles every llvm.func into a closure program.
func Compile(m *ir.Module, opts ...Option) (*Artifact, error) {
	cfg := config{
		maxCallDepth: DefaultMaxCallDepth,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	start := time.Now()

	if err := verify.Check(m); err != nil {
		return nil, &CompileError{Code: CodeVerification, Message: "module failed verification", Err: err}
	}
	for _, op := range ir.PreOrder(m.Operation()) {
		if op.Name() != ir.ModuleOp && op.Dialect() != "llvm" {
			return nil, unsupported(op, "only llvm dialect operations can be executed")
		}
	}

	a := &Artifact{funcs: make(map[string]*function), cfg: cfg}

	// Create every function first so that calls can bind to their callee
	// regardless of definition order.
	var bodies []*ir.Operation
	for _, op := range m.Body().Operations() {
		if op.Name() != llvm.FuncOp {
			return nil, unsupported(op, "unexpected top-level operation")
		}
		f, err := newFunction(op)
		if err != nil {
			return nil, err
		}
		a.funcs[f.name] = f
		a.order = append(a.order, f.name)
		bodies = append(bodies, op)
	}

	for _, op := range bodies {
		c := &compiler{artifact: a, fn: a.funcs[ir.SymbolName(op)], slots: make(map[*ir.Value]int), known: make(map[*ir.Value]uint64)}
		if err := c.compile(op); err != nil {
			return nil, err
		}
	}

	fp, err := ir.Fingerprint(m)
	if err != nil {
		return nil, fmt.Errorf("fingerprint module: %w", err)
	}
	a.fingerprint = fp

	llmod, err := TranslateToLLVM(m)
	if err != nil {
		return nil, err
	}
	a.llvmIR = llmod.String()

	cfg.logger.Debug("compiled module",
		"functions", len(a.order),
		"opt_level", cfg.optLevel,
		"fingerprint", fp,
		"duration", time.Since(start))
	return a, nil
}

func newFunction(op *ir.Operation) (*function, error) {
	ft, err := traits.FunctionType(op)
	if err != nil {
		return nil, &CompileError{Code: CodeInvalidModule, Op: op.Name(), Message: err.Error(), Location: op.Location(), Err: err}
	}
	f := &function{
		name:     ir.SymbolName(op),
		inputs:   ft.Inputs(),
		outputs:  ft.Results(),
		external: op.Region(0).Empty(),
	}
	for _, t := range f.inputs {
		f.params = append(f.params, widthOf(t))
	}
	for _, t := range f.outputs {
		f.results = append(f.results, widthOf(t))
	}
	return f, nil
}

// Functions lists the functions of the artifact in module order.
func (a *Artifact) Functions() []string {
	return append([]string(nil), a.order...)
}

// Signature returns the parameter and result types of the named function.
func (a *Artifact) Signature(name string) (params, results []ir.Type, ok bool) {
	f, ok := a.funcs[name]
	if !ok {
		return nil, nil, false
	}
	return append([]ir.Type(nil), f.inputs...), append([]ir.Type(nil), f.outputs...), true
}

// Fingerprint returns the fingerprint of the compiled module.
func (a *Artifact) Fingerprint() string { return a.fingerprint }

// LLVMIR returns the module as LLVM IR text.
func (a *Artifact) LLVMIR() string { return a.llvmIR }

// compiler builds the closure program of one function.
type compiler struct {
	artifact *Artifact
	fn       *function
	slots    map[*ir.Value]int
	known    map[*ir.Value]uint64 // compile-time constants, opt level > 0
	blockIdx map[*ir.Block]int
}

func (c *compiler) slot(v *ir.Value) int {
	if s, ok := c.slots[v]; ok {
		return s
	}
	s := c.fn.numSlots
	c.slots[v] = s
	c.fn.numSlots++
	return s
}

func (c *compiler) compile(op *ir.Operation) error {
	body := op.Region(0)
	if body.Empty() {
		return nil
	}

	blocks := body.Blocks()
	c.blockIdx = make(map[*ir.Block]int, len(blocks))
	for i, b := range blocks {
		c.blockIdx[b] = i
	}

	// Parameters occupy the first slots.
	for _, arg := range blocks[0].Arguments() {
		c.slot(arg)
	}
	for _, b := range blocks[1:] {
		for _, arg := range b.Arguments() {
			c.slot(arg)
		}
	}

	for _, b := range blocks {
		cb := &block{}
		for _, o := range b.Operations() {
			if o.IsTerminator() {
				term, err := c.terminator(o)
				if err != nil {
					return err
				}
				cb.term = term
				continue
			}
			in, err := c.operation(o)
			if err != nil {
				return err
			}
			if in != nil {
				cb.instrs = append(cb.instrs, in)
			}
		}
		c.fn.blocks = append(c.fn.blocks, cb)
	}

	c.fn.template = make([]uint64, c.fn.numSlots)
	for v, k := range c.known {
		c.fn.template[c.slots[v]] = k
	}
	return nil
}

func (c *compiler) operand(op *ir.Operation, i int) int {
	return c.slot(op.Operands()[i])
}

func (c *compiler) folding() bool { return c.artifact.cfg.optLevel > 0 }

// constants returns the compile-time values of op's operands, or false if
// any of them is only known at runtime.
func (c *compiler) constants(op *ir.Operation) ([]uint64, bool) {
	if !c.folding() {
		return nil, false
	}
	vals := make([]uint64, op.NumOperands())
	for i, v := range op.Operands() {
		k, ok := c.known[v]
		if !ok {
			return nil, false
		}
		vals[i] = k
	}
	return vals, true
}

func (c *compiler) operation(op *ir.Operation) (instr, error) {
	switch name := op.Name(); name {
	case llvm.ConstantOp:
		a, _ := op.Attr(traits.ValueAttr)
		res := op.MustResult(0)
		v := trunc(uint64(a.Int()), widthOf(res.Type()))
		if c.folding() {
			c.known[res] = v
			c.slot(res)
			return nil, nil
		}
		dst := c.slot(res)
		return func(_ *execution, regs []uint64) error {
			regs[dst] = v
			return nil
		}, nil

	case llvm.ICmpOp:
		a, _ := op.Attr(traits.PredicateAttr)
		cmp, ok := comparisons[a.Str()]
		if !ok {
			return nil, unsupported(op, "unknown predicate %q", a.Str())
		}
		w := widthOf(op.Operands()[0].Type())
		dst := c.slot(op.MustResult(0))
		if k, ok := c.constants(op); ok {
			c.known[op.MustResult(0)] = boolSlot(cmp(k[0], k[1], w))
			return nil, nil
		}
		lhs, rhs := c.operand(op, 0), c.operand(op, 1)
		return func(_ *execution, regs []uint64) error {
			regs[dst] = boolSlot(cmp(regs[lhs], regs[rhs], w))
			return nil
		}, nil

	case llvm.SelectOp:
		dst := c.slot(op.MustResult(0))
		if k, ok := c.constants(op); ok {
			if k[0]&1 != 0 {
				c.known[op.MustResult(0)] = k[1]
			} else {
				c.known[op.MustResult(0)] = k[2]
			}
			return nil, nil
		}
		cond, tv, fv := c.operand(op, 0), c.operand(op, 1), c.operand(op, 2)
		return func(_ *execution, regs []uint64) error {
			if regs[cond]&1 != 0 {
				regs[dst] = regs[tv]
			} else {
				regs[dst] = regs[fv]
			}
			return nil
		}, nil

	case llvm.CallOp:
		return c.call(op)

	default:
		fn, ok := binaryOps[name]
		if !ok {
			return nil, unsupported(op, "operation cannot be executed")
		}
		w := widthOf(op.MustResult(0).Type())
		dst := c.slot(op.MustResult(0))
		if k, ok := c.constants(op); ok {
			// Trapping operations stay in the program so the trap happens
			// at runtime.
			if v, err := fn(k[0], k[1], w); err == nil {
				c.known[op.MustResult(0)] = v
				return nil, nil
			}
		}
		lhs, rhs := c.operand(op, 0), c.operand(op, 1)
		return func(_ *execution, regs []uint64) error {
			v, err := fn(regs[lhs], regs[rhs], w)
			if err != nil {
				return err
			}
			regs[dst] = v
			return nil
		}, nil
	}
}

func (c *compiler) call(op *ir.Operation) (instr, error) {
	name, err := traits.Callee(op)
	if err != nil {
		return nil, unsupported(op, "%v", err)
	}
	callee, ok := c.artifact.funcs[name]
	if !ok || callee.external {
		return nil, &CompileError{
			Code:     CodeInvalidModule,
			Op:       op.Name(),
			Message:  fmt.Sprintf("call to @%s, which has no body", name),
			Location: op.Location(),
		}
	}

	args := make([]int, op.NumOperands())
	for i := range args {
		args[i] = c.operand(op, i)
	}
	dsts := make([]int, op.NumResults())
	for i := range dsts {
		dsts[i] = c.slot(op.MustResult(i))
	}

	return func(x *execution, regs []uint64) error {
		in := make([]uint64, len(args))
		for i, s := range args {
			in[i] = regs[s]
		}
		out, err := x.call(callee, in)
		if err != nil {
			return err
		}
		for i, s := range dsts {
			regs[s] = out[i]
		}
		return nil
	}, nil
}

func (c *compiler) terminator(op *ir.Operation) (terminator, error) {
	switch op.Name() {
	case llvm.ReturnOp:
		srcs := make([]int, op.NumOperands())
		for i := range srcs {
			srcs[i] = c.operand(op, i)
		}
		return func(x *execution, regs []uint64) (int, error) {
			x.ret = x.ret[:0]
			for _, s := range srcs {
				x.ret = append(x.ret, regs[s])
			}
			return -1, nil
		}, nil

	case llvm.BrOp:
		e := c.edge(op, 0)
		return func(_ *execution, regs []uint64) (int, error) {
			return e.take(regs), nil
		}, nil

	case llvm.CondBrOp:
		cond := c.operand(op, 0)
		onTrue, onFalse := c.edge(op, 0), c.edge(op, 1)
		return func(_ *execution, regs []uint64) (int, error) {
			if regs[cond]&1 != 0 {
				return onTrue.take(regs), nil
			}
			return onFalse.take(regs), nil
		}, nil
	}
	return nil, unsupported(op, "terminator cannot be executed")
}

// edge is a resolved branch: destination block plus the copies from
// successor operands into the destination's argument slots.
type edge struct {
	dest int
	srcs []int
	dsts []int
}

func (c *compiler) edge(op *ir.Operation, i int) edge {
	dest := op.Successor(i)
	e := edge{dest: c.blockIdx[dest]}
	for j, v := range op.SuccessorOperands(i) {
		e.srcs = append(e.srcs, c.slot(v))
		e.dsts = append(e.dsts, c.slot(dest.MustArgument(j)))
	}
	return e
}

// take performs the argument copies as a parallel assignment, so that a
// branch may pass block arguments back to their own block in any order.
func (e edge) take(regs []uint64) int {
	switch len(e.srcs) {
	case 0:
	case 1:
		regs[e.dsts[0]] = regs[e.srcs[0]]
	default:
		tmp := make([]uint64, len(e.srcs))
		for i, s := range e.srcs {
			tmp[i] = regs[s]
		}
		for i, d := range e.dsts {
			regs[d] = tmp[i]
		}
	}
	return e.dest
}
