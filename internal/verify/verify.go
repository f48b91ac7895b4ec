// Package verify checks the structural and type invariants of IR modules.
//
// Verification walks Module → Region → Block → Operation depth-first and
// collects every violation instead of stopping at the first one. It never
// mutates the module, so running it twice yields the same result.
package verify

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/irkit/internal/ir"
)

// Option configures a verification run.
type Option func(*config)

type config struct {
	parallelism int
	diagnostics ir.DiagnosticHandler
	logger      *slog.Logger
}

// WithParallelism verifies up to n top-level operations concurrently.
// The result is identical to a sequential run.
func WithParallelism(n int) Option {
	return func(c *config) { c.parallelism = n }
}

// WithDiagnostics emits every violation to h.
func WithDiagnostics(h ir.DiagnosticHandler) Option {
	return func(c *config) { c.diagnostics = h }
}

// WithLogger sets the logger for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Verify returns every violation found in m, or nil if m is valid.
func Verify(m *ir.Module, opts ...Option) []Error {
	cfg := config{
		parallelism: 1,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	root := m.Operation()
	ctx := m.Context()
	rootPath := segment(root, -1)

	// Module-level checks, then each top-level subtree, then symbols.
	errs := newVerifier(ctx).checkOperation(root, nil, rootPath)

	top := m.Body().Operations()
	results := make([][]Error, len(top))
	if cfg.parallelism > 1 && len(top) > 1 {
		var g errgroup.Group
		g.SetLimit(cfg.parallelism)
		for i, op := range top {
			g.Go(func() error {
				results[i] = newVerifier(ctx).subtree(op, m.Body(), rootPath+"/^bb0/"+segment(op, i))
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, op := range top {
			results[i] = newVerifier(ctx).subtree(op, m.Body(), rootPath+"/^bb0/"+segment(op, i))
		}
	}
	for _, r := range results {
		errs = append(errs, r...)
	}

	errs = append(errs, checkSymbols(m, rootPath)...)

	for _, e := range errs {
		cfg.diagnostics.Emit(ir.Diagnostic{
			Severity: ir.SeverityError,
			Message:  fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message),
			Location: e.Location,
		})
	}
	cfg.logger.Debug("verified module",
		"operations", len(top),
		"errors", len(errs),
		"parallelism", cfg.parallelism)

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Check verifies m and returns a *Failure holding every violation, or nil.
func Check(m *ir.Module, opts ...Option) error {
	if errs := Verify(m, opts...); len(errs) > 0 {
		return &Failure{Errors: errs}
	}
	return nil
}

type verifier struct {
	ctx  *ir.Context
	doms map[*ir.Region]*domTree
	errs []Error
}

func newVerifier(ctx *ir.Context) *verifier {
	return &verifier{ctx: ctx, doms: make(map[*ir.Region]*domTree)}
}

func segment(op *ir.Operation, index int) string {
	s := op.Name()
	if sym := ir.SymbolName(op); sym != "" {
		s += "@" + sym
	}
	if index >= 0 {
		s += fmt.Sprintf("[%d]", index)
	}
	return s
}

func (v *verifier) report(op *ir.Operation, path, code, format string, args ...any) {
	v.errs = append(v.errs, Error{
		Code:     code,
		Op:       op.Name(),
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
		Location: op.Location(),
	})
}

// subtree verifies op and everything nested in it.
func (v *verifier) subtree(op *ir.Operation, block *ir.Block, path string) []Error {
	v.errs = nil
	v.walk(op, block, path)
	return v.errs
}

func (v *verifier) walk(op *ir.Operation, block *ir.Block, path string) {
	v.verifyOperation(op, block, path)
	for ri, r := range op.Regions() {
		rpath := path
		if op.NumRegions() > 1 {
			rpath = fmt.Sprintf("%s/region%d", path, ri)
		}
		for bi, b := range r.Blocks() {
			bpath := fmt.Sprintf("%s/^bb%d", rpath, bi)
			for oi, nested := range b.Operations() {
				v.walk(nested, b, bpath+"/"+segment(nested, oi))
			}
		}
	}
}

// checkOperation verifies op without descending into nested operations.
func (v *verifier) checkOperation(op *ir.Operation, block *ir.Block, path string) []Error {
	v.errs = nil
	v.verifyOperation(op, block, path)
	return v.errs
}

func (v *verifier) verifyOperation(op *ir.Operation, block *ir.Block, path string) {
	if op.Block() != block {
		v.report(op, path, ErrOwnership, "operation's parent link does not match the block that holds it")
	}

	contextOK := v.checkContext(op, path)

	def := op.Definition()
	if def == nil && !v.ctx.AllowsUnregistered() {
		v.report(op, path, ErrUnknownOperation, "unknown operation kind %q", op.Name())
	}

	arityOK := true
	if def != nil {
		arityOK = v.checkArity(op, def, path)
	}

	operandsOK := v.checkOperands(op, path)

	if def != nil && def.Verify != nil && arityOK && contextOK && operandsOK {
		if err := def.Verify(op); err != nil {
			v.report(op, path, classify(err), "%s", err.Error())
		}
	}

	v.checkSuccessors(op, path)

	for ri, r := range op.Regions() {
		v.checkRegion(op, def, r, ri, path)
	}
}

// classify maps a kind predicate error onto a verification code.
func classify(err error) string {
	var (
		ae *ir.ArityError
		te *ir.TypeMismatchError
		ce *ir.ContextError
		oe *ir.OwnershipError
	)
	switch {
	case errors.As(err, &ae):
		return ErrArity
	case errors.As(err, &te):
		return ErrTypeMismatch
	case errors.As(err, &ce):
		return ErrContextMismatch
	case errors.As(err, &oe):
		return ErrOwnership
	default:
		return ErrInvalidOperation
	}
}

func (v *verifier) checkContext(op *ir.Operation, path string) bool {
	ok := true
	if op.Context() != v.ctx {
		v.report(op, path, ErrContextMismatch, "operation was created in another context")
		ok = false
	}
	for i, t := range op.ResultTypes() {
		if t.Context() != v.ctx {
			v.report(op, path, ErrContextMismatch, "result #%d type %s belongs to another context", i, t)
			ok = false
		}
	}
	for i, val := range op.AllOperands() {
		if val != nil && val.Type().Context() != v.ctx {
			v.report(op, path, ErrContextMismatch, "operand #%d belongs to another context", i)
			ok = false
		}
	}
	for _, a := range op.Attributes() {
		if a.Value.Context() != v.ctx {
			v.report(op, path, ErrContextMismatch, "attribute %q belongs to another context", a.Name)
			ok = false
		}
	}
	return ok
}

func (v *verifier) checkArity(op *ir.Operation, def *ir.OpDefinition, path string) bool {
	counts := []struct {
		what     string
		expected int
		actual   int
	}{
		{"operand", def.Operands, op.NumOperands()},
		{"result", def.Results, op.NumResults()},
		{"region", def.Regions, op.NumRegions()},
		{"successor", def.Successors, op.NumSuccessors()},
	}
	ok := true
	for _, c := range counts {
		if c.expected != ir.Variadic && c.expected != c.actual {
			err := &ir.ArityError{Op: op.Name(), What: c.what, Expected: c.expected, Actual: c.actual}
			v.report(op, path, ErrArity, "%s", err.Error())
			ok = false
		}
	}
	return ok
}

// checkOperands checks that every operand is live, in scope, dominated by
// its definition, and not captured across an isolated-from-above boundary.
// It returns false when an operand is missing altogether.
func (v *verifier) checkOperands(op *ir.Operation, path string) bool {
	ok := true
	for i, val := range op.AllOperands() {
		if val == nil {
			v.report(op, path, ErrNotDominated, "operand #%d refers to an erased value", i)
			ok = false
			continue
		}
		if code, msg := v.checkDominance(op, val); code != "" {
			v.report(op, path, code, "operand #%d %s", i, msg)
		}
	}
	return ok
}

func (v *verifier) checkDominance(user *ir.Operation, val *ir.Value) (string, string) {
	if val.IsBlockArgument() {
		if arg, err := val.OwnerBlock().Argument(val.Index()); err != nil || arg != val {
			return ErrNotDominated, "refers to a removed block argument"
		}
	}
	if def := val.DefiningOp(); def != nil && def.Block() == nil {
		return ErrNotDominated, fmt.Sprintf("is defined by detached %s", def.Name())
	}

	defBlock := val.ParentBlock()
	if defBlock == nil || defBlock.Parent() == nil {
		return ErrNotDominated, "is defined outside any region"
	}
	defRegion := defBlock.Parent()

	// Find the ancestor of user that sits directly in defRegion.
	anc := user
	var isolated *ir.Operation
	for {
		b := anc.Block()
		if b == nil {
			return ErrNotDominated, "is not defined in an enclosing region"
		}
		if b.Parent() == defRegion {
			break
		}
		parent := b.ParentOp()
		if parent == nil {
			return ErrNotDominated, "is not defined in an enclosing region"
		}
		if d := parent.Definition(); d != nil && d.IsolatedFromAbove && isolated == nil {
			isolated = parent
		}
		anc = parent
	}
	if isolated != nil {
		return ErrIsolatedFromAbove, fmt.Sprintf("is defined above isolated %s", segment(isolated, -1))
	}

	useBlock := anc.Block()
	if useBlock == defBlock {
		def := val.DefiningOp()
		if def == nil {
			return "", ""
		}
		if defBlock.Index(def) < defBlock.Index(anc) {
			return "", ""
		}
		return ErrNotDominated, fmt.Sprintf("is used before its definition by %s", def.Name())
	}

	dom := v.dominance(defRegion)
	if !dom.reachable(useBlock) {
		return "", ""
	}
	if !dom.dominates(defBlock, useBlock) {
		return ErrNotDominated, "does not dominate its use"
	}
	return "", ""
}

func (v *verifier) dominance(r *ir.Region) *domTree {
	if t, ok := v.doms[r]; ok {
		return t
	}
	t := newDomTree(r)
	v.doms[r] = t
	return t
}

func (v *verifier) checkSuccessors(op *ir.Operation, path string) {
	for i, succ := range op.Successors() {
		if succ == nil || op.ParentRegion() == nil || succ.Parent() != op.ParentRegion() {
			v.report(op, path, ErrSuccessor, "successor #%d is not in the same region", i)
			continue
		}
		if succ.IsEntry() {
			v.report(op, path, ErrSuccessor, "successor #%d is the entry block of the region", i)
		}
		operands := op.SuccessorOperands(i)
		args := succ.ArgumentTypes()
		if len(operands) != len(args) {
			v.report(op, path, ErrSuccessor, "successor #%d passes %d operand(s) to a block with %d argument(s)", i, len(operands), len(args))
			continue
		}
		for j, val := range operands {
			if val != nil && val.Type() != args[j] {
				v.report(op, path, ErrSuccessor, "successor #%d operand #%d has type %s, block argument expects %s", i, j, val.Type(), args[j])
			}
		}
	}
}

func (v *verifier) checkRegion(op *ir.Operation, def *ir.OpDefinition, r *ir.Region, ri int, path string) {
	if r.ParentOp() != op {
		v.report(op, path, ErrOwnership, "region #%d does not link back to its operation", ri)
	}

	needsTerminator := def != nil && !def.NoTerminator
	for bi, b := range r.Blocks() {
		bpath := fmt.Sprintf("%s/^bb%d", path, bi)
		if op.NumRegions() > 1 {
			bpath = fmt.Sprintf("%s/region%d/^bb%d", path, ri, bi)
		}
		if b.Parent() != r {
			v.report(op, bpath, ErrOwnership, "block does not link back to its region")
		}
		for ai, a := range b.Arguments() {
			if a.OwnerBlock() != b || a.Index() != ai {
				v.report(op, bpath, ErrOwnership, "block argument #%d does not link back to its block", ai)
			}
			if a.Type().Context() != v.ctx {
				v.report(op, bpath, ErrContextMismatch, "block argument #%d type belongs to another context", ai)
			}
		}

		ops := b.Operations()
		for oi, nested := range ops {
			if oi < len(ops)-1 && nested.IsTerminator() {
				v.report(nested, bpath+"/"+segment(nested, oi), ErrAfterTerminator,
					"terminator %s is followed by %d operation(s)", nested.Name(), len(ops)-1-oi)
			}
		}

		if !needsTerminator {
			continue
		}
		if len(ops) == 0 {
			v.report(op, bpath, ErrMissingTerminator, "block ^bb%d is empty and has no terminator", bi)
			continue
		}
		if last := ops[len(ops)-1]; !last.IsTerminator() {
			if last.IsRegistered() || !v.ctx.AllowsUnregistered() {
				v.report(last, bpath, ErrMissingTerminator, "block ^bb%d must end in a terminator, found %s", bi, last.Name())
			}
		}
	}
}
