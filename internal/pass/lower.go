package pass

import (
	"context"
	"fmt"

	"github.com/roach88/irkit/internal/dialect/fn"
	"github.com/roach88/irkit/internal/ir"
)

// Names of the conversion passes.
const (
	ArithToLLVMName    = "convert-arith-to-llvm"
	CFToLLVMName       = "convert-cf-to-llvm"
	FuncToLLVMName     = "convert-func-to-llvm"
	ReconcileCastsName = "reconcile-unrealized-casts"
)

type arithToLLVM struct{}

// ConvertArithToLLVM rewrites arith operations below the anchor into their
// llvm counterparts. index values become i64; producers and users that are
// not converted yet are bridged with unrealized conversion casts.
func ConvertArithToLLVM() Pass { return arithToLLVM{} }

func (arithToLLVM) Name() string { return ArithToLLVMName }

func (arithToLLVM) Run(ctx context.Context, op *ir.Operation) error {
	c := newConverter(op.Context())
	for _, o := range ir.PreOrder(op) {
		if o == op || o.Block() == nil {
			continue
		}
		if _, err := c.arith(o); err != nil {
			return err
		}
	}
	return nil
}

type cfToLLVM struct{}

// ConvertCFToLLVM rewrites cf.br and cf.cond_br into llvm.br and
// llvm.cond_br, converting the signatures of their destination blocks.
func ConvertCFToLLVM() Pass { return cfToLLVM{} }

func (cfToLLVM) Name() string { return CFToLLVMName }

func (cfToLLVM) Run(ctx context.Context, op *ir.Operation) error {
	c := newConverter(op.Context())
	for _, o := range ir.PreOrder(op) {
		if o == op || o.Block() == nil {
			continue
		}
		if _, err := c.cf(o); err != nil {
			return err
		}
	}
	return nil
}

type funcToLLVM struct {
	arith bool
}

// FuncOption configures ConvertFuncToLLVM.
type FuncOption func(*funcToLLVM)

// WithoutArithPatterns leaves arith operations in converted bodies for a
// later convert-arith-to-llvm run. Branches are always converted, since
// the signatures of their destination blocks change.
func WithoutArithPatterns() FuncOption {
	return func(p *funcToLLVM) { p.arith = false }
}

// ConvertFuncToLLVM replaces every func.func below the anchor with an
// llvm.func and converts func.return, func.call and the cf branches of the
// body. By default the arith patterns run inside the converted bodies too.
func ConvertFuncToLLVM(opts ...FuncOption) Pass {
	p := &funcToLLVM{arith: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *funcToLLVM) Name() string { return FuncToLLVMName }

func (p *funcToLLVM) Run(ctx context.Context, op *ir.Operation) error {
	c := newConverter(op.Context())
	for _, f := range collect(op, fn.FuncOp) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.function(f, p.arith); err != nil {
			return err
		}
	}
	return nil
}

type reconcileCasts struct{}

// ReconcileUnrealizedCasts removes the casts left by partial conversions.
// Unused casts are erased, identity casts and A->B->A round trips are
// folded, repeating until nothing changes. A cast that survives is an
// error.
func ReconcileUnrealizedCasts() Pass { return reconcileCasts{} }

func (reconcileCasts) Name() string { return ReconcileCastsName }

func (reconcileCasts) Run(ctx context.Context, op *ir.Operation) error {
	r := NewRewriter(op.Context())
	for changed := true; changed; {
		changed = false
		for _, o := range ir.PostOrder(op) {
			if o.Name() != ir.UnrealizedCastOp || o.Block() == nil {
				continue
			}
			folded, err := foldCast(r, o)
			if err != nil {
				return err
			}
			changed = changed || folded
		}
	}

	for _, o := range ir.PreOrder(op) {
		if o.Name() != ir.UnrealizedCastOp {
			continue
		}
		in, out := o.Operands()[0], o.MustResult(0)
		return fmt.Errorf("unresolved conversion cast from %s to %s at %s", in.Type(), out.Type(), o.Location())
	}
	return nil
}

func foldCast(r *Rewriter, cast *ir.Operation) (bool, error) {
	in, out := cast.Operands()[0], cast.MustResult(0)
	switch {
	case !out.HasUses():
	case in.Type() == out.Type():
		out.ReplaceAllUsesWith(in)
	default:
		def := in.DefiningOp()
		if def == nil || def.Name() != ir.UnrealizedCastOp {
			return false, nil
		}
		src := def.Operands()[0]
		if src.Type() != out.Type() {
			return false, nil
		}
		out.ReplaceAllUsesWith(src)
	}
	return true, r.EraseOp(cast)
}
