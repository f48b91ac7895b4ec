package pass

import (
	"fmt"

	"github.com/roach88/irkit/internal/ir"
)

// Rewriter performs the IR mutations of a pass and counts them.
type Rewriter struct {
	ctx *ir.Context

	Created int
	Erased  int
}

// NewRewriter returns a rewriter for operations of ctx.
func NewRewriter(ctx *ir.Context) *Rewriter {
	return &Rewriter{ctx: ctx}
}

// Context returns the IR context the rewriter builds in.
func (r *Rewriter) Context() *ir.Context { return r.ctx }

// Changed reports whether any mutation happened.
func (r *Rewriter) Changed() bool { return r.Created > 0 || r.Erased > 0 }

// InsertBefore attaches the detached op right before anchor.
func (r *Rewriter) InsertBefore(anchor, op *ir.Operation) error {
	if err := op.InsertBefore(anchor); err != nil {
		return err
	}
	r.Created++
	return nil
}

// InsertAfter attaches the detached op right after anchor.
func (r *Rewriter) InsertAfter(anchor, op *ir.Operation) error {
	if err := op.InsertAfter(anchor); err != nil {
		return err
	}
	r.Created++
	return nil
}

// InsertAtStart attaches the detached op as the first operation of b.
func (r *Rewriter) InsertAtStart(b *ir.Block, op *ir.Operation) error {
	if first := b.First(); first != nil {
		return r.InsertBefore(first, op)
	}
	if err := op.AppendTo(b); err != nil {
		return err
	}
	r.Created++
	return nil
}

// ReplaceOp rewires every use of op's results to values and erases op.
func (r *Rewriter) ReplaceOp(op *ir.Operation, values []*ir.Value) error {
	if len(values) != op.NumResults() {
		return &ir.ArityError{Op: op.Name(), What: "replacement value", Expected: op.NumResults(), Actual: len(values)}
	}
	if err := op.ReplaceAllUsesWith(values); err != nil {
		return err
	}
	return r.EraseOp(op)
}

// ReplaceOpWithNew creates an operation from st before op, then replaces
// op with its results.
func (r *Rewriter) ReplaceOpWithNew(op *ir.Operation, st ir.OperationState) (*ir.Operation, error) {
	if st.Location.IsUnknown() {
		st.Location = op.Location()
	}
	repl, err := ir.NewOperation(r.ctx, st)
	if err != nil {
		return nil, err
	}
	if err := r.InsertBefore(op, repl); err != nil {
		return nil, err
	}
	if err := r.ReplaceOp(op, repl.Results()); err != nil {
		return nil, err
	}
	return repl, nil
}

// EraseOp erases op, which must have no remaining uses.
func (r *Rewriter) EraseOp(op *ir.Operation) error {
	if err := op.Erase(); err != nil {
		return err
	}
	r.Erased++
	return nil
}

// Cast inserts builtin.unrealized_conversion_cast of v to type to before
// anchor, or at the start of block when anchor is nil.
func (r *Rewriter) Cast(v *ir.Value, to ir.Type, anchor *ir.Operation, block *ir.Block) (*ir.Value, error) {
	loc := ir.UnknownLoc()
	if anchor != nil {
		loc = anchor.Location()
	}
	cast, err := ir.UnrealizedCast(v, to, loc)
	if err != nil {
		return nil, err
	}
	if anchor != nil {
		err = r.InsertBefore(anchor, cast)
	} else {
		err = r.InsertAtStart(block, cast)
	}
	if err != nil {
		return nil, err
	}
	return cast.MustResult(0), nil
}

// ConvertBlockSignature retypes the arguments of b with convert. Uses of a
// retyped argument read it through a cast back to the old type, inserted
// at the start of b, until their users are converted as well.
func (r *Rewriter) ConvertBlockSignature(b *ir.Block, convert func(ir.Type) ir.Type) error {
	var casts []*ir.Operation
	for i := 0; i < b.NumArguments(); i++ {
		old := b.MustArgument(i)
		t := convert(old.Type())
		if t.IsNull() {
			return fmt.Errorf("block argument #%d: no conversion for type %s", i, old.Type())
		}
		if t == old.Type() {
			continue
		}

		repl, err := b.InsertArgument(i, t)
		if err != nil {
			return err
		}
		if old.HasUses() {
			cast, err := ir.UnrealizedCast(repl, old.Type(), ir.UnknownLoc())
			if err != nil {
				return err
			}
			old.ReplaceAllUsesWith(cast.MustResult(0))
			casts = append(casts, cast)
		}
		if err := b.EraseArgument(i + 1); err != nil {
			return err
		}
	}

	// Insert in argument order ahead of the existing operations.
	for i := len(casts) - 1; i >= 0; i-- {
		if err := r.InsertAtStart(b, casts[i]); err != nil {
			return err
		}
	}
	return nil
}
