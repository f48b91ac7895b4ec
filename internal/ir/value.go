package ir

import "slices"

// Use records one operand slot that reads a Value.
type Use struct {
	Owner *Operation
	// Index is the position in the owner's full operand list, successor
	// operands included.
	Index int
}

// Value is an SSA value: the result of one operation or the argument of one
// block. Its type is fixed at creation.
type Value struct {
	typ   Type
	op    *Operation
	block *Block
	index int
	uses  []Use
}

// Type returns the value type.
func (v *Value) Type() Type { return v.typ }

// DefiningOp returns the operation producing v, or nil for block arguments.
func (v *Value) DefiningOp() *Operation { return v.op }

// OwnerBlock returns the block declaring v when v is a block argument.
func (v *Value) OwnerBlock() *Block { return v.block }

// IsBlockArgument reports whether v is a block argument.
func (v *Value) IsBlockArgument() bool { return v.block != nil }

// Index returns the result number or argument number of v.
func (v *Value) Index() int { return v.index }

// ParentBlock returns the block in which v becomes available: the block of
// the defining operation, or the block declaring the argument.
func (v *Value) ParentBlock() *Block {
	if v.block != nil {
		return v.block
	}
	if v.op != nil {
		return v.op.block
	}
	return nil
}

// Uses returns a snapshot of the operand slots reading v.
func (v *Value) Uses() []Use {
	return slices.Clone(v.uses)
}

// HasUses reports whether any operation reads v.
func (v *Value) HasUses() bool { return len(v.uses) > 0 }

// NumUses returns the number of operand slots reading v.
func (v *Value) NumUses() int { return len(v.uses) }

// ReplaceAllUsesWith rewires every use of v to read with instead.
func (v *Value) ReplaceAllUsesWith(with *Value) {
	if v == with {
		return
	}
	for _, u := range slices.Clone(v.uses) {
		u.Owner.setOperand(u.Index, with)
	}
}

func (v *Value) addUse(op *Operation, idx int) {
	v.uses = append(v.uses, Use{Owner: op, Index: idx})
}

func (v *Value) removeUse(op *Operation, idx int) {
	if i := slices.Index(v.uses, Use{Owner: op, Index: idx}); i >= 0 {
		v.uses = slices.Delete(v.uses, i, i+1)
	}
}
