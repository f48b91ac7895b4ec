package ir

import (
	"fmt"
	"slices"
)

// Block is an ordered list of operations with typed arguments.
type Block struct {
	args   []*Value
	ops    []*Operation
	region *Region
}

// NewBlock creates a detached block with one argument per type.
func NewBlock(argTypes ...Type) *Block {
	b := &Block{}
	for _, t := range argTypes {
		b.AddArgument(t)
	}
	return b
}

// AddArgument appends a block argument of type t.
func (b *Block) AddArgument(t Type) *Value {
	v := &Value{typ: t, block: b, index: len(b.args)}
	b.args = append(b.args, v)
	return v
}

// InsertArgument inserts a block argument of type t at position i.
func (b *Block) InsertArgument(i int, t Type) (*Value, error) {
	if i < 0 || i > len(b.args) {
		return nil, &IndexError{What: "block argument", Index: i, Len: len(b.args) + 1}
	}
	v := &Value{typ: t, block: b}
	b.args = slices.Insert(b.args, i, v)
	b.renumberArgs()
	return v, nil
}

// EraseArgument removes argument i. It fails with *OwnershipError while
// the argument is still used.
func (b *Block) EraseArgument(i int) error {
	if i < 0 || i >= len(b.args) {
		return &IndexError{What: "block argument", Index: i, Len: len(b.args)}
	}
	if b.args[i].HasUses() {
		return &OwnershipError{Message: fmt.Sprintf("block argument #%d is still used", i)}
	}
	b.args = slices.Delete(b.args, i, i+1)
	b.renumberArgs()
	return nil
}

func (b *Block) renumberArgs() {
	for i, a := range b.args {
		a.index = i
	}
}

// NumArguments returns the number of block arguments.
func (b *Block) NumArguments() int { return len(b.args) }

// Argument returns block argument i.
func (b *Block) Argument(i int) (*Value, error) {
	if i < 0 || i >= len(b.args) {
		return nil, &IndexError{What: "block argument", Index: i, Len: len(b.args)}
	}
	return b.args[i], nil
}

// MustArgument is like Argument but panics on error.
func (b *Block) MustArgument(i int) *Value {
	v, err := b.Argument(i)
	if err != nil {
		panic(err)
	}
	return v
}

// Arguments returns the block arguments.
func (b *Block) Arguments() []*Value { return slices.Clone(b.args) }

// ArgumentTypes returns the block argument types.
func (b *Block) ArgumentTypes() []Type {
	types := make([]Type, len(b.args))
	for i, a := range b.args {
		types[i] = a.typ
	}
	return types
}

// AppendOperation attaches op as the last operation of b.
func (b *Block) AppendOperation(op *Operation) error {
	if op.block != nil {
		return &OwnershipError{Op: op.name, Message: "operation already belongs to a block"}
	}
	b.ops = append(b.ops, op)
	op.block = b
	return nil
}

// Operations returns a snapshot of the operations in order.
func (b *Block) Operations() []*Operation { return slices.Clone(b.ops) }

// NumOperations returns the number of operations.
func (b *Block) NumOperations() int { return len(b.ops) }

// Empty reports whether b holds no operations.
func (b *Block) Empty() bool { return len(b.ops) == 0 }

// First returns the first operation or nil.
func (b *Block) First() *Operation {
	if len(b.ops) == 0 {
		return nil
	}
	return b.ops[0]
}

// Last returns the last operation or nil.
func (b *Block) Last() *Operation {
	if len(b.ops) == 0 {
		return nil
	}
	return b.ops[len(b.ops)-1]
}

// Terminator returns the last operation when it is a terminator.
func (b *Block) Terminator() *Operation {
	if last := b.Last(); last != nil && last.IsTerminator() {
		return last
	}
	return nil
}

// Successors returns the branch targets of the terminator.
func (b *Block) Successors() []*Block {
	if t := b.Last(); t != nil {
		return t.Successors()
	}
	return nil
}

// Parent returns the owning region.
func (b *Block) Parent() *Region { return b.region }

// ParentOp returns the operation owning the region of b.
func (b *Block) ParentOp() *Operation {
	if b.region == nil {
		return nil
	}
	return b.region.parent
}

// IsEntry reports whether b is the first block of its region.
func (b *Block) IsEntry() bool {
	return b.region != nil && len(b.region.blocks) > 0 && b.region.blocks[0] == b
}

// Index returns the position of op in b, or -1.
func (b *Block) Index(op *Operation) int { return b.indexOf(op) }

func (b *Block) indexOf(op *Operation) int {
	return slices.Index(b.ops, op)
}

// Region is an ordered list of blocks owned by an operation.
type Region struct {
	blocks []*Block
	parent *Operation
}

// NewRegion creates an empty detached region.
func NewRegion() *Region { return &Region{} }

// AppendBlock attaches b as the last block of r.
func (r *Region) AppendBlock(b *Block) error {
	if b.region != nil {
		return &OwnershipError{Message: "block already belongs to a region"}
	}
	r.blocks = append(r.blocks, b)
	b.region = r
	return nil
}

// RemoveBlock detaches b from r.
func (r *Region) RemoveBlock(b *Block) {
	if i := slices.Index(r.blocks, b); i >= 0 {
		r.blocks = slices.Delete(r.blocks, i, i+1)
		b.region = nil
	}
}

// TakeBody moves every block of other to the end of r.
func (r *Region) TakeBody(other *Region) {
	for _, b := range other.blocks {
		b.region = r
	}
	r.blocks = append(r.blocks, other.blocks...)
	other.blocks = nil
}

// Blocks returns a snapshot of the blocks in order.
func (r *Region) Blocks() []*Block { return slices.Clone(r.blocks) }

// NumBlocks returns the number of blocks.
func (r *Region) NumBlocks() int { return len(r.blocks) }

// Empty reports whether r holds no blocks.
func (r *Region) Empty() bool { return len(r.blocks) == 0 }

// Front returns the entry block or nil.
func (r *Region) Front() *Block {
	if len(r.blocks) == 0 {
		return nil
	}
	return r.blocks[0]
}

// BlockIndex returns the position of b in r, or -1.
func (r *Region) BlockIndex(b *Block) int { return slices.Index(r.blocks, b) }

// ParentOp returns the owning operation.
func (r *Region) ParentOp() *Operation { return r.parent }

// IsAncestor reports whether r contains b directly or through nested
// operations.
func (r *Region) IsAncestor(b *Block) bool {
	for b != nil {
		if b.region == r {
			return true
		}
		op := b.ParentOp()
		if op == nil {
			return false
		}
		b = op.block
	}
	return false
}
