package ir

import (
	"fmt"
	"slices"
)

// Successor is a branch target with the values passed to its arguments.
type Successor struct {
	Block    *Block
	Operands []*Value
}

// OperationState collects everything needed to create an Operation.
type OperationState struct {
	Name        string
	Location    Location
	Operands    []*Value
	ResultTypes []Type
	Attributes  []NamedAttribute
	Regions     []*Region
	Successors  []Successor
}

type successor struct {
	block *Block
	start int
	count int
}

// Operation is one unit of computation. It is created detached and becomes
// owned by a Block through AppendTo, InsertBefore or Block.AppendOperation.
type Operation struct {
	ctx  *Context
	name string
	def  *OpDefinition
	loc  Location

	// operands holds the regular operands followed by every successor's
	// operand segment.
	operands    []*Value
	numOperands int
	successors  []successor

	results []*Value
	attrs   []NamedAttribute
	regions []*Region

	block *Block
}

// NewOperation creates a detached operation.
//
// When the kind is registered, fixed operand, result, region and successor
// counts are checked and mismatches fail with *ArityError. Types, attributes
// and operands from another Context fail with *ContextError. Regions that
// already have an owner fail with *OwnershipError.
func NewOperation(ctx *Context, st OperationState) (*Operation, error) {
	if ctx == nil {
		return nil, fmt.Errorf("new operation %q: nil context", st.Name)
	}
	if st.Name == "" {
		return nil, fmt.Errorf("new operation: empty name")
	}

	def, registered := ctx.Lookup(st.Name)
	if registered {
		if err := checkArity(def, st); err != nil {
			return nil, err
		}
	}

	for i, v := range st.Operands {
		if err := checkValue(ctx, st.Name, "operand", i, v); err != nil {
			return nil, err
		}
	}
	for si, s := range st.Successors {
		if s.Block == nil {
			return nil, fmt.Errorf("%s: successor #%d is nil", st.Name, si)
		}
		for i, v := range s.Operands {
			if err := checkValue(ctx, st.Name, "successor operand", i, v); err != nil {
				return nil, err
			}
		}
	}
	for i, t := range st.ResultTypes {
		if err := ctx.checkType(t); err != nil {
			return nil, fmt.Errorf("%s: result #%d: %w", st.Name, i, err)
		}
	}
	for _, a := range st.Attributes {
		if a.Value.IsNull() {
			return nil, fmt.Errorf("%s: attribute %q is null", st.Name, a.Name)
		}
		if a.Value.Context() != ctx {
			return nil, &ContextError{Op: st.Name, Message: fmt.Sprintf("attribute %q belongs to another context", a.Name)}
		}
	}
	for i, r := range st.Regions {
		if r == nil {
			return nil, fmt.Errorf("%s: region #%d is nil", st.Name, i)
		}
		if r.parent != nil {
			return nil, &OwnershipError{Op: st.Name, Message: fmt.Sprintf("region #%d already belongs to %s", i, r.parent.name)}
		}
	}

	op := &Operation{
		ctx:         ctx,
		name:        st.Name,
		def:         def,
		loc:         st.Location,
		numOperands: len(st.Operands),
		attrs:       sortAttributes(st.Attributes),
	}

	for _, v := range st.Operands {
		op.appendOperand(v)
	}
	for _, s := range st.Successors {
		start := len(op.operands)
		for _, v := range s.Operands {
			op.appendOperand(v)
		}
		op.successors = append(op.successors, successor{block: s.Block, start: start, count: len(s.Operands)})
	}

	op.results = make([]*Value, len(st.ResultTypes))
	for i, t := range st.ResultTypes {
		op.results[i] = &Value{typ: t, op: op, index: i}
	}

	op.regions = slices.Clone(st.Regions)
	for _, r := range op.regions {
		r.parent = op
	}

	return op, nil
}

func checkArity(def *OpDefinition, st OperationState) error {
	counts := []struct {
		what     string
		expected int
		actual   int
	}{
		{"operand", def.Operands, len(st.Operands)},
		{"result", def.Results, len(st.ResultTypes)},
		{"region", def.Regions, len(st.Regions)},
		{"successor", def.Successors, len(st.Successors)},
	}
	for _, c := range counts {
		if c.expected != Variadic && c.expected != c.actual {
			return &ArityError{Op: def.Name, What: c.what, Expected: c.expected, Actual: c.actual}
		}
	}
	return nil
}

func checkValue(ctx *Context, opName, what string, i int, v *Value) error {
	if v == nil {
		return fmt.Errorf("%s: %s #%d is nil", opName, what, i)
	}
	if v.typ.Context() != ctx {
		return &ContextError{Op: opName, Message: fmt.Sprintf("%s #%d belongs to another context", what, i)}
	}
	return nil
}

func (op *Operation) appendOperand(v *Value) {
	idx := len(op.operands)
	op.operands = append(op.operands, v)
	v.addUse(op, idx)
}

func (op *Operation) setOperand(idx int, v *Value) {
	old := op.operands[idx]
	if old == v {
		return
	}
	if old != nil {
		old.removeUse(op, idx)
	}
	op.operands[idx] = v
	if v != nil {
		v.addUse(op, idx)
	}
}

// Name returns the operation kind, e.g. "arith.addi".
func (op *Operation) Name() string { return op.name }

// Dialect returns the namespace of the operation kind.
func (op *Operation) Dialect() string { return DialectOf(op.name) }

// Definition returns the registered definition, or nil when the kind is
// unregistered. Kinds registered after the operation was created are
// picked up as well.
func (op *Operation) Definition() *OpDefinition {
	if op.def != nil {
		return op.def
	}
	def, _ := op.ctx.Lookup(op.name)
	return def
}

// IsRegistered reports whether a loaded dialect defines the kind.
func (op *Operation) IsRegistered() bool { return op.Definition() != nil }

// IsTerminator reports whether the kind ends a block.
func (op *Operation) IsTerminator() bool {
	def := op.Definition()
	return def != nil && def.Terminator
}

func (op *Operation) Context() *Context      { return op.ctx }
func (op *Operation) Location() Location     { return op.loc }
func (op *Operation) SetLocation(l Location) { op.loc = l }

// Block returns the owning block, or nil when detached.
func (op *Operation) Block() *Block { return op.block }

// ParentRegion returns the region of the owning block.
func (op *Operation) ParentRegion() *Region {
	if op.block == nil {
		return nil
	}
	return op.block.region
}

// ParentOp returns the operation owning the region this operation is in.
func (op *Operation) ParentOp() *Operation {
	if r := op.ParentRegion(); r != nil {
		return r.parent
	}
	return nil
}

// ParentOfKind returns the closest enclosing operation of the given kind.
func (op *Operation) ParentOfKind(name string) *Operation {
	for p := op.ParentOp(); p != nil; p = p.ParentOp() {
		if p.name == name {
			return p
		}
	}
	return nil
}

// IsProperAncestor reports whether op transitively contains other.
func (op *Operation) IsProperAncestor(other *Operation) bool {
	for p := other.ParentOp(); p != nil; p = p.ParentOp() {
		if p == op {
			return true
		}
	}
	return false
}

// NumOperands returns the number of regular operands.
func (op *Operation) NumOperands() int { return op.numOperands }

// Operand returns regular operand i.
func (op *Operation) Operand(i int) (*Value, error) {
	if i < 0 || i >= op.numOperands {
		return nil, &IndexError{What: op.name + " operand", Index: i, Len: op.numOperands}
	}
	return op.operands[i], nil
}

// Operands returns the regular operands.
func (op *Operation) Operands() []*Value {
	return slices.Clone(op.operands[:op.numOperands])
}

// AllOperands returns regular operands followed by successor operands.
func (op *Operation) AllOperands() []*Value {
	return slices.Clone(op.operands)
}

// OperandTypes returns the types of the regular operands.
func (op *Operation) OperandTypes() []Type {
	types := make([]Type, op.numOperands)
	for i, v := range op.operands[:op.numOperands] {
		types[i] = v.typ
	}
	return types
}

// SetOperand replaces regular operand i.
func (op *Operation) SetOperand(i int, v *Value) error {
	if i < 0 || i >= op.numOperands {
		return &IndexError{What: op.name + " operand", Index: i, Len: op.numOperands}
	}
	if err := checkValue(op.ctx, op.name, "operand", i, v); err != nil {
		return err
	}
	op.setOperand(i, v)
	return nil
}

// NumResults returns the number of results.
func (op *Operation) NumResults() int { return len(op.results) }

// Result returns result i.
func (op *Operation) Result(i int) (*Value, error) {
	if i < 0 || i >= len(op.results) {
		return nil, &IndexError{What: op.name + " result", Index: i, Len: len(op.results)}
	}
	return op.results[i], nil
}

// MustResult is like Result but panics on error.
// Use only in builders where the result count is fixed by the kind.
func (op *Operation) MustResult(i int) *Value {
	v, err := op.Result(i)
	if err != nil {
		panic(err)
	}
	return v
}

// Results returns the results.
func (op *Operation) Results() []*Value { return slices.Clone(op.results) }

// ResultTypes returns the result types.
func (op *Operation) ResultTypes() []Type {
	types := make([]Type, len(op.results))
	for i, v := range op.results {
		types[i] = v.typ
	}
	return types
}

// HasResultUses reports whether any result is still read.
func (op *Operation) HasResultUses() bool {
	for _, r := range op.results {
		if r.HasUses() {
			return true
		}
	}
	return false
}

// ReplaceAllUsesWith rewires the uses of each result to the matching value.
func (op *Operation) ReplaceAllUsesWith(values []*Value) error {
	if len(values) != len(op.results) {
		return &ArityError{Op: op.name, What: "replacement value", Expected: len(op.results), Actual: len(values)}
	}
	for i, r := range op.results {
		r.ReplaceAllUsesWith(values[i])
	}
	return nil
}

// Attr returns the attribute stored under name.
func (op *Operation) Attr(name string) (Attribute, bool) {
	i, ok := op.findAttr(name)
	if !ok {
		return Attribute{}, false
	}
	return op.attrs[i].Value, true
}

// HasAttr reports whether an attribute is stored under name.
func (op *Operation) HasAttr(name string) bool {
	_, ok := op.findAttr(name)
	return ok
}

// Attributes returns the dictionary sorted by name.
func (op *Operation) Attributes() []NamedAttribute { return slices.Clone(op.attrs) }

// SetAttr stores a under name, replacing any previous value.
func (op *Operation) SetAttr(name string, a Attribute) error {
	if a.IsNull() {
		return fmt.Errorf("%s: attribute %q is null", op.name, name)
	}
	if a.Context() != op.ctx {
		return &ContextError{Op: op.name, Message: fmt.Sprintf("attribute %q belongs to another context", name)}
	}
	i, ok := op.findAttr(name)
	if ok {
		op.attrs[i].Value = a
		return nil
	}
	op.attrs = slices.Insert(op.attrs, i, NamedAttribute{Name: name, Value: a})
	return nil
}

// RemoveAttr deletes the attribute stored under name.
func (op *Operation) RemoveAttr(name string) {
	if i, ok := op.findAttr(name); ok {
		op.attrs = slices.Delete(op.attrs, i, i+1)
	}
}

func (op *Operation) findAttr(name string) (int, bool) {
	return slices.BinarySearchFunc(op.attrs, name, func(a NamedAttribute, n string) int {
		switch {
		case a.Name < n:
			return -1
		case a.Name > n:
			return 1
		}
		return 0
	})
}

// NumRegions returns the number of owned regions.
func (op *Operation) NumRegions() int { return len(op.regions) }

// Region returns owned region i, or nil when out of range.
func (op *Operation) Region(i int) *Region {
	if i < 0 || i >= len(op.regions) {
		return nil
	}
	return op.regions[i]
}

// Regions returns the owned regions.
func (op *Operation) Regions() []*Region { return slices.Clone(op.regions) }

// NumSuccessors returns the number of branch targets.
func (op *Operation) NumSuccessors() int { return len(op.successors) }

// Successor returns branch target i, or nil when out of range.
func (op *Operation) Successor(i int) *Block {
	if i < 0 || i >= len(op.successors) {
		return nil
	}
	return op.successors[i].block
}

// Successors returns the branch targets in order.
func (op *Operation) Successors() []*Block {
	blocks := make([]*Block, len(op.successors))
	for i, s := range op.successors {
		blocks[i] = s.block
	}
	return blocks
}

// SuccessorOperands returns the values passed to branch target i.
func (op *Operation) SuccessorOperands(i int) []*Value {
	if i < 0 || i >= len(op.successors) {
		return nil
	}
	s := op.successors[i]
	return slices.Clone(op.operands[s.start : s.start+s.count])
}

// SetSuccessor retargets branch i to block, keeping its operands.
func (op *Operation) SetSuccessor(i int, block *Block) error {
	if i < 0 || i >= len(op.successors) {
		return &IndexError{What: op.name + " successor", Index: i, Len: len(op.successors)}
	}
	op.successors[i].block = block
	return nil
}

// AppendTo attaches op as the last operation of block.
func (op *Operation) AppendTo(block *Block) error {
	return block.AppendOperation(op)
}

// InsertBefore attaches op immediately before next in next's block.
func (op *Operation) InsertBefore(next *Operation) error {
	if op.block != nil {
		return &OwnershipError{Op: op.name, Message: "operation already belongs to a block"}
	}
	b := next.block
	if b == nil {
		return &OwnershipError{Op: op.name, Message: fmt.Sprintf("anchor %s is detached", next.name)}
	}
	i := b.indexOf(next)
	b.ops = slices.Insert(b.ops, i, op)
	op.block = b
	return nil
}

// InsertAfter attaches op immediately after prev in prev's block.
func (op *Operation) InsertAfter(prev *Operation) error {
	if op.block != nil {
		return &OwnershipError{Op: op.name, Message: "operation already belongs to a block"}
	}
	b := prev.block
	if b == nil {
		return &OwnershipError{Op: op.name, Message: fmt.Sprintf("anchor %s is detached", prev.name)}
	}
	i := b.indexOf(prev)
	b.ops = slices.Insert(b.ops, i+1, op)
	op.block = b
	return nil
}

// Remove detaches op from its block without destroying it.
func (op *Operation) Remove() {
	b := op.block
	if b == nil {
		return
	}
	if i := b.indexOf(op); i >= 0 {
		b.ops = slices.Delete(b.ops, i, i+1)
	}
	op.block = nil
}

// Erase detaches and destroys op, dropping the uses held by op and every
// operation nested in its regions. It fails with *OwnershipError while any
// result is still used.
func (op *Operation) Erase() error {
	if op.HasResultUses() {
		return &OwnershipError{Op: op.name, Message: "cannot erase an operation whose results are still used"}
	}
	op.Remove()
	op.dropAllReferences()
	return nil
}

// dropAllReferences clears the operand uses of op and of everything nested
// inside it.
func (op *Operation) dropAllReferences() {
	for i, v := range op.operands {
		if v != nil {
			v.removeUse(op, i)
			op.operands[i] = nil
		}
	}
	for _, r := range op.regions {
		for _, b := range r.blocks {
			for _, nested := range b.ops {
				nested.dropAllReferences()
			}
		}
	}
}

func (op *Operation) String() string {
	return fmt.Sprintf("%s@%s", op.name, op.loc.Short())
}
