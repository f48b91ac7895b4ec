package ir

import (
	"fmt"
	"sync"
)

// Module is the root container of a compilation unit: a builtin.module
// operation whose body block holds the top-level operations.
type Module struct {
	op *Operation
	mu sync.Mutex
}

// NewModule creates an empty module.
func NewModule(ctx *Context, loc Location) *Module {
	body := NewRegion()
	if err := body.AppendBlock(NewBlock()); err != nil {
		panic(err)
	}
	op, err := NewOperation(ctx, OperationState{
		Name:     ModuleOp,
		Location: loc,
		Regions:  []*Region{body},
	})
	if err != nil {
		panic(err)
	}
	return &Module{op: op}
}

// ModuleFromOperation wraps an existing builtin.module operation.
func ModuleFromOperation(op *Operation) (*Module, error) {
	if op.Name() != ModuleOp {
		return nil, fmt.Errorf("expected %s, got %s", ModuleOp, op.Name())
	}
	if op.NumRegions() != 1 || op.Region(0).NumBlocks() != 1 {
		return nil, fmt.Errorf("%s must have a single-block body", ModuleOp)
	}
	return &Module{op: op}, nil
}

// Operation returns the builtin.module operation.
func (m *Module) Operation() *Operation { return m.op }

// Context returns the owning Context.
func (m *Module) Context() *Context { return m.op.ctx }

// Body returns the block holding the top-level operations.
func (m *Module) Body() *Block { return m.op.regions[0].blocks[0] }

// Location returns the module location.
func (m *Module) Location() Location { return m.op.loc }

// Lookup returns the top-level operation defining the symbol name.
func (m *Module) Lookup(name string) *Operation {
	for _, op := range m.Body().ops {
		if SymbolName(op) == name {
			return op
		}
	}
	return nil
}

// Lock acquires exclusive access for a mutating traversal. A second
// concurrent caller gets ErrModuleBusy instead of waiting.
func (m *Module) Lock() (func(), error) {
	if !m.mu.TryLock() {
		return nil, ErrModuleBusy
	}
	var once sync.Once
	return func() { once.Do(m.mu.Unlock) }, nil
}
