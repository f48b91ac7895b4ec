package engine

import (
	"errors"
	"fmt"
	"time"
)

// execution is the state of one invocation.
type execution struct {
	depth    int
	maxDepth int
	ret      []uint64
}

func (x *execution) call(f *function, args []uint64) ([]uint64, error) {
	if x.depth >= x.maxDepth {
		return nil, &trap{msg: fmt.Sprintf("call depth limit %d exceeded in @%s", x.maxDepth, f.name)}
	}
	x.depth++
	defer func() { x.depth-- }()

	regs := make([]uint64, f.numSlots)
	copy(regs, f.template)
	copy(regs, args)

	for b := 0; ; {
		blk := f.blocks[b]
		for _, in := range blk.instrs {
			if err := in(x, regs); err != nil {
				return nil, err
			}
		}
		next, err := blk.term(x, regs)
		if err != nil {
			return nil, err
		}
		if next < 0 {
			return append([]uint64(nil), x.ret...), nil
		}
		b = next
	}
}

// InvokePacked calls the named function. slots holds one Slot per
// parameter followed by one Slot per result; the results are written into
// the trailing slots and the argument slots are left untouched.
func (a *Artifact) InvokePacked(name string, slots []Slot) error {
	f, ok := a.funcs[name]
	if !ok {
		return &InvocationError{Kind: NotFound, Function: name, Message: "no such function"}
	}
	if f.external {
		return &InvocationError{Kind: NotFound, Function: name, Message: "function is a declaration without a body"}
	}
	if want := len(f.params) + len(f.results); len(slots) != want {
		return &InvocationError{
			Kind:     ArityMismatch,
			Function: name,
			Message:  fmt.Sprintf("expected %d slot(s) for %d parameter(s) and %d result(s), got %d", want, len(f.params), len(f.results), len(slots)),
		}
	}

	args := make([]uint64, len(f.params))
	for i, w := range f.params {
		args[i] = trunc(uint64(slots[i]), w)
	}

	start := time.Now()
	x := &execution{maxDepth: a.cfg.maxCallDepth}
	out, err := x.call(f, args)
	a.cfg.logger.Debug("invoke_packed",
		"function", name,
		"duration", time.Since(start),
		"ok", err == nil)
	if err != nil {
		var t *trap
		if errors.As(err, &t) {
			return &InvocationError{Kind: Trap, Function: name, Message: t.msg}
		}
		return err
	}

	for i, v := range out {
		slots[len(f.params)+i] = Slot(v)
	}
	return nil
}

// Invoke calls the named function with integer arguments and returns its
// results sign-extended from their declared width. i1 results are 0 or 1.
func (a *Artifact) Invoke(name string, args ...int64) ([]int64, error) {
	f, ok := a.funcs[name]
	if !ok {
		return nil, &InvocationError{Kind: NotFound, Function: name, Message: "no such function"}
	}
	if len(args) != len(f.params) {
		return nil, &InvocationError{
			Kind:     ArityMismatch,
			Function: name,
			Message:  fmt.Sprintf("expected %d argument(s), got %d", len(f.params), len(args)),
		}
	}

	slots := make([]Slot, len(f.params)+len(f.results))
	for i, v := range args {
		slots[i] = I64(v)
	}
	if err := a.InvokePacked(name, slots); err != nil {
		return nil, err
	}

	results := make([]int64, len(f.results))
	for i, w := range f.results {
		v := uint64(slots[len(f.params)+i])
		if w == 1 {
			results[i] = int64(v & 1)
		} else {
			results[i] = sext(v, w)
		}
	}
	return results, nil
}
