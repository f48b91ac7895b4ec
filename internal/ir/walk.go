package ir

// WalkResult steers a Walk.
type WalkResult int

const (
	// WalkAdvance continues into nested regions.
	WalkAdvance WalkResult = iota
	// WalkSkip continues with the next sibling without visiting nested regions.
	WalkSkip
	// WalkInterrupt stops the walk.
	WalkInterrupt
)

// Walk visits op and every nested operation in pre-order.
// It returns WalkInterrupt if fn interrupted the walk.
func Walk(op *Operation, fn func(*Operation) WalkResult) WalkResult {
	switch fn(op) {
	case WalkInterrupt:
		return WalkInterrupt
	case WalkSkip:
		return WalkAdvance
	}
	for _, r := range op.regions {
		for _, b := range r.blocks {
			for _, nested := range b.Operations() {
				if Walk(nested, fn) == WalkInterrupt {
					return WalkInterrupt
				}
			}
		}
	}
	return WalkAdvance
}

// PreOrder returns op and every nested operation in pre-order.
func PreOrder(op *Operation) []*Operation {
	var ops []*Operation
	Walk(op, func(o *Operation) WalkResult {
		ops = append(ops, o)
		return WalkAdvance
	})
	return ops
}

// PostOrder returns every operation nested in op followed by op itself,
// children before parents. The slice is a snapshot, so callers may mutate
// the tree while iterating it.
func PostOrder(op *Operation) []*Operation {
	var ops []*Operation
	var visit func(*Operation)
	visit = func(o *Operation) {
		for _, r := range o.regions {
			for _, b := range r.blocks {
				for _, nested := range b.ops {
					visit(nested)
				}
			}
		}
		ops = append(ops, o)
	}
	visit(op)
	return ops
}
