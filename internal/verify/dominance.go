package verify

import "github.com/roach88/irkit/internal/ir"

// domTree holds the immediate dominators of the blocks of one region,
// computed with the iterative algorithm of Cooper, Harvey and Kennedy.
type domTree struct {
	index map[*ir.Block]int
	// idom[i] is the immediate dominator of block i; -1 for unreachable
	// blocks. The entry block is its own dominator.
	idom []int
}

func newDomTree(r *ir.Region) *domTree {
	blocks := r.Blocks()
	t := &domTree{
		index: make(map[*ir.Block]int, len(blocks)),
		idom:  make([]int, len(blocks)),
	}
	for i, b := range blocks {
		t.index[b] = i
		t.idom[i] = -1
	}
	if len(blocks) == 0 {
		return t
	}

	succs := make([][]int, len(blocks))
	preds := make([][]int, len(blocks))
	for i, b := range blocks {
		for _, s := range b.Successors() {
			j, ok := t.index[s]
			if !ok {
				continue
			}
			succs[i] = append(succs[i], j)
			preds[j] = append(preds[j], i)
		}
	}

	// Reverse postorder from the entry block.
	order := make([]int, 0, len(blocks))
	visited := make([]bool, len(blocks))
	var dfs func(int)
	dfs = func(i int) {
		visited[i] = true
		for _, s := range succs[i] {
			if !visited[s] {
				dfs(s)
			}
		}
		order = append(order, i)
	}
	dfs(0)
	rpoNum := make([]int, len(blocks))
	for i := range rpoNum {
		rpoNum[i] = -1
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	for n, b := range order {
		rpoNum[b] = n
	}

	intersect := func(a, b int) int {
		for a != b {
			for rpoNum[a] > rpoNum[b] {
				a = t.idom[a]
			}
			for rpoNum[b] > rpoNum[a] {
				b = t.idom[b]
			}
		}
		return a
	}

	t.idom[0] = 0
	for changed := true; changed; {
		changed = false
		for _, b := range order[1:] {
			newIdom := -1
			for _, p := range preds[b] {
				if t.idom[p] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = p
					continue
				}
				newIdom = intersect(p, newIdom)
			}
			if newIdom != t.idom[b] {
				t.idom[b] = newIdom
				changed = true
			}
		}
	}

	return t
}

// reachable reports whether b is reachable from the entry block.
func (t *domTree) reachable(b *ir.Block) bool {
	i, ok := t.index[b]
	return ok && t.idom[i] != -1
}

// dominates reports whether a dominates b. Both blocks must belong to the
// tree's region.
func (t *domTree) dominates(a, b *ir.Block) bool {
	ai, ok := t.index[a]
	if !ok {
		return false
	}
	bi, ok := t.index[b]
	if !ok {
		return false
	}
	for {
		if bi == ai {
			return true
		}
		next := t.idom[bi]
		if next == -1 || next == bi {
			return false
		}
		bi = next
	}
}
