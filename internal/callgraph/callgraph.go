// Package callgraph builds the static call graph of a module and reports
// recursion.
//
// Recursion is legal and reported as a warning. The engine bounds call
// depth at run time.
package callgraph

import (
	"slices"
	"strings"

	"github.com/roach88/irkit/internal/dialect/traits"
	"github.com/roach88/irkit/internal/ir"
)

// Graph maps each function symbol to the symbols it calls, in the order
// the calls first appear. Functions keep module order.
type Graph struct {
	funcs []string
	edges map[string][]string
	locs  map[string]ir.Location
}

// Cycle is a set of functions that can call themselves.
type Cycle struct {
	Path     []string    `json:"path"` // ["a", "b", "a"]
	Message  string      `json:"message"`
	Location ir.Location `json:"-"` // location of the first function in Path
}

// Build collects every symbol-defining top-level operation of m and the
// calls nested in it. Calls to symbols not defined in m are kept as edges
// but never form cycles.
func Build(m *ir.Module) *Graph {
	g := &Graph{
		edges: make(map[string][]string),
		locs:  make(map[string]ir.Location),
	}
	for _, op := range m.Body().Operations() {
		name := ir.SymbolName(op)
		if name == "" {
			continue
		}
		if _, dup := g.edges[name]; !dup {
			g.funcs = append(g.funcs, name)
			g.locs[name] = op.Location()
		}
		callees := g.edges[name]
		if callees == nil {
			callees = []string{}
		}
		for _, nested := range ir.PreOrder(op) {
			if _, ok := nested.Attr(traits.CalleeAttr); !ok {
				continue
			}
			callee, err := traits.Callee(nested)
			if err != nil || slices.Contains(callees, callee) {
				continue
			}
			callees = append(callees, callee)
		}
		g.edges[name] = callees
	}
	return g
}

// Functions returns the function symbols in module order.
func (g *Graph) Functions() []string {
	return slices.Clone(g.funcs)
}

// Callees returns the symbols name calls directly.
func (g *Graph) Callees(name string) []string {
	return slices.Clone(g.edges[name])
}

// Cycles finds the strongly connected components of the graph and reports
// each one that contains a cycle: components of more than one function,
// and single functions that call themselves. Results are deterministic.
func (g *Graph) Cycles() []Cycle {
	cycles := []Cycle{}
	for _, scc := range g.tarjan() {
		if len(scc) == 1 && !slices.Contains(g.edges[scc[0]], scc[0]) {
			continue
		}
		cycles = append(cycles, g.toCycle(scc))
	}
	return cycles
}

// Recursive reports whether name is part of a cycle.
func (g *Graph) Recursive(name string) bool {
	for _, c := range g.Cycles() {
		if slices.Contains(c.Path, name) {
			return true
		}
	}
	return false
}

// tarjan returns the strongly connected components. Each component lists
// its functions in module order; components are ordered by their first
// function.
func (g *Graph) tarjan() [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, defined := g.edges[w]; !defined {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, name := range g.funcs {
		if _, visited := indices[name]; !visited {
			strongConnect(name)
		}
	}

	order := make(map[string]int, len(g.funcs))
	for i, name := range g.funcs {
		order[name] = i
	}
	byOrder := func(a, b string) int { return order[a] - order[b] }
	for _, scc := range sccs {
		slices.SortFunc(scc, byOrder)
	}
	slices.SortFunc(sccs, func(a, b []string) int { return byOrder(a[0], b[0]) })
	return sccs
}

func (g *Graph) toCycle(scc []string) Cycle {
	path := g.cyclePath(scc)
	msg := "recursive function @" + path[0]
	if len(scc) > 1 {
		msg = "mutually recursive functions: @" + strings.Join(path, " -> @")
	}
	return Cycle{Path: path, Message: msg, Location: g.locs[path[0]]}
}

// cyclePath walks from the first member of scc along edges that stay in
// the component until it returns to the start.
func (g *Graph) cyclePath(scc []string) []string {
	start := scc[0]
	if len(scc) == 1 {
		return []string{start, start}
	}

	members := make(map[string]bool, len(scc))
	for _, name := range scc {
		members[name] = true
	}

	path := []string{start}
	visited := map[string]bool{}
	current := start
	for {
		visited[current] = true
		var next string
		for _, w := range g.edges[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}

// Diagnose emits one warning per cycle to h.
func (g *Graph) Diagnose(h ir.DiagnosticHandler) {
	for _, c := range g.Cycles() {
		h.Emit(ir.Diagnostic{
			Severity: ir.SeverityWarning,
			Message:  c.Message,
			Location: c.Location,
		})
	}
}
