package regen

import (
	"slices"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/ir"
)

// depGraph maps an op index to the op indices producing the bodies it
// reads. Only replayed (non-suppressed, below the cursor) ops are nodes.
type depGraph struct {
	nodes []int
	edges map[int][]int
}

// buildDeps links each op to the latest earlier producer of every body it
// references. A body with no earlier producer that is not a base body
// links to the earliest later producer instead: such a forward reference
// can only resolve through a cycle.
func buildDeps(ops []ir.OperationRecord, active []bool, base map[string]bool) depGraph {
	producers := make(map[string][]int)
	g := depGraph{edges: make(map[int][]int)}
	for i, op := range ops {
		if !active[i] {
			continue
		}
		g.nodes = append(g.nodes, i)
		for _, b := range op.ResultBodies {
			producers[b] = append(producers[b], i)
		}
	}

	for _, i := range g.nodes {
		for _, b := range ops[i].ReferencedBodies() {
			ps := producers[b]
			earlier := -1
			for _, p := range ps {
				if p < i {
					earlier = p
				}
			}
			switch {
			case earlier >= 0:
				g.edges[i] = append(g.edges[i], earlier)
			case base[b]:
			default:
				for _, p := range ps {
					if p > i {
						g.edges[i] = append(g.edges[i], p)
						break
					}
				}
			}
		}
		g.edges[i] = slices.Compact(slices.Sorted(slices.Values(g.edges[i])))
	}
	return g
}

// sccs returns the strongly connected components that form dependency
// cycles, using Tarjan's algorithm. Single-node components count only
// with a self-loop. Each component is sorted; components are ordered by
// their first member.
func (g depGraph) sccs() [][]int {
	var (
		index   = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		out     [][]int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if len(scc) > 1 || slices.Contains(g.edges[v], v) {
				slices.Sort(scc)
				out = append(out, scc)
			}
		}
	}

	// Visit in history order for deterministic traversal.
	for _, v := range g.nodes {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}
	slices.SortFunc(out, func(a, b []int) int { return a[0] - b[0] })
	return out
}

// cyclic returns the set of op indices that lie on a dependency cycle.
func (g depGraph) cyclic() map[int]bool {
	out := make(map[int]bool)
	for _, scc := range g.sccs() {
		for _, v := range scc {
			out[v] = true
		}
	}
	return out
}

// DependencyCycles returns the groups of operation IDs whose body
// references form a cycle among the first n operations of doc. Suppressed
// operations take no part. No kernel is involved.
func DependencyCycles(doc document.History, n int) [][]string {
	ops := doc.Operations()
	n = max(0, min(n, len(ops)))
	ops = ops[:n]

	active := make([]bool, len(ops))
	for i, op := range ops {
		active[i] = !doc.IsSuppressed(op.ID)
	}
	base := make(map[string]bool)
	for _, b := range doc.BaseBodies() {
		base[b] = true
	}

	var out [][]string
	for _, scc := range buildDeps(ops, active, base).sccs() {
		ids := make([]string, len(scc))
		for i, v := range scc {
			ids[i] = ops[v].ID
		}
		out = append(out, ids)
	}
	return out
}
