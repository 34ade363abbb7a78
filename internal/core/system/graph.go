package system

import (
	"math/bits"
	"slices"
)

// digraph is a directed graph over node indices 0..n-1.
type digraph struct {
	out [][]int
}

func newDigraph(n int) *digraph {
	return &digraph{out: make([][]int, n)}
}

func (g *digraph) len() int { return len(g.out) }

// addEdge adds a->b once.
func (g *digraph) addEdge(a, b int) {
	if !slices.Contains(g.out[a], b) {
		g.out[a] = append(g.out[a], b)
	}
}

func (g *digraph) hasEdge(a, b int) bool { return slices.Contains(g.out[a], b) }

// cycles returns the strongly connected components that form cycles,
// including self-loops, each in ascending index order. Tarjan's algorithm.
func (g *digraph) cycles() [][]int {
	n := g.len()
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	var out [][]int
	next := 0

	var strongConnect func(v int)
	strongConnect = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range g.out[v] {
			if index[w] < 0 {
				strongConnect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}
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
		if len(scc) > 1 || g.hasEdge(v, v) {
			slices.Sort(scc)
			out = append(out, scc)
		}
	}
	for v := 0; v < n; v++ {
		if index[v] < 0 {
			strongConnect(v)
		}
	}
	slices.SortFunc(out, func(a, b []int) int { return a[0] - b[0] })
	return out
}

// topoSort orders an acyclic graph. Among ready nodes the one with the
// lowest priority value goes first, which makes the order deterministic.
func (g *digraph) topoSort(priority func(int) int) []int {
	n := g.len()
	indeg := make([]int, n)
	for _, outs := range g.out {
		for _, w := range outs {
			indeg[w]++
		}
	}
	var ready []int
	for v := 0; v < n; v++ {
		if indeg[v] == 0 {
			ready = append(ready, v)
		}
	}
	less := func(a, b int) int {
		if pa, pb := priority(a), priority(b); pa != pb {
			return pa - pb
		}
		return a - b
	}
	order := make([]int, 0, n)
	for len(ready) > 0 {
		slices.SortFunc(ready, less)
		v := ready[0]
		ready = ready[1:]
		order = append(order, v)
		for _, w := range g.out[v] {
			indeg[w]--
			if indeg[w] == 0 {
				ready = append(ready, w)
			}
		}
	}
	return order
}

// bitset is a fixed-width set of node indices.
type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) set(i int)      { b[i>>6] |= 1 << (i & 63) }
func (b bitset) has(i int) bool { return b[i>>6]&(1<<(i&63)) != 0 }

func (b bitset) union(o bitset) {
	for i := range b {
		b[i] |= o[i]
	}
}

func (b bitset) each(fn func(int)) {
	for i, word := range b {
		for word != 0 {
			t := bits.TrailingZeros64(word)
			fn(i*64 + t)
			word &^= 1 << t
		}
	}
}

// reachability returns, per node, the set of nodes reachable from it. order
// must be a topological order of g.
func (g *digraph) reachability(order []int) []bitset {
	reach := make([]bitset, g.len())
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		r := newBitset(g.len())
		for _, w := range g.out[v] {
			r.set(w)
			r.union(reach[w])
		}
		reach[v] = r
	}
	return reach
}
