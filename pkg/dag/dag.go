// Package dag implements the layered layout machinery for directed
// graphs: cycle breaking, rank assignment, and in-rank ordering.
//
// Nodes are dense integer indices in declaration order, and every phase
// iterates in that order, so the whole computation is deterministic for
// a given declaration sequence. Edges reversed during cycle breaking
// are reversed for ranking only; callers keep rendering them in their
// declared direction.
package dag

import (
	"math"
	"sort"
)

// Edge is a directed edge between two node indices.
type Edge struct {
	From, To int
}

// Graph is a directed graph over nodes 0..NodeCount-1. Parallel edges
// and disconnected nodes are allowed; self-edges are the caller's
// responsibility to reject before layout.
type Graph struct {
	nodes int
	edges []Edge
	out   [][]int // node -> outgoing edge indices, declaration order
}

// NewGraph creates a graph with n nodes and no edges.
func NewGraph(n int) *Graph {
	return &Graph{nodes: n, out: make([][]int, n)}
}

// AddEdge appends a directed edge and returns its index.
func (g *Graph) AddEdge(from, to int) int {
	idx := len(g.edges)
	g.edges = append(g.edges, Edge{From: from, To: to})
	g.out[from] = append(g.out[from], idx)
	return idx
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return g.nodes }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Edges returns the edge list in declaration order. The slice is
// shared; callers must not mutate it.
func (g *Graph) Edges() []Edge { return g.edges }

// Layered is the result of the layered layout phases.
type Layered struct {
	// Reversed marks edge indices whose direction was flipped for
	// ranking. Rendering still uses the declared direction.
	Reversed map[int]bool
	// Rank assigns each node its layer, 0 for sources.
	Rank []int
	// Order lists each rank's members in final order, indexed by rank.
	Order [][]int
}

// Layer runs cycle breaking, longest-path ranking, and median ordering
// in sequence. The result is fully determined by node and edge
// declaration order.
func Layer(g *Graph) Layered {
	reversed := g.BreakCycles()
	rank := g.ranks(reversed)
	order := g.orderRanks(rank, reversed)
	return Layered{Reversed: reversed, Rank: rank, Order: order}
}

// BreakCycles finds a set of back edges whose reversal makes the graph
// acyclic. It runs a white/gray/black DFS from every node in
// declaration order; an edge into a gray node is a back edge.
func (g *Graph) BreakCycles() map[int]bool {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, g.nodes)
	reversed := make(map[int]bool)

	var dfs func(node int)
	dfs = func(node int) {
		color[node] = gray
		for _, ei := range g.out[node] {
			to := g.edges[ei].To
			switch color[to] {
			case white:
				dfs(to)
			case gray:
				reversed[ei] = true
			}
		}
		color[node] = black
	}

	for n := 0; n < g.nodes; n++ {
		if color[n] == white {
			dfs(n)
		}
	}
	return reversed
}

// dagAdjacency returns the effective outgoing adjacency after applying
// the reversed set, in edge declaration order.
func (g *Graph) dagAdjacency(reversed map[int]bool) (succ [][]int, indeg []int) {
	succ = make([][]int, g.nodes)
	indeg = make([]int, g.nodes)
	for ei, e := range g.edges {
		u, v := e.From, e.To
		if reversed[ei] {
			u, v = v, u
		}
		succ[u] = append(succ[u], v)
		indeg[v]++
	}
	return succ, indeg
}

// ranks assigns each node a layer using Kahn's topological order and a
// longest-path rule: a node sits one past its deepest predecessor.
func (g *Graph) ranks(reversed map[int]bool) []int {
	succ, indeg := g.dagAdjacency(reversed)

	queue := make([]int, 0, g.nodes)
	for n := 0; n < g.nodes; n++ {
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}
	topo := make([]int, 0, g.nodes)
	for cursor := 0; cursor < len(queue); cursor++ {
		u := queue[cursor]
		topo = append(topo, u)
		for _, v := range succ[u] {
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	if len(topo) != g.nodes {
		// Residual cycle; fall back to declaration order so ranking
		// still terminates with every node placed.
		topo = topo[:0]
		for n := 0; n < g.nodes; n++ {
			topo = append(topo, n)
		}
	}

	rank := make([]int, g.nodes)
	for _, u := range topo {
		base := rank[u]
		for _, v := range succ[u] {
			if rank[v] < base+1 {
				rank[v] = base + 1
			}
		}
	}
	return rank
}

// orderRanks orders each rank's members with a single downward pass of
// the median heuristic. A node's sort key is the median of its ranked
// predecessors' positions in the ranks above (first assignment wins
// when a node appears in several earlier position maps; a predecessor
// missing from them falls back to its declaration index); nodes without
// ranked predecessors sort last. Ties keep declaration order.
func (g *Graph) orderRanks(rank []int, reversed map[int]bool) [][]int {
	maxRank := 0
	for _, r := range rank {
		if r > maxRank {
			maxRank = r
		}
	}

	order := make([][]int, maxRank+1)
	for n := 0; n < g.nodes; n++ {
		order[rank[n]] = append(order[rank[n]], n)
	}

	// Effective edge directions after reversal, for predecessor lookup.
	dagEdges := make([]Edge, len(g.edges))
	for ei, e := range g.edges {
		if reversed[ei] {
			dagEdges[ei] = Edge{From: e.To, To: e.From}
		} else {
			dagEdges[ei] = e
		}
	}

	const unranked = -1
	for r := 1; r <= maxRank; r++ {
		members := order[r]
		if len(members) == 0 {
			continue
		}

		prevPos := make([]int, g.nodes)
		for i := range prevPos {
			prevPos[i] = unranked
		}
		for pr := 0; pr < r; pr++ {
			for idx, n := range order[pr] {
				if prevPos[n] == unranked {
					prevPos[n] = idx
				}
			}
		}

		score := make([]float64, g.nodes)
		for _, n := range members {
			var preds []int
			for _, de := range dagEdges {
				if de.To == n && rank[de.From] < r {
					p := prevPos[de.From]
					if p == unranked {
						p = de.From
					}
					preds = append(preds, p)
				}
			}
			if len(preds) == 0 {
				score[n] = math.Inf(1)
				continue
			}
			sort.Ints(preds)
			mid := len(preds) / 2
			if len(preds)%2 == 1 {
				score[n] = float64(preds[mid])
			} else {
				score[n] = 0.5 * float64(preds[mid-1]+preds[mid])
			}
		}

		sort.SliceStable(members, func(i, j int) bool {
			a, b := members[i], members[j]
			if score[a] != score[b] {
				return score[a] < score[b]
			}
			return a < b
		})
	}
	return order
}
