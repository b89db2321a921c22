package pfrp

// topology.go converts the link structure of a Store into the data
// structures of the gonum graph package, to use its component analysis.

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// buildLinkGraph returns an undirected graph with one node per network node
// and one edge per physical link.  Nodes without links are still present.
func (st *Store) buildLinkGraph() *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	for i := 0; i < st.nodeNum; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < st.nodeNum; i++ {
		for j := i + 1; j < st.nodeNum; j++ {
			if st.LinkID(i, j) != NoLink {
				g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(j)})
			}
		}
	}
	return g
}

// Components returns the connected components of the link graph, each
// as a sorted list of node ids, ordered by their smallest member
func (st *Store) Components() [][]int {
	cc := topo.ConnectedComponents(st.buildLinkGraph())
	rtn := make([][]int, 0, len(cc))
	for _, comp := range cc {
		ids := convertNodeSeq(comp)
		sort.Ints(ids)
		rtn = append(rtn, ids)
	}
	sort.Slice(rtn, func(a, b int) bool { return rtn[a][0] < rtn[b][0] })
	return rtn
}

// HopDistance returns the minimum number of links between src and dst,
// or -1 if dst cannot be reached
func (st *Store) HopDistance(src, dst int) int {
	g := st.buildLinkGraph()
	spTree := path.DijkstraFrom(simple.Node(src), g)
	nodeSeq, _ := spTree.To(int64(dst))
	if len(nodeSeq) == 0 {
		return -1
	}
	return len(nodeSeq) - 1
}

// convertNodeSeq extracts node ids from a sequence of graph nodes
func convertNodeSeq(nsQ []graph.Node) []int {
	rtn := make([]int, 0, len(nsQ))
	for _, node := range nsQ {
		rtn = append(rtn, int(node.ID()))
	}
	return rtn
}
