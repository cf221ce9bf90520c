// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package planetoid

import (
	"fmt"

	"github.com/hessiangcn/hessiangcn/spmat"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/mat"
)

// Stats summarizes the structure of a graph.
type Stats struct {
	NumNodes, NumEdges, NumSelfLoops int

	// NumComponents is the number of connected components, isolated nodes included.
	NumComponents int

	// NumIsolated is the number of nodes without any edge to another node.
	NumIsolated int

	// LargestComponent is the number of nodes of the largest connected component.
	LargestComponent int
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("%d nodes, %d edges, %d self-loops, %d connected components (largest with %d nodes), %d isolated nodes",
		s.NumNodes, s.NumEdges, s.NumSelfLoops, s.NumComponents, s.LargestComponent, s.NumIsolated)
}

// GraphStats computes the Stats of the undirected graph whose adjacency matrix is adj. Any non-zero
// entry (i, j) is an edge between i and j.
func GraphStats(adj mat.Matrix) Stats {
	numNodes, _ := adj.Dims()
	g := simple.NewUndirectedGraph()
	for i := range numNodes {
		g.AddNode(simple.Node(i))
	}
	var stats Stats
	stats.NumNodes = numNodes
	spmat.DoNonZero(adj, func(i, j int, _ float64) {
		if i == j {
			stats.NumSelfLoops++
			return
		}
		if !g.HasEdgeBetween(int64(i), int64(j)) {
			g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(j)})
			stats.NumEdges++
		}
	})
	components := topo.ConnectedComponents(g)
	stats.NumComponents = len(components)
	for _, component := range components {
		stats.LargestComponent = max(stats.LargestComponent, len(component))
	}
	for i := range numNodes {
		if g.From(int64(i)).Len() == 0 {
			stats.NumIsolated++
		}
	}
	return stats
}
