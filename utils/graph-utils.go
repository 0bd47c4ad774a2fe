package utils

import (
	"gonum.org/v1/gonum/graph/simple"
)

// Helper function to generate a unique key for an undirected edge
func edgeKey(u, v int64) [2]int64 {
	if u > v {
		u, v = v, u
	}
	return [2]int64{u, v}
}

func collectEdges(g *simple.WeightedUndirectedGraph) map[[2]int64]float64 {
	ret := make(map[[2]int64]float64)
	edges := g.WeightedEdges()
	for edges.Next() {
		edge := edges.WeightedEdge()
		ret[edgeKey(edge.From().ID(), edge.To().ID())] = edge.Weight()
	}
	return ret
}

// Helper function to compare two graphs for equality
func CompareGraphs(g1, g2 *simple.WeightedUndirectedGraph) bool {
	// Check that both graphs have the same nodes
	ids1 := SortedNodeIDs(g1)
	ids2 := SortedNodeIDs(g2)
	if len(ids1) != len(ids2) {
		return false
	}
	for i := range ids1 {
		if ids1[i] != ids2[i] {
			return false
		}
	}

	// Check that both graphs have the same edges
	edgeMap1 := collectEdges(g1)
	edgeMap2 := collectEdges(g2)

	if len(edgeMap1) != len(edgeMap2) {
		return false
	}

	for key, weight := range edgeMap1 {
		if w2, exists := edgeMap2[key]; !exists || w2 != weight {
			return false
		}
	}

	return true
}

// AverageDegree returns 2|E|/|V|, or 0 for an empty graph.
func AverageDegree(g *simple.WeightedUndirectedGraph) float64 {
	n := g.Nodes().Len()
	if n == 0 {
		return 0
	}
	return 2 * float64(g.Edges().Len()) / float64(n)
}
