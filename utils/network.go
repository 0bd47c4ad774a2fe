package utils

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/graph/simple"
)

// InteractionFrequency draws an edge weight in (0, 1].
func InteractionFrequency(rng *rand.Rand) float64 {
	return 1 - rng.Float64()
}

func newNetwork(nodeCount int) *simple.WeightedUndirectedGraph {
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for i := range nodeCount {
		g.AddNode(simple.Node(i))
	}
	return g
}

// CreateEmptyNetwork returns nodeCount isolated nodes.
func CreateEmptyNetwork(nodeCount int) *simple.WeightedUndirectedGraph {
	return newNetwork(nodeCount)
}

// n, p graph
//
// p = k / (n - 1), every pair is considered once
func CreateRandomNetwork(nodeCount int, edgeProbability float64, rng *rand.Rand) *simple.WeightedUndirectedGraph {
	g := newNetwork(nodeCount)

	for i := range nodeCount {
		for j := i + 1; j < nodeCount; j++ {
			if rng.Float64() < edgeProbability {
				g.SetWeightedEdge(g.NewWeightedEdge(
					simple.Node(i), simple.Node(j), InteractionFrequency(rng),
				))
			}
		}
	}

	return g
}

// CreateSmallWorldNetwork builds a Watts-Strogatz graph: a ring lattice where
// every node links to its k/2 nearest neighbours on each side, followed by
// rewiring of each clockwise edge with probability rewireProbability.
func CreateSmallWorldNetwork(nodeCount int, k int, rewireProbability float64, rng *rand.Rand) *simple.WeightedUndirectedGraph {
	g := newNetwork(nodeCount)
	if nodeCount < 2 {
		return g
	}

	for i := range nodeCount {
		for j := 1; j <= k/2; j++ {
			target := (i + j) % nodeCount
			if target == i || g.HasEdgeBetween(int64(i), int64(target)) {
				continue
			}
			g.SetWeightedEdge(g.NewWeightedEdge(
				simple.Node(i), simple.Node(target), InteractionFrequency(rng),
			))
		}
	}

	// random reconnect
	for j := 1; j <= k/2; j++ {
		for i := range nodeCount {
			if rng.Float64() >= rewireProbability {
				continue
			}

			// current target
			oldTarget := (i + j) % nodeCount
			w, ok := g.Weight(int64(i), int64(oldTarget))
			if !ok {
				continue
			}

			// saturated node, nothing to rewire to
			if g.From(int64(i)).Len() >= nodeCount-1 {
				continue
			}

			// find new target
			var newTarget int
			for {
				newTarget = rng.IntN(nodeCount)
				if newTarget != i && !g.HasEdgeBetween(int64(i), int64(newTarget)) {
					break
				}
			}

			// rewire, keeping the interaction frequency
			g.RemoveEdge(int64(i), int64(oldTarget))
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(i), simple.Node(newTarget), w))
		}
	}

	return g
}
