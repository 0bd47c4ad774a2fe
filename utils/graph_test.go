package utils

import (
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/graph/simple"
)

// Test case for SerializeGraph and DeserializeGraph
func TestSerializeAndDeserializeGraph(t *testing.T) {
	g := CreateRandomNetwork(100, 0.3, NewRand(7, StreamNetwork, 0))

	nxGraph := SerializeGraph(g)
	deserializedGraph := DeserializeGraph(nxGraph)

	if !CompareGraphs(g, deserializedGraph) {
		t.Errorf("Original graph and deserialized graph are not equal")
	}
}

// Test case for SaveGraphToFile and LoadGraphFromFile
func TestSaveAndLoadGraphToFile(t *testing.T) {
	g := CreateRandomNetwork(100, 0.3, NewRand(7, StreamNetwork, 0))

	filename := filepath.Join(t.TempDir(), "test_graph.msgpack")
	err := SaveGraphToFile(g, filename)
	if err != nil {
		t.Fatalf("Failed to save graph to file: %v", err)
	}

	loadedGraph, err := LoadGraphFromFile(filename)
	if err != nil {
		t.Fatalf("Failed to load graph from file: %v", err)
	}

	if !CompareGraphs(g, loadedGraph) {
		t.Errorf("Original graph and loaded graph are not equal")
	}
}

// Test case for CreateSmallWorldNetwork with serialization and deserialization
func TestSmallWorldNetworkSerialization(t *testing.T) {
	g := CreateSmallWorldNetwork(100, 4, 0.1, NewRand(7, StreamNetwork, 0))

	deserializedGraph := DeserializeGraph(SerializeGraph(g))

	if !CompareGraphs(g, deserializedGraph) {
		t.Errorf("Small-world network and deserialized graph are not equal")
	}
}

func TestSmallWorldNetworkShape(t *testing.T) {
	nodeCount, k := 50, 4
	g := CreateSmallWorldNetwork(nodeCount, k, 0.2, NewRand(11, StreamNetwork, 0))

	if g.Nodes().Len() != nodeCount {
		t.Fatalf("expected %d nodes, got %d", nodeCount, g.Nodes().Len())
	}
	// rewiring moves edges, it never adds or drops them
	if got := g.Edges().Len(); got != nodeCount*k/2 {
		t.Errorf("expected %d edges, got %d", nodeCount*k/2, got)
	}

	edges := g.WeightedEdges()
	for edges.Next() {
		e := edges.WeightedEdge()
		if e.From().ID() == e.To().ID() {
			t.Errorf("self loop on node %d", e.From().ID())
		}
		if e.Weight() <= 0 || e.Weight() > 1 {
			t.Errorf("interaction frequency %f outside (0, 1]", e.Weight())
		}
	}
}

func TestSmallWorldNetworkDeterministic(t *testing.T) {
	g1 := CreateSmallWorldNetwork(60, 6, 0.3, NewRand(3, StreamNetwork, 0))
	g2 := CreateSmallWorldNetwork(60, 6, 0.3, NewRand(3, StreamNetwork, 0))
	if !CompareGraphs(g1, g2) {
		t.Errorf("same seed produced different networks")
	}

	g3 := CreateSmallWorldNetwork(60, 6, 0.3, NewRand(4, StreamNetwork, 0))
	if CompareGraphs(g1, g3) {
		t.Errorf("different seeds produced identical networks")
	}
}

// Test case for weighted edges and isolated nodes
func TestWeightedEdgesSerialization(t *testing.T) {
	g := simple.NewWeightedUndirectedGraph(0, 0)
	g.AddNode(simple.Node(9))
	g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(1), T: simple.Node(2), W: 5.5})
	g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(2), T: simple.Node(3), W: 2.3})

	nxGraph := SerializeGraph(g)
	if nxGraph.Directed {
		t.Errorf("undirected graph serialized as directed")
	}
	if _, ok := nxGraph.Adjacency[3][2]; !ok {
		t.Errorf("reverse adjacency entry missing")
	}

	deserializedGraph := DeserializeGraph(nxGraph)

	if !CompareGraphs(g, deserializedGraph) {
		t.Errorf("Graph with weighted edges and deserialized graph are not equal")
	}
}

func TestAverageDegree(t *testing.T) {
	g := CreateSmallWorldNetwork(20, 4, 0, NewRand(1, StreamNetwork, 0))
	if d := AverageDegree(g); d != 4 {
		t.Errorf("expected average degree 4, got %f", d)
	}
	if d := AverageDegree(CreateEmptyNetwork(0)); d != 0 {
		t.Errorf("expected 0 for empty graph, got %f", d)
	}
}
