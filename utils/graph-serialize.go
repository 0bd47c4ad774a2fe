package utils

import (
	"os"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

type NetworkXGraph struct {
	Adjacency map[int64]map[int64]any  `msgpack:"adjacency"`
	Directed  bool                     `msgpack:"directed"`
	Nodes     map[int64]map[string]any `msgpack:"nodes"`
	Graph     map[string]any           `msgpack:"graph"`
}

func SerializeGraph(g *simple.WeightedUndirectedGraph) *NetworkXGraph {
	nxGraph := &NetworkXGraph{
		Adjacency: make(map[int64]map[int64]any),
		Directed:  false,
		Nodes:     make(map[int64]map[string]any),
		Graph:     make(map[string]any),
	}

	// isolated nodes must survive the round trip
	nodes := g.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		nxGraph.Nodes[id] = make(map[string]any)
		nxGraph.Adjacency[id] = make(map[int64]any)
	}

	// networkx stores undirected adjacency in both directions
	edges := g.WeightedEdges()
	for edges.Next() {
		edge := edges.WeightedEdge()
		u := edge.From().ID()
		v := edge.To().ID()
		attr := map[string]any{"weight": edge.Weight()}
		nxGraph.Adjacency[u][v] = attr
		nxGraph.Adjacency[v][u] = attr
	}

	nxGraph.Graph["name"] = "Generated from Gonum WeightedUndirectedGraph"

	return nxGraph
}

func edgeWeight(edgeAttr any) float64 {
	attrs, ok := edgeAttr.(map[string]any)
	if !ok {
		return 1
	}
	switch v := attrs["weight"].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	}
	return 1
}

func DeserializeGraph(nxGraph *NetworkXGraph) *simple.WeightedUndirectedGraph {
	g := simple.NewWeightedUndirectedGraph(0, 0)

	ensure := func(id int64) {
		if g.Node(id) == nil {
			g.AddNode(simple.Node(id))
		}
	}

	// add nodes in id order so that the node set is stable
	ids := make([]int64, 0, len(nxGraph.Nodes)+len(nxGraph.Adjacency))
	for id := range nxGraph.Nodes {
		ids = append(ids, id)
	}
	for id := range nxGraph.Adjacency {
		if _, exists := nxGraph.Nodes[id]; !exists {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		ensure(id)
	}

	// add edges
	for fromID, targets := range nxGraph.Adjacency {
		for toID, edgeAttr := range targets {
			if fromID == toID {
				continue
			}
			ensure(toID)
			if g.HasEdgeBetween(fromID, toID) {
				continue
			}
			g.SetWeightedEdge(g.NewWeightedEdge(
				simple.Node(fromID), simple.Node(toID), edgeWeight(edgeAttr),
			))
		}
	}

	return g
}

// SortedNodeIDs returns the node ids of g in ascending order.
func SortedNodeIDs(g graph.Graph) []int64 {
	nodes := graph.NodesOf(g.Nodes())
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	slices.Sort(ids)
	return ids
}

func SaveGraphToFile(g *simple.WeightedUndirectedGraph, filename string) error {
	nxGraph := SerializeGraph(g)

	data, err := msgpack.Marshal(nxGraph)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}

func LoadGraphFromFile(filename string) (*simple.WeightedUndirectedGraph, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var nxGraph NetworkXGraph
	err = msgpack.Unmarshal(data, &nxGraph)
	if err != nil {
		return nil, err
	}

	return DeserializeGraph(&nxGraph), nil
}
