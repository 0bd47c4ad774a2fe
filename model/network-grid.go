package model

import (
	"slices"
	"sync"

	"gonum.org/v1/gonum/graph/simple"
)

// Neighbor is one adjacent household and the interaction frequency of the edge.
type Neighbor struct {
	ID     int64
	Weight float64
}

// NetworkGrid places households on the nodes of the social network
type NetworkGrid struct {
	Graph     *simple.WeightedUndirectedGraph
	AgentMap  map[int64]*Household
	neighbors map[int64][]Neighbor
	mu        sync.RWMutex
}

// NewNetworkGrid creates a new network grid. The network is fixed for the
// whole run, so neighbour lists are resolved once here.
func NewNetworkGrid(g *simple.WeightedUndirectedGraph) *NetworkGrid {
	ng := &NetworkGrid{
		Graph:     g,
		AgentMap:  make(map[int64]*Household),
		neighbors: make(map[int64][]Neighbor),
	}

	nodes := g.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		var list []Neighbor
		from := g.From(id)
		for from.Next() {
			nid := from.Node().ID()
			w, _ := g.Weight(id, nid)
			list = append(list, Neighbor{ID: nid, Weight: w})
		}
		slices.SortFunc(list, func(a, b Neighbor) int {
			switch {
			case a.ID < b.ID:
				return -1
			case a.ID > b.ID:
				return 1
			}
			return 0
		})
		ng.neighbors[id] = list
	}

	return ng
}

// PlaceAgent places a household on the grid
func (ng *NetworkGrid) PlaceAgent(agent *Household, nodeID int64) {
	ng.mu.Lock()
	defer ng.mu.Unlock()
	ng.AgentMap[nodeID] = agent
}

// GetAgent returns the household at the specified node
func (ng *NetworkGrid) GetAgent(nodeID int64) *Household {
	ng.mu.RLock()
	defer ng.mu.RUnlock()
	return ng.AgentMap[nodeID]
}

// NeighborsOf returns the neighbours of a node in ascending id order.
// The returned slice must not be modified.
func (ng *NetworkGrid) NeighborsOf(nodeID int64) []Neighbor {
	return ng.neighbors[nodeID]
}
