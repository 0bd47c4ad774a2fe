package model

import (
	"errors"
	"math/rand/v2"

	"github.com/fahiragea/agentbasedmodelling-final/utils"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/graph/simple"
)

// stubSpatial is a unit square: the left half is the floodplain with depth
// growing to the west, the bottom half is poor.
type stubSpatial struct {
	maxDepth float64
}

func (s *stubSpatial) SampleLocation(rng *rand.Rand) (orb.Point, error) {
	return orb.Point{rng.Float64(), rng.Float64()}, nil
}

func (s *stubSpatial) InFloodplain(p orb.Point) bool {
	return p[0] < 0.5
}

func (s *stubSpatial) IsPoor(p orb.Point) bool {
	return p[1] < 0.5
}

func (s *stubSpatial) HasScenario(scenario string) bool {
	return scenario == "500yr"
}

func (s *stubSpatial) FloodDepth(p orb.Point, scenario string) (float64, error) {
	if !s.HasScenario(scenario) {
		return 0, errors.New("unknown scenario")
	}
	return s.maxDepth * (1 - p[0]), nil
}

func testModelParams(steps int) *ModelParams {
	p := DefaultModelParams()
	p.MaxSteps = steps
	p.Seed = 42
	return p
}

func testNetwork(n int, seed uint64) *simple.WeightedUndirectedGraph {
	return utils.CreateSmallWorldNetwork(n, 4, 0.2, utils.NewRand(seed, utils.StreamNetwork, 0))
}

func newTestModel(n int, steps int, weights Weights, tweak func(*ModelParams)) (*AdaptationModel, error) {
	mp := testModelParams(steps)
	if tweak != nil {
		tweak(mp)
	}
	return NewAdaptationModel(
		testNetwork(n, 7),
		&stubSpatial{maxDepth: 4},
		weights,
		DefaultAgentParams(),
		mp,
		&CollectItemOptions{AgentRecords: true, Influences: true},
		nil,
	)
}
