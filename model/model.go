package model

import (
	"errors"
	"fmt"

	"github.com/fahiragea/agentbasedmodelling-final/utils"

	"gonum.org/v1/gonum/graph/simple"
)

var ErrModelDone = errors.New("model has reached its step budget")

// AdaptationModel owns the household population, the social network and
// the step counter.
type AdaptationModel struct {
	Graph        *simple.WeightedUndirectedGraph
	Spatial      SpatialContext
	Weights      Weights
	AgentParams  *AgentParams
	ModelParams  *ModelParams
	CollectItems *CollectItemOptions
	EventLogger  func(*EventRecord)
	Collector    Collector
	Data         *DataCollector
	Shock        ShockPolicy
	CurStep      int
	Grid         *NetworkGrid
	Schedule     *RandomActivation
}

// newAdaptationModel wires everything except the households.
func newAdaptationModel(
	g *simple.WeightedUndirectedGraph,
	spatial SpatialContext,
	weights Weights,
	agentParams *AgentParams,
	modelParams *ModelParams,
	collectItems *CollectItemOptions,
	eventLogger func(*EventRecord),
) (*AdaptationModel, error) {
	// Use default params if none provided
	if agentParams == nil {
		agentParams = DefaultAgentParams()
	}
	if modelParams == nil {
		modelParams = DefaultModelParams()
	}
	if collectItems == nil {
		collectItems = &CollectItemOptions{}
	}

	if err := ValidateParams(weights, agentParams, modelParams); err != nil {
		return nil, err
	}
	if g == nil || g.Nodes().Len() == 0 {
		return nil, fmt.Errorf("%w: household count must be >= 1", ErrInvalidParams)
	}
	if err := ValidateFloodMap(spatial, modelParams.FloodMapChoice); err != nil {
		return nil, err
	}

	data := NewDataCollector()
	model := &AdaptationModel{
		Graph:        g,
		Spatial:      spatial,
		Weights:      weights,
		AgentParams:  agentParams,
		ModelParams:  modelParams,
		CollectItems: collectItems,
		EventLogger:  eventLogger,
		Collector:    data,
		Data:         data,
		CurStep:      0,
	}

	model.Grid = NewNetworkGrid(g)
	model.Schedule = NewRandomActivation(
		modelParams.Activation,
		modelParams.Workers,
		utils.NewStream(modelParams.Seed, utils.StreamActivation, 0),
	)

	return model, nil
}

func (m *AdaptationModel) placeAgent(h *Household) {
	m.Grid.PlaceAgent(h, h.ID)
	m.Schedule.AddAgent(h)
}

func (m *AdaptationModel) initShockPolicy(dumpData []byte) {
	if m.ModelParams.ShockFactory != nil {
		m.Shock = m.ModelParams.ShockFactory(m)
	}
	if m.Shock != nil {
		m.Shock.PostInit(dumpData)
	}
}

// NewAdaptationModel creates one household per node of g, in ascending
// node id order. Every household draws from its own stream derived from
// the model seed and its id.
func NewAdaptationModel(
	g *simple.WeightedUndirectedGraph,
	spatial SpatialContext,
	weights Weights,
	agentParams *AgentParams,
	modelParams *ModelParams,
	collectItems *CollectItemOptions,
	eventLogger func(*EventRecord),
) (*AdaptationModel, error) {
	model, err := newAdaptationModel(g, spatial, weights, agentParams, modelParams, collectItems, eventLogger)
	if err != nil {
		return nil, err
	}

	seed := model.ModelParams.Seed
	for _, id := range utils.SortedNodeIDs(g) {
		h, err := NewHousehold(
			id,
			spatial,
			model.ModelParams.FloodMapChoice,
			model.AgentParams,
			utils.NewStream(seed, utils.StreamHousehold, uint64(id)),
		)
		if err != nil {
			return nil, err
		}
		model.placeAgent(h)
	}

	model.initShockPolicy(nil)

	return model, nil
}

// Done reports whether the step budget is exhausted.
func (m *AdaptationModel) Done() bool {
	return m.CurStep >= m.ModelParams.MaxSteps
}

// ApplyShock floods one household and reports the event.
func (m *AdaptationModel) ApplyShock(s Shock) {
	h := m.Grid.GetAgent(s.AgentID)
	if h == nil {
		return
	}
	h.ApplyShock(s.Depth, m.AgentParams.ShockSalience)

	if m.EventLogger != nil && m.CollectItems.ShockEvent {
		m.EventLogger(&EventRecord{
			Type:    EventShock,
			AgentID: h.ID,
			Step:    m.CurStep,
			Body: ShockEventBody{
				Depth:  h.ActualDepth,
				Damage: h.ActualDamage,
			},
		})
	}
}

// opinionSnapshot is the frozen view households read during a step.
type opinionSnapshot struct {
	grid     *NetworkGrid
	opinions map[int64]float64
}

func (s *opinionSnapshot) Neighbors(id int64) []NeighborSnapshot {
	ns := s.grid.NeighborsOf(id)
	ret := make([]NeighborSnapshot, len(ns))
	for i, n := range ns {
		other := s.grid.GetAgent(n.ID)
		ret[i] = NeighborSnapshot{
			ID:             n.ID,
			Opinion:        s.opinions[n.ID],
			Persuasiveness: other.Persuasiveness,
			SocialStatus:   other.SocialStatus,
			Frequency:      n.Weight,
		}
	}
	return ret
}

// Snapshot copies the current opinion of every household.
func (m *AdaptationModel) Snapshot() NeighborView {
	opinions := make(map[int64]float64, len(m.Schedule.Agents))
	for _, h := range m.Schedule.Agents {
		opinions[h.ID] = h.Opinion
	}
	return &opinionSnapshot{grid: m.Grid, opinions: opinions}
}

// Step advances the model by one time step
func (m *AdaptationModel) Step() (ModelRecord, error) {
	if m.Done() {
		return ModelRecord{}, ErrModelDone
	}

	// actual floods land before anyone looks at their neighbours
	if m.Shock != nil {
		for _, s := range m.Shock.PreStep(m.CurStep) {
			m.ApplyShock(s)
		}
	}

	// read phase
	view := m.Snapshot()
	m.Schedule.Step(func(h *Household) {
		h.Step(view, m.Weights, m.AgentParams, m.CurStep)
	})

	// write phase
	for _, h := range m.Schedule.Agents {
		adapted := !h.IsAdapted && h.Next.IsAdapted
		h.HouseholdState = h.Next

		if adapted && m.EventLogger != nil && m.CollectItems.AdaptationEvent {
			m.EventLogger(&EventRecord{
				Type:    EventAdaptation,
				AgentID: h.ID,
				Step:    m.CurStep,
				Body: AdaptationEventBody{
					Opinion: h.Opinion,
					Savings: h.Savings,
					Cost:    h.AdaptationCost,
				},
			})
		}
	}

	// Increment step counter
	m.CurStep++

	return m.collect(), nil
}

// Run steps the model until its budget is exhausted.
func (m *AdaptationModel) Run() error {
	for !m.Done() {
		if _, err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Households returns the households in schedule order.
func (m *AdaptationModel) Households() []*Household {
	return m.Schedule.Agents
}
