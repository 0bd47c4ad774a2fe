package model

import (
	"fmt"

	"github.com/fahiragea/agentbasedmodelling-final/utils"
)

// AdaptationModelDumpData is everything needed to continue a run exactly
// where it stopped.
type AdaptationModelDumpData struct {
	CurStep         int                 `msgpack:"cur_step"`
	Graph           utils.NetworkXGraph `msgpack:"graph"`
	Households      []*Household        `msgpack:"households"`
	RandomStates    [][]byte            `msgpack:"random_states"`
	ActivationState []byte              `msgpack:"activation_state"`
	ShockDumpData   []byte              `msgpack:"shock_dump_data"`
}

func (m *AdaptationModel) Dump() (*AdaptationModelDumpData, error) {
	ret := &AdaptationModelDumpData{
		CurStep:      m.CurStep,
		Graph:        *utils.SerializeGraph(m.Graph),
		Households:   m.Schedule.Agents,
		RandomStates: make([][]byte, len(m.Schedule.Agents)),
	}

	for i, h := range m.Schedule.Agents {
		state, err := h.RandomState()
		if err != nil {
			return nil, err
		}
		ret.RandomStates[i] = state
	}

	state, err := m.Schedule.RandomState()
	if err != nil {
		return nil, err
	}
	ret.ActivationState = state

	if m.Shock != nil {
		ret.ShockDumpData = m.Shock.Dump()
	}
	return ret, nil
}

// Load rebuilds a model from dumped data. The households are taken as
// they are; spatial must still provide the configured flood map.
func (d *AdaptationModelDumpData) Load(
	spatial SpatialContext,
	weights Weights,
	agentParams *AgentParams,
	modelParams *ModelParams,
	collectItems *CollectItemOptions,
	eventLogger func(*EventRecord),
) (*AdaptationModel, error) {
	if len(d.RandomStates) != len(d.Households) {
		return nil, fmt.Errorf(
			"corrupted dump: %d households but %d random states",
			len(d.Households), len(d.RandomStates),
		)
	}

	g := utils.DeserializeGraph(&d.Graph)

	model, err := newAdaptationModel(g, spatial, weights, agentParams, modelParams, collectItems, eventLogger)
	if err != nil {
		return nil, err
	}

	for i, h := range d.Households {
		if g.Node(h.ID) == nil {
			return nil, fmt.Errorf("corrupted dump: household %d is not in the network", h.ID)
		}
		if err := h.RestoreRandomState(d.RandomStates[i]); err != nil {
			return nil, err
		}
		h.Next = h.HouseholdState
		model.placeAgent(h)
	}

	if err := model.Schedule.RestoreRandomState(d.ActivationState); err != nil {
		return nil, err
	}

	// recover step
	model.CurStep = d.CurStep

	model.initShockPolicy(d.ShockDumpData)

	return model, nil
}
