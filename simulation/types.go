package simulation

import (
	"github.com/fahiragea/agentbasedmodelling-final/model"
)

type AccumulativeModelState struct {
	// (step, agent)
	Opinions [][]float64
	// (step, agent)
	Savings [][]float64
	// (step, agent)
	FloodMemory [][]float64
	// (step, agent)
	Adapted [][]bool
}

func NewAccumulativeModelState() *AccumulativeModelState {
	return &AccumulativeModelState{
		Opinions:    make([][]float64, 0),
		Savings:     make([][]float64, 0),
		FloodMemory: make([][]float64, 0),
		Adapted:     make([][]bool, 0),
	}
}

func (s *AccumulativeModelState) accumulate(m *model.AdaptationModel) {
	s.Opinions = append(s.Opinions, m.CollectOpinions())
	s.Savings = append(s.Savings, m.CollectSavings())
	s.FloodMemory = append(s.FloodMemory, m.CollectFloodMemory())
	s.Adapted = append(s.Adapted, m.CollectAdapted())
}

func (s *AccumulativeModelState) validate(m *model.AdaptationModel) bool {
	st := m.CurStep
	return len(s.Opinions) == st &&
		len(s.Savings) == st &&
		len(s.FloodMemory) == st &&
		len(s.Adapted) == st
}

// Steps returns the number of accumulated steps.
func (s *AccumulativeModelState) Steps() int {
	return len(s.Opinions)
}
