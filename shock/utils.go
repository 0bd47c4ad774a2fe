package shock

import (
	"math/rand/v2"

	"github.com/fahiragea/agentbasedmodelling-final/model"
	"github.com/fahiragea/agentbasedmodelling-final/utils"
)

// source is a resumable random source for a shock policy.
type source struct {
	src *rand.PCG
	rng *rand.Rand
}

func newSource(m *model.AdaptationModel, index uint64) source {
	src := utils.NewStream(m.ModelParams.Seed, utils.StreamShock, index)
	return source{src: src, rng: rand.New(src)}
}

func (s *source) restore(dumpData []byte) bool {
	if dumpData == nil {
		return false
	}
	src := &rand.PCG{}
	if err := src.UnmarshalBinary(dumpData); err != nil {
		return false
	}
	s.src = src
	s.rng = rand.New(src)
	return true
}

func (s *source) dump() []byte {
	ret, err := s.src.MarshalBinary()
	if err != nil {
		return nil
	}
	return ret
}

// floodHouseholds turns the flood map estimate of every household into an
// actual depth scaled by a factor drawn from [factorMin, factorMax].
// Households without an estimated flood stay dry.
func floodHouseholds(
	households []*model.Household,
	rng *rand.Rand,
	factorMin float64,
	factorMax float64,
) []model.Shock {
	ret := make([]model.Shock, 0)
	for _, h := range households {
		// drawn for everyone so the stream does not depend on the flood map
		factor := factorMin + rng.Float64()*(factorMax-factorMin)
		if h.EstimatedDepth <= 0 {
			continue
		}
		ret = append(ret, model.Shock{AgentID: h.ID, Depth: h.EstimatedDepth * factor})
	}
	return ret
}
