package shock

import (
	"github.com/fahiragea/agentbasedmodelling-final/model"
)

// Random floods the study area with a fixed probability every step.
type Random struct {
	model.BaseShockPolicy
	Model       *model.AdaptationModel
	Probability float64
	FactorMin   float64
	FactorMax   float64

	source source
}

func _() model.ShockPolicy {
	return &Random{}
}

func NewRandom(m *model.AdaptationModel, probability float64, factorMin float64, factorMax float64) *Random {
	return &Random{
		Model:       m,
		Probability: probability,
		FactorMin:   factorMin,
		FactorMax:   factorMax,
		source:      newSource(m, 1),
	}
}

func (r *Random) PostInit(dumpData []byte) {
	r.source.restore(dumpData)
}

func (r *Random) PreStep(curStep int) []model.Shock {
	if r.source.rng.Float64() >= r.Probability {
		return nil
	}
	return floodHouseholds(r.Model.Households(), r.source.rng, r.FactorMin, r.FactorMax)
}

func (r *Random) Dump() []byte {
	return r.source.dump()
}
