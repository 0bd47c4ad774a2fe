package shock

import (
	"github.com/fahiragea/agentbasedmodelling-final/model"
)

// Fixed floods the study area once, before the given step.
type Fixed struct {
	model.BaseShockPolicy
	Model     *model.AdaptationModel
	Step      int
	FactorMin float64
	FactorMax float64

	source source
}

func _() model.ShockPolicy {
	return &Fixed{}
}

func NewFixed(m *model.AdaptationModel, step int, factorMin float64, factorMax float64) *Fixed {
	return &Fixed{
		Model:     m,
		Step:      step,
		FactorMin: factorMin,
		FactorMax: factorMax,
		source:    newSource(m, 0),
	}
}

func (f *Fixed) PostInit(dumpData []byte) {
	f.source.restore(dumpData)
}

func (f *Fixed) PreStep(curStep int) []model.Shock {
	if curStep != f.Step {
		return nil
	}
	return floodHouseholds(f.Model.Households(), f.source.rng, f.FactorMin, f.FactorMax)
}

func (f *Fixed) Dump() []byte {
	return f.source.dump()
}
