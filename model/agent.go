package model

// NeighborSnapshot is what a household sees of one neighbour: the
// neighbour's opinion as of the end of the previous step plus its fixed
// social traits and the interaction frequency of the edge.
type NeighborSnapshot struct {
	ID             int64
	Opinion        float64
	Persuasiveness float64
	SocialStatus   float64
	Frequency      float64
}

// NeighborView gives read-only access to frozen neighbour state.
type NeighborView interface {
	Neighbors(id int64) []NeighborSnapshot
}

// Influences are the opinion contributions computed during one step.
type Influences struct {
	Financial float64 `msgpack:"financial" db:"financial"`
	Social    float64 `msgpack:"social" db:"social"`
	External  float64 `msgpack:"external" db:"external"`
	Memory    float64 `msgpack:"memory" db:"memory"`
	Trait     float64 `msgpack:"trait" db:"trait"`
}

// FinancialInfluence is the ratio of expected flood cost to expected cost
// after adapting. Values above 1 favour adapting.
func FinancialInfluence(h *Household, params *AgentParams) float64 {
	floodShare, adaptedShare := 1.0, 1.0
	if h.Insured {
		floodShare = params.InsuredFloodShare
		adaptedShare = params.InsuredAdaptedShare
	}

	floodCosts := h.EstimatedDamage * h.RealEstateValue * floodShare
	adaptedDepth := h.EstimatedDepth - params.AdaptedDepthReduction
	adaptedCosts := FloodDamage(adaptedDepth)*h.RealEstateValue*adaptedShare + h.AdaptationCost

	if adaptedCosts == 0 {
		return 0
	}
	return floodCosts / adaptedCosts
}

// SocialInfluence computes the frequency-weighted social capital of the
// neighbours times the opinion gap selected by mode.
func SocialInfluence(opinion float64, neighbors []NeighborSnapshot, mode OpinionGapMode) float64 {
	if len(neighbors) == 0 {
		return 0
	}

	freqTotal := 0.0
	weightedStatus := 0.0
	weightedGap := 0.0
	lastGap := 0.0
	for _, n := range neighbors {
		gap := n.Opinion - opinion
		lastGap = gap
		weightedGap += gap * n.Frequency
		weightedStatus += (n.Persuasiveness + n.SocialStatus) / 2 * n.Frequency
		freqTotal += n.Frequency
	}
	if freqTotal == 0 {
		return 0
	}
	weightedStatus /= freqTotal

	gap := lastGap
	if mode == OpinionGapWeighted {
		gap = weightedGap / freqTotal
	}
	return gap * weightedStatus
}

// HouseholdStep implements the household's update rule. It is a pure
// function of its inputs: external is the pre-drawn uniform external
// influence before weighting and curStep the index of the step being run.
func HouseholdStep(
	h *Household,
	cur HouseholdState,
	neighbors []NeighborSnapshot,
	weights Weights,
	params *AgentParams,
	external float64,
	curStep int,
) (next HouseholdState, inf Influences) {
	next = cur

	// memory of the last flood fades
	next.FloodMemory = max(cur.FloodMemory-params.MemoryDecay, 0)
	next.Savings = cur.Savings + h.Income

	inf.Financial = (FinancialInfluence(h, params) - cur.Opinion) * weights.Financial
	inf.Social = SocialInfluence(cur.Opinion, neighbors, params.OpinionGapMode)
	inf.External = external * weights.External
	inf.Memory = next.FloodMemory

	opinion := cur.Opinion + inf.Social + inf.External + inf.Financial + inf.Memory
	inf.Trait = (h.PersonalValues - opinion) * weights.Trait
	opinion += inf.Trait
	if params.ClampOpinion {
		opinion = min(max(opinion, 0), 1)
	}
	next.Opinion = opinion

	// adaptation is permanent
	if !cur.IsAdapted && next.Opinion >= params.AdaptationThreshold && next.Savings > h.AdaptationCost {
		next.Savings -= h.AdaptationCost
		next.IsAdapted = true
		step := curStep
		next.AdaptedAtStep = &step
	}

	return
}

// Step performs a single step for this household against a frozen view
// of its neighbours. Only Next and Influences are written.
func (h *Household) Step(view NeighborView, weights Weights, params *AgentParams, curStep int) {
	// drawn every step so the stream does not depend on the weights
	external := params.ExternalMin + h.rng.Float64()*(params.ExternalMax-params.ExternalMin)

	h.Next, h.Influences = HouseholdStep(
		h,
		h.HouseholdState,
		view.Neighbors(h.ID),
		weights,
		params,
		external,
		curStep,
	)
}
