package model

import (
	"fmt"
	"math/rand/v2"

	"github.com/paulmach/orb"
)

// SpatialContext places households and answers flood map queries.
type SpatialContext interface {
	SampleLocation(rng *rand.Rand) (orb.Point, error)
	InFloodplain(p orb.Point) bool
	IsPoor(p orb.Point) bool
	FloodDepth(p orb.Point, scenario string) (float64, error)
	HasScenario(scenario string) bool
}

// ValidateFloodMap checks that spatial has a flood map named scenario.
func ValidateFloodMap(spatial SpatialContext, scenario string) error {
	if spatial == nil {
		return fmt.Errorf("%w: spatial context is required", ErrInvalidParams)
	}
	if !spatial.HasScenario(scenario) {
		return fmt.Errorf("%w: unknown flood_map_choice %q", ErrInvalidParams, scenario)
	}
	return nil
}

// HouseholdState is the part of a household that changes during a step.
type HouseholdState struct {
	Opinion       float64 `msgpack:"opinion"`
	Savings       float64 `msgpack:"savings"`
	FloodMemory   float64 `msgpack:"flood_memory"`
	IsAdapted     bool    `msgpack:"is_adapted"`
	AdaptedAtStep *int    `msgpack:"adapted_at_step"`
}

// Household represents a household agent in the flood adaptation model
type Household struct {
	ID       int64     `msgpack:"id"`
	Location orb.Point `msgpack:"location"`

	InFloodplain         bool    `msgpack:"in_floodplain"`
	EstimatedDepth       float64 `msgpack:"estimated_depth"`
	SmallEstimatedDepth  float64 `msgpack:"small_estimated_depth"`
	EstimatedDamage      float64 `msgpack:"estimated_damage"`
	SmallEstimatedDamage float64 `msgpack:"small_estimated_damage"`
	ActualDepth          float64 `msgpack:"actual_depth"`
	ActualDamage         float64 `msgpack:"actual_damage"`

	IsPoor             bool    `msgpack:"is_poor"`
	Income             float64 `msgpack:"income"`
	RealEstateValue    float64 `msgpack:"real_estate_value"`
	Insured            bool    `msgpack:"insured"`
	AdaptationCost     float64 `msgpack:"adaptation_cost"`
	AdaptationEfficacy float64 `msgpack:"adaptation_efficacy"`

	PersonalValues float64 `msgpack:"personal_values"`
	SocialStatus   float64 `msgpack:"social_status"`
	Persuasiveness float64 `msgpack:"persuasiveness"`

	HouseholdState `msgpack:"state"`

	Next       HouseholdState `msgpack:"-"`
	Influences Influences     `msgpack:"-"`

	src *rand.PCG
	rng *rand.Rand
}

// NewHousehold creates a household at a sampled location. All random draws,
// now and during later steps, come from src.
func NewHousehold(
	id int64,
	spatial SpatialContext,
	scenario string,
	params *AgentParams,
	src *rand.PCG,
) (*Household, error) {
	h := &Household{ID: id}
	h.setSource(src)

	// location
	loc, err := spatial.SampleLocation(h.rng)
	if err != nil {
		return nil, fmt.Errorf("household %d: %w", id, err)
	}
	h.Location = loc
	h.InFloodplain = spatial.InFloodplain(loc)

	// estimated flood, from the flood map (past data). Negative depth means
	// the ground is above the flood level.
	depth, err := spatial.FloodDepth(loc, scenario)
	if err != nil {
		return nil, fmt.Errorf("household %d: %w", id, err)
	}
	h.EstimatedDepth = max(depth, 0)
	h.SmallEstimatedDepth = h.EstimatedDepth / 6
	h.EstimatedDamage = FloodDamage(h.EstimatedDepth)
	// not run through the damage curve in the reference model
	h.SmallEstimatedDamage = h.EstimatedDepth / 6

	// economic profile; income per tick is a quarter year, 10% goes to savings
	h.IsPoor = spatial.IsPoor(loc)
	var richness float64
	if h.IsPoor {
		h.Savings = float64(2000 + h.rng.IntN(10000-2000+1))
		richness = h.Savings / 10000
		h.Income = richness * 7000 * 3 * 0.1
		h.RealEstateValue = 340000 * richness
	} else {
		h.Savings = float64(28000 + h.rng.IntN(100000-28000+1))
		richness = h.Savings / 100000
		h.Income = richness * 25000 * 3 * 0.1
		h.RealEstateValue = max(1000000*richness, 340000)
	}

	h.Insured = true
	h.AdaptationCost = h.RealEstateValue * params.AdaptationCostShare
	h.AdaptationEfficacy = params.AdaptationEfficacy

	// personal values
	h.Opinion = h.rng.Float64()
	h.PersonalValues = h.Opinion

	// social influence, only read by neighbours
	h.SocialStatus = h.rng.Float64()
	h.Persuasiveness = h.rng.Float64()

	h.ActualDepth = 0
	h.ActualDamage = FloodDamage(0)
	h.Next = h.HouseholdState

	return h, nil
}

func (h *Household) setSource(src *rand.PCG) {
	h.src = src
	h.rng = rand.New(src)
}

// ApplyShock records an actual flood of the given depth. The memory of
// the flood starts at the resulting damage scaled by salience and decays
// during later steps.
func (h *Household) ApplyShock(depth float64, salience float64) {
	h.ActualDepth = max(depth, 0)
	h.ActualDamage = FloodDamage(h.ActualDepth)
	h.FloodMemory = h.ActualDamage * salience
}

// RandomState returns the serialized state of the household's random source.
func (h *Household) RandomState() ([]byte, error) {
	return h.src.MarshalBinary()
}

// RestoreRandomState resets the household's random source from RandomState output.
func (h *Household) RestoreRandomState(data []byte) error {
	src := &rand.PCG{}
	if err := src.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("household %d: %w", h.ID, err)
	}
	h.setSource(src)
	return nil
}
