package model

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidParams = errors.New("invalid model parameters")

type OpinionGapMode string

const (
	// gap to the last neighbour iterated (ascending id), as in the reference runs
	OpinionGapLast OpinionGapMode = "last"
	// frequency-weighted mean gap over all neighbours
	OpinionGapWeighted OpinionGapMode = "weighted"
)

type ActivationOrder string

const (
	ActivationFixed    ActivationOrder = "fixed"
	ActivationShuffled ActivationOrder = "shuffled"
)

// Weights are the three influence weights swept by the sensitivity analysis.
type Weights struct {
	Financial float64 `json:"w_financial" yaml:"w_financial" msgpack:"w_financial"`
	Trait     float64 `json:"w_trait" yaml:"w_trait" msgpack:"w_trait"`
	External  float64 `json:"w_ext" yaml:"w_ext" msgpack:"w_ext"`
}

func (w Weights) String() string {
	return fmt.Sprintf("(financial=%g, trait=%g, ext=%g)", w.Financial, w.Trait, w.External)
}

func (w Weights) validate() error {
	check := func(name string, v float64) error {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a non-negative number, got %v", name, v)
		}
		return nil
	}
	return errors.Join(
		check("w_financial", w.Financial),
		check("w_trait", w.Trait),
		check("w_ext", w.External),
	)
}

// AgentParams holds the household economics and decision-rule constants.
type AgentParams struct {
	AdaptationThreshold   float64        `json:"adaptation_threshold" yaml:"adaptation_threshold"`
	MemoryDecay           float64        `json:"memory_decay" yaml:"memory_decay"`
	ShockSalience         float64        `json:"shock_salience" yaml:"shock_salience"`
	ExternalMin           float64        `json:"external_min" yaml:"external_min"`
	ExternalMax           float64        `json:"external_max" yaml:"external_max"`
	InsuredFloodShare     float64        `json:"insured_flood_share" yaml:"insured_flood_share"`
	InsuredAdaptedShare   float64        `json:"insured_adapted_share" yaml:"insured_adapted_share"`
	AdaptedDepthReduction float64        `json:"adapted_depth_reduction" yaml:"adapted_depth_reduction"`
	AdaptationCostShare   float64        `json:"adaptation_cost_share" yaml:"adaptation_cost_share"`
	AdaptationEfficacy    float64        `json:"adaptation_efficacy" yaml:"adaptation_efficacy"`
	OpinionGapMode        OpinionGapMode `json:"opinion_gap_mode" yaml:"opinion_gap_mode"`
	ClampOpinion          bool           `json:"clamp_opinion" yaml:"clamp_opinion"`
}

// DefaultAgentParams returns the constants of the reference model.
func DefaultAgentParams() *AgentParams {
	return &AgentParams{
		AdaptationThreshold:   0.75,
		MemoryDecay:           0.01,
		ShockSalience:         1.0,
		ExternalMin:           -0.6,
		ExternalMax:           1.0,
		InsuredFloodShare:     0.2,
		InsuredAdaptedShare:   0.5,
		AdaptedDepthReduction: 1.0,
		AdaptationCostShare:   0.1,
		AdaptationEfficacy:    1.3,
		OpinionGapMode:        OpinionGapLast,
	}
}

func (p *AgentParams) validate() error {
	var errs []error
	if p.MemoryDecay < 0 {
		errs = append(errs, fmt.Errorf("memory_decay must be >= 0, got %v", p.MemoryDecay))
	}
	if p.ShockSalience < 0 {
		errs = append(errs, fmt.Errorf("shock_salience must be >= 0, got %v", p.ShockSalience))
	}
	if p.ExternalMax < p.ExternalMin {
		errs = append(errs, fmt.Errorf("external range [%v, %v] is empty", p.ExternalMin, p.ExternalMax))
	}
	if p.AdaptationCostShare < 0 {
		errs = append(errs, fmt.Errorf("adaptation_cost_share must be >= 0, got %v", p.AdaptationCostShare))
	}
	switch p.OpinionGapMode {
	case OpinionGapLast, OpinionGapWeighted:
	default:
		errs = append(errs, fmt.Errorf("unknown opinion_gap_mode %q", p.OpinionGapMode))
	}
	return errors.Join(errs...)
}

// ModelPureParams contains the serializable part of the model configuration.
type ModelPureParams struct {
	MaxSteps       int             `json:"max_steps" yaml:"max_steps"`
	FloodMapChoice string          `json:"flood_map_choice" yaml:"flood_map_choice"`
	Activation     ActivationOrder `json:"activation" yaml:"activation"`
	Workers        int             `json:"workers" yaml:"workers"`
	Seed           uint64          `json:"seed" yaml:"seed"`
}

// DefaultModelPureParams mirrors the sensitivity runs: 100 steps on the
// 500 year flood map, seed 10.
func DefaultModelPureParams() *ModelPureParams {
	return &ModelPureParams{
		MaxSteps:       100,
		FloodMapChoice: "500yr",
		Activation:     ActivationShuffled,
		Workers:        1,
		Seed:           10,
	}
}

func (p *ModelPureParams) validate() error {
	var errs []error
	if p.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("max_steps must be >= 1, got %d", p.MaxSteps))
	}
	if p.FloodMapChoice == "" {
		errs = append(errs, errors.New("flood_map_choice must not be empty"))
	}
	switch p.Activation {
	case ActivationFixed, ActivationShuffled:
	default:
		errs = append(errs, fmt.Errorf("unknown activation %q", p.Activation))
	}
	if p.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", p.Workers))
	}
	return errors.Join(errs...)
}

type ShockFactory func(*AdaptationModel) ShockPolicy

// ModelParams contains configuration parameters for the adaptation model
type ModelParams struct {
	ModelPureParams
	ShockFactory ShockFactory
}

func DefaultModelParams() *ModelParams {
	return &ModelParams{
		ModelPureParams: *DefaultModelPureParams(),
	}
}

// CollectItemOptions selects what the data collector records each step.
type CollectItemOptions struct {
	AgentRecords    bool `json:"agent_records" yaml:"agent_records"`
	Influences      bool `json:"influences" yaml:"influences"`
	AdaptationEvent bool `json:"adaptation_event" yaml:"adaptation_event"`
	ShockEvent      bool `json:"shock_event" yaml:"shock_event"`
}

// ValidateParams checks every parameter group and reports all problems at once.
func ValidateParams(weights Weights, agentParams *AgentParams, modelParams *ModelParams) error {
	err := errors.Join(
		weights.validate(),
		agentParams.validate(),
		modelParams.validate(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}
