package shock

import (
	"errors"
	"fmt"

	"github.com/fahiragea/agentbasedmodelling-final/model"
)

var ErrUnknownPolicy = errors.New("unknown shock policy")

const (
	PolicyNone   = "none"
	PolicyFixed  = "fixed"
	PolicyRandom = "random"
	PolicyMix    = "fixed+random"
)

// Config selects and parameterizes a shock policy.
type Config struct {
	Type        string  `json:"type" yaml:"type"`
	Step        int     `json:"step" yaml:"step"`
	Probability float64 `json:"probability" yaml:"probability"`
	FactorMin   float64 `json:"factor_min" yaml:"factor_min"`
	FactorMax   float64 `json:"factor_max" yaml:"factor_max"`
}

// DefaultConfig is no flood at all, as in the reference sensitivity runs.
// The factor range applies once a policy is chosen.
func DefaultConfig() Config {
	return Config{
		Type:        PolicyNone,
		Step:        5,
		Probability: 0.05,
		FactorMin:   0.5,
		FactorMax:   1.2,
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Type {
	case "", PolicyNone:
		return nil
	case PolicyFixed, PolicyRandom, PolicyMix:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, c.Type)
	}
	if c.Step < 0 {
		errs = append(errs, fmt.Errorf("shock step must be >= 0, got %d", c.Step))
	}
	if c.Probability < 0 || c.Probability > 1 {
		errs = append(errs, fmt.Errorf("shock probability must be in [0, 1], got %v", c.Probability))
	}
	if c.FactorMin < 0 || c.FactorMax < c.FactorMin {
		errs = append(errs, fmt.Errorf("shock factor range [%v, %v] is invalid", c.FactorMin, c.FactorMax))
	}
	return errors.Join(errs...)
}

// Factory returns the model hook creating the configured policy, or nil
// when no floods should happen.
func (c *Config) Factory() (model.ShockFactory, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	defs := GetDefaultFactoryDefs(*c)
	if c.Type == "" {
		return nil, nil
	}
	return defs[c.Type], nil
}

func GetDefaultFactoryDefs(c Config) map[string]model.ShockFactory {
	ret := map[string]model.ShockFactory{

		PolicyNone: nil,

		PolicyFixed: func(m *model.AdaptationModel) model.ShockPolicy {
			return NewFixed(m, c.Step, c.FactorMin, c.FactorMax)
		},

		PolicyRandom: func(m *model.AdaptationModel) model.ShockPolicy {
			return NewRandom(m, c.Probability, c.FactorMin, c.FactorMax)
		},
	}

	ret[PolicyMix] = func(m *model.AdaptationModel) model.ShockPolicy {
		return &Mix{
			Policy1: ret[PolicyFixed](m),
			Policy2: ret[PolicyRandom](m),
		}
	}

	return ret
}
