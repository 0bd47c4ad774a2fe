package simulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fahiragea/agentbasedmodelling-final/model"
	"github.com/fahiragea/agentbasedmodelling-final/shock"
	"github.com/fahiragea/agentbasedmodelling-final/spatial"
	"github.com/fahiragea/agentbasedmodelling-final/utils"

	"gonum.org/v1/gonum/graph/simple"
	"gopkg.in/yaml.v3"
)

const (
	NetworkSmallWorld = "watts_strogatz"
	NetworkRandom     = "erdos_renyi"
	NetworkNone       = "no_network"
)

// NetworkParams describes how the social network is generated.
type NetworkParams struct {
	NetworkType       string  `json:"network_type" yaml:"network_type"`
	NodeCount         int     `json:"node_count" yaml:"node_count"`
	NetworkDegree     int     `json:"network_degree" yaml:"network_degree"`
	RewireProbability float64 `json:"rewire_probability" yaml:"rewire_probability"`
	EdgeProbability   float64 `json:"edge_probability" yaml:"edge_probability"`
}

// DefaultNetworkParams is the 50 household small world of the reference runs.
func DefaultNetworkParams() NetworkParams {
	return NetworkParams{
		NetworkType:       NetworkSmallWorld,
		NodeCount:         50,
		NetworkDegree:     5,
		RewireProbability: 0.2,
		EdgeProbability:   0.4,
	}
}

func (p *NetworkParams) Validate() error {
	var errs []error
	if p.NodeCount < 1 {
		errs = append(errs, fmt.Errorf("node_count must be >= 1, got %d", p.NodeCount))
	}
	switch p.NetworkType {
	case NetworkSmallWorld:
		if p.NetworkDegree < 0 || p.NetworkDegree >= p.NodeCount {
			errs = append(errs, fmt.Errorf(
				"network_degree must be in [0, node_count), got %d", p.NetworkDegree,
			))
		}
		if p.RewireProbability < 0 || p.RewireProbability > 1 {
			errs = append(errs, fmt.Errorf(
				"rewire_probability must be in [0, 1], got %v", p.RewireProbability,
			))
		}
	case NetworkRandom:
		if p.EdgeProbability < 0 || p.EdgeProbability > 1 {
			errs = append(errs, fmt.Errorf(
				"edge_probability must be in [0, 1], got %v", p.EdgeProbability,
			))
		}
	case NetworkNone:
	default:
		errs = append(errs, fmt.Errorf("unknown network_type %q", p.NetworkType))
	}
	return errors.Join(errs...)
}

// BuildNetwork generates the network from the network stream of seed.
func (p *NetworkParams) BuildNetwork(seed uint64) (*simple.WeightedUndirectedGraph, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidParams, err)
	}
	rng := utils.NewRand(seed, utils.StreamNetwork, 0)
	switch p.NetworkType {
	case NetworkSmallWorld:
		return utils.CreateSmallWorldNetwork(p.NodeCount, p.NetworkDegree, p.RewireProbability, rng), nil
	case NetworkRandom:
		return utils.CreateRandomNetwork(p.NodeCount, p.EdgeProbability, rng), nil
	default:
		return utils.CreateEmptyNetwork(p.NodeCount), nil
	}
}

// ScenarioMetadata is the complete, serializable description of one run.
type ScenarioMetadata struct {
	UniqueName string `json:"unique_name" yaml:"unique_name"`

	model.Weights            `yaml:",inline"`
	model.AgentParams        `yaml:",inline"`
	model.ModelPureParams    `yaml:",inline"`
	model.CollectItemOptions `yaml:",inline"`
	NetworkParams            `yaml:",inline"`

	Shock   shock.Config   `json:"shock" yaml:"shock"`
	Spatial spatial.Config `json:"spatial" yaml:"spatial"`
}

func DefaultScenarioMetadata() *ScenarioMetadata {
	return &ScenarioMetadata{
		UniqueName:      "default",
		Weights:         model.Weights{Financial: 1, Trait: 1, External: 1},
		AgentParams:     *model.DefaultAgentParams(),
		ModelPureParams: *model.DefaultModelPureParams(),
		CollectItemOptions: model.CollectItemOptions{
			AgentRecords:    true,
			AdaptationEvent: true,
			ShockEvent:      true,
		},
		NetworkParams: DefaultNetworkParams(),
		Shock:         shock.DefaultConfig(),
	}
}

// LoadScenarioMetadata reads a YAML or JSON scenario file. Fields missing
// from the file keep their defaults.
func LoadScenarioMetadata(path string) (*ScenarioMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	metadata := DefaultScenarioMetadata()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, metadata)
	default:
		err = yaml.Unmarshal(data, metadata)
	}
	if err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return metadata, nil
}

// ModelParams binds the configured shock policy to the pure parameters.
func (m *ScenarioMetadata) ModelParams() (*model.ModelParams, error) {
	factory, err := m.Shock.Factory()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidParams, err)
	}
	return &model.ModelParams{
		ModelPureParams: m.ModelPureParams,
		ShockFactory:    factory,
	}, nil
}

// Validate checks the whole scenario without building anything.
func (m *ScenarioMetadata) Validate() error {
	mp, err := m.ModelParams()
	if err != nil {
		return err
	}
	err = errors.Join(
		model.ValidateParams(m.Weights, &m.AgentParams, mp),
		m.NetworkParams.Validate(),
	)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", m.UniqueName, err)
	}
	return nil
}

// BuildModel creates a fresh model for the scenario on domain.
func (m *ScenarioMetadata) BuildModel(
	domain model.SpatialContext,
	eventLogger func(*model.EventRecord),
) (*model.AdaptationModel, error) {
	mp, err := m.ModelParams()
	if err != nil {
		return nil, err
	}
	g, err := m.NetworkParams.BuildNetwork(m.Seed)
	if err != nil {
		return nil, err
	}
	agentParams := m.AgentParams
	collectItems := m.CollectItemOptions
	return model.NewAdaptationModel(
		g,
		domain,
		m.Weights,
		&agentParams,
		mp,
		&collectItems,
		eventLogger,
	)
}
