package shock

import (
	"errors"
	"slices"
	"testing"

	"github.com/fahiragea/agentbasedmodelling-final/model"
	"github.com/fahiragea/agentbasedmodelling-final/spatial"
	"github.com/fahiragea/agentbasedmodelling-final/utils"
)

func newTestModel(t *testing.T, cfg Config) *model.AdaptationModel {
	t.Helper()

	domain, err := spatial.DefaultDomain()
	if err != nil {
		t.Fatal(err)
	}
	factory, err := cfg.Factory()
	if err != nil {
		t.Fatal(err)
	}

	mp := model.DefaultModelParams()
	mp.MaxSteps = 10
	mp.ShockFactory = factory

	g := utils.CreateSmallWorldNetwork(40, 4, 0.2, utils.NewRand(mp.Seed, utils.StreamNetwork, 0))
	m, err := model.NewAdaptationModel(g, domain, model.Weights{}, nil, mp, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestFixedFloodsOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Type = PolicyFixed
	cfg.Step = 2
	m := newTestModel(t, cfg)

	for step := 0; step < 2; step++ {
		if got := m.Shock.PreStep(step); len(got) != 0 {
			t.Fatalf("shocks before step 2: %v", got)
		}
	}

	shocks := m.Shock.PreStep(2)
	wet := 0
	for _, h := range m.Households() {
		if h.EstimatedDepth > 0 {
			wet++
		}
	}
	if len(shocks) != wet {
		t.Fatalf("shocks = %d, want one per wet household (%d)", len(shocks), wet)
	}
	for _, s := range shocks {
		h := m.Grid.GetAgent(s.AgentID)
		lo, hi := h.EstimatedDepth*cfg.FactorMin, h.EstimatedDepth*cfg.FactorMax
		if s.Depth < lo || s.Depth > hi {
			t.Errorf("household %d depth %f outside [%f, %f]", h.ID, s.Depth, lo, hi)
		}
	}

	if got := m.Shock.PreStep(3); len(got) != 0 {
		t.Errorf("fixed policy flooded again at step 3")
	}
}

func TestRandomProbabilityBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Type = PolicyRandom

	cfg.Probability = 0
	never := newTestModel(t, cfg)
	cfg.Probability = 1
	always := newTestModel(t, cfg)

	for step := 0; step < 5; step++ {
		if got := never.Shock.PreStep(step); len(got) != 0 {
			t.Fatalf("probability 0 flooded at step %d", step)
		}
		if got := always.Shock.PreStep(step); len(got) == 0 {
			t.Fatalf("probability 1 did not flood at step %d", step)
		}
	}
}

func TestDumpResumesSequence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Type = PolicyMix
	cfg.Step = 4
	cfg.Probability = 0.5

	m := newTestModel(t, cfg)
	for step := 0; step < 3; step++ {
		m.Shock.PreStep(step)
	}
	dump := m.Shock.Dump()

	resumed := newTestModel(t, cfg)
	resumed.Shock.PostInit(dump)

	for step := 3; step < 10; step++ {
		want := m.Shock.PreStep(step)
		got := resumed.Shock.PreStep(step)
		if !slices.Equal(want, got) {
			t.Fatalf("step %d: resumed policy diverged", step)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if f, err := cfg.Factory(); err != nil || f != nil {
		t.Errorf("none policy: factory %v, err %v", f != nil, err)
	}

	cfg.Type = "tsunami"
	if _, err := cfg.Factory(); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("unknown policy: got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Type = PolicyRandom
	cfg.Probability = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("probability above 1 accepted")
	}

	cfg = DefaultConfig()
	cfg.Type = PolicyFixed
	cfg.FactorMin, cfg.FactorMax = 2, 1
	if err := cfg.Validate(); err == nil {
		t.Error("inverted factor range accepted")
	}
}
