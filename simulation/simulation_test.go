package simulation

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/fahiragea/agentbasedmodelling-final/model"
	"github.com/fahiragea/agentbasedmodelling-final/shock"
	"github.com/fahiragea/agentbasedmodelling-final/spatial"
	"github.com/fahiragea/agentbasedmodelling-final/utils"
)

var testDomain *spatial.Domain

func domain(t *testing.T) *spatial.Domain {
	t.Helper()
	if testDomain == nil {
		d, err := spatial.Load(spatial.Config{RasterSize: 60})
		if err != nil {
			t.Fatal(err)
		}
		testDomain = d
	}
	return testDomain
}

func testSweepConfig() *SweepConfig {
	cfg := DefaultSweepConfig()
	cfg.Financial = []float64{0, 1}
	cfg.Trait = []float64{0.5}
	cfg.External = []float64{0, 1}
	cfg.Workers = 3
	cfg.Scenario.NodeCount = 20
	cfg.Scenario.NetworkDegree = 4
	cfg.Scenario.MaxSteps = 15
	cfg.Scenario.Shock = shock.Config{Type: shock.PolicyFixed, Step: 3, FactorMin: 0.5, FactorMax: 1.2}
	return cfg
}

func TestGridOrder(t *testing.T) {
	cfg := testSweepConfig()
	want := []model.Weights{
		{Financial: 0, Trait: 0.5, External: 0},
		{Financial: 0, Trait: 0.5, External: 1},
		{Financial: 1, Trait: 0.5, External: 0},
		{Financial: 1, Trait: 0.5, External: 1},
	}
	if got := cfg.Grid(); !slices.Equal(got, want) {
		t.Errorf("Grid() = %v, want %v", got, want)
	}

	cfg.Triples = []model.Weights{{Financial: 0.3}}
	if got := cfg.Grid(); len(got) != 1 || got[0].Financial != 0.3 {
		t.Errorf("explicit triples ignored: %v", got)
	}
}

func TestSeedPolicy(t *testing.T) {
	cfg := testSweepConfig()
	if cfg.RunSeed(0) != cfg.RunSeed(5) {
		t.Error("reset policy gave different seeds")
	}
	cfg.SeedPolicy = SeedPerRun
	if cfg.RunSeed(0) == cfg.RunSeed(1) {
		t.Error("per-run policy gave equal seeds")
	}
	cfg.SeedPolicy = "sometimes"
	if err := cfg.Validate(); !errors.Is(err, model.ErrInvalidParams) {
		t.Errorf("unknown seed policy: got %v", err)
	}
}

func TestSweepRunsAreIndependent(t *testing.T) {
	cfg := testSweepConfig()
	d := domain(t)

	parallel, err := NewSensitivityRunner(cfg, d).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// a lone run of one triple equals its run inside the sweep
	single := testSweepConfig()
	single.Triples = []model.Weights{cfg.Grid()[2]}
	alone, err := NewSensitivityRunner(single, d).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(parallel) != 4 {
		t.Fatalf("got %d results, want 4", len(parallel))
	}
	for i, res := range parallel {
		if res.RunID != i {
			t.Errorf("result %d has run id %d", i, res.RunID)
		}
		if len(res.ModelRecords) != cfg.Scenario.MaxSteps {
			t.Errorf("run %d has %d model records", i, len(res.ModelRecords))
		}
	}
	if !slices.Equal(parallel[2].ModelRecords, alone[0].ModelRecords) {
		t.Error("run result depends on the other runs of the sweep")
	}
	if !slices.Equal(parallel[2].AgentRecords, alone[0].AgentRecords) {
		t.Error("agent records depend on the other runs of the sweep")
	}
}

func TestSweepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSensitivityRunner(testSweepConfig(), domain(t)).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestSweepPersists(t *testing.T) {
	dir := t.TempDir()
	cfg := testSweepConfig()
	cfg.DBPath = filepath.Join(dir, "metrics.db")
	cfg.CSVPath = filepath.Join(dir, "model.csv")
	cfg.AgentCSVPath = filepath.Join(dir, "agents.csv")
	cfg.EventDir = filepath.Join(dir, "events")
	cfg.Scenario.AdaptationEvent = true
	cfg.Scenario.ShockEvent = true

	out, err := Sweep(context.Background(), cfg, domain(t), false)
	if err != nil {
		t.Fatal(err)
	}

	db, err := OpenMetricDB(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	batches, err := db.Batches()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(batches, []string{out.BatchID}) {
		t.Fatalf("batches = %v, want [%s]", batches, out.BatchID)
	}

	runs, err := db.Runs(out.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != len(out.Results) {
		t.Fatalf("stored %d runs, want %d", len(runs), len(out.Results))
	}
	for i, run := range runs {
		res := out.Results[i]
		if run.Financial != res.Financial || run.External != res.External {
			t.Errorf("run %d stored weights (%v, %v)", i, run.Financial, run.External)
		}
		if run.FractionAdapted != res.FractionAdapted() {
			t.Errorf("run %d stored fraction %v, want %v", i, run.FractionAdapted, res.FractionAdapted())
		}
	}

	records, err := db.ModelRecords(out.BatchID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(records, out.Results[1].ModelRecords) {
		t.Error("stored model records differ")
	}
	agents, err := db.AgentRecords(out.BatchID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != len(out.Results[3].AgentRecords) {
		t.Errorf("stored %d agent records, want %d", len(agents), len(out.Results[3].AgentRecords))
	}

	f, err := os.Open(cfg.CSVPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if want := 1 + len(out.Results)*cfg.Scenario.MaxSteps; len(lines) != want {
		t.Errorf("csv has %d lines, want %d", len(lines), want)
	}

	for _, res := range out.Results {
		name := filepath.Join(cfg.EventDir, fmt.Sprintf("%s-%03d.msgpack", cfg.Name, res.RunID))
		if _, err := model.ReadEventRecords(name); err != nil {
			t.Errorf("event log of run %d: %v", res.RunID, err)
		}
	}
}

func testScenario() *ScenarioMetadata {
	metadata := DefaultScenarioMetadata()
	metadata.UniqueName = "resume"
	metadata.NodeCount = 25
	metadata.NetworkDegree = 4
	metadata.MaxSteps = 20
	metadata.Shock = shock.Config{Type: shock.PolicyRandom, Probability: 0.2, FactorMin: 0.5, FactorMax: 1.2}
	return metadata
}

func TestScenarioResume(t *testing.T) {
	d := domain(t)

	// uninterrupted
	straightDir := t.TempDir()
	straight := NewScenario(straightDir, testScenario(), d)
	if err := straight.Init(); err != nil {
		t.Fatal(err)
	}
	if err := straight.StepTillEnd(context.Background()); err != nil {
		t.Fatal(err)
	}
	straightEvents, err := straight.db.GetEvents()
	if err != nil {
		t.Fatal(err)
	}
	if err := straight.Close(); err != nil {
		t.Fatal(err)
	}

	// interrupted after 8 steps
	dir := t.TempDir()
	first := NewScenario(dir, testScenario(), d)
	if err := first.Init(); err != nil {
		t.Fatal(err)
	}
	for range 8 {
		if _, err := first.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if err := first.Dump(); err != nil {
		t.Fatal(err)
	}
	// steps after the snapshot are lost
	for range 3 {
		if _, err := first.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	resumed := NewScenario(dir, testScenario(), d)
	ok, err := resumed.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("nothing to resume")
	}
	if resumed.Model().CurStep != 8 {
		t.Fatalf("resumed at step %d, want 8", resumed.Model().CurStep)
	}
	if err := resumed.StepTillEnd(context.Background()); err != nil {
		t.Fatal(err)
	}
	resumedEvents, err := resumed.db.GetEvents()
	if err != nil {
		t.Fatal(err)
	}
	if err := resumed.Close(); err != nil {
		t.Fatal(err)
	}

	if !resumed.IsFinished() {
		t.Error("resumed scenario not marked finished")
	}
	if !slices.Equal(straight.Model().CollectOpinions(), resumed.Model().CollectOpinions()) {
		t.Error("resumed opinions differ from the uninterrupted run")
	}
	if !slices.EqualFunc(straight.acc.Opinions, resumed.acc.Opinions, slices.Equal[[]float64]) {
		t.Error("resumed opinion history differs from the uninterrupted run")
	}
	if len(straightEvents) != len(resumedEvents) {
		t.Fatalf("event count %d, want %d", len(resumedEvents), len(straightEvents))
	}
	for i := range straightEvents {
		a, b := straightEvents[i], resumedEvents[i]
		if a.Type != b.Type || a.AgentID != b.AgentID || a.Step != b.Step || a.Body != b.Body {
			t.Errorf("event %d differs: %+v vs %+v", i, a, b)
		}
	}

	// the stored accumulative state covers the whole run
	acc, err := resumed.serializer.GetLatestAccumulativeState()
	if err != nil {
		t.Fatal(err)
	}
	if acc.Steps() != 20 {
		t.Errorf("stored accumulative state has %d steps, want 20", acc.Steps())
	}
	if !slices.EqualFunc(acc.Adapted, resumed.acc.Adapted, slices.Equal[[]bool]) {
		t.Error("stored adapted flags differ")
	}
}

func TestLoadWithoutSnapshot(t *testing.T) {
	dir := t.TempDir()
	s := NewScenario(dir, testScenario(), domain(t))
	ok, err := s.Load()
	if err != nil || ok {
		t.Errorf("Load() = %v, %v; want false, nil", ok, err)
	}
}

func TestScenarioMetadataFiles(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "scenario.yaml")
	err := os.WriteFile(yamlPath, []byte(`
unique_name: from-yaml
w_financial: 0.25
w_trait: 0.5
w_ext: 0.75
max_steps: 30
node_count: 12
network_type: erdos_renyi
opinion_gap_mode: weighted
shock:
  type: fixed
  step: 4
  factor_min: 1
  factor_max: 1
`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	m, err := LoadScenarioMetadata(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if m.UniqueName != "from-yaml" || m.Weights != (model.Weights{Financial: 0.25, Trait: 0.5, External: 0.75}) {
		t.Errorf("unexpected metadata %+v", m)
	}
	if m.MaxSteps != 30 || m.NodeCount != 12 || m.NetworkType != NetworkRandom {
		t.Errorf("unexpected run shape %d steps, %d nodes, %s", m.MaxSteps, m.NodeCount, m.NetworkType)
	}
	if m.OpinionGapMode != model.OpinionGapWeighted || m.Shock.Type != shock.PolicyFixed {
		t.Errorf("unexpected options %s, %s", m.OpinionGapMode, m.Shock.Type)
	}
	// untouched fields keep their defaults
	if m.AdaptationThreshold != 0.75 || m.Seed != 10 {
		t.Errorf("defaults lost: threshold %v, seed %d", m.AdaptationThreshold, m.Seed)
	}

	s := NewSimulationSerializer(dir, "meta", 0)
	if err := s.SaveMetadata(m); err != nil {
		t.Fatal(err)
	}
	back, err := s.LoadMetadata()
	if err != nil {
		t.Fatal(err)
	}
	if back.Weights != m.Weights || back.Shock != m.Shock || back.NetworkParams != m.NetworkParams {
		t.Errorf("metadata changed in json round trip: %+v", back)
	}
}

func TestScenarioValidation(t *testing.T) {
	cases := map[string]func(*ScenarioMetadata){
		"degree":   func(m *ScenarioMetadata) { m.NetworkDegree = m.NodeCount },
		"rewire":   func(m *ScenarioMetadata) { m.RewireProbability = 1.5 },
		"network":  func(m *ScenarioMetadata) { m.NetworkType = "scale_free" },
		"shock":    func(m *ScenarioMetadata) { m.Shock.Type = "meteor" },
		"gap mode": func(m *ScenarioMetadata) { m.OpinionGapMode = "first" },
		"weights":  func(m *ScenarioMetadata) { m.Trait = -0.1 },
		"nodes":    func(m *ScenarioMetadata) { m.NodeCount = 0 },
	}
	for name, mutate := range cases {
		m := DefaultScenarioMetadata()
		mutate(m)
		if err := m.Validate(); !errors.Is(err, model.ErrInvalidParams) {
			t.Errorf("%s: got %v, want ErrInvalidParams", name, err)
		}
	}

	if err := DefaultScenarioMetadata().Validate(); err != nil {
		t.Errorf("default scenario invalid: %v", err)
	}
}

func TestAccumulativeStateFile(t *testing.T) {
	state := &AccumulativeModelState{
		Opinions:    [][]float64{{0.1, 0.2}, {0.3, -0.4}},
		Savings:     [][]float64{{1000, 2000}, {1500, 2500}},
		FloodMemory: [][]float64{{0, 0.5}, {0, 0.49}},
		Adapted:     [][]bool{{false, false}, {true, false}},
	}
	path := filepath.Join(t.TempDir(), "acc.lz4")
	if err := SaveAccumulativeModelState(path, state); err != nil {
		t.Fatal(err)
	}
	back, err := LoadAccumulativeModelState(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := range state.Opinions {
		if !slices.Equal(state.Opinions[i], back.Opinions[i]) ||
			!slices.Equal(state.Savings[i], back.Savings[i]) ||
			!slices.Equal(state.FloodMemory[i], back.FloodMemory[i]) ||
			!slices.Equal(state.Adapted[i], back.Adapted[i]) {
			t.Errorf("step %d changed in round trip", i)
		}
	}

	state.Savings = state.Savings[:1]
	if err := SaveAccumulativeModelState(path, state); err == nil {
		t.Error("ragged state accepted")
	}
}

func TestArchiver(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	write := func(name, file string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Join(src, name), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(src, name, file), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("done", "finished-1.msgpack")
	write("done", "snapshot-1.msgpack")
	write("running", "finished-1.msgpack")
	write("running", "lock")
	write("fresh", "snapshot-1.msgpack")

	a := &Archiver{Src: src, Dst: dst}
	copied, err := a.ArchiveOnce()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(copied, []string{"done"}) {
		t.Fatalf("copied %v, want [done]", copied)
	}
	if _, err := os.Stat(filepath.Join(dst, "done", "snapshot-1.msgpack")); err != nil {
		t.Error(err)
	}

	// archived scenarios are not copied again
	copied, err = a.ArchiveOnce()
	if err != nil {
		t.Fatal(err)
	}
	if len(copied) != 0 {
		t.Errorf("copied again: %v", copied)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.Watch(ctx, 10*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Watch returned %v", err)
	}
}

func TestFinishedScenarioKeepsData(t *testing.T) {
	dir := t.TempDir()
	s := NewScenario(dir, testScenario(), domain(t))
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := s.StepTillEnd(context.Background()); err != nil {
		t.Fatal(err)
	}
	before, err := s.db.GetEvents()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	again := NewScenario(dir, testScenario(), domain(t))
	if err := again.Init(); !errors.Is(err, ErrScenarioFinished) {
		t.Fatalf("Init on a finished scenario: got %v, want ErrScenarioFinished", err)
	}
	db, err := OpenEventDB(filepath.Join(dir, "resume", "events.db"), DB_CACHE_SIZE)
	if err != nil {
		t.Fatal(err)
	}
	kept, err := db.GetEvents()
	db.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != len(before) {
		t.Errorf("events after refused Init = %d, want %d", len(kept), len(before))
	}

	// after a reset the scenario runs again and produces the same events
	if err := again.Reset(); err != nil {
		t.Fatal(err)
	}
	if again.IsFinished() {
		t.Fatal("finished mark survived Reset")
	}
	if err := again.Init(); err != nil {
		t.Fatal(err)
	}
	if err := again.StepTillEnd(context.Background()); err != nil {
		t.Fatal(err)
	}
	rerun, err := again.db.GetEvents()
	if err != nil {
		t.Fatal(err)
	}
	if err := again.Close(); err != nil {
		t.Fatal(err)
	}
	if len(rerun) != len(before) || !again.IsFinished() {
		t.Errorf("rerun produced %d events (finished=%v), want %d", len(rerun), again.IsFinished(), len(before))
	}
}

func TestLoadRejectsForeignNetwork(t *testing.T) {
	dir := t.TempDir()
	s := NewScenario(dir, testScenario(), domain(t))
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if _, err := s.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Dump(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	stored, err := s.serializer.LoadGraph()
	if err != nil || stored == nil {
		t.Fatalf("stored network missing: %v", err)
	}
	if !utils.CompareGraphs(stored, s.Model().Graph) {
		t.Fatal("stored network differs from the model network")
	}

	// the matching network resumes
	resumed := NewScenario(dir, testScenario(), domain(t))
	ok, err := resumed.Load()
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v; want true, nil", ok, err)
	}
	if err := resumed.Close(); err != nil {
		t.Fatal(err)
	}

	if err := s.serializer.SaveGraph(utils.CreateEmptyNetwork(testScenario().NodeCount)); err != nil {
		t.Fatal(err)
	}
	ok, err = NewScenario(dir, testScenario(), domain(t)).Load()
	if err != nil || ok {
		t.Errorf("Load() with a foreign network = %v, %v; want false, nil", ok, err)
	}
}

func TestUnknownFloodMapRejectedUpFront(t *testing.T) {
	metadata := testScenario()
	metadata.FloodMapChoice = "1000yr"

	dir := t.TempDir()
	s := NewScenario(dir, metadata, domain(t))
	if err := s.Init(); !errors.Is(err, model.ErrInvalidParams) {
		t.Errorf("Init: got %v, want ErrInvalidParams", err)
	}
	if s.serializer.Exists() {
		t.Error("scenario directory written for an invalid scenario")
	}

	cfg := testSweepConfig()
	cfg.Scenario.FloodMapChoice = "1000yr"
	runner := NewSensitivityRunner(cfg, domain(t))
	if _, err := runner.Run(context.Background()); !errors.Is(err, model.ErrInvalidParams) {
		t.Errorf("sweep: got %v, want ErrInvalidParams", err)
	}
}

// Reference configuration with every weight at zero: 50 households, 100
// steps, seed 10, no flood. The adapted fraction is a recorded value.
func TestZeroWeightsReferenceRun(t *testing.T) {
	d, err := spatial.DefaultDomain()
	if err != nil {
		t.Fatal(err)
	}

	run := func() *model.AdaptationModel {
		metadata := DefaultScenarioMetadata()
		metadata.Weights = model.Weights{}
		m, err := metadata.BuildModel(d, nil)
		if err != nil {
			t.Fatal(err)
		}
		initial := m.CollectSavings()
		if err := m.Run(); err != nil {
			t.Fatal(err)
		}
		for i, h := range m.Households() {
			if h.IsAdapted {
				continue
			}
			want := initial[i] + 100*h.Income
			if math.Abs(h.Savings-want) > 1e-6*want {
				t.Errorf("household %d savings %f, want %f", h.ID, h.Savings, want)
			}
		}
		return m
	}

	a, b := run(), run()
	recA, _ := a.Data.Last()
	recB, _ := b.Data.Last()

	if recA.Step != 100 || len(a.Households()) != 50 {
		t.Fatalf("ran %d steps with %d households", recA.Step, len(a.Households()))
	}
	if recA != recB {
		t.Errorf("repeated run differs: %+v vs %+v", recA, recB)
	}
	if recA.AdaptedCount != 18 || recA.FractionAdapted != 0.36 {
		t.Errorf("adapted fraction %v (%d households), want 0.36", recA.FractionAdapted, recA.AdaptedCount)
	}
}
