package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fahiragea/agentbasedmodelling-final/model"
	"github.com/fahiragea/agentbasedmodelling-final/utils"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

type SeedPolicy string

const (
	// every run starts from the base seed
	SeedReset SeedPolicy = "reset"
	// every run derives its own seed from the base seed and its index
	SeedPerRun SeedPolicy = "per-run"
)

// SweepConfig describes a sensitivity analysis over the three weights.
type SweepConfig struct {
	Name string `yaml:"name"`

	// value lists, combined as a Cartesian product
	Financial []float64 `yaml:"w_financial"`
	Trait     []float64 `yaml:"w_trait"`
	External  []float64 `yaml:"w_ext"`
	// explicit triples, used instead of the product when set
	Triples []model.Weights `yaml:"triples"`

	Workers    int        `yaml:"workers"`
	SeedPolicy SeedPolicy `yaml:"seed_policy"`

	// base scenario; its weights are replaced per run
	Scenario ScenarioMetadata `yaml:"scenario"`

	DBPath       string `yaml:"db_path"`
	CSVPath      string `yaml:"csv_path"`
	AgentCSVPath string `yaml:"agent_csv_path"`
	EventDir     string `yaml:"event_dir"`
}

func DefaultSweepConfig() *SweepConfig {
	return &SweepConfig{
		Name:       "sensitivity",
		Financial:  []float64{0, 0.5, 1},
		Trait:      []float64{0, 0.5, 1},
		External:   []float64{0, 0.5, 1},
		Workers:    4,
		SeedPolicy: SeedReset,
		Scenario:   *DefaultScenarioMetadata(),
	}
}

func LoadSweepConfig(path string) (*SweepConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sweep config: %w", err)
	}
	cfg := DefaultSweepConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse sweep config %s: %w", path, err)
	}
	return cfg, nil
}

// Grid returns the weight triples in run order.
func (c *SweepConfig) Grid() []model.Weights {
	if len(c.Triples) > 0 {
		return c.Triples
	}
	ret := make([]model.Weights, 0, len(c.Financial)*len(c.Trait)*len(c.External))
	for _, f := range c.Financial {
		for _, t := range c.Trait {
			for _, e := range c.External {
				ret = append(ret, model.Weights{Financial: f, Trait: t, External: e})
			}
		}
	}
	return ret
}

// RunSeed returns the seed of run index under the configured policy.
func (c *SweepConfig) RunSeed(index int) uint64 {
	if c.SeedPolicy == SeedPerRun {
		return utils.DeriveSeed(c.Scenario.Seed, uint64(index))
	}
	return c.Scenario.Seed
}

func (c *SweepConfig) Validate() error {
	var errs []error
	switch c.SeedPolicy {
	case SeedReset, SeedPerRun:
	default:
		errs = append(errs, fmt.Errorf("unknown seed_policy %q", c.SeedPolicy))
	}
	grid := c.Grid()
	if len(grid) == 0 {
		errs = append(errs, errors.New("sweep grid is empty"))
	}
	for _, w := range grid {
		scenario := c.Scenario
		scenario.Weights = w
		if err := scenario.Validate(); err != nil {
			errs = append(errs, err)
			break
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidParams, err)
	}
	return nil
}

// RunResult holds everything collected by one run.
type RunResult struct {
	RunID int
	model.Weights
	Seed         uint64
	AgentRecords []model.AgentRecord
	ModelRecords []model.ModelRecord
}

// FractionAdapted is the adapted fraction after the last step.
func (r *RunResult) FractionAdapted() float64 {
	if len(r.ModelRecords) == 0 {
		return 0
	}
	return r.ModelRecords[len(r.ModelRecords)-1].FractionAdapted
}

// SensitivityRunner runs every triple of a sweep on a shared, read-only
// spatial context.
type SensitivityRunner struct {
	Config       *SweepConfig
	Domain       model.SpatialContext
	ShowProgress bool
}

func NewSensitivityRunner(cfg *SweepConfig, domain model.SpatialContext) *SensitivityRunner {
	return &SensitivityRunner{Config: cfg, Domain: domain}
}

// RunOne builds and runs a fresh model for one grid point.
func (r *SensitivityRunner) RunOne(ctx context.Context, index int, weights model.Weights) (*RunResult, error) {
	scenario := r.Config.Scenario
	scenario.Weights = weights
	scenario.Seed = r.Config.RunSeed(index)
	scenario.UniqueName = fmt.Sprintf("%s-%03d", r.Config.Name, index)

	var logger *model.EventLogger
	var logEvent func(*model.EventRecord)
	if r.Config.EventDir != "" {
		var err error
		logger, err = model.NewEventLogger(
			filepath.Join(r.Config.EventDir, scenario.UniqueName+".msgpack"),
			256,
		)
		if err != nil {
			return nil, err
		}
		logEvent = logger.LogEvent
	}

	m, err := scenario.BuildModel(r.Domain, logEvent)
	if err == nil {
		for !m.Done() {
			if err = ctx.Err(); err != nil {
				break
			}
			if _, err = m.Step(); err != nil {
				break
			}
		}
	}
	if logger != nil {
		err = errors.Join(err, logger.Stop())
	}
	if err != nil {
		return nil, fmt.Errorf("run %d %v: %w", index, weights, err)
	}

	return &RunResult{
		RunID:        index,
		Weights:      weights,
		Seed:         scenario.Seed,
		AgentRecords: m.Data.AgentRecords,
		ModelRecords: m.Data.ModelRecords,
	}, nil
}

// Run executes the whole grid with at most Config.Workers concurrent runs.
// Results are returned in grid order. Cancelling ctx stops scheduling new
// runs and aborts running ones.
func (r *SensitivityRunner) Run(ctx context.Context) ([]*RunResult, error) {
	if err := r.Config.Validate(); err != nil {
		return nil, err
	}
	if err := model.ValidateFloodMap(r.Domain, r.Config.Scenario.FloodMapChoice); err != nil {
		return nil, err
	}
	if r.Config.EventDir != "" {
		if err := os.MkdirAll(r.Config.EventDir, 0755); err != nil {
			return nil, err
		}
	}

	grid := r.Config.Grid()
	results := make([]*RunResult, len(grid))

	var bar *progressbar.ProgressBar
	if r.ShowProgress {
		bar = progressbar.Default(int64(len(grid)), "sweep")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Config.Workers, 1))

	for i, w := range grid {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := r.RunOne(gctx, i, w)
			if err != nil {
				return err
			}
			results[i] = res
			slog.Debug("run finished",
				"run", i,
				"weights", w.String(),
				"seed", res.Seed,
				"adapted", res.FractionAdapted(),
			)
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// SweepOutput is the persisted result of a sweep.
type SweepOutput struct {
	BatchID string
	Results []*RunResult
}

// Sweep runs the configured grid and writes the results to the metric
// database and CSV file when configured.
func Sweep(ctx context.Context, cfg *SweepConfig, domain model.SpatialContext, showProgress bool) (*SweepOutput, error) {
	runner := NewSensitivityRunner(cfg, domain)
	runner.ShowProgress = showProgress

	batchID := uuid.NewString()
	slog.Info("sweep started",
		"batch", batchID,
		"runs", len(cfg.Grid()),
		"households", cfg.Scenario.NodeCount,
		"steps", cfg.Scenario.MaxSteps,
		"seed_policy", cfg.SeedPolicy,
	)

	results, err := runner.Run(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.DBPath != "" {
		db, err := OpenMetricDB(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			if err := db.SaveRun(batchID, res); err != nil {
				db.Close()
				return nil, err
			}
		}
		if err := db.Close(); err != nil {
			return nil, err
		}
	}

	if cfg.CSVPath != "" {
		if err := WriteModelRecordsCSV(cfg.CSVPath, results); err != nil {
			return nil, err
		}
	}
	if cfg.AgentCSVPath != "" {
		if err := WriteAgentRecordsCSV(cfg.AgentCSVPath, results); err != nil {
			return nil, err
		}
	}

	records := 0
	for _, res := range results {
		records += len(res.AgentRecords) + len(res.ModelRecords)
	}
	slog.Info("sweep finished",
		"batch", batchID,
		"runs", len(results),
		"records", humanize.Comma(int64(records)),
	)

	return &SweepOutput{BatchID: batchID, Results: results}, nil
}
