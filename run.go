package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fahiragea/agentbasedmodelling-final/simulation"
	"github.com/fahiragea/agentbasedmodelling-final/spatial"
	"github.com/fahiragea/agentbasedmodelling-final/utils"

	"github.com/dustin/go-humanize"
)

type runOptions struct {
	baseDir      string
	scenarioPath string
	name         string
	progress     bool
	saveInterval time.Duration
	restart      bool
}

// resolveMetadata picks the scenario description: the given file, the one
// stored by a previous run of the same name, or the defaults.
func resolveMetadata(opts runOptions) (*simulation.ScenarioMetadata, error) {
	if opts.scenarioPath != "" {
		metadata, err := simulation.LoadScenarioMetadata(opts.scenarioPath)
		if err != nil {
			return nil, err
		}
		if opts.name != "" {
			metadata.UniqueName = opts.name
		}
		return metadata, nil
	}

	name := opts.name
	if name == "" {
		name = simulation.DefaultScenarioMetadata().UniqueName
	}
	stored, err := simulation.NewSimulationSerializer(opts.baseDir, name, 0).LoadMetadata()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading stored metadata: %w", err)
	}
	if stored != nil {
		return stored, nil
	}

	metadata := simulation.DefaultScenarioMetadata()
	metadata.UniqueName = name
	return metadata, nil
}

func runScenario(ctx context.Context, opts runOptions) error {
	metadata, err := resolveMetadata(opts)
	if err != nil {
		return err
	}

	domain, err := spatial.Load(metadata.Spatial)
	if err != nil {
		return fmt.Errorf("loading spatial domain: %w", err)
	}
	slog.Debug("spatial domain loaded", "flood_maps", domain.Scenarios())

	scenario := simulation.NewScenario(opts.baseDir, metadata, domain)
	scenario.ShowProgress = opts.progress
	if opts.saveInterval > 0 {
		scenario.SaveInterval = opts.saveInterval
	}
	defer scenario.Close()

	if opts.restart {
		if err := scenario.Reset(); err != nil {
			return fmt.Errorf("resetting scenario: %w", err)
		}
	} else if scenario.IsFinished() {
		slog.Info("scenario already finished", "name", metadata.UniqueName)
		return nil
	}

	loaded := false
	if !opts.restart {
		if loaded, err = scenario.Load(); err != nil {
			slog.Warn("failed to resume scenario, starting over", "name", metadata.UniqueName, "error", err)
			loaded = false
		}
	}
	if !loaded {
		if err := scenario.Init(); err != nil {
			return err
		}
	}

	err = scenario.StepTillEnd(ctx)
	if errors.Is(err, context.Canceled) {
		slog.Info("interrupted, state saved", "name", metadata.UniqueName, "step", scenario.Model().CurStep)
		return nil
	}
	return err
}

func runSweep(ctx context.Context, path string, workers int, progress bool) error {
	cfg, err := simulation.LoadSweepConfig(path)
	if err != nil {
		return err
	}
	if workers > 0 {
		cfg.Workers = workers
	}

	domain, err := spatial.Load(cfg.Scenario.Spatial)
	if err != nil {
		return fmt.Errorf("loading spatial domain: %w", err)
	}
	slog.Debug("spatial domain loaded", "flood_maps", domain.Scenarios())

	out, err := simulation.Sweep(ctx, cfg, domain, progress)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RUN\tW_FINANCIAL\tW_TRAIT\tW_EXT\tSEED\tADAPTED\n")
	for _, r := range out.Results {
		fmt.Fprintf(w, "%d\t%g\t%g\t%g\t%d\t%.1f%%\n",
			r.RunID, r.Financial, r.Trait, r.External, r.Seed, r.FractionAdapted()*100)
	}
	return w.Flush()
}

func runReport(out io.Writer, dbPath string, batch string, top int) error {
	if _, err := os.Stat(dbPath); err != nil {
		return err
	}
	db, err := simulation.OpenMetricDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	batches := []string{batch}
	if batch == "" {
		if batches, err = db.Batches(); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, id := range batches {
		runs, err := db.Runs(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "batch %s: %s runs\n", id, humanize.Comma(int64(len(runs))))
		if top > 0 {
			adapted := make([]float64, len(runs))
			for i, r := range runs {
				adapted[i] = r.FractionAdapted
			}
			best := make([]simulation.RunRow, 0, top)
			for _, i := range utils.TopK(adapted, top) {
				best = append(best, runs[i])
			}
			runs = best
		}
		fmt.Fprintf(w, "RUN\tW_FINANCIAL\tW_TRAIT\tW_EXT\tSEED\tSTEPS\tADAPTED\n")
		for _, r := range runs {
			fmt.Fprintf(w, "%d\t%g\t%g\t%g\t%d\t%d\t%.1f%%\n",
				r.RunID, r.Financial, r.Trait, r.External, r.Seed, r.Steps, r.FractionAdapted*100)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

type archiveOptions struct {
	src        string
	dst        string
	minElapsed time.Duration
	interval   time.Duration
	watch      bool
}

func runArchive(ctx context.Context, opts archiveOptions) error {
	if err := os.MkdirAll(opts.dst, 0755); err != nil {
		return err
	}
	archiver := &simulation.Archiver{
		Src:        opts.src,
		Dst:        opts.dst,
		MinElapsed: opts.minElapsed,
	}

	if opts.watch {
		err := archiver.Watch(ctx, opts.interval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	copied, err := archiver.ArchiveOnce()
	slog.Info("archive pass done", "copied", len(copied))
	return err
}

type rasterOptions struct {
	scenario string
	out      string
	size     int
	seed     int64
}

func runRaster(opts rasterOptions) error {
	var profile *spatial.ScenarioProfile
	for _, p := range spatial.DefaultScenarioProfiles() {
		if p.Name == opts.scenario {
			profile = &p
			break
		}
	}
	if profile == nil {
		return fmt.Errorf("unknown flood scenario %q", opts.scenario)
	}

	size := opts.size
	if size <= 0 {
		size = spatial.DefaultRasterSize
	}
	seed := opts.seed
	if seed == 0 {
		seed = spatial.DefaultTerrainSeed
	}

	area := spatial.DefaultArea()
	r := spatial.GenerateRaster(*profile, area.Bound(), spatial.DefaultFloodplain(), size, size, seed)
	if err := spatial.SaveRasterToFile(r, opts.out); err != nil {
		return err
	}

	slog.Info("raster written",
		"scenario", opts.scenario,
		"cells", humanize.Comma(int64(size*size)),
		"path", opts.out,
	)
	return nil
}
