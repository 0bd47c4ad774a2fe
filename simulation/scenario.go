package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fahiragea/agentbasedmodelling-final/model"
	"github.com/fahiragea/agentbasedmodelling-final/utils"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// Scenario is a single resumable run persisted under dir/UniqueName.
type Scenario struct {
	dir        string
	metadata   *ScenarioMetadata
	domain     model.SpatialContext
	model      *model.AdaptationModel
	acc        *AccumulativeModelState
	serializer *SimulationSerializer
	db         *EventDB

	// ShowProgress draws a progress bar in StepTillEnd
	ShowProgress bool
	// SaveInterval is the wall time between snapshots in StepTillEnd
	SaveInterval time.Duration
}

var ErrScenarioFinished = errors.New("scenario already finished")

const DB_CACHE_SIZE = 2000
const MAX_SNAPSHOT_COUNT = 3
const SAVE_INTERVAL = 300 * time.Second

func NewScenario(dir string, metadata *ScenarioMetadata, domain model.SpatialContext) *Scenario {
	return &Scenario{
		dir:          dir,
		metadata:     metadata,
		domain:       domain,
		serializer:   NewSimulationSerializer(dir, metadata.UniqueName, MAX_SNAPSHOT_COUNT),
		SaveInterval: SAVE_INTERVAL,
	}
}

func (s *Scenario) eventDBPath() string {
	return filepath.Join(s.dir, s.metadata.UniqueName, "events.db")
}

// Model returns the running model, nil before Init or Load.
func (s *Scenario) Model() *model.AdaptationModel {
	return s.model
}

// Init creates a fresh model and the scenario directory. A finished
// scenario must be Reset first.
func (s *Scenario) Init() error {
	if s.IsFinished() {
		return fmt.Errorf("%w: %s", ErrScenarioFinished, s.metadata.UniqueName)
	}
	if err := s.metadata.Validate(); err != nil {
		return err
	}

	m, err := s.metadata.BuildModel(s.domain, s.logEvent)
	if err != nil {
		return fmt.Errorf("failed to build model: %w", err)
	}
	s.model = m

	if err := s.serializer.SaveMetadata(s.metadata); err != nil {
		return fmt.Errorf("failed to create scenario dump folder: %w", err)
	}
	if err := s.serializer.SaveGraph(m.Graph); err != nil {
		return fmt.Errorf("failed to save network: %w", err)
	}

	s.acc = NewAccumulativeModelState()

	db, err := OpenEventDB(s.eventDBPath(), DB_CACHE_SIZE)
	if err != nil {
		return fmt.Errorf("failed to create event db logger: %w", err)
	}
	// a previous, unfinished attempt may have left events behind
	if err := db.DeleteEventsAfterStep(0); err != nil {
		db.Close()
		return err
	}
	s.db = db

	slog.Info("scenario initialized",
		"name", s.metadata.UniqueName,
		"households", len(m.Households()),
		"edges", m.Graph.Edges().Len(),
		"mean_degree", utils.AverageDegree(m.Graph),
		"seed", s.metadata.Seed,
	)
	return nil
}

// Load resumes the scenario from its latest snapshot. It returns false
// without error when there is nothing to resume.
func (s *Scenario) Load() (bool, error) {
	modelDump, err := s.serializer.GetLatestSnapshot()
	if err != nil {
		return false, fmt.Errorf("failed to load model dump: %w", err)
	}
	if modelDump == nil {
		return false, nil
	}

	acc, err := s.serializer.GetLatestAccumulativeState()
	if err != nil {
		return false, fmt.Errorf("failed to load accumulative state: %w", err)
	}
	if acc == nil {
		return false, nil
	}

	mp, err := s.metadata.ModelParams()
	if err != nil {
		return false, err
	}
	agentParams := s.metadata.AgentParams
	collectItems := s.metadata.CollectItemOptions
	m, err := modelDump.Load(
		s.domain,
		s.metadata.Weights,
		&agentParams,
		mp,
		&collectItems,
		s.logEvent,
	)
	if err != nil {
		return false, err
	}

	stored, err := s.serializer.LoadGraph()
	if err != nil {
		return false, fmt.Errorf("failed to load network: %w", err)
	}
	if stored != nil && !utils.CompareGraphs(stored, m.Graph) {
		slog.Warn("snapshot network differs from the stored network, starting over",
			"name", s.metadata.UniqueName,
		)
		return false, nil
	}

	if !acc.validate(m) {
		slog.Warn("accumulative state does not match the snapshot, starting over",
			"snapshot_step", m.CurStep,
			"acc_steps", acc.Steps(),
		)
		return false, nil
	}

	db, err := OpenEventDB(s.eventDBPath(), DB_CACHE_SIZE)
	if err != nil {
		return false, fmt.Errorf("failed to create event db logger: %w", err)
	}
	// events after the snapshot will be produced again
	if err := db.DeleteEventsAfterStep(m.CurStep); err != nil {
		db.Close()
		return false, err
	}

	s.model = m
	s.acc = acc
	s.db = db

	slog.Info("scenario resumed", "name", s.metadata.UniqueName, "step", m.CurStep)
	return true, nil
}

// Dump persists the current state. The event DB is flushed first so that
// it never lags behind a snapshot.
func (s *Scenario) Dump() error {
	if err := s.db.Flush(); err != nil {
		return err
	}
	dump, err := s.model.Dump()
	if err != nil {
		return err
	}
	return errors.Join(
		s.serializer.SaveSnapshot(dump),
		s.serializer.SaveAccumulativeState(s.acc),
	)
}

func (s *Scenario) Step() (model.ModelRecord, error) {
	rec, err := s.model.Step()
	if err != nil {
		return rec, err
	}
	s.acc.accumulate(s.model)
	return rec, nil
}

// Reset discards every saved step of the scenario, including the finished
// mark. Metadata, network and events are rewritten by the following Init.
func (s *Scenario) Reset() error {
	return s.serializer.Reset()
}

func (s *Scenario) IsFinished() bool {
	finished, _ := s.serializer.IsFinished()
	return finished
}

// StepTillEnd runs the model to its step budget, saving at SaveInterval and
// when ctx is cancelled.
func (s *Scenario) StepTillEnd(ctx context.Context) error {

	// if finished, jump this simulation
	if s.IsFinished() {
		return nil
	}

	if err := s.serializer.Lock(); err != nil {
		return err
	}
	defer s.serializer.Unlock()

	var bar *progressbar.ProgressBar
	if s.ShowProgress {
		bar = progressbar.Default(int64(s.metadata.MaxSteps), s.metadata.UniqueName)
		bar.Set(s.model.CurStep)
	}

	lastSaveTime := time.Now()

	for !s.model.Done() {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, s.Dump())
		}

		if _, err := s.Step(); err != nil {
			return err
		}
		if bar != nil {
			bar.Set(s.model.CurStep)
		}

		// save at fixed interval
		if time.Since(lastSaveTime) >= s.SaveInterval {
			lastSaveTime = time.Now()
			if err := s.Dump(); err != nil {
				return err
			}
		}
	}

	// finally save everything
	if err := s.Dump(); err != nil {
		return err
	}
	if err := s.serializer.MarkFinished(s.model.CurStep); err != nil {
		return err
	}

	rec, _ := s.model.Data.Last()
	slog.Info("scenario finished",
		"name", s.metadata.UniqueName,
		"steps", s.model.CurStep,
		"adapted", fmt.Sprintf("%d/%d", rec.AdaptedCount, len(s.model.Households())),
		"mean_savings", "$"+humanize.CommafWithDigits(rec.MeanSavings, 2),
	)
	return nil
}

// Close flushes and closes the event database.
func (s *Scenario) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Scenario) logEvent(event *model.EventRecord) {
	if s.db == nil {
		return
	}
	if err := s.db.StoreEvent(event); err != nil {
		slog.Error("failed to store event", "type", event.Type, "agent", event.AgentID, "error", err)
	}
}
