package simulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fahiragea/agentbasedmodelling-final/model"
	"github.com/fahiragea/agentbasedmodelling-final/utils"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/graph/simple"
)

// timestamps sort lexicographically in this layout
const snapshotTimeLayout = "20060102T150405.000000000Z"

// SimulationSerializer handles the files of one scenario directory
type SimulationSerializer struct {
	baseDir          string
	simulationID     string
	maxSnapshotCount int
}

func NewSimulationSerializer(baseDir string, simulationID string, maxSnapshotCount int) *SimulationSerializer {
	return &SimulationSerializer{
		baseDir:          baseDir,
		simulationID:     simulationID,
		maxSnapshotCount: maxSnapshotCount,
	}
}

func (s *SimulationSerializer) getSimulationDir() string {
	return filepath.Join(s.baseDir, s.simulationID)
}

// Exists checks whether the scenario directory exists
func (s *SimulationSerializer) Exists() bool {
	_, err := os.Stat(s.getSimulationDir())
	return !os.IsNotExist(err)
}

func (s *SimulationSerializer) ensureSimulationDir() error {
	return os.MkdirAll(s.getSimulationDir(), 0755)
}

// #region serialize

func (s *SimulationSerializer) _list(fileType string, suffixName string) ([]string, error) {
	dir := s.getSimulationDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), fileType+"-") && strings.HasSuffix(entry.Name(), suffixName) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	// the timestamp layout makes name order equal to time order
	sort.Strings(files)
	return files, nil
}

func (s *SimulationSerializer) _read(filePath string, v any) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(data, v)
}

func (s *SimulationSerializer) _getFilePath(fileType string, suffixName string) string {
	timestamp := time.Now().UTC().Format(snapshotTimeLayout)
	filename := fmt.Sprintf("%s-%s%s", fileType, timestamp, suffixName)
	return filepath.Join(s.getSimulationDir(), filename)
}

func (s *SimulationSerializer) _write(fileType string, v any) error {
	if err := s.ensureSimulationDir(); err != nil {
		return err
	}

	data, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}

	filePath := s._getFilePath(fileType, ".msgpack")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return err
	}

	// clean old ones
	return s._clean(fileType, false, ".msgpack")
}

// _clean removes the oldest files of a type beyond maxSnapshotCount, or
// all of them
func (s *SimulationSerializer) _clean(fileType string, all bool, suffixName string) error {
	if !all && s.maxSnapshotCount <= 0 {
		return nil
	}

	files, err := s._list(fileType, suffixName)
	if err != nil {
		return err
	}

	toDelete := len(files)
	if !all {
		if len(files) > s.maxSnapshotCount {
			toDelete -= s.maxSnapshotCount
		} else {
			toDelete = 0
		}
	}

	for i := range toDelete {
		if err := os.Remove(files[i]); err != nil {
			return err
		}
	}

	return nil
}

// #endregion

// #region snapshot

// GetLatestSnapshot returns nil without error when there is none
func (s *SimulationSerializer) GetLatestSnapshot() (*model.AdaptationModelDumpData, error) {
	if !s.Exists() {
		return nil, nil
	}
	files, err := s._list("snapshot", ".msgpack")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	ret := &model.AdaptationModelDumpData{}
	if err := s._read(files[len(files)-1], ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SimulationSerializer) SaveSnapshot(snapshot *model.AdaptationModelDumpData) error {
	return s._write("snapshot", snapshot)
}

// #endregion

// #region finished mark

type FinishMark struct {
	Step int `msgpack:"step"`
}

func (s *SimulationSerializer) MarkFinished(step int) error {
	return s._write("finished", &FinishMark{Step: step})
}

func (s *SimulationSerializer) IsFinished() (bool, error) {
	if !s.Exists() {
		return false, nil
	}
	files, err := s._list("finished", ".msgpack")
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

// #endregion

// #region lock

func (s *SimulationSerializer) lockPath() string {
	return filepath.Join(s.getSimulationDir(), "lock")
}

// Lock marks the scenario as running
func (s *SimulationSerializer) Lock() error {
	if err := s.ensureSimulationDir(); err != nil {
		return err
	}
	return os.WriteFile(s.lockPath(), []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (s *SimulationSerializer) Unlock() error {
	err := os.Remove(s.lockPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// #endregion

// Reset removes snapshots, accumulative states and the finished mark so
// that the scenario starts over on the next run.
func (s *SimulationSerializer) Reset() error {
	if !s.Exists() {
		return nil
	}
	return errors.Join(
		s._clean("snapshot", true, ".msgpack"),
		s._clean("finished", true, ".msgpack"),
		s._clean("acc-state", true, ".lz4"),
	)
}

// #region acc-state

func (s *SimulationSerializer) GetLatestAccumulativeState() (*AccumulativeModelState, error) {
	if !s.Exists() {
		return nil, nil
	}
	files, err := s._list("acc-state", ".lz4")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	return LoadAccumulativeModelState(files[len(files)-1])
}

func (s *SimulationSerializer) SaveAccumulativeState(state *AccumulativeModelState) error {
	if err := s.ensureSimulationDir(); err != nil {
		return err
	}

	fileType := "acc-state"
	filePath := s._getFilePath(fileType, ".lz4")

	if err := SaveAccumulativeModelState(filePath, state); err != nil {
		return err
	}

	// clean old ones
	return s._clean(fileType, false, ".lz4")
}

// #endregion

// #region graph

// SaveGraph stores the network in NetworkX-compatible form
func (s *SimulationSerializer) SaveGraph(g *simple.WeightedUndirectedGraph) error {
	if err := s.ensureSimulationDir(); err != nil {
		return err
	}
	return utils.SaveGraphToFile(g, s.graphPath())
}

// LoadGraph returns nil without error when no network was stored
func (s *SimulationSerializer) LoadGraph() (*simple.WeightedUndirectedGraph, error) {
	filePath := s.graphPath()
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, nil
	}
	return utils.LoadGraphFromFile(filePath)
}

func (s *SimulationSerializer) graphPath() string {
	return filepath.Join(s.getSimulationDir(), "graph.msgpack")
}

// #endregion

// SaveMetadata stores the scenario description next to its results
func (s *SimulationSerializer) SaveMetadata(metadata *ScenarioMetadata) error {
	if err := s.ensureSimulationDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(s.getSimulationDir(), "metadata.json"), data, 0644)
}

func (s *SimulationSerializer) LoadMetadata() (*ScenarioMetadata, error) {
	if !s.Exists() {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(s.getSimulationDir(), "metadata.json"))
	if err != nil {
		return nil, err
	}

	metadata := DefaultScenarioMetadata()
	if err := json.Unmarshal(data, metadata); err != nil {
		return nil, err
	}

	return metadata, nil
}
