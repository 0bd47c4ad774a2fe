package model

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// AgentRecord is the state of one household after a step.
type AgentRecord struct {
	Step         int     `db:"step" msgpack:"step"`
	AgentID      int64   `db:"agent_id" msgpack:"agent_id"`
	Opinion      float64 `db:"opinion" msgpack:"opinion"`
	IsAdapted    bool    `db:"is_adapted" msgpack:"is_adapted"`
	Savings      float64 `db:"savings" msgpack:"savings"`
	FloodMemory  float64 `db:"flood_memory" msgpack:"flood_memory"`
	ActualDamage float64 `db:"actual_damage" msgpack:"actual_damage"`
	Influences   `msgpack:"influences"`
}

// ModelRecord aggregates the population after a step.
type ModelRecord struct {
	Step            int     `db:"step" msgpack:"step"`
	AdaptedCount    int     `db:"adapted_count" msgpack:"adapted_count"`
	FractionAdapted float64 `db:"fraction_adapted" msgpack:"fraction_adapted"`
	MeanOpinion     float64 `db:"mean_opinion" msgpack:"mean_opinion"`
	StdOpinion      float64 `db:"std_opinion" msgpack:"std_opinion"`
	MeanSavings     float64 `db:"mean_savings" msgpack:"mean_savings"`
	FloodedCount    int     `db:"flooded_count" msgpack:"flooded_count"`
}

// Collector is the sink for per-step metrics.
type Collector interface {
	CollectAgent(AgentRecord)
	CollectModel(ModelRecord)
}

// DataCollector keeps every record in memory.
type DataCollector struct {
	AgentRecords []AgentRecord
	ModelRecords []ModelRecord
}

func NewDataCollector() *DataCollector {
	return &DataCollector{
		AgentRecords: make([]AgentRecord, 0),
		ModelRecords: make([]ModelRecord, 0),
	}
}

func (c *DataCollector) CollectAgent(r AgentRecord) {
	c.AgentRecords = append(c.AgentRecords, r)
}

func (c *DataCollector) CollectModel(r ModelRecord) {
	c.ModelRecords = append(c.ModelRecords, r)
}

// Last returns the most recent model record, if any.
func (c *DataCollector) Last() (ModelRecord, bool) {
	if len(c.ModelRecords) == 0 {
		return ModelRecord{}, false
	}
	return c.ModelRecords[len(c.ModelRecords)-1], true
}

// SummarizeModel computes the aggregate record of the current state.
func (m *AdaptationModel) SummarizeModel() ModelRecord {
	opinions := m.CollectOpinions()
	savings := m.CollectSavings()

	rec := ModelRecord{Step: m.CurStep}
	for _, h := range m.Schedule.Agents {
		if h.IsAdapted {
			rec.AdaptedCount++
		}
		if h.ActualDepth > 0 {
			rec.FloodedCount++
		}
	}
	if n := len(opinions); n > 0 {
		rec.FractionAdapted = float64(rec.AdaptedCount) / float64(n)
		rec.MeanOpinion, rec.StdOpinion = stat.MeanStdDev(opinions, nil)
		if n == 1 {
			rec.StdOpinion = 0
		}
		rec.MeanSavings = floats.Sum(savings) / float64(n)
	}
	return rec
}

func (m *AdaptationModel) collect() ModelRecord {
	if m.CollectItems.AgentRecords {
		for _, h := range m.Schedule.Agents {
			r := AgentRecord{
				Step:         m.CurStep,
				AgentID:      h.ID,
				Opinion:      h.Opinion,
				IsAdapted:    h.IsAdapted,
				Savings:      h.Savings,
				FloodMemory:  h.FloodMemory,
				ActualDamage: h.ActualDamage,
			}
			if m.CollectItems.Influences {
				r.Influences = h.Influences
			}
			m.Collector.CollectAgent(r)
		}
	}

	rec := m.SummarizeModel()
	m.Collector.CollectModel(rec)
	return rec
}

// CollectOpinions collects all household opinions in schedule order
func (m *AdaptationModel) CollectOpinions() []float64 {
	ret := make([]float64, len(m.Schedule.Agents))
	for i, h := range m.Schedule.Agents {
		ret[i] = h.Opinion
	}
	return ret
}

// CollectSavings collects all household savings in schedule order
func (m *AdaptationModel) CollectSavings() []float64 {
	ret := make([]float64, len(m.Schedule.Agents))
	for i, h := range m.Schedule.Agents {
		ret[i] = h.Savings
	}
	return ret
}

// CollectAdapted collects the adaptation flags in schedule order
func (m *AdaptationModel) CollectAdapted() []bool {
	ret := make([]bool, len(m.Schedule.Agents))
	for i, h := range m.Schedule.Agents {
		ret[i] = h.IsAdapted
	}
	return ret
}

// CollectFloodMemory collects the flood memory of every household
func (m *AdaptationModel) CollectFloodMemory() []float64 {
	ret := make([]float64, len(m.Schedule.Agents))
	for i, h := range m.Schedule.Agents {
		ret[i] = h.FloodMemory
	}
	return ret
}
