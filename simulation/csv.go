package simulation

import (
	"encoding/csv"
	"os"
	"strconv"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, header []string, rows func(emit func([]string) error) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := rows(w.Write); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// WriteModelRecordsCSV writes one line per run and step.
func WriteModelRecordsCSV(path string, results []*RunResult) error {
	header := []string{
		"run", "w_financial", "w_trait", "w_ext", "seed", "step",
		"adapted_count", "fraction_adapted", "mean_opinion", "std_opinion",
		"mean_savings", "flooded_count",
	}
	return writeCSV(path, header, func(emit func([]string) error) error {
		for _, res := range results {
			for _, rec := range res.ModelRecords {
				err := emit([]string{
					strconv.Itoa(res.RunID),
					formatFloat(res.Financial),
					formatFloat(res.Trait),
					formatFloat(res.External),
					strconv.FormatUint(res.Seed, 10),
					strconv.Itoa(rec.Step),
					strconv.Itoa(rec.AdaptedCount),
					formatFloat(rec.FractionAdapted),
					formatFloat(rec.MeanOpinion),
					formatFloat(rec.StdOpinion),
					formatFloat(rec.MeanSavings),
					strconv.Itoa(rec.FloodedCount),
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteAgentRecordsCSV writes one line per run, step and household.
func WriteAgentRecordsCSV(path string, results []*RunResult) error {
	header := []string{
		"run", "w_financial", "w_trait", "w_ext", "step", "agent_id",
		"opinion", "is_adapted", "savings", "flood_memory", "actual_damage",
		"financial", "social", "external", "memory", "trait",
	}
	return writeCSV(path, header, func(emit func([]string) error) error {
		for _, res := range results {
			for _, rec := range res.AgentRecords {
				err := emit([]string{
					strconv.Itoa(res.RunID),
					formatFloat(res.Financial),
					formatFloat(res.Trait),
					formatFloat(res.External),
					strconv.Itoa(rec.Step),
					strconv.FormatInt(rec.AgentID, 10),
					formatFloat(rec.Opinion),
					strconv.FormatBool(rec.IsAdapted),
					formatFloat(rec.Savings),
					formatFloat(rec.FloodMemory),
					formatFloat(rec.ActualDamage),
					formatFloat(rec.Influences.Financial),
					formatFloat(rec.Social),
					formatFloat(rec.Influences.External),
					formatFloat(rec.Memory),
					formatFloat(rec.Influences.Trait),
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}
