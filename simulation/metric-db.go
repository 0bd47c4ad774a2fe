package simulation

import (
	"fmt"

	"github.com/fahiragea/agentbasedmodelling-final/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// MetricDB stores sweep results, one batch per sweep invocation.
type MetricDB struct {
	conn *sqlx.DB
}

// RunRow is one run of a batch.
type RunRow struct {
	BatchID         string  `db:"batch_id"`
	RunID           int     `db:"run_id"`
	Financial       float64 `db:"w_financial"`
	Trait           float64 `db:"w_trait"`
	External        float64 `db:"w_ext"`
	Seed            int64   `db:"seed"`
	Steps           int     `db:"steps"`
	FractionAdapted float64 `db:"fraction_adapted"`
}

type modelRecordRow struct {
	BatchID string `db:"batch_id"`
	RunID   int    `db:"run_id"`
	model.ModelRecord
}

type agentRecordRow struct {
	BatchID string `db:"batch_id"`
	RunID   int    `db:"run_id"`
	model.AgentRecord
}

func OpenMetricDB(path string) (*MetricDB, error) {
	conn, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open metric db: %w", err)
	}
	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)

	db := &MetricDB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate metric db: %w", err)
	}
	return db, nil
}

func (db *MetricDB) Close() error {
	return db.conn.Close()
}

func (db *MetricDB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		batch_id TEXT NOT NULL,
		run_id INTEGER NOT NULL,
		w_financial REAL NOT NULL,
		w_trait REAL NOT NULL,
		w_ext REAL NOT NULL,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		fraction_adapted REAL NOT NULL,
		PRIMARY KEY (batch_id, run_id)
	);

	CREATE TABLE IF NOT EXISTS model_records (
		batch_id TEXT NOT NULL,
		run_id INTEGER NOT NULL,
		step INTEGER NOT NULL,
		adapted_count INTEGER NOT NULL,
		fraction_adapted REAL NOT NULL,
		mean_opinion REAL NOT NULL,
		std_opinion REAL NOT NULL,
		mean_savings REAL NOT NULL,
		flooded_count INTEGER NOT NULL,
		PRIMARY KEY (batch_id, run_id, step)
	);

	CREATE TABLE IF NOT EXISTS agent_records (
		batch_id TEXT NOT NULL,
		run_id INTEGER NOT NULL,
		step INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		opinion REAL NOT NULL,
		is_adapted INTEGER NOT NULL,
		savings REAL NOT NULL,
		flood_memory REAL NOT NULL,
		actual_damage REAL NOT NULL,
		financial REAL NOT NULL,
		social REAL NOT NULL,
		external REAL NOT NULL,
		memory REAL NOT NULL,
		trait REAL NOT NULL,
		PRIMARY KEY (batch_id, run_id, step, agent_id)
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun writes a run and all its records in one transaction.
func (db *MetricDB) SaveRun(batchID string, r *RunResult) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	run := RunRow{
		BatchID:   batchID,
		RunID:     r.RunID,
		Financial: r.Weights.Financial,
		Trait:     r.Weights.Trait,
		External:  r.Weights.External,
		Seed:      int64(r.Seed),
		Steps:     len(r.ModelRecords),
	}
	if n := len(r.ModelRecords); n > 0 {
		run.FractionAdapted = r.ModelRecords[n-1].FractionAdapted
	}
	_, err = tx.NamedExec(`INSERT INTO runs
		(batch_id, run_id, w_financial, w_trait, w_ext, seed, steps, fraction_adapted)
		VALUES (:batch_id, :run_id, :w_financial, :w_trait, :w_ext, :seed, :steps, :fraction_adapted)`,
		run,
	)
	if err != nil {
		return fmt.Errorf("insert run %d: %w", r.RunID, err)
	}

	modelStmt, err := tx.PrepareNamed(`INSERT INTO model_records
		(batch_id, run_id, step, adapted_count, fraction_adapted, mean_opinion, std_opinion, mean_savings, flooded_count)
		VALUES (:batch_id, :run_id, :step, :adapted_count, :fraction_adapted, :mean_opinion, :std_opinion, :mean_savings, :flooded_count)`)
	if err != nil {
		return err
	}
	defer modelStmt.Close()

	for _, rec := range r.ModelRecords {
		if _, err := modelStmt.Exec(modelRecordRow{BatchID: batchID, RunID: r.RunID, ModelRecord: rec}); err != nil {
			return fmt.Errorf("insert model record of run %d: %w", r.RunID, err)
		}
	}

	agentStmt, err := tx.PrepareNamed(`INSERT INTO agent_records
		(batch_id, run_id, step, agent_id, opinion, is_adapted, savings, flood_memory, actual_damage,
		 financial, social, external, memory, trait)
		VALUES (:batch_id, :run_id, :step, :agent_id, :opinion, :is_adapted, :savings, :flood_memory, :actual_damage,
		 :financial, :social, :external, :memory, :trait)`)
	if err != nil {
		return err
	}
	defer agentStmt.Close()

	for _, rec := range r.AgentRecords {
		if _, err := agentStmt.Exec(agentRecordRow{BatchID: batchID, RunID: r.RunID, AgentRecord: rec}); err != nil {
			return fmt.Errorf("insert agent record of run %d: %w", r.RunID, err)
		}
	}

	return tx.Commit()
}

// Runs lists the runs of a batch in run order.
func (db *MetricDB) Runs(batchID string) ([]RunRow, error) {
	var runs []RunRow
	err := db.conn.Select(&runs,
		"SELECT * FROM runs WHERE batch_id = ? ORDER BY run_id",
		batchID,
	)
	return runs, err
}

// ModelRecords returns the per-step aggregates of one run.
func (db *MetricDB) ModelRecords(batchID string, runID int) ([]model.ModelRecord, error) {
	var records []model.ModelRecord
	err := db.conn.Select(&records, `SELECT
		step, adapted_count, fraction_adapted, mean_opinion, std_opinion, mean_savings, flooded_count
		FROM model_records WHERE batch_id = ? AND run_id = ? ORDER BY step`,
		batchID, runID,
	)
	return records, err
}

// AgentRecords returns the per-household records of one run.
func (db *MetricDB) AgentRecords(batchID string, runID int) ([]model.AgentRecord, error) {
	var records []model.AgentRecord
	err := db.conn.Select(&records, `SELECT
		step, agent_id, opinion, is_adapted, savings, flood_memory, actual_damage,
		financial, social, external, memory, trait
		FROM agent_records WHERE batch_id = ? AND run_id = ? ORDER BY step, agent_id`,
		batchID, runID,
	)
	return records, err
}

// Batches lists the batch ids present in the database.
func (db *MetricDB) Batches() ([]string, error) {
	var ids []string
	err := db.conn.Select(&ids, "SELECT DISTINCT batch_id FROM runs ORDER BY batch_id")
	return ids, err
}
