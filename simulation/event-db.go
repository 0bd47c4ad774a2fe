package simulation

import (
	"fmt"
	"sync"

	"github.com/fahiragea/agentbasedmodelling-final/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// EventDB stores household events of a scenario in SQLite. Events are
// cached and written in one transaction per flush.
type EventDB struct {
	db        *sqlx.DB
	cacheSize int
	cache     []*model.EventRecord
	mu        sync.Mutex
}

// OpenEventDB opens or creates the event database in filename
func OpenEventDB(filename string, cacheSize int) (*EventDB, error) {
	db, err := sqlx.Open("sqlite3", filename+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		step INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS adaptation_events (
		event_id INTEGER PRIMARY KEY,
		opinion REAL NOT NULL,
		savings REAL NOT NULL,
		cost REAL NOT NULL,
		FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS shock_events (
		event_id INTEGER PRIMARY KEY,
		depth REAL NOT NULL,
		damage REAL NOT NULL,
		FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_events_step ON events(step);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create event tables: %w", err)
	}

	return &EventDB{
		db:        db,
		cacheSize: max(cacheSize, 1),
		cache:     make([]*model.EventRecord, 0, max(cacheSize, 1)),
	}, nil
}

// Close flushes the cache and closes the database
func (edb *EventDB) Close() error {
	err := edb.Flush()
	if cerr := edb.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// StoreEvent queues an event, flushing when the cache is full
func (edb *EventDB) StoreEvent(event *model.EventRecord) error {
	edb.mu.Lock()
	edb.cache = append(edb.cache, event)
	full := len(edb.cache) >= edb.cacheSize
	edb.mu.Unlock()

	if full {
		return edb.Flush()
	}
	return nil
}

// Flush writes all cached events
func (edb *EventDB) Flush() error {
	edb.mu.Lock()
	defer edb.mu.Unlock()

	if len(edb.cache) == 0 {
		return nil
	}

	tx, err := edb.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, event := range edb.cache {
		if err := storeEvent(tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	edb.cache = edb.cache[:0]
	return nil
}

func storeEvent(tx *sqlx.Tx, event *model.EventRecord) error {
	result, err := tx.Exec(
		"INSERT INTO events (type, agent_id, step) VALUES (?, ?, ?)",
		event.Type, event.AgentID, event.Step,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	eventID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	switch event.Type {
	case model.EventAdaptation:
		body, ok := event.Body.(model.AdaptationEventBody)
		if !ok {
			return fmt.Errorf("invalid AdaptationEventBody type %T", event.Body)
		}
		_, err = tx.Exec(
			"INSERT INTO adaptation_events (event_id, opinion, savings, cost) VALUES (?, ?, ?, ?)",
			eventID, body.Opinion, body.Savings, body.Cost,
		)
		if err != nil {
			return fmt.Errorf("failed to insert adaptation event: %w", err)
		}

	case model.EventShock:
		body, ok := event.Body.(model.ShockEventBody)
		if !ok {
			return fmt.Errorf("invalid ShockEventBody type %T", event.Body)
		}
		_, err = tx.Exec(
			"INSERT INTO shock_events (event_id, depth, damage) VALUES (?, ?, ?)",
			eventID, body.Depth, body.Damage,
		)
		if err != nil {
			return fmt.Errorf("failed to insert shock event: %w", err)
		}

	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	return nil
}

// DeleteEventsAfterStep removes all events with step >= step, including
// cached ones
func (edb *EventDB) DeleteEventsAfterStep(step int) error {
	edb.mu.Lock()
	kept := edb.cache[:0]
	for _, e := range edb.cache {
		if e.Step < step {
			kept = append(kept, e)
		}
	}
	edb.cache = kept
	edb.mu.Unlock()

	_, err := edb.db.Exec("DELETE FROM events WHERE step >= ?", step)
	if err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}

type eventRow struct {
	ID      int64    `db:"id"`
	Type    string   `db:"type"`
	AgentID int64    `db:"agent_id"`
	Step    int      `db:"step"`
	Opinion *float64 `db:"opinion"`
	Savings *float64 `db:"savings"`
	Cost    *float64 `db:"cost"`
	Depth   *float64 `db:"depth"`
	Damage  *float64 `db:"damage"`
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// GetEvents loads all stored events in step order
func (edb *EventDB) GetEvents() ([]*model.EventRecord, error) {
	var rows []eventRow
	err := edb.db.Select(&rows, `
		SELECT e.id, e.type, e.agent_id, e.step,
			a.opinion, a.savings, a.cost,
			s.depth, s.damage
		FROM events e
		LEFT JOIN adaptation_events a ON a.event_id = e.id
		LEFT JOIN shock_events s ON s.event_id = e.id
		ORDER BY e.step ASC, e.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	events := make([]*model.EventRecord, 0, len(rows))
	for _, r := range rows {
		event := &model.EventRecord{Type: r.Type, AgentID: r.AgentID, Step: r.Step}
		switch r.Type {
		case model.EventAdaptation:
			event.Body = model.AdaptationEventBody{
				Opinion: deref(r.Opinion),
				Savings: deref(r.Savings),
				Cost:    deref(r.Cost),
			}
		case model.EventShock:
			event.Body = model.ShockEventBody{
				Depth:  deref(r.Depth),
				Damage: deref(r.Damage),
			}
		}
		events = append(events, event)
	}

	return events, nil
}
