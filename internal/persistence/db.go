// Package persistence provides SQLite-based world state storage and
// compressed snapshots.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/ssd-village/internal/agents"
	"github.com/talgya/ssd-village/internal/engine"
	"github.com/talgya/ssd-village/internal/world"
)

// Meta keys.
const (
	MetaLastTick = "last_tick"
	MetaSeed     = "seed"
	MetaRunID    = "run_id"
	MetaDraws    = "draws"
	MetaEventSeq = "event_seq"
	MetaNodes    = "nodes"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; sqlite serializes anyway.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		preset TEXT NOT NULL,
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		heat REAL NOT NULL,
		temperature REAL NOT NULL,
		rest_x INTEGER NOT NULL,
		rest_y INTEGER NOT NULL,
		rest_streak INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		death_tick INTEGER NOT NULL,
		death_cause TEXT NOT NULL,
		traits_json TEXT NOT NULL,
		stats_json TEXT NOT NULL,
		kappa_json TEXT NOT NULL,
		state_json TEXT NOT NULL,
		relationships_json TEXT NOT NULL,
		help_debt_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS territories (
		owner INTEGER PRIMARY KEY,
		center_x REAL NOT NULL,
		center_y REAL NOT NULL,
		radius REAL NOT NULL,
		attachment REAL NOT NULL,
		claimed_at INTEGER NOT NULL,
		memory_json TEXT NOT NULL,
		guests_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		meta_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_agents_alive ON agents(alive);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// agentRow is the stored form of an agent.
type agentRow struct {
	ID            uint64  `db:"id"`
	Name          string  `db:"name"`
	Preset        string  `db:"preset"`
	PosX          int     `db:"pos_x"`
	PosY          int     `db:"pos_y"`
	Heat          float64 `db:"heat"`
	Temperature   float64 `db:"temperature"`
	RestX         int     `db:"rest_x"`
	RestY         int     `db:"rest_y"`
	RestStreak    int     `db:"rest_streak"`
	Alive         bool    `db:"alive"`
	DeathTick     uint64  `db:"death_tick"`
	DeathCause    string  `db:"death_cause"`
	Traits        string  `db:"traits_json"`
	Stats         string  `db:"stats_json"`
	Kappa         string  `db:"kappa_json"`
	State         string  `db:"state_json"`
	Relationships string  `db:"relationships_json"`
	HelpDebt      string  `db:"help_debt_json"`
}

type territoryRow struct {
	Owner      uint64  `db:"owner"`
	CenterX    float64 `db:"center_x"`
	CenterY    float64 `db:"center_y"`
	Radius     float64 `db:"radius"`
	Attachment float64 `db:"attachment"`
	ClaimedAt  uint64  `db:"claimed_at"`
	Memory     string  `db:"memory_json"`
	Guests     string  `db:"guests_json"`
}

func marshalString(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func toRow(a *agents.Agent) (agentRow, error) {
	row := agentRow{
		ID:          uint64(a.ID),
		Name:        a.Name,
		Preset:      a.Preset,
		PosX:        a.Position.X,
		PosY:        a.Position.Y,
		Heat:        a.Heat,
		Temperature: a.Temperature,
		RestX:       a.RestAnchor.X,
		RestY:       a.RestAnchor.Y,
		RestStreak:  a.RestStreak,
		Alive:       a.Alive,
		DeathTick:   a.DeathTick,
		DeathCause:  a.DeathCause,
	}
	var err error
	for _, f := range []struct {
		dst *string
		v   any
	}{
		{&row.Traits, a.Traits},
		{&row.Stats, a.Stats},
		{&row.Kappa, a.Kappa},
		{&row.State, a.State},
		{&row.Relationships, a.Relationships},
		{&row.HelpDebt, a.HelpDebt},
	} {
		if *f.dst, err = marshalString(f.v); err != nil {
			return row, fmt.Errorf("agent %d: %w", a.ID, err)
		}
	}
	return row, nil
}

func (row agentRow) agent(p *agents.Params) (*agents.Agent, error) {
	a := &agents.Agent{
		ID:          agents.AgentID(row.ID),
		Name:        row.Name,
		Preset:      row.Preset,
		Position:    world.Pos{X: row.PosX, Y: row.PosY},
		Heat:        row.Heat,
		Temperature: row.Temperature,
		RestAnchor:  world.Pos{X: row.RestX, Y: row.RestY},
		RestStreak:  row.RestStreak,
		Alive:       row.Alive,
		DeathTick:   row.DeathTick,
		DeathCause:  row.DeathCause,
	}
	for _, f := range []struct {
		src string
		dst any
	}{
		{row.Traits, &a.Traits},
		{row.Stats, &a.Stats},
		{row.Kappa, &a.Kappa},
		{row.State, &a.State},
		{row.Relationships, &a.Relationships},
		{row.HelpDebt, &a.HelpDebt},
	} {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, fmt.Errorf("agent %d: %w", row.ID, err)
		}
	}
	a.Bind(p)
	return a, nil
}

// SaveAgents writes all agents and their territories (full replace).
func (db *DB) SaveAgents(agentList []*agents.Agent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM territories"); err != nil {
		return err
	}

	for _, a := range agentList {
		row, err := toRow(a)
		if err != nil {
			return err
		}
		_, err = tx.NamedExec(`INSERT INTO agents
			(id, name, preset, pos_x, pos_y, heat, temperature, rest_x, rest_y,
			 rest_streak, alive, death_tick, death_cause, traits_json, stats_json,
			 kappa_json, state_json, relationships_json, help_debt_json)
			VALUES (:id, :name, :preset, :pos_x, :pos_y, :heat, :temperature, :rest_x, :rest_y,
			 :rest_streak, :alive, :death_tick, :death_cause, :traits_json, :stats_json,
			 :kappa_json, :state_json, :relationships_json, :help_debt_json)`, row)
		if err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}

		t := a.Territory
		if t == nil {
			continue
		}
		tr := territoryRow{
			Owner:      uint64(t.Owner),
			CenterX:    t.CenterX,
			CenterY:    t.CenterY,
			Radius:     t.Radius,
			Attachment: t.Attachment,
			ClaimedAt:  t.ClaimedAt,
		}
		if tr.Memory, err = marshalString(t.Memory); err != nil {
			return err
		}
		if tr.Guests, err = marshalString(t.Guests); err != nil {
			return err
		}
		_, err = tx.NamedExec(`INSERT INTO territories
			(owner, center_x, center_y, radius, attachment, claimed_at, memory_json, guests_json)
			VALUES (:owner, :center_x, :center_y, :radius, :attachment, :claimed_at, :memory_json, :guests_json)`, tr)
		if err != nil {
			return fmt.Errorf("insert territory %d: %w", t.Owner, err)
		}
	}

	return tx.Commit()
}

// LoadAgents reads every agent in id order and binds it to p.
func (db *DB) LoadAgents(p *agents.Params) ([]*agents.Agent, error) {
	var rows []agentRow
	if err := db.conn.Select(&rows, "SELECT * FROM agents ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	var trs []territoryRow
	if err := db.conn.Select(&trs, "SELECT * FROM territories"); err != nil {
		return nil, fmt.Errorf("load territories: %w", err)
	}
	byOwner := make(map[uint64]territoryRow, len(trs))
	for _, tr := range trs {
		byOwner[tr.Owner] = tr
	}

	out := make([]*agents.Agent, 0, len(rows))
	for _, row := range rows {
		a, err := row.agent(p)
		if err != nil {
			return nil, err
		}
		if tr, ok := byOwner[row.ID]; ok {
			t := &agents.Territory{
				Owner:      agents.AgentID(tr.Owner),
				CenterX:    tr.CenterX,
				CenterY:    tr.CenterY,
				Radius:     tr.Radius,
				Attachment: tr.Attachment,
				ClaimedAt:  tr.ClaimedAt,
			}
			if err := json.Unmarshal([]byte(tr.Memory), &t.Memory); err != nil {
				return nil, fmt.Errorf("territory %d: %w", tr.Owner, err)
			}
			if err := json.Unmarshal([]byte(tr.Guests), &t.Guests); err != nil {
				return nil, fmt.Errorf("territory %d: %w", tr.Owner, err)
			}
			a.Territory = t
			a.Bind(p)
		}
		out = append(out, a)
	}
	return out, nil
}

// SaveEvents appends events to the database. Events already stored are
// skipped.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		meta, err := marshalString(e.Meta)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			"INSERT OR IGNORE INTO events (seq, tick, agent_id, description, category, meta_json) VALUES (?, ?, ?, ?, ?, ?)",
			e.Seq, e.Tick, e.AgentID, e.Description, e.Category, meta,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SetMeta stores a key-value pair in world metadata.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key wraps sql.ErrNoRows.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if err != nil {
		return "", fmt.Errorf("meta %s: %w", key, err)
	}
	return value, nil
}

func (db *DB) getUint(key string) (uint64, error) {
	v, err := db.GetMeta(key)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}

// HasWorldState reports whether a previous run has been saved.
func (db *DB) HasWorldState() bool {
	_, err := db.GetMeta(MetaLastTick)
	return err == nil
}

// SaveWorldState performs a full save of all world state.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	sim.RLock()
	defer sim.RUnlock()

	slog.Info("saving world state", "agents", sim.Roster.Len(), "tick", sim.LastTick)

	if err := db.SaveAgents(sim.Roster.All()); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	saved, err := db.getUint(MetaEventSeq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("save events: %w", err)
	}
	var pending []engine.Event
	for _, e := range sim.Events {
		if e.Seq > saved {
			pending = append(pending, e)
		}
	}
	if err := db.SaveEvents(pending); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	nodes, err := marshalString(sim.Map.State())
	if err != nil {
		return fmt.Errorf("save nodes: %w", err)
	}
	for k, v := range map[string]string{
		MetaLastTick: strconv.FormatUint(sim.LastTick, 10),
		MetaSeed:     strconv.FormatInt(sim.Seed, 10),
		MetaRunID:    sim.RunID.String(),
		MetaDraws:    strconv.FormatUint(sim.Draws, 10),
		MetaEventSeq: strconv.FormatUint(sim.EventSeq, 10),
		MetaNodes:    nodes,
	} {
		if err := db.SetMeta(k, v); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
	}

	slog.Info("world state saved")
	return nil
}

// WorldMeta is the run-level state needed to resume.
type WorldMeta struct {
	Seed   int64
	RunID  string
	Nodes  world.NodeState
	Resume engine.ResumePoint
}

// LoadMeta reads the run-level state written by SaveWorldState.
func (db *DB) LoadMeta() (WorldMeta, error) {
	var m WorldMeta
	var err error
	if m.Resume.Tick, err = db.getUint(MetaLastTick); err != nil {
		return m, err
	}
	if m.Resume.Draws, err = db.getUint(MetaDraws); err != nil {
		return m, err
	}
	if m.Resume.EventSeq, err = db.getUint(MetaEventSeq); err != nil {
		return m, err
	}
	seed, err := db.GetMeta(MetaSeed)
	if err != nil {
		return m, err
	}
	if m.Seed, err = strconv.ParseInt(seed, 10, 64); err != nil {
		return m, fmt.Errorf("meta seed: %w", err)
	}
	if m.RunID, err = db.GetMeta(MetaRunID); err != nil {
		return m, err
	}
	nodes, err := db.GetMeta(MetaNodes)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal([]byte(nodes), &m.Nodes); err != nil {
		return m, fmt.Errorf("meta nodes: %w", err)
	}
	return m, nil
}

type eventRow struct {
	Seq         uint64 `db:"seq"`
	Tick        uint64 `db:"tick"`
	AgentID     uint64 `db:"agent_id"`
	Description string `db:"description"`
	Category    string `db:"category"`
	Meta        string `db:"meta_json"`
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT seq, tick, agent_id, description, category, meta_json FROM events ORDER BY seq DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		e := engine.Event{
			Seq:         r.Seq,
			Tick:        r.Tick,
			AgentID:     r.AgentID,
			Description: r.Description,
			Category:    r.Category,
		}
		if err := json.Unmarshal([]byte(r.Meta), &e.Meta); err != nil {
			return nil, fmt.Errorf("event %d: %w", r.Seq, err)
		}
		events = append(events, e)
	}
	return events, nil
}
