package output

import (
	"database/sql"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/citymodel/popsynth/internal/population"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS agents (
	uid TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	subpopulation TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS agent_attributes (
	uid TEXT NOT NULL,
	name TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (uid, name)
);
CREATE TABLE IF NOT EXISTS activities (
	source TEXT NOT NULL,
	uid TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	activity TEXT NOT NULL,
	x REAL NOT NULL,
	y REAL NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	start_time_mins INTEGER NOT NULL,
	end_time_mins INTEGER NOT NULL,
	duration_mins INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS legs (
	source TEXT NOT NULL,
	uid TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	mode TEXT NOT NULL,
	ox REAL NOT NULL,
	oy REAL NOT NULL,
	dx REAL NOT NULL,
	dy REAL NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	start_time_mins INTEGER NOT NULL,
	end_time_mins INTEGER NOT NULL,
	duration_mins INTEGER NOT NULL,
	distance REAL NOT NULL
);
`

// WriteSQLite writes the population into a SQLite database at path,
// one row per agent, reported activity and leg. Inserts run in a
// single transaction so a failed write leaves no partial database.
func WriteSQLite(pop *population.Population, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return eris.Wrapf(err, "output: open sqlite %s", path)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return eris.Wrap(err, "output: create sqlite schema")
	}

	tx, err := db.Begin()
	if err != nil {
		return eris.Wrap(err, "output: begin sqlite transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertAgents(tx, pop); err != nil {
		return err
	}
	if err := insertRows(tx,
		"INSERT INTO activities VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		pop.ActivityRows()); err != nil {
		return eris.Wrap(err, "output: insert activities")
	}
	if err := insertRows(tx,
		"INSERT INTO legs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		pop.LegRows()); err != nil {
		return eris.Wrap(err, "output: insert legs")
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "output: commit sqlite transaction")
	}
	zap.L().Info("sqlite written", zap.String("path", path), zap.Int("agents", len(pop.Agents)))
	return nil
}

func insertAgents(tx *sql.Tx, pop *population.Population) error {
	agentStmt, err := tx.Prepare("INSERT INTO agents VALUES (?, ?, ?)")
	if err != nil {
		return eris.Wrap(err, "output: prepare agents insert")
	}
	defer func() { _ = agentStmt.Close() }()

	attrStmt, err := tx.Prepare("INSERT INTO agent_attributes VALUES (?, ?, ?)")
	if err != nil {
		return eris.Wrap(err, "output: prepare attributes insert")
	}
	defer func() { _ = attrStmt.Close() }()

	for _, agent := range pop.Agents {
		if _, err := agentStmt.Exec(agent.UID, agent.Attributes.Source, agent.Attributes.Subpopulation); err != nil {
			return eris.Wrapf(err, "output: insert agent %s", agent.UID)
		}
		flat := agent.Attributes.Flatten()
		for _, key := range agent.Attributes.Keys() {
			if _, err := attrStmt.Exec(agent.UID, key, flat[key]); err != nil {
				return eris.Wrapf(err, "output: insert attribute %s.%s", agent.UID, key)
			}
		}
	}
	return nil
}

func insertRows(tx *sql.Tx, query string, rows [][]string) error {
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = v
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return nil
}
