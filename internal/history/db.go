// Package history stores heating snapshots in SQLite
package history

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

const schemaHeatingSnapshots = `
CREATE TABLE IF NOT EXISTS heating_snapshots (
    id TEXT PRIMARY KEY,
    installation_id TEXT NOT NULL,
    gateway_serial TEXT NOT NULL,
    device_id TEXT NOT NULL,
    fetched_at TEXT NOT NULL,
    gas_m3_today REAL,
    gas_m3_yesterday REAL,
    betriebsstunden INTEGER,
    starts INTEGER,
    supply_temp REAL,
    outside_temp REAL
);
`

const schemaSnapshotIndex = `
CREATE INDEX IF NOT EXISTS idx_heating_snapshots_device_time
    ON heating_snapshots (installation_id, gateway_serial, device_id, fetched_at);
`

// InitDB opens or creates the SQLite file at path and ensures the schema exists
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// A single writer keeps SQLite out of lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{schemaHeatingSnapshots, schemaSnapshotIndex} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
