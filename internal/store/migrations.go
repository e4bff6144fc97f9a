package store

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means a fresh database.
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// SchemaVersion returns the recorded schema version.
func (db *DB) SchemaVersion() (int, error) {
	var v int
	err := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	return v, err
}

// migrateV1 creates the evaluation history tables.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS evaluations (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			eval_id     TEXT NOT NULL UNIQUE,
			taken_at    TEXT NOT NULL,
			campaign    TEXT NOT NULL,
			command     TEXT NOT NULL,
			version     TEXT NOT NULL,
			score       REAL,
			report_json TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS metric_values (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			evaluation_id INTEGER NOT NULL REFERENCES evaluations(id) ON DELETE CASCADE,
			metric_name   TEXT NOT NULL,
			metric_value  REAL NOT NULL,
			tier          TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS violations (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			evaluation_id      INTEGER NOT NULL REFERENCES evaluations(id) ON DELETE CASCADE,
			rule_number        INTEGER NOT NULL,
			rule_name          TEXT NOT NULL,
			severity           TEXT NOT NULL,
			message            TEXT NOT NULL,
			recommended_action TEXT NOT NULL,
			downgraded         BOOLEAN NOT NULL DEFAULT false
		)`,

		`CREATE TABLE IF NOT EXISTS decisions (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			evaluation_id INTEGER NOT NULL REFERENCES evaluations(id) ON DELETE CASCADE,
			tree          TEXT NOT NULL,
			branch        TEXT NOT NULL,
			action        TEXT NOT NULL,
			reason        TEXT NOT NULL,
			confidence    REAL NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_evaluations_campaign ON evaluations(campaign)`,
		`CREATE INDEX IF NOT EXISTS idx_metric_values_eval ON metric_values(evaluation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_violations_eval ON violations(evaluation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_eval ON decisions(evaluation_id)`,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}

	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return err
	}

	return tx.Commit()
}
