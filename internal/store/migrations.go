package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the SQLite DDL. Each statement uses IF NOT EXISTS for
// idempotency.
var schema = []string{
	// One row per learner and record. NULL columns mean "never set", so an
	// import can carry attempts without a review and vice versa.
	`CREATE TABLE IF NOT EXISTS progress (
		learner       TEXT    NOT NULL,
		record_id     INTEGER NOT NULL,
		rating        TEXT,
		attempts      INTEGER,
		interval_days REAL,
		last_review   REAL,
		updated_at    TEXT    NOT NULL,
		PRIMARY KEY (learner, record_id)
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		learner    TEXT NOT NULL,
		current_id INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_learner ON sessions(learner)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "sessions",
		column:   "category",
		alterSQL: "ALTER TABLE sessions ADD COLUMN category TEXT NOT NULL DEFAULT ''",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

// postgresSchema is the equivalent DDL for PostgreSQL.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS progress (
		learner       TEXT             NOT NULL,
		record_id     INTEGER          NOT NULL,
		rating        TEXT,
		attempts      INTEGER,
		interval_days DOUBLE PRECISION,
		last_review   DOUBLE PRECISION,
		updated_at    TIMESTAMPTZ      NOT NULL,
		PRIMARY KEY (learner, record_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		learner    TEXT    NOT NULL,
		current_id INTEGER NOT NULL DEFAULT 0,
		category   TEXT    NOT NULL DEFAULT '',
		created_at BIGINT  NOT NULL,
		expires_at BIGINT  NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_learner ON sessions(learner)`,
}
