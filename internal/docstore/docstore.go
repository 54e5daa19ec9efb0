// Package docstore provides SQLite-backed persistence for projects and rs3 documents.
package docstore

import (
	"database/sql"
	"fmt"

	"github.com/benbjohnson/clock"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "0001_projects_docs",
			Up: []string{`
CREATE TABLE IF NOT EXISTS projects (
	name       TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`, `
CREATE TABLE IF NOT EXISTS docs (
	doc        TEXT NOT NULL,
	project    TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
	user       TEXT NOT NULL,
	content    BLOB NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	segments   INTEGER NOT NULL DEFAULT 0,
	relations  INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (doc, project, user)
);`,
				`CREATE INDEX IF NOT EXISTS idx_docs_user_project ON docs(user, project);`,
			},
			Down: []string{
				`DROP INDEX IF EXISTS idx_docs_user_project;`,
				`DROP TABLE IF EXISTS docs;`,
				`DROP TABLE IF EXISTS projects;`,
			},
		},
	},
}

// DB wraps a sql.DB with document-store operations.
type DB struct {
	conn  *sql.DB
	clock clock.Clock
}

// Option configures a DB.
type Option func(*DB)

// WithClock overrides the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(db *DB) {
		db.clock = c
	}
}

// Open opens (or creates) the SQLite database and migrates it to the latest schema.
func Open(dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("docstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}
	if _, err := migrate.Exec(conn, "sqlite3", migrations, migrate.Up); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: migrate: %w", err)
	}
	db := &DB{conn: conn, clock: clock.New()}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
