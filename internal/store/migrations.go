package store

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	version    int
	name       string
	statements []string
}

// migrations run in order; each one commits together with its version
// bump, so a failed step leaves the previous version in place.
var migrations = []migration{
	{
		version: 1,
		name:    "events",
		statements: []string{
			`CREATE TABLE events (
				id               TEXT PRIMARY KEY,
				session_id       TEXT NOT NULL,
				device_id        TEXT NOT NULL,
				event_type       TEXT NOT NULL,
				event_at         INTEGER NOT NULL,
				received_at      INTEGER NOT NULL,
				source           TEXT NOT NULL,
				tool             TEXT NOT NULL,
				action           TEXT NOT NULL,
				passive          BOOLEAN NOT NULL,
				is_authenticated BOOLEAN NOT NULL,
				user_id          TEXT,
				anonymous_id     TEXT,
				user_json        TEXT NOT NULL,
				payload_json     TEXT NOT NULL,
				runtime_json     TEXT,
				plugin_json      TEXT
			)`,
			`CREATE INDEX idx_events_event_at ON events(event_at DESC)`,
			`CREATE INDEX idx_events_session ON events(session_id, event_at)`,
			`CREATE INDEX idx_events_type ON events(event_type, event_at)`,
			`CREATE INDEX idx_events_tool ON events(tool, event_at)`,
			`CREATE INDEX idx_events_user ON events(user_id, event_at)`,
			`CREATE INDEX idx_events_source ON events(source, event_at)`,
			`CREATE INDEX idx_events_action ON events(action, event_at)`,
		},
	},
	{
		version: 2,
		name:    "kpi snapshots",
		statements: []string{
			`CREATE TABLE snapshots (
				id       INTEGER PRIMARY KEY AUTOINCREMENT,
				taken_at INTEGER NOT NULL,
				command  TEXT NOT NULL,
				version  TEXT NOT NULL
			)`,
			`CREATE TABLE aggregate_metrics (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				snapshot_id  INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
				metric_name  TEXT NOT NULL,
				metric_value REAL NOT NULL,
				detail       TEXT
			)`,
			`CREATE INDEX idx_aggregate_snapshot ON aggregate_metrics(snapshot_id)`,
		},
	},
}

// SchemaVersion is the newest migration applied to the database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := db.conn.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_version: %w", err)
	}
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
		return err
	}
	return tx.Commit()
}
