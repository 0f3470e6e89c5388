package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/pluginwatch/internal/event"
	"github.com/blackwell-systems/pluginwatch/internal/taxonomy"
)

// ErrNothingInserted is returned when a non-empty batch stored no rows.
var ErrNothingInserted = errors.New("no events were stored")

const eventColumns = `id, session_id, device_id, event_type, event_at, received_at, source, tool,
	user_json, payload_json, runtime_json, plugin_json`

// InsertEvents stores a batch with unordered, best-effort semantics: a row
// that fails is recorded in the result and the rest still go in. IDs are
// assigned to events that have none. An error is returned only when the
// batch as a whole could not be written.
func (db *DB) InsertEvents(ctx context.Context, events []event.Event) (InsertResult, error) {
	var result InsertResult
	if len(events) == 0 {
		return result, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("beginning insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events
		(id, session_id, device_id, event_type, event_at, received_at, source, tool, action, passive,
		 is_authenticated, user_id, anonymous_id, user_json, payload_json, runtime_json, plugin_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return result, fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range events {
		e := &events[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if err := insertEvent(ctx, stmt, e); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("event %d (%s): %w", i, e.EventType, err))
			continue
		}
		result.Inserted++
	}

	if result.Inserted == 0 {
		return result, fmt.Errorf("%w: %w", ErrNothingInserted, errors.Join(result.Errors...))
	}
	if err := tx.Commit(); err != nil {
		return InsertResult{}, fmt.Errorf("committing insert: %w", err)
	}
	return result, nil
}

func insertEvent(ctx context.Context, stmt *sql.Stmt, e *event.Event) error {
	userJSON, err := json.Marshal(e.User)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	runtimeJSON, err := json.Marshal(e.Runtime)
	if err != nil {
		return fmt.Errorf("encoding runtime: %w", err)
	}
	pluginJSON, err := json.Marshal(e.Plugin)
	if err != nil {
		return fmt.Errorf("encoding plugin: %w", err)
	}

	action := taxonomy.ResolveAction(e.EventType, e.Payload)
	_, err = stmt.ExecContext(ctx,
		e.ID, e.SessionID, e.DeviceID, e.EventType,
		e.EventAt.UnixMilli(), e.ReceivedAt.UnixMilli(),
		e.Source, e.Tool, action, taxonomy.IsPassive(e.EventType, action),
		e.User.IsAuthenticated, nullString(e.User.UserID), nullString(e.User.AnonymousID),
		string(userJSON), string(payloadJSON), string(runtimeJSON), string(pluginJSON),
	)
	return err
}

// actionJSONPaths are the payload fields an action allow-list is matched
// against, alongside event_type.
var actionJSONPaths = []string{"$.action", "$.messageType", "$.interactionAction", "$.type"}

// where builds the SQL predicate for f.
func (f Filter) where() (string, []any) {
	clauses := []string{"event_at BETWEEN ? AND ?"}
	args := []any{f.From.UnixMilli(), f.To.UnixMilli()}

	if tool := strings.TrimSpace(f.Tool); tool != "" && tool != "all" {
		if f.ToolAnyField {
			clauses = append(clauses, `(tool = ? OR json_extract(payload_json, '$.element.toolId') = ? OR json_extract(payload_json, '$.uiTool') = ?)`)
			args = append(args, tool, tool, tool)
		} else {
			clauses = append(clauses, "tool = ?")
			args = append(args, tool)
		}
	}

	switch f.Auth {
	case AuthAuthenticated:
		clauses = append(clauses, "is_authenticated = 1")
	case AuthAnonymous:
		clauses = append(clauses, "is_authenticated = 0")
	}

	if len(f.Actions) > 0 {
		marks := placeholders(len(f.Actions))
		alternatives := []string{"event_type IN (" + marks + ")"}
		for _, path := range actionJSONPaths {
			alternatives = append(alternatives, fmt.Sprintf("json_extract(payload_json, '%s') IN (%s)", path, marks))
		}
		clauses = append(clauses, "("+strings.Join(alternatives, " OR ")+")")
		for i := 0; i < len(actionJSONPaths)+1; i++ {
			for _, a := range f.Actions {
				args = append(args, a)
			}
		}
	}

	if len(f.EventTypes) > 0 {
		clauses = append(clauses, "event_type IN ("+placeholders(len(f.EventTypes))+")")
		for _, t := range f.EventTypes {
			args = append(args, t)
		}
	}

	if f.ExcludePassive {
		clauses = append(clauses, "passive = 0")
	}

	return strings.Join(clauses, " AND "), args
}

// QueryEvents returns the events matching f, oldest first unless
// f.NewestFirst is set. Ties on event_at keep insertion order.
func (db *DB) QueryEvents(ctx context.Context, f Filter) ([]event.Event, error) {
	where, args := f.where()
	query := "SELECT " + eventColumns + " FROM events WHERE " + where
	if f.NewestFirst {
		query += " ORDER BY event_at DESC, rowid DESC"
	} else {
		query += " ORDER BY event_at ASC, rowid ASC"
	}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []event.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEvents returns the number of events matching f. Limit and order
// are ignored.
func (db *DB) CountEvents(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()
	var n int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE "+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// LatestEventAt returns the newest event_at in the store, or the zero time
// when the store is empty.
func (db *DB) LatestEventAt(ctx context.Context) (time.Time, error) {
	var ms sql.NullInt64
	if err := db.conn.QueryRowContext(ctx, "SELECT MAX(event_at) FROM events").Scan(&ms); err != nil {
		return time.Time{}, fmt.Errorf("reading latest event: %w", err)
	}
	if !ms.Valid {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms.Int64).UTC(), nil
}

// Ping checks that the database answers a trivial query.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func scanEvent(rows *sql.Rows) (event.Event, error) {
	var (
		e                   event.Event
		eventAt, receivedAt int64
		userJSON, payload   string
		runtime, plugin     sql.NullString
	)
	if err := rows.Scan(&e.ID, &e.SessionID, &e.DeviceID, &e.EventType, &eventAt, &receivedAt,
		&e.Source, &e.Tool, &userJSON, &payload, &runtime, &plugin); err != nil {
		return e, fmt.Errorf("scanning event: %w", err)
	}
	e.EventAt = time.UnixMilli(eventAt).UTC()
	e.ReceivedAt = time.UnixMilli(receivedAt).UTC()

	if err := json.Unmarshal([]byte(userJSON), &e.User); err != nil {
		return e, fmt.Errorf("decoding user of %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
		return e, fmt.Errorf("decoding payload of %s: %w", e.ID, err)
	}
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	if runtime.Valid {
		_ = json.Unmarshal([]byte(runtime.String), &e.Runtime)
	}
	if plugin.Valid {
		_ = json.Unmarshal([]byte(plugin.String), &e.Plugin)
	}
	return e, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
