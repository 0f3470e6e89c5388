package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// RecordSnapshot stores metrics under a new snapshot in one transaction
// and returns the snapshot.
func (db *DB) RecordSnapshot(ctx context.Context, command, version string, metrics []AggregateMetric) (*Snapshot, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	snap := &Snapshot{TakenAt: time.Now().UTC().Truncate(time.Millisecond), Command: command, Version: version}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO snapshots (taken_at, command, version) VALUES (?, ?, ?)",
		snap.TakenAt.UnixMilli(), command, version)
	if err != nil {
		return nil, fmt.Errorf("inserting snapshot: %w", err)
	}
	if snap.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO aggregate_metrics (snapshot_id, metric_name, metric_value, detail) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}
	defer func() { _ = stmt.Close() }()
	for _, m := range metrics {
		if _, err := stmt.ExecContext(ctx, snap.ID, m.MetricName, m.MetricValue, nullString(m.Detail)); err != nil {
			return nil, fmt.Errorf("inserting metric %s: %w", m.MetricName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return snap, nil
}

// SnapshotN returns the nth most recent snapshot, 1 being the newest, or
// nil when there are fewer than n.
func (db *DB) SnapshotN(ctx context.Context, n int) (*Snapshot, error) {
	if n < 1 {
		return nil, nil
	}
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, taken_at, command, version FROM snapshots ORDER BY id DESC LIMIT 1 OFFSET ?", n-1)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListSnapshots returns up to limit snapshots, newest first.
func (db *DB) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, taken_at, command, version FROM snapshots ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r rowScanner) (*Snapshot, error) {
	var s Snapshot
	var takenAt int64
	if err := r.Scan(&s.ID, &takenAt, &s.Command, &s.Version); err != nil {
		return nil, err
	}
	s.TakenAt = time.UnixMilli(takenAt).UTC()
	return &s, nil
}

// SnapshotMetrics returns the metrics of a snapshot in insertion order.
func (db *DB) SnapshotMetrics(ctx context.Context, snapshotID int64) ([]AggregateMetric, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, snapshot_id, metric_name, metric_value, detail FROM aggregate_metrics WHERE snapshot_id = ? ORDER BY id",
		snapshotID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []AggregateMetric
	for rows.Next() {
		var m AggregateMetric
		var detail sql.NullString
		if err := rows.Scan(&m.ID, &m.SnapshotID, &m.MetricName, &m.MetricValue, &detail); err != nil {
			return nil, err
		}
		m.Detail = detail.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// DiffSnapshots compares two snapshots metric by metric, sorted by name. A
// metric missing from one side counts as zero there.
func (db *DB) DiffSnapshots(ctx context.Context, previous, current *Snapshot) (*SnapshotDiff, error) {
	prev, err := db.metricValues(ctx, previous.ID)
	if err != nil {
		return nil, err
	}
	curr, err := db.metricValues(ctx, current.ID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(prev)+len(curr))
	for name := range prev {
		names = append(names, name)
	}
	for name := range curr {
		if _, seen := prev[name]; !seen {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	diff := &SnapshotDiff{Previous: previous, Current: current, Deltas: make([]MetricDelta, 0, len(names))}
	for _, name := range names {
		d := MetricDelta{Name: name, Previous: prev[name], Current: curr[name], Direction: "unchanged"}
		if delta := d.Current - d.Previous; math.Abs(delta) >= 1e-9 {
			d.Delta = delta
			d.Direction = "up"
			if delta < 0 {
				d.Direction = "down"
			}
		}
		diff.Deltas = append(diff.Deltas, d)
	}
	return diff, nil
}

func (db *DB) metricValues(ctx context.Context, snapshotID int64) (map[string]float64, error) {
	metrics, err := db.SnapshotMetrics(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("loading metrics for snapshot %d: %w", snapshotID, err)
	}
	values := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		values[m.MetricName] = m.MetricValue
	}
	return values, nil
}
