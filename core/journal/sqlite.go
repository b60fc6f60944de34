package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `CREATE TABLE IF NOT EXISTS solves (
	id TEXT PRIMARY KEY,
	task_id INTEGER NOT NULL,
	msg_key TEXT,
	ts INTEGER NOT NULL,
	status TEXT NOT NULL,
	solver_status TEXT,
	objective REAL,
	relative_gap REAL,
	elapsed_time REAL,
	error TEXT,
	contracts INTEGER,
	storages INTEGER,
	movable_demands INTEGER,
	variables INTEGER,
	constraints INTEGER
);
CREATE INDEX IF NOT EXISTS solves_ts ON solves (ts);`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO solves (id, task_id, msg_key, ts, status, solver_status, objective, relative_gap,
			elapsed_time, error, contracts, storages, movable_demands, variables, constraints)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TaskID, rec.Key, rec.Timestamp.UnixNano(), rec.Status, rec.SolverStatus,
		rec.Objective, rec.RelativeGap, rec.ElapsedTime, rec.Error,
		rec.Contracts, rec.Storages, rec.MovableDemands, rec.Variables, rec.Constraints)
	return err
}

// Query returns records matching q in time order.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	where := ` WHERE 1=1`
	if !q.Start.IsZero() {
		where += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		where += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.TaskID != nil {
		where += ` AND task_id = ?`
		args = append(args, *q.TaskID)
	}
	if q.Status != "" {
		where += ` AND status = ?`
		args = append(args, q.Status)
	}
	query := `SELECT id, task_id, msg_key, ts, status, solver_status, objective, relative_gap,
		elapsed_time, error, contracts, storages, movable_demands, variables, constraints
		FROM solves` + where + ` ORDER BY ts`
	if q.Limit > 0 {
		query = `SELECT * FROM (` + query + ` DESC LIMIT ?) ORDER BY ts`
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var (
			r          Record
			ts         int64
			key, sstat sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.TaskID, &key, &ts, &r.Status, &sstat, &r.Objective, &r.RelativeGap,
			&r.ElapsedTime, &errMsg, &r.Contracts, &r.Storages, &r.MovableDemands, &r.Variables, &r.Constraints); err != nil {
			return nil, err
		}
		r.Key, r.SolverStatus, r.Error = key.String, sstat.String, errMsg.String
		r.Timestamp = unixNano(ts)
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func unixNano(ns int64) time.Time { return time.Unix(0, ns).UTC() }
