package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/san-kum/physim/internal/state"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	metadata   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS states (
	run_id TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	step   INTEGER NOT NULL,
	time   REAL    NOT NULL,
	lane   INTEGER NOT NULL,
	key    TEXT    NOT NULL,
	value  REAL,
	PRIMARY KEY (run_id, step, lane, key)
);`

// SQLiteStore keeps runs in a single database file. States are stored one
// row per (step, lane, key); NaN is stored as NULL.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	if s.path == "" {
		return fmt.Errorf("database path is required")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, meta RunMetadata, snaps []state.Snapshot) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not initialized")
	}
	series := prepare(&meta, snaps)

	blob, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, name, created_at, metadata) VALUES (?, ?, ?, ?)`,
		meta.ID, meta.Name, meta.Timestamp.UnixNano(), string(blob),
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO states (run_id, step, time, lane, key, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range series.Rows {
		for i, k := range series.Keys {
			var v sql.NullFloat64
			if x := r.Values[i]; !math.IsNaN(x) {
				v = sql.NullFloat64{Float64: x, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, meta.ID, r.Step, r.Time, r.Lane, k, v); err != nil {
				return "", fmt.Errorf("failed to insert state: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return meta.ID, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]RunMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT metadata FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var meta RunMetadata
		if err := json.Unmarshal([]byte(blob), &meta); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Load(ctx context.Context, runID string) (*RunMetadata, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT metadata FROM runs WHERE id = ?`, runID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var meta RunMetadata
	if err := json.Unmarshal([]byte(blob), &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &meta, nil
}

func (s *SQLiteStore) LoadSeries(ctx context.Context, runID string) (*Series, error) {
	meta, err := s.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(meta.Keys))
	for i, k := range meta.Keys {
		col[k] = i
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT step, time, lane, key, value FROM states WHERE run_id = ? ORDER BY step, lane`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load states: %w", err)
	}
	defer rows.Close()

	series := &Series{Keys: meta.Keys}
	for rows.Next() {
		var (
			step, lane int
			t          float64
			key        string
			v          sql.NullFloat64
		)
		if err := rows.Scan(&step, &t, &lane, &key, &v); err != nil {
			return nil, err
		}
		n := len(series.Rows)
		if n == 0 || series.Rows[n-1].Step != step || series.Rows[n-1].Lane != lane {
			vals := make([]float64, len(meta.Keys))
			for i := range vals {
				vals[i] = math.NaN()
			}
			series.Rows = append(series.Rows, Row{Step: step, Time: t, Lane: lane, Values: vals})
			n++
		}
		if i, ok := col[key]; ok && v.Valid {
			series.Rows[n-1].Values[i] = v.Float64
		}
	}
	return series, rows.Err()
}
