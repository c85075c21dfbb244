package history

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in SQLite.
type SQLiteStore struct {
	db  *sql.DB
	own bool
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path. ":memory:" is allowed.
// The store owns the handle and closes it in Close.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a second pooled connection to :memory: would see an empty database
	db.SetMaxOpenConns(1)
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.own = true
	return store, nil
}

// NewSQLiteStore wraps an existing handle and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close releases the database when the store opened it.
func (s *SQLiteStore) Close() error {
	if !s.own {
		return nil
	}
	return s.db.Close()
}

// Record stores rec and returns it with its ID and timestamp set.
func (s *SQLiteStore) Record(ctx context.Context, rec Record) (Record, error) {
	rec = prepare(rec, s.now)
	var accuracy sql.NullFloat64
	if rec.Accuracy != nil {
		accuracy = sql.NullFloat64{Float64: *rec.Accuracy, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gate_runs (
			id, run_id, builder, repo, passed, accuracy, report_text, fault, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.RunID,
		rec.Builder,
		rec.Repo,
		rec.Passed,
		accuracy,
		rec.Text,
		rec.Fault,
		rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns matching records, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := `
		SELECT id, run_id, builder, repo, passed, accuracy, report_text, fault, created_at
		FROM gate_runs
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Builder != "" {
		addFilter("builder = ?", filter.Builder)
	}
	if filter.Repo != "" {
		addFilter("repo = ?", filter.Repo)
	}
	if filter.Passed != nil {
		addFilter("passed = ?", *filter.Passed)
	}
	query += where + " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec      Record
			accuracy sql.NullFloat64
			created  int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Builder,
			&rec.Repo,
			&rec.Passed,
			&accuracy,
			&rec.Text,
			&rec.Fault,
			&created,
		); err != nil {
			return nil, err
		}
		if accuracy.Valid {
			v := accuracy.Float64
			rec.Accuracy = &v
		}
		rec.CreatedAt = time.Unix(0, created).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS gate_runs (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL DEFAULT '',
			builder TEXT NOT NULL,
			repo TEXT NOT NULL,
			passed BOOLEAN NOT NULL,
			accuracy REAL,
			report_text TEXT NOT NULL,
			fault TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_gate_runs_builder ON gate_runs(builder);
		CREATE INDEX IF NOT EXISTS idx_gate_runs_repo ON gate_runs(repo);
		CREATE INDEX IF NOT EXISTS idx_gate_runs_created ON gate_runs(created_at);
	`)
	return err
}
