package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/clearbound/enrich-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path in WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if strings.Contains(dsn, ":memory:") {
		// A pooled second connection would see an empty database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	website    TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	profile    TEXT,
	stages     TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, website, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Request.Name, run.Request.Website, string(run.Status),
		run.CreatedAt.UTC().Format(time.RFC3339Nano), run.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, run *model.Run) error {
	profileJSON, stagesJSON, err := marshalRunPayload(run)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, profile = ?, stages = ?, updated_at = ? WHERE id = ?`,
		string(run.Status), profileJSON, stagesJSON,
		run.UpdatedAt.UTC().Format(time.RFC3339Nano), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", run.ID)
	}
	return checkRowsAffected(res, run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, website, status, profile, stages, created_at, updated_at FROM runs WHERE id = ?`,
		id,
	)

	var r model.Run
	var profileJSON, stagesJSON sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&r.ID, &r.Request.Name, &r.Request.Website, &r.Status, &profileJSON, &stagesJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse created_at")
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse updated_at")
	}
	if err := unmarshalRunPayload(&r, profileJSON.String, stagesJSON.String); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, website, status, created_at, updated_at FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		var createdAt, updatedAt string
		if err := rows.Scan(&rs.ID, &rs.Name, &rs.Website, &rs.Status, &createdAt, &updatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run summary")
		}
		if rs.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse created_at")
		}
		if rs.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse updated_at")
		}
		out = append(out, rs)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalRunPayload(run *model.Run) (profile, stages string, err error) {
	if run.Profile != nil {
		b, err := json.Marshal(run.Profile)
		if err != nil {
			return "", "", eris.Wrap(err, "store: marshal profile")
		}
		profile = string(b)
	}
	if len(run.Stages) > 0 {
		b, err := json.Marshal(run.Stages)
		if err != nil {
			return "", "", eris.Wrap(err, "store: marshal stages")
		}
		stages = string(b)
	}
	return profile, stages, nil
}

func unmarshalRunPayload(r *model.Run, profileJSON, stagesJSON string) error {
	if profileJSON != "" {
		r.Profile = &model.CompanyProfile{}
		if err := json.Unmarshal([]byte(profileJSON), r.Profile); err != nil {
			return eris.Wrap(err, "store: unmarshal profile")
		}
	}
	if stagesJSON != "" {
		if err := json.Unmarshal([]byte(stagesJSON), &r.Stages); err != nil {
			return eris.Wrap(err, "store: unmarshal stages")
		}
	}
	return nil
}
