package archive

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
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
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	email_column   TEXT NOT NULL,
	columns        TEXT NOT NULL,
	fields         TEXT NOT NULL,
	status         TEXT NOT NULL,
	row_count      INTEGER NOT NULL,
	completed_rows INTEGER NOT NULL,
	results        TEXT NOT NULL,
	started_at     DATETIME NOT NULL,
	completed_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_completed_at ON sessions(completed_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSession(ctx context.Context, sess Session) error {
	columnsJSON, err := json.Marshal(sess.Columns)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal columns")
	}
	fieldsJSON, err := json.Marshal(sess.Fields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fields")
	}
	resultsJSON, err := json.Marshal(sess.Results)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal results")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions
		 (id, email_column, columns, fields, status, row_count, completed_rows, results, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.EmailColumn, string(columnsJSON), string(fieldsJSON), sess.Status,
		sess.RowCount, completedRows(sess.Results), string(resultsJSON),
		sess.StartedAt.UTC(), sess.CompletedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: save session")
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var (
		sess        Session
		columnsJSON string
		fieldsJSON  string
		resultsJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email_column, columns, fields, status, row_count, results, started_at, completed_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.EmailColumn, &columnsJSON, &fieldsJSON, &sess.Status,
		&sess.RowCount, &resultsJSON, &sess.StartedAt, &sess.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get session")
	}

	if err := json.Unmarshal([]byte(columnsJSON), &sess.Columns); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal columns")
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &sess.Fields); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal fields")
	}
	if err := json.Unmarshal([]byte(resultsJSON), &sess.Results); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal results")
	}
	return &sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, row_count, completed_rows, started_at, completed_at
		 FROM sessions ORDER BY completed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Status, &sum.RowCount, &sum.CompletedRows,
			&sum.StartedAt, &sum.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session summary")
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sessions")
}
