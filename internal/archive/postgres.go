package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the archive uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	email_column   TEXT NOT NULL,
	columns        JSONB NOT NULL,
	fields         JSONB NOT NULL,
	status         TEXT NOT NULL,
	row_count      INTEGER NOT NULL,
	completed_rows INTEGER NOT NULL,
	results        JSONB NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_completed_at ON sessions(completed_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, sess Session) error {
	columnsJSON, err := json.Marshal(sess.Columns)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal columns")
	}
	fieldsJSON, err := json.Marshal(sess.Fields)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fields")
	}
	resultsJSON, err := json.Marshal(sess.Results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal results")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions
		 (id, email_column, columns, fields, status, row_count, completed_rows, results, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   completed_rows = EXCLUDED.completed_rows,
		   results = EXCLUDED.results,
		   completed_at = EXCLUDED.completed_at`,
		sess.ID, sess.EmailColumn, columnsJSON, fieldsJSON, sess.Status,
		sess.RowCount, completedRows(sess.Results), resultsJSON,
		sess.StartedAt.UTC(), sess.CompletedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: save session")
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var (
		sess        Session
		columnsJSON []byte
		fieldsJSON  []byte
		resultsJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, email_column, columns, fields, status, row_count, results, started_at, completed_at
		 FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.EmailColumn, &columnsJSON, &fieldsJSON, &sess.Status,
		&sess.RowCount, &resultsJSON, &sess.StartedAt, &sess.CompletedAt)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get session")
	}

	if err := json.Unmarshal(columnsJSON, &sess.Columns); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal columns")
	}
	if err := json.Unmarshal(fieldsJSON, &sess.Fields); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal fields")
	}
	if err := json.Unmarshal(resultsJSON, &sess.Results); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal results")
	}
	return &sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, row_count, completed_rows, started_at, completed_at
		 FROM sessions ORDER BY completed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Status, &sum.RowCount, &sum.CompletedRows,
			&sum.StartedAt, &sum.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session summary")
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sessions")
}
