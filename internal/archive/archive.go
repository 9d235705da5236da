// Package archive persists completed enrichment sessions for later listing
// and export. In-flight session state is never written here.
package archive

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrichtable/internal/model"
)

// Session is one archived, terminal enrichment run.
type Session struct {
	ID          string            `json:"id"`
	EmailColumn string            `json:"email_column"`
	Columns     []string          `json:"columns"`
	Fields      []model.Field     `json:"fields"`
	Status      string            `json:"status"` // completed or cancelled
	RowCount    int               `json:"row_count"`
	Results     []model.RowResult `json:"results"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Summary is the listing view of an archived session.
type Summary struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	RowCount      int       `json:"row_count"`
	CompletedRows int       `json:"completed_rows"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Store is the archive persistence interface.
type Store interface {
	SaveSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]Summary, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures the archive backend.
type Config struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// Open creates the configured Store and runs migrations.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "enrichtable.db"
		}
		st, err = NewSQLite(path)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("archive: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// completedRows counts terminal per-row outcomes in a session.
func completedRows(results []model.RowResult) int {
	n := 0
	for _, r := range results {
		switch r.Status {
		case model.StatusCompleted, model.StatusSkipped, model.StatusError:
			n++
		}
	}
	return n
}
