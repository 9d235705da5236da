package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/enrichtable/internal/archive"
	"github.com/sells-group/enrichtable/internal/export"
	"github.com/sells-group/enrichtable/internal/fieldspec"
	"github.com/sells-group/enrichtable/internal/input"
	"github.com/sells-group/enrichtable/internal/model"
	"github.com/sells-group/enrichtable/internal/reveal"
	"github.com/sells-group/enrichtable/internal/session"
	"github.com/sells-group/enrichtable/internal/table"
	"github.com/sells-group/enrichtable/pkg/enrich"
)

var (
	runCSV         string
	runFields      string
	runNotion      bool
	runEmailColumn string
	runAgents      bool
	runNoArchive   bool
	runOutput      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Stream an enrichment session over a CSV of rows",
	Long: `Reads input rows from a CSV, opens an enrichment stream against the
producer, and reconciles per-row results as they arrive. Ctrl-C cancels the
session mid-flight; partial results are archived and exportable.

Examples:
  # Enrich contacts.csv with fields defined in fields.yaml
  enrichtable run --csv contacts.csv --fields fields.yaml

  # Use agent execution mode and export results when done
  enrichtable run --csv contacts.csv --fields fields.yaml --agents --output results.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rows, columns, err := input.LoadCSV(runCSV)
		if err != nil {
			return err
		}
		emailColumn := runEmailColumn
		if emailColumn == "" {
			emailColumn = input.DetectEmailColumn(columns)
		}
		zap.L().Info("loaded input rows",
			zap.Int("rows", len(rows)),
			zap.String("email_column", emailColumn),
		)

		fields, err := loadFields(ctx)
		if err != nil {
			return err
		}

		client := enrich.NewClient(cfg.Producer.BaseURL)
		store := table.NewMemStore()
		msgLog := table.NewMessageLog()
		tracker := reveal.NewTracker(fields)

		ctrl := session.New(client, store, msgLog, tracker, session.Config{
			Rows:          rows,
			Fields:        fields,
			EmailColumn:   emailColumn,
			UseAgents:     runAgents || cfg.Session.UseAgents,
			FirecrawlKey:  cfg.Credentials.FirecrawlKey,
			PerplexityKey: cfg.Credentials.PerplexityKey,
			IdleTimeout:   time.Duration(cfg.Session.IdleTimeoutSecs) * time.Second,
		})

		startedAt := time.Now().UTC()
		if err := ctrl.Start(ctx); err != nil {
			return err
		}

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ctrl.Done():
				break loop
			case <-ctx.Done():
				zap.L().Info("cancelling session", zap.String("session_id", ctrl.SessionID()))
				ctrl.Cancel(context.Background())
				<-ctrl.Done()
				break loop
			case now := <-ticker.C:
				tracker.Reconcile(now)
			}
		}
		tracker.Reconcile(time.Now())

		zap.L().Info("session finished",
			zap.String("state", string(ctrl.State())),
			zap.Int("completed", store.CountByStatus(model.StatusCompleted)),
			zap.Int("skipped", store.CountByStatus(model.StatusSkipped)),
			zap.Int("errored", store.CountByStatus(model.StatusError)),
			zap.Int("pending", store.CountByStatus(model.StatusPending)),
		)

		sessionID := ctrl.SessionID()
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		if !runNoArchive {
			if err := archiveSession(ctx, archive.Session{
				ID:          sessionID,
				EmailColumn: emailColumn,
				Columns:     columns,
				Fields:      fields,
				Status:      string(ctrl.State()),
				RowCount:    len(rows),
				Results:     store.All(),
				StartedAt:   startedAt,
				CompletedAt: time.Now().UTC(),
			}); err != nil {
				return err
			}
			zap.L().Info("archived session", zap.String("session_id", sessionID))
		}

		if runOutput != "" {
			snap := export.BuildSnapshot(rows, fields, emailColumn, store)
			if err := exportSnapshot(snap, runOutput); err != nil {
				return err
			}
			zap.L().Info("exported results", zap.String("output", runOutput))
		}

		return nil
	},
}

// loadFields reads field definitions from the configured Notion registry or
// the YAML file given on the command line.
func loadFields(ctx context.Context) ([]model.Field, error) {
	if runNotion {
		if cfg.Notion.Token == "" || cfg.Notion.FieldDB == "" {
			return nil, eris.New("run: notion token and field_db must be configured for --notion")
		}
		querier := fieldspec.NewNotionQuerier(cfg.Notion.Token)
		return fieldspec.LoadNotion(ctx, querier, cfg.Notion.FieldDB)
	}
	if runFields == "" {
		return nil, eris.New("run: --fields is required unless --notion is set")
	}
	return fieldspec.LoadYAML(runFields)
}

func archiveSession(ctx context.Context, sess archive.Session) error {
	st, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.SaveSession(ctx, sess)
}

// exportSnapshot picks the export format from the output file extension.
func exportSnapshot(snap export.Snapshot, output string) error {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".csv":
		return export.ExportCSV(snap, output)
	case ".json":
		return export.ExportJSON(snap, output)
	case ".xlsx":
		return export.ExportXLSX(snap, output)
	default:
		return eris.Errorf("export: unsupported output extension %q", filepath.Ext(output))
	}
}

func init() {
	runCmd.Flags().StringVar(&runCSV, "csv", "", "input CSV file (required)")
	runCmd.Flags().StringVar(&runFields, "fields", "", "field definitions YAML file")
	runCmd.Flags().BoolVar(&runNotion, "notion", false, "load field definitions from the configured Notion registry")
	runCmd.Flags().StringVar(&runEmailColumn, "email-column", "", "designated email column (default: detected)")
	runCmd.Flags().BoolVar(&runAgents, "agents", false, "request agent execution mode")
	runCmd.Flags().BoolVar(&runNoArchive, "no-archive", false, "skip archiving the finished session")
	runCmd.Flags().StringVar(&runOutput, "output", "", "export results on completion (.csv, .json or .xlsx)")
	runCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(runCmd)
}
