package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/enrichtable/internal/archive"
	"github.com/sells-group/enrichtable/internal/export"
	"github.com/sells-group/enrichtable/internal/model"
	"github.com/sells-group/enrichtable/internal/table"
)

var (
	exportSession string
	exportOutput  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an archived session's results to a file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := archive.Open(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		defer st.Close()

		sess, err := st.GetSession(ctx, exportSession)
		if err != nil {
			return err
		}
		if sess == nil {
			return eris.Errorf("export: session %q not found", exportSession)
		}

		// Rebuild positional rows: snapshot records are looked up by index.
		store := table.NewMemStore()
		rows := make([]model.Row, sess.RowCount)
		for _, res := range sess.Results {
			res.Row.Columns = sess.Columns
			store.Replace(res)
			if res.RowIndex >= 0 && res.RowIndex < len(rows) {
				rows[res.RowIndex] = res.Row
			}
		}

		snap := export.BuildSnapshot(rows, sess.Fields, sess.EmailColumn, store)
		snap.Columns = sess.Columns
		if err := exportSnapshot(snap, exportOutput); err != nil {
			return err
		}
		zap.L().Info("exported session",
			zap.String("session_id", sess.ID),
			zap.String("output", exportOutput),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSession, "session", "", "archived session id (required)")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output file (.csv, .json or .xlsx) (required)")
	exportCmd.MarkFlagRequired("session")
	exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}
