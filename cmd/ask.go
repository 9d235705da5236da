package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/enrichtable/internal/archive"
	"github.com/sells-group/enrichtable/internal/model"
	"github.com/sells-group/enrichtable/internal/query"
	"github.com/sells-group/enrichtable/internal/table"
	"github.com/sells-group/enrichtable/pkg/enrich"
)

var askSession string

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask the assistant about an archived session's enriched data",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ask"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := archive.Open(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		defer st.Close()

		sess, err := st.GetSession(ctx, askSession)
		if err != nil {
			return err
		}
		if sess == nil {
			return eris.Errorf("ask: session %q not found", askSession)
		}

		// Rehydrate the archived results into a read-only store snapshot.
		store := table.NewMemStore()
		for _, res := range sess.Results {
			res.Row.Columns = sess.Columns
			store.Replace(res)
		}
		msgLog := table.NewMessageLog()

		client := enrich.NewClient(cfg.Producer.BaseURL)
		ctrl := query.New(client, store, msgLog, query.Config{
			Fields:      sess.Fields,
			EmailColumn: sess.EmailColumn,
			TotalRows:   sess.RowCount,
			Timeout:     time.Duration(cfg.Session.QueryTimeoutSecs) * time.Second,
		})

		done := make(chan error, 1)
		go func() {
			done <- ctrl.Submit(ctx, strings.Join(args, " "))
		}()

		select {
		case err := <-done:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			ctrl.Cancel(cmd.Context())
			<-done
		}

		for _, m := range msgLog.All() {
			switch m.Type {
			case model.MessageAssistant:
				fmt.Println(m.Text)
			case model.MessageInfo, model.MessageWarning:
				fmt.Printf("[%s] %s\n", m.Type, m.Text)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "archived session id (required)")
	askCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(askCmd)
}
