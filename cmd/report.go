package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/virtwho-qe/harness/internal/store"
	"github.com/virtwho-qe/harness/internal/store/migrations"
	"github.com/virtwho-qe/harness/pkg/report"
)

// NewReportCommand exports the recorded run history to a workbook.
func NewReportCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export recorded runs to an Excel workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.HistoryDB == "" {
				return fmt.Errorf("--history-db is required")
			}

			db, err := store.NewDB(opts.HistoryDB)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if err := migrations.Run(ctx, db); err != nil {
				return err
			}
			records, err := store.NewRunStore(store.NewQueryInterceptor(db)).List(ctx)
			if err != nil {
				return err
			}

			if err := report.WriteWorkbook(opts.Output, records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d run(s) to %s\n", len(records), opts.Output)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.HistoryDB, "history-db", opts.HistoryDB, "DuckDB file recording run history")
	cmd.Flags().StringVar(&opts.Output, "output", opts.Output, "Workbook path to write")
	return cmd
}
