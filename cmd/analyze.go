package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/virtwho-qe/harness/internal/models"
	"github.com/virtwho-qe/harness/internal/virtwho"
)

// NewAnalyzeCommand replays the analyzer over a saved rhsm log, useful
// for offline triage of a failed run.
func NewAnalyzeCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a saved rhsm log without touching a remote host",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOptions(opts); err != nil {
				return err
			}
			if opts.LogFile == "" {
				return fmt.Errorf("--log-file is required")
			}

			raw, err := os.ReadFile(opts.LogFile)
			if err != nil {
				return err
			}

			runCtx := models.NewRunContext(models.Mode(opts.Mode), models.Register(opts.Register))
			runCtx.GuestUUID = opts.GuestUUID

			result := virtwho.Analyze(models.Capture{Log: string(raw)}, runCtx)
			return printResult(cmd, result)
		},
	}

	cmd.Flags().StringVar(&opts.LogFile, "log-file", opts.LogFile, "Path to the saved rhsm log")
	cmd.Flags().StringVar(&opts.Mode, "mode", opts.Mode, "Hypervisor mode the log was produced with")
	cmd.Flags().StringVar(&opts.Register, "register", opts.Register, "Subscription server the log was produced with")
	cmd.Flags().StringVar(&opts.GuestUUID, "guest-uuid", opts.GuestUUID, "Self guest UUID for hypervisor-id resolution")
	return cmd
}
