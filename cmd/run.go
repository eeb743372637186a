package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/virtwho-qe/harness/internal/config"
	"github.com/virtwho-qe/harness/internal/models"
	"github.com/virtwho-qe/harness/internal/store"
	"github.com/virtwho-qe/harness/internal/store/migrations"
	"github.com/virtwho-qe/harness/internal/virtwho"
)

// NewRunCommand drives one end-to-end agent run: push config, start the
// agent, poll, analyze, and print the result.
func NewRunCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Configure, start and analyze one virt-who run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOptions(opts); err != nil {
				return err
			}
			return runAgent(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", opts.Mode, "Hypervisor mode (esx, xen, hyperv, rhevm, libvirt, kubevirt, ahv, local, fake)")
	cmd.Flags().StringVar(&opts.Register, "register", opts.Register, "Subscription server (rhsm, satellite)")
	cmd.Flags().BoolVar(&opts.Service, "service", opts.Service, "Start the agent through its system service instead of the command line")
	cmd.Flags().BoolVar(&opts.Debug, "debug", opts.Debug, "Run the agent with -d")
	cmd.Flags().BoolVar(&opts.Oneshot, "oneshot", opts.Oneshot, "Run the agent with -o")
	cmd.Flags().IntVar(&opts.Interval, "interval", opts.Interval, "Agent report interval in seconds (0 leaves the agent default)")
	cmd.Flags().BoolVar(&opts.Print, "print", opts.Print, "Run the agent with -p and capture its JSON output")
	cmd.Flags().StringVar(&opts.Config, "config", opts.Config, `Agent config file passed with -c ("default" uses the per-mode file, "" omits it)`)
	cmd.Flags().DurationVar(&opts.Wait, "wait", opts.Wait, "Delay before the first log poll")
	cmd.Flags().StringVar(&opts.TempDir, "temp-dir", opts.TempDir, "Directory for local working copies of remote config files")
	cmd.Flags().StringVar(&opts.HistoryDB, "history-db", opts.HistoryDB, "DuckDB file recording run history (empty disables recording)")
	return cmd
}

func runAgent(cmd *cobra.Command, opts *Options) error {
	mode := models.Mode(opts.Mode)
	register := models.Register(opts.Register)

	settings, err := config.Load(opts.Settings)
	if err != nil {
		return err
	}

	harness, err := virtwho.New(settings, mode, register, opts.TempDir)
	if err != nil {
		return err
	}
	defer harness.Close()

	ctx := cmd.Context()
	if err := harness.Deploy(ctx); err != nil {
		return err
	}

	spec := models.LaunchSpec{
		Service:  opts.Service,
		Debug:    opts.Debug,
		Oneshot:  opts.Oneshot,
		Interval: opts.Interval,
		Print:    opts.Print,
		Config:   opts.Config,
		Wait:     opts.Wait,
	}

	var result models.AnalysisResult
	if opts.Service {
		result, err = harness.Runner.RunService(ctx, spec)
	} else {
		result, err = harness.Runner.RunCommandLine(ctx, spec)
	}
	if err != nil {
		return err
	}

	if opts.HistoryDB != "" {
		launch := spec.CommandLine(harness.Runner.Context())
		if opts.Service {
			launch = "systemctl restart virt-who"
		}
		if err := recordRun(cmd, opts.HistoryDB, harness.Runner.Context(), launch, result); err != nil {
			return err
		}
	}

	return printResult(cmd, result)
}

func recordRun(cmd *cobra.Command, path string, runCtx models.RunContext, launch string, result models.AnalysisResult) error {
	db, err := store.NewDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if err := migrations.Run(ctx, db); err != nil {
		return err
	}
	return store.NewRunStore(store.NewQueryInterceptor(db)).Save(ctx, store.NewRunRecord(runCtx, launch, result))
}

func printResult(cmd *cobra.Command, result models.AnalysisResult) error {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

	if result.Send > 0 && result.ErrorCount == 0 {
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "OK: %d mapping(s) sent, no errors\n", result.Send)
	} else {
		color.New(color.FgRed).Fprintf(cmd.OutOrStdout(), "CHECK: send=%d errors=%d warnings=%d\n",
			result.Send, result.ErrorCount, result.WarningCount)
	}
	return nil
}
