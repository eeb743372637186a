package cmd

import (
	"fmt"
	"time"

	"github.com/virtwho-qe/harness/internal/models"
)

// Options carries every CLI flag. Defaults mirror the agent's own
// defaults where it has them.
type Options struct {
	LogLevel string
	Settings string

	Mode     string
	Register string

	Service  bool
	Debug    bool
	Oneshot  bool
	Interval int
	Print    bool
	Config   string
	Wait     time.Duration

	TempDir   string
	HistoryDB string
	Output    string

	LogFile   string
	GuestUUID string
}

func NewOptions() *Options {
	return &Options{
		LogLevel: "info",
		Settings: "virtwho.yaml",
		Mode:     string(models.ModeEsx),
		Register: string(models.RegisterRHSM),
		Debug:    true,
		Oneshot:  true,
		Config:   "default",
		TempDir:  "temp",
		Output:   "virtwho-runs.xlsx",
	}
}

// validateOptions checks the mode/register pair shared by the run and
// analyze commands.
func validateOptions(opts *Options) error {
	if _, err := models.ParseMode(opts.Mode); err != nil {
		return err
	}
	if _, err := models.ParseRegister(opts.Register); err != nil {
		return err
	}
	if opts.Interval < 0 {
		return fmt.Errorf("invalid interval %d: must be >= 0", opts.Interval)
	}
	return nil
}
