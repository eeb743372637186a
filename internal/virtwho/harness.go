package virtwho

import (
	"context"

	"github.com/virtwho-qe/harness/internal/config"
	"github.com/virtwho-qe/harness/internal/models"
	"github.com/virtwho-qe/harness/pkg/scheduler"
	"github.com/virtwho-qe/harness/pkg/sshexec"
)

// Harness wires the components driving one remote agent: config
// builders, process controller and runner, all sharing one SSH
// connection to the host selected by the mode.
type Harness struct {
	Runner           *Runner
	Process          *ProcessController
	HypervisorConfig *HypervisorConfig
	GlobalConfig     *GlobalConfig

	executor *sshexec.Client
	sched    *scheduler.Scheduler
}

// New builds a harness for the mode/register pair from the settings.
// tempDir holds the local working copies of the remote config files.
func New(settings *config.Settings, mode models.Mode, register models.Register, tempDir string) (*Harness, error) {
	host := settings.SSH(mode)
	executor := sshexec.NewClient(host.Server, host.Username, host.Password, host.Port)
	sched := scheduler.NewScheduler(2)

	hypervisorConfig, err := NewHypervisorConfig(mode, register, settings, executor, tempDir)
	if err != nil {
		return nil, err
	}
	globalConfig, err := NewGlobalConfig(executor, tempDir)
	if err != nil {
		return nil, err
	}

	runCtx := models.NewRunContext(mode, register)
	runCtx.GuestUUID = settings.Hypervisor(mode).GuestUUID

	process := NewProcessController(executor, sched)
	return &Harness{
		Runner:           NewRunner(runCtx, executor, process),
		Process:          process,
		HypervisorConfig: hypervisorConfig,
		GlobalConfig:     globalConfig,
		executor:         executor,
		sched:            sched,
	}, nil
}

// Deploy creates and pushes the per-mode agent configuration.
func (h *Harness) Deploy(ctx context.Context) error {
	return h.HypervisorConfig.Create(ctx)
}

// Close releases the scheduler workers and the SSH connection.
func (h *Harness) Close() error {
	h.sched.Close()
	return h.executor.Close()
}
