package models

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the hypervisor/virtualization platform the agent is configured
// to report from.
type Mode string

const (
	ModeEsx      Mode = "esx"
	ModeXen      Mode = "xen"
	ModeHyperv   Mode = "hyperv"
	ModeRhevm    Mode = "rhevm"
	ModeLibvirt  Mode = "libvirt"
	ModeKubevirt Mode = "kubevirt"
	ModeAhv      Mode = "ahv"
	ModeLocal    Mode = "local"
	ModeFake     Mode = "fake"
)

var allModes = []Mode{
	ModeEsx, ModeXen, ModeHyperv, ModeRhevm, ModeLibvirt,
	ModeKubevirt, ModeAhv, ModeLocal, ModeFake,
}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range allModes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown hypervisor mode %q", s)
}

// IsLocal reports whether the mode reports from the local libvirt host
// instead of a remote hypervisor API.
func (m Mode) IsLocal() bool {
	return m == ModeLocal
}

// Register is the subscription server the agent reports to.
type Register string

const (
	RegisterRHSM      Register = "rhsm"
	RegisterSatellite Register = "satellite"
)

func ParseRegister(s string) (Register, error) {
	r := Register(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RegisterRHSM, RegisterSatellite:
		return r, nil
	}
	return "", fmt.Errorf("unknown register type %q", s)
}

// RunContext holds the immutable per-run parameters of the harness:
// which mode and register backend the agent runs with and where its
// remote artifacts live. Created at harness construction and constant
// for its lifetime.
type RunContext struct {
	Mode     Mode
	Register Register

	// ConfigFile is the agent config under /etc/virt-who.d/.
	ConfigFile string
	// LogFile is the rhsm log consumed by the analyzer.
	LogFile string
	// PrintJSONFile captures the agent's -p output.
	PrintJSONFile string

	// GuestUUID is the self guest identifier configured for the mode,
	// used to resolve the owning hypervisor id from the mappings.
	GuestUUID string
}

// NewRunContext fills the fixed remote paths for a mode.
func NewRunContext(mode Mode, register Register) RunContext {
	return RunContext{
		Mode:          mode,
		Register:      register,
		ConfigFile:    fmt.Sprintf("/etc/virt-who.d/%s.conf", mode),
		LogFile:       "/var/log/rhsm/rhsm.log",
		PrintJSONFile: "/root/print.json",
	}
}

// LaunchSpec describes one agent invocation. It exists only for the
// duration of a single run call.
type LaunchSpec struct {
	// Service selects `systemctl restart virt-who` over a command line.
	Service bool

	Debug    bool
	Oneshot  bool
	Interval int
	Print    bool

	// Config overrides the config file passed with -c. The literal
	// "default" resolves to the run context's per-mode file, "" omits
	// the option.
	Config string

	// Wait delays the first log poll, mainly for interval testing.
	Wait time.Duration
}

// CommandLine renders the virt-who invocation. The print
// output is redirected into the run context's print file so it can be
// fetched after the run.
func (s LaunchSpec) CommandLine(ctx RunContext) string {
	var b strings.Builder
	b.WriteString("virt-who ")
	if s.Debug {
		b.WriteString("-d ")
	}
	if s.Oneshot {
		b.WriteString("-o ")
	}
	if s.Interval > 0 {
		fmt.Fprintf(&b, "-i %d ", s.Interval)
	}
	if s.Print {
		b.WriteString("-p ")
	}
	config := s.Config
	if config == "default" {
		config = ctx.ConfigFile
	}
	if config != "" {
		fmt.Fprintf(&b, "-c %s ", config)
	}
	cli := strings.TrimSpace(b.String())
	if s.Print {
		cli = fmt.Sprintf("%s > %s", cli, ctx.PrintJSONFile)
	}
	return cli
}

// Capture is the raw material handed to the analyzer: a snapshot of the
// remote log at poll completion plus the run-side observations that do
// not live in the log text. Immutable once captured.
type Capture struct {
	Log       string
	Stdout    string
	Threads   int
	PrintJSON string
}
