package virtwho

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/virtwho-qe/harness/internal/config"
	"github.com/virtwho-qe/harness/internal/models"
	"github.com/virtwho-qe/harness/pkg/sshexec"
)

// Dialer opens an executor against an arbitrary host. The hypervisor
// config needs one to resolve the rhevm engine hostname on the
// hypervisor itself.
type Dialer func(host, user, password string, port int) sshexec.Executor

func sshDialer(host, user, password string, port int) sshexec.Executor {
	return sshexec.NewClient(host, user, password, port)
}

// HypervisorConfig assembles the agent's per-mode configuration file
// under /etc/virt-who.d/ from the harness settings and persists it
// through the config store.
type HypervisorConfig struct {
	mode     models.Mode
	register models.Register
	section  string
	settings *config.Settings
	store    *IniFile
	logger   *zap.SugaredLogger

	// Dial opens the executor used to resolve hostnames on the
	// hypervisor host itself.
	Dial Dialer
}

// NewHypervisorConfig prepares the builder; the local working copy lives
// under tempDir.
func NewHypervisorConfig(mode models.Mode, register models.Register, settings *config.Settings, executor sshexec.Executor, tempDir string) (*HypervisorConfig, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	local := filepath.Join(tempDir, fmt.Sprintf("%s.conf", mode))
	remote := fmt.Sprintf("/etc/virt-who.d/%s.conf", mode)
	return &HypervisorConfig{
		mode:     mode,
		register: register,
		section:  fmt.Sprintf("virtwho-%s", mode),
		settings: settings,
		store:    NewIniFile(local, remote, executor),
		Dial:     sshDialer,
		logger:   zap.S().Named("configure"),
	}, nil
}

// Create writes the base option set for the mode: the virtualization
// backend options plus the subscription server connection.
func (c *HypervisorConfig) Create(ctx context.Context) error {
	hypervisor := c.settings.Hypervisor(c.mode)
	register := c.settings.Register(c.register)

	if c.mode.IsLocal() {
		if err := c.Update("type", "libvirt"); err != nil {
			return err
		}
	} else {
		if err := c.Update("type", string(c.mode)); err != nil {
			return err
		}
		if err := c.Update("hypervisor_id", "hostname"); err != nil {
			return err
		}
	}

	if c.mode == models.ModeKubevirt {
		if err := c.Update("kubeconfig", hypervisor.ConfigFile); err != nil {
			return err
		}
	}

	switch c.mode {
	case models.ModeEsx, models.ModeXen, models.ModeHyperv, models.ModeRhevm, models.ModeLibvirt, models.ModeAhv:
		server := hypervisor.Server
		if c.mode == models.ModeRhevm {
			engine, err := c.engineServer(ctx, hypervisor)
			if err != nil {
				return err
			}
			server = engine
		}
		for key, value := range map[string]string{
			"server":   server,
			"username": hypervisor.Username,
			"password": hypervisor.Password,
		} {
			if err := c.Update(key, value); err != nil {
				return err
			}
		}
	}

	for key, value := range map[string]string{
		"rhsm_hostname": register.Server,
		"rhsm_username": register.Username,
		"rhsm_password": register.Password,
		"rhsm_prefix":   register.Prefix,
		"rhsm_port":     strconv.Itoa(register.Port),
		"owner":         register.DefaultOrg,
	} {
		if err := c.Update(key, value); err != nil {
			return err
		}
	}

	c.logger.Infow("created hypervisor config", "mode", c.mode, "register", c.register)
	return nil
}

// engineServer resolves the ovirt-engine URL from the rhevm host's
// actual hostname.
func (c *HypervisorConfig) engineServer(ctx context.Context, hypervisor config.HypervisorSettings) (string, error) {
	executor := c.Dial(hypervisor.Server, hypervisor.SSHUsername, hypervisor.SSHPassword, 22)
	_, out, err := executor.Execute(ctx, "hostname")
	if err != nil {
		return "", fmt.Errorf("resolving rhevm hostname: %w", err)
	}
	return fmt.Sprintf("https://%s:443/ovirt-engine", strings.TrimSpace(out)), nil
}

// Update adds or updates an option in the mode's section.
func (c *HypervisorConfig) Update(key, value string) error {
	return c.store.Update(c.section, key, value)
}

// Delete removes an option from the mode's section.
func (c *HypervisorConfig) Delete(key string) error {
	return c.store.Delete(c.section, key)
}

// Destroy removes the local and remote files.
func (c *HypervisorConfig) Destroy() error {
	return c.store.Destroy()
}

// GlobalConfig manages the agent's global /etc/virt-who.conf file. The
// pristine remote file is backed up once per harness lifetime so test
// runs can restore it.
type GlobalConfig struct {
	store    *IniFile
	savePath string
	logger   *zap.SugaredLogger
}

func NewGlobalConfig(executor sshexec.Executor, tempDir string) (*GlobalConfig, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	local := filepath.Join(tempDir, "virt-who.conf")
	savePath := filepath.Join(tempDir, "virt-who.conf.save")

	g := &GlobalConfig{
		store:    NewIniFile(local, "/etc/virt-who.conf", executor),
		savePath: savePath,
		logger:   zap.S().Named("configure"),
	}
	if _, err := os.Stat(savePath); os.IsNotExist(err) {
		if err := executor.GetFile("/etc/virt-who.conf", savePath); err != nil {
			g.logger.Warnw("no pristine global config to back up", "err", err)
		}
	}
	return g, nil
}

// Update adds the section or option if absent, otherwise updates it.
func (g *GlobalConfig) Update(section, key, value string) error {
	return g.store.Update(section, key, value)
}

// Delete removes a section, or a single option when key is non-empty.
func (g *GlobalConfig) Delete(section, key string) error {
	return g.store.Delete(section, key)
}

// Clean deletes all configuration in the remote global file.
func (g *GlobalConfig) Clean() error {
	return g.store.Clean()
}
