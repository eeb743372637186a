package config

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/virtwho-qe/harness/internal/models"
)

// SSHHost is a host reachable over the remote shell channel.
type SSHHost struct {
	Server   string `mapstructure:"server" validate:"required"`
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Port     int    `mapstructure:"port" default:"22" validate:"gte=1,lte=65535"`
}

// RegisterSettings is the connection data of a subscription server
// section (rhsm or satellite).
type RegisterSettings struct {
	Server     string `mapstructure:"server" validate:"required"`
	Username   string `mapstructure:"username" validate:"required"`
	Password   string `mapstructure:"password" validate:"required"`
	Port       int    `mapstructure:"port" default:"443"`
	Prefix     string `mapstructure:"prefix"`
	DefaultOrg string `mapstructure:"default_org"`
}

// HypervisorSettings is the per-mode hypervisor section.
type HypervisorSettings struct {
	Server   string `mapstructure:"server"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// SSH credentials of the hypervisor host itself; used to resolve
	// the rhevm engine hostname.
	SSHUsername string `mapstructure:"ssh_username"`
	SSHPassword string `mapstructure:"ssh_password"`

	// ConfigFile is the kubeconfig path for kubevirt mode.
	ConfigFile string `mapstructure:"config_file"`

	// GuestUUID identifies the mode's own guest inside the reported
	// mappings.
	GuestUUID string `mapstructure:"guest_uuid"`
}

// Settings is the harness configuration, read once and passed explicitly
// into every component at construction.
type Settings struct {
	VirtWho     SSHHost                       `mapstructure:"virtwho" validate:"required"`
	Local       SSHHost                       `mapstructure:"local" validate:"structonly"`
	RHSM        RegisterSettings              `mapstructure:"rhsm"`
	Satellite   RegisterSettings              `mapstructure:"satellite"`
	Hypervisors map[string]HypervisorSettings `mapstructure:"hypervisors"`
}

// Load reads the settings file (YAML) and applies defaults and
// validation.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}
	if err := defaults.Set(settings); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}
	if err := validator.New().Struct(settings); err != nil {
		return nil, fmt.Errorf("validating settings: %w", err)
	}
	return settings, nil
}

// Register returns the subscription server section for the backend.
func (s *Settings) Register(r models.Register) RegisterSettings {
	if r == models.RegisterSatellite {
		return s.Satellite
	}
	return s.RHSM
}

// Hypervisor returns the hypervisor section for the mode, esx when the
// mode has no section of its own.
func (s *Settings) Hypervisor(m models.Mode) HypervisorSettings {
	if h, ok := s.Hypervisors[string(m)]; ok {
		return h
	}
	return s.Hypervisors[string(models.ModeEsx)]
}

// SSH returns the host running the agent: the local libvirt host in
// local mode, the shared virt-who host otherwise.
func (s *Settings) SSH(m models.Mode) SSHHost {
	if m.IsLocal() && s.Local.Server != "" {
		return s.Local
	}
	return s.VirtWho
}
