package virtwho

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/virtwho-qe/harness/pkg/sshexec"
)

// IniFile represents a structured configuration file as named sections
// of key/value pairs. Mutations happen on a local working copy which is
// pushed to the remote host after every change, so the remote file is
// always fully replaced, never partially written.
type IniFile struct {
	localPath  string
	remotePath string
	executor   sshexec.Executor
	logger     *zap.SugaredLogger
}

func NewIniFile(localPath, remotePath string, executor sshexec.Executor) *IniFile {
	return &IniFile{
		localPath:  localPath,
		remotePath: remotePath,
		executor:   executor,
		logger:     zap.S().Named("inifile"),
	}
}

// Update adds or replaces a key within a section, creating the section
// when absent, and pushes the result to the remote host.
func (f *IniFile) Update(section, key, value string) error {
	cfg, err := f.load()
	if err != nil {
		return err
	}
	cfg.Section(section).Key(key).SetValue(value)
	f.logger.Debugw("updated option", "file", f.remotePath, "section", section, "key", key)
	return f.save(cfg)
}

// Delete removes a key from a section, or the whole section when key is
// empty, and pushes the result to the remote host.
func (f *IniFile) Delete(section, key string) error {
	cfg, err := f.load()
	if err != nil {
		return err
	}
	if key == "" {
		cfg.DeleteSection(section)
	} else {
		cfg.Section(section).DeleteKey(key)
	}
	f.logger.Debugw("deleted option", "file", f.remotePath, "section", section, "key", key)
	return f.save(cfg)
}

// Clean truncates both the local copy and the remote file.
func (f *IniFile) Clean() error {
	if err := os.WriteFile(f.localPath, nil, 0o644); err != nil {
		return fmt.Errorf("truncating %s: %w", f.localPath, err)
	}
	return f.executor.PutFile(f.localPath, f.remotePath)
}

// Fetch refreshes the local working copy from the remote host.
func (f *IniFile) Fetch() error {
	return f.executor.GetFile(f.remotePath, f.localPath)
}

// Destroy removes both the local copy and the remote file.
func (f *IniFile) Destroy() error {
	if err := os.Remove(f.localPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return f.executor.RemoveFile(f.remotePath)
}

func (f *IniFile) load() (*ini.File, error) {
	cfg, err := ini.LooseLoad(f.localPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", f.localPath, err)
	}
	return cfg, nil
}

func (f *IniFile) save(cfg *ini.File) error {
	if err := cfg.SaveTo(f.localPath); err != nil {
		return fmt.Errorf("saving %s: %w", f.localPath, err)
	}
	return f.executor.PutFile(f.localPath, f.remotePath)
}
