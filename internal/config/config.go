// Package config loads boxkite settings from ~/.boxkite/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ehrlich-b/boxkite/internal/policy"
	"github.com/ehrlich-b/boxkite/internal/sensitive"
)

// Settings is the on-disk configuration. A missing file yields the zero
// value plus defaults; a malformed file is a real error.
type Settings struct {
	Policy         PolicySettings     `yaml:"policy"`
	SensitivePaths sensitive.Settings `yaml:"sensitive_paths"`
	Audit          AuditSettings      `yaml:"audit"`
	Logging        LoggingSettings    `yaml:"logging"`
}

type PolicySettings struct {
	Mode                string   `yaml:"mode"`
	WritableRoots       []string `yaml:"writable_roots"`
	Network             bool     `yaml:"network"`
	ExcludeTmpdirEnvVar bool     `yaml:"exclude_tmpdir_env_var"`
	ExcludeSlashTmp     bool     `yaml:"exclude_slash_tmp"`
}

type AuditSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LoggingSettings struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// GetUserConfigDir returns the boxkite configuration directory.
func GetUserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".boxkite"), nil
}

// Load reads settings from path, or from the default location when path
// is empty.
func Load(path string) (*Settings, error) {
	if path == "" {
		dir, err := GetUserConfigDir()
		if err != nil {
			return defaults(), nil
		}
		path = filepath.Join(dir, "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	s := defaults()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return s, nil
}

func defaults() *Settings {
	return &Settings{
		Policy:  PolicySettings{Mode: policy.WorkspaceWrite.String()},
		Logging: LoggingSettings{Level: "warn"},
	}
}

// SandboxPolicy maps the policy section onto a policy value.
func (s *Settings) SandboxPolicy() policy.Policy {
	return policy.Policy{
		Mode:                policy.ParseMode(s.Policy.Mode),
		WritableRoots:       s.Policy.WritableRoots,
		NetworkAccess:       s.Policy.Network,
		ExcludeTmpdirEnvVar: s.Policy.ExcludeTmpdirEnvVar,
		ExcludeSlashTmp:     s.Policy.ExcludeSlashTmp,
	}
}

// AuditPath returns the audit database path, defaulting under the
// config directory when audit is enabled without an explicit path.
func (s *Settings) AuditPath() (string, error) {
	if s.Audit.Path != "" {
		return s.Audit.Path, nil
	}
	dir, err := GetUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audit.db"), nil
}
