// internal/config/config.go
//
// This package handles the bam home directory and the tool settings stored in it.
// The home defaults to ~/.bam and can be moved with BAM_HOME.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// HomeDirName is the directory created in the user's home
	HomeDirName = ".bam"

	// HomeEnv overrides the location of the bam home directory
	HomeEnv = "BAM_HOME"

	defaultBaseURL      = "git@github.com:"
	defaultCloneRetries = 2
	defaultEnv          = "staging"
)

const defaultSettingsYAML = `# bam tool settings
version: 1

git:
  # Prefix used for short repository names such as owner/repo.
  base_url: "git@github.com:"
  # Owner used for bare repository names such as repo or repo.git.
  folder: ""
  # Extra attempts for a failing git clone.
  clone_retries: 2

# Environment used by build and deploy when -e is not given.
default_env: staging
`

// GitSettings drives repository URL expansion and cloning.
type GitSettings struct {
	BaseURL      string `yaml:"base_url"`
	Folder       string `yaml:"folder,omitempty"`
	CloneRetries int    `yaml:"clone_retries"`
}

// Settings models $BAM_HOME/config.yaml.
type Settings struct {
	Version    int         `yaml:"version"`
	Git        GitSettings `yaml:"git"`
	DefaultEnv string      `yaml:"default_env"`
	LogDir     string      `yaml:"log_dir,omitempty"`
}

// Config holds the runtime configuration for bam.
type Config struct {
	// Home is the bam home directory (~/.bam unless BAM_HOME is set)
	Home string

	Settings Settings
}

// InitBamDir creates the home directory structure.
//
// Structure created:
// ~/.bam/
// ├── config.yaml   <- Tool settings, written on first run
// └── logs/         <- Run journals
func InitBamDir(home string) error {
	if err := os.MkdirAll(filepath.Join(home, "logs"), 0o755); err != nil {
		return err
	}
	return ensureSettings(filepath.Join(home, "config.yaml"))
}

// HomeDir resolves the bam home directory.
func HomeDir() (string, error) {
	if home := strings.TrimSpace(os.Getenv(HomeEnv)); home != "" {
		return filepath.Abs(home)
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(userHome, HomeDirName), nil
}

// NewConfig creates the home directory if needed and loads its settings.
func NewConfig() (*Config, error) {
	home, err := HomeDir()
	if err != nil {
		return nil, err
	}
	if err := InitBamDir(home); err != nil {
		return nil, fmt.Errorf("config: init %s: %w", home, err)
	}
	return Load(home)
}

// Load reads the settings stored in home. A missing file yields defaults.
func Load(home string) (*Config, error) {
	cfg := &Config{Home: home, Settings: DefaultSettings()}
	if err := cfg.loadSettings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	return Settings{
		Version: 1,
		Git: GitSettings{
			BaseURL:      defaultBaseURL,
			CloneRetries: defaultCloneRetries,
		},
		DefaultEnv: defaultEnv,
	}
}

// SettingsPath returns the on-disk location for the settings file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Home, "config.yaml")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	if c.Settings.LogDir != "" {
		return c.Settings.LogDir
	}
	return filepath.Join(c.Home, "logs")
}

// SetGitFolder updates the default repository owner and persists it.
func (c *Config) SetGitFolder(folder string) error {
	c.Settings.Git.Folder = strings.Trim(strings.TrimSpace(folder), "/")
	return c.saveSettings()
}

func (c *Config) loadSettings() error {
	path := c.SettingsPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := DefaultSettings()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.Home)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Settings = parsed
	return nil
}

func (s *Settings) applyDefaults() {
	if s.Version == 0 {
		s.Version = 1
	}
	if strings.TrimSpace(s.Git.BaseURL) == "" {
		s.Git.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(s.DefaultEnv) == "" {
		s.DefaultEnv = defaultEnv
	}
}

func (s *Settings) normalize(base string) {
	s.Git.BaseURL = strings.TrimSpace(s.Git.BaseURL)
	s.Git.Folder = strings.Trim(strings.TrimSpace(s.Git.Folder), "/")
	s.DefaultEnv = strings.ToLower(strings.TrimSpace(s.DefaultEnv))
	s.LogDir = resolvePath(base, s.LogDir)
}

func (s *Settings) validate() error {
	if s.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if s.Git.CloneRetries < 0 {
		return fmt.Errorf("git.clone_retries must be >= 0")
	}
	if !strings.HasSuffix(s.Git.BaseURL, ":") && !strings.HasSuffix(s.Git.BaseURL, "/") {
		return fmt.Errorf("git.base_url must end with ':' or '/'")
	}
	switch s.DefaultEnv {
	case "prod", "staging":
	default:
		return fmt.Errorf("default_env must be 'prod' or 'staging'")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureSettings(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultSettingsYAML), 0644)
}

func (c *Config) saveSettings() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Settings.applyDefaults()
	c.Settings.normalize(c.Home)
	if err := c.Settings.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.Home, 0o755); err != nil {
		return fmt.Errorf("config: ensure bam home: %w", err)
	}
	data, err := yaml.Marshal(c.Settings)
	if err != nil {
		return fmt.Errorf("config: encode settings: %w", err)
	}
	if err := os.WriteFile(c.SettingsPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write settings: %w", err)
	}
	return nil
}
