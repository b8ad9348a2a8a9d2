// Package config loads reap's TOML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/steveyegge/reap/internal/classify"
	"github.com/steveyegge/reap/internal/terminate"
)

// EnvPrefix prefixes every environment override, e.g. REAP_GRACEFUL_TIMEOUT.
const EnvPrefix = "REAP"

// ErrNotFound is returned by Load when an explicitly named file is missing.
var ErrNotFound = errors.New("config file not found")

// Config is the on-disk configuration. Timeouts are seconds.
type Config struct {
	Enabled          bool     `mapstructure:"enabled" toml:"enabled" json:"enabled"`
	GracefulTimeout  float64  `mapstructure:"graceful_timeout" toml:"graceful_timeout" json:"graceful_timeout"`
	Forced           bool     `mapstructure:"forced" toml:"forced" json:"forced"`
	BrowserPatterns  []string `mapstructure:"browser_patterns" toml:"browser_patterns" json:"browser_patterns"`
	LauncherPatterns []string `mapstructure:"launcher_patterns" toml:"launcher_patterns" json:"launcher_patterns"`
	AutomationFlags  []string `mapstructure:"automation_flags" toml:"automation_flags" json:"automation_flags"`
	// TempRoots are added to the built-in temporary directories.
	TempRoots      []string `mapstructure:"temp_roots" toml:"temp_roots" json:"temp_roots"`
	Concurrency    int      `mapstructure:"concurrency" toml:"concurrency" json:"concurrency"`
	PollIntervalMS int      `mapstructure:"poll_interval_ms" toml:"poll_interval_ms" json:"poll_interval_ms"`
	ForceTimeout   float64  `mapstructure:"force_timeout" toml:"force_timeout" json:"force_timeout"`
	LockPath       string   `mapstructure:"lock_path" toml:"lock_path" json:"lock_path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Enabled:          true,
		GracefulTimeout:  terminate.DefaultGracefulTimeout.Seconds(),
		Forced:           false,
		BrowserPatterns:  append([]string(nil), classify.DefaultBrowserPatterns...),
		LauncherPatterns: append([]string(nil), classify.DefaultLauncherPatterns...),
		AutomationFlags:  append([]string(nil), classify.DefaultAutomationFlags...),
		TempRoots:        []string{},
		Concurrency:      terminate.DefaultConcurrency,
		PollIntervalMS:   int(terminate.DefaultPollInterval / time.Millisecond),
		ForceTimeout:     terminate.DefaultForceTimeout.Seconds(),
		LockPath:         DefaultLockPath(),
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/reap/config.toml, falling back to
// the user config directory.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reap", "config.toml")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "reap", "config.toml")
	}
	return filepath.Join(".reap", "config.toml")
}

// DefaultLockPath is the run lock shared by every invocation on the host.
func DefaultLockPath() string {
	return filepath.Join(os.TempDir(), "reap", "cleanup.lock")
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.GracefulTimeout <= 0:
		return fmt.Errorf("graceful_timeout must be positive, got %v", c.GracefulTimeout)
	case c.ForceTimeout <= 0:
		return fmt.Errorf("force_timeout must be positive, got %v", c.ForceTimeout)
	case c.PollIntervalMS <= 0:
		return fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMS)
	case c.Concurrency < 1:
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	case len(c.BrowserPatterns) == 0:
		return errors.New("browser_patterns must not be empty")
	case c.LockPath == "":
		return errors.New("lock_path must not be empty")
	}
	return nil
}

// GracefulDuration is GracefulTimeout as a duration.
func (c Config) GracefulDuration() time.Duration {
	return seconds(c.GracefulTimeout)
}

// ForceDuration is ForceTimeout as a duration.
func (c Config) ForceDuration() time.Duration {
	return seconds(c.ForceTimeout)
}

// PollInterval is PollIntervalMS as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// ClassifyConfig builds the classifier configuration.
func (c Config) ClassifyConfig() classify.Config {
	return classify.Config{
		BrowserPatterns:  c.BrowserPatterns,
		LauncherPatterns: c.LauncherPatterns,
		AutomationFlags:  c.AutomationFlags,
		TempRoots:        append(classify.DefaultTempRoots(), c.TempRoots...),
	}
}

// TerminateOptions builds the termination controller options.
func (c Config) TerminateOptions() terminate.Options {
	return terminate.Options{
		GracefulTimeout: c.GracefulDuration(),
		ForceTimeout:    c.ForceDuration(),
		PollInterval:    c.PollInterval(),
		Concurrency:     c.Concurrency,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Load reads path from fs, applies REAP_* environment overrides, and
// validates the result. An empty path means DefaultPath, which may be
// absent; an explicit path must exist.
func Load(fs afero.Fs, path string) (Config, error) {
	optional := path == ""
	if optional {
		path = DefaultPath()
	}

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v, Default())

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("checking config %s: %w", path, err)
	}
	switch {
	case exists:
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	case !optional:
		return Config{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("enabled", d.Enabled)
	v.SetDefault("graceful_timeout", d.GracefulTimeout)
	v.SetDefault("forced", d.Forced)
	v.SetDefault("browser_patterns", d.BrowserPatterns)
	v.SetDefault("launcher_patterns", d.LauncherPatterns)
	v.SetDefault("automation_flags", d.AutomationFlags)
	v.SetDefault("temp_roots", d.TempRoots)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("poll_interval_ms", d.PollIntervalMS)
	v.SetDefault("force_timeout", d.ForceTimeout)
	v.SetDefault("lock_path", d.LockPath)
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDefault writes Default() to path. An existing file yields
// os.ErrExist unless overwrite is set.
func WriteDefault(fs afero.Fs, path string, overwrite bool) error {
	if path == "" {
		path = DefaultPath()
	}
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return err
	}
	if exists && !overwrite {
		return fmt.Errorf("%s: %w", path, os.ErrExist)
	}

	data, err := Encode(Default())
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return afero.WriteFile(fs, path, data, 0o644)
}
