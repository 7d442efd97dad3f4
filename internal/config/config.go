package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Serial contains the serial line connection parameters.
type Serial struct {
	Device           string `toml:"device"`
	BaudRate         int    `toml:"baud_rate"`
	RetryDelayMillis int    `toml:"retry_delay_ms"`
	Hotplug          bool   `toml:"hotplug"`
}

// Daemon contains the process lifecycle settings: marker location and the
// sinks the detached process writes its standard streams to.
type Daemon struct {
	PIDFile        string `toml:"pid_file"`
	StdoutLog      string `toml:"stdout_log"`
	StderrLog      string `toml:"stderr_log"`
	WorkDir        string `toml:"work_dir"`
	StopPollMillis int    `toml:"stop_poll_interval_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for serialapps.
//
// Configuration sections:
//   - Apps: the application registry, indexed by dispatch code
//   - Serial: device path, baud rate and reconnect behaviour
//   - Daemon: instance marker path and detached stdio sinks
//   - Logging: log format and level
type Config struct {
	Apps    []string `toml:"apps"`
	Serial  Serial   `toml:"serial"`
	Daemon  Daemon   `toml:"daemon"`
	Logging Logging  `toml:"logging"`
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file is not an error: defaults apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(defaultProjectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// RetryDelay is the wait between failed serial connection attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Serial.RetryDelayMillis) * time.Millisecond
}

// StopPollInterval is the interval between termination signals sent by stop.
func (c *Config) StopPollInterval() time.Duration {
	return time.Duration(c.Daemon.StopPollMillis) * time.Millisecond
}

// LockPath is the control lock guarding concurrent start/stop/restart invocations.
func (c *Config) LockPath() string {
	return c.Daemon.PIDFile + ".lock"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
