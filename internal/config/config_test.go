package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"serialapps/internal/config"
)

func TestLoadDefaultConfigWhenFileMissing(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SERIALAPPS_DEVICE", "")
	t.Setenv("SERIALAPPS_BAUD_RATE", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	wantPath := filepath.Join(tempHome, ".config", "serialapps", "config.toml")
	if resolved != wantPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, wantPath)
	}
	if cfg.Serial.Device != "/dev/ttyUSB0" {
		t.Fatalf("unexpected device: %q", cfg.Serial.Device)
	}
	if cfg.Serial.BaudRate != 9600 {
		t.Fatalf("unexpected baud rate: %d", cfg.Serial.BaudRate)
	}
	if cfg.RetryDelay() != time.Second {
		t.Fatalf("unexpected retry delay: %s", cfg.RetryDelay())
	}
	if cfg.StopPollInterval() != 100*time.Millisecond {
		t.Fatalf("unexpected stop poll interval: %s", cfg.StopPollInterval())
	}
	if cfg.Daemon.PIDFile != "/tmp/serialapps.pid" {
		t.Fatalf("unexpected pid file: %q", cfg.Daemon.PIDFile)
	}
	if cfg.LockPath() != "/tmp/serialapps.pid.lock" {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
	if cfg.Daemon.WorkDir != "/" {
		t.Fatalf("unexpected work dir: %q", cfg.Daemon.WorkDir)
	}
	if cfg.Daemon.StdoutLog != "/dev/null" || cfg.Daemon.StderrLog != "/dev/null" {
		t.Fatalf("unexpected stdio sinks: %q %q", cfg.Daemon.StdoutLog, cfg.Daemon.StderrLog)
	}
	if len(cfg.Apps) != 23 {
		t.Fatalf("expected 23 default apps, got %d", len(cfg.Apps))
	}
	if cfg.Apps[0] != "dia" || cfg.Apps[1] != "gimp" || cfg.Apps[22] != "transmission" {
		t.Fatalf("unexpected default registry order: %v", cfg.Apps)
	}
	if !cfg.Serial.Hotplug {
		t.Fatal("expected hotplug wakeups enabled by default")
	}
}

func TestDefaultReturnsIndependentRegistry(t *testing.T) {
	first := config.Default()
	first.Apps[0] = "mutated"
	second := config.Default()
	if second.Apps[0] != "dia" {
		t.Fatalf("default registry shared between calls: %q", second.Apps[0])
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SERIALAPPS_DEVICE", "")
	t.Setenv("SERIALAPPS_BAUD_RATE", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "serialapps.toml")

	payload := map[string]any{
		"apps": []string{" dia ", "gimp", "gthumb"},
		"serial": map[string]any{
			"device":         "/dev/ttyACM1",
			"baud_rate":      115200,
			"retry_delay_ms": 250,
			"hotplug":        false,
		},
		"daemon": map[string]any{
			"pid_file":   filepath.Join(dir, "run", "apps.pid"),
			"stderr_log": filepath.Join(dir, "daemon.err"),
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config %q to be loaded, got %q (exists=%v)", path, resolved, exists)
	}
	if got := strings.Join(cfg.Apps, ","); got != "dia,gimp,gthumb" {
		t.Fatalf("unexpected apps: %q", got)
	}
	if cfg.Serial.Device != "/dev/ttyACM1" || cfg.Serial.BaudRate != 115200 {
		t.Fatalf("unexpected serial section: %+v", cfg.Serial)
	}
	if cfg.RetryDelay() != 250*time.Millisecond {
		t.Fatalf("unexpected retry delay: %s", cfg.RetryDelay())
	}
	if cfg.Serial.Hotplug {
		t.Fatal("expected hotplug disabled")
	}
	if cfg.Daemon.PIDFile != filepath.Join(dir, "run", "apps.pid") {
		t.Fatalf("unexpected pid file: %q", cfg.Daemon.PIDFile)
	}
	if cfg.Daemon.StdoutLog != "/dev/null" {
		t.Fatalf("expected stdout sink default, got %q", cfg.Daemon.StdoutLog)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging section: %+v", cfg.Logging)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SERIALAPPS_DEVICE", "/dev/ttyS3")
	t.Setenv("SERIALAPPS_BAUD_RATE", "19200")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyS3" {
		t.Fatalf("expected env device override, got %q", cfg.Serial.Device)
	}
	if cfg.Serial.BaudRate != 19200 {
		t.Fatalf("expected env baud override, got %d", cfg.Serial.BaudRate)
	}
}

func TestLoadRejectsInvalidBaudOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SERIALAPPS_DEVICE", "")
	t.Setenv("SERIALAPPS_BAUD_RATE", "fast")

	if _, _, _, err := config.Load(""); err == nil {
		t.Fatal("expected error for non-numeric baud override")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*config.Config) {}},
		{name: "empty registry", mutate: func(c *config.Config) { c.Apps = nil }, wantErr: "at least one application"},
		{name: "blank app", mutate: func(c *config.Config) { c.Apps = []string{"dia", ""} }, wantErr: "apps[1]"},
		{name: "zero baud", mutate: func(c *config.Config) { c.Serial.BaudRate = 0 }, wantErr: "baud_rate"},
		{name: "negative retry", mutate: func(c *config.Config) { c.Serial.RetryDelayMillis = -1 }, wantErr: "retry_delay_ms"},
		{name: "negative stop poll", mutate: func(c *config.Config) { c.Daemon.StopPollMillis = -5 }, wantErr: "stop_poll_interval_ms"},
		{name: "unknown format", mutate: func(c *config.Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
		{name: "unknown level", mutate: func(c *config.Config) { c.Logging.Level = "trace" }, wantErr: "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExpandPathTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := config.ExpandPath("~/run/apps.pid")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "run", "apps.pid") {
		t.Fatalf("unexpected expansion: %q", got)
	}
}
