// Package testsupport builds throwaway configurations and stub executables
// for tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"serialapps/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose marker and sinks live in a per-test temp
// directory. Hotplug watching is off and all waits are shortened.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Apps = []string{"dia", "gimp", "gthumb"}
	cfgVal.Serial.Hotplug = false
	cfgVal.Serial.RetryDelayMillis = 5
	cfgVal.Daemon.PIDFile = filepath.Join(base, "run", "serialapps.pid")
	cfgVal.Daemon.StdoutLog = filepath.Join(base, "logs", "daemon.out")
	cfgVal.Daemon.StderrLog = filepath.Join(base, "logs", "daemon.err")
	cfgVal.Daemon.WorkDir = base
	cfgVal.Daemon.StopPollMillis = 1

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithDevice overrides the serial device path.
func WithDevice(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Serial.Device = path
	}
}

// WithStubbedApps writes a stub executable for every registered application
// and makes PATH contain only the stub directory.
func WithStubbedApps() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range b.cfg.Apps {
			WriteExecutable(b.t, binDir, name, "#!/bin/sh\nexit 0\n")
		}
		if setter, ok := b.t.(interface{ Setenv(string, string) }); ok {
			setter.Setenv("PATH", binDir)
		}
	}
}

// BaseDir returns the temp directory backing cfg.
func BaseDir(cfg *config.Config) string {
	return cfg.Daemon.WorkDir
}
