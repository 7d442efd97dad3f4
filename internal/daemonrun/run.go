// Package daemonrun is the body of the detached daemon process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"serialapps/internal/config"
	"serialapps/internal/deps"
	"serialapps/internal/devwatch"
	"serialapps/internal/dispatch"
	"serialapps/internal/launcher"
	"serialapps/internal/lifecycle"
	"serialapps/internal/logging"
	"serialapps/internal/registry"
	"serialapps/internal/serialport"
)

// Options overrides runtime collaborators. Zero values select the real ones.
type Options struct {
	Logger   *slog.Logger
	Opener   serialport.Opener
	Launcher launcher.Launcher
	// OnEvent observes every dispatched line.
	OnEvent func(dispatch.Event)
}

// Run takes the pid marker and serves the serial line until SIGTERM or
// SIGINT arrives, then removes the marker and returns.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sessionID := uuid.NewString()
	base := opts.Logger
	if base == nil {
		var err error
		base, err = logging.NewFromConfig(cfg, sessionID)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	} else {
		base = base.With(logging.String(logging.FieldSessionID, sessionID))
	}
	logger := logging.NewComponentLogger(base, "daemon")

	reg, err := registry.New(cfg.Apps)
	if err != nil {
		return fmt.Errorf("build application registry: %w", err)
	}

	release, sessionLeader, err := lifecycle.Detached(cfg.Daemon.PIDFile, cfg.Daemon.WorkDir)
	if err != nil {
		logging.ErrorWithContext(logger, "daemon startup failed", "daemon_start_failed",
			logging.Error(err),
			logging.String("pid_file", cfg.Daemon.PIDFile),
			logging.String(logging.FieldErrorHint, "run 'serialapps stop' or remove a stale pid file"),
		)
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logging.WarnWithContext(logger, "pid marker not removed", "pid_marker_remove_failed",
				logging.Error(err),
				logging.String("pid_file", cfg.Daemon.PIDFile),
				logging.String(logging.FieldImpact, "the next start reports the daemon as running"),
			)
		}
	}()
	lifecycle.IgnoreChildExits()

	logger.Info("serialapps daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.Int("pid", os.Getpid()),
		logging.Bool("session_leader", sessionLeader),
		logging.String("pid_file", cfg.Daemon.PIDFile),
		logging.String("device", cfg.Serial.Device),
		logging.Int("baud_rate", cfg.Serial.BaudRate),
		logging.Int("applications", reg.Len()),
	)
	deps.LogSnapshot(logger, deps.CheckBinaries(deps.ForRegistry(reg.Entries())))

	var wake <-chan struct{}
	if cfg.Serial.Hotplug {
		watcher := devwatch.New(cfg.Serial.Device, base)
		watcher.Start(signalCtx)
		defer watcher.Stop()
		wake = watcher.C()
	}

	launch := opts.Launcher
	if launch == nil {
		launch = launcher.Exec{Dir: cfg.Daemon.WorkDir}
	}
	loop := &dispatch.Loop{
		Connector: &serialport.Connector{
			Device:     cfg.Serial.Device,
			BaudRate:   cfg.Serial.BaudRate,
			RetryDelay: cfg.RetryDelay(),
			Open:       opts.Opener,
			Wake:       wake,
			Logger:     logging.NewComponentLogger(base, "serial"),
		},
		Registry: reg,
		Launcher: launch,
		Logger:   logging.NewComponentLogger(base, "dispatch"),
		OnEvent:  opts.OnEvent,
	}

	err = loop.Run(signalCtx)
	logger.Info("serialapps daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_stopping"),
	)
	return err
}
