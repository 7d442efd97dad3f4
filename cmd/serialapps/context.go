package main

import (
	"strings"
	"sync"
	"time"

	"serialapps/internal/config"
	"serialapps/internal/lifecycle"
)

// startReadyTimeout bounds how long start waits for the daemon's pid marker.
const startReadyTimeout = 5 * time.Second

type commandContext struct {
	configFlag string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	// Test hooks replacing process spawning and signalling.
	spawn lifecycle.Spawner
	kill  lifecycle.KillFunc
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, resolved, exists, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		if exists {
			c.configPath = resolved
		}
	})
	return c.config, c.configErr
}

// controller builds the lifecycle controller for cfg. The detached child is
// told about the config file explicitly because it runs from the daemon's
// work_dir, where relative lookups would differ.
func (c *commandContext) controller(cfg *config.Config) *lifecycle.Controller {
	spawn := c.spawn
	if spawn == nil {
		args := []string{"daemon"}
		if c.configPath != "" {
			args = append(args, "--config", c.configPath)
		}
		spawn = lifecycle.Detacher(lifecycle.DetachOptions{
			Args:       args,
			WorkDir:    cfg.Daemon.WorkDir,
			StdoutPath: cfg.Daemon.StdoutLog,
			StderrPath: cfg.Daemon.StderrLog,
		})
	}
	return &lifecycle.Controller{
		PIDFile:      cfg.Daemon.PIDFile,
		LockPath:     cfg.LockPath(),
		PollInterval: cfg.StopPollInterval(),
		ReadyTimeout: startReadyTimeout,
		Spawn:        spawn,
		Kill:         c.kill,
	}
}
