package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateApps(); err != nil {
		return err
	}
	if err := c.validateSerial(); err != nil {
		return err
	}
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateApps() error {
	if len(c.Apps) == 0 {
		return errors.New("apps must list at least one application")
	}
	for i, app := range c.Apps {
		if app == "" {
			return fmt.Errorf("apps[%d] must not be empty", i)
		}
	}
	return nil
}

func (c *Config) validateSerial() error {
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive, got %d", c.Serial.BaudRate)
	}
	if c.Serial.RetryDelayMillis < 0 {
		return errors.New("serial.retry_delay_ms must be positive")
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if c.Daemon.StopPollMillis < 0 {
		return errors.New("daemon.stop_poll_interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
