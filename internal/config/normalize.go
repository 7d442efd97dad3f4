package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeSerial(); err != nil {
		return err
	}
	if err := c.normalizeDaemon(); err != nil {
		return err
	}
	c.normalizeApps()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeSerial() error {
	if value, ok := os.LookupEnv(envSerialDeviceOverride); ok && strings.TrimSpace(value) != "" {
		c.Serial.Device = value
	}
	if value, ok := os.LookupEnv(envSerialBaudRateOverride); ok && strings.TrimSpace(value) != "" {
		baud, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: %w", envSerialBaudRateOverride, err)
		}
		c.Serial.BaudRate = baud
	}

	c.Serial.Device = strings.TrimSpace(c.Serial.Device)
	if c.Serial.Device == "" {
		c.Serial.Device = defaultSerialDevice
	}
	var err error
	if c.Serial.Device, err = expandPath(c.Serial.Device); err != nil {
		return fmt.Errorf("serial.device: %w", err)
	}
	if c.Serial.RetryDelayMillis == 0 {
		c.Serial.RetryDelayMillis = defaultRetryDelayMillis
	}
	return nil
}

func (c *Config) normalizeDaemon() error {
	var err error
	if strings.TrimSpace(c.Daemon.PIDFile) == "" {
		c.Daemon.PIDFile = defaultPIDFile
	}
	if c.Daemon.PIDFile, err = expandPath(strings.TrimSpace(c.Daemon.PIDFile)); err != nil {
		return fmt.Errorf("daemon.pid_file: %w", err)
	}
	if strings.TrimSpace(c.Daemon.StdoutLog) == "" {
		c.Daemon.StdoutLog = defaultStdoutLog
	}
	if c.Daemon.StdoutLog, err = expandPath(strings.TrimSpace(c.Daemon.StdoutLog)); err != nil {
		return fmt.Errorf("daemon.stdout_log: %w", err)
	}
	if strings.TrimSpace(c.Daemon.StderrLog) == "" {
		c.Daemon.StderrLog = defaultStderrLog
	}
	if c.Daemon.StderrLog, err = expandPath(strings.TrimSpace(c.Daemon.StderrLog)); err != nil {
		return fmt.Errorf("daemon.stderr_log: %w", err)
	}
	if strings.TrimSpace(c.Daemon.WorkDir) == "" {
		c.Daemon.WorkDir = defaultWorkDir
	}
	if c.Daemon.WorkDir, err = expandPath(strings.TrimSpace(c.Daemon.WorkDir)); err != nil {
		return fmt.Errorf("daemon.work_dir: %w", err)
	}
	if c.Daemon.StopPollMillis == 0 {
		c.Daemon.StopPollMillis = defaultStopPollMillis
	}
	return nil
}

func (c *Config) normalizeApps() {
	for i, app := range c.Apps {
		c.Apps[i] = strings.TrimSpace(app)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
