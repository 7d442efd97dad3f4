package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"serialapps/internal/logging"
)

var (
	// ErrAlreadyRunning is returned by Start when the marker names a pid.
	ErrAlreadyRunning = errors.New("daemon already running")
	// ErrStartTimeout is returned when a spawned daemon never records its pid.
	ErrStartTimeout = errors.New("daemon did not confirm startup")
)

const (
	defaultPollInterval = 100 * time.Millisecond
	lockRetryDelay      = 50 * time.Millisecond
)

// Spawner detaches a daemon process and returns its pid.
type Spawner func(ctx context.Context) (int, error)

// KillFunc delivers sig to pid.
type KillFunc func(pid int, sig syscall.Signal) error

// Controller implements the start, stop and restart control operations.
type Controller struct {
	PIDFile  string
	LockPath string
	// PollInterval separates termination signals sent by Stop.
	PollInterval time.Duration
	// ReadyTimeout bounds how long Start waits for the child to write the
	// marker. Zero returns as soon as the child is spawned.
	ReadyTimeout time.Duration
	Spawn        Spawner
	Kill         KillFunc
	Logger       *slog.Logger
}

// StopResult describes what Stop did.
type StopResult struct {
	WasRunning bool
	PID        int
	Signals    int
}

// Start launches the daemon unless the marker already names one.
func (c *Controller) Start(ctx context.Context) (int, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return c.start(ctx)
}

// Stop terminates the daemon named by the marker. A missing or unreadable
// marker is treated as not running and is not an error.
func (c *Controller) Stop(ctx context.Context) (StopResult, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return StopResult{}, err
	}
	defer unlock()
	return c.stop(ctx)
}

// Restart runs Stop then Start under a single hold of the control lock.
func (c *Controller) Restart(ctx context.Context) (StopResult, int, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return StopResult{}, 0, err
	}
	defer unlock()

	stopped, err := c.stop(ctx)
	if err != nil {
		return stopped, 0, err
	}
	pid, err := c.start(ctx)
	return stopped, pid, err
}

func (c *Controller) start(ctx context.Context) (int, error) {
	if c.Spawn == nil {
		return 0, errors.New("no daemon spawner configured")
	}
	logger := c.logger()

	pid, ok, err := ReadMarker(c.PIDFile)
	if err != nil {
		return 0, err
	}
	if ok {
		return 0, fmt.Errorf("%w (pid %d, marker %s)", ErrAlreadyRunning, pid, c.PIDFile)
	}
	// An unparseable marker would block the child's exclusive create.
	if err := RemoveMarker(c.PIDFile); err != nil {
		return 0, err
	}

	child, err := c.Spawn(ctx)
	if err != nil {
		return 0, fmt.Errorf("spawn daemon: %w", err)
	}
	logger.Debug("daemon spawned",
		logging.String(logging.FieldEventType, "daemon_spawned"),
		logging.Int("pid", child),
	)

	if c.ReadyTimeout <= 0 {
		return child, nil
	}
	if err := c.waitForMarker(ctx, child); err != nil {
		if errors.Is(err, ErrStartTimeout) {
			c.abandon(child)
		}
		return child, err
	}
	return child, nil
}

// abandon terminates a child that never confirmed startup so a late marker
// write cannot leave a daemon running behind a failed start.
func (c *Controller) abandon(child int) {
	kill := c.Kill
	if kill == nil {
		kill = unix.Kill
	}
	err := kill(child, unix.SIGTERM)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		logging.WarnWithContext(c.logger(), "terminating unconfirmed daemon failed", "daemon_abandon_failed",
			logging.Int("pid", child),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for a stray serialapps daemon process"),
			logging.String(logging.FieldImpact, "a daemon may still be starting"),
		)
		return
	}
	c.logger().Debug("unconfirmed daemon terminated",
		logging.String(logging.FieldEventType, "daemon_abandoned"),
		logging.Int("pid", child),
	)
}

func (c *Controller) waitForMarker(ctx context.Context, child int) error {
	deadline := time.Now().Add(c.ReadyTimeout)
	ticker := time.NewTicker(c.pollInterval())
	defer ticker.Stop()
	for {
		pid, ok, err := ReadMarker(c.PIDFile)
		if err != nil {
			return err
		}
		if ok && pid == child {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: pid %d never appeared in %s; sent it SIGTERM", ErrStartTimeout, child, c.PIDFile)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Controller) stop(ctx context.Context) (StopResult, error) {
	logger := c.logger()
	pid, ok, err := ReadMarker(c.PIDFile)
	if err != nil {
		return StopResult{}, err
	}
	if !ok {
		return StopResult{}, nil
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	kill := c.Kill
	if kill == nil {
		kill = unix.Kill
	}
	result := StopResult{WasRunning: true, PID: pid}
	ticker := time.NewTicker(c.pollInterval())
	defer ticker.Stop()
	for {
		err := kill(pid, unix.SIGTERM)
		if errors.Is(err, unix.ESRCH) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("signal daemon pid %d: %w", pid, err)
		}
		result.Signals++
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}

	if err := RemoveMarker(c.PIDFile); err != nil {
		return result, err
	}
	logger.Debug("daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
		logging.Int("pid", pid),
		logging.Int("signals", result.Signals),
	)
	return result, nil
}

// lock takes the control lock. The daemon itself never holds it.
func (c *Controller) lock(ctx context.Context) (func(), error) {
	path := c.LockPath
	if path == "" {
		path = c.PIDFile + ".lock"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create control lock directory: %w", err)
	}
	fileLock := flock.New(path)
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire control lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire control lock %s: not acquired", path)
	}
	return func() {
		if err := fileLock.Unlock(); err != nil {
			c.logger().Debug("release control lock failed", logging.Error(err))
		}
	}, nil
}

func (c *Controller) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return defaultPollInterval
	}
	return c.PollInterval
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger == nil {
		return logging.NewNop()
	}
	return c.Logger
}
