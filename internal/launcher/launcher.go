// Package launcher starts applications as independent children and drops
// ownership of them immediately.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
)

// ErrEmptyCommand is returned when asked to launch a blank command.
var ErrEmptyCommand = errors.New("empty application command")

// Launcher starts a named application.
type Launcher interface {
	Launch(ctx context.Context, name string) (int, error)
}

// Exec launches applications with os/exec. Each child gets its own session
// and /dev/null for stdin, stdout and stderr, and is never waited on: the
// daemon ignores SIGCHLD so the kernel reaps it.
//
// An ignored SIGCHLD survives exec, so applications start with it ignored
// too. One that waits on its own children may then see ECHILD.
type Exec struct {
	// Dir is the working directory handed to children. Empty inherits the daemon's.
	Dir string
}

// Launch resolves name on PATH, starts it and releases the process handle.
// The context only bounds the lookup; the child outlives it.
func (e Exec) Launch(ctx context.Context, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrEmptyCommand
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cmd := exec.Command(name)
	cmd.Dir = e.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", name, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release %s (pid %d): %w", name, pid, err)
	}
	return pid, nil
}

// Func adapts a plain function to the Launcher interface.
type Func func(ctx context.Context, name string) (int, error)

// Launch calls f.
func (f Func) Launch(ctx context.Context, name string) (int, error) {
	return f(ctx, name)
}
