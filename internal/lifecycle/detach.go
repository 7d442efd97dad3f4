package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// DetachOptions describes how the daemon child is re-executed.
type DetachOptions struct {
	// Executable defaults to the running binary.
	Executable string
	Args       []string
	WorkDir    string
	StdoutPath string
	StderrPath string
}

// Detacher returns a Spawner that re-executes the binary in a new session
// with stdin from /dev/null and stdout/stderr appended to the configured
// sinks. The child handle is released immediately.
func Detacher(opts DetachOptions) Spawner {
	return func(ctx context.Context) (int, error) {
		return detach(ctx, opts)
	}
}

func detach(ctx context.Context, opts DetachOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	executable := opts.Executable
	if executable == "" {
		resolved, err := os.Executable()
		if err != nil {
			return 0, fmt.Errorf("resolve executable: %w", err)
		}
		executable = resolved
	}

	stdin, err := os.Open(os.DevNull)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer stdin.Close()
	stdout, err := openSink(opts.StdoutPath)
	if err != nil {
		return 0, err
	}
	defer stdout.Close()
	stderr, err := openSink(opts.StderrPath)
	if err != nil {
		return 0, err
	}
	defer stderr.Close()

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = "/"
	}

	cmd := exec.Command(executable, opts.Args...)
	cmd.Dir = workDir
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release daemon pid %d: %w", pid, err)
	}
	return pid, nil
}

func openSink(path string) (*os.File, error) {
	if path == "" {
		path = os.DevNull
	}
	if path != os.DevNull {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory for %s: %w", path, err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open daemon sink %s: %w", path, err)
	}
	return file, nil
}

// Detached is the child-side half of detachment. It clears the umask,
// changes to workDir and takes the marker for the current pid. The returned
// release func removes the marker; callers defer it.
func Detached(pidFile, workDir string) (release func() error, sessionLeader bool, err error) {
	unix.Umask(0)
	if workDir == "" {
		workDir = "/"
	}
	if err := os.Chdir(workDir); err != nil {
		return nil, false, fmt.Errorf("change directory to %s: %w", workDir, err)
	}
	sid, sidErr := unix.Getsid(0)
	sessionLeader = sidErr == nil && sid == os.Getpid()

	release, err = AcquireMarker(pidFile, os.Getpid())
	if err != nil {
		if errors.Is(err, ErrMarkerExists) {
			return nil, sessionLeader, fmt.Errorf("%w; another instance may be starting", err)
		}
		return nil, sessionLeader, err
	}
	return release, sessionLeader, nil
}

var ignoreChildExits sync.Once

// IgnoreChildExits sets SIGCHLD to SIG_IGN so the kernel reaps launched
// applications that are never waited on. Only the first call has an effect.
func IgnoreChildExits() {
	ignoreChildExits.Do(func() {
		signal.Ignore(syscall.SIGCHLD)
	})
}
