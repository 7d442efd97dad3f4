// Package devwatch signals when the configured serial device node appears so
// the reconnect loop can retry immediately instead of sleeping out its delay.
//
// The udev netlink socket is preferred. When it cannot be opened (containers,
// missing privileges) the watcher falls back to fsnotify on the device's
// parent directory. If neither can start, the watcher stays silent and the
// fixed retry delay applies.
package devwatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pilebones/go-udev/netlink"

	"serialapps/internal/logging"
)

// Watcher emits on C whenever the device node is (re)created.
type Watcher struct {
	device string
	logger *slog.Logger
	wake   chan struct{}

	useNetlink bool

	mu      sync.Mutex
	conn    *netlink.UEventConn
	fsw     *fsnotify.Watcher
	quit    chan struct{}
	running bool
	mode    string
}

// New returns a watcher for device. Relative names are taken to live in /dev.
func New(device string, logger *slog.Logger) *Watcher {
	return &Watcher{
		device:     normalizeDevice(device),
		logger:     logging.NewComponentLogger(logger, "devwatch"),
		wake:       make(chan struct{}, 1),
		useNetlink: true,
	}
}

// C delivers wakeups. It is buffered by one and never closed; pending
// wakeups coalesce.
func (w *Watcher) C() <-chan struct{} {
	return w.wake
}

// Mode reports which backend is active: "netlink", "fsnotify" or "".
func (w *Watcher) Mode() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Start launches the background monitor. It never fails: backend errors
// are logged and leave the watcher inert.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.device == "" {
		return
	}

	quit := make(chan struct{})
	if w.useNetlink {
		conn, err := connectNetlink()
		if err == nil {
			w.conn = conn
			w.quit = quit
			w.running = true
			w.mode = "netlink"
			go w.netlinkLoop(ctx, conn, quit)
			w.logger.Info("device watcher started",
				logging.String(logging.FieldEventType, "devwatch_started"),
				logging.String("device", w.device),
				logging.String("mode", w.mode),
			)
			return
		}
		w.logger.Debug("netlink unavailable, falling back to fsnotify", logging.Error(err))
	}

	fsw, err := watchParentDir(w.device)
	if err != nil {
		logging.WarnWithContext(w.logger, "device watcher unavailable", "devwatch_unavailable",
			logging.Error(err),
			logging.String("device", w.device),
			logging.String(logging.FieldErrorHint, "check netlink permissions and that the device directory exists"),
			logging.String(logging.FieldImpact, "reconnects wait for the full retry delay"),
		)
		return
	}
	w.fsw = fsw
	w.quit = quit
	w.running = true
	w.mode = "fsnotify"
	go w.fsnotifyLoop(ctx, fsw, quit)
	w.logger.Info("device watcher started",
		logging.String(logging.FieldEventType, "devwatch_started"),
		logging.String("device", w.device),
		logging.String("mode", w.mode),
	)
}

// Stop shuts the backend down. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.quit)
	w.quit = nil
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	if w.fsw != nil {
		_ = w.fsw.Close()
		w.fsw = nil
	}
	w.running = false
	w.mode = ""
}

func (w *Watcher) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func connectNetlink() (*netlink.UEventConn, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, fmt.Errorf("connect netlink: %w", err)
	}
	return conn, nil
}

func (w *Watcher) netlinkLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, ttyAddMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			if matchesDevice(uevent, w.device) {
				w.logger.Debug("device node added",
					logging.String(logging.FieldEventType, "devwatch_device_added"),
					logging.String("device", w.device),
				)
				w.notify()
			}
		case err := <-errs:
			logging.WarnWithContext(w.logger, "netlink monitor error", "devwatch_netlink_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "device arrival may go unnoticed until the next retry"),
			)
		}
	}
}

// ttyAddMatcher matches SUBSYSTEM=tty with ACTION=add.
func ttyAddMatcher() netlink.Matcher {
	action := string(netlink.ADD)
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
		},
	})
	return rules
}

// matchesDevice compares the event's device node and its udev symlinks
// against device.
func matchesDevice(uevent netlink.UEvent, device string) bool {
	if device == "" {
		return false
	}
	if name := uevent.Env["DEVNAME"]; name != "" && normalizeDevice(name) == device {
		return true
	}
	for _, link := range strings.Fields(uevent.Env["DEVLINKS"]) {
		if filepath.Clean(link) == device {
			return true
		}
	}
	return false
}

func watchParentDir(device string) (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(device)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return fsw, nil
}

func (w *Watcher) fsnotifyLoop(ctx context.Context, fsw *fsnotify.Watcher, quit <-chan struct{}) {
	base := filepath.Base(w.device)
	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base || !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("device node created",
				logging.String(logging.FieldEventType, "devwatch_device_added"),
				logging.String("device", event.Name),
			)
			w.notify()
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "fsnotify watcher error", "devwatch_fsnotify_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "device arrival may go unnoticed until the next retry"),
			)
		}
	}
}

func normalizeDevice(device string) string {
	device = strings.TrimSpace(device)
	if device == "" {
		return ""
	}
	if !filepath.IsAbs(device) {
		device = filepath.Join("/dev", device)
	}
	return filepath.Clean(device)
}
