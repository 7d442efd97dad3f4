package dispatch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"serialapps/internal/launcher"
	"serialapps/internal/logging"
	"serialapps/internal/registry"
	"serialapps/internal/serialport"
)

type fakePort struct {
	io.Reader
	closeFn func() error
	closed  atomic.Bool
	resets  atomic.Int32
}

func newFakePort(data string) *fakePort {
	return &fakePort{Reader: strings.NewReader(data)}
}

func (p *fakePort) Close() error {
	p.closed.Store(true)
	if p.closeFn != nil {
		return p.closeFn()
	}
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.resets.Add(1)
	return nil
}

// fakeConnector hands out ports in order, then blocks until cancelled.
type fakeConnector struct {
	mu    sync.Mutex
	ports []serialport.Port
	calls int
}

func (c *fakeConnector) Connect(ctx context.Context) (serialport.Port, error) {
	c.mu.Lock()
	c.calls++
	if len(c.ports) > 0 {
		port := c.ports[0]
		c.ports = c.ports[1:]
		c.mu.Unlock()
		return port, nil
	}
	c.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingLauncher struct {
	mu       sync.Mutex
	launched []string
	fail     map[string]error
}

func (r *recordingLauncher) Launch(_ context.Context, name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[name]; err != nil {
		return 0, err
	}
	r.launched = append(r.launched, name)
	return 1000 + len(r.launched), nil
}

func (r *recordingLauncher) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.launched...)
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]string{"dia", "gimp", "gthumb"})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	return reg
}

// runUntil runs the loop and cancels it once want events were observed.
func runUntil(t *testing.T, loop *Loop, want int) []Event {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []Event
	loop.OnEvent = func(e Event) {
		mu.Lock()
		events = append(events, e)
		n := len(events)
		mu.Unlock()
		if n == want {
			cancel()
		}
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch loop did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	return append([]Event(nil), events...)
}

func TestLoopDispatchesCodes(t *testing.T) {
	port := newFakePort("1\n7\nabc\n\n")
	launch := &recordingLauncher{}
	loop := &Loop{
		Connector: &fakeConnector{ports: []serialport.Port{port}},
		Registry:  newRegistry(t),
		Launcher:  launch,
	}

	events := runUntil(t, loop, 4)

	if got := strings.Join(launch.names(), ","); got != "gimp" {
		t.Fatalf("expected only gimp launched, got %q", got)
	}
	want := []Outcome{OutcomeLaunched, OutcomeOutOfRange, OutcomeInvalid, OutcomeIgnored}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), events)
	}
	for i, outcome := range want {
		if events[i].Outcome != outcome {
			t.Fatalf("event %d: outcome %q, want %q", i, events[i].Outcome, outcome)
		}
	}
	if events[0].Application != "gimp" || events[0].PID != 1001 {
		t.Fatalf("unexpected launch event: %+v", events[0])
	}
	if !errors.Is(events[1].Err, registry.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", events[1].Err)
	}
	if !errors.Is(events[2].Err, registry.ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", events[2].Err)
	}
	if port.resets.Load() != 1 {
		t.Fatalf("expected input buffer reset once, got %d", port.resets.Load())
	}
	if !port.closed.Load() {
		t.Fatal("expected port to be closed")
	}
}

func TestLoopRejectsNegativeCode(t *testing.T) {
	launch := &recordingLauncher{}
	loop := &Loop{
		Connector: &fakeConnector{ports: []serialport.Port{newFakePort("-1\n")}},
		Registry:  newRegistry(t),
		Launcher:  launch,
	}
	events := runUntil(t, loop, 1)
	if events[0].Outcome != OutcomeOutOfRange {
		t.Fatalf("expected negative code to be out of range, got %+v", events[0])
	}
	if len(launch.names()) != 0 {
		t.Fatalf("expected no launch, got %v", launch.names())
	}
}

func TestLoopReconnectsAfterReadError(t *testing.T) {
	first := newFakePort("2\n")
	second := newFakePort(" 0 \r\n")
	connector := &fakeConnector{ports: []serialport.Port{first, second}}
	launch := &recordingLauncher{}
	loop := &Loop{Connector: connector, Registry: newRegistry(t), Launcher: launch}

	runUntil(t, loop, 2)

	if got := strings.Join(launch.names(), ","); got != "gthumb,dia" {
		t.Fatalf("unexpected launches across reconnect: %q", got)
	}
	if !first.closed.Load() || !second.closed.Load() {
		t.Fatal("expected both ports closed")
	}
	connector.mu.Lock()
	defer connector.mu.Unlock()
	if connector.calls < 2 {
		t.Fatalf("expected a reconnect, got %d connect calls", connector.calls)
	}
}

func TestLoopDiscardsOversizedLine(t *testing.T) {
	data := strings.Repeat("9", MaxLineLength*3) + "\n" +
		strings.Repeat(" ", MaxLineLength-2) + "2\n" +
		"1\n"
	launch := &recordingLauncher{}
	loop := &Loop{
		Connector: &fakeConnector{ports: []serialport.Port{newFakePort(data)}},
		Registry:  newRegistry(t),
		Launcher:  launch,
	}

	events := runUntil(t, loop, 3)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %+v", events)
	}
	if events[0].Outcome != OutcomeInvalid || !errors.Is(events[0].Err, ErrLineTooLong) {
		t.Fatalf("expected oversized line rejected, got %+v", events[0])
	}
	if len(events[0].Line) > 32 {
		t.Fatalf("expected truncated prefix in event, got %d bytes", len(events[0].Line))
	}
	if got := strings.Join(launch.names(), ","); got != "gthumb,gimp" {
		t.Fatalf("expected dispatch to resume after discard, got %q", got)
	}
}

func TestLoopContinuesAfterLaunchFailure(t *testing.T) {
	launch := &recordingLauncher{fail: map[string]error{"dia": errors.New("executable file not found")}}
	loop := &Loop{
		Connector: &fakeConnector{ports: []serialport.Port{newFakePort("0\n1\n")}},
		Registry:  newRegistry(t),
		Launcher:  launch,
	}
	events := runUntil(t, loop, 2)
	if events[0].Outcome != OutcomeLaunchFailed || events[0].Err == nil {
		t.Fatalf("expected launch failure, got %+v", events[0])
	}
	if events[1].Outcome != OutcomeLaunched || events[1].Application != "gimp" {
		t.Fatalf("expected gimp launched after failure, got %+v", events[1])
	}
}

func TestLoopCancellationClosesBlockedPort(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	port := &fakePort{Reader: pr, closeFn: pr.Close}
	loop := &Loop{
		Connector: &fakeConnector{ports: []serialport.Port{port}},
		Registry:  newRegistry(t),
		Launcher:  &recordingLauncher{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not unblock the pending read")
	}
	if !port.closed.Load() {
		t.Fatal("expected port closed on cancellation")
	}
}

func TestLoopRequiresCollaborators(t *testing.T) {
	if err := (&Loop{}).Run(context.Background()); err == nil {
		t.Fatal("expected error for unconfigured loop")
	}
}

func TestHandleLogsDiagnostics(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "dispatch.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	loop := &Loop{
		Registry: newRegistry(t),
		Launcher: launcher.Func(func(context.Context, string) (int, error) { return 42, nil }),
		Logger:   logger,
	}

	for _, line := range []string{"abc\n", "7\n", "2\n", "\n"} {
		loop.Handle(context.Background(), line)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(content)
	for _, want := range []string{
		`"event_type":"dispatch_code_invalid"`,
		`"event_type":"dispatch_code_out_of_range"`,
		`"event_type":"application_launched"`,
		`"application":"gthumb"`,
		`"pid":42`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log output:\n%s", want, out)
		}
	}
	if strings.Count(out, `"level":"warn"`) != 2 {
		t.Fatalf("expected exactly two warnings, got:\n%s", out)
	}
}
