// Package dispatch runs the read, parse and launch cycle over a serial line.
package dispatch

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"serialapps/internal/launcher"
	"serialapps/internal/logging"
	"serialapps/internal/registry"
	"serialapps/internal/serialport"
)

// Outcome classifies what happened to one received line.
type Outcome string

const (
	OutcomeIgnored      Outcome = "ignored"
	OutcomeInvalid      Outcome = "invalid"
	OutcomeOutOfRange   Outcome = "out_of_range"
	OutcomeLaunched     Outcome = "launched"
	OutcomeLaunchFailed Outcome = "launch_failed"
)

// MaxLineLength bounds one received line, newline included.
const MaxLineLength = 4096

// ErrLineTooLong marks a line discarded for exceeding MaxLineLength.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// Event is the result of handling one line. It is never persisted.
type Event struct {
	Line        string
	Code        int
	Application string
	PID         int
	Outcome     Outcome
	Err         error
}

// Connector yields an open serial port, blocking until one is available.
type Connector interface {
	Connect(ctx context.Context) (serialport.Port, error)
}

// Loop reads newline-terminated codes and launches the matching application.
type Loop struct {
	Connector Connector
	Registry  *registry.Registry
	Launcher  launcher.Launcher
	Logger    *slog.Logger
	// OnEvent, when set, observes every handled line.
	OnEvent func(Event)
}

// Run serves until ctx is cancelled, then returns nil. A read error drops
// the connection and the loop reconnects.
func (l *Loop) Run(ctx context.Context) error {
	if l.Connector == nil || l.Registry == nil || l.Launcher == nil {
		return errors.New("dispatch loop requires a connector, registry and launcher")
	}
	logger := l.logger()

	for {
		port, err := l.Connector.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err = l.serve(ctx, port)
		if ctx.Err() != nil {
			logger.Info("dispatch loop stopped",
				logging.String(logging.FieldEventType, "dispatch_stopped"),
			)
			return nil
		}
		logging.WarnWithContext(logger, "serial read failed; reconnecting", "serial_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the device cable and that no other process holds the port"),
			logging.String(logging.FieldImpact, "codes are not received until the device reconnects"),
		)
	}
}

// serve owns port until it fails or ctx is cancelled. Cancellation closes
// the port, which unblocks the pending read.
func (l *Loop) serve(ctx context.Context, port serialport.Port) error {
	var once sync.Once
	closePort := func() { once.Do(func() { _ = port.Close() }) }
	defer closePort()
	stop := context.AfterFunc(ctx, closePort)
	defer stop()

	logger := l.logger()
	if err := port.ResetInputBuffer(); err != nil {
		logger.Debug("discarding buffered input failed", logging.Error(err))
	}

	reader := bufio.NewReaderSize(port, MaxLineLength)
	discarding := false
	for {
		chunk, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if !discarding && ctx.Err() == nil {
				l.emit(l.rejectLong(chunk))
			}
			discarding = true
			continue
		}
		if discarding {
			// Tail of an oversized line.
			discarding = false
		} else if len(chunk) > 0 && ctx.Err() == nil {
			l.emit(l.Handle(ctx, string(chunk)))
		}
		if err != nil {
			return err
		}
	}
}

// rejectLong reports a line that filled the read buffer without a newline.
// The rest of the line is discarded as it arrives.
func (l *Loop) rejectLong(prefix []byte) Event {
	shown := prefix
	if len(shown) > 32 {
		shown = shown[:32]
	}
	event := Event{Line: string(shown), Code: -1, Outcome: OutcomeInvalid, Err: ErrLineTooLong}
	logging.WarnWithContext(l.logger(), "received oversized line", "dispatch_line_too_long",
		logging.Error(ErrLineTooLong),
		logging.Int("limit", MaxLineLength),
		logging.String("prefix", event.Line),
		logging.String(logging.FieldErrorHint, "the sender must terminate each code with a newline"),
		logging.String(logging.FieldImpact, "line discarded"),
	)
	return event
}

// Handle processes one received line.
func (l *Loop) Handle(ctx context.Context, line string) Event {
	logger := l.logger()
	trimmed := strings.TrimSpace(line)
	event := Event{Line: trimmed, Code: -1}

	code, err := registry.ParseCode(trimmed)
	switch {
	case errors.Is(err, registry.ErrEmptyCode):
		event.Outcome = OutcomeIgnored
		logger.Debug("empty line ignored")
		return event
	case err != nil:
		event.Outcome = OutcomeInvalid
		event.Err = err
		logging.WarnWithContext(logger, "received invalid dispatch code", "dispatch_code_invalid",
			logging.Error(err),
			logging.String("line", trimmed),
			logging.String(logging.FieldErrorHint, "the sender must write one decimal code per line"),
			logging.String(logging.FieldImpact, "line ignored"),
		)
		return event
	}
	event.Code = code

	name, err := l.Registry.Lookup(code)
	if err != nil {
		event.Outcome = OutcomeOutOfRange
		event.Err = err
		logging.WarnWithContext(logger, "dispatch code has no application", "dispatch_code_out_of_range",
			logging.Error(err),
			logging.Int("code", code),
			logging.Int("registry_size", l.Registry.Len()),
			logging.String(logging.FieldErrorHint, "run 'serialapps start' to print the code table"),
			logging.String(logging.FieldImpact, "line ignored"),
		)
		return event
	}
	event.Application = name

	pid, err := l.Launcher.Launch(ctx, name)
	if err != nil {
		event.Outcome = OutcomeLaunchFailed
		event.Err = err
		logging.WarnWithContext(logger, "application launch failed", "application_launch_failed",
			logging.Error(err),
			logging.Int("code", code),
			logging.String("application", name),
			logging.String(logging.FieldErrorHint, "check that the application is installed and on PATH"),
			logging.String(logging.FieldImpact, "application not started"),
		)
		return event
	}
	event.PID = pid
	event.Outcome = OutcomeLaunched
	logger.Info("application launched",
		logging.String(logging.FieldEventType, "application_launched"),
		logging.Int("code", code),
		logging.String("application", name),
		logging.Int("pid", pid),
	)
	return event
}

func (l *Loop) emit(event Event) {
	if l.OnEvent != nil {
		l.OnEvent(event)
	}
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger == nil {
		return logging.NewNop()
	}
	return l.Logger
}
