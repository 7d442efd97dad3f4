package serialport

import (
	"context"
	"log/slog"
	"time"

	"serialapps/internal/logging"
)

// Connector opens the configured device, retrying forever.
type Connector struct {
	Device     string
	BaudRate   int
	RetryDelay time.Duration
	Open       Opener
	// Wake, when non-nil, cuts a retry wait short. devwatch feeds it when the
	// device node appears.
	Wake   <-chan struct{}
	Logger *slog.Logger
}

// Connect returns an open port, or ctx.Err() once ctx is cancelled. Open
// failures never escape: each one is logged and retried after RetryDelay.
func (c *Connector) Connect(ctx context.Context) (Port, error) {
	logger := c.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	open := c.Open
	if open == nil {
		open = OpenDevice
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++
		port, err := open(c.Device, c.BaudRate)
		if err == nil {
			logger.Info("serial device connected",
				logging.String(logging.FieldEventType, "serial_connected"),
				logging.String("device", c.Device),
				logging.Int("baud_rate", c.BaudRate),
				logging.Int("attempts", attempts),
			)
			return port, nil
		}

		logging.WarnWithContext(logger, "cannot connect to serial device", "serial_connect_failed",
			logging.Error(err),
			logging.String("device", c.Device),
			logging.Int("attempt", attempts),
			logging.Duration("retry_in", delay),
			logging.String(logging.FieldErrorHint, "plug in the device or check serial.device and permissions"),
			logging.String(logging.FieldImpact, "codes are not received until the device is reachable"),
		)

		if err := c.wait(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Connector) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-c.Wake:
		// A nil Wake channel blocks forever, leaving only the timer.
		return nil
	}
}
