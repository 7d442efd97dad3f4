package serialport

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Port is an open serial connection.
type Port interface {
	io.ReadCloser
	// ResetInputBuffer discards bytes received but not yet read.
	ResetInputBuffer() error
}

// Opener opens device at baud.
type Opener func(device string, baud int) (Port, error)

// OpenDevice opens a real serial device as 8N1 at the given baud rate.
func OpenDevice(device string, baud int) (Port, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s at %d baud: %w", device, baud, err)
	}
	return port, nil
}
