// Package serialport owns the serial device connection.
//
// Connector.Connect models the Disconnected state: it attempts to open the
// configured device and, on failure, logs a transient diagnostic and waits a
// fixed delay (or until a device wakeup arrives) before trying again. There
// is no upper bound on attempts; a missing device is the expected steady
// state while the hardware is unplugged.
package serialport
