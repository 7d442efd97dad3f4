// Package config loads, normalizes, and validates serialapps configuration.
//
// It supplies repository defaults (device, baud rate, marker path and the
// application registry), expands user paths including tilde shortcuts, reads
// TOML files, and honours environment overrides such as SERIALAPPS_DEVICE.
//
// Always obtain settings through this package so the daemon and the CLI agree
// on where the instance marker lives and which device is being watched.
package config
