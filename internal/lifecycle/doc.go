// Package lifecycle manages the detached daemon process: the pid marker that
// records the running instance, the control lock that serializes CLI
// invocations, detaching a child into its own session, and stopping it by
// signalling until it is gone.
//
// The marker is a plain text file holding "<pid>\n". Its presence with a
// parseable pid is what "running" means; no liveness check is performed.
package lifecycle
