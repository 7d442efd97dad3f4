package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"serialapps/internal/config"
	"serialapps/internal/lifecycle"
	"serialapps/internal/registry"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the serialapps daemon and print the code table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			pid, err := ctx.controller(cfg).Start(cmd.Context())
			if err != nil {
				return err
			}
			return printStarted(cmd.OutOrStdout(), cfg, pid)
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the serialapps daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := ctx.controller(cfg).Stop(cmd.Context())
			if err != nil {
				return err
			}
			printStopped(cmd.OutOrStdout(), result)
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the serialapps daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stopped, pid, err := ctx.controller(cfg).Restart(cmd.Context())
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			printStopped(stdout, stopped)
			return printStarted(stdout, cfg, pid)
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd}
}

func printStarted(out io.Writer, cfg *config.Config, pid int) error {
	reg, err := registry.New(cfg.Apps)
	if err != nil {
		return err
	}
	colorize := shouldColorize(out)
	fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("started (pid %d)", pid), colorize))
	fmt.Fprintln(out, renderStatusLine("Device", statusInfo, fmt.Sprintf("%s @ %d baud", cfg.Serial.Device, cfg.Serial.BaudRate), colorize))
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderCodeTable(reg.Entries()))
	return nil
}

func printStopped(out io.Writer, result lifecycle.StopResult) {
	colorize := shouldColorize(out)
	if !result.WasRunning {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "not running", colorize))
		return
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("stopped (pid %d)", result.PID), colorize))
}
