package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"archivist/internal/api"
)

const daemonBinary = "archivistd"

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the archivist daemon",
	}
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	return daemonCmd
}

// daemonExecutable resolves the archivistd binary, preferring one installed
// next to the CLI.
func daemonExecutable() (string, error) {
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), daemonBinary)
		if _, statErr := os.Stat(sibling); statErr == nil {
			return sibling, nil
		}
	}
	resolved, err := exec.LookPath(daemonBinary)
	if err != nil {
		return "", fmt.Errorf("%s not found next to the CLI or on PATH", daemonBinary)
	}
	return resolved, nil
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the archivist daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if _, err := ctx.apiClient().Status(cmd.Context()); err == nil {
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			launch := exec.Command(exe)
			launch.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
			launch.Stdout = nil
			launch.Stderr = nil
			if err := launch.Start(); err != nil {
				return fmt.Errorf("launch %s: %w", exe, err)
			}
			if err := launch.Process.Release(); err != nil {
				return fmt.Errorf("detach daemon process: %w", err)
			}

			fmt.Fprintln(stdout, "Daemon not running, launching...")
			if err := waitForDaemon(cmd.Context(), ctx, 10*time.Second, true); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon started")
			return nil
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the archivist daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			status, err := ctx.apiClient().Status(cmd.Context())
			if err != nil {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if status.PID <= 0 {
				return fmt.Errorf("daemon reported invalid pid %d", status.PID)
			}
			if err := syscall.Kill(status.PID, syscall.SIGTERM); err != nil {
				return fmt.Errorf("signal daemon (pid %d): %w", status.PID, err)
			}
			fmt.Fprintf(stdout, "Stopping daemon (pid %d)...\n", status.PID)
			if err := waitForDaemon(cmd.Context(), ctx, 10*time.Second, false); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}
}

// waitForDaemon polls the status endpoint until the daemon is up (or down)
// or the timeout elapses.
func waitForDaemon(ctx context.Context, cmdCtx *commandContext, timeout time.Duration, up bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := cmdCtx.apiClient().Status(ctx)
		if up && err == nil {
			return nil
		}
		if !up && err != nil {
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	if up {
		return fmt.Errorf("daemon did not become ready within %s", timeout)
	}
	return fmt.Errorf("daemon did not shut down within %s", timeout)
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.apiClient().Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("daemon unreachable at %s: %w (start it with `archivist daemon start`)", ctx.serverURL(), err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			renderDaemonStatus(cmd, status)
			return nil
		},
	}
}

func renderDaemonStatus(cmd *cobra.Command, status api.DaemonStatus) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	fmt.Fprintln(stdout, sectionHeader("Daemon", colorize))
	fmt.Fprintf(stdout, "  Running:  %s (pid %d)\n", yesNo(status.Running), status.PID)
	fmt.Fprintf(stdout, "  Database: %s\n", status.LibraryDBPath)
	fmt.Fprintf(stdout, "  Lock:     %s\n", status.LockFilePath)
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, sectionHeader("Pipeline", colorize))
	fmt.Fprintf(stdout, "  Running: %s\n", yesNo(status.Pipeline.Running))
	if status.Pipeline.LastError != "" {
		fmt.Fprintf(stdout, "  Last error: %s\n", paint(status.Pipeline.LastError, ansiRed, colorize))
	}
	for _, health := range status.Pipeline.StageHealth {
		state := paint("ready", ansiGreen, colorize)
		if !health.Ready {
			state = paint("not ready", ansiRed, colorize)
			if health.Detail != "" {
				state += " (" + health.Detail + ")"
			}
		}
		fmt.Fprintf(stdout, "  %-12s %s\n", health.Name+":", state)
	}
	fmt.Fprintln(stdout)

	counts := status.Pipeline.Library
	rows := [][]string{
		{"uploading", strconv.Itoa(counts.Uploading)},
		{"ready", strconv.Itoa(counts.Ready)},
		{"processing", strconv.Itoa(counts.Processing)},
		{"failed", strconv.Itoa(counts.Failed)},
		{"completed", strconv.Itoa(counts.Completed)},
		{"total", strconv.Itoa(counts.Total)},
	}
	fmt.Fprintln(stdout, sectionHeader("Library", colorize))
	fmt.Fprintln(stdout, renderTable([]string{"State", "Count"}, rows, 1))
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			run := exec.CommandContext(cmd.Context(), exe)
			run.Stdout = cmd.OutOrStdout()
			run.Stderr = cmd.ErrOrStderr()
			run.Stdin = cmd.InOrStdin()
			return run.Run()
		},
	}
}
