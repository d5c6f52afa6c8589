package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskq/internal/daemonctl"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the taskq daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startLogLevel),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override the configured log level for the daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the taskq daemon and terminate its process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.StopAcknowledged {
				fmt.Fprintln(stdout, "Draining lanes...")
			} else {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Killed daemon process (pid %d)\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the taskq daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, restartLogLevel),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Killed daemon process (pid %d)\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			switch result.Start.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon restarted")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Start.Message) != "" {
					fmt.Fprintln(stdout, result.Start.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Override the configured log level for the daemon")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, lane, and queue status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, snapshot)
			}
			renderStatus(cmd, snapshot)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func renderStatus(cmd *cobra.Command, snapshot *daemonctl.StatusSnapshot) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)
	status := snapshot.Status

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	switch {
	case !snapshot.Reachable:
		fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	case status.Running:
		fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, "running (pid "+strconv.Itoa(status.PID)+")", colorize))
	default:
		fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, "process up, lanes stopped (pid "+strconv.Itoa(status.PID)+")", colorize))
	}
	if status.APIBind != "" {
		fmt.Fprintln(stdout, renderStatusLine("HTTP API", statusInfo, status.APIBind, colorize))
	}
	if len(status.Kinds) > 0 {
		fmt.Fprintln(stdout, renderStatusLine("Task kinds", statusInfo, strings.Join(status.Kinds, ", "), colorize))
	}
	if status.Manager.LastError != "" {
		fmt.Fprintln(stdout, renderStatusLine("Last error", statusError, status.Manager.LastError, colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("System Checks", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, check := range snapshot.Checks {
		fmt.Fprintln(stdout, renderStatusLine(check.Name, checkStatusKind(check), check.Detail, colorize))
	}

	if len(status.Manager.Lanes) > 0 {
		fmt.Fprintln(stdout)
		for _, line := range renderSectionHeader("Lanes", colorize) {
			fmt.Fprintln(stdout, line)
		}
		lanes := append(status.Manager.Lanes[:0:0], status.Manager.Lanes...)
		sort.Slice(lanes, func(i, j int) bool { return lanes[i].Name < lanes[j].Name })
		rows := make([][]string, 0, len(lanes))
		for _, lane := range lanes {
			active, since := "idle", ""
			if lane.ActiveTask != nil {
				active = fmt.Sprintf("#%d %s", lane.ActiveTask.ID, lane.ActiveTask.Description)
				since = displayTime(lane.Since)
			}
			rows = append(rows, []string{lane.Name, active, since})
		}
		fmt.Fprint(stdout, renderTable([]string{"Lane", "Active", "Since"}, rows, nil))
	}

	fmt.Fprintln(stdout)
	for _, line := range renderSectionHeader("Queue Status", colorize) {
		fmt.Fprintln(stdout, line)
	}
	rows := buildQueueStatusRows(status.Manager.QueueStats, colorize)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "Queue is empty")
		return
	}
	fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{LogLevel: strings.TrimSpace(logLevel)}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if path := ctx.configPath(); path != "" {
		opts.ConfigPath = path
	}
	return opts
}
