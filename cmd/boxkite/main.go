package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/boxkite/internal/audit"
	"github.com/ehrlich-b/boxkite/internal/config"
	"github.com/ehrlich-b/boxkite/internal/logger"
	"github.com/ehrlich-b/boxkite/internal/policy"
	"github.com/ehrlich-b/boxkite/internal/seatbelt"
	"github.com/ehrlich-b/boxkite/internal/sensitive"
)

var (
	flagConfig   string
	flagPolicy   string
	flagRoots    []string
	flagNetwork  bool
	flagCwd      string
	flagLogLevel string
)

func main() {
	root := &cobra.Command{
		Use:   "boxkite [flags] -- <command> [args...]",
		Short: "boxkite — run commands inside a macOS Seatbelt sandbox",
		Long:  "Compiles an access-control policy into a sandbox-exec profile and runs the command under it. Sensitive files (.env and friends) are denied from reads unless explicitly allowed.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  run,

		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Settings file (default ~/.boxkite/config.yaml)")
	root.PersistentFlags().StringVar(&flagPolicy, "policy", "", "Sandbox policy: read-only, workspace-write, danger-full-access")
	root.PersistentFlags().StringArrayVar(&flagRoots, "writable-root", nil, "Extra writable root (repeatable)")
	root.PersistentFlags().BoolVar(&flagNetwork, "network", false, "Allow network access under workspace-write")
	root.PersistentFlags().StringVar(&flagCwd, "cwd", "", "Working directory for the sandboxed command")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		profileCmd(),
		checkCmd(),
		eventsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "boxkite: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	settings, filter, pol, cwd, err := setup(cmd)
	if err != nil {
		return err
	}

	prof := seatbelt.Compile(args, pol, cwd, filter)
	logger.Debug("compiled profile", "params", len(prof.Params), "policy", pol.Mode.String())

	child, err := seatbelt.Launch(cmd.Context(), prof, cwd, os.Environ())
	if err != nil {
		return err
	}
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	recordLaunch(settings, args, cwd, pol, prof)

	if err := child.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("launch sandbox: %w", err)
	}
	return nil
}

// setup loads settings, initializes logging, and folds CLI flag
// overrides into the effective policy and working directory.
func setup(cmd *cobra.Command) (*config.Settings, *sensitive.Filter, policy.Policy, string, error) {
	settings, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, policy.Policy{}, "", err
	}

	level := settings.Logging.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if err := logger.Init(level, settings.Logging.File); err != nil {
		return nil, nil, policy.Policy{}, "", fmt.Errorf("init logging: %w", err)
	}

	filter := sensitive.FromSettings(settings.SensitivePaths)

	pol := settings.SandboxPolicy()
	if cmd.Flags().Changed("policy") {
		pol.Mode = policy.ParseMode(flagPolicy)
	}
	pol.WritableRoots = append(pol.WritableRoots, flagRoots...)
	if cmd.Flags().Changed("network") {
		pol.NetworkAccess = flagNetwork
	}

	cwd := flagCwd
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return nil, nil, policy.Policy{}, "", fmt.Errorf("determine working directory: %w", err)
		}
	}
	if abs, err := filepath.Abs(cwd); err == nil {
		cwd = abs
	}

	return settings, filter, pol, cwd, nil
}

// recordLaunch appends to the audit log when enabled. Audit problems
// are logged and never block the launch.
func recordLaunch(settings *config.Settings, command []string, cwd string, pol policy.Policy, prof seatbelt.Profile) {
	if !settings.Audit.Enabled {
		return
	}
	path, err := settings.AuditPath()
	if err != nil {
		logger.Warn("audit log unavailable", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Warn("audit log unavailable", "error", err)
		return
	}
	store, err := audit.Open(path)
	if err != nil {
		logger.Warn("audit log unavailable", "error", err)
		return
	}
	defer store.Close()

	_, err = store.RecordLaunch(audit.Event{
		Command:    command,
		Cwd:        cwd,
		PolicyMode: pol.Mode.String(),
		Network:    pol.HasFullNetworkAccess(),
		ParamCount: len(prof.Params),
	})
	if err != nil {
		logger.Warn("audit record failed", "error", err)
	}
}
