// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/manovay/AP-Study-Guide-Generator/internal/app"
	"github.com/manovay/AP-Study-Guide-Generator/internal/config"
	"github.com/manovay/AP-Study-Guide-Generator/internal/logger"
)

// Version information, set by main.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	email      string
	mode       string
	debug      bool
	jsonOut    bool
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Close()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	if jsonOut, _ := root.PersistentFlags().GetBool("json"); jsonOut {
		name := root.Name()
		if cmd, _, ferr := root.Find(os.Args[1:]); ferr == nil {
			name = cmd.CommandPath()
		}
		_ = NewJSONErrorResponse(name, err).Write(os.Stdout)
	} else {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
	}
	return ExitCode(err)
}

// NewRootCmd builds the command tree. Running it without a subcommand opens
// the interactive study guide screen.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "tootur",
		Short: "Tootur - AI study guide generator",
		Long: `Tootur generates study guides with an LLM and keeps each guide as a
conversation you can extend with follow-up questions.

Run without arguments for the interactive screen, or use the subcommands
for scripting. Guides live in a local SQLite database, or on a server
started with "tootur serve" when remote.mode is "http".`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.tootur/config.toml)")
	pf.StringVarP(&opts.email, "email", "e", "", "user email that owns the guides")
	pf.StringVar(&opts.mode, "mode", "", "remote mode: local or http")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	pf.BoolVar(&opts.jsonOut, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newAskCmd(opts),
		newChatCmd(opts),
		newGuidesCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newUserCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

func newVersionCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.jsonOut {
				return writeJSON(cmd, "version", map[string]string{
					"version": Version, "commit": GitCommit, "build_date": BuildDate,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tootur %s\n  commit: %s\n  built:  %s\n", Version, GitCommit, BuildDate)
			return nil
		},
	}
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadConfig reads the configuration, applies the persistent flags and
// initializes logging.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.email != "" {
		cfg.User.Email = opts.email
	}
	if opts.mode != "" {
		cfg.Remote.Mode = opts.mode
	}
	if opts.debug {
		cfg.Log.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetDebug(cfg.Log.Debug)
	if err := logger.Init(cfg.Log.Path); err != nil {
		// logging must never block the command
		_ = logger.Init(logger.Stderr)
	}
	return cfg, nil
}

// openApp loads the config, wires the session and loads the user's guides.
// The caller closes the returned App.
func openApp(cmd *cobra.Command, opts *globalOptions) (*app.App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := a.Start(cmd.Context()); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// writeJSON prints data in the standard envelope.
func writeJSON(cmd *cobra.Command, command string, data any) error {
	return NewJSONResponse(command, data).Write(cmd.OutOrStdout())
}

// readAll reads stdin when a prompt argument is "-".
func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("no input on stdin")
	}
	return string(data), nil
}
