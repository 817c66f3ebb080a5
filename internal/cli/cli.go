// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Root command and shared wiring for the nexora CLI.
//
// Usage:
//   nexora                      Start the TUI (plain chat when not a terminal)
//   nexora chat [--plain]       Interactive chat
//   nexora ask "message"        Stream one reply to stdout
//   nexora models [--remote]    List selectable models
//   nexora status               Check the backend
//   nexora config <subcommand>  Show or edit configuration
//
// Global flags:
//   -v, --verbose      Debug logging
//   -c, --config PATH  Use a specific config file
//   -m, --model ID     Model for this run (must be in models.available)
//       --url URL      Backend URL for this run

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nexora-labs/nexora-tui/internal/config"
	"github.com/nexora-labs/nexora-tui/internal/logging"
	"github.com/nexora-labs/nexora-tui/internal/model"
	"github.com/nexora-labs/nexora-tui/internal/session"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// annotationConfigOptional marks commands that still run when the config
// file fails to load, so the file can be inspected and repaired.
const annotationConfigOptional = "nexora/config-optional"

// =============================================================================
// APPLICATION STATE
// =============================================================================

// App carries the streams, flags and loaded state shared by all commands.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Global flags
	verbose    bool
	configFile string
	modelID    string
	backendURL string

	// Loaded in PersistentPreRunE
	cfg     *config.Config
	cfgPath string
	loadErr error
	logger  *logging.Logger

	// Hooks replaced by tests
	isTerminal func() bool
	notify     func() (<-chan os.Signal, func())
}

// NewApp returns an App bound to the process streams.
func NewApp() *App {
	return &App{
		In:         os.Stdin,
		Out:        os.Stdout,
		Err:        os.Stderr,
		isTerminal: CanRunTUI,
		notify: func() (<-chan os.Signal, func()) {
			ch := make(chan os.Signal, 1)
			signal.Notify(ch, os.Interrupt)
			return ch, func() { signal.Stop(ch) }
		},
	}
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the nexora command tree.
func NewRootCommand(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "nexora",
		Short: "Streaming chat client for model-serving backends",
		Long: `nexora sends your messages to a chat backend (a relay service or a
local Ollama server) and shows the reply as it streams in.

Without a subcommand it opens the full-screen chat when attached to a
terminal and falls back to line mode otherwise.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.isTerminal() {
				return a.runTUI(cmd.Context())
			}
			return a.runPlain(cmd.Context())
		},
	}

	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Field: "flag", Reason: err.Error(), Example: cmd.UseLine()}
	})
	root.SetVersionTemplate(fmt.Sprintf("nexora %s (commit %s, built %s)\n", Version, GitCommit, BuildDate))

	flags := root.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVarP(&a.configFile, "config", "c", "", "Config file (default: first of config.toml, config.yaml, config.json in ~/.nexora)")
	flags.StringVarP(&a.modelID, "model", "m", "", "Model to use for this run")
	flags.StringVar(&a.backendURL, "url", "", "Backend base URL for this run")

	root.AddCommand(
		newChatCommand(a),
		newAskCommand(a),
		newModelsCommand(a),
		newStatusCommand(a),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	a := NewApp()
	root := NewRootCommand(a)
	if err := root.ExecuteContext(context.Background()); err != nil {
		DisplayError(a.Err, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// SETUP
// =============================================================================

func (a *App) setup(cmd *cobra.Command) error {
	cfg, path, err := a.loadConfig()
	if err != nil {
		if cmd.Annotations[annotationConfigOptional] == "" {
			return err
		}
		a.loadErr = err
		cfg = config.Default()
	}

	if a.backendURL != "" {
		cfg.Backend.URL = a.backendURL
		if err := cfg.Validate(); err != nil {
			return &UsageError{Field: "--url", Value: a.backendURL, Reason: err.Error()}
		}
	}
	a.cfg = cfg
	a.cfgPath = path
	config.SetGlobal(cfg)

	logPath, err := cfg.LogPath()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: logPath, Verbose: a.verbose})
	if err != nil {
		fmt.Fprintf(a.Err, "%s %v\n", WarningStyle.Render("[WARN]"), err)
		logger = logging.Nop()
	}
	a.logger = logger
	a.logger.Debug("nexora starting",
		zap.String("command", cmd.Name()),
		zap.String("config", path),
		zap.String("backend", cfg.Backend.Kind),
		zap.String("url", cfg.Backend.URL))
	return nil
}

func (a *App) teardown() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *App) loadConfig() (*config.Config, string, error) {
	if a.configFile != "" {
		cfg, err := config.LoadFromPath(a.configFile)
		return cfg, a.configFile, err
	}
	path, err := config.ActivePath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load()
	return cfg, path, err
}

// =============================================================================
// SESSION WIRING
// =============================================================================

// newController builds a session controller over backend, honoring --model.
func (a *App) newController(backend *Backend) (*session.Controller, error) {
	sel, err := a.cfg.NewSelector()
	if err != nil {
		return nil, err
	}
	if a.modelID != "" {
		if err := sel.Select(model.ID(a.modelID)); err != nil {
			return nil, err
		}
	}
	return session.NewController(session.Options{
		Transport: backend,
		Selector:  sel,
		Logger:    a.logger.Named("session"),
	}), nil
}

// watchConfig applies config file changes until ctx ends. Only the log level
// and backend URL are applied live; other changes need a restart.
func (a *App) watchConfig(ctx context.Context, backend *Backend) {
	if a.cfgPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(a.cfgPath), 0755); err != nil {
		a.logger.Warn("config watch disabled", zap.Error(err))
		return
	}

	err := config.Watch(ctx, a.cfgPath, config.DefaultDebounce, func(cfg *config.Config, err error) {
		if err != nil {
			a.logger.Warn("config reload failed", zap.String("path", a.cfgPath), zap.Error(err))
			return
		}
		a.applyReload(cfg, backend)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("config watch stopped", zap.Error(err))
	}
}

func (a *App) applyReload(cfg *config.Config, backend *Backend) {
	if !a.verbose {
		if err := a.logger.SetLevel(cfg.Log.Level); err != nil {
			a.logger.Warn("ignoring log level", zap.String("level", cfg.Log.Level), zap.Error(err))
		}
	}
	if a.backendURL == "" && cfg.Backend.URL != backend.BaseURL() {
		backend.SetBaseURL(cfg.Backend.URL)
		a.logger.Info("backend url changed", zap.String("url", cfg.Backend.URL))
	}
	if cfg.Backend.Kind != backend.Kind {
		a.logger.Warn("backend kind change needs a restart",
			zap.String("running", backend.Kind),
			zap.String("configured", cfg.Backend.Kind))
	}
	a.logger.Info("config reloaded", zap.String("path", a.cfgPath))
}
