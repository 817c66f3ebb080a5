// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Configuration command handler for the nexora CLI.
//
// Command: config [subcommand]
//
// Subcommands:
//   show [--format F]        Print the effective configuration (toml, yaml, json)
//   path                     Print the config file location
//   init [--format F]        Write a default config file
//   get <key>                Print one value (dot notation, e.g. backend.url)
//   set <key> <value>        Change one value in the config file
//   keys                     List all keys

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nexora-labs/nexora-tui/internal/config"
)

func newConfigCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Show or edit configuration",
		Annotations: map[string]string{annotationConfigOptional: "true"},
	}

	var showFormat string
	show := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConfigOptional: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.loadErr != nil {
				return a.loadErr
			}
			return a.writeConfig(showFormat)
		},
	}
	show.Flags().StringVarP(&showFormat, "format", "f", "toml", "Output format: toml, yaml or json")

	path := &cobra.Command{
		Use:         "path",
		Short:       "Print the config file location",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConfigOptional: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.Out, a.cfgPath)
			if _, err := os.Stat(a.cfgPath); err != nil {
				fmt.Fprintln(a.Err, DimStyle.Render("(file does not exist, defaults in use)"))
			}
			return nil
		},
	}

	var initFormat string
	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default config file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConfigOptional: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(initFormat, force)
		},
	}
	initCmd.Flags().StringVarP(&initFormat, "format", "f", "toml", "File format: toml, yaml or json")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return &UsageError{Field: "key", Value: args[0], Reason: err.Error(), Example: "nexora config get backend.url"}
			}
			fmt.Fprintln(a.Out, formatValue(v))
			return nil
		},
	}

	set := &cobra.Command{
		Use:         "set <key> <value>",
		Short:       "Change one value in the config file",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{annotationConfigOptional: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setConfig(args[0], args[1])
		},
	}

	keys := &cobra.Command{
		Use:         "keys",
		Short:       "List all configuration keys",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConfigOptional: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			all := config.GetAllKeys()
			sort.Strings(all)
			for _, k := range all {
				fmt.Fprintln(a.Out, k)
			}
			return nil
		},
	}

	cmd.AddCommand(show, path, initCmd, get, set, keys)
	return cmd
}

// =============================================================================
// HANDLERS
// =============================================================================

func (a *App) writeConfig(format string) error {
	switch strings.ToLower(format) {
	case "toml":
		return toml.NewEncoder(a.Out).Encode(a.cfg)
	case "yaml", "yml":
		enc := yaml.NewEncoder(a.Out)
		enc.SetIndent(2)
		if err := enc.Encode(a.cfg); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(a.cfg)
	default:
		return &UsageError{Field: "--format", Value: format, Reason: "unsupported format", Example: "toml, yaml or json"}
	}
}

func (a *App) initConfig(format string, force bool) error {
	var (
		path string
		err  error
	)
	switch strings.ToLower(format) {
	case "toml":
		path, err = config.ConfigPathTOML()
	case "yaml", "yml":
		path, err = config.ConfigPathYAML()
	case "json":
		path, err = config.ConfigPathJSON()
	default:
		return &UsageError{Field: "--format", Value: format, Reason: "unsupported format", Example: "toml, yaml or json"}
	}
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(path); statErr == nil && !force {
		return NewCommandError("config", "init", "file already exists (use --force to overwrite)", nil)
	}
	if err := config.SaveToPath(config.Default(), path); err != nil {
		return NewCommandError("config", "init", "could not write "+path, err)
	}
	fmt.Fprintf(a.Out, "%s %s\n", RenderStatus(true), path)
	return nil
}

// setConfig edits the file itself, so environment overrides and --url are
// never written back.
func (a *App) setConfig(key, value string) error {
	path := a.cfgPath
	var cfg *config.Config
	if _, statErr := os.Stat(path); statErr == nil {
		var err error
		cfg, err = config.ReadFile(path)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}

	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Field: "key", Value: key, Reason: err.Error(), Example: "nexora config set backend.url http://127.0.0.1:8000"}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveToPath(cfg, path); err != nil {
		return NewCommandError("config", "set", "could not write "+path, err)
	}

	v, _ := cfg.Get(key)
	fmt.Fprintf(a.Out, "%s = %s\n", key, formatValue(v))
	return nil
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprint(val)
	}
}
