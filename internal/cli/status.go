// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// statusTimeout bounds the health check.
const statusTimeout = 5 * time.Second

func newStatusCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and check the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.showStatus(cmd.Context())
		},
	}
}

func (a *App) showStatus(ctx context.Context) error {
	backend, err := NewBackend(a.cfg, a.logger.Logger)
	if err != nil {
		return err
	}

	model := a.cfg.Models.Default
	if a.modelID != "" {
		model = a.modelID
	}
	configPath := a.cfgPath
	if _, statErr := os.Stat(configPath); configPath == "" || statErr != nil {
		configPath = "(defaults)"
	}

	fmt.Fprintln(a.Out, TitleStyle.Render("nexora "+Version))
	fmt.Fprintf(a.Out, "%s%s\n", RenderLabel("Config"), ValueStyle.Render(configPath))
	fmt.Fprintf(a.Out, "%s%s\n", RenderLabel("Backend"), ValueStyle.Render(backend.Kind))
	fmt.Fprintf(a.Out, "%s%s\n", RenderLabel("URL"), ValueStyle.Render(backend.BaseURL()))
	fmt.Fprintf(a.Out, "%s%s\n", RenderLabel("Model"), ValueStyle.Render(model))

	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	start := time.Now()
	err = backend.Ping(ctx)
	if err != nil {
		fmt.Fprintf(a.Out, "%s%s %s\n", RenderLabel("Health"), RenderStatus(false), DimStyle.Render(err.Error()))
		return NewCommandError("status", "ping", "backend unavailable", err)
	}
	fmt.Fprintf(a.Out, "%s%s %s\n", RenderLabel("Health"), RenderStatus(true),
		DimStyle.Render(time.Since(start).Round(time.Millisecond).String()))
	return nil
}
