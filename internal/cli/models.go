// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexora-labs/nexora-tui/internal/model"
)

func newModelsCommand(a *App) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List selectable models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote {
				return a.listRemoteModels(cmd.Context())
			}
			return a.listModels()
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "List models installed on the Ollama backend")
	return cmd
}

func (a *App) listModels() error {
	sel, err := a.cfg.NewSelector()
	if err != nil {
		return err
	}
	if a.modelID != "" {
		if err := sel.Select(model.ID(a.modelID)); err != nil {
			return err
		}
	}

	fmt.Fprintln(a.Out, TitleStyle.Render("Models"))
	current := sel.Current()
	for _, info := range sel.Catalog() {
		id := fmt.Sprintf("%-16s", info.ID)
		marker := "  "
		if info.ID == current {
			marker = "* "
			id = HighlightStyle.Render(id)
		}
		fmt.Fprintf(a.Out, "%s%s %s %s\n", marker, id, ValueStyle.Render(info.Label()), DimStyle.Render(info.Provider))
	}
	return nil
}

func (a *App) listRemoteModels(ctx context.Context) error {
	backend, err := NewBackend(a.cfg, a.logger.Logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	installed, err := backend.ListRemoteModels(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.Out, TitleStyle.Render("Installed on "+backend.BaseURL()))
	if len(installed) == 0 {
		fmt.Fprintln(a.Out, DimStyle.Render("  (none)"))
		return nil
	}
	catalog := a.cfg.Catalog()
	for _, m := range installed {
		marker := "  "
		if catalog.Contains(model.ID(m.Name)) {
			marker = "* "
		}
		fmt.Fprintf(a.Out, "%s%-28s %s\n", marker, m.Name, DimStyle.Render(m.FormatSize()))
	}
	fmt.Fprintln(a.Out, DimStyle.Render("* selectable (listed in models.available)"))
	return nil
}
