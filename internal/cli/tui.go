// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nexora-labs/nexora-tui/internal/ui/chat"
	"github.com/nexora-labs/nexora-tui/internal/ui/styles"
)

// runTUI runs the full-screen chat until the user quits.
func (a *App) runTUI(ctx context.Context) error {
	backend, err := NewBackend(a.cfg, a.logger.Logger)
	if err != nil {
		return err
	}
	ctrl, err := a.newController(backend)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := chat.New(ctrl, chat.Options{
		Context:        ctx,
		Theme:          styles.NewTheme(),
		MaxFPS:         a.cfg.UI.MaxFPS,
		ShowTimestamps: a.cfg.UI.ShowTimestamps,
		Backend:        fmt.Sprintf("%s %s", backend.Kind, backend.BaseURL()),
	})
	defer view.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.watchConfig(gctx, backend)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		program := tea.NewProgram(view,
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
			tea.WithInput(a.In),
			tea.WithOutput(a.Out),
		)
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("chat view: %w", err)
		}
		return nil
	})

	err = g.Wait()
	a.logger.Debug("tui exited", zap.Error(err))
	return err
}
