// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for the nexora CLI.
//
// Command: chat
// Short:   Start an interactive chat session
//
// Examples:
//   nexora chat                  Full-screen chat on a terminal
//   nexora chat --plain          Line-mode chat with input history
//   nexora chat -m grok-2-latest Start with a specific model
//
// Interactive Commands (line mode):
//   /help, /h           Show available commands
//   /model [id]         Show or switch model
//   /models             List selectable models
//   /quit, /q           Exit chat
//   Ctrl+C              Stop the streaming reply
//   Ctrl+D              Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nexora-labs/nexora-tui/internal/config"
	"github.com/nexora-labs/nexora-tui/internal/model"
	"github.com/nexora-labs/nexora-tui/internal/session"
)

const plainPrompt = "you> "

func newChatCommand(a *App) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if plain || !a.isTerminal() {
				return a.runPlain(cmd.Context())
			}
			return a.runTUI(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Line mode instead of the full-screen view")
	return cmd
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader is the part of liner.State the chat loop uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// ChatCLI provides input history and line editing for line-mode chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
	logger      *zap.Logger
}

// NewChatCLI creates a ChatCLI and loads saved history.
func NewChatCLI(logger *zap.Logger) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	historyFile, err := config.HistoryPath()
	if err != nil {
		logger.Warn("input history disabled", zap.Error(err))
	}

	c := &ChatCLI{line: line, historyFile: historyFile, logger: logger}
	c.LoadHistory()
	return c
}

// Prompt reads one line.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	return c.line.Prompt(prompt)
}

// AppendHistory records a submitted line.
func (c *ChatCLI) AppendHistory(item string) {
	c.line.AppendHistory(item)
}

// LoadHistory loads history from file.
func (c *ChatCLI) LoadHistory() {
	if c.historyFile == "" {
		return
	}
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// SaveHistory persists history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if c.historyFile == "" {
		return
	}
	if err := config.EnsureConfigDir(); err != nil {
		c.logger.Warn("could not save history", zap.Error(err))
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		c.logger.Warn("could not save history", zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := c.line.WriteHistory(f); err != nil {
		c.logger.Warn("could not save history", zap.Error(err))
	}
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// LINE-MODE CHAT
// =============================================================================

func (a *App) runPlain(ctx context.Context) error {
	backend, err := NewBackend(a.cfg, a.logger.Logger)
	if err != nil {
		return err
	}
	ctrl, err := a.newController(backend)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	input := NewChatCLI(a.logger.Logger)
	defer input.Close()

	sigs, stop := a.notify()
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.watchConfig(ctx, backend)

	r := &repl{
		ctrl:       ctrl,
		input:      input,
		out:        a.Out,
		paint:      newPainter(a.Out),
		interrupts: sigs,
	}
	fmt.Fprintf(a.Out, "%s\n", r.paint.dim(fmt.Sprintf("nexora %s · %s %s · /help for commands", Version, backend.Kind, backend.BaseURL())))
	return r.Run(ctx)
}

// repl drives a controller from line input. One goroutine prints controller
// updates; the other reads lines and waits for each turn to finish before
// prompting again.
type repl struct {
	ctrl       *session.Controller
	input      lineReader
	out        io.Writer
	paint      *painter
	interrupts <-chan os.Signal
}

// Run blocks until the user quits, input ends or ctx is cancelled.
func (r *repl) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, unsubscribe := r.ctrl.Subscribe()
	defer unsubscribe()

	outcomes := make(chan error)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.print(gctx, updates, outcomes)
	})
	g.Go(func() error {
		defer cancel()
		return r.read(gctx, outcomes)
	})
	if r.interrupts != nil {
		g.Go(func() error {
			r.watchInterrupts(gctx, cancel)
			return nil
		})
	}
	return g.Wait()
}

func (r *repl) read(ctx context.Context, outcomes <-chan error) error {
	for {
		text, err := r.input.Prompt(plainPrompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		r.input.AppendHistory(text)

		if strings.HasPrefix(trimmed, "/") {
			if quit := r.command(trimmed); quit {
				return nil
			}
			continue
		}

		if err := r.ctrl.Submit(ctx, text); err != nil {
			fmt.Fprintln(r.out, r.paint.failure(err.Error()))
			continue
		}
		select {
		case <-outcomes:
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *repl) print(ctx context.Context, updates <-chan session.Update, outcomes chan<- error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			r.render(u)
			if !u.Terminal() {
				continue
			}
			select {
			case outcomes <- u.Err:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (r *repl) render(u session.Update) {
	switch u.Kind {
	case session.UpdateStarted:
		fmt.Fprint(r.out, r.paint.speaker(r.label(u.Model)+": "))
	case session.UpdateFragment:
		fmt.Fprint(r.out, r.paint.reply(u.Fragment))
	case session.UpdateFinished:
		fmt.Fprint(r.out, "\n\n")
	case session.UpdateFailed:
		msg := "error: turn failed"
		if u.Err != nil {
			msg = "error: " + u.Err.Error()
		}
		fmt.Fprintf(r.out, "\n%s\n\n", r.paint.failure(msg))
	case session.UpdateAborted:
		fmt.Fprintf(r.out, "\n%s\n\n", r.paint.notice("[stopped]"))
	}
}

// watchInterrupts stops the streaming reply on Ctrl+C, or ends the chat
// when nothing is streaming.
func (r *repl) watchInterrupts(ctx context.Context, quit context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.interrupts:
			if r.ctrl.Busy() {
				r.ctrl.Abort()
				continue
			}
			quit()
			return
		}
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command and reports whether the chat should end.
func (r *repl) command(line string) bool {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		fmt.Fprintln(r.out, r.paint.dim("  /model [id]  show or switch model"))
		fmt.Fprintln(r.out, r.paint.dim("  /models      list selectable models"))
		fmt.Fprintln(r.out, r.paint.dim("  /quit        exit (also Ctrl+D)"))
		fmt.Fprintln(r.out, r.paint.dim("  Ctrl+C       stop the streaming reply"))

	case "/models":
		current := r.ctrl.Model()
		for _, info := range r.ctrl.Models() {
			marker := "  "
			if info.ID == current {
				marker = "* "
			}
			fmt.Fprintf(r.out, "%s%-16s %s\n", marker, info.ID, r.paint.dim(info.Label()))
		}

	case "/model":
		if len(args) == 0 {
			fmt.Fprintf(r.out, "model: %s\n", r.ctrl.Model())
			break
		}
		if err := r.ctrl.Select(model.ID(args[0])); err != nil {
			fmt.Fprintln(r.out, r.paint.failure(err.Error()))
			break
		}
		fmt.Fprintf(r.out, "model: %s\n", r.ctrl.Model())

	default:
		fmt.Fprintln(r.out, r.paint.failure(fmt.Sprintf("unknown command %s, try /help", name)))
	}
	return false
}

func (r *repl) label(id model.ID) string {
	if info, ok := model.Catalog(r.ctrl.Models()).Lookup(id); ok {
		return info.Label()
	}
	return string(id)
}
