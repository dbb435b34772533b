// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/manovay/AP-Study-Guide-Generator/internal/app"
	"github.com/manovay/AP-Study-Guide-Generator/internal/config"
	"github.com/manovay/AP-Study-Guide-Generator/internal/util"
)

// =============================================================================
// LINE EDITOR
// =============================================================================

// lineEditor wraps liner with history persisted under the config directory.
type lineEditor struct {
	line        *liner.State
	historyFile string
}

var chatCommands = []string{"/help", "/new", "/list", "/open", "/rename", "/delete", "/quit"}

func newLineEditor() *lineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(s string) []string {
		if !strings.HasPrefix(s, "/") {
			return nil
		}
		var out []string
		for _, c := range chatCommands {
			if strings.HasPrefix(c, s) {
				out = append(out, c)
			}
		}
		return out
	})

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	e := &lineEditor{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(e.historyFile); err == nil {
		e.line.ReadHistory(f)
		f.Close()
	}
	return e
}

func (e *lineEditor) read(prompt string) (string, error) {
	input, err := e.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		e.line.AppendHistory(input)
	}
	return input, nil
}

// close saves history with 0600 permissions and restores the terminal.
func (e *lineEditor) close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(e.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			e.line.WriteHistory(f)
			f.Close()
		}
	}
	e.line.Close()
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// chatSession is a line-oriented conversation with one guide at a time.
// An empty guideID means the next input starts a new guide.
type chatSession struct {
	app     *app.App
	out     io.Writer
	guideID string
	animate bool
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	var (
		guideRef  string
		noAnimate bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Line-mode study session with history and slash commands",
		Long: `Start a line-mode session. The first line you type becomes the topic of a
new study guide; each later line is a follow-up question on it.

Commands:
  /new              start a new guide with the next line
  /list             list your guides
  /open <ref>       continue an existing guide
  /rename <title>   rename the current guide
  /delete           delete the current guide
  /quit             leave (Ctrl+D also works)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !IsTTY() {
				return usageErrorf("chat needs an interactive terminal; use \"tootur ask\" for scripts")
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go a.Follow(ctx)

			s := &chatSession{
				app:     a,
				out:     cmd.OutOrStdout(),
				animate: !noAnimate && a.Config.Reveal.Enabled && CanAnimate(),
			}
			if guideRef != "" {
				if err := s.open(cmd, guideRef); err != nil {
					return err
				}
			}
			return s.run(cmd)
		},
	}
	cmd.Flags().StringVarP(&guideRef, "guide", "g", "", "continue this guide (id, list number or id prefix)")
	cmd.Flags().BoolVar(&noAnimate, "no-animate", false, "print responses at once")
	return cmd
}

func (s *chatSession) run(cmd *cobra.Command) error {
	ed := newLineEditor()
	defer ed.close()

	fmt.Fprintln(s.out, TitleStyle.Render("Tootur chat"))
	fmt.Fprintln(s.out, DimStyle.Render("Type a topic to start a guide. /help for commands, Ctrl+D to quit."))
	fmt.Fprintln(s.out)

	for {
		input, err := ed.read(s.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := s.command(cmd, input)
			if err != nil {
				fmt.Fprintln(s.out, ErrorStyle.Render("[Error]"), err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.send(cmd, input); err != nil {
			fmt.Fprintln(s.out, ErrorStyle.Render("[Error]"), err)
		}
		if cmd.Context().Err() != nil {
			return nil
		}
	}
}

func (s *chatSession) prompt() string {
	if s.guideID == "" {
		return "new> "
	}
	if g, ok := s.app.Registry.Get(s.guideID); ok {
		return util.TruncateWidth(g.GetTitle(), 24) + "> "
	}
	return "guide> "
}

// send submits input as a topic or as a follow-up on the open guide.
func (s *chatSession) send(cmd *cobra.Command, input string) error {
	fmt.Fprintln(s.out, DimStyle.Render("Generating..."))
	res, err := ask(cmd, s.app, s.guideID, input)
	if err != nil {
		return err
	}
	s.guideID = res.ID

	fmt.Fprintln(s.out)
	if s.animate {
		copts := app.ControllerOptions(s.app.Config)
		if err := typeOut(cmd.Context(), s.out, res.Response, copts.Reveal, copts.RevealInterval); err != nil {
			return err
		}
		fmt.Fprintln(s.out)
	} else {
		fmt.Fprintln(s.out, strings.TrimRight(renderMarkdown(res.Response), "\n"))
	}
	fmt.Fprintln(s.out)
	return nil
}

// command runs a slash command and reports whether the session should end.
func (s *chatSession) command(cmd *cobra.Command, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	ctx := cmd.Context()

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help", "/?":
		fmt.Fprintln(s.out, cmd.Long)
	case "/new":
		s.guideID = ""
		s.app.Controller.SelectNew()
		fmt.Fprintln(s.out, SuccessStyle.Render("Next line starts a new guide."))
	case "/list":
		printGuideTable(s.out, s.app.Registry.List())
	case "/open":
		if arg == "" {
			return false, usageErrorf("usage: /open <ref>")
		}
		return false, s.open(cmd, arg)
	case "/rename":
		if s.guideID == "" {
			return false, usageErrorf("no guide is open")
		}
		if err := s.app.Controller.RenameGuide(ctx, s.guideID, arg); err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, SuccessStyle.Render("Renamed."))
	case "/delete":
		if s.guideID == "" {
			return false, usageErrorf("no guide is open")
		}
		if err := s.app.Controller.DeleteGuide(ctx, s.guideID); err != nil {
			return false, err
		}
		s.guideID = ""
		fmt.Fprintln(s.out, SuccessStyle.Render("Deleted."))
	default:
		return false, usageErrorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

// open selects an existing guide and prints its conversation so far.
func (s *chatSession) open(cmd *cobra.Command, ref string) error {
	g, err := resolveGuide(s.app, ref)
	if err != nil {
		return err
	}
	if err := s.app.Controller.SelectGuide(cmd.Context(), g.ID); err != nil {
		return err
	}
	if fresh, ok := s.app.Registry.Get(g.ID); ok {
		g = fresh
	}
	s.guideID = g.ID

	fmt.Fprintln(s.out, TitleStyle.Render(g.GetTitle()))
	for i, t := range g.Conversation.Turns() {
		printTurn(s.out, turnLabel(i), t.Prompt, t.Response)
		fmt.Fprintln(s.out)
	}
	return nil
}
