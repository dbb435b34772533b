// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package study

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/manovay/AP-Study-Guide-Generator/internal/controller"
	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
	"github.com/manovay/AP-Study-Guide-Generator/internal/registry"
	"github.com/manovay/AP-Study-Guide-Generator/internal/ui/styles"
)

const (
	maxPromptLength = 4000
	sidebarWidth    = 32
	minMainWidth    = 30
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

type inputMode int

const (
	modePrompt inputMode = iota
	modeRename
	modeConfirmDelete
)

// Options configures the screen.
type Options struct {
	// Animate shows responses with the typing effect. When false responses
	// appear complete as soon as they arrive.
	Animate bool

	// GlamourStyle is a glamour standard style or "auto".
	GlamourStyle string

	// RefreshOnStart fetches the guide list in Init.
	RefreshOnStart bool
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the study guide screen: a guide list on
// the left, the open conversation on the right and the prompt input below.
//
// The registry is the source of truth. The model never edits guides itself;
// it issues controller intents as commands and redraws from registry state
// whenever the registry reports a change.
type Model struct {
	ctx    context.Context
	ctrl   *controller.Controller
	reg    *registry.Registry
	bridge *bridge
	opts   Options

	keys     KeyMap
	theme    *styles.Theme
	renderer *markdownRenderer

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	guides []model.Summary
	cursor int // 0 is the new-guide row, i+1 is guides[i]

	focus       focusArea
	mode        inputMode
	target      string // guide being renamed or deleted
	savedPrompt string // prompt text stashed while renaming

	status    string
	statusErr bool

	width, height int
	ready         bool
}

// New creates the screen over ctrl. ctx bounds every controller call.
func New(ctx context.Context, ctrl *controller.Controller, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = newGuidePlaceholder
	ti.CharLimit = maxPromptLength
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	reg := ctrl.Registry()
	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		reg:      reg,
		bridge:   newBridge(reg),
		opts:     opts,
		keys:     DefaultKeyMap(),
		theme:    styles.NewTheme(),
		renderer: newMarkdownRenderer(opts.GlamourStyle),
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
	m.sync()
	return m
}

// Init starts the registry listener, the spinner and, if requested, the
// initial fetch.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.bridge.wait(), m.spinner.Tick, textinput.Blink}
	if m.opts.RefreshOnStart {
		cmds = append(cmds, m.refreshCmd())
	}
	return tea.Batch(cmds...)
}

// Close detaches the model from the registry.
func (m Model) Close() {
	m.bridge.close()
}

// =============================================================================
// STATE HELPERS
// =============================================================================

// sync reloads the guide list from the registry and keeps the cursor on
// the selected guide.
func (m *Model) sync() {
	m.guides = m.reg.List()
	sel := m.reg.Selected()
	m.cursor = 0
	for i, s := range m.guides {
		if s.Key == sel {
			m.cursor = i + 1
			break
		}
	}
	if m.mode == modePrompt {
		if sel == "" {
			m.input.Placeholder = newGuidePlaceholder
		} else {
			m.input.Placeholder = followUpPlaceholder
		}
	}
	m.refreshViewport()
}

// cursorKey returns the guide key under the sidebar cursor, or "" for the
// new-guide row.
func (m Model) cursorKey() string {
	if m.cursor <= 0 || m.cursor > len(m.guides) {
		return ""
	}
	return m.guides[m.cursor-1].Key
}

func (m Model) cursorTitle() string {
	if m.cursor <= 0 || m.cursor > len(m.guides) {
		return ""
	}
	return m.guides[m.cursor-1].Title
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.status = msg
	m.statusErr = isErr
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// enterMode switches the input between prompt, rename and delete
// confirmation.
func (m *Model) enterMode(mode inputMode, target string) {
	switch mode {
	case modeRename:
		if m.mode == modePrompt {
			m.savedPrompt = m.input.Value()
		}
		m.input.SetValue(m.cursorTitle())
		m.input.CursorEnd()
		m.input.Placeholder = "New title"
		m.setFocus(focusInput)
	case modeConfirmDelete:
		m.setFocus(focusSidebar)
	case modePrompt:
		if m.mode == modeRename {
			m.input.SetValue(m.savedPrompt)
			m.savedPrompt = ""
		}
	}
	m.mode = mode
	m.target = target
	if mode == modePrompt {
		m.sync()
	}
}
