// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package study

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/manovay/AP-Study-Guide-Generator/internal/controller"
	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
)

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case changedMsg:
		m.sync()
		return m, m.bridge.wait()

	case intentDoneMsg:
		m.handleIntentDone(msg)
		return m, nil

	case cancelledMsg:
		if msg.err != nil {
			m.setStatus(describeError(msg.err), true)
			return m, nil
		}
		if m.input.Value() == "" {
			m.input.SetValue(msg.prompt)
			m.input.CursorEnd()
		}
		m.setStatus("Request cancelled", false)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.hasPending() {
			m.refreshViewport()
		}
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.Close()
		return m, tea.Quit
	}

	if m.mode == modeConfirmDelete {
		return m.handleConfirmKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusInput {
			m.setFocus(focusSidebar)
		} else {
			m.setFocus(focusInput)
		}
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		m.setStatus("Refreshing...", false)
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.Skip):
		if sel := m.reg.Selected(); sel != "" {
			m.ctrl.SkipReveal(sel)
		}
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.guides) {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		target := m.cursorKey()
		m.setFocus(focusInput)
		if target == "" {
			m.ctrl.SelectNew()
			return m, nil
		}
		return m, m.selectCmd(target)
	case key.Matches(msg, m.keys.New):
		m.ctrl.SelectNew()
		m.setFocus(focusInput)
	case key.Matches(msg, m.keys.Rename):
		if target := m.cursorKey(); target != "" {
			m.enterMode(modeRename, target)
		}
	case key.Matches(msg, m.keys.Delete):
		if target := m.cursorKey(); target != "" {
			m.enterMode(modeConfirmDelete, target)
		}
	}
	return m, nil
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	target := m.target
	m.enterMode(modePrompt, "")
	if key.Matches(msg, m.keys.Confirm) {
		m.setStatus("Deleting...", false)
		return m, m.deleteCmd(target)
	}
	m.setStatus("Delete cancelled", false)
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.mode == modeRename {
			m.enterMode(modePrompt, "")
			return m, nil
		}
		if m.hasPending() {
			return m, m.cancelCmd(m.reg.Selected())
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if m.mode == modeRename {
			target := m.target
			m.enterMode(modePrompt, "")
			m.setStatus("Renaming...", false)
			return m, m.renameCmd(target, text)
		}
		if text == "" {
			return m, nil
		}
		if m.hasPending() {
			m.setStatus("Still generating the previous answer", true)
			return m, nil
		}
		m.input.Reset()
		m.setStatus("", false)
		if m.reg.Selected() == "" {
			return m, m.submitTopicCmd(text)
		}
		return m, m.submitFollowUpCmd(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// INTENT COMMANDS
// =============================================================================

func (m Model) submitTopicCmd(text string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		g, err := ctrl.SubmitTopic(ctx, text)
		done := intentDoneMsg{op: controller.OpSubmitTopic, err: err}
		if g != nil {
			done.key = g.ID
		}
		return done
	}
}

func (m Model) submitFollowUpCmd(text string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		_, err := ctrl.SubmitFollowUp(ctx, text)
		return intentDoneMsg{op: controller.OpSubmitFollowUp, err: err}
	}
}

func (m Model) selectCmd(id string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return intentDoneMsg{op: controller.OpSelectGuide, key: id, err: ctrl.SelectGuide(ctx, id)}
	}
}

func (m Model) renameCmd(id, title string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return intentDoneMsg{op: controller.OpRenameGuide, key: id, err: ctrl.RenameGuide(ctx, id, title)}
	}
}

func (m Model) deleteCmd(id string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return intentDoneMsg{op: controller.OpDeleteGuide, key: id, err: ctrl.DeleteGuide(ctx, id)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return intentDoneMsg{op: controller.OpRefresh, err: ctrl.Refresh(ctx)}
	}
}

func (m Model) cancelCmd(key string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		prompt, err := ctrl.CancelPending(key)
		return cancelledMsg{prompt: prompt, err: err}
	}
}

// =============================================================================
// RESULTS
// =============================================================================

func (m *Model) handleIntentDone(msg intentDoneMsg) {
	if msg.err == nil {
		switch msg.op {
		case controller.OpRenameGuide:
			m.setStatus("Guide renamed", false)
		case controller.OpDeleteGuide:
			m.setStatus("Guide deleted", false)
		case controller.OpRefresh:
			m.setStatus("", false)
		}
		return
	}

	var e *model.Error
	if errors.As(msg.err, &e) {
		if e.Kind == model.KindStaleResponse {
			return
		}
		// hand a failed prompt back unless the user already typed something
		if e.Prompt != "" && m.mode == modePrompt && m.input.Value() == "" {
			m.input.SetValue(e.Prompt)
			m.input.CursorEnd()
		}
	}
	m.setStatus(describeError(msg.err), true)
}

// describeError turns an engine error into a status-line message.
func describeError(err error) string {
	var e *model.Error
	if !errors.As(err, &e) {
		return "Error: " + err.Error()
	}
	switch {
	case errors.Is(err, model.ErrEmptyTitle):
		return "Title cannot be empty"
	case errors.Is(err, model.ErrEmptyPrompt):
		return "Type a topic or question first"
	case errors.Is(err, model.ErrPendingTurnExists):
		return "Still generating the previous answer"
	case errors.Is(err, model.ErrGuideNotSaved):
		return "Wait for the guide to be saved"
	}
	switch e.Kind {
	case model.KindRemote:
		msg := e.Msg
		if msg == "" {
			msg = "request failed"
		}
		return "Could not reach the study guide service: " + msg + " (try again)"
	default:
		return "Error: " + e.Error()
	}
}

func (m Model) hasPending() bool {
	g := m.reg.Current()
	return g.Conversation != nil && g.Conversation.HasPending()
}
