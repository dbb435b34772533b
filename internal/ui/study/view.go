// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package study

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
	"github.com/manovay/AP-Study-Guide-Generator/internal/util"
)

const (
	newGuidePlaceholder = "What topic should the study guide cover?"
	followUpPlaceholder = "Ask a follow-up question"
	welcomeText         = "Welcome to Tootur.\n\nType a topic below to generate a study guide, " +
		"then keep asking follow-up questions in the same conversation.\n\n" +
		"Saved guides are listed on the left. Press Tab to switch panes."
)

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes the viewport and input for the current window.
func (m *Model) layout() {
	mainW := m.mainWidth()
	// title row, input box (3 rows) and status row
	vpH := m.height - 5
	if vpH < 3 {
		vpH = 3
	}
	m.viewport.Width = mainW
	m.viewport.Height = vpH
	m.input.Width = mainW - 6
	m.refreshViewport()
}

func (m Model) sidebarWidth() int {
	w := sidebarWidth
	if m.width > 0 && m.width-w < minMainWidth {
		w = m.width / 3
	}
	return w
}

func (m Model) mainWidth() int {
	w := m.width - m.sidebarWidth() - 1
	if w < minMainWidth {
		w = minMainWidth
	}
	return w
}

// refreshViewport rebuilds the conversation text. The view stays pinned to
// the bottom while it was already there.
func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.conversationContent())
	if atBottom || m.hasPending() {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	main := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
		m.renderStatus(),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), " ", main)
}

func (m Model) renderHeader() string {
	g := m.reg.Current()
	title := "New Study Guide"
	if m.reg.Selected() != "" {
		title = g.GetTitle()
	}
	line := m.theme.Header.Render(util.TruncateWidth(title, m.mainWidth()-16))
	if g.Conversation != nil && !g.Conversation.IsEmpty() {
		line += m.theme.HeaderMuted.Render(fmt.Sprintf("  %d turns", g.Conversation.Len()))
	}
	return line
}

func (m Model) renderSidebar() string {
	inner := m.sidebarWidth() - 4
	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("Study Guides"))
	b.WriteString("\n")

	sel := m.reg.Selected()
	rows := []string{m.sidebarRow("+ New guide", 0, sel == "", inner)}
	for i, s := range m.guides {
		label := s.Title
		if s.Pending {
			label = m.spinner.View() + label
		}
		rows = append(rows, m.sidebarRow(label, i+1, s.Key == sel, inner))
		if m.cursor == i+1 {
			meta := s.UpdatedAt.Local().Format("Jan 2 15:04")
			if s.TurnCount > 0 {
				meta += fmt.Sprintf(" · %d turns", s.TurnCount)
			}
			rows = append(rows, m.theme.SidebarMeta.Render("  "+util.TruncateWidth(meta, inner-2)))
		}
	}
	if len(m.guides) == 0 {
		rows = append(rows, m.theme.SidebarMeta.Render("  no saved guides"))
	}
	b.WriteString(strings.Join(rows, "\n"))

	style := m.theme.Sidebar
	if m.focus == focusSidebar {
		style = m.theme.SidebarFocused
	}
	return style.Width(m.sidebarWidth() - 2).Height(max(m.height-2, 1)).Render(b.String())
}

func (m Model) sidebarRow(label string, idx int, active bool, width int) string {
	text := util.PadWidth(util.SingleLine(label), width)
	switch {
	case idx == m.cursor && m.focus == focusSidebar:
		return m.theme.SidebarSelected.Render(text)
	case active:
		return m.theme.SidebarActive.Render(text)
	default:
		return m.theme.SidebarItem.Render(text)
	}
}

func (m Model) renderInput() string {
	style := m.theme.Input
	if m.focus == focusInput {
		style = m.theme.InputFocused
	}
	body := m.input.View()
	if m.mode == modeRename {
		body = m.theme.InputLabel.Render("Rename: ") + body
	}
	return style.Width(m.mainWidth() - 2).Render(body)
}

func (m Model) renderStatus() string {
	if m.mode == modeConfirmDelete {
		return m.theme.Confirm.Render(fmt.Sprintf("Delete %q? (y/N)", util.TruncateWidth(m.targetTitle(), 40)))
	}
	if m.status != "" {
		if m.statusErr {
			return m.theme.StatusError.Render(util.TruncateWidth(m.status, m.mainWidth()))
		}
		return m.theme.StatusOK.Render(util.TruncateWidth(m.status, m.mainWidth()))
	}
	bindings := m.keys.InputHelp()
	if m.focus == focusSidebar {
		bindings = m.keys.SidebarHelp()
	}
	return m.renderHelp(bindings)
}

func (m Model) renderHelp(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.Status.Render(h.Desc))
	}
	return util.TruncateWidth(strings.Join(parts, "  "), m.mainWidth()+64)
}

func (m Model) targetTitle() string {
	for _, s := range m.guides {
		if s.Key == m.target {
			return s.Title
		}
	}
	return m.target
}

// =============================================================================
// CONVERSATION
// =============================================================================

// conversationContent renders every turn of the open guide. The newest
// response shows only its revealed prefix while the typing effect runs.
func (m Model) conversationContent() string {
	g := m.reg.Current()
	if g.Conversation == nil || g.Conversation.IsEmpty() {
		return m.theme.Welcome.Width(m.viewport.Width).Render(welcomeText)
	}

	width := m.viewport.Width - 2
	st, hasReveal := m.reg.Reveal(g.Key())
	turns := g.Conversation.Turns()

	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := "Topic"
		if i > 0 {
			label = "Follow-up"
		}
		b.WriteString(m.theme.PromptLabel.Render(label))
		b.WriteString("\n")
		b.WriteString(m.theme.Prompt.Width(width).Render(t.Prompt))
		b.WriteString("\n\n")

		switch {
		case t.Status == model.TurnPending:
			b.WriteString(m.spinner.View())
			b.WriteString(m.theme.Pending.Render("Generating study guide..."))
		case i == len(turns)-1 && m.opts.Animate && hasReveal && !st.Done && st.Offset <= len(t.Response):
			b.WriteString(m.theme.Response.Render(wrapPlain(t.Response[:st.Offset], width)))
			b.WriteString(m.theme.RevealCursor.Render("▌"))
		default:
			b.WriteString(m.renderer.Render(t.Response, width))
		}
	}
	return b.String()
}
