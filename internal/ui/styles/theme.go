// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the lipgloss styles for the study guide TUI.
// All colors are AdaptiveColor so light and dark terminals both read well.
package styles

import "github.com/charmbracelet/lipgloss"

// Theme holds all the styled components for the application.
type Theme struct {
	// Sidebar
	Sidebar         lipgloss.Style
	SidebarFocused  lipgloss.Style
	SidebarTitle    lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	SidebarActive   lipgloss.Style
	SidebarMeta     lipgloss.Style

	// Main pane
	Header       lipgloss.Style
	HeaderMuted  lipgloss.Style
	Prompt       lipgloss.Style
	PromptLabel  lipgloss.Style
	Response     lipgloss.Style
	Pending      lipgloss.Style
	RevealCursor lipgloss.Style
	Welcome      lipgloss.Style

	// Input
	Input        lipgloss.Style
	InputFocused lipgloss.Style
	InputLabel   lipgloss.Style

	// Status line
	Status      lipgloss.Style
	StatusError lipgloss.Style
	StatusOK    lipgloss.Style
	ShortcutKey lipgloss.Style
	Confirm     lipgloss.Style
}

// NewTheme creates the default theme.
func NewTheme() *Theme {
	border := lipgloss.RoundedBorder()

	return &Theme{
		Sidebar: lipgloss.NewStyle().
			Border(border).
			BorderForeground(Overlay).
			Padding(0, 1),
		SidebarFocused: lipgloss.NewStyle().
			Border(border).
			BorderForeground(Purple).
			Padding(0, 1),
		SidebarTitle: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true).
			MarginBottom(1),
		SidebarItem: lipgloss.NewStyle().
			Foreground(TextPrimary),
		SidebarSelected: lipgloss.NewStyle().
			Foreground(Purple).
			Background(SurfaceBright).
			Bold(true),
		SidebarActive: lipgloss.NewStyle().
			Foreground(Purple),
		SidebarMeta: lipgloss.NewStyle().
			Foreground(TextMuted),

		Header: lipgloss.NewStyle().
			Foreground(Purple).
			Bold(true),
		HeaderMuted: lipgloss.NewStyle().
			Foreground(TextMuted),
		Prompt: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true),
		PromptLabel: lipgloss.NewStyle().
			Foreground(TextSecondary),
		Response: lipgloss.NewStyle().
			Foreground(TextPrimary),
		Pending: lipgloss.NewStyle().
			Foreground(Amber).
			Italic(true),
		RevealCursor: lipgloss.NewStyle().
			Foreground(Purple),
		Welcome: lipgloss.NewStyle().
			Foreground(TextSecondary).
			Padding(1, 2),

		Input: lipgloss.NewStyle().
			Border(border).
			BorderForeground(Overlay).
			Padding(0, 1),
		InputFocused: lipgloss.NewStyle().
			Border(border).
			BorderForeground(Cyan).
			Padding(0, 1),
		InputLabel: lipgloss.NewStyle().
			Foreground(Amber).
			Bold(true),

		Status: lipgloss.NewStyle().
			Foreground(TextMuted),
		StatusError: lipgloss.NewStyle().
			Foreground(Rose).
			Bold(true),
		StatusOK: lipgloss.NewStyle().
			Foreground(Emerald),
		ShortcutKey: lipgloss.NewStyle().
			Foreground(Cyan),
		Confirm: lipgloss.NewStyle().
			Foreground(Amber).
			Bold(true),
	}
}
