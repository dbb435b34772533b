// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package study

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const maxCachedRenders = 256

// markdownRenderer renders complete responses with glamour. Results are
// cached per width because the view is rebuilt on every reveal frame.
type markdownRenderer struct {
	mu     sync.Mutex
	style  string
	width  int
	tr     *glamour.TermRenderer
	cache  map[string]string
	failed bool
}

// newMarkdownRenderer creates a renderer. style is a glamour standard style
// name or "auto" to detect the terminal background.
func newMarkdownRenderer(style string) *markdownRenderer {
	if style == "" {
		style = "auto"
	}
	return &markdownRenderer{style: style, cache: make(map[string]string)}
}

// Render returns text rendered for width columns. If glamour cannot be
// initialized the text is word-wrapped instead.
func (r *markdownRenderer) Render(text string, width int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width < 20 {
		width = 20
	}
	if width != r.width || r.tr == nil && !r.failed {
		r.reset(width)
	}
	if out, ok := r.cache[text]; ok {
		return out
	}

	out := ""
	if r.tr != nil {
		if rendered, err := r.tr.Render(text); err == nil {
			out = strings.Trim(rendered, "\n")
		}
	}
	if out == "" {
		out = wrapPlain(text, width)
	}
	if len(r.cache) >= maxCachedRenders {
		r.cache = make(map[string]string)
	}
	r.cache[text] = out
	return out
}

func (r *markdownRenderer) reset(width int) {
	r.width = width
	r.cache = make(map[string]string)

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if r.style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(r.style))
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		r.tr = nil
		r.failed = true
		return
	}
	r.tr = tr
	r.failed = false
}

// wrapPlain word-wraps text without Markdown styling. Used for responses
// that are still being revealed.
func wrapPlain(text string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(text)
}
