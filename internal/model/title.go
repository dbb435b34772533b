// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"
)

// MaxTitleWidth bounds the display width of a default title.
const MaxTitleWidth = 50

// DefaultTitle derives a guide title from the originating prompt: NFC
// normalized, whitespace collapsed, cut to MaxTitleWidth columns. The full
// prompt stays in the first turn.
func DefaultTitle(prompt string) string {
	s := collapseSpace(norm.NFC.String(prompt))
	if s == "" {
		return ""
	}
	return runewidth.Truncate(s, MaxTitleWidth, "")
}

// NormalizeTitle trims and normalizes a user-supplied title.
func NormalizeTitle(title string) (string, error) {
	s := strings.TrimSpace(norm.NFC.String(title))
	if s == "" {
		return "", ErrEmptyTitle
	}
	return s, nil
}

// NormalizePrompt trims a user-supplied prompt and rejects blank input.
func NormalizePrompt(prompt string) (string, error) {
	s := strings.TrimSpace(prompt)
	if s == "" {
		return "", ErrEmptyPrompt
	}
	return s, nil
}

// Preview returns a single-line excerpt at most width columns wide.
func Preview(text string, width int) string {
	return runewidth.Truncate(collapseSpace(text), width, "...")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
