// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/manovay/AP-Study-Guide-Generator/internal/app"
	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
	"github.com/manovay/AP-Study-Guide-Generator/internal/reveal"
)

// =============================================================================
// GUIDE REFERENCES
// =============================================================================

// resolveGuide finds a guide by full id, by its 1-based position in
// "guides list", or by a unique id prefix.
func resolveGuide(a *app.App, ref string) (*model.StudyGuide, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, usageErrorf("guide reference is empty")
	}
	list := a.Registry.List()

	key := ""
	for _, s := range list {
		if s.ID == ref {
			key = s.Key
			break
		}
	}
	if key == "" {
		if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(list) {
			key = list[n-1].Key
		}
	}
	if key == "" {
		var matches []string
		for _, s := range list {
			if strings.HasPrefix(s.ID, ref) {
				matches = append(matches, s.Key)
			}
		}
		switch len(matches) {
		case 0:
		case 1:
			key = matches[0]
		default:
			return nil, usageErrorf("guide reference %q is ambiguous (%d matches)", ref, len(matches))
		}
	}
	if key == "" {
		return nil, &NotFoundError{Resource: "study guide", ID: ref}
	}
	g, ok := a.Registry.Get(key)
	if !ok {
		return nil, &NotFoundError{Resource: "study guide", ID: ref}
	}
	return g, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

// renderMarkdown renders a response for the terminal. Piped output gets the
// raw Markdown.
func renderMarkdown(text string) string {
	if !IsStdoutTTY() {
		return text
	}
	style := glamour.WithAutoStyle()
	if !ColorsEnabled() {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(renderWidth()))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

// typeOut writes text to w progressively, one reveal step per interval.
// Cancelling ctx writes the remainder at once.
func typeOut(ctx context.Context, w io.Writer, text string, opts reveal.Options, interval time.Duration) error {
	if interval <= 0 {
		_, err := io.WriteString(w, text)
		return err
	}
	s := reveal.NewStream(text, opts)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	written := 0
	for {
		prefix, ok := s.Next()
		if !ok {
			return nil
		}
		if len(prefix) > written {
			if _, err := io.WriteString(w, prefix[written:]); err != nil {
				return err
			}
			written = len(prefix)
		}
		if s.Done() {
			return nil
		}
		select {
		case <-ctx.Done():
			_, err := io.WriteString(w, s.SkipToEnd()[written:])
			return err
		case <-ticker.C:
		}
	}
}

// printTurn writes one prompt/response pair in human format.
func printTurn(w io.Writer, label, prompt, response string) {
	fmt.Fprintln(w, DimStyle.Render(label))
	fmt.Fprintln(w, PromptStyle.Render(prompt))
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.TrimRight(renderMarkdown(response), "\n"))
}

func turnLabel(i int) string {
	if i == 0 {
		return "Topic"
	}
	return fmt.Sprintf("Follow-up %d", i)
}
