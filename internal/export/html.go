// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	gmutil "github.com/yuin/goldmark/util"

	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports guides to a standalone HTML page with embedded CSS.
// Responses are rendered from Markdown; raw HTML in responses is dropped.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options: opts,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(
				renderer.WithNodeRenderers(gmutil.Prioritized(newCodeRenderer(opts.Theme), 100)),
			),
		),
	}
}

// Export converts a guide to HTML.
func (e *HTMLExporter) Export(g *model.StudyGuide) ([]byte, error) {
	turns, err := completeTurns(g)
	if err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "dark" {
		theme = "light"
	}
	title := html.EscapeString(g.GetTitle())

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", title)
	sb.WriteString("    <meta name=\"generator\" content=\"tootur\">\n")
	sb.WriteString(htmlCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n<div class=\"container\">\n", theme)

	sb.WriteString("    <header class=\"header\">\n")
	fmt.Fprintf(&sb, "        <h1>%s</h1>\n", title)
	if e.options.IncludeMetadata {
		sb.WriteString("        <div class=\"metadata\">\n")
		fmt.Fprintf(&sb, "            <span><strong>Created:</strong> %s</span>\n", formatTimestamp(g.CreatedAt))
		fmt.Fprintf(&sb, "            <span><strong>Updated:</strong> %s</span>\n", formatTimestamp(g.UpdatedAt))
		fmt.Fprintf(&sb, "            <span><strong>Turns:</strong> %d</span>\n", len(turns))
		sb.WriteString("        </div>\n")
	}
	sb.WriteString("    </header>\n    <main>\n")

	for i, t := range turns {
		body, err := e.render(t.Response)
		if err != nil {
			return nil, fmt.Errorf("render turn %d: %w", i+1, err)
		}
		sb.WriteString("        <section class=\"turn\">\n")
		label := "Topic"
		if i > 0 {
			label = fmt.Sprintf("Follow-up %d", i)
		}
		fmt.Fprintf(&sb, "            <div class=\"prompt\"><span class=\"label\">%s</span>%s</div>\n",
			label, html.EscapeString(t.Prompt))
		fmt.Fprintf(&sb, "            <div class=\"response\">\n%s            </div>\n", body)
		sb.WriteString("        </section>\n")
	}

	sb.WriteString("    </main>\n")
	fmt.Fprintf(&sb, "    <footer class=\"footer\">Exported from <strong>Tootur</strong> on %s</footer>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := e.md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlCSS = `    <style>
        * { box-sizing: border-box; }
        body { margin: 0; font-family: -apple-system, "Segoe UI", Roboto, sans-serif; line-height: 1.6; }
        .light-theme { background: #fafafa; color: #1f2328; --accent: #2563eb; --panel: #ffffff; --muted: #6b7280; --border: #e5e7eb; }
        .dark-theme { background: #111827; color: #e5e7eb; --accent: #60a5fa; --panel: #1f2937; --muted: #9ca3af; --border: #374151; }
        .container { max-width: 860px; margin: 0 auto; padding: 2rem 1rem; }
        .header { border-bottom: 2px solid var(--accent); margin-bottom: 1.5rem; }
        .header h1 { margin: 0 0 .5rem; }
        .metadata { display: flex; flex-wrap: wrap; gap: 1rem; color: var(--muted); font-size: .9rem; padding-bottom: 1rem; }
        .turn { background: var(--panel); border: 1px solid var(--border); border-radius: 8px; padding: 1rem 1.25rem; margin-bottom: 1.25rem; }
        .prompt { font-weight: 600; border-left: 3px solid var(--accent); padding-left: .75rem; margin-bottom: .75rem; white-space: pre-wrap; }
        .label { display: block; font-size: .75rem; text-transform: uppercase; color: var(--muted); }
        .response pre { background: rgba(127,127,127,.12); padding: .75rem; border-radius: 6px; overflow-x: auto; }
        .response code { font-family: "SFMono-Regular", Consolas, monospace; font-size: .9em; }
        .response table { border-collapse: collapse; }
        .response th, .response td { border: 1px solid var(--border); padding: .25rem .5rem; }
        .footer { color: var(--muted); font-size: .8rem; text-align: center; margin-top: 2rem; }
        @media print { .turn { break-inside: avoid; border: none; } }
    </style>
`
