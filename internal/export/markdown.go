// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/manovay/AP-Study-Guide-Generator/internal/model"
)

// frontmatter is the YAML header of a Markdown export.
type frontmatter struct {
	Title     string    `yaml:"title"`
	ID        string    `yaml:"id,omitempty"`
	Created   time.Time `yaml:"created"`
	Updated   time.Time `yaml:"updated"`
	Turns     int       `yaml:"turns"`
	Generator string    `yaml:"generator"`
}

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports guides to Markdown with optional YAML
// frontmatter. Responses are already Markdown and are written verbatim.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a guide to Markdown.
func (e *MarkdownExporter) Export(g *model.StudyGuide) ([]byte, error) {
	turns, err := completeTurns(g)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		meta, err := yaml.Marshal(frontmatter{
			Title:     g.GetTitle(),
			ID:        g.ID,
			Created:   g.CreatedAt.UTC().Truncate(time.Second),
			Updated:   g.UpdatedAt.UTC().Truncate(time.Second),
			Turns:     len(turns),
			Generator: "tootur",
		})
		if err != nil {
			return nil, fmt.Errorf("frontmatter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(meta)
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(g.GetTitle()))

	for i, t := range turns {
		if i == 0 {
			fmt.Fprintf(&sb, "> **Topic:** %s\n\n", quoteLines(t.Prompt))
		} else {
			fmt.Fprintf(&sb, "## Follow-up %d\n\n> %s\n\n", i, quoteLines(t.Prompt))
		}
		sb.WriteString(strings.TrimSpace(t.Response))
		sb.WriteString("\n\n")
		if i < len(turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// quoteLines continues a blockquote across the prompt's lines.
func quoteLines(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n> ")
}

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("#", `\#`, "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}
